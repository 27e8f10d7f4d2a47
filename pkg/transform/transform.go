// Package transform turns raw third-party records into typed entities by
// evaluating the selector and mapping expressions of a resource
// configuration. The expression language itself is external: this package
// depends only on the Evaluator interface.
package transform

import (
	"fmt"

	"github.com/harborsync/harborsync/pkg/config"
	"github.com/harborsync/harborsync/pkg/entities"
	"github.com/harborsync/harborsync/pkg/errors"
)

// RawRecord is one untyped record as delivered by a fetcher.
type RawRecord = map[string]any

// Evaluator evaluates mapping expressions against a raw record. Any failure
// is returned as an error and treated as "cannot resolve", never a crash.
type Evaluator interface {
	// EvaluateBoolean evaluates a selector expression to a boolean.
	EvaluateBoolean(expr string, record RawRecord) (bool, error)

	// EvaluateValue evaluates a mapping expression to an arbitrary value.
	EvaluateValue(expr string, record RawRecord) (any, error)
}

// FailedRecord pairs a raw record with the error that kept it from becoming
// an entity.
type FailedRecord struct {
	Record RawRecord
	Err    error
}

// Result is the outcome of transforming one raw batch through one resource
// mapping.
type Result struct {
	// Passed holds the successfully transformed entities, in record order.
	Passed []entities.Entity

	// Failed holds records that matched the selector but whose required
	// fields could not be resolved.
	Failed []FailedRecord

	// FilteredOut counts records the selector rejected. Not failures.
	FilteredOut int

	// Errors collects non-fatal field-level evaluation errors from
	// records that still passed.
	Errors []error
}

// Transformer evaluates resource mappings over raw batches.
type Transformer struct {
	evaluator Evaluator
}

// New creates a Transformer backed by the given evaluator.
func New(evaluator Evaluator) *Transformer {
	return &Transformer{evaluator: evaluator}
}

// Parse transforms a raw batch through one resource's selector and mapping.
// Errors are strictly per-record: a record that fails selector or required
// field evaluation is captured in Failed and the batch continues.
func (t *Transformer) Parse(resource config.Resource, batch []RawRecord) *Result {
	result := &Result{}

	for _, record := range batch {
		passed, err := t.selects(resource.Selector, record)
		if err != nil {
			result.Failed = append(result.Failed, FailedRecord{
				Record: record,
				Err:    &errors.TransformError{Kind: resource.Kind, Field: "selector", Err: err},
			})
			continue
		}
		if !passed {
			result.FilteredOut++
			continue
		}

		entity, fieldErrs, err := t.mapEntity(resource, record)
		if err != nil {
			result.Failed = append(result.Failed, FailedRecord{Record: record, Err: err})
			continue
		}
		result.Errors = append(result.Errors, fieldErrs...)
		result.Passed = append(result.Passed, entity)
	}

	return result
}

// selects evaluates the resource selector for one record. An empty query
// passes everything.
func (t *Transformer) selects(selector config.Selector, record RawRecord) (bool, error) {
	if selector.Query == "" {
		return true, nil
	}
	return t.evaluator.EvaluateBoolean(selector.Query, record)
}

// mapEntity evaluates the entity mapping for one record. Identifier and
// blueprint are required; failure to resolve either fails the record.
// Optional field failures are collected and the record still passes.
func (t *Transformer) mapEntity(resource config.Resource, record RawRecord) (entities.Entity, []error, error) {
	kind := resource.Kind
	mapping := resource.Entity

	identifier, err := t.requiredString(kind, "identifier", mapping.Identifier, record)
	if err != nil {
		return entities.Entity{}, nil, err
	}

	blueprint, err := t.requiredString(kind, "blueprint", mapping.Blueprint, record)
	if err != nil {
		return entities.Entity{}, nil, err
	}

	entity := entities.Entity{
		Identifier: identifier,
		Blueprint:  blueprint,
	}

	var fieldErrs []error

	if mapping.Title != "" {
		title, err := t.evaluator.EvaluateValue(mapping.Title, record)
		if err != nil {
			fieldErrs = append(fieldErrs, &errors.TransformError{Kind: kind, Field: "title", Err: err})
		} else if s, ok := title.(string); ok {
			entity.Title = s
		}
	}

	if mapping.Team != "" {
		team, err := t.evaluator.EvaluateValue(mapping.Team, record)
		if err != nil {
			fieldErrs = append(fieldErrs, &errors.TransformError{Kind: kind, Field: "team", Err: err})
		} else {
			entity.Team = teamValue(team)
		}
	}

	if len(mapping.Properties) > 0 {
		entity.Properties = make(map[string]any, len(mapping.Properties))
		for name, expr := range mapping.Properties {
			value, err := t.evaluator.EvaluateValue(expr, record)
			if err != nil {
				fieldErrs = append(fieldErrs, &errors.TransformError{Kind: kind, Field: "properties." + name, Err: err})
				continue
			}
			entity.Properties[name] = value
		}
	}

	if len(mapping.Relations) > 0 {
		entity.Relations = make(map[string]entities.Relation, len(mapping.Relations))
		for name, expr := range mapping.Relations {
			value, err := t.evaluator.EvaluateValue(expr, record)
			if err != nil {
				fieldErrs = append(fieldErrs, &errors.TransformError{Kind: kind, Field: "relations." + name, Err: err})
				continue
			}
			entity.Relations[name] = relationValue(value)
		}
	}

	return entity, fieldErrs, nil
}

// requiredString evaluates a required mapping field to a non-empty string.
func (t *Transformer) requiredString(kind, field, expr string, record RawRecord) (string, error) {
	if expr == "" {
		return "", &errors.TransformError{Kind: kind, Field: field, Err: errors.ErrInvalidInput}
	}

	value, err := t.evaluator.EvaluateValue(expr, record)
	if err != nil {
		return "", &errors.TransformError{Kind: kind, Field: field, Err: err}
	}

	s := stringValue(value)
	if s == "" {
		return "", &errors.TransformError{
			Kind:  kind,
			Field: field,
			Err:   fmt.Errorf("expression %q resolved to no value", expr),
		}
	}
	return s, nil
}

// stringValue coerces an evaluated value to a string identifier.
func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case float64, int, int64, bool:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

// teamValue converts an evaluated team value into the Team type. Objects
// become opaque search queries.
func teamValue(value any) entities.Team {
	switch v := value.(type) {
	case string:
		return entities.TeamOf(v)
	case []string:
		return entities.TeamOf(v...)
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
		return entities.TeamOf(names...)
	case map[string]any:
		return entities.TeamQuery(v)
	default:
		return entities.Team{}
	}
}

// relationValue converts an evaluated relation value into a Relation.
func relationValue(value any) entities.Relation {
	switch v := value.(type) {
	case string:
		return entities.RelationTo(v)
	case []string:
		return entities.RelationToMany(v...)
	case []any:
		targets := make([]string, 0, len(v))
		for _, item := range v {
			if s := stringValue(item); s != "" {
				targets = append(targets, s)
			}
		}
		return entities.RelationToMany(targets...)
	default:
		return entities.Relation{}
	}
}
