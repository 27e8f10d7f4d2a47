package entities

import (
	"encoding/json"
	"reflect"
)

// Team is an entity's owning team. The wire format accepts a single string,
// a list of strings, or an opaque search-query object. Query-valued teams are
// resolved downstream by the catalog and are never diffed here: comparing
// against a query always reports equal.
type Team struct {
	// Literal holds the team names when the value is a string or list.
	Literal []string

	// Query holds the raw search-query object when the value is not a
	// literal. Non-nil means the team is opaque.
	Query map[string]any
}

// TeamOf builds a literal team value.
func TeamOf(names ...string) Team {
	return Team{Literal: names}
}

// TeamQuery builds an opaque search-query team value.
func TeamQuery(query map[string]any) Team {
	return Team{Query: query}
}

// IsQuery reports whether the team is an opaque search query.
func (t Team) IsQuery() bool {
	return t.Query != nil
}

// IsZero reports whether no team value is set.
func (t Team) IsZero() bool {
	return t.Literal == nil && t.Query == nil
}

// Equal compares two team values. A search query on either side compares
// equal: queries are resolved by the catalog, so their content is treated as
// already correct.
func (t Team) Equal(other Team) bool {
	if t.IsQuery() || other.IsQuery() {
		return true
	}
	if len(t.Literal) != len(other.Literal) {
		return false
	}
	for i := range t.Literal {
		if t.Literal[i] != other.Literal[i] {
			return false
		}
	}
	return true
}

// MarshalJSON writes a single string for one-element literals, a list for
// multi-element literals, and the raw object for queries.
func (t Team) MarshalJSON() ([]byte, error) {
	switch {
	case t.Query != nil:
		return json.Marshal(t.Query)
	case len(t.Literal) == 1:
		return json.Marshal(t.Literal[0])
	case t.Literal != nil:
		return json.Marshal(t.Literal)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string, a list of strings, an object, or null.
func (t *Team) UnmarshalJSON(data []byte) error {
	*t = Team{}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		t.Literal = []string{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		t.Literal = many
		return nil
	}

	var null any
	if err := json.Unmarshal(data, &null); err == nil && null == nil {
		return nil
	}

	var query map[string]any
	if err := json.Unmarshal(data, &query); err != nil {
		return err
	}
	t.Query = query
	return nil
}

// DeepEqual compares the raw query objects. Used by tests; Equal is the
// diffing comparison.
func (t Team) DeepEqual(other Team) bool {
	return reflect.DeepEqual(t.Literal, other.Literal) && reflect.DeepEqual(t.Query, other.Query)
}
