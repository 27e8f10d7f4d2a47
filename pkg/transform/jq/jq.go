// Package jq provides the default mapping evaluator, backed by gojq.
// Selector and mapping expressions are ordinary jq programs evaluated
// against one raw record at a time.
package jq

import (
	"sync"

	"github.com/itchyny/gojq"

	"github.com/harborsync/harborsync/pkg/errors"
	"github.com/harborsync/harborsync/pkg/transform"
)

// Evaluator compiles and runs jq expressions. Compiled programs are cached
// since the same handful of expressions runs against every record in a
// batch.
type Evaluator struct {
	mu    sync.Mutex
	cache map[string]*gojq.Code
}

// New creates an Evaluator with an empty program cache.
func New() *Evaluator {
	return &Evaluator{cache: make(map[string]*gojq.Code)}
}

var _ transform.Evaluator = (*Evaluator)(nil)

// EvaluateBoolean runs a selector expression and interprets its first
// output as a boolean. A non-boolean output is an error rather than a
// truthiness coercion, so a typoed selector fails loudly instead of
// silently selecting everything.
func (e *Evaluator) EvaluateBoolean(expr string, record transform.RawRecord) (bool, error) {
	out, err := e.evaluate(expr, record)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, errors.Wrapf(errors.ErrInvalidInput, "selector %q returned %T, want boolean", expr, out)
	}
	return b, nil
}

// EvaluateValue runs a mapping expression and returns its first output.
// jq's null becomes a nil any.
func (e *Evaluator) EvaluateValue(expr string, record transform.RawRecord) (any, error) {
	return e.evaluate(expr, record)
}

// Check parses and compiles an expression without running it. Used by
// configuration validation.
func (e *Evaluator) Check(expr string) error {
	_, err := e.compiled(expr)
	return err
}

func (e *Evaluator) evaluate(expr string, record transform.RawRecord) (any, error) {
	code, err := e.compiled(expr)
	if err != nil {
		return nil, err
	}

	iter := code.Run(map[string]any(record))
	out, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, isErr := out.(error); isErr {
		return nil, errors.Wrapf(err, "evaluating %q", expr)
	}
	return out, nil
}

func (e *Evaluator) compiled(expr string) (*gojq.Code, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if code, ok := e.cache[expr]; ok {
		return code, nil
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing expression %q", expr)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling expression %q", expr)
	}
	e.cache[expr] = code
	return code, nil
}
