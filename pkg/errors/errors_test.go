package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{name: "not found", err: NewNotFoundError("entity", "service/billing"), check: IsNotFound},
		{name: "relation not found", err: Wrap(ErrRelationNotFound, "apply"), check: IsRelationNotFound},
		{name: "cyclic dependency", err: NewCyclicDependencyError([]string{"a", "b"}), check: IsCyclicDependency},
		{name: "deletion threshold", err: &ThresholdExceededError{Kind: "repository"}, check: IsDeletionThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, tt.check(fmt.Errorf("wrapped: %w", tt.err)), "helpers see through wrapping")
			assert.False(t, tt.check(New("unrelated")))
		})
	}
}

func TestCyclicDependencyError(t *testing.T) {
	err := NewCyclicDependencyError([]string{"service/a", "service/b"})
	assert.Contains(t, err.Error(), "service/a")
	assert.Contains(t, err.Error(), "create_missing_related_entities",
		"error text points at the settings that bypass ordering")
}

func TestThresholdExceededError(t *testing.T) {
	err := &ThresholdExceededError{Kind: "repository", Candidates: 8, Known: 10, Threshold: 0.5}
	msg := err.Error()
	assert.Contains(t, msg, "repository")
	assert.Contains(t, msg, "8")
}

func TestTransformErrorUnwrap(t *testing.T) {
	inner := New("field missing")
	err := &TransformError{Kind: "repository", Field: "identifier", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "identifier")
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{status: 404, target: ErrNotFound},
		{status: 429, target: ErrRateLimited},
		{status: 500, target: ErrCatalogUnavailable},
		{status: 503, target: ErrCatalogUnavailable},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := &APIError{StatusCode: tt.status, Message: "upstream"}
			assert.ErrorIs(t, err, tt.target)
		})
	}

	err := &APIError{StatusCode: 400, Message: "bad request"}
	assert.NotErrorIs(t, err, ErrCatalogUnavailable)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
	assert.NoError(t, Wrapf(nil, "context %d", 1))
}

func TestWrapSync(t *testing.T) {
	inner := New("fetch failed")
	err := WrapSync("repository", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "repository")
}

func TestRelationValidationError(t *testing.T) {
	err := &RelationValidationError{
		Missing: map[string][]string{"repository": {"gone-repo"}},
	}
	assert.Contains(t, err.Error(), "gone-repo")
	assert.True(t, IsNotFound(err))
}
