package transform

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborsync/harborsync/pkg/config"
	"github.com/harborsync/harborsync/pkg/entities"
)

// fieldEvaluator resolves expressions of the form ".field" against the
// record and treats anything wrapped in double quotes as a literal. The
// expression "!" always errors.
type fieldEvaluator struct{}

func (fieldEvaluator) EvaluateBoolean(expr string, record RawRecord) (bool, error) {
	v, err := fieldEvaluator{}.EvaluateValue(expr, record)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q is not boolean", expr)
	}
	return b, nil
}

func (fieldEvaluator) EvaluateValue(expr string, record RawRecord) (any, error) {
	if expr == "!" {
		return nil, fmt.Errorf("broken expression")
	}
	if strings.HasPrefix(expr, `"`) && strings.HasSuffix(expr, `"`) {
		return strings.Trim(expr, `"`), nil
	}
	if name, ok := strings.CutPrefix(expr, "."); ok {
		v, present := record[name]
		if !present {
			return nil, fmt.Errorf("field %q missing", name)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unsupported expression %q", expr)
}

func testResource() config.Resource {
	return config.Resource{
		Kind:     "repository",
		Selector: config.Selector{Query: ".active"},
		Entity: config.EntityMapping{
			Identifier: ".name",
			Blueprint:  `"service"`,
			Title:      ".title",
			Properties: map[string]string{"language": ".language"},
			Relations:  map[string]string{"team_repo": ".parent"},
		},
	}
}

func TestParse(t *testing.T) {
	batch := []RawRecord{
		{"name": "billing", "active": true, "title": "Billing", "language": "go", "parent": "platform"},
		{"name": "auth", "active": true, "title": "Auth", "language": "go", "parent": "platform"},
		{"name": "archived", "active": false},
		{"name": "ledger", "active": "yes"}, // selector not boolean: failed
		{"active": true},                    // identifier missing: failed
	}

	result := New(fieldEvaluator{}).Parse(testResource(), batch)

	require.Len(t, result.Passed, 2)
	assert.Equal(t, 1, result.FilteredOut)
	assert.Len(t, result.Failed, 2)

	billing := result.Passed[0]
	assert.Equal(t, "billing", billing.Identifier)
	assert.Equal(t, "service", billing.Blueprint)
	assert.Equal(t, "Billing", billing.Title)
	assert.Equal(t, "go", billing.Properties["language"])
	assert.Equal(t, "platform", billing.Relations["team_repo"].Target())
}

func TestParseOptionalFieldFailureStillPasses(t *testing.T) {
	resource := testResource()
	resource.Entity.Title = "!"

	batch := []RawRecord{
		{"name": "billing", "active": true, "language": "go", "parent": "platform"},
	}
	result := New(fieldEvaluator{}).Parse(resource, batch)

	require.Len(t, result.Passed, 1, "optional field errors do not fail the record")
	assert.Empty(t, result.Failed)
	assert.NotEmpty(t, result.Errors, "the failure is still reported")
	assert.Empty(t, result.Passed[0].Title)
}

func TestParseRequiredFieldFailure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Resource)
	}{
		{name: "identifier", mutate: func(r *config.Resource) { r.Entity.Identifier = "!" }},
		{name: "blueprint", mutate: func(r *config.Resource) { r.Entity.Blueprint = "!" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resource := testResource()
			tt.mutate(&resource)

			batch := []RawRecord{{"name": "billing", "active": true, "language": "go", "parent": "platform"}}
			result := New(fieldEvaluator{}).Parse(resource, batch)

			assert.Empty(t, result.Passed)
			require.Len(t, result.Failed, 1)
		})
	}
}

func TestParseSelectorErrorFailsRecord(t *testing.T) {
	resource := testResource()
	resource.Selector.Query = "!"

	result := New(fieldEvaluator{}).Parse(resource, []RawRecord{{"name": "billing"}})
	assert.Empty(t, result.Passed)
	assert.Equal(t, 0, result.FilteredOut, "selector errors are failures, not filtering")
	require.Len(t, result.Failed, 1)
}

func TestParseEmptySelectorPassesEverything(t *testing.T) {
	resource := testResource()
	resource.Selector.Query = ""

	batch := []RawRecord{
		{"name": "billing", "title": "Billing", "language": "go", "parent": "platform"},
	}
	result := New(fieldEvaluator{}).Parse(resource, batch)
	assert.Len(t, result.Passed, 1)
	assert.Equal(t, 0, result.FilteredOut)
}

func TestParseIdempotent(t *testing.T) {
	batch := []RawRecord{
		{"name": "billing", "active": true, "title": "Billing", "language": "go", "parent": "platform"},
	}

	first := New(fieldEvaluator{}).Parse(testResource(), batch)
	second := New(fieldEvaluator{}).Parse(testResource(), batch)

	require.Len(t, first.Passed, 1)
	require.Len(t, second.Passed, 1)
	assert.True(t, first.Passed[0].Equal(second.Passed[0]))
}

func TestParseTeamValues(t *testing.T) {
	resource := testResource()
	resource.Entity.Team = ".team"

	tests := []struct {
		name string
		team any
		want entities.Team
	}{
		{name: "string", team: "payments", want: entities.TeamOf("payments")},
		{name: "string list", team: []any{"payments", "infra"}, want: entities.TeamOf("payments", "infra")},
		{name: "query object", team: map[string]any{"combinator": "and"}, want: entities.TeamQuery(map[string]any{"combinator": "and"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := []RawRecord{
				{"name": "billing", "active": true, "title": "t", "language": "go", "parent": "p", "team": tt.team},
			}
			result := New(fieldEvaluator{}).Parse(resource, batch)
			require.Len(t, result.Passed, 1)
			assert.True(t, tt.want.DeepEqual(result.Passed[0].Team),
				"got %+v, want %+v", result.Passed[0].Team, tt.want)
		})
	}
}
