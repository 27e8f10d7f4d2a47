package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborsync/harborsync/pkg/catalog"
	"github.com/harborsync/harborsync/pkg/entities"
	"github.com/harborsync/harborsync/pkg/errors"
)

func entity(id string) entities.Entity {
	return entities.Entity{Identifier: id, Blueprint: "service"}
}

func TestBulkUpsertAndSearch(t *testing.T) {
	cat := New()
	ctx := context.Background()

	results, err := cat.BulkUpsert(ctx, "service", []entities.Entity{entity("a"), entity("b")}, catalog.UpsertOptions{Kind: "repository"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].OK)
	assert.True(t, results[1].OK)
	assert.Equal(t, 2, cat.Len())

	found, err := cat.SearchEntities(ctx, catalog.Query{Kind: "repository"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "a", found[0].Identifier, "results sorted deterministically")

	found, err = cat.SearchEntities(ctx, catalog.Query{Kind: "cluster"})
	require.NoError(t, err)
	assert.Empty(t, found, "kind provenance scopes the search")
}

func TestSearchByBlueprintWithoutProvenance(t *testing.T) {
	cat := New()
	cat.Seed("", entity("manual"))

	found, err := cat.SearchEntities(context.Background(), catalog.Query{
		Kind:       "repository",
		Blueprints: []string{"service"},
	})
	require.NoError(t, err)
	require.Len(t, found, 1, "provenance-free entities match by blueprint")
}

func TestBulkUpsertWrongBlueprint(t *testing.T) {
	cat := New()
	results, err := cat.BulkUpsert(context.Background(), "repository", []entities.Entity{entity("a")}, catalog.UpsertOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Equal(t, 0, cat.Len())
}

func TestBulkUpsertStrictRelations(t *testing.T) {
	cat := New()
	ctx := context.Background()

	dependent := entity("b")
	dependent.Relations = map[string]entities.Relation{"dep": entities.RelationTo("a")}

	t.Run("missing target fails with relation not found", func(t *testing.T) {
		results, err := cat.BulkUpsert(ctx, "service", []entities.Entity{dependent}, catalog.UpsertOptions{})
		require.NoError(t, err, "bulk calls are multi-status")
		require.Len(t, results, 1)
		assert.False(t, results[0].OK)
		assert.True(t, errors.IsRelationNotFound(results[0].Err))
	})

	t.Run("earlier batch member satisfies later relation", func(t *testing.T) {
		results, err := cat.BulkUpsert(ctx, "service", []entities.Entity{entity("a"), dependent}, catalog.UpsertOptions{})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.True(t, results[0].OK)
		assert.True(t, results[1].OK, "in-order apply sees the earlier upsert")
	})
}

func TestBulkUpsertCreateMissingRelated(t *testing.T) {
	cat := New()
	dependent := entity("b")
	dependent.Relations = map[string]entities.Relation{"dep": entities.RelationTo("a")}

	results, err := cat.BulkUpsert(context.Background(), "service", []entities.Entity{dependent}, catalog.UpsertOptions{
		CreateMissingRelated: true,
	})
	require.NoError(t, err)
	assert.True(t, results[0].OK)

	created, ok := cat.Get(entities.Key{Identifier: "a", Blueprint: "service"})
	require.True(t, ok, "missing target created as a bare entity")
	assert.Empty(t, created.Properties)
}

func TestBulkUpsertRelationTargetBlueprint(t *testing.T) {
	cat := New()
	cat.SetBlueprint(entities.Blueprint{
		Identifier: "service",
		Relations:  map[string]entities.BlueprintRelation{"repo": {Target: "repository"}},
	})
	cat.Seed("", entities.Entity{Identifier: "billing-repo", Blueprint: "repository"})

	e := entity("billing")
	e.Relations = map[string]entities.Relation{"repo": entities.RelationTo("billing-repo")}

	results, err := cat.BulkUpsert(context.Background(), "service", []entities.Entity{e}, catalog.UpsertOptions{})
	require.NoError(t, err)
	assert.True(t, results[0].OK, "target resolved in the blueprint named by the relation definition")
}

func TestBulkUpsertMerge(t *testing.T) {
	cat := New()
	ctx := context.Background()

	first := entity("a")
	first.Properties = map[string]any{"language": "go", "owner": "payments"}
	_, err := cat.BulkUpsert(ctx, "service", []entities.Entity{first}, catalog.UpsertOptions{})
	require.NoError(t, err)

	second := entity("a")
	second.Properties = map[string]any{"language": "rust"}

	t.Run("merge overlays", func(t *testing.T) {
		_, err := cat.BulkUpsert(ctx, "service", []entities.Entity{second}, catalog.UpsertOptions{Merge: true})
		require.NoError(t, err)

		stored, ok := cat.Get(second.Key())
		require.True(t, ok)
		assert.Equal(t, "rust", stored.Properties["language"], "incoming wins on conflict")
		assert.Equal(t, "payments", stored.Properties["owner"], "untouched properties survive")
	})

	t.Run("replace without merge", func(t *testing.T) {
		_, err := cat.BulkUpsert(ctx, "service", []entities.Entity{second}, catalog.UpsertOptions{})
		require.NoError(t, err)

		stored, ok := cat.Get(second.Key())
		require.True(t, ok)
		assert.NotContains(t, stored.Properties, "owner")
	})
}

func TestBulkDelete(t *testing.T) {
	cat := New()
	cat.Seed("repository", entity("a"))

	results, err := cat.BulkDelete(context.Background(), "service", []entities.Entity{entity("a"), entity("gone")}, catalog.UserAgentExporter)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.True(t, errors.IsNotFound(results[1].Err))
	assert.Equal(t, 0, cat.Len())
}

func TestEntityExists(t *testing.T) {
	cat := New()
	cat.Seed("repository", entity("a"))

	exists, err := cat.EntityExists(context.Background(), entity("a").Key())
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = cat.EntityExists(context.Background(), entity("b").Key())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetBlueprint(t *testing.T) {
	cat := New()
	cat.SetBlueprint(entities.Blueprint{Identifier: "service"})

	bp, err := cat.GetBlueprint(context.Background(), "service")
	require.NoError(t, err)
	assert.Equal(t, "service", bp.Identifier)

	_, err = cat.GetBlueprint(context.Background(), "unknown")
	assert.True(t, errors.IsNotFound(err))
}
