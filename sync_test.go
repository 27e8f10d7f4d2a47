package harborsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborsync/harborsync/pkg/catalog"
	"github.com/harborsync/harborsync/pkg/catalog/memory"
	"github.com/harborsync/harborsync/pkg/config"
	"github.com/harborsync/harborsync/pkg/entities"
	"github.com/harborsync/harborsync/pkg/errors"
	"github.com/harborsync/harborsync/pkg/fetch"
	"github.com/harborsync/harborsync/pkg/transform/jq"
)

const repoConfigYAML = `
resources:
  - kind: repository
    selector:
      query: '.archived | not'
    entity:
      identifier: .name
      blueprint: '"service"'
      title: .name
      properties:
        language: .language
      relations:
        depends: .depends_on
`

func parseConfig(t *testing.T, yaml string) *config.SyncConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func newTestEngine(t *testing.T, cat catalog.Client, cfg *config.SyncConfig, extra ...Option) Harborsync {
	t.Helper()
	opts := append([]Option{
		WithCatalogClient(cat),
		WithConfigProvider(config.Static{Config: cfg}),
		WithEvaluator(jq.New()),
	}, extra...)

	engine, err := New(opts...)
	require.NoError(t, err)
	return engine
}

func repoRecord(name, language string, deps ...string) fetch.RawRecord {
	record := fetch.RawRecord{"name": name, "language": language, "archived": false}
	if len(deps) > 0 {
		targets := make([]any, len(deps))
		for i, d := range deps {
			targets[i] = d
		}
		record["depends_on"] = targets
	}
	return record
}

func TestSyncRawAllCreatesEntities(t *testing.T) {
	cat := memory.New()
	engine := newTestEngine(t, cat, parseConfig(t, repoConfigYAML),
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{
			repoRecord("billing", "go"),
			repoRecord("auth", "go"),
			{"name": "legacy", "archived": true},
		})),
	)

	result, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)
	assert.False(t, result.Failed())

	assert.Equal(t, 2, cat.Len())
	stored, ok := cat.Get(entities.Key{Identifier: "billing", Blueprint: "service"})
	require.True(t, ok)
	assert.Equal(t, "go", stored.Properties["language"])

	repo := result.Snapshot.Kinds["repository"]
	assert.Equal(t, int64(3), repo.RawExtracted)
	assert.Equal(t, int64(2), repo.Transformed)
	assert.Equal(t, int64(1), repo.FilteredOut)
	assert.Equal(t, int64(2), repo.Loaded)
}

func TestSyncRawAllSecondPassIsNoop(t *testing.T) {
	cat := memory.New()
	records := []fetch.RawRecord{repoRecord("billing", "go")}
	engine := newTestEngine(t, cat, parseConfig(t, repoConfigYAML),
		WithFetcher("repository", fetch.Static(records)),
	)

	_, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)

	result, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)

	repo := result.Snapshot.Kinds["repository"]
	assert.Equal(t, int64(0), repo.Loaded, "an unchanged catalog produces no writes")
	assert.Equal(t, int64(0), repo.Deleted)
	assert.Equal(t, 1, cat.Len())
}

func TestSyncRawAllModifiesChangedEntities(t *testing.T) {
	cat := memory.New()
	cfg := parseConfig(t, repoConfigYAML)

	first := newTestEngine(t, cat, cfg,
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{repoRecord("billing", "go")})),
	)
	_, err := first.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)

	second := newTestEngine(t, cat, cfg,
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{repoRecord("billing", "rust")})),
	)
	result, err := second.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Snapshot.Kinds["repository"].Loaded)
	stored, _ := cat.Get(entities.Key{Identifier: "billing", Blueprint: "service"})
	assert.Equal(t, "rust", stored.Properties["language"])
}

func TestSyncRawAllDeletesVanishedEntities(t *testing.T) {
	cat := memory.New()
	cfg := parseConfig(t, repoConfigYAML)

	first := newTestEngine(t, cat, cfg,
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{
			repoRecord("billing", "go"),
			repoRecord("auth", "go"),
		})),
	)
	_, err := first.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())

	second := newTestEngine(t, cat, cfg,
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{repoRecord("billing", "go")})),
	)
	result, err := second.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Snapshot.Kinds["repository"].Deleted)
	assert.Equal(t, 1, cat.Len())
	_, ok := cat.Get(entities.Key{Identifier: "auth", Blueprint: "service"})
	assert.False(t, ok)
}

func TestSyncRawAllDeletionGuard(t *testing.T) {
	cat := memory.New()
	cfg := parseConfig(t, repoConfigYAML+`
settings:
  delete_threshold: 0
`)

	first := newTestEngine(t, cat, parseConfig(t, repoConfigYAML),
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{repoRecord("billing", "go")})),
	)
	_, err := first.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)

	// Empty upstream would normally delete everything; the guard keeps it.
	second := newTestEngine(t, cat, cfg,
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{})),
	)
	result, err := second.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err, "a tripped guard is not a pass failure")
	assert.False(t, result.Failed())

	assert.Equal(t, int64(0), result.Snapshot.Kinds["repository"].Deleted)
	assert.Equal(t, int64(1), result.Snapshot.Kinds["repository"].DeletionSkipped)
	assert.Equal(t, 1, cat.Len(), "stale data preferred over mass deletion")
}

func TestSyncRawAllOrdersByRelations(t *testing.T) {
	cat := memory.New()
	engine := newTestEngine(t, cat, parseConfig(t, repoConfigYAML),
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{
			// Dependents listed first: strict ordering must fix this.
			repoRecord("api", "go", "core"),
			repoRecord("worker", "go", "core"),
			repoRecord("core", "go"),
		})),
	)

	result, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.Equal(t, int64(3), result.Snapshot.Kinds["repository"].Loaded)
	assert.Equal(t, 3, cat.Len())
}

func TestSyncRawAllCycleFailsKindOnly(t *testing.T) {
	cat := memory.New()
	cfg := parseConfig(t, repoConfigYAML+`
  - kind: cluster
    selector:
      query: 'true'
    entity:
      identifier: .id
      blueprint: '"cluster"'
`)

	engine := newTestEngine(t, cat, cfg,
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{
			repoRecord("a", "go", "b"),
			repoRecord("b", "go", "a"),
		})),
		WithFetcher("cluster", fetch.Static([]fetch.RawRecord{{"id": "prod"}})),
	)

	result, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err, "structural kind failures do not fail the pass call")

	assert.True(t, result.Failed())
	require.Contains(t, result.KindErrors, "repository")
	assert.True(t, errors.IsCyclicDependency(result.KindErrors["repository"]))

	_, ok := cat.Get(entities.Key{Identifier: "prod", Blueprint: "cluster"})
	assert.True(t, ok, "other kinds still reconcile")
}

func TestSyncRawAllCycleBypassedByCreateMissing(t *testing.T) {
	cat := memory.New()
	cfg := parseConfig(t, repoConfigYAML+`
settings:
  create_missing_related_entities: true
`)

	engine := newTestEngine(t, cat, cfg,
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{
			repoRecord("a", "go", "b"),
			repoRecord("b", "go", "a"),
		})),
	)

	result, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)
	assert.False(t, result.Failed(), "create_missing_related_entities bypasses strict ordering")
	assert.Equal(t, 2, cat.Len())
}

func TestSyncRawAllMissingRelationFailsKind(t *testing.T) {
	cat := memory.New()
	engine := newTestEngine(t, cat, parseConfig(t, repoConfigYAML),
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{
			repoRecord("api", "go", "nonexistent"),
		})),
	)

	result, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)

	assert.True(t, result.Failed())
	var validation *errors.RelationValidationError
	require.ErrorAs(t, result.KindErrors["repository"], &validation)
	assert.Equal(t, 0, cat.Len(), "nothing applied before the validation gate")
}

func TestSyncRawAllFetchErrorAbortsPass(t *testing.T) {
	cat := memory.New()
	fetchErr := errors.New("upstream unavailable")
	failing := fetch.FetcherFunc(func(_ context.Context, _ string) <-chan fetch.Batch {
		ch := make(chan fetch.Batch, 1)
		ch <- fetch.Batch{Err: fetchErr}
		close(ch)
		return ch
	})

	var completed bool
	engine := newTestEngine(t, cat, parseConfig(t, repoConfigYAML),
		WithFetcher("repository", failing),
	)
	engine.OnResyncComplete(func(_ context.Context, _ *Result) { completed = true })

	_, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, fetchErr)
	assert.False(t, completed, "complete hooks are suppressed on pass failure")
	assert.Equal(t, 0, cat.Len())
}

func TestSyncRawAllUnknownKindSkipped(t *testing.T) {
	// Config names a kind with no registered fetcher: the kind is skipped,
	// not failed.
	cat := memory.New()
	engine := newTestEngine(t, cat, parseConfig(t, repoConfigYAML))

	result, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)
	assert.False(t, result.Failed())
}

// flakyClient wraps the memory catalog and fails the first upsert of chosen
// identifiers with a relation-not-found outcome, simulating the remote
// catalog rejecting an entity whose target has not landed yet.
type flakyClient struct {
	*memory.Catalog
	pending map[string]bool
}

func (f *flakyClient) BulkUpsert(ctx context.Context, blueprint string, list []entities.Entity, opts catalog.UpsertOptions) ([]catalog.Result, error) {
	results := make([]catalog.Result, 0, len(list))
	var rest []entities.Entity
	for _, e := range list {
		if f.pending[e.Identifier] {
			delete(f.pending, e.Identifier)
			results = append(results, catalog.Result{
				Entity: e,
				Err:    errors.Wrap(errors.ErrRelationNotFound, "related entity not found"),
			})
			continue
		}
		rest = append(rest, e)
	}
	applied, err := f.Catalog.BulkUpsert(ctx, blueprint, rest, opts)
	if err != nil {
		return nil, err
	}
	return append(results, applied...), nil
}

func TestSyncRawAllRetriesDeferredRelations(t *testing.T) {
	client := &flakyClient{
		Catalog: memory.New(),
		pending: map[string]bool{"api": true},
	}

	engine := newTestEngine(t, client, parseConfig(t, repoConfigYAML),
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{
			repoRecord("core", "go"),
			repoRecord("api", "go", "core"),
		})),
	)

	result, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)
	assert.False(t, result.Failed())

	assert.Equal(t, 2, client.Len(), "deferred entity lands via the pass-end retry")
	assert.Equal(t, int64(2), result.Snapshot.Kinds["repository"].Loaded)
	assert.Equal(t, int64(0), result.Snapshot.Kinds["repository"].Failed)
}

func TestMetricsAccumulateAcrossPasses(t *testing.T) {
	cat := memory.New()
	engine := newTestEngine(t, cat, parseConfig(t, repoConfigYAML),
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{repoRecord("billing", "go")})),
	)

	_, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)
	_, err = engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)

	snap := engine.Metrics()
	assert.Equal(t, int64(2), snap.Kinds["repository"].RawExtracted, "totals accumulate across passes")
	assert.Equal(t, int64(1), snap.Kinds["repository"].Loaded, "second pass loaded nothing")
	assert.True(t, snap.Success)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New()
	require.Error(t, err)

	_, err = New(WithCatalogClient(memory.New()))
	require.Error(t, err)

	_, err = New(WithCatalogClient(memory.New()), WithConfigProvider(config.Static{Config: &config.SyncConfig{}}))
	require.Error(t, err)

	_, err = New(
		WithCatalogClient(memory.New()),
		WithConfigProvider(config.Static{Config: &config.SyncConfig{}}),
		WithEvaluator(jq.New()),
	)
	require.NoError(t, err)
}
