package harborsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborsync/harborsync/pkg/catalog/memory"
	"github.com/harborsync/harborsync/pkg/errors"
	"github.com/harborsync/harborsync/pkg/fetch"
)

func TestHooksRunAroundPass(t *testing.T) {
	cat := memory.New()
	engine := newTestEngine(t, cat, parseConfig(t, repoConfigYAML),
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{repoRecord("billing", "go")})),
	)

	var order []string
	engine.OnResyncStart(func(_ context.Context) error {
		order = append(order, "start")
		return nil
	})
	engine.OnResyncComplete(func(_ context.Context, result *Result) {
		order = append(order, "complete")
		assert.Equal(t, TriggerManual, result.Trigger)
		assert.Equal(t, int64(1), result.Snapshot.Kinds["repository"].Loaded)
	})

	_, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "complete"}, order)
}

func TestStartHookErrorAbortsPass(t *testing.T) {
	cat := memory.New()
	engine := newTestEngine(t, cat, parseConfig(t, repoConfigYAML),
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{repoRecord("billing", "go")})),
	)

	hookErr := errors.New("maintenance window")
	var secondRan, completed bool
	engine.OnResyncStart(func(_ context.Context) error { return hookErr })
	engine.OnResyncStart(func(_ context.Context) error { secondRan = true; return nil })
	engine.OnResyncComplete(func(_ context.Context, _ *Result) { completed = true })

	_, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, hookErr)

	assert.False(t, secondRan, "start hooks stop at the first error")
	assert.False(t, completed, "an aborted pass never runs complete hooks")
	assert.Equal(t, 0, cat.Len(), "nothing fetched or applied")
}

func TestCompleteHookRunsOnKindFailure(t *testing.T) {
	cat := memory.New()
	engine := newTestEngine(t, cat, parseConfig(t, repoConfigYAML),
		WithFetcher("repository", fetch.Static([]fetch.RawRecord{
			repoRecord("a", "go", "b"),
			repoRecord("b", "go", "a"),
		})),
	)

	var sawFailure bool
	engine.OnResyncComplete(func(_ context.Context, result *Result) {
		sawFailure = result.Failed()
	})

	_, err := engine.SyncRawAll(context.Background(), TriggerManual, "")
	require.NoError(t, err)
	assert.True(t, sawFailure, "complete hooks observe structural kind failures")
}
