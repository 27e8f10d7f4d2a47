package harborsync

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/harborsync/harborsync/internal/event"
	"github.com/harborsync/harborsync/pkg/applier"
	"github.com/harborsync/harborsync/pkg/catalog"
	"github.com/harborsync/harborsync/pkg/config"
	"github.com/harborsync/harborsync/pkg/entities"
	"github.com/harborsync/harborsync/pkg/errors"
	"github.com/harborsync/harborsync/pkg/fetch"
	"github.com/harborsync/harborsync/pkg/logging"
	"github.com/harborsync/harborsync/pkg/metrics"
	"github.com/harborsync/harborsync/pkg/topo"
)

// SyncRawAll runs one full reconciliation pass across every configured kind.
//
// Fetch and catalog transport errors abort the pass and cancel in-flight
// kinds; structural failures (relation validation, dependency cycles) fail
// only their kind and are collected in Result.KindErrors. Per-entity load
// failures never fail a kind, they are counted in the pass snapshot.
func (e *engine) SyncRawAll(ctx context.Context, trigger TriggerType, userAgent catalog.UserAgentType) (*Result, error) {
	if userAgent == "" {
		userAgent = catalog.UserAgentExporter
	}

	evt := event.NewContext(event.TriggerResync, userAgent, e.provider, e.collectors)
	ctx = logging.WithLogger(ctx, e.cfg.logger)
	ctx = logging.WithPassID(ctx, evt.ID)
	log := logging.Ctx(ctx)
	log.Info().
		Str("trigger", string(trigger)).
		Str("user_agent", string(userAgent)).
		Msg("Starting reconciliation pass")

	if err := e.hooks.triggerStart(ctx); err != nil {
		evt.Metrics.Finish(false)
		e.fold(evt.Metrics.Snapshot())
		return nil, errors.Wrap(err, "resync start hook")
	}

	cfg, err := evt.Config.SyncConfig(ctx)
	if err != nil {
		evt.Metrics.Finish(false)
		e.fold(evt.Metrics.Snapshot())
		return nil, errors.Wrap(err, "fetching sync config")
	}

	result := &Result{
		Trigger:    trigger,
		KindErrors: make(map[string]error),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.concurrency)
	for _, kind := range cfg.Kinds() {
		kind := kind
		g.Go(func() error {
			err := e.syncKind(gctx, evt, cfg, kind)
			if err == nil {
				return nil
			}
			if isStructural(err) {
				mu.Lock()
				result.KindErrors[kind] = err
				mu.Unlock()
				logging.Ctx(gctx).Error().Err(err).Str("kind", kind).Msg("Kind failed reconciliation")
				return nil
			}
			return errors.WrapSync(kind, err)
		})
	}
	if err := g.Wait(); err != nil {
		evt.Metrics.Finish(false)
		e.fold(evt.Metrics.Snapshot())
		return nil, err
	}

	e.drainRetryQueue(ctx, evt, cfg)

	evt.Metrics.Finish(len(result.KindErrors) == 0)
	result.Snapshot = evt.Metrics.Snapshot()
	e.fold(result.Snapshot)

	total := result.Snapshot.Kinds[metrics.ReconciliationKind]
	log.Info().
		Int64("loaded", total.Loaded).
		Int64("deleted", total.Deleted).
		Int64("failed", total.Failed).
		Int("failed_kinds", len(result.KindErrors)).
		Dur("duration", result.Snapshot.Duration).
		Msg("Reconciliation pass complete")

	e.hooks.triggerComplete(ctx, result)
	return result, nil
}

// syncKind reconciles one kind: extract, transform, diff, order, apply.
func (e *engine) syncKind(ctx context.Context, evt *event.Context, cfg *config.SyncConfig, kind string) error {
	ctx = logging.WithKind(ctx, kind)
	log := logging.Ctx(ctx)

	resources := cfg.ResourcesFor(kind)
	fetchers := e.fetchers.For(kind)
	if len(fetchers) == 0 {
		log.Warn().Msg("No fetcher registered for kind, skipping")
		return nil
	}

	after, err := e.extract(ctx, evt, kind, resources, fetchers)
	if err != nil {
		return err
	}
	after = entities.Unique(after)

	before, err := e.client.SearchEntities(ctx, catalog.Query{
		Kind:       kind,
		Blueprints: literalBlueprints(resources),
	})
	if err != nil {
		return errors.Wrap(err, "searching known entities")
	}

	changeset := e.differ.Entities(before, after)
	if changeset.IsEmpty() {
		log.Debug().Int("known", changeset.Summary.KnownBefore).Msg("Catalog already in sync")
		return nil
	}
	log.Info().Str("changes", changeset.String()).Msg("Computed changeset")

	upserts := changeset.Upserts()
	if !cfg.Settings.CreateMissingRelatedEntities {
		if err := e.applier.ValidateRelations(ctx, upserts); err != nil {
			return err
		}
		upserts, err = topo.Order(upserts)
		if err != nil {
			return err
		}
	}

	report, err := e.applier.Upsert(ctx, upserts, applier.Options{
		Kind:                  kind,
		UserAgent:             evt.UserAgent,
		MaxBatchCount:         e.cfg.batchCount,
		MaxBatchBytes:         e.cfg.batchBytes,
		CreateMissingRelated:  cfg.Settings.CreateMissingRelatedEntities,
		Merge:                 cfg.Settings.EnableMergeEntity,
		DeferRelationFailures: true,
	})
	if err != nil {
		return errors.Wrap(err, "applying upserts")
	}
	evt.Metrics.AddLoaded(kind, len(report.Loaded))
	evt.Metrics.AddFailed(kind, len(report.Failed))
	evt.Retry.Register(kind, report.Deferred...)

	threshold, guarded := cfg.Settings.Threshold()
	var thresholdPtr *float64
	if guarded {
		thresholdPtr = &threshold
	}
	deleted, err := e.applier.Delete(ctx, changeset.Deleted, applier.DeleteOptions{
		Kind:            kind,
		UserAgent:       evt.UserAgent,
		MaxBatchCount:   e.cfg.batchCount,
		MaxBatchBytes:   e.cfg.batchBytes,
		KnownBefore:     changeset.Summary.KnownBefore,
		Threshold:       thresholdPtr,
		DeleteDependent: cfg.Settings.DeleteDependentEntities,
		Upserted:        upserts,
	})
	if err != nil {
		return err
	}
	evt.Metrics.AddDeleted(kind, len(deleted.Deleted))
	evt.Metrics.AddDeletionSkipped(kind, len(deleted.Skipped))
	evt.Metrics.AddFailed(kind, len(deleted.Failed))

	log.Info().
		Int("loaded", len(report.Loaded)).
		Int("deferred", len(report.Deferred)).
		Int("deleted", len(deleted.Deleted)).
		Msg("Kind reconciled")
	return nil
}

// extract drains every fetcher registered for the kind and transforms each
// batch against the kind's resource mappings. A batch error aborts
// extraction before any state is applied.
func (e *engine) extract(ctx context.Context, evt *event.Context, kind string, resources []config.Resource, fetchers []fetch.Fetcher) ([]entities.Entity, error) {
	log := logging.Ctx(ctx)

	var after []entities.Entity
	for _, fetcher := range fetchers {
		for batch := range fetcher.Fetch(ctx, kind) {
			if batch.Err != nil {
				return nil, errors.Wrap(batch.Err, "fetching records")
			}
			evt.Metrics.AddRawExtracted(kind, len(batch.Records))

			for _, resource := range resources {
				res := e.transformer.Parse(resource, batch.Records)
				evt.Metrics.AddTransformed(kind, len(res.Passed))
				evt.Metrics.AddFilteredOut(kind, res.FilteredOut)
				evt.Metrics.AddFailedTransform(kind, len(res.Failed))

				for _, failed := range res.Failed {
					log.Warn().Err(failed.Err).Msg("Record failed transformation")
				}
				for _, softErr := range res.Errors {
					log.Debug().Err(softErr).Msg("Optional field skipped during transformation")
				}
				after = append(after, res.Passed...)
			}
		}
	}
	return after, nil
}

// drainRetryQueue makes the single end-of-pass attempt at entities whose
// upsert failed on a missing relation target. Failures here are terminal.
func (e *engine) drainRetryQueue(ctx context.Context, evt *event.Context, cfg *config.SyncConfig) {
	items := evt.Retry.Drain()
	if len(items) == 0 {
		return
	}
	log := logging.Ctx(ctx)
	log.Info().Int("entities", len(items)).Msg("Draining relation retry queue")

	byKind := make(map[string][]entities.Entity)
	var kinds []string
	for _, item := range items {
		if _, seen := byKind[item.Kind]; !seen {
			kinds = append(kinds, item.Kind)
		}
		byKind[item.Kind] = append(byKind[item.Kind], item.Entity)
	}

	for _, kind := range kinds {
		queued := byKind[kind]
		ordered, err := topo.Order(queued)
		if err != nil {
			evt.Metrics.AddFailed(kind, len(queued))
			log.Error().Err(err).Str("kind", kind).Msg("Retry queue ordering failed")
			continue
		}
		report, err := e.applier.Upsert(ctx, ordered, applier.Options{
			Kind:                 kind,
			UserAgent:            evt.UserAgent,
			MaxBatchCount:        e.cfg.batchCount,
			MaxBatchBytes:        e.cfg.batchBytes,
			CreateMissingRelated: cfg.Settings.CreateMissingRelatedEntities,
			Merge:                cfg.Settings.EnableMergeEntity,
		})
		if err != nil {
			evt.Metrics.AddFailed(kind, len(ordered))
			log.Error().Err(err).Str("kind", kind).Msg("Retry queue apply failed")
			continue
		}
		evt.Metrics.AddLoaded(kind, len(report.Loaded))
		evt.Metrics.AddFailed(kind, len(report.Failed))
	}
}

// isStructural reports whether the error fails only its own kind rather
// than the whole pass.
func isStructural(err error) bool {
	var validation *errors.RelationValidationError
	return errors.As(err, &validation) || errors.IsCyclicDependency(err)
}

// literalBlueprints collects the blueprint identifiers that appear as
// quoted literals in the kind's mappings. Expression-computed blueprints
// cannot be resolved ahead of evaluation and are matched by kind
// provenance instead.
func literalBlueprints(resources []config.Resource) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, resource := range resources {
		bp := unquote(resource.Entity.Blueprint)
		if bp == "" {
			continue
		}
		if _, ok := seen[bp]; ok {
			continue
		}
		seen[bp] = struct{}{}
		out = append(out, bp)
	}
	return out
}

func unquote(expr string) string {
	expr = strings.TrimSpace(expr)
	if len(expr) < 2 {
		return ""
	}
	if (expr[0] == '"' && expr[len(expr)-1] == '"') || (expr[0] == '\'' && expr[len(expr)-1] == '\'') {
		inner := expr[1 : len(expr)-1]
		if !strings.ContainsAny(inner, "\"'{}") {
			return inner
		}
	}
	return ""
}
