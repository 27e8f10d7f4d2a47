package harborsync

import (
	"context"

	"github.com/harborsync/harborsync/internal/event"
	"github.com/harborsync/harborsync/pkg/applier"
	"github.com/harborsync/harborsync/pkg/catalog"
	"github.com/harborsync/harborsync/pkg/config"
	"github.com/harborsync/harborsync/pkg/entities"
	"github.com/harborsync/harborsync/pkg/errors"
	"github.com/harborsync/harborsync/pkg/fetch"
	"github.com/harborsync/harborsync/pkg/logging"
	"github.com/harborsync/harborsync/pkg/topo"
)

// RegisterRaw transforms and upserts one live batch of raw records. Unlike
// a full pass, nothing is diffed against known state and nothing is
// deleted: filtered-out or failing records in the batch simply produce no
// entities.
func (e *engine) RegisterRaw(ctx context.Context, kind string, records []fetch.RawRecord, userAgent catalog.UserAgentType) (*LiveResult, error) {
	evt, cfg, upserts, err := e.liveTransform(ctx, kind, records, userAgent)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithPassID(logging.WithKind(logging.WithLogger(ctx, e.cfg.logger), kind), evt.ID)
	log := logging.Ctx(ctx)
	log.Info().Int("records", len(records)).Int("entities", len(upserts)).Msg("Applying live batch")

	if len(upserts) == 0 {
		evt.Metrics.Finish(true)
		e.fold(evt.Metrics.Snapshot())
		return &LiveResult{}, nil
	}

	if !cfg.Settings.CreateMissingRelatedEntities {
		if err := e.applier.ValidateRelations(ctx, upserts); err != nil {
			evt.Metrics.Finish(false)
			e.fold(evt.Metrics.Snapshot())
			return nil, err
		}
		upserts, err = topo.Order(upserts)
		if err != nil {
			evt.Metrics.Finish(false)
			e.fold(evt.Metrics.Snapshot())
			return nil, err
		}
	}

	report, err := e.applier.Upsert(ctx, upserts, applier.Options{
		Kind:                 kind,
		UserAgent:            evt.UserAgent,
		MaxBatchCount:        e.cfg.batchCount,
		MaxBatchBytes:        e.cfg.batchBytes,
		CreateMissingRelated: cfg.Settings.CreateMissingRelatedEntities,
		Merge:                cfg.Settings.EnableMergeEntity,
	})
	if err != nil {
		evt.Metrics.Finish(false)
		e.fold(evt.Metrics.Snapshot())
		return nil, errors.Wrap(err, "applying live batch")
	}
	evt.Metrics.AddLoaded(kind, len(report.Loaded))
	evt.Metrics.AddFailed(kind, len(report.Failed))
	evt.Metrics.Finish(len(report.Failed) == 0)
	e.fold(evt.Metrics.Snapshot())

	return &LiveResult{
		Applied: report.Loaded,
		Failed:  report.Failed,
	}, nil
}

// UnregisterRaw deletes the entities one live batch maps to. Only entities
// currently known to the catalog are deletion candidates; the deletion
// threshold guard is evaluated against that candidate count.
func (e *engine) UnregisterRaw(ctx context.Context, kind string, records []fetch.RawRecord, userAgent catalog.UserAgentType) (*LiveResult, error) {
	evt, cfg, mapped, err := e.liveTransform(ctx, kind, records, userAgent)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithPassID(logging.WithKind(logging.WithLogger(ctx, e.cfg.logger), kind), evt.ID)
	log := logging.Ctx(ctx)

	var candidates []entities.Entity
	for _, entity := range mapped {
		exists, err := e.client.EntityExists(ctx, entity.Key())
		if err != nil {
			evt.Metrics.Finish(false)
			e.fold(evt.Metrics.Snapshot())
			return nil, errors.Wrap(err, "checking entity existence")
		}
		if exists {
			candidates = append(candidates, entity)
		}
	}
	log.Info().Int("records", len(records)).Int("candidates", len(candidates)).Msg("Deleting live batch")

	if len(candidates) == 0 {
		evt.Metrics.Finish(true)
		e.fold(evt.Metrics.Snapshot())
		return &LiveResult{}, nil
	}

	threshold, guarded := cfg.Settings.Threshold()
	var thresholdPtr *float64
	if guarded {
		thresholdPtr = &threshold
	}
	report, err := e.applier.Delete(ctx, candidates, applier.DeleteOptions{
		Kind:            kind,
		UserAgent:       evt.UserAgent,
		MaxBatchCount:   e.cfg.batchCount,
		MaxBatchBytes:   e.cfg.batchBytes,
		KnownBefore:     len(candidates),
		Threshold:       thresholdPtr,
		DeleteDependent: cfg.Settings.DeleteDependentEntities,
	})
	if err != nil {
		evt.Metrics.Finish(false)
		e.fold(evt.Metrics.Snapshot())
		return nil, err
	}
	evt.Metrics.AddDeleted(kind, len(report.Deleted))
	evt.Metrics.AddDeletionSkipped(kind, len(report.Skipped))
	evt.Metrics.AddFailed(kind, len(report.Failed))
	evt.Metrics.Finish(len(report.Failed) == 0)
	e.fold(evt.Metrics.Snapshot())

	return &LiveResult{
		Deleted: report.Deleted,
		Skipped: report.Skipped,
		Failed:  report.Failed,
	}, nil
}

// liveTransform fetches fresh configuration and maps a live batch through
// the kind's resource mappings. Live events bypass the pass-scoped config
// cache so that a just-changed mapping takes effect immediately.
func (e *engine) liveTransform(ctx context.Context, kind string, records []fetch.RawRecord, userAgent catalog.UserAgentType) (*event.Context, *config.SyncConfig, []entities.Entity, error) {
	if userAgent == "" {
		userAgent = catalog.UserAgentExporter
	}
	evt := event.NewContext(event.TriggerLive, userAgent, e.provider, e.collectors)
	ctx = logging.WithLogger(ctx, e.cfg.logger)

	cfg, err := evt.Config.Refresh(ctx)
	if err != nil {
		evt.Metrics.Finish(false)
		e.fold(evt.Metrics.Snapshot())
		return nil, nil, nil, errors.Wrap(err, "fetching sync config")
	}

	log := logging.Ctx(logging.WithKind(ctx, kind))
	evt.Metrics.AddRawExtracted(kind, len(records))

	var mapped []entities.Entity
	for _, resource := range cfg.ResourcesFor(kind) {
		res := e.transformer.Parse(resource, records)
		evt.Metrics.AddTransformed(kind, len(res.Passed))
		evt.Metrics.AddFilteredOut(kind, res.FilteredOut)
		evt.Metrics.AddFailedTransform(kind, len(res.Failed))
		for _, failed := range res.Failed {
			log.Warn().Err(failed.Err).Msg("Live record failed transformation")
		}
		mapped = append(mapped, res.Passed...)
	}
	return evt, cfg, entities.Unique(mapped), nil
}
