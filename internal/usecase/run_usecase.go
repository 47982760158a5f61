package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fadilmartias/jobmatch/internal/ingest"
	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Submit records a pipeline run and executes it in the background. The
// returned run is in the processing state; poll GetRun for the outcome.
func (uc *PipelineUsecase) Submit(ctx context.Context, kind string, params RunParams) (*model.PipelineRun, error) {
	var job func(context.Context) (any, error)
	switch kind {
	case model.RunKindFitTFIDF:
		job = func(ctx context.Context) (any, error) { return uc.FitTFIDF(ctx) }
	case model.RunKindFitKMeans:
		job = func(ctx context.Context) (any, error) { return uc.FitKMeans(ctx, params.K) }
	case model.RunKindProcess:
		job = func(ctx context.Context) (any, error) { return uc.Process(ctx, params.Source) }
	default:
		return nil, fmt.Errorf("unknown run kind %q", kind)
	}
	return uc.start(ctx, kind, params, job)
}

// SubmitSync ingests src in the background.
func (uc *PipelineUsecase) SubmitSync(ctx context.Context, src ingest.Source) (*model.PipelineRun, error) {
	return uc.start(ctx, model.RunKindSync, RunParams{Source: src.Name()}, func(ctx context.Context) (any, error) {
		return uc.SyncSource(ctx, src)
	})
}

func (uc *PipelineUsecase) start(ctx context.Context, kind string, params RunParams, job func(context.Context) (any, error)) (*model.PipelineRun, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	run := &model.PipelineRun{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    model.RunStatusProcessing,
		Params:    string(encoded),
		Report:    "{}",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	snapshot := *run
	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		uc.execute(&snapshot, job)
	}()
	return run, nil
}

func (uc *PipelineUsecase) execute(run *model.PipelineRun, job func(context.Context) (any, error)) {
	log := uc.log.With().Str("run_id", run.ID.String()).Str("kind", run.Kind).Logger()
	ctx := context.Background()

	report, err := job(ctx)
	run.UpdatedAt = time.Now()
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		log.Error().Err(err).Msg("pipeline run failed")
	} else {
		run.Status = model.RunStatusCompleted
		log.Info().Msg("pipeline run completed")
	}
	if encoded, err := json.Marshal(report); err == nil && string(encoded) != "null" {
		run.Report = string(encoded)
	}
	if err := uc.runs.UpdateRun(ctx, run); err != nil {
		log.Error().Err(err).Msg("save pipeline run")
	}
}

func (uc *PipelineUsecase) GetRun(ctx context.Context, id string) (*model.PipelineRun, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	return uc.runs.FindRunByID(ctx, id)
}

// ListRuns returns the most recent runs, optionally of one kind.
func (uc *PipelineUsecase) ListRuns(ctx context.Context, kind string, limit int) ([]model.PipelineRun, error) {
	return uc.runs.ListRuns(ctx, kind, limit)
}
