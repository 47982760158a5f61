package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fadilmartias/jobmatch/internal/config"
	"github.com/fadilmartias/jobmatch/internal/dto"
	"github.com/fadilmartias/jobmatch/internal/ingest"
	"github.com/fadilmartias/jobmatch/internal/logging"
	"github.com/fadilmartias/jobmatch/internal/metrics"
	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/fadilmartias/jobmatch/internal/nlp"
	"github.com/fadilmartias/jobmatch/internal/repository"
	"github.com/fadilmartias/jobmatch/internal/service"
	"github.com/fadilmartias/jobmatch/internal/util"
	"github.com/fadilmartias/jobmatch/internal/validation"
	"github.com/rs/zerolog"
)

// OfferStore is the write and pipeline side of the offer repository.
type OfferStore interface {
	InsertOffer(ctx context.Context, p dto.OfferPayload) (int64, bool, error)
	LatestDate(ctx context.Context, source string) (*string, error)
	Total(ctx context.Context, source string) (int64, error)
	Summary(ctx context.Context, source string) (map[string]int64, error)
	Corpus(ctx context.Context) ([]int64, []string, error)
	Unprocessed(ctx context.Context, source string) ([]int64, []string, error)
	AddEmbeddings(ctx context.Context, updates []repository.EmbeddingUpdate) error
	ReplaceVectors(ctx context.Context, rows []repository.VectorRow) error
	EmbeddedVectors(ctx context.Context, epoch int64) ([]int64, [][]float32, error)
	ReplaceClusters(ctx context.Context, clusters []model.Cluster, assignments map[int64]int) error
	UpdateClusterNames(ctx context.Context, names map[int]string) error
	Clusters(ctx context.Context) ([]dto.ClusterDTO, error)
}

type RunStore interface {
	CreateRun(ctx context.Context, run *model.PipelineRun) error
	UpdateRun(ctx context.Context, run *model.PipelineRun) error
	FindRunByID(ctx context.Context, id string) (*model.PipelineRun, error)
	ListRuns(ctx context.Context, kind string, limit int) ([]model.PipelineRun, error)
}

type SyncReport struct {
	Source     string  `json:"source"`
	StopDate   *string `json:"stop_date,omitempty"`
	Read       int     `json:"read"`
	Inserted   int     `json:"inserted"`
	Duplicates int     `json:"duplicates"`
	Rejected   int     `json:"rejected"`
}

type FitReport struct {
	Offers     int   `json:"offers"`
	Vocabulary int   `json:"vocabulary"`
	Components int   `json:"components"`
	Epoch      int64 `json:"epoch"`
}

type ClusterReport struct {
	K        int              `json:"k"`
	Offers   int              `json:"offers"`
	Epoch    int64            `json:"epoch"`
	Named    int              `json:"named"`
	Clusters []dto.ClusterDTO `json:"clusters"`
}

type ProcessReport struct {
	Source    string `json:"source,omitempty"`
	Processed int    `json:"processed"`
}

// RunParams carries the inputs of a background pipeline run.
type RunParams struct {
	Source string `json:"source,omitempty"`
	K      int    `json:"k,omitempty"`
}

// PipelineUsecase drives ingestion, model fits and incremental processing.
// Write operations are serialized.
type PipelineUsecase struct {
	offers   OfferStore
	runs     RunStore
	registry *nlp.Registry
	namer    service.ClusterNamer
	cfg      *config.NLPConfig
	log      zerolog.Logger

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewPipelineUsecase(offers OfferStore, runs RunStore, registry *nlp.Registry, namer service.ClusterNamer, cfg *config.NLPConfig) *PipelineUsecase {
	if namer == nil {
		namer = service.NoopNamer{}
	}
	return &PipelineUsecase{
		offers:   offers,
		runs:     runs,
		registry: registry,
		namer:    namer,
		cfg:      cfg,
		log:      logging.Component("pipeline"),
	}
}

// AddOffer validates and stores one offer, parsing its salary label when no
// amounts are given.
func (uc *PipelineUsecase) AddOffer(ctx context.Context, p dto.OfferPayload) (int64, bool, error) {
	if p.SalaryMin == nil && p.SalaryMax == nil && p.SalaryLabel != nil {
		p.SalaryMin, p.SalaryMax = util.ParseSalary(*p.SalaryLabel)
	}
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.offers.InsertOffer(ctx, p)
}

// SyncSource ingests the offers src publishes after the latest date already
// stored for it. Invalid offers are counted and skipped.
func (uc *PipelineUsecase) SyncSource(ctx context.Context, src ingest.Source) (*SyncReport, error) {
	stop, err := uc.offers.LatestDate(ctx, src.Name())
	if err != nil {
		return nil, err
	}
	report := &SyncReport{Source: src.Name(), StopDate: stop}
	err = src.Fetch(ctx, stop, func(p dto.OfferPayload) error {
		report.Read++
		_, inserted, err := uc.AddOffer(ctx, p)
		var verr *validation.RequestValidationError
		switch {
		case errors.As(err, &verr):
			report.Rejected++
			metrics.RecordIngested(src.Name(), "rejected")
			uc.log.Warn().Str("source", src.Name()).Str("title", p.Title).Interface("fields", verr.Fields()).Msg("offer rejected")
			return nil
		case err != nil:
			return err
		case inserted:
			report.Inserted++
			metrics.RecordIngested(src.Name(), "inserted")
		default:
			report.Duplicates++
			metrics.RecordIngested(src.Name(), "duplicate")
		}
		if report.Read%100 == 0 {
			uc.log.Info().Str("source", src.Name()).Int("read", report.Read).Int("inserted", report.Inserted).Msg("sync progress")
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("sync %s: %w", src.Name(), err)
	}
	uc.log.Info().Str("source", report.Source).Int("read", report.Read).Int("inserted", report.Inserted).
		Int("duplicates", report.Duplicates).Int("rejected", report.Rejected).Msg("sync finished")
	return report, nil
}

// FitTFIDF refits the vectorizer and reducer on the whole corpus, replaces
// every stored vector and drops the clusters they invalidate.
func (uc *PipelineUsecase) FitTFIDF(ctx context.Context) (report *FitReport, err error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	defer func(start time.Time) { metrics.RecordFit(model.RunKindFitTFIDF, start, err) }(time.Now())

	ids, texts, err := uc.offers.Corpus(ctx)
	if err != nil {
		return nil, err
	}
	vec := nlp.NewTFIDF(uc.registry.Tokenizer(), uc.cfg.MinDF, uc.cfg.MaxDF)
	matrix, vocab, err := vec.Fit(texts)
	if err != nil {
		return nil, fmt.Errorf("fit vectorizer on %d offers: %w", len(texts), err)
	}
	matrix.RowIDs = ids

	linear := nlp.NewSVD(uc.cfg.Components, uc.cfg.Seed)
	visual := nlp.NewTSNE(uc.cfg.Perplexity, uc.cfg.TSNEIterations, uc.cfg.Seed)
	visual.MaxRows = uc.cfg.TSNEMaxRows
	dense50, dense3, err := nlp.NewReducer(linear, visual).FitTransform(matrix)
	if err != nil {
		return nil, fmt.Errorf("fit reducer: %w", err)
	}

	vec.Stamp = uc.registry.NewStamp(0)
	artifact := &nlp.MatrixArtifact{Stamp: uc.registry.NewStamp(vec.Stamp.Epoch), Matrix: matrix}
	linear.Stamp = uc.registry.NewStamp(vec.Stamp.Epoch)
	visual.Stamp = uc.registry.NewStamp(linear.Stamp.Epoch)

	rows := make([]repository.VectorRow, len(ids))
	for i, id := range ids {
		rows[i] = repository.VectorRow{OfferID: id, Emb50: dense50[i], Emb3: dense3[i], Epoch: linear.Stamp.Epoch}
	}
	if err := uc.offers.ReplaceVectors(ctx, rows); err != nil {
		return nil, err
	}
	if err := uc.registry.InstallEmbedding(vec, artifact, linear, visual); err != nil {
		return nil, err
	}
	metrics.SetModelEpoch(visual.Stamp.Epoch)

	uc.log.Info().Int("offers", len(ids)).Int("vocabulary", len(vocab)).Int64("epoch", linear.Stamp.Epoch).Msg("vectorizer and reducer fitted")
	return &FitReport{Offers: len(ids), Vocabulary: len(vocab), Components: uc.cfg.Components, Epoch: linear.Stamp.Epoch}, nil
}

// FitKMeans repartitions every vector of the current reducer into k
// clusters (the configured count when k <= 0), names them and reassigns
// every offer.
func (uc *PipelineUsecase) FitKMeans(ctx context.Context, k int) (report *ClusterReport, err error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	defer func(start time.Time) { metrics.RecordFit(model.RunKindFitKMeans, start, err) }(time.Now())

	if k <= 0 {
		k = uc.cfg.Clusters
	}
	models := uc.registry.Models()
	if err := models.RequireMatrix(); err != nil {
		return nil, err
	}
	epoch := models.Linear.Stamp.Epoch

	ids, vectors, err := uc.offers.EmbeddedVectors(ctx, epoch)
	if err != nil {
		return nil, err
	}
	matrix, found := models.Matrix.Matrix.Subset(ids)
	if len(found) != len(ids) {
		uc.log.Warn().Int("vectors", len(ids)).Int("matrix_rows", len(found)).Msg("vectors without matrix rows left unclustered")
	}
	aligned := make([][]float32, len(found))
	for i, pos := range found {
		aligned[i] = vectors[pos]
	}

	engine := nlp.NewClusterEngine(uc.cfg.TopTerms, uc.cfg.Seed, nil)
	labels, clusters, err := engine.FitPredict(matrix, aligned, models.Vectorizer.Vocabulary, k)
	if err != nil {
		return nil, fmt.Errorf("fit kmeans on %d vectors: %w", len(aligned), err)
	}
	km := engine.Model()
	km.Stamp = uc.registry.NewStamp(epoch)

	names := uc.nameClusters(ctx, clusters)
	stored := make([]model.Cluster, len(clusters))
	for i, c := range clusters {
		stored[i] = model.Cluster{ID: c.ID, RepresentativeTerms: c.Terms}
		if name, ok := names[c.ID]; ok {
			stored[i].Name = &name
		}
	}
	assignments := make(map[int64]int, len(labels))
	sizes := make(map[int]int64, len(clusters))
	for i, l := range labels {
		assignments[matrix.RowIDs[i]] = l
		sizes[l]++
	}
	if err := uc.offers.ReplaceClusters(ctx, stored, assignments); err != nil {
		return nil, err
	}
	if err := uc.registry.InstallKMeans(km); err != nil {
		return nil, err
	}
	metrics.SetModelEpoch(km.Stamp.Epoch)

	report = &ClusterReport{K: k, Offers: len(labels), Epoch: km.Stamp.Epoch, Named: len(names)}
	for _, c := range stored {
		report.Clusters = append(report.Clusters, dto.ClusterDTO{ID: c.ID, Name: c.Name, Terms: c.RepresentativeTerms, Size: sizes[c.ID]})
	}
	uc.log.Info().Int("k", k).Int("offers", len(labels)).Int("named", len(names)).Msg("clusters fitted")
	return report, nil
}

// RenameClusters asks the namer again for the stored clusters, for example
// after the naming backend was unavailable during a fit.
func (uc *PipelineUsecase) RenameClusters(ctx context.Context) (int, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	stored, err := uc.offers.Clusters(ctx)
	if err != nil {
		return 0, err
	}
	clusters := make([]nlp.Cluster, len(stored))
	for i, c := range stored {
		clusters[i] = nlp.Cluster{ID: c.ID, Terms: c.Terms}
	}
	names := uc.nameClusters(ctx, clusters)
	if len(names) == 0 {
		return 0, nil
	}
	if err := uc.offers.UpdateClusterNames(ctx, names); err != nil {
		return 0, err
	}
	return len(names), nil
}

func (uc *PipelineUsecase) nameClusters(ctx context.Context, clusters []nlp.Cluster) map[int]string {
	suggestions, err := uc.namer.NameClusters(ctx, clusters)
	if err != nil {
		uc.log.Warn().Err(err).Msg("cluster naming failed")
		return nil
	}
	names := make(map[int]string, len(suggestions))
	for _, s := range suggestions {
		names[s.ClusterID] = s.Name
	}
	return names
}

// Process embeds and clusters the offers of source (all sources when empty)
// that have no cluster yet, using the installed models without refitting.
func (uc *PipelineUsecase) Process(ctx context.Context, source string) (report *ProcessReport, err error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	defer func(start time.Time) { metrics.RecordFit(model.RunKindProcess, start, err) }(time.Now())

	models := uc.registry.Models()
	if err := models.RequireClusters(); err != nil {
		return nil, fmt.Errorf("process needs fitted clusters: %w", err)
	}
	ids, texts, err := uc.offers.Unprocessed(ctx, source)
	if err != nil {
		return nil, err
	}
	report = &ProcessReport{Source: source}
	if len(ids) == 0 {
		return report, nil
	}

	rows, err := models.Vectorizer.Transform(texts)
	if err != nil {
		return nil, err
	}
	rows.RowIDs = ids
	dense50, dense3, err := nlp.NewReducer(models.Linear, models.Visual).Transform(rows)
	if err != nil {
		return nil, err
	}
	labels, _, err := nlp.NewClusterEngine(uc.cfg.TopTerms, uc.cfg.Seed, models.KMeans).Predict(dense50)
	if err != nil {
		return nil, err
	}

	updates := make([]repository.EmbeddingUpdate, len(ids))
	for i, id := range ids {
		cluster := labels[i]
		updates[i] = repository.EmbeddingUpdate{
			OfferID:   id,
			Emb50:     dense50[i],
			Emb3:      dense3[i],
			ClusterID: &cluster,
			Epoch:     models.Linear.Stamp.Epoch,
		}
	}
	if err := uc.offers.AddEmbeddings(ctx, updates); err != nil {
		return nil, err
	}
	if err := uc.registry.AppendRows(rows); err != nil {
		return nil, err
	}
	metrics.RecordEmbedded(len(ids))
	report.Processed = len(ids)
	uc.log.Info().Str("source", source).Int("processed", len(ids)).Msg("offers processed")
	return report, nil
}

// SourceInfo reports the stored total, latest date and null counts of a
// source, or of every source when it is empty.
func (uc *PipelineUsecase) SourceInfo(ctx context.Context, source string) (*dto.SummaryDTO, error) {
	total, err := uc.offers.Total(ctx, source)
	if err != nil {
		return nil, err
	}
	latest, err := uc.offers.LatestDate(ctx, source)
	if err != nil {
		return nil, err
	}
	nulls, err := uc.offers.Summary(ctx, source)
	if err != nil {
		return nil, err
	}
	return &dto.SummaryDTO{Source: source, Total: total, LatestDate: latest, Nulls: nulls}, nil
}

func (uc *PipelineUsecase) Models() []nlp.ModelInfo {
	return uc.registry.Info()
}

// Wait blocks until every submitted run has finished.
func (uc *PipelineUsecase) Wait() {
	uc.wg.Wait()
}
