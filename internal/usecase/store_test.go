package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fadilmartias/jobmatch/internal/dto"
	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/fadilmartias/jobmatch/internal/repository"
	"github.com/fadilmartias/jobmatch/internal/validation"
	"gorm.io/gorm"
)

type memOffer struct {
	id      int64
	payload dto.OfferPayload
	vector  *repository.VectorRow
	cluster *int
}

// memStore keeps offers in memory with the same invariants as the
// repository: clusters need vectors and re-embedding drops clusters.
type memStore struct {
	mu       sync.Mutex
	offers   []*memOffer
	clusters map[int]model.Cluster
}

func newMemStore() *memStore {
	return &memStore{clusters: map[int]model.Cluster{}}
}

func (s *memStore) find(id int64) *memOffer {
	for _, o := range s.offers {
		if o.id == id {
			return o
		}
	}
	return nil
}

func (s *memStore) InsertOffer(_ context.Context, p dto.OfferPayload) (int64, bool, error) {
	if err := validation.ValidateStruct(&p); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.offers {
		if o.payload.Title == p.Title && o.payload.Company.Name == p.Company.Name && o.payload.Date == p.Date {
			return o.id, false, nil
		}
	}
	o := &memOffer{id: int64(len(s.offers) + 1), payload: p}
	s.offers = append(s.offers, o)
	return o.id, true, nil
}

func (s *memStore) bySource(source string) []*memOffer {
	var out []*memOffer
	for _, o := range s.offers {
		if source == "" || o.payload.Source == source {
			out = append(out, o)
		}
	}
	return out
}

func (s *memStore) LatestDate(_ context.Context, source string) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *string
	for _, o := range s.bySource(source) {
		if latest == nil || o.payload.Date > *latest {
			d := o.payload.Date
			latest = &d
		}
	}
	return latest, nil
}

func (s *memStore) Total(_ context.Context, source string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.bySource(source))), nil
}

func (s *memStore) Summary(_ context.Context, source string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int64{"cluster_id": 0, "vector_id": 0}
	for _, o := range s.bySource(source) {
		if o.cluster == nil {
			out["cluster_id"]++
		}
		if o.vector == nil {
			out["vector_id"]++
		}
	}
	return out, nil
}

func (s *memStore) texts(keep func(*memOffer) bool) ([]int64, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	var texts []string
	for _, o := range s.offers {
		if keep(o) {
			ids = append(ids, o.id)
			texts = append(texts, o.payload.Description.OfferText)
		}
	}
	return ids, texts, nil
}

func (s *memStore) Corpus(context.Context) ([]int64, []string, error) {
	return s.texts(func(*memOffer) bool { return true })
}

func (s *memStore) Unprocessed(_ context.Context, source string) ([]int64, []string, error) {
	return s.texts(func(o *memOffer) bool {
		return o.cluster == nil && (source == "" || o.payload.Source == source)
	})
}

func (s *memStore) AddEmbeddings(_ context.Context, updates []repository.EmbeddingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		o := s.find(u.OfferID)
		if o == nil {
			return repository.ErrOfferNotFound
		}
		if o.vector == nil && u.Emb50 == nil && (u.Emb3 != nil || u.ClusterID != nil) {
			return repository.ErrNotEmbedded
		}
	}
	for _, u := range updates {
		o := s.find(u.OfferID)
		if u.Emb50 != nil {
			o.vector = &repository.VectorRow{OfferID: o.id, Emb50: u.Emb50, Emb3: u.Emb3, Epoch: u.Epoch}
		}
		if u.ClusterID != nil {
			c := *u.ClusterID
			o.cluster = &c
		}
	}
	return nil
}

func (s *memStore) ReplaceVectors(_ context.Context, rows []repository.VectorRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters = map[int]model.Cluster{}
	for _, o := range s.offers {
		o.vector, o.cluster = nil, nil
	}
	for i := range rows {
		o := s.find(rows[i].OfferID)
		if o == nil {
			return repository.ErrOfferNotFound
		}
		o.vector = &rows[i]
	}
	return nil
}

func (s *memStore) EmbeddedVectors(_ context.Context, epoch int64) ([]int64, [][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	var vecs [][]float32
	for _, o := range s.offers {
		if o.vector != nil && o.vector.Epoch == epoch {
			ids = append(ids, o.id)
			vecs = append(vecs, o.vector.Emb50)
		}
	}
	return ids, vecs, nil
}

func (s *memStore) ReplaceClusters(_ context.Context, clusters []model.Cluster, assignments map[int64]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	known := map[int]model.Cluster{}
	for _, c := range clusters {
		known[c.ID] = c
	}
	for id, c := range assignments {
		if _, ok := known[c]; !ok {
			return fmt.Errorf("unknown cluster %d", c)
		}
		if o := s.find(id); o == nil || o.vector == nil {
			return repository.ErrNotEmbedded
		}
	}
	for _, o := range s.offers {
		o.cluster = nil
	}
	for id, c := range assignments {
		c := c
		s.find(id).cluster = &c
	}
	s.clusters = known
	return nil
}

func (s *memStore) UpdateClusterNames(_ context.Context, names map[int]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, name := range names {
		c, ok := s.clusters[id]
		if !ok {
			continue
		}
		n := name
		c.Name = &n
		s.clusters[id] = c
	}
	return nil
}

func (s *memStore) Clusters(context.Context) ([]dto.ClusterDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dto.ClusterDTO, 0, len(s.clusters))
	for _, c := range s.clusters {
		d := dto.ClusterDTO{ID: c.ID, Name: c.Name, Terms: c.RepresentativeTerms}
		for _, o := range s.offers {
			if o.cluster != nil && *o.cluster == c.ID {
				d.Size++
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memRuns struct {
	mu   sync.Mutex
	runs map[string]model.PipelineRun
}

func (m *memRuns) CreateRun(_ context.Context, run *model.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runs == nil {
		m.runs = map[string]model.PipelineRun{}
	}
	m.runs[run.ID.String()] = *run
	return nil
}

func (m *memRuns) UpdateRun(ctx context.Context, run *model.PipelineRun) error {
	return m.CreateRun(ctx, run)
}

func (m *memRuns) FindRunByID(_ context.Context, id string) (*model.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &run, nil
}

func (m *memRuns) ListRuns(_ context.Context, kind string, limit int) ([]model.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PipelineRun
	for _, run := range m.runs {
		if kind == "" || run.Kind == kind {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
