package nlp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

const (
	ArtifactVectorizer = "vectorizer"
	ArtifactSVD        = "svd"
	ArtifactTSNE       = "tsne"
	ArtifactKMeans     = "kmeans"
	ArtifactMatrix     = "tfidf_matrix"
)

// MatrixArtifact is the persisted document-term matrix.
type MatrixArtifact struct {
	Stamp  Stamp   `json:"stamp"`
	Matrix *Matrix `json:"matrix"`
}

func (a *MatrixArtifact) Name() string      { return ArtifactMatrix }
func (a *MatrixArtifact) ModelStamp() Stamp { return a.Stamp }

func (a *MatrixArtifact) Info() ModelInfo {
	info := ModelInfo{Name: a.Name(), Stamp: a.Stamp, Features: map[string]any{"rows": 0, "cols": 0}}
	if a.Matrix != nil {
		info.Features["rows"] = a.Matrix.NumRows()
		info.Features["cols"] = a.Matrix.Cols
	}
	return info
}

// Models is a consistent snapshot of the fitted artifacts. Any field may be nil.
type Models struct {
	Vectorizer *TFIDF
	Linear     *SVD
	Visual     *TSNE
	KMeans     *KMeans
	Matrix     *MatrixArtifact
}

// RequireEmbedding checks that text can be embedded with matching artifacts.
func (m Models) RequireEmbedding() error {
	switch {
	case m.Vectorizer == nil || !m.Vectorizer.Fitted():
		return fmt.Errorf("%s: %w", ArtifactVectorizer, ErrModelNotFit)
	case m.Linear == nil || !m.Linear.Fitted():
		return fmt.Errorf("%s: %w", ArtifactSVD, ErrModelNotFit)
	case m.Visual == nil || !m.Visual.Fitted():
		return fmt.Errorf("%s: %w", ArtifactTSNE, ErrModelNotFit)
	case m.Linear.Stamp.ParentEpoch != m.Vectorizer.Stamp.Epoch:
		return fmt.Errorf("%s epoch %d fit on vectorizer %d, current %d: %w",
			ArtifactSVD, m.Linear.Stamp.Epoch, m.Linear.Stamp.ParentEpoch, m.Vectorizer.Stamp.Epoch, ErrStaleModel)
	case m.Visual.Stamp.ParentEpoch != m.Linear.Stamp.Epoch:
		return fmt.Errorf("%s fit on svd %d, current %d: %w",
			ArtifactTSNE, m.Visual.Stamp.ParentEpoch, m.Linear.Stamp.Epoch, ErrStaleModel)
	}
	return nil
}

// RequireMatrix checks the stored document-term matrix belongs to the vectorizer.
func (m Models) RequireMatrix() error {
	if err := m.RequireEmbedding(); err != nil {
		return err
	}
	if m.Matrix == nil || m.Matrix.Matrix == nil {
		return fmt.Errorf("%s: %w", ArtifactMatrix, ErrModelNotFit)
	}
	if m.Matrix.Stamp.ParentEpoch != m.Vectorizer.Stamp.Epoch {
		return fmt.Errorf("%s fit on vectorizer %d, current %d: %w",
			ArtifactMatrix, m.Matrix.Stamp.ParentEpoch, m.Vectorizer.Stamp.Epoch, ErrStaleModel)
	}
	return nil
}

// RequireClusters checks that new vectors can be assigned to clusters.
func (m Models) RequireClusters() error {
	if err := m.RequireMatrix(); err != nil {
		return err
	}
	if m.KMeans == nil || !m.KMeans.Fitted() {
		return fmt.Errorf("%s: %w", ArtifactKMeans, ErrModelNotFit)
	}
	if m.KMeans.Stamp.ParentEpoch != m.Linear.Stamp.Epoch {
		return fmt.Errorf("%s fit on svd %d, current %d: %w",
			ArtifactKMeans, m.KMeans.Stamp.ParentEpoch, m.Linear.Stamp.Epoch, ErrStaleModel)
	}
	return nil
}

// Registry owns the fitted artifacts and their files under one directory.
// Readers take snapshots; installs swap whole artifacts.
type Registry struct {
	dir       string
	tokenizer Tokenizer

	mu     sync.RWMutex
	models Models
	epoch  int64
}

func NewRegistry(dir string, tok Tokenizer) *Registry {
	return &Registry{dir: dir, tokenizer: tok}
}

func (r *Registry) Dir() string { return r.dir }

func (r *Registry) Tokenizer() Tokenizer { return r.tokenizer }

// Load reads every artifact present in the directory. Missing files are not errors.
func (r *Registry) Load() error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	var m Models
	loaders := []struct {
		name string
		dst  any
	}{
		{ArtifactVectorizer, &TFIDF{}},
		{ArtifactSVD, &SVD{}},
		{ArtifactTSNE, &TSNE{}},
		{ArtifactKMeans, &KMeans{}},
		{ArtifactMatrix, &MatrixArtifact{}},
	}
	for _, l := range loaders {
		ok, err := r.read(l.name, l.dst)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		switch v := l.dst.(type) {
		case *TFIDF:
			v.SetTokenizer(r.tokenizer)
			m.Vectorizer = v
		case *SVD:
			m.Linear = v
		case *TSNE:
			m.Visual = v
		case *KMeans:
			m.KMeans = v
		case *MatrixArtifact:
			m.Matrix = v
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = m
	r.epoch = 0
	for _, model := range m.all() {
		r.epoch = max(r.epoch, model.ModelStamp().Epoch)
	}
	return nil
}

// Models returns the current snapshot.
func (r *Registry) Models() Models {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models
}

// NewStamp reserves the next epoch for an artifact fit on parent.
func (r *Registry) NewStamp(parent int64) Stamp {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	return newStamp(r.epoch, parent)
}

// InstallEmbedding persists a re-fit of the vectorizer and reducer and makes
// it current. The cluster model it invalidates is removed.
func (r *Registry) InstallEmbedding(vec *TFIDF, matrix *MatrixArtifact, linear *SVD, visual *TSNE) error {
	next := Models{Vectorizer: vec, Linear: linear, Visual: visual, Matrix: matrix}
	if err := next.RequireMatrix(); err != nil {
		return err
	}
	for _, model := range next.all() {
		if err := r.write(model); err != nil {
			return err
		}
	}
	if err := os.Remove(r.path(ArtifactKMeans)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale %s: %w", ArtifactKMeans, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = next
	return nil
}

// InstallKMeans persists a cluster re-fit and makes it current.
func (r *Registry) InstallKMeans(km *KMeans) error {
	next := r.Models()
	next.KMeans = km
	if err := next.RequireClusters(); err != nil {
		return err
	}
	if err := r.write(km); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.models.Linear != next.Linear {
		return fmt.Errorf("reducer changed during cluster fit: %w", ErrStaleModel)
	}
	r.models.KMeans = km
	return nil
}

// AppendRows merges incrementally transformed rows into the stored matrix,
// replacing rows whose offer id is already present, and records the
// prediction counts.
func (r *Registry) AppendRows(rows *Matrix) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.models
	if err := cur.RequireClusters(); err != nil {
		return err
	}
	merged, err := upsertRows(cur.Matrix.Matrix, rows)
	if err != nil {
		return err
	}
	artifact := &MatrixArtifact{Stamp: cur.Matrix.Stamp, Matrix: merged}

	vec := *cur.Vectorizer
	vec.Predicted += rows.NumRows()
	km := *cur.KMeans
	km.Predicted += rows.NumRows()

	for _, model := range []Model{artifact, &vec, &km} {
		if err := r.write(model); err != nil {
			return err
		}
	}
	r.models.Matrix = artifact
	r.models.Vectorizer = &vec
	r.models.KMeans = &km
	return nil
}

// Info lists metadata for every fitted artifact.
func (r *Registry) Info() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ModelInfo
	for _, model := range r.models.all() {
		out = append(out, model.Info())
	}
	return out
}

// EmbedText runs the transform-only path and returns the 50-d vector along
// with the reducer epoch that produced it.
func (r *Registry) EmbedText(text string) ([]float32, int64, error) {
	m := r.Models()
	if err := m.RequireEmbedding(); err != nil {
		return nil, 0, err
	}
	rows, err := m.Vectorizer.Transform([]string{text})
	if err != nil {
		return nil, 0, err
	}
	dense, err := m.Linear.Transform(rows)
	if err != nil {
		return nil, 0, err
	}
	return dense[0], m.Linear.Stamp.Epoch, nil
}

// EmbeddingEpoch is the epoch of the installed linear reducer, the epoch
// every searchable 50-d vector must carry.
func (r *Registry) EmbeddingEpoch() (int64, error) {
	m := r.Models()
	if err := m.RequireEmbedding(); err != nil {
		return 0, err
	}
	return m.Linear.Stamp.Epoch, nil
}

func (m Models) all() []Model {
	var out []Model
	if m.Vectorizer != nil {
		out = append(out, m.Vectorizer)
	}
	if m.Matrix != nil {
		out = append(out, m.Matrix)
	}
	if m.Linear != nil {
		out = append(out, m.Linear)
	}
	if m.Visual != nil {
		out = append(out, m.Visual)
	}
	if m.KMeans != nil {
		out = append(out, m.KMeans)
	}
	return out
}

func (r *Registry) path(name string) string {
	return filepath.Join(r.dir, name+".json")
}

func (r *Registry) read(name string, dst any) (bool, error) {
	data, err := os.ReadFile(r.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

// write replaces the artifact file atomically.
func (r *Registry) write(model Model) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(r.dir, model.Name()+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", model.Name(), err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(model); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", model.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", model.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", model.Name(), err)
	}
	if err := os.Rename(tmp.Name(), r.path(model.Name())); err != nil {
		return fmt.Errorf("install %s: %w", model.Name(), err)
	}
	return nil
}

func upsertRows(base, rows *Matrix) (*Matrix, error) {
	if rows.Cols != base.Cols {
		return nil, fmt.Errorf("append %d columns to %d: %w", rows.Cols, base.Cols, ErrDimensionMismatch)
	}
	if len(rows.RowIDs) != len(rows.Rows) || len(base.RowIDs) != len(base.Rows) {
		return nil, fmt.Errorf("matrix rows without offer ids: %w", ErrDimensionMismatch)
	}
	out := &Matrix{
		Cols:   base.Cols,
		Rows:   append([]Row(nil), base.Rows...),
		RowIDs: append([]int64(nil), base.RowIDs...),
	}
	pos := make(map[int64]int, len(out.RowIDs))
	for i, id := range out.RowIDs {
		pos[id] = i
	}
	for i, id := range rows.RowIDs {
		if p, ok := pos[id]; ok {
			out.Rows[p] = rows.Rows[i]
			continue
		}
		pos[id] = len(out.Rows)
		out.Rows = append(out.Rows, rows.Rows[i])
		out.RowIDs = append(out.RowIDs, id)
	}
	return out, nil
}
