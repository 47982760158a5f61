package search

import (
	"context"
	"math"
	"sort"

	"github.com/fadilmartias/jobmatch/internal/dto"
	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/fadilmartias/jobmatch/internal/nlp"
	"github.com/fadilmartias/jobmatch/internal/repository"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	epoch   int64
	fit     bool
}

func (f *fakeEmbedder) EmbedText(text string) ([]float32, int64, error) {
	if !f.fit {
		return nil, 0, nlp.ErrModelNotFit
	}
	v, ok := f.vectors[text]
	if !ok {
		v = make([]float32, model.EmbeddingDims)
	}
	return v, f.epoch, nil
}

func (f *fakeEmbedder) EmbeddingEpoch() (int64, error) {
	if !f.fit {
		return 0, nlp.ErrModelNotFit
	}
	return f.epoch, nil
}

type storedOffer struct {
	offer model.Offer
	vec   repository.StoredVector
}

// fakeIndex ranks by brute force over an in-memory slice.
type fakeIndex struct {
	offers []storedOffer
}

func (f *fakeIndex) add(id int64, company, date string, vec []float32, epoch int64) {
	f.offers = append(f.offers, storedOffer{
		offer: model.Offer{ID: id, Title: company + " offer", Date: date, Company: model.Company{Name: company}},
		vec:   repository.StoredVector{Emb50: vec, Epoch: epoch},
	})
}

func (f *fakeIndex) Vectors(_ context.Context, ids []int64) (map[int64]repository.StoredVector, error) {
	out := map[int64]repository.StoredVector{}
	for _, id := range ids {
		for _, o := range f.offers {
			if o.offer.ID == id && o.vec.Emb50 != nil {
				out[id] = o.vec
			}
		}
	}
	return out, nil
}

func (f *fakeIndex) Nearest(_ context.Context, q []float32, epoch int64, filter dto.OfferFilter, limit int) ([]repository.ScoredOffer, error) {
	var out []repository.ScoredOffer
	for _, o := range f.offers {
		if o.vec.Epoch != epoch || !matches(o.offer, filter) {
			continue
		}
		out = append(out, repository.ScoredOffer{Offer: o.offer, Distance: 1 - cosine(q, o.vec.Emb50)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Offer.ID < out[j].Offer.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeIndex) Latest(_ context.Context, filter dto.OfferFilter, limit, offset int) ([]model.Offer, int64, error) {
	var out []model.Offer
	for _, o := range f.offers {
		if matches(o.offer, filter) {
			out = append(out, o.offer)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID > out[j].ID
	})
	total := int64(len(out))
	out = out[min(offset, len(out)):]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func matches(o model.Offer, f dto.OfferFilter) bool {
	return f.Company == "" || o.Company.Name == f.Company
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}

func unit(components ...float32) []float32 {
	v := make([]float32, model.EmbeddingDims)
	copy(v, components)
	var n float64
	for _, x := range v {
		n += float64(x) * float64(x)
	}
	n = math.Sqrt(n)
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
	return v
}
