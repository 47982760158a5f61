package nlp

import (
	"fmt"
	"math"
	"sort"
)

// Vocabulary maps column index to term.
type Vocabulary []string

// TFIDF is a smoothed tf-idf vectorizer with document frequency pruning.
type TFIDF struct {
	Stamp      Stamp      `json:"stamp"`
	MinDF      int        `json:"min_df"`
	MaxDF      float64    `json:"max_df"`
	Vocabulary Vocabulary `json:"vocabulary"`
	IDF        []float64  `json:"idf"`
	FitSize    int        `json:"fit_size"`
	Predicted  int        `json:"predicted"`

	index     map[string]int
	tokenizer Tokenizer
}

// NewTFIDF drops terms seen in fewer than minDF documents or in more than
// maxDF of them. maxDF above 1 is read as an absolute document count.
func NewTFIDF(tok Tokenizer, minDF int, maxDF float64) *TFIDF {
	return &TFIDF{MinDF: minDF, MaxDF: maxDF, tokenizer: tok}
}

func (v *TFIDF) Name() string      { return ArtifactVectorizer }
func (v *TFIDF) ModelStamp() Stamp { return v.Stamp }

func (v *TFIDF) Info() ModelInfo {
	return ModelInfo{
		Name:  v.Name(),
		Stamp: v.Stamp,
		Features: map[string]any{
			"fit_size":   v.FitSize,
			"predicted":  v.Predicted,
			"vocabulary": len(v.Vocabulary),
			"min_df":     v.MinDF,
			"max_df":     v.MaxDF,
		},
	}
}

// SetTokenizer attaches the tokenizer and rebuilds the term index after the
// model was decoded from disk.
func (v *TFIDF) SetTokenizer(tok Tokenizer) {
	v.tokenizer = tok
	v.index = make(map[string]int, len(v.Vocabulary))
	for j, term := range v.Vocabulary {
		v.index[term] = j
	}
}

func (v *TFIDF) Fitted() bool { return len(v.Vocabulary) > 0 && len(v.IDF) == len(v.Vocabulary) }

func (v *TFIDF) Fit(corpus []string) (*Matrix, Vocabulary, error) {
	n := len(corpus)
	if n == 0 {
		return nil, nil, fmt.Errorf("fit on empty corpus: %w", ErrInsufficientVocabulary)
	}

	docs := make([][]string, n)
	df := make(map[string]int)
	for i, text := range corpus {
		docs[i] = v.tokenizer.Tokens(text)
		seen := make(map[string]struct{}, len(docs[i]))
		for _, term := range docs[i] {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	maxCount := v.MaxDF
	if maxCount <= 1 {
		maxCount = v.MaxDF * float64(n)
	}
	vocab := make([]string, 0, len(df))
	for term, count := range df {
		if count < v.MinDF || float64(count) > maxCount {
			continue
		}
		vocab = append(vocab, term)
	}
	if len(vocab) == 0 {
		return nil, nil, fmt.Errorf("no term within document frequency bounds [%d, %.2f] over %d documents: %w",
			v.MinDF, maxCount, n, ErrInsufficientVocabulary)
	}
	sort.Strings(vocab)

	idf := make([]float64, len(vocab))
	index := make(map[string]int, len(vocab))
	for j, term := range vocab {
		index[term] = j
		idf[j] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	v.Vocabulary = vocab
	v.IDF = idf
	v.index = index
	v.FitSize = n
	v.Predicted = 0

	m := NewMatrix(len(vocab))
	m.Rows = make([]Row, n)
	for i, terms := range docs {
		m.Rows[i] = v.weigh(terms)
	}
	return m, vocab, nil
}

func (v *TFIDF) Transform(corpus []string) (*Matrix, error) {
	if !v.Fitted() || v.index == nil {
		return nil, ErrModelNotFit
	}
	m := NewMatrix(len(v.Vocabulary))
	m.Rows = make([]Row, len(corpus))
	for i, text := range corpus {
		m.Rows[i] = v.weigh(v.tokenizer.Tokens(text))
	}
	return m, nil
}

func (v *TFIDF) weigh(terms []string) Row {
	counts := make(map[int]float64)
	for _, term := range terms {
		if j, ok := v.index[term]; ok {
			counts[j]++
		}
	}
	for j := range counts {
		counts[j] *= v.IDF[j]
	}
	r := newRow(counts)
	normalizeRow(r)
	return r
}
