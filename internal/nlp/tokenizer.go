package nlp

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/lang/fr"
	"github.com/blevesearch/bleve/v2/registry"
)

// Tokenizer turns raw offer text into normalized terms.
type Tokenizer interface {
	Tokens(text string) []string
}

type analyzer interface {
	Analyze([]byte) analysis.TokenStream
}

type tokenFilter interface {
	Filter(analysis.TokenStream) analysis.TokenStream
}

// FrenchTokenizer runs the bleve French analyzer (unicode segmentation,
// elision, lowercase, French stop words, light stemmer) followed by the
// English stop list, then keeps purely alphabetic terms longer than one rune.
type FrenchTokenizer struct {
	analyzer analyzer
	stopEN   tokenFilter
}

func NewFrenchTokenizer() (*FrenchTokenizer, error) {
	cache := registry.NewCache()
	a, err := cache.AnalyzerNamed(fr.AnalyzerName)
	if err != nil {
		return nil, fmt.Errorf("load %s analyzer: %w", fr.AnalyzerName, err)
	}
	stop, err := cache.TokenFilterNamed(en.StopName)
	if err != nil {
		return nil, fmt.Errorf("load %s filter: %w", en.StopName, err)
	}
	return &FrenchTokenizer{analyzer: a, stopEN: stop}, nil
}

func (t *FrenchTokenizer) Tokens(text string) []string {
	stream := t.stopEN.Filter(t.analyzer.Analyze([]byte(text)))
	out := make([]string, 0, len(stream))
	for _, tok := range stream {
		if tok.Type == analysis.Numeric || !keepTerm(tok.Term) {
			continue
		}
		out = append(out, string(tok.Term))
	}
	return out
}

func keepTerm(term []byte) bool {
	if utf8.RuneCount(term) <= 1 {
		return false
	}
	for _, r := range string(term) {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
