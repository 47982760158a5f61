package config

import (
	"os"
	"sync"
	"time"
)

type NLPConfig struct {
	ModelDir       string
	MinDF          int
	MaxDF          float64
	Components     int
	Perplexity     float64
	TSNEIterations int
	// TSNEMaxRows caps the exact t-SNE fit; other rows are interpolated.
	TSNEMaxRows    int
	Clusters       int
	TopTerms       int
	Seed           int64

	// NamerProvider is gemini, openrouter or none.
	NamerProvider string
	NamerTimeout  time.Duration
}

type SearchConfig struct {
	// ResumeWeight > 0 blends the resume vector into the text query vector.
	ResumeWeight float64
	Limit        int
}

var (
	nlpConfig    *NLPConfig
	nlpOnce      sync.Once
	searchConfig *SearchConfig
	searchOnce   sync.Once
)

func LoadNLPConfig() *NLPConfig {
	nlpOnce.Do(func() {
		dataPath := getEnv("DATA_PATH", "data")
		modelDir := os.Getenv("NLP_MODEL_DIR")
		if modelDir == "" {
			modelDir = dataPath + "/model"
		}
		nlpConfig = &NLPConfig{
			ModelDir:       modelDir,
			MinDF:          getEnvInt("NLP_MIN_DF", 3),
			MaxDF:          getEnvFloat("NLP_MAX_DF", 0.5),
			Components:     getEnvInt("NLP_COMPONENTS", 50),
			Perplexity:     getEnvFloat("NLP_PERPLEXITY", 30),
			TSNEIterations: getEnvInt("NLP_TSNE_ITERATIONS", 500),
			TSNEMaxRows:    getEnvInt("NLP_TSNE_MAX_ROWS", 2000),
			Clusters:       getEnvInt("NLP_CLUSTERS", 5),
			TopTerms:       getEnvInt("NLP_TOP_TERMS", 8),
			Seed:           int64(getEnvInt("NLP_SEED", 42)),
			NamerProvider:  getEnv("NAMER_PROVIDER", "gemini"),
			NamerTimeout:   getEnvDuration("NAMER_TIMEOUT", 30*time.Second),
		}
	})
	return nlpConfig
}

func LoadSearchConfig() *SearchConfig {
	searchOnce.Do(func() {
		searchConfig = &SearchConfig{
			ResumeWeight: getEnvFloat("SEARCH_RESUME_WEIGHT", 0),
			Limit:        getEnvInt("SEARCH_LIMIT", 100),
		}
	})
	return searchConfig
}
