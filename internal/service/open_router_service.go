package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fadilmartias/jobmatch/internal/config"
	"github.com/fadilmartias/jobmatch/internal/nlp"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

type OpenRouterService struct {
	APIKey string
	Model  string
	client *resty.Client
}

func NewOpenRouterService() *OpenRouterService {
	cfg := config.LoadOpenRouterConfig()
	return newOpenRouterService(cfg.APIKey, cfg.Model, cfg.BaseURL)
}

func newOpenRouterService(apiKey, model, baseURL string) *OpenRouterService {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	return &OpenRouterService{APIKey: apiKey, Model: model, client: client}
}

func (s *OpenRouterService) NameClusters(ctx context.Context, clusters []nlp.Cluster) ([]ClusterName, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not set")
	}
	prompt, err := namingPrompt(clusters)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"model":           s.Model,
			"response_format": map[string]string{"type": "json_object"},
			"messages": []map[string]string{
				{"role": "system", "content": "Tu nommes des groupes d'offres d'emploi."},
				{"role": "user", "content": prompt},
			},
		}).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("openrouter request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("openrouter returned %d: %s", resp.StatusCode(), gjson.Get(resp.String(), "error.message").String())
	}

	text := gjson.Get(resp.String(), "choices.0.message.content").String()
	if text == "" {
		return nil, fmt.Errorf("no response from LLM: %w", ErrNoNames)
	}
	return parseNames(text, clusters)
}
