package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fadilmartias/jobmatch/internal/config"
	"github.com/fadilmartias/jobmatch/internal/logging"
	"github.com/fadilmartias/jobmatch/internal/nlp"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

type GeminiService struct {
	Client         *genai.Client
	Model          string
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	RequestTimeout time.Duration
	log            zerolog.Logger
}

func NewGeminiService(ctx context.Context) (*GeminiService, error) {
	geminiConfig := config.LoadGeminiConfig()
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiService{
		Client:         client,
		Model:          geminiConfig.Model,
		MaxRetries:     3,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		RequestTimeout: 60 * time.Second,
		log:            logging.Component("gemini"),
	}, nil
}

func (s *GeminiService) NameClusters(ctx context.Context, clusters []nlp.Cluster) ([]ClusterName, error) {
	prompt, err := namingPrompt(clusters)
	if err != nil {
		return nil, err
	}
	resp, err := s.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseNames(resp.Text(), clusters)
}

// GenerateContent asks for a JSON answer, retrying rate limits and server
// errors with exponential backoff.
func (s *GeminiService) GenerateContent(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.1)),
		ResponseMIMEType: "application/json",
	}

	var lastErr error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.calculateBackoff(attempt)
			s.log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("retrying GenerateContent")

			select {
			case <-time.After(delay):
			case <-timeoutCtx.Done():
				return nil, fmt.Errorf("context timeout during retry: %w", timeoutCtx.Err())
			}
		}

		result, err := s.Client.Models.GenerateContent(timeoutCtx, s.Model, genai.Text(prompt), genConfig)
		if err == nil {
			if err := validateGenerateResponse(result); err != nil {
				return nil, fmt.Errorf("invalid response: %w", err)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return nil, fmt.Errorf("generate content failed: %w", err)
		}
		s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("retryable gemini error")
	}

	return nil, fmt.Errorf("max retries (%d) exceeded for GenerateContent: %w", s.MaxRetries, lastErr)
}

func (s *GeminiService) calculateBackoff(attempt int) time.Duration {
	delay := s.BaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > s.MaxDelay {
		delay = s.MaxDelay
	}
	return delay
}

func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		default:
			return false
		}
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "temporary failure") ||
		strings.Contains(errMsg, "EOF")
}

func validateGenerateResponse(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return fmt.Errorf("response is nil")
	}
	if len(resp.Candidates) == 0 {
		return fmt.Errorf("no candidates in response")
	}
	if resp.Candidates[0].Content == nil {
		return fmt.Errorf("candidate content is nil")
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("no parts in content")
	}
	return nil
}
