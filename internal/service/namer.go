package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fadilmartias/jobmatch/internal/logging"
	"github.com/fadilmartias/jobmatch/internal/metrics"
	"github.com/fadilmartias/jobmatch/internal/nlp"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
)

// ClusterName is one naming suggestion, matched to a cluster by id.
type ClusterName struct {
	ClusterID int    `json:"cluster_id"`
	Name      string `json:"cluster_name"`
}

// ClusterNamer suggests human readable names from representative terms.
type ClusterNamer interface {
	NameClusters(ctx context.Context, clusters []nlp.Cluster) ([]ClusterName, error)
}

var ErrNoNames = errors.New("namer returned no usable names")

const namingInstruction = "Je fais du clustering d'offres d'emploi. Je me base sur les descriptions des offres. " +
	"Trouve un nom court pour chaque cluster selon ses tokens principaux. " +
	"Réponds uniquement au format JSON en complétant ce modèle:"

type namingTemplate struct {
	ClusterID  int      `json:"cluster_id"`
	MainTokens []string `json:"main_tokens"`
	Name       *string  `json:"cluster_name"`
}

func namingPrompt(clusters []nlp.Cluster) (string, error) {
	template := make([]namingTemplate, len(clusters))
	for i, c := range clusters {
		template[i] = namingTemplate{ClusterID: c.ID, MainTokens: c.Terms}
	}
	body, err := json.Marshal(template)
	if err != nil {
		return "", fmt.Errorf("encode naming template: %w", err)
	}
	return namingInstruction + "\n\n" + string(body), nil
}

// parseNames reads the model answer: a bare array, or an object wrapping
// one. Unknown ids and blank names are dropped.
func parseNames(text string, clusters []nlp.Cluster) ([]ClusterName, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("namer answer is not JSON: %w", ErrNoNames)
	}
	list := gjson.Parse(text)
	if list.IsObject() {
		list.ForEach(func(_, v gjson.Result) bool {
			if v.IsArray() {
				list = v
				return false
			}
			return true
		})
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("namer answer has no list: %w", ErrNoNames)
	}

	known := make(map[int]bool, len(clusters))
	for _, c := range clusters {
		known[c.ID] = true
	}
	seen := map[int]bool{}
	var out []ClusterName
	for _, item := range list.Array() {
		id := item.Get("cluster_id")
		name := strings.TrimSpace(item.Get("cluster_name").String())
		if !id.Exists() || name == "" || !known[int(id.Int())] || seen[int(id.Int())] {
			continue
		}
		seen[int(id.Int())] = true
		out = append(out, ClusterName{ClusterID: int(id.Int()), Name: name})
	}
	if len(out) == 0 {
		return nil, ErrNoNames
	}
	return out, nil
}

// NoopNamer leaves every cluster unnamed.
type NoopNamer struct{}

func (NoopNamer) NameClusters(context.Context, []nlp.Cluster) ([]ClusterName, error) {
	return nil, nil
}

// BreakerNamer bounds a namer with a per-call timeout and a circuit breaker.
// Failures are logged and yield no names; clustering never fails because of
// naming.
type BreakerNamer struct {
	next    ClusterNamer
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[[]ClusterName]
	log     zerolog.Logger
}

func NewBreakerNamer(next ClusterNamer, timeout time.Duration) *BreakerNamer {
	n := &BreakerNamer{next: next, timeout: timeout, log: logging.Component("namer")}
	n.cb = gobreaker.NewCircuitBreaker[[]ClusterName](gobreaker.Settings{
		Name:        "cluster-namer",
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			n.log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("namer breaker state changed")
		},
	})
	return n
}

func (n *BreakerNamer) NameClusters(ctx context.Context, clusters []nlp.Cluster) ([]ClusterName, error) {
	if len(clusters) == 0 {
		return nil, nil
	}
	names, err := n.cb.Execute(func() ([]ClusterName, error) {
		callCtx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()
		return n.next.NameClusters(callCtx, clusters)
	})
	if err != nil {
		metrics.RecordNamerFallback()
		n.log.Warn().Err(err).Int("clusters", len(clusters)).Msg("cluster naming failed, clusters left unnamed")
		return nil, nil
	}
	return names, nil
}

func (n *BreakerNamer) State() gobreaker.State {
	return n.cb.State()
}
