package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fadilmartias/jobmatch/internal/nlp"
	gobreaker "github.com/sony/gobreaker/v2"
)

var testClusters = []nlp.Cluster{
	{ID: 0, Terms: []string{"développeur", "java"}},
	{ID: 1, Terms: []string{"comptable", "paie"}},
	{ID: 2, Terms: []string{"infirmier", "soins"}},
}

func TestParseNames(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    []ClusterName
		wantErr bool
	}{
		{
			name: "array",
			text: `[{"cluster_id":0,"main_tokens":["x"],"cluster_name":"Développement"},{"cluster_id":1,"cluster_name":"Finance"}]`,
			want: []ClusterName{{0, "Développement"}, {1, "Finance"}},
		},
		{
			name: "wrapped in object",
			text: `{"clusters":[{"cluster_id":2,"cluster_name":" Santé "}]}`,
			want: []ClusterName{{2, "Santé"}},
		},
		{
			name: "fenced",
			text: "```json\n[{\"cluster_id\":1,\"cluster_name\":\"Finance\"}]\n```",
			want: []ClusterName{{1, "Finance"}},
		},
		{
			name: "unknown, blank and duplicate ids dropped",
			text: `[{"cluster_id":9,"cluster_name":"X"},{"cluster_id":0,"cluster_name":""},{"cluster_id":1,"cluster_name":"A"},{"cluster_id":1,"cluster_name":"B"}]`,
			want: []ClusterName{{1, "A"}},
		},
		{name: "not json", text: "Voici les noms", wantErr: true},
		{name: "nothing usable", text: `[{"cluster_id":5,"cluster_name":"X"}]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNames(tt.text, testClusters)
			if tt.wantErr {
				if !errors.Is(err, ErrNoNames) {
					t.Errorf("parseNames() error = %v, want ErrNoNames", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseNames() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseNames() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseNames()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNamingPrompt(t *testing.T) {
	prompt, err := namingPrompt(testClusters[:1])
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"cluster_id":0,"main_tokens":["développeur","java"],"cluster_name":null}]`
	if !strings.HasSuffix(prompt, want) {
		t.Errorf("prompt = %q, want suffix %q", prompt, want)
	}
}

type fakeNamer struct {
	calls int
	err   error
	delay time.Duration
}

func (f *fakeNamer) NameClusters(ctx context.Context, clusters []nlp.Cluster) ([]ClusterName, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return []ClusterName{{ClusterID: clusters[0].ID, Name: "Tech"}}, nil
}

func TestBreakerNamer(t *testing.T) {
	ctx := context.Background()

	ok := &fakeNamer{}
	names, err := NewBreakerNamer(ok, time.Second).NameClusters(ctx, testClusters)
	if err != nil || len(names) != 1 || names[0].Name != "Tech" {
		t.Errorf("NameClusters() = %v, %v; want [Tech]", names, err)
	}

	failing := &fakeNamer{err: errors.New("upstream down")}
	namer := NewBreakerNamer(failing, time.Second)
	for i := 0; i < 5; i++ {
		names, err := namer.NameClusters(ctx, testClusters)
		if err != nil || names != nil {
			t.Fatalf("NameClusters() with failing backend = %v, %v; want nil, nil", names, err)
		}
	}
	if failing.calls != 3 {
		t.Errorf("backend calls = %d, want 3 before the breaker opens", failing.calls)
	}
	if namer.State() != gobreaker.StateOpen {
		t.Errorf("breaker state = %v, want open", namer.State())
	}

	slow := &fakeNamer{delay: time.Second}
	start := time.Now()
	names, err = NewBreakerNamer(slow, 20*time.Millisecond).NameClusters(ctx, testClusters)
	if err != nil || names != nil {
		t.Errorf("NameClusters() past timeout = %v, %v; want nil, nil", names, err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("NameClusters() took %v, want the timeout to cut it short", elapsed)
	}
}

func TestOpenRouterNameClusters(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"clusters\":[{\"cluster_id\":1,\"cluster_name\":\"Finance\"}]}"}}]}`))
	}))
	defer srv.Close()

	s := newOpenRouterService("key", "test/model", srv.URL)
	names, err := s.NameClusters(context.Background(), testClusters)
	if err != nil {
		t.Fatalf("NameClusters() error = %v", err)
	}
	if len(names) != 1 || names[0] != (ClusterName{1, "Finance"}) {
		t.Errorf("NameClusters() = %v, want [{1 Finance}]", names)
	}
	if gotAuth != "Bearer key" || gotPath != "/chat/completions" {
		t.Errorf("request auth/path = %q %q", gotAuth, gotPath)
	}

	if _, err := newOpenRouterService("", "m", srv.URL).NameClusters(context.Background(), testClusters); err == nil {
		t.Error("NameClusters() without key succeeded, want error")
	}
}
