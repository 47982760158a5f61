// Package ingest reads fully formed offers from external sources.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fadilmartias/jobmatch/internal/dto"
	"github.com/goccy/go-json"
)

// Source yields the offers of one origin (NTNE, APEC).
type Source interface {
	Name() string
	// Fetch calls fn for every offer published strictly after stopDate, or
	// for every offer when stopDate is nil. An error from fn stops the fetch.
	Fetch(ctx context.Context, stopDate *string, fn func(dto.OfferPayload) error) error
}

const maxLineSize = 4 << 20

// JSONLSource reads one JSON encoded offer per line.
type JSONLSource struct {
	name string
	open func() (io.ReadCloser, error)
}

// NewJSONLFile reads offers from the file at path.
func NewJSONLFile(name, path string) *JSONLSource {
	return &JSONLSource{name: name, open: func() (io.ReadCloser, error) { return os.Open(path) }}
}

// NewJSONLReader reads offers from r. The source can only be fetched once.
func NewJSONLReader(name string, r io.Reader) *JSONLSource {
	return &JSONLSource{name: name, open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil }}
}

func (s *JSONLSource) Name() string { return s.name }

func (s *JSONLSource) Fetch(ctx context.Context, stopDate *string, fn func(dto.OfferPayload) error) error {
	rc, err := s.open()
	if err != nil {
		return fmt.Errorf("open %s offers: %w", s.name, err)
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var p dto.OfferPayload
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return fmt.Errorf("%s line %d: %w", s.name, line, err)
		}
		if p.Source == "" {
			p.Source = s.name
		}
		p.Date = dateOnly(p.Date)
		if stopDate != nil && p.Date <= *stopDate {
			continue
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s offers: %w", s.name, err)
	}
	return nil
}

// dateOnly keeps the YYYY-MM-DD prefix of an ISO timestamp; offers are
// stored and compared by day.
func dateOnly(date string) string {
	if len(date) > 10 {
		return date[:10]
	}
	return date
}
