// Package sink publishes alerts to files and message brokers.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/alert"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/metrics"
)

// Publisher delivers a batch of alerts. Batches keep their order.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, alerts []alert.Alert) error
	Close() error
}

func observe(name string, n int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.AlertsPublished.WithLabelValues(name, status).Add(float64(n))
}

// File appends alerts as JSONL to a local file.
type File struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// NewFile opens path for appending, creating it when missing.
func NewFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file sink %s: %w", path, err)
	}
	return &File{f: f, path: path}, nil
}

func (s *File) Name() string { return "file" }

func (s *File) Publish(ctx context.Context, alerts []alert.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := alert.WriteJSONL(s.f, alerts)
	observe(s.Name(), len(alerts), err)
	return err
}

func (s *File) Close() error { return s.f.Close() }

// Multi fans a batch out to every publisher in order. All publishers are
// attempted; their errors are joined.
type Multi []Publisher

func (m Multi) Name() string { return "multi" }

func (m Multi) Publish(ctx context.Context, alerts []alert.Alert) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, alerts); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
