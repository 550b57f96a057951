package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/alert"
)

// DefaultSubjectPrefix is the subject root alerts are published under.
const DefaultSubjectPrefix = "soclab.alerts"

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	URL           string
	Name          string
	SubjectPrefix string
	Token         string
}

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATS publishes each alert on <prefix>.<severity>.<rule_id>.
type NATS struct {
	conn   Conn
	prefix string
}

// NewNATS connects to the server and returns a publisher.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Name == "" {
		cfg.Name = "soclab"
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats sink disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats sink reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats sink: connect %s: %w", cfg.URL, err)
	}
	return NewNATSWithConn(conn, cfg.SubjectPrefix), nil
}

// NewNATSWithConn wraps an existing connection.
func NewNATSWithConn(conn Conn, prefix string) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATS{conn: conn, prefix: prefix}
}

// Subject returns the subject a is published on.
func (s *NATS) Subject(a alert.Alert) string {
	return fmt.Sprintf("%s.%s.%s", s.prefix, a.Severity, a.RuleID)
}

func (s *NATS) Name() string { return "nats" }

func (s *NATS) Publish(ctx context.Context, alerts []alert.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, a := range alerts {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("nats sink: marshal alert: %w", err)
		}
		if err := s.conn.Publish(s.Subject(a), data); err != nil {
			observe(s.Name(), i, nil)
			observe(s.Name(), len(alerts)-i, err)
			return fmt.Errorf("nats sink: publish: %w", err)
		}
	}
	err := s.conn.FlushWithContext(ctx)
	observe(s.Name(), len(alerts), err)
	return err
}

func (s *NATS) Close() error {
	s.conn.Close()
	return nil
}
