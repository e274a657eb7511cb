package devsession

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/assetpipe/internal/build"
)

// RebuildEvent describes a promoted build.
type RebuildEvent struct {
	BuildID    string    `json:"build_id"`
	Trigger    string    `json:"trigger,omitempty"`
	Artifacts  int       `json:"artifacts"`
	CacheHits  int       `json:"cache_hits"`
	FinishedAt time.Time `json:"finished_at"`
}

func eventFor(r *build.Report) RebuildEvent {
	return RebuildEvent{
		BuildID:    r.BuildID,
		Trigger:    r.Trigger,
		Artifacts:  len(r.Artifacts),
		CacheHits:  r.CacheHits,
		FinishedAt: r.EndTime,
	}
}

// Notifier is told about every successfully promoted build.
type Notifier interface {
	Notify(ctx context.Context, ev RebuildEvent) error
	Close() error
}

// hubNotifier forwards events to live-reload clients.
type hubNotifier struct{ hub *LiveReloadHub }

func (n hubNotifier) Notify(_ context.Context, ev RebuildEvent) error {
	n.hub.Broadcast(ev.BuildID)
	return nil
}

func (n hubNotifier) Close() error {
	n.hub.Shutdown()
	return nil
}

// NATSNotifier publishes rebuild events as JSON on a NATS subject.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
}

// NewNATSNotifier connects to url.
func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	if subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}
	conn, err := nats.Connect(url,
		nats.Name("assetpipe dev session"),
		nats.Timeout(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS notifier connected", "url", url, "subject", subject)
	return &NATSNotifier{conn: conn, subject: subject}, nil
}

// Notify publishes ev and flushes so subscribers see it promptly.
func (n *NATSNotifier) Notify(ctx context.Context, ev RebuildEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return n.conn.FlushWithContext(ctx)
}

// Close drains pending publishes and closes the connection.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
