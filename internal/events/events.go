// Package events publishes committed-transaction notifications to NATS.
//
// Subjects are "<prefix>.<org>.<repo>.<operation>", with "_" standing in
// for an absent or unsafe token, so subscribers can filter with wildcards
// such as "mms.events.acme.>".
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/roach88/mms/internal/mms"
)

// Event describes one committed transaction.
type Event struct {
	Operation     string    `json:"operation"`
	TransactionID string    `json:"transaction_id"`
	CommitID      string    `json:"commit_id,omitempty"`
	Actor         string    `json:"actor"`
	Scope         mms.Scope `json:"scope"`
	Time          time.Time `json:"time"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Conn is the subset of *nats.Conn used for publishing.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes events as JSON messages.
type NATSPublisher struct {
	conn   Conn
	prefix string
}

// DefaultPrefix is used when no subject prefix is configured.
const DefaultPrefix = "mms.events"

// NewNATSPublisher publishes on conn under prefix.
func NewNATSPublisher(conn Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Connect dials a NATS server and returns a publisher plus the connection,
// which the caller drains on shutdown.
func Connect(url, prefix string, opts ...nats.Option) (*NATSPublisher, *nats.Conn, error) {
	opts = append([]nats.Option{nats.Name("mms")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATSPublisher(nc, prefix), nc, nil
}

// Publish encodes e and publishes it on its subject.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(Subject(p.prefix, e), data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subject returns the subject an event is published on.
func Subject(prefix string, e Event) string {
	return strings.Join([]string{prefix, token(e.Scope.Org), token(e.Scope.Repo), token(e.Operation)}, ".")
}

// token makes s safe as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// Nop discards events.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }
