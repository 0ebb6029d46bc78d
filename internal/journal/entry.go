// Package journal persists transaction outcomes to SQLite.
//
// Each executed transaction produces exactly one Entry, written after the
// executor has decided its outcome. Writes are idempotent by transaction id.
// The journal is a side channel: a failed write is logged by the caller and
// never changes a transaction's outcome.
package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/mms/internal/mms"
)

// Outcome is the decided state of a transaction.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeFailed    Outcome = "failed"
)

// Entry is one journaled transaction.
type Entry struct {
	// Seq is assigned by the journal on write.
	Seq int64 `json:"seq"`

	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Actor     string    `json:"actor"`
	Scope     mms.Scope `json:"scope"`
	Method    string    `json:"method,omitempty"`
	Path      string    `json:"path,omitempty"`

	Outcome  Outcome      `json:"outcome"`
	Category mms.Category `json:"category,omitempty"`
	Reason   mms.Reason   `json:"reason,omitempty"`
	Message  string       `json:"message,omitempty"`

	// Passed lists the condition keys that held during verify.
	Passed []string `json:"passed"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// marshalPassed converts condition keys to JSON TEXT for storage.
// HTML escaping is disabled so keys round-trip byte for byte.
func marshalPassed(keys []string) (string, error) {
	if keys == nil {
		keys = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(keys); err != nil {
		return "", fmt.Errorf("marshal passed: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalPassed(data string) ([]string, error) {
	keys := []string{}
	if data == "" {
		return keys, nil
	}
	if err := json.Unmarshal([]byte(data), &keys); err != nil {
		return nil, fmt.Errorf("unmarshal passed: %w", err)
	}
	return keys, nil
}
