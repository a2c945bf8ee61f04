// Package audit writes an append-only JSONL record of control actions:
// who asked for what, the outcome, and the command latency. Rotation is
// size-based via lumberjack so a long-lived proxy cannot fill the disk.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is a single audit record.
type Entry struct {
	Timestamp time.Time              `json:"ts"`
	User      string                 `json:"user"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Outcome   string                 `json:"outcome"`
	LatencyMs int64                  `json:"latencyMs"`
}

// userKey is the context key under which the auth middleware stores the
// authenticated subject.
type userKey struct{}

// WithUser returns a context carrying the acting subject for audit
// attribution.
func WithUser(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, userKey{}, subject)
}

// Logger writes entries to a rotating JSONL file.
type Logger struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewLogger creates a logger writing to path, rotating at maxSizeMB and
// keeping maxBackups rotated files.
func NewLogger(path string, maxSizeMB, maxBackups int) *Logger {
	return &Logger{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			Compress:   true,
		},
	}
}

// LogAction records one control action. Failures to write are reported
// on stderr and never propagate: audit must not break the command path.
func (l *Logger) LogAction(ctx context.Context, action, outcome string, latency time.Duration, params map[string]interface{}) {
	entry := Entry{
		Timestamp: time.Now().UTC(),
		User:      userFrom(ctx),
		Action:    action,
		Params:    params,
		Outcome:   outcome,
		LatencyMs: latency.Milliseconds(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: marshal entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "audit: write entry: %v\n", err)
	}
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

func userFrom(ctx context.Context) string {
	if s, ok := ctx.Value(userKey{}).(string); ok && s != "" {
		return s
	}
	return "unknown"
}
