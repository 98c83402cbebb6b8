package logging

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// Redactor wraps an io.Writer and replaces tracked secret values before
// they are written. Safe for concurrent use.
type Redactor struct {
	underlying io.Writer
	mu         sync.Mutex
	needles    [][]byte
}

// NewRedactor tracks every non-empty value in secrets, both raw and as the
// zap JSON encoder escapes it.
func NewRedactor(w io.Writer, secrets []string) *Redactor {
	r := &Redactor{underlying: w}
	r.Track(secrets...)
	return r
}

// Track registers further values for redaction.
func (r *Redactor) Track(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, value := range values {
		if value == "" {
			continue
		}
		r.needles = append(r.needles, []byte(value))
		if escaped := jsonEscape(value); escaped != value {
			r.needles = append(r.needles, []byte(escaped))
		}
	}
	// longest first so a secret containing another is replaced whole
	sort.SliceStable(r.needles, func(i, j int) bool {
		return len(r.needles[i]) > len(r.needles[j])
	})
}

// Write implements io.Writer. It reports len(p) on success even when the
// redacted output differs in length.
func (r *Redactor) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := p
	for _, needle := range r.needles {
		if bytes.Contains(out, needle) {
			out = bytes.ReplaceAll(out, needle, []byte(redacted))
		}
	}

	if _, err := r.underlying.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Sync flushes the underlying writer when it supports it.
func (r *Redactor) Sync() error {
	if s, ok := r.underlying.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// jsonEscape returns s as it appears inside a string literal written by
// zap's JSON encoder, which escapes less than encoding/json does.
func jsonEscape(s string) string {
	const (
		prefix = `{"v":"`
		suffix = "\"}\n"
	)
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{LineEnding: "\n"})
	buf, err := enc.EncodeEntry(zapcore.Entry{}, []zapcore.Field{zap.String("v", s)})
	if err != nil {
		return s
	}
	defer buf.Free()

	out := buf.String()
	if !strings.HasPrefix(out, prefix) || !strings.HasSuffix(out, suffix) {
		return s
	}
	return out[len(prefix) : len(out)-len(suffix)]
}
