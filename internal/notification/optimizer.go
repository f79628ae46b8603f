package notification

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// OptimizerConfig configures payload optimization and compression.
type OptimizerConfig struct {
	// MaxMessageLength truncates message-like fields
	MaxMessageLength int
	// UseShortKeys rewrites well-known data keys to short aliases
	UseShortKeys bool
	// CompressionEnabled allows gzip compression of large payloads
	CompressionEnabled bool
	// CompressionThreshold is the minimum serialized size in bytes before
	// compression is attempted
	CompressionThreshold int
}

// DefaultOptimizerConfig returns the optimizer defaults.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		MaxMessageLength:     500,
		UseShortKeys:         true,
		CompressionEnabled:   true,
		CompressionThreshold: 1024,
	}
}

// Compression method names reported in OptimizedPayload.Method.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
)

// OptimizedPayload is a delivery payload after field shortening, removal
// and truncation. Compressed holds the gzip form only when Method is
// "gzip"; otherwise the uncompressed fields are authoritative.
type OptimizedPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`

	Method         string `json:"method,omitempty"`
	OriginalSize   int    `json:"original_size,omitempty"`
	CompressedSize int    `json:"compressed_size,omitempty"`
	Compressed     []byte `json:"-"`
}

// wellKnownKeyAliases is the fixed short-name table for data keys.
// Unmapped keys pass through unchanged for forward compatibility.
var wellKnownKeyAliases = map[string]string{
	"user_id":           "u",
	"post_id":           "p",
	"comment_id":        "c",
	"message_id":        "m",
	"conversation_id":   "cv",
	"notification_type": "t",
	"actor_name":        "an",
	"timestamp":         "ts",
}

// droppedDataKeys are debug/internal keys never forwarded to providers.
var droppedDataKeys = map[string]bool{
	"debug":       true,
	"internal":    true,
	"trace":       true,
	"trace_id":    true,
	"diagnostics": true,
}

// messageLikeKeys are truncated to MaxMessageLength like the body.
var messageLikeKeys = map[string]bool{
	"body":        true,
	"message":     true,
	"content":     true,
	"text":        true,
	"description": true,
}

// PayloadOptimizer shrinks notification payloads before provider calls.
// Safe for concurrent use; it holds no mutable state.
type PayloadOptimizer struct {
	cfg OptimizerConfig
	log *slog.Logger
}

// NewPayloadOptimizer creates an optimizer with the given configuration.
func NewPayloadOptimizer(cfg OptimizerConfig, log *slog.Logger) *PayloadOptimizer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = DefaultOptimizerConfig().MaxMessageLength
	}
	if cfg.CompressionThreshold <= 0 {
		cfg.CompressionThreshold = DefaultOptimizerConfig().CompressionThreshold
	}
	return &PayloadOptimizer{cfg: cfg, log: log}
}

// Optimize drops blank and internal data fields, rewrites well-known keys
// to short aliases, and truncates message-like fields.
func (o *PayloadOptimizer) Optimize(title, body string, data map[string]string) OptimizedPayload {
	out := OptimizedPayload{
		Title: title,
		Body:  truncateWithEllipsis(body, o.cfg.MaxMessageLength),
	}

	if len(data) > 0 {
		optimized := make(map[string]string, len(data))
		for key, value := range data {
			if strings.TrimSpace(value) == "" {
				continue
			}
			if droppedDataKeys[strings.ToLower(key)] {
				continue
			}
			if messageLikeKeys[strings.ToLower(key)] {
				value = truncateWithEllipsis(value, o.cfg.MaxMessageLength)
			}
			if o.cfg.UseShortKeys {
				if alias, ok := wellKnownKeyAliases[key]; ok {
					key = alias
				}
			}
			optimized[key] = value
		}
		if len(optimized) > 0 {
			out.Data = optimized
		}
	}

	return out
}

// minCompressionGain is the relative size reduction gzip must achieve;
// the compressed form is discarded unless it shrinks by at least 10%.
const minCompressionGain = 0.9

// Compress attempts gzip compression of the payload when enabled and the
// serialized form reaches the configured threshold. The compressed form is
// kept only when it beats minCompressionGain; otherwise the payload reverts
// to its uncompressed representation.
func (o *PayloadOptimizer) Compress(p *OptimizedPayload) error {
	serialized, err := json.Marshal(struct {
		Title string            `json:"title"`
		Body  string            `json:"body"`
		Data  map[string]string `json:"data,omitempty"`
	}{p.Title, p.Body, p.Data})
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %w", err)
	}

	p.OriginalSize = len(serialized)
	p.Method = CompressionNone
	p.CompressedSize = p.OriginalSize
	p.Compressed = nil

	if !o.cfg.CompressionEnabled || len(serialized) < o.cfg.CompressionThreshold {
		return nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(serialized); err != nil {
		return fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize compressed payload: %w", err)
	}

	if float64(buf.Len()) >= minCompressionGain*float64(p.OriginalSize) {
		o.log.Debug("compression gain below threshold, keeping uncompressed payload",
			"original_size", p.OriginalSize, "compressed_size", buf.Len())
		return nil
	}

	p.Method = CompressionGzip
	p.CompressedSize = buf.Len()
	p.Compressed = buf.Bytes()
	return nil
}

// truncateWithEllipsis hard-truncates s to max bytes, marking the cut with
// an ellipsis when it fits. The cut always lands on a rune boundary so the
// result stays valid UTF-8.
func truncateWithEllipsis(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max > 3 {
		return cutAtRuneBoundary(s, max-3) + "..."
	}
	return cutAtRuneBoundary(s, max)
}

// cutAtRuneBoundary returns the longest prefix of s that is at most max
// bytes and does not split a rune.
func cutAtRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
