// Package cache stores rendered query responses so repeated questions over
// the same documents skip the AI provider entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// DefaultTTL is how long cached responses stay valid.
const DefaultTTL = time.Hour

// Store is a response cache backend.
type Store interface {
	// Get returns the cached payload, or found=false on miss or expiry.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores a payload under key, evicting if the cache is full.
	// ttl <= 0 uses the backend's default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes one entry. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Stats reports hit/miss counters for the stats endpoint.
	Stats(ctx context.Context) (Stats, error)
	// Close releases backend resources.
	Close() error
}

// Stats is the cache effectiveness snapshot.
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Evictions     int64   `json:"evictions"`
	Size          int     `json:"size"`
	MaxSize       int     `json:"maxSize"`
	HitRate       float64 `json:"hitRate"`
	TotalRequests int64   `json:"totalRequests"`
}

// keyPayload is the canonical input hashed into a cache key. JSON encoding
// sorts map keys, so equal settings always produce equal bytes.
type keyPayload struct {
	Question string         `json:"question"`
	Context  string         `json:"context"`
	Settings map[string]any `json:"settings,omitempty"`
}

// GenerateKey derives a deterministic cache key. The question is normalized
// by trimming and lowercasing; context file names are order-sensitive and
// joined verbatim.
func GenerateKey(question string, contextFiles []string, settings map[string]any) string {
	payload := keyPayload{
		Question: strings.ToLower(strings.TrimSpace(question)),
		Context:  strings.Join(contextFiles, "|"),
		Settings: settings,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		// Only unmarshalable settings values can land here; fall back to the
		// question alone rather than failing the request.
		raw = []byte(payload.Question)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
