package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Status represents the lifecycle state of an idempotency record.
type Status string

const (
	// DefaultTTL is the default duration that idempotency records are retained.
	DefaultTTL = 24 * time.Hour
	// StatusPending indicates that a request has reserved the key but not yet persisted a response.
	StatusPending Status = "pending"
	// StatusCompleted indicates that the response for the key has been stored and can be replayed.
	StatusCompleted Status = "completed"
)

// ReservationState describes the outcome of attempting to reserve an idempotency key.
type ReservationState int

const (
	// ReservationStateNew means the caller owns the key and may continue processing.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means a previous response was found and should be replayed.
	ReservationStateCompleted
	// ReservationStatePending means another request is currently processing this key.
	ReservationStatePending
)

// Reservation is the result of reserving a key, including the stored record if available.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record captures the persisted response metadata for an idempotency key.
type Record struct {
	Key             string              `json:"key"`
	Fingerprint     string              `json:"fingerprint"`
	Status          Status              `json:"status"`
	ResponseStatus  int                 `json:"response_status,omitempty"`
	ResponseHeaders map[string][]string `json:"response_headers,omitempty"`
	ResponseBody    []byte              `json:"response_body,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	ExpiresAt       time.Time           `json:"expires_at"`
}

func (r Record) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Response represents the HTTP response stored for future replays.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists idempotency reservations and responses.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	// CleanupExpired removes at most limit expired records. Stores with native expiry return 0.
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch is returned when an idempotency key is reused with a different request fingerprint.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

func newPendingRecord(key, fingerprint string, now time.Time, ttl time.Duration) Record {
	return Record{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func completeRecord(record Record, resp Response, now time.Time, ttl time.Duration) Record {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.Status = StatusCompleted
	record.ResponseStatus = resp.Status
	record.ResponseHeaders = sanitizeHeaders(resp.Headers)
	record.ResponseBody = nil
	if len(resp.Body) > 0 {
		record.ResponseBody = append([]byte(nil), resp.Body...)
	}
	record.UpdatedAt = now
	record.ExpiresAt = now.Add(ttl)
	return record
}

func reservationFor(record Record, fingerprint string) (Reservation, error) {
	if record.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if record.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Record: record}, nil
	}
	return Reservation{State: ReservationStatePending, Record: record}, nil
}

func storageKey(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sanitizeHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}
	filtered := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if shouldOmitHeader(canonical) {
			continue
		}
		filtered[canonical] = append([]string(nil), values...)
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

func shouldOmitHeader(name string) bool {
	switch strings.ToLower(name) {
	case "content-length", "date", "x-request-id", "connection", "keep-alive", "proxy-authenticate", "proxy-authorization", "te", "trailers", "transfer-encoding", "upgrade":
		return true
	default:
		return false
	}
}

func headersFromRecord(values map[string][]string) http.Header {
	header := make(http.Header, len(values))
	for name, vals := range values {
		header[name] = append([]string(nil), vals...)
	}
	return header
}
