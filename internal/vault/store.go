package vault

import (
	"crypto/rand"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/ixoworld/datavault/internal/vaulterr"
)

// storedEntry is the immutable snapshot swapped atomically by the
// TTL-shrink path. Only the deadline ever differs between snapshots of
// the same handle; FullData and the cached Metadata are never mutated.
type storedEntry struct {
	entry Entry
}

// record is one handle's slot. Its current snapshot is swapped via
// compare-and-swap so the read-validate-shrink path (spec.md §4.2, §5)
// never holds a lock across the comparison and the update.
type record struct {
	value atomic.Pointer[storedEntry]
}

// Store is the TTL-governed, ownership-and-token authenticated key-value
// store of typed tabular blobs (spec.md §4.2). There is no Redis client
// anywhere in the retrieved corpus (see DESIGN.md); Store is the
// in-process backend standing in for the `data-vault:<handleId>` Redis
// key space named in spec.md §6, reaped on a ticker the way
// storage/badger's GCRunner reaps BadgerDB value logs.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record

	maxInlineRows   int
	maxInlineBytes  int
	maxInlineTokens int
	ttl             time.Duration
	gracePeriod     time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewStore constructs a Store with the given defaults (spec.md §4.2:
// R=100, B=51200, K=10000, T=1800s, gracePeriod=300s, all configurable),
// and starts its background TTL reaper.
func NewStore(maxInlineRows, maxInlineBytes, maxInlineTokens int, ttl, gracePeriod time.Duration) *Store {
	s := &Store{
		records:         make(map[string]*record),
		maxInlineRows:   maxInlineRows,
		maxInlineBytes:  maxInlineBytes,
		maxInlineTokens: maxInlineTokens,
		ttl:             ttl,
		gracePeriod:     gracePeriod,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
	go s.reap(30 * time.Second)
	return s
}

// Close stops the background reaper. Safe to call once.
func (s *Store) Close() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Store) reap(interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *Store) sweepExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for handle, rec := range s.records {
		snap := rec.value.Load()
		if snap == nil || now.After(snap.entry.deadline) {
			delete(s.records, handle)
		}
	}
}

// ShouldOffload reports whether data should move to the vault, per
// spec.md §4.2: true iff data is a non-empty array and row count > R, or
// serialized bytes > B, or estimated tokens (bytes/4) > K.
func (s *Store) ShouldOffload(data any) bool {
	rows, ok := data.([]any)
	if !ok || len(rows) == 0 {
		return false
	}
	if len(rows) > s.maxInlineRows {
		return true
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return false
	}
	size := len(raw)
	if size > s.maxInlineBytes {
		return true
	}
	if size/4 > s.maxInlineTokens {
		return true
	}
	return false
}

// Put mints a handle and token, computes metadata, and stores the entry
// with TTL T. Refuses empty input per invariant 2 (spec.md §3).
func (s *Store) Put(rows []Row, ownerID, sessionID, sourceTool string, dataSource DataSource, semantics *Semantics) (string, MetadataEnvelope, error) {
	if len(rows) == 0 {
		return "", MetadataEnvelope{}, vaulterr.NewValidationError("vault put requires at least one row")
	}

	// handleID is time-sortable (oklog/ulid) so handles minted close
	// together sort adjacently in logs and debugging tools; the fetch
	// token stays a uuid since it is a secret, not an identifier, and
	// sortability there would only help an attacker.
	entropy := ulid.Monotonic(rand.Reader, 0)
	handleID := "vault-" + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
	token := uuid.NewString()

	schema, stats, sampleRows, emptyNote := ExtractMetadata(rows)
	note := emptyNote
	if note == "" {
		note = "data offloaded to vault; use handleId and fetchToken to query or retrieve it."
	}

	envelope := MetadataEnvelope{
		HandleID:    handleID,
		FetchToken:  token,
		SourceTool:  sourceTool,
		Schema:      schema,
		RowCount:    len(rows),
		SampleRows:  sampleRows,
		ColumnStats: stats,
		DataSource:  dataSource,
		Semantics:   semantics,
		Offloaded:   true,
		Note:        note,
	}

	entry := Entry{
		FullData:    rows,
		OwnerID:     ownerID,
		SessionID:   sessionID,
		CreatedAt:   time.Now(),
		AccessToken: token,
		Metadata:    envelope,
		deadline:    time.Now().Add(s.ttl),
	}

	rec := &record{}
	rec.value.Store(&storedEntry{entry: entry})

	s.mu.Lock()
	s.records[handleID] = rec
	s.mu.Unlock()

	return handleID, envelope, nil
}

// maxShrinkAttempts bounds the optimistic-concurrency retry to exactly
// one retry after the first attempt, per spec.md §4.2/§5.
const maxShrinkAttempts = 2

// Get returns the stored rows iff ownership and token match and the
// entry is live, atomically shrinking the remaining TTL to gracePeriod
// on the first successful read (never lengthening it). Any mismatch —
// missing handle, wrong owner, wrong token, or expiry — is surfaced
// identically as "not found" (ok=false), per invariant 3.
func (s *Store) Get(handleID, principal, token string) ([]Row, bool) {
	rows, _, ok := s.getWithMetadata(handleID, principal, token)
	return rows, ok
}

// GetWithMetadata is Get plus the cached metadata envelope.
func (s *Store) GetWithMetadata(handleID, principal, token string) ([]Row, MetadataEnvelope, bool) {
	return s.getWithMetadata(handleID, principal, token)
}

func (s *Store) getWithMetadata(handleID, principal, token string) ([]Row, MetadataEnvelope, bool) {
	s.mu.RLock()
	rec, exists := s.records[handleID]
	s.mu.RUnlock()
	if !exists {
		return nil, MetadataEnvelope{}, false
	}

	now := time.Now()
	for attempt := 0; attempt < maxShrinkAttempts; attempt++ {
		old := rec.value.Load()
		if old == nil {
			return nil, MetadataEnvelope{}, false
		}
		if now.After(old.entry.deadline) {
			return nil, MetadataEnvelope{}, false
		}
		if old.entry.OwnerID != principal || old.entry.AccessToken != token {
			return nil, MetadataEnvelope{}, false
		}

		newDeadline := old.entry.deadline
		if grace := now.Add(s.gracePeriod); grace.Before(newDeadline) {
			newDeadline = grace
		}
		if newDeadline.Equal(old.entry.deadline) {
			// Already within grace period; nothing to shrink.
			return old.entry.FullData, old.entry.Metadata, true
		}

		shrunk := old.entry
		shrunk.deadline = newDeadline
		if rec.value.CompareAndSwap(old, &storedEntry{entry: shrunk}) {
			return shrunk.FullData, shrunk.Metadata, true
		}
		// Concurrent mutation observed; retry once per spec.md §5.
	}
	// Two conflicts in a row: surface as not-found rather than livelock.
	return nil, MetadataEnvelope{}, false
}

// ValidateToken checks the token without mutating TTL.
func (s *Store) ValidateToken(handleID, token string) bool {
	s.mu.RLock()
	rec, exists := s.records[handleID]
	s.mu.RUnlock()
	if !exists {
		return false
	}
	snap := rec.value.Load()
	if snap == nil || time.Now().After(snap.entry.deadline) {
		return false
	}
	return snap.entry.AccessToken == token
}
