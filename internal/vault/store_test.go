package vault

import (
	"testing"
	"time"

	"github.com/ixoworld/datavault/internal/config"
)

func newTestStore() *Store {
	return NewStore(
		config.DefaultMaxInlineRows,
		config.DefaultMaxInlineBytes,
		config.DefaultMaxInlineTokens,
		config.DefaultTTLSeconds*time.Second,
		config.DefaultGraceSeconds*time.Second,
	)
}

func TestShouldOffload_RowCountThreshold(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	small := make([]any, config.DefaultMaxInlineRows)
	if s.ShouldOffload(small) {
		t.Error("ShouldOffload(R rows) = true, want false")
	}

	large := make([]any, config.DefaultMaxInlineRows+1)
	if !s.ShouldOffload(large) {
		t.Error("ShouldOffload(R+1 rows) = false, want true")
	}
}

func TestShouldOffload_NotAnArray(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	if s.ShouldOffload(map[string]any{"a": 1}) {
		t.Error("ShouldOffload(non-array) = true, want false")
	}
}

func TestShouldOffload_EmptyArrayNeverOffloaded(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	if s.ShouldOffload([]any{}) {
		t.Error("ShouldOffload(empty array) = true, want false")
	}
}

func TestShouldOffload_ByteThreshold(t *testing.T) {
	s := NewStore(1000, 100, 1000000, time.Hour, time.Minute)
	defer s.Close()

	hugeRow := map[string]any{"blob": make([]any, 200)}
	rows := []any{hugeRow}
	if !s.ShouldOffload(rows) {
		t.Error("ShouldOffload(huge row) = false, want true (bytes)")
	}
}

func TestPut_RefusesEmptyRows(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	if _, _, err := s.Put(nil, "owner", "session", "tool", DataSource{}, nil); err == nil {
		t.Error("Put(empty rows) expected error, got nil")
	}
}

func TestPut_ThenGet_RoundTrip(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	rows := []Row{{{"id", float64(1)}}, {{"id", float64(2)}}}
	handle, envelope, err := s.Put(rows, "owner-1", "session-1", "search_orders", DataSource{}, nil)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if envelope.RowCount != 2 {
		t.Errorf("envelope.RowCount = %d, want 2", envelope.RowCount)
	}

	got, ok := s.Get(handle, "owner-1", envelope.FetchToken)
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if len(got) != 2 {
		t.Errorf("Get() rows = %d, want 2", len(got))
	}
}

func TestGet_WrongOwnerReturnsNotFound(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	rows := []Row{{{"id", float64(1)}}}
	handle, envelope, _ := s.Put(rows, "owner-1", "session-1", "tool", DataSource{}, nil)

	if _, ok := s.Get(handle, "owner-2", envelope.FetchToken); ok {
		t.Error("Get() with wrong owner ok = true, want false")
	}
}

func TestGet_WrongTokenReturnsNotFound(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	rows := []Row{{{"id", float64(1)}}}
	handle, _, _ := s.Put(rows, "owner-1", "session-1", "tool", DataSource{}, nil)

	if _, ok := s.Get(handle, "owner-1", "wrong-token"); ok {
		t.Error("Get() with wrong token ok = true, want false")
	}
}

func TestGet_UnknownHandleReturnsNotFound(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	if _, ok := s.Get("vault-does-not-exist", "owner-1", "token"); ok {
		t.Error("Get() unknown handle ok = true, want false")
	}
}

func TestGet_ExpiredEntryReturnsNotFound(t *testing.T) {
	s := NewStore(100, 51200, 10000, time.Millisecond, time.Millisecond)
	defer s.Close()

	rows := []Row{{{"id", float64(1)}}}
	handle, envelope, _ := s.Put(rows, "owner-1", "session-1", "tool", DataSource{}, nil)

	time.Sleep(10 * time.Millisecond)

	if _, ok := s.Get(handle, "owner-1", envelope.FetchToken); ok {
		t.Error("Get() on expired entry ok = true, want false")
	}
}

func TestGet_ShrinksTTLToGracePeriodAfterFirstRead(t *testing.T) {
	s := NewStore(100, 51200, 10000, time.Hour, 50*time.Millisecond)
	defer s.Close()

	rows := []Row{{{"id", float64(1)}}}
	handle, envelope, _ := s.Put(rows, "owner-1", "session-1", "tool", DataSource{}, nil)

	if _, ok := s.Get(handle, "owner-1", envelope.FetchToken); !ok {
		t.Fatal("first Get() should succeed")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := s.Get(handle, "owner-1", envelope.FetchToken); ok {
		t.Error("Get() after grace period elapsed should report not found")
	}
}

func TestValidateToken_DoesNotMutateTTL(t *testing.T) {
	s := NewStore(100, 51200, 10000, time.Hour, 50*time.Millisecond)
	defer s.Close()

	rows := []Row{{{"id", float64(1)}}}
	handle, envelope, _ := s.Put(rows, "owner-1", "session-1", "tool", DataSource{}, nil)

	if !s.ValidateToken(handle, envelope.FetchToken) {
		t.Error("ValidateToken() = false, want true")
	}

	time.Sleep(100 * time.Millisecond)

	// Grace period never applied since only ValidateToken was called;
	// entry still has its full original TTL (1 hour), so it is still live.
	if _, ok := s.Get(handle, "owner-1", envelope.FetchToken); !ok {
		t.Error("Get() after ValidateToken-only access should still find a live entry")
	}
}

func TestValidateToken_WrongTokenFalse(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	rows := []Row{{{"id", float64(1)}}}
	handle, _, _ := s.Put(rows, "owner-1", "session-1", "tool", DataSource{}, nil)

	if s.ValidateToken(handle, "wrong") {
		t.Error("ValidateToken() with wrong token = true, want false")
	}
}

func TestPut_MintsDistinctHandlesEachCall(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	rows := []Row{{{"id", float64(1)}}}
	h1, _, _ := s.Put(rows, "owner-1", "session-1", "tool", DataSource{}, nil)
	h2, _, _ := s.Put(rows, "owner-1", "session-1", "tool", DataSource{}, nil)

	if h1 == h2 {
		t.Error("Put() minted the same handle twice")
	}
}
