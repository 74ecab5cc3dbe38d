package ledger

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

// setupTestStore connects to the database named by TEST_DATABASE_URL.
// Tests are skipped when no test database is configured.
func setupTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("skipping: TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("skipping: database not available: %v", err)
	}

	clean := func() {
		db.ExecContext(ctx, `DELETE FROM matches WHERE initiator_id LIKE 'test-%' OR receiver_id LIKE 'test-%'`)
	}
	clean()

	t.Cleanup(func() {
		clean()
		db.Close()
	})

	return NewStore(db), ctx
}

func TestCreate_RejectsReversedDuplicate(t *testing.T) {
	store, ctx := setupTestStore(t)

	if _, err := store.Create(ctx, "test-alice", "test-bob", 8.2); err != nil {
		t.Fatalf("first create: %v", err)
	}

	if _, err := store.Create(ctx, "test-bob", "test-alice", 8.2); !errors.Is(err, ErrDuplicate) {
		t.Errorf("reversed create error = %v, want ErrDuplicate", err)
	}

	if _, err := store.Create(ctx, "test-alice", "test-alice", 10); err == nil {
		t.Error("self-match was accepted")
	}
}

func TestPartnersOf_CoversBothDirectionsAndAllStatuses(t *testing.T) {
	store, ctx := setupTestStore(t)

	m1, err := store.Create(ctx, "test-alice", "test-bob", 7.5)
	if err != nil {
		t.Fatalf("create alice-bob: %v", err)
	}
	if _, err := store.Create(ctx, "test-carol", "test-alice", 6.0); err != nil {
		t.Fatalf("create carol-alice: %v", err)
	}

	// A decided match still suppresses re-surfacing.
	if err := store.UpdateStatus(ctx, m1.ID, "test-bob", StatusRejected); err != nil {
		t.Fatalf("update status: %v", err)
	}

	partners, err := store.PartnersOf(ctx, "test-alice")
	if err != nil {
		t.Fatalf("partners of alice: %v", err)
	}
	for _, want := range []string{"test-bob", "test-carol"} {
		if !partners[want] {
			t.Errorf("partner %s missing from %v", want, partners)
		}
	}
}

func TestUpdateStatus_OnlyReceiverDecidesPending(t *testing.T) {
	store, ctx := setupTestStore(t)

	m, err := store.Create(ctx, "test-alice", "test-bob", 9.1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The initiator cannot decide their own match.
	if err := store.UpdateStatus(ctx, m.ID, "test-alice", StatusAccepted); err == nil {
		t.Error("initiator was allowed to decide the match")
	}

	if err := store.UpdateStatus(ctx, m.ID, "test-bob", "ghosted"); err == nil {
		t.Error("invalid status was accepted")
	}

	if err := store.UpdateStatus(ctx, m.ID, "test-bob", StatusAccepted); err != nil {
		t.Fatalf("receiver accept: %v", err)
	}

	// Already decided: a second decision must fail.
	if err := store.UpdateStatus(ctx, m.ID, "test-bob", StatusRejected); err == nil {
		t.Error("decided match was re-decided")
	}
}
