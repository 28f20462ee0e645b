package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/loupe-view/loupe/internal/session"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if _, err := database.MigrateUp(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func seedSession(t *testing.T, database *DB) string {
	t.Helper()

	sessions := NewSessionRepository(database)
	record := &SessionRecord{TranscriptPath: "/tmp/session.jsonl"}
	if err := sessions.Upsert(context.Background(), record); err != nil {
		t.Fatalf("upsert session: %v", err)
	}
	return record.ID
}

func storedMessage(i int) session.Message {
	return session.Message{
		ID:        fmt.Sprintf("m%03d", i),
		Type:      session.MessageTypeAssistant,
		Content:   fmt.Sprintf("message %d", i),
		Timestamp: time.Date(2026, 3, 1, 9, 0, i, 0, time.UTC),
	}
}

func TestMessageRepositorySaveAndList(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	sessionID := seedSession(t, database)
	repo := NewMessageRepository(database)

	batch := []session.Message{
		{
			ID:        "m1",
			Type:      session.MessageTypeUser,
			Content:   "why does the watcher leak goroutines?",
			Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:             "t1",
			Type:           session.MessageTypeTool,
			Content:        "grep watcher",
			Timestamp:      time.Date(2026, 3, 1, 9, 0, 1, 0, time.UTC),
			ToolName:       "grep",
			ToolInput:      `{"pattern":"watcher"}`,
			ToolOutput:     "3 matches",
			ToolDurationMs: 120,
		},
	}

	if err := repo.SaveBatch(ctx, sessionID, batch); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	page, err := repo.ListBefore(ctx, sessionID, 0, 10)
	if err != nil {
		t.Fatalf("ListBefore: %v", err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(page.Messages))
	}
	if page.HasMore {
		t.Fatal("expected no older history")
	}
	if page.Messages[0].ID != "m1" || page.Messages[1].ID != "t1" {
		t.Fatalf("messages out of order: %s, %s", page.Messages[0].ID, page.Messages[1].ID)
	}

	got := page.Messages[1]
	if got.ToolName != "grep" || got.ToolOutput != "3 matches" || got.ToolDurationMs != 120 {
		t.Fatalf("tool fields not round-tripped: %+v", got)
	}
}

func TestMessageRepositorySaveBatchSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	sessionID := seedSession(t, database)
	repo := NewMessageRepository(database)

	first := []session.Message{storedMessage(1), storedMessage(2)}
	if err := repo.SaveBatch(ctx, sessionID, first); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	// Replaying m002 alongside a new message must not duplicate it.
	second := []session.Message{storedMessage(2), storedMessage(3)}
	if err := repo.SaveBatch(ctx, sessionID, second); err != nil {
		t.Fatalf("SaveBatch replay: %v", err)
	}

	count, err := repo.Count(ctx, sessionID)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 messages, got %d", count)
	}

	page, err := repo.ListBefore(ctx, sessionID, 0, 10)
	if err != nil {
		t.Fatalf("ListBefore: %v", err)
	}
	for i, want := range []string{"m001", "m002", "m003"} {
		if page.Messages[i].ID != want {
			t.Fatalf("position %d: got %s, want %s", i, page.Messages[i].ID, want)
		}
	}
}

func TestMessageRepositoryCursorPaging(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	sessionID := seedSession(t, database)
	repo := NewMessageRepository(database)

	var all []session.Message
	for i := 1; i <= 7; i++ {
		all = append(all, storedMessage(i))
	}
	if err := repo.SaveBatch(ctx, sessionID, all); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	// Newest page.
	page, err := repo.ListBefore(ctx, sessionID, 0, 3)
	if err != nil {
		t.Fatalf("ListBefore: %v", err)
	}
	if len(page.Messages) != 3 || !page.HasMore {
		t.Fatalf("unexpected first page: len=%d hasMore=%v", len(page.Messages), page.HasMore)
	}
	if page.Messages[0].ID != "m005" || page.Messages[2].ID != "m007" {
		t.Fatalf("unexpected first page window: %s..%s", page.Messages[0].ID, page.Messages[2].ID)
	}

	// Walk backwards until exhausted.
	var walked []string
	for i := len(page.Messages) - 1; i >= 0; i-- {
		walked = append(walked, page.Messages[i].ID)
	}
	cursor := page.OldestSeq
	for {
		older, err := repo.ListBefore(ctx, sessionID, cursor, 3)
		if err != nil {
			t.Fatalf("ListBefore cursor=%d: %v", cursor, err)
		}
		if len(older.Messages) == 0 {
			break
		}
		for i := len(older.Messages) - 1; i >= 0; i-- {
			walked = append(walked, older.Messages[i].ID)
		}
		if !older.HasMore {
			break
		}
		cursor = older.OldestSeq
	}

	if len(walked) != 7 {
		t.Fatalf("expected to walk 7 messages, got %d (%v)", len(walked), walked)
	}
	if walked[0] != "m007" || walked[6] != "m001" {
		t.Fatalf("unexpected walk order: %v", walked)
	}
}

func TestMessageRepositoryGet(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	sessionID := seedSession(t, database)
	repo := NewMessageRepository(database)

	if err := repo.SaveBatch(ctx, sessionID, []session.Message{storedMessage(1)}); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	got, err := repo.Get(ctx, sessionID, "m001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "message 1" {
		t.Fatalf("unexpected content: %q", got.Content)
	}

	if _, err := repo.Get(ctx, sessionID, "missing"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestSessionRepositoryUpsert(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	sessions := NewSessionRepository(database)

	record := &SessionRecord{TranscriptPath: "/work/debug.jsonl"}
	if err := sessions.Upsert(ctx, record); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if record.ID == "" {
		t.Fatal("Upsert did not assign an ID")
	}

	found, err := sessions.FindByTranscript(ctx, "/work/debug.jsonl")
	if err != nil {
		t.Fatalf("FindByTranscript: %v", err)
	}
	if found.ID != record.ID {
		t.Fatalf("expected session %s, got %s", record.ID, found.ID)
	}

	// Reopening the same session keeps the identity.
	again := &SessionRecord{ID: record.ID, TranscriptPath: "/work/debug.jsonl"}
	if err := sessions.Upsert(ctx, again); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}

	if _, err := sessions.Get(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	ctx := context.Background()

	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()

	applied, err := database.MigrateUp(ctx)
	if err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	if applied == 0 {
		t.Fatal("expected migrations to apply on fresh database")
	}

	again, err := database.MigrateUp(ctx)
	if err != nil {
		t.Fatalf("MigrateUp again: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected no migrations on second run, got %d", again)
	}
}
