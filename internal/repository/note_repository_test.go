package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"notevault-server/internal/domain"

	"github.com/google/uuid"
)

func newTestRepo(t *testing.T) (NoteRepository, UserRepository) {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// The pool would otherwise hand out fresh, empty in-memory databases.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	return NewNoteRepository(db), NewUserRepository(db)
}

func seedUser(t *testing.T, users UserRepository) *domain.User {
	t.Helper()

	now := time.Now()
	user := &domain.User{
		ID:        uuid.New().String(),
		Email:     uuid.New().String() + "@example.com",
		Password:  "hashed",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func seedNote(t *testing.T, notes NoteRepository, userID, title, content string, createdAt time.Time) *domain.Note {
	t.Helper()

	note := &domain.Note{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		Version:   1,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := notes.Create(context.Background(), note); err != nil {
		t.Fatalf("failed to seed note: %v", err)
	}
	return note
}

func TestNoteRepository_CreateAndFind(t *testing.T) {
	notes, users := newTestRepo(t)
	user := seedUser(t, users)

	note := seedNote(t, notes, user.ID, "hello", "world", time.Now())

	got, err := notes.FindByID(context.Background(), user.ID, note.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Title != "hello" || got.Content != "world" || got.Version != 1 {
		t.Errorf("unexpected note: %+v", got)
	}

	if _, err := notes.FindByID(context.Background(), "someone-else", note.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign owner, got %v", err)
	}
}

func TestNoteRepository_ListOrder(t *testing.T) {
	notes, users := newTestRepo(t)
	user := seedUser(t, users)

	base := time.Now().Add(-time.Hour)
	seedNote(t, notes, user.ID, "oldest", "c", base)
	seedNote(t, notes, user.ID, "newest", "c", base.Add(30*time.Minute))
	seedNote(t, notes, user.ID, "middle", "c", base.Add(10*time.Minute))

	list, err := notes.ListByUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}

	if len(list) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(list))
	}
	if list[0].Title != "newest" || list[2].Title != "oldest" {
		t.Errorf("expected newest-first ordering, got %s..%s", list[0].Title, list[2].Title)
	}
}

func TestNoteRepository_SearchCaseInsensitive(t *testing.T) {
	notes, users := newTestRepo(t)
	user := seedUser(t, users)
	other := seedUser(t, users)

	seedNote(t, notes, user.ID, "Groceries", "Buy MILK and eggs", time.Now())
	seedNote(t, notes, user.ID, "Work", "standup notes", time.Now())
	seedNote(t, notes, other.ID, "milk diary", "not yours", time.Now())

	found, err := notes.Search(context.Background(), user.ID, "milk")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 1 || found[0].Title != "Groceries" {
		t.Errorf("expected the groceries note, got %+v", found)
	}

	found, err = notes.Search(context.Background(), user.ID, "GROCER")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 1 {
		t.Errorf("expected case-insensitive title match, got %d", len(found))
	}
}

func TestNoteRepository_SearchWildcardsAreLiteral(t *testing.T) {
	notes, users := newTestRepo(t)
	user := seedUser(t, users)

	seedNote(t, notes, user.ID, "Progress", "done 100% of the plan", time.Now())
	seedNote(t, notes, user.ID, "Config", "set max_conns to 10", time.Now())
	seedNote(t, notes, user.ID, "Misc", "nothing special", time.Now())

	found, err := notes.Search(context.Background(), user.ID, "100%")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 1 || found[0].Title != "Progress" {
		t.Errorf("percent must match as a plain character, got %+v", found)
	}

	found, err = notes.Search(context.Background(), user.ID, "max_conns")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 1 || found[0].Title != "Config" {
		t.Errorf("underscore must match as a plain character, got %+v", found)
	}

	found, err = notes.Search(context.Background(), user.ID, "%")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 1 || found[0].Title != "Progress" {
		t.Errorf("a bare percent keyword must not match everything, got %d notes", len(found))
	}
}

func TestNoteRepository_SoftDelete(t *testing.T) {
	notes, users := newTestRepo(t)
	user := seedUser(t, users)

	note := seedNote(t, notes, user.ID, "t", "c", time.Now())

	if err := notes.SoftDelete(context.Background(), user.ID, note.ID); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	if _, err := notes.FindByID(context.Background(), user.ID, note.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleted note must read as not found, got %v", err)
	}

	if err := notes.SoftDelete(context.Background(), user.ID, note.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete must fail with ErrNotFound, got %v", err)
	}

	if err := notes.SoftDelete(context.Background(), user.ID, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleting a missing note must fail with ErrNotFound, got %v", err)
	}
}

func TestNoteRepository_WriteVersionedConflict(t *testing.T) {
	notes, users := newTestRepo(t)
	user := seedUser(t, users)

	note := seedNote(t, notes, user.ID, "t", "c", time.Now())

	err := notes.Mutate(context.Background(), func(tx NoteTx) error {
		n, err := tx.FindByID(user.ID, note.ID)
		if err != nil {
			return err
		}
		n.Title = "t2"
		n.Version = 2
		n.UpdatedAt = time.Now()
		return tx.WriteVersioned(n, 1)
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	// A second writer still holding version 1 loses.
	err = notes.Mutate(context.Background(), func(tx NoteTx) error {
		stale := &domain.Note{
			ID: note.ID, UserID: user.ID,
			Title: "t3", Content: "c", Version: 2, UpdatedAt: time.Now(),
		}
		return tx.WriteVersioned(stale, 1)
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	got, err := notes.FindByID(context.Background(), user.ID, note.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Title != "t2" || got.Version != 2 {
		t.Errorf("conflicting write must not be applied, got %+v", got)
	}
}

func TestNoteRepository_ArchiveVersionIdempotent(t *testing.T) {
	notes, users := newTestRepo(t)
	user := seedUser(t, users)

	note := seedNote(t, notes, user.ID, "first", "one", time.Now())

	archive := func(title, content string) {
		t.Helper()
		err := notes.Mutate(context.Background(), func(tx NoteTx) error {
			return tx.ArchiveVersion(&domain.NoteVersion{
				NoteID: note.ID, UserID: user.ID,
				Title: title, Content: content, Version: 1, CreatedAt: time.Now(),
			})
		})
		if err != nil {
			t.Fatalf("ArchiveVersion() error = %v", err)
		}
	}

	// A retried partial update re-archives the same version.
	archive("first", "one")
	archive("first-retried", "one-retried")

	versions, err := notes.ListVersions(context.Background(), user.ID, note.ID)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected exactly 1 snapshot row, got %d", len(versions))
	}
	if versions[0].Title != "first-retried" {
		t.Errorf("re-archival must keep the latest values, got %q", versions[0].Title)
	}
}

func TestNoteRepository_MutateRollsBack(t *testing.T) {
	notes, users := newTestRepo(t)
	user := seedUser(t, users)

	note := seedNote(t, notes, user.ID, "keep", "me", time.Now())

	boom := errors.New("boom")
	err := notes.Mutate(context.Background(), func(tx NoteTx) error {
		n, err := tx.FindByID(user.ID, note.ID)
		if err != nil {
			return err
		}
		if err := tx.ArchiveVersion(domain.Snapshot(n)); err != nil {
			return err
		}
		n.Title = "discarded"
		n.Version = 2
		if err := tx.WriteVersioned(n, 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	got, err := notes.FindByID(context.Background(), user.ID, note.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Title != "keep" || got.Version != 1 {
		t.Errorf("rolled-back write leaked: %+v", got)
	}

	versions, err := notes.ListVersions(context.Background(), user.ID, note.ID)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("rolled-back snapshot leaked: %d rows", len(versions))
	}
}

func TestNoteRepository_FindVersion(t *testing.T) {
	notes, users := newTestRepo(t)
	user := seedUser(t, users)

	note := seedNote(t, notes, user.ID, "t", "c", time.Now())

	err := notes.Mutate(context.Background(), func(tx NoteTx) error {
		if _, err := tx.FindVersion(user.ID, note.ID, 5); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing version, got %v", err)
		}

		if err := tx.ArchiveVersion(&domain.NoteVersion{
			NoteID: note.ID, UserID: user.ID,
			Title: "t", Content: "c", Version: 1, CreatedAt: time.Now(),
		}); err != nil {
			return err
		}

		v, err := tx.FindVersion(user.ID, note.ID, 1)
		if err != nil {
			return err
		}
		if v.Title != "t" {
			t.Errorf("unexpected snapshot: %+v", v)
		}

		// Another owner never sees the snapshot.
		if _, err := tx.FindVersion("someone-else", note.ID, 1); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for foreign owner, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
}
