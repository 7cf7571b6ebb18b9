package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"notevault-server/internal/cache"
	"notevault-server/internal/domain"
	"notevault-server/internal/repository"

	"github.com/google/uuid"
)

// NoteNotifier receives committed note changes for live delivery. It must
// never block; failures there cannot fail a mutation.
type NoteNotifier interface {
	NoteUpdated(userID string, note *domain.NoteResponse)
	NoteDeleted(userID, noteID string)
}

// NoteService applies all note mutations as conflict-checked transitions
// against the repository's transactions. It holds no per-call state; one
// value is shared by every request handler.
type NoteService struct {
	repo     repository.NoteRepository
	cache    cache.Cache
	notifier NoteNotifier
	notesTTL time.Duration
}

func NewNoteService(repo repository.NoteRepository, c cache.Cache, notifier NoteNotifier, notesTTL time.Duration) *NoteService {
	return &NoteService{
		repo:     repo,
		cache:    c,
		notifier: notifier,
		notesTTL: notesTTL,
	}
}

func notesCacheKey(userID string) string {
	return "notes:" + userID
}

func (s *NoteService) Create(ctx context.Context, userID string, req *domain.CreateNoteRequest) (*domain.NoteResponse, error) {
	if userID == "" {
		return nil, domain.MissingField("user ID")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, domain.MissingField("title")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, domain.MissingField("content")
	}

	now := time.Now()
	note := &domain.Note{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     req.Title,
		Content:   req.Content,
		Version:   1,
		IsDeleted: false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, note); err != nil {
		return nil, err
	}

	resp := note.Response()
	s.invalidate(ctx, userID)
	if s.notifier != nil {
		s.notifier.NoteUpdated(userID, resp)
	}

	return resp, nil
}

func (s *NoteService) GetByID(ctx context.Context, userID, noteID string) (*domain.NoteResponse, error) {
	if userID == "" {
		return nil, domain.MissingField("user ID")
	}
	if noteID == "" {
		return nil, domain.MissingField("note ID")
	}

	note, err := s.repo.FindByID(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}

	return note.Response(), nil
}

// List serves the owner's non-deleted notes newest-first, cache-aside: a
// cache read error counts as a miss and a cache write error is logged,
// never surfaced, since the store result is already in hand.
func (s *NoteService) List(ctx context.Context, userID string) ([]*domain.NoteResponse, error) {
	if userID == "" {
		return nil, domain.MissingField("user ID")
	}

	key := notesCacheKey(userID)

	if data, err := s.cache.Get(ctx, key); err != nil {
		log.Printf("cache read failed for %s: %v", key, err)
	} else if data != nil {
		var cached []*domain.NoteResponse
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		log.Printf("discarding malformed cache entry %s", key)
	}

	notes, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]*domain.NoteResponse, 0, len(notes))
	for _, n := range notes {
		responses = append(responses, n.Response())
	}

	if data, err := json.Marshal(responses); err == nil {
		if err := s.cache.Set(ctx, key, data, s.notesTTL); err != nil {
			log.Printf("cache write failed for %s: %v", key, err)
		}
	}

	return responses, nil
}

// Update is the optimistic-concurrency path. Inside one transaction the
// current row is checked against expectedVersion, its state is archived
// as a snapshot, and the new content is written at expectedVersion+1 with
// the write itself still conditional on the old version. Two racing
// updates with the same expectedVersion therefore commit exactly once;
// the loser observes domain.ErrConflict.
func (s *NoteService) Update(ctx context.Context, userID, noteID string, req *domain.UpdateNoteRequest) (*domain.NoteResponse, error) {
	if userID == "" {
		return nil, domain.MissingField("user ID")
	}
	if noteID == "" {
		return nil, domain.MissingField("note ID")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, domain.MissingField("title")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, domain.MissingField("content")
	}
	if req.ExpectedVersion <= 0 {
		return nil, domain.MissingField("expected version")
	}

	var updated *domain.Note

	err := s.repo.Mutate(ctx, func(tx repository.NoteTx) error {
		note, err := tx.FindByID(userID, noteID)
		if err != nil {
			return err
		}

		if note.Version != req.ExpectedVersion {
			return fmt.Errorf("expected version %d, found %d: %w", req.ExpectedVersion, note.Version, domain.ErrConflict)
		}

		// Archive the pre-mutation state. The upsert makes a retried
		// partial update converge on a single snapshot row.
		if err := tx.ArchiveVersion(domain.Snapshot(note)); err != nil {
			return err
		}

		note.Title = req.Title
		note.Content = req.Content
		note.Version = req.ExpectedVersion + 1
		note.UpdatedAt = time.Now()

		if err := tx.WriteVersioned(note, req.ExpectedVersion); err != nil {
			return err
		}

		updated = note
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := updated.Response()
	s.invalidate(ctx, userID)
	if s.notifier != nil {
		s.notifier.NoteUpdated(userID, resp)
	}

	return resp, nil
}

// Delete soft-deletes without touching the version counter. An absent,
// foreign-owned, or already-deleted note all fail the conditional write
// the same way.
func (s *NoteService) Delete(ctx context.Context, userID, noteID string) error {
	if userID == "" {
		return domain.MissingField("user ID")
	}
	if noteID == "" {
		return domain.MissingField("note ID")
	}

	if err := s.repo.SoftDelete(ctx, userID, noteID); err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	if s.notifier != nil {
		s.notifier.NoteDeleted(userID, noteID)
	}

	return nil
}

// RevertToVersion restores a snapshot's content as a NEW version
// (currentVersion+1) rather than jumping the counter back to the target.
// Versions stay monotonic for a given note, so an update racing a revert
// can never reuse a version number that already has a snapshot.
func (s *NoteService) RevertToVersion(ctx context.Context, userID, noteID string, targetVersion int64) (*domain.NoteResponse, error) {
	if userID == "" {
		return nil, domain.MissingField("user ID")
	}
	if noteID == "" {
		return nil, domain.MissingField("note ID")
	}
	if targetVersion <= 0 {
		return nil, domain.MissingField("target version")
	}

	var reverted *domain.Note

	err := s.repo.Mutate(ctx, func(tx repository.NoteTx) error {
		note, err := tx.FindByID(userID, noteID)
		if err != nil {
			return err
		}

		if note.Version == targetVersion {
			return domain.ErrSameVersion
		}

		target, err := tx.FindVersion(userID, noteID, targetVersion)
		if err != nil {
			return err
		}

		if err := tx.ArchiveVersion(domain.Snapshot(note)); err != nil {
			return err
		}

		currentVersion := note.Version
		note.Title = target.Title
		note.Content = target.Content
		note.Version = currentVersion + 1
		note.UpdatedAt = time.Now()

		if err := tx.WriteVersioned(note, currentVersion); err != nil {
			return err
		}

		reverted = note
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := reverted.Response()
	s.invalidate(ctx, userID)
	if s.notifier != nil {
		s.notifier.NoteUpdated(userID, resp)
	}

	return resp, nil
}

// ListVersions returns a note's archived snapshots newest-first. The note
// itself must still be visible to the caller; deleted notes keep their
// history rows but expose nothing.
func (s *NoteService) ListVersions(ctx context.Context, userID, noteID string) ([]*domain.NoteVersion, error) {
	if userID == "" {
		return nil, domain.MissingField("user ID")
	}
	if noteID == "" {
		return nil, domain.MissingField("note ID")
	}

	if _, err := s.repo.FindByID(ctx, userID, noteID); err != nil {
		return nil, err
	}

	return s.repo.ListVersions(ctx, userID, noteID)
}

func (s *NoteService) Search(ctx context.Context, userID, keyword string) ([]*domain.NoteResponse, error) {
	if userID == "" {
		return nil, domain.MissingField("user ID")
	}
	if strings.TrimSpace(keyword) == "" {
		return nil, domain.MissingField("keyword")
	}

	notes, err := s.repo.Search(ctx, userID, keyword)
	if err != nil {
		return nil, err
	}

	responses := make([]*domain.NoteResponse, 0, len(notes))
	for _, n := range notes {
		responses = append(responses, n.Response())
	}

	return responses, nil
}

// invalidate is the single post-commit hook every mutating operation
// funnels through. A failed invalidation leaves a stale entry behind the
// TTL at worst; the committed write always wins, so this only logs.
func (s *NoteService) invalidate(ctx context.Context, userID string) {
	key := notesCacheKey(userID)
	if err := s.cache.Delete(ctx, key); err != nil {
		log.Printf("cache invalidation failed for %s: %v", key, err)
	}
}
