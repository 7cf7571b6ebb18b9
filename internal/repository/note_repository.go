package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"notevault-server/internal/domain"
)

type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	FindByID(ctx context.Context, userID, noteID string) (*domain.Note, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Note, error)
	Search(ctx context.Context, userID, keyword string) ([]*domain.Note, error)
	ListVersions(ctx context.Context, userID, noteID string) ([]*domain.NoteVersion, error)
	SoftDelete(ctx context.Context, userID, noteID string) error
	Mutate(ctx context.Context, fn func(tx NoteTx) error) error
}

// NoteTx is the transactional slice of the store used by versioned
// mutations. All methods run inside the single transaction opened by
// Mutate; if the callback returns an error the whole transaction is
// rolled back.
type NoteTx interface {
	FindByID(userID, noteID string) (*domain.Note, error)
	ArchiveVersion(v *domain.NoteVersion) error
	FindVersion(userID, noteID string, version int64) (*domain.NoteVersion, error)
	// WriteVersioned persists the note's title, content, version and
	// updated_at, conditional on the stored version still being
	// expectedVersion. A concurrent mutation that commits first makes the
	// condition fail, which surfaces as domain.ErrConflict.
	WriteVersioned(note *domain.Note, expectedVersion int64) error
}

type noteRepository struct {
	db *sql.DB
}

func NewNoteRepository(db *sql.DB) NoteRepository {
	return &noteRepository{db: db}
}

const noteColumns = "id, user_id, title, content, version, is_deleted, created_at, updated_at"

func scanNote(row interface{ Scan(...any) error }) (*domain.Note, error) {
	var n domain.Note
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.Version, &n.IsDeleted, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *noteRepository) Create(ctx context.Context, note *domain.Note) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO notes ("+noteColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		note.ID, note.UserID, note.Title, note.Content, note.Version, note.IsDeleted, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

func (r *noteRepository) FindByID(ctx context.Context, userID, noteID string) (*domain.Note, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE id = ? AND user_id = ? AND is_deleted = 0",
		noteID, userID,
	)

	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return note, nil
}

func (r *noteRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE user_id = ? AND is_deleted = 0 ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	return collectNotes(rows)
}

// likeEscaper neutralizes LIKE wildcards so keywords match as plain substrings.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *noteRepository) Search(ctx context.Context, userID, keyword string) ([]*domain.Note, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(keyword)) + "%"

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE user_id = ? AND is_deleted = 0 AND (LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(content) LIKE ? ESCAPE '\\') ORDER BY created_at DESC",
		userID, pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}
	defer rows.Close()

	return collectNotes(rows)
}

func collectNotes(rows *sql.Rows) ([]*domain.Note, error) {
	var notes []*domain.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	return notes, nil
}

func (r *noteRepository) ListVersions(ctx context.Context, userID, noteID string) ([]*domain.NoteVersion, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT note_id, user_id, title, content, version, created_at FROM note_versions WHERE note_id = ? AND user_id = ? ORDER BY version DESC",
		noteID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*domain.NoteVersion
	for rows.Next() {
		var v domain.NoteVersion
		if err := rows.Scan(&v.NoteID, &v.UserID, &v.Title, &v.Content, &v.Version, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read versions: %w", err)
	}
	return versions, nil
}

func (r *noteRepository) SoftDelete(ctx context.Context, userID, noteID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE notes SET is_deleted = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ? AND is_deleted = 0",
		noteID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *noteRepository) Mutate(ctx context.Context, fn func(tx NoteTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&noteTx{ctx: ctx, tx: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type noteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *noteTx) FindByID(userID, noteID string) (*domain.Note, error) {
	row := t.tx.QueryRowContext(t.ctx,
		"SELECT "+noteColumns+" FROM notes WHERE id = ? AND user_id = ? AND is_deleted = 0",
		noteID, userID,
	)

	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return note, nil
}

func (t *noteTx) ArchiveVersion(v *domain.NoteVersion) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO note_versions (note_id, user_id, title, content, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (note_id, version) DO UPDATE SET
		   title = excluded.title,
		   content = excluded.content,
		   created_at = excluded.created_at`,
		v.NoteID, v.UserID, v.Title, v.Content, v.Version, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive version: %w", err)
	}
	return nil
}

func (t *noteTx) FindVersion(userID, noteID string, version int64) (*domain.NoteVersion, error) {
	row := t.tx.QueryRowContext(t.ctx,
		"SELECT note_id, user_id, title, content, version, created_at FROM note_versions WHERE note_id = ? AND user_id = ? AND version = ?",
		noteID, userID, version,
	)

	var v domain.NoteVersion
	err := row.Scan(&v.NoteID, &v.UserID, &v.Title, &v.Content, &v.Version, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find version: %w", err)
	}
	return &v, nil
}

func (t *noteTx) WriteVersioned(note *domain.Note, expectedVersion int64) error {
	res, err := t.tx.ExecContext(t.ctx,
		"UPDATE notes SET title = ?, content = ?, version = ?, updated_at = ? WHERE id = ? AND user_id = ? AND version = ? AND is_deleted = 0",
		note.Title, note.Content, note.Version, note.UpdatedAt, note.ID, note.UserID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	if affected == 0 {
		return domain.ErrConflict
	}
	return nil
}
