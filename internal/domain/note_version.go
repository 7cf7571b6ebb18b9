package domain

import "time"

// NoteVersion is an immutable snapshot of what a note looked like before
// the mutation that superseded it. At most one snapshot exists per
// (NoteID, Version) pair.
type NoteVersion struct {
	NoteID    string    `json:"note_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot captures a note's current state as a version record, taken
// just before the note is overwritten.
func Snapshot(n *Note) *NoteVersion {
	return &NoteVersion{
		NoteID:    n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Content:   n.Content,
		Version:   n.Version,
		CreatedAt: time.Now(),
	}
}
