// Package model defines the core domain types shared by the scanner,
// watcher, event processor, and index store.
package model

import "time"

// FileType classifies an indexed filesystem entry.
type FileType string

const (
	FileTypeRegular   FileType = "regular"
	FileTypeDirectory FileType = "directory"
	FileTypeSymlink   FileType = "symlink"
	FileTypeOther     FileType = "other"
)

// ParseFileType converts a persisted string back into a FileType,
// defaulting unknown values to FileTypeOther.
func ParseFileType(s string) FileType {
	switch FileType(s) {
	case FileTypeRegular, FileTypeDirectory, FileTypeSymlink:
		return FileType(s)
	default:
		return FileTypeOther
	}
}

// FileEntry is a single indexed filesystem object.
//
// Path is the store's unique key; Filename is re-derived from Path's
// basename on every Move. ModifiedTime and IndexedTime are stored at
// second resolution.
type FileEntry struct {
	ID           int64     `json:"id,omitempty"`
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	Size         uint64    `json:"size"`
	ModifiedTime time.Time `json:"modified_time"`
	FileType     FileType  `json:"file_type"`
	IndexedTime  time.Time `json:"indexed_time"`
}

// OperationKind tags the originating intent of an IndexOperation. Add
// and Update are applied identically by the store; the kind is kept
// only so callers and logs can distinguish them.
type OperationKind string

const (
	OpAdd    OperationKind = "add"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
	OpMove   OperationKind = "move"
)

// IndexOperation is a single mutation directed at the index store.
// Exactly one of Entry (Add/Update), Path (Delete), or From/To (Move)
// is meaningful, selected by Kind.
type IndexOperation struct {
	Kind  OperationKind
	Entry FileEntry
	Path  string
	From  string
	To    string
}

// AddOp builds an Add operation for entry.
func AddOp(entry FileEntry) IndexOperation {
	return IndexOperation{Kind: OpAdd, Entry: entry}
}

// UpdateOp builds an Update operation for entry.
func UpdateOp(entry FileEntry) IndexOperation {
	return IndexOperation{Kind: OpUpdate, Entry: entry}
}

// DeleteOp builds a Delete operation for path.
func DeleteOp(path string) IndexOperation {
	return IndexOperation{Kind: OpDelete, Path: path}
}

// MoveOp builds a Move operation from one path to another.
func MoveOp(from, to string) IndexOperation {
	return IndexOperation{Kind: OpMove, From: from, To: to}
}

// UsageStat tracks how often a FileEntry has been launched through the
// query UI. It is lazily created on first launch and cascade-deleted
// with its owning FileEntry.
type UsageStat struct {
	ID           int64     `json:"id,omitempty"`
	FileID       int64     `json:"file_id"`
	LaunchCount  int64     `json:"launch_count"`
	LastLaunched time.Time `json:"last_launched,omitempty"`
}

// EventKind tags the raw filesystem notification kind a watcher
// observed, before debouncing.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventDeleted  EventKind = "deleted"
	EventMoved    EventKind = "moved"
)

// FilesystemEvent is an ephemeral notification surfaced by the
// watcher. It is never persisted; the event processor converts it
// into an IndexOperation once debounced.
type FilesystemEvent struct {
	Kind EventKind
	Path string
	From string // populated only for EventMoved
	To   string // populated only for EventMoved; the debounce key for a move
}

// PrincipalPath returns the path used as the debounce map key: the
// destination for a move, the subject path otherwise.
func (e FilesystemEvent) PrincipalPath() string {
	if e.Kind == EventMoved {
		return e.To
	}
	return e.Path
}
