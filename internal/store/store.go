// Package store persists session records as JSON files under the data
// directory and keeps an append-only JSONL archive of completed
// exchanges. The orchestration core treats the record as opaque; this
// package owns the file layout.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"braid/internal/logger"
	"braid/pkg/braidtypes"
)

// SessionStore reads and writes session records under a base directory:
// sessions/<id>.json for current state, archive.jsonl for history.
type SessionStore struct {
	baseDir string
}

// NewSessionStore creates a store rooted at baseDir, creating the
// sessions directory if needed.
func NewSessionStore(baseDir string) (*SessionStore, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "sessions"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &SessionStore{baseDir: baseDir}, nil
}

func (s *SessionStore) sessionPath(id string) string {
	return filepath.Join(s.baseDir, "sessions", id+".json")
}

// Save writes the session record atomically: marshal to a temp file in
// the same directory, then rename over the target.
func (s *SessionStore) Save(record *braidtypes.SessionRecord) error {
	if record.ID == "" {
		return fmt.Errorf("session record has no ID")
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	target := s.sessionPath(record.ID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to commit session file: %w", err)
	}

	logger.Debug("Session saved", "id", record.ID, "messages", len(record.Messages))
	return nil
}

// Load reads one session record by ID.
func (s *SessionStore) Load(id string) (*braidtypes.SessionRecord, error) {
	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var record braidtypes.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &record, nil
}

// List returns the IDs of all stored sessions.
func (s *SessionStore) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, "sessions"))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// Delete removes a stored session.
func (s *SessionStore) Delete(id string) error {
	if err := os.Remove(s.sessionPath(id)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ArchiveEntry is one line of the append-only archive.
type ArchiveEntry struct {
	SessionID string             `json:"session_id"`
	Message   braidtypes.Message `json:"message"`
}

// Archive appends messages to the JSONL archive. The archive is
// append-only; nothing is ever rewritten.
func (s *SessionStore) Archive(sessionID string, messages []braidtypes.Message) error {
	f, err := os.OpenFile(filepath.Join(s.baseDir, "archive.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	for _, msg := range messages {
		line, err := json.Marshal(ArchiveEntry{SessionID: sessionID, Message: msg})
		if err != nil {
			return fmt.Errorf("failed to marshal archive entry: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to append to archive: %w", err)
		}
	}
	return w.Flush()
}

// ReadArchive loads every archive entry for a session, in order.
func (s *SessionStore) ReadArchive(sessionID string) ([]ArchiveEntry, error) {
	f, err := os.Open(filepath.Join(s.baseDir, "archive.jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []ArchiveEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry ArchiveEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			logger.Warn("Skipping malformed archive line", "error", err)
			continue
		}
		if entry.SessionID == sessionID {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	return entries, nil
}
