package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braid/internal/testutils"
	"braid/pkg/braidtypes"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func testRecord() *braidtypes.SessionRecord {
	now := testutils.Now(true)
	return &braidtypes.SessionRecord{
		ID:   "session-1",
		Name: "btree deep dive",
		Messages: []braidtypes.Message{
			{ID: "m1", Role: braidtypes.RoleUser, Content: "How do btrees work?", Index: 0, Timestamp: now},
			{ID: "m2", Role: braidtypes.RoleAssistant, Content: "They keep sorted pages.", Index: 1, Timestamp: now},
		},
		SummarizedUpTo: 0,
		SummaryXML:     "",
		TokenCount:     42,
		ModelsUsed:     []string{"claude-sonnet-4-5-20250514"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	record := testRecord()

	require.NoError(t, s.Save(record))

	loaded, err := s.Load("session-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, loaded.ID)
	assert.Equal(t, record.Name, loaded.Name)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "How do btrees work?", loaded.Messages[0].Content)
	assert.Equal(t, 42, loaded.TokenCount)
}

func TestSaveRequiresID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Save(&braidtypes.SessionRecord{}))
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSessionStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save(testRecord()))

	// No temp file is left behind after a successful save.
	entries, err := os.ReadDir(filepath.Join(dir, "sessions"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session-1.json", entries[0].Name())
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)
	record := testRecord()
	require.NoError(t, s.Save(record))

	record.TokenCount = 99
	require.NoError(t, s.Save(record))

	loaded, err := s.Load("session-1")
	require.NoError(t, err)
	assert.Equal(t, 99, loaded.TokenCount)
}

func TestLoadMissingSession(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load("nope")
	assert.Error(t, err)
}

func TestListAndDelete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(testRecord()))

	other := testRecord()
	other.ID = "session-2"
	require.NoError(t, s.Save(other))

	ids, err := s.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"session-1", "session-2"}, ids)

	require.NoError(t, s.Delete("session-1"))
	ids, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"session-2"}, ids)
}

func TestArchiveAppendOnly(t *testing.T) {
	s := newTestStore(t)
	record := testRecord()

	require.NoError(t, s.Archive(record.ID, record.Messages[:1]))
	require.NoError(t, s.Archive(record.ID, record.Messages[1:]))
	require.NoError(t, s.Archive("other-session", record.Messages[:1]))

	entries, err := s.ReadArchive(record.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "How do btrees work?", entries[0].Message.Content)
	assert.Equal(t, "They keep sorted pages.", entries[1].Message.Content)
}

func TestReadArchiveMissingFile(t *testing.T) {
	s := newTestStore(t)
	entries, err := s.ReadArchive("session-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
