package backup

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSave_WritesPendingRecord(t *testing.T) {
	s := newTestStore(t)

	path, err := s.Save("p1", json.RawMessage(`{"company_name":"Acme"}`))
	require.NoError(t, err)
	require.NotEmpty(t, path)

	pending, err := s.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, StatusPending, pending[0].Record.UploadStatus)
	assert.Equal(t, "p1", pending[0].Record.ID)
}

func TestMarkUploaded_TransitionsStatus(t *testing.T) {
	s := newTestStore(t)
	path, err := s.Save("p1", json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, s.MarkUploaded(path, "db-1"))

	pending, err := s.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMarkFailed_MovesToFailedUploads(t *testing.T) {
	s := newTestStore(t)
	path, err := s.Save("p1", json.RawMessage(`{}`))
	require.NoError(t, err)

	newPath, err := s.MarkFailed(path, errors.New("db unavailable"))
	require.NoError(t, err)
	assert.NotEqual(t, path, newPath)

	failed, err := s.ListFailed()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, StatusFailed, failed[0].Record.UploadStatus)
	assert.Equal(t, "db unavailable", failed[0].Record.UploadError)

	pending, err := s.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRetryFailed_SuccessMovesBackToProspects(t *testing.T) {
	s := newTestStore(t)
	path, err := s.Save("p1", json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	failedPath, err := s.MarkFailed(path, errors.New("boom"))
	require.NoError(t, err)

	err = s.RetryFailed(failedPath, func(data json.RawMessage) (string, error) {
		return "db-2", nil
	})
	require.NoError(t, err)

	failed, err := s.ListFailed()
	require.NoError(t, err)
	assert.Empty(t, failed)

	pending, err := s.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending) // it's uploaded now, not pending
}

func TestRetryFailed_StillFailingStaysInFailedUploads(t *testing.T) {
	s := newTestStore(t)
	path, err := s.Save("p1", json.RawMessage(`{}`))
	require.NoError(t, err)
	failedPath, err := s.MarkFailed(path, errors.New("first failure"))
	require.NoError(t, err)

	err = s.RetryFailed(failedPath, func(data json.RawMessage) (string, error) {
		return "", errors.New("still down")
	})
	require.Error(t, err)

	failed, err := s.ListFailed()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "still down", failed[0].Record.UploadError)
}

func TestArchive_OnlyRemovesOldUploadedFiles(t *testing.T) {
	s := newTestStore(t)

	oldPath, err := s.Save("old", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, s.MarkUploaded(oldPath, "db-old"))

	recentPath, err := s.Save("recent", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, s.MarkUploaded(recentPath, "db-recent"))

	pendingPath, err := s.Save("still-pending", json.RawMessage(`{}`))
	require.NoError(t, err)

	rec, err := readRecord(oldPath)
	require.NoError(t, err)
	old := time.Now().Add(-48 * time.Hour)
	rec.UploadedAt = &old
	require.NoError(t, writeAtomic(oldPath, *rec))

	removed, err := s.Archive(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = readRecord(oldPath)
	assert.Error(t, err) // removed

	_, err = readRecord(recentPath)
	assert.NoError(t, err) // kept, too recent

	_, err = readRecord(pendingPath)
	assert.NoError(t, err) // kept, never uploaded
}
