// Package backup implements the local-first durability layer: every
// prospect is written to disk before any database write is attempted, so
// a repository outage never loses discovery work.
package backup

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// UploadStatus is the lifecycle state of one backup file.
type UploadStatus string

const (
	StatusPending  UploadStatus = "pending"
	StatusUploaded UploadStatus = "uploaded"
	StatusFailed   UploadStatus = "failed"
)

// Record is the on-disk shape of one backup file.
type Record struct {
	SavedAt      time.Time       `json:"saved_at"`
	ID           string          `json:"id"`
	Data         json.RawMessage `json:"data"`
	UploadStatus UploadStatus    `json:"upload_status"`
	DatabaseID   string          `json:"database_id,omitempty"`
	UploadedAt   *time.Time      `json:"uploaded_at,omitempty"`
	UploadError  string          `json:"upload_error,omitempty"`
	FailedAt     *time.Time      `json:"failed_at,omitempty"`
}

// Entry pairs a Record with the path of the file it was read from.
type Entry struct {
	Path   string
	Record Record
}

const (
	prospectsDir     = "prospects"
	failedUploadsDir = "failed-uploads"
)

// Store manages the `<root>/prospecting-engine/{prospects,failed-uploads}`
// layout described in §4.5.
type Store struct {
	root string
}

// New creates a Store rooted at root/prospecting-engine, creating both
// subdirectories if they do not exist.
func New(root string) (*Store, error) {
	base := filepath.Join(root, "prospecting-engine")
	for _, dir := range []string{prospectsDir, failedUploadsDir} {
		if err := os.MkdirAll(filepath.Join(base, dir), 0o755); err != nil {
			return nil, fmt.Errorf("backup: creating %s: %w", dir, err)
		}
	}
	return &Store{root: base}, nil
}

// Save writes data as a new pending backup file and returns its absolute
// path. Uses write-temp-then-rename with an fsync before the rename so a
// crash never leaves a partially written file in place.
func (s *Store) Save(id string, data json.RawMessage) (string, error) {
	rec := Record{
		SavedAt:      time.Now(),
		ID:           id,
		Data:         data,
		UploadStatus: StatusPending,
	}

	name, err := fileName(id)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.root, prospectsDir, name)

	if err := writeAtomic(path, rec); err != nil {
		return "", fmt.Errorf("backup: saving %s: %w", id, err)
	}
	return path, nil
}

// MarkUploaded transitions a pending backup at path to uploaded,
// recording the assigned database id.
func (s *Store) MarkUploaded(path, dbID string) error {
	rec, err := readRecord(path)
	if err != nil {
		return err
	}
	now := time.Now()
	rec.UploadStatus = StatusUploaded
	rec.DatabaseID = dbID
	rec.UploadedAt = &now

	if err := writeAtomic(path, *rec); err != nil {
		return fmt.Errorf("backup: marking %s uploaded: %w", path, err)
	}
	return nil
}

// MarkFailed transitions a pending backup at path to failed, recording
// uploadErr, and moves the file into failed-uploads/ via rename within
// the same filesystem.
func (s *Store) MarkFailed(path string, uploadErr error) (string, error) {
	rec, err := readRecord(path)
	if err != nil {
		return "", err
	}
	now := time.Now()
	rec.UploadStatus = StatusFailed
	rec.FailedAt = &now
	if uploadErr != nil {
		rec.UploadError = uploadErr.Error()
	}

	newPath := filepath.Join(s.root, failedUploadsDir, filepath.Base(path))
	if err := writeAtomic(newPath, *rec); err != nil {
		return "", fmt.Errorf("backup: marking %s failed: %w", path, err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("backup: failed to remove original pending file after move", "path", path, "error", err)
	}
	return newPath, nil
}

// ListPending returns every backup currently in prospects/ with status
// pending.
func (s *Store) ListPending() ([]Entry, error) {
	return s.listDir(prospectsDir, StatusPending)
}

// ListFailed returns every backup currently in failed-uploads/.
func (s *Store) ListFailed() ([]Entry, error) {
	return s.listDir(failedUploadsDir, StatusFailed)
}

func (s *Store) listDir(dir string, want UploadStatus) ([]Entry, error) {
	full := filepath.Join(s.root, dir)
	files, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("backup: listing %s: %w", dir, err)
	}

	var entries []Entry
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		path := filepath.Join(full, f.Name())
		rec, err := readRecord(path)
		if err != nil {
			slog.Warn("backup: skipping unreadable backup file", "path", path, "error", err)
			continue
		}
		if rec.UploadStatus != want {
			continue
		}
		entries = append(entries, Entry{Path: path, Record: *rec})
	}
	return entries, nil
}

// RetryFailed re-attempts a failed upload by invoking uploadFn with the
// record's data. On success the file is moved back to prospects/ with
// status uploaded; on failure it stays in failed-uploads/ with the new
// error recorded.
func (s *Store) RetryFailed(path string, uploadFn func(data json.RawMessage) (dbID string, err error)) error {
	rec, err := readRecord(path)
	if err != nil {
		return err
	}

	dbID, uploadErr := uploadFn(rec.Data)
	if uploadErr != nil {
		rec.UploadError = uploadErr.Error()
		if err := writeAtomic(path, *rec); err != nil {
			return fmt.Errorf("backup: recording retry failure for %s: %w", path, err)
		}
		return uploadErr
	}

	now := time.Now()
	rec.UploadStatus = StatusUploaded
	rec.DatabaseID = dbID
	rec.UploadedAt = &now
	rec.UploadError = ""

	newPath := filepath.Join(s.root, prospectsDir, filepath.Base(path))
	if err := writeAtomic(newPath, *rec); err != nil {
		return fmt.Errorf("backup: moving %s back to prospects: %w", path, err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("backup: failed to remove failed-uploads file after retry", "path", path, "error", err)
	}
	return nil
}

// Archive deletes uploaded files whose uploaded_at predates the cutoff.
// Pending and failed files are never touched here.
func (s *Store) Archive(olderThan time.Duration) (int, error) {
	full := filepath.Join(s.root, prospectsDir)
	files, err := os.ReadDir(full)
	if err != nil {
		return 0, fmt.Errorf("backup: archiving: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		path := filepath.Join(full, f.Name())
		rec, err := readRecord(path)
		if err != nil {
			continue
		}
		if rec.UploadStatus != StatusUploaded || rec.UploadedAt == nil || rec.UploadedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("backup: archive failed to remove file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func readRecord(path string) (*Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backup: reading %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("backup: parsing %s: %w", path, err)
	}
	return &rec, nil
}

// writeAtomic writes rec to path by writing to a temp file in the same
// directory, fsyncing it, then renaming over the destination.
func writeAtomic(path string, rec Record) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

func fileName(id string) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("backup: generating filename suffix: %w", err)
	}
	return fmt.Sprintf("%d-%s-%s.json", time.Now().UnixNano(), id, hex.EncodeToString(buf)), nil
}
