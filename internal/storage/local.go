package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrTooLarge is returned when a staged stream exceeds its limit
var ErrTooLarge = errors.New("file too large")

// LocalStorage stages uploaded audio and writes exports to the local filesystem
type LocalStorage struct {
	tempDir   string
	outputDir string
	now       func() time.Time
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(tempDir, outputDir string) *LocalStorage {
	return &LocalStorage{
		tempDir:   tempDir,
		outputDir: outputDir,
		now:       time.Now,
	}
}

// TempDir is where staged audio lives
func (ls *LocalStorage) TempDir() string {
	return ls.tempDir
}

// StageAudio copies r into the temp directory as <jobID>_<filename>.
// With limit > 0 the copy stops and the partial file is removed once more
// than limit bytes have been read.
func (ls *LocalStorage) StageAudio(jobID, filename string, r io.Reader, limit int64) (string, int64, error) {
	if err := os.MkdirAll(ls.tempDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create temp directory: %w", err)
	}

	path := filepath.Join(ls.tempDir, jobID+"_"+sanitizeFilename(filename))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create staged file: %w", err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case err != nil:
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to stage audio: %w", err)
	case closeErr != nil:
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to stage audio: %w", closeErr)
	case limit > 0 && n > limit:
		os.Remove(path)
		return "", n, ErrTooLarge
	}
	return path, n, nil
}

// ReadAudio loads a staged recording
func (ls *LocalStorage) ReadAudio(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged audio: %w", err)
	}
	return data, nil
}

// Exists reports whether a staged file is still present
func (ls *LocalStorage) Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Remove deletes a staged file; a missing file is not an error
func (ls *LocalStorage) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove staged audio: %w", err)
	}
	return nil
}

// SaveExport writes an export under a dated directory: outputs/2025/01/23/
func (ls *LocalStorage) SaveExport(name string, data []byte) (string, error) {
	now := ls.now()
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	// 20250123_143022_weekly_sync.docx
	path := filepath.Join(dateDir, now.Format("20060102_150405")+"_"+sanitizeFilename(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save export: %w", err)
	}
	return path, nil
}

// sanitizeFilename drops directories and replaces characters that are invalid in file names
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)

	if result == "" || result == "." || result == ".." {
		result = "audio"
	}
	if r := []rune(result); len(r) > 100 {
		result = string(r[:100])
	}
	return result
}
