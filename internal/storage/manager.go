package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"videoextract/internal/model"
	"videoextract/pkg/logger"

	"go.uber.org/zap"
)

const maxFilenameLen = 200

// TrackedFile records a finalized artifact in the public store.
type TrackedFile struct {
	Filename  string
	FilePath  string
	Size      int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Manager owns the temp and public directories: finalizing completed
// downloads, expiring public files and sweeping stale temp files.
type Manager struct {
	cfg      *model.StorageConfig
	files    map[string]*TrackedFile // filename -> record
	mu       sync.RWMutex
	quitChan chan bool
}

// NewManager creates a new storage manager
func NewManager(cfg *model.StorageConfig) *Manager {
	return &Manager{
		cfg:      cfg,
		files:    make(map[string]*TrackedFile),
		quitChan: make(chan bool),
	}
}

// EnsureDirs creates the temp and public directories.
func (m *Manager) EnsureDirs() error {
	if err := os.MkdirAll(m.cfg.DownloadDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(m.cfg.TempDir, 0755)
}

// Start starts the cleanup routine
func (m *Manager) Start() {
	go m.cleanupRoutine()
}

// Stop stops the cleanup routine and runs a final temp sweep.
func (m *Manager) Stop() {
	select {
	case m.quitChan <- true:
	default:
		logger.Logger.Warn("Could not send stop signal to cleanup routine")
	}
	m.SweepTemp()
}

// TempDir returns the staging directory for in-flight downloads.
func (m *Manager) TempDir() string {
	return m.cfg.TempDir
}

// PublicPath returns the public-store path for filename.
func (m *Manager) PublicPath(filename string) string {
	return filepath.Join(m.cfg.DownloadDir, filename)
}

// ValidateFileSize checks if file size is within limits
func (m *Manager) ValidateFileSize(sizeBytes int64) bool {
	return sizeBytes <= m.MaxFileSizeBytes()
}

// MaxFileSizeBytes returns the configured transfer ceiling.
func (m *Manager) MaxFileSizeBytes() int64 {
	return int64(m.cfg.MaxFileSizeMB) * 1024 * 1024
}

// SanitizeFilename strips characters unsafe for the filesystem and caps
// the name at 200 characters, preserving the extension.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", "_", ">", "_", ":", "_", `"`, "_",
		"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
	)
	filename = strings.TrimSpace(replacer.Replace(filename))

	// Truncate over runes so a multi-byte character never gets split.
	if utf8.RuneCountInString(filename) > maxFilenameLen {
		ext := filepath.Ext(filename)
		name := []rune(strings.TrimSuffix(filename, ext))
		keep := maxFilenameLen - utf8.RuneCountInString(ext)
		if keep < 1 {
			keep = 1
		}
		if len(name) > keep {
			name = name[:keep]
		}
		filename = string(name) + ext
	}
	return filename
}

// Finalize moves a completed temp file into the public store under a
// sanitized, collision-safe name and tracks it for TTL cleanup. The rename
// is atomic when temp and public dirs share a filesystem.
func (m *Manager) Finalize(tempPath, jobID string) (string, error) {
	if _, err := os.Stat(tempPath); err != nil {
		return "", fmt.Errorf("temporary file not found: %w", err)
	}

	name := filepath.Base(tempPath)
	name = strings.TrimPrefix(name, jobID+"_")
	name = SanitizeFilename(name)
	if name == "" {
		name = "download_" + jobID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	finalPath := m.collisionFreePathLocked(name)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("finalizing download: %w", err)
	}

	var size int64
	if st, err := os.Stat(finalPath); err == nil {
		size = st.Size()
	}
	finalName := filepath.Base(finalPath)
	now := time.Now()
	m.files[finalName] = &TrackedFile{
		Filename:  finalName,
		FilePath:  finalPath,
		Size:      size,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(m.cfg.FileTTLSeconds) * time.Second),
	}

	logger.Logger.Info("Download finalized",
		zap.String("job_id", jobID),
		zap.String("path", finalPath),
		zap.Int64("size", size))
	return finalPath, nil
}

// collisionFreePathLocked appends _1, _2, ... until the name is unused.
func (m *Manager) collisionFreePathLocked(name string) string {
	candidate := filepath.Join(m.cfg.DownloadDir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		candidate = filepath.Join(m.cfg.DownloadDir, fmt.Sprintf("%s_%d%s", base, counter, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// SweepTemp removes temp files older than the configured max age.
func (m *Manager) SweepTemp() {
	maxAge := time.Duration(m.cfg.TempMaxAgeHours) * time.Hour
	entries, err := os.ReadDir(m.cfg.TempDir)
	if err != nil {
		return
	}

	now := time.Now()
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > maxAge {
			path := filepath.Join(m.cfg.TempDir, entry.Name())
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		logger.Logger.Info("Temp sweep completed", zap.Int("removed", removed))
	}
}

// cleanupRoutine periodically expires public files and sweeps temp storage.
func (m *Manager) cleanupRoutine() {
	ticker := time.NewTicker(time.Duration(m.cfg.CleanupInterval) * time.Second)
	defer ticker.Stop()

	logger.Logger.Info("Storage cleanup routine started",
		zap.Int("cleanup_interval_seconds", m.cfg.CleanupInterval),
		zap.Int("file_ttl_seconds", m.cfg.FileTTLSeconds))

	for {
		select {
		case <-m.quitChan:
			logger.Logger.Info("Storage cleanup routine stopped")
			return
		case <-ticker.C:
			m.cleanupExpiredFiles()
			m.SweepTemp()
		}
	}
}

// cleanupExpiredFiles removes public files past their TTL.
func (m *Manager) cleanupExpiredFiles() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	deletedCount := 0
	var deletedNames []string

	for name, file := range m.files {
		if now.After(file.ExpiresAt) {
			if err := os.Remove(file.FilePath); err != nil && !os.IsNotExist(err) {
				logger.Logger.Error("Failed to remove expired file",
					zap.String("path", file.FilePath),
					zap.Error(err))
			} else {
				deletedCount++
			}
			// Drop from tracking regardless of deletion outcome.
			deletedNames = append(deletedNames, name)
		}
	}
	for _, name := range deletedNames {
		delete(m.files, name)
	}

	if deletedCount > 0 {
		logger.Logger.Info("Storage cleanup completed",
			zap.Int("deleted_count", deletedCount),
			zap.Int("remaining_tracked_files", len(m.files)))
	}
}

// TrackedCount returns the number of files currently tracked.
func (m *Manager) TrackedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
