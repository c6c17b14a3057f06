package fetcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// newWorkspace allocates a uniquely named temporary directory owned by
// one pipeline invocation. Workspaces are not removed on success;
// CleanStaleWorkspaces sweeps them.
func (f *Fetcher) newWorkspace() (string, error) {
	dir := filepath.Join(f.config.TempRoot, uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	return dir, nil
}

// CleanStaleWorkspaces removes temporary workspaces older than maxAge.
// Returns the number of workspaces deleted. Intended for periodic
// invocation by the embedding process.
func (f *Fetcher) CleanStaleWorkspaces(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(f.config.TempRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		dir := filepath.Join(f.config.TempRoot, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			f.logger.Warn("failed to remove stale workspace",
				zap.String("dir", dir),
				zap.Error(err))
			continue
		}
		removed++
	}

	return removed, nil
}
