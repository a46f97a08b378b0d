package repository

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
)

// StartTempSweeper removes temporary files left next to backupPath that are
// older than retention. Such files are left behind when the process dies
// between creating a temp file and renaming it. The sweep runs every interval
// until ctx is cancelled.
func StartTempSweeper(
	ctx context.Context,
	backupPath string,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := SweepTempFiles(backupPath, time.Now().Add(-retention))
				if err != nil {
					log.Error("failed to sweep temporary backup files", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("swept temporary backup files", zap.Int("removed", removed))
				}
			}
		}
	}()
}

// SweepTempFiles deletes temporary files of backupPath last modified before
// cutoff and returns how many were removed.
func SweepTempFiles(backupPath string, cutoff time.Time) (int, error) {
	matches, err := tempFiles(backupPath)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
