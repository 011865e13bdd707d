package cache

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/cloud-drive-tools/cdt/pkg/types"
)

const sweepLockName = ".cdt-sweep.lock"

// Engine reclaims space from the local plaintext cache. A sweep enumerates
// every regular file under the root, computes its last-access age, and
// deletes files older than the retention window unless they are in use.
// The engine keeps no state between sweeps; the filesystem is the source
// of truth.
type Engine struct {
	root   string
	policy types.RetentionPolicy
	inuse  InUseChecker
}

func NewEngine(root string, policy types.RetentionPolicy, inuse InUseChecker) *Engine {
	return &Engine{
		root:   root,
		policy: policy,
		inuse:  inuse,
	}
}

// Sweep runs one pass. Per-file failures are recorded in the report and
// never abort the sweep. Only one sweep may run per cache root at a time,
// across processes; a second concurrent call fails with ErrSweepActive.
func (e *Engine) Sweep(ctx context.Context) (*types.EvictionReport, error) {
	start := time.Now()
	report := &types.EvictionReport{Root: e.root, StartedAt: start}

	lockPath := filepath.Join(e.root, sweepLockName)
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cannot acquire sweep lock: %w", err)
	}
	if !locked {
		report.AlreadyActive = true
		return report, &types.ErrSweepActive{LockPath: lockPath}
	}
	defer lock.Unlock()

	cutoff := e.policy.Cutoff(start)
	log.Info().
		Str("root", e.root).
		Float64("days_to_keep_local", e.policy.DaysToKeepLocal).
		Msg("deleting local files older than the retention window")

	var dirs []string
	walkErr := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == e.root {
				return err
			}
			report.Errors = append(report.Errors, types.EvictionError{Path: path, Reason: err.Error()})
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != e.root {
				dirs = append(dirs, path)
			}
			return nil
		}
		// Symlinks and other non-regular entries are left alone so the
		// sweep can never reach outside the cache root.
		if !d.Type().IsRegular() || path == lockPath {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			report.Errors = append(report.Errors, types.EvictionError{Path: path, Reason: err.Error()})
			return nil
		}

		report.Scanned++
		entry := types.CacheEntry{Path: path, Size: info.Size(), LastAccess: lastAccessTime(info)}
		if !entry.LastAccess.Before(cutoff) {
			report.SkippedFresh++
			return nil
		}

		if e.inuse != nil && e.inuse.InUse(path) {
			log.Debug().Str("path", path).Msg("file is in use, not evicting")
			report.SkippedInUse++
			return nil
		}

		removed, err := removeIfUnused(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to evict file")
			report.Errors = append(report.Errors, types.EvictionError{Path: path, Reason: err.Error()})
			return nil
		}
		if !removed {
			report.SkippedInUse++
			return nil
		}

		log.Debug().
			Str("path", entry.Path).
			Int64("size", entry.Size).
			Dur("age", entry.Age(start)).
			Msg("evicted file")
		report.Evicted++
		report.EvictedBytes += entry.Size
		return nil
	})
	if walkErr != nil {
		report.Duration = time.Since(start)
		return report, walkErr
	}

	report.PrunedDirs = e.pruneEmptyDirs(dirs)
	report.Duration = time.Since(start)

	log.Info().
		Int("scanned", report.Scanned).
		Int("evicted", report.Evicted).
		Int64("evicted_bytes", report.EvictedBytes).
		Int("skipped_in_use", report.SkippedInUse).
		Int("pruned_dirs", report.PrunedDirs).
		Int("errors", len(report.Errors)).
		Msg("cache sweep finished")
	return report, nil
}

// pruneEmptyDirs removes directories the sweep left empty, deepest first,
// never touching the cache root itself.
func (e *Engine) pruneEmptyDirs(dirs []string) int {
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	pruned := 0
	for _, dir := range dirs {
		if err := os.Remove(dir); err == nil {
			pruned++
		}
	}
	return pruned
}

// removeIfUnused unlinks path only when a non-blocking advisory lock on it
// can be taken. A consumer holding a lock keeps the file until a later
// sweep.
func removeIfUnused(path string) (bool, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return false, err
	}
	if !locked {
		return false, nil
	}
	defer fl.Unlock()

	if err := os.Remove(path); err != nil {
		return false, err
	}
	return true, nil
}

func lastAccessTime(info fs.FileInfo) time.Time {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(stat.Atim.Sec, stat.Atim.Nsec)
	}
	return info.ModTime()
}
