package cache

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"
)

// InUseChecker reports whether some process currently holds a file open.
type InUseChecker interface {
	InUse(path string) bool
}

// InUseFunc adapts a function to the InUseChecker interface.
type InUseFunc func(path string) bool

func (f InUseFunc) InUse(path string) bool {
	return f(path)
}

const snapshotTTL = 2 * time.Second

// OpenFilesChecker answers in-use queries from a snapshot of every open
// file under the cache root, taken by walking the process table. The
// snapshot is reused briefly between queries; the walk is far too
// expensive to repeat per file.
type OpenFilesChecker struct {
	root string

	mu       sync.Mutex
	snapshot map[string]bool
	taken    time.Time
}

func NewOpenFilesChecker(root string) *OpenFilesChecker {
	return &OpenFilesChecker{root: root}
}

func (c *OpenFilesChecker) InUse(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot == nil || time.Since(c.taken) > snapshotTTL {
		c.snapshot = c.takeSnapshot()
		c.taken = time.Now()
	}
	return c.snapshot[path]
}

func (c *OpenFilesChecker) takeSnapshot() map[string]bool {
	open := map[string]bool{}

	procs, err := process.Processes()
	if err != nil {
		log.Warn().Err(err).Msg("cannot list processes for open-file snapshot")
		return open
	}

	prefix := c.root + string(os.PathSeparator)
	for _, p := range procs {
		files, err := p.OpenFiles()
		if err != nil {
			// Processes owned by other users or already gone.
			continue
		}
		for _, f := range files {
			if strings.HasPrefix(f.Path, prefix) {
				open[f.Path] = true
			}
		}
	}
	return open
}
