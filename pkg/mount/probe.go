package mount

import (
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const FUSE_SUPER_MAGIC = 0x65735546

// Prober answers questions about the state of paths on the host. The mount
// machine never shells out to answer "is this mounted" - it asks a Prober,
// which tests replace with a scripted one.
type Prober interface {
	// PathExists reports whether the path can be stat'd.
	PathExists(path string) bool

	// IsMountPoint reports whether the path appears as a mount point in
	// the mount table.
	IsMountPoint(path string) bool

	// IsFuseMount reports whether a FUSE filesystem is mounted at path.
	IsFuseMount(path string) bool

	// Responsive reports whether the filesystem at path answers a read
	// within the timeout. A dead FUSE daemon leaves the mount table entry
	// behind but hangs or errors on access.
	Responsive(path string, timeout time.Duration) bool
}

// OSProber probes the real host filesystem.
type OSProber struct {
	// MountsPath overrides /proc/mounts, for tests.
	MountsPath string
}

func NewOSProber() *OSProber {
	return &OSProber{}
}

func (p *OSProber) PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (p *OSProber) IsMountPoint(path string) bool {
	mountsPath := p.MountsPath
	if mountsPath == "" {
		mountsPath = "/proc/mounts"
	}

	data, err := os.ReadFile(mountsPath)
	if err != nil {
		return false
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && unescapeMountPath(fields[1]) == path {
			return true
		}
	}
	return false
}

func (p *OSProber) IsFuseMount(path string) bool {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return false
	}
	return stat.Type == FUSE_SUPER_MAGIC
}

func (p *OSProber) Responsive(path string, timeout time.Duration) bool {
	done := make(chan bool, 1)
	go func() {
		_, err := os.ReadDir(path)
		done <- err == nil
	}()

	select {
	case ok := <-done:
		return ok
	case <-time.After(timeout):
		return false
	}
}

// unescapeMountPath decodes the octal escapes /proc/mounts uses for spaces
// and other special characters in mount paths.
func unescapeMountPath(path string) string {
	if !strings.Contains(path, `\`) {
		return path
	}

	var b strings.Builder
	for i := 0; i < len(path); i++ {
		if path[i] == '\\' && i+3 < len(path) {
			if c, ok := octalByte(path[i+1 : i+4]); ok {
				b.WriteByte(c)
				i += 3
				continue
			}
		}
		b.WriteByte(path[i])
	}
	return b.String()
}

func octalByte(s string) (byte, bool) {
	var value int
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '7' {
			return 0, false
		}
		value = value*8 + int(s[i]-'0')
	}
	return byte(value), true
}
