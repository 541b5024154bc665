package permission

import (
	"os"
	"path/filepath"
	"sync"
)

// suBinaryDirs are the directories a device's su binary is conventionally
// installed in.
var suBinaryDirs = []string{
	"/sbin",
	"/system/bin",
	"/system/xbin",
	"/data/local/xbin",
	"/data/local/bin",
	"/system/sd/xbin",
	"/system/bin/failsafe",
	"/data/local",
	"/su/bin",
}

// RootChecker probes once for the presence of an su binary. Presence does
// not imply the binary works or that elevation will be granted; that is
// what the Cache probe answers.
type RootChecker struct {
	dirs []string
	once sync.Once
	ok   bool
}

// NewRootChecker creates a checker over the standard su directories.
// Alternate directories may be supplied for testing.
func NewRootChecker(dirs ...string) *RootChecker {
	if len(dirs) == 0 {
		dirs = suBinaryDirs
	}
	return &RootChecker{dirs: dirs}
}

// Available reports whether an su binary exists in any known directory.
// The filesystem is consulted only on the first call.
func (r *RootChecker) Available() bool {
	r.once.Do(func() {
		for _, dir := range r.dirs {
			if info, err := os.Stat(filepath.Join(dir, "su")); err == nil && !info.IsDir() {
				r.ok = true
				return
			}
		}
	})
	return r.ok
}
