package rootmgr

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"rootshell/internal/domain"
)

// mountEntry is one line of /proc/mounts.
type mountEntry struct {
	Device     string
	MountPoint string
	FSType     string
	Options    []string
}

func (m mountEntry) hasOption(opt string) bool {
	for _, o := range m.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// parseMounts reads /proc/mounts formatted data.
func parseMounts(r io.Reader) []mountEntry {
	var entries []mountEntry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		entries = append(entries, mountEntry{
			Device:     fields[0],
			MountPoint: fields[1],
			FSType:     fields[2],
			Options:    strings.Split(fields[3], ","),
		})
	}
	return entries
}

// findMount returns the entry whose mount point is the longest prefix of
// path.
func findMount(entries []mountEntry, path string) (mountEntry, bool) {
	var best mountEntry
	found := false
	for _, e := range entries {
		if e.MountPoint == path || strings.HasPrefix(path, strings.TrimRight(e.MountPoint, "/")+"/") || e.MountPoint == "/" {
			if !found || len(e.MountPoint) > len(best.MountPoint) {
				best = e
				found = true
			}
		}
	}
	return best, found
}

// Remount remounts the filesystem containing path with the given mode,
// "ro" or "rw". It is a no-op when the mount already has the requested
// mode.
func (m *Manager) Remount(ctx context.Context, path, mode string) error {
	const op = "Manager.Remount"
	mode = strings.ToLower(mode)
	if path == "" || (mode != "ro" && mode != "rw") {
		return domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("path=%q mode=%q", path, mode))
	}

	entry, ok, err := m.lookupMount(path)
	if err != nil {
		return domain.WrapOp(op, err)
	}
	if !ok {
		return domain.NewDomainError(op, domain.ErrNotFound, "no mount covers "+path)
	}
	if entry.hasOption(mode) {
		return nil
	}

	cmd := fmt.Sprintf("mount -o remount,%s %s %s", mode, entry.Device, entry.MountPoint)
	out, code, err := m.runner.Run(ctx, true, cmd)
	if err != nil {
		return domain.WrapOp(op, err)
	}
	if code != 0 {
		return domain.NewDomainError(op, domain.ErrPermissionDenied, strings.TrimSpace(out))
	}

	// The mount table is authoritative; a zero exit code from mount on
	// some devices still leaves the old mode in place.
	entry, ok, err = m.lookupMount(path)
	if err != nil {
		return domain.WrapOp(op, err)
	}
	if !ok || !entry.hasOption(mode) {
		return domain.NewDomainError(op, domain.ErrPermissionDenied, "remount did not take effect")
	}
	return nil
}

func (m *Manager) lookupMount(path string) (mountEntry, bool, error) {
	f, err := os.Open(m.mountsPath)
	if err != nil {
		return mountEntry{}, false, err
	}
	defer f.Close()
	entry, ok := findMount(parseMounts(f), path)
	return entry, ok, nil
}
