package rootmgr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rootshell/internal/domain"
)

const mountsFixture = `rootfs / rootfs ro,seclabel 0 0
/dev/block/sda1 /data ext4 rw,seclabel,nosuid 0 0
/dev/block/sda2 /system ext4 ro,seclabel,relatime 0 0
/dev/block/sda3 /system/vendor ext4 ro,seclabel 0 0
`

func TestParseMounts(t *testing.T) {
	entries := parseMounts(strings.NewReader(mountsFixture))
	if len(entries) != 4 {
		t.Fatalf("parsed %d entries, want 4", len(entries))
	}
	e := entries[2]
	if e.Device != "/dev/block/sda2" || e.MountPoint != "/system" || e.FSType != "ext4" {
		t.Errorf("entry = %+v", e)
	}
	if !e.hasOption("ro") || e.hasOption("rw") {
		t.Errorf("options = %v", e.Options)
	}
}

func TestFindMount(t *testing.T) {
	entries := parseMounts(strings.NewReader(mountsFixture))
	cases := []struct {
		path string
		want string
	}{
		{"/system", "/system"},
		{"/system/bin/sh", "/system"},
		{"/system/vendor/lib", "/system/vendor"},
		{"/data/local/tmp", "/data"},
		{"/cache", "/"},
	}
	for _, tc := range cases {
		e, ok := findMount(entries, tc.path)
		if !ok || e.MountPoint != tc.want {
			t.Errorf("findMount(%q) = (%q, %v), want %q", tc.path, e.MountPoint, ok, tc.want)
		}
	}

	if _, ok := findMount(nil, "/system"); ok {
		t.Error("findMount over empty table reported a match")
	}
}

// writeMounts writes a mounts fixture and returns its path.
func writeMounts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mounts")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRemountToReadWrite(t *testing.T) {
	path := writeMounts(t, mountsFixture)
	r := &scriptRunner{handle: func(text string) (string, int, error) {
		if strings.HasPrefix(text, "mount -o remount,rw ") {
			// Device applied the remount: reflect it in the table.
			remounted := strings.Replace(mountsFixture, "/system ext4 ro,", "/system ext4 rw,", 1)
			if err := os.WriteFile(path, []byte(remounted), 0o644); err != nil {
				t.Fatal(err)
			}
			return "", 0, nil
		}
		t.Fatalf("unexpected command %q", text)
		return "", 0, nil
	}}
	m := newTestManager(r)
	m.mountsPath = path

	if err := m.Remount(context.Background(), "/system", "rw"); err != nil {
		t.Fatalf("Remount: %v", err)
	}
	if len(r.commands) != 1 || r.commands[0] != "mount -o remount,rw /dev/block/sda2 /system" {
		t.Errorf("commands = %v", r.commands)
	}
}

func TestRemountNoOpWhenModeMatches(t *testing.T) {
	r := &scriptRunner{}
	m := newTestManager(r)
	m.mountsPath = writeMounts(t, mountsFixture)

	if err := m.Remount(context.Background(), "/data", "rw"); err != nil {
		t.Fatalf("Remount: %v", err)
	}
	if len(r.commands) != 0 {
		t.Errorf("no-op remount ran %v", r.commands)
	}
}

func TestRemountInvalidInput(t *testing.T) {
	m := newTestManager(&scriptRunner{})
	if err := m.Remount(context.Background(), "/system", "rwx"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("bad mode error = %v", err)
	}
	if err := m.Remount(context.Background(), "", "rw"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty path error = %v", err)
	}
}

func TestRemountVerifiesMountTable(t *testing.T) {
	// mount exits 0 but the table never changes.
	r := &scriptRunner{handle: func(string) (string, int, error) { return "", 0, nil }}
	m := newTestManager(r)
	m.mountsPath = writeMounts(t, mountsFixture)

	err := m.Remount(context.Background(), "/system", "rw")
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("ineffective remount error = %v, want ErrPermissionDenied", err)
	}
}

func TestRemountDeniedByExitCode(t *testing.T) {
	r := &scriptRunner{handle: func(string) (string, int, error) {
		return "mount: permission denied", 1, nil
	}}
	m := newTestManager(r)
	m.mountsPath = writeMounts(t, mountsFixture)

	err := m.Remount(context.Background(), "/system", "rw")
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("denied remount error = %v, want ErrPermissionDenied", err)
	}
}
