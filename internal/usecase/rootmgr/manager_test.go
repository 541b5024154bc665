package rootmgr

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"rootshell/internal/domain"
)

// scriptRunner records every command and answers through handle; with a
// nil handle every command succeeds with empty output.
type scriptRunner struct {
	handle   func(text string) (string, int, error)
	commands []string
	elevated []bool
}

func (r *scriptRunner) Run(_ context.Context, elevated bool, text string) (string, int, error) {
	r.commands = append(r.commands, text)
	r.elevated = append(r.elevated, elevated)
	if r.handle == nil {
		return "", 0, nil
	}
	return r.handle(text)
}

type staticChecker struct{ granted bool }

func (s staticChecker) CheckElevated(context.Context) bool { return s.granted }

type staticRoot struct{ available bool }

func (s staticRoot) Available() bool { return s.available }

func newTestManager(r Runner) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(r, staticChecker{granted: true}, staticRoot{available: true}, logger)
}

func TestRunCommandElevation(t *testing.T) {
	r := &scriptRunner{handle: func(string) (string, int, error) { return "out", 0, nil }}
	m := newTestManager(r)

	res := m.RunCommand(context.Background(), "ls /data")
	if !res.OK || res.Message != "out" {
		t.Errorf("RunCommand = %+v", res)
	}
	res = m.RunCommandAs(context.Background(), false, "ls /sdcard")
	if !res.OK {
		t.Errorf("RunCommandAs = %+v", res)
	}
	if len(r.elevated) != 2 || !r.elevated[0] || r.elevated[1] {
		t.Errorf("elevation modes = %v, want [true false]", r.elevated)
	}
}

func TestRunCommandNonZeroExit(t *testing.T) {
	r := &scriptRunner{handle: func(string) (string, int, error) {
		return "ls: /nope: No such file or directory", 2, nil
	}}
	m := newTestManager(r)

	res := m.RunCommand(context.Background(), "ls /nope")
	if res.OK || res.Code != domain.ResultFailed {
		t.Errorf("res = %+v, want FAILED", res)
	}
}

func TestRunCommandTransportError(t *testing.T) {
	r := &scriptRunner{handle: func(string) (string, int, error) {
		return "", -1, domain.NewDomainError("test", domain.ErrTimeout, "")
	}}
	m := newTestManager(r)

	res := m.RunCommand(context.Background(), "sleep 600")
	if res.OK || res.Code != domain.ResultTimeout {
		t.Errorf("res = %+v, want TIMEOUT", res)
	}
}

func TestInstallPackage(t *testing.T) {
	cases := []struct {
		name     string
		location string
		out      string
		wantCmd  string
		wantOK   bool
		wantCode domain.ResultCode
	}{
		{"auto success", LocationAuto, "Success", "pm install -r /sdcard/app.apk", true, domain.ResultOK},
		{"external", LocationExternal, "Success", "pm install -r /sdcard/app.apk -s", true, domain.ResultOK},
		{"internal", LocationInternal, "Success", "pm install -r /sdcard/app.apk -f", true, domain.ResultOK},
		{"no space", LocationAuto, "Failure [INSTALL_FAILED_INSUFFICIENT_STORAGE]", "pm install -r /sdcard/app.apk", false, domain.ResultNoSpace},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &scriptRunner{handle: func(string) (string, int, error) { return tc.out, 0, nil }}
			m := newTestManager(r)

			res := m.InstallPackage(context.Background(), "/sdcard/app.apk", tc.location)
			if res.OK != tc.wantOK || res.Code != tc.wantCode {
				t.Errorf("res = %+v, want (%v, %s)", res, tc.wantOK, tc.wantCode)
			}
			if len(r.commands) != 1 || r.commands[0] != tc.wantCmd {
				t.Errorf("commands = %v, want [%s]", r.commands, tc.wantCmd)
			}
		})
	}
}

func TestInstallPackageTransportErrorShortCircuits(t *testing.T) {
	r := &scriptRunner{handle: func(string) (string, int, error) {
		return "", -1, domain.NewDomainError("test", domain.ErrPermissionDenied, "")
	}}
	m := newTestManager(r)

	res := m.InstallPackage(context.Background(), "/sdcard/app.apk", LocationAuto)
	if res.Code != domain.ResultDenied {
		t.Errorf("res = %+v, want DENIED untouched by pm classification", res)
	}
}

func TestInstallPackageEmptyPath(t *testing.T) {
	r := &scriptRunner{}
	m := newTestManager(r)
	if res := m.InstallPackage(context.Background(), "", LocationAuto); res.OK {
		t.Error("empty path accepted")
	}
	if len(r.commands) != 0 {
		t.Errorf("commands = %v, want none", r.commands)
	}
}

func TestUninstallPackage(t *testing.T) {
	r := &scriptRunner{handle: func(string) (string, int, error) { return "Success", 0, nil }}
	m := newTestManager(r)

	res := m.UninstallPackage(context.Background(), "com.example.app")
	if !res.OK {
		t.Errorf("res = %+v", res)
	}
	if r.commands[0] != "pm uninstall com.example.app" {
		t.Errorf("command = %q", r.commands[0])
	}
}

func TestKillProcessByName(t *testing.T) {
	r := &scriptRunner{handle: func(text string) (string, int, error) {
		if text == "pidof com.example.app" {
			return "123 456", 0, nil
		}
		return "", 0, nil
	}}
	m := newTestManager(r)

	res := m.KillProcessByName(context.Background(), "com.example.app")
	if !res.OK {
		t.Errorf("res = %+v", res)
	}
	want := []string{"pidof com.example.app", "kill 123 456"}
	if len(r.commands) != 2 || r.commands[0] != want[0] || r.commands[1] != want[1] {
		t.Errorf("commands = %v, want %v", r.commands, want)
	}
}

func TestKillProcessByNameNotRunning(t *testing.T) {
	r := &scriptRunner{handle: func(string) (string, int, error) { return "", 1, nil }}
	m := newTestManager(r)

	res := m.KillProcessByName(context.Background(), "com.example.app")
	if res.OK {
		t.Errorf("res = %+v, want failure for absent process", res)
	}
	if len(r.commands) != 1 {
		t.Errorf("commands = %v, want pidof only", r.commands)
	}
}

func TestIsProcessRunning(t *testing.T) {
	r := &scriptRunner{handle: func(string) (string, int, error) {
		return "root 1 init\nu0_a12 4242 com.example.app", 0, nil
	}}
	m := newTestManager(r)

	if !m.IsProcessRunning(context.Background(), "com.example.app") {
		t.Error("running process not found in ps output")
	}
	if m.IsProcessRunning(context.Background(), "com.other.app") {
		t.Error("absent process reported running")
	}
	if m.IsProcessRunning(context.Background(), "") {
		t.Error("empty name reported running")
	}
}

func TestRestartDeviceKillsZygote(t *testing.T) {
	r := &scriptRunner{handle: func(text string) (string, int, error) {
		if text == "pidof zygote" {
			return "77", 0, nil
		}
		return "", 0, nil
	}}
	m := newTestManager(r)

	if res := m.RestartDevice(context.Background()); !res.OK {
		t.Errorf("res = %+v", res)
	}
	if r.commands[1] != "kill 77" {
		t.Errorf("commands = %v", r.commands)
	}
}

func TestScreenCap(t *testing.T) {
	r := &scriptRunner{}
	m := newTestManager(r)

	if res := m.ScreenCap(context.Background(), "/sdcard/cap.png"); !res.OK {
		t.Errorf("res = %+v", res)
	}
	if r.commands[0] != "/system/bin/screencap -p /sdcard/cap.png" {
		t.Errorf("command = %q", r.commands[0])
	}
}

func TestScreenRecordUnsupported(t *testing.T) {
	m := newTestManager(&scriptRunner{})
	res := m.ScreenRecord(context.Background(), "/sdcard/rec.mp4")
	if res.OK || res.Code != domain.ResultFailed {
		t.Errorf("res = %+v, want unsupported failure", res)
	}
}

func TestCopyFile(t *testing.T) {
	r := &scriptRunner{}
	m := newTestManager(r)
	// Destination already mounted read-write, so no remount command runs.
	m.mountsPath = writeMounts(t, mountsFixture)

	res := m.CopyFile(context.Background(), "/sdcard/tool", "/data/local")
	if !res.OK {
		t.Fatalf("res = %+v", res)
	}
	if len(r.commands) != 1 || r.commands[0] != "cat '/sdcard/tool' > '/data/local/tool'" {
		t.Errorf("commands = %v", r.commands)
	}
}

func TestInstallBinaryMissingSource(t *testing.T) {
	m := newTestManager(&scriptRunner{})
	res := m.InstallBinary(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if res.OK {
		t.Errorf("res = %+v, want failure for missing source", res)
	}
}

func TestInstallBinary(t *testing.T) {
	src := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(src, []byte("bin"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := &scriptRunner{handle: func(text string) (string, int, error) { return "", 0, nil }}
	m := newTestManager(r)
	m.mountsPath = writeMounts(t, `/dev/block/sda2 /system ext4 rw,seclabel 0 0
`)

	res := m.InstallBinary(context.Background(), src)
	if !res.OK {
		t.Fatalf("res = %+v", res)
	}
	want := "cat '" + src + "' > '/system/bin/tool'"
	if len(r.commands) != 1 || r.commands[0] != want {
		t.Errorf("commands = %v, want [%s]", r.commands, want)
	}
}
