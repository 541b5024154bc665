// Package rootmgr is the caller-facing facade over the shell session
// core: package install/uninstall, filesystem remount, screen capture,
// process lookup and kill, and the root/elevation checks. Every operation
// is a string builder plus an output classifier layered on the core's
// run/observe contract.
package rootmgr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"rootshell/internal/domain"
	"rootshell/internal/infra/tracer"
)

// Runner executes one command under the requested elevation mode. It is
// satisfied by *shell.Supervisor.
type Runner interface {
	Run(ctx context.Context, elevated bool, text string) (string, int, error)
}

// ElevationChecker reports whether elevated execution is granted. It is
// satisfied by *permission.Cache.
type ElevationChecker interface {
	CheckElevated(ctx context.Context) bool
}

// RootAvailability reports whether an su binary exists on the device. It
// is satisfied by *permission.RootChecker.
type RootAvailability interface {
	Available() bool
}

// Manager exposes the device operations.
type Manager struct {
	runner Runner
	perm   ElevationChecker
	root   RootAvailability
	logger *slog.Logger

	mountsPath string // overridable for tests
}

// New creates a Manager.
func New(runner Runner, perm ElevationChecker, root RootAvailability, logger *slog.Logger) *Manager {
	return &Manager{
		runner:     runner,
		perm:       perm,
		root:       root,
		logger:     logger,
		mountsPath: "/proc/mounts",
	}
}

// RootAvailable reports whether the device carries an su binary at all.
func (m *Manager) RootAvailable() bool {
	return m.root.Available()
}

// CheckElevated reports whether elevated execution has been granted,
// using the permission cache's TTL policy.
func (m *Manager) CheckElevated(ctx context.Context) bool {
	return m.perm.CheckElevated(ctx)
}

// RunCommand runs a raw command on the elevated shell.
func (m *Manager) RunCommand(ctx context.Context, text string) domain.Result {
	return m.run(ctx, true, text)
}

// RunCommandAs runs a raw command under the chosen elevation mode.
func (m *Manager) RunCommandAs(ctx context.Context, elevated bool, text string) domain.Result {
	return m.run(ctx, elevated, text)
}

// InstallPackage installs an APK. location is one of LocationAuto,
// LocationExternal ("ex", sdcard), or LocationInternal ("in", ram).
func (m *Manager) InstallPackage(ctx context.Context, apkPath, location string) domain.Result {
	if apkPath == "" {
		return domain.FailedResult("empty apk path")
	}

	cmd := cmdInstall + apkPath
	switch strings.ToLower(location) {
	case LocationExternal:
		cmd += cmdInstallExternal
	case LocationInternal:
		cmd += cmdInstallInternal
	}

	res := m.run(ctx, true, cmd)
	if !res.OK && res.Code != domain.ResultFailed {
		return res // transport-level failure, already classified
	}
	return classifyInstall(res.Message)
}

// UninstallPackage removes an installed package by name.
func (m *Manager) UninstallPackage(ctx context.Context, packageName string) domain.Result {
	if packageName == "" {
		return domain.FailedResult("empty package name")
	}
	res := m.run(ctx, true, cmdUninstall+packageName)
	if !res.OK && res.Code != domain.ResultFailed {
		return res
	}
	return classifyUninstall(res.Message)
}

// UninstallSystemApp deletes a system APK after remounting /system
// read-write.
func (m *Manager) UninstallSystemApp(ctx context.Context, apkPath string) domain.Result {
	if apkPath == "" {
		return domain.FailedResult("empty apk path")
	}
	if err := m.Remount(ctx, pathSystem, "rw"); err != nil {
		return domain.ResultFromError(err)
	}
	return m.run(ctx, true, fmt.Sprintf("rm '%s'", apkPath))
}

// InstallBinary copies a binary into /system/bin.
func (m *Manager) InstallBinary(ctx context.Context, filePath string) domain.Result {
	if filePath == "" {
		return domain.FailedResult("empty file path")
	}
	if _, err := os.Stat(filePath); err != nil {
		return domain.FailedResult("source does not exist: " + filePath)
	}
	return m.CopyFile(ctx, filePath, pathSystemBin)
}

// RemoveBinary deletes a binary from /system/bin.
func (m *Manager) RemoveBinary(ctx context.Context, fileName string) domain.Result {
	if fileName == "" {
		return domain.FailedResult("empty file name")
	}
	if err := m.Remount(ctx, pathSystem, "rw"); err != nil {
		return domain.ResultFromError(err)
	}
	return m.run(ctx, true, fmt.Sprintf("rm '%s'", pathSystemBin+fileName))
}

// CopyFile copies a file into a destination directory. Stripped-down
// devices often lack cp, so the copy is `cat src > dst`.
func (m *Manager) CopyFile(ctx context.Context, source, destDir string) domain.Result {
	if source == "" || destDir == "" {
		return domain.FailedResult("empty source or destination")
	}
	if err := m.Remount(ctx, destDir, "rw"); err != nil {
		return domain.ResultFromError(err)
	}
	dst := filepath.Join(destDir, filepath.Base(source))
	return m.run(ctx, true, fmt.Sprintf("cat '%s' > '%s'", source, dst))
}

// ScreenCap captures the screen into the given file path.
func (m *Manager) ScreenCap(ctx context.Context, path string) domain.Result {
	if path == "" {
		return domain.FailedResult("empty path")
	}
	return m.run(ctx, true, cmdScreenCap+path)
}

// ScreenRecord is not supported on the targeted shells.
func (m *Manager) ScreenRecord(ctx context.Context, path string) domain.Result {
	return domain.ResultFromError(domain.NewDomainError("Manager.ScreenRecord", domain.ErrUnsupported, ""))
}

// IsProcessRunning reports whether a process with the given name shows up
// in ps output. For user apps the process name is the package name.
func (m *Manager) IsProcessRunning(ctx context.Context, processName string) bool {
	if processName == "" {
		return false
	}
	res := m.run(ctx, true, cmdListProcesses)
	return res.OK && strings.Contains(res.Message, processName)
}

// KillProcessByName resolves a process name to its pids and kills them.
func (m *Manager) KillProcessByName(ctx context.Context, processName string) domain.Result {
	if processName == "" {
		return domain.FailedResult("empty process name")
	}
	res := m.run(ctx, true, cmdPidOf+processName)
	pids := strings.Fields(res.Message)
	if !res.OK || len(pids) == 0 {
		return domain.FailedResult("no such process: " + processName)
	}
	return m.KillProcessByID(ctx, strings.Join(pids, " "))
}

// KillProcessByID kills one or more processes by pid.
func (m *Manager) KillProcessByID(ctx context.Context, pids string) domain.Result {
	if strings.TrimSpace(pids) == "" {
		return domain.FailedResult("empty pid")
	}
	return m.run(ctx, true, cmdKill+pids)
}

// RestartDevice restarts the runtime by killing the zygote process.
func (m *Manager) RestartDevice(ctx context.Context) domain.Result {
	return m.KillProcessByName(ctx, zygoteProcess)
}

// run executes one command and folds output, exit code, and transport
// errors into a Result.
func (m *Manager) run(ctx context.Context, elevated bool, text string) domain.Result {
	ctx, span := tracer.StartSpan(ctx, "rootmgr.run")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("command", text),
		tracer.StringAttr("elevated", fmt.Sprintf("%t", elevated)),
	)

	out, code, err := m.runner.Run(ctx, elevated, text)
	if err != nil {
		tracer.RecordError(span, err)
		m.logger.Warn("command failed", "command", text, "code", domain.ErrorCodeOf(err), "error", err)
		res := domain.ResultFromError(err)
		if out != "" {
			res.Message = out
		}
		return res
	}
	span.SetAttributes(tracer.IntAttr("exit_code", code))
	if code != 0 {
		return domain.FailedResult(out)
	}
	return domain.OKResult(out)
}
