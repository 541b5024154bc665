package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"rootshell/internal/domain"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

// exitCode is picked up by main after the supervisor has been shut down,
// so a failing command never leaves the shell subprocess behind.
var exitCode int

func printResult(res domain.Result) {
	if res.Message != "" {
		fmt.Println(strings.TrimRight(res.Message, "\n"))
	}
	if res.OK {
		okColor.Println("OK")
		return
	}
	failColor.Printf("FAILED (%s)\n", res.Code)
	exitCode = 1
}

func newRunCmd(a **app) *cobra.Command {
	var user bool
	cmd := &cobra.Command{
		Use:   "run <command>...",
		Short: "Run a command on the device shell, streaming its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")

			session, err := (*a).sup.Session(!user)
			if err != nil {
				return err
			}

			c := domain.NewCommand(text, func(_ int64, line string) {
				fmt.Println(line)
			}, nil)
			if err := session.Submit(c); err != nil {
				return err
			}
			if err := session.Wait(cmd.Context(), 0); err != nil {
				return err
			}
			if code, _ := c.Outcome(); code != 0 {
				failColor.Printf("exit %d\n", code)
				exitCode = code
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&user, "user", false, "run unelevated instead of through su")
	return cmd
}

func newCheckCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check root availability and whether elevation is granted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (*a).mgr.RootAvailable() {
				okColor.Println("su binary: present")
			} else {
				failColor.Println("su binary: absent")
			}
			if (*a).mgr.CheckElevated(cmd.Context()) {
				okColor.Println("elevation: granted")
			} else {
				failColor.Println("elevation: not granted")
				exitCode = 1
			}
			return nil
		},
	}
}

func newInstallCmd(a **app) *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "install <apk-path>",
		Short: "Install an APK",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printResult((*a).mgr.InstallPackage(cmd.Context(), args[0], location))
			return nil
		},
	}
	cmd.Flags().StringVar(&location, "location", "auto", "install location: auto, ex (sdcard), in (ram)")
	return cmd
}

func newUninstallCmd(a **app) *cobra.Command {
	var system bool
	cmd := &cobra.Command{
		Use:   "uninstall <package|apk-path>",
		Short: "Uninstall a package, or delete a system APK with --system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if system {
				printResult((*a).mgr.UninstallSystemApp(cmd.Context(), args[0]))
			} else {
				printResult((*a).mgr.UninstallPackage(cmd.Context(), args[0]))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&system, "system", false, "treat the argument as a system APK path")
	return cmd
}

func newRemountCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "remount <path> <ro|rw>",
		Short: "Remount the filesystem containing a path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (*a).mgr.Remount(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			okColor.Println("OK")
			return nil
		},
	}
}

func newPsCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "ps <process-name>",
		Short: "Check whether a process is running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (*a).mgr.IsProcessRunning(cmd.Context(), args[0]) {
				okColor.Println("running")
				return nil
			}
			failColor.Println("not running")
			exitCode = 1
			return nil
		},
	}
}

func newKillCmd(a **app) *cobra.Command {
	var byID bool
	cmd := &cobra.Command{
		Use:   "kill <process-name|pid>",
		Short: "Kill a process by name (or pid with --pid)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if byID {
				printResult((*a).mgr.KillProcessByID(cmd.Context(), args[0]))
			} else {
				printResult((*a).mgr.KillProcessByName(cmd.Context(), args[0]))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&byID, "pid", false, "treat the argument as a pid")
	return cmd
}

func newScreenCapCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "screencap <output-path>",
		Short: "Capture the screen to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printResult((*a).mgr.ScreenCap(cmd.Context(), args[0]))
			return nil
		},
	}
}
