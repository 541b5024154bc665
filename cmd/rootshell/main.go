package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rootshell/internal/infra/config"
	"rootshell/internal/infra/logger"
	"rootshell/internal/infra/tracer"
	"rootshell/internal/usecase/eventbus"
	"rootshell/internal/usecase/permission"
	"rootshell/internal/usecase/rootmgr"
	"rootshell/internal/usecase/shell"
)

const version = "0.1.0"

// app bundles the wired components behind the CLI commands.
type app struct {
	cfg           *config.Config
	closeLog      func() error
	traceShutdown func(context.Context) error
	bus           *eventbus.Bus
	sup           *shell.Supervisor
	mgr           *rootmgr.Manager
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, err
	}

	traceShutdown, err := tracer.Setup(context.Background(), cfg.Tracer)
	if err != nil {
		closeLog()
		return nil, err
	}

	bus := eventbus.New(log)
	sup := shell.NewSupervisor(shell.Config{
		ShellPath:       cfg.Shell.ShellPath,
		SuPath:          cfg.Shell.SuPath,
		WaitTimeout:     cfg.Shell.Timeout(),
		OutputBufferMax: cfg.Shell.OutputBufferMax,
	}, log, bus)

	perm := permission.NewCache(sup, permission.Config{
		TTL:           cfg.Permission.TTLDuration(),
		ProbeInterval: cfg.Permission.ProbeIntervalDuration(),
	}, log, bus)

	mgr := rootmgr.New(sup, perm, permission.NewRootChecker(), log)

	return &app{
		cfg:           cfg,
		closeLog:      closeLog,
		traceShutdown: traceShutdown,
		bus:           bus,
		sup:           sup,
		mgr:           mgr,
	}, nil
}

func (a *app) shutdown() {
	a.sup.Shutdown()
	a.bus.Close()
	a.traceShutdown(context.Background())
	a.closeLog()
}

func main() {
	var configPath string
	var a *app

	rootCmd := &cobra.Command{
		Use:           "rootshell",
		Short:         "Run shell commands under an elevated or normal identity on a device",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp(configPath)
			return err
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(
		newRunCmd(&a),
		newCheckCmd(&a),
		newInstallCmd(&a),
		newUninstallCmd(&a),
		newRemountCmd(&a),
		newPsCmd(&a),
		newKillCmd(&a),
		newScreenCapCmd(&a),
		newVersionCmd(),
	)

	err := rootCmd.Execute()
	if a != nil {
		a.shutdown()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "rootshell: %v\n", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("rootshell " + version)
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}
}
