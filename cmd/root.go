// Package cmd implements the ttms command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilianp07/ttms/app"
	"github.com/kilianp07/ttms/config"
	"github.com/kilianp07/ttms/core/auth"
	"github.com/kilianp07/ttms/infra/logger"
)

var (
	cfgPath   string
	actorID   string
	actorRole string
)

var rootCmd = &cobra.Command{
	Use:           "ttms",
	Short:         "Train timetable management service",
	Long:          color.CyanString("ttms") + " manages timetables, train schedules, track conflicts and live positions.",
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&actorID, "actor", os.Getenv("USER"), "user id recorded in the audit trail")
	rootCmd.PersistentFlags().StringVar(&actorRole, "role", string(auth.RoleViewer), "role of the actor: viewer, operator, scheduler or administrator")
}

// Execute runs the CLI and prints a failure in red.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// currentActor builds the caller identity from --actor and --role.
func currentActor() (auth.Actor, error) {
	role := auth.Role(actorRole)
	if !auth.ValidRole(role) {
		return auth.Actor{}, fmt.Errorf("unknown role %q", actorRole)
	}
	if actorID == "" {
		return auth.Actor{}, fmt.Errorf("--actor is required")
	}
	return auth.NewActor(actorID, role), nil
}

// withService opens the service for one command without starting its
// background components.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *app.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(ctx, svc)
}
