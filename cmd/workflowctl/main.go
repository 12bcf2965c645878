// Command workflowctl drives content items through their workflows from the
// command line against the service database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/content-workflow/internal/config"
	"github.com/garyjia/content-workflow/internal/container"
	"github.com/garyjia/content-workflow/pkg/utils"
)

// cli carries state shared by every subcommand. container is opened lazily
// unless a test injects one.
type cli struct {
	configPath string
	logLevel   string

	container *container.Container
	owned     bool
}

func main() {
	if err := newRootCmd(&cli{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(app *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "workflowctl",
		Short:         "Operate the content workflow engine",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.close()
		},
	}

	root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "configs/config.yaml", "path to the config file")
	root.PersistentFlags().StringVar(&app.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newCreateCmd(app),
		newStartCmd(app),
		newTransitionCmd(app, transitionComplete),
		newTransitionCmd(app, transitionDiscard),
		newTransitionCmd(app, transitionApprove),
		newTransitionCmd(app, transitionReject),
		newStatusCmd(app),
		newLogsCmd(app),
		newExportCmd(app),
		newRelayCmd(app),
		newMigrationsCmd(app),
	)
	return root
}

func (a *cli) open(ctx context.Context) error {
	if a.container != nil {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	logger, err := utils.NewCLILogger(a.logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	containerCfg, unknown := cfg.ToContainerConfig()
	for _, key := range unknown {
		logger.Warn("Ignoring comment template for unknown log type", zap.String("key", key))
	}
	containerCfg.RunWorkers = false

	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}

	a.container = c
	a.owned = true
	return nil
}

func (a *cli) close() error {
	if !a.owned || a.container == nil {
		return nil
	}
	err := a.container.Close()
	a.container = nil
	a.owned = false
	return err
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
