// Package cmd defines and implements the CLI commands for the harvester executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/app"
	"github.com/JakeFAU/contact-harvester/internal/collector"
	"github.com/JakeFAU/contact-harvester/internal/config"
	"github.com/JakeFAU/contact-harvester/internal/export"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/progress"
	progresssinks "github.com/JakeFAU/contact-harvester/internal/progress/sinks"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the application surface the commands use. *app.App satisfies it;
// tests inject one built over fakes.
type App interface {
	Config() config.Config
	Logger() *zap.Logger
	Clock() harvest.Clock
	Store() harvest.Store
	Streams() *progresssinks.StreamSink
	StartRun(flow progress.Flow) *progress.Run
	Collect(ctx context.Context, req collector.Request, emit progress.Emitter) ([]harvest.Contact, error)
	ComposeMessage(subject, html, text string, attachments ...string) (harvest.Message, error)
	Send(
		ctx context.Context,
		contacts []harvest.Contact,
		msg harvest.Message,
		delay time.Duration,
		emit progress.Emitter,
	) (harvest.DispatchResult, error)
	SendTest(ctx context.Context, to string, msg harvest.Message, emit progress.Emitter) (harvest.DispatchResult, error)
	ExportDestination(ctx context.Context, bucket, dir string) (export.Destination, func(), error)
	Close(ctx context.Context)
}

// appFactory builds the application from loaded configuration.
type appFactory func(ctx context.Context, cfg config.Config) (App, error)

func defaultApp(ctx context.Context, cfg config.Config) (App, error) {
	return app.Build(ctx, cfg)
}

// cli carries state shared by the command tree for one execution.
type cli struct {
	build   appFactory
	cfgFile string
	app     App
}

// close releases the application once, whether or not the command failed.
func (c *cli) close(ctx context.Context) {
	if c.app == nil {
		return
	}
	c.app.Close(ctx)
	c.app = nil
}

// newRootCmd creates and configures the root command.
func (c *cli) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Collects business contact emails and sends bulk messages to them.",
		Long: `harvester searches the web for companies matching keywords, visits their
sites, keeps the business addresses whose domains accept mail, and later
sends a message to the collected contacts.`,
		SilenceUsage: true,

		// Runs before the subcommand's RunE: build and inject the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := c.build(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			c.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			c.close(context.WithoutCancel(cmd.Context()))
		},
	}

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "",
		"config file (default is ./harvester.yaml, $HOME/.contact-harvester or /etc/contact-harvester)")

	cmd.AddCommand(
		newCollectCmd(),
		newCollectCityCmd(),
		newSendCmd(),
		newListCmd(),
		newExportCmd(),
		newClearCmd(),
		newImportLegacyCmd(),
		newServeCmd(),
	)
	return cmd
}

// execute runs args against a fresh command tree built over build.
func execute(ctx context.Context, build appFactory, args []string) error {
	c := &cli{build: build}
	root := c.newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	c.close(context.WithoutCancel(ctx))
	return err
}

// Execute is the main entry point. Ctrl-C cancels the running command
// cooperatively.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, defaultApp, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "harvester: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
