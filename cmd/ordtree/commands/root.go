// Package commands implements the ordtree subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordtree/pkg/config"
	"github.com/Sumatoshi-tech/ordtree/pkg/observability"
	"github.com/Sumatoshi-tech/ordtree/pkg/version"
)

// Global flag names.
const (
	flagConfig   = "config"
	flagKeys     = "keys"
	flagUnique   = "unique"
	flagLogLevel = "log-level"
	flagLogJSON  = "log-json"
)

const rootLong = `ordtree builds balanced ordered trees from keys and inspects them.

Keys are read from arguments, --file, or standard input, separated by
whitespace. Equal keys are kept in insertion order unless --unique is set.`

// Runtime is the state shared by every subcommand: the loaded configuration
// and the telemetry providers installed for the current invocation.
type Runtime struct {
	Config    *config.Config
	Providers observability.Providers
	Metrics   *observability.TreeMetrics
	Logger    *slog.Logger

	configPath string
	keyType    string
	logLevel   string
	unique     bool
	logJSON    bool
}

// NewRootCommand creates the ordtree command tree.
func NewRootCommand() *cobra.Command {
	rt := &Runtime{}

	root := &cobra.Command{
		Use:               "ordtree",
		Short:             "Build, verify and inspect red-black trees",
		Long:              rootLong,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: rt.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.configPath, flagConfig, "", "config file (default: ./config.yaml, ./config/config.yaml, /etc/ordtree/config.yaml)")
	flags.StringVar(&rt.keyType, flagKeys, config.DefaultKeyType, "key type: int or string")
	flags.BoolVar(&rt.unique, flagUnique, config.DefaultUnique, "ignore keys already present in the tree")
	flags.StringVar(&rt.logLevel, flagLogLevel, config.DefaultLogLevel, "log level: debug, info, warn, error")
	flags.BoolVar(&rt.logJSON, flagLogJSON, false, "emit JSON logs")

	root.AddCommand(
		NewBuildCommand(rt),
		NewVerifyCommand(rt),
		NewBenchCommand(rt),
		NewTreeCommand(rt),
		NewRenderCommand(rt),
		NewSnapshotCommand(rt),
		NewVersionCommand(),
	)

	return root
}

// setup loads the configuration, applies explicitly set flags on top of it
// and installs logging and telemetry.
func (rt *Runtime) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(rt.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()

	if flags.Changed(flagKeys) {
		cfg.Tree.KeyType = rt.keyType
	}

	if flags.Changed(flagUnique) {
		cfg.Tree.Unique = rt.unique
	}

	if flags.Changed(flagLogLevel) {
		cfg.Logging.Level = rt.logLevel
	}

	if flags.Changed(flagLogJSON) && rt.logJSON {
		cfg.Logging.Format = "json"
	}

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	level, err := observability.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.LogOutput = cmd.ErrOrStderr()
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == "json"
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio

	if cmd.Name() == benchCmdName {
		obsCfg.Mode = observability.ModeBench
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	metrics, err := observability.NewTreeMetrics(providers.Meter)
	if err != nil {
		return errors.Join(fmt.Errorf("init metrics: %w", err), providers.Shutdown(context.Background()))
	}

	rt.Config = cfg
	rt.Providers = providers
	rt.Metrics = metrics
	rt.Logger = providers.Logger

	slog.SetDefault(providers.Logger)

	return nil
}

// wrap turns fn into a RunE that traces the command, records its outcome
// and flushes telemetry before returning.
func (rt *Runtime) wrap(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		ctx, span := rt.Providers.Tracer.Start(ctx, "ordtree."+cmd.Name())
		started := time.Now()

		runErr := fn(ctx, cmd, args)

		status := observability.StatusOK
		if runErr != nil {
			status = observability.StatusError
			span.RecordError(runErr)
		}

		rt.Metrics.RecordCommand(ctx, cmd.Name(), status, time.Since(started))
		rt.Logger.DebugContext(ctx, "command finished", "command", cmd.Name(), "status", status,
			"duration", time.Since(started))
		span.End()

		shutdownErr := rt.Providers.Shutdown(context.Background())
		if shutdownErr != nil {
			shutdownErr = fmt.Errorf("flush telemetry: %w", shutdownErr)
		}

		return errors.Join(runErr, shutdownErr)
	}
}
