package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/shipctl/ship/internal/actions"
	"github.com/shipctl/ship/internal/api"
	"github.com/shipctl/ship/internal/flags"
	"github.com/shipctl/ship/internal/logging"
	"github.com/shipctl/ship/internal/meta"
	"github.com/shipctl/ship/internal/render"
	"github.com/shipctl/ship/internal/scheduling"
	"github.com/shipctl/ship/pkg/compose"
	"github.com/shipctl/ship/pkg/container"
	"github.com/shipctl/ship/pkg/lock"
	"github.com/shipctl/ship/pkg/metrics"
	"github.com/shipctl/ship/pkg/notifications"
	"github.com/shipctl/ship/pkg/registry"
	"github.com/shipctl/ship/pkg/registry/remote"
	"github.com/shipctl/ship/pkg/session"
	"github.com/shipctl/ship/pkg/stack"
	"github.com/shipctl/ship/pkg/types"
)

// Exit codes of the root command.
const (
	exitOK     = 0
	exitFailed = 1
)

// Errors for wiring a run.
var (
	// errInitMetrics indicates the metrics collectors could not be created.
	errInitMetrics = errors.New("failed to initialize metrics")
	// errInitNotifier indicates the notification URLs or template were rejected.
	errInitNotifier = errors.New("failed to initialize notifier")
	// errSelectTargets indicates the working directory could not be scanned for stacks.
	errSelectTargets = errors.New("failed to select targets")
	// errReadTemplateFlag indicates the notification template flag could not be read.
	errReadTemplateFlag = errors.New("failed to read notification template flag")
)

// rootCmd is the ship command.
var rootCmd = NewRootCommand()

// RunConfig is everything one invocation needs besides the Docker daemon.
type RunConfig struct {
	Options flags.Options
	// Dirs are the stack directories named on the command line.
	Dirs []string
	// WorkDir is searched for stacks when Options.All is set.
	WorkDir string
	Fs      afero.Fs
	Out     io.Writer
	In      io.Reader
}

// app holds the components shared by every run of one invocation.
type app struct {
	config   RunConfig
	terminal *render.Terminal
	resolver *registry.Resolver
	scanner  *actions.Scanner
	updater  *actions.Updater
	metrics  *metrics.Metrics
	notifier *notifications.Notifier
}

// NewRootCommand creates and configures the root command for the ship CLI.
//
// Returns:
//   - *cobra.Command: The root command, ready for flag registration and execution.
func NewRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ship [directories...]",
		Short: "Updates Docker Compose stacks whose images have changed",
		Long: "\nship checks Docker Compose stacks for newer images on their registries," +
			"\npulls them and recreates the stacks that are out of date.",
		Run:    run,
		PreRun: preRun,
		Args:   cobra.ArbitraryArgs,
	}
}

// init registers command-line flags for the root command.
func init() {
	flags.SetDefaults()
	flags.RegisterDockerFlags(rootCmd)
	flags.RegisterSystemFlags(rootCmd)
	flags.RegisterNotificationFlags(rootCmd)
	flags.RegisterAPIFlags(rootCmd)
}

// Execute runs the root command, exiting on a command-line error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("Failed to execute root command")
	}
}

// preRun sets up logging, secrets and the Docker environment before run.
//
// Parameters:
//   - cmd: The command being executed.
//   - _: Positional arguments, handled in run.
func preRun(cmd *cobra.Command, _ []string) {
	flagsSet := cmd.PersistentFlags()
	flags.ProcessFlagAliases(flagsSet)

	if err := flags.SetupLogging(flagsSet); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logging")
	}

	flags.GetSecretsFromFiles(cmd)

	if err := flags.EnvConfig(cmd); err != nil {
		logrus.WithError(err).Fatal("Failed to apply Docker configuration")
	}

	remote.UserAgent = meta.UserAgent
}

// run reads the options, wires the components and exits with the run's status.
//
// SIGINT and SIGTERM cancel the run; a second signal terminates immediately.
//
// Parameters:
//   - c: The command being executed.
//   - dirs: Stack directories named on the command line.
func run(c *cobra.Command, dirs []string) {
	opts, err := flags.ReadOptions(c.PersistentFlags())
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	workDir, err := os.Getwd()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to read the working directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	go func() {
		<-ctx.Done()
		stop()
	}()

	code := runMain(ctx, RunConfig{
		Options: opts,
		Dirs:    dirs,
		WorkDir: workDir,
		Fs:      afero.NewOsFs(),
		Out:     c.OutOrStdout(),
		In:      c.InOrStdin(),
	})
	stop()

	if code != exitOK {
		os.Exit(code)
	}
}

// runMain connects to Docker and performs one run, or keeps running as a daemon.
//
// Parameters:
//   - ctx: Context cancelled on shutdown.
//   - cfg: Invocation settings.
//
// Returns:
//   - int: Process exit code.
func runMain(ctx context.Context, cfg RunConfig) int {
	terminal := render.New(cfg.Out, cfg.In, render.Options{
		Verbose: cfg.Options.Verbose,
		NoColor: cfg.Options.NoColor,
	})
	terminal.Header(meta.Version)

	docker, err := container.NewClient(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to connect to the Docker daemon")

		return exitFailed
	}

	defer func() {
		if err := docker.Close(); err != nil {
			logrus.WithError(err).Debug("Failed to close Docker client")
		}
	}()

	a, err := newApp(cfg, docker, terminal)
	if err != nil {
		logrus.WithError(err).Error("Failed to initialize ship")

		return exitFailed
	}

	if cfg.Options.Daemon() {
		return a.runDaemon(ctx, docker.APIVersion())
	}

	if cfg.Options.HTTPAPIMetrics {
		logrus.Warn("--http-api-metrics has no effect without --schedule or --http-api-update")
	}

	return exitCode(a.runOnce(ctx))
}

// newApp wires the scan and update pipeline around docker.
//
// Parameters:
//   - cfg: Invocation settings.
//   - docker: Daemon client used for image, container and prune calls.
//   - terminal: Presenter receiving progress.
//
// Returns:
//   - *app: Wired components.
//   - error: Non-nil if metrics or notifications could not be set up.
func newApp(cfg RunConfig, docker *container.Client, terminal *render.Terminal) (*app, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}

	opts := cfg.Options
	cli := compose.NewCLI(compose.ExecRunner{Binary: compose.DefaultBinary})

	lookupTimeout := opts.LookupTimeout
	if lookupTimeout <= 0 {
		lookupTimeout = stack.DefaultLookupTimeout
	}

	resolver := registry.NewResolver(
		remote.NewClient(remote.Options{}),
		registry.NewGate(opts.RegistryDelay, nil),
		lookupTimeout,
	)

	inspector := stack.NewInspector(
		stack.Config{Arch: opts.Arch, Force: opts.Force, LookupTimeout: lookupTimeout},
		stack.Dependencies{
			Fs:         cfg.Fs,
			Compose:    cli,
			Images:     docker,
			Containers: docker,
			Lister:     docker,
			Resolver:   resolver,
		},
	)

	a := &app{
		config:   cfg,
		terminal: terminal,
		resolver: resolver,
		scanner: actions.NewScanner(inspector, actions.ScanConfig{
			MaxWorkers:   opts.Jobs,
			StaggerDelay: opts.Delay,
		}),
		updater: actions.NewUpdater(actions.UpdaterDeps{
			Compose:        cli,
			Pruner:         docker,
			Locker:         lock.New(opts.LockFile),
			Fs:             cfg.Fs,
			TranscriptPath: opts.LogFile,
			Observer:       terminal,
		}),
	}

	if opts.MetricsFile != "" || opts.HTTPAPIMetrics {
		m, err := metrics.New()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errInitMetrics, err)
		}

		a.metrics = m
	}

	if len(opts.NotificationURLs) > 0 {
		notifier, err := notifications.New(
			opts.NotificationURLs,
			opts.NotificationTemplate,
			notifications.StaticData{Title: opts.NotificationTitle, Host: opts.Hostname},
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errInitNotifier, err)
		}

		a.notifier = notifier
	}

	return a, nil
}

// runOnce performs one scan and update over the configured targets.
//
// Parameters:
//   - ctx: Context for the run.
//
// Returns:
//   - *session.Report: The run's report, nil when nothing was scanned.
//   - error: Non-nil if targets could not be selected or the run was cut short.
func (a *app) runOnce(ctx context.Context) (*session.Report, error) {
	return a.runWith(ctx, nil)
}

// runWith performs one scan and update over requested, or the configured targets when empty.
func (a *app) runWith(ctx context.Context, requested []string) (*session.Report, error) {
	opts := a.config.Options

	targets, err := a.targets(requested)
	if err != nil {
		logrus.WithError(err).Error("Failed to select targets")

		return nil, err
	}

	if len(targets) == 0 {
		a.terminal.NoTargets()

		return nil, nil
	}

	params := actions.RunParams{
		Targets:     targets,
		Force:       opts.Force,
		Prune:       opts.Prune,
		Observer:    a.terminal,
		Metrics:     a.metrics,
		MetricsFile: opts.MetricsFile,
		Notifier:    a.notifier,
		Stats:       a.stats,
	}
	if !opts.Yes {
		params.Confirm = a.terminal.Confirm
	}

	report, err := actions.RunScanAndUpdate(ctx, a.scanner, a.updater, params)
	if errors.Is(err, types.ErrAlreadyRunning) {
		a.terminal.AlreadyRunning()
	} else if err != nil {
		logrus.WithError(err).Warn("Run did not complete")
	}

	return report, err
}

// targets resolves the stacks of one run.
//
// Relative requested directories are resolved against the working directory.
func (a *app) targets(requested []string) ([]types.Target, error) {
	if len(requested) == 0 {
		return selectTargets(a.config.Fs, a.config.Options, a.config.WorkDir, a.config.Dirs)
	}

	dirs := make([]string, 0, len(requested))
	for _, dir := range requested {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(a.config.WorkDir, dir)
		}

		dirs = append(dirs, dir)
	}

	return stack.Explicit(a.config.Fs, dirs), nil
}

// runTriggered performs a run requested through the HTTP API and summarizes it.
//
// Parameters:
//   - ctx: Daemon context; the run is not tied to the requesting client.
//   - dirs: Requested stack directories, empty for the configured targets.
//
// Returns:
//   - *metrics.Metric: Summary of the run, with the registry counters of this run only.
func (a *app) runTriggered(ctx context.Context, dirs []string) *metrics.Metric {
	before := a.stats()
	report, _ := a.runWith(ctx, dirs)
	after := a.stats()

	return metrics.NewMetric(report, metrics.RegistryStats{
		Requests:    after.Requests - before.Requests,
		RateLimited: after.RateLimited - before.RateLimited,
	})
}

// runDaemon serves the HTTP API and runs on the configured schedule until ctx is cancelled.
//
// Without a schedule, runs are only triggered through the HTTP API.
//
// Parameters:
//   - ctx: Context cancelled on shutdown.
//   - apiVersion: Docker API version reported at startup.
//
// Returns:
//   - int: Process exit code.
func (a *app) runDaemon(ctx context.Context, apiVersion string) int {
	opts := a.config.Options
	lock := scheduling.NewUpdateLock()
	log := logrus.NewEntry(logrus.StandardLogger())

	startup := logging.StartupInfo{
		Version:    meta.Version,
		APIVersion: apiVersion,
		Targets:    describeTargets(opts, a.config.WorkDir, a.config.Dirs),
		UpdateAPI:  opts.HTTPAPIUpdate,
	}

	if a.notifier != nil {
		startup.Notifiers = a.notifier.Names()
	}

	if opts.APIEnabled() {
		startup.APIAddr = api.GetAPIAddr(opts.HTTPAPIHost, opts.HTTPAPIPort)

		err := api.SetupAndStartAPI(ctx, api.Config{
			Host:          opts.HTTPAPIHost,
			Port:          opts.HTTPAPIPort,
			Token:         opts.HTTPAPIToken,
			EnableUpdate:  opts.HTTPAPIUpdate,
			EnableMetrics: opts.HTTPAPIMetrics,
			Lock:          lock,
			Update: func(_ context.Context, dirs []string) *metrics.Metric {
				return a.runTriggered(ctx, dirs)
			},
			Metrics: a.metrics,
		})
		if err != nil {
			logrus.WithError(err).Error("Failed to start the HTTP API")

			return exitFailed
		}
	}

	if opts.Schedule == "" {
		logging.WriteStartupMessage(log, startup)

		<-ctx.Done()
		scheduling.WaitForRunningUpdate(context.WithoutCancel(ctx), lock)

		return exitOK
	}

	err := scheduling.RunOnSchedule(ctx, scheduling.Config{
		Spec:       opts.Schedule,
		RunOnStart: true,
		Started: func(next time.Time) {
			startup.NextRun = next
			logging.WriteStartupMessage(log, startup)
		},
		Skipped: a.skip,
		Lock:    lock,
	}, func(ctx context.Context) {
		_, _ = a.runOnce(ctx)
	})
	if err != nil {
		logrus.WithError(err).Error("Scheduled operation failed")

		return exitFailed
	}

	return exitOK
}

// skip records a tick dropped because the previous run was still active.
func (a *app) skip() {
	logrus.Info("Skipping scheduled run: previous run still active")

	if a.metrics == nil {
		return
	}

	a.metrics.Skip()

	if a.config.Options.MetricsFile == "" {
		return
	}

	if err := a.metrics.WriteTextfile(a.config.Options.MetricsFile); err != nil {
		logrus.WithError(err).Warn("Failed to write metrics")
	}
}

// stats reads the resolver's cumulative registry counters.
func (a *app) stats() metrics.RegistryStats {
	return metrics.RegistryStats{
		Requests:    a.resolver.Requests(),
		RateLimited: a.resolver.RateLimited(),
	}
}

// selectTargets resolves the stacks of one run.
//
// With opts.All every subdirectory of workDir is a candidate; otherwise dirs are used as given.
//
// Parameters:
//   - fs: Filesystem holding the stacks.
//   - opts: Run options.
//   - workDir: Directory searched with opts.All.
//   - dirs: Explicit stack directories.
//
// Returns:
//   - []types.Target: Selected targets, possibly empty.
//   - error: Non-nil if workDir could not be read.
func selectTargets(fs afero.Fs, opts flags.Options, workDir string, dirs []string) ([]types.Target, error) {
	if !opts.All {
		return stack.Explicit(fs, dirs), nil
	}

	targets, err := stack.Discover(fs, workDir, opts.IgnoreFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSelectTargets, err)
	}

	return targets, nil
}

// describeTargets summarizes the target selection for the startup message.
func describeTargets(opts flags.Options, workDir string, dirs []string) string {
	if opts.All {
		return "Checking all stacks under " + workDir
	}

	return "Checking stacks: " + strings.Join(dirs, ", ")
}

// exitCode maps a run's outcome to the process exit code.
//
// Parameters:
//   - report: The run's report, possibly nil.
//   - err: The run's error.
//
// Returns:
//   - int: exitFailed on any error or failed stack, exitOK otherwise.
func exitCode(report *session.Report, err error) int {
	if err != nil {
		return exitFailed
	}

	if report != nil && len(report.Failed()) > 0 {
		return exitFailed
	}

	return exitOK
}
