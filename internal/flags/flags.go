package flags

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shipctl/ship/internal/actions"
	"github.com/shipctl/ship/pkg/lock"
	"github.com/shipctl/ship/pkg/registry"
	"github.com/shipctl/ship/pkg/stack"
)

// DockerAPIMinVersion specifies the minimum Docker API version required by ship.
const DockerAPIMinVersion string = "1.44"

// Scan and update defaults.
const (
	DefaultJobs           = 100
	DefaultDelayMillis    = 200
	DefaultLookupTimeout  = stack.DefaultLookupTimeout
	DefaultLockFile       = lock.DefaultPath
	DefaultIgnoreFile     = stack.DefaultIgnoreFile
	DefaultTranscriptName = actions.DefaultTranscriptName
)

// registryDelayFollowsDelay marks --registry-delay as unset so it tracks --delay.
const registryDelayFollowsDelay = -1

// errInvalidLogFormat indicates an invalid log format was specified.
var errInvalidLogFormat = errors.New("invalid log format specified")

// errInvalidLogLevel indicates an invalid log level was specified.
var errInvalidLogLevel = errors.New("invalid log level specified")

// errSetEnvFailed indicates a failure to set an environment variable.
var errSetEnvFailed = errors.New("failed to set environment variable")

// errOpenFileFailed indicates a failure to open a file for reading secrets.
var errOpenFileFailed = errors.New("failed to open secret file")

// errCloseFileFailed indicates a failure to close a file after reading secrets.
var errCloseFileFailed = errors.New("failed to close secret file")

// errReplaceSliceFailed indicates a failure to replace a slice value in a flag.
var errReplaceSliceFailed = errors.New("failed to replace slice value in flag")

// errReadFileFailed indicates a failure to read a file’s contents.
var errReadFileFailed = errors.New("failed to read secret file")

// errSetFlagFailed indicates a failure to set or read a flag’s value.
var errSetFlagFailed = errors.New("failed to set flag value")

// errInvalidOption indicates a flag value outside its accepted range.
var errInvalidOption = errors.New("invalid option")

// errMissingAPIToken indicates the HTTP API was enabled without a token.
var errMissingAPIToken = errors.New("http api enabled without --http-api-token")

// Options is the run configuration read from the command line and environment.
type Options struct {
	All     bool
	Force   bool
	Yes     bool
	Prune   bool
	Verbose bool
	NoColor bool

	Jobs          int
	Delay         time.Duration
	RegistryDelay time.Duration
	LookupTimeout time.Duration
	Arch          string

	LockFile    string
	LogFile     string
	IgnoreFile  string
	Schedule    string
	MetricsFile string

	NotificationURLs     []string
	NotificationTemplate string
	NotificationTitle    string
	Hostname             string

	HTTPAPIUpdate  bool
	HTTPAPIMetrics bool
	HTTPAPIHost    string
	HTTPAPIPort    string
	HTTPAPIToken   string
}

// APIEnabled reports whether any HTTP API endpoint is enabled.
func (o Options) APIEnabled() bool {
	return o.HTTPAPIUpdate || o.HTTPAPIMetrics
}

// Daemon reports whether ship keeps running after the first run.
func (o Options) Daemon() bool {
	return o.Schedule != "" || o.HTTPAPIUpdate
}

// RegisterDockerFlags adds flags used directly by the Docker API client to the root command.
func RegisterDockerFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.StringP("host", "H", envString("DOCKER_HOST"), "daemon socket to connect to")
	flags.Bool("tlsverify", envBool("DOCKER_TLS_VERIFY"), "use TLS and verify the remote")
	flags.String(
		"api-version",
		envString("DOCKER_API_VERSION"),
		"api version to use by docker client",
	)
}

// RegisterSystemFlags adds flags that select targets and control the scan and update flow.
func RegisterSystemFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.BoolP(
		"all",
		"a",
		envBool("SHIP_ALL"),
		"Scan every subdirectory of the working directory")

	flags.BoolP(
		"force",
		"f",
		envBool("SHIP_FORCE"),
		"Treat every stack with a compose file as outdated")

	flags.BoolP(
		"yes",
		"y",
		envBool("SHIP_YES"),
		"Update without asking for confirmation")

	flags.BoolP(
		"prune",
		"p",
		envBool("SHIP_PRUNE"),
		"Remove dangling images after updating")

	flags.BoolP(
		"verbose",
		"v",
		envBool("SHIP_VERBOSE"),
		"Print the analysis trail of every stack")

	flags.IntP(
		"jobs",
		"j",
		envInt("SHIP_JOBS"),
		"Maximum number of stacks inspected concurrently")

	flags.IntP(
		"delay",
		"d",
		envInt("SHIP_DELAY"),
		"Delay between scan submissions (in milliseconds)")

	flags.Int(
		"registry-delay",
		envInt("SHIP_REGISTRY_DELAY"),
		"Minimum delay between registry requests (in milliseconds, defaults to --delay)")

	flags.Duration(
		"lookup-timeout",
		envDuration("SHIP_LOOKUP_TIMEOUT"),
		"Timeout for a single registry, daemon or compose lookup")

	flags.String(
		"arch",
		envString("SHIP_ARCH"),
		"Architecture to resolve remote digests for, e.g. arm64 or arm/v7 (default: host architecture)")

	flags.String(
		"lock-file",
		envString("SHIP_LOCK_FILE"),
		"Lock file guarding the update phase")

	flags.String(
		"log-file",
		envString("SHIP_LOG_FILE"),
		"Append-only transcript of compose output (default: ~/"+DefaultTranscriptName+")")

	flags.String(
		"ignore-file",
		envString("SHIP_IGNORE_FILE"),
		"File listing subdirectories skipped by --all")

	flags.StringP(
		"schedule",
		"s",
		envString("SHIP_SCHEDULE"),
		"The cron expression which defines when to scan and update; implies --yes")

	flags.String(
		"metrics-file",
		envString("SHIP_METRICS_FILE"),
		"Write Prometheus metrics to this file after each run")

	// https://no-color.org/
	flags.BoolP(
		"no-color",
		"",
		viper.IsSet("NO_COLOR"),
		"Disable ANSI color escape codes in output")

	flags.String(
		"log-level",
		envString("SHIP_LOG_LEVEL"),
		"The maximum log level that will be written to STDERR. Possible values: panic, fatal, error, warn, info, debug or trace",
	)

	flags.String(
		"log-format",
		envString("SHIP_LOG_FORMAT"),
		"Sets what logging format to use for console output. Possible values: Auto, LogFmt, Pretty, JSON")

	flags.BoolP(
		"debug",
		"",
		envBool("SHIP_DEBUG"),
		"Enable debug mode with verbose logging")

	flags.BoolP(
		"trace",
		"",
		envBool("SHIP_TRACE"),
		"Enable trace mode with very verbose logging - caution, exposes credentials")
}

// RegisterNotificationFlags adds flags for configuring run summary notifications.
func RegisterNotificationFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	flags.StringArray(
		"notification-url",
		envStringSlice("SHIP_NOTIFICATION_URL"),
		"The shoutrrr URL to send notifications to")

	flags.String(
		"notification-template",
		envString("SHIP_NOTIFICATION_TEMPLATE"),
		"The shoutrrr text/template for the messages")

	flags.String(
		"notification-title",
		envString("SHIP_NOTIFICATION_TITLE"),
		"Title passed to notification services that support one")

	flags.String(
		"notification-hostname",
		envString("SHIP_NOTIFICATION_HOSTNAME"),
		"Custom hostname specified in subject/title. Useful to override the operating system hostname")
}

// RegisterAPIFlags adds flags for the HTTP API served while running as a daemon.
func RegisterAPIFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	flags.Bool(
		"http-api-update",
		envBool("SHIP_HTTP_API_UPDATE"),
		"Serve POST /v1/update so runs can be triggered by a request")

	flags.Bool(
		"http-api-metrics",
		envBool("SHIP_HTTP_API_METRICS"),
		"Serve the Prometheus metrics on /v1/metrics")

	flags.String(
		"http-api-host",
		envString("SHIP_HTTP_API_HOST"),
		"Host to bind the HTTP API to (default: all interfaces)")

	flags.String(
		"http-api-port",
		envString("SHIP_HTTP_API_PORT"),
		"Port to bind the HTTP API to (default: 8080)")

	flags.String(
		"http-api-token",
		envString("SHIP_HTTP_API_TOKEN"),
		"Sets an authentication token to HTTP API requests.")
}

// envString retrieves a string value from an environment variable via Viper.
func envString(key string) string {
	viper.MustBindEnv(key)

	return viper.GetString(key)
}

// envStringSlice retrieves a string slice from an environment variable via Viper.
func envStringSlice(key string) []string {
	viper.MustBindEnv(key)

	return viper.GetStringSlice(key)
}

// envInt retrieves an integer value from an environment variable via Viper.
func envInt(key string) int {
	viper.MustBindEnv(key)

	return viper.GetInt(key)
}

// envBool retrieves a boolean value from an environment variable via Viper.
func envBool(key string) bool {
	viper.MustBindEnv(key)

	return viper.GetBool(key)
}

// envDuration retrieves a duration value from an environment variable via Viper.
func envDuration(key string) time.Duration {
	viper.MustBindEnv(key)

	return viper.GetDuration(key)
}

// SetDefaults configures default values for environment variables.
func SetDefaults() {
	viper.AutomaticEnv()
	viper.SetDefault("DOCKER_HOST", "unix:///var/run/docker.sock")
	viper.SetDefault("DOCKER_API_VERSION", DockerAPIMinVersion)
	viper.SetDefault("SHIP_JOBS", DefaultJobs)
	viper.SetDefault("SHIP_DELAY", DefaultDelayMillis)
	viper.SetDefault("SHIP_REGISTRY_DELAY", registryDelayFollowsDelay)
	viper.SetDefault("SHIP_LOOKUP_TIMEOUT", DefaultLookupTimeout)
	viper.SetDefault("SHIP_LOCK_FILE", DefaultLockFile)
	viper.SetDefault("SHIP_IGNORE_FILE", DefaultIgnoreFile)
	viper.SetDefault("SHIP_NOTIFICATION_TITLE", "ship")
	viper.SetDefault("SHIP_HTTP_API_PORT", "8080")
	viper.SetDefault("SHIP_LOG_LEVEL", "info")
	viper.SetDefault("SHIP_LOG_FORMAT", "auto")
}

// EnvConfig sets environment variables based on Docker-related flags.
func EnvConfig(cmd *cobra.Command) error {
	var err error

	var host string

	var tls bool

	var version string

	flags := cmd.PersistentFlags()

	if host, err = flags.GetString("host"); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if tls, err = flags.GetBool("tlsverify"); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if version, err = flags.GetString("api-version"); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if err = setEnvOptStr("DOCKER_HOST", host); err != nil {
		return err
	}

	if err = setEnvOptBool("DOCKER_TLS_VERIFY", tls); err != nil {
		return err
	}

	if err = setEnvOptStr("DOCKER_API_VERSION", version); err != nil {
		return err
	}

	return nil
}

// ReadOptions collects and validates the run configuration.
//
// Parameters:
//   - flags: Parsed flag set with system and notification flags registered.
//
// Returns:
//   - Options: Configuration with defaults resolved.
//   - error: Non-nil if a flag is missing or out of range.
func ReadOptions(flags *pflag.FlagSet) (Options, error) {
	reader := optionReader{flags: flags}

	opts := Options{
		All:                  reader.bool("all"),
		Force:                reader.bool("force"),
		Yes:                  reader.bool("yes"),
		Prune:                reader.bool("prune"),
		Verbose:              reader.bool("verbose"),
		NoColor:              reader.bool("no-color"),
		Jobs:                 reader.int("jobs"),
		LookupTimeout:        reader.duration("lookup-timeout"),
		Arch:                 reader.string("arch"),
		LockFile:             reader.string("lock-file"),
		LogFile:              reader.string("log-file"),
		IgnoreFile:           reader.string("ignore-file"),
		Schedule:             reader.string("schedule"),
		MetricsFile:          reader.string("metrics-file"),
		NotificationURLs:     reader.stringArray("notification-url"),
		NotificationTemplate: reader.string("notification-template"),
		NotificationTitle:    reader.string("notification-title"),
		Hostname:             reader.string("notification-hostname"),
		HTTPAPIUpdate:        reader.bool("http-api-update"),
		HTTPAPIMetrics:       reader.bool("http-api-metrics"),
		HTTPAPIHost:          reader.string("http-api-host"),
		HTTPAPIPort:          reader.string("http-api-port"),
		HTTPAPIToken:         reader.string("http-api-token"),
	}

	delay := reader.int("delay")
	registryDelay := reader.int("registry-delay")

	if reader.err != nil {
		return Options{}, reader.err
	}

	switch {
	case opts.Jobs < 1:
		return Options{}, fmt.Errorf("%w: --jobs must be at least 1, got %d", errInvalidOption, opts.Jobs)
	case delay < 0:
		return Options{}, fmt.Errorf("%w: --delay must not be negative, got %d", errInvalidOption, delay)
	case registryDelay < registryDelayFollowsDelay:
		return Options{}, fmt.Errorf("%w: --registry-delay must not be negative, got %d", errInvalidOption, registryDelay)
	case opts.LookupTimeout <= 0:
		return Options{}, fmt.Errorf("%w: --lookup-timeout must be positive, got %s", errInvalidOption, opts.LookupTimeout)
	case opts.APIEnabled() && opts.HTTPAPIToken == "":
		return Options{}, errMissingAPIToken
	}

	if registryDelay == registryDelayFollowsDelay {
		registryDelay = delay
	}

	opts.Delay = time.Duration(delay) * time.Millisecond
	opts.RegistryDelay = time.Duration(registryDelay) * time.Millisecond

	if opts.Arch == "" || strings.EqualFold(opts.Arch, "auto") {
		opts.Arch = registry.HostArch()
	}

	if opts.LogFile == "" {
		opts.LogFile = defaultLogFile()
	}

	if opts.Daemon() {
		opts.Yes = true
	}

	if opts.Hostname == "" {
		opts.Hostname, _ = os.Hostname()
	}

	return opts, nil
}

// defaultLogFile places the transcript in the user's home directory, or the working directory without one.
func defaultLogFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		logrus.WithError(err).Debug("No home directory, writing transcript to the working directory")

		return DefaultTranscriptName
	}

	return filepath.Join(home, DefaultTranscriptName)
}

// optionReader keeps the first flag lookup error.
type optionReader struct {
	flags *pflag.FlagSet
	err   error
}

func (r *optionReader) keep(err error) {
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}
}

func (r *optionReader) bool(name string) bool {
	value, err := r.flags.GetBool(name)
	r.keep(err)

	return value
}

func (r *optionReader) int(name string) int {
	value, err := r.flags.GetInt(name)
	r.keep(err)

	return value
}

func (r *optionReader) string(name string) string {
	value, err := r.flags.GetString(name)
	r.keep(err)

	return value
}

func (r *optionReader) stringArray(name string) []string {
	value, err := r.flags.GetStringArray(name)
	r.keep(err)

	return value
}

func (r *optionReader) duration(name string) time.Duration {
	value, err := r.flags.GetDuration(name)
	r.keep(err)

	return value
}

// setEnvOptStr sets an environment variable to a specified string value if needed.
func setEnvOptStr(env string, opt string) error {
	if opt == "" || opt == os.Getenv(env) {
		return nil
	}

	if err := os.Setenv(env, opt); err != nil {
		return fmt.Errorf("%w: %s: %w", errSetEnvFailed, env, err)
	}

	return nil
}

// setEnvOptBool sets an environment variable to "1" if the boolean is true.
func setEnvOptBool(env string, opt bool) error {
	if opt {
		return setEnvOptStr(env, "1")
	}

	return nil
}

// GetSecretsFromFiles replaces flag values with file contents if they reference files.
func GetSecretsFromFiles(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	secrets := []string{
		"notification-url",
		"http-api-token",
	}
	for _, secret := range secrets {
		if err := getSecretFromFile(flags, secret); err != nil {
			logrus.Fatalf("failed to get secret from flag %v: %s", secret, err)
		}
	}
}

// getSecretFromFile updates a flag’s value with file contents if it references a file.
// It handles both string and slice flags, returning an error if file operations fail.
func getSecretFromFile(flags *pflag.FlagSet, secret string) error {
	flag := flags.Lookup(secret)
	if sliceValue, ok := flag.Value.(pflag.SliceValue); ok {
		oldValues := sliceValue.GetSlice()
		values := make([]string, 0, len(oldValues))

		for _, value := range oldValues {
			if value != "" && isFilePath(value) {
				file, err := os.Open(value)
				if err != nil {
					return fmt.Errorf("%w: %w", errOpenFileFailed, err)
				}

				scanner := bufio.NewScanner(file)
				for scanner.Scan() {
					line := scanner.Text()
					if line == "" {
						continue
					}

					values = append(values, line)
				}

				if err := file.Close(); err != nil {
					return fmt.Errorf("%w: %w", errCloseFileFailed, err)
				}
			} else {
				values = append(values, value)
			}
		}

		if err := sliceValue.Replace(values); err != nil {
			return fmt.Errorf("%w: %w", errReplaceSliceFailed, err)
		}

		return nil
	}

	value := flag.Value.String()
	if value != "" && isFilePath(value) {
		content, err := os.ReadFile(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errReadFileFailed, err)
		}

		if err := flags.Set(secret, strings.TrimSpace(string(content))); err != nil {
			return fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	return nil
}

// isFilePath determines if a string likely represents a file path.
func isFilePath(path string) bool {
	firstColon := strings.IndexRune(path, ':')
	if firstColon != 1 && firstColon != -1 {
		// If ':' exists but isn’t the second character, it’s likely not a file path (e.g., URLs).
		return false
	}

	_, err := os.Stat(path)

	return !errors.Is(err, os.ErrNotExist)
}

// ProcessFlagAliases folds --debug and --trace into --log-level.
func ProcessFlagAliases(flags *pflag.FlagSet) {
	if flagIsEnabled(flags, "debug") {
		if err := flags.Set("log-level", "debug"); err != nil {
			logrus.Errorf("Failed to set log-level flag: %v", err)
		}
	}

	if flagIsEnabled(flags, "trace") {
		if err := flags.Set("log-level", "trace"); err != nil {
			logrus.Errorf("Failed to set log-level flag: %v", err)
		}
	}
}

// SetupLogging configures the global logger based on log-related flags.
// It sets the log format and level, returning an error for invalid configurations.
func SetupLogging(flags *pflag.FlagSet) error {
	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	noColor, err := flags.GetBool("no-color")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if err := configureLogFormat(logFormat, noColor); err != nil {
		return err
	}

	rawLogLevel, err := flags.GetString("log-level")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	logLevel, err := logrus.ParseLevel(rawLogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}

	logrus.SetLevel(logLevel)

	return nil
}

// configureLogFormat sets the logrus formatter based on the specified format and color preference.
func configureLogFormat(logFormat string, noColor bool) error {
	switch strings.ToLower(logFormat) {
	case "auto":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors:             noColor,
			EnvironmentOverrideColors: true,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "logfmt":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	case "pretty":
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !noColor,
			FullTimestamp: false,
		})
	default:
		return fmt.Errorf("%w: %s", errInvalidLogFormat, logFormat)
	}

	return nil
}

// flagIsEnabled checks if a boolean flag is set to true.
// It exits with a fatal error if the flag is not defined.
func flagIsEnabled(flags *pflag.FlagSet, name string) bool {
	value, err := flags.GetBool(name)
	if err != nil {
		logrus.Fatalf("The flag %q is not defined", name)
	}

	return value
}
