// Package flags manages command-line flags and environment variables for ship configuration.
// Every flag defaults from a SHIP_* environment variable bound through Viper.
//
// Key components:
//   - RegisterDockerFlags: Adds Docker API client flags.
//   - RegisterSystemFlags: Adds target selection, scan, update and logging flags.
//   - RegisterNotificationFlags: Adds notification settings.
//   - ReadOptions: Collects the validated run configuration.
//   - SetupLogging: Configures logrus based on flags.
//
// Usage example:
//
//	cmd := &cobra.Command{}
//	flags.SetDefaults()
//	flags.RegisterSystemFlags(cmd)
//	err := flags.SetupLogging(cmd.PersistentFlags())
//	if err != nil {
//	    logrus.WithError(err).Fatal("Logging setup failed")
//	}
package flags
