package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shipctl/ship/pkg/notifications"
)

// init registers the notify-preview command with the root command.
func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "notify-preview",
		Short: "Render the notification template against sample data",
		Long:  "Renders the notification template (--notification-template or the default) with a sample run and prints the message.",
		Run:   runNotifyPreview,
		Args:  cobra.NoArgs,
	})
}

// runNotifyPreview executes the notify-preview command, logging any failure.
func runNotifyPreview(cmd *cobra.Command, args []string) {
	if err := runNotifyPreviewE(cmd, args); err != nil {
		logrus.WithError(err).Fatal("Notification preview failed")
	}
}

// runNotifyPreviewE renders the configured template and writes it to the command output.
//
// Parameters:
//   - cmd: The notify-preview command; its inherited flags carry the template.
//   - _: Positional arguments, rejected by cobra.NoArgs.
//
// Returns:
//   - error: Non-nil if the template fails to parse or render.
func runNotifyPreviewE(cmd *cobra.Command, _ []string) error {
	tpl, err := cmd.Flags().GetString("notification-template")
	if err != nil {
		return fmt.Errorf("%w: %w", errReadTemplateFlag, err)
	}

	message, err := notifications.Preview(tpl)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), message)

	return err
}
