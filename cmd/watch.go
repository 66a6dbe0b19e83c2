package cmd

import (
	"github.com/spf13/cobra"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the session alive in the background",
	Long: `Run the session observer until interrupted.

Every session.checkInterval the access token is checked and renewed when it
expires within session.expiringSoon. Changes written by other storefront
processes to the same session are picked up immediately. When logging.file
is set, logs go to that file with size-based rotation.

Run it as a systemd user service with Type=notify to get readiness reporting.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApplication(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		return application.RunWatch(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
