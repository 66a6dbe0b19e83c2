package cli

import (
	"github.com/spf13/cobra"
)

// CommandFlags holds the global flag values shared by every command.
type CommandFlags struct {
	// ConfigPath specifies a custom configuration file
	ConfigPath string
	// Session selects the named credential session
	Session string
	// OutputFormat specifies the desired output format (table, json, yaml)
	OutputFormat string
	// Quiet suppresses progress indicators and non-essential output
	Quiet bool
	// Debug enables verbose logging
	Debug bool
}

// RegisterCommonFlags registers the global flags on cmd.
//
// The registered flags are:
//   - --config: Configuration file (default ~/.config/storefront/config.yaml)
//   - --session: Credential session name (env: STOREFRONT_SESSION)
//   - --output/-o: Output format (table, json, yaml), default: "table"
//   - --quiet/-q: Suppress non-essential output
//   - --debug: Enable debug logging
func RegisterCommonFlags(cmd *cobra.Command, flags *CommandFlags) {
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "Configuration file (default ~/.config/storefront/config.yaml)")
	cmd.PersistentFlags().StringVar(&flags.Session, "session", "", "Credential session name (env: STOREFRONT_SESSION)")
	cmd.PersistentFlags().StringVarP(&flags.OutputFormat, "output", "o", string(OutputFormatTable), "Output format (table, json, yaml)")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
}
