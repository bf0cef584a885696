package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storefront-dev/storefront/internal/cli/commands"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront gateway operator tool",
	Long: `Storefront CLI - look after the gateway's visitor sessions.

Reads the same environment (and .env files) as the gateway and opens the
configured session store directly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "storefront version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewSessionsCmd(version))
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
