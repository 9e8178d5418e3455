package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var opts stationOptions

	ctx := newCommandContext(&opts)

	rootCmd := &cobra.Command{
		Use:           "shelfscan",
		Short:         "Scan book barcodes into the catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.email, "email", "", "Account email (postgres catalog only)")
	flags.StringVar(&opts.role, "role", "librarian", "Station role when using the local sqlite catalog")
	flags.StringVar(&opts.device, "device", "", "Scanner device path, or - for stdin (overrides SCANNER_DEVICE)")

	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newLookupCommand(ctx))
	rootCmd.AddCommand(newRecentCommand(ctx))

	return rootCmd
}
