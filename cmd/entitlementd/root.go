package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	envFiles  []string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "entitlementd",
		Short:         "Subscription entitlement engine",
		Long:          "entitlementd turns subscription API events and scheduled phase boundaries into entitlement notifications.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringSliceVar(&flags.envFiles, "env-file", nil, "additional .env files to load")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format (json, text); overrides LOG_FORMAT")

	cmd.AddCommand(
		newServeCmd(flags),
		newMigrateCmd(flags),
		newEmitCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "entitlementd %s (%s)\n", Version, GitCommit)
		},
	}
}
