package main

import (
	"github.com/amaumene/trackarr/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "trackarr",
		Short:         "Tracks tracker releases and drives Transmission",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config-dir", "", "Directory holding the database and blacklist (CONFIG_DIR)")
	flags.String("log-level", "", "Log level (LOG_LEVEL)")
	flags.String("port", "", "HTTP port (SERVER_PORT)")

	_ = viper.BindPFlag("CONFIG_DIR", flags.Lookup("config-dir"))
	_ = viper.BindPFlag("LOG_LEVEL", flags.Lookup("log-level"))
	_ = viper.BindPFlag("SERVER_PORT", flags.Lookup("port"))

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newCollectCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// loadConfig reads the configuration after flags have been parsed
func loadConfig() (*config.Config, error) {
	return config.Load()
}
