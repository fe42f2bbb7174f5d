package main

import (
	"github.com/spf13/cobra"

	"github.com/TheYonk/robomonkey/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Daemon management commands",
}

var daemonRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the indexing daemon in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		d := daemon.New(cfg, log)

		if err := d.Startup(cmd.Context()); err != nil {
			return err
		}

		return d.Run(cmd.Context())
	},
}

func init() {
	daemonCmd.AddCommand(daemonRunCmd)
}
