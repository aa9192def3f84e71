package app

import (
	"github.com/spf13/cobra"

	"github.com/CNES/DOI-server-sub001/internal/config"
	"github.com/CNES/DOI-server-sub001/internal/daemon"
	"github.com/CNES/DOI-server-sub001/internal/logger"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")

	rootCmd.AddCommand(startCmd)
}

var (
	devMode bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the doi-server web service",
		PreRun: func(_ *cobra.Command, _ []string) {
			if cfg, err = config.ReadConfig(configPath); err != nil {
				panic(err)
			}

			if devMode {
				cfg.DevMode = true
			}

			if err = logger.Init(cfg.Log); err != nil {
				panic(err)
			}
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			d, err := daemon.New(&cfg)
			if err != nil {
				return err
			}

			go func() {
				d.WaitShutdown()
			}()

			return d.Start()
		},
	}
)
