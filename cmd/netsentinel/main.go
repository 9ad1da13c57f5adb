package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"netsentinel/pkg/csconfig"
	"netsentinel/pkg/logging"
)

var configFilePath string
var nsConfig *csconfig.Config

func initConfig() {
	var err error

	nsConfig, err = csconfig.NewConfig(configFilePath)
	if err != nil {
		log.Fatal(err)
	}

	if err := logging.Setup(nsConfig.Common); err != nil {
		log.Fatal(err)
	}

	log.Debugf("using '%s' as configuration file", configFilePath)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "netsentinel [command]",
		Short: "netsentinel ingests router connection logs into a queryable store",
		Long: `netsentinel parses firewall connection logs, compacts aged lines into
rollup groups, enriches events with reverse DNS, geolocation and service
labels, and persists them for the dashboard API.`,
		SilenceUsage:      true,
		SilenceErrors:     false,
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFilePath, "config", "c", "/etc/netsentinel/config.yaml", "path to the configuration file")

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(NewRollupCmd())
	rootCmd.AddCommand(NewIngestCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewTraceCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
