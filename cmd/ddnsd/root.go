package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jsribeiro/ddnsd/internal/config"
)

const defaultConfigPath = "/etc/ddnsd/config.yaml"

var (
	cfgFile string
	devLog  bool
)

var rootCmd = &cobra.Command{
	Use:   "ddnsd",
	Short: "Dynamic DNS daemon",
	Long: `ddnsd watches a host's public IP address and converges one or
more DNS records to match it through a pluggable provider backend.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default "+defaultConfigPath+")")
	rootCmd.PersistentFlags().BoolVar(&devLog, "dev", false, "use human-readable development logging instead of JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindEnv("config", config.EnvPrefix+"_CONFIG")
}

// Execute runs the root command. Resolving the config path is the only
// thing viper does here — cldmnky-oooi/cmd/root.go binds the same
// --config flag the same way, one level above the subcommand that
// actually reads and decodes the file.
func Execute() error {
	return rootCmd.Execute()
}

func resolveConfigPath() string {
	if v := viper.GetString("config"); v != "" {
		return v
	}
	if v, ok := os.LookupEnv(config.EnvPrefix + "_CONFIG"); ok && v != "" {
		return v
	}
	return defaultConfigPath
}
