package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	flagDatadir     string
	flagDelegates   uint64
	flagGenesisTime uint64
	flagBlockTime   uint64
)

// run with `./bft-util finality --datadir /var/dpos/data/chain`
var rootCmd = &cobra.Command{
	Use:   "bft-util",
	Short: "inspect and repair the chain state of a stopped node",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDatadir, "datadir", "d", "/var/dpos/data/chain", "directory to the badger database")
	_ = rootCmd.MarkPersistentFlagRequired("datadir")
	rootCmd.PersistentFlags().Uint64Var(&flagDelegates, "delegates", 101, "number of active delegates per round")
	rootCmd.PersistentFlags().Uint64Var(&flagGenesisTime, "genesis-time", 0, "unix timestamp of slot zero")
	rootCmd.PersistentFlags().Uint64Var(&flagBlockTime, "block-time", 10, "slot length in seconds")

	cobra.OnInitialize(initConfig)
}

// initConfig lets BFT_UTIL_* environment variables override unset flags.
func initConfig() {
	viper.SetEnvPrefix("bft_util")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	flags := rootCmd.PersistentFlags()
	flags.VisitAll(func(flag *pflag.Flag) {
		if flag.Changed || !viper.IsSet(flag.Name) {
			return
		}
		_ = flags.Set(flag.Name, viper.GetString(flag.Name))
	})
}
