package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dposnet/bft-core/engine/common/synchronization"
	"github.com/dposnet/bft-core/module/metrics"
)

var flagDiscard bool

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().BoolVar(&flagDiscard, "discard", false, "drop the temporary blocks instead of restoring them")
}

// run with `./bft-util restore --datadir /var/dpos/data/chain`
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "finish a chain switch interrupted by a shutdown",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		n, err := initNode(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize node")
		}
		defer n.close()

		temp, err := n.temp.All()
		if err != nil {
			log.Fatal().Err(err).Msg("could not read temporary blocks")
		}
		log.Info().Int("temp_blocks", len(temp)).Msg("found temporary blocks")

		recovery := synchronization.NewRecovery(log.Logger, n.coordinator, n.processor, n.temp, metrics.NewNoopCollector())
		if flagDiscard {
			err = recovery.ClearTempBlocks(ctx)
		} else {
			err = recovery.RestoreOnStartup(ctx)
		}
		if err != nil {
			log.Fatal().Err(err).Msg("could not restore temporary blocks")
		}

		tip, err := n.processor.LastBlock(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not get last block")
		}
		log.Info().
			Uint64("tip_height", tip.Height()).
			Uint64("finalized_height", n.coordinator.FinalizedHeight()).
			Msg("temporary blocks handled")
	},
}
