package cmd

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dposnet/bft-core/consensus/bft"
	"github.com/dposnet/bft-core/consensus/bft/notifications"
	"github.com/dposnet/bft-core/storage"
	"github.com/dposnet/bft-core/utils/logging"
)

var flagReplayFrom uint64

func init() {
	rootCmd.AddCommand(finalityCmd)

	finalityCmd.Flags().Uint64Var(&flagReplayFrom, "replay-from", 0,
		"also replay the stored headers from this height through a fresh finality engine, ignoring the persisted finalized height")
}

var finalityCmd = &cobra.Command{
	Use:   "finality",
	Short: "print the finalized and prevoted heights of the stored chain",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		n, err := initNode(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize node")
		}
		defer n.close()

		tip, err := n.blocks.Last()
		if errors.Is(err, storage.ErrNotFound) {
			log.Info().Msg("chain is empty")
			return
		}
		if err != nil {
			log.Fatal().Err(err).Msg("could not get last block")
		}

		snapshot, err := n.coordinator.VoteSnapshot()
		if err != nil {
			log.Fatal().Err(err).Msg("could not get vote state")
		}
		log.Info().
			Uint64("tip_height", tip.Height()).
			Hex("tip_id", logging.Block(tip)).
			Uint64("finalized_height", n.coordinator.FinalizedHeight()).
			Uint64("prevoted_height", n.coordinator.PrevotedHeight()).
			Int("delegates_voting", len(snapshot.Delegates)).
			Msg("finality state")

		if !cmd.Flags().Changed("replay-from") {
			return
		}
		replayed, err := replay(n, flagReplayFrom, tip.Height())
		if err != nil {
			log.Fatal().Err(err).Msg("could not replay stored headers")
		}
		log.Info().
			Uint64("from_height", flagReplayFrom).
			Uint64("finalized_height", replayed.FinalizedHeight()).
			Uint64("prevoted_height", replayed.PrevotedHeight()).
			Msg("replayed finality state")
	},
}

// replay feeds the stored headers in [from, to] to a finality engine
// starting from nothing finalized.
func replay(n *node, from uint64, to uint64) (*bft.FinalityEngine, error) {
	engine, err := bft.NewFinalityEngine(log.Logger, flagDelegates, 0, notifications.NewNoopConsumer())
	if err != nil {
		return nil, err
	}
	for height := max(from, 1); height <= to; height++ {
		block, err := n.blocks.ByHeight(height)
		if err != nil {
			return nil, err
		}
		err = engine.AddHeader(&block.Header)
		if err != nil {
			return nil, err
		}
	}
	return engine, nil
}
