package cmd

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/dposnet/bft-core/consensus"
	"github.com/dposnet/bft-core/consensus/bft/notifications"
	"github.com/dposnet/bft-core/consensus/bft/notifications/pubsub"
	"github.com/dposnet/bft-core/module/metrics"
	"github.com/dposnet/bft-core/module/processor"
	"github.com/dposnet/bft-core/module/slots"
	bstorage "github.com/dposnet/bft-core/storage/badger"
)

// node bundles the stores and consensus components of a node database.
type node struct {
	db          *badger.DB
	blocks      *bstorage.Blocks
	temp        *bstorage.TempBlocks
	state       *bstorage.ChainState
	coordinator *consensus.Coordinator
	processor   *processor.Processor

	// highest finalized height reported while the node was open
	finalized atomic.Uint64
}

func initNode(ctx context.Context) (*node, error) {
	log.Info().Str("datadir", flagDatadir).Msg("opening database")
	db, err := badger.Open(badger.DefaultOptions(flagDatadir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("could not open database at %s: %w", flagDatadir, err)
	}

	schedule, err := slots.New(flagGenesisTime, flagBlockTime)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("invalid slot configuration: %w", err)
	}

	collector := metrics.NewNoopCollector()
	n := &node{
		db:     db,
		blocks: bstorage.NewBlocks(collector, db),
		temp:   bstorage.NewTempBlocks(db),
		state:  bstorage.NewChainState(db),
	}
	cfg := consensus.DefaultConfig()
	consensus.WithActiveDelegates(flagDelegates)(&cfg)

	distributor := pubsub.NewFinalizationDistributor()
	distributor.AddConsumer(notifications.NewLogConsumer(log.Logger))
	distributor.AddOnFinalizedHeightConsumer(func(_ uint64, finalized uint64) {
		n.finalized.Store(finalized)
	})

	n.coordinator, err = consensus.NewCoordinator(log.Logger, cfg, n.blocks, n.state, schedule,
		distributor, collector)
	if err == nil {
		err = n.coordinator.Init(ctx)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not initialize consensus: %w", err)
	}
	n.processor = processor.New(log.Logger, n.blocks, n.coordinator)
	return n, nil
}

func (n *node) close() {
	log.Debug().Uint64("finalized_height", n.finalized.Load()).Msg("closing database")
	err := n.db.Close()
	if err != nil {
		log.Error().Err(err).Msg("could not close database")
	}
}
