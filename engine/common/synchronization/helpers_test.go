package synchronization_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/dposnet/bft-core/consensus"
	"github.com/dposnet/bft-core/consensus/bft"
	"github.com/dposnet/bft-core/consensus/bft/notifications"
	"github.com/dposnet/bft-core/engine/common/synchronization"
	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/module"
	"github.com/dposnet/bft-core/module/metrics"
	"github.com/dposnet/bft-core/module/processor"
	"github.com/dposnet/bft-core/module/slots"
	"github.com/dposnet/bft-core/network"
	"github.com/dposnet/bft-core/network/rpc"
	"github.com/dposnet/bft-core/network/stub"
	bstorage "github.com/dposnet/bft-core/storage/badger"
	"github.com/dposnet/bft-core/utils/unittest"
)

const delegates = 4

// node is a local chain: block storage, consensus coordinator and block
// processor on top of one database.
type node struct {
	blocks    *bstorage.Blocks
	temp      *bstorage.TempBlocks
	coord     *consensus.Coordinator
	processor *processor.Processor
}

func newNode(t *testing.T, db *badger.DB, schedule module.Slots) *node {
	n := &node{
		blocks: bstorage.NewBlocks(metrics.NewNoopCollector(), db),
		temp:   bstorage.NewTempBlocks(db),
	}
	cfg := consensus.DefaultConfig()
	cfg.ActiveDelegates = delegates

	var err error
	n.coord, err = consensus.NewCoordinator(
		unittest.Logger(),
		cfg,
		n.blocks,
		bstorage.NewChainState(db),
		schedule,
		notifications.NewNoopConsumer(),
		metrics.NewNoopCollector(),
	)
	require.NoError(t, err)
	require.NoError(t, n.coord.Init(context.Background()))
	n.processor = processor.New(unittest.Logger(), n.blocks, n.coord)
	return n
}

func (n *node) apply(t *testing.T, blocks []*chain.Block) {
	ctx := context.Background()
	for _, block := range blocks {
		require.NoError(t, n.processor.Validate(ctx, block))
		require.NoError(t, n.processor.ProcessValidated(ctx, block, module.ProcessOptions{}))
	}
}

func (n *node) tip(t *testing.T) *chain.Block {
	tip, err := n.blocks.Last()
	require.NoError(t, err)
	return tip
}

// chainIDs returns the IDs of the local chain in ascending height order.
func (n *node) chainIDs(t *testing.T) []chain.Identifier {
	blocks, err := n.blocks.ByHeightRange(1, n.tip(t).Height())
	require.NoError(t, err)
	ids := make([]chain.Identifier, 0, len(blocks))
	for _, block := range blocks {
		ids = append(ids, block.ID())
	}
	return ids
}

func (n *node) tempBlocks(t *testing.T) []*chain.Block {
	blocks, err := n.temp.All()
	require.NoError(t, err)
	return blocks
}

// forger forges a chain carrying the prevoted heights a finality engine
// derives for it, so that every block is accepted by a coordinator.
type forger struct {
	builder *unittest.ChainBuilder
	engine  *bft.FinalityEngine
}

func newForger(t *testing.T, builder *unittest.ChainBuilder) *forger {
	engine, err := bft.NewFinalityEngine(unittest.Logger(), delegates, 0, notifications.NewNoopConsumer())
	require.NoError(t, err)
	for _, block := range builder.Blocks() {
		require.NoError(t, engine.AddHeader(&block.Header))
	}
	return &forger{builder: builder, engine: engine}
}

func (f *forger) extend(t *testing.T, n int) []*chain.Block {
	blocks := make([]*chain.Block, 0, n)
	for i := 0; i < n; i++ {
		block := f.builder.Next(f.engine.PrevotedHeight())
		require.NoError(t, f.engine.AddHeader(&block.Header))
		blocks = append(blocks, block)
	}
	return blocks
}

// fork returns a forger for a branch sharing the blocks up to height.
func (f *forger) fork(t *testing.T, height uint64, branch string) *forger {
	return newForger(t, f.builder.Fork(height, branch))
}

// forge appends n blocks with the given prevoted height without checking
// them against the finality engine. The forger must not be extended
// afterwards.
func (f *forger) forge(n int, prevoted uint64) []*chain.Block {
	blocks := make([]*chain.Block, 0, n)
	for i := 0; i < n; i++ {
		blocks = append(blocks, f.builder.Next(prevoted))
	}
	return blocks
}

func slotOf(block *chain.Block) uint64 {
	return (block.Header.Timestamp - unittest.GenesisTime) / unittest.BlockTime
}

// harness is a local node connected to in-memory peers.
type harness struct {
	t        *testing.T
	cfg      *synchronization.Config
	clock    *atomic.Uint64
	schedule *slots.Slots
	rounds   *slots.StaticRounds
	hub      *stub.Hub
	local    *node
	main     *forger
	net      *rpc.Client
	recovery *synchronization.Recovery
}

// runWithHarness forges n blocks on the local node and sets the clock to
// the slot of the local tip.
func runWithHarness(t *testing.T, n int, f func(h *harness)) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		h := &harness{
			t:     t,
			clock: atomic.NewUint64(0),
			hub:   stub.NewNetworkHub(),
			cfg:   synchronization.DefaultConfig(),
		}
		for _, apply := range []synchronization.OptionFunc{
			synchronization.WithRetryDelay(time.Millisecond),
			synchronization.WithMaxFailedFetchAttempts(3),
			synchronization.WithMaxCommonBlockRequests(2),
		} {
			apply(h.cfg)
		}

		var err error
		h.schedule, err = slots.New(unittest.GenesisTime, unittest.BlockTime, slots.WithClock(func() time.Time {
			return time.Unix(int64(h.clock.Load()), 0)
		}))
		require.NoError(t, err)

		h.local = newNode(t, db, h.schedule)
		h.main = newForger(t, unittest.NewChainBuilder(delegates))
		h.local.apply(t, h.main.extend(t, n))
		h.setSlot(slotOf(h.main.builder.Tip()))

		h.rounds, err = slots.NewStaticRounds(h.main.builder.Delegates())
		require.NoError(t, err)

		transport := stub.NewNetwork(h.hub, "local",
			rpc.NewHandler(unittest.Logger(), h.local.blocks),
			stub.StatusFromStorage(h.local.blocks, h.local.coord.PrevotedHeight))
		h.net = rpc.NewClient(unittest.Logger(), transport)
		h.recovery = synchronization.NewRecovery(unittest.Logger(), h.local.coord, h.local.processor, h.local.temp, metrics.NewNoopCollector())

		f(h)
	})
}

func (h *harness) setSlot(slot uint64) {
	h.clock.Store(unittest.GenesisTime + slot*unittest.BlockTime)
}

// addPeer creates a peer serving the given chain from its own database.
func (h *harness) addPeer(peerID string, blocks []*chain.Block, prevoted uint64) {
	dir := unittest.TempDir(h.t)
	db := unittest.BadgerDB(h.t, dir)
	h.t.Cleanup(func() {
		db.Close()
		os.RemoveAll(dir)
	})

	store := bstorage.NewBlocks(metrics.NewNoopCollector(), db)
	for _, block := range blocks {
		require.NoError(h.t, store.Store(block, false))
	}
	stub.NewNetwork(h.hub, peerID,
		rpc.NewHandler(unittest.Logger(), store),
		stub.StatusFromStorage(store, func() uint64 { return prevoted }))
}

func (h *harness) fastSwitch(net network.PeerNetwork) *synchronization.FastSwitch {
	return synchronization.NewFastSwitch(unittest.Logger(), h.cfg, h.local.coord, h.rounds, h.local.blocks, net, h.recovery)
}

func (h *harness) blockSync(net network.PeerNetwork) *synchronization.BlockSync {
	return synchronization.NewBlockSync(unittest.Logger(), h.cfg, h.local.coord, h.schedule, h.rounds, h.local.blocks, net, h.recovery)
}

// republisher records republished blocks.
type republisher struct {
	blocks []*chain.Block
	peers  []string
}

func (r *republisher) Republish(block *chain.Block, peerID string) {
	r.blocks = append(r.blocks, block)
	r.peers = append(r.peers, peerID)
}
