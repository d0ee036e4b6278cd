package synchronization

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/dposnet/bft-core/engine/common/fifoqueue"
	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/module"
	"github.com/dposnet/bft-core/module/component"
	"github.com/dposnet/bft-core/module/irrecoverable"
	"github.com/dposnet/bft-core/network"
	"github.com/dposnet/bft-core/storage"
	"github.com/dposnet/bft-core/utils/logging"
)

// defaultRestartCacheSize is the number of blocks whose restarts are tracked.
const defaultRestartCacheSize = 1000

// republishWorkers is the number of workers requeueing restarted blocks.
const republishWorkers = 2

type syncRequest struct {
	peerID string
	block  *chain.Block
}

// Engine is the synchronization engine. It queues blocks which do not fit on
// the local chain and hands them to the synchronizer one at a time.
type Engine struct {
	log          zerolog.Logger
	cfg          *Config
	recovery     *Recovery
	synchronizer *Synchronizer

	pendingBlocks         *fifoqueue.FifoQueue[*syncRequest]
	pendingBlocksNotifier module.Notifier
	republishPool         *workerpool.WorkerPool
	restartsMu            sync.Mutex
	restarts              *lru.Cache[chain.Identifier, uint]

	cm *component.ComponentManager
	component.Component
}

var _ Republisher = (*Engine)(nil)

// New creates the synchronization engine with block sync preferred over
// fast switch.
func New(
	log zerolog.Logger,
	metrics module.SyncMetrics,
	consensus Consensus,
	processor module.BlockProcessor,
	blocks storage.Blocks,
	temp storage.TempBlocks,
	net network.PeerNetwork,
	slots module.Slots,
	rounds module.Rounds,
	opts ...OptionFunc,
) (*Engine, error) {
	cfg := DefaultConfig()
	for _, apply := range opts {
		apply(cfg)
	}
	if cfg.RetryDelay <= 0 {
		return nil, fmt.Errorf("retry delay must be positive, got %s", cfg.RetryDelay)
	}

	blocksQueue, err := fifoqueue.NewFifoQueue[*syncRequest](fifoqueue.WithCapacity(cfg.QueueCapacity))
	if err != nil {
		return nil, fmt.Errorf("failed to create queue for received blocks: %w", err)
	}
	restarts, err := lru.New[chain.Identifier, uint](defaultRestartCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create restart cache: %w", err)
	}

	e := &Engine{
		log:                   log.With().Str("engine", "synchronization").Logger(),
		cfg:                   cfg,
		pendingBlocks:         blocksQueue,
		pendingBlocksNotifier: module.NewNotifier(),
		republishPool:         workerpool.New(republishWorkers),
		restarts:              restarts,
	}

	e.recovery = NewRecovery(log, consensus, processor, temp, metrics)
	e.synchronizer = NewSynchronizer(log, cfg, consensus, blocks, net, metrics, e,
		NewBlockSync(log, cfg, consensus, slots, rounds, blocks, net, e.recovery),
		NewFastSwitch(log, cfg, consensus, rounds, blocks, net, e.recovery),
	)

	e.cm = component.NewComponentManagerBuilder().
		AddWorker(e.processBlocksLoop).
		Build()
	e.Component = e.cm

	return e, nil
}

// Submit queues a block received from the peer for synchronization. It
// does not block; the block is dropped if the queue is full.
func (e *Engine) Submit(block *chain.Block, peerID string) {
	if e.pendingBlocks.Push(&syncRequest{peerID: peerID, block: block}) {
		e.pendingBlocksNotifier.Notify()
		return
	}
	e.log.Warn().
		Str("peer_id", peerID).
		Hex("block_id", logging.Block(block)).
		Msg("synchronization queue is full, dropping block")
}

// Republish queues the block again, unless it was restarted too often.
func (e *Engine) Republish(block *chain.Block, peerID string) {
	e.restartsMu.Lock()
	count, _ := e.restarts.Get(block.ID())
	count++
	e.restarts.Add(block.ID(), count)
	e.restartsMu.Unlock()

	if count > e.cfg.MaxRestarts {
		e.log.Info().
			Str("peer_id", peerID).
			Hex("block_id", logging.Block(block)).
			Uint("restarts", count-1).
			Msg("block restarted too often, dropping it")
		return
	}
	e.republishPool.Submit(func() {
		e.Submit(block, peerID)
	})
}

// processBlocksLoop finishes an interrupted chain switch, then processes
// the queued blocks until shutdown.
func (e *Engine) processBlocksLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	defer e.republishPool.Stop()

	err := e.recovery.RestoreOnStartup(ctx)
	if err != nil {
		ctx.Throw(fmt.Errorf("could not restore temporary blocks: %w", err))
		return
	}
	ready()

	doneSignal := ctx.Done()
	newBlockSignal := e.pendingBlocksNotifier.Channel()
	for {
		select {
		case <-doneSignal:
			return
		case <-newBlockSignal:
			err := e.processQueuedBlocks(ctx)
			if err != nil {
				ctx.Throw(err)
				return
			}
		}
	}
}

// processQueuedBlocks drains the queue.
// No errors are expected during normal operations.
func (e *Engine) processQueuedBlocks(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		req, ok := e.pendingBlocks.Pop()
		if !ok {
			return nil
		}
		err := e.synchronizer.Run(ctx, req.block, req.peerID)
		switch {
		case err == nil:
		case IsInvalidBlockError(err):
			e.log.Debug().Err(err).Str("peer_id", req.peerID).Msg("ignoring block")
		case IsAlreadyRunningError(err):
			e.log.Warn().Err(err).Str("peer_id", req.peerID).Msg("synchronizer busy, ignoring block")
		default:
			return fmt.Errorf("could not synchronize with block %x: %w", req.block.ID(), err)
		}
	}
}

// Synchronizer exposes the synchronizer, mostly for status queries.
func (e *Engine) Synchronizer() *Synchronizer {
	return e.synchronizer
}
