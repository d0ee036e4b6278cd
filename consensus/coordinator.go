package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dposnet/bft-core/consensus/bft"
	"github.com/dposnet/bft-core/consensus/forkchoice"
	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/module"
	"github.com/dposnet/bft-core/storage"
)

// ErrNotInitialized is returned by a Coordinator that has not loaded its
// state from storage yet.
var ErrNotInitialized = errors.New("coordinator is not initialized")

// Coordinator connects the finality engine to the life cycle of the local
// chain. It loads the engine from storage on startup, feeds it the headers of
// applied blocks, rewinds it when blocks are deleted and persists the
// finalized height. It is also the single place the rest of the node asks
// for fork choice decisions.
type Coordinator struct {
	log      zerolog.Logger
	cfg      Config
	blocks   storage.Blocks
	state    storage.ChainState
	slots    module.Slots
	consumer bft.FinalizationConsumer
	metrics  module.BFTMetrics

	mu        sync.RWMutex
	engine    *bft.FinalityEngine
	persisted uint64
	pending   []finalizedUpdate

	// deliverMu serializes deliveries to the consumer and guards notified.
	deliverMu sync.Mutex
	notified  uint64
}

type finalizedUpdate struct {
	previous  uint64
	finalized uint64
}

// deferredConsumer queues the finality updates the engine raises while the
// Coordinator holds its lock. They are delivered by Coordinator.deliver.
type deferredConsumer struct {
	c *Coordinator
}

func (d deferredConsumer) OnFinalizedHeightChanged(previous uint64, finalized uint64) {
	d.c.pending = append(d.c.pending, finalizedUpdate{previous: previous, finalized: finalized})
}

// NewCoordinator creates a Coordinator. Init must be called before blocks
// are added or deleted.
func NewCoordinator(
	log zerolog.Logger,
	cfg Config,
	blocks storage.Blocks,
	state storage.ChainState,
	slots module.Slots,
	consumer bft.FinalizationConsumer,
	metrics module.BFTMetrics,
) (*Coordinator, error) {
	if cfg.ActiveDelegates == 0 {
		return nil, fmt.Errorf("number of active delegates must be positive")
	}
	c := &Coordinator{
		log:      log.With().Str("component", "consensus_coordinator").Logger(),
		cfg:      cfg,
		blocks:   blocks,
		state:    state,
		slots:    slots,
		consumer: consumer,
		metrics:  metrics,
	}
	return c, nil
}

// Init creates a fresh finality engine and loads the recent headers of the
// stored chain into it. The engine starts from the persisted finalized
// height and replays the headers of at most the last two rounds.
func (c *Coordinator) Init(ctx context.Context) error {
	defer c.deliver()

	finalized, err := c.state.FinalizedHeight()
	if err != nil {
		return fmt.Errorf("could not retrieve finalized height: %w", err)
	}
	finalized = max(finalized, c.cfg.StartingHeight)

	c.deliverMu.Lock()
	c.notified = max(c.notified, finalized)
	c.deliverMu.Unlock()

	engine, err := bft.NewFinalityEngine(c.log, c.cfg.ActiveDelegates, finalized, deferredConsumer{c: c},
		bft.WithDisjointToleranceHeight(c.cfg.DisjointToleranceHeight))
	if err != nil {
		return fmt.Errorf("could not create finality engine: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine = engine
	c.persisted = finalized

	last, err := c.blocks.Last()
	if errors.Is(err, storage.ErrNotFound) {
		c.log.Info().Uint64("finalized_height", finalized).Msg("initialized with empty chain")
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not retrieve last block: %w", err)
	}

	from := max(finalized, subFloor(last.Height(), 2*c.cfg.ActiveDelegates), c.cfg.StartingHeight, 1)
	blocks, err := c.blocks.ByHeightRange(from, last.Height())
	if err != nil {
		return fmt.Errorf("could not retrieve blocks from height %d to %d: %w", from, last.Height(), err)
	}
	for _, block := range blocks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = engine.AddHeader(&block.Header)
		if err != nil {
			return fmt.Errorf("could not load header at height %d: %w", block.Height(), err)
		}
	}

	c.metrics.FinalizedHeight(max(engine.FinalizedHeight(), c.persisted))
	c.metrics.PrevotedHeight(engine.PrevotedHeight())
	c.log.Info().
		Uint64("from_height", from).
		Uint64("to_height", last.Height()).
		Uint64("finalized_height", engine.FinalizedHeight()).
		Uint64("prevoted_height", engine.PrevotedHeight()).
		Msg("finality engine initialized")

	return c.persistFinalized()
}

// AddBlock feeds the header of a block which is being applied to the
// finality engine and persists the finalized height if it increased.
func (c *Coordinator) AddBlock(_ context.Context, block *chain.Block) error {
	defer c.deliver()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return ErrNotInitialized
	}

	err := c.engine.AddHeader(&block.Header)
	if err != nil {
		c.metrics.HeaderRejected(rejectionReason(err))
		return fmt.Errorf("could not add header of block %x: %w", block.ID(), err)
	}
	c.metrics.HeaderAdmitted()
	c.metrics.PrevotedHeight(c.engine.PrevotedHeight())

	return c.persistFinalized()
}

// Verify checks the header of a block against the finality engine without
// admitting it.
func (c *Coordinator) Verify(header *chain.BlockHeader) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.engine == nil {
		return ErrNotInitialized
	}
	return c.engine.Verify(header)
}

// DeleteBlocks rewinds the finality engine below the lowest of the given
// blocks. If fewer than two rounds of headers remain, older headers are
// loaded from storage so that the vote state can be rebuilt.
func (c *Coordinator) DeleteBlocks(_ context.Context, blocks []*chain.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	defer c.deliver()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return ErrNotInitialized
	}

	lowest := blocks[0].Height()
	for _, block := range blocks[1:] {
		lowest = min(lowest, block.Height())
	}
	c.engine.RemoveHeaders(lowest - 1)

	want := 2 * c.cfg.ActiveDelegates
	have := uint64(c.engine.Len())
	if have >= want {
		return nil
	}

	to := lowest - 1
	if have > 0 {
		to = c.engine.MinHeight() - 1
	}
	floor := max(c.cfg.StartingHeight, 1)
	if to < floor {
		return nil
	}
	from := max(subFloor(to+1, want-have), floor)

	older, err := c.blocks.ByHeightRange(from, to)
	if err != nil {
		return fmt.Errorf("could not retrieve blocks from height %d to %d: %w", from, to, err)
	}
	headers := make([]*chain.BlockHeader, 0, len(older))
	for i := len(older) - 1; i >= 0; i-- {
		headers = append(headers, &older[i].Header)
	}
	err = c.engine.Backfill(headers)
	if err != nil {
		return fmt.Errorf("could not backfill finality engine: %w", err)
	}

	c.log.Debug().
		Uint64("deleted_from_height", lowest).
		Uint64("backfilled_from_height", from).
		Uint64("backfilled_to_height", to).
		Msg("finality engine rewound")
	c.metrics.PrevotedHeight(c.engine.PrevotedHeight())
	return nil
}

// deliver hands the queued finality updates to the consumer, in the order
// the engine raised them. It must be called without holding c.mu, so that
// consumers may query the Coordinator. Heights which were already delivered
// are not repeated after the engine was rewound.
func (c *Coordinator) deliver() {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	updates := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, update := range updates {
		if update.finalized <= c.notified {
			continue
		}
		c.consumer.OnFinalizedHeightChanged(max(update.previous, c.notified), update.finalized)
		c.notified = update.finalized
	}
}

// persistFinalized stores the finalized height if the engine reports a
// height above the persisted one. The persisted height never decreases.
func (c *Coordinator) persistFinalized() error {
	finalized := c.engine.FinalizedHeight()
	if finalized <= c.persisted {
		return nil
	}
	err := c.state.SetFinalizedHeight(finalized)
	if err != nil {
		return fmt.Errorf("could not persist finalized height %d: %w", finalized, err)
	}
	c.persisted = finalized
	c.metrics.FinalizedHeight(finalized)
	return nil
}

// ForkChoice classifies the candidate block relative to the local tip.
func (c *Coordinator) ForkChoice(local *chain.BlockHeader, candidate *chain.BlockHeader) forkchoice.Status {
	return forkchoice.Classify(c.slots, local, candidate)
}

// ChainSwitchingMode answers how the node should react to the candidate
// block, based on the fork choice classification.
func (c *Coordinator) ChainSwitchingMode(local *chain.BlockHeader, candidate *chain.BlockHeader) SwitchingMode {
	return SwitchingModeFor(c.ForkChoice(local, candidate))
}

// FinalizedHeight returns the finalized height. It never decreases, even if
// the engine was rewound past blocks it had counted pre-commits from.
func (c *Coordinator) FinalizedHeight() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.engine == nil {
		return c.persisted
	}
	return max(c.engine.FinalizedHeight(), c.persisted)
}

func (c *Coordinator) PrevotedHeight() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.engine == nil {
		return 0
	}
	return c.engine.PrevotedHeight()
}

// IsProtocolCompliant reports whether the generator of the header honestly
// references its previously forged block.
func (c *Coordinator) IsProtocolCompliant(header *chain.BlockHeader) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.engine == nil {
		return false
	}
	return c.engine.IsProtocolCompliant(header)
}

// VoteSnapshot returns a copy of the vote state of the finality engine.
func (c *Coordinator) VoteSnapshot() (bft.VoteSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.engine == nil {
		return bft.VoteSnapshot{}, ErrNotInitialized
	}
	return c.engine.VoteSnapshot(), nil
}

func (c *Coordinator) ActiveDelegates() uint64 {
	return c.cfg.ActiveDelegates
}

func rejectionReason(err error) string {
	switch {
	case bft.IsInvalidHeaderError(err):
		return "invalid_header"
	case bft.IsInvalidAttributeError(err):
		return "invalid_attribute"
	case bft.IsForkChoiceRuleError(err):
		return "fork_choice_rule"
	case bft.IsChainDisjointError(err):
		return "chain_disjoint"
	case bft.IsLowerChainBranchError(err):
		return "lower_chain_branch"
	case bft.IsNonContiguousHeaderError(err):
		return "non_contiguous"
	default:
		return "unknown"
	}
}

func subFloor(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
