package synchronization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/dposnet/bft-core/consensus/forkchoice"
	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/module"
	"github.com/dposnet/bft-core/module/irrecoverable"
	"github.com/dposnet/bft-core/network"
	"github.com/dposnet/bft-core/storage"
	"github.com/dposnet/bft-core/utils/logging"
)

// Synchronizer decides how to react to a received block which does not fit
// on the local chain and runs at most one recovery mechanism at a time.
type Synchronizer struct {
	log         zerolog.Logger
	cfg         *Config
	consensus   Consensus
	blocks      storage.Blocks
	net         network.PeerNetwork
	metrics     module.SyncMetrics
	republisher Republisher
	mechanisms  []Mechanism
	active      *atomic.String
}

// NewSynchronizer creates a synchronizer trying the mechanisms in the given
// order.
func NewSynchronizer(
	log zerolog.Logger,
	cfg *Config,
	consensus Consensus,
	blocks storage.Blocks,
	net network.PeerNetwork,
	metrics module.SyncMetrics,
	republisher Republisher,
	mechanisms ...Mechanism,
) *Synchronizer {
	return &Synchronizer{
		log:         log.With().Str("component", "synchronizer").Logger(),
		cfg:         cfg,
		consensus:   consensus,
		blocks:      blocks,
		net:         net,
		metrics:     metrics,
		republisher: republisher,
		mechanisms:  mechanisms,
		active:      atomic.NewString(""),
	}
}

// IsActive reports whether a mechanism is running.
func (s *Synchronizer) IsActive() bool {
	return s.active.Load() != ""
}

// Run handles a block received from the peer.
// Expected errors during normal operations:
//   - AlreadyRunningError if a mechanism is already running
//   - InvalidBlockError if fork choice rejects the block
//
// Recoverable mechanism failures are handled internally: the peer is
// penalized and the block republished as the failure demands.
func (s *Synchronizer) Run(ctx context.Context, block *chain.Block, peerID string) error {
	const running = "determining mechanism"
	if !s.active.CompareAndSwap("", running) {
		return AlreadyRunningError{Mechanism: s.active.Load()}
	}
	defer s.active.Store("")

	mechanism, err := s.DetermineMechanism(ctx, block)
	if err != nil {
		return err
	}
	log := s.log.With().
		Str("peer_id", peerID).
		Uint64("height", block.Height()).
		Hex("block_id", logging.Block(block)).
		Logger()
	if mechanism == nil {
		log.Info().Msg("no synchronization mechanism applies to block")
		return nil
	}
	s.active.Store(mechanism.Name())

	log.Info().Str("mechanism", mechanism.Name()).Msg("starting synchronization")
	s.metrics.MechanismStarted(mechanism.Name())
	start := time.Now()

	err = mechanism.Run(ctx, block, peerID)
	outcome, err := s.handle(log, block, peerID, err)
	s.metrics.MechanismFinished(mechanism.Name(), outcome, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s failed: %w", mechanism.Name(), err)
	}
	log.Info().Str("mechanism", mechanism.Name()).Str("outcome", outcome).Msg("synchronization finished")
	return nil
}

// DetermineMechanism returns the first mechanism valid for the block, nil
// if none is.
// Expected errors during normal operations:
//   - InvalidBlockError if fork choice rejects the block
func (s *Synchronizer) DetermineMechanism(ctx context.Context, block *chain.Block) (Mechanism, error) {
	tip, err := s.blocks.Last()
	if err != nil {
		return nil, fmt.Errorf("could not get tip: %w", err)
	}
	status := s.consensus.ForkChoice(&tip.Header, &block.Header)
	if status != forkchoice.ValidExtension && status != forkchoice.DifferentChain {
		return nil, InvalidBlockError{BlockID: block.ID(), Height: block.Height(), Status: status}
	}
	for _, mechanism := range s.mechanisms {
		valid, err := mechanism.IsValidFor(ctx, block)
		if err != nil {
			return nil, fmt.Errorf("could not check whether %s applies: %w", mechanism.Name(), err)
		}
		if valid {
			return mechanism, nil
		}
	}
	return nil, nil
}

// handle applies the side effects of a mechanism failure and returns the
// outcome label together with any error which remains unhandled.
func (s *Synchronizer) handle(log zerolog.Logger, block *chain.Block, peerID string, err error) (string, error) {
	var (
		penalize ApplyPenaltyAndRestartError
		abort    AbortError
	)
	switch {
	case err == nil:
		return "success", nil
	case irrecoverable.IsException(err):
		return "failure", err
	case errors.As(err, &penalize):
		log.Warn().Err(err).Msg("peer misbehaved, restarting synchronization")
		s.penalize(penalize.PeerID)
		s.republisher.Republish(block, peerID)
		return "penalty_restart", nil
	case IsRestartError(err):
		log.Info().Err(err).Msg("restarting synchronization")
		s.republisher.Republish(block, peerID)
		return "restart", nil
	case errors.As(err, &abort):
		log.Info().Err(err).Msg("synchronization aborted")
		if abort.PeerID != "" {
			s.penalize(abort.PeerID)
		}
		return "abort", nil
	default:
		return "failure", err
	}
}

func (s *Synchronizer) penalize(peerID string) {
	s.metrics.PeerPenalized()
	s.net.ApplyPenalty(peerID, s.cfg.PeerPenalty)
}
