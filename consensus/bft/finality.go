package bft

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dposnet/bft-core/model/chain"
)

// DelegateState tracks the highest heights a delegate has implicitly
// pre-voted and pre-committed.
type DelegateState struct {
	MaxPreVoteHeight   uint64
	MaxPreCommitHeight uint64
}

// VoteSnapshot is a deep copy of the vote state of a FinalityEngine.
type VoteSnapshot struct {
	PreVotes        map[uint64]uint64
	PreCommits      map[uint64]uint64
	Delegates       map[chain.PublicKey]DelegateState
	PrevotedHeight  uint64
	FinalizedHeight uint64
}

// FinalityEngine derives the prevoted and finalized heights from the headers
// of a bounded HeaderWindow. Every header implicitly pre-votes the heights its
// generator has not voted on yet, and pre-commits heights that already hold
// enough pre-votes.
//
// FinalityEngine is safe for concurrent use. Mutations are serialized; the
// tallies are not commutative with respect to header order.
type FinalityEngine struct {
	log        zerolog.Logger
	mu         sync.RWMutex
	consumer   FinalizationConsumer
	thresholds Thresholds
	cfg        config

	window                 *HeaderWindow
	preVotes               map[uint64]uint64
	preCommits             map[uint64]uint64
	delegates              map[chain.PublicKey]*DelegateState
	prevotedHeight         uint64
	finalizedHeight        uint64
	initialFinalizedHeight uint64
}

// NewFinalityEngine creates an engine for the given number of active
// delegates. finalizedHeight is the persisted finalized height; the engine
// never reports a lower value.
func NewFinalityEngine(
	log zerolog.Logger,
	activeDelegates uint64,
	finalizedHeight uint64,
	consumer FinalizationConsumer,
	opts ...OptionFunc,
) (*FinalityEngine, error) {
	if activeDelegates == 0 {
		return nil, fmt.Errorf("number of active delegates must be positive")
	}
	if consumer == nil {
		return nil, fmt.Errorf("finalization consumer must not be nil")
	}

	cfg := defaultConfig()
	for _, apply := range opts {
		apply(&cfg)
	}

	thresholds := ComputeThresholds(activeDelegates)
	e := &FinalityEngine{
		log: log.With().
			Str("component", "finality_engine").
			Uint64("active_delegates", activeDelegates).
			Logger(),
		consumer:               consumer,
		thresholds:             thresholds,
		cfg:                    cfg,
		window:                 NewHeaderWindow(int(thresholds.WindowCapacity)),
		preVotes:               make(map[uint64]uint64),
		preCommits:             make(map[uint64]uint64),
		delegates:              make(map[chain.PublicKey]*DelegateState),
		finalizedHeight:        finalizedHeight,
		initialFinalizedHeight: finalizedHeight,
	}
	return e, nil
}

// AddHeader admits a header to the window and updates the vote state.
// Admission is all-or-nothing: on error, neither the window nor the tallies
// are modified.
// Expected errors during normal operations:
//   - InvalidHeaderError if the header is malformed
//   - InvalidAttributeError if the header's maxHeightPrevoted is wrong
//   - ForkChoiceRuleError, LowerChainBranchError if the generator violates
//     the fork safety rules
//   - ChainDisjointError if the header is disjoint from the generator's
//     history above the configured tolerance height
//   - NonContiguousHeaderError if the header does not extend either end of
//     the window
func (e *FinalityEngine) AddHeader(header *chain.BlockHeader) error {
	e.mu.Lock()
	previous, finalized, err := e.addHeader(header)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.notify(previous, finalized)
	return nil
}

func (e *FinalityEngine) addHeader(header *chain.BlockHeader) (uint64, uint64, error) {
	previous := e.finalizedHeight

	err := header.Validate()
	if err != nil {
		return previous, previous, NewInvalidHeaderErrorf("invalid header at height %d: %w", header.Height, err)
	}

	err = e.verify(header)
	if IsChainDisjointError(err) && header.Height <= e.cfg.disjointToleranceHeight {
		e.log.Warn().Err(err).
			Uint64("height", header.Height).
			Hex("block_id", header.ID[:]).
			Msg("tolerating header disjoint from generator history")
		err = nil
	}
	if err != nil {
		return previous, previous, fmt.Errorf("could not verify header at height %d: %w", header.Height, err)
	}

	_, err = e.window.Add(header)
	if err != nil {
		return previous, previous, fmt.Errorf("could not add header to window: %w", err)
	}

	e.updateVotes(header)
	e.recomputeFinality()
	e.prune()

	e.log.Debug().
		Uint64("height", header.Height).
		Hex("block_id", header.ID[:]).
		Uint64("prevoted_height", e.prevotedHeight).
		Uint64("finalized_height", e.finalizedHeight).
		Msg("header added")

	return previous, e.finalizedHeight, nil
}

// Verify checks the header against the recent history of the window without
// admitting it. It returns the same errors as AddHeader, except that
// ChainDisjointError is always returned.
func (e *FinalityEngine) Verify(header *chain.BlockHeader) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.verify(header)
}

func (e *FinalityEngine) verify(header *chain.BlockHeader) error {
	processing := int(e.thresholds.Processing)
	if e.window.Len() >= processing && header.MaxHeightPrevoted != e.prevotedHeight {
		return InvalidAttributeError{
			Attribute: "maxHeightPrevoted",
			Expected:  e.prevotedHeight,
			Actual:    header.MaxHeightPrevoted,
		}
	}

	prior := e.latestByGenerator(header.GeneratorKey, processing)
	if prior == nil {
		return nil
	}
	if prior.MaxHeightPreviouslyForged == header.MaxHeightPreviouslyForged && prior.Height >= header.Height {
		return ForkChoiceRuleError{Generator: header.GeneratorKey, Height: header.Height, Prior: prior.Height}
	}
	if prior.Height > header.MaxHeightPreviouslyForged {
		return ChainDisjointError{
			Generator:                 header.GeneratorKey,
			Prior:                     prior.Height,
			MaxHeightPreviouslyForged: header.MaxHeightPreviouslyForged,
		}
	}
	if prior.MaxHeightPrevoted > header.MaxHeightPrevoted {
		return LowerChainBranchError{
			Generator:         header.GeneratorKey,
			PriorPrevoted:     prior.MaxHeightPrevoted,
			MaxHeightPrevoted: header.MaxHeightPrevoted,
		}
	}
	return nil
}

// latestByGenerator returns the highest of the top n headers forged by the
// given generator, or nil.
func (e *FinalityEngine) latestByGenerator(generator chain.PublicKey, n int) *chain.BlockHeader {
	items := e.window.headers
	lowest := len(items) - n
	if lowest < 0 {
		lowest = 0
	}
	for i := len(items) - 1; i >= lowest; i-- {
		if items[i].GeneratorKey == generator {
			return items[i]
		}
	}
	return nil
}

// updateVotes applies the implicit pre-votes and pre-commits of the header.
func (e *FinalityEngine) updateVotes(header *chain.BlockHeader) {
	// the generator forged on a different branch, its votes do not apply here
	if header.MaxHeightPreviouslyForged >= header.Height {
		return
	}

	state, ok := e.delegates[header.GeneratorKey]
	if !ok {
		state = &DelegateState{}
		e.delegates[header.GeneratorKey] = state
	}

	processing := e.thresholds.Processing
	activeSinceHeight := (header.ActiveSinceRound-1)*e.thresholds.ActiveDelegates + 1

	minCommit := max(activeSinceHeight, e.validMinHeightToCommit(header), state.MaxPreCommitHeight+1)
	for h := minCommit; h < header.Height; h++ {
		if e.preVotes[h] >= e.thresholds.PreVote {
			e.preCommits[h]++
			state.MaxPreCommitHeight = h
		}
	}

	minVote := max(
		activeSinceHeight,
		header.MaxHeightPreviouslyForged+1,
		state.MaxPreVoteHeight+1,
		subFloor(header.Height, processing),
	)
	for h := minVote; h <= header.Height; h++ {
		e.preVotes[h]++
	}
	state.MaxPreVoteHeight = header.Height
}

// validMinHeightToCommit walks the generator's history backwards through
// the maxHeightPreviouslyForged links. The walk stops at the first height
// where the link is broken, because the generator may have switched chains
// there and must not pre-commit below it.
func (e *FinalityEngine) validMinHeightToCommit(header *chain.BlockHeader) uint64 {
	processing := e.thresholds.Processing
	needle := max(header.MaxHeightPreviouslyForged, subFloor(header.Height, processing))
	till := max(e.window.MinHeight(), subFloor(header.Height, processing), 1)
	expected := header.MaxHeightPreviouslyForged

	for needle >= till {
		if needle == expected {
			prior, ok := e.window.ByHeight(needle)
			if !ok {
				return till
			}
			if prior.GeneratorKey != header.GeneratorKey || prior.MaxHeightPreviouslyForged >= needle {
				return needle + 1
			}
			expected = prior.MaxHeightPreviouslyForged
		}
		needle--
	}
	return max(needle+1, till)
}

// recomputeFinality derives prevoted and finalized heights from the tallies.
func (e *FinalityEngine) recomputeFinality() {
	var prevoted uint64
	for h, votes := range e.preVotes {
		if votes >= e.thresholds.PreVote && h > prevoted {
			prevoted = h
		}
	}
	if prevoted > 0 {
		e.prevotedHeight = prevoted
	}

	var finalized uint64
	for h, commits := range e.preCommits {
		if commits >= e.thresholds.PreCommit && h > finalized {
			finalized = h
		}
	}
	if finalized > e.finalizedHeight {
		e.finalizedHeight = finalized
	}
}

// prune drops tallies for heights outside the window.
func (e *FinalityEngine) prune() {
	minHeight, maxHeight := e.window.MinHeight(), e.window.MaxHeight()
	for h := range e.preVotes {
		if h < minHeight || h > maxHeight {
			delete(e.preVotes, h)
		}
	}
	for h := range e.preCommits {
		if h < minHeight || h > maxHeight {
			delete(e.preCommits, h)
		}
	}
}

// RemoveHeaders drops all headers above the given height and rebuilds the
// vote state from the remaining headers.
func (e *FinalityEngine) RemoveHeaders(aboveHeight uint64) []*chain.BlockHeader {
	e.mu.Lock()
	removed := e.window.RemoveAbove(aboveHeight)
	previous, finalized := e.recompute()
	e.mu.Unlock()

	e.log.Debug().
		Uint64("above_height", aboveHeight).
		Int("removed", len(removed)).
		Msg("headers removed")
	e.notify(previous, finalized)
	return removed
}

// Recompute rebuilds the vote state from scratch by replaying every header of
// the window in ascending order.
func (e *FinalityEngine) Recompute() {
	e.mu.Lock()
	previous, finalized := e.recompute()
	e.mu.Unlock()
	e.notify(previous, finalized)
}

func (e *FinalityEngine) recompute() (uint64, uint64) {
	previous := e.finalizedHeight

	e.preVotes = make(map[uint64]uint64)
	e.preCommits = make(map[uint64]uint64)
	e.delegates = make(map[chain.PublicKey]*DelegateState)
	e.prevotedHeight = 0
	e.finalizedHeight = e.initialFinalizedHeight

	for _, header := range e.window.headers {
		e.updateVotes(header)
	}
	e.recomputeFinality()
	e.prune()

	return previous, e.finalizedHeight
}

// Backfill inserts older headers below the window, highest first, and then
// rebuilds the vote state once. Headers are shape-checked but not verified,
// they were verified when first admitted. Backfill stops when the window is
// full. It is all-or-nothing: on error the window is unchanged.
func (e *FinalityEngine) Backfill(headers []*chain.BlockHeader) error {
	e.mu.Lock()
	backup := e.window.Items()
	for _, header := range headers {
		if e.window.Len() >= e.window.Capacity() {
			break
		}
		err := header.Validate()
		if err == nil {
			_, err = e.window.Add(header)
		}
		if err != nil {
			e.window.restore(backup)
			e.mu.Unlock()
			return fmt.Errorf("could not backfill header at height %d: %w", header.Height, err)
		}
	}
	previous, finalized := e.recompute()
	e.mu.Unlock()

	e.notify(previous, finalized)
	return nil
}

// IsProtocolCompliant checks that the generator's claim about its previously
// forged block is consistent with the window. A generator that forged within
// the last 3N heights must reference its own block.
func (e *FinalityEngine) IsProtocolCompliant(header *chain.BlockHeader) bool {
	if header.Height == 1 || header.MaxHeightPreviouslyForged == 0 {
		return true
	}
	if header.MaxHeightPreviouslyForged >= header.Height {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	recent := header.Height-header.MaxHeightPreviouslyForged <= 3*e.thresholds.ActiveDelegates
	prior, ok := e.window.ByHeight(header.MaxHeightPreviouslyForged)
	if !ok {
		return !recent
	}
	return !recent || prior.GeneratorKey == header.GeneratorKey
}

func (e *FinalityEngine) FinalizedHeight() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.finalizedHeight
}

func (e *FinalityEngine) PrevotedHeight() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prevotedHeight
}

func (e *FinalityEngine) MinHeight() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.window.MinHeight()
}

func (e *FinalityEngine) MaxHeight() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.window.MaxHeight()
}

// Len returns the number of headers in the window.
func (e *FinalityEngine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.window.Len()
}

// HeaderAt returns the header at the given height if it is in the window.
func (e *FinalityEngine) HeaderAt(height uint64) (*chain.BlockHeader, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.window.ByHeight(height)
}

// Headers returns the contents of the window in ascending order.
func (e *FinalityEngine) Headers() []*chain.BlockHeader {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.window.Items()
}

func (e *FinalityEngine) Thresholds() Thresholds {
	return e.thresholds
}

// VoteSnapshot returns a deep copy of the current vote state.
func (e *FinalityEngine) VoteSnapshot() VoteSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snapshot := VoteSnapshot{
		PreVotes:        make(map[uint64]uint64, len(e.preVotes)),
		PreCommits:      make(map[uint64]uint64, len(e.preCommits)),
		Delegates:       make(map[chain.PublicKey]DelegateState, len(e.delegates)),
		PrevotedHeight:  e.prevotedHeight,
		FinalizedHeight: e.finalizedHeight,
	}
	for h, votes := range e.preVotes {
		snapshot.PreVotes[h] = votes
	}
	for h, commits := range e.preCommits {
		snapshot.PreCommits[h] = commits
	}
	for key, state := range e.delegates {
		snapshot.Delegates[key] = *state
	}
	return snapshot
}

func (e *FinalityEngine) notify(previous, finalized uint64) {
	if finalized <= previous {
		return
	}
	e.log.Info().
		Uint64("previous_finalized_height", previous).
		Uint64("finalized_height", finalized).
		Msg("finalized height increased")
	e.consumer.OnFinalizedHeightChanged(previous, finalized)
}

// subFloor returns a-b, or zero if b exceeds a.
func subFloor(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
