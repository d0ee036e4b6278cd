package bft

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/utils/unittest"
)

type finalizationRecorder struct {
	mu     sync.Mutex
	events [][2]uint64
}

func (r *finalizationRecorder) OnFinalizedHeightChanged(previous uint64, finalized uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, [2]uint64{previous, finalized})
}

func (r *finalizationRecorder) Events() [][2]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]uint64(nil), r.events...)
}

type FinalityEngineSuite struct {
	suite.Suite

	delegates int
	builder   *unittest.ChainBuilder
	consumer  *finalizationRecorder
	engine    *FinalityEngine
}

func TestFinalityEngine(t *testing.T) {
	suite.Run(t, new(FinalityEngineSuite))
}

func (s *FinalityEngineSuite) SetupTest() {
	s.delegates = 4
	s.builder = unittest.NewChainBuilder(s.delegates)
	s.consumer = &finalizationRecorder{}
	s.engine = s.newEngine()
}

func (s *FinalityEngineSuite) newEngine(opts ...OptionFunc) *FinalityEngine {
	engine, err := NewFinalityEngine(unittest.Logger(), uint64(s.delegates), 0, s.consumer, opts...)
	s.Require().NoError(err)
	return engine
}

// extend forges n blocks and admits their headers to the engine.
func (s *FinalityEngineSuite) extend(n int) {
	for i := 0; i < n; i++ {
		block := s.builder.Next(s.engine.PrevotedHeight())
		s.Require().NoError(s.engine.AddHeader(&block.Header))
	}
}

func (s *FinalityEngineSuite) TestThresholds() {
	thresholds := s.engine.Thresholds()
	s.Assert().Equal(uint64(3), thresholds.PreVote)
	s.Assert().Equal(uint64(3), thresholds.PreCommit)
	s.Assert().Equal(uint64(11), thresholds.Processing)
	s.Assert().Equal(uint64(20), thresholds.WindowCapacity)

	s.Assert().Equal(uint64(68), ComputeThresholds(101).PreVote)
	s.Assert().Equal(uint64(302), ComputeThresholds(101).Processing)
}

// Four delegates forge heights 1 to 4, none of them has forged before.
func (s *FinalityEngineSuite) TestFirstRound() {
	var parent *chain.BlockHeader
	for i, key := range s.builder.Delegates() {
		header := unittest.HeaderFixture(uint64(i+1), unittest.WithGenerator(key))
		if parent != nil {
			header.PreviousBlockID = parent.ID
		}
		s.Require().NoError(s.engine.AddHeader(header))
		parent = header
	}

	snapshot := s.engine.VoteSnapshot()
	s.Assert().Equal(map[uint64]uint64{1: 4, 2: 3, 3: 2, 4: 1}, snapshot.PreVotes)
	s.Assert().Equal(map[uint64]uint64{1: 1}, snapshot.PreCommits)
	s.Assert().Equal(uint64(2), s.engine.PrevotedHeight())
	s.Assert().Equal(uint64(0), s.engine.FinalizedHeight())
	s.Assert().Empty(s.consumer.Events())
}

func (s *FinalityEngineSuite) TestHonestRotation() {
	s.extend(12)
	s.Assert().Equal(uint64(10), s.engine.PrevotedHeight())
	s.Assert().Equal(uint64(7), s.engine.FinalizedHeight())

	s.extend(18)
	s.Assert().Equal(20, s.engine.Len())
	s.Assert().Equal(uint64(11), s.engine.MinHeight())
	s.Assert().Equal(uint64(30), s.engine.MaxHeight())
	s.Assert().Equal(uint64(28), s.engine.PrevotedHeight())
	s.Assert().Equal(uint64(25), s.engine.FinalizedHeight())

	snapshot := s.engine.VoteSnapshot()
	for h := range snapshot.PreVotes {
		s.Assert().GreaterOrEqual(h, uint64(11), "pre-votes below the window must be pruned")
	}
	s.Assert().Equal(uint64(3), snapshot.PreCommits[25])
	s.Assert().Equal(uint64(2), snapshot.PreCommits[26])
}

func (s *FinalityEngineSuite) TestFinalityInvariants() {
	var lastFinalized uint64
	for i := 0; i < 60; i++ {
		s.extend(1)
		finalized, prevoted := s.engine.FinalizedHeight(), s.engine.PrevotedHeight()
		s.Require().GreaterOrEqual(finalized, lastFinalized)
		s.Require().LessOrEqual(finalized, prevoted)
		s.Require().LessOrEqual(prevoted, s.engine.MaxHeight())
		lastFinalized = finalized
	}

	// every notification reports a strict increase, and they chain up
	events := s.consumer.Events()
	s.Require().NotEmpty(events)
	var previous uint64
	for _, event := range events {
		s.Assert().Equal(previous, event[0])
		s.Assert().Greater(event[1], event[0])
		previous = event[1]
	}
	s.Assert().Equal(lastFinalized, previous)
}

func (s *FinalityEngineSuite) TestNonContiguousLeavesStateUnchanged() {
	s.extend(6)
	before := s.engine.VoteSnapshot()

	header := unittest.HeaderFixture(9, unittest.WithGenerator(s.builder.Delegates()[1]))
	err := s.engine.AddHeader(header)
	s.Require().Error(err)
	s.Assert().True(IsNonContiguousHeaderError(err))
	s.Assert().Equal(before, s.engine.VoteSnapshot())
	s.Assert().Equal(uint64(6), s.engine.MaxHeight())
}

func (s *FinalityEngineSuite) TestInvalidHeader() {
	header := unittest.HeaderFixture(1)
	header.ActiveSinceRound = 0
	err := s.engine.AddHeader(header)
	s.Require().Error(err)
	s.Assert().True(IsInvalidHeaderError(err))
	s.Assert().Equal(0, s.engine.Len())
}

func (s *FinalityEngineSuite) TestInvalidMaxHeightPrevoted() {
	s.extend(11)
	block := s.builder.Next(s.engine.PrevotedHeight() - 1)

	err := s.engine.AddHeader(&block.Header)
	s.Require().Error(err)
	s.Assert().True(IsInvalidAttributeError(err))
	s.Assert().Equal(uint64(11), s.engine.MaxHeight())
}

// A generator re-forging a height it already forged, without advancing its
// maxHeightPreviouslyForged, equivocates.
func (s *FinalityEngineSuite) TestForkChoiceRuleViolation() {
	s.extend(5)
	tip := s.builder.Tip().Header

	duplicate := tip
	duplicate.ID = unittest.IdentifierFixture()
	err := s.engine.Verify(&duplicate)
	s.Require().Error(err)
	s.Assert().True(IsForkChoiceRuleError(err))
	s.Assert().True(IsForkSafetyError(err))
}

// disjointHeader returns a header at height 6 by the generator of height 5,
// claiming it last forged at height 1.
func (s *FinalityEngineSuite) disjointHeader() *chain.BlockHeader {
	s.extend(5)
	tip := s.builder.Tip().Header
	return unittest.HeaderFixture(6,
		unittest.WithParent(&tip),
		unittest.WithGenerator(tip.GeneratorKey),
		unittest.WithMaxHeightPreviouslyForged(1),
		unittest.WithMaxHeightPrevoted(s.engine.PrevotedHeight()),
	)
}

func (s *FinalityEngineSuite) TestChainDisjointTolerated() {
	header := s.disjointHeader()

	err := s.engine.Verify(header)
	s.Require().True(IsChainDisjointError(err))

	s.Require().NoError(s.engine.AddHeader(header))
	s.Assert().Equal(uint64(6), s.engine.MaxHeight())
}

func (s *FinalityEngineSuite) TestChainDisjointRejectedAboveToleranceHeight() {
	s.engine = s.newEngine(WithDisjointToleranceHeight(5))
	header := s.disjointHeader()

	err := s.engine.AddHeader(header)
	s.Require().Error(err)
	s.Assert().True(IsChainDisjointError(err))
	s.Assert().Equal(uint64(5), s.engine.MaxHeight())
}

func (s *FinalityEngineSuite) TestLowerChainBranch() {
	s.extend(5)
	tip := s.builder.Tip().Header
	s.Require().Equal(uint64(2), tip.MaxHeightPrevoted)

	header := unittest.HeaderFixture(6,
		unittest.WithParent(&tip),
		unittest.WithGenerator(tip.GeneratorKey),
		unittest.WithMaxHeightPreviouslyForged(5),
		unittest.WithMaxHeightPrevoted(1),
	)
	err := s.engine.AddHeader(header)
	s.Require().Error(err)
	s.Assert().True(IsLowerChainBranchError(err))
}

// Headers whose generator forged on another branch do not vote.
func (s *FinalityEngineSuite) TestForeignBranchHeaderDoesNotVote() {
	s.extend(3)
	before := s.engine.VoteSnapshot()
	tip := s.builder.Tip().Header

	header := unittest.HeaderFixture(4,
		unittest.WithParent(&tip),
		unittest.WithGenerator(unittest.PublicKeyFixture()),
		unittest.WithMaxHeightPreviouslyForged(4),
	)
	s.Require().NoError(s.engine.AddHeader(header))
	s.Assert().Equal(before.PreVotes, s.engine.VoteSnapshot().PreVotes)
}

// Rebuilding after a removal yields the same state as a fresh engine fed
// the surviving headers.
func (s *FinalityEngineSuite) TestRemoveHeadersIsIdempotentReplay() {
	cases := []struct {
		delegates int
		total     int
		keep      uint64
		finalized uint64
		prevoted  uint64
	}{
		{delegates: 4, total: 30, keep: 22, finalized: 17, prevoted: 20},
		{delegates: 4, total: 30, keep: 28, finalized: 23, prevoted: 26},
		{delegates: 5, total: 40, keep: 33, finalized: 26, prevoted: 30},
	}
	for _, c := range cases {
		s.delegates = c.delegates
		s.builder = unittest.NewChainBuilder(c.delegates)
		s.engine = s.newEngine()
		s.extend(c.total)

		removed := s.engine.RemoveHeaders(c.keep)
		s.Require().Len(removed, c.total-int(c.keep))

		fresh := s.newEngine()
		for _, header := range s.engine.Headers() {
			s.Require().NoError(fresh.AddHeader(header))
		}

		rebuilt, replayed := s.engine.VoteSnapshot(), fresh.VoteSnapshot()
		s.Assert().Equal(replayed.PreVotes, rebuilt.PreVotes)
		s.Assert().Equal(replayed.PreCommits, rebuilt.PreCommits)
		s.Assert().Equal(replayed.Delegates, rebuilt.Delegates)
		s.Assert().Equal(c.finalized, rebuilt.FinalizedHeight)
		s.Assert().Equal(c.finalized, replayed.FinalizedHeight)
		s.Assert().Equal(c.prevoted, rebuilt.PrevotedHeight)
		s.Assert().Equal(c.prevoted, replayed.PrevotedHeight)
	}
}

func (s *FinalityEngineSuite) TestRecomputeIsStable() {
	s.extend(17)
	before := s.engine.VoteSnapshot()
	s.engine.Recompute()
	s.Assert().Equal(before, s.engine.VoteSnapshot())
}

func (s *FinalityEngineSuite) TestBackfill() {
	s.extend(30)
	headers := s.builder.Headers()

	// a second engine starts from the ten highest headers only
	partial := s.newEngine()
	for _, header := range headers[20:] {
		s.Require().NoError(partial.AddHeader(header))
	}

	descending := make([]*chain.BlockHeader, 0, 10)
	for i := 19; i >= 10; i-- {
		descending = append(descending, headers[i])
	}
	s.Require().NoError(partial.Backfill(descending))

	s.Assert().Equal(uint64(11), partial.MinHeight())
	s.Assert().Equal(uint64(30), partial.MaxHeight())

	// the incremental state depends on evicted headers, a rebuild does not
	s.engine.Recompute()
	s.Assert().Equal(s.engine.VoteSnapshot(), partial.VoteSnapshot())
}

func (s *FinalityEngineSuite) TestBackfillIsAllOrNothing() {
	s.extend(12)
	partial := s.newEngine()
	headers := s.builder.Headers()
	for _, header := range headers[8:] {
		s.Require().NoError(partial.AddHeader(header))
	}
	before := partial.Headers()

	// height 6 is skipped, so height 5 leaves a gap
	err := partial.Backfill([]*chain.BlockHeader{headers[7], headers[4]})
	s.Require().Error(err)
	s.Assert().True(IsNonContiguousHeaderError(err))
	s.Assert().Equal(before, partial.Headers())
}

func (s *FinalityEngineSuite) TestIsProtocolCompliant() {
	s.extend(9)
	tip := s.builder.Tip().Header
	delegates := s.builder.Delegates()

	next := s.builder.Next(s.engine.PrevotedHeight()).Header
	s.Assert().True(s.engine.IsProtocolCompliant(&next))

	// claims a recent block forged by someone else
	forged := next
	forged.MaxHeightPreviouslyForged = tip.Height
	s.Assert().False(s.engine.IsProtocolCompliant(&forged))

	// claims a block at or above its own height
	forged.MaxHeightPreviouslyForged = next.Height
	s.Assert().False(s.engine.IsProtocolCompliant(&forged))

	// first block of a delegate
	fresh := unittest.HeaderFixture(10, unittest.WithGenerator(delegates[0]))
	s.Assert().True(s.engine.IsProtocolCompliant(fresh))
}

func TestNewFinalityEngine_InvalidArguments(t *testing.T) {
	_, err := NewFinalityEngine(unittest.Logger(), 0, 0, &finalizationRecorder{})
	require.Error(t, err)
	_, err = NewFinalityEngine(unittest.Logger(), 4, 0, nil)
	require.Error(t, err)
}

func TestFinalityEngine_FinalizedFloor(t *testing.T) {
	recorder := &finalizationRecorder{}
	engine, err := NewFinalityEngine(unittest.Logger(), 3, 5, recorder)
	require.NoError(t, err)

	builder := unittest.NewChainBuilder(3)
	for i := 0; i < 9; i++ {
		block := builder.Next(engine.PrevotedHeight())
		require.NoError(t, engine.AddHeader(&block.Header))
		assert.GreaterOrEqual(t, engine.FinalizedHeight(), uint64(5))
	}
	// three delegates finalize height 6 after nine blocks
	assert.Equal(t, uint64(6), engine.FinalizedHeight())
	assert.Equal(t, [][2]uint64{{5, 6}}, recorder.Events())
}
