package notifications

import (
	"github.com/rs/zerolog"

	"github.com/dposnet/bft-core/consensus/bft"
)

// LogConsumer is an implementation of the finalization consumer that logs
// every event.
type LogConsumer struct {
	log zerolog.Logger
}

var _ bft.FinalizationConsumer = (*LogConsumer)(nil)

func NewLogConsumer(log zerolog.Logger) *LogConsumer {
	return &LogConsumer{
		log: log.With().Str("component", "finalization_log").Logger(),
	}
}

func (lc *LogConsumer) OnFinalizedHeightChanged(previous uint64, finalized uint64) {
	lc.log.Info().
		Uint64("previous_finalized_height", previous).
		Uint64("finalized_height", finalized).
		Msg("finalized height changed")
}
