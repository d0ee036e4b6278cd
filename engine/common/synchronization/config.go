package synchronization

import (
	"time"

	"github.com/sethvargo/go-retry"
)

type Config struct {
	// MaxCommonBlockRequests bounds the attempts to find a common block
	// with the peer announcing a fork.
	MaxCommonBlockRequests uint64
	// MaxFailedFetchAttempts bounds the failed or empty responses tolerated
	// per page of blocks.
	MaxFailedFetchAttempts uint64
	// RetryDelay is the pause between two attempts of the same request.
	RetryDelay time.Duration
	// AncestorSearchRequests bounds the requests block sync sends to find
	// the common block with the selected peer.
	AncestorSearchRequests uint64
	// AncestorSearchHeights is the number of heights sent per ancestor
	// search request.
	AncestorSearchHeights uint64
	// QueueCapacity is the capacity of the queue of received blocks.
	QueueCapacity int
	// PeerPenalty is the penalty applied to a misbehaving peer.
	PeerPenalty uint32
	// MaxRestarts bounds how often the same block is republished.
	MaxRestarts uint
}

func DefaultConfig() *Config {
	return &Config{
		MaxCommonBlockRequests: 10,
		MaxFailedFetchAttempts: 10,
		RetryDelay:             500 * time.Millisecond,
		AncestorSearchRequests: 3,
		AncestorSearchHeights:  10,
		QueueCapacity:          500,
		PeerPenalty:            100,
		MaxRestarts:            3,
	}
}

type OptionFunc func(*Config)

// WithRetryDelay sets the pause between two attempts of the same request.
func WithRetryDelay(delay time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.RetryDelay = delay
	}
}

// WithMaxFailedFetchAttempts sets how many failed responses are tolerated
// per page of blocks.
func WithMaxFailedFetchAttempts(attempts uint64) OptionFunc {
	return func(cfg *Config) {
		cfg.MaxFailedFetchAttempts = attempts
	}
}

// WithMaxCommonBlockRequests sets how often the announcing peer is asked
// for a common block.
func WithMaxCommonBlockRequests(requests uint64) OptionFunc {
	return func(cfg *Config) {
		cfg.MaxCommonBlockRequests = requests
	}
}

// WithQueueCapacity sets the capacity of the queue of received blocks.
func WithQueueCapacity(capacity int) OptionFunc {
	return func(cfg *Config) {
		cfg.QueueCapacity = capacity
	}
}

// WithMaxRestarts sets how often the same block may be republished.
func WithMaxRestarts(restarts uint) OptionFunc {
	return func(cfg *Config) {
		cfg.MaxRestarts = restarts
	}
}

// backoff returns a constant backoff allowing the given number of attempts.
func (c *Config) backoff(attempts uint64) retry.Backoff {
	delay := c.RetryDelay
	if delay <= 0 {
		delay = time.Millisecond
	}
	return retry.WithMaxRetries(max(attempts, 1)-1, retry.NewConstant(delay))
}
