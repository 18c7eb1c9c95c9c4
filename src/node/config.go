package node

import (
	"testing"
	"time"

	"github.com/hivemesh/hive/src/common"
	"github.com/sirupsen/logrus"
)

// Config holds the parameters of a hive node.
type Config struct {
	// HeartbeatTimeout is the base interval of the gossip loop. The actual
	// interval carries a random component on top.
	HeartbeatTimeout time.Duration

	// SyncInterval is how often the node runs digest-based full sync
	// against a random partner.
	SyncInterval time.Duration

	// SweepInterval is how often expired sessions, challenges, rate-limit
	// buckets and relay fingerprints are evicted.
	SweepInterval time.Duration

	// ChallengeTTL bounds how long a handshake challenge stays answerable.
	ChallengeTTL time.Duration

	// SessionTTL bounds how long an idle session survives.
	SessionTTL time.Duration

	// IntentHold is how long an intent is held open for competing intents
	// before it can commit.
	IntentHold time.Duration

	// IntentRetention is how long decided intents are kept for replay
	// detection.
	IntentRetention time.Duration

	// RelayTTL bounds the relay dedup window.
	RelayTTL time.Duration

	// PendingLimit caps outstanding handshake challenges.
	PendingLimit int

	// UsedTicketLimit caps the used-ticket set.
	UsedTicketLimit int

	// RelayLimit caps the relay dedup cache.
	RelayLimit int

	// RateLimitBurst and RateLimitWindow bound per-sender gossip updates.
	RateLimitBurst  int
	RateLimitWindow time.Duration

	// GossipFanout is the number of peers a fresh update is relayed to.
	GossipFanout int

	// QuorumFloor and QuorumRatio parametrise the promotion quorum.
	QuorumFloor int
	QuorumRatio float64

	// ActiveWindow is the recency window for counting active members.
	ActiveWindow time.Duration

	// TicketValidity is the lifetime of tickets this node issues.
	TicketValidity time.Duration

	// JoinTicket is an operator-supplied admission ticket in its encoded
	// form. When empty, the node self-issues, which only works for
	// returning members.
	JoinTicket string

	// Logger is the logger for the node and its subsystems.
	Logger *logrus.Entry
}

// NewConfig creates a Config with custom timing parameters.
func NewConfig(
	heartbeat time.Duration,
	syncInterval time.Duration,
	intentHold time.Duration,
	logger *logrus.Entry,
) *Config {
	conf := DefaultConfig()
	conf.HeartbeatTimeout = heartbeat
	conf.SyncInterval = syncInterval
	conf.IntentHold = intentHold
	conf.Logger = logger
	return conf
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		HeartbeatTimeout: 1000 * time.Millisecond,
		SyncInterval:     30 * time.Second,
		SweepInterval:    10 * time.Second,
		ChallengeTTL:     30 * time.Second,
		SessionTTL:       10 * time.Minute,
		IntentHold:       30 * time.Second,
		IntentRetention:  10 * time.Minute,
		RelayTTL:         2 * time.Minute,
		PendingLimit:     512,
		UsedTicketLimit:  4096,
		RelayLimit:       8192,
		RateLimitBurst:   20,
		RateLimitWindow:  10 * time.Second,
		GossipFanout:     3,
		QuorumFloor:      3,
		QuorumRatio:      0.51,
		ActiveWindow:     1 * time.Hour,
		TicketValidity:   24 * time.Hour,
		Logger:           logger.WithField("id", "default"),
	}
}

// TestConfig returns a Config tuned for in-memory tests: short timers, a
// test logger.
func TestConfig(t *testing.T) *Config {
	conf := DefaultConfig()

	conf.HeartbeatTimeout = 50 * time.Millisecond
	conf.SyncInterval = 200 * time.Millisecond
	conf.SweepInterval = 100 * time.Millisecond
	conf.IntentHold = 100 * time.Millisecond
	conf.Logger = common.NewTestEntry(t, "node")

	return conf
}
