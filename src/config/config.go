// Package config defines the top-level configuration of a hive node and its
// translation into the node package's runtime parameters.
package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/node"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the
	// Badger database
	DefaultBadgerFile = "badger_db"
)

// Default configuration values.
const (
	DefaultLogLevel         = "debug"
	DefaultBindAddr         = "127.0.0.1:1337"
	DefaultServiceAddr      = "127.0.0.1:8000"
	DefaultHeartbeatTimeout = 1000 * time.Millisecond
	DefaultSyncInterval     = 30 * time.Second
	DefaultIntentHold       = 30 * time.Second
	DefaultTCPTimeout       = 1000 * time.Millisecond
	DefaultMaxPool          = 2
	DefaultStore            = false
	DefaultMaintenanceMode  = false
	DefaultQuorumFloor      = 3
	DefaultQuorumRatio      = 0.51
	DefaultPolicyTimeout    = 5 * time.Second
)

// Config contains all the configuration properties of a hive node.
type Config struct {
	// DataDir is the top-level directory containing hive configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, duplicates log output to a file.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port where this node gossips with other
	// nodes. In some cases, there may be a routable address that cannot be
	// bound. Use AdvertiseAddr to advertise a different address to support
	// this.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to
	// other nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service. If not
	// specified, and "no-service" is not set, the API handlers are
	// registered with the DefaultServerMux of the http package.
	ServiceAddr string `mapstructure:"service-listen"`

	// HeartbeatTimeout is the base frequency of the gossip timer.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat"`

	// SyncInterval is the frequency of digest-based full sync.
	SyncInterval time.Duration `mapstructure:"sync-interval"`

	// IntentHold is how long intents are held open for competitors before
	// they can commit.
	IntentHold time.Duration `mapstructure:"intent-hold"`

	// MaxPool controls how many connections are pooled per target in the
	// gossip routines.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of gossip connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// MaintenanceMode when set to true causes the node to initialise in a
	// suspended state. I.e. it does not start gossipping.
	MaintenanceMode bool `mapstructure:"maintenance-mode"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// JoinTicket is the encoded admission ticket to present when joining.
	// Leave empty to self-issue, which only works for returning members.
	JoinTicket string `mapstructure:"join-ticket"`

	// PolicyURL is the address of the operator's fee-policy service. Leave
	// empty to approve all committed actions with a zero fee.
	PolicyURL string `mapstructure:"policy-url"`

	// PolicyTimeout is the timeout of fee-policy calls.
	PolicyTimeout time.Duration `mapstructure:"policy-timeout"`

	// QuorumFloor is the minimum number of vouches for a promotion.
	QuorumFloor int `mapstructure:"quorum-floor"`

	// QuorumRatio is the fraction of active members whose vouches are
	// required for a promotion.
	QuorumRatio float64 `mapstructure:"quorum-ratio"`

	// Key is the private key of the node.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		BindAddr:         DefaultBindAddr,
		ServiceAddr:      DefaultServiceAddr,
		HeartbeatTimeout: DefaultHeartbeatTimeout,
		SyncInterval:     DefaultSyncInterval,
		IntentHold:       DefaultIntentHold,
		TCPTimeout:       DefaultTCPTimeout,
		MaxPool:          DefaultMaxPool,
		Store:            DefaultStore,
		MaintenanceMode:  DefaultMaintenanceMode,
		DatabaseDir:      DefaultDatabaseDir(),
		QuorumFloor:      DefaultQuorumFloor,
		QuorumRatio:      DefaultQuorumRatio,
		PolicyTimeout:    DefaultPolicyTimeout,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	config.logger.Level = level
	return config
}

// SetDataDir sets the top-level hive directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely
// set it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// NodeConfig translates the top-level configuration into the node package's
// runtime parameters.
func (c *Config) NodeConfig() *node.Config {
	conf := node.DefaultConfig()
	conf.HeartbeatTimeout = c.HeartbeatTimeout
	conf.SyncInterval = c.SyncInterval
	conf.IntentHold = c.IntentHold
	conf.QuorumFloor = c.QuorumFloor
	conf.QuorumRatio = c.QuorumRatio
	conf.JoinTicket = c.JoinTicket
	conf.Logger = c.Logger()
	return conf
}

// Logger returns a formatted logrus Entry, with prefix set to "hive".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.AddHook(lfshook.NewHook(
				lfshook.PathMap{
					logrus.DebugLevel: c.LogFile,
					logrus.InfoLevel:  c.LogFile,
					logrus.WarnLevel:  c.LogFile,
					logrus.ErrorLevel: c.LogFile,
					logrus.FatalLevel: c.LogFile,
					logrus.PanicLevel: c.LogFile,
				},
				new(logrus.JSONFormatter),
			))
		}
	}
	return c.logger.WithField("prefix", "hive")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level hive config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Hive")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Hive")
		} else {
			return filepath.Join(home, ".hive")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
