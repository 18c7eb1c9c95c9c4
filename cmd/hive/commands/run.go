package commands

import (
	"github.com/hivemesh/hive/src/hive"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRunCmd returns the command that starts a hive node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runHive,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runHive(cmd *cobra.Command, args []string) error {
	engine := hive.NewHive(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

// AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Duplicate log output to this file")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for hive node")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for hive node")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")

	// Node configuration
	cmd.Flags().Duration("heartbeat", _config.HeartbeatTimeout, "Time between gossips")
	cmd.Flags().Duration("sync-interval", _config.SyncInterval, "Time between full syncs")
	cmd.Flags().Duration("intent-hold", _config.IntentHold, "Hold period before intents commit")
	cmd.Flags().String("join-ticket", _config.JoinTicket, "Encoded admission ticket")
	cmd.Flags().Int("quorum-floor", _config.QuorumFloor, "Minimum vouches for a promotion")
	cmd.Flags().Float64("quorum-ratio", _config.QuorumRatio, "Fraction of active members required for a promotion")
	cmd.Flags().Bool("maintenance-mode", _config.MaintenanceMode, "Initialise in suspended state")

	// Bridge
	cmd.Flags().String("policy-url", _config.PolicyURL, "Address of the fee-policy service")
	cmd.Flags().Duration("policy-timeout", _config.PolicyTimeout, "Timeout of fee-policy calls")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"hive.DataDir":          _config.DataDir,
		"hive.BindAddr":         _config.BindAddr,
		"hive.AdvertiseAddr":    _config.AdvertiseAddr,
		"hive.ServiceAddr":      _config.ServiceAddr,
		"hive.MaxPool":          _config.MaxPool,
		"hive.Store":            _config.Store,
		"hive.LogLevel":         _config.LogLevel,
		"hive.Moniker":          _config.Moniker,
		"hive.HeartbeatTimeout": _config.HeartbeatTimeout,
		"hive.SyncInterval":     _config.SyncInterval,
		"hive.IntentHold":       _config.IntentHold,
		"hive.TCPTimeout":       _config.TCPTimeout,
		"hive.QuorumFloor":      _config.QuorumFloor,
		"hive.QuorumRatio":      _config.QuorumRatio,
		"hive.PolicyURL":        _config.PolicyURL,
	}

	if _config.Store {
		logFields["hive.DatabaseDir"] = _config.DatabaseDir
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all
	// other persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/hive.toml (.json, .yaml also work)
	viper.SetConfigName("hive")            // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir)   // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
