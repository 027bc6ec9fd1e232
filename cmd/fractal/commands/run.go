package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fractalnet/fractal/src/config"
	"github.com/fractalnet/fractal/src/fractal"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var secret string

//NewRunCmd returns the command that starts a Fractal node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runFractal,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runFractal(cmd *cobra.Command, args []string) error {
	if secret == "" {
		fmt.Print("Enter your secret phrase (leave empty for an unauthenticated node): ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			secret = strings.TrimSpace(scanner.Text())
		}
	}

	engine := fractal.NewFractal(_config, secret)

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

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")
	cmd.Flags().StringVar(&secret, "secret", "", "Secret phrase the identity is derived from")

	// Signal
	cmd.Flags().String("signal-addr", _config.SignalAddr, "IP:Port of the signaling server")
	cmd.Flags().String("signal-realm", _config.SignalRealm, "Administrative routing domain within the signaling server")
	cmd.Flags().Duration("signal-timeout", _config.SignalTimeout, "Timeout for one offer/answer exchange")
	cmd.Flags().Duration("signal-backoff", _config.SignalBackoff, "Delay between signaling reconnection attempts")
	cmd.Flags().Bool("signal-skip-verify", _config.SignalSkipVerify, "(Insecure) skip verification of the signal server's certificate")

	// ICE
	cmd.Flags().String("ice-addr", _config.ICEAddress, "URI of an ICE server (STUN/TURN)")
	cmd.Flags().String("ice-username", _config.ICEUsername, "Username for the ICE server")
	cmd.Flags().String("ice-password", _config.ICEPassword, "Password for the ICE server")

	// Topology
	cmd.Flags().Duration("topology-interval", _config.TopologyInterval, "Period of the topology-maintenance timer")
	cmd.Flags().DurationP("dial-timeout", "t", _config.DialTimeout, "Timeout for one session negotiation")
	cmd.Flags().Int("min-peers", _config.MinPeers, "Connection floor")
	cmd.Flags().Int("max-peers", _config.MaxPeers, "Mesh degree ceiling")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	_config.SetLogger(newLogger())

	logFields := logrus.Fields{
		"DataDir":          _config.DataDir,
		"LogLevel":         _config.LogLevel,
		"Moniker":          _config.Moniker,
		"SignalAddr":       _config.SignalAddr,
		"SignalRealm":      _config.SignalRealm,
		"SignalSkipVerify": _config.SignalSkipVerify,
		"ICEAddress":       _config.ICEAddress,
		"TopologyInterval": _config.TopologyInterval,
		"DialTimeout":      _config.DialTimeout,
		"MinPeers":         _config.MinPeers,
		"MaxPeers":         _config.MaxPeers,
		"ServiceAddr":      _config.ServiceAddr,
		"NoService":        _config.NoService,
		"Store":            _config.Store,
	}

	if _config.Store {
		logFields["DatabaseDir"] = _config.DatabaseDir
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/fractal.toml (.json, .yaml also work)
	viper.SetConfigName("fractal")      // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

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

// newLogger returns a logger that tees info and debug output into files under
// the datadir, so a long-running node leaves an inspectable trace.
func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Level = config.LogLevel(_config.LogLevel)

	pathMap := lfshook.PathMap{}

	infoPath := filepath.Join(_config.DataDir, "fractal_info.log")
	if _, err := os.OpenFile(infoPath, os.O_CREATE|os.O_WRONLY, 0666); err != nil {
		logger.Info("Failed to open fractal_info.log file, using default stderr")
	} else {
		pathMap[logrus.InfoLevel] = infoPath
	}

	debugPath := filepath.Join(_config.DataDir, "fractal_debug.log")
	if _, err := os.OpenFile(debugPath, os.O_CREATE|os.O_WRONLY, 0666); err != nil {
		logger.Info("Failed to open fractal_debug.log file, using default stderr")
	} else {
		pathMap[logrus.DebugLevel] = debugPath
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))

	return logger
}
