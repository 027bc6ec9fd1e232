package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/fractalnet/fractal/src/common"
	webrtc "github.com/pion/webrtc/v2"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultCertFile is the default name of the file containing the TLS
	// certificate for connecting to the signaling server.
	DefaultCertFile = "cert.pem"
)

// Default configuration values.
const (
	DefaultLogLevel         = "debug"
	DefaultServiceAddr      = "127.0.0.1:8000"
	DefaultTopologyInterval = 10 * time.Second
	DefaultDialTimeout      = 10 * time.Second
	DefaultSignalAddr       = "127.0.0.1:2443"
	DefaultSignalRealm      = "fractal"
	DefaultSignalTimeout    = 5 * time.Second
	DefaultSignalBackoff    = 5 * time.Second
	DefaultSignalSkipVerify = false
	DefaultICEAddress       = "stun:stun.l.google.com:19302"
	DefaultICEUsername      = ""
	DefaultICEPassword      = ""
	DefaultMinPeers         = 3
	DefaultMaxPeers         = 3
)

// Config contains all the configuration properties of a Fractal node.
type Config struct {
	// DataDir is the top-level directory containing Fractal configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Store activates persistent storage. Without it, posts and node
	// metadata live in memory and are lost on restart.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// TopologyInterval is the period of the topology-maintenance timer,
	// which tops up and prunes the connection set.
	TopologyInterval time.Duration `mapstructure:"topology-interval"`

	// DialTimeout is the timeout for one session negotiation.
	DialTimeout time.Duration `mapstructure:"dial-timeout"`

	// MinPeers is the connection floor below which topology maintenance
	// attempts to discover an additional peer.
	MinPeers int `mapstructure:"min-peers"`

	// MaxPeers bounds the mesh degree. Topology maintenance retains the
	// best-scored MaxPeers sessions and closes the rest.
	MaxPeers int `mapstructure:"max-peers"`

	// SignalAddr is the IP:PORT of the WebRTC signaling server. The
	// connection is over secured web-sockets, wss. It is possible to
	// include a self-signed certificate in a file called cert.pem in the
	// datadir; otherwise the server's certificate signing authority better
	// be trusted.
	SignalAddr string `mapstructure:"signal-addr"`

	// SignalRealm is an administrative domain within the signaling server.
	// Signaling messages are only routed within a Realm.
	SignalRealm string `mapstructure:"signal-realm"`

	// SignalTimeout is the timeout for one offer/answer exchange through
	// the signaling server.
	SignalTimeout time.Duration `mapstructure:"signal-timeout"`

	// SignalBackoff is the fixed delay between signaling reconnection
	// attempts. Reconnection retries indefinitely; the rendezvous service
	// is a liveness dependency.
	SignalBackoff time.Duration `mapstructure:"signal-backoff"`

	// SignalSkipVerify controls whether the signal client verifies the
	// server's certificate chain and host name. This should be used only
	// for testing.
	SignalSkipVerify bool `mapstructure:"signal-skip-verify"`

	// ICEAddress is the URI of a server providing services for ICE, such
	// as STUN and TURN.
	ICEAddress string `mapstructure:"ice-addr"`

	// ICEUsername is the username that will be used to authenticate with
	// the ICE server defined in ICEAddress.
	ICEUsername string `mapstructure:"ice-username"`

	// ICEPassword is the password that will be used to authenticate with
	// the ICE server defined in ICEAddress.
	ICEPassword string `mapstructure:"ice-password"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		ServiceAddr:      DefaultServiceAddr,
		DatabaseDir:      DefaultDatabaseDir(),
		TopologyInterval: DefaultTopologyInterval,
		DialTimeout:      DefaultDialTimeout,
		MinPeers:         DefaultMinPeers,
		MaxPeers:         DefaultMaxPeers,
		SignalAddr:       DefaultSignalAddr,
		SignalRealm:      DefaultSignalRealm,
		SignalTimeout:    DefaultSignalTimeout,
		SignalBackoff:    DefaultSignalBackoff,
		SignalSkipVerify: DefaultSignalSkipVerify,
		ICEAddress:       DefaultICEAddress,
		ICEUsername:      DefaultICEUsername,
		ICEPassword:      DefaultICEPassword,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir sets the top-level Fractal directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitly
// set it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// CertFile returns the full path of the file containing the signal-server TLS
// certificate.
func (c *Config) CertFile() string {
	return filepath.Join(c.DataDir, DefaultCertFile)
}

// ICEServers returns a list of ICE servers used to connect to peers. The list
// contains a single item which is based on the configuration passed through
// the config object.
func (c *Config) ICEServers() []webrtc.ICEServer {
	server := webrtc.ICEServer{
		URLs: []string{c.ICEAddress},
	}

	if c.ICEUsername != "" {
		server.Username = c.ICEUsername
		server.Credential = c.ICEPassword
		server.CredentialType = webrtc.ICECredentialTypePassword
	}

	return []webrtc.ICEServer{server}
}

// SetLogger overrides the logger instance, so callers can install hooks
// before any component grabs an Entry.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// Logger returns a formatted logrus Entry, with prefix set to "fractal".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "fractal")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir returns the default directory name for top-level Fractal
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Fractal")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Fractal")
		} else {
			return filepath.Join(home, ".fractal")
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
