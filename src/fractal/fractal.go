package fractal

import (
	"fmt"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/fractalnet/fractal/src/config"
	"github.com/fractalnet/fractal/src/identity"
	"github.com/fractalnet/fractal/src/net"
	"github.com/fractalnet/fractal/src/net/signal/wamp"
	"github.com/fractalnet/fractal/src/node"
	"github.com/fractalnet/fractal/src/peers"
	"github.com/fractalnet/fractal/src/service"
	"github.com/fractalnet/fractal/src/store"
	"github.com/google/uuid"
)

// Fractal is a struct containing the key parts of a fractal node.
type Fractal struct {
	Config    *config.Config
	Secret    string
	Store     store.Store
	Identity  *identity.Identity
	Peers     *peers.PeerSet
	Transport net.Transport
	Node      *node.Node
	Service   *service.Service
}

// NewFractal is a factory method that returns a Fractal instance. The secret
// is the login phrase the identity is derived from; an empty secret yields an
// unauthenticated node that can relay and evaluate posts but not author them.
func NewFractal(config *config.Config, secret string) *Fractal {
	engine := &Fractal{
		Config: config,
		Secret: secret,
	}

	return engine
}

func (f *Fractal) initStore() error {
	if !f.Config.Store {
		f.Store = store.NewInmemStore()

		f.Config.Logger().Debug("created new in-mem store")

		return nil
	}

	f.Config.Logger().WithField("path", f.Config.DatabaseDir).Debug("Attempting to load or create database")

	dbStore, err := store.NewBadgerStore(f.Config.DatabaseDir)
	if err != nil {
		return err
	}

	f.Store = dbStore

	return nil
}

func (f *Fractal) initIdentity() error {
	if f.Secret == "" {
		f.Config.Logger().Warn("No secret provided; node is unauthenticated")
		return nil
	}

	id, err := identity.Load(f.Store, f.Secret)
	if err != nil {
		return err
	}

	f.Config.Logger().WithField("id", id.ID).Debug("Identity loaded")

	f.Identity = id

	return nil
}

func (f *Fractal) initPeers() error {
	peerStore := peers.NewJSONPeerSet(f.Config.DataDir)

	participants, err := peerStore.PeerSet()
	if err != nil {
		if os.IsNotExist(err) {
			f.Config.Logger().Debug("No peers.json; starting with an empty candidate pool")
			f.Peers = peers.NewPeerSet([]*peers.Peer{})
			return nil
		}
		return err
	}

	if participants == nil {
		participants = peers.NewPeerSet([]*peers.Peer{})
	}

	f.Peers = participants

	return nil
}

func (f *Fractal) initTransport() error {
	// The signal address doubles as the node's public rendezvous identity.
	// Unauthenticated nodes register under a throwaway address.
	addr := uuid.New().String()
	if f.Identity != nil {
		addr = f.Identity.PubKeyHex
	}

	signal, err := wamp.NewClient(
		f.Config.SignalAddr,
		f.Config.SignalRealm,
		addr,
		f.Config.CertFile(),
		f.Config.SignalSkipVerify,
		f.Config.SignalTimeout,
		f.Config.SignalBackoff,
		f.Config.Logger().WithField("prefix", "signal"),
	)
	if err != nil {
		return err
	}

	f.Transport = net.NewWebRTCTransport(
		signal,
		f.Config.ICEServers(),
		f.Config.DialTimeout,
		f.Config.Logger().WithField("prefix", "transport"),
	)

	return nil
}

func (f *Fractal) initNode() error {
	core, err := node.NewCore(
		f.Identity,
		f.Store,
		clock.New(),
		f.Config.Logger(),
	)
	if err != nil {
		return err
	}

	selfAddr := f.Transport.AdvertiseAddr()

	f.Node = node.NewNode(
		f.Config,
		core,
		f.Transport,
		node.NewPeerSetDiscovery(f.Peers, selfAddr),
		node.NewTrustScorer(f.Peers),
	)

	if err := f.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (f *Fractal) initService() error {
	if !f.Config.NoService {
		f.Service = service.NewService(
			f.Config.ServiceAddr,
			f.Node,
			f.Config.Logger().WithField("prefix", "service"),
		)
	}
	return nil
}

// Init initialises the fractal engine. The initialisation order matters: the
// identity is derived through the store, the transport registers under the
// identity's public key, and the node binds them all together.
func (f *Fractal) Init() error {
	if err := f.initStore(); err != nil {
		return err
	}

	if err := f.initIdentity(); err != nil {
		return err
	}

	if err := f.initPeers(); err != nil {
		return err
	}

	if err := f.initTransport(); err != nil {
		return err
	}

	if err := f.initNode(); err != nil {
		return err
	}

	if err := f.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the node and the API service. This is a blocking call.
func (f *Fractal) Run() {
	if f.Service != nil {
		go f.Service.Serve()
	}

	f.Node.Run()
}
