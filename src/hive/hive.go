// Package hive assembles a complete hive node from configuration: keys,
// membership bootstrap, storage, transport, the protocol engine and the HTTP
// service.
package hive

import (
	"crypto/ecdsa"
	"fmt"
	"path/filepath"

	"github.com/hivemesh/hive/src/bridge"
	"github.com/hivemesh/hive/src/config"
	"github.com/hivemesh/hive/src/crypto/keys"
	"github.com/hivemesh/hive/src/members"
	"github.com/hivemesh/hive/src/net"
	"github.com/hivemesh/hive/src/node"
	"github.com/hivemesh/hive/src/service"
	"github.com/hivemesh/hive/src/store"
	"github.com/sirupsen/logrus"
)

// BreakerFailureThreshold and BreakerSuccessThreshold parametrise the
// fee-policy circuit breaker: consecutive failures to open, consecutive
// half-open successes to close again.
const (
	BreakerFailureThreshold = 5
	BreakerSuccessThreshold = 3
)

// Hive is a struct containing the key parts of a hive node.
type Hive struct {
	Config    *config.Config
	Registry  *members.Registry
	Store     store.Store
	Transport net.Transport
	Node      *node.Node
	Service   *service.Service
}

// NewHive is a factory method to instantiate a Hive from a config object.
func NewHive(conf *config.Config) *Hive {
	engine := &Hive{
		Config: conf,
	}

	return engine
}

func (h *Hive) initKey() error {
	if h.Config.Key == nil {
		keyfile := keys.NewSimpleKeyfile(h.Config.Keyfile())

		privKey, err := keyfile.ReadKey()
		if err != nil {
			return fmt.Errorf("error reading keyfile %s: %v", h.Config.Keyfile(), err)
		}

		h.Config.Key = privKey
	}
	return nil
}

func (h *Hive) initRegistry() error {
	h.Registry = members.NewRegistry()

	memberFile := members.NewJSONMemberFile(h.Config.DataDir)

	records, err := memberFile.Records()
	if err != nil {
		return fmt.Errorf("error reading members.json: %v", err)
	}

	for _, rec := range records {
		if err := h.Registry.Add(rec); err != nil {
			return err
		}
	}

	h.Config.Logger().WithField("members", h.Registry.Len()).Debug("Loaded members.json")

	return nil
}

func (h *Hive) initStore() error {
	if !h.Config.Store {
		h.Store = store.NewInmemStore()

		h.Config.Logger().Debug("created new in-mem store")
	} else {
		var err error

		h.Config.Logger().WithField("path", h.Config.DatabaseDir).Debug("Attempting to load or create database")

		h.Store, err = store.NewBadgerStore(h.Config.DatabaseDir)
		if err != nil {
			return err
		}

		h.Config.Logger().Debug("created badger store")
	}

	return nil
}

func (h *Hive) initTransport() error {
	transport, err := net.NewTCPTransport(
		h.Config.BindAddr,
		h.Config.AdvertiseAddr,
		h.Config.Key,
		h.Config.MaxPool,
		h.Config.TCPTimeout,
		h.Config.Logger(),
	)
	if err != nil {
		return err
	}

	h.Transport = transport

	return nil
}

func (h *Hive) feePolicy() bridge.FeePolicy {
	if h.Config.PolicyURL == "" {
		return &bridge.StaticFeePolicy{}
	}

	return bridge.NewHTTPFeePolicy(
		h.Config.PolicyURL,
		h.Config.PolicyTimeout,
		bridge.NewBreaker(BreakerFailureThreshold, BreakerSuccessThreshold, h.Config.PolicyTimeout*2),
		h.Config.Logger(),
	)
}

func (h *Hive) initNode() error {
	identity := node.NewIdentity(h.Config.Key, h.Config.Moniker)

	h.Config.Logger().WithFields(logrus.Fields{
		"id":      identity.ID(),
		"moniker": h.Config.Moniker,
	}).Debug("NODE")

	n, err := node.NewNode(
		h.Config.NodeConfig(),
		identity,
		h.Registry,
		h.Store,
		h.Transport,
		h.feePolicy(),
	)
	if err != nil {
		return err
	}

	if err := n.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	if h.Config.MaintenanceMode {
		n.Suspend()
	}

	h.Node = n

	return nil
}

func (h *Hive) initService() error {
	if !h.Config.NoService {
		h.Service = service.NewService(h.Config.ServiceAddr, h.Node, h.Config.Logger())
	}
	return nil
}

// Init initialises the node based on its configuration.
func (h *Hive) Init() error {
	if err := h.initKey(); err != nil {
		return err
	}

	if err := h.initRegistry(); err != nil {
		return err
	}

	if err := h.initStore(); err != nil {
		return err
	}

	if err := h.initTransport(); err != nil {
		return err
	}

	if err := h.initNode(); err != nil {
		return err
	}

	if err := h.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the node and the HTTP service.
func (h *Hive) Run() {
	if h.Service != nil {
		go h.Service.Serve()
	}

	go h.Transport.Listen()

	h.Node.Run(true)
}

// Keygen generates a new key pair and saves it under datadir. It refuses to
// overwrite an existing key.
func Keygen(datadir string) (*ecdsa.PrivateKey, error) {
	keyfile := keys.NewSimpleKeyfile(filepath.Join(datadir, config.DefaultKeyfile))

	if _, err := keyfile.ReadKey(); err == nil {
		return nil, fmt.Errorf("another key already lives under %s", datadir)
	}

	privKey, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	if err := keyfile.WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}
