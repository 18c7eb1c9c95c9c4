package node

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hivemesh/hive/src/bridge"
	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/handshake"
	"github.com/hivemesh/hive/src/hivemap"
	"github.com/hivemesh/hive/src/intent"
	"github.com/hivemesh/hive/src/members"
	"github.com/hivemesh/hive/src/net"
	"github.com/hivemesh/hive/src/relay"
	"github.com/hivemesh/hive/src/store"
	"github.com/hivemesh/hive/src/wire"
	"github.com/sirupsen/logrus"
)

const (
	// ActionBan is the intent action for banning a peer.
	ActionBan = "ban"
	// ActionPromotePrefix prefixes promotion intent actions; the suffix is
	// the target tier name.
	ActionPromotePrefix = "promote:"
)

// Node defines a hive node
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	identity *Identity

	registry *members.Registry
	hiveMap  *hivemap.Map
	engine   *handshake.Engine
	intents  *intent.Manager
	relay    *relay.Cache

	store store.Store

	feePolicy bridge.FeePolicy

	trans net.Transport
	netCh <-chan net.RPC

	peerSelector PeerSelector

	sigintCh   chan os.Signal
	shutdownCh chan struct{}

	controlTimer *ControlTimer

	// selfLock guards the node's own advertised facts.
	selfLock     sync.Mutex
	version      uint64
	capacityMsat uint64
	feePPM       uint32
	channels     []string
	lastPush     time.Time

	start        time.Time
	syncRequests int32
	syncErrors   int32
}

// NewNode is a factory method that returns a Node instance
func NewNode(
	conf *Config,
	identity *Identity,
	registry *members.Registry,
	st store.Store,
	trans net.Transport,
	feePolicy bridge.FeePolicy,
) (*Node, error) {
	logger := conf.Logger.WithField("this_id", identity.ID())

	engine, err := handshake.NewEngine(
		registry,
		conf.PendingLimit,
		conf.UsedTicketLimit,
		conf.ChallengeTTL,
		conf.SessionTTL,
		logger,
	)
	if err != nil {
		return nil, err
	}

	relayCache, err := relay.NewCache(conf.RelayLimit, conf.RelayTTL)
	if err != nil {
		return nil, err
	}

	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	node := &Node{
		conf:         conf,
		logger:       logger,
		identity:     identity,
		registry:     registry,
		hiveMap:      hivemap.NewMap(conf.RateLimitBurst, conf.RateLimitWindow, logger),
		engine:       engine,
		relay:        relayCache,
		store:        st,
		feePolicy:    feePolicy,
		trans:        trans,
		netCh:        trans.Consumer(),
		sigintCh:     sigintCh,
		shutdownCh:   make(chan struct{}),
		controlTimer: NewRandomControlTimer(),
		start:        time.Now(),
	}

	node.intents = intent.NewManager(
		conf.IntentHold,
		conf.IntentRetention,
		node.commitGate,
		logger,
	)

	node.peerSelector = NewRandomPeerSelector(registry, identity.PublicKeyHex())

	return node, nil
}

// Init initialises the node: recover persisted state and decide the starting
// protocol state.
func (n *Node) Init() error {
	records, err := n.store.Records()
	if err != nil {
		return err
	}
	if applied := n.registry.Merge(records); applied > 0 {
		n.logger.WithField("records", applied).Debug("Recovered membership records")
	}

	entries, err := n.store.Entries()
	if err != nil {
		return err
	}
	if applied := n.hiveMap.Seed(entries); applied > 0 {
		n.logger.WithField("entries", applied).Debug("Recovered hive-map entries")
	}

	// Sessions do not survive restarts, so even a returning member must
	// handshake before its frames are accepted anywhere. Only a node with
	// no reachable peers skips straight to Coordinating: it is
	// bootstrapping the hive.
	if n.registry.IsMember(n.identity.PublicKeyHex()) && len(n.reachablePeers()) == 0 {
		n.logger.Debug("No reachable peers => Coordinating")
		n.setState(Coordinating)
	} else {
		n.logger.Debug("Admission handshake required => Joining")
		n.setState(Joining)
	}

	return nil
}

// RunAsync calls Run as a separate thread
func (n *Node) RunAsync(gossip bool) {
	n.logger.WithField("gossip", gossip).Debug("runasync")

	go n.Run(gossip)
}

// Run invokes the main loop of the node
func (n *Node) Run(gossip bool) {
	//The ControlTimer paces the gossip loop with a jittered heartbeat.
	go n.controlTimer.Run(n.conf.HeartbeatTimeout)

	//Execute some background work regardless of the state of the node.
	go n.doBackgroundWork()

	//Execute Node State Machine
	for {
		state := n.getState()

		n.logger.WithField("state", state.String()).Debug("Run loop")

		switch state {
		case Joining:
			n.join()
		case Coordinating:
			n.coordinate(gossip)
		case Suspended:
			n.suspended()
		case Shutdown:
			return
		}
	}
}

func (n *Node) resetTimer() {
	if !n.controlTimer.isSet() {
		n.controlTimer.resetCh <- n.conf.HeartbeatTimeout
	}
}

func (n *Node) doBackgroundWork() {
	syncTicker := time.NewTicker(n.conf.SyncInterval)
	defer syncTicker.Stop()

	sweepTicker := time.NewTicker(n.conf.SweepInterval)
	defer sweepTicker.Stop()

	intentTicker := time.NewTicker(n.conf.HeartbeatTimeout)
	defer intentTicker.Stop()

	for {
		select {
		case rpc := <-n.netCh:
			n.goFunc(func() {
				n.logger.Debug("Processing RPC")
				n.processRPC(rpc)
			})
		case <-intentTicker.C:
			committed, aborted := n.intents.Tick(time.Now())
			for _, notice := range committed {
				n.applyCommitted(notice)
			}
			for _, notice := range aborted {
				n.broadcastAbort(notice)
			}
		case <-syncTicker.C:
			if n.getState() == Coordinating {
				if peer := n.peerSelector.Next(); peer != nil {
					n.goFunc(func() { n.fullSync(peer) })
				}
			}
		case <-sweepTicker.C:
			now := time.Now()
			n.engine.Sweep(now)
			n.hiveMap.SweepBuckets(now)
			n.relay.Sweep(now)
		case <-n.shutdownCh:
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT - LEAVE")
			n.Leave()
			os.Exit(0)
		}
	}
}

// coordinate processes the heartbeat and periodically pushes fresh state to a
// random partner.
func (n *Node) coordinate(gossip bool) {
	n.logger.Debug("COORDINATING")

	for {
		select {
		case <-n.controlTimer.tickCh:
			if n.getState() != Coordinating {
				return
			}
			if gossip {
				peer := n.peerSelector.Next()
				if peer != nil {
					n.goFunc(func() { n.gossip(peer) })
				}
			}
			n.resetTimer()
		case <-n.shutdownCh:
			return
		}
	}
}

// join performs the admission handshake against every reachable peer.
// Sessions are pairwise: a peer only accepts frames from identities that
// attested to it directly, so the handshake runs against each of them, not
// just the first one that answers. One acceptance is enough to start
// coordinating.
func (n *Node) join() {
	n.logger.Debug("JOINING")

	ticket, err := n.joinTicket()
	if err != nil {
		n.logger.WithField("error", err).Error("Failed to prepare join ticket")
		n.setState(Shutdown)
		return
	}

	accepted := 0
	for _, peer := range n.reachablePeers() {
		if err := n.handshakeWith(peer.NetAddr, ticket); err != nil {
			n.logger.WithFields(logrus.Fields{
				"peer":  peer.NetAddr,
				"error": err,
			}).Debug("Handshake failed")
			continue
		}

		n.logger.WithField("peer", peer.NetAddr).Debug("Handshake accepted")
		accepted++
	}

	if accepted > 0 {
		n.setState(Coordinating)
		return
	}

	// No peer accepted us; back off and retry.
	select {
	case <-time.After(n.conf.HeartbeatTimeout):
	case <-n.shutdownCh:
		n.setState(Shutdown)
	}
}

// joinTicket returns the operator-supplied admission ticket, or a self-issued
// one for returning members.
func (n *Node) joinTicket() (*members.Ticket, error) {
	if n.conf.JoinTicket != "" {
		return members.DecodeTicket(n.conf.JoinTicket)
	}

	now := time.Now()
	return members.NewTicket(
		n.identity.Key,
		n.identity.PublicKeyHex(),
		now.Unix(),
		now.Add(n.conf.TicketValidity).Unix(),
	)
}

// handshakeWith runs the Hello/Attest exchange against one peer.
func (n *Node) handshakeWith(target string, ticket *members.Ticket) error {
	encoded, err := ticket.Encode()
	if err != nil {
		return err
	}

	var challenge wire.ChallengePayload
	err = n.trans.Hello(target, &wire.HelloPayload{
		Moniker: n.identity.Moniker,
		NetAddr: n.trans.AdvertiseAddr(),
		Ticket:  encoded,
	}, &challenge)
	if err != nil {
		return err
	}

	att := &handshake.Attestation{
		PeerPub: n.identity.PublicKeyHex(),
		Nonce:   challenge.Nonce,
	}
	if err := att.Sign(n.identity.Key); err != nil {
		return err
	}

	var result wire.AttestResultPayload
	err = n.trans.Attest(target, &wire.AttestPayload{
		Nonce: att.Nonce,
		Sig:   att.Sig,
	}, &result)
	if err != nil {
		return err
	}

	if !result.Accepted {
		return fmt.Errorf("attestation rejected: %s", result.Reason)
	}
	return nil
}

// suspended parks the run loop until shutdown.
func (n *Node) suspended() {
	n.logger.Debug("SUSPENDED")

	for n.getState() == Suspended {
		select {
		case <-n.controlTimer.tickCh:
			n.resetTimer()
		case <-n.shutdownCh:
			return
		}
	}
}

// gossip publishes the node's own entry and pushes recently-applied entries
// to the chosen partner.
func (n *Node) gossip(peer *members.Record) {
	n.publishSelf()

	n.selfLock.Lock()
	since := n.lastPush
	n.lastPush = time.Now()
	n.selfLock.Unlock()

	entries := n.hiveMap.Fresh(since)
	if len(entries) == 0 {
		return
	}
	if len(entries) > wire.MaxSyncEntries {
		entries = entries[:wire.MaxSyncEntries]
	}

	atomic.AddInt32(&n.syncRequests, 1)

	var ack wire.GossipPushAckPayload
	err := n.trans.GossipPush(peer.NetAddr, &wire.GossipPushPayload{Entries: entries}, &ack)
	if err != nil {
		atomic.AddInt32(&n.syncErrors, 1)
		n.logger.WithFields(logrus.Fields{
			"peer":  peer.NetAddr,
			"error": err,
		}).Debug("GossipPush failed")
		return
	}

	n.peerSelector.UpdateLast(peer.PubKeyHex)
}

// publishSelf refreshes and re-signs the node's own hive-map entry. It is a
// no-op until the node holds member standing: entries from non-members would
// be rejected everywhere anyway.
func (n *Node) publishSelf() {
	selfPub := n.identity.PublicKeyHex()
	if !n.registry.IsMember(selfPub) {
		return
	}

	n.selfLock.Lock()
	n.version++
	e := &hivemap.Entry{
		PeerPub:      selfPub,
		Version:      n.version,
		CapacityMsat: n.capacityMsat,
		FeePPM:       n.feePPM,
		UptimeSecs:   uint64(time.Since(n.start).Seconds()),
		Channels:     append([]string{}, n.channels...),
	}
	n.selfLock.Unlock()

	if err := e.Sign(n.identity.Key); err != nil {
		n.logger.WithField("error", err).Error("Failed to sign own entry")
		return
	}

	if err := n.hiveMap.Apply(e, selfPub, n.registry.IsMember); err != nil {
		n.logger.WithField("error", err).Debug("Own entry not applied")
		return
	}

	if err := n.store.SaveEntry(e); err != nil {
		n.logger.WithField("error", err).Error("Failed to persist own entry")
	}
}

// fullSync runs digest-based anti-entropy against one partner.
func (n *Node) fullSync(peer *members.Record) {
	atomic.AddInt32(&n.syncRequests, 1)

	var resp wire.FullSyncResponsePayload
	err := n.trans.FullSync(peer.NetAddr, &wire.FullSyncRequestPayload{
		Digest: n.hiveMap.Digest(),
	}, &resp)
	if err != nil {
		atomic.AddInt32(&n.syncErrors, 1)
		n.logger.WithFields(logrus.Fields{
			"peer":  peer.NetAddr,
			"error": err,
		}).Debug("FullSync failed")
		return
	}

	applied := n.hiveMap.ApplyBatch(resp.Entries, peer.PubKeyHex, n.registry.IsMember)
	for _, e := range resp.Entries {
		if err := n.store.SaveEntry(e); err != nil {
			n.logger.WithField("error", err).Error("Failed to persist entry")
		}
	}

	// Records are unsigned claims, so the responder must hold member
	// standing and the merge only takes benign fields. Tier and ban
	// transitions arrive through committed intents, never through sync.
	merged := 0
	if n.registry.IsMember(peer.PubKeyHex) {
		merged = n.registry.MergeSync(resp.Records)
		for _, rec := range resp.Records {
			n.persistRecord(rec.PubKeyHex)
		}
	}

	n.logger.WithFields(logrus.Fields{
		"entries": applied,
		"records": merged,
	}).Debug("FullSync applied")
}

// SetCapacity updates the routing facts the node advertises about itself.
// The new values go out with the next gossip heartbeat.
func (n *Node) SetCapacity(capacityMsat uint64, feePPM uint32, channels []string) {
	n.selfLock.Lock()
	defer n.selfLock.Unlock()

	n.capacityMsat = capacityMsat
	n.feePPM = feePPM
	n.channels = append([]string{}, channels...)
}

// ProposeIntent announces a new intent for an externally-visible action and
// broadcasts it to the fleet.
func (n *Node) ProposeIntent(action, target string) (*intent.Notice, error) {
	notice := &intent.Notice{
		IntentID:     newIntentID(),
		InitiatorPub: n.identity.PublicKeyHex(),
		Action:       action,
		Target:       target,
		ProposedAt:   time.Now().Unix(),
	}
	if err := notice.Sign(n.identity.Key); err != nil {
		return nil, err
	}

	if err := n.intents.Propose(notice, time.Now()); err != nil {
		return nil, err
	}

	n.broadcastIntent(notice)

	return notice, nil
}

// ProposePromotion starts the intent-gated promotion of a candidate.
func (n *Node) ProposePromotion(candidatePub string, to members.Tier) (*intent.Notice, error) {
	return n.ProposeIntent(ActionPromotePrefix+to.String(), candidatePub)
}

// ProposeBan starts the intent-gated ban of a peer.
func (n *Node) ProposeBan(targetPub string) (*intent.Notice, error) {
	return n.ProposeIntent(ActionBan, targetPub)
}

// Vouch signs and broadcasts a vouch supporting a candidate's promotion
// round.
func (n *Node) Vouch(targetPub, requestID string) (*members.Vouch, error) {
	self, ok := n.registry.Get(n.identity.PublicKeyHex())
	if !ok || !self.CanVouch() {
		return nil, fmt.Errorf("node does not hold vouching standing")
	}

	v := members.NewVouch(targetPub, requestID, n.identity.PublicKeyHex(), time.Now().Unix())
	if err := v.Sign(n.identity.Key); err != nil {
		return nil, err
	}

	n.registry.RecordVouch(targetPub, requestID, v.VoucherPub)
	n.broadcastVouch(v)

	return v, nil
}

// broadcastIntent sends the notice to every reachable member.
func (n *Node) broadcastIntent(notice *intent.Notice) {
	for _, peer := range n.reachablePeers() {
		target := peer.NetAddr
		n.goFunc(func() {
			var ack wire.IntentAckPayload
			err := n.trans.IntentNotice(target, &wire.IntentNoticePayload{Notice: notice}, &ack)
			if err != nil {
				n.logger.WithFields(logrus.Fields{
					"peer":  target,
					"error": err,
				}).Debug("IntentNotice failed")
			}
		})
	}
}

// broadcastAbort retracts a local intent that lost its conflict or failed
// the commit gate, so observers that never saw the winning notice do not sit
// on the dead intent until retention.
func (n *Node) broadcastAbort(notice *intent.Notice) {
	for _, peer := range n.reachablePeers() {
		target := peer.NetAddr
		n.goFunc(func() {
			var ack wire.IntentAbortAckPayload
			err := n.trans.IntentAbort(target, &wire.IntentAbortPayload{IntentID: notice.IntentID}, &ack)
			if err != nil {
				n.logger.WithFields(logrus.Fields{
					"peer":  target,
					"error": err,
				}).Debug("IntentAbort failed")
			}
		})
	}
}

// broadcastVouch sends the vouch to every reachable member.
func (n *Node) broadcastVouch(v *members.Vouch) {
	for _, peer := range n.reachablePeers() {
		target := peer.NetAddr
		n.goFunc(func() {
			var ack wire.VouchAckPayload
			err := n.trans.VouchNotice(target, &wire.VouchNoticePayload{Vouch: v}, &ack)
			if err != nil {
				n.logger.WithFields(logrus.Fields{
					"peer":  target,
					"error": err,
				}).Debug("VouchNotice failed")
			}
		})
	}
}

func (n *Node) reachablePeers() []*members.Record {
	res := []*members.Record{}
	for _, rec := range n.registry.Members() {
		if rec.Banned || rec.NetAddr == "" || rec.PubKeyHex == n.identity.PublicKeyHex() {
			continue
		}
		res = append(res, rec)
	}
	return res
}

// commitGate is the pure policy check run atomically with the Committed
// transition. Governance actions re-check their preconditions here so that a
// ban or competing promotion that landed during the hold period wins.
func (n *Node) commitGate(notice *intent.Notice) bool {
	initiator, ok := n.registry.Get(notice.InitiatorPub)
	if !ok || initiator.Banned {
		return false
	}

	switch {
	case strings.HasPrefix(notice.Action, ActionPromotePrefix):
		tier, ok := members.ParseTier(strings.TrimPrefix(notice.Action, ActionPromotePrefix))
		if !ok {
			return false
		}
		candidate, ok := n.registry.Get(notice.Target)
		if !ok || candidate.Banned || candidate.Tier >= tier {
			return false
		}
		quorum := members.Quorum(
			n.registry.ActiveCount(int64(n.conf.ActiveWindow/time.Second), time.Now().Unix()),
			n.conf.QuorumFloor,
			n.conf.QuorumRatio,
		)
		return candidate.VouchCount >= quorum
	case notice.Action == ActionBan:
		if !initiator.CanVouch() {
			return false
		}
		target, ok := n.registry.Get(notice.Target)
		return ok && !target.Banned
	default:
		return initiator.CanVouch()
	}
}

// applyCommitted executes the side effects of a committed intent: durable
// record first, then the governance or routing action.
func (n *Node) applyCommitted(notice *intent.Notice) {
	if err := n.store.SaveIntent(notice); err != nil {
		n.logger.WithField("error", err).Error("Failed to persist committed intent")
	}

	switch {
	case strings.HasPrefix(notice.Action, ActionPromotePrefix):
		tier, ok := members.ParseTier(strings.TrimPrefix(notice.Action, ActionPromotePrefix))
		if !ok {
			return
		}
		if err := n.registry.Promote(notice.Target, tier); err != nil {
			n.logger.WithField("error", err).Debug("Promotion not applied")
			return
		}
		n.persistRecord(notice.Target)
		n.logger.WithFields(logrus.Fields{
			"peer": notice.Target,
			"tier": tier.String(),
		}).Info("Peer promoted")

		// A fresh member gets its fee policy from the bridge.
		decision, err := n.feePolicy.Evaluate(context.Background(), notice.Action, notice.Target)
		if err != nil {
			n.logger.WithField("error", err).Warn("Fee policy unavailable for promoted peer")
			return
		}
		n.logger.WithFields(logrus.Fields{
			"peer":    notice.Target,
			"approve": decision.Approve,
			"fee_ppm": decision.FeePPM,
		}).Info("Fee policy applied for promoted peer")
	case notice.Action == ActionBan:
		if err := n.registry.Ban(notice.Target); err != nil {
			n.logger.WithField("error", err).Debug("Ban not applied")
			return
		}
		n.engine.Revoke(notice.Target)
		n.persistRecord(notice.Target)
		n.logger.WithField("peer", notice.Target).Info("Peer banned")
	default:
		decision, err := n.feePolicy.Evaluate(context.Background(), notice.Action, notice.Target)
		if err != nil {
			n.logger.WithField("error", err).Warn("Fee policy unavailable for committed intent")
			return
		}
		n.logger.WithFields(logrus.Fields{
			"action":  notice.Action,
			"target":  notice.Target,
			"approve": decision.Approve,
			"fee_ppm": decision.FeePPM,
		}).Info("Committed intent evaluated")
	}
}

func (n *Node) persistRecord(pubKeyHex string) {
	if rec, ok := n.registry.Get(pubKeyHex); ok {
		if err := n.store.SaveRecord(rec); err != nil {
			n.logger.WithField("error", err).Error("Failed to persist record")
		}
	}
}

// Suspend puts the node in Suspended mode: initialised but not gossipping.
func (n *Node) Suspend() {
	n.logger.Debug("SUSPEND")
	n.setState(Suspended)
}

// Leave is called when the node voluntarily departs the hive.
func (n *Node) Leave() {
	n.logger.Debug("LEAVING")

	n.registry.Remove(n.identity.PublicKeyHex())
	n.Shutdown()
}

// Shutdown stops the node and all its background routines.
func (n *Node) Shutdown() {
	if n.getState() != Shutdown {
		n.logger.Debug("SHUTDOWN")

		//Exit any non-shutdown state immediately
		n.setState(Shutdown)

		//Stop and wait for concurrent operations
		close(n.shutdownCh)
		n.waitRoutines()

		//For some reason this needs to be called after closing the shutdownCh
		n.controlTimer.Shutdown()

		//transport, store
		n.trans.Close()
		n.store.Close()
	}
}

// GetID returns the numeric ID of the node's identity.
func (n *Node) GetID() uint32 {
	return n.identity.ID()
}

// GetPubKeyHex returns the node's identity in the standard hex encoding.
func (n *Node) GetPubKeyHex() string {
	return n.identity.PublicKeyHex()
}

// Registry returns the membership registry.
func (n *Node) Registry() *members.Registry {
	return n.registry
}

// HiveMap returns the shared-state map.
func (n *Node) HiveMap() *hivemap.Map {
	return n.hiveMap
}

// PendingIntents returns the undecided intents.
func (n *Node) PendingIntents() []*intent.Intent {
	return n.intents.Pending()
}

// Store returns the durable store.
func (n *Node) Store() store.Store {
	return n.store
}

// Sessions returns the number of live handshake sessions.
func (n *Node) Sessions() int {
	return n.engine.Sessions()
}

// BreakerState reports the fee-policy breaker state, or Closed when no
// breaker is configured.
func (n *Node) BreakerState() bridge.BreakerState {
	if hp, ok := n.feePolicy.(*bridge.HTTPFeePolicy); ok {
		return hp.Breaker().State()
	}
	return bridge.Closed
}

// GetStats returns operational figures for the stats endpoint.
func (n *Node) GetStats() map[string]string {
	uptime := time.Since(n.start)

	s := map[string]string{
		"state":           n.getState().String(),
		"moniker":         n.identity.Moniker,
		"num_members":     strconv.Itoa(n.registry.Len()),
		"members_hash":    common.EncodeToString(n.registry.Hash()),
		"num_entries":     strconv.Itoa(n.hiveMap.Len()),
		"total_capacity":  strconv.FormatUint(n.hiveMap.TotalCapacity(), 10),
		"pending_intents": strconv.Itoa(len(n.intents.Pending())),
		"sessions":        strconv.Itoa(n.engine.Sessions()),
		"sync_requests":   strconv.Itoa(int(atomic.LoadInt32(&n.syncRequests))),
		"sync_errors":     strconv.Itoa(int(atomic.LoadInt32(&n.syncErrors))),
		"breaker":         n.BreakerState().String(),
		"uptime":          uptime.String(),
	}
	return s
}

// newIntentID generates a unique intent id.
func newIntentID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("failed to read random bytes: %v", err))
	}
	return fmt.Sprintf("%x", buf)
}
