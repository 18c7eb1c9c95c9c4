package node

import (
	"fmt"
	"time"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/handshake"
	"github.com/hivemesh/hive/src/members"
	"github.com/hivemesh/hive/src/net"
	"github.com/hivemesh/hive/src/relay"
	"github.com/hivemesh/hive/src/wire"
	"github.com/sirupsen/logrus"
)

func (n *Node) processRPC(rpc net.RPC) {
	// Handshake frames are the only ones accepted from unauthenticated
	// senders.
	switch cmd := rpc.Command.(type) {
	case *wire.HelloPayload:
		n.processHello(rpc, cmd)
		return
	case *wire.AttestPayload:
		n.processAttest(rpc, cmd)
		return
	}

	if !n.engine.Authenticated(rpc.SenderPub, time.Now()) {
		rpc.Respond(nil, common.NewCoordErr("node", common.AuthenticationFailure, rpc.SenderPub))
		return
	}

	n.registry.Touch(rpc.SenderPub, time.Now().Unix())

	switch cmd := rpc.Command.(type) {
	case *wire.GossipPushPayload:
		n.processGossipPush(rpc, cmd)
	case *wire.FullSyncRequestPayload:
		n.processFullSyncRequest(rpc, cmd)
	case *wire.IntentNoticePayload:
		n.processIntentNotice(rpc, cmd)
	case *wire.IntentAbortPayload:
		n.processIntentAbort(rpc, cmd)
	case *wire.VouchNoticePayload:
		n.processVouchNotice(rpc, cmd)
	case *wire.PromotionRequestPayload:
		n.processPromotionRequest(rpc, cmd)
	default:
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

func (n *Node) processHello(rpc net.RPC, cmd *wire.HelloPayload) {
	n.logger.WithField("from", rpc.SenderPub).Debug("Process Hello")

	ticket, err := members.DecodeTicket(cmd.Ticket)
	if err != nil {
		rpc.Respond(nil, err)
		return
	}

	challenge, err := n.engine.Hello(rpc.SenderPub, cmd.Moniker, cmd.NetAddr, ticket, time.Now())
	if err != nil {
		rpc.Respond(nil, err)
		return
	}

	rpc.Respond(&wire.ChallengePayload{
		Nonce:    challenge.Nonce,
		IssuedAt: challenge.IssuedAt,
	}, nil)
}

func (n *Node) processAttest(rpc net.RPC, cmd *wire.AttestPayload) {
	n.logger.WithField("from", rpc.SenderPub).Debug("Process Attest")

	att := &handshake.Attestation{
		PeerPub: rpc.SenderPub,
		Nonce:   cmd.Nonce,
		Sig:     cmd.Sig,
	}

	if err := n.engine.Attest(att, time.Now()); err != nil {
		// A failed attestation gets an explicit verdict, not a dropped
		// connection: the peer needs to know it must start over.
		rpc.Respond(&wire.AttestResultPayload{
			Accepted: false,
			Reason:   err.Error(),
		}, nil)
		return
	}

	n.persistRecord(rpc.SenderPub)

	rpc.Respond(&wire.AttestResultPayload{Accepted: true}, nil)
}

func (n *Node) processGossipPush(rpc net.RPC, cmd *wire.GossipPushPayload) {
	n.logger.WithFields(logrus.Fields{
		"from":    rpc.SenderPub,
		"entries": len(cmd.Entries),
	}).Debug("Process GossipPush")

	now := time.Now()
	if !n.hiveMap.AllowSender(rpc.SenderPub, now) {
		rpc.Respond(nil, common.NewCoordErr("node", common.PolicyViolation, "rate limited"))
		return
	}

	raw, err := wire.EncodePayload(cmd)
	if err != nil {
		rpc.Respond(nil, err)
		return
	}
	fp := relay.Fingerprint(rpc.SenderPub, uint16(wire.TypeGossipPush), raw)
	if n.relay.Seen(fp, now) {
		rpc.Respond(&wire.GossipPushAckPayload{Applied: 0}, nil)
		return
	}

	applied := n.hiveMap.ApplyBatch(cmd.Entries, rpc.SenderPub, n.registry.IsMember)
	if applied > 0 {
		for _, e := range cmd.Entries {
			if err := n.store.SaveEntry(e); err != nil {
				n.logger.WithField("error", err).Error("Failed to persist entry")
			}
		}
		n.forwardPush(rpc.SenderPub, cmd)
	}

	rpc.Respond(&wire.GossipPushAckPayload{Applied: applied}, nil)
}

// forwardPush relays an applied push to up to GossipFanout other peers. The
// dedup cache keeps the relay from echoing frames back and forth.
func (n *Node) forwardPush(senderPub string, cmd *wire.GossipPushPayload) {
	fanout := n.conf.GossipFanout
	for _, peer := range n.reachablePeers() {
		if fanout == 0 {
			return
		}
		if peer.PubKeyHex == senderPub {
			continue
		}
		fanout--

		target := peer.NetAddr
		n.goFunc(func() {
			var ack wire.GossipPushAckPayload
			if err := n.trans.GossipPush(target, cmd, &ack); err != nil {
				n.logger.WithFields(logrus.Fields{
					"peer":  target,
					"error": err,
				}).Debug("Relay push failed")
			}
		})
	}
}

func (n *Node) processFullSyncRequest(rpc net.RPC, cmd *wire.FullSyncRequestPayload) {
	n.logger.WithField("from", rpc.SenderPub).Debug("Process FullSyncRequest")

	// A neophyte session is enough to gossip its own entry, not to pull the
	// fleet's map and membership table.
	if !n.registry.IsMember(rpc.SenderPub) {
		rpc.Respond(nil, common.NewCoordErr("node", common.PolicyViolation, rpc.SenderPub))
		return
	}

	records := n.registry.Members()
	if len(records) > wire.MaxSyncRecords {
		records = records[:wire.MaxSyncRecords]
	}

	rpc.Respond(&wire.FullSyncResponsePayload{
		Entries: n.hiveMap.Diff(cmd.Digest, wire.MaxSyncEntries),
		Records: records,
	}, nil)
}

func (n *Node) processIntentNotice(rpc net.RPC, cmd *wire.IntentNoticePayload) {
	n.logger.WithFields(logrus.Fields{
		"from":   rpc.SenderPub,
		"intent": cmd.Notice.IntentID,
	}).Debug("Process IntentNotice")

	// The notice signature identifies the initiator; the sender only needs
	// member standing, so notices can be relayed.
	if !n.registry.IsMember(rpc.SenderPub) {
		rpc.Respond(&wire.IntentAckPayload{IntentID: cmd.Notice.IntentID, Accepted: false}, nil)
		return
	}

	if err := n.intents.Observe(cmd.Notice, time.Now()); err != nil {
		n.logger.WithField("error", err).Debug("Intent not observed")
		rpc.Respond(&wire.IntentAckPayload{IntentID: cmd.Notice.IntentID, Accepted: false}, nil)
		return
	}

	rpc.Respond(&wire.IntentAckPayload{IntentID: cmd.Notice.IntentID, Accepted: true}, nil)
}

func (n *Node) processIntentAbort(rpc net.RPC, cmd *wire.IntentAbortPayload) {
	n.logger.WithFields(logrus.Fields{
		"from":   rpc.SenderPub,
		"intent": cmd.IntentID,
	}).Debug("Process IntentAbort")

	// The manager only honours a retraction from the intent's initiator.
	if err := n.intents.Abort(cmd.IntentID, rpc.SenderPub, time.Now()); err != nil {
		n.logger.WithField("error", err).Debug("Intent not retracted")
		rpc.Respond(&wire.IntentAbortAckPayload{IntentID: cmd.IntentID, Accepted: false}, nil)
		return
	}

	rpc.Respond(&wire.IntentAbortAckPayload{IntentID: cmd.IntentID, Accepted: true}, nil)
}

func (n *Node) processVouchNotice(rpc net.RPC, cmd *wire.VouchNoticePayload) {
	n.logger.WithFields(logrus.Fields{
		"from":   rpc.SenderPub,
		"target": cmd.Vouch.TargetPub,
	}).Debug("Process VouchNotice")

	v := cmd.Vouch

	// A vouch only counts when the authenticated sender is the voucher it
	// names: a signed vouch replayed by a third party is discarded.
	if v.VoucherPub != rpc.SenderPub {
		rpc.Respond(&wire.VouchAckPayload{RequestID: v.RequestID, Accepted: false}, nil)
		return
	}

	voucher, ok := n.registry.Get(v.VoucherPub)
	if !ok || !voucher.CanVouch() {
		rpc.Respond(&wire.VouchAckPayload{RequestID: v.RequestID, Accepted: false}, nil)
		return
	}

	if !v.Verify() {
		rpc.Respond(&wire.VouchAckPayload{RequestID: v.RequestID, Accepted: false}, nil)
		return
	}

	// One count per voucher per round: a replayed vouch cannot walk the
	// counter up to quorum.
	if !n.registry.RecordVouch(v.TargetPub, v.RequestID, v.VoucherPub) {
		rpc.Respond(&wire.VouchAckPayload{RequestID: v.RequestID, Accepted: false}, nil)
		return
	}

	rpc.Respond(&wire.VouchAckPayload{RequestID: v.RequestID, Accepted: true}, nil)
}

func (n *Node) processPromotionRequest(rpc net.RPC, cmd *wire.PromotionRequestPayload) {
	n.logger.WithFields(logrus.Fields{
		"from":      rpc.SenderPub,
		"candidate": cmd.CandidatePub,
	}).Debug("Process PromotionRequest")

	reject := func(reason string) {
		rpc.Respond(&wire.PromotionAckPayload{
			RequestID: cmd.RequestID,
			Granted:   false,
			Reason:    reason,
		}, nil)
	}

	tier, ok := members.ParseTier(cmd.ToTier)
	if !ok {
		reject("unknown tier")
		return
	}

	candidate, ok := n.registry.Get(cmd.CandidatePub)
	if !ok {
		reject("unknown candidate")
		return
	}
	if candidate.Banned || candidate.Tier >= tier {
		reject("candidate not eligible")
		return
	}

	valid := n.countValidVouches(cmd)

	quorum := members.Quorum(
		n.registry.ActiveCount(int64(n.conf.ActiveWindow/time.Second), time.Now().Unix()),
		n.conf.QuorumFloor,
		n.conf.QuorumRatio,
	)
	if valid < quorum {
		reject(fmt.Sprintf("insufficient vouches: %d of %d", valid, quorum))
		return
	}

	// Quorum reached: the promotion still goes through the intent lock so
	// concurrent promotion rounds for the same candidate resolve to one.
	if _, err := n.ProposePromotion(cmd.CandidatePub, tier); err != nil {
		reject(err.Error())
		return
	}

	rpc.Respond(&wire.PromotionAckPayload{RequestID: cmd.RequestID, Granted: true}, nil)
}

// countValidVouches counts the attached vouches that are signed by distinct
// members in good standing and bound to this candidate and round.
func (n *Node) countValidVouches(cmd *wire.PromotionRequestPayload) int {
	seen := map[string]bool{}
	valid := 0
	for _, v := range cmd.Vouches {
		if v.TargetPub != cmd.CandidatePub || v.RequestID != cmd.RequestID {
			continue
		}
		if seen[v.VoucherPub] {
			continue
		}
		voucher, ok := n.registry.Get(v.VoucherPub)
		if !ok || !voucher.CanVouch() {
			continue
		}
		if !v.Verify() {
			continue
		}
		seen[v.VoucherPub] = true
		valid++
	}
	return valid
}
