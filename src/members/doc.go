// Package members defines the concept of a hive member and implements the
// membership registry, tiers, tickets and vouches.
//
// A hive member is an independently-operated payment-routing node that has
// passed the authenticated handshake. Members are identified by their public
// keys, and optionally a moniker which is a non-unique user-friendly name.
//
// Membership is tiered. A peer joins as a neophyte, on probation: it can
// synchronise state but cannot vouch for others or propose bans. Members and
// admins have voting rights. Promotions require a quorum of signed vouches
// from existing members; tier transitions only ever go up, except for bans,
// which are terminal.
//
// Upon starting up, a node expects to find a members.json file in its data
// directory listing the peers it should attempt to contact. Thereafter the
// registry evolves through the handshake and gossip layers.
package members
