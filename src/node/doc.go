// Package node implements the top-level protocol engine of a hive node. The
// Node ties the handshake engine, the membership registry, the hive map, the
// intent manager and the transport together into a state machine that joins
// the hive, gossips state, and arbitrates intents.
package node
