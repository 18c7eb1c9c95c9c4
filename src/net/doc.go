// Package net implements the point-to-point transport of the hive
// coordination protocol. A Transport sends signed frames to named targets
// and surfaces inbound frames, already signature-checked and size-checked,
// on a consumer channel for the node to process.
package net
