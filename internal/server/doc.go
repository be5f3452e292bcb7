// Package server hosts the bulletin board process.
//
// Ownership boundary:
// - line-protocol listener accept loop (tcp or tls)
// - live session tracking and shutdown fan-out
// - admin HTTP surface: probes, metrics, board snapshot, websocket bridge
//
// Every session, whatever its transport, drives the same *board.Board.
package server
