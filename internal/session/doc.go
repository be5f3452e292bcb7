// Package session owns one client connection's lifetime.
//
// Ownership boundary:
// - WELCOME handshake
// - read-dispatch-write loop
// - close-once teardown
//
// Lifecycle order:
// - handshaking -> serving -> closed
//
// - closed is terminal; the connection is released exactly once.
//
// - replies are written and flushed before the next line is read.
//
// A session holds no board lock while doing socket I/O.
package session
