// Package protocol owns the bulletin board line protocol.
//
// Ownership boundary:
// - command grammar (Parse, Command.String)
// - reply rendering (Dispatcher, Reply)
// - reply parsing for clients (ParseWelcome, ParseStatus, ParsePinLine, ParseNoteLine)
//
// One input line maps to at most one board call. Format errors never reach the board.
package protocol
