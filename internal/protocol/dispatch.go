package protocol

import (
	"errors"
	"strings"

	"github.com/danmuck/bboard/internal/board"
)

// StatusOK is the Reply status of every successful command.
const StatusOK = "OK"

// Engine is the board surface the dispatcher drives.
type Engine interface {
	Post(x, y int, color, message string) board.Result
	Pin(x, y int) board.Result
	Unpin(x, y int) board.Result
	Shake() board.Result
	Clear() board.Result
	SnapshotPins() []board.Pin
	FilteredNotes(f board.Filter) []board.NoteView
}

var _ Engine = (*board.Board)(nil)

// Reply is every line produced for one command.
type Reply struct {
	Verb Verb
	// Status is "OK" or the ERROR kind.
	Status string
	Lines  []string
	// Close asks the session to end after writing Lines.
	Close bool
}

// Dispatcher maps command lines onto one Engine.
type Dispatcher struct {
	engine Engine
}

func NewDispatcher(engine Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// Handle parses one line and executes it. The line is trimmed first.
func (d *Dispatcher) Handle(line string) Reply {
	cmd, err := Parse(strings.TrimSpace(line))
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			return errorReply(cmd.Verb, KindInvalidFormat, fe.Detail)
		}
		return errorReply(cmd.Verb, KindInvalidFormat, err.Error())
	}
	return d.Execute(cmd)
}

// Execute runs an already-parsed command. Exactly one engine call is made,
// none for DISCONNECT.
func (d *Dispatcher) Execute(cmd Command) Reply {
	switch cmd.Verb {
	case VerbPost:
		return resultReply(cmd, d.engine.Post(cmd.X, cmd.Y, cmd.Color, cmd.Message))
	case VerbPin:
		return resultReply(cmd, d.engine.Pin(cmd.X, cmd.Y))
	case VerbUnpin:
		return resultReply(cmd, d.engine.Unpin(cmd.X, cmd.Y))
	case VerbShake:
		return resultReply(cmd, d.engine.Shake())
	case VerbClear:
		return resultReply(cmd, d.engine.Clear())
	case VerbGetPins:
		pins := d.engine.SnapshotPins()
		lines := make([]string, 0, len(pins)+1)
		lines = append(lines, countLine(len(pins)))
		for _, p := range pins {
			lines = append(lines, FormatPinLine(p))
		}
		return Reply{Verb: cmd.Verb, Status: StatusOK, Lines: lines}
	case VerbGet:
		notes := d.engine.FilteredNotes(cmd.Filter)
		lines := make([]string, 0, len(notes)+1)
		lines = append(lines, countLine(len(notes)))
		for _, n := range notes {
			lines = append(lines, FormatNoteLine(n))
		}
		return Reply{Verb: cmd.Verb, Status: StatusOK, Lines: lines}
	case VerbDisconnect:
		return Reply{Verb: cmd.Verb, Status: StatusOK, Lines: []string{"OK BYE"}, Close: true}
	default:
		return errorReply(VerbUnknown, KindInvalidFormat, "Unknown command")
	}
}

func resultReply(cmd Command, r board.Result) Reply {
	switch r {
	case board.Posted:
		return okReply(cmd.Verb, "NOTE_POSTED")
	case board.PinAdded:
		return okReply(cmd.Verb, "PIN_ADDED")
	case board.PinRemoved:
		return okReply(cmd.Verb, "PIN_REMOVED")
	case board.ShakeComplete:
		return okReply(cmd.Verb, "SHAKE_COMPLETE")
	case board.ClearComplete:
		return okReply(cmd.Verb, "CLEAR_COMPLETE")
	case board.OutOfBounds:
		return errorReply(cmd.Verb, KindOutOfBounds, "Note exceeds board boundaries")
	case board.UnsupportedColor:
		return errorReply(cmd.Verb, KindColorNotSupported, strings.ToLower(cmd.Color))
	case board.CompleteOverlap:
		return errorReply(cmd.Verb, KindCompleteOverlap, "Note overlaps an existing note entirely")
	case board.NoNoteAtCoordinate:
		return errorReply(cmd.Verb, KindNoNoteAtCoordinate, "")
	case board.PinNotFound:
		return errorReply(cmd.Verb, KindPinNotFound, "")
	default:
		return errorReply(cmd.Verb, KindInvalidFormat, "Unknown result "+r.String())
	}
}

func okReply(verb Verb, text string) Reply {
	return Reply{Verb: verb, Status: StatusOK, Lines: []string{"OK " + text}}
}

func errorReply(verb Verb, kind ErrorKind, detail string) Reply {
	return Reply{Verb: verb, Status: string(kind), Lines: []string{ErrorLine(kind, detail)}}
}

func countLine(n int) string {
	return "OK " + itoa(n)
}
