package board

// Result is the outcome of one board operation.
type Result int

const (
	Posted Result = iota
	PinAdded
	PinRemoved
	ShakeComplete
	ClearComplete

	OutOfBounds
	UnsupportedColor
	CompleteOverlap
	NoNoteAtCoordinate
	PinNotFound
)

var resultNames = map[Result]string{
	Posted:             "posted",
	PinAdded:           "pin_added",
	PinRemoved:         "pin_removed",
	ShakeComplete:      "shake_complete",
	ClearComplete:      "clear_complete",
	OutOfBounds:        "out_of_bounds",
	UnsupportedColor:   "unsupported_color",
	CompleteOverlap:    "complete_overlap",
	NoNoteAtCoordinate: "no_note_at_coordinate",
	PinNotFound:        "pin_not_found",
}

// OK reports whether the operation mutated (or was allowed to leave) the board as requested.
func (r Result) OK() bool {
	return r < OutOfBounds
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return "unknown"
}
