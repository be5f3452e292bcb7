package protocol

import (
	"strconv"
	"strings"

	"github.com/danmuck/bboard/internal/board"
)

// Verb names one protocol command. GET PINS gets its own verb so that
// metrics and logs can tell it apart from filtered GET.
type Verb string

const (
	VerbPost       Verb = "POST"
	VerbPin        Verb = "PIN"
	VerbUnpin      Verb = "UNPIN"
	VerbShake      Verb = "SHAKE"
	VerbClear      Verb = "CLEAR"
	VerbGet        Verb = "GET"
	VerbGetPins    Verb = "GET_PINS"
	VerbDisconnect Verb = "DISCONNECT"
	VerbUnknown    Verb = "UNKNOWN"
)

const (
	filterColor    = "color="
	filterContains = "contains="
	filterRefersTo = "refersTo="
)

// Command is one parsed input line.
type Command struct {
	Verb    Verb
	X, Y    int
	Color   string
	Message string
	Filter  board.Filter
}

// Parse turns one input line into a Command. Verbs are case-insensitive.
// Every failure is a *FormatError.
func Parse(line string) (Command, error) {
	tk := newTokenizer(line)
	head, _, ok := tk.next()
	if !ok {
		return Command{Verb: VerbUnknown}, formatError("Empty command")
	}

	switch strings.ToUpper(head) {
	case "POST":
		return parsePost(tk)
	case "PIN":
		return parsePoint(VerbPin, tk)
	case "UNPIN":
		return parsePoint(VerbUnpin, tk)
	case "SHAKE":
		return parseBare(VerbShake, tk)
	case "CLEAR":
		return parseBare(VerbClear, tk)
	case "GET":
		return parseGet(tk)
	case "DISCONNECT":
		return Command{Verb: VerbDisconnect}, nil
	default:
		return Command{Verb: VerbUnknown}, formatError("Unknown command")
	}
}

func parsePost(tk *tokenizer) (Command, error) {
	const usage = "POST requires coordinates, color, and message"
	cmd := Command{Verb: VerbPost}

	xs, _, okX := tk.next()
	ys, _, okY := tk.next()
	color, _, okC := tk.next()
	message := tk.rest()
	if !okX || !okY || !okC || strings.TrimSpace(message) == "" {
		return cmd, formatError(usage)
	}

	x, okX := parseCoord(xs)
	y, okY := parseCoord(ys)
	if !okX || !okY {
		return cmd, formatError("POST requires non-negative integer coordinates")
	}
	cmd.X, cmd.Y = x, y
	cmd.Color = strings.ToLower(color)
	cmd.Message = message
	return cmd, nil
}

func parsePoint(verb Verb, tk *tokenizer) (Command, error) {
	cmd := Command{Verb: verb}
	args := tk.all()
	if len(args) != 2 {
		return cmd, formatError(string(verb) + " requires x and y")
	}
	x, okX := parseCoord(args[0])
	y, okY := parseCoord(args[1])
	if !okX || !okY {
		return cmd, formatError(string(verb) + " requires non-negative integer coordinates")
	}
	cmd.X, cmd.Y = x, y
	return cmd, nil
}

func parseBare(verb Verb, tk *tokenizer) (Command, error) {
	if _, _, more := tk.next(); more {
		return Command{Verb: verb}, formatError(string(verb) + " takes no arguments")
	}
	return Command{Verb: verb}, nil
}

func parseGet(tk *tokenizer) (Command, error) {
	if args := tk.peekAll(); len(args) == 1 && strings.EqualFold(args[0], "PINS") {
		return Command{Verb: VerbGetPins}, nil
	}

	cmd := Command{Verb: VerbGet}
	for {
		tok, start, ok := tk.next()
		if !ok {
			return cmd, nil
		}
		switch {
		case strings.HasPrefix(tok, filterColor):
			cmd.Filter = cmd.Filter.WithColor(strings.ToLower(tok[len(filterColor):]))

		case strings.HasPrefix(tok, filterContains):
			yTok, _, ok := tk.next()
			if !ok {
				return cmd, formatError("GET contains requires x and y")
			}
			x, okX := parseCoord(tok[len(filterContains):])
			y, okY := parseCoord(yTok)
			if !okX || !okY {
				return cmd, formatError("GET contains requires non-negative integer coordinates")
			}
			cmd.Filter = cmd.Filter.WithContains(x, y)

		case strings.HasPrefix(tok, filterRefersTo):
			// refersTo= swallows the raw remainder of the line. Inner runs of
			// whitespace are kept, not collapsed to single spaces.
			cmd.Filter = cmd.Filter.WithRefersTo(tk.line[start+len(filterRefersTo):])
			return cmd, nil

		default:
			return cmd, formatError("GET has invalid filter format")
		}
	}
}

// parseCoord accepts non-negative 32-bit decimal integers.
func parseCoord(s string) (int, bool) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil || v < 0 {
		return 0, false
	}
	return int(v), true
}

// String renders the command in canonical wire form.
func (c Command) String() string {
	switch c.Verb {
	case VerbPost:
		return "POST " + itoa(c.X) + " " + itoa(c.Y) + " " + c.Color + " " + c.Message
	case VerbPin, VerbUnpin:
		return string(c.Verb) + " " + itoa(c.X) + " " + itoa(c.Y)
	case VerbGetPins:
		return "GET PINS"
	case VerbGet:
		return FormatGet(c.Filter)
	default:
		return string(c.Verb)
	}
}

// FormatGet renders a filtered GET line. refersTo is always last.
func FormatGet(f board.Filter) string {
	var sb strings.Builder
	sb.WriteString("GET")
	if f.Color != nil {
		sb.WriteString(" " + filterColor + *f.Color)
	}
	if f.Contains != nil {
		sb.WriteString(" " + filterContains + itoa(f.Contains.X) + " " + itoa(f.Contains.Y))
	}
	if f.RefersTo != nil {
		sb.WriteString(" " + filterRefersTo + *f.RefersTo)
	}
	return sb.String()
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
