package protocol

import (
	"strconv"
	"strings"

	"github.com/danmuck/bboard/internal/board"
)

const pinnedMarker = " PINNED="

// FormatWelcome renders the handshake line: WELCOME <boardW> <boardH> <noteW> <noteH> <color>...
func FormatWelcome(cfg board.Config) string {
	var sb strings.Builder
	sb.WriteString("WELCOME ")
	sb.WriteString(itoa(cfg.BoardW) + " " + itoa(cfg.BoardH) + " ")
	sb.WriteString(itoa(cfg.NoteW) + " " + itoa(cfg.NoteH))
	for _, c := range board.NormalizeColors(cfg.Colors) {
		sb.WriteString(" " + c)
	}
	return sb.String()
}

// ParseWelcome reads a handshake line back into a board Config.
func ParseWelcome(line string) (board.Config, error) {
	fields := strings.Fields(line)
	if len(fields) < 6 || fields[0] != "WELCOME" {
		return board.Config{}, malformed("welcome", line)
	}
	dims := make([]int, 4)
	for i := range dims {
		v, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return board.Config{}, malformed("welcome", line)
		}
		dims[i] = v
	}
	return board.Config{
		BoardW: dims[0],
		BoardH: dims[1],
		NoteW:  dims[2],
		NoteH:  dims[3],
		Colors: fields[5:],
	}, nil
}

// ErrorLine renders ERROR <kind> [detail].
func ErrorLine(kind ErrorKind, detail string) string {
	if detail == "" {
		return "ERROR " + string(kind)
	}
	return "ERROR " + string(kind) + " " + detail
}

func FormatPinLine(p board.Pin) string {
	return "PIN " + itoa(p.X) + " " + itoa(p.Y)
}

// FormatNoteLine renders NOTE <x> <y> <color> <message> PINNED=<bool>.
func FormatNoteLine(n board.NoteView) string {
	return "NOTE " + itoa(n.X) + " " + itoa(n.Y) + " " + n.Color + " " + n.Message +
		pinnedMarker + strconv.FormatBool(n.Pinned)
}

// Status is the first reply line of any command.
type Status struct {
	OK   bool
	Kind ErrorKind
	// Text is what follows "OK " or "ERROR <kind> ".
	Text string
}

// Count parses Text as the OK <count> header of a GET reply.
func (s Status) Count() (int, bool) {
	if !s.OK {
		return 0, false
	}
	n, err := strconv.Atoi(s.Text)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseStatus reads an OK or ERROR line.
func ParseStatus(line string) (Status, error) {
	tk := newTokenizer(line)
	head, _, ok := tk.next()
	if !ok {
		return Status{}, malformed("status", line)
	}
	switch head {
	case "OK":
		return Status{OK: true, Text: tk.rest()}, nil
	case "ERROR":
		kind, _, ok := tk.next()
		if !ok {
			return Status{}, malformed("status", line)
		}
		return Status{Kind: ErrorKind(kind), Text: tk.rest()}, nil
	default:
		return Status{}, malformed("status", line)
	}
}

func ParsePinLine(line string) (board.Pin, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "PIN" {
		return board.Pin{}, malformed("pin", line)
	}
	x, errX := strconv.Atoi(fields[1])
	y, errY := strconv.Atoi(fields[2])
	if errX != nil || errY != nil {
		return board.Pin{}, malformed("pin", line)
	}
	return board.Pin{X: x, Y: y}, nil
}

// ParseNoteLine reads one NOTE line. The message is everything between the
// color and the last " PINNED=" marker.
func ParseNoteLine(line string) (board.NoteView, error) {
	cut := strings.LastIndex(line, pinnedMarker)
	if cut < 0 {
		return board.NoteView{}, malformed("note", line)
	}
	pinned, err := strconv.ParseBool(line[cut+len(pinnedMarker):])
	if err != nil {
		return board.NoteView{}, malformed("note", line)
	}

	tk := newTokenizer(line[:cut])
	head, _, okH := tk.next()
	xs, _, okX := tk.next()
	ys, _, okY := tk.next()
	color, _, okC := tk.next()
	if !okH || !okX || !okY || !okC || head != "NOTE" {
		return board.NoteView{}, malformed("note", line)
	}
	x, errX := strconv.Atoi(xs)
	y, errY := strconv.Atoi(ys)
	if errX != nil || errY != nil {
		return board.NoteView{}, malformed("note", line)
	}
	return board.NoteView{
		Note:   board.Note{X: x, Y: y, Color: color, Message: tk.rest()},
		Pinned: pinned,
	}, nil
}
