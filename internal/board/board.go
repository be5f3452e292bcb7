package board

import (
	"slices"
	"strings"
	"sync"
)

// Note is one posted note. Width and height come from the board Config.
type Note struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Color   string `json:"color"`
	Message string `json:"message"`
}

// Pin is a board coordinate. Two pins at the same point are the same pin.
type Pin struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NoteView pairs a note with its derived pinned status at query time.
type NoteView struct {
	Note
	Pinned bool `json:"pinned"`
}

// Filter narrows FilteredNotes. A nil field places no constraint.
type Filter struct {
	Color    *string
	Contains *Pin
	RefersTo *string
}

// Stats is a point-in-time count of board contents.
type Stats struct {
	Notes int `json:"notes"`
	Pins  int `json:"pins"`
}

// Board is the single shared note/pin state for one process.
type Board struct {
	cfg    Config
	colors map[string]struct{}

	mu    sync.Mutex
	notes []Note
	pins  []Pin
}

// New validates cfg and returns an empty board. Colors are normalized to lowercase.
func New(cfg Config) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Normalized()
	colors := make(map[string]struct{}, len(cfg.Colors))
	for _, c := range cfg.Colors {
		colors[c] = struct{}{}
	}
	return &Board{
		cfg:    cfg,
		colors: colors,
		notes:  make([]Note, 0),
		pins:   make([]Pin, 0),
	}, nil
}

// Config returns a copy of the normalized board configuration.
func (b *Board) Config() Config {
	out := b.cfg
	out.Colors = slices.Clone(b.cfg.Colors)
	return out
}

// Post places a note at (x, y). Checks run in order: bounds, color, complete overlap.
func (b *Board) Post(x, y int, color, message string) Result {
	color = strings.ToLower(color)

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.fits(x, y) {
		return OutOfBounds
	}
	if _, ok := b.colors[color]; !ok {
		return UnsupportedColor
	}
	if slices.ContainsFunc(b.notes, func(n Note) bool { return n.X == x && n.Y == y }) {
		return CompleteOverlap
	}
	b.notes = append(b.notes, Note{X: x, Y: y, Color: color, Message: message})
	return Posted
}

// Pin adds (x, y) to the pin set if some note covers it. Re-pinning succeeds.
func (b *Board) Pin(x, y int) Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.anyNoteContains(x, y) {
		return NoNoteAtCoordinate
	}
	p := Pin{X: x, Y: y}
	if !slices.Contains(b.pins, p) {
		b.pins = append(b.pins, p)
	}
	return PinAdded
}

// Unpin removes the pin at (x, y). A note must still cover the point.
func (b *Board) Unpin(x, y int) Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.anyNoteContains(x, y) {
		return NoNoteAtCoordinate
	}
	idx := slices.Index(b.pins, Pin{X: x, Y: y})
	if idx < 0 {
		return PinNotFound
	}
	b.pins = slices.Delete(b.pins, idx, idx+1)
	return PinRemoved
}

// Shake drops every unpinned note, then every pin left covering no note.
func (b *Board) Shake() Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.notes = slices.DeleteFunc(b.notes, func(n Note) bool { return !b.pinned(n) })
	b.pins = slices.DeleteFunc(b.pins, func(p Pin) bool { return !b.anyNoteContains(p.X, p.Y) })
	return ShakeComplete
}

// Clear empties notes and pins.
func (b *Board) Clear() Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.notes = make([]Note, 0)
	b.pins = make([]Pin, 0)
	return ClearComplete
}

// SnapshotPins returns a copy of the pin set in insertion order.
func (b *Board) SnapshotPins() []Pin {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.pins)
}

// FilteredNotes returns notes matching every non-nil filter field, in storage order.
// Pinned status is computed in the same critical section as the match.
func (b *Board) FilteredNotes(f Filter) []NoteView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filtered(f)
}

// Snapshot is a consistent view of matching notes and all pins.
type Snapshot struct {
	Notes []NoteView `json:"notes"`
	Pins  []Pin      `json:"pins"`
}

// Snapshot reads the filtered notes and the pins in one critical section.
func (b *Board) Snapshot(f Filter) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{Notes: b.filtered(f), Pins: slices.Clone(b.pins)}
}

func (b *Board) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{Notes: len(b.notes), Pins: len(b.pins)}
}

// callers hold b.mu for everything below.

func (b *Board) filtered(f Filter) []NoteView {
	var color string
	if f.Color != nil {
		color = strings.ToLower(*f.Color)
	}
	out := make([]NoteView, 0, len(b.notes))
	for _, n := range b.notes {
		if f.Color != nil && n.Color != color {
			continue
		}
		if f.Contains != nil && !b.contains(n, f.Contains.X, f.Contains.Y) {
			continue
		}
		if f.RefersTo != nil && !strings.Contains(n.Message, *f.RefersTo) {
			continue
		}
		out = append(out, NoteView{Note: n, Pinned: b.pinned(n)})
	}
	return out
}

func (b *Board) fits(x, y int) bool {
	return x >= 0 && y >= 0 &&
		x <= b.cfg.BoardW-b.cfg.NoteW &&
		y <= b.cfg.BoardH-b.cfg.NoteH
}

func (b *Board) contains(n Note, px, py int) bool {
	return px >= n.X && px-n.X < b.cfg.NoteW &&
		py >= n.Y && py-n.Y < b.cfg.NoteH
}

func (b *Board) anyNoteContains(px, py int) bool {
	return slices.ContainsFunc(b.notes, func(n Note) bool { return b.contains(n, px, py) })
}

func (b *Board) pinned(n Note) bool {
	return slices.ContainsFunc(b.pins, func(p Pin) bool { return b.contains(n, p.X, p.Y) })
}
