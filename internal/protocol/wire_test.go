package protocol

import (
	"testing"

	"github.com/danmuck/bboard/internal/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatWelcome(t *testing.T) {
	line := FormatWelcome(board.Config{BoardW: 200, BoardH: 100, NoteW: 20, NoteH: 10, Colors: []string{"Red", "green", "BLUE"}})
	assert.Equal(t, "WELCOME 200 100 20 10 red green blue", line)

	cfg, err := ParseWelcome(line)
	require.NoError(t, err)
	assert.Equal(t, board.Config{BoardW: 200, BoardH: 100, NoteW: 20, NoteH: 10, Colors: []string{"red", "green", "blue"}}, cfg)
}

func TestParseWelcomeRejectsGarbage(t *testing.T) {
	for _, line := range []string{"", "WELCOME 1 2 3 4", "HELLO 1 2 3 4 red", "WELCOME a 2 3 4 red"} {
		_, err := ParseWelcome(line)
		assert.ErrorIs(t, err, ErrMalformedReply, line)
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("OK NOTE_POSTED")
	require.NoError(t, err)
	assert.True(t, st.OK)
	assert.Equal(t, "NOTE_POSTED", st.Text)

	st, err = ParseStatus("OK 3")
	require.NoError(t, err)
	n, ok := st.Count()
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	st, err = ParseStatus("ERROR COLOR_NOT_SUPPORTED green")
	require.NoError(t, err)
	assert.False(t, st.OK)
	assert.Equal(t, KindColorNotSupported, st.Kind)
	assert.Equal(t, "green", st.Text)
	_, ok = st.Count()
	assert.False(t, ok)

	st, err = ParseStatus("ERROR PIN_NOT_FOUND")
	require.NoError(t, err)
	assert.Equal(t, KindPinNotFound, st.Kind)
	assert.Empty(t, st.Text)

	for _, line := range []string{"", "ERROR", "NOTE 1 2 red x PINNED=true"} {
		_, err := ParseStatus(line)
		assert.ErrorIs(t, err, ErrMalformedReply, line)
	}
}

func TestNoteLineRoundTrip(t *testing.T) {
	view := board.NoteView{
		Note:   board.Note{X: 4, Y: 5, Color: "red", Message: "buy milk  PINNED=maybe"},
		Pinned: true,
	}
	line := FormatNoteLine(view)
	assert.Equal(t, "NOTE 4 5 red buy milk  PINNED=maybe PINNED=true", line)

	got, err := ParseNoteLine(line)
	require.NoError(t, err)
	assert.Equal(t, view, got)

	for _, line := range []string{"NOTE 1 2 red hi", "NOTE 1 2 red hi PINNED=yes", "NOTE x 2 red hi PINNED=true", "PIN 1 2 red x PINNED=true"} {
		_, err := ParseNoteLine(line)
		assert.ErrorIs(t, err, ErrMalformedReply, line)
	}
}

func TestPinLine(t *testing.T) {
	p, err := ParsePinLine(FormatPinLine(board.Pin{X: 7, Y: 9}))
	require.NoError(t, err)
	assert.Equal(t, board.Pin{X: 7, Y: 9}, p)

	_, err = ParsePinLine("PIN 7")
	assert.ErrorIs(t, err, ErrMalformedReply)
}
