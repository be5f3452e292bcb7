package board

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidConfig = errors.New("board: invalid config")

// Config is the board geometry and palette fixed at process start.
type Config struct {
	BoardW int      `toml:"board_width" json:"board_width"`
	BoardH int      `toml:"board_height" json:"board_height"`
	NoteW  int      `toml:"note_width" json:"note_width"`
	NoteH  int      `toml:"note_height" json:"note_height"`
	Colors []string `toml:"colors" json:"colors"`
}

// Validate checks dimensions and palette without normalizing.
func (c Config) Validate() error {
	if c.BoardW <= 0 || c.BoardH <= 0 {
		return fmt.Errorf("%w: board dimensions must be positive (got %dx%d)", ErrInvalidConfig, c.BoardW, c.BoardH)
	}
	if c.NoteW <= 0 || c.NoteH <= 0 {
		return fmt.Errorf("%w: note dimensions must be positive (got %dx%d)", ErrInvalidConfig, c.NoteW, c.NoteH)
	}
	if c.NoteW > c.BoardW || c.NoteH > c.BoardH {
		return fmt.Errorf("%w: note %dx%d does not fit board %dx%d", ErrInvalidConfig, c.NoteW, c.NoteH, c.BoardW, c.BoardH)
	}
	if len(NormalizeColors(c.Colors)) == 0 {
		return fmt.Errorf("%w: at least one color is required", ErrInvalidConfig)
	}
	return nil
}

// Normalized returns a copy with lowercased, de-duplicated colors.
func (c Config) Normalized() Config {
	out := c
	out.Colors = NormalizeColors(c.Colors)
	return out
}

// NormalizeColors lowercases and trims colors, dropping blanks and repeats.
// First occurrence order is kept.
func NormalizeColors(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		c := strings.ToLower(strings.TrimSpace(raw))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
