package board

// WithColor returns a copy of f constrained to color (case-insensitive).
func (f Filter) WithColor(color string) Filter {
	f.Color = &color
	return f
}

// WithContains returns a copy of f constrained to notes covering (x, y).
func (f Filter) WithContains(x, y int) Filter {
	f.Contains = &Pin{X: x, Y: y}
	return f
}

// WithRefersTo returns a copy of f constrained to messages containing sub (case-sensitive).
func (f Filter) WithRefersTo(sub string) Filter {
	f.RefersTo = &sub
	return f
}

// Empty reports whether f places no constraint.
func (f Filter) Empty() bool {
	return f.Color == nil && f.Contains == nil && f.RefersTo == nil
}
