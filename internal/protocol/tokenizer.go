package protocol

// tokenizer walks whitespace-separated tokens while keeping byte offsets,
// so that trailing free text (POST message, refersTo=) can be taken raw.
type tokenizer struct {
	line string
	pos  int
}

func newTokenizer(line string) *tokenizer {
	return &tokenizer{line: line}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func (t *tokenizer) skipSpace() {
	for t.pos < len(t.line) && isSpace(t.line[t.pos]) {
		t.pos++
	}
}

// next returns the next token and its start offset in line.
func (t *tokenizer) next() (string, int, bool) {
	t.skipSpace()
	if t.pos >= len(t.line) {
		return "", t.pos, false
	}
	start := t.pos
	for t.pos < len(t.line) && !isSpace(t.line[t.pos]) {
		t.pos++
	}
	return t.line[start:t.pos], start, true
}

// rest consumes and returns everything after the separator run following the last token.
func (t *tokenizer) rest() string {
	t.skipSpace()
	out := t.line[t.pos:]
	t.pos = len(t.line)
	return out
}

func (t *tokenizer) all() []string {
	var out []string
	for {
		tok, _, ok := t.next()
		if !ok {
			return out
		}
		out = append(out, tok)
	}
}

func (t *tokenizer) peekAll() []string {
	saved := t.pos
	out := t.all()
	t.pos = saved
	return out
}
