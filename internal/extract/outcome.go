package extract

import (
	"strings"

	"github.com/joseph-ayodele/cfdi-ledger/internal/entity"
)

// outcome is the result of one strategy on one line.
type outcome struct {
	value string
	ok    bool
}

var miss = outcome{}

func hit(v string) outcome { return outcome{value: v, ok: true} }

type policy int

const (
	// overwrite lets every later hit replace the stored value.
	overwrite policy = iota
	// firstWins skips the rule once the field is set.
	firstWins
	// overSeed skips the rule once another rule has set the field. A value
	// seeded by the positional global pass may still be replaced.
	overSeed
)

type rule struct {
	name   string
	policy policy
	slot   func(*entity.Fields) **string
	apply  func(*state, line) outcome
}

// line is one input line in the forms the strategies look at.
type line struct {
	raw   string
	clean string // whitespace collapsed
	lower string // clean, lower-cased
}

func newLine(raw string) line {
	clean := collapse(raw)
	return line{raw: raw, clean: clean, lower: strings.ToLower(clean)}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (l line) has(words ...string) bool {
	for _, w := range words {
		if strings.Contains(l.lower, w) {
			return true
		}
	}
	return false
}

// state is the record under construction.
type state struct {
	fields entity.Fields
	rfcs   []string
	// ruled holds the slots written by a rule rather than the global pass.
	ruled map[**string]bool
}

func (st *state) set(slot **string, v string) {
	*slot = &v
	if st.ruled == nil {
		st.ruled = map[**string]bool{}
	}
	st.ruled[slot] = true
}
