// Package tokenizer recognizes component boundaries inside raw HTML.
//
// It is not an HTML parser. The Tokenizer only splits a template source into
// raw content, comments and the opening tags of components, which is all the
// renderer needs to splice component output into the document:
//
//	z := tokenizer.New(`<div><cat-news></cat-news></div>`)
//	for {
//	    tok := z.Next()
//	    if tok.State == tokenizer.End || tok.State == tokenizer.Illegal {
//	        break
//	    }
//	    // tok.State is Content, Component or Comment
//	}
//
// Malformed markup (an unterminated component tag or comment) yields the
// Illegal state. Illegal is a token, not an error: the caller decides whether
// to stop or to call Recover.
package tokenizer

import "strings"

// State is the lexer state reported with every token.
type State int

const (
	// Illegal is reached on an unterminated component tag or comment.
	// It is terminal until the caller calls Recover.
	Illegal State = iota - 1

	// Initial is the state between tokens. It is never reported as the
	// state of a returned token.
	Initial

	// Content is raw markup copied to the output verbatim.
	Content

	// Component is the opening tag of a recognized component, for example
	// <cat-news id="feed"> or <head>.
	Component

	// Comment is an HTML comment, <!-- ... -->.
	Comment

	// End is reached when the whole source has been consumed. It is terminal.
	End
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Illegal:
		return "ILLEGAL"
	case Initial:
		return "INITIAL"
	case Content:
		return "CONTENT"
	case Component:
		return "COMPONENT"
	case Comment:
		return "COMMENT"
	case End:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// ComponentPrefix is the reserved tag name prefix of components.
const ComponentPrefix = "cat-"

// Structural tag names that are treated as components even without the prefix.
const (
	DocumentTag = "document"
	HeadTag     = "head"
	BodyTag     = "body"
)

const (
	// componentNameMinLength is how far ahead of '<' the matcher looks.
	componentNameMinLength = 10
	// componentOpenLength is the shortest possible component open, "<cat-".
	componentOpenLength = 5
	commentOpenLength   = 4
)

var structuralTags = []string{DocumentTag, HeadTag, BodyTag}

// Token is a span of the source.
//
// State is the state that was active when Next began, after leaving Initial,
// and Value is the text consumed during that call. For End and Illegal the
// value is empty.
type Token struct {
	State State
	Start int
	End   int
	Value string
}

// Tokenizer is a finite-state lexer over a complete, in-memory source.
// A Tokenizer is not safe for concurrent use.
type Tokenizer struct {
	source string
	index  int
	state  State
}

// New creates a tokenizer positioned at the start of source.
func New(source string) *Tokenizer {
	t := &Tokenizer{}
	t.SetSource(source)
	return t
}

// SetSource replaces the source and rewinds the cursor to index 0.
func (t *Tokenizer) SetSource(source string) {
	t.source = source
	t.index = 0
	t.state = Initial
}

// State returns the state the next call to Next will start from.
func (t *Tokenizer) State() State {
	return t.state
}

// Remaining returns the source that has not been consumed yet.
func (t *Tokenizer) Remaining() string {
	return t.source[t.index:]
}

// Next returns the next token and advances the cursor.
//
// The returned state describes the state active when the call began and the
// value spans the cursor movement made while processing it. A caller that
// wants to know what the text it just received was must look at the token's
// state, not at t.State(), which already describes the following token.
func (t *Tokenizer) Next() Token {
	if t.state == Initial {
		t.initial()
	}

	start := t.index
	state := t.state

	switch state {
	case Content:
		t.content()
	case Component:
		t.component()
	case Comment:
		t.comment()
	default:
		return Token{State: state, Start: start, End: start}
	}

	return Token{
		State: state,
		Start: start,
		End:   t.index,
		Value: t.source[start:t.index],
	}
}

// Recover leaves the Illegal state by skipping one character and resetting
// to Initial. It does nothing in any other state.
func (t *Tokenizer) Recover() {
	if t.state != Illegal {
		return
	}
	if t.index < len(t.source) {
		t.index++
	}
	t.state = Initial
}

func (t *Tokenizer) initial() {
	if t.index >= len(t.source) {
		t.state = End
		return
	}

	if t.source[t.index] == '<' {
		if t.at(1) == '!' {
			if t.at(2) == '-' && t.at(3) == '-' {
				t.state = Comment
				return
			}
			t.state = Content
			return
		}

		if IsComponentTag(t.source[t.index:]) {
			t.state = Component
			return
		}
	}

	t.state = Content
}

func (t *Tokenizer) content() {
	t.index++
	for t.index < len(t.source) {
		if t.source[t.index] == '<' {
			t.state = Initial
			return
		}
		t.index++
	}
	t.state = End
}

func (t *Tokenizer) component() {
	t.index = min(t.index+componentOpenLength, len(t.source))
	for t.index < len(t.source) {
		if t.source[t.index] == '>' {
			t.index++
			t.state = Initial
			return
		}
		t.index++
	}
	t.state = Illegal
}

func (t *Tokenizer) comment() {
	t.index = min(t.index+commentOpenLength, len(t.source))
	for t.index < len(t.source) {
		if t.source[t.index] == '-' {
			if t.index+2 >= len(t.source) {
				t.state = Illegal
				return
			}
			if t.source[t.index+1] == '-' && t.source[t.index+2] == '>' {
				t.index += 3
				t.state = Initial
				return
			}
		}
		t.index++
	}
	t.state = Illegal
}

// at returns the byte offset characters after the cursor, or 0 past the end.
func (t *Tokenizer) at(offset int) byte {
	i := t.index + offset
	if i >= len(t.source) {
		return 0
	}
	return t.source[i]
}

// IsComponentTag reports whether s starts with the opening of a component
// tag: '<' followed by the reserved prefix, or by one of the structural tag
// names and then whitespace, '/' or '>'. Matching is case-insensitive and
// looks at most ten characters ahead.
func IsComponentTag(s string) bool {
	if len(s) > componentNameMinLength {
		s = s[:componentNameMinLength]
	}
	if len(s) < 2 || s[0] != '<' {
		return false
	}
	name := s[1:]
	if len(name) >= len(ComponentPrefix) && strings.EqualFold(name[:len(ComponentPrefix)], ComponentPrefix) {
		return true
	}
	for _, tag := range structuralTags {
		if len(name) > len(tag) &&
			strings.EqualFold(name[:len(tag)], tag) &&
			isTagNameEnd(name[len(tag)]) {
			return true
		}
	}
	return false
}

func isTagNameEnd(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v', '/', '>':
		return true
	}
	return false
}

// Tokens lexes source to completion and returns every token, including the
// terminal End or Illegal token.
func Tokens(source string) []Token {
	z := New(source)
	var tokens []Token
	for {
		tok := z.Next()
		tokens = append(tokens, tok)
		if tok.State == End || tok.State == Illegal {
			return tokens
		}
	}
}
