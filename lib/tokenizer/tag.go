package tokenizer

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ErrIllegalTag is returned by ParseTag when the input is not exactly one
// well-formed start tag.
var ErrIllegalTag = errors.New("tokenizer: illegal tag")

// Tag is a parsed component open tag.
type Tag struct {
	// Name is the lower-cased tag name, e.g. "cat-news" or "head".
	Name string
	// Attributes holds lower-cased attribute names with entity-decoded
	// values. Attributes without a value map to "".
	Attributes map[string]string
	// SelfClosing is true for tags written as <cat-x />.
	SelfClosing bool
}

// ParseTag parses the value of a Component token.
//
//	tag, err := tokenizer.ParseTag(`<cat-news cat-store="feed" id="top">`)
//	// tag.Name == "cat-news", tag.Attributes["cat-store"] == "feed"
func ParseTag(raw string) (Tag, error) {
	z := html.NewTokenizer(strings.NewReader(raw))
	tt := z.Next()
	if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
		return Tag{}, ErrIllegalTag
	}

	tok := z.Token()
	tag := Tag{
		Name:        strings.ToLower(tok.Data),
		Attributes:  make(map[string]string, len(tok.Attr)),
		SelfClosing: tt == html.SelfClosingTagToken,
	}
	for _, attr := range tok.Attr {
		key := strings.ToLower(attr.Key)
		if _, seen := tag.Attributes[key]; seen {
			// first occurrence wins, as in browsers
			continue
		}
		tag.Attributes[key] = attr.Val
	}

	if z.Next() != html.ErrorToken || !errors.Is(z.Err(), io.EOF) {
		return Tag{}, ErrIllegalTag
	}
	return tag, nil
}
