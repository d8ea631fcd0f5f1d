package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pthm/hxstream/lib/tokenizer"
)

func readSource(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(args[0])
	return string(b), err
}

// runTokenize prints one line per token. It reports false when the source
// ends in an illegal state.
func runTokenize(args []string, stdin io.Reader, out io.Writer) (bool, error) {
	source, err := readSource(args, stdin)
	if err != nil {
		return false, err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	z := tokenizer.New(source)
	for {
		tok := z.Next()
		fmt.Fprintf(tw, "%d:%d\t%s\t%q\n", tok.Start, tok.End, tok.State, tok.Value)
		switch tok.State {
		case tokenizer.End:
			return true, tw.Flush()
		case tokenizer.Illegal:
			fmt.Fprintf(tw, "\tREMAINING\t%q\n", z.Remaining())
			return false, tw.Flush()
		}
	}
}

func runTags(args []string, stdin io.Reader, out io.Writer) error {
	source, err := readSource(args, stdin)
	if err != nil {
		return err
	}

	for _, tok := range tokenizer.Tokens(source) {
		if tok.State != tokenizer.Component {
			continue
		}
		tag, err := tokenizer.ParseTag(tok.Value)
		if err != nil {
			fmt.Fprintf(out, "%d\t(unparseable) %q\n", tok.Start, tok.Value)
			continue
		}

		keys := make([]string, 0, len(tag.Attributes))
		for k := range tag.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make([]string, 0, len(keys))
		for _, k := range keys {
			attrs = append(attrs, fmt.Sprintf("%s=%q", k, tag.Attributes[k]))
		}

		line := fmt.Sprintf("%d\t%s", tok.Start, tag.Name)
		if len(attrs) > 0 {
			line += "\t" + strings.Join(attrs, " ")
		}
		if tag.SelfClosing {
			line += "\t(self-closing)"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
