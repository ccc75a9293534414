package control

import (
	"fmt"
	"html"
	"strings"
)

// H is HTML that is safe to send with ParseMode="HTML". Values of type
// H are treated as already-escaped.
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for Telegram HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + inner.String() + "</" + tag + ">") }

func B(s string) H    { return wrap("b", Esc(s)) }
func Code(s string) H { return wrap("code", Esc(s)) }

// Hf is Sprintf over H parts. Arguments of type H pass through as-is,
// everything else is escaped first.
func Hf(format string, args ...any) H {
	safe := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case H:
			safe[i] = v.String()
		case string:
			safe[i] = html.EscapeString(v)
		default:
			safe[i] = a
		}
	}
	return H(fmt.Sprintf(format, safe...))
}

// Joined concatenates lines into one message body.
func Joined(lines ...H) H {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.String()
	}
	return H(strings.Join(parts, "\n"))
}
