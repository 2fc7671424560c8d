package yaml

import (
	"github.com/goccy/go-yaml/lexer"
	"github.com/goccy/go-yaml/printer"
	"github.com/muesli/termenv"
)

// Colorize highlights YAML source with ANSI colors.
func Colorize(src []byte) string {
	p := printer.Printer{
		MapKey: ansiProperty(termenv.ANSICyan),
		String: ansiProperty(termenv.ANSIGreen),
		Number: ansiProperty(termenv.ANSIMagenta),
		Bool:   ansiProperty(termenv.ANSIYellow),
		Anchor: ansiProperty(termenv.ANSIBlue),
		Alias:  ansiProperty(termenv.ANSIBlue),
	}

	return p.PrintTokens(lexer.Tokenize(string(src)))
}

func ansiProperty(c termenv.ANSIColor) printer.PrintFunc {
	return func() *printer.Property {
		return &printer.Property{
			Prefix: termenv.CSI + c.Sequence(false) + "m",
			Suffix: termenv.CSI + termenv.ResetSeq + "m",
		}
	}
}
