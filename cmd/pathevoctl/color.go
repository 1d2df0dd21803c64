package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"pathevo/pkg/pathevo"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGray   = "\x1b[90m"
	ansiGreen  = "\x1b[32m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiBold   = "\x1b[1m"
)

var glyphColors = map[byte]string{
	'#':                ansiGray,
	'S':                ansiGreen,
	'F':                ansiGreen + ansiBold,
	pathevo.PathGlyph:  ansiYellow,
	pathevo.CrashGlyph: ansiRed + ansiBold,
}

// colorEnabled resolves a --color mode. auto only colors terminals.
func colorEnabled(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto", "":
		f, ok := w.(*os.File)
		if !ok {
			return false, nil
		}
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()), nil
	default:
		return false, fmt.Errorf("unsupported color mode: %s", mode)
	}
}

func colorize(rendered string, enabled bool) string {
	if !enabled {
		return rendered
	}
	var b strings.Builder
	b.Grow(len(rendered) * 4)
	for i := 0; i < len(rendered); i++ {
		c := rendered[i]
		if code, ok := glyphColors[c]; ok {
			b.WriteString(code)
			b.WriteByte(c)
			b.WriteString(ansiReset)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
