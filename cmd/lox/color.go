package main

import (
	"io"

	"github.com/muesli/termenv"
)

// palette colors diagnostics and REPL chrome. A disabled palette returns
// text unchanged.
type palette struct {
	out *termenv.Output
}

func newPalette(w io.Writer, enabled bool) *palette {
	if !enabled {
		return &palette{out: termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii))}
	}
	return &palette{out: termenv.NewOutput(w)}
}

func (p *palette) style(s, color string) termenv.Style {
	return p.out.String(s).Foreground(p.out.Color(color))
}

func (p *palette) err(s string) string   { return p.style(s, "1").String() }
func (p *palette) warn(s string) string  { return p.style(s, "3").String() }
func (p *palette) info(s string) string  { return p.style(s, "6").String() }
func (p *palette) faint(s string) string { return p.out.String(s).Faint().String() }
