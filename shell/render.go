// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"
)

// renderer formats values and errors for a session's terminal.
type renderer struct {
	color bool
	lip   *lipgloss.Renderer
}

func newRenderer(w io.Writer, color bool) *renderer {
	r := &renderer{color: color}
	if color {
		// The remote end is a terminal we cannot probe, so the profile
		// is fixed rather than detected from this process's stdout.
		r.lip = lipgloss.NewRenderer(w, termenv.WithProfile(termenv.ANSI256))
		r.lip.SetColorProfile(termenv.ANSI256)
	}
	return r
}

// value renders v as YAML, highlighted when color is on.
func (r *renderer) value(v any) string {
	if fn, ok := v.(Func); ok {
		if fn == nil {
			return "<nil function>"
		}
		return "<function>"
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	text := strings.TrimRight(string(data), "\n")
	if !r.color {
		return text
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, text, "yaml", "terminal256", "monokai"); err != nil {
		return text
	}
	return strings.TrimRight(buffer.String(), "\n")
}

func (r *renderer) errorText(message string) string {
	if !r.color {
		return "error: " + message
	}
	return r.lip.NewStyle().Bold(true).Foreground(lipgloss.Color("196")).Render("error:") + " " + message
}

func (r *renderer) faint(text string) string {
	if !r.color {
		return text
	}
	return r.lip.NewStyle().Foreground(lipgloss.Color("244")).Render(text)
}
