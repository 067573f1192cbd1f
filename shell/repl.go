// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/tidwall/jsonc"
	"golang.org/x/term"

	"github.com/bureau-foundation/tether/lib/logging"
)

// DefaultPrompt is used when Options.Prompt is empty.
const DefaultPrompt = "tether> "

// CommandFunc implements a command registered with [REPL.Register].
// Output written to out appears in the session.
type CommandFunc func(out io.Writer, args []string) error

// Options configures a REPL.
type Options struct {
	Prompt string

	// Color enables YAML highlighting and styled errors.
	Color bool

	// History receives entered lines. Nil keeps history only for the
	// lifetime of the REPL.
	History *History

	Logger *slog.Logger
}

type command struct {
	help string
	run  CommandFunc
}

// REPL evaluates command lines against a Context over a byte stream.
type REPL struct {
	context  *Context
	terminal *term.Terminal
	render   *renderer
	commands map[string]command
	logger   *slog.Logger
}

// NewREPL returns a REPL reading from and writing to stream.
func NewREPL(stream io.ReadWriter, context *Context, options Options) *REPL {
	prompt := options.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	terminal := term.NewTerminal(stream, prompt)
	if options.History != nil {
		terminal.History = options.History
	}
	return &REPL{
		context:  context,
		terminal: terminal,
		render:   newRenderer(terminal, options.Color),
		commands: make(map[string]command),
		logger:   logging.OrDefault(options.Logger),
	}
}

// Register adds a command. It replaces a builtin of the same name.
func (r *REPL) Register(name, help string, run CommandFunc) {
	r.commands[name] = command{help: help, run: run}
}

// Run reads and evaluates lines until the user exits or the stream
// ends. Exiting and end of input return nil; any other read failure
// is returned.
func (r *REPL) Run() error {
	for {
		line, err := r.terminal.ReadLine()
		if err != nil && !errors.Is(err, term.ErrPasteIndicator) {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading shell input: %w", err)
		}
		if r.Eval(line) {
			return nil
		}
	}
}

// Eval evaluates one line and reports whether the session should end.
func (r *REPL) Eval(line string) (exit bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Warn("shell evaluation panicked", "line", ansi.Strip(line), "panic", recovered)
			r.printError(fmt.Sprintf("panic: %v", recovered))
			exit = false
		}
	}()

	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	if registered, ok := r.commands[name]; ok {
		if err := registered.run(r.terminal, args); err != nil {
			r.printError(err.Error())
		}
		return false
	}

	switch name {
	case "exit", ".exit", "quit":
		return true
	case "help", ".help":
		r.help()
	case "ls":
		r.list()
	case "get":
		if len(args) != 1 {
			r.printError("usage: get NAME")
			return false
		}
		r.get(args[0])
	case "set":
		target, value, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(target) == "" {
			r.printError("usage: set NAME VALUE")
			return false
		}
		parsed := ParseValue(value)
		r.context.Set(target, parsed)
		r.println(target + " = " + r.render.value(parsed))
	case "del", "delete":
		if len(args) != 1 {
			r.printError("usage: del NAME")
			return false
		}
		if !r.context.Delete(args[0]) {
			r.printError(fmt.Sprintf("%s is not defined", args[0]))
		}
	case "call":
		if len(args) == 0 {
			r.printError("usage: call NAME [ARGS...]")
			return false
		}
		r.call(args[0], args[1:])
	default:
		if len(args) == 0 {
			if _, ok := r.context.Get(name); ok {
				r.get(name)
				return false
			}
		}
		r.printError(fmt.Sprintf("%s is not defined (type help for commands)", name))
	}
	return false
}

func (r *REPL) get(name string) {
	value, ok := r.context.Get(name)
	if !ok {
		r.printError(fmt.Sprintf("%s is not defined", name))
		return
	}
	r.println(r.render.value(value))
}

func (r *REPL) call(name string, args []string) {
	value, ok := r.context.Get(name)
	if !ok {
		r.printError(fmt.Sprintf("%s is not defined", name))
		return
	}
	fn, ok := value.(Func)
	if !ok || fn == nil {
		r.printError(fmt.Sprintf("%s is not a function", name))
		return
	}
	result, err := fn(args)
	if err != nil {
		r.printError(err.Error())
		return
	}
	if result != nil {
		r.println(r.render.value(result))
	}
}

func (r *REPL) list() {
	names := r.context.Names()
	if len(names) == 0 {
		r.println(r.render.faint("(no bindings)"))
		return
	}
	width := 0
	for _, name := range names {
		width = max(width, len(name))
	}
	for _, name := range names {
		value, ok := r.context.Get(name)
		if !ok {
			continue
		}
		kind := typeName(value)
		r.println(fmt.Sprintf("%-*s  %-8s  %s", width, name, kind, r.render.faint(preview(value))))
	}
}

func (r *REPL) help() {
	lines := []string{
		"ls                   list bindings",
		"get NAME | NAME      print a binding",
		"set NAME VALUE       bind NAME to a JSON value or string",
		"del NAME             remove a binding",
		"call NAME [ARGS...]  call a function binding",
		"exit                 end the session",
	}
	registered := make([]string, 0, len(r.commands))
	for name := range r.commands {
		registered = append(registered, name)
	}
	sort.Strings(registered)
	for _, name := range registered {
		lines = append(lines, fmt.Sprintf("%-20s %s", name, r.commands[name].help))
	}
	r.println(strings.Join(lines, "\n"))
}

func (r *REPL) println(text string) {
	fmt.Fprintln(r.terminal, text)
}

func (r *REPL) printError(message string) {
	fmt.Fprintln(r.terminal, r.render.errorText(message))
}

// previewWidth bounds the value column of ls, in terminal cells.
const previewWidth = 48

func preview(value any) string {
	if _, ok := value.(Func); ok {
		return ""
	}
	text := strings.Join(strings.Fields(fmt.Sprint(value)), " ")
	return ansi.Truncate(ansi.Strip(text), previewWidth, "...")
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case Func:
		return "function"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// ParseValue interprets text as JSON with comments and trailing commas
// allowed, falling back to the trimmed text as a string. Integral
// numbers become int64.
func ParseValue(text string) any {
	trimmed := strings.TrimSpace(text)
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON([]byte(trimmed))))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil || decoder.More() {
		return trimmed
	}
	return simplify(value)
}

func simplify(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if integer, err := typed.Int64(); err == nil {
			return integer
		}
		if float, err := typed.Float64(); err == nil {
			return float
		}
		return typed.String()
	case []any:
		for i := range typed {
			typed[i] = simplify(typed[i])
		}
		return typed
	case map[string]any:
		for key := range typed {
			typed[key] = simplify(typed[key])
		}
		return typed
	default:
		return value
	}
}
