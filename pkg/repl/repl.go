// Package repl provides a read/analyze/print loop for ES modules.
//
// It supports readline-style command editing and interrupts through
// Control-C.
//
// Each input line is analyzed as a module and its record is printed. A
// line ending in a backslash continues on the next line. Lines starting
// with a colon are commands; :help lists them.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"

	"esmod/pkg/driver"
)

var interrupted = make(chan os.Signal, 1)

// errQuit is returned by Eval for the :quit command.
var errQuit = errors.New("quit")

const help = `Commands:
  :help               show this help
  :load FILE          analyze a file
  :graph SPECIFIER    analyze a module and everything it requests
  :add PATH SOURCE    store a module in memory for :graph
  :demo               store a small demo module graph in memory
  :modules            list analyzed modules
  :show KEY           print the record of an analyzed module
  :format FORMAT      print records as text, json or spew
  :quit               leave
Any other input is analyzed as a module.
`

// REPL holds the state of one interactive session.
type REPL struct {
	session *driver.Session
	out     io.Writer
	errOut  io.Writer
	format  driver.Format
	inputs  int
}

func New(session *driver.Session, out, errOut io.Writer) *REPL {
	return &REPL{session: session, out: out, errOut: errOut}
}

// SetFormat sets the format records are printed in.
func (r *REPL) SetFormat(f driver.Format) { r.format = f }

// Run executes the loop until EOF or :quit.
//
// Each input gets its own context, cancelled by a SIGINT (Control-C), so
// that graph analysis of a large tree can be interrupted.
func (r *REPL) Run() {
	signal.Notify(interrupted, os.Interrupt)
	defer signal.Stop(interrupted)

	rl, err := readline.New("esmod> ")
	if err != nil {
		fmt.Fprintln(r.errOut, err)
		return
	}
	defer rl.Close()
	for {
		if err := r.rep(rl); err != nil {
			if err == readline.ErrInterrupt {
				fmt.Fprintln(r.out, err)
				continue
			}
			break
		}
	}
	fmt.Fprintln(r.out)
}

// rep reads, analyzes, and prints one item. It returns an error only if
// readline failed or the user quit.
func (r *REPL) rep(rl *readline.Instance) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-interrupted:
			cancel()
		case <-ctx.Done():
		}
	}()

	rl.SetPrompt("esmod> ")
	var input strings.Builder
	for {
		line, err := rl.Readline()
		if err != nil {
			return err
		}
		if strings.HasSuffix(line, `\`) {
			input.WriteString(strings.TrimSuffix(line, `\`))
			input.WriteByte('\n')
			rl.SetPrompt("...    ")
			continue
		}
		input.WriteString(line)
		break
	}
	return r.Eval(ctx, input.String())
}

// Eval handles one complete input. Analysis errors are printed, not
// returned.
func (r *REPL) Eval(ctx context.Context, input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	if !strings.HasPrefix(trimmed, ":") {
		r.inputs++
		key := fmt.Sprintf("<repl:%d>", r.inputs)
		rec, err := r.session.AnalyzeString(key, input)
		if err != nil {
			driver.DisplayError(r.errOut, input, err)
			return nil
		}
		r.print(driver.Render(r.out, rec, r.format))
		return nil
	}

	cmd, arg, _ := strings.Cut(trimmed[1:], " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "help":
		fmt.Fprint(r.out, help)
	case "quit", "q":
		return errQuit
	case "load":
		rec, err := r.session.AnalyzeFile(arg)
		if err != nil {
			r.print(err)
			return nil
		}
		r.print(driver.Render(r.out, rec, r.format))
	case "graph":
		g, err := r.session.AnalyzeGraph(ctx, arg)
		if err != nil {
			r.print(err)
			return nil
		}
		for _, key := range g.Keys {
			fmt.Fprintf(r.out, "%s -> [%s]\n", key, strings.Join(g.Dependencies[key], ", "))
		}
		for _, gerr := range g.Errors {
			fmt.Fprintf(r.errOut, "Error: %v\n", gerr)
		}
	case "add":
		path, src, ok := strings.Cut(arg, " ")
		if !ok {
			fmt.Fprintln(r.errOut, "usage: :add PATH SOURCE")
			return nil
		}
		r.session.Memory().AddModule(path, src)
	case "demo":
		r.session.Memory().AddTestModules()
		for _, p := range r.session.Memory().ListModules() {
			fmt.Fprintln(r.out, p)
		}
	case "modules":
		for _, key := range r.session.Registry().Keys() {
			state, _ := r.session.Registry().State(key)
			fmt.Fprintf(r.out, "%s (%s)\n", key, state)
		}
	case "show":
		rec := r.session.Registry().Get(arg)
		if rec == nil {
			fmt.Fprintf(r.errOut, "no record for %q\n", arg)
			return nil
		}
		r.print(driver.Render(r.out, rec, r.format))
	case "format":
		f, err := driver.ParseFormat(arg)
		if err != nil {
			r.print(err)
			return nil
		}
		r.format = f
	default:
		fmt.Fprintf(r.errOut, "unknown command :%s (try :help)\n", cmd)
	}
	return nil
}

func (r *REPL) print(err error) {
	if err != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
	}
}
