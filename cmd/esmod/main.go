package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"esmod/pkg/driver"
	"esmod/pkg/modules"
	"esmod/pkg/repl"
)

const usage = `Usage:
  esmod [flags] PATTERN...   analyze files matching doublestar patterns under -dir
  esmod [flags] -graph SPEC  analyze a module and every module it requests
  esmod [flags] -e SOURCE    analyze SOURCE as a module
  esmod [flags]              start the REPL

Flags:
`

func main() {
	exprFlag := flag.String("e", "", "Analyze the given module source and exit")
	keyFlag := flag.String("key", "", "Module key for -e input (default <eval>)")
	dirFlag := flag.String("dir", ".", "Directory patterns and -graph specifiers are resolved in")
	graphFlag := flag.Bool("graph", false, "Treat the argument as an entry specifier and analyze its module graph")
	formatFlag := flag.String("format", "text", "Record output format: text, json or spew")
	workersFlag := flag.Int("workers", 0, "Number of analysis workers (0 = one per CPU)")
	dumpFlag := flag.Bool("dump-module-record", false, "Log every module record as it is analyzed")
	verboseFlag := flag.Bool("v", false, "Enable debug logging")

	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	format, err := driver.ParseFormat(*formatFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(64) // Exit code 64: command line usage error
	}

	logger := newLogger(*verboseFlag)
	poolConfig := modules.DefaultPoolConfig()
	if *workersFlag > 0 {
		poolConfig.NumWorkers = *workersFlag
	}
	session := driver.NewSession(
		driver.WithLogger(logger),
		driver.WithSink(modules.NewLogSink(logger)),
		driver.WithAnalyzerConfig(&modules.AnalyzerConfig{DumpModuleRecord: *dumpFlag}),
		driver.WithPoolConfig(poolConfig),
		driver.WithBaseDir(*dirFlag),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *exprFlag != "":
		if !analyzeExpression(session, *keyFlag, *exprFlag, format) {
			os.Exit(70) // Exit code 70: internal software error
		}
	case *graphFlag:
		if flag.NArg() != 1 {
			flag.Usage()
			os.Exit(64)
		}
		if !analyzeGraph(ctx, session, flag.Arg(0), format) {
			os.Exit(70)
		}
	case flag.NArg() > 0:
		if !analyzeFiles(ctx, session, *dirFlag, flag.Args(), format) {
			os.Exit(70)
		}
	default:
		stop()
		r := repl.New(session, os.Stdout, os.Stderr)
		r.SetFormat(format)
		r.Run()
	}
}

// newLogger writes human-readable logs to stderr, coloured only when
// stderr is a terminal.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{
		Out:     os.Stderr,
		NoColor: !term.IsTerminal(int(os.Stderr.Fd())),
	}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func analyzeExpression(session *driver.Session, key, src string, format driver.Format) bool {
	rec, err := session.AnalyzeString(key, src)
	if err != nil {
		driver.DisplayError(os.Stderr, src, err)
		return false
	}
	return render(rec, format)
}

func analyzeFiles(ctx context.Context, session *driver.Session, dir string, patterns []string, format driver.Format) bool {
	fsys := os.DirFS(dir)
	results, err := session.AnalyzeFiles(ctx, fsys, patterns...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}

	ok := true
	for _, res := range results {
		if res.Err != nil {
			ok = false
			fmt.Fprintf(os.Stderr, "%s:\n", res.Key)
			content, _ := fs.ReadFile(fsys, res.Key)
			driver.DisplayError(os.Stderr, string(content), res.Err)
			continue
		}
		ok = render(res.Record, format) && ok
	}
	return ok
}

func analyzeGraph(ctx context.Context, session *driver.Session, specifier string, format driver.Format) bool {
	g, err := session.AnalyzeGraph(ctx, specifier)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	ok := true
	for _, key := range g.Keys {
		if rec, found := g.Records[key]; found {
			ok = render(rec, format) && ok
		}
	}
	for _, gerr := range g.Errors {
		fmt.Fprintf(os.Stderr, "Error: %v\n", gerr)
	}
	return ok && len(g.Errors) == 0
}

func render(rec *modules.Record, format driver.Format) bool {
	if err := driver.Render(os.Stdout, rec, format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	return true
}
