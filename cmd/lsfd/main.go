// Command lsfd is LSF's ambient CLI entry point: it wires a concrete
// tree-sitter grammar, a language definition and an optional external
// analyzer into the generic lspserver/workspace/plugin core. It is the
// Faust-flavored reference deployment the way the teacher's own main.go
// was a concrete Faust LSP — the core packages never import a grammar
// themselves (tsparser.New takes a caller-supplied tree_sitter.Language,
// per SPEC_FULL's DOMAIN STACK), this binary is where that seam closes.
//
// Replaces the teacher's main.go, which hardcoded stdin transport with
// a bare bufio.Scanner loop and a `// TODO: take port from cmd
// arguments` comment; those two concerns (transport selection, flags)
// become the --stdio/--socket and cobra-parsed options below.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_faust "github.com/khiner/tree-sitter-faust/bindings/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lsfproject/lsf/cst"
	"github.com/lsfproject/lsf/langdef"
	"github.com/lsfproject/lsf/logging"
	"github.com/lsfproject/lsf/lspserver"
	"github.com/lsfproject/lsf/plugin"
	"github.com/lsfproject/lsf/transport"
	"github.com/lsfproject/lsf/tsparser"
)

var (
	flagStdio        bool
	flagSocket       bool
	flagLangDef      string
	flagLogFile      string
	flagSourceExt    string
	flagAnalyzer     string
	flagAnalyzerArgs []string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsfd",
		Short: "LSF language server daemon",
		RunE:  run,
	}
	cmd.Flags().BoolVar(&flagStdio, "stdio", true, "communicate over stdin/stdout")
	cmd.Flags().BoolVar(&flagSocket, "socket", false, "communicate over a TCP socket instead of stdio")
	cmd.Flags().StringVar(&flagLangDef, "lang-def", "langdefs/faust.yaml", "path to the language definition YAML")
	cmd.Flags().StringVar(&flagLogFile, "log-file", "", "path to the zap log file (defaults to a temp-dir file)")
	cmd.Flags().StringVar(&flagSourceExt, "source-ext", ".dsp", "source file extension the workspace scans and watches")
	cmd.Flags().StringVar(&flagAnalyzer, "analyzer", "faust", "command run for external diagnostics (empty disables it)")
	cmd.Flags().StringSliceVar(&flagAnalyzerArgs, "analyzer-args", nil, "extra arguments passed to --analyzer before the file path")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logging.Init(flagLogFile)
	defer logging.Sync()

	doc, err := os.ReadFile(flagLangDef)
	if err != nil {
		return fmt.Errorf("reading language definition: %w", err)
	}
	ld, err := langdef.Parse(doc)
	if err != nil {
		return fmt.Errorf("parsing language definition: %w", err)
	}

	newParser := func() (cst.Parser, error) {
		return tsparser.New(tree_sitter.NewLanguage(tree_sitter_faust.Language()))
	}

	manager := plugin.NewManager()
	if flagAnalyzer != "" {
		manager.Register(plugin.Subprocess{
			AnalyzerName: flagAnalyzer,
			Command:      flagAnalyzer,
			Args:         flagAnalyzerArgs,
			Pattern:      regexp.MustCompile(`(?P<file>.+):(?P<line>[-\d]+)\s:\sERROR\s:\s(?P<message>.*)`),
			Source:       flagAnalyzer,
		})
	}

	s := lspserver.New(ld, newParser, flagSourceExt, manager)

	method := transport.Stdin
	if flagSocket {
		method = transport.Socket
	}
	s.Init(transport.TransportMethod(method))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logging.Logger.Info("lsfd starting", zap.String("langDef", flagLangDef), zap.String("sourceExt", flagSourceExt))
	return s.Run(ctx)
}
