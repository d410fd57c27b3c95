// Package plugin implements spec §4.9's "polymorphism over analyses":
// external diagnostic providers dispatched through one uniform
// operation rather than a Go type hierarchy per analyzer. Grounded on
// the teacher's server/compiler.go (getCompilerDiagnostics/
// parseFileError/parseError, a single hardcoded "faust" subprocess
// with two baked-in regexes), generalized into a declarative Subprocess
// analysis so a new external linter is a value, not a new Go file, plus
// a Manager that runs every registered analysis concurrently and merges
// results the way spec §9 asks for ("a uniform operation ... invoked
// for each registered analysis").
package plugin

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lsfproject/lsf/lsferr"
	"github.com/lsfproject/lsf/transport"
)

// Analysis is the uniform shape every diagnostic provider implements:
// given a file's path and current content, produce diagnostics. The
// source's provider interface becomes this single method instead of a
// per-analyzer Go interface.
type Analysis interface {
	Name() string
	Run(ctx context.Context, path string, content []byte) ([]transport.Diagnostic, error)
}

// Subprocess is an Analysis backed by an external command (spec §1
// "the plugin runner that shells out to external linters", an external
// collaborator named but not specified). It replaces the teacher's
// compiled-in Faust invocation with data: Command/Args/Dir describe how
// to invoke the tool, and Pattern's named capture groups describe how
// to read its output back into diagnostics (line and message are read;
// a file group, if present, is matched but not used), generalizing parseFileError/parseError's two
// hardcoded regexes into one configurable one.
type Subprocess struct {
	AnalyzerName string
	Command      string
	Args         []string
	Dir          string
	Pattern      *regexp.Regexp
	Source       string
}

func (s Subprocess) Name() string { return s.AnalyzerName }

// Run shells out to Command, appending path as the final argument. A
// zero exit returns no diagnostics without reading the output; after a
// non-zero exit, every matching line of combined stdout+stderr becomes
// a Diagnostic. A non-zero exit with no matching output still returns
// successfully with zero diagnostics — only a failure to start or run
// the process itself (spec §7 SubprocessError) is returned as an error.
func (s Subprocess) Run(ctx context.Context, path string, content []byte) ([]transport.Diagnostic, error) {
	args := append(append([]string{}, s.Args...), path)
	cmd := exec.CommandContext(ctx, s.Command, args...)
	if s.Dir != "" {
		cmd.Dir = s.Dir
	}

	var out strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	if ctx.Err() != nil {
		// Killed by Manager.Kill or workspace close (spec §5); not a
		// diagnosable subprocess failure.
		return nil, ctx.Err()
	}
	if runErr == nil {
		return nil, nil
	}
	if _, ok := runErr.(*exec.ExitError); !ok {
		return nil, lsferr.Wrap(lsferr.SubprocessError, "running "+s.AnalyzerName, runErr)
	}

	return s.parse(out.String()), nil
}

func (s Subprocess) parse(output string) []transport.Diagnostic {
	var diags []transport.Diagnostic
	names := s.Pattern.SubexpNames()

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		m := s.Pattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		var line int
		var message string
		for i, name := range names {
			switch name {
			case "line":
				if n, err := strconv.Atoi(m[i]); err == nil {
					line = n
				}
			case "message":
				message = m[i]
			}
		}
		if line > 0 {
			line--
		}
		diags = append(diags, transport.Diagnostic{
			Range: transport.Range{
				Start: transport.Position{Line: uint32(line), Character: 0},
				End:   transport.Position{Line: uint32(line), Character: ^uint32(0) >> 1},
			},
			Severity: transport.Error,
			Source:   s.Source,
			Message:  message,
		})
	}
	return diags
}

// Manager dispatches every registered Analysis concurrently against a
// file and merges the results; a failing analysis is reported
// alongside the others' successes instead of aborting the batch (spec
// §7 "SubprocessError is reported to the client as a generic
// notification; it never crashes the server").
type Manager struct {
	mu       sync.Mutex
	analyses []Analysis
	cancel   map[string]context.CancelFunc
}

// NewManager returns a Manager with no registered analyses.
func NewManager() *Manager {
	return &Manager{cancel: map[string]context.CancelFunc{}}
}

// Register adds an analysis to the dispatch table.
func (m *Manager) Register(a Analysis) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = append(m.analyses, a)
}

// Run invokes every registered analysis against path/content
// concurrently via errgroup, one goroutine per analysis with no limit,
// the way filegraph's cross-file resolution pass fans out. It returns the merged diagnostics from every
// analysis that succeeded and the errors from every one that didn't;
// the caller (lspserver) is expected to still publish the successful
// diagnostics and separately notify the client about the failures.
func (m *Manager) Run(ctx context.Context, path string, content []byte) ([]transport.Diagnostic, []error) {
	m.mu.Lock()
	analyses := append([]Analysis{}, m.analyses...)
	m.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel[path] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.cancel, path)
		m.mu.Unlock()
	}()

	var mu sync.Mutex
	var diags []transport.Diagnostic
	var errs []error

	grp, gctx := errgroup.WithContext(runCtx)
	for _, a := range analyses {
		a := a
		grp.Go(func() error {
			d, err := a.Run(gctx, path, content)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			diags = append(diags, d...)
			return nil
		})
	}
	grp.Wait()

	return diags, errs
}

// Kill cancels any in-flight Run for path (spec §5 "the plugin manager
// may kill a child on workspace close").
func (m *Manager) Kill(path string) {
	m.mu.Lock()
	cancel, ok := m.cancel[path]
	m.mu.Unlock()
	if ok {
		cancel()
	}
}
