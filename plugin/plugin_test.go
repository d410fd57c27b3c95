package plugin_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/lsfproject/lsf/plugin"
	"github.com/lsfproject/lsf/transport"
	"github.com/stretchr/testify/require"
)

type fakeAnalysis struct {
	name  string
	diags []transport.Diagnostic
	err   error
}

func (f fakeAnalysis) Name() string { return f.name }
func (f fakeAnalysis) Run(ctx context.Context, path string, content []byte) ([]transport.Diagnostic, error) {
	return f.diags, f.err
}

func TestManagerRunMergesDiagnosticsAcrossAnalyses(t *testing.T) {
	m := plugin.NewManager()
	m.Register(fakeAnalysis{name: "a", diags: []transport.Diagnostic{{Message: "from a"}}})
	m.Register(fakeAnalysis{name: "b", diags: []transport.Diagnostic{{Message: "from b"}}})

	diags, errs := m.Run(context.Background(), "/tmp/f.lang", nil)
	require.Empty(t, errs)
	require.Len(t, diags, 2)

	var messages []string
	for _, d := range diags {
		messages = append(messages, d.Message)
	}
	require.ElementsMatch(t, []string{"from a", "from b"}, messages)
}

func TestManagerRunKeepsSuccessesWhenOneAnalysisFails(t *testing.T) {
	m := plugin.NewManager()
	m.Register(fakeAnalysis{name: "good", diags: []transport.Diagnostic{{Message: "ok"}}})
	m.Register(fakeAnalysis{name: "bad", err: errors.New("boom")})

	diags, errs := m.Run(context.Background(), "/tmp/f.lang", nil)
	require.Len(t, diags, 1)
	require.Equal(t, "ok", diags[0].Message)
	require.Len(t, errs, 1)
}

func TestManagerKillCancelsInFlightRun(t *testing.T) {
	m := plugin.NewManager()

	started := make(chan struct{})
	m.Register(fakeAnalysis{name: "fast"})
	m.Register(blockingAnalysis{started: started})

	done := make(chan []error, 1)
	go func() {
		_, errs := m.Run(context.Background(), "/tmp/slow.lang", nil)
		done <- errs
	}()

	<-started
	m.Kill("/tmp/slow.lang")

	errs := <-done
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], context.Canceled)
}

type blockingAnalysis struct {
	started chan struct{}
}

func (blockingAnalysis) Name() string { return "blocking" }
func (b blockingAnalysis) Run(ctx context.Context, path string, content []byte) ([]transport.Diagnostic, error) {
	close(b.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSubprocessParsesFileLineMessagePattern(t *testing.T) {
	pattern := regexp.MustCompile(`(?P<file>[^:]+):(?P<line>\d+): ERROR: (?P<message>.*)`)
	sp := plugin.Subprocess{AnalyzerName: "fake", Pattern: pattern, Source: "fake"}

	// Exercises Subprocess.Run's exec+parse path against /bin/sh so the
	// pattern-to-diagnostic conversion runs against real process output
	// rather than calling the unexported parser directly.
	sp.Command = "/bin/sh"
	sp.Args = []string{"-c", "echo 'prog.lang:3: ERROR: missing semicolon' 1>&2; exit 1", "--"}

	diags, err := sp.Run(context.Background(), "ignored-trailing-arg", nil)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	require.Equal(t, "missing semicolon", diags[0].Message)
	require.Equal(t, uint32(2), diags[0].Range.Start.Line)
}
