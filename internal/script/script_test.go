package script

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpasecinic/tamd"
	"github.com/danpasecinic/tamd/tamdtest"
)

const fullScenario = `
timeout: 100ms
steps:
  - define: config
    value: {port: 8080}
  - define: x
    value: 3
  - define: ./rel
    value: {}
  - define: server
    deps: [config]
  - alias: settings
    target: config
  - require: [server, settings]
  - require: [missing]
  - wait: 150ms
  - print: modules
  - validate: true
  - reinitialize: true
  - print: graph
`

func manualRunner(t *testing.T, s *Scenario) (*Runner, *tamdtest.TestRuntime, *bytes.Buffer) {
	t.Helper()

	tr := tamdtest.New(t, tamd.WithTimeout(s.Timeout))
	var out bytes.Buffer

	r := NewRunner(tr.Runtime, &out)
	r.Sleep = func(_ context.Context, d time.Duration) error {
		tr.Advance(d)
		return nil
	}
	r.Drain = func(context.Context) error {
		tr.Flush()
		return nil
	}
	return r, tr, &out
}

func TestParse(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(fullScenario))
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, s.Timeout)
	require.Len(t, s.Steps, 12)
	assert.Equal(t, "config", s.Steps[0].Define)
	assert.Equal(t, map[string]any{"port": 8080}, s.Steps[0].Value)
	assert.Equal(t, 3, s.Steps[1].Value)
	assert.Equal(t, []string{"config"}, s.Steps[3].Deps)
	assert.Equal(t, "config", s.Steps[4].Target)
	assert.Equal(t, []string{"server", "settings"}, s.Steps[5].Require)
	assert.Equal(t, 150*time.Millisecond, s.Steps[7].Wait)
	assert.True(t, s.Steps[10].Reinitialize)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "steps: []", "no steps"},
		{"two actions", "steps:\n  - define: a\n    require: [b]", "exactly one action"},
		{"no action", "steps:\n  - value: 3", "exactly one action"},
		{"alias without target", "steps:\n  - alias: a", "has no target"},
		{"unknown print", "steps:\n  - print: tree", "unknown print target"},
		{"unknown field", "steps:\n  - defne: a", "field defne not found"},
		{"bad duration", "steps:\n  - wait: soon", "parsing scenario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullScenario), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Steps, 12)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(fullScenario))
	require.NoError(t, err)

	r, tr, out := manualRunner(t, s)
	require.NoError(t, r.Run(t.Context(), s))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"resolved [server, settings] [map[config:map[port:8080]] map[port:8080]]",
		"config\tregistered",
		"x\tinvalid",
		"server\tregistered",
		"settings\tregistered",
		"validate: ok",
		"(empty runtime)",
	}, lines)

	tr.RequireReports(tamd.InvalidValue, "x")
	tr.RequireReports(tamd.InvalidIdentifier, "./rel")
	tr.RequireReports(tamd.MissingModule, "missing")
	assert.Equal(t, 0, tr.Size())
}

func TestRunner_DefineWithValue(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(`
steps:
  - define: b
    deps: [a]
    value: {ready: true}
  - define: a
    value: {}
  - print: modules
`))
	require.NoError(t, err)

	r, _, out := manualRunner(t, s)
	require.NoError(t, r.Run(t.Context(), s))

	assert.Equal(t, "a\tregistered\nb\tregistered\n", out.String())
}

func TestRunner_CanceledContext(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte("steps:\n  - define: a\n    value: {}"))
	require.NoError(t, err)

	r, tr, _ := manualRunner(t, s)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	assert.ErrorIs(t, r.Run(ctx, s), context.Canceled)
	tr.AssertNotHas("a")
}

func TestRunner_EventLoop(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(`
timeout: 20ms
steps:
  - require: [a, b]
  - define: b
    deps: [a]
  - define: a
    value: {n: 1}
  - wait: 10ms
  - print: dot
`))
	require.NoError(t, err)

	rt, err := tamd.New(
		tamd.WithTimeout(s.Timeout),
		tamd.WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	require.NoError(t, NewRunner(rt, &out).Run(ctx, s))
	assert.Contains(t, out.String(), "resolved [a, b] [map[n:1] map[a:map[n:1]]]")
	assert.Contains(t, out.String(), `"b" -> "a";`)
}
