package tamd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpasecinic/tamd"
	"github.com/danpasecinic/tamd/tamdtest"
)

func TestScenarios(t *testing.T) {
	t.Parallel()

	t.Run("define then require", func(t *testing.T) {
		t.Parallel()

		tr := tamdtest.New(t)
		tr.Define("foo", map[string]any{})

		var got []any
		tr.Require([]string{"foo"}, func(values []any) { got = values })
		tr.Flush()

		assert.Equal(t, []any{map[string]any{}}, got)
		tr.Expire()
		tr.RequireNoReports()
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Parallel()

		tr := tamdtest.New(t)
		tr.Define("x", 3)

		require.Len(t, tr.Recorder.Reports(), 1)
		tr.RequireReports(tamd.InvalidValue, "x")
	})

	t.Run("relative identifier", func(t *testing.T) {
		t.Parallel()

		tr := tamdtest.New(t)
		tr.Define("./rel", map[string]any{})

		require.Len(t, tr.Recorder.Reports(), 1)
		tr.RequireReports(tamd.InvalidIdentifier, "./rel")
		tr.AssertNotHas("./rel")
	})

	t.Run("duplicate definition", func(t *testing.T) {
		t.Parallel()

		tr := tamdtest.New(t)
		tr.Define("dup", map[string]any{})
		tr.Define("dup", map[string]any{})

		require.Len(t, tr.Recorder.Reports(), 1)
		tr.RequireReports(tamd.DuplicateDefinition, "dup")
	})

	t.Run("missing module", func(t *testing.T) {
		t.Parallel()

		tr := tamdtest.New(t)
		called := false
		tr.Require([]string{"missing"}, func([]any) { called = true })
		tr.Expire()

		require.Len(t, tr.Recorder.Reports(), 1)
		tr.RequireReports(tamd.MissingModule, "missing")
		assert.False(t, called)
	})
}
