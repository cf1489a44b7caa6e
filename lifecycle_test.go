package tamd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpasecinic/tamd"
	"github.com/danpasecinic/tamd/tamdtest"
)

func TestReinitialize_ClearsModules(t *testing.T) {
	t.Parallel()

	tr := tamdtest.New(t)
	tr.Define("a", &Config{})
	tr.Define("b", 3)

	c := tr.Reinitialize()

	assert.Equal(t, 0, tr.Size())
	tr.AssertNotHas("a")
	assert.Empty(t, tr.Names())

	select {
	case <-c.Done():
		t.Fatal("completion settled before the host ran")
	default:
	}

	tr.Flush()
	<-c.Done()
	assert.NoError(t, c.Err())
	assert.NoError(t, c.Wait(t.Context()))
}

func TestReinitialize_DiscardsPendingRequests(t *testing.T) {
	t.Parallel()

	tr := tamdtest.New(t)

	called := false
	q := tr.Require([]string{"a"}, func([]any) { called = true })

	tr.Reinitialize()
	assert.True(t, tamd.IsReinitialized(q.Err()))
	assert.Equal(t, 0, tr.Pending())

	tr.Define("a", &Config{})
	tr.Flush()
	assert.False(t, called)
}

func TestReinitialize_DiscardsQueuedContinuations(t *testing.T) {
	t.Parallel()

	tr := tamdtest.New(t)
	tr.Define("a", &Config{})

	called := false
	q := tr.Require([]string{"a"}, func([]any) { called = true })

	tr.Reinitialize()
	tr.Flush()

	assert.False(t, called)
	_, err := q.Wait(t.Context())
	assert.ErrorIs(t, err, tamd.ErrReinitialized)
}

func TestReinitialize_CancelsTimers(t *testing.T) {
	t.Parallel()

	tr := tamdtest.New(t)
	tr.Require([]string{"missing"}, nil)
	tr.Require([]string{"other"}, nil)

	tr.Reinitialize()
	_, timers := tr.Host.Pending()
	assert.Equal(t, 0, timers)

	tr.Expire()
	tr.RequireNoReports()
}

func TestReinitialize_BehavesLikeFresh(t *testing.T) {
	t.Parallel()

	tr := tamdtest.New(t)
	tr.Define("dup", &Config{Port: 1})
	tr.DefineWith("deferred", []string{"never"}, &Config{})
	tr.Require([]string{"ghost"}, nil)

	tr.Reinitialize()
	tr.Flush()

	second := &Config{Port: 2}
	tr.Define("dup", second)
	tr.Define("deferred", &Config{})
	tr.RequireNoReports()

	assert.Same(t, second, tamdtest.MustLookup[*Config](tr, "dup"))
	assert.Equal(t, []string{"dup", "deferred"}, tr.Names())
	tr.RequireValidate()

	tr.Require([]string{"missing"}, nil)
	tr.Expire()
	tr.RequireReports(tamd.MissingModule, "missing")
}

func TestReinitialize_DropsDeferredDefinitions(t *testing.T) {
	t.Parallel()

	tr := tamdtest.New(t)
	called := false
	tr.DefineWith("b", []string{"a"}, func(any) *Config {
		called = true
		return &Config{}
	})

	tr.Reinitialize()
	tr.Define("a", &Config{})
	tr.Flush()

	assert.False(t, called)
	tr.AssertNotHas("b")
}

func TestReinitialize_OnEmptyRuntime(t *testing.T) {
	t.Parallel()

	tr := tamdtest.New(t)

	first := tr.Reinitialize()
	second := tr.Reinitialize()
	tr.Flush()

	assert.NoError(t, first.Err())
	assert.NoError(t, second.Err())
	assert.Equal(t, 0, tr.Size())
}

func TestCompletion_Then(t *testing.T) {
	t.Parallel()

	tr := tamdtest.New(t)
	c := tr.Reinitialize()

	var order []string
	c.Then(func() { order = append(order, "first") }).
		Then(func() { order = append(order, "second") })
	assert.Empty(t, order)

	tr.Flush()
	assert.Equal(t, []string{"first", "second"}, order)

	c.Then(func() { order = append(order, "late") })
	assert.Len(t, order, 2, "Then on a settled completion still runs on the host")

	tr.Flush()
	assert.Equal(t, []string{"first", "second", "late"}, order)
}

func TestCompletion_ThenSeesEmptyRuntime(t *testing.T) {
	t.Parallel()

	tr := tamdtest.New(t)
	tr.Define("a", &Config{})

	var size int
	tr.Reinitialize().Then(func() {
		size = tr.Size()
		tr.Define("a", &Config{})
	})
	tr.Flush()

	assert.Equal(t, 0, size)
	tr.AssertHas("a")
	tr.RequireNoReports()
}

func TestReinitialize_AfterClose(t *testing.T) {
	t.Parallel()

	tr := tamdtest.New(t)
	require.NoError(t, tr.Close(t.Context()))

	c := tr.Reinitialize()
	<-c.Done()
	assert.True(t, tamd.IsClosed(c.Err()))

	ran := false
	c.Then(func() { ran = true })
	tr.Flush()
	assert.True(t, ran)
}
