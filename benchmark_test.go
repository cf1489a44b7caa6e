package tamd_test

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/danpasecinic/tamd"
	"github.com/danpasecinic/tamd/tamdtest"
)

func benchmarkRuntime(b *testing.B) (*tamd.Runtime, *tamdtest.Host) {
	b.Helper()

	h := tamdtest.NewHost()
	rt, err := tamd.New(
		tamd.WithHost(h),
		tamd.WithSink(tamd.SinkFunc(func(tamd.Report) {})),
		tamd.WithLogger(slog.New(slog.DiscardHandler)),
	)
	if err != nil {
		b.Fatal(err)
	}
	return rt, h
}

func benchmarkNames(n int) []string {
	names := make([]string, n)
	for i := range n {
		names[i] = fmt.Sprintf("module/%03d", i)
	}
	return names
}

func BenchmarkDefine_10Modules(b *testing.B) {
	benchmarkDefine(b, 10)
}

func BenchmarkDefine_100Modules(b *testing.B) {
	benchmarkDefine(b, 100)
}

func benchmarkDefine(b *testing.B, n int) {
	names := benchmarkNames(n)
	rt, h := benchmarkRuntime(b)
	value := map[string]any{}

	b.ReportAllocs()
	for b.Loop() {
		for _, name := range names {
			rt.Define(name, value)
		}
		rt.Reinitialize()
		h.Flush()
	}
}

func BenchmarkRequire_Resolved_10Names(b *testing.B) {
	names := benchmarkNames(10)
	rt, h := benchmarkRuntime(b)
	for _, name := range names {
		rt.Define(name, map[string]any{})
	}

	b.ReportAllocs()
	for b.Loop() {
		rt.Require(names, func([]any) {})
		h.Flush()
	}
}

func BenchmarkRequire_Pending_10Names(b *testing.B) {
	names := benchmarkNames(10)
	rt, h := benchmarkRuntime(b)
	value := map[string]any{}

	b.ReportAllocs()
	for b.Loop() {
		rt.Require(names, func([]any) {})
		for i := len(names) - 1; i >= 0; i-- {
			rt.Define(names[i], value)
		}
		h.Flush()
		rt.Reinitialize()
		h.Flush()
	}
}

func BenchmarkDefineWith_Chain_50(b *testing.B) {
	names := benchmarkNames(50)
	rt, h := benchmarkRuntime(b)

	b.ReportAllocs()
	for b.Loop() {
		for i := len(names) - 1; i > 0; i-- {
			rt.DefineWith(names[i], []string{names[i-1]}, func(prev any) any { return prev })
		}
		rt.Define(names[0], map[string]any{})
		h.Flush()
		rt.Reinitialize()
		h.Flush()
	}
}
