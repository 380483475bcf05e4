package resource_test

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/stufflebeam/orbeon-forms/pkg/resource"
)

func TestInstrumentCountsResults(t *testing.T) {
	factory, err := resource.NewEmbeddedFactory(fstest.MapFS{"a.txt": {Data: []byte("a")}}, nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	reg := prometheus.NewRegistry()
	metrics := resource.NewMetrics(reg)
	manager := resource.Instrument(factory.MakeInstance(), "embedded", metrics)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := manager.Content(ctx, "a.txt"); err != nil {
			t.Fatalf("Content: %v", err)
		}
	}
	if _, err := manager.Content(ctx, "b.txt"); !resource.IsNotFound(err) {
		t.Fatalf("Content(b.txt) error = %v, want not found", err)
	}
	failing := resource.Instrument(failingManager{err: errors.New("boom")}, "broken", metrics)
	if _, err := failing.Content(ctx, "a.txt"); err == nil {
		t.Fatal("expected error from failing manager")
	}

	checks := []struct {
		manager, result string
		want            float64
	}{
		{"embedded", resource.ResultHit, 2},
		{"embedded", resource.ResultNotFound, 1},
		{"broken", resource.ResultError, 1},
	}
	for _, check := range checks {
		got := testutil.ToFloat64(metrics.Lookups.WithLabelValues(check.manager, check.result))
		if got != check.want {
			t.Errorf("lookups{%s,%s} = %v, want %v", check.manager, check.result, got, check.want)
		}
	}
	if count := testutil.CollectAndCount(metrics.Duration); count != 2 {
		t.Errorf("duration series = %d, want 2", count)
	}
}

func TestNewMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := resource.NewMetrics(reg)
	second := resource.NewMetrics(reg)
	if first.Lookups != second.Lookups || first.Duration != second.Duration {
		t.Fatal("second NewMetrics did not reuse the registered collectors")
	}

	second.Lookups.WithLabelValues("webapp", resource.ResultHit).Inc()
	if got := testutil.ToFloat64(first.Lookups.WithLabelValues("webapp", resource.ResultHit)); got != 1 {
		t.Fatalf("shared counter = %v, want 1", got)
	}
	if count, err := testutil.GatherAndCount(reg, "formproc_resource_lookups_total"); err != nil || count != 1 {
		t.Fatalf("gathered series = %d, %v, want 1", count, err)
	}
}

func TestNewMetricsPanicsOnConflictingCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "formproc_resource_lookups_total",
		Help: "Conflicting collector.",
	}))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for a conflicting collector")
		}
	}()
	resource.NewMetrics(reg)
}

func TestFSAdapter(t *testing.T) {
	factory, err := resource.NewEmbeddedFactory(fstest.MapFS{
		"controls/input.tpl": {Data: []byte("<input>")},
	}, nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	files := resource.FS(context.Background(), factory.MakeInstance())

	data, err := fs.ReadFile(files, "controls/input.tpl")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "<input>" {
		t.Fatalf("ReadFile = %q, want <input>", data)
	}

	file, err := files.Open("controls/input.tpl")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	info, err := file.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Name() != "input.tpl" || info.Size() != 7 {
		t.Errorf("Stat = %s/%d, want input.tpl/7", info.Name(), info.Size())
	}
	_ = file.Close()

	if _, err := fs.ReadFile(files, "controls/missing.tpl"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing error = %v, want fs.ErrNotExist", err)
	}
	if _, err := files.Open("../escape"); !errors.Is(err, fs.ErrInvalid) {
		t.Errorf("invalid path error = %v, want fs.ErrInvalid", err)
	}
}
