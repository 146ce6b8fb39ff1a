package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/lifesync-hq/lifesync/internal/core"
)

type fakeSyncer struct {
	provider core.Provider
	result   *core.SyncResult
	panics   bool
	calls    int
}

func (f *fakeSyncer) Provider() core.Provider { return f.provider }

func (f *fakeSyncer) Sync(ctx context.Context, window core.Window) *core.SyncResult {
	f.calls++
	if f.panics {
		panic("provider blew up")
	}
	return f.result
}

func okSyncer(p core.Provider, created int) *fakeSyncer {
	r := core.NewSyncResult(p)
	r.Created = created
	return &fakeSyncer{provider: p, result: r}
}

func TestRunAggregatesAllProviders(t *testing.T) {
	a := okSyncer(core.ProviderWhoop, 3)
	b := okSyncer(core.ProviderToggl, 7)

	report := NewOrchestrator(a, b).Run(context.Background(), core.WindowForDays(30), "")

	if len(report.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(report.Results))
	}
	if report.Results[core.ProviderWhoop].Created != 3 {
		t.Errorf("whoop created = %d, want 3", report.Results[core.ProviderWhoop].Created)
	}
	if !report.AllSucceeded() {
		t.Error("AllSucceeded() = false, want true")
	}
	if report.FinishedAt.Before(report.StartedAt) {
		t.Error("FinishedAt before StartedAt")
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	failing := &fakeSyncer{
		provider: core.ProviderWithings,
		result:   core.FailedSyncResult(core.ProviderWithings, errors.New("boom")),
	}
	healthy := okSyncer(core.ProviderToggl, 1)

	report := NewOrchestrator(failing, healthy).Run(context.Background(), core.WindowForDays(30), "")

	if healthy.calls != 1 {
		t.Error("a failing provider should not stop the others")
	}
	if report.AllSucceeded() {
		t.Error("AllSucceeded() = true with a failed provider")
	}
	if report.Results[core.ProviderToggl].Created != 1 {
		t.Error("healthy provider's result lost")
	}
}

func TestRunRecoversPanics(t *testing.T) {
	panicking := &fakeSyncer{provider: core.ProviderWhoop, panics: true}
	healthy := okSyncer(core.ProviderCronometer, 2)

	report := NewOrchestrator(panicking, healthy).Run(context.Background(), core.WindowForDays(30), "")

	result := report.Results[core.ProviderWhoop]
	if result == nil || result.Succeeded {
		t.Fatalf("panicking provider result = %+v, want failure", result)
	}
	if healthy.calls != 1 {
		t.Error("panic in one provider should not stop the others")
	}
}

func TestRunOnlyFilter(t *testing.T) {
	a := okSyncer(core.ProviderWhoop, 1)
	b := okSyncer(core.ProviderToggl, 1)

	report := NewOrchestrator(a, b).Run(context.Background(), core.WindowForDays(30), core.ProviderToggl)

	if a.calls != 0 {
		t.Error("filtered-out provider was run")
	}
	if b.calls != 1 {
		t.Error("selected provider was not run")
	}
	if len(report.Results) != 1 {
		t.Errorf("got %d results, want 1", len(report.Results))
	}
}
