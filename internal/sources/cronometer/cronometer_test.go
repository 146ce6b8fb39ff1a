package cronometer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
	"github.com/lifesync-hq/lifesync/internal/storage"
	"github.com/lifesync-hq/lifesync/internal/testutil"
)

// fakeHelper writes an executable shell script standing in for the
// cronometer-export binary.
func fakeHelper(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cronometer-export")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("write fake helper: %v", err)
	}
	return path
}

func testCredential() *core.Credential {
	return &core.Credential{
		Provider: core.ProviderCronometer,
		Username: "user@example.com",
		Password: "secret",
	}
}

const validOutput = `[
  {"date": "2026-08-20", "calories": 1850.5, "fat": 65.2, "carbs": 180.3, "protein": 120.1},
  {"date": "2026-08-21", "calories": 2100.0, "fat": 70.0, "carbs": 200.0, "protein": 130.0}
]`

func TestExportParsesHelperOutput(t *testing.T) {
	helper := fakeHelper(t, `cat <<'JSON'
`+validOutput+`
JSON`)

	bridge := NewBridge(helper, time.Minute)
	records, err := bridge.Export(testutil.TestContext(t), testCredential(), core.WindowForDays(30))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if *records[0].Date != "2026-08-20" || *records[0].Calories != 1850.5 {
		t.Errorf("first record = %+v", records[0])
	}
}

func TestExportRejectsInvalidJSON(t *testing.T) {
	helper := fakeHelper(t, `echo "not json at all"`)

	bridge := NewBridge(helper, time.Minute)
	_, err := bridge.Export(testutil.TestContext(t), testCredential(), core.WindowForDays(30))
	if !errors.Is(err, core.ErrBadResponse) {
		t.Errorf("error = %v, want ErrBadResponse", err)
	}
}

func TestExportRejectsMissingField(t *testing.T) {
	// Second record has no protein; the whole batch is discarded.
	helper := fakeHelper(t, `cat <<'JSON'
[
  {"date": "2026-08-20", "calories": 1850.5, "fat": 65.2, "carbs": 180.3, "protein": 120.1},
  {"date": "2026-08-21", "calories": 2100.0, "fat": 70.0, "carbs": 200.0}
]
JSON`)

	bridge := NewBridge(helper, time.Minute)
	_, err := bridge.Export(testutil.TestContext(t), testCredential(), core.WindowForDays(30))
	if !errors.Is(err, core.ErrBadResponse) {
		t.Errorf("error = %v, want ErrBadResponse for missing field", err)
	}
}

func TestExportRejectsMalformedDate(t *testing.T) {
	helper := fakeHelper(t, `cat <<'JSON'
[{"date": "08/20/2026", "calories": 1850.5, "fat": 65.2, "carbs": 180.3, "protein": 120.1}]
JSON`)

	bridge := NewBridge(helper, time.Minute)
	_, err := bridge.Export(testutil.TestContext(t), testCredential(), core.WindowForDays(30))
	if !errors.Is(err, core.ErrBadResponse) {
		t.Errorf("error = %v, want ErrBadResponse for malformed date", err)
	}
}

func TestExportSurfacesHelperStderr(t *testing.T) {
	helper := fakeHelper(t, `echo "error: cronometer login failed" >&2
exit 1`)

	bridge := NewBridge(helper, time.Minute)
	_, err := bridge.Export(testutil.TestContext(t), testCredential(), core.WindowForDays(30))
	if !errors.Is(err, core.ErrBridgeFailed) {
		t.Fatalf("error = %v, want ErrBridgeFailed", err)
	}
	if !strings.Contains(err.Error(), "login failed") {
		t.Errorf("error %q should carry the helper's stderr", err)
	}
}

func TestExportTimesOut(t *testing.T) {
	helper := fakeHelper(t, `sleep 5`)

	bridge := NewBridge(helper, 100*time.Millisecond)
	_, err := bridge.Export(testutil.TestContext(t), testCredential(), core.WindowForDays(30))
	if !errors.Is(err, core.ErrBridgeTimeout) {
		t.Errorf("error = %v, want ErrBridgeTimeout", err)
	}
}

func TestMapNutritionEntrySkipsEmptyDays(t *testing.T) {
	zero := 0.0
	date := "2026-08-20"
	rec := DayRecord{Date: &date, Calories: &zero, Fat: &zero, Carbs: &zero, Protein: &zero}

	if _, ok := MapNutritionEntry(rec); ok {
		t.Error("expected all-zero day to be skipped")
	}

	cal := 1850.5
	rec.Calories = &cal
	entry, ok := MapNutritionEntry(rec)
	if !ok {
		t.Fatal("expected non-zero day to map")
	}
	if entry.SourceID != "2026-08-20" || entry.ConsumedOn != "2026-08-20" {
		t.Errorf("entry identity = %s/%s, want date as source id", entry.SourceID, entry.ConsumedOn)
	}
}

func TestSyncFailsWithoutCredential(t *testing.T) {
	db := testutil.TestDB(t)
	creds := storage.NewCredentialStore(db, nil)
	bridge := NewBridge("/nonexistent/helper", time.Minute)

	syncer := NewSyncer(bridge, creds, storage.NewNutritionStore(db))
	result := syncer.Sync(testutil.TestContext(t), core.WindowForDays(30))
	if result.Succeeded || !result.AuthError {
		t.Errorf("result = %+v, want auth failure without credentials", result)
	}
}

func TestSyncUpsertsDays(t *testing.T) {
	helper := fakeHelper(t, `cat <<'JSON'
`+validOutput+`
JSON`)

	db := testutil.TestDB(t)
	creds := storage.NewCredentialStore(db, nil)
	if err := creds.Save(testCredential()); err != nil {
		t.Fatal(err)
	}

	store := storage.NewNutritionStore(db)
	syncer := NewSyncer(NewBridge(helper, time.Minute), creds, store)

	result := syncer.Sync(testutil.TestContext(t), core.WindowForDays(30))
	if !result.Succeeded {
		t.Fatalf("sync failed: %s", result.ErrorMessage)
	}
	if result.Created != 2 {
		t.Errorf("created = %d, want 2", result.Created)
	}

	result = syncer.Sync(testutil.TestContext(t), core.WindowForDays(30))
	if result.Created != 0 || result.Skipped != 2 {
		t.Errorf("rerun = %d created %d skipped, want idempotent no-ops", result.Created, result.Skipped)
	}
}
