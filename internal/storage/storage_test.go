package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
)

// testDB creates an in-memory database for testing
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// =============================================================================
// Credential store
// =============================================================================

func TestCredentialStore_GetNotFound(t *testing.T) {
	store := NewCredentialStore(testDB(t), nil)

	_, err := store.Get(core.ProviderWhoop)
	if !errors.Is(err, core.ErrCredentialNotFound) {
		t.Errorf("Get() error = %v, want ErrCredentialNotFound", err)
	}
}

func TestCredentialStore_BootstrapFallback(t *testing.T) {
	bootstrap := func(p core.Provider) *core.Credential {
		if p != core.ProviderWhoop {
			return nil
		}
		return &core.Credential{Provider: p, ClientID: "bootstrap-client"}
	}
	store := NewCredentialStore(testDB(t), bootstrap)

	cred, err := store.Get(core.ProviderWhoop)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cred.ClientID != "bootstrap-client" {
		t.Errorf("ClientID = %q, want bootstrap-client", cred.ClientID)
	}

	if _, err := store.Get(core.ProviderToggl); !errors.Is(err, core.ErrCredentialNotFound) {
		t.Errorf("Get(toggl) error = %v, want ErrCredentialNotFound", err)
	}
}

func TestCredentialStore_RowWinsOverBootstrap(t *testing.T) {
	bootstrap := func(p core.Provider) *core.Credential {
		return &core.Credential{Provider: p, ClientID: "bootstrap-client"}
	}
	store := NewCredentialStore(testDB(t), bootstrap)

	err := store.Save(&core.Credential{Provider: core.ProviderWhoop, ClientID: "persisted-client"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	cred, err := store.Get(core.ProviderWhoop)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cred.ClientID != "persisted-client" {
		t.Errorf("ClientID = %q, want persisted row to win", cred.ClientID)
	}
}

func TestCredentialStore_UpdateTokens(t *testing.T) {
	store := NewCredentialStore(testDB(t), nil)

	cred := &core.Credential{
		Provider:     core.ProviderWhoop,
		ClientID:     "client",
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
	}
	if err := store.Save(cred); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	before := time.Now()
	if err := store.UpdateTokens(cred, "new-access", "new-refresh", 3600); err != nil {
		t.Fatalf("UpdateTokens() error = %v", err)
	}

	got, err := store.Get(core.ProviderWhoop)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.AccessToken != "new-access" {
		t.Errorf("AccessToken = %q, want new-access", got.AccessToken)
	}
	if got.RefreshToken != "new-refresh" {
		t.Errorf("RefreshToken = %q, want new-refresh", got.RefreshToken)
	}
	if got.TokenExpiresAt == nil {
		t.Fatal("TokenExpiresAt is nil after refresh")
	}
	wantExpiry := before.Add(time.Hour)
	if got.TokenExpiresAt.Before(wantExpiry.Add(-time.Minute)) || got.TokenExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("TokenExpiresAt = %v, want about %v", got.TokenExpiresAt, wantExpiry)
	}
}

func TestCredentialStore_UpdateTokensKeepsRefreshWhenEmpty(t *testing.T) {
	store := NewCredentialStore(testDB(t), nil)

	cred := &core.Credential{Provider: core.ProviderWhoop, RefreshToken: "original-refresh"}
	if err := store.Save(cred); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Providers that do not rotate refresh tokens return only a new
	// access token.
	if err := store.UpdateTokens(cred, "new-access", "", 3600); err != nil {
		t.Fatalf("UpdateTokens() error = %v", err)
	}

	got, err := store.Get(core.ProviderWhoop)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.RefreshToken != "original-refresh" {
		t.Errorf("RefreshToken = %q, want original kept", got.RefreshToken)
	}
}

func TestCredentialStore_UpdateTokensInsertsBootstrapCredential(t *testing.T) {
	store := NewCredentialStore(testDB(t), nil)

	// Credential came from env bootstrap, no row exists yet.
	cred := &core.Credential{Provider: core.ProviderWithings, ClientID: "client"}
	if err := store.UpdateTokens(cred, "access", "refresh", 600); err != nil {
		t.Fatalf("UpdateTokens() error = %v", err)
	}

	exists, err := store.Exists(core.ProviderWithings)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("expected refresh to persist a row for a bootstrap credential")
	}
}

// =============================================================================
// Workout store
// =============================================================================

func testWorkout(sourceID string) *core.Workout {
	avg, max := 120, 165
	cal := 450.25
	return &core.Workout{
		Source:           core.ProviderWhoop,
		SourceID:         sourceID,
		Start:            time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC),
		End:              time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC),
		SportID:          1,
		AverageHeartRate: &avg,
		MaxHeartRate:     &max,
		CaloriesBurned:   &cal,
	}
}

func TestWorkoutStore_UpsertOutcomes(t *testing.T) {
	store := NewWorkoutStore(testDB(t))

	w := testWorkout("w-1")
	outcome, err := store.Upsert(w)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != core.UpsertCreated {
		t.Errorf("first upsert = %v, want created", outcome)
	}
	firstCreatedAt := w.CreatedAt

	// Same payload again: no write, unchanged.
	outcome, err = store.Upsert(testWorkout("w-1"))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != core.UpsertUnchanged {
		t.Errorf("identical upsert = %v, want unchanged", outcome)
	}

	// Changed payload: updated, created_at preserved.
	changed := testWorkout("w-1")
	cal := 500.0
	changed.CaloriesBurned = &cal
	outcome, err = store.Upsert(changed)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != core.UpsertUpdated {
		t.Errorf("changed upsert = %v, want updated", outcome)
	}

	got, err := store.GetBySourceID(core.ProviderWhoop, "w-1")
	if err != nil {
		t.Fatalf("GetBySourceID() error = %v", err)
	}
	if !got.CreatedAt.Equal(firstCreatedAt) {
		t.Errorf("CreatedAt = %v, want original %v preserved", got.CreatedAt, firstCreatedAt)
	}
	if got.CaloriesBurned == nil || *got.CaloriesBurned != 500.0 {
		t.Errorf("CaloriesBurned = %v, want 500", got.CaloriesBurned)
	}

	count, err := store.CountBySource(core.ProviderWhoop)
	if err != nil {
		t.Fatalf("CountBySource() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 row after three upserts", count)
	}
}

func TestWorkoutStore_SameSourceIDAcrossSources(t *testing.T) {
	store := NewWorkoutStore(testDB(t))

	w1 := testWorkout("shared-id")
	if _, err := store.Upsert(w1); err != nil {
		t.Fatal(err)
	}

	w2 := testWorkout("shared-id")
	w2.Source = core.SourceManual
	outcome, err := store.Upsert(w2)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != core.UpsertCreated {
		t.Errorf("outcome = %v, want created for a different source", outcome)
	}
}

func TestWorkoutStore_CreateManual(t *testing.T) {
	store := NewWorkoutStore(testDB(t))

	w := testWorkout("")
	if err := store.CreateManual(w); err != nil {
		t.Fatalf("CreateManual() error = %v", err)
	}
	if w.Source != core.SourceManual {
		t.Errorf("Source = %v, want Manual", w.Source)
	}
	if w.SourceID == "" {
		t.Error("expected generated source id")
	}

	count, err := store.CountBySource(core.SourceManual)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

// =============================================================================
// Weigh-in store
// =============================================================================

func TestWeighInStore_Upsert(t *testing.T) {
	store := NewWeighInStore(testDB(t))

	w := &core.WeighIn{
		Source:     core.ProviderWithings,
		SourceID:   "grp-1",
		MeasuredAt: time.Date(2026, 8, 15, 6, 30, 0, 0, time.UTC),
		WeightLbs:  180.25,
	}

	outcome, err := store.Upsert(w)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != core.UpsertCreated {
		t.Errorf("outcome = %v, want created", outcome)
	}

	w2 := *w
	w2.WeightLbs = 181.0
	outcome, err = store.Upsert(&w2)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != core.UpsertUpdated {
		t.Errorf("outcome = %v, want updated", outcome)
	}

	got, err := store.GetBySourceID(core.ProviderWithings, "grp-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.WeightLbs != 181.0 {
		t.Errorf("WeightLbs = %v, want 181", got.WeightLbs)
	}
}

// =============================================================================
// Time log store
// =============================================================================

func TestTimeLogStore_UpsertWithGoals(t *testing.T) {
	store := NewTimeLogStore(testDB(t))

	projectID := int64(42)
	entry := &core.TimeLog{
		Source:    core.ProviderToggl,
		SourceID:  "tl-1",
		Start:     time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC),
		ProjectID: &projectID,
		GoalIDs:   []string{"101", "102"},
	}

	outcome, err := store.Upsert(entry)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != core.UpsertCreated {
		t.Errorf("outcome = %v, want created", outcome)
	}

	got, err := store.GetBySourceID(core.ProviderToggl, "tl-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.GoalIDs) != 2 || got.GoalIDs[0] != "101" || got.GoalIDs[1] != "102" {
		t.Errorf("GoalIDs = %v, want [101 102]", got.GoalIDs)
	}
	if got.ProjectID == nil || *got.ProjectID != 42 {
		t.Errorf("ProjectID = %v, want 42", got.ProjectID)
	}
	if got.Duration() != 90*time.Minute {
		t.Errorf("Duration() = %v, want 90m", got.Duration())
	}

	// Same entry again is a no-op.
	second := *entry
	second.GoalIDs = []string{"101", "102"}
	outcome, err = store.Upsert(&second)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != core.UpsertUnchanged {
		t.Errorf("outcome = %v, want unchanged", outcome)
	}
}

func TestTimeLogStore_SaveGoalRenamesInPlace(t *testing.T) {
	store := NewTimeLogStore(testDB(t))

	if err := store.SaveGoal(&core.Goal{ID: "7", Name: "deep-work"}); err != nil {
		t.Fatal(err)
	}
	// The tag was renamed upstream; same id, new name.
	if err := store.SaveGoal(&core.Goal{ID: "7", Name: "focus"}); err != nil {
		t.Fatal(err)
	}

	var count int
	var name string
	if err := store.db.conn.QueryRow(`SELECT COUNT(*) FROM goals`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("goal rows = %d, want 1 after rename", count)
	}
	if err := store.db.conn.QueryRow(`SELECT name FROM goals WHERE id = '7'`).Scan(&name); err != nil {
		t.Fatal(err)
	}
	if name != "focus" {
		t.Errorf("name = %q, want focus", name)
	}
}

func TestTimeLogStore_SaveProject(t *testing.T) {
	store := NewTimeLogStore(testDB(t))

	if err := store.SaveProject(&core.Project{ID: 5, Name: "writing"}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveProject(&core.Project{ID: 5, Name: "writing-2026"}); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := store.db.conn.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("project rows = %d, want 1", count)
	}
}

// =============================================================================
// Nutrition store
// =============================================================================

func TestNutritionStore_UpsertKeyedByDate(t *testing.T) {
	store := NewNutritionStore(testDB(t))

	entry := &core.NutritionEntry{
		Source:     core.ProviderCronometer,
		SourceID:   "2026-08-20",
		ConsumedOn: "2026-08-20",
		Calories:   1850.5,
		Fat:        65.2,
		Carbs:      180.3,
		Protein:    120.1,
	}

	outcome, err := store.Upsert(entry)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != core.UpsertCreated {
		t.Errorf("outcome = %v, want created", outcome)
	}

	// The same day re-exported with a late-logged meal.
	revised := *entry
	revised.Calories = 2100.0
	outcome, err = store.Upsert(&revised)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != core.UpsertUpdated {
		t.Errorf("outcome = %v, want updated", outcome)
	}

	count, err := store.CountBySource(core.ProviderCronometer)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
