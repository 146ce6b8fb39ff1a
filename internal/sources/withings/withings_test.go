package withings

import (
	"testing"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
	"github.com/lifesync-hq/lifesync/internal/storage"
	"github.com/lifesync-hq/lifesync/internal/testutil"
	"github.com/lifesync-hq/lifesync/internal/testutil/mockservers"
)

func newTestAuth(t *testing.T, db *storage.DB, mock *mockservers.WithingsMockServer) (*Authenticator, *storage.CredentialStore) {
	t.Helper()

	creds := storage.NewCredentialStore(db, nil)
	expiry := time.Now().Add(time.Hour)
	err := creds.Save(&core.Credential{
		Provider:       core.ProviderWithings,
		ClientID:       "client",
		ClientSecret:   "secret",
		AccessToken:    "valid-token",
		RefreshToken:   "stored-refresh",
		TokenExpiresAt: &expiry,
	})
	if err != nil {
		t.Fatalf("save credential: %v", err)
	}

	auth := NewAuthenticator(creds)
	auth.tokenURL = mock.Server.URL + "/v2/oauth2"
	return auth, creds
}

func newTestClient(auth *Authenticator, mock *mockservers.WithingsMockServer) *Client {
	c := NewClient(auth)
	c.baseURL = mock.Server.URL
	return c
}

func rawGroup(grpID int64, date int64, value int64, unit int) map[string]any {
	return map[string]any{
		"grpid": grpID,
		"date":  date,
		"measures": []map[string]any{
			{"value": value, "type": 1, "unit": unit},
		},
	}
}

func TestMapWeighIn(t *testing.T) {
	// 80500 * 10^-3 = 80.5 kg = 177.47 lbs.
	raw := MeasureGroup{
		GrpID: 12345,
		Date:  1755241800,
		Measures: []Measure{
			{Value: 80500, Type: measTypeWeight, Unit: -3},
		},
	}

	w, ok := MapWeighIn(raw)
	if !ok {
		t.Fatal("MapWeighIn() returned false for a valid group")
	}
	if w.SourceID != "12345" {
		t.Errorf("SourceID = %q, want 12345", w.SourceID)
	}
	if w.WeightLbs != 177.47 {
		t.Errorf("WeightLbs = %v, want 177.47", w.WeightLbs)
	}
	if !w.MeasuredAt.Equal(time.Unix(1755241800, 0).UTC()) {
		t.Errorf("MeasuredAt = %v", w.MeasuredAt)
	}
}

func TestMapWeighInSkips(t *testing.T) {
	cases := []struct {
		name string
		raw  MeasureGroup
	}{
		{"missing grpid", MeasureGroup{Date: 1755241800, Measures: []Measure{{Value: 80500, Type: 1, Unit: -3}}}},
		{"missing date", MeasureGroup{GrpID: 1, Measures: []Measure{{Value: 80500, Type: 1, Unit: -3}}}},
		{"no weight measure", MeasureGroup{GrpID: 1, Date: 1755241800, Measures: []Measure{{Value: 60, Type: 11, Unit: 0}}}},
		{"empty measures", MeasureGroup{GrpID: 1, Date: 1755241800}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := MapWeighIn(tc.raw); ok {
				t.Error("expected group to be skipped")
			}
		})
	}
}

func TestFetchMeasurementsFollowsOffset(t *testing.T) {
	mock := mockservers.NewWithingsMockServer(t)
	mock.PageSize = 2
	for i := int64(1); i <= 5; i++ {
		mock.Groups = append(mock.Groups, rawGroup(i, 1755241800+i*86400, 80000+i*100, -3))
	}

	db := testutil.TestDB(t)
	auth, _ := newTestAuth(t, db, mock)
	client := newTestClient(auth, mock)

	groups, err := client.FetchMeasurements(testutil.TestContext(t), core.WindowForDays(30))
	if err != nil {
		t.Fatalf("FetchMeasurements() error = %v", err)
	}
	if len(groups) != 5 {
		t.Fatalf("got %d groups across pages, want 5", len(groups))
	}
	if groups[0].GrpID != 1 || groups[4].GrpID != 5 {
		t.Errorf("groups out of order: first %d last %d", groups[0].GrpID, groups[4].GrpID)
	}
}

func TestFetchMeasurementsEnvelopeRateLimit(t *testing.T) {
	mock := mockservers.NewWithingsMockServer(t)
	mock.EnvelopeStatus = 601

	db := testutil.TestDB(t)
	auth, _ := newTestAuth(t, db, mock)
	client := newTestClient(auth, mock)

	_, err := client.FetchMeasurements(testutil.TestContext(t), core.WindowForDays(30))
	if !core.IsTransient(err) {
		t.Errorf("error = %v, want rate limit classified transient", err)
	}
}

func TestFetchMeasurementsEnvelopeAuthError(t *testing.T) {
	mock := mockservers.NewWithingsMockServer(t)
	mock.EnvelopeStatus = 401

	db := testutil.TestDB(t)
	auth, _ := newTestAuth(t, db, mock)
	client := newTestClient(auth, mock)

	// The client refreshes once and retries; the mock keeps saying
	// 401, so the run ends as an auth error.
	_, err := client.FetchMeasurements(testutil.TestContext(t), core.WindowForDays(30))
	if !core.IsAuthError(err) {
		t.Errorf("error = %v, want auth error after failed retry", err)
	}
	if mock.TokenRequests != 1 {
		t.Errorf("token endpoint hit %d times, want exactly 1 retry", mock.TokenRequests)
	}
}

func TestSyncUpsertsWeighIns(t *testing.T) {
	mock := mockservers.NewWithingsMockServer(t)
	mock.Groups = []map[string]any{
		rawGroup(1, 1755241800, 80500, -3),
		rawGroup(2, 1755328200, 80300, -3),
		// A blood pressure only group, no weight measure.
		{"grpid": 3, "date": 1755414600, "measures": []map[string]any{{"value": 120, "type": 9, "unit": 0}}},
	}

	db := testutil.TestDB(t)
	auth, _ := newTestAuth(t, db, mock)
	syncer := NewSyncer(newTestClient(auth, mock), storage.NewWeighInStore(db))

	result := syncer.Sync(testutil.TestContext(t), core.WindowForDays(30))
	if !result.Succeeded {
		t.Fatalf("sync failed: %s", result.ErrorMessage)
	}
	if result.Created != 2 || result.Skipped != 1 {
		t.Errorf("counts = %d created %d skipped, want 2/1", result.Created, result.Skipped)
	}

	result = syncer.Sync(testutil.TestContext(t), core.WindowForDays(30))
	if result.Created != 0 || result.Updated != 0 || result.Skipped != 3 {
		t.Errorf("rerun counts = %d/%d/%d, want all no-ops", result.Created, result.Updated, result.Skipped)
	}
}
