package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/jsonval"
	"github.com/hazyhaar/migverify/apidiff/snapshot"
	"github.com/hazyhaar/migverify/dbopen"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := New(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)))
	n := 0
	s.newID = func() string { n++; return fmt.Sprintf("snap_%d", n) }
	return s
}

func testSnapshot(label string, total int) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Label:      label,
		CapturedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Responses: []snapshot.CapturedResponse{{
			URL:        "https://app.example.com/api/sites?tenant=1",
			Method:     "GET",
			StatusCode: 200,
			Response:   jsonval.NewObject(jsonval.F("total", jsonval.Int(int64(total)))),
		}},
	}
}

func TestSnapshotCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	snap := testSnapshot("legacy", 12)
	m, err := s.SaveSnapshot(ctx, snap, "legacy.json")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if m.ID != "snap_1" || snap.ID != "snap_1" {
		t.Errorf("ID: got %q / %q, want snap_1", m.ID, snap.ID)
	}
	if m.Seq != 1 || m.Endpoints != 1 || m.Hash == "" {
		t.Errorf("meta: %+v", m)
	}
	if !m.CapturedTime().Equal(snap.CapturedAt) {
		t.Errorf("CapturedTime: got %v, want %v", m.CapturedTime(), snap.CapturedAt)
	}

	got, err := s.GetSnapshot(ctx, "snap_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Label != "legacy" || len(got.Responses) != 1 {
		t.Fatalf("got %+v", got)
	}
	if !jsonval.Equal(got.Responses[0].Response, snap.Responses[0].Response) {
		t.Errorf("payload: got %s", got.Responses[0].Response)
	}
	if got.Responses[0].Key() != "/api/sites" || got.Responses[0].StatusCode != 200 {
		t.Errorf("response: %+v", got.Responses[0])
	}
	if !got.CapturedAt.Equal(snap.CapturedAt) {
		t.Errorf("CapturedAt: got %v", got.CapturedAt)
	}
}

func TestGetSnapshot_NotFound(t *testing.T) {
	s := testStore(t)
	if _, err := s.GetSnapshot(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := s.LatestSnapshot(context.Background(), "legacy"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("latest: got %v, want ErrNotFound", err)
	}
}

func TestLatestAndList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i, label := range []string{"legacy", "migrated", "legacy", "migrated"} {
		if _, err := s.SaveSnapshot(ctx, testSnapshot(label, i), "test"); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := s.LatestSnapshot(ctx, "legacy")
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != "snap_3" {
		t.Errorf("latest legacy: got %s, want snap_3", latest.ID)
	}

	all, err := s.ListSnapshots(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].ID != "snap_4" || all[3].ID != "snap_1" {
		t.Errorf("list all: %+v", all)
	}

	migrated, err := s.ListSnapshots(ctx, "migrated", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(migrated) != 1 || migrated[0].ID != "snap_4" {
		t.Errorf("list migrated: %+v", migrated)
	}
}

func TestSnapshot_InvalidPayloadRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	snap := testSnapshot("legacy", 1)
	snap.Responses = append(snap.Responses, snapshot.CapturedResponse{
		URL:        "/api/report",
		StatusCode: 500,
		Response:   jsonval.InvalidValue("Internal Server Error"),
	})
	if _, err := s.SaveSnapshot(ctx, snap, "test"); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSnapshot(ctx, snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	r := got.Responses[1]
	if r.Response.Kind() != jsonval.Invalid || r.Response.Str() != "Internal Server Error" {
		t.Errorf("payload: kind %s, text %q", r.Response.Kind(), r.Response.Str())
	}
	if !jsonval.Equal(got.Responses[0].Response, snap.Responses[0].Response) {
		t.Errorf("valid payload changed: %s", got.Responses[0].Response)
	}
}

func TestSaveSnapshot_DuplicateID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	snap := testSnapshot("legacy", 1)
	snap.ID = "fixed"
	if _, err := s.SaveSnapshot(ctx, snap, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveSnapshot(ctx, snap, ""); err == nil {
		t.Fatal("expected unique constraint error")
	}
}

func testRun(id string, created int64, sev diffrec.Severity) *diffrec.Run {
	results := []diffrec.EndpointResult{{
		Endpoint: "/api/sites",
		Status:   diffrec.StatusDifferent,
		Severity: sev,
		Differences: []diffrec.Classified{{
			Record: diffrec.Record{
				Kind:     diffrec.ValueChanged,
				Path:     diffrec.Path{diffrec.Key("total")},
				OldValue: diffrec.Ref(jsonval.Int(1)),
				NewValue: diffrec.Ref(jsonval.Int(0)),
			},
			Severity: sev,
			Reason:   diffrec.ReasonZeroCrossing,
		}},
	}}
	return &diffrec.Run{
		ID:        id,
		BeforeID:  "snap_1",
		AfterID:   "snap_2",
		CreatedAt: created,
		Results:   results,
		Summary:   diffrec.Summarize(results),
	}
}

func TestRunCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, testRun("run_a", 1000, diffrec.Critical)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveRun(ctx, testRun("run_b", 2000, diffrec.Minor)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetRun(ctx, "run_a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Results) != 1 || len(got.Results[0].Differences) != 1 {
		t.Fatalf("results: %+v", got.Results)
	}
	d := got.Results[0].Differences[0]
	if d.Path.String() != "total" || d.Severity != diffrec.Critical || d.Reason != diffrec.ReasonZeroCrossing {
		t.Errorf("difference: %+v", d)
	}
	if !got.Summary.HasCritical() {
		t.Errorf("summary lost: %+v", got.Summary)
	}

	list, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "run_b" || list[1].Worst != diffrec.Critical {
		t.Errorf("list: %+v", list)
	}
	if list[1].Summary.Different != 1 {
		t.Errorf("list summary: %+v", list[1].Summary)
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSaveRun_Replace(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if err := s.SaveRun(ctx, testRun("run_a", 1000, diffrec.Critical)); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRun(ctx, testRun("run_a", 1000, diffrec.Minor)); err != nil {
		t.Fatal(err)
	}
	list, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Worst != diffrec.Minor {
		t.Errorf("list: %+v", list)
	}
}

func TestOpen_File(t *testing.T) {
	s, err := Open(t.TempDir() + "/sub/apidiff.db")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.SaveSnapshot(context.Background(), testSnapshot("x", 1), ""); err != nil {
		t.Fatal(err)
	}
}
