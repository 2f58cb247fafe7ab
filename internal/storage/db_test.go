package storage

import (
	"path/filepath"
	"testing"
	"time"

	"milesync/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "milesync.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestConsent(t *testing.T) {
	db := openTestDB(t)

	ok, err := db.HasConsent("c1")
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if err := db.SetConsent("c1", true); err != nil {
		t.Fatal(err)
	}
	if ok, _ := db.HasConsent("c1"); !ok {
		t.Fatal("expected consent")
	}
	if err := db.SetConsent("c1", false); err != nil {
		t.Fatal(err)
	}
	if ok, _ := db.HasConsent("c1"); ok {
		t.Fatal("expected consent withdrawn")
	}
}

func TestSessionExpiry(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }

	if err := db.PutSession("c1", "tok", time.Hour); err != nil {
		t.Fatal(err)
	}
	if ok, err := db.SessionValid("c1", "tok"); err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if ok, _ := db.SessionValid("c1", "other"); ok {
		t.Fatal("token mismatch must not validate")
	}
	if ok, _ := db.SessionValid("c1", ""); ok {
		t.Fatal("empty token must not validate")
	}

	now = now.Add(2 * time.Hour)
	if ok, _ := db.SessionValid("c1", "tok"); ok {
		t.Fatal("session should have expired")
	}

	if err := db.PutSession("c1", "tok2", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteSession("c1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := db.SessionValid("c1", "tok2"); ok {
		t.Fatal("session should be gone")
	}
}

func TestSyncs(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }

	last, err := db.LastSyncAt("c1", "LATAM")
	if err != nil || last != nil {
		t.Fatalf("last=%v err=%v", last, err)
	}

	data := internal.DetectedData{Program: "LATAM", ProgramName: "LATAM Pass", Balance: 89000, RawText: "89.000", Confidence: internal.ConfidenceHigh, Score: 145, CapturedAt: now.Format(time.RFC3339), URL: "https://latampass.latam.com"}
	rec, err := db.InsertSync("c1", data)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID == 0 || rec.Balance != 89000 || rec.Confidence != "high" {
		t.Fatalf("rec=%+v", rec)
	}

	now = now.Add(time.Minute)
	data.Balance = 90000
	if _, err := db.InsertSync("c1", data); err != nil {
		t.Fatal(err)
	}
	data.Program = "SMILES"
	if _, err := db.InsertSync("c2", data); err != nil {
		t.Fatal(err)
	}

	last, err = db.LastSyncAt("c1", "LATAM")
	if err != nil || last == nil || !last.Equal(now) {
		t.Fatalf("last=%v err=%v", last, err)
	}

	mine, err := db.ListSyncs("c1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 || mine[0].Balance != 90000 {
		t.Fatalf("mine=%+v", mine)
	}
	all, err := db.ListSyncs("", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("all=%d", len(all))
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	if v, err := db.GetMetadata("k"); err != nil || v != nil {
		t.Fatalf("v=%v err=%v", v, err)
	}
	if err := db.SetMetadata("k", "1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("k", "2"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetMetadata("k"); v == nil || *v != "2" {
		t.Fatalf("v=%v", v)
	}
}
