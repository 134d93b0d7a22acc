package sessionstore_test

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/medisoc/portal-client/internal/sessionstore"
)

func openStore(t *testing.T, path string) *sessionstore.SQLiteStore {
	t.Helper()
	store, err := sessionstore.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	return store
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	store := openStore(t, path)

	rec := sessionstore.Record{
		PrincipalID: "M1",
		Token:       "tok",
		Profile:     map[string]any{"name": "Dr. Roe", "email": "roe@example.org"},
	}
	if err := store.Save("member", rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load("member")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || !reflect.DeepEqual(*got, rec) {
		t.Errorf("Load = %+v, want %+v", got, rec)
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	store := openStore(t, path)

	if err := store.Save("admin", sessionstore.Record{PrincipalID: "A1", Token: "t"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened := openStore(t, path)
	got, err := reopened.Load("admin")
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if got == nil || got.Token != "t" {
		t.Errorf("expected the session to survive a reopen, got %+v", got)
	}
}

func TestSQLiteRoleScoping(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "session.db"))

	if err := store.Save("admin", sessionstore.Record{PrincipalID: "A1", Token: "at"}); err != nil {
		t.Fatalf("Save admin: %v", err)
	}
	if err := store.Save("member", sessionstore.Record{PrincipalID: "M1", Token: "mt"}); err != nil {
		t.Fatalf("Save member: %v", err)
	}

	admin, _ := store.Load("admin")
	member, _ := store.Load("member")
	if admin == nil || admin.Token != "at" || member == nil || member.Token != "mt" {
		t.Errorf("role scoping broken: admin=%+v member=%+v", admin, member)
	}

	if err := store.Clear("admin"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if rec, _ := store.Load("admin"); rec != nil {
		t.Error("expected admin record to be gone")
	}
	if rec, _ := store.Load("member"); rec == nil {
		t.Error("clearing admin must not touch the member record")
	}
}

func TestLoadMissingReturnsNil(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "session.db"))
	rec, err := store.Load("member")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil for a missing record, got %+v", rec)
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "session.db"))

	store.Save("member", sessionstore.Record{PrincipalID: "M1", Token: "old"})
	if err := store.Save("member", sessionstore.Record{PrincipalID: "M1", Token: "new"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, _ := store.Load("member")
	if rec == nil || rec.Token != "new" {
		t.Errorf("expected the newer token, got %+v", rec)
	}
}
