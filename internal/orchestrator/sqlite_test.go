package orchestrator

import (
	"path/filepath"
	"testing"
)

func newTestSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "rounds.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_round_lifecycle(t *testing.T) {
	repo := newTestSQLite(t)

	r0, err := repo.CreateRound("ws", "first")
	if err != nil {
		t.Fatalf("CreateRound: %v", err)
	}
	if r0.Index != 0 || r0.ID == 0 {
		t.Errorf("unexpected round %+v", r0)
	}

	r1, _ := repo.CreateRound("ws", "second")
	if r1.Index != 1 {
		t.Errorf("expected index 1, got %d", r1.Index)
	}

	if err := repo.UpdateRoundResult(r0.ID, "script v0", "/m/0.mp4"); err != nil {
		t.Fatalf("UpdateRoundResult: %v", err)
	}

	script, err := repo.LatestScript("ws")
	if err != nil {
		t.Fatalf("LatestScript: %v", err)
	}
	if script != "script v0" {
		t.Errorf("pending round 1 must not mask round 0's script, got %q", script)
	}

	rounds, err := repo.ListRounds("ws")
	if err != nil {
		t.Fatalf("ListRounds: %v", err)
	}
	if len(rounds) != 2 || rounds[0].Index != 1 || rounds[1].Index != 0 {
		t.Errorf("expected newest first, got %+v", rounds)
	}
	if rounds[1].Script != "script v0" || rounds[1].MediaPath != "/m/0.mp4" {
		t.Errorf("round 0 result not persisted: %+v", rounds[1])
	}
	if rounds[1].CreatedAt.IsZero() {
		t.Error("created_at should round-trip")
	}

	if err := repo.DeleteRound(r1.ID); err != nil {
		t.Fatalf("DeleteRound: %v", err)
	}
	r1b, _ := repo.CreateRound("ws", "retry")
	if r1b.Index != 1 {
		t.Errorf("index should be reused after rollback, got %d", r1b.Index)
	}
}

func TestSQLiteRepository_delete_workspace_and_settings(t *testing.T) {
	repo := newTestSQLite(t)

	_, _ = repo.CreateRound("ws", "a")
	_ = repo.SetSetting("quality::ws", "l")
	_ = repo.SetSetting("global", "x")

	if err := repo.DeleteWorkspace("ws"); err != nil {
		t.Fatalf("DeleteWorkspace: %v", err)
	}

	n, _ := repo.CountRounds("ws")
	if n != 0 {
		t.Errorf("expected no rounds, got %d", n)
	}
	if v, _ := repo.GetSetting("quality::ws", ""); v != "" {
		t.Errorf("scoped setting should be deleted, got %q", v)
	}
	if v, _ := repo.GetSetting("global", ""); v != "x" {
		t.Errorf("global setting should survive, got %q", v)
	}
}
