package orchestrator

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRepository is the durable Repository backend.
type SQLiteRepository struct {
	db   *sql.DB
	path string
}

// NewSQLiteRepository opens (or creates) the database at dbPath and ensures
// the schema exists. WAL mode keeps the single writer from blocking readers.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo := &SQLiteRepository{db: db, path: dbPath}
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return repo, nil
}

func (r *SQLiteRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rounds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		workspace TEXT NOT NULL,
		round_index INTEGER NOT NULL,
		request TEXT NOT NULL,
		script TEXT NOT NULL DEFAULT '',
		media_path TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rounds_workspace ON rounds(workspace);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

// CreateRound implements Repository.CreateRound. The MAX(round_index) read and
// the insert run in one transaction so index assignment is atomic per
// workspace.
func (r *SQLiteRepository) CreateRound(workspace WorkspaceID, request string) (Round, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return Round{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var index int
	err = tx.QueryRow(
		"SELECT COALESCE(MAX(round_index), -1) + 1 FROM rounds WHERE workspace = ?",
		string(workspace),
	).Scan(&index)
	if err != nil {
		return Round{}, fmt.Errorf("next index: %w", err)
	}

	createdAt := time.Now().UTC()
	res, err := tx.Exec(
		"INSERT INTO rounds (workspace, round_index, request, script, media_path, created_at) VALUES (?, ?, ?, '', '', ?)",
		string(workspace), index, request, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return Round{}, fmt.Errorf("insert round: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Round{}, fmt.Errorf("round id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Round{}, fmt.Errorf("commit: %w", err)
	}

	return Round{
		ID:        id,
		Workspace: workspace,
		Index:     index,
		Request:   request,
		CreatedAt: createdAt,
	}, nil
}

// UpdateRoundResult implements Repository.UpdateRoundResult.
func (r *SQLiteRepository) UpdateRoundResult(id int64, script, mediaPath string) error {
	res, err := r.db.Exec(
		"UPDATE rounds SET script = ?, media_path = ? WHERE id = ?",
		script, mediaPath, id,
	)
	if err != nil {
		return fmt.Errorf("update round: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoundNotFound
	}
	return nil
}

// DeleteRound implements Repository.DeleteRound.
func (r *SQLiteRepository) DeleteRound(id int64) error {
	res, err := r.db.Exec("DELETE FROM rounds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete round: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoundNotFound
	}
	return nil
}

// LatestScript implements Repository.LatestScript.
func (r *SQLiteRepository) LatestScript(workspace WorkspaceID) (string, error) {
	var script string
	err := r.db.QueryRow(
		"SELECT script FROM rounds WHERE workspace = ? AND script != '' ORDER BY round_index DESC LIMIT 1",
		string(workspace),
	).Scan(&script)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest script: %w", err)
	}
	return script, nil
}

// ListRounds implements Repository.ListRounds.
func (r *SQLiteRepository) ListRounds(workspace WorkspaceID) ([]Round, error) {
	rows, err := r.db.Query(
		"SELECT id, workspace, round_index, request, script, media_path, created_at FROM rounds WHERE workspace = ? ORDER BY round_index DESC",
		string(workspace),
	)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	out := make([]Round, 0)
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, round)
	}
	return out, rows.Err()
}

// CountRounds implements Repository.CountRounds.
func (r *SQLiteRepository) CountRounds(workspace WorkspaceID) (int, error) {
	var n int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM rounds WHERE workspace = ?", string(workspace),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rounds: %w", err)
	}
	return n, nil
}

// DeleteWorkspace implements Repository.DeleteWorkspace.
func (r *SQLiteRepository) DeleteWorkspace(workspace WorkspaceID) error {
	if _, err := r.db.Exec("DELETE FROM rounds WHERE workspace = ?", string(workspace)); err != nil {
		return fmt.Errorf("delete rounds: %w", err)
	}
	if _, err := r.db.Exec("DELETE FROM settings WHERE key LIKE ?", "%::"+string(workspace)); err != nil {
		return fmt.Errorf("delete settings: %w", err)
	}
	return nil
}

// GetSetting implements Repository.GetSetting.
func (r *SQLiteRepository) GetSetting(key, fallback string) (string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting implements Repository.SetSetting.
func (r *SQLiteRepository) SetSetting(key, value string) error {
	_, err := r.db.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// Close implements Repository.Close.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanRound(rows *sql.Rows) (Round, error) {
	var round Round
	var workspace, createdAt string
	if err := rows.Scan(&round.ID, &workspace, &round.Index, &round.Request, &round.Script, &round.MediaPath, &createdAt); err != nil {
		return Round{}, fmt.Errorf("scan round: %w", err)
	}
	round.Workspace = WorkspaceID(workspace)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		round.CreatedAt = t
	}
	return round, nil
}
