package orchestrator

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// Repository is the append-only per-workspace round log plus a small settings
// store. Implementations must assign round indices atomically per workspace:
// two rounds in the same workspace never receive the same index, and indices
// form a gap-free sequence starting at 0 as long as failed rounds are deleted.
type Repository interface {
	// CreateRound appends a round with the next free index for workspace.
	CreateRound(workspace WorkspaceID, request string) (Round, error)

	// UpdateRoundResult records the assembled script and resolved media
	// file for a completed round.
	UpdateRoundResult(id int64, script, mediaPath string) error

	// DeleteRound removes a round record, rolling back a failed worker.
	DeleteRound(id int64) error

	// LatestScript returns the most recent non-empty cumulative script for
	// workspace, or "" when the workspace has no successful round yet.
	LatestScript(workspace WorkspaceID) (string, error)

	// ListRounds returns the workspace's rounds, newest index first.
	ListRounds(workspace WorkspaceID) ([]Round, error)

	// CountRounds returns the number of rounds in the workspace.
	CountRounds(workspace WorkspaceID) (int, error)

	// DeleteWorkspace removes all rounds and workspace-scoped settings.
	DeleteWorkspace(workspace WorkspaceID) error

	// GetSetting returns the stored value for key, or fallback when unset.
	GetSetting(key, fallback string) (string, error)

	// SetSetting stores a key/value pair, overwriting any previous value.
	SetSetting(key, value string) error

	Close() error
}

// ErrRoundNotFound is returned when updating or deleting a round that does not
// exist.
var ErrRoundNotFound = errors.New("round not found")

// MemoryRepository is a concurrency-safe in-memory Repository, used in tests
// and as a throwaway backend.
type MemoryRepository struct {
	mu       sync.RWMutex
	nextID   int64
	rounds   map[int64]*Round
	settings map[string]string
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID:   1,
		rounds:   make(map[int64]*Round),
		settings: make(map[string]string),
	}
}

// CreateRound implements Repository.CreateRound. The mutex is held across the
// index scan and the insert, which is what makes assignment atomic.
func (r *MemoryRepository) CreateRound(workspace WorkspaceID, request string) (Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := 0
	for _, rd := range r.rounds {
		if rd.Workspace == workspace && rd.Index >= index {
			index = rd.Index + 1
		}
	}

	round := Round{
		ID:        r.nextID,
		Workspace: workspace,
		Index:     index,
		Request:   request,
		CreatedAt: time.Now().UTC(),
	}
	r.nextID++
	stored := round
	r.rounds[round.ID] = &stored
	return round, nil
}

// UpdateRoundResult implements Repository.UpdateRoundResult.
func (r *MemoryRepository) UpdateRoundResult(id int64, script, mediaPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	round, ok := r.rounds[id]
	if !ok {
		return ErrRoundNotFound
	}
	round.Script = script
	round.MediaPath = mediaPath
	return nil
}

// DeleteRound implements Repository.DeleteRound.
func (r *MemoryRepository) DeleteRound(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rounds[id]; !ok {
		return ErrRoundNotFound
	}
	delete(r.rounds, id)
	return nil
}

// LatestScript implements Repository.LatestScript.
func (r *MemoryRepository) LatestScript(workspace WorkspaceID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := -1
	script := ""
	for _, rd := range r.rounds {
		if rd.Workspace == workspace && rd.Script != "" && rd.Index > latest {
			latest = rd.Index
			script = rd.Script
		}
	}
	return script, nil
}

// ListRounds implements Repository.ListRounds.
func (r *MemoryRepository) ListRounds(workspace WorkspaceID) ([]Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Round, 0)
	for _, rd := range r.rounds {
		if rd.Workspace == workspace {
			out = append(out, *rd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index > out[j].Index })
	return out, nil
}

// CountRounds implements Repository.CountRounds.
func (r *MemoryRepository) CountRounds(workspace WorkspaceID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rd := range r.rounds {
		if rd.Workspace == workspace {
			n++
		}
	}
	return n, nil
}

// DeleteWorkspace implements Repository.DeleteWorkspace. Workspace-scoped
// settings use a "::<workspace>" key suffix.
func (r *MemoryRepository) DeleteWorkspace(workspace WorkspaceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rd := range r.rounds {
		if rd.Workspace == workspace {
			delete(r.rounds, id)
		}
	}
	for key := range r.settings {
		if strings.HasSuffix(key, "::"+string(workspace)) {
			delete(r.settings, key)
		}
	}
	return nil
}

// GetSetting implements Repository.GetSetting.
func (r *MemoryRepository) GetSetting(key, fallback string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if v, ok := r.settings[key]; ok {
		return v, nil
	}
	return fallback, nil
}

// SetSetting implements Repository.SetSetting.
func (r *MemoryRepository) SetSetting(key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[key] = value
	return nil
}

// Close implements Repository.Close.
func (r *MemoryRepository) Close() error { return nil }
