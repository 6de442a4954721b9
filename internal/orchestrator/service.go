package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"scene-orchestrator/internal/assembly"
	"scene-orchestrator/internal/platform/metrics"
	"scene-orchestrator/internal/renderer"
)

var (
	// ErrRoundInFlight is returned when a round is started while a prior
	// worker for the same workspace is still running. One worker per
	// workspace keeps two assemblies from racing on the same previous
	// script.
	ErrRoundInFlight = errors.New("a round is already in flight for this workspace")

	// ErrEmptyRequest is returned for a blank request text.
	ErrEmptyRequest = errors.New("request text is empty")
)

// Generator produces a raw code fragment for one round.
type Generator interface {
	Generate(ctx context.Context, previous, request string) (string, error)
	Name() string
}

// Renderer turns a full script into a whole video plus section videos.
type Renderer interface {
	Render(ctx context.Context, script, jobDir string) (renderer.Result, error)
}

// Service runs the round lifecycle: read latest script, generate, assemble,
// render, resolve, persist. Generation and rendering happen on a worker
// goroutine; assembly itself is pure and synchronous.
type Service struct {
	repo    Repository
	gen     Generator
	render  Renderer
	jobsDir string
	log     *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	inFlight map[WorkspaceID]chan struct{}
}

// NewService wires the collaborators together. m may be nil to disable metric
// recording (e.g. in tests).
func NewService(repo Repository, gen Generator, render Renderer, jobsDir string, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:     repo,
		gen:      gen,
		render:   render,
		jobsDir:  jobsDir,
		log:      log,
		metrics:  m,
		inFlight: make(map[WorkspaceID]chan struct{}),
	}
}

// StartRound creates the round record and launches its worker. It returns
// immediately with the pending round; ErrRoundInFlight when the workspace is
// busy. The previous script is read exactly once, here, before the worker
// starts — the worker never re-reads shared state.
func (s *Service) StartRound(workspace WorkspaceID, request string) (Round, error) {
	if strings.TrimSpace(request) == "" {
		return Round{}, ErrEmptyRequest
	}

	s.mu.Lock()
	if _, busy := s.inFlight[workspace]; busy {
		s.mu.Unlock()
		return Round{}, ErrRoundInFlight
	}
	done := make(chan struct{})
	s.inFlight[workspace] = done
	s.mu.Unlock()

	previous, err := s.repo.LatestScript(workspace)
	if err != nil {
		s.finish(workspace, done)
		return Round{}, fmt.Errorf("read latest script: %w", err)
	}

	round, err := s.repo.CreateRound(workspace, request)
	if err != nil {
		s.finish(workspace, done)
		return Round{}, fmt.Errorf("create round: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncRoundsStarted()
	}
	go s.runRound(round, previous, done)
	return round, nil
}

// Wait blocks until the workspace's in-flight round, if any, has finished.
// There is no mid-flight cancellation; completion or failure are the only
// exits.
func (s *Service) Wait(workspace WorkspaceID) {
	s.mu.Lock()
	done := s.inFlight[workspace]
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// ActiveWorkers reports how many round workers are currently running.
func (s *Service) ActiveWorkers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// Rounds returns the workspace's round history, newest first.
func (s *Service) Rounds(workspace WorkspaceID) ([]Round, error) {
	return s.repo.ListRounds(workspace)
}

// LatestScript returns the workspace's current cumulative script.
func (s *Service) LatestScript(workspace WorkspaceID) (string, error) {
	return s.repo.LatestScript(workspace)
}

// ResetWorkspace deletes all rounds and workspace-scoped settings. Rejected
// while a round is in flight.
func (s *Service) ResetWorkspace(workspace WorkspaceID) error {
	s.mu.Lock()
	_, busy := s.inFlight[workspace]
	s.mu.Unlock()
	if busy {
		return ErrRoundInFlight
	}
	return s.repo.DeleteWorkspace(workspace)
}

func (s *Service) runRound(round Round, previous string, done chan struct{}) {
	defer s.finish(round.Workspace, done)

	ctx := context.Background()
	log := s.log.With(
		slog.String("workspace", string(round.Workspace)),
		slog.Int("round", round.Index),
	)

	log.Info("round started", slog.String("provider", s.gen.Name()))

	raw, err := s.gen.Generate(ctx, previous, round.Request)
	if err != nil {
		s.failRound(log, round, "generation failed", err)
		return
	}

	firstRound := strings.TrimSpace(previous) == ""
	script, err := assembly.Assemble(previous, raw, firstRound)
	if err != nil {
		s.failRound(log, round, "assembly failed", err)
		return
	}

	jobDir := filepath.Join(s.jobsDir, string(round.Workspace), fmt.Sprintf("round-%03d", round.Index))
	result, err := s.render.Render(ctx, script, jobDir)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncRenderFailures()
		}
		s.failRound(log, round, "render failed", err)
		return
	}
	if s.metrics != nil {
		s.metrics.IncRenders()
	}

	media, err := assembly.ResolveSegment(round.Index, result.SectionVideos, result.WholeVideo)
	if err != nil {
		// The script compiled and rendered; keep it as the workspace's
		// latest state even though this round has nothing to play.
		log.Warn("segment resolution failed",
			slog.Int("sections", len(result.SectionVideos)),
			slog.String("error", err.Error()))
		if uerr := s.repo.UpdateRoundResult(round.ID, script, ""); uerr != nil {
			log.Error("record round without media", slog.String("error", uerr.Error()))
		}
		return
	}
	if round.Index > 0 && round.Index >= len(result.SectionVideos) {
		// Clamped to the last section. Unverified whether the engine
		// legitimately merged trivial sections or undercounted.
		log.Warn("section count undershoot, clamped to last segment",
			slog.Int("sections", len(result.SectionVideos)))
	}

	if err := s.repo.UpdateRoundResult(round.ID, script, media); err != nil {
		s.failRound(log, round, "persist round result", err)
		return
	}

	log.Info("round completed",
		slog.String("media", media),
		slog.Int("sections", len(result.SectionVideos)))
}

// failRound logs the cause, rolls the round record back, and counts the
// failure. No partial script is ever persisted: the previous round's text
// stays the workspace's latest valid state.
func (s *Service) failRound(log *slog.Logger, round Round, msg string, err error) {
	log.Error(msg, slog.String("error", err.Error()))
	if derr := s.repo.DeleteRound(round.ID); derr != nil {
		log.Error("roll back round record", slog.String("error", derr.Error()))
	}
	if s.metrics != nil {
		s.metrics.IncRoundsFailed()
	}
}

func (s *Service) finish(workspace WorkspaceID, done chan struct{}) {
	s.mu.Lock()
	delete(s.inFlight, workspace)
	s.mu.Unlock()
	close(done)
}
