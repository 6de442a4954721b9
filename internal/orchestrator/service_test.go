package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"scene-orchestrator/internal/assembly"
	"scene-orchestrator/internal/generator"
	"scene-orchestrator/internal/renderer"
)

type fakeRenderer struct {
	mu      sync.Mutex
	results []renderer.Result
	err     error
	calls   int
	scripts []string
}

func (f *fakeRenderer) Render(_ context.Context, script, _ string) (renderer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script)
	call := f.calls
	f.calls++
	if f.err != nil {
		return renderer.Result{}, f.err
	}
	if call < len(f.results) {
		return f.results[call], nil
	}
	return renderer.Result{WholeVideo: "/out/render.mp4"}, nil
}

// slowGenerator blocks Generate until released, to hold a worker in flight.
type slowGenerator struct {
	release chan struct{}
}

func (g *slowGenerator) Name() string { return "slow" }

func (g *slowGenerator) Generate(context.Context, string, string) (string, error) {
	<-g.release
	return "from manim import *\n\nclass S(Scene):\n    def construct(self):\n        self.wait(1)\n", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(gen Generator, render Renderer) (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	svc := NewService(repo, gen, render, "/tmp/jobs", testLogger(), nil)
	return svc, repo
}

func TestService_first_round_success(t *testing.T) {
	render := &fakeRenderer{}
	svc, repo := newTestService(&generator.MockClient{}, render)

	round, err := svc.StartRound("ws", "draw a circle")
	if err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	if round.Index != 0 {
		t.Errorf("expected index 0, got %d", round.Index)
	}
	svc.Wait("ws")

	rounds, _ := repo.ListRounds("ws")
	if len(rounds) != 1 {
		t.Fatalf("expected 1 round, got %d", len(rounds))
	}
	if rounds[0].MediaPath != "/out/render.mp4" {
		t.Errorf("round 0 should resolve to the whole video, got %q", rounds[0].MediaPath)
	}
	if strings.Contains(rounds[0].Script, assembly.SectionDirective) {
		t.Error("first round script must not contain a section directive")
	}
	if !strings.Contains(render.scripts[0], "class GeneratedScene(Scene)") {
		t.Errorf("renderer should receive the assembled script, got %q", render.scripts[0])
	}
}

func TestService_second_round_resolves_section(t *testing.T) {
	render := &fakeRenderer{results: []renderer.Result{
		{WholeVideo: "/out/render.mp4"},
		{WholeVideo: "/out/render.mp4", SectionVideos: []string{"/s/0000.mp4", "/s/0001.mp4"}},
	}}
	svc, repo := newTestService(&generator.MockClient{}, render)

	_, _ = svc.StartRound("ws", "draw a circle")
	svc.Wait("ws")
	round, err := svc.StartRound("ws", "then a square")
	if err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	if round.Index != 1 {
		t.Errorf("expected index 1, got %d", round.Index)
	}
	svc.Wait("ws")

	rounds, _ := repo.ListRounds("ws")
	if rounds[0].MediaPath != "/s/0001.mp4" {
		t.Errorf("round 1 should resolve to its section, got %q", rounds[0].MediaPath)
	}
	if got := strings.Count(rounds[0].Script, assembly.SectionDirective); got != 1 {
		t.Errorf("expected exactly one directive after round 1, got %d", got)
	}
}

func TestService_rejects_concurrent_round_same_workspace(t *testing.T) {
	gen := &slowGenerator{release: make(chan struct{})}
	svc, _ := newTestService(gen, &fakeRenderer{})

	if _, err := svc.StartRound("ws", "first"); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	if _, err := svc.StartRound("ws", "second"); !errors.Is(err, ErrRoundInFlight) {
		t.Errorf("expected ErrRoundInFlight, got %v", err)
	}
	// A different workspace is not blocked.
	if _, err := svc.StartRound("other", "parallel"); err != nil {
		t.Errorf("other workspace should not be blocked: %v", err)
	}

	close(gen.release)
	svc.Wait("ws")
	svc.Wait("other")

	if _, err := svc.StartRound("ws", "after completion"); err != nil {
		t.Errorf("workspace should be free after worker finished: %v", err)
	}
	svc.Wait("ws")
}

func TestService_generation_failure_rolls_back_round(t *testing.T) {
	gen := &generator.MockClient{Err: errors.New("provider unreachable")}
	svc, repo := newTestService(gen, &fakeRenderer{})

	_, err := svc.StartRound("ws", "draw a circle")
	if err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	svc.Wait("ws")

	n, _ := repo.CountRounds("ws")
	if n != 0 {
		t.Errorf("failed round should be rolled back, got %d rounds", n)
	}
}

func TestService_assembly_failure_rolls_back_round(t *testing.T) {
	gen := &generator.MockClient{Responses: []string{"x = 1"}} // no Scene subclass
	svc, repo := newTestService(gen, &fakeRenderer{})

	_, _ = svc.StartRound("ws", "draw a circle")
	svc.Wait("ws")

	n, _ := repo.CountRounds("ws")
	if n != 0 {
		t.Errorf("assembly failure should roll the round back, got %d rounds", n)
	}
}

func TestService_render_failure_keeps_previous_state(t *testing.T) {
	render := &fakeRenderer{}
	svc, repo := newTestService(&generator.MockClient{}, render)
	_, _ = svc.StartRound("ws", "draw a circle")
	svc.Wait("ws")
	before, _ := repo.LatestScript("ws")

	render.mu.Lock()
	render.err = errors.New("manim exploded")
	render.mu.Unlock()

	_, _ = svc.StartRound("ws", "then a square")
	svc.Wait("ws")

	n, _ := repo.CountRounds("ws")
	if n != 1 {
		t.Errorf("failed round should be rolled back, got %d rounds", n)
	}
	after, _ := repo.LatestScript("ws")
	if after != before {
		t.Error("previous script must remain the latest valid state")
	}
}

func TestService_resolution_failure_keeps_script_without_media(t *testing.T) {
	// Round 1 renders fine but yields zero section videos.
	render := &fakeRenderer{results: []renderer.Result{
		{WholeVideo: "/out/render.mp4"},
		{WholeVideo: "/out/render.mp4"},
	}}
	svc, repo := newTestService(&generator.MockClient{}, render)

	_, _ = svc.StartRound("ws", "draw a circle")
	svc.Wait("ws")
	_, _ = svc.StartRound("ws", "then a square")
	svc.Wait("ws")

	rounds, _ := repo.ListRounds("ws")
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}
	if rounds[0].Script == "" {
		t.Error("rendered script should be kept despite resolution failure")
	}
	if rounds[0].MediaPath != "" {
		t.Errorf("expected no media path, got %q", rounds[0].MediaPath)
	}
}

func TestService_empty_request(t *testing.T) {
	svc, _ := newTestService(&generator.MockClient{}, &fakeRenderer{})
	if _, err := svc.StartRound("ws", "   "); !errors.Is(err, ErrEmptyRequest) {
		t.Errorf("expected ErrEmptyRequest, got %v", err)
	}
}

func TestService_reset_workspace_busy(t *testing.T) {
	gen := &slowGenerator{release: make(chan struct{})}
	svc, _ := newTestService(gen, &fakeRenderer{})

	_, _ = svc.StartRound("ws", "first")
	if err := svc.ResetWorkspace("ws"); !errors.Is(err, ErrRoundInFlight) {
		t.Errorf("expected ErrRoundInFlight, got %v", err)
	}

	close(gen.release)
	svc.Wait("ws")
	if err := svc.ResetWorkspace("ws"); err != nil {
		t.Errorf("reset after completion: %v", err)
	}
}
