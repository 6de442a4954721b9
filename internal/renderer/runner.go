// Package renderer invokes the Manim CLI out of process to turn a full scene
// script into a whole video plus per-section videos. The orchestrator treats
// any failure here as a round failure; the timeout is enforced locally via
// context.
package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"scene-orchestrator/internal/assembly"
)

// Default render settings, matching Manim's 1080p30 "k" quality profile.
const (
	DefaultBin     = "manim"
	DefaultQuality = "k"
	DefaultWidth   = 1920
	DefaultHeight  = 1080
	DefaultFPS     = 30
	DefaultTimeout = 10 * time.Minute
)

// ErrNoOutput is returned when Manim exits cleanly but no rendered video can
// be found under the job directory.
var ErrNoOutput = errors.New("no rendered video found")

// Settings configures the Manim invocation.
type Settings struct {
	Bin     string
	Quality string
	Width   int
	Height  int
	FPS     int
	Timeout time.Duration
}

// Result is the output of one render pass.
type Result struct {
	// WholeVideo is the complete scene video.
	WholeVideo string
	// ScriptPath is where the script was written for this pass.
	ScriptPath string
	// SceneClass is the rendered Scene subclass name.
	SceneClass string
	// SectionVideos are the per-section files produced by --save_sections,
	// sorted by base name. Lexicographic name order matching section order
	// is a contract with Manim's section naming scheme.
	SectionVideos []string
}

// Runner renders scripts with a fixed configuration.
type Runner struct {
	settings Settings
	log      *slog.Logger
}

// NewRunner returns a Runner; zero-valued settings fields get defaults.
func NewRunner(settings Settings, log *slog.Logger) *Runner {
	if settings.Bin == "" {
		settings.Bin = DefaultBin
	}
	if settings.Quality == "" {
		settings.Quality = DefaultQuality
	}
	if settings.Width <= 0 {
		settings.Width = DefaultWidth
	}
	if settings.Height <= 0 {
		settings.Height = DefaultHeight
	}
	if settings.FPS <= 0 {
		settings.FPS = DefaultFPS
	}
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}
	return &Runner{settings: settings, log: log}
}

// Render writes script into jobDir and runs Manim over it.
func (r *Runner) Render(ctx context.Context, script, jobDir string) (Result, error) {
	sceneClass, err := assembly.SceneClass(script)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create job dir: %w", err)
	}
	scriptPath := filepath.Join(jobDir, "scene.py")
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		return Result{}, fmt.Errorf("write script: %w", err)
	}

	args := r.commandArgs(scriptPath, sceneClass, jobDir)
	r.log.Debug("render command",
		slog.String("bin", r.settings.Bin),
		slog.String("args", strings.Join(args, " ")))

	ctx, cancel := context.WithTimeout(ctx, r.settings.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.settings.Bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("render timed out after %s", r.settings.Timeout)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return Result{}, fmt.Errorf("render failed: %s: %w", detail, err)
	}

	whole, err := findWholeVideo(jobDir)
	if err != nil {
		return Result{}, err
	}

	return Result{
		WholeVideo:    whole,
		ScriptPath:    scriptPath,
		SceneClass:    sceneClass,
		SectionVideos: findSectionVideos(jobDir),
	}, nil
}

// commandArgs builds the Manim command line, with --save_sections so every
// next_section() call yields a separate output file.
func (r *Runner) commandArgs(scriptPath, sceneClass, mediaDir string) []string {
	return []string{
		"-q", r.settings.Quality,
		"-r", fmt.Sprintf("%d,%d", r.settings.Width, r.settings.Height),
		"--fps", fmt.Sprintf("%d", r.settings.FPS),
		"--format", "mp4",
		"--media_dir", mediaDir,
		"--save_sections",
		scriptPath,
		sceneClass,
	}
}

// findWholeVideo locates the complete scene video under dir: render.mp4 when
// present, otherwise any mp4, newest modification time winning.
func findWholeVideo(dir string) (string, error) {
	candidates := globRecursive(dir, "render.mp4")
	if len(candidates) == 0 {
		candidates = globRecursive(dir, "*.mp4")
	}
	if len(candidates) == 0 {
		return "", ErrNoOutput
	}

	latest := candidates[0]
	latestMod := modTime(latest)
	for _, c := range candidates[1:] {
		if m := modTime(c); m.After(latestMod) {
			latest = c
			latestMod = m
		}
	}
	return latest, nil
}

// findSectionVideos collects the per-section files Manim writes under
// videos/<script>/<quality>/sections, sorted by base name.
func findSectionVideos(dir string) []string {
	matches, err := filepath.Glob(filepath.Join(dir, "videos", "*", "*", "sections", "*.mp4"))
	if err != nil || len(matches) == 0 {
		return nil
	}
	sort.Slice(matches, func(i, j int) bool {
		return filepath.Base(matches[i]) < filepath.Base(matches[j])
	})
	return matches
}

func globRecursive(dir, pattern string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			out = append(out, path)
		}
		return nil
	})
	return out
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
