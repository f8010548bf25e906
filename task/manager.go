package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog/log"

	"videotoolbox/config"
	"videotoolbox/ffmpeg"
	"videotoolbox/youtube"
)

// MediaRunner drives one ffmpeg invocation to completion, reporting percent
// progress through the callback.
type MediaRunner interface {
	Run(ctx context.Context, inputPath, outputPath string, opts []string, progress func(int)) error
}

// VideoProvider fetches remote video bytes to a local file.
type VideoProvider interface {
	Download(ctx context.Context, url string, itag int, outputPath string, progress func(int)) error
}

// Fixed user-facing failure messages. The underlying error is logged only,
// never put on the task record.
var failMessages = map[Kind]string{
	KindConvert:    "An error occurred during conversion.",
	KindTrim:       "An error occurred during trimming.",
	KindScreenshot: "An error occurred while capturing the screenshot.",
	KindCompress:   "An error occurred during compression.",
	KindDownload:   "An error occurred during the download.",
}

// Manager creates task records and runs their executors as detached
// goroutines. A submission returns the initial snapshot immediately; the
// only way to observe the outcome afterwards is polling the registry.
type Manager struct {
	cfg      *config.Config
	registry *Registry
	runner   MediaRunner
	provider VideoProvider

	mu      sync.Mutex
	baseCtx context.Context
	wg      sync.WaitGroup
}

func NewManager(cfg *config.Config, reg *Registry, runner MediaRunner, provider VideoProvider) *Manager {
	return &Manager{
		cfg:      cfg,
		registry: reg,
		runner:   runner,
		provider: provider,
		baseCtx:  context.Background(),
	}
}

// SetBaseContext sets the context executors run under. Intended to be set at
// startup and cancelled during shutdown; tasks are never cancelled
// individually.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// Wait blocks until all in-flight executors finish or ctx is done,
// reporting whether they all finished.
func (m *Manager) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// Get returns a snapshot of the task with the given kind and id.
func (m *Manager) Get(kind Kind, id string) (Task, bool) {
	return m.registry.Get(Key(kind, id))
}

// List returns snapshots of all tasks of the given kind, or of every kind
// when kind is empty.
func (m *Manager) List(kind Kind) []Task {
	prefix := ""
	if kind != "" {
		prefix = string(kind) + ":"
	}
	return m.registry.ListByPrefix(prefix)
}

// StartConvert registers a conversion task and launches its executor.
func (m *Manager) StartConvert(inputPath, outputFormat string) Task {
	t := m.newTask(KindConvert, func(t *Task) {
		t.InputFile = inputPath
		t.OutputFormat = outputFormat
	})
	outName := fmt.Sprintf("%s.%s", baseName(inputPath), outputFormat)
	abs, rel := m.outputPaths("outputs", outName)
	m.launch(t, StatusProcessing, inputPath, abs, rel, func(ctx context.Context, progress func(int)) error {
		return m.runner.Run(ctx, inputPath, abs, ffmpeg.ConvertArgs(outputFormat), progress)
	})
	return t
}

// StartTrim registers a trim task and launches its executor. Time bounds are
// validated by the facade before submission.
func (m *Manager) StartTrim(inputPath string, startTime, endTime float64, outputFormat string) Task {
	t := m.newTask(KindTrim, func(t *Task) {
		t.InputFile = inputPath
		t.StartTime = startTime
		t.EndTime = endTime
		t.OutputFormat = outputFormat
	})
	outName := fmt.Sprintf("trimmed-%s.%s", baseName(inputPath), outputFormat)
	abs, rel := m.outputPaths("outputs", outName)
	m.launch(t, StatusProcessing, inputPath, abs, rel, func(ctx context.Context, progress func(int)) error {
		return m.runner.Run(ctx, inputPath, abs, ffmpeg.TrimArgs(startTime, endTime, outputFormat), progress)
	})
	return t
}

// StartScreenshot registers a single-frame extraction task.
func (m *Manager) StartScreenshot(inputPath string, timestamp float64, format, quality string) Task {
	t := m.newTask(KindScreenshot, func(t *Task) {
		t.InputFile = inputPath
		t.Timestamp = timestamp
		t.ImageFormat = format
		t.Quality = quality
	})
	outName := fmt.Sprintf("screenshot-%s-%s.%s", baseName(inputPath), formatSeconds(timestamp), format)
	abs, rel := m.outputPaths("outputs", outName)
	m.launch(t, StatusProcessing, inputPath, abs, rel, func(ctx context.Context, progress func(int)) error {
		return m.runner.Run(ctx, inputPath, abs, ffmpeg.ScreenshotArgs(timestamp, format, quality), progress)
	})
	return t
}

// StartCompress registers a compression task. The output container is always
// mp4; the record additionally receives the output file size on completion.
func (m *Manager) StartCompress(inputPath, level, resolution string) Task {
	t := m.newTask(KindCompress, func(t *Task) {
		t.InputFile = inputPath
		t.CompressionLevel = level
		t.Resolution = resolution
	})
	outName := fmt.Sprintf("compressed-%s.mp4", baseName(inputPath))
	abs, rel := m.outputPaths("outputs", outName)
	m.launch(t, StatusProcessing, inputPath, abs, rel, func(ctx context.Context, progress func(int)) error {
		return m.runner.Run(ctx, inputPath, abs, ffmpeg.CompressArgs(level, resolution), progress)
	})
	return t
}

// StartDownload registers a remote-download task for the given source URL
// and previously selected encoding.
func (m *Manager) StartDownload(url string, encoding youtube.VideoFormat) Task {
	enc := encoding
	t := m.newTask(KindDownload, func(t *Task) {
		t.URL = url
		t.Encoding = &enc
	})
	container := encoding.Container
	if container == "" {
		container = "mp4"
	}
	outName := fmt.Sprintf("%s.%s", t.ID, container)
	abs, rel := m.outputPaths("downloads", outName)
	m.launch(t, StatusDownloading, "", abs, rel, func(ctx context.Context, progress func(int)) error {
		return m.provider.Download(ctx, url, encoding.Itag, abs, progress)
	})
	return t
}

func (m *Manager) newTask(kind Kind, fill func(*Task)) Task {
	t := &Task{
		ID:      shortuuid.New(),
		Kind:    kind,
		Status:  StatusPending,
		Created: time.Now(),
	}
	fill(t)
	m.registry.Set(Key(kind, t.ID), t)
	return *t
}

// launch runs the executor for t as a detached goroutine. All five kinds
// share this driver: transition to the active status, translate progress
// callbacks into registry updates, settle in exactly one terminal state, and
// remove the staged input on both paths. Nothing awaits the goroutine, so a
// panic is caught and mapped to the error state like any other failure.
func (m *Manager) launch(t Task, active Status, inputPath, outputAbs, outputRel string, run func(ctx context.Context, progress func(int)) error) {
	key := Key(t.Kind, t.ID)
	m.mu.Lock()
	ctx := m.baseCtx
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Str("task", key).Interface("panic", rec).Msg("executor panicked")
				m.fail(key, t.Kind, inputPath)
			}
		}()

		m.registry.Update(key, func(t *Task) {
			if t.Status.Terminal() {
				return
			}
			t.Status = active
			t.Progress = 0
		})
		log.Info().Str("task", key).Msg("executor started")

		if err := run(ctx, func(pct int) { m.reportProgress(key, pct) }); err != nil {
			log.Error().Str("task", key).Err(err).Msg("executor failed")
			m.fail(key, t.Kind, inputPath)
			return
		}

		var size int64
		if fi, err := os.Stat(outputAbs); err == nil {
			size = fi.Size()
		}
		m.registry.Update(key, func(t *Task) {
			if t.Status.Terminal() {
				return
			}
			t.Status = StatusCompleted
			t.Progress = 100
			t.OutputPath = outputRel
			if t.Kind == KindCompress {
				t.OutputSize = size
			}
		})
		removeIfExists(inputPath)
		log.Info().Str("task", key).Str("output", outputRel).Msg("executor completed")
	}()
}

// reportProgress clamps to [0,100] and writes the value into the record.
// Values arriving after a terminal transition are dropped.
func (m *Manager) reportProgress(key string, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	m.registry.Update(key, func(t *Task) {
		if t.Status.Terminal() {
			return
		}
		t.Progress = pct
	})
}

func (m *Manager) fail(key string, kind Kind, inputPath string) {
	m.registry.Update(key, func(t *Task) {
		if t.Status.Terminal() {
			return
		}
		t.Status = StatusError
		t.Error = failMessages[kind]
		t.OutputPath = ""
	})
	removeIfExists(inputPath)
}

// outputPaths returns the absolute artifact path and its web-relative form
// under the public uploads root.
func (m *Manager) outputPaths(area, name string) (abs, rel string) {
	abs = filepath.Join(m.cfg.PublicDir, area, name)
	rel = area + "/" + name
	return abs, rel
}

func baseName(p string) string {
	b := filepath.Base(p)
	return strings.TrimSuffix(b, filepath.Ext(b))
}

func formatSeconds(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

// removeIfExists deletes path, tolerating its absence. The reaper may have
// gotten there first.
func removeIfExists(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Str("path", path).Err(err).Msg("could not remove staged input")
	}
}
