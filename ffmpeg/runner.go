package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"videotoolbox/config"
)

// Runner executes ffmpeg jobs. Progress is derived from the -progress
// key=value stream relative to the input duration reported by ffprobe.
type Runner struct {
	cfg       *config.Config
	extraArgs []string
}

func NewRunner(cfg *config.Config) (*Runner, error) {
	if _, err := exec.LookPath(cfg.FFBin); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found in PATH: %s", cfg.FFBin)
	}
	if _, err := exec.LookPath(cfg.FFProbeBin); err != nil {
		return nil, fmt.Errorf("ffprobe binary not found in PATH: %s", cfg.FFProbeBin)
	}

	extra, err := SplitExtraArgs(cfg.FFExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("invalid FF_EXTRA_ARGS: %w", err)
	}

	return &Runner{cfg: cfg, extraArgs: extra}, nil
}

// Run executes one ffmpeg invocation: input, the kind-specific output
// options, any operator-configured extra args, then the output path. A
// partial output file is removed on failure.
func (r *Runner) Run(ctx context.Context, inputPath, outputPath string, opts []string, progress func(int)) error {
	if err := r.checkResources(); err != nil {
		return fmt.Errorf("insufficient system resources: %w", err)
	}

	duration := r.probeDuration(ctx, inputPath)

	args := []string{"-y", "-hide_banner", "-nostats", "-loglevel", "error", "-progress", "pipe:1", "-i", inputPath}
	args = append(args, opts...)
	args = append(args, r.extraArgs...)
	args = append(args, outputPath)

	cmd := exec.CommandContext(ctx, r.cfg.FFBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	log.Debug().Str("input", inputPath).Strs("args", args).Msg("running ffmpeg")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "out_time_us="):
			if duration <= 0 || progress == nil {
				continue
			}
			us, err := strconv.ParseInt(strings.TrimPrefix(line, "out_time_us="), 10, 64)
			if err != nil {
				continue
			}
			elapsed := time.Duration(us) * time.Microsecond
			progress(int(float64(elapsed) / float64(duration) * 100))
		case line == "progress=end":
			if progress != nil {
				progress(100)
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.String(), 512))
	}
	return nil
}

// probeDuration asks ffprobe for the input duration. Zero means unknown; the
// job then runs without percentage updates.
func (r *Runner) probeDuration(ctx context.Context, inputPath string) time.Duration {
	cmd := exec.CommandContext(ctx, r.cfg.FFProbeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	out, err := cmd.Output()
	if err != nil {
		log.Warn().Str("input", inputPath).Err(err).Msg("ffprobe duration failed")
		return 0
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// checkResources refuses to start a job when the host is too loaded.
func (r *Runner) checkResources() error {
	p, err := cpu.Percent(time.Second, false)
	if err != nil {
		log.Warn().Err(err).Msg("could not read CPU usage")
	} else if len(p) > 0 && p[0] > (100.0-r.cfg.ThrottleCPU) {
		return fmt.Errorf("not enough idle CPU: usage %.2f%%, idle threshold %.2f%%", p[0], r.cfg.ThrottleCPU)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("could not read memory usage")
	} else if vm.Available < uint64(r.cfg.ThrottleFreeMem) {
		return fmt.Errorf("not enough free memory: available %d, required %d", vm.Available, r.cfg.ThrottleFreeMem)
	}

	d, err := disk.Usage(r.cfg.PublicDir)
	if err != nil {
		log.Warn().Str("dir", r.cfg.PublicDir).Err(err).Msg("could not read disk usage")
	} else if d.Free < uint64(r.cfg.ThrottleFreeDisk) {
		return fmt.Errorf("not enough free disk space: available %d, required %d", d.Free, r.cfg.ThrottleFreeDisk)
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
