package task

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Reaper evicts expired task records and sweeps the staging, downloads and
// outputs directories for files older than the retention window. One sweep
// runs immediately at startup to cover files left over from a previous
// process lifetime, then the loop repeats on a fixed interval.
type Reaper struct {
	registry  *Registry
	dirs      []string
	retention time.Duration
	interval  time.Duration
}

func NewReaper(reg *Registry, dirs []string, retention, interval time.Duration) *Reaper {
	return &Reaper{
		registry:  reg,
		dirs:      dirs,
		retention: retention,
		interval:  interval,
	}
}

// Start launches the sweep loop. It returns immediately; the loop runs until
// ctx is done.
func (r *Reaper) Start(ctx context.Context) {
	go func() {
		r.Sweep()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("reaper shutting down")
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

// Sweep runs one full pass over the storage areas and the registry.
func (r *Reaper) Sweep() {
	cutoff := time.Now().Add(-r.retention)
	for _, dir := range r.dirs {
		r.sweepDir(dir, cutoff)
	}
	if removed := r.registry.Expire(cutoff); removed > 0 {
		log.Info().Int("removed", removed).Msg("expired task records evicted")
	}
}

// sweepDir deletes regular files in dir whose mtime is older than cutoff.
// Each entry is guarded independently; one failure never aborts the rest of
// the sweep.
func (r *Reaper) sweepDir(dir string, cutoff time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Str("dir", dir).Err(err).Msg("sweep: read dir failed")
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Warn().Str("dir", dir).Str("file", entry.Name()).Err(err).Msg("sweep: stat failed")
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Str("path", path).Err(err).Msg("sweep: remove failed")
			continue
		}
		log.Info().Str("path", path).Msg("expired file removed")
	}
}
