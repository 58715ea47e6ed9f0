package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"openhours/internal/metrics"
)

// WatchBusinesses loads the registry at path, hands it to onUpdate, then polls
// the file's mtime every interval and hands over each new valid version. The
// initial load must succeed. Later versions that fail to load are logged and
// counted, and the last good registry stays in effect until the file changes
// again.
func WatchBusinesses(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*BusinessesConfig)) error {
	if path == "" {
		path = "configs/businesses.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	cfg, err := LoadBusinesses(path)
	if err != nil {
		return err
	}
	onUpdate(cfg)

	l := logger.With().Str("component", "businesses_watch").Str("path", path).Logger()
	w := &businessesWatcher{path: path, onUpdate: onUpdate, logger: &l, lastMod: info.ModTime()}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll()
			}
		}
	}()

	return nil
}

type businessesWatcher struct {
	path     string
	onUpdate func(*BusinessesConfig)
	logger   *zerolog.Logger

	lastMod  time.Time
	statFail bool
}

func (w *businessesWatcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		if !w.statFail {
			metrics.IncConfigReload("error")
			w.logger.Warn().Err(err).Msg("businesses config unreadable, keeping current registry")
		}
		w.statFail = true
		return
	}
	w.statFail = false

	if !info.ModTime().After(w.lastMod) {
		return
	}
	// A rejected version is reported once, not on every poll.
	w.lastMod = info.ModTime()

	cfg, err := LoadBusinesses(w.path)
	if err != nil {
		metrics.IncConfigReload("error")
		w.logger.Error().Err(err).Msg("businesses config rejected, keeping current registry")
		return
	}
	metrics.IncConfigReload("ok")
	w.logger.Info().Int("businesses", len(cfg.Businesses)).Msg("businesses config reloaded")
	w.onUpdate(cfg)
}
