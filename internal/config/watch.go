package config

import (
	"context"
	"os"
	"time"
)

// DefaultWatchInterval is how often Watch checks the config file
const DefaultWatchInterval = 2 * time.Second

// Watch polls path and calls onChange with the reloaded config whenever the
// file's modification time or size changes. A file that fails to load is
// reported through onChange with a nil config; the caller keeps its current
// configuration. Watch returns when ctx is done.
func Watch(ctx context.Context, path string, interval time.Duration, onChange func(*Config, error)) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	last := fileStamp(path)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := fileStamp(path)
			if current == last {
				continue
			}
			last = current
			if current.missing {
				continue
			}
			cfg, err := LoadConfig(path)
			onChange(cfg, err)
		}
	}
}

type stamp struct {
	modTime time.Time
	size    int64
	missing bool
}

func fileStamp(path string) stamp {
	info, err := os.Stat(path)
	if err != nil {
		return stamp{missing: true}
	}
	return stamp{modTime: info.ModTime(), size: info.Size()}
}
