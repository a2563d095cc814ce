package cache

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

func nowUnix() int64 { return time.Now().Unix() }

// Sweeper prunes the file cache on a schedule. The lookup cache expires
// lazily and needs no sweeping; only on-disk data benefits from a periodic
// pass that removes aged entries and orphaned files.
type Sweeper struct {
	cron   *cron.Cron
	files  *FileCache
	maxAge time.Duration
	logger *log.Logger
}

// NewSweeper schedules a prune of fc on the given cron schedule (e.g.
// "@every 30m"). Entries older than maxAge are removed; zero maxAge keeps
// everything but orphans.
func NewSweeper(fc *FileCache, schedule string, maxAge time.Duration, logger *log.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "sweeper"})
	}
	s := &Sweeper{
		cron:   cron.New(),
		files:  fc,
		maxAge: maxAge,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop cancels the schedule. Safe to call once at shutdown.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

func (s *Sweeper) sweep() {
	removed := s.files.Prune(int64(s.maxAge / time.Second))
	if removed > 0 {
		s.logger.Info("cache sweep", "removed", removed, "remaining", s.files.Len())
	}
}
