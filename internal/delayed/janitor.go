package delayed

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"

	logx "markbot/pkg/logx"
)

// Janitor sweeps the shared attachments directory on a nightly cron
// schedule, deleting files that no pending record references (left
// behind by crashes between a file write and a record persist).
type Janitor struct {
	store *Store
	log   logx.Logger
	c     *cron.Cron
}

func NewJanitor(store *Store, log logx.Logger) *Janitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Janitor{store: store, log: log}
}

// Start schedules the nightly sweep. The cron runs in the store's
// timezone so "03:30" means local night.
func (j *Janitor) Start() error {
	j.c = cron.New(cron.WithLocation(j.store.cfg.Location))
	if _, err := j.c.AddFunc("30 3 * * *", j.Sweep); err != nil {
		return err
	}
	j.c.Start()
	return nil
}

func (j *Janitor) Stop() {
	if j.c != nil {
		<-j.c.Stop().Done()
	}
}

// Sweep removes orphaned attachment files. A file is live when its
// "<id>_" prefix matches a pending record that references its path.
func (j *Janitor) Sweep() {
	dir := j.store.AttachmentsDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		j.log.Warn("attachment sweep failed", logx.Err(err))
		return
	}

	live := map[string]bool{}
	for _, m := range j.store.List() {
		for _, att := range m.Attachments {
			live[filepath.Clean(att.FilePath)] = true
		}
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Clean(filepath.Join(dir, e.Name()))
		if live[path] {
			continue
		}
		// Only touch files following the "<id>_name" convention; anything
		// else in the directory is not ours to delete.
		id, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			continue
		}
		if _, err := strconv.Atoi(id); err != nil {
			continue
		}
		if err := os.Remove(path); err != nil {
			j.log.Warn("orphan removal failed", logx.String("path", path), logx.Err(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		j.log.Info("orphaned attachments removed", logx.Int("count", removed))
	}
}
