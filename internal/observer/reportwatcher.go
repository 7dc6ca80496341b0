// Package observer watches a directory for JUnit report files
package observer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const defaultDebounce = 500 * time.Millisecond

// ReportWatcher emits the paths of report files that are created or rewritten
// in a directory. Bursts of writes to the same file are collapsed into one path.
type ReportWatcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	ext      string
	debounce time.Duration
	files    chan string
	log      *logrus.Entry
}

// NewReportWatcher starts watching dir for *.xml files. A nil logger discards
// watcher errors.
func NewReportWatcher(dir string, logger *logrus.Logger) (*ReportWatcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &ReportWatcher{
		watcher:  watcher,
		dir:      dir,
		ext:      ".xml",
		debounce: defaultDebounce,
		files:    make(chan string),
		log:      logger.WithField("dir", dir),
	}, nil
}

// SetDebounce sets how long a file must stay quiet before it is emitted.
// Call it before Run.
func (rw *ReportWatcher) SetDebounce(d time.Duration) {
	rw.debounce = d
}

// Files returns the channel report paths are delivered on. It is closed when Run returns.
func (rw *ReportWatcher) Files() <-chan string {
	return rw.files
}

// Run watches until ctx is cancelled. Delivery blocks until the consumer
// takes the path, so at most one batch is in flight.
func (rw *ReportWatcher) Run(ctx context.Context) error {
	defer close(rw.files)
	defer rw.watcher.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(rw.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-rw.watcher.Events:
			if !ok {
				return nil
			}
			if !rw.matches(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(rw.debounce)

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return nil
			}
			rw.log.WithError(err).Warn("watcher error")

		case <-timer.C:
			for _, path := range sortedKeys(pending) {
				select {
				case rw.files <- path:
				case <-ctx.Done():
					return nil
				}
			}
			pending = make(map[string]struct{})
		}
	}
}

func (rw *ReportWatcher) matches(event fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(event.Name), rw.ext) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
