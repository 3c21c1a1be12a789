package pluginhost

import (
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DirectoryWatcher invalidates cached compiled artifacts when files under
// a watched rule/parser directory change, generalized from the teacher's
// pkg/hotreload.ConfigReloader (which watches one config file for a
// content-hash change) onto an entire directory tree of parser/rule
// sources, keyed by sub-directory name (YARA, Sigma, STIX, Custom).
type DirectoryWatcher struct {
	watcher *fsnotify.Watcher
	logger  *logrus.Logger
	host    *Host
	running atomic.Bool
	done    chan struct{}
}

// NewDirectoryWatcher creates a watcher that calls host.InvalidateDirectory
// with the immediate parent directory name whenever a watched file changes.
func NewDirectoryWatcher(host *Host, logger *logrus.Logger) (*DirectoryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &DirectoryWatcher{watcher: w, logger: logger, host: host, done: make(chan struct{})}, nil
}

// Watch registers dir (and is typically called once per dialect
// sub-directory: <base>/YARA, <base>/Sigma, <base>/STIX, <base>/Custom).
func (d *DirectoryWatcher) Watch(dir string) error {
	return d.watcher.Add(dir)
}

// Start begins processing filesystem events in a background goroutine
// until Stop is called.
func (d *DirectoryWatcher) Start() {
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	go d.loop()
}

func (d *DirectoryWatcher) loop() {
	defer close(d.done)
	for {
		select {
		case ev, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			prefix := filepath.Base(filepath.Dir(ev.Name))
			d.host.InvalidateDirectory(prefix)
			d.logger.WithFields(logrus.Fields{
				"file":   ev.Name,
				"op":     ev.Op.String(),
				"prefix": prefix,
			}).Info("pluginhost: invalidated cache entries after directory change")
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.WithError(err).Warn("pluginhost: directory watcher error")
		}
	}
}

// Stop closes the underlying watcher and waits for the event loop to exit.
func (d *DirectoryWatcher) Stop() error {
	if !d.running.CompareAndSwap(true, false) {
		return nil
	}
	err := d.watcher.Close()
	<-d.done
	return err
}
