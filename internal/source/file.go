package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"itmtrace/internal/common"
)

// pollInterval bounds the wait for growth when no write event arrives.
const pollInterval = 250 * time.Millisecond

// FileSource reads a capture file. In follow mode Read blocks at the end of
// the file until more data is written, the file is removed or the source is
// closed.
type FileSource struct {
	path   string
	file   *os.File
	follow bool

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// OpenFile opens path for reading.
func OpenFile(path string, follow bool, logger *zap.Logger) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewErrorMsg(common.ErrSevError, common.ErrFileError,
			fmt.Sprintf("open %s: %v", path, err))
	}

	s := &FileSource{
		path:   path,
		file:   f,
		follow: follow,
		done:   make(chan struct{}),
		logger: common.OrNop(logger),
	}

	if follow {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
		if err := w.Add(path); err != nil {
			w.Close()
			f.Close()
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
		s.watcher = w
	}

	s.logger.Info("file source opened", zap.String("path", path), zap.Bool("follow", follow))
	return s, nil
}

func (s *FileSource) Name() string {
	return s.path
}

func (s *FileSource) Read(p []byte) (int, error) {
	for {
		n, err := s.file.Read(p)
		if n > 0 || !errors.Is(err, io.EOF) || !s.follow {
			return n, err
		}
		if !s.waitForGrowth() {
			return 0, io.EOF
		}
	}
}

// waitForGrowth returns false once following should stop.
func (s *FileSource) waitForGrowth() bool {
	select {
	case <-s.done:
		return false
	case ev, ok := <-s.watcher.Events:
		if !ok {
			return false
		}
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			s.logger.Info("followed file went away", zap.String("path", s.path))
			return false
		}
		return true
	case err, ok := <-s.watcher.Errors:
		if !ok {
			return false
		}
		s.logger.Warn("file watcher error", zap.String("path", s.path), zap.Error(err))
		return true
	case <-time.After(pollInterval):
		return true
	}
}

// Close stops following and closes the file. It is safe to call more than
// once.
func (s *FileSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			s.watcher.Close()
		}
		err = s.file.Close()
	})
	return err
}
