package settings

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"
)

const (
	settingsDir  = "/lock"
	settingsFile = "/lock/settings.bin"
	tempSuffix   = ".tmp"
)

// Store persists Settings on a littlefs filesystem. It is safe for use
// from multiple goroutines.
type Store struct {
	mu      sync.Mutex
	fs      *littlefs.LFS
	mounted bool
	logger  *slog.Logger
}

// Open mounts the filesystem on dev, formatting it when it cannot be
// mounted, and settles a temp file left by an interrupted write.
func Open(dev tinyfs.BlockDevice, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	lfs := littlefs.New(dev)
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 128,
	})

	if err := lfs.Mount(); err != nil {
		logger.Warn("settings:format", slog.String("err", err.Error()))
		if err := lfs.Format(); err != nil {
			return nil, err
		}
		if err := lfs.Mount(); err != nil {
			return nil, err
		}
	}

	s := &Store{fs: lfs, mounted: true, logger: logger}
	s.recoverTemp()
	return s, nil
}

// recoverTemp promotes a complete temp record when the settings file is
// missing and discards the temp file otherwise.
func (s *Store) recoverTemp() {
	tempPath := settingsFile + tempSuffix
	f, err := s.fs.Open(settingsFile)
	if err == nil {
		f.Close()
		s.fs.Remove(tempPath)
		return
	}
	if !isNotExist(err) {
		return
	}
	if _, err := s.readRecord(tempPath); err != nil {
		s.fs.Remove(tempPath)
		return
	}
	if err := s.fs.Rename(tempPath, settingsFile); err != nil {
		s.logger.Error("settings:recover-failed", slog.String("err", err.Error()))
		return
	}
	s.logger.Warn("settings:recovered")
}

// Close unmounts the filesystem.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounted {
		s.mounted = false
		return s.fs.Unmount()
	}
	return nil
}

// Load returns the stored settings. A missing record, an old version, or
// values that fail Validate yield Default with a nil error; a record that
// cannot be read yields Default and the error.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (Settings, error) {
	st, err := s.readRecord(settingsFile)
	if err != nil {
		if isNotExist(err) {
			return Default(), nil
		}
		return Default(), err
	}
	if st.Version != CurrentVersion {
		s.logger.Warn("settings:version-mismatch", slog.Int("version", int(st.Version)))
		return Default(), nil
	}
	if err := st.Validate(); err != nil {
		s.logger.Warn("settings:invalid", slog.String("err", err.Error()))
		d := Default()
		d.UnlockCount = st.UnlockCount
		return d, nil
	}
	return st, nil
}

// Save validates and writes st atomically. Version is set to CurrentVersion.
func (s *Store) Save(st Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(st)
}

func (s *Store) save(st Settings) error {
	if err := s.fs.Mkdir(settingsDir, 0755); err != nil && !isExist(err) {
		return err
	}
	st.Version = CurrentVersion
	data, err := st.MarshalBinary()
	if err != nil {
		return err
	}
	return s.atomicWrite(settingsFile, data)
}

func (s *Store) readRecord(path string) (Settings, error) {
	var st Settings
	f, err := s.fs.Open(path)
	if err != nil {
		return st, err
	}
	defer f.Close()

	buf := make([]byte, RecordSize)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return st, err
	}
	err = st.UnmarshalBinary(buf[:n])
	return st, err
}

// RecordUnlock increments the persisted unlock counter and returns the
// new count.
func (s *Store) RecordUnlock() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		s.logger.Warn("settings:load", slog.String("err", err.Error()))
	}
	st.UnlockCount++
	if err := s.save(st); err != nil {
		return st.UnlockCount, err
	}
	return st.UnlockCount, nil
}

// atomicWrite writes data to a temp file, syncs it, then renames it over
// path. littlefs replaces the destination atomically on rename, so path
// always holds either the old or the new record.
func (s *Store) atomicWrite(path string, data []byte) error {
	tempPath := path + tempSuffix
	s.fs.Remove(tempPath)

	f, err := s.fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fs.Remove(tempPath)
		return err
	}
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			s.fs.Remove(tempPath)
			return err
		}
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tempPath)
		return err
	}

	if err := s.fs.Rename(tempPath, path); err != nil {
		s.fs.Remove(tempPath)
		return err
	}
	return nil
}

// littlefs errors don't always satisfy os.IsExist/os.IsNotExist.
func isExist(err error) bool {
	return os.IsExist(err) || strings.Contains(err.Error(), "already exists")
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "No directory entry")
}
