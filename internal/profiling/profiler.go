// Package profiling writes pprof profiles covering one fttf invocation.
package profiling

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
)

// Profile file names written into the session directory.
const (
	CPUFile       = "cpu.prof"
	HeapFile      = "heap.prof"
	GoroutineFile = "goroutine.prof"
)

// Session records a CPU profile from Start until Stop, then snapshots the
// heap and the goroutines still running.
type Session struct {
	dir     string
	cpuFile *os.File
}

// Start creates dir and begins CPU profiling into it.
func Start(dir string) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, CPUFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}
	return &Session{dir: dir, cpuFile: f}, nil
}

// Dir returns the directory holding the profiles.
func (s *Session) Dir() string {
	return s.dir
}

// Stop ends CPU profiling and writes the heap and goroutine profiles.
// Calling Stop again is a no-op.
func (s *Session) Stop() error {
	if s.cpuFile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := s.cpuFile.Close()
	s.cpuFile = nil

	// Heap numbers are only current after a collection.
	runtime.GC()
	return errors.Join(err,
		writeProfile(filepath.Join(s.dir, HeapFile), "heap", 0),
		writeProfile(filepath.Join(s.dir, GoroutineFile), "goroutine", 1))
}

func writeProfile(path, name string, debug int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s profile file: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	if err := pprof.Lookup(name).WriteTo(f, debug); err != nil {
		return fmt.Errorf("failed to write %s profile: %w", name, err)
	}
	return nil
}
