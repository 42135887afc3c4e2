package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error surfaced by FaultyFS.
var ErrInjected = errors.New("injected fault")

// Fault describes when a wrapped file should start failing.
type Fault struct {
	// FailAfterBytes fails writes once this many bytes were written to the
	// file. -1 disables the limit.
	FailAfterBytes int64
	FailOnSync     bool
	FailOnClose    bool
	Err            error
}

// FaultyFS wraps a FileSystem and injects errors into files whose path
// contains a registered pattern.
type FaultyFS struct {
	FS FileSystem

	mu    sync.Mutex
	rules map[string]Fault
}

// NewFaultyFS creates a FaultyFS wrapping fs (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{FS: fs, rules: make(map[string]Fault)}
}

// AddRule registers a fault for files whose name contains pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	f.rules[pattern] = fault
}

func (f *FaultyFS) lookup(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			return rule, true
		}
	}
	return Fault{}, false
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	fault, ok := f.lookup(name)
	if !ok {
		return file, nil
	}
	return &faultyFile{File: file, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error             { return f.FS.Remove(name) }
func (f *FaultyFS) Rename(oldpath, newpath string) error { return f.FS.Rename(oldpath, newpath) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error) {
	return f.FS.Stat(name)
}
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}

type faultyFile struct {
	File
	fault   Fault
	written int64
	mu      sync.Mutex
}

func (f *faultyFile) exceeded(n int) bool {
	if f.fault.FailAfterBytes < 0 {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written += int64(n)
	return f.written > f.fault.FailAfterBytes
}

func (f *faultyFile) Write(p []byte) (int, error) {
	if f.exceeded(len(p)) {
		return 0, f.fault.Err
	}
	return f.File.Write(p)
}

func (f *faultyFile) WriteAt(p []byte, off int64) (int, error) {
	if f.exceeded(len(p)) {
		return 0, f.fault.Err
	}
	return f.File.WriteAt(p, off)
}

func (f *faultyFile) Sync() error {
	if f.fault.FailOnSync {
		return f.fault.Err
	}
	return f.File.Sync()
}

func (f *faultyFile) Close() error {
	if f.fault.FailOnClose {
		f.File.Close()
		return f.fault.Err
	}
	return f.File.Close()
}
