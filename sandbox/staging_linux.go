package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sandtrace/go-sandtrace/mount"
	"github.com/sandtrace/go-sandtrace/pkg/fileops"
)

// stagingArea holds the files copied out of /proc for the helper: a snapshot
// of the target's memory map and, when the executable cannot be resolved
// through the filesystem view, a copy of the executable itself.
type stagingArea struct {
	dir      string
	mapsFile string // staged copy of /proc/<pid>/maps
	appPath  string // executable path as the target sees it
	exePath  string // host file backing the executable

	removeOnce sync.Once
}

// stage snapshots the target's /proc state into a fresh unpredictable
// directory. Callers must arrange remove on every exit path.
func stage(pid int, view *mount.Mounts) (*stagingArea, error) {
	dir, err := os.MkdirTemp("", stagingPrefix)
	if err != nil {
		return nil, fmt.Errorf("stage: failed to create staging dir: %w", err)
	}
	s := &stagingArea{dir: dir}

	s.mapsFile = filepath.Join(dir, "maps")
	if err := fileops.CopyFile(fmt.Sprintf("/proc/%d/maps", pid), s.mapsFile, 0400); err != nil {
		s.remove()
		return nil, fmt.Errorf("stage: failed to copy maps: %w", err)
	}

	procExe := fmt.Sprintf("/proc/%d/exe", pid)
	appPath, err := fileops.ReadLinkAbsolute(procExe)
	if err != nil {
		s.remove()
		return nil, fmt.Errorf("stage: failed to resolve executable: %w", err)
	}
	// an unlinked executable keeps working through /proc/<pid>/exe
	s.appPath = strings.TrimSuffix(appPath, " (deleted)")

	if backing, ok := view.Resolve(s.appPath); ok {
		s.exePath = backing
	} else {
		s.exePath = filepath.Join(dir, "exe")
		if err := fileops.CopyFile(procExe, s.exePath, 0700); err != nil {
			s.remove()
			return nil, fmt.Errorf("stage: failed to copy executable: %w", err)
		}
	}
	return s, nil
}

// remove deletes the staging directory recursively, exactly once
func (s *stagingArea) remove() {
	s.removeOnce.Do(func() {
		os.RemoveAll(s.dir)
	})
}
