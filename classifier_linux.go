package vtable

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/procfs"
)

// ProcessClassifier classifies addresses using /proc/<pid>/maps. Every
// file-backed mapping is treated as part of a module named after the file.
//
// The maps are read once and read again whenever a lookup misses, since
// new mappings (including our own arena) show up after the snapshot.
type ProcessClassifier struct {
	proc procfs.Proc
	exe  string

	mu   sync.Mutex
	maps []*procfs.ProcMap
}

// NewProcessClassifier returns a classifier for process pid, or for the
// current process if pid is 0.
func NewProcessClassifier(pid int) (*ProcessClassifier, error) {
	var (
		proc procfs.Proc
		err  error
	)
	if pid == 0 {
		proc, err = procfs.Self()
	} else {
		proc, err = procfs.NewProc(pid)
	}
	if err != nil {
		return nil, fmt.Errorf("opening process: %w", err)
	}
	return newProcessClassifier(proc)
}

func newProcessClassifier(proc procfs.Proc) (*ProcessClassifier, error) {
	exe, err := proc.Executable()
	if err != nil {
		return nil, fmt.Errorf("reading executable path: %w", err)
	}

	c := &ProcessClassifier{proc: proc, exe: exe}
	err = c.Refresh()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh reads the process's mappings again.
func (c *ProcessClassifier) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked()
}

func (c *ProcessClassifier) refreshLocked() error {
	maps, err := c.proc.ProcMaps()
	if err != nil {
		return fmt.Errorf("reading mappings of process %d: %w", c.proc.PID, err)
	}
	c.maps = maps
	return nil
}

// moduleName returns the module a mapping belongs to, or false for
// anonymous and pseudo mappings.
func (c *ProcessClassifier) moduleName(m *procfs.ProcMap) (string, bool) {
	path := strings.TrimSuffix(m.Pathname, " (deleted)")
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "/dev/") || strings.HasPrefix(path, "/memfd:") || strings.HasPrefix(path, "/SYSV") {
		return "", false
	}
	if path == c.exe {
		return "", true
	}
	return filepath.Base(path), true
}

// find calls match on each mapping until it returns true. On a miss the
// mappings are read again and searched once more.
func (c *ProcessClassifier) find(match func(*procfs.ProcMap) bool) (*procfs.ProcMap, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		for _, m := range c.maps {
			if match(m) {
				return m, nil
			}
		}

		if attempt == 0 {
			err := c.refreshLocked()
			if err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

// ModuleBase returns the lowest mapped address of the named module.
// /proc lists mappings in address order, so that's the first match.
func (c *ProcessClassifier) ModuleBase(name string) (uintptr, error) {
	m, err := c.find(func(m *procfs.ProcMap) bool {
		n, ok := c.moduleName(m)
		return ok && n == name
	})
	if err != nil {
		return 0, err
	}
	if m == nil {
		return 0, fmt.Errorf("%w: %s", ErrModuleNotFound, moduleLabel(name))
	}
	return m.StartAddr, nil
}

func (c *ProcessClassifier) Classify(addr uintptr) MemoryState {
	m, err := c.find(func(m *procfs.ProcMap) bool {
		return m.StartAddr <= addr && addr < m.EndAddr
	})
	if err != nil || m == nil || m.Perms == nil || !m.Perms.Read {
		return NotMapped
	}

	if _, ok := c.moduleName(m); ok {
		return MappedInModule
	}
	return MappedOutsideModule
}

// Modules lists the loaded modules with the full range each one spans.
func (c *ProcessClassifier) Modules() []Module {
	c.mu.Lock()
	defer c.mu.Unlock()

	modules := []Module{}
	index := map[string]int{}
	for _, m := range c.maps {
		name, ok := c.moduleName(m)
		if !ok {
			continue
		}

		i, ok := index[name]
		if !ok {
			index[name] = len(modules)
			modules = append(modules, Module{Name: name, Start: m.StartAddr, End: m.EndAddr})
			continue
		}
		modules[i].Start = min(modules[i].Start, m.StartAddr)
		modules[i].End = max(modules[i].End, m.EndAddr)
	}
	return modules
}

func defaultClassifier() Classifier {
	c, err := NewProcessClassifier(0)
	if err != nil {
		return brokenClassifier{err: err}
	}
	return c
}
