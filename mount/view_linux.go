package mount

import (
	"os"
	"path"
	"strings"
)

// Mounts is a read-only filesystem view. It answers which host file backs a
// path visible inside the sandbox; this subsystem never mutates it.
type Mounts struct {
	mounts []Mount
}

// NewMounts creates a view from a mount point list. The list is copied so
// later builder changes do not leak into the view.
func NewMounts(ms []Mount) *Mounts {
	cp := make([]Mount, len(ms))
	copy(cp, ms)
	return &Mounts{mounts: cp}
}

// Mounts returns a copy of the mount point list
func (v *Mounts) Mounts() []Mount {
	cp := make([]Mount, len(v.mounts))
	copy(cp, v.mounts)
	return cp
}

// Clone returns an independent copy of the view
func (v *Mounts) Clone() *Mounts {
	return NewMounts(v.mounts)
}

// Resolve maps an in-sandbox path to the host file backing it. The bind
// mount with the longest matching target wins. It reports false when no
// mount exposes the path or the backing file does not exist on the host.
func (v *Mounts) Resolve(p string) (string, bool) {
	p = path.Clean(p)
	var (
		backing string
		best    = -1
	)
	for _, m := range v.mounts {
		if !m.IsBindMount() {
			continue
		}
		target := normalizeTarget(m.Target)
		rel, ok := pathSuffix(target, p)
		if !ok || len(target) <= best {
			continue
		}
		best = len(target)
		backing = path.Join(m.Source, rel)
	}
	if best < 0 {
		return "", false
	}
	if _, err := os.Stat(backing); err != nil {
		return "", false
	}
	return backing, true
}

func normalizeTarget(t string) string {
	if !strings.HasPrefix(t, "/") {
		t = "/" + t
	}
	return path.Clean(t)
}

// pathSuffix returns the remainder of p below dir, if dir is a path prefix
func pathSuffix(dir, p string) (string, bool) {
	if p == dir {
		return "", true
	}
	if dir == "/" {
		return strings.TrimPrefix(p, "/"), true
	}
	if strings.HasPrefix(p, dir+"/") {
		return p[len(dir)+1:], true
	}
	return "", false
}
