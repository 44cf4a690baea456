package mount

import (
	"os"

	"golang.org/x/sys/unix"
)

const (
	bind  = unix.MS_BIND | unix.MS_NOSUID | unix.MS_PRIVATE
	mFlag = unix.MS_NOSUID | unix.MS_NOATIME | unix.MS_NODEV
)

// Builder builds the mount point set of a filesystem view
type Builder struct {
	Mounts []Mount
}

// NewBuilder creates a new mount builder instance
func NewBuilder() *Builder {
	return &Builder{}
}

// NewDefaultBuilder creates a builder exposing the usual system library
// directories read-only
func NewDefaultBuilder() *Builder {
	return NewBuilder().
		WithBind("/usr", "/usr", true).
		WithBind("/lib", "/lib", true).
		WithBind("/lib64", "/lib64", true).
		WithBind("/bin", "/bin", true)
}

// WithMounts adds mounts to the builder
func (b *Builder) WithMounts(m []Mount) *Builder {
	b.Mounts = append(b.Mounts, m...)
	return b
}

// WithMount adds a single mount to the builder
func (b *Builder) WithMount(m Mount) *Builder {
	b.Mounts = append(b.Mounts, m)
	return b
}

// WithBind adds a bind mount to the builder
func (b *Builder) WithBind(source, target string, readonly bool) *Builder {
	var flags uintptr = bind
	if readonly {
		flags |= unix.MS_RDONLY
	}
	b.Mounts = append(b.Mounts, Mount{
		Source: source,
		Target: target,
		Flags:  flags,
	})
	return b
}

// WithTmpfs adds a tmpfs mount to the builder
func (b *Builder) WithTmpfs(target, data string) *Builder {
	b.Mounts = append(b.Mounts, Mount{
		Source: "tmpfs",
		Target: target,
		FsType: "tmpfs",
		Flags:  mFlag,
		Data:   data,
	})
	return b
}

// WithProc adds a read-only proc filesystem
func (b *Builder) WithProc() *Builder {
	b.Mounts = append(b.Mounts, Mount{
		Source: "proc",
		Target: "/proc",
		FsType: "proc",
		Flags:  unix.MS_NOSUID | unix.MS_RDONLY,
	})
	return b
}

// FilterNotExist removes bind mounts whose source does not exist on the host
func (b *Builder) FilterNotExist() *Builder {
	kept := b.Mounts[:0]
	for _, m := range b.Mounts {
		if m.IsBindMount() {
			if _, err := os.Stat(m.Source); os.IsNotExist(err) {
				continue
			}
		}
		kept = append(kept, m)
	}
	b.Mounts = kept
	return b
}

// Build creates the immutable filesystem view from the accumulated mounts
func (b *Builder) Build() *Mounts {
	return NewMounts(b.Mounts)
}

// IsBindMount reports whether the mount bind mounts a host path
func (m Mount) IsBindMount() bool {
	return m.Flags&unix.MS_BIND == unix.MS_BIND
}

// IsReadOnly reports whether the mount is read only
func (m Mount) IsReadOnly() bool {
	return m.Flags&unix.MS_RDONLY == unix.MS_RDONLY
}

// IsTmpFs reports whether the mount is a tmpfs
func (m Mount) IsTmpFs() bool {
	return m.FsType == "tmpfs"
}
