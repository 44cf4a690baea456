// Package mount describes the filesystem view of a confined process: the set
// of host paths exposed inside the sandbox and where they appear. The view
// doubles as the resolver that maps an in-sandbox path back to its backing
// file on the host.
package mount

import (
	"fmt"
	"strings"
)

// Mount defines a single mount point of the confined filesystem view
type Mount struct {
	Source, Target, FsType, Data string
	Flags                        uintptr
}

func (m Mount) String() string {
	switch {
	case m.IsBindMount():
		flag := "rw"
		if m.IsReadOnly() {
			flag = "ro"
		}
		return fmt.Sprintf("bind[%s:%s:%s]", m.Source, m.Target, flag)
	case m.IsTmpFs():
		return fmt.Sprintf("tmpfs[%s]", m.Target)
	default:
		return fmt.Sprintf("mount[%s,%s:%s:%x,%s]", m.FsType, m.Source, m.Target, m.Flags, m.Data)
	}
}

func (b Builder) String() string {
	var sb strings.Builder
	sb.WriteString("Mounts: ")
	for i, m := range b.Mounts {
		sb.WriteString(m.String())
		if i != len(b.Mounts)-1 {
			sb.WriteString(", ")
		}
	}
	return sb.String()
}
