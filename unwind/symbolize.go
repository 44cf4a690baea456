package unwind

import (
	"debug/elf"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Symbolizer renders program counters as human readable frame strings using
// the symbol tables of the mapped ELF modules. Modules are opened lazily and
// cached; a module that fails to parse degrades to module-relative offsets.
type Symbolizer struct {
	maps    []Mapping
	modules map[string]*module
}

type module struct {
	syms []elf.Symbol // function symbols sorted by value
	bias uint64       // runtime address minus link-time address
	err  error
}

// NewSymbolizer creates a symbolizer over a parsed maps listing
func NewSymbolizer(maps []Mapping) *Symbolizer {
	return &Symbolizer{
		maps:    maps,
		modules: make(map[string]*module),
	}
}

// Frame formats one program counter. Best effort, in order:
// module!symbol+0xoff [0xpc], module+0xoff [0xpc], [0xpc].
func (s *Symbolizer) Frame(pc uint64) string {
	m, ok := FindMapping(s.maps, pc)
	if !ok || m.Path == "" || strings.HasPrefix(m.Path, "[") {
		return fmt.Sprintf("[0x%x]", pc)
	}
	name := filepath.Base(strings.TrimSuffix(m.Path, " (deleted)"))
	moduleBase := m.Start - m.Offset

	mod := s.load(m)
	if mod.err == nil {
		if sym, off, ok := mod.lookup(pc); ok {
			if off == 0 {
				return fmt.Sprintf("%s!%s [0x%x]", name, sym, pc)
			}
			return fmt.Sprintf("%s!%s+0x%x [0x%x]", name, sym, off, pc)
		}
	}
	return fmt.Sprintf("%s+0x%x [0x%x]", name, pc-moduleBase, pc)
}

func (s *Symbolizer) load(m Mapping) *module {
	if mod, ok := s.modules[m.Path]; ok {
		return mod
	}
	mod := openModule(m)
	s.modules[m.Path] = mod
	return mod
}

func openModule(m Mapping) *module {
	f, err := elf.Open(m.Path)
	if err != nil {
		return &module{err: err}
	}
	defer f.Close()

	// load bias of the module: where the first load segment ended up
	// relative to where the ELF asked for it
	var bias uint64
	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD {
			bias = (m.Start - m.Offset) - (p.Vaddr - p.Off)
			break
		}
	}

	var syms []elf.Symbol
	for _, table := range [](func() ([]elf.Symbol, error)){f.Symbols, f.DynamicSymbols} {
		all, err := table()
		if err != nil {
			continue
		}
		for _, sym := range all {
			if elf.ST_TYPE(sym.Info) == elf.STT_FUNC && sym.Value != 0 {
				syms = append(syms, sym)
			}
		}
	}
	if len(syms) == 0 {
		return &module{err: fmt.Errorf("unwind: no function symbols in %s", m.Path)}
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].Value < syms[j].Value })
	return &module{syms: syms, bias: bias}
}

// lookup finds the function containing pc and the offset into it
func (mod *module) lookup(pc uint64) (string, uint64, bool) {
	target := pc - mod.bias
	i := sort.Search(len(mod.syms), func(i int) bool {
		return mod.syms[i].Value > target
	})
	if i == 0 {
		return "", 0, false
	}
	sym := mod.syms[i-1]
	off := target - sym.Value
	if sym.Size > 0 && off >= sym.Size {
		return "", 0, false
	}
	return sym.Name, off, true
}
