package unwind

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Mapping is one line of a /proc/<pid>/maps listing
type Mapping struct {
	Start, End uint64
	Perms      string
	Offset     uint64
	Path       string
}

// LoadMaps reads and parses a memory map listing from path
func LoadMaps(path string) ([]Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unwind: failed to open maps: %w", err)
	}
	defer f.Close()
	return ParseMaps(f)
}

// ParseMaps parses a /proc/<pid>/maps formatted listing
func ParseMaps(r io.Reader) ([]Mapping, error) {
	var maps []Mapping
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		m, err := parseMapsLine(line)
		if err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("unwind: failed to read maps: %w", err)
	}
	return maps, nil
}

// parseMapsLine parses "start-end perms offset dev inode [path]"
func parseMapsLine(line string) (Mapping, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Mapping{}, fmt.Errorf("unwind: malformed maps line %q", line)
	}
	lo, hi, found := strings.Cut(fields[0], "-")
	if !found {
		return Mapping{}, fmt.Errorf("unwind: malformed address range %q", fields[0])
	}
	start, err := strconv.ParseUint(lo, 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("unwind: malformed start address %q", lo)
	}
	end, err := strconv.ParseUint(hi, 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("unwind: malformed end address %q", hi)
	}
	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("unwind: malformed offset %q", fields[2])
	}
	m := Mapping{
		Start:  start,
		End:    end,
		Perms:  fields[1],
		Offset: offset,
	}
	if len(fields) >= 6 {
		// the path may contain spaces, e.g. an executable " (deleted)"
		m.Path = strings.Join(fields[5:], " ")
	}
	return m, nil
}

// FindMapping returns the mapping containing addr
func FindMapping(maps []Mapping, addr uint64) (Mapping, bool) {
	for _, m := range maps {
		if addr >= m.Start && addr < m.End {
			return m, true
		}
	}
	return Mapping{}, false
}
