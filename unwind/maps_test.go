package unwind

import (
	"strings"
	"testing"
)

const sampleMaps = `00400000-004b0000 r-xp 00000000 08:01 1234 /usr/bin/app
004b0000-004c0000 rw-p 000b0000 08:01 1234 /usr/bin/app
7f1000000000-7f1000200000 r-xp 00000000 08:01 5678 /lib/x86_64-linux-gnu/libc-2.31.so
7f2000000000-7f2000001000 r-xp 00000000 08:01 9999 /tmp/gone (deleted)
7ffe00000000-7ffe00021000 rw-p 00000000 00:00 0 [stack]
7ffe000a0000-7ffe000a1000 r-xp 00000000 00:00 0 [vdso]
ffffffffff600000-ffffffffff601000 --xp 00000000 00:00 0
`

func TestParseMaps(t *testing.T) {
	maps, err := ParseMaps(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatalf("ParseMaps: %v", err)
	}
	if len(maps) != 7 {
		t.Fatalf("got %d mappings, want 7", len(maps))
	}

	m := maps[0]
	if m.Start != 0x400000 || m.End != 0x4b0000 {
		t.Errorf("bad range: %+v", m)
	}
	if m.Perms != "r-xp" || m.Offset != 0 || m.Path != "/usr/bin/app" {
		t.Errorf("bad fields: %+v", m)
	}

	if maps[1].Offset != 0xb0000 {
		t.Errorf("bad offset: %+v", maps[1])
	}
	if maps[3].Path != "/tmp/gone (deleted)" {
		t.Errorf("deleted suffix lost: %q", maps[3].Path)
	}
	if maps[4].Path != "[stack]" {
		t.Errorf("bad pseudo path: %q", maps[4].Path)
	}
	if maps[6].Path != "" {
		t.Errorf("expected empty path, got %q", maps[6].Path)
	}
}

func TestParseMapsMalformed(t *testing.T) {
	for _, line := range []string{
		"notanaddress r-xp 00000000 08:01 1",
		"00400000 r-xp 00000000 08:01 1",
		"00400000-zzz r-xp 00000000 08:01 1",
		"00400000-004b0000 r-xp zzz 08:01 1",
		"00400000-004b0000",
	} {
		if _, err := ParseMaps(strings.NewReader(line + "\n")); err == nil {
			t.Errorf("expected error for %q", line)
		}
	}
}

func TestParseMapsEmpty(t *testing.T) {
	maps, err := ParseMaps(strings.NewReader("\n\n"))
	if err != nil {
		t.Fatalf("ParseMaps: %v", err)
	}
	if len(maps) != 0 {
		t.Errorf("got %d mappings, want 0", len(maps))
	}
}

func TestFindMapping(t *testing.T) {
	maps, err := ParseMaps(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatal(err)
	}

	m, ok := FindMapping(maps, 0x400123)
	if !ok || m.Path != "/usr/bin/app" {
		t.Errorf("got %+v, ok=%v", m, ok)
	}
	if _, ok := FindMapping(maps, 0x4c0000); ok {
		t.Error("address past all mappings resolved")
	}
	// end is exclusive
	if m, ok := FindMapping(maps, 0x4b0000); !ok || m.Offset != 0xb0000 {
		t.Errorf("boundary address: got %+v, ok=%v", m, ok)
	}
}
