//go:build linux

package rlimit

import (
	"syscall"
	"testing"
)

func TestPrepareRLimit(t *testing.T) {
	tests := []struct {
		name   string
		rl     RLimits
		expect []int
	}{
		{
			name:   "Empty",
			rl:     RLimits{},
			expect: []int{},
		},
		{
			name:   "CPU only",
			rl:     RLimits{CPU: 10},
			expect: []int{syscall.RLIMIT_CPU},
		},
		{
			name:   "Unlimited address space",
			rl:     RLimits{AddressSpace: Unlimited},
			expect: []int{syscall.RLIMIT_AS},
		},
		{
			name:   "Helper defaults",
			rl:     RLimits{CPU: 10, AddressSpace: Unlimited, DisableCore: true},
			expect: []int{syscall.RLIMIT_CPU, syscall.RLIMIT_AS, syscall.RLIMIT_CORE},
		},
		{
			name:   "All fields",
			rl:     RLimits{CPU: 1, CPUHard: 2, FileSize: 2048, Stack: 4096, AddressSpace: 8192, DisableCore: true},
			expect: []int{syscall.RLIMIT_CPU, syscall.RLIMIT_FSIZE, syscall.RLIMIT_STACK, syscall.RLIMIT_AS, syscall.RLIMIT_CORE},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rls := tt.rl.PrepareRLimit()
			if len(rls) != len(tt.expect) {
				t.Fatalf("expected %d rlimits, got %d", len(tt.expect), len(rls))
			}
			for i, r := range rls {
				if r.Res != tt.expect[i] {
					t.Errorf("expected Res %d at %d, got %d", tt.expect[i], i, r.Res)
				}
			}
		})
	}
}

func TestCPUHardFloor(t *testing.T) {
	rl := RLimits{CPU: 10, CPUHard: 5}
	rls := rl.PrepareRLimit()
	if len(rls) != 1 {
		t.Fatalf("expected 1 rlimit, got %d", len(rls))
	}
	if rls[0].Rlim.Max != 10 {
		t.Errorf("hard limit not raised to soft limit: %+v", rls[0].Rlim)
	}
}

func TestRLimitsString(t *testing.T) {
	rl := RLimits{CPU: 10, AddressSpace: Unlimited, DisableCore: true}
	want := "RLimits[CPU[10 s:10 s],AddressSpace[unlimited:unlimited],Core[0:0]]"
	if got := rl.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
