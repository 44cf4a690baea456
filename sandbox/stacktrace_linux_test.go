package sandbox

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/sandtrace/go-sandtrace/mount"
	"github.com/sandtrace/go-sandtrace/regs"
	"github.com/sandtrace/go-sandtrace/unwind"
)

func TestCompactStackTrace(t *testing.T) {
	for _, c := range []struct {
		name   string
		frames []string
		want   []string
	}{
		{
			name: "Empty",
		},
		{
			name:   "Single",
			frames: []string{"a"},
			want:   []string{"a"},
		},
		{
			name:   "NoRepeats",
			frames: []string{"a", "b", "c"},
			want:   []string{"a", "b", "c"},
		},
		{
			name:   "AllSame",
			frames: []string{"a", "a", "a"},
			want:   []string{"a", "(previous frame repeated 2 times)"},
		},
		{
			name:   "Mixed",
			frames: []string{"a", "a", "b", "b", "b", "a"},
			want: []string{
				"a", "(previous frame repeated 1 times)",
				"b", "(previous frame repeated 2 times)",
				"a",
			},
		},
		{
			name:   "RepeatAtEnd",
			frames: []string{"a", "b", "b"},
			want:   []string{"a", "b", "(previous frame repeated 1 times)"},
		},
	} {
		t.Run(c.name, func(t *testing.T) {
			got := CompactStackTrace(c.frames)
			if len(got) == 0 && len(c.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("CompactStackTrace(%v) = %v, want %v", c.frames, got, c.want)
			}
		})
	}
}

// testTracer builds a tracer with both collection paths stubbed out so the
// decision sequence can be asserted without spawning a helper.
func testTracer(cfg Config) (*Tracer, *struct{ launched, unsafe bool }) {
	calls := &struct{ launched, unsafe bool }{}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	tr := NewTracer(cfg)
	tr.supported = true
	tr.instrumented = false
	tr.launch = func(pid int, rawRegs []byte, view *mount.Mounts, maxFrames int) ([]string, error) {
		calls.launched = true
		return []string{"confined"}, nil
	}
	tr.unsafeUnwind = func(pid int, rawRegs []byte, maxFrames int) ([]string, error) {
		calls.unsafe = true
		return []string{"unconfined"}, nil
	}
	return tr, calls
}

func testRegs() *regs.Regs {
	return regs.New(1234, make([]byte, 27*8))
}

func testView() *mount.Mounts {
	return mount.NewMounts(nil)
}

func TestGetStackTraceUnsupported(t *testing.T) {
	tr, calls := testTracer(Config{})
	tr.supported = false
	got := tr.GetStackTrace(testRegs(), testView())
	if !reflect.DeepEqual(got, []string{traceUnavailable}) {
		t.Errorf("got %v, want unavailable sentinel", got)
	}
	if calls.launched || calls.unsafe {
		t.Error("no collection path should run on an unsupported architecture")
	}
}

func TestGetStackTraceDisabled(t *testing.T) {
	tr, calls := testTracer(Config{DisableAll: true})
	got := tr.GetStackTrace(testRegs(), testView())
	if !reflect.DeepEqual(got, []string{traceDisabled}) {
		t.Errorf("got %v, want disabled sentinel", got)
	}
	if calls.launched || calls.unsafe {
		t.Error("no collection path should run when disabled")
	}
}

func TestGetStackTraceDisabledBeatsNoRegs(t *testing.T) {
	tr, _ := testTracer(Config{DisableAll: true})
	got := tr.GetStackTrace(nil, testView())
	if !reflect.DeepEqual(got, []string{traceDisabled}) {
		t.Errorf("got %v, want disabled sentinel before noregs", got)
	}
}

func TestGetStackTraceNoRegs(t *testing.T) {
	tr, calls := testTracer(Config{})
	got := tr.GetStackTrace(nil, testView())
	if !reflect.DeepEqual(got, []string{traceNoRegs}) {
		t.Errorf("got %v, want noregs sentinel", got)
	}
	if calls.launched || calls.unsafe {
		t.Error("no collection path should run without registers")
	}
}

func TestGetStackTraceSandboxed(t *testing.T) {
	tr, calls := testTracer(Config{})
	got := tr.GetStackTrace(testRegs(), testView())
	if !reflect.DeepEqual(got, []string{"confined"}) {
		t.Errorf("got %v, want confined path result", got)
	}
	if !calls.launched || calls.unsafe {
		t.Errorf("launched=%v unsafe=%v, want confined path only", calls.launched, calls.unsafe)
	}
}

func TestGetStackTraceSandboxingDisabled(t *testing.T) {
	tr, calls := testTracer(Config{DisableSandboxing: true})
	got := tr.GetStackTrace(testRegs(), testView())
	if !reflect.DeepEqual(got, []string{"unconfined"}) {
		t.Errorf("got %v, want unconfined path result", got)
	}
	if calls.launched || !calls.unsafe {
		t.Errorf("launched=%v unsafe=%v, want unconfined path only", calls.launched, calls.unsafe)
	}
}

func TestGetStackTraceInstrumentedBuild(t *testing.T) {
	tr, calls := testTracer(Config{})
	tr.instrumented = true
	got := tr.GetStackTrace(testRegs(), testView())
	if !reflect.DeepEqual(got, []string{"unconfined"}) {
		t.Errorf("got %v, want unconfined path result", got)
	}
	if calls.launched || !calls.unsafe {
		t.Errorf("launched=%v unsafe=%v, want unconfined path only", calls.launched, calls.unsafe)
	}
}

func TestGetStackTraceLaunchFailure(t *testing.T) {
	tr, calls := testTracer(Config{})
	tr.launch = func(pid int, rawRegs []byte, view *mount.Mounts, maxFrames int) ([]string, error) {
		calls.launched = true
		return nil, errors.New("policy compile failed")
	}
	if got := tr.GetStackTrace(testRegs(), testView()); got != nil {
		t.Errorf("got %v, want nil on confined path failure", got)
	}
	if calls.unsafe {
		t.Error("confined path failure must not fall back to the unconfined path")
	}
}

func TestGetStackTraceMaxFramesDefault(t *testing.T) {
	tr, _ := testTracer(Config{})
	var gotMax int
	tr.launch = func(pid int, rawRegs []byte, view *mount.Mounts, maxFrames int) ([]string, error) {
		gotMax = maxFrames
		return nil, nil
	}
	tr.GetStackTrace(testRegs(), testView())
	if gotMax != unwind.DefaultMaxFrames {
		t.Errorf("maxFrames = %d, want %d", gotMax, unwind.DefaultMaxFrames)
	}
}
