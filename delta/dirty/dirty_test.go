package dirty

import (
	"os"
	"path/filepath"
	"testing"
)

// setupTestFile creates an 8KB scratch file for flushing.
func setupTestFile(t testing.TB) *os.File {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, make([]byte, 8192), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("Failed to open test file: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func Test_DirtyTracker_PageAlignment(t *testing.T) {
	tracker := NewTracker()

	// Add a range that's NOT page-aligned (offset 100, length 200)
	tracker.Add(100, 200)

	coalesced := tracker.coalesce()

	// Start: 100 rounds down to 0, end: 300 rounds up to 4096
	if len(coalesced) != 1 {
		t.Fatalf("Expected 1 coalesced range, got %d", len(coalesced))
	}
	if coalesced[0].Off != 0 {
		t.Errorf("Start not aligned: got %d, want 0", coalesced[0].Off)
	}
	if coalesced[0].Len != 4096 {
		t.Errorf("Length not aligned: got %d, want 4096", coalesced[0].Len)
	}
}

func Test_DirtyTracker_Coalesce_Adjacent(t *testing.T) {
	tracker := NewTracker()
	tracker.Add(4096, 4096)
	tracker.Add(8192, 4096)

	coalesced := tracker.coalesce()
	if len(coalesced) != 1 {
		t.Fatalf("Expected 1 merged range, got %d: %+v", len(coalesced), coalesced)
	}
	if coalesced[0] != (Range{Off: 4096, Len: 8192}) {
		t.Errorf("Unexpected merged range: %+v", coalesced[0])
	}
}

func Test_DirtyTracker_Coalesce_Separate(t *testing.T) {
	tracker := NewTracker()
	tracker.Add(40960, 10)
	tracker.Add(10, 10)
	tracker.Add(20000, 1)

	coalesced := tracker.Ranges()
	want := []Range{{0, 4096}, {16384, 4096}, {40960, 4096}}
	if len(coalesced) != len(want) {
		t.Fatalf("Expected %d ranges, got %+v", len(want), coalesced)
	}
	for i := range want {
		if coalesced[i] != want[i] {
			t.Errorf("range %d: got %+v, want %+v", i, coalesced[i], want[i])
		}
	}
}

func Test_DirtyTracker_IgnoresEmpty(t *testing.T) {
	tracker := NewTracker()
	tracker.Add(100, 0)
	tracker.Add(100, -5)
	if tracker.Len() != 0 {
		t.Fatalf("Expected empty tracker, got %d ranges", tracker.Len())
	}
	if got := tracker.Ranges(); got != nil {
		t.Fatalf("Expected nil ranges, got %+v", got)
	}
}

func Test_DirtyTracker_Reset(t *testing.T) {
	tracker := NewTracker()
	tracker.Add(0, 10)
	tracker.Reset()
	if tracker.Len() != 0 {
		t.Fatalf("Reset left %d ranges", tracker.Len())
	}
}

func Test_FlushMode_Parse(t *testing.T) {
	for _, m := range []FlushMode{FlushNone, FlushData, FlushFull} {
		got, err := ParseFlushMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseFlushMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseFlushMode("sometimes"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func Benchmark_DirtyTracker_AddAndCoalesce(b *testing.B) {
	for i := 0; i < b.N; i++ {
		tracker := NewTracker()
		for j := int64(0); j < 100; j++ {
			tracker.Add(j*5000, 100)
		}
		_ = tracker.coalesce()
	}
}
