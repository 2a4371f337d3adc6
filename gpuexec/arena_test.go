package gpuexec

import "testing"

func TestArenaAllocAligns(t *testing.T) {
	a := NewArena(4096, 256, true)
	off1, err := a.Alloc(10, "pass0")
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if off1 != 0 {
		t.Fatalf("expected first allocation at offset 0, got %d", off1)
	}
	off2, err := a.Alloc(10, "pass1")
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if off2 != 256 {
		t.Fatalf("expected second allocation aligned to 256, got %d", off2)
	}
}

func TestArenaAllocExhausted(t *testing.T) {
	a := NewArena(100, 1, false)
	if _, err := a.Alloc(50, "a"); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := a.Alloc(60, "b"); err == nil {
		t.Fatalf("expected exhaustion error")
	}
}

func TestArenaResetRewindsCursor(t *testing.T) {
	a := NewArena(100, 1, false)
	a.Alloc(50, "a")
	a.Reset()
	off, err := a.Alloc(50, "b")
	if err != nil {
		t.Fatalf("Alloc after reset: %v", err)
	}
	if off != 0 {
		t.Fatalf("expected offset 0 after reset, got %d", off)
	}
}

func TestArenaDebugDetectsOverlap(t *testing.T) {
	a := NewArena(4096, 1, true)
	a.Alloc(10, "a")

	// Manually force an aliasing allocation by resetting the cursor back
	// without clearing the recorded range ledger, simulating a caller bug
	// that writes at a stale offset.
	a.mu.Lock()
	a.cursor = 0
	a.mu.Unlock()

	if _, err := a.Alloc(10, "b"); err == nil {
		t.Fatalf("expected overlap detection error in debug mode")
	}
}

func TestArenaUsedTracksCursor(t *testing.T) {
	a := NewArena(4096, 1, false)
	a.Alloc(10, "a")
	a.Alloc(20, "b")
	if got := a.Used(); got != 30 {
		t.Fatalf("expected Used()=30, got %d", got)
	}
}
