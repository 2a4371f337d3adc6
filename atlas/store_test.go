package atlas

import (
	"fmt"
	"sync"
	"testing"

	"github.com/SunastanS/glaphica/model"
	"github.com/SunastanS/glaphica/protocol"
)

type fakeDrain struct {
	mu       sync.Mutex
	uploads  int
	clears   int
	failNext bool
}

func (f *fakeDrain) UploadTile(atlasLayer uint32, slotX, slotY int, bytes []byte, filterable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return fmt.Errorf("injected upload failure")
	}
	f.uploads++
	return nil
}

func (f *fakeDrain) ClearTile(atlasLayer uint32, slotX, slotY int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func newTestStore(slotsPerPage int) (*Store, *fakeDrain) {
	d := &fakeDrain{}
	s := NewStore(1, model.PayloadKindRGBA8, 4, slotsPerPage, d)
	return s, d
}

func TestAllocateResolveRoundTrip(t *testing.T) {
	s, _ := newTestStore(4)
	key, err := s.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	addr, err := s.Resolve(key)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if addr.AtlasLayer != 0 {
		t.Fatalf("expected layer 0, got %d", addr.AtlasLayer)
	}
	if !s.IsAllocated(key) {
		t.Fatalf("expected key to be allocated")
	}
}

func TestAllocateExhaustsAndReturnsAtlasFull(t *testing.T) {
	s, _ := newTestStore(2)
	if _, err := s.Allocate(); err != nil {
		t.Fatalf("Allocate 1: %v", err)
	}
	if _, err := s.Allocate(); err != nil {
		t.Fatalf("Allocate 2: %v", err)
	}
	if _, err := s.Allocate(); err != ErrAtlasFull {
		t.Fatalf("expected ErrAtlasFull, got %v", err)
	}
}

func TestReleaseBumpsGenerationAndInvalidatesOldKey(t *testing.T) {
	s, _ := newTestStore(2)
	key, _ := s.Allocate()

	if ok := s.Release(key); !ok {
		t.Fatalf("expected Release to succeed")
	}
	if _, err := s.Resolve(key); err != ErrGenerationMismatch {
		t.Fatalf("expected ErrGenerationMismatch after release, got %v", err)
	}
	// Second release of the same key is a no-op.
	if ok := s.Release(key); ok {
		t.Fatalf("expected second Release to be a no-op")
	}

	// Reallocating should reuse the freed slot with a bumped generation.
	key2, err := s.Allocate()
	if err != nil {
		t.Fatalf("Allocate after release: %v", err)
	}
	if key2.Gen() <= key.Gen() {
		t.Fatalf("expected reused slot to carry a higher generation: old=%d new=%d", key.Gen(), key2.Gen())
	}
}

func TestReleaseUnderPressurePublishesEvictionNotice(t *testing.T) {
	s, _ := newTestStore(2)
	key, _ := s.Allocate()

	if ok := s.ReleaseUnderPressure(key); !ok {
		t.Fatalf("expected ReleaseUnderPressure to succeed")
	}
	notices := s.DrainEvictionNotices()
	if len(notices) != 1 {
		t.Fatalf("expected 1 eviction notice, got %d", len(notices))
	}
	if notices[0].Key != key || notices[0].Reason != EvictionRetentionPressure {
		t.Fatalf("unexpected notice: %+v", notices[0])
	}
	if more := s.DrainEvictionNotices(); more != nil {
		t.Fatalf("expected notices to be cleared after drain, got %v", more)
	}
}

func TestReleaseSetAtomicAllOrNothing(t *testing.T) {
	s, _ := newTestStore(4)
	k1, _ := s.Allocate()
	k2, _ := s.Allocate()
	k3, _ := s.Allocate()

	n, err := s.ReleaseSetAtomic([]protocol.TileKey{k1, k2, k3})
	if err != nil {
		t.Fatalf("ReleaseSetAtomic: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 released, got %d", n)
	}
	for _, k := range []protocol.TileKey{k1, k2, k3} {
		if s.IsAllocated(k) {
			t.Fatalf("expected %s to be released", k)
		}
	}
}

func TestReleaseSetAtomicRejectsUnknownKeyLeavingStateUnchanged(t *testing.T) {
	s, _ := newTestStore(4)
	k1, _ := s.Allocate()
	bogus := protocol.NewTileKey(1, 9999, 9999)

	_, err := s.ReleaseSetAtomic([]protocol.TileKey{k1, bogus})
	if err == nil {
		t.Fatalf("expected error for unknown key in set")
	}
	if !s.IsAllocated(k1) {
		t.Fatalf("expected k1 to remain allocated after aborted set release")
	}
}

func TestEnqueueUploadAndDrainExecutesSurvivor(t *testing.T) {
	s, d := newTestStore(4)
	key, _ := s.Allocate()

	if err := s.EnqueueUpload(key, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("EnqueueUpload: %v", err)
	}
	n, err := s.DrainAndExecute()
	if err != nil {
		t.Fatalf("DrainAndExecute: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 op executed, got %d", n)
	}
	if d.uploads != 1 {
		t.Fatalf("expected 1 upload on drain target, got %d", d.uploads)
	}
}

func TestDrainSkipsStaleGenerationOps(t *testing.T) {
	s, d := newTestStore(2)
	key, _ := s.Allocate()

	if err := s.EnqueueUpload(key, []byte{9}); err != nil {
		t.Fatalf("EnqueueUpload: %v", err)
	}
	// Release before draining: the slot's generation bumps, so the staged
	// upload (tagged with the old generation) must be skipped on drain.
	s.Release(key)

	n, err := s.DrainAndExecute()
	if err != nil {
		t.Fatalf("DrainAndExecute: %v", err)
	}
	// Only the Clear op from Release survives; the stale Upload is skipped.
	if n != 1 {
		t.Fatalf("expected 1 surviving op, got %d", n)
	}
	if d.uploads != 0 {
		t.Fatalf("expected stale upload to be skipped, got %d uploads", d.uploads)
	}
	if d.clears != 1 {
		t.Fatalf("expected 1 clear from release, got %d", d.clears)
	}
}

func TestDrainReportsGpuDrainErrorAndStopsAtFailure(t *testing.T) {
	s, d := newTestStore(4)
	key1, _ := s.Allocate()
	key2, _ := s.Allocate()

	if err := s.EnqueueUpload(key1, []byte{1}); err != nil {
		t.Fatalf("EnqueueUpload 1: %v", err)
	}
	if err := s.EnqueueUpload(key2, []byte{2}); err != nil {
		t.Fatalf("EnqueueUpload 2: %v", err)
	}
	d.failNext = true

	_, err := s.DrainAndExecute()
	if err == nil {
		t.Fatalf("expected GpuDrainError")
	}
	var drainErr *GpuDrainError
	if !asGpuDrainError(err, &drainErr) {
		t.Fatalf("expected *GpuDrainError, got %T", err)
	}
}

func asGpuDrainError(err error, target **GpuDrainError) bool {
	if e, ok := err.(*GpuDrainError); ok {
		*target = e
		return true
	}
	return false
}

func TestGrowPageExpandsCapacity(t *testing.T) {
	s, _ := newTestStore(1)
	if _, err := s.Allocate(); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := s.Allocate(); err != ErrAtlasFull {
		t.Fatalf("expected ErrAtlasFull before growth, got %v", err)
	}

	layer := s.GrowPage()
	if layer != 1 {
		t.Fatalf("expected new layer index 1, got %d", layer)
	}
	key, err := s.Allocate()
	if err != nil {
		t.Fatalf("Allocate after GrowPage: %v", err)
	}
	addr, err := s.Resolve(key)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if addr.AtlasLayer != 1 {
		t.Fatalf("expected slot from new layer 1, got %d", addr.AtlasLayer)
	}
}

func TestConcurrentAllocateNeverDoubleIssuesSameKey(t *testing.T) {
	s, _ := newTestStore(64)
	const workers = 8
	const perWorker = 8

	keys := make(chan protocol.TileKey, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				k, err := s.Allocate()
				if err != nil {
					return
				}
				keys <- k
			}
		}()
	}
	wg.Wait()
	close(keys)

	seen := map[protocol.TileKey]bool{}
	for k := range keys {
		if seen[k] {
			t.Fatalf("duplicate key issued: %s", k)
		}
		seen[k] = true
	}
}
