package runtime

import (
	"context"
	"testing"
	"time"
)

func TestLossyRingEvictsOldestWhenFull(t *testing.T) {
	r := NewLossyRing[int](3)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	r.Push(4) // evicts 1

	got := r.DrainBudget(10)
	want := []int{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestLossyRingDrainBudgetRespectsBudget(t *testing.T) {
	r := NewLossyRing[int](5)
	for i := 0; i < 5; i++ {
		r.Push(i)
	}
	got := r.DrainBudget(2)
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("unexpected partial drain: %v", got)
	}
	rest := r.DrainBudget(10)
	if len(rest) != 3 {
		t.Fatalf("expected 3 remaining, got %d", len(rest))
	}
}

func TestReliableQueueTryPushFailsWhenFull(t *testing.T) {
	q := NewReliableQueue[int](1)
	if !q.TryPush(1) {
		t.Fatalf("expected first TryPush to succeed")
	}
	if q.TryPush(2) {
		t.Fatalf("expected second TryPush on full queue to fail")
	}
}

func TestReliableQueuePushTimesOutWhenPersistentlyFull(t *testing.T) {
	q := NewReliableQueue[int](1)
	q.TryPush(1)

	err := q.Push(context.Background(), 2, 20*time.Millisecond)
	if err != ErrPushTimeout {
		t.Fatalf("expected ErrPushTimeout, got %v", err)
	}
}

func TestReliableQueuePushSucceedsOnceSpaceFrees(t *testing.T) {
	q := NewReliableQueue[int](1)
	q.TryPush(1)

	done := make(chan error, 1)
	go func() {
		done <- q.Push(context.Background(), 2, time.Second)
	}()

	time.Sleep(5 * time.Millisecond)
	if _, err := q.Pop(); err != nil {
		t.Fatalf("Pop: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected Push to succeed once space freed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Push did not complete after space freed")
	}
}

func TestReliableQueueDrainBudgetNonBlocking(t *testing.T) {
	q := NewReliableQueue[int](4)
	q.TryPush(1)
	q.TryPush(2)

	got := q.DrainBudget(10)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected drain: %v", got)
	}
	if more := q.DrainBudget(10); len(more) != 0 {
		t.Fatalf("expected empty drain after exhausting queue, got %v", more)
	}
}
