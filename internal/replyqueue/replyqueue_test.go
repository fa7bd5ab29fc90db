package replyqueue

import (
	"sync"
	"testing"
	"time"
)

func TestEnqueueDequeue(t *testing.T) {
	q := New(2)
	if !q.Enqueue([]byte("a"), nil) {
		t.Fatal("expected enqueue to succeed")
	}
	e, ok := q.Dequeue()
	if !ok || string(e.Buffer) != "a" {
		t.Fatal("expected to dequeue the entry just queued")
	}
}

func TestOverflowDrops(t *testing.T) {
	q := New(1)
	if !q.Enqueue([]byte("a"), nil) {
		t.Fatal("first enqueue should succeed")
	}
	if q.Enqueue([]byte("b"), nil) {
		t.Fatal("second enqueue should be dropped: queue at capacity")
	}
	if q.Len() != 1 {
		t.Fatalf("expected length 1, got %d", q.Len())
	}
}

func TestDequeueBlocksUntilSignaled(t *testing.T) {
	q := New(4)
	var wg sync.WaitGroup
	wg.Add(1)
	var gotOK bool
	go func() {
		defer wg.Done()
		_, gotOK = q.Dequeue()
	}()
	time.Sleep(20 * time.Millisecond)
	q.Enqueue([]byte("x"), nil)
	wg.Wait()
	if !gotOK {
		t.Fatal("expected Dequeue to succeed after a delayed Enqueue")
	}
}

func TestCloseWakesConsumer(t *testing.T) {
	q := New(4)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected Dequeue to report !ok after Close with nothing queued")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the blocked consumer")
	}
}
