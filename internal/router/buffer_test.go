package router

import (
	"sync"
	"testing"
	"time"
)

func TestBuffer_SendReceiveInOrder(t *testing.T) {
	buf := NewBuffer[int](10)

	for i := 0; i < 5; i++ {
		if !buf.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}

	if buf.Len() != 5 {
		t.Errorf("Len() = %d, want 5", buf.Len())
	}

	for i := 0; i < 5; i++ {
		val, ok := buf.TryReceive()
		if !ok {
			t.Fatalf("TryReceive() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("received %d, want %d", val, i)
		}
	}

	if _, ok := buf.TryReceive(); ok {
		t.Error("TryReceive() on empty buffer should return false")
	}
}

func TestBuffer_GrowsWhenFull(t *testing.T) {
	buf := NewBuffer[int](4)

	for i := 0; i < 100; i++ {
		if !buf.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}

	stats := buf.Stats()
	if stats.Count != 100 {
		t.Errorf("Count = %d, want 100", stats.Count)
	}
	if stats.Capacity < 100 {
		t.Errorf("Capacity = %d, want >= 100", stats.Capacity)
	}
	if stats.Grows != 5 { // 4 -> 8 -> 16 -> 32 -> 64 -> 128
		t.Errorf("Grows = %d, want 5", stats.Grows)
	}

	for i := 0; i < 100; i++ {
		val, _ := buf.TryReceive()
		if val != i {
			t.Fatalf("received %d, want %d", val, i)
		}
	}
}

func TestBuffer_WrapAroundThenGrow(t *testing.T) {
	buf := NewBuffer[int](4)

	buf.Send(1)
	buf.Send(2)
	buf.Send(3)
	buf.TryReceive()
	buf.TryReceive()

	// head is now at index 2; these wrap and then force growth.
	buf.Send(4)
	buf.Send(5)
	buf.Send(6)
	buf.Send(7)
	buf.Send(8)

	for _, want := range []int{3, 4, 5, 6, 7, 8} {
		got, ok := buf.TryReceive()
		if !ok {
			t.Fatalf("TryReceive failed, expected %d", want)
		}
		if got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}
}

func TestBuffer_BlockingReceive(t *testing.T) {
	buf := NewBuffer[int](10)
	received := make(chan int, 1)

	go func() {
		if val, ok := buf.Receive(); ok {
			received <- val
		}
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Send(42)

	select {
	case val := <-received:
		if val != 42 {
			t.Errorf("received %d, want 42", val)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for blocked receive")
	}
}

func TestBuffer_Close(t *testing.T) {
	buf := NewBuffer[int](10)
	buf.Send(1)
	buf.Send(2)
	buf.Close()

	if buf.Send(3) {
		t.Error("Send should return false after Close")
	}

	// Remaining items are still delivered.
	if val, ok := buf.Receive(); !ok || val != 1 {
		t.Errorf("Receive() = %d, %v; want 1, true", val, ok)
	}
	if val, ok := buf.Receive(); !ok || val != 2 {
		t.Errorf("Receive() = %d, %v; want 2, true", val, ok)
	}
	if _, ok := buf.Receive(); ok {
		t.Error("Receive should return false when closed and empty")
	}
}

func TestBuffer_CloseUnblocksReceive(t *testing.T) {
	buf := NewBuffer[int](10)
	done := make(chan bool, 1)

	go func() {
		_, ok := buf.Receive()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Receive should return false when closed and empty")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Receive")
	}
}

func TestBuffer_Discard(t *testing.T) {
	buf := NewBuffer[string](2)
	buf.Send("a")
	buf.Send("b")
	buf.Send("c")

	if n := buf.Discard(); n != 3 {
		t.Errorf("Discard() = %d, want 3", n)
	}
	if buf.Len() != 0 {
		t.Errorf("Len() = %d after Discard, want 0", buf.Len())
	}

	buf.Send("d")
	if val, ok := buf.TryReceive(); !ok || val != "d" {
		t.Errorf("TryReceive() = %q, %v; want d, true", val, ok)
	}
}

func TestBuffer_ConcurrentSendReceive(t *testing.T) {
	buf := NewBuffer[int](8)
	const numItems = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < numItems; i++ {
			buf.Send(i)
		}
	}()

	received := make([]int, 0, numItems)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < numItems; i++ {
			if val, ok := buf.Receive(); ok {
				received = append(received, val)
			}
		}
	}()

	wg.Wait()

	if len(received) != numItems {
		t.Fatalf("received %d items, want %d", len(received), numItems)
	}
	// Single producer, single consumer: order is preserved.
	for i, val := range received {
		if val != i {
			t.Fatalf("received[%d] = %d, want %d", i, val, i)
		}
	}
}

func TestBuffer_Stats(t *testing.T) {
	buf := NewBuffer[int](10)

	stats := buf.Stats()
	if stats.Count != 0 || stats.Capacity != 10 || stats.TotalIn != 0 || stats.TotalOut != 0 {
		t.Errorf("initial stats incorrect: %+v", stats)
	}

	buf.Send(1)
	buf.Send(2)
	buf.Send(3)
	buf.TryReceive()
	buf.TryReceive()

	stats = buf.Stats()
	if stats.Count != 1 || stats.TotalIn != 3 || stats.TotalOut != 2 || stats.HighWater != 3 {
		t.Errorf("stats after traffic: %+v", stats)
	}
}

func TestNewBuffer_MinCapacity(t *testing.T) {
	if c := NewBuffer[int](0).Stats().Capacity; c != 1 {
		t.Errorf("Capacity = %d, want 1 for initial capacity 0", c)
	}
	if c := NewBuffer[int](-5).Stats().Capacity; c != 1 {
		t.Errorf("Capacity = %d, want 1 for negative initial capacity", c)
	}
}
