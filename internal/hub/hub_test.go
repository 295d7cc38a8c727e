package hub

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/aice-relay/internal/events"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
		return Event{}
	}
}

func TestHub_SubscribeSendsConnected(t *testing.T) {
	t.Parallel()
	h := New(4, 0, nil)
	sub := h.Subscribe("r1")

	ev := recv(t, sub)
	if ev.Name != events.PushConnected {
		t.Fatalf("Expected connected event, got %q", ev.Name)
	}
	if ev.Data != "Successfully connected to room: r1" {
		t.Errorf("Unexpected connected data: %v", ev.Data)
	}
	if !strings.HasPrefix(ev.ID, "connect-") {
		t.Errorf("Expected connect- id, got %q", ev.ID)
	}
}

func TestHub_PushWithoutSubscribersIsNoop(t *testing.T) {
	t.Parallel()
	h := New(4, 0, nil)
	h.Push("nobody", events.PushDelta, map[string]string{"x": "y"})

	if n := len(h.ActiveConnections()); n != 0 {
		t.Errorf("Expected no rooms, got %d", n)
	}
}

func TestHub_UnsubscribeRemovesEmptyRoom(t *testing.T) {
	t.Parallel()
	h := New(4, 0, nil)
	a := h.Subscribe("r1")
	b := h.Subscribe("r1")

	if got := h.ActiveConnections()["r1"]; got != 2 {
		t.Fatalf("Expected 2 subscribers, got %d", got)
	}

	h.Unsubscribe(a)
	if got := h.ActiveConnections()["r1"]; got != 1 {
		t.Errorf("Expected 1 subscriber, got %d", got)
	}

	h.Unsubscribe(b)
	h.Unsubscribe(b)
	h.mu.RLock()
	_, exists := h.rooms["r1"]
	h.mu.RUnlock()
	if exists {
		t.Error("Expected room entry to be removed after last unsubscribe")
	}
	select {
	case <-b.Done():
	default:
		t.Error("Expected subscription to be done")
	}
}

func TestHub_DeadSubscriberRemovedOthersStillDelivered(t *testing.T) {
	t.Parallel()
	h := New(1, 20*time.Millisecond, nil)
	stuck := h.Subscribe("r1") // buffer already full with "connected"
	live := h.Subscribe("r1")
	recv(t, live)

	h.Push("r1", events.PushSkeleton, events.Skeleton{Role: "assistant", TurnIndex: 1})

	ev := recv(t, live)
	if ev.Name != events.PushSkeleton {
		t.Errorf("Expected skeleton, got %q", ev.Name)
	}
	select {
	case <-stuck.Done():
	case <-time.After(time.Second):
		t.Fatal("Expected full subscriber to be dropped")
	}
	if got := h.ActiveConnections()["r1"]; got != 1 {
		t.Errorf("Expected 1 remaining subscriber, got %d", got)
	}
}

func TestHub_LastDeadSubscriberRemovesRoom(t *testing.T) {
	t.Parallel()
	h := New(1, 20*time.Millisecond, nil)
	h.Subscribe("r1")
	h.Push("r1", events.PushDelta, "x")

	if _, ok := h.ActiveConnections()["r1"]; ok {
		t.Error("Expected room to be removed")
	}
	// A new subscriber gets a fresh room.
	sub := h.Subscribe("r1")
	if recv(t, sub).Name != events.PushConnected {
		t.Error("Expected connected on resubscribe")
	}
}

func TestHub_SlowViewerReceivesWholeStream(t *testing.T) {
	t.Parallel()
	h := New(4, time.Second, nil)
	sub := h.Subscribe("r1")

	got := make(chan []string, 1)
	go func() {
		var names []string
		for ev := range sub.Events() {
			time.Sleep(time.Millisecond)
			names = append(names, ev.Name)
			if ev.Name == events.PushDone {
				break
			}
		}
		got <- names
	}()

	for i := 0; i < 100; i++ {
		h.Push("r1", events.PushDelta, i)
	}
	h.Push("r1", events.PushDone, "end")

	var names []string
	select {
	case names = <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for done")
	}
	// connected + 100 deltas + done
	if len(names) != 102 {
		t.Fatalf("Expected 102 events, got %d", len(names))
	}
	if h.ActiveConnections()["r1"] != 1 {
		t.Error("Expected slow viewer to stay subscribed")
	}
}

func TestHub_UnsubscribeReleasesWaitingPush(t *testing.T) {
	t.Parallel()
	h := New(1, time.Minute, nil)
	sub := h.Subscribe("r1") // buffer full with "connected"

	pushed := make(chan struct{})
	go func() {
		h.Push("r1", events.PushDelta, "x")
		close(pushed)
	}()

	time.Sleep(20 * time.Millisecond)
	h.Unsubscribe(sub)

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("Expected push to return once the viewer left")
	}
	if _, ok := h.ActiveConnections()["r1"]; ok {
		t.Error("Expected room to be removed")
	}
}

func TestHub_CloseRoom(t *testing.T) {
	t.Parallel()
	h := New(4, 0, nil)
	a := h.Subscribe("r1")
	other := h.Subscribe("r2")

	h.CloseRoom("r1")
	select {
	case <-a.Done():
	default:
		t.Error("Expected r1 subscriber to be done")
	}
	if _, ok := h.ActiveConnections()["r2"]; !ok {
		t.Error("Expected r2 to remain")
	}

	h.Close()
	select {
	case <-other.Done():
	default:
		t.Error("Expected r2 subscriber to be done after Close")
	}
	if n := len(h.ActiveConnections()); n != 0 {
		t.Errorf("Expected no rooms after Close, got %d", n)
	}
}

func TestHub_Heartbeat(t *testing.T) {
	t.Parallel()
	h := New(4, 0, nil)
	sub := h.Subscribe("r1")
	recv(t, sub)

	h.Heartbeat()
	ev := recv(t, sub)
	if ev.Name != events.PushPing || ev.Data != "keep-alive" {
		t.Errorf("Unexpected heartbeat: %+v", ev)
	}
}

func TestHub_ConcurrentSubscribePush(t *testing.T) {
	t.Parallel()
	h := New(256, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		roomID := fmt.Sprintf("r%d", i%3)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub := h.Subscribe(roomID)
				h.Unsubscribe(sub)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Push(roomID, events.PushDelta, j)
			}
		}()
	}
	wg.Wait()

	if n := len(h.ActiveConnections()); n != 0 {
		t.Errorf("Expected no rooms after all unsubscribed, got %d", n)
	}
}
