package title

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/aice-relay/internal/cache"
	"github.com/ashureev/aice-relay/internal/domain"
)

type fakeRooms struct {
	mu     sync.Mutex
	rooms  map[string]*domain.Room
	titles chan string
}

func newFakeRooms(ids ...string) *fakeRooms {
	f := &fakeRooms{rooms: make(map[string]*domain.Room), titles: make(chan string, 16)}
	for _, id := range ids {
		f.rooms[id] = &domain.Room{RoomID: id, Title: domain.DefaultRoomTitle}
	}
	return f
}

func (f *fakeRooms) GetRoom(_ context.Context, roomID string) (*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms[roomID], nil
}

func (f *fakeRooms) UpdateRoomTitle(_ context.Context, roomID, title string) error {
	f.mu.Lock()
	f.rooms[roomID].Title = title
	f.mu.Unlock()
	f.titles <- title
	return nil
}

type stubSummarizer struct {
	calls   atomic.Int32
	release chan struct{}
	title   string
	err     error
}

func (s *stubSummarizer) Summarize(ctx context.Context, _ string) (string, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.title, s.err
}

func waitTitle(t *testing.T, rooms *fakeRooms) string {
	t.Helper()
	select {
	case title := <-rooms.titles:
		return title
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for title update")
		return ""
	}
}

func TestCoordinator_FallbackWhenSummarizerUnavailable(t *testing.T) {
	t.Parallel()
	rooms := newFakeRooms("r1")
	c := NewCoordinator(rooms, cache.NewMemory(), &stubSummarizer{err: ErrSummarizerUnavailable}, Config{Workers: 1}, nil)
	defer c.Close()

	if !c.TryUpdateTitleAsync(context.Background(), "r1", "Hello\nWorld") {
		t.Fatal("Expected job to be scheduled")
	}
	if got := waitTitle(t, rooms); got != "Hello" {
		t.Errorf("Expected title Hello, got %q", got)
	}
}

func TestCoordinator_NoSummarizer(t *testing.T) {
	t.Parallel()
	rooms := newFakeRooms("r1")
	c := NewCoordinator(rooms, cache.NewMemory(), nil, Config{Workers: 1}, nil)
	defer c.Close()

	c.TryUpdateTitleAsync(context.Background(), "r1", "Hello\nWorld")
	if got := waitTitle(t, rooms); got != "Hello" {
		t.Errorf("Expected title Hello, got %q", got)
	}
}

func TestCoordinator_UsesSanitizedSummary(t *testing.T) {
	t.Parallel()
	rooms := newFakeRooms("r1")
	c := NewCoordinator(rooms, cache.NewMemory(), &stubSummarizer{title: `"여행 계획 ✨"`}, Config{Workers: 1}, nil)
	defer c.Close()

	c.TryUpdateTitleAsync(context.Background(), "r1", "제주도 여행 계획 좀 짜줘")
	if got := waitTitle(t, rooms); got != "여행 계획" {
		t.Errorf("Expected sanitized summary, got %q", got)
	}
}

func TestCoordinator_EmptySummaryFallsBack(t *testing.T) {
	t.Parallel()
	rooms := newFakeRooms("r1")
	c := NewCoordinator(rooms, cache.NewMemory(), &stubSummarizer{title: "!!!"}, Config{Workers: 1}, nil)
	defer c.Close()

	c.TryUpdateTitleAsync(context.Background(), "r1", "Budget review")
	if got := waitTitle(t, rooms); got != "Budget review" {
		t.Errorf("Expected fallback title, got %q", got)
	}
}

func TestCoordinator_ConcurrentTriggersCallSummarizerOnce(t *testing.T) {
	t.Parallel()
	rooms := newFakeRooms("r1")
	guard := cache.NewMemory()
	sum := &stubSummarizer{title: "Greeting", release: make(chan struct{})}
	c := NewCoordinator(rooms, guard, sum, Config{Workers: 4}, nil)
	defer c.Close()

	var wg sync.WaitGroup
	var scheduled atomic.Int32
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryUpdateTitleAsync(context.Background(), "r1", "Hi") {
				scheduled.Add(1)
			}
		}()
	}
	wg.Wait()
	close(sum.release)

	if got := waitTitle(t, rooms); got != "Greeting" {
		t.Errorf("Expected Greeting, got %q", got)
	}
	if n := scheduled.Load(); n != 1 {
		t.Errorf("Expected 1 scheduled job, got %d", n)
	}
	if n := sum.calls.Load(); n != 1 {
		t.Errorf("Expected 1 summarizer call, got %d", n)
	}

	// The guard is released once the job finishes.
	deadline := time.Now().Add(time.Second)
	for {
		_, ok, _ := guard.Acquire(context.Background(), cache.TitleGuardKey("r1"), 0)
		if ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected guard to be released")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCoordinator_MissingRoomReleasesGuard(t *testing.T) {
	t.Parallel()
	guard := cache.NewMemory()
	sum := &stubSummarizer{title: "x"}
	c := NewCoordinator(newFakeRooms(), guard, sum, Config{Workers: 1}, nil)

	c.TryUpdateTitleAsync(context.Background(), "ghost", "Hi")
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if sum.calls.Load() != 0 {
		t.Error("Expected no summarizer call for a missing room")
	}
	_, ok, err := guard.Acquire(context.Background(), cache.TitleGuardKey("ghost"), 0)
	if err != nil || !ok {
		t.Errorf("Expected guard to be free, got %v, %v", ok, err)
	}
}

func TestCoordinator_RejectsAfterClose(t *testing.T) {
	t.Parallel()
	guard := cache.NewMemory()
	c := NewCoordinator(newFakeRooms("r1"), guard, nil, Config{Workers: 1}, nil)
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.TryUpdateTitleAsync(context.Background(), "r1", "Hi") {
		t.Error("Expected job to be rejected after Close")
	}
	if _, ok, _ := guard.Acquire(context.Background(), cache.TitleGuardKey("r1"), 0); !ok {
		t.Error("Expected rejected job to release its guard")
	}
}

type failingGuard struct{}

func (failingGuard) Acquire(context.Context, string, time.Duration) (string, bool, error) {
	return "", false, errors.New("redis down")
}
func (failingGuard) Release(context.Context, string, string) error { return nil }

func TestCoordinator_GuardErrorStillSchedules(t *testing.T) {
	t.Parallel()
	rooms := newFakeRooms("r1")
	c := NewCoordinator(rooms, failingGuard{}, nil, Config{Workers: 1}, nil)
	defer c.Close()

	if !c.TryUpdateTitleAsync(context.Background(), "r1", "Standup notes") {
		t.Fatal("Expected job to be scheduled without a guard")
	}
	if got := waitTitle(t, rooms); got != "Standup notes" {
		t.Errorf("Expected fallback title, got %q", got)
	}
}

type ttlGuard struct {
	*cache.Memory
	ttl atomic.Int64
}

func (g *ttlGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	g.ttl.Store(int64(ttl))
	return g.Memory.Acquire(ctx, key, ttl)
}

func TestCoordinator_GuardOutlivesFullQueue(t *testing.T) {
	t.Parallel()
	guard := &ttlGuard{Memory: cache.NewMemory()}
	cfg := Config{Workers: 4, QueueSize: 200, Timeout: 3 * time.Second, GuardTTL: 30 * time.Second}
	c := NewCoordinator(newFakeRooms("r1"), guard, nil, cfg, nil)
	defer c.Close()

	c.TryUpdateTitleAsync(context.Background(), "r1", "Hi")

	// 200 queued jobs over 4 workers at 3.5s each, plus the job itself.
	want := 51 * (3*time.Second + callBuffer)
	if got := time.Duration(guard.ttl.Load()); got < want {
		t.Errorf("Expected guard TTL of at least %v, got %v", want, got)
	}
}

func TestCoordinator_ExpiredGuardNotReleasedByOldJob(t *testing.T) {
	t.Parallel()
	guard := cache.NewMemory()
	c := NewCoordinator(newFakeRooms("r1"), guard, nil, Config{Workers: 1}, nil)
	defer c.Close()

	key := cache.TitleGuardKey("r1")
	stale := job{roomID: "r1", token: "expired-holder"}
	if _, ok, _ := guard.Acquire(context.Background(), key, 0); !ok {
		t.Fatal("Expected acquire to succeed")
	}

	c.release(stale)

	if _, ok, _ := guard.Acquire(context.Background(), key, 0); ok {
		t.Error("Expected release with a stale token to keep the current holder")
	}
}
