package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/regfetch/internal/core/domain"
	"github.com/vietddude/regfetch/internal/core/fault"
)

type fakeAuth struct {
	mu      sync.Mutex
	logins  int32
	logouts int32
	delay   time.Duration
	fail    error
	ttl     time.Duration
}

func (a *fakeAuth) Login(ctx context.Context, correlationID string) (*domain.Session, error) {
	atomic.AddInt32(&a.logins, 1)
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.fail != nil {
		return nil, a.fail
	}
	ttl := a.ttl
	if ttl == 0 {
		ttl = time.Hour
	}
	return &domain.Session{ID: "s1", Handle: "sid-abc", ExpiresAt: time.Now().Add(ttl)}, nil
}

func (a *fakeAuth) Logout(ctx context.Context, s *domain.Session) error {
	atomic.AddInt32(&a.logouts, 1)
	return nil
}

func TestGetSingleFlight(t *testing.T) {
	auth := &fakeAuth{delay: 20 * time.Millisecond}
	m := NewManager(auth, nil, time.Minute)

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.Get(context.Background(), "corr")
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			if s.Handle != "sid-abc" {
				t.Errorf("handle = %q", s.Handle)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&auth.logins); got != 1 {
		t.Errorf("logins = %d, want 1", got)
	}
}

func TestGetReusesCachedSession(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, nil, time.Minute)

	for i := 0; i < 5; i++ {
		if _, err := m.Get(context.Background(), "corr"); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if got := atomic.LoadInt32(&auth.logins); got != 1 {
		t.Errorf("logins = %d, want 1", got)
	}
}

func TestGetRenewsAfterClear(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, nil, time.Minute)

	if _, err := m.Get(context.Background(), "corr"); err != nil {
		t.Fatalf("get: %v", err)
	}
	m.Clear()
	if _, err := m.Get(context.Background(), "corr"); err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if got := atomic.LoadInt32(&auth.logins); got != 2 {
		t.Errorf("logins = %d, want 2", got)
	}
}

func TestGetRenewsInsideRefreshBuffer(t *testing.T) {
	// Session expires in 30s but the buffer is 1min: treat as expired.
	auth := &fakeAuth{ttl: 30 * time.Second}
	m := NewManager(auth, nil, time.Minute)

	_, _ = m.Get(context.Background(), "corr")
	_, _ = m.Get(context.Background(), "corr")

	if got := atomic.LoadInt32(&auth.logins); got != 2 {
		t.Errorf("logins = %d, want 2 (proactive renewal)", got)
	}
}

func TestGetNormalizesCreationFailure(t *testing.T) {
	auth := &fakeAuth{fail: fault.New(fault.CodeAuthFailed, fault.SourceStatOffice, "", "bad key")}
	m := NewManager(auth, nil, time.Minute)

	_, err := m.Get(context.Background(), "corr-7")
	f, ok := fault.As(err)
	if !ok {
		t.Fatalf("error not a taxonomy failure: %v", err)
	}
	if f.Code != fault.CodeAuthFailed || f.CorrelationID != "corr-7" {
		t.Errorf("failure = %+v", f)
	}
}

func TestLogoutBestEffort(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, nil, time.Minute)

	m.Logout(context.Background()) // nothing cached: no-op
	if got := atomic.LoadInt32(&auth.logouts); got != 0 {
		t.Errorf("logouts = %d, want 0", got)
	}

	_, _ = m.Get(context.Background(), "corr")
	m.Logout(context.Background())
	if got := atomic.LoadInt32(&auth.logouts); got != 1 {
		t.Errorf("logouts = %d, want 1", got)
	}
}

type fakeStore struct {
	mu sync.Mutex
	s  *domain.Session
}

func (st *fakeStore) Load(ctx context.Context) (*domain.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s == nil {
		return nil, context.Canceled
	}
	return st.s, nil
}
func (st *fakeStore) Save(ctx context.Context, s *domain.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = s
	return nil
}
func (st *fakeStore) Delete(ctx context.Context) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = nil
	return nil
}

func TestGetAdoptsStoredSession(t *testing.T) {
	store := &fakeStore{s: &domain.Session{
		ID: "cached", Handle: "sid-cached", ExpiresAt: time.Now().Add(time.Hour),
	}}
	auth := &fakeAuth{}
	m := NewManager(auth, store, time.Minute)

	s, err := m.Get(context.Background(), "corr")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Handle != "sid-cached" {
		t.Errorf("handle = %q, want cached session", s.Handle)
	}
	if got := atomic.LoadInt32(&auth.logins); got != 0 {
		t.Errorf("logins = %d, want 0 (reuse across restart)", got)
	}
}
