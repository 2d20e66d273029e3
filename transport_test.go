package bmauth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"
)

func login(t *testing.T, c *Client, f *fakeAPI, userName, password string, target RoleTarget) {
	t.Helper()
	if _, err := c.Login(context.Background(), Credential{UserName: userName, Password: password}, target); err != nil {
		t.Fatalf("login failed: %v", err)
	}
}

func get(t *testing.T, c *Client, url string) *http.Response {
	t.Helper()
	resp, err := c.HTTPClient().Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestTransportAttachesFreshToken(t *testing.T) {
	f := newFakeAPI(t)
	f.addUser("alice", "pw", "3", 0)
	c := newTestClient(t, f)
	login(t, c, f, "alice", "pw", TargetUser)

	if resp := get(t, c, f.srv.URL+"/protected"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with stored token, got %d", resp.StatusCode)
	}

	// A token written to the store after client construction must be
	// picked up on the next request: the transport never caches.
	ctx := context.Background()
	f.mu.Lock()
	access, _ := f.issue()
	f.mu.Unlock()
	if err := c.Store().SetAccess(ctx, access); err != nil {
		t.Fatalf("SetAccess failed: %v", err)
	}
	if resp := get(t, c, f.srv.URL+"/protected"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with replaced token, got %d", resp.StatusCode)
	}
	if f.refreshCount() != 0 {
		t.Fatalf("expected no refresh calls, got %d", f.refreshCount())
	}
}

func TestTransportRefreshesOn401(t *testing.T) {
	f := newFakeAPI(t)
	f.addUser("alice", "pw", "3", 0)
	c := newTestClient(t, f)
	login(t, c, f, "alice", "pw", TargetUser)

	f.invalidate()

	resp := get(t, c, f.srv.URL+"/protected")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected retried request to succeed, got %d", resp.StatusCode)
	}
	if got := f.refreshCount(); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}

	// The rotated pair must have landed in store and session alike.
	access, err := c.Store().Access(context.Background())
	if err != nil || access == "" {
		t.Fatalf("expected rotated access token in store, got %q err %v", access, err)
	}
	if c.Session().AccessToken() != access {
		t.Fatalf("session token %q does not match store %q", c.Session().AccessToken(), access)
	}
}

func TestTransportSingleFlight(t *testing.T) {
	f := newFakeAPI(t)
	f.addUser("alice", "pw", "3", 0)
	c := newTestClient(t, f)
	login(t, c, f, "alice", "pw", TargetUser)

	const n = 8
	f.invalidate()
	f.expectArrivals(n)
	f.mu.Lock()
	f.refreshDelay = 300 * time.Millisecond
	f.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(n)
	statuses := make(chan int, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			resp, err := c.HTTPClient().Get(f.srv.URL + "/protected")
			if err != nil {
				t.Errorf("request failed: %v", err)
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	for status := range statuses {
		if status != http.StatusOK {
			t.Fatalf("expected every coalesced request to succeed, got %d", status)
		}
	}
	if got := f.refreshCount(); got != 1 {
		t.Fatalf("expected exactly one refresh call for %d concurrent 401s, got %d", n, got)
	}
	if coalesced := c.Metrics().RefreshCoalesced; coalesced != n-1 {
		t.Fatalf("expected %d coalesced waiters, got %d", n-1, coalesced)
	}
}

func TestTransportAtMostOneRetry(t *testing.T) {
	f := newFakeAPI(t)
	f.addUser("alice", "pw", "3", 0)
	c := newTestClient(t, f)
	login(t, c, f, "alice", "pw", TargetUser)

	// Refresh succeeds but the guard keeps answering 401: the retried
	// request's second 401 must surface, not loop.
	f.mu.Lock()
	f.denyAll = true
	f.mu.Unlock()

	resp := get(t, c, f.srv.URL+"/protected")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected the second 401 to pass through, got %d", resp.StatusCode)
	}
	if got := f.refreshCount(); got != 1 {
		t.Fatalf("expected a single refresh cycle, got %d", got)
	}
}

func TestTransportNon401PassesThrough(t *testing.T) {
	f := newFakeAPI(t)
	f.addUser("alice", "pw", "3", 0)
	c := newTestClient(t, f)
	login(t, c, f, "alice", "pw", TargetUser)

	resp := get(t, c, f.srv.URL+"/does-not-exist")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 to pass through, got %d", resp.StatusCode)
	}
	if f.refreshCount() != 0 {
		t.Fatalf("expected no refresh on non-401, got %d calls", f.refreshCount())
	}
}

func TestTransportRefreshFailureSurfacesOriginal401(t *testing.T) {
	f := newFakeAPI(t)
	f.addUser("alice", "pw", "3", 0)
	c := newTestClient(t, f)
	login(t, c, f, "alice", "pw", TargetUser)

	f.invalidate()
	f.mu.Lock()
	f.refreshFail = true
	f.mu.Unlock()

	resp := get(t, c, f.srv.URL+"/protected")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected original 401, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("unauthorized")) {
		t.Fatalf("expected original 401 body preserved, got %q", body)
	}

	// The failed episode is fatal: store and session are cleared.
	access, _ := c.Store().Access(context.Background())
	refresh, _ := c.Store().Refresh(context.Background())
	if access != "" || refresh != "" {
		t.Fatalf("expected cleared store after refresh failure, got access=%q refresh=%q", access, refresh)
	}
	if c.Session().User() != nil {
		t.Fatal("expected signed-out session after refresh failure")
	}
}

func TestTransportRetryReplaysBody(t *testing.T) {
	f := newFakeAPI(t)
	f.addUser("alice", "pw", "3", 0)
	c := newTestClient(t, f)
	login(t, c, f, "alice", "pw", TargetUser)

	echoed := make(chan string, 2)
	f.srv.Config.Handler.(*http.ServeMux).HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		echoed <- string(body)
		f.mu.Lock()
		valid := r.Header.Get("Authorization") == "Bearer "+f.access
		f.mu.Unlock()
		if !valid {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Write([]byte("ok"))
	})

	f.invalidate()
	resp, err := c.HTTPClient().Post(f.srv.URL+"/echo", "text/plain", bytes.NewReader([]byte("payload")))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected retried POST to succeed, got %d", resp.StatusCode)
	}
	if first, second := <-echoed, <-echoed; first != "payload" || second != "payload" {
		t.Fatalf("expected body replayed on retry, got %q then %q", first, second)
	}
}

func TestRefresherFailureReleasesWaiters(t *testing.T) {
	f := newFakeAPI(t)
	f.addUser("alice", "pw", "3", 0)
	c := newTestClient(t, f)
	login(t, c, f, "alice", "pw", TargetUser)

	f.mu.Lock()
	f.refreshFail = true
	f.refreshDelay = 100 * time.Millisecond
	f.mu.Unlock()

	ref := c.httpClient.Transport.(*authTransport).refresher

	const n = 4
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := ref.Refresh(context.Background())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var initiators, waiters int
	for err := range results {
		switch {
		case err == nil:
			t.Fatal("expected every caller to fail")
		case errors.Is(err, ErrSessionExpired):
			waiters++
		default:
			initiators++
		}
	}
	if initiators != 1 {
		t.Fatalf("expected one initiator carrying the refresh error, got %d", initiators)
	}
	if waiters != n-1 {
		t.Fatalf("expected %d waiters released with session-expired, got %d", n-1, waiters)
	}
	if got := f.refreshCount(); got != 1 {
		t.Fatalf("expected one refresh call, got %d", got)
	}
}

func TestRefresherNoRefreshTokenFailsFast(t *testing.T) {
	f := newFakeAPI(t)
	f.addUser("alice", "pw", "3", 0)
	c := newTestClient(t, f)
	login(t, c, f, "alice", "pw", TargetUser)

	if err := c.Store().ClearRefresh(context.Background()); err != nil {
		t.Fatalf("ClearRefresh failed: %v", err)
	}

	ref := c.httpClient.Transport.(*authTransport).refresher
	if _, err := ref.Refresh(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
	if f.refreshCount() != 0 {
		t.Fatalf("expected no remote call without a refresh token, got %d", f.refreshCount())
	}
}
