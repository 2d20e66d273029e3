package bmauth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeUser seeds one account on the fake marketplace API.
type fakeUser struct {
	password string
	output   authenticateOutput
}

// fakeAPI is an httptest-backed stand-in for the marketplace API. It
// issues sequential token pairs, honours exactly one valid refresh
// token at a time, and serves a bearer-guarded /protected route.
type fakeAPI struct {
	t *testing.T

	mu            sync.Mutex
	users         map[string]fakeUser
	access        string
	validRefresh  string
	seq           int
	refreshCalls  int
	refreshDelay  time.Duration
	refreshFail   bool
	denyAll       bool
	protectedHits int

	// arrivals, when > 0, holds /protected responses until that many
	// stale-token requests have arrived, so they all observe their 401
	// in the same instant.
	arrivals  int
	arrived   int
	arrivedCh chan struct{}

	srv *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		t:         t,
		users:     make(map[string]fakeUser),
		arrivedCh: make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/User/authenticate", f.handleAuthenticate)
	mux.HandleFunc("/auth/refresh", f.handleRefresh)
	mux.HandleFunc("/api/auth/logout", f.handleLogout)
	mux.HandleFunc("/protected", f.handleProtected)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) addUser(userName, password, roleIDs string, partnerID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userName] = fakeUser{
		password: password,
		output: authenticateOutput{
			UserID:    len(f.users) + 100,
			FirstName: "Test",
			LastName:  "Account",
			Email:     userName,
			RoleIDs:   roleIDs,
			RoleName:  "Test",
			PartnerID: partnerID,
		},
	}
}

// issue must be called with f.mu held.
func (f *fakeAPI) issue() (string, string) {
	f.seq++
	f.access = fmt.Sprintf("acc-%d", f.seq)
	f.validRefresh = fmt.Sprintf("ref-%d", f.seq)
	return f.access, f.validRefresh
}

// invalidate makes every issued access token stale without rotating the
// refresh token, so the next guarded request 401s.
func (f *fakeAPI) invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = ""
}

// expectArrivals arms the /protected barrier for n stale requests.
func (f *fakeAPI) expectArrivals(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.arrivals = n
	f.arrived = 0
	f.arrivedCh = make(chan struct{})
}

func (f *fakeAPI) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *fakeAPI) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var cred Credential
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	user, ok := f.users[cred.UserName]
	if !ok || user.password != cred.Password {
		f.mu.Unlock()
		writeJSON(w, authenticateResponse{IsSuccess: false, FailureReason: "Invalid username or password"})
		return
	}
	out := user.output
	out.Token, out.RefreshToken = f.issue()
	f.mu.Unlock()

	writeJSON(w, authenticateResponse{IsSuccess: true, Output: &out})
}

func (f *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.refreshCalls++
	delay := f.refreshDelay
	fail := f.refreshFail || req.RefreshToken == "" || req.RefreshToken != f.validRefresh
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	access, refresh := f.issue()
	f.mu.Unlock()
	writeJSON(w, refreshResponse{AccessToken: access, RefreshToken: refresh})
}

func (f *fakeAPI) handleLogout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (f *fakeAPI) handleProtected(w http.ResponseWriter, r *http.Request) {
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	f.mu.Lock()
	f.protectedHits++
	valid := !f.denyAll && f.access != "" && bearer == f.access
	var wait chan struct{}
	if !valid && f.arrivals > 0 {
		f.arrived++
		if f.arrived >= f.arrivals {
			close(f.arrivedCh)
			f.arrivals = 0
		} else {
			wait = f.arrivedCh
		}
	}
	f.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-time.After(5 * time.Second):
			f.t.Error("protected barrier timed out")
		}
	}

	if !valid {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(err)
	}
}

func newTestClient(t *testing.T, f *fakeAPI) *Client {
	t.Helper()
	client, err := New().
		WithBaseURL(f.srv.URL).
		WithLogger(zerolog.Nop()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}
