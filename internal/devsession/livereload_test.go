package devsession

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// readUntil reads SSE lines until one contains want or the deadline passes.
func readUntil(reader *bufio.Reader, want string, d time.Duration) bool {
	found := make(chan bool, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				found <- false
				return
			}
			if strings.Contains(line, want) {
				found <- true
				return
			}
		}
	}()
	select {
	case ok := <-found:
		return ok
	case <-time.After(d):
		return false
	}
}

func connect(t *testing.T, url string) *bufio.Reader {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	t.Cleanup(cancel)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	return bufio.NewReader(resp.Body)
}

// TestLiveReload_InitialConnectReceivesBaseline ensures a new client learns the current build.
func TestLiveReload_InitialConnectReceivesBaseline(t *testing.T) {
	hub := NewLiveReloadHub()
	defer hub.Shutdown()
	hub.Broadcast("build-1")

	server := httptest.NewServer(hub)
	defer server.Close()

	reader := connect(t, server.URL)
	if !readUntil(reader, `data: {"build":"build-1"}`, time.Second) {
		t.Fatalf("did not find initial build event")
	}
}

// TestLiveReload_BroadcastSendsEvent ensures a broadcast after connection emits an SSE message.
func TestLiveReload_BroadcastSendsEvent(t *testing.T) {
	hub := NewLiveReloadHub()
	defer hub.Shutdown()

	server := httptest.NewServer(hub)
	defer server.Close()

	reader := connect(t, server.URL)
	if !readUntil(reader, ": connected", time.Second) {
		t.Fatal("missing connect comment")
	}
	deadline := time.Now().Add(time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast("build-2")
	if !readUntil(reader, `"build":"build-2"`, time.Second) {
		t.Fatal("broadcast not received")
	}
}

func TestLiveReload_SameBuildIsNotRebroadcast(t *testing.T) {
	hub := NewLiveReloadHub()
	defer hub.Shutdown()
	hub.Broadcast("a")
	hub.Broadcast("a")
	hub.Broadcast("")

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.lastBuild != "a" {
		t.Errorf("lastBuild = %q", hub.lastBuild)
	}
}

func TestLiveReload_ShutdownRejectsClients(t *testing.T) {
	hub := NewLiveReloadHub()
	hub.Shutdown()

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livereload", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	hub.Shutdown()
}
