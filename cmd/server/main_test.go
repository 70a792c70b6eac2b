package main

import (
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestServe_WaitsForDrainAndCleanup(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	})}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	var hubClosed, workersStopped atomic.Bool
	stop := make(chan os.Signal, 1)
	served := make(chan error, 1)
	go func() {
		served <- serve(srv, ln, stop, 5*time.Second,
			func() { hubClosed.Store(true) },
			func() { workersStopped.Store(true) },
		)
	}()

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	select {
	case <-entered:
	case <-time.After(3 * time.Second):
		t.Fatal("request never reached the handler")
	}

	stop <- syscall.SIGTERM

	select {
	case err := <-served:
		t.Fatalf("serve returned with a request in flight: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	if workersStopped.Load() {
		t.Error("workers must be stopped only after requests drain")
	}
	if !hubClosed.Load() {
		t.Error("hub should be closed before draining")
	}

	close(release)

	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after drain")
	}
	if !workersStopped.Load() {
		t.Error("serve returned before cleanup finished")
	}
	if got := <-status; got != http.StatusOK {
		t.Errorf("in-flight request should complete, got status %d", got)
	}
}

func TestServe_ReturnsListenerErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ln.Close()

	err = serve(&http.Server{}, ln, make(chan os.Signal), time.Second, nil, nil)
	if err == nil {
		t.Fatal("expected an error from a closed listener")
	}
}
