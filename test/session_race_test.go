//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/lireddit"
)

func TestConcurrentLogoutSingleSession(t *testing.T) {
	ctx := context.Background()
	store, mr, _, cleanup := newIntegrationStore(t)
	defer cleanup()

	if err := store.Save(ctx, makeSession(1, "sid-race", time.Hour), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			results <- store.Delete(ctx, "sid-race")
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Fatalf("unexpected delete error: %v", err)
		}
	}
	if mr.Exists(testPrefix + "sid-race") {
		t.Fatal("session survived concurrent deletes")
	}
	if ok, _ := mr.SIsMember(testPrefix+"user:1", "sid-race"); ok {
		t.Fatal("user index still lists the session")
	}
}

func TestResolveRacesLogoutAll(t *testing.T) {
	_, _, rdb, cleanup := newIntegrationStore(t)
	defer cleanup()

	engine := newIntegrationEngine(t, rdb)
	res := registerUser(t, engine, "racer")
	info, err := engine.ResolveSession(context.Background(), res.SessionToken)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	authed := lireddit.WithSession(context.Background(), info)

	const readers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(readers + 1)

	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.ResolveSession(context.Background(), res.SessionToken)
			errs <- err
		}()
	}
	go func() {
		defer wg.Done()
		<-start
		if _, err := engine.LogoutAll(authed); err != nil {
			t.Errorf("LogoutAll: %v", err)
		}
	}()

	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && !errors.Is(err, lireddit.ErrUnauthorized) {
			t.Fatalf("resolve during logout returned %v", err)
		}
	}
	if _, err := engine.ResolveSession(context.Background(), res.SessionToken); !errors.Is(err, lireddit.ErrUnauthorized) {
		t.Fatalf("session still resolves after LogoutAll: %v", err)
	}
}
