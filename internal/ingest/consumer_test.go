package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	apperrors "github.com/example/ride-dispatch/internal/errors"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/models"
)

type fakeUpdater struct {
	mu        sync.Mutex
	locations map[string]models.Location
	statuses  map[string]models.DriverStatus
}

func newFakeUpdater() *fakeUpdater {
	return &fakeUpdater{locations: map[string]models.Location{}, statuses: map[string]models.DriverStatus{}}
}

func (f *fakeUpdater) UpdateDriverLocation(ctx context.Context, id string, loc models.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "ghost" {
		return fmt.Errorf("%w: driver %s", apperrors.ErrNotFound, id)
	}
	f.locations[id] = loc
	return nil
}

func (f *fakeUpdater) SetDriverStatus(ctx context.Context, id string, st models.DriverStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !st.Valid() {
		return fmt.Errorf("%w: status %q", apperrors.ErrValidation, st)
	}
	f.statuses[id] = st
	return nil
}

// scriptedReader returns queued results, then blocks until ctx is done.
type scriptedReader struct {
	mu      sync.Mutex
	results []readResult
	closed  bool
}

type readResult struct {
	msg kafka.Message
	err error
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.results) > 0 {
		next := r.results[0]
		r.results = r.results[1:]
		r.mu.Unlock()
		return next.msg, next.err
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func TestApply(t *testing.T) {
	target := newFakeUpdater()
	c := newLocationConsumer(&scriptedReader{}, target, logging.Discard())
	ctx := context.Background()

	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"location and status", `{"driver_id":"D1","location":{"lat":19.1,"lng":72.9},"status":"OFFLINE"}`, nil},
		{"status only", `{"driver_id":"D2","status":"AVAILABLE"}`, nil},
		{"not json", `{`, apperrors.ErrValidation},
		{"missing driver", `{"status":"AVAILABLE"}`, apperrors.ErrValidation},
		{"empty update", `{"driver_id":"D1"}`, apperrors.ErrValidation},
		{"unknown driver", `{"driver_id":"ghost","location":{"lat":1,"lng":1}}`, apperrors.ErrNotFound},
		{"bad status", `{"driver_id":"D1","status":"NAPPING"}`, apperrors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Apply(ctx, []byte(tt.payload))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if target.locations["D1"].Lat != 19.1 || target.statuses["D1"] != models.DriverOffline || target.statuses["D2"] != models.DriverAvailable {
		t.Fatalf("updates not applied: %+v %+v", target.locations, target.statuses)
	}
}

func TestRunBacksOffOnReadErrors(t *testing.T) {
	reader := &scriptedReader{results: []readResult{
		{err: errors.New("broker down")},
		{err: errors.New("broker still down")},
		{msg: kafka.Message{Value: []byte(`{"driver_id":"D1","status":"ON_TRIP"}`)}},
		{msg: kafka.Message{Value: []byte(`garbage`)}},
		{msg: kafka.Message{Value: []byte(`{"driver_id":"D9","location":{"lat":1,"lng":2}}`)}},
	}}
	target := newFakeUpdater()
	c := newLocationConsumer(reader, target, logging.Discard())
	c.backoff = time.Millisecond

	var mu sync.Mutex
	var sleeps []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		target.mu.Lock()
		_, ok := target.locations["D9"]
		target.mu.Unlock()
		if ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sleeps) != 2 || sleeps[0] != time.Millisecond || sleeps[1] != 2*time.Millisecond {
		t.Fatalf("sleeps = %v", sleeps)
	}
	if target.statuses["D1"] != models.DriverOnTrip {
		t.Fatalf("status not applied: %+v", target.statuses)
	}
	if err := c.Close(); err != nil || !reader.closed {
		t.Fatal("reader not closed")
	}
}
