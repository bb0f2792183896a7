package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeRecent implements RecentEvents for tests
type fakeRecent struct {
	failPush  int // number of times to fail LPush before succeeding
	failTrim  int // number of times to fail LTrim before succeeding
	pushCalls int
	trimCalls int
	list      [][]byte
	kept      int64
}

func (f *fakeRecent) LPush(ctx context.Context, key string, value []byte) error {
	f.pushCalls++
	if f.pushCalls <= f.failPush {
		return errors.New("lpush fail")
	}
	f.list = append([][]byte{value}, f.list...)
	return nil
}

func (f *fakeRecent) LTrim(ctx context.Context, key string, keep int64) error {
	f.trimCalls++
	if f.trimCalls <= f.failTrim {
		return errors.New("ltrim fail")
	}
	f.kept = keep
	return nil
}

func TestMirrorWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeRecent{failPush: 1, failTrim: 1}
	start := time.Now()
	if err := mirrorWithRetry(context.Background(), f, "k", []byte(`{"kind":"DRIVER_ASSIGNED"}`), 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.pushCalls != 2 || f.trimCalls != 2 {
		t.Fatalf("expected one retry each, got push=%d trim=%d", f.pushCalls, f.trimCalls)
	}
	if len(f.list) != 1 || f.kept != recentEventsLimit {
		t.Fatalf("list=%d kept=%d", len(f.list), f.kept)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestMirrorWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeRecent{failPush: 5}
	if err := mirrorWithRetry(context.Background(), f, "k", []byte("x"), 3, time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
	if f.pushCalls != 3 || f.trimCalls != 0 {
		t.Fatalf("push=%d trim=%d", f.pushCalls, f.trimCalls)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := splitBrokers(" a:9092, ,b:9092,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("splitBrokers = %v", got)
	}
}
