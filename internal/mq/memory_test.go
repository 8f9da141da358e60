package mq

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestMemoryLogPreservesPerKeyOrder(t *testing.T) {
	log := NewMemoryLog(4, 256)
	sub := log.Subscribe("issue")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const perKey = 50
	keys := []string{"1", "2", "3", "4", "5", "6"}

	var mu sync.Mutex
	seen := make(map[string][]int)
	partitions := make(map[string]map[int]struct{})
	done := make(chan struct{})
	total := 0

	go func() {
		_ = sub.Run(ctx, func(ctx context.Context, msg Message) error {
			seq, err := strconv.Atoi(string(msg.Value))
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			seen[msg.Key] = append(seen[msg.Key], seq)
			if partitions[msg.Key] == nil {
				partitions[msg.Key] = make(map[int]struct{})
			}
			partitions[msg.Key][msg.Partition] = struct{}{}
			total++
			if total == perKey*len(keys) {
				close(done)
			}
			return nil
		})
	}()

	for i := 0; i < perKey; i++ {
		for _, key := range keys {
			if err := log.Publish(ctx, "issue", key, []byte(strconv.Itoa(i))); err != nil {
				t.Fatalf("publish failed: %v", err)
			}
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, key := range keys {
		got := seen[key]
		if len(got) != perKey {
			t.Fatalf("key %s: expected %d messages, got %d", key, perKey, len(got))
		}
		for i, seq := range got {
			if seq != i {
				t.Fatalf("key %s: out of order at %d: %v", key, i, got)
			}
		}
		if len(partitions[key]) != 1 {
			t.Fatalf("key %s spread over partitions %v", key, partitions[key])
		}
	}
}

func TestMemoryLogPartitionStable(t *testing.T) {
	log := NewMemoryLog(8, 1)
	first := log.PartitionFor("42")
	for i := 0; i < 10; i++ {
		if got := log.PartitionFor("42"); got != first {
			t.Fatalf("partition must be stable, got %d and %d", first, got)
		}
	}
	if first < 0 || first >= 8 {
		t.Fatalf("partition out of range: %d", first)
	}
}

func TestMemoryLogBufferFullAndUndeclared(t *testing.T) {
	log := NewMemoryLog(1, 1)
	ctx := context.Background()

	if err := log.Publish(ctx, "nobody", "1", []byte("x")); err != nil {
		t.Fatalf("undeclared topic must drop silently, got %v", err)
	}

	log.Declare("issue")
	if err := log.Publish(ctx, "issue", "1", []byte("a")); err != nil {
		t.Fatalf("first publish failed: %v", err)
	}
	if err := log.Publish(ctx, "issue", "1", []byte("b")); !errors.Is(err, ErrTopicFull) {
		t.Fatalf("expected full buffer, got %v", err)
	}

	_ = log.Close()
	if err := log.Publish(ctx, "issue", "1", []byte("c")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
}

func TestHeaderCarrier(t *testing.T) {
	carrier := HeaderCarrier{}
	carrier.Set("traceparent", "00-abc-def-01")
	carrier.Set("traceparent", "00-abc-xyz-01")
	if got := carrier.Get("traceparent"); got != "00-abc-xyz-01" {
		t.Fatalf("unexpected header %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 1 {
		t.Fatalf("expected one header, got %v", keys)
	}
}

func TestIssueRequestWireFormat(t *testing.T) {
	req := IssueRequest{RequestID: "r-1", UserID: 3, CouponID: 9, RequestedAt: time.Unix(0, 0).UTC()}
	ctx := context.Background()
	log := NewMemoryLog(1, 4)
	sub := log.Subscribe("issue")
	if err := PublishJSON(ctx, log, "issue", req.Key(), req); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	received := make(chan Message, 1)
	go func() {
		_ = sub.Run(runCtx, func(ctx context.Context, msg Message) error {
			received <- msg
			return nil
		})
	}()
	defer cancel()

	select {
	case msg := <-received:
		if msg.Key != "9" {
			t.Fatalf("expected coupon id as key, got %q", msg.Key)
		}
		want := `{"request_id":"r-1","user_id":3,"coupon_id":9,"requested_at":"1970-01-01T00:00:00Z"}`
		if string(msg.Value) != want {
			t.Fatalf("unexpected payload %s", msg.Value)
		}
		decoded, err := DecodeIssueRequest(msg.Value)
		if err != nil || decoded.CouponID != 9 || decoded.Attempt != 0 {
			t.Fatalf("decode mismatch %+v %v", decoded, err)
		}
	case <-time.After(time.Second):
		t.Fatalf("message not delivered")
	}
}
