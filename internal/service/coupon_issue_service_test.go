package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/couponflow/internal/cache"
	"github.com/couponflow/internal/constants"
	"github.com/couponflow/internal/mq"
)

func newTestIssueService(t *testing.T, store cache.IssueStore, publisher mq.Publisher) *CouponIssueService {
	t.Helper()
	svc := NewCouponIssueService(store, publisher, "")
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestCouponIssueAdmitPublishesRequest(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryIssueStore()
	publisher := &recordingPublisher{}
	if err := store.SeedStock(ctx, 7, 2); err != nil {
		t.Fatalf("seed stock failed: %v", err)
	}
	svc := newTestIssueService(t, store, publisher)

	result, err := svc.Admit(ctx, 11, 7)
	if err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	if !result.Admitted || result.RequestID == "" {
		t.Fatalf("expected admitted with request id, got %+v", result)
	}
	reqs := publisher.requests(t)
	if len(reqs) != 1 {
		t.Fatalf("expected one published request, got %d", len(reqs))
	}
	if reqs[0].RequestID != result.RequestID || reqs[0].UserID != 11 || reqs[0].CouponID != 7 {
		t.Fatalf("unexpected request: %+v", reqs[0])
	}
	if publisher.messages[0].topic != constants.TopicCouponIssueRequest || publisher.messages[0].key != "7" {
		t.Fatalf("unexpected topic/key: %s/%s", publisher.messages[0].topic, publisher.messages[0].key)
	}
}

func TestCouponIssueAdmitSoldOutScenario(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryIssueStore()
	publisher := &recordingPublisher{}
	_ = store.SeedStock(ctx, 1, 1)
	svc := newTestIssueService(t, store, publisher)

	first, err := svc.Admit(ctx, 100, 1)
	if err != nil || !first.Admitted {
		t.Fatalf("first admit should pass: %+v %v", first, err)
	}
	second, err := svc.Admit(ctx, 200, 1)
	if err != nil {
		t.Fatalf("second admit returned error: %v", err)
	}
	if second.Admitted || second.Reason != constants.IssueStatusOutOfStock {
		t.Fatalf("expected OUT_OF_STOCK, got %+v", second)
	}
	count, _ := store.ParticipantCount(ctx, 1)
	if count != 1 {
		t.Fatalf("rejected user must be removed from participants, count=%d", count)
	}
	if len(publisher.requests(t)) != 1 {
		t.Fatalf("only the admitted request may be published")
	}
}

func TestCouponIssueAdmitGateDuplicate(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryIssueStore()
	publisher := &recordingPublisher{}
	_ = store.SeedStock(ctx, 3, 5)
	svc := newTestIssueService(t, store, publisher)

	if result, err := svc.Admit(ctx, 9, 3); err != nil || !result.Admitted {
		t.Fatalf("first admit should pass: %+v %v", result, err)
	}
	result, err := svc.Admit(ctx, 9, 3)
	if err != nil {
		t.Fatalf("duplicate admit returned error: %v", err)
	}
	if result.Admitted || result.Reason != constants.IssueStatusDuplicate {
		t.Fatalf("expected DUPLICATE, got %+v", result)
	}
	count, _ := store.ParticipantCount(ctx, 3)
	if count != 1 {
		t.Fatalf("duplicate must keep the original slot, count=%d", count)
	}
	if len(publisher.requests(t)) != 1 {
		t.Fatalf("duplicate must not publish")
	}
}

func TestCouponIssueAdmitConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryIssueStore()
	publisher := &recordingPublisher{}
	_ = store.SeedStock(ctx, 8, 10)
	svc := newTestIssueService(t, store, publisher)

	const workers = 50
	results := make([]AdmissionResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Admit(ctx, 21, 8)
		}(i)
	}
	wg.Wait()

	admitted := 0
	for i, result := range results {
		if errs[i] != nil {
			t.Fatalf("admit %d returned error: %v", i, errs[i])
		}
		if result.Admitted {
			admitted++
			continue
		}
		if result.Reason != constants.IssueStatusDuplicate {
			t.Fatalf("expected DUPLICATE for rejected request, got %+v", result)
		}
	}
	if admitted != 1 {
		t.Fatalf("expected exactly one admission, got %d", admitted)
	}
	if len(publisher.requests(t)) != 1 {
		t.Fatalf("expected one published request, got %d", len(publisher.requests(t)))
	}
	if count, _ := store.ParticipantCount(ctx, 8); count != 1 {
		t.Fatalf("expected one participant, got %d", count)
	}
}

func TestCouponIssueAdmitUnseededCoupon(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryIssueStore()
	svc := newTestIssueService(t, store, &recordingPublisher{})

	result, err := svc.Admit(ctx, 1, 404)
	if err != nil {
		t.Fatalf("admit returned error: %v", err)
	}
	if result.Reason != constants.IssueStatusNotFound {
		t.Fatalf("expected NOT_FOUND, got %+v", result)
	}
	count, _ := store.ParticipantCount(ctx, 404)
	if count != 0 {
		t.Fatalf("unseeded coupon must not keep participants, count=%d", count)
	}
}

func TestCouponIssueAdmitPublishFailureReleasesSlot(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryIssueStore()
	_ = store.SeedStock(ctx, 5, 1)
	publisher := &recordingPublisher{err: errors.New("broker unavailable")}
	svc := newTestIssueService(t, store, publisher)

	_, err := svc.Admit(ctx, 8, 5)
	if !errors.Is(err, ErrIssueUnavailable) {
		t.Fatalf("expected ErrIssueUnavailable, got %v", err)
	}
	count, _ := store.ParticipantCount(ctx, 5)
	if count != 0 {
		t.Fatalf("publish failure must release slot, count=%d", count)
	}

	publisher.err = nil
	result, err := svc.Admit(ctx, 8, 5)
	if err != nil || !result.Admitted {
		t.Fatalf("user should be able to retry after failure: %+v %v", result, err)
	}
}

func TestCouponIssueAdmitValidation(t *testing.T) {
	svc := newTestIssueService(t, cache.NewMemoryIssueStore(), &recordingPublisher{})
	if _, err := svc.Admit(context.Background(), 0, 1); !errors.Is(err, ErrUserIDRequired) {
		t.Fatalf("expected ErrUserIDRequired, got %v", err)
	}
	if _, err := svc.Admit(context.Background(), 1, 0); !errors.Is(err, ErrCouponIDRequired) {
		t.Fatalf("expected ErrCouponIDRequired, got %v", err)
	}
}

func TestCouponIssueAdmitRaceBound(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryIssueStore()
	publisher := &recordingPublisher{}
	const stock = 10
	const users = 64
	_ = store.SeedStock(ctx, 42, stock)
	svc := newTestIssueService(t, store, publisher)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 1; i <= users; i++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			result, err := svc.Admit(ctx, userID, 42)
			if err != nil {
				t.Errorf("admit user %d failed: %v", userID, err)
				return
			}
			if result.Admitted {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(uint(i))
	}
	wg.Wait()

	if admitted > stock {
		t.Fatalf("admitted %d exceeds stock %d", admitted, stock)
	}
	if admitted == 0 {
		t.Fatalf("expected some admissions")
	}
	if got := len(publisher.requests(t)); got != admitted {
		t.Fatalf("published %d requests, admitted %d", got, admitted)
	}
}

func TestCouponIssueGetOutcome(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryIssueStore()
	svc := newTestIssueService(t, store, &recordingPublisher{})

	outcome, err := svc.GetOutcome(ctx, "pending")
	if err != nil || outcome != nil {
		t.Fatalf("expected no outcome yet, got %+v %v", outcome, err)
	}
	id := uint(77)
	recorded := mq.IssueOutcome{RequestID: "r-1", UserID: 1, CouponID: 2, CouponUserID: &id, Status: constants.IssueStatusSuccess}
	if err := store.SaveOutcome(ctx, "r-1", recorded, time.Minute); err != nil {
		t.Fatalf("save outcome failed: %v", err)
	}
	outcome, err = svc.GetOutcome(ctx, "r-1")
	if err != nil {
		t.Fatalf("get outcome failed: %v", err)
	}
	if outcome == nil || outcome.Status != constants.IssueStatusSuccess || outcome.CouponUserID == nil || *outcome.CouponUserID != 77 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if _, err := svc.GetOutcome(ctx, ""); !errors.Is(err, ErrRequestIDRequired) {
		t.Fatalf("expected ErrRequestIDRequired, got %v", err)
	}
}
