package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/couponflow/internal/apperr"

	"github.com/gin-gonic/gin"
)

func TestFromErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
		ec   string
	}{
		{err: apperr.New(apperr.KindValidation, "user_id_required", "user id is required"), code: CodeBadRequest, ec: "user_id_required"},
		{err: apperr.New(apperr.KindNotFound, "coupon_not_found", "coupon not found"), code: CodeNotFound, ec: "coupon_not_found"},
		{err: apperr.New(apperr.KindState, "coupon_disabled", "coupon disabled"), code: CodeConflict, ec: "coupon_disabled"},
		{err: apperr.New(apperr.KindCapacity, "point_insufficient", "point balance insufficient"), code: CodeUnprocessable, ec: "point_insufficient"},
		{err: fmt.Errorf("checkout: %w", apperr.New(apperr.KindConflict, "optimistic_retry_exhausted", "exhausted")), code: CodeConflict, ec: "optimistic_retry_exhausted"},
		{err: errors.Join(apperr.New(apperr.KindInfrastructure, "coupon_issue_unavailable", "unavailable"), errors.New("redis down")), code: CodeServiceUnavailable, ec: "coupon_issue_unavailable"},
		{err: errors.New("boom"), code: CodeInternal, ec: "internal_error"},
	}
	for _, tc := range cases {
		got := FromError(tc.err)
		if got.Code != tc.code || got.ErrorCode != tc.ec {
			t.Fatalf("FromError(%v) = %d/%s, want %d/%s", tc.err, got.Code, got.ErrorCode, tc.code, tc.ec)
		}
		if !errors.Is(got, tc.err) {
			t.Fatalf("AppError must wrap original error")
		}
	}
}

func TestAppErrAttachesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("request_id", "req-1")

	AppErr(c, FromError(apperr.New(apperr.KindNotFound, "order_not_found", "order not found")))

	var body struct {
		StatusCode int                    `json:"status_code"`
		Msg        string                 `json:"msg"`
		Data       map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if body.StatusCode != CodeNotFound || body.Msg != "order not found" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Data["error_code"] != "order_not_found" || body.Data["request_id"] != "req-1" {
		t.Fatalf("unexpected data: %+v", body.Data)
	}
}
