package waterfalls

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newMockedClient(t *testing.T, maxRetries int, doer Doer, sleeper Sleeper, metrics Metrics) *Client {
	t.Helper()
	cfg := DefaultConfig(testBase)
	cfg.MaxRetries = maxRetries
	c, err := NewClient(cfg, WithDoer(doer), WithSleeper(sleeper), WithMetrics(metrics))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClient_GetTipHash_Retries(t *testing.T) {
	t.Parallel()

	anyTime := gomock.AssignableToTypeOf(time.Time{})
	tests := []struct {
		name       string
		maxRetries int
		prepare    func(doer *MockDoer, sleeper *MockSleeper, metrics *MockMetrics)
		wantStatus int
		wantErr    error
	}{
		{
			name:       "succeeds after three unavailable responses",
			maxRetries: DefaultMaxRetries,
			prepare: func(doer *MockDoer, sleeper *MockSleeper, metrics *MockMetrics) {
				gomock.InOrder(
					doer.EXPECT().Do(gomock.Any()).DoAndReturn(textResponse(503, "busy")),
					metrics.EXPECT().ObserveRetry("get_tip_hash", 503),
					sleeper.EXPECT().Sleep(gomock.Any(), 256*time.Millisecond).Return(nil),
					doer.EXPECT().Do(gomock.Any()).DoAndReturn(textResponse(503, "busy")),
					metrics.EXPECT().ObserveRetry("get_tip_hash", 503),
					sleeper.EXPECT().Sleep(gomock.Any(), 512*time.Millisecond).Return(nil),
					doer.EXPECT().Do(gomock.Any()).DoAndReturn(textResponse(503, "busy")),
					metrics.EXPECT().ObserveRetry("get_tip_hash", 503),
					sleeper.EXPECT().Sleep(gomock.Any(), 1024*time.Millisecond).Return(nil),
					doer.EXPECT().Do(gomock.Any()).DoAndReturn(textResponse(200, tipHashHex)),
					metrics.EXPECT().Observe("get_tip_hash", nil, anyTime),
				)
			},
		},
		{
			name:       "no retries configured",
			maxRetries: 0,
			prepare: func(doer *MockDoer, _ *MockSleeper, metrics *MockMetrics) {
				doer.EXPECT().Do(gomock.Any()).DoAndReturn(textResponse(503, "busy"))
				metrics.EXPECT().Observe("get_tip_hash", gomock.Not(nil), anyTime)
			},
			wantStatus: 503,
		},
		{
			name:       "last response surfaces when retries run out",
			maxRetries: 2,
			prepare: func(doer *MockDoer, sleeper *MockSleeper, metrics *MockMetrics) {
				doer.EXPECT().Do(gomock.Any()).DoAndReturn(textResponse(500, "boom")).Times(3)
				metrics.EXPECT().ObserveRetry("get_tip_hash", 500).Times(2)
				gomock.InOrder(
					sleeper.EXPECT().Sleep(gomock.Any(), 256*time.Millisecond).Return(nil),
					sleeper.EXPECT().Sleep(gomock.Any(), 512*time.Millisecond).Return(nil),
				)
				metrics.EXPECT().Observe("get_tip_hash", gomock.Not(nil), anyTime)
			},
			wantStatus: 500,
		},
		{
			name:       "terminal status is not retried",
			maxRetries: DefaultMaxRetries,
			prepare: func(doer *MockDoer, _ *MockSleeper, metrics *MockMetrics) {
				doer.EXPECT().Do(gomock.Any()).DoAndReturn(textResponse(404, "not found"))
				metrics.EXPECT().Observe("get_tip_hash", gomock.Not(nil), anyTime)
			},
			wantStatus: 404,
		},
		{
			name:       "transport error is not retried",
			maxRetries: DefaultMaxRetries,
			prepare: func(doer *MockDoer, _ *MockSleeper, metrics *MockMetrics) {
				doer.EXPECT().Do(gomock.Any()).Return(nil, errors.New("connection refused"))
				metrics.EXPECT().Observe("get_tip_hash", gomock.Not(nil), anyTime)
			},
			wantErr: ErrTransport,
		},
		{
			name:       "interrupted backoff",
			maxRetries: DefaultMaxRetries,
			prepare: func(doer *MockDoer, sleeper *MockSleeper, metrics *MockMetrics) {
				doer.EXPECT().Do(gomock.Any()).DoAndReturn(textResponse(429, "slow down"))
				metrics.EXPECT().ObserveRetry("get_tip_hash", 429)
				sleeper.EXPECT().Sleep(gomock.Any(), 256*time.Millisecond).Return(context.Canceled)
				metrics.EXPECT().Observe("get_tip_hash", gomock.Not(nil), anyTime)
			},
			wantErr: context.Canceled,
		},
		{
			name:       "malformed hash",
			maxRetries: DefaultMaxRetries,
			prepare: func(doer *MockDoer, _ *MockSleeper, metrics *MockMetrics) {
				doer.EXPECT().Do(gomock.Any()).DoAndReturn(textResponse(200, "not-a-hash"))
				metrics.EXPECT().Observe("get_tip_hash", gomock.Not(nil), anyTime)
			},
			wantErr: ErrHex,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			t.Cleanup(ctrl.Finish)

			doer := NewMockDoer(ctrl)
			sleeper := NewMockSleeper(ctrl)
			metrics := NewMockMetrics(ctrl)
			tt.prepare(doer, sleeper, metrics)

			c := newMockedClient(t, tt.maxRetries, doer, sleeper, metrics)
			got, err := c.GetTipHash(context.Background())

			switch {
			case tt.wantStatus != 0:
				if !IsHTTPStatus(err, tt.wantStatus) {
					t.Fatalf("error = %v, want status %d", err, tt.wantStatus)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != mustChainHash(t, tipHashHex) {
					t.Errorf("GetTipHash() = %s", got)
				}
				return
			}
			if !strings.HasPrefix(err.Error(), "get_tip_hash: ") {
				t.Errorf("error %q lacks operation prefix", err)
			}
		})
	}
}

func TestClient_InterruptedBackoffIsTransport(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	doer := NewMockDoer(ctrl)
	sleeper := NewMockSleeper(ctrl)
	doer.EXPECT().Do(gomock.Any()).DoAndReturn(textResponse(503, ""))
	sleeper.EXPECT().Sleep(gomock.Any(), gomock.Any()).Return(context.DeadlineExceeded)

	c := newMockedClient(t, 1, doer, sleeper, nil)
	_, err := c.ServerAddress(context.Background())
	if !errors.Is(err, ErrTransport) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want transport wrapping deadline", err)
	}
}

func TestClient_RetryLogging(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	doer := NewMockDoer(ctrl)
	sleeper := NewMockSleeper(ctrl)
	gomock.InOrder(
		doer.EXPECT().Do(gomock.Any()).DoAndReturn(textResponse(500, "")),
		doer.EXPECT().Do(gomock.Any()).DoAndReturn(textResponse(200, "42")),
	)
	sleeper.EXPECT().Sleep(gomock.Any(), DefaultBaseBackoff).Return(nil)

	core, logs := observer.New(zap.DebugLevel)
	c, err := NewClient(DefaultConfig(testBase), WithDoer(doer), WithSleeper(sleeper), WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	height, err := c.GetTipHeight(context.Background())
	if err != nil || height != 42 {
		t.Fatalf("GetTipHeight() = %d, %v", height, err)
	}

	entries := logs.FilterMessage("retrying request").All()
	if len(entries) != 1 {
		t.Fatalf("got %d retry log entries", len(entries))
	}
	fields := entries[0].ContextMap()
	if entries[0].LoggerName != "waterfalls" || fields["operation"] != "get_tip_height" || fields["attempt"] != int64(1) || fields["status"] != int64(500) {
		t.Errorf("retry log entry = %s %v", entries[0].LoggerName, fields)
	}
}

func TestClient_Broadcast_SingleAttempt(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	tx := sampleTx(t)
	doer := NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost || req.URL.Path != "/tx" {
			t.Errorf("request = %s %s", req.Method, req.URL.Path)
		}
		return httpResponse(503, "mempool busy"), nil
	})

	c := newMockedClient(t, DefaultMaxRetries, doer, NewMockSleeper(ctrl), nil)
	if _, err := c.Broadcast(context.Background(), tx); !IsHTTPStatus(err, 503) {
		t.Fatalf("error = %v, want status 503", err)
	}
}
