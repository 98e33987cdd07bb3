package waterfalls

import (
	"context"
	"net/http"
	"time"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Doer sends a single HTTP request. *http.Client satisfies it.
	Doer interface {
		Do(req *http.Request) (*http.Response, error)
	}
	// Sleeper waits between retries. Implementations decide whether the
	// wait blocks the goroutine or ends early on context cancellation.
	Sleeper interface {
		Sleep(ctx context.Context, d time.Duration) error
	}
	// Metrics records operation outcomes.
	Metrics interface {
		Observe(operation string, err error, started time.Time)
		ObserveRetry(operation string, status int)
	}
)

type nopMetrics struct{}

func (nopMetrics) Observe(string, error, time.Time) {}
func (nopMetrics) ObserveRetry(string, int)         {}
