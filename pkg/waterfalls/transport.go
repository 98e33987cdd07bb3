package waterfalls

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/ratelimit"
	"golang.org/x/net/proxy"
)

func newHTTPClient(proxyURL *url.URL, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != nil {
		switch proxyURL.Scheme {
		case "socks5", "socks5h":
			transport.Proxy = nil
			transport.DialContext = socksDialer(proxyURL, timeout)
		default:
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// socksDialer connects through a SOCKS5 proxy. Target host names are
// resolved by the proxy. The handshake ends with ctx; without a ctx
// deadline it is bounded by timeout.
func socksDialer(proxyURL *url.URL, timeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	var auth *proxy.Auth
	if proxyURL.User != nil {
		auth = &proxy.Auth{User: proxyURL.User.Username()}
		auth.Password, _ = proxyURL.User.Password()
	}
	// proxy.SOCKS5 never returns an error.
	d, _ := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{})
	dialer := d.(proxy.ContextDialer)
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := ctx.Deadline(); !ok && timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return dialer.DialContext(ctx, network, addr)
	}
}

// rateLimitedDoer spaces out requests sent through next.
type rateLimitedDoer struct {
	next    Doer
	limiter ratelimit.Limiter
}

func newRateLimitedDoer(next Doer, rps int) *rateLimitedDoer {
	return &rateLimitedDoer{next: next, limiter: ratelimit.New(rps)}
}

func (d *rateLimitedDoer) Do(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	d.limiter.Take()
	return d.next.Do(req)
}
