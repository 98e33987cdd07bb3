package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goodnatureofminers/waterfalls-client/pkg/waterfalls"
	"go.uber.org/zap"
)

const tipHash = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"

func newTestApp(t *testing.T, handler http.HandlerFunc) (*application, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := waterfalls.NewClient(waterfalls.DefaultConfig(srv.URL), waterfalls.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	params, err := networkParams("mainnet")
	if err != nil {
		t.Fatalf("networkParams: %v", err)
	}
	var out bytes.Buffer
	return &application{
		ctx:    context.Background(),
		logger: zap.NewNop(),
		out:    &out,
		params: params,
		client: client,
	}, &out
}

func Test_parseHeight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "800000", want: 800000},
		{in: "4294967295", want: 4294967295},
		{in: "4294967296", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "tip", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := parseHeight(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHeight(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseHeight(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func Test_networkParams(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"mainnet", "testnet", "signet", "regtest"} {
		if _, err := networkParams(name); err != nil {
			t.Errorf("networkParams(%q): %v", name, err)
		}
	}
	if _, err := networkParams("litecoin"); err == nil {
		t.Errorf("expected error for unknown network")
	}
}

func Test_blockHashCommand(t *testing.T) {
	app, out := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/block-height/0" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, tipHash+"\n")
	})

	cmd := &blockHashCommand{app: app}
	cmd.Args.Height = "0"
	if err := cmd.Execute(nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != tipHash {
		t.Errorf("output = %q", got)
	}
}

func Test_serverTextCommand(t *testing.T) {
	app, out := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "12 seconds")
	})

	cmd := &serverTextCommand{app: app, fetch: (*waterfalls.Client).TimeSinceLastBlock}
	if err := cmd.Execute(nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.String(); got != "12 seconds\n" {
		t.Errorf("output = %q", got)
	}
}

func Test_waterfallsCommand_Validation(t *testing.T) {
	app, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	tests := []struct {
		name string
		cmd  waterfallsCommand
	}{
		{name: "nothing to scan", cmd: waterfallsCommand{}},
		{name: "both inputs", cmd: waterfallsCommand{Descriptor: "wpkh(x)", Addresses: []string{"bc1q"}}},
		{name: "invalid address", cmd: waterfallsCommand{Addresses: []string{"not-an-address"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd
			cmd.app = app
			if err := cmd.Execute(nil); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}

func Test_broadcastCommand_InvalidHex(t *testing.T) {
	app, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	for _, in := range []string{"zz", "0100"} {
		cmd := &broadcastCommand{app: app}
		cmd.Args.Tx = in
		if err := cmd.Execute(nil); err == nil {
			t.Errorf("Execute(%q) expected error", in)
		}
	}
}
