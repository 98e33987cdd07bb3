package waterfalls

import (
	"bytes"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	tipHashHex = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"
	prevTxHex  = "0e3e2357e806b6cdb1f70b54c3a3a17b6714ee1f0e68bebb44a74b1efd512098"
	testBase   = "http://waterfalls.test"
)

func mustChainHash(t *testing.T, s string) chainhash.Hash {
	t.Helper()
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		t.Fatalf("NewHashFromStr(%q): %v", s, err)
	}
	return *h
}

func sampleTx(t *testing.T) *wire.MsgTx {
	t.Helper()
	prev := mustChainHash(t, prevTxHex)
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, 1), []byte{0x51}, nil))
	tx.AddTxOut(wire.NewTxOut(149000, []byte{0x00, 0x14, 0x75, 0x1e}))
	tx.LockTime = 800000
	return tx
}

func serialize(t *testing.T, tx *wire.MsgTx) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return buf.Bytes()
}

func sampleHeader(t *testing.T) *wire.BlockHeader {
	t.Helper()
	prev := mustChainHash(t, tipHashHex)
	merkle := mustChainHash(t, prevTxHex)
	h := wire.NewBlockHeader(0x20000000, &prev, &merkle, 0x1d00ffff, 42)
	h.Timestamp = time.Unix(1690000000, 0)
	return h
}

func headerHex(t *testing.T, h *wire.BlockHeader) string {
	t.Helper()
	var buf bytes.Buffer
	if err := h.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return hex.EncodeToString(buf.Bytes())
}

func httpResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func textResponse(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		return httpResponse(status, body), nil
	}
}
