// Package waterfalls is a client for waterfalls index servers: it resolves
// descriptors and addresses to the transactions touching them, fetches raw
// transactions and headers, and broadcasts transactions.
//
// Client takes a context on every call; cancelling it aborts both the
// in-flight request and any backoff wait. BlockingClient offers the same
// operations without a context and sleeps the calling goroutine between
// retries. Both run the same request pipeline and decode identical server
// responses to identical values.
package waterfalls

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/waterfalls-client/internal/clock"
	"github.com/goodnatureofminers/waterfalls-client/pkg/safe"
	"github.com/goodnatureofminers/waterfalls-client/pkg/waterfalls/model"
	"github.com/goodnatureofminers/waterfalls-client/pkg/workerpool"
)

const defaultWaterfallsVersion = 2

// Client talks to an index server. It is safe for concurrent use.
type Client struct {
	p *pipeline
}

// NewClient validates cfg and builds a Client. Backoff waits end early when
// the call's context is canceled unless WithSleeper says otherwise.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	p, err := newPipeline(cfg, clock.ContextSleeper{}, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{p: p}, nil
}

// URL returns the base URL requests are sent to.
func (c *Client) URL() string {
	return c.p.baseURL
}

// GetTx returns the transaction with txid, or nil when the server does not
// know it.
func (c *Client) GetTx(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
	return observe(c.p, "get_tx", func() (*wire.MsgTx, error) {
		resp, err := c.p.get(ctx, "get_tx", "/tx/"+txid.String()+"/raw", nil)
		if err != nil {
			return nil, err
		}
		return decodeOptionalConsensus[wire.MsgTx](resp)
	})
}

// GetTxNoOpt is GetTx for callers that require the transaction to exist.
func (c *Client) GetTxNoOpt(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
	tx, err := c.GetTx(ctx, txid)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("get_tx: %w", &NotFoundError{ID: txid.String()})
	}
	return tx, nil
}

// GetTxs fetches several transactions with at most workers requests in
// flight. The result lines up with txids; unknown transactions are nil.
func (c *Client) GetTxs(ctx context.Context, txids []chainhash.Hash, workers int) ([]*wire.MsgTx, error) {
	return workerpool.Map(ctx, workers, txids, c.GetTx)
}

// GetHeaderByHash returns the header of the block with hash.
func (c *Client) GetHeaderByHash(ctx context.Context, hash chainhash.Hash) (*wire.BlockHeader, error) {
	if header, ok := c.p.headers.get(hash); ok {
		return header, nil
	}
	return observe(c.p, "get_header", func() (*wire.BlockHeader, error) {
		resp, err := c.p.get(ctx, "get_header", "/block/"+hash.String()+"/header", nil)
		if err != nil {
			return nil, err
		}
		header, err := decodeHexConsensus[wire.BlockHeader](resp)
		if err != nil {
			return nil, err
		}
		c.p.headers.put(hash, header)
		return header, nil
	})
}

// GetTipHash returns the hash of the current chain tip.
func (c *Client) GetTipHash(ctx context.Context) (chainhash.Hash, error) {
	return c.getHash(ctx, "get_tip_hash", "/blocks/tip/hash")
}

// GetTipHeight returns the height of the current chain tip.
func (c *Client) GetTipHeight(ctx context.Context) (uint32, error) {
	return observe(c.p, "get_tip_height", func() (uint32, error) {
		resp, err := c.p.get(ctx, "get_tip_height", "/blocks/tip/height", nil)
		if err != nil {
			return 0, err
		}
		n, err := decodeUint(resp)
		if err != nil {
			return 0, err
		}
		height, err := safe.Uint32(n)
		if err != nil {
			return 0, fmt.Errorf("%w: tip height: %w", ErrParse, err)
		}
		return height, nil
	})
}

// GetBlockHash returns the hash of the block at height.
func (c *Client) GetBlockHash(ctx context.Context, height uint32) (chainhash.Hash, error) {
	return c.getHash(ctx, "get_block_hash", "/block-height/"+strconv.FormatUint(uint64(height), 10))
}

func (c *Client) getHash(ctx context.Context, op, path string) (chainhash.Hash, error) {
	return observe(c.p, op, func() (chainhash.Hash, error) {
		resp, err := c.p.get(ctx, op, path, nil)
		if err != nil {
			return chainhash.Hash{}, err
		}
		return decodeHash(resp)
	})
}

// GetAddressTxs returns the raw Esplora-compatible JSON history of address.
func (c *Client) GetAddressTxs(ctx context.Context, address btcutil.Address) (string, error) {
	return c.getText(ctx, "get_address_txs", addressTxsPath(address))
}

// AddressTxs is GetAddressTxs decoded into transactions.
func (c *Client) AddressTxs(ctx context.Context, address btcutil.Address) ([]model.Tx, error) {
	return observe(c.p, "address_txs", func() ([]model.Tx, error) {
		resp, err := c.p.get(ctx, "address_txs", addressTxsPath(address), nil)
		if err != nil {
			return nil, err
		}
		return decodeJSON[[]model.Tx](resp)
	})
}

func addressTxsPath(address btcutil.Address) string {
	return "/address/" + url.PathEscape(address.String()) + "/txs"
}

// Waterfalls returns the history of every script derived from descriptor.
func (c *Client) Waterfalls(ctx context.Context, descriptor string) (model.WaterfallResponse, error) {
	return c.waterfalls(ctx, defaultWaterfallsVersion, []QueryParam{{Key: "descriptor", Value: descriptor}})
}

// WaterfallsAddresses returns the history of each address, keyed by address.
func (c *Client) WaterfallsAddresses(ctx context.Context, addresses []btcutil.Address) (model.WaterfallResponse, error) {
	encoded := make([]string, 0, len(addresses))
	for _, a := range addresses {
		encoded = append(encoded, a.String())
	}
	return c.waterfalls(ctx, defaultWaterfallsVersion, []QueryParam{{Key: "addresses", Value: strings.Join(encoded, ",")}})
}

// WaterfallsQuery selects a versioned waterfalls lookup.
type WaterfallsQuery struct {
	Descriptor string
	Version    uint8
	// Page requests a page other than the first.
	Page *uint32
	// ToIndex bounds the derivation index scanned.
	ToIndex *uint32
	// UTXOOnly restricts the result to unspent outputs.
	UTXOOnly bool
}

func (q WaterfallsQuery) params() []QueryParam {
	params := []QueryParam{
		{Key: "descriptor", Value: q.Descriptor},
		{Key: "utxo_only", Value: strconv.FormatBool(q.UTXOOnly)},
	}
	if q.Page != nil {
		params = append(params, QueryParam{Key: "page", Value: strconv.FormatUint(uint64(*q.Page), 10)})
	}
	if q.ToIndex != nil {
		params = append(params, QueryParam{Key: "to_index", Value: strconv.FormatUint(uint64(*q.ToIndex), 10)})
	}
	return params
}

// WaterfallsVersion runs a lookup against /v{version}/waterfalls.
func (c *Client) WaterfallsVersion(ctx context.Context, q WaterfallsQuery) (model.WaterfallResponse, error) {
	return c.waterfalls(ctx, q.Version, q.params())
}

func (c *Client) waterfalls(ctx context.Context, version uint8, params []QueryParam) (model.WaterfallResponse, error) {
	path := "/v" + strconv.FormatUint(uint64(version), 10) + "/waterfalls"
	return observe(c.p, "waterfalls", func() (model.WaterfallResponse, error) {
		resp, err := c.p.get(ctx, "waterfalls", path, params)
		if err != nil {
			return model.WaterfallResponse{}, err
		}
		return decodeJSON[model.WaterfallResponse](resp)
	})
}

// ServerRecipient returns the server's public key for encryption.
func (c *Client) ServerRecipient(ctx context.Context) (string, error) {
	return c.getText(ctx, "server_recipient", "/v1/server_recipient")
}

// ServerAddress returns the server's address for message signing verification.
func (c *Client) ServerAddress(ctx context.Context) (string, error) {
	return c.getText(ctx, "server_address", "/v1/server_address")
}

// TimeSinceLastBlock returns the server's freshness indicator.
func (c *Client) TimeSinceLastBlock(ctx context.Context) (string, error) {
	return c.getText(ctx, "time_since_last_block", "/v1/time_since_last_block")
}

func (c *Client) getText(ctx context.Context, op, path string) (string, error) {
	return observe(c.p, op, func() (string, error) {
		resp, err := c.p.get(ctx, op, path, nil)
		if err != nil {
			return "", err
		}
		return decodeText(resp)
	})
}

// Broadcast submits tx and returns its hash. The request is sent once;
// a failed broadcast is not retried.
func (c *Client) Broadcast(ctx context.Context, tx *wire.MsgTx) (chainhash.Hash, error) {
	return observe(c.p, "broadcast", func() (chainhash.Hash, error) {
		var buf bytes.Buffer
		buf.Grow(tx.SerializeSize())
		if err := tx.Serialize(&buf); err != nil {
			return chainhash.Hash{}, fmt.Errorf("%w: %w", ErrCodec, err)
		}
		body := []byte(hex.EncodeToString(buf.Bytes()))

		resp, err := c.p.post(ctx, "/tx", "text/plain", body)
		if err != nil {
			return chainhash.Hash{}, err
		}
		if err := checkStatus(resp); err != nil {
			return chainhash.Hash{}, err
		}
		return tx.TxHash(), nil
	})
}
