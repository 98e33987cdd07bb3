package waterfalls

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/waterfalls-client/internal/clock"
	"github.com/goodnatureofminers/waterfalls-client/pkg/waterfalls/model"
)

// BlockingClient is the context-free counterpart of Client. Each call runs
// to completion on the calling goroutine and waits out every backoff delay.
// Cancellation is only possible through Config.Timeout, per exchange.
type BlockingClient struct {
	c *Client
}

// NewBlockingClient validates cfg and builds a BlockingClient.
func NewBlockingClient(cfg Config, opts ...Option) (*BlockingClient, error) {
	p, err := newPipeline(cfg, clock.BlockingSleeper{}, opts...)
	if err != nil {
		return nil, err
	}
	return &BlockingClient{c: &Client{p: p}}, nil
}

func (b *BlockingClient) URL() string {
	return b.c.URL()
}

func (b *BlockingClient) GetTx(txid chainhash.Hash) (*wire.MsgTx, error) {
	return b.c.GetTx(context.Background(), txid)
}

func (b *BlockingClient) GetTxNoOpt(txid chainhash.Hash) (*wire.MsgTx, error) {
	return b.c.GetTxNoOpt(context.Background(), txid)
}

// GetTxs fetches txids one after another.
func (b *BlockingClient) GetTxs(txids []chainhash.Hash) ([]*wire.MsgTx, error) {
	return b.c.GetTxs(context.Background(), txids, 1)
}

func (b *BlockingClient) GetHeaderByHash(hash chainhash.Hash) (*wire.BlockHeader, error) {
	return b.c.GetHeaderByHash(context.Background(), hash)
}

func (b *BlockingClient) GetTipHash() (chainhash.Hash, error) {
	return b.c.GetTipHash(context.Background())
}

func (b *BlockingClient) GetTipHeight() (uint32, error) {
	return b.c.GetTipHeight(context.Background())
}

func (b *BlockingClient) GetBlockHash(height uint32) (chainhash.Hash, error) {
	return b.c.GetBlockHash(context.Background(), height)
}

func (b *BlockingClient) GetAddressTxs(address btcutil.Address) (string, error) {
	return b.c.GetAddressTxs(context.Background(), address)
}

func (b *BlockingClient) AddressTxs(address btcutil.Address) ([]model.Tx, error) {
	return b.c.AddressTxs(context.Background(), address)
}

func (b *BlockingClient) Waterfalls(descriptor string) (model.WaterfallResponse, error) {
	return b.c.Waterfalls(context.Background(), descriptor)
}

func (b *BlockingClient) WaterfallsAddresses(addresses []btcutil.Address) (model.WaterfallResponse, error) {
	return b.c.WaterfallsAddresses(context.Background(), addresses)
}

func (b *BlockingClient) WaterfallsVersion(q WaterfallsQuery) (model.WaterfallResponse, error) {
	return b.c.WaterfallsVersion(context.Background(), q)
}

func (b *BlockingClient) ServerRecipient() (string, error) {
	return b.c.ServerRecipient(context.Background())
}

func (b *BlockingClient) ServerAddress() (string, error) {
	return b.c.ServerAddress(context.Background())
}

func (b *BlockingClient) TimeSinceLastBlock() (string, error) {
	return b.c.TimeSinceLastBlock(context.Background())
}

// Broadcast submits tx once and returns its hash.
func (b *BlockingClient) Broadcast(tx *wire.MsgTx) (chainhash.Hash, error) {
	return b.c.Broadcast(context.Background(), tx)
}
