package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/waterfalls-client/pkg/safe"
	"github.com/goodnatureofminers/waterfalls-client/pkg/waterfalls"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

type application struct {
	cfg    config
	ctx    context.Context
	logger *zap.Logger
	out    io.Writer
	params *chaincfg.Params
	client *waterfalls.Client
}

func (a *application) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *application) printText(s string) error {
	_, err := fmt.Fprintln(a.out, strings.TrimSpace(s))
	return err
}

func registerCommands(parser *flags.Parser, app *application) {
	commands := []struct {
		name, short string
		cmd         flags.Commander
	}{
		{"tip-hash", "Print the hash of the chain tip", &tipHashCommand{app: app}},
		{"tip-height", "Print the height of the chain tip", &tipHeightCommand{app: app}},
		{"block-hash", "Print the hash of the block at a height", &blockHashCommand{app: app}},
		{"header", "Print a block header", &headerCommand{app: app}},
		{"tx", "Print a raw transaction as hex", &txCommand{app: app}},
		{"address-txs", "Print the transaction history of an address", &addressTxsCommand{app: app}},
		{"waterfalls", "Print the history of a descriptor or addresses", &waterfallsCommand{app: app}},
		{"broadcast", "Broadcast a hex encoded transaction", &broadcastCommand{app: app}},
		{"server-recipient", "Print the server encryption recipient", &serverTextCommand{app: app, fetch: (*waterfalls.Client).ServerRecipient}},
		{"server-address", "Print the server signing address", &serverTextCommand{app: app, fetch: (*waterfalls.Client).ServerAddress}},
		{"time-since-last-block", "Print the server freshness indicator", &serverTextCommand{app: app, fetch: (*waterfalls.Client).TimeSinceLastBlock}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.short, c.cmd); err != nil {
			panic("register command " + c.name + ": " + err.Error())
		}
	}
}

type tipHashCommand struct {
	app *application
}

func (c *tipHashCommand) Execute([]string) error {
	hash, err := c.app.client.GetTipHash(c.app.ctx)
	if err != nil {
		return err
	}
	return c.app.printText(hash.String())
}

type tipHeightCommand struct {
	app *application
}

func (c *tipHeightCommand) Execute([]string) error {
	height, err := c.app.client.GetTipHeight(c.app.ctx)
	if err != nil {
		return err
	}
	return c.app.printText(strconv.FormatUint(uint64(height), 10))
}

type blockHashCommand struct {
	app  *application
	Args struct {
		Height string `positional-arg-name:"height"`
	} `positional-args:"yes" required:"yes"`
}

func (c *blockHashCommand) Execute([]string) error {
	height, err := parseHeight(c.Args.Height)
	if err != nil {
		return err
	}
	hash, err := c.app.client.GetBlockHash(c.app.ctx, height)
	if err != nil {
		return err
	}
	return c.app.printText(hash.String())
}

func parseHeight(s string) (uint32, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse height %q: %w", s, err)
	}
	height, err := safe.Uint32(n)
	if err != nil {
		return 0, fmt.Errorf("height: %w", err)
	}
	return height, nil
}

type headerCommand struct {
	app  *application
	Args struct {
		Hash string `positional-arg-name:"block-hash"`
	} `positional-args:"yes" required:"yes"`
}

func (c *headerCommand) Execute([]string) error {
	hash, err := chainhash.NewHashFromStr(c.Args.Hash)
	if err != nil {
		return fmt.Errorf("parse block hash: %w", err)
	}
	header, err := c.app.client.GetHeaderByHash(c.app.ctx, *hash)
	if err != nil {
		return err
	}
	return c.app.print(struct {
		Hash       string `json:"hash"`
		Version    int32  `json:"version"`
		PrevBlock  string `json:"previousblockhash"`
		MerkleRoot string `json:"merkleroot"`
		Time       int64  `json:"time"`
		Bits       uint32 `json:"bits"`
		Nonce      uint32 `json:"nonce"`
	}{
		Hash:       header.BlockHash().String(),
		Version:    header.Version,
		PrevBlock:  header.PrevBlock.String(),
		MerkleRoot: header.MerkleRoot.String(),
		Time:       header.Timestamp.Unix(),
		Bits:       header.Bits,
		Nonce:      header.Nonce,
	})
}

type txCommand struct {
	app     *application
	Workers int `long:"workers" description:"concurrent requests when several txids are given" default:"4"`
	Args    struct {
		Txids []string `positional-arg-name:"txid"`
	} `positional-args:"yes" required:"yes"`
}

func (c *txCommand) Execute([]string) error {
	txids := make([]chainhash.Hash, 0, len(c.Args.Txids))
	for _, s := range c.Args.Txids {
		h, err := chainhash.NewHashFromStr(s)
		if err != nil {
			return fmt.Errorf("parse txid %q: %w", s, err)
		}
		txids = append(txids, *h)
	}

	txs, err := c.app.client.GetTxs(c.app.ctx, txids, c.Workers)
	if err != nil {
		return err
	}
	for i, tx := range txs {
		if tx == nil {
			c.app.logger.Warn("transaction not found", zap.String("txid", txids[i].String()))
			continue
		}
		var buf bytes.Buffer
		if err := tx.Serialize(&buf); err != nil {
			return fmt.Errorf("serialize %s: %w", txids[i], err)
		}
		if err := c.app.printText(hex.EncodeToString(buf.Bytes())); err != nil {
			return err
		}
	}
	return nil
}

type addressTxsCommand struct {
	app  *application
	Args struct {
		Address string `positional-arg-name:"address"`
	} `positional-args:"yes" required:"yes"`
}

func (c *addressTxsCommand) Execute([]string) error {
	addr, err := btcutil.DecodeAddress(c.Args.Address, c.app.params)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	txs, err := c.app.client.AddressTxs(c.app.ctx, addr)
	if err != nil {
		return err
	}
	type row struct {
		Txid      string  `json:"txid"`
		Height    *uint32 `json:"height,omitempty"`
		Fee       float64 `json:"fee_btc"`
		Inputs    int     `json:"inputs"`
		Outputs   int     `json:"outputs"`
		Confirmed bool    `json:"confirmed"`
	}
	rows := make([]row, 0, len(txs))
	for _, tx := range txs {
		r := row{
			Txid:      tx.Txid.String(),
			Fee:       tx.FeeAmount().ToBTC(),
			Inputs:    len(tx.Vin),
			Outputs:   len(tx.Vout),
			Confirmed: tx.Status.Confirmed,
		}
		if bt, ok := tx.ConfirmationTime(); ok {
			height := bt.Height
			r.Height = &height
		}
		rows = append(rows, r)
	}
	return c.app.print(rows)
}

type waterfallsCommand struct {
	app        *application
	Descriptor string   `long:"descriptor" description:"output descriptor to scan"`
	Addresses  []string `long:"address" description:"address to scan, may be repeated"`
	Version    uint8    `long:"api-version" description:"waterfalls endpoint version" default:"2"`
	Page       *uint32  `long:"page" description:"result page"`
	ToIndex    *uint32  `long:"to-index" description:"highest derivation index to scan"`
	UTXOOnly   bool     `long:"utxo-only" description:"only return unspent outputs"`
}

func (c *waterfallsCommand) Execute([]string) error {
	switch {
	case c.Descriptor != "" && len(c.Addresses) > 0:
		return errors.New("--descriptor and --address are mutually exclusive")
	case len(c.Addresses) > 0:
		addrs := make([]btcutil.Address, 0, len(c.Addresses))
		for _, s := range c.Addresses {
			addr, err := btcutil.DecodeAddress(s, c.app.params)
			if err != nil {
				return fmt.Errorf("decode address %q: %w", s, err)
			}
			addrs = append(addrs, addr)
		}
		resp, err := c.app.client.WaterfallsAddresses(c.app.ctx, addrs)
		if err != nil {
			return err
		}
		return c.app.print(resp)
	case c.Descriptor != "":
		resp, err := c.app.client.WaterfallsVersion(c.app.ctx, waterfalls.WaterfallsQuery{
			Descriptor: c.Descriptor,
			Version:    c.Version,
			Page:       c.Page,
			ToIndex:    c.ToIndex,
			UTXOOnly:   c.UTXOOnly,
		})
		if err != nil {
			return err
		}
		c.app.logger.Debug("waterfalls fetched",
			zap.Int("keys", resp.TxsSeen.Len()),
			zap.Int("txs", resp.Count()),
			zap.Uint16("page", resp.Page),
		)
		return c.app.print(resp)
	default:
		return errors.New("one of --descriptor or --address is required")
	}
}

type broadcastCommand struct {
	app  *application
	Args struct {
		Tx string `positional-arg-name:"tx-hex"`
	} `positional-args:"yes" required:"yes"`
}

func (c *broadcastCommand) Execute([]string) error {
	raw, err := hex.DecodeString(strings.TrimSpace(c.Args.Tx))
	if err != nil {
		return fmt.Errorf("decode tx hex: %w", err)
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("decode tx: %w", err)
	}
	txid, err := c.app.client.Broadcast(c.app.ctx, &tx)
	if err != nil {
		return err
	}
	return c.app.printText(txid.String())
}

type serverTextCommand struct {
	app   *application
	fetch func(*waterfalls.Client, context.Context) (string, error)
}

func (c *serverTextCommand) Execute([]string) error {
	text, err := c.fetch(c.app.client, c.app.ctx)
	if err != nil {
		return err
	}
	return c.app.printText(text)
}
