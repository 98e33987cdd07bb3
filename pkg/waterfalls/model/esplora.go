package model

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// The types below mirror the Esplora-compatible JSON served on
// /address/{addr}/txs.

// HexBytes is a byte slice carried as a hex string.
type HexBytes []byte

func (b HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("hex bytes: %w", err)
	}
	*b = decoded
	return nil
}

type PrevOut struct {
	Value        uint64   `json:"value"`
	ScriptPubKey HexBytes `json:"scriptpubkey"`
}

// TxIn is an input of an address history transaction.
type TxIn struct {
	Txid    chainhash.Hash
	Vout    uint32
	PrevOut *PrevOut // nil for coinbase inputs
	// ScriptSig is the unlocking script.
	ScriptSig  HexBytes
	Witness    []HexBytes
	Sequence   uint32
	IsCoinbase bool
}

type vinJSON struct {
	Txid       string     `json:"txid"`
	Vout       uint32     `json:"vout"`
	PrevOut    *PrevOut   `json:"prevout"`
	ScriptSig  HexBytes   `json:"scriptsig"`
	Witness    []HexBytes `json:"witness"`
	Sequence   uint32     `json:"sequence"`
	IsCoinbase bool       `json:"is_coinbase"`
}

func (v *TxIn) UnmarshalJSON(data []byte) error {
	var aux vinJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	txid, err := ParseHash(aux.Txid)
	if err != nil {
		return fmt.Errorf("vin txid: %w", err)
	}
	*v = TxIn{
		Txid:       txid,
		Vout:       aux.Vout,
		PrevOut:    aux.PrevOut,
		ScriptSig:  aux.ScriptSig,
		Witness:    aux.Witness,
		Sequence:   aux.Sequence,
		IsCoinbase: aux.IsCoinbase,
	}
	return nil
}

// TxOut is an output of an address history transaction.
type TxOut struct {
	Value        uint64   `json:"value"`
	ScriptPubKey HexBytes `json:"scriptpubkey"`
}

type TxStatus struct {
	Confirmed   bool
	BlockHeight *uint32
	BlockHash   *chainhash.Hash
	BlockTime   *uint64
}

type txStatusJSON struct {
	Confirmed   bool    `json:"confirmed"`
	BlockHeight *uint32 `json:"block_height"`
	BlockHash   *string `json:"block_hash"`
	BlockTime   *uint64 `json:"block_time"`
}

func (s *TxStatus) UnmarshalJSON(data []byte) error {
	var aux txStatusJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	blockHash, err := parseOptionalHash(aux.BlockHash)
	if err != nil {
		return fmt.Errorf("status block_hash: %w", err)
	}
	*s = TxStatus{
		Confirmed:   aux.Confirmed,
		BlockHeight: aux.BlockHeight,
		BlockHash:   blockHash,
		BlockTime:   aux.BlockTime,
	}
	return nil
}

// BlockTime is the confirmation point of a transaction.
type BlockTime struct {
	Timestamp uint64
	Height    uint32
}

// Tx is a transaction as listed by the address history endpoint.
type Tx struct {
	Txid     chainhash.Hash
	Version  int32
	LockTime uint32
	Vin      []TxIn
	Vout     []TxOut
	// Size is the serialized size in raw bytes, not virtual bytes.
	Size   int
	Weight uint64
	Status TxStatus
	Fee    uint64
}

type txJSON struct {
	Txid     string   `json:"txid"`
	Version  int32    `json:"version"`
	LockTime uint32   `json:"locktime"`
	Vin      []TxIn   `json:"vin"`
	Vout     []TxOut  `json:"vout"`
	Size     int      `json:"size"`
	Weight   uint64   `json:"weight"`
	Status   TxStatus `json:"status"`
	Fee      uint64   `json:"fee"`
}

func (t *Tx) UnmarshalJSON(data []byte) error {
	var aux txJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	txid, err := ParseHash(aux.Txid)
	if err != nil {
		return fmt.Errorf("txid: %w", err)
	}
	*t = Tx{
		Txid:     txid,
		Version:  aux.Version,
		LockTime: aux.LockTime,
		Vin:      aux.Vin,
		Vout:     aux.Vout,
		Size:     aux.Size,
		Weight:   aux.Weight,
		Status:   aux.Status,
		Fee:      aux.Fee,
	}
	return nil
}

// ToMsgTx rebuilds the wire transaction.
func (t Tx) ToMsgTx() *wire.MsgTx {
	msg := wire.NewMsgTx(t.Version)
	msg.LockTime = t.LockTime
	for _, in := range t.Vin {
		prev := in.Txid
		witness := make(wire.TxWitness, 0, len(in.Witness))
		for _, item := range in.Witness {
			witness = append(witness, []byte(item))
		}
		txIn := wire.NewTxIn(wire.NewOutPoint(&prev, in.Vout), in.ScriptSig, witness)
		txIn.Sequence = in.Sequence
		msg.AddTxIn(txIn)
	}
	for _, out := range t.Vout {
		msg.AddTxOut(wire.NewTxOut(int64(btcutil.Amount(out.Value)), out.ScriptPubKey))
	}
	return msg
}

// ConfirmationTime returns the block time when the transaction is confirmed.
func (t Tx) ConfirmationTime() (BlockTime, bool) {
	s := t.Status
	if !s.Confirmed || s.BlockHeight == nil || s.BlockTime == nil {
		return BlockTime{}, false
	}
	return BlockTime{Timestamp: *s.BlockTime, Height: *s.BlockHeight}, true
}

// PreviousOutputs returns the spent outputs in input order, nil for coinbase.
func (t Tx) PreviousOutputs() []*wire.TxOut {
	outs := make([]*wire.TxOut, 0, len(t.Vin))
	for _, in := range t.Vin {
		if in.PrevOut == nil {
			outs = append(outs, nil)
			continue
		}
		outs = append(outs, wire.NewTxOut(int64(btcutil.Amount(in.PrevOut.Value)), in.PrevOut.ScriptPubKey))
	}
	return outs
}

func (t Tx) FeeAmount() btcutil.Amount {
	return btcutil.Amount(t.Fee)
}
