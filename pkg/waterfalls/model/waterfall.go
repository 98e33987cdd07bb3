package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// BlockMeta describes the chain tip at response time.
type BlockMeta struct {
	Hash      chainhash.Hash
	Timestamp uint32
	Height    uint32
}

type blockMetaJSON struct {
	B string `json:"b"`
	T uint32 `json:"t"`
	H uint32 `json:"h"`
}

// Compare orders block metas by hash bytes, then timestamp, then height.
func (m BlockMeta) Compare(other BlockMeta) int {
	if c := bytes.Compare(m.Hash[:], other.Hash[:]); c != 0 {
		return c
	}
	switch {
	case m.Timestamp < other.Timestamp:
		return -1
	case m.Timestamp > other.Timestamp:
		return 1
	case m.Height < other.Height:
		return -1
	case m.Height > other.Height:
		return 1
	}
	return 0
}

func (m BlockMeta) MarshalJSON() ([]byte, error) {
	return json.Marshal(blockMetaJSON{B: m.Hash.String(), T: m.Timestamp, H: m.Height})
}

func (m *BlockMeta) UnmarshalJSON(data []byte) error {
	var aux blockMetaJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	h, err := ParseHash(aux.B)
	if err != nil {
		return fmt.Errorf("tip_meta: %w", err)
	}
	*m = BlockMeta{Hash: h, Timestamp: aux.T, Height: aux.H}
	return nil
}

// TxSeen is one transaction touching a queried script.
type TxSeen struct {
	Txid           chainhash.Hash
	Height         uint32
	BlockHash      *chainhash.Hash
	BlockTimestamp *uint32
	V              V
}

type txSeenJSON struct {
	Txid           string  `json:"txid"`
	Height         uint32  `json:"height"`
	BlockHash      *string `json:"block_hash,omitempty"`
	BlockTimestamp *uint32 `json:"block_timestamp,omitempty"`
	V              V       `json:"v,omitzero"`
}

func (t TxSeen) MarshalJSON() ([]byte, error) {
	return json.Marshal(txSeenJSON{
		Txid:           t.Txid.String(),
		Height:         t.Height,
		BlockHash:      optionalHashString(t.BlockHash),
		BlockTimestamp: t.BlockTimestamp,
		V:              t.V,
	})
}

func (t *TxSeen) UnmarshalJSON(data []byte) error {
	var aux txSeenJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	txid, err := ParseHash(aux.Txid)
	if err != nil {
		return fmt.Errorf("txid: %w", err)
	}
	blockHash, err := parseOptionalHash(aux.BlockHash)
	if err != nil {
		return fmt.Errorf("block_hash: %w", err)
	}
	*t = TxSeen{
		Txid:           txid,
		Height:         aux.Height,
		BlockHash:      blockHash,
		BlockTimestamp: aux.BlockTimestamp,
		V:              aux.V,
	}
	return nil
}

// ScriptTxs is the history of a single derivation key, split in pages.
type ScriptTxs struct {
	Key   string
	Pages [][]TxSeen
}

// TxsSeen maps derivation keys to their pages, keeping the order in which
// the server listed the keys. Callers rely on that order to line keys up
// with derivation indexes.
type TxsSeen struct {
	keys  []string
	pages map[string][][]TxSeen
}

// NewTxsSeen builds a TxsSeen from entries in order. A repeated key keeps
// its first position and takes the last pages.
func NewTxsSeen(entries ...ScriptTxs) TxsSeen {
	var s TxsSeen
	for _, e := range entries {
		s.put(e.Key, clonePages(e.Pages))
	}
	return s
}

func (s *TxsSeen) put(key string, pages [][]TxSeen) {
	if s.pages == nil {
		s.pages = make(map[string][][]TxSeen)
	}
	if _, ok := s.pages[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.pages[key] = pages
}

// Keys returns the keys in server order.
func (s TxsSeen) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Get returns a copy of the pages for key.
func (s TxsSeen) Get(key string) ([][]TxSeen, bool) {
	pages, ok := s.pages[key]
	if !ok {
		return nil, false
	}
	return clonePages(pages), true
}

func clonePages(pages [][]TxSeen) [][]TxSeen {
	out := make([][]TxSeen, len(pages))
	for i, page := range pages {
		out[i] = append([]TxSeen{}, page...)
	}
	return out
}

func (s TxsSeen) Len() int { return len(s.keys) }

// Each calls fn for every key in order with a copy of its pages, stopping
// when fn returns false.
func (s TxsSeen) Each(fn func(key string, pages [][]TxSeen) bool) {
	s.each(func(key string, pages [][]TxSeen) bool {
		return fn(key, clonePages(pages))
	})
}

func (s TxsSeen) each(fn func(key string, pages [][]TxSeen) bool) {
	for _, k := range s.keys {
		if !fn(k, s.pages[k]) {
			return
		}
	}
}

func (s TxsSeen) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		pages := s.pages[k]
		if pages == nil {
			pages = [][]TxSeen{}
		}
		value, err := json.Marshal(pages)
		if err != nil {
			return nil, fmt.Errorf("txs_seen %q: %w", k, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *TxsSeen) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = TxsSeen{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("txs_seen: expected object, got %v", tok)
	}

	var out TxsSeen
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("txs_seen: expected key, got %v", tok)
		}
		var pages [][]TxSeen
		if err := dec.Decode(&pages); err != nil {
			return fmt.Errorf("txs_seen %q: %w", key, err)
		}
		out.put(key, pages)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// WaterfallResponse is the reply of the waterfalls endpoint.
type WaterfallResponse struct {
	TxsSeen TxsSeen
	Page    uint16
	Tip     *chainhash.Hash
	TipMeta *BlockMeta
}

type waterfallResponseJSON struct {
	TxsSeen TxsSeen    `json:"txs_seen"`
	Page    uint16     `json:"page"`
	Tip     *string    `json:"tip,omitempty"`
	TipMeta *BlockMeta `json:"tip_meta,omitempty"`
}

// IsEmpty reports whether no page of any key holds a transaction.
func (r WaterfallResponse) IsEmpty() bool {
	empty := true
	r.TxsSeen.each(func(_ string, pages [][]TxSeen) bool {
		for _, page := range pages {
			if len(page) > 0 {
				empty = false
				return false
			}
		}
		return true
	})
	return empty
}

// Count returns the number of transactions over all keys and pages.
func (r WaterfallResponse) Count() int {
	n := 0
	r.TxsSeen.each(func(_ string, pages [][]TxSeen) bool {
		for _, page := range pages {
			n += len(page)
		}
		return true
	})
	return n
}

func (r WaterfallResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(waterfallResponseJSON{
		TxsSeen: r.TxsSeen,
		Page:    r.Page,
		Tip:     optionalHashString(r.Tip),
		TipMeta: r.TipMeta,
	})
}

func (r *WaterfallResponse) UnmarshalJSON(data []byte) error {
	var aux waterfallResponseJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	tip, err := parseOptionalHash(aux.Tip)
	if err != nil {
		return fmt.Errorf("tip: %w", err)
	}
	*r = WaterfallResponse{
		TxsSeen: aux.TxsSeen,
		Page:    aux.Page,
		Tip:     tip,
		TipMeta: aux.TipMeta,
	}
	return nil
}
