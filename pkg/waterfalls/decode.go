package waterfalls

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/waterfalls-client/pkg/waterfalls/model"
)

// response is a completed HTTP exchange with its body fully read.
type response struct {
	status int
	body   []byte
}

func (r *response) success() bool {
	return r.status >= 200 && r.status < 300
}

// checkStatus turns a non-success response into an HTTPResponseError.
func checkStatus(r *response) error {
	if r.success() {
		return nil
	}
	return &HTTPResponseError{Status: r.status, Message: string(r.body)}
}

// consensusDecodable is implemented by btcd wire types such as *wire.MsgTx
// and *wire.BlockHeader.
type consensusDecodable[T any] interface {
	*T
	Deserialize(r io.Reader) error
}

// decodeConsensus decodes a binary envelope. The payload must be consumed
// exactly.
func decodeConsensus[T any, PT consensusDecodable[T]](r *response) (*T, error) {
	if err := checkStatus(r); err != nil {
		return nil, err
	}
	return deserializeExact[T, PT](r.body)
}

// decodeOptionalConsensus is decodeConsensus with 404 mapped to nil.
func decodeOptionalConsensus[T any, PT consensusDecodable[T]](r *response) (*T, error) {
	if r.status == http.StatusNotFound {
		return nil, nil
	}
	return decodeConsensus[T, PT](r)
}

// decodeHexConsensus decodes a hex envelope around a consensus payload.
func decodeHexConsensus[T any, PT consensusDecodable[T]](r *response) (*T, error) {
	if err := checkStatus(r); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(r.body)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHex, err)
	}
	return deserializeExact[T, PT](raw)
}

func deserializeExact[T any, PT consensusDecodable[T]](payload []byte) (*T, error) {
	var v T
	reader := bytes.NewReader(payload)
	if err := PT(&v).Deserialize(reader); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCodec, reader.Len())
	}
	return &v, nil
}

func decodeText(r *response) (string, error) {
	if err := checkStatus(r); err != nil {
		return "", err
	}
	return string(r.body), nil
}

func decodeJSON[T any](r *response) (T, error) {
	var v T
	if err := checkStatus(r); err != nil {
		return v, err
	}
	if err := json.Unmarshal(r.body, &v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return v, nil
}

// decodeHash reads a hash from a text body.
func decodeHash(r *response) (chainhash.Hash, error) {
	text, err := decodeText(r)
	if err != nil {
		return chainhash.Hash{}, err
	}
	h, err := model.ParseHash(text)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: %w", ErrHex, err)
	}
	return h, nil
}

// decodeUint reads an unsigned integer from a text body.
func decodeUint(r *response) (uint64, error) {
	text, err := decodeText(r)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return n, nil
}
