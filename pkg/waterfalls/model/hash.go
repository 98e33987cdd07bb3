package model

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ParseHash parses a display-order hash string. Unlike
// chainhash.NewHashFromStr it rejects short input instead of zero padding it.
// Surrounding whitespace is ignored.
func ParseHash(s string) (chainhash.Hash, error) {
	s = strings.TrimSpace(s)
	if len(s) != chainhash.MaxHashStringSize {
		return chainhash.Hash{}, fmt.Errorf("hash %q: expected %d hex characters, got %d", s, chainhash.MaxHashStringSize, len(s))
	}
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("hash %q: %w", s, err)
	}
	return *h, nil
}

func parseOptionalHash(s *string) (*chainhash.Hash, error) {
	if s == nil {
		return nil, nil
	}
	h, err := ParseHash(*s)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func optionalHashString(h *chainhash.Hash) *string {
	if h == nil {
		return nil
	}
	s := h.String()
	return &s
}
