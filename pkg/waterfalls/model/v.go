// Package model defines the wire types returned by a waterfalls index server.
package model

import (
	"encoding/json"
	"fmt"

	"github.com/goodnatureofminers/waterfalls-client/pkg/safe"
)

type vKind uint8

const (
	vUndefined vKind = iota
	vVout
	vVin
)

// V records how a transaction touched a queried script: through one of its
// outputs, through one of its inputs, or in a way the server did not report.
//
// On the wire V is a single signed 32-bit integer: 0 is undefined, a positive
// value n is output n and a negative value r is input -r-1. Output index 0
// therefore encodes as 0 and decodes back as undefined; the server is not
// expected to report output 0 through this field.
type V struct {
	kind vKind
	n    uint32
}

// Undefined returns the V for an unknown relationship.
func Undefined() V { return V{} }

// Vout returns the V for a transaction paying the script at output n.
func Vout(n uint32) V { return V{kind: vVout, n: n} }

// Vin returns the V for a transaction spending through input n.
func Vin(n uint32) V { return V{kind: vVin, n: n} }

// FromRaw decodes the wire integer.
func FromRaw(raw int32) V {
	switch {
	case raw == 0:
		return Undefined()
	case raw > 0:
		return Vout(uint32(raw))
	default:
		return Vin(uint32(-int64(raw) - 1))
	}
}

func (v V) IsUndefined() bool { return v.kind == vUndefined }
func (v V) IsVout() bool      { return v.kind == vVout }
func (v V) IsVin() bool       { return v.kind == vVin }

// Index returns the input or output index, zero when undefined.
func (v V) Index() uint32 { return v.n }

// Raw encodes v. Indexes above math.MaxInt32 are truncated, use RawChecked
// when the value did not come from the server.
func (v V) Raw() int32 {
	switch v.kind {
	case vVout:
		return int32(v.n)
	case vVin:
		return int32(-int64(v.n) - 1)
	default:
		return 0
	}
}

// RawChecked encodes v, failing when the index has no int32 representation.
func (v V) RawChecked() (int32, error) {
	switch v.kind {
	case vVout:
		raw, err := safe.Int32(v.n)
		if err != nil {
			return 0, fmt.Errorf("vout index: %w", err)
		}
		return raw, nil
	case vVin:
		raw, err := safe.Int32(-int64(v.n) - 1)
		if err != nil {
			return 0, fmt.Errorf("vin index: %w", err)
		}
		return raw, nil
	default:
		return 0, nil
	}
}

func (v V) String() string {
	switch v.kind {
	case vVout:
		return fmt.Sprintf("vout:%d", v.n)
	case vVin:
		return fmt.Sprintf("vin:%d", v.n)
	default:
		return "undefined"
	}
}

// MarshalJSON implements json.Marshaler.
func (v V) MarshalJSON() ([]byte, error) {
	raw, err := v.RawChecked()
	if err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *V) UnmarshalJSON(data []byte) error {
	var raw int32
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode v: %w", err)
	}
	*v = FromRaw(raw)
	return nil
}
