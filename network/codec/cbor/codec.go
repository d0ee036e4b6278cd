package cbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/dposnet/bft-core/network/codec"
)

// Codec encodes RPC payloads with deterministic CBOR.
type Codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCodec creates a new CBOR codec.
func NewCodec() *Codec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not create cbor encoding mode: %v", err))
	}
	dec, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("could not create cbor decoding mode: %v", err))
	}
	return &Codec{enc: enc, dec: dec}
}

// Encode marshals the value into a CBOR payload.
func (c *Codec) Encode(v interface{}) ([]byte, error) {
	data, err := c.enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("could not encode %T: %w", v, err)
	}
	return data, nil
}

// Decode unmarshals the payload into v.
// Expected errors during normal operations:
//   - codec.ErrInvalidEncoding if the payload is empty
//   - codec.MsgUnmarshalError if the payload is not a valid encoding of v
func (c *Codec) Decode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return codec.ErrInvalidEncoding
	}
	err := c.dec.Unmarshal(data, v)
	if err != nil {
		return codec.NewMsgUnmarshalErr(fmt.Sprintf("%T", v), err)
	}
	return nil
}
