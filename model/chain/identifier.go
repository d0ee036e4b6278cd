package chain

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/sha3"
)

// Identifier represents a 32-byte unique identifier for a block.
type Identifier [32]byte

// ZeroID is the lowest value in the 32-byte ID space.
var ZeroID = Identifier{}

// HexStringToIdentifier converts a hex string to an identifier. The input
// must be 64 characters long and contain only valid hex characters.
func HexStringToIdentifier(hexString string) (Identifier, error) {
	var identifier Identifier
	i, err := hex.Decode(identifier[:], []byte(hexString))
	if err != nil {
		return identifier, err
	}
	if i != 32 {
		return identifier, fmt.Errorf("malformed input, expected 32 bytes (64 characters), decoded %d", i)
	}
	return identifier, nil
}

// MustHexStringToIdentifier is HexStringToIdentifier for constants and tests.
func MustHexStringToIdentifier(hexString string) Identifier {
	id, err := HexStringToIdentifier(hexString)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the hex string representation of the identifier.
func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// TerminalString returns a short prefix of the identifier for log lines.
func (id Identifier) TerminalString() string {
	return hex.EncodeToString(id[:4])
}

// IsZero reports whether the identifier is the zero value.
func (id Identifier) IsZero() bool {
	return id == ZeroID
}

// Less orders identifiers by their lexicographic hex representation.
func (id Identifier) Less(other Identifier) bool {
	return id.String() < other.String()
}

// MakeID creates an ID from the hash of the canonical CBOR encoding of the
// given entity.
func MakeID(entity interface{}) Identifier {
	data, err := encMode.Marshal(entity)
	if err != nil {
		panic(fmt.Sprintf("could not encode entity for hashing: %v", err))
	}
	return Identifier(sha3.Sum256(data))
}

var encMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// PublicKey is the ed25519 public key of a delegate.
type PublicKey [32]byte

// HexStringToPublicKey converts a 64 character hex string into a key.
func HexStringToPublicKey(hexString string) (PublicKey, error) {
	id, err := HexStringToIdentifier(hexString)
	return PublicKey(id), err
}

func (k PublicKey) String() string {
	return hex.EncodeToString(k[:])
}

func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}
