package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeyAddrPrefix marks an address derived from a single public key.
const KeyAddrPrefix = "k:"

var UndefAddress = Address("")

type Address string

// NewAddress derives the canonical key account address from a public key.
func NewAddress(pubKey PublicKey) (Address, error) {
	if len(pubKey) == 0 {
		return UndefAddress, errors.New("invalid pubKey: len 0")
	}

	return Address(KeyAddrPrefix + hex.EncodeToString(pubKey)), nil
}

func (a Address) IsValid() bool {
	s := string(a)
	if !strings.HasPrefix(s, KeyAddrPrefix) {
		return false
	}
	payload := strings.TrimPrefix(s, KeyAddrPrefix)
	if len(payload) == 0 {
		return false
	}
	_, err := hex.DecodeString(payload)
	return err == nil
}

// PublicKey recovers the key bytes encoded in a key account address.
func (a Address) PublicKey() (PublicKey, error) {
	if !a.IsValid() {
		return nil, fmt.Errorf("not a key account address: %s", string(a))
	}
	payload := strings.TrimPrefix(string(a), KeyAddrPrefix)
	pub, err := hex.DecodeString(payload)
	if err != nil {
		return nil, err
	}

	return pub, nil
}
