package secp256

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec"

	tpcrtypes "github.com/KaviraWallet/kavira/crypt/types"
	tplog "github.com/KaviraWallet/kavira/log"
)

const (
	PublicKeyBytes  = 33 //33 bytes, compressed
	PrivateKeyBytes = 32 //32 bytes
	SeedBytes       = 32 //32 bytes
)

type CryptServiceSecp256 struct {
	log tplog.Logger
}

func New(log tplog.Logger) *CryptServiceSecp256 {
	return &CryptServiceSecp256{log}
}

func (c *CryptServiceSecp256) CryptType() tpcrtypes.CryptType {
	return tpcrtypes.CryptType_Secp256
}

func (c *CryptServiceSecp256) GeneratePriPubKey() (tpcrtypes.PrivateKey, tpcrtypes.PublicKey, error) {
	sec, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return nil, nil, err
	}

	return sec.Serialize(), sec.PubKey().SerializeCompressed(), nil
}

func (c *CryptServiceSecp256) GeneratePriPubKeyBySeed(seed []byte) (tpcrtypes.PrivateKey, tpcrtypes.PublicKey, error) {
	if len(seed) != SeedBytes {
		return nil, nil, errors.New("input seed length err")
	}

	sec, pub := btcec.PrivKeyFromBytes(btcec.S256(), seed)
	return sec.Serialize(), pub.SerializeCompressed(), nil
}

func (c *CryptServiceSecp256) ConvertToPublic(priKey tpcrtypes.PrivateKey) (tpcrtypes.PublicKey, error) {
	if len(priKey) != PrivateKeyBytes {
		return nil, errors.New("input invalid PrivateKey")
	}
	_, pub := btcec.PrivKeyFromBytes(btcec.S256(), priKey)
	return pub.SerializeCompressed(), nil
}

func (c *CryptServiceSecp256) Sign(priKey tpcrtypes.PrivateKey, msg []byte) (tpcrtypes.Signature, error) {
	if len(priKey) != PrivateKeyBytes || len(msg) == 0 {
		return nil, errors.New("input invalid argument")
	}

	sec, _ := btcec.PrivKeyFromBytes(btcec.S256(), priKey)
	digest := sha256.Sum256(msg)
	sig, err := sec.Sign(digest[:])
	if err != nil {
		return nil, err
	}

	return sig.Serialize(), nil
}

func (c *CryptServiceSecp256) Verify(pubKey tpcrtypes.PublicKey, msg []byte, signData tpcrtypes.Signature) (bool, error) {
	if len(pubKey) != PublicKeyBytes || len(msg) == 0 || len(signData) == 0 {
		return false, errors.New("input invalid argument")
	}

	pub, err := btcec.ParsePubKey(pubKey, btcec.S256())
	if err != nil {
		return false, err
	}
	sig, err := btcec.ParseDERSignature(signData, btcec.S256())
	if err != nil {
		return false, err
	}

	digest := sha256.Sum256(msg)
	return sig.Verify(digest[:], pub), nil
}

func (c *CryptServiceSecp256) CreateAddress(pubKey tpcrtypes.PublicKey) (tpcrtypes.Address, error) {
	if len(pubKey) != PublicKeyBytes {
		return tpcrtypes.UndefAddress, fmt.Errorf("invalid pubKey: len %d, expected %d", len(pubKey), PublicKeyBytes)
	}
	return tpcrtypes.NewAddress(pubKey)
}
