package types

type CryptType byte

const (
	CryptType_Unknown CryptType = iota
	CryptType_Ed25519
	CryptType_Secp256
)

func (c CryptType) String() string {
	switch c {
	case CryptType_Ed25519:
		return "ed25519"
	case CryptType_Secp256:
		return "secp256"
	default:
		return "unknown"
	}
}

type PrivateKey []byte

type PublicKey []byte

type Signature []byte

type SignatureInfo struct {
	SignData  Signature
	PublicKey PublicKey
}
