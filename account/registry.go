package account

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"

	"github.com/KaviraWallet/kavira/crypt"
	tpcrtypes "github.com/KaviraWallet/kavira/crypt/types"
	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
	"github.com/KaviraWallet/kavira/store"
	wltypes "github.com/KaviraWallet/kavira/wallet/types"
	"github.com/KaviraWallet/kavira/werror"
)

const (
	MOD_NAME = "account"

	mnemonicSeedIterations = 4096
	mnemonicSeedBytes      = 32
)

// Registry generates, imports, validates and persists accounts. It owns no
// wallet state; the session coordinator decides when registry results become
// visible.
type Registry struct {
	log   tplog.Logger
	store store.RecordStore
}

func NewRegistry(level tplogcmm.LogLevel, log tplog.Logger, recordStore store.RecordStore) *Registry {
	rLog := tplog.CreateModuleLogger(level, MOD_NAME, log)

	return &Registry{
		log:   rLog,
		store: recordStore,
	}
}

func (r *Registry) cryptService(cryptType tpcrtypes.CryptType) (crypt.CryptService, *werror.WalletError) {
	switch cryptType {
	case tpcrtypes.CryptType_Ed25519, tpcrtypes.CryptType_Secp256:
		return crypt.CreateCryptService(r.log, cryptType), nil
	default:
		return nil, werror.NewValidation("unsupported crypt type: " + cryptType.String())
	}
}

// Create generates a fresh key pair and persists the derived account.
func (r *Registry) Create(ctx context.Context, cryptType tpcrtypes.CryptType, name string, chainID string) (wltypes.Account, error) {
	c, werr := r.cryptService(cryptType)
	if werr != nil {
		return wltypes.Account{}, werr
	}

	sec, pub, err := c.GeneratePriPubKey()
	if err != nil {
		return wltypes.Account{}, werror.NewWithCause(werror.ErrCode_CryptoError, "key generation failed", werror.Severity_High, false, err)
	}

	return r.finishAccount(ctx, c, sec, pub, name, chainID, "")
}

// CreateMnemonic generates a BIP39 mnemonic, derives an account from it and
// persists the account. The mnemonic is returned for the user to write down.
func (r *Registry) CreateMnemonic(ctx context.Context, cryptType tpcrtypes.CryptType, passphrase string, mnemonicAmounts int, name string, chainID string) (string, wltypes.Account, error) {
	if mnemonicAmounts != 12 && mnemonicAmounts != 24 {
		return "", wltypes.Account{}, werror.NewValidation("mnemonic word count must be 12 or 24")
	}

	entropy, err := bip39.NewEntropy(mnemonicAmounts / 12 * 128)
	if err != nil {
		return "", wltypes.Account{}, werror.NewWithCause(werror.ErrCode_CryptoError, "entropy generation failed", werror.Severity_High, false, err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", wltypes.Account{}, werror.NewWithCause(werror.ErrCode_CryptoError, "mnemonic generation failed", werror.Severity_High, false, err)
	}

	acc, err := r.Recover(ctx, cryptType, mnemonic, passphrase, name, chainID)
	if err != nil {
		return "", wltypes.Account{}, err
	}
	return mnemonic, acc, nil
}

// Recover re-derives the account a mnemonic encodes and persists it.
func (r *Registry) Recover(ctx context.Context, cryptType tpcrtypes.CryptType, mnemonic string, passphrase string, name string, chainID string) (wltypes.Account, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return wltypes.Account{}, werror.New(werror.ErrCode_ImportFailed, "invalid mnemonic", werror.Severity_Low, true)
	}

	c, werr := r.cryptService(cryptType)
	if werr != nil {
		return wltypes.Account{}, werr
	}

	seed := pbkdf2.Key([]byte(mnemonic), []byte("mnemonic"+passphrase), mnemonicSeedIterations, mnemonicSeedBytes, sha256.New)
	sec, pub, err := c.GeneratePriPubKeyBySeed(seed)
	if err != nil {
		return wltypes.Account{}, werror.NewWithCause(werror.ErrCode_ImportFailed, "key derivation failed", werror.Severity_Medium, true, err)
	}

	return r.finishAccount(ctx, c, sec, pub, name, chainID, "")
}

// Import persists an account built from an existing hex-encoded private key.
// A non-empty alias overrides the derived key account address.
func (r *Registry) Import(ctx context.Context, cryptType tpcrtypes.CryptType, privKeyHex string, name string, chainID string, alias tpcrtypes.Address) (wltypes.Account, error) {
	sec, err := hex.DecodeString(privKeyHex)
	if err != nil {
		return wltypes.Account{}, werror.NewWithCause(werror.ErrCode_ImportFailed, "private key is not valid hex", werror.Severity_Low, true, err)
	}

	c, werr := r.cryptService(cryptType)
	if werr != nil {
		return wltypes.Account{}, werr
	}

	pub, err := c.ConvertToPublic(sec)
	if err != nil {
		return wltypes.Account{}, werror.NewWithCause(werror.ErrCode_ImportFailed, "private key rejected", werror.Severity_Low, true, err)
	}

	return r.finishAccount(ctx, c, sec, pub, name, chainID, alias)
}

func (r *Registry) finishAccount(ctx context.Context, c crypt.CryptService, sec tpcrtypes.PrivateKey, pub tpcrtypes.PublicKey, name string, chainID string, alias tpcrtypes.Address) (wltypes.Account, error) {
	addr := alias
	if addr == tpcrtypes.UndefAddress {
		derived, err := c.CreateAddress(pub)
		if err != nil {
			return wltypes.Account{}, werror.NewWithCause(werror.ErrCode_CryptoError, "address derivation failed", werror.Severity_High, false, err)
		}
		addr = derived
	}

	acc := wltypes.Account{
		Address:    addr,
		PublicKey:  hex.EncodeToString(pub),
		PrivateKey: hex.EncodeToString(sec),
		Name:       name,
		ChainID:    chainID,
		CryptType:  c.CryptType(),
	}
	if err := r.Validate(acc); err != nil {
		return wltypes.Account{}, err
	}

	if err := r.store.SaveKey(ctx, acc); err != nil {
		return wltypes.Account{}, werror.NewWithCause(werror.ErrCode_StorageError, "persist account failed", werror.Severity_High, true, err)
	}

	r.log.Infof("account persisted: addr=%s chainId=%s", acc.Address, acc.ChainID)
	return acc, nil
}

// Validate checks the structural invariants of an account record.
func (r *Registry) Validate(acc wltypes.Account) error {
	if acc.Address == tpcrtypes.UndefAddress {
		return werror.NewValidation("account address is required")
	}
	if acc.Name == "" {
		return werror.NewValidation("account name is required")
	}
	if acc.ChainID == "" {
		return werror.NewValidation("account chainId is required")
	}
	if _, err := hex.DecodeString(acc.PublicKey); err != nil || acc.PublicKey == "" {
		return werror.NewValidation("account publicKey must be hex")
	}
	return nil
}

func (r *Registry) List(ctx context.Context) ([]wltypes.Account, error) {
	accounts, err := r.store.GetKeys(ctx)
	if err != nil {
		return nil, werror.NewWithCause(werror.ErrCode_StorageError, "load accounts failed", werror.Severity_High, true, err)
	}
	return accounts, nil
}

func (r *Registry) Remove(ctx context.Context, address tpcrtypes.Address) error {
	if err := r.store.RemoveKey(ctx, address); err != nil {
		return werror.NewWithCause(werror.ErrCode_StorageError, "remove account failed", werror.Severity_High, true, err)
	}
	return nil
}

// Export returns the hex-encoded private key of a stored account.
func (r *Registry) Export(ctx context.Context, address tpcrtypes.Address) (string, error) {
	acc, err := r.get(ctx, address)
	if err != nil {
		return "", err
	}
	if acc.PrivateKey == "" {
		return "", werror.New(werror.ErrCode_ExportFailed, "account holds no private key", werror.Severity_Low, false)
	}
	return acc.PrivateKey, nil
}

// Sign signs msg with the stored private key of the given account.
func (r *Registry) Sign(ctx context.Context, address tpcrtypes.Address, msg []byte) (tpcrtypes.SignatureInfo, error) {
	acc, err := r.get(ctx, address)
	if err != nil {
		return tpcrtypes.SignatureInfo{}, err
	}

	sec, decErr := hex.DecodeString(acc.PrivateKey)
	if decErr != nil || len(sec) == 0 {
		return tpcrtypes.SignatureInfo{}, werror.New(werror.ErrCode_CryptoError, "stored private key unusable", werror.Severity_High, false)
	}

	c, werr := r.cryptService(acc.CryptType)
	if werr != nil {
		return tpcrtypes.SignatureInfo{}, werr
	}

	sig, sigErr := c.Sign(sec, msg)
	if sigErr != nil {
		return tpcrtypes.SignatureInfo{}, werror.NewWithCause(werror.ErrCode_SigningRejected, "signing failed", werror.Severity_Medium, false, sigErr)
	}
	pub, pubErr := c.ConvertToPublic(sec)
	if pubErr != nil {
		return tpcrtypes.SignatureInfo{}, werror.NewWithCause(werror.ErrCode_CryptoError, "public key recovery failed", werror.Severity_High, false, pubErr)
	}

	return tpcrtypes.SignatureInfo{SignData: sig, PublicKey: pub}, nil
}

func (r *Registry) get(ctx context.Context, address tpcrtypes.Address) (wltypes.Account, error) {
	accounts, err := r.store.GetKeys(ctx)
	if err != nil {
		return wltypes.Account{}, werror.NewWithCause(werror.ErrCode_StorageError, "load accounts failed", werror.Severity_High, true, err)
	}
	for _, acc := range accounts {
		if acc.Address == address {
			return acc, nil
		}
	}
	return wltypes.Account{}, werror.New(werror.ErrCode_AccountNotFound, "no account for address "+string(address), werror.Severity_Low, false)
}
