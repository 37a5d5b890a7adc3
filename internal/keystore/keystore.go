package keystore

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	bip32 "github.com/tyler-smith/go-bip32"

	"github.com/grantline/grantline/internal/ethcrypto"
	"github.com/grantline/grantline/internal/fileutil"
	"github.com/grantline/grantline/internal/grantcrypto"
	granterr "github.com/grantline/grantline/pkg/errors"
)

// keyFileVersion is the on-disk key file format version.
const keyFileVersion = 1

// Derivation path m/44'/60'/0'/0/0: the standard first external account.
var derivationPath = []uint32{
	bip32.FirstHardenedChild + 44,
	bip32.FirstHardenedChild + 60,
	bip32.FirstHardenedChild,
	0,
	0,
}

// keyFile is the stored form of a signing key. The address and metadata are
// plaintext so the key can be identified without a passphrase; the private
// key itself is age-encrypted.
type keyFile struct {
	Version   int            `json:"version"`
	Address   common.Address `json:"address"`
	CreatedAt time.Time      `json:"created_at"`
	Encrypted string         `json:"encrypted_key"`
}

// Keystore reads and writes the principal's key file.
type Keystore struct {
	path string
}

// New creates a keystore over the given file path.
func New(path string) *Keystore {
	return &Keystore{path: path}
}

// Path returns the key file location.
func (k *Keystore) Path() string {
	return k.path
}

// Exists reports whether a key file is present.
func (k *Keystore) Exists() bool {
	_, exists, err := fileutil.ReadIfExists(k.path)
	return err == nil && exists
}

// DerivePrivateKey derives the signing key from a BIP39 seed along
// m/44'/60'/0'/0/0.
func DerivePrivateKey(seed []byte) ([]byte, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, granterr.Wrap(err, "deriving master key")
	}

	for _, index := range derivationPath {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, granterr.Wrap(err, "deriving child key")
		}
	}

	priv := make([]byte, len(key.Key))
	copy(priv, key.Key)
	return priv, nil
}

// Create derives the signing key from the mnemonic and writes it to disk
// encrypted under filePassphrase. seedPassphrase is the optional BIP39
// passphrase. Fails if a key file already exists.
func (k *Keystore) Create(mnemonic, seedPassphrase, filePassphrase string) (common.Address, error) {
	if k.Exists() {
		return common.Address{}, granterr.WithDetails(granterr.ErrKeyExists, map[string]string{
			"path": k.path,
		})
	}

	seed, err := MnemonicToSeed(mnemonic, seedPassphrase)
	if err != nil {
		return common.Address{}, err
	}
	defer grantcrypto.ZeroBytes(seed)

	priv, err := DerivePrivateKey(seed)
	if err != nil {
		return common.Address{}, err
	}
	defer grantcrypto.ZeroBytes(priv)

	addr, err := ethcrypto.DeriveAddress(priv)
	if err != nil {
		return common.Address{}, err
	}

	ciphertext, err := grantcrypto.Encrypt(priv, filePassphrase)
	if err != nil {
		return common.Address{}, err
	}

	data, err := json.MarshalIndent(keyFile{
		Version:   keyFileVersion,
		Address:   addr,
		CreatedAt: time.Now().UTC(),
		Encrypted: base64.StdEncoding.EncodeToString(ciphertext),
	}, "", "  ")
	if err != nil {
		return common.Address{}, granterr.Wrap(err, "encoding key file")
	}

	if err := fileutil.WriteAtomic(k.path, data, 0o600); err != nil {
		return common.Address{}, granterr.Wrap(err, "writing key file")
	}

	return addr, nil
}

// Address returns the stored key's address without unlocking it.
func (k *Keystore) Address() (common.Address, error) {
	kf, err := k.read()
	if err != nil {
		return common.Address{}, err
	}
	return kf.Address, nil
}

// Unlock decrypts the private key into locked memory. The caller owns the
// returned SecureBytes and must Destroy it.
func (k *Keystore) Unlock(passphrase string) (*grantcrypto.SecureBytes, common.Address, error) {
	kf, err := k.read()
	if err != nil {
		return nil, common.Address{}, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(kf.Encrypted)
	if err != nil {
		return nil, common.Address{}, granterr.Wrap(err, "decoding key file")
	}

	priv, err := grantcrypto.DecryptSecure(ciphertext, passphrase)
	if err != nil {
		return nil, common.Address{}, granterr.WithDetails(granterr.ErrDecryptionFailed, map[string]string{
			"path": k.path,
		})
	}

	// The stored address must match the key; a mismatch means the file was
	// tampered with or corrupted.
	addr, err := ethcrypto.DeriveAddress(priv.Bytes())
	if err != nil {
		priv.Destroy()
		return nil, common.Address{}, err
	}
	if addr != kf.Address {
		priv.Destroy()
		return nil, common.Address{}, granterr.WithDetails(granterr.ErrDecryptionFailed, map[string]string{
			"reason": "key does not match stored address",
		})
	}

	return priv, addr, nil
}

func (k *Keystore) read() (*keyFile, error) {
	data, exists, err := fileutil.ReadIfExists(k.path)
	if err != nil {
		return nil, granterr.Wrap(err, "reading key file")
	}
	if !exists {
		return nil, granterr.WithDetails(granterr.ErrKeyNotFound, map[string]string{
			"path": k.path,
		})
	}

	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, granterr.Wrap(err, "decoding key file")
	}
	if kf.Version != keyFileVersion {
		return nil, granterr.WithDetails(granterr.ErrDecryptionFailed, map[string]string{
			"reason": "unsupported key file version",
		})
	}
	return &kf, nil
}
