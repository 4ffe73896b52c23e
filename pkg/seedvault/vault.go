// Package seedvault owns the per-user secret seeds. Seeds are generated
// once at registration, sealed with AES-256-GCM and handed out only through
// scoped WithSeed calls. The raw seed never crosses this package boundary
// except inside the callback, and never shows up in logs or responses.
package seedvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"cwex/pkg/xlog"
)

const SeedSize = 32

var (
	ErrAlreadyExists = errors.New("seed already exists")
	ErrNotFound      = errors.New("seed not found")
	ErrInvalidSeed   = errors.New("invalid seed")
	ErrInvalidKey    = errors.New("invalid vault key")
)

var logger = xlog.GetLogger()

// Store persists sealed seeds. Only ciphertext passes through here.
type Store interface {
	Create(owner int64, sealed []byte) error // ErrAlreadyExists if present
	Get(owner int64) (sealed []byte, err error)
}

// Handle is the opaque reference returned to callers instead of the seed
type Handle struct {
	Owner       int64
	Fingerprint string // short hash of the sealed blob, safe to log
}

type Vault struct {
	aead  cipher.AEAD
	store Store
}

// New builds a vault from a hex-encoded 32-byte key and a sealed-seed store
func New(hexKey string, store Store) (v *Vault, err error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Vault{aead: aead, store: store}, nil
}

// WithStore returns a vault sharing this one's key but bound to another
// store, typically a per-transaction GormStore
func (v *Vault) WithStore(store Store) *Vault {
	return &Vault{aead: v.aead, store: store}
}

// Create generates and persists the seed for owner, exactly once.
// Call it inside the same transaction that creates the user row so that a
// user never exists without a seed.
func (v *Vault) Create(owner int64) (h Handle, err error) {
	defer func() {
		if err != nil && !errors.Is(err, ErrAlreadyExists) {
			logger.Errorf("seed create owner:%d failed with err:%s", owner, err)
		}
	}()

	seed := make([]byte, SeedSize)
	_, err = rand.Read(seed)
	if err != nil {
		return
	}
	defer zero(seed)

	sealed, err := v.seal(seed)
	if err != nil {
		return
	}

	err = v.store.Create(owner, sealed)
	if err != nil {
		return
	}

	return Handle{Owner: owner, Fingerprint: fingerprint(sealed)}, nil
}

// WithSeed gives fn scoped read access to the raw seed. The buffer is
// zeroed right after fn returns, fn must not retain or copy it.
func (v *Vault) WithSeed(owner int64, fn func(seed []byte) error) (err error) {
	sealed, err := v.store.Get(owner)
	if err != nil {
		return
	}

	seed, err := v.open(sealed)
	if err != nil {
		return
	}
	defer zero(seed)

	return fn(seed)
}

// RevealSeed exports the seed as hex for the recovery flow. This is the
// only path besides WithSeed that touches the raw value.
func (v *Vault) RevealSeed(owner int64) (s string, err error) {
	err = v.WithSeed(owner, func(seed []byte) error {
		s = hex.EncodeToString(seed)
		return nil
	})
	return
}

func (v *Vault) seal(seed []byte) (sealed []byte, err error) {
	nonce := make([]byte, v.aead.NonceSize())
	_, err = rand.Read(nonce)
	if err != nil {
		return
	}
	return v.aead.Seal(nonce, nonce, seed, nil), nil
}

func (v *Vault) open(sealed []byte) (seed []byte, err error) {
	ns := v.aead.NonceSize()
	if len(sealed) < ns {
		return nil, ErrInvalidSeed
	}
	seed, err = v.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, ErrInvalidSeed
	}
	if len(seed) != SeedSize {
		zero(seed)
		return nil, ErrInvalidSeed
	}
	return seed, nil
}

func fingerprint(sealed []byte) string {
	sum := sha256.Sum256(sealed)
	return hex.EncodeToString(sum[:4])
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
