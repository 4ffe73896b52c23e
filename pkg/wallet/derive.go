// Package wallet derives per-chain receive addresses from a user seed.
// Derivation is a pure function of (seed, asset, index): the same tuple
// always yields the same address, across processes and over time.
package wallet

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"

	"cwex/pkg/asset"
	"cwex/pkg/seedvault"

	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// base58check version bytes per chain
const (
	versionBTC  byte = 0x00
	versionLTC  byte = 0x30
	versionDOGE byte = 0x1E
	versionTRX  byte = 0x41
)

const hrpADA = "addr"

// Derive returns the receive address for (seed, a, index).
// Fiat assets have no chain and fail with asset.ErrUnsupported, a seed of
// the wrong length fails with seedvault.ErrInvalidSeed.
func Derive(seed []byte, a asset.Asset, index uint32) (addr string, err error) {
	if len(seed) != seedvault.SeedSize {
		return "", seedvault.ErrInvalidSeed
	}
	if !a.Valid() || a.IsFiat() {
		return "", asset.ErrUnsupported
	}

	material := keyMaterial(seed, a, index)

	switch a {
	case asset.BTC:
		return base58CheckAddress(material, versionBTC)
	case asset.LTC:
		return base58CheckAddress(material, versionLTC)
	case asset.DOGE:
		return base58CheckAddress(material, versionDOGE)
	case asset.TRX:
		return base58CheckAddress(material, versionTRX)
	case asset.ETH, asset.USDT, asset.BNB:
		return ethAddress(material)
	case asset.XRP:
		return xrpAddress(material)
	case asset.ADA:
		return adaAddress(material)
	case asset.SOL:
		return solAddress(material), nil
	}

	return "", asset.ErrUnsupported
}

// keyMaterial mixes the seed with the asset code and index into 32 bytes
// of deterministic key material
func keyMaterial(seed []byte, a asset.Asset, index uint32) []byte {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)

	buf := make([]byte, 0, len(seed)+len(a)+4)
	buf = append(buf, seed...)
	buf = append(buf, []byte(a)...)
	buf = append(buf, idx[:]...)

	return crypto.Keccak256(buf)
}

// privateKey turns key material into a secp256k1 private key. Material that
// falls outside the curve order is rehashed, still deterministic.
func privateKey(material []byte) (key *ecdsa.PrivateKey, err error) {
	d := material
	for i := 0; i < 16; i++ {
		key, err = crypto.ToECDSA(d)
		if err == nil {
			return key, nil
		}
		d = crypto.Keccak256(d)
	}
	return nil, err
}

func base58CheckAddress(material []byte, version byte) (addr string, err error) {
	key, err := privateKey(material)
	if err != nil {
		return
	}

	pub := crypto.CompressPubkey(&key.PublicKey)
	return base58.CheckEncode(btcutil.Hash160(pub), version), nil
}

func ethAddress(material []byte) (addr string, err error) {
	key, err := privateKey(material)
	if err != nil {
		return
	}

	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func xrpAddress(material []byte) (addr string, err error) {
	key, err := privateKey(material)
	if err != nil {
		return
	}

	pub := crypto.CompressPubkey(&key.PublicKey)
	return "r" + base58.Encode(btcutil.Hash160(pub)), nil
}

func adaAddress(material []byte) (addr string, err error) {
	key, err := privateKey(material)
	if err != nil {
		return
	}

	pub := crypto.CompressPubkey(&key.PublicKey)
	sum := sha256.Sum256(pub)

	conv, err := bech32.ConvertBits(sum[:28], 8, 5, true)
	if err != nil {
		return
	}
	return bech32.Encode(hrpADA, conv)
}

func solAddress(material []byte) string {
	// ed25519-style 32-byte public key rendered directly
	return base58.Encode(material)
}
