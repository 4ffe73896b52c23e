package seedvault_test

import (
	"strings"
	"testing"

	"cwex/pkg/seedvault"

	"github.com/stretchr/testify/require"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func newVault(t *testing.T) *seedvault.Vault {
	v, err := seedvault.New(testKey, seedvault.NewMemStore())
	require.Nil(t, err)
	return v
}

func TestNewRejectsBadKey(t *testing.T) {
	_, err := seedvault.New("abcd", seedvault.NewMemStore())
	require.Equal(t, seedvault.ErrInvalidKey, err)

	_, err = seedvault.New("zz", seedvault.NewMemStore())
	require.Equal(t, seedvault.ErrInvalidKey, err)
}

func TestCreateOnce(t *testing.T) {
	v := newVault(t)

	h, err := v.Create(42)
	require.Nil(t, err)
	require.Equal(t, int64(42), h.Owner)
	require.NotEmpty(t, h.Fingerprint)

	_, err = v.Create(42)
	require.Equal(t, seedvault.ErrAlreadyExists, err)
}

func TestWithSeedScoped(t *testing.T) {
	v := newVault(t)
	_, err := v.Create(1)
	require.Nil(t, err)

	var escaped []byte
	err = v.WithSeed(1, func(seed []byte) error {
		require.Len(t, seed, seedvault.SeedSize)
		escaped = seed
		return nil
	})
	require.Nil(t, err)

	// the buffer handed to fn is zeroed once the call returns
	for _, b := range escaped {
		require.Zero(t, b)
	}
}

func TestWithSeedStable(t *testing.T) {
	v := newVault(t)
	_, err := v.Create(1)
	require.Nil(t, err)

	read := func() []byte {
		var cp []byte
		err := v.WithSeed(1, func(seed []byte) error {
			cp = append([]byte(nil), seed...)
			return nil
		})
		require.Nil(t, err)
		return cp
	}

	require.Equal(t, read(), read())
}

func TestWithSeedNotFound(t *testing.T) {
	v := newVault(t)
	err := v.WithSeed(9, func([]byte) error { return nil })
	require.Equal(t, seedvault.ErrNotFound, err)
}

func TestOpenRejectsTamperedBlob(t *testing.T) {
	store := seedvault.NewMemStore()
	v, err := seedvault.New(testKey, store)
	require.Nil(t, err)

	require.Nil(t, store.Create(7, []byte("too-short")))
	err = v.WithSeed(7, func([]byte) error { return nil })
	require.Equal(t, seedvault.ErrInvalidSeed, err)
}

func TestRevealSeed(t *testing.T) {
	v := newVault(t)
	_, err := v.Create(3)
	require.Nil(t, err)

	s, err := v.RevealSeed(3)
	require.Nil(t, err)
	require.Len(t, s, seedvault.SeedSize*2)
	require.Equal(t, strings.ToLower(s), s)
}
