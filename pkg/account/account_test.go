package account_test

import (
	"errors"
	"testing"

	"cwex/pkg/account"
	"cwex/pkg/asset"
	"cwex/pkg/model"

	"github.com/stretchr/testify/require"
)

type fakeGranter struct {
	err     error
	credits int
}

func (g *fakeGranter) Credit(owner int64, a asset.Asset, units asset.Units, reason, reasonID string) error {
	g.credits++
	if g.err != nil {
		return g.err
	}
	return nil
}

func TestRegisterValidation(t *testing.T) {
	s := account.New(nil, nil, nil)

	_, err := s.Register("ab", "a@b.c", "longenoughpw")
	require.Equal(t, account.ErrInvalidUsername, err)

	_, err = s.Register("goodname", "a@b.c", "short")
	require.Equal(t, account.ErrInvalidPassword, err)
}

func TestOpeningGrant(t *testing.T) {
	require.Equal(t, "10000.00", asset.Format(asset.USD, account.OpeningGrantUSD))

	g := &fakeGranter{}
	s := account.New(nil, nil, g)
	require.Nil(t, s.GrantOpening(&model.User{ID: 7}))
	require.Equal(t, 1, g.credits)
}

// A grant the ledger rejects must surface the error so the registration is
// rolled back instead of leaving a zero-balance user behind
func TestOpeningGrantFailure(t *testing.T) {
	boom := errors.New("journal write failed")
	g := &fakeGranter{err: boom}
	s := account.New(nil, nil, g)

	err := s.GrantOpening(&model.User{ID: 7})
	require.Equal(t, boom, err)
	require.Equal(t, 1, g.credits)
}
