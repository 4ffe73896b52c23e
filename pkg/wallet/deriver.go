package wallet

import (
	"errors"

	"cwex/pkg/asset"
	"cwex/pkg/model"
	"cwex/pkg/seedvault"
	"cwex/pkg/xlog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var logger = xlog.GetLogger()

var ErrAddressMismatch = errors.New("cached address does not match derivation")

// Deriver resolves the receive address for a (user, asset) pair through the
// seed vault, caching results in the addresses table. Because derivation is
// pure, the cache is an optimization only, a re-derivation must always
// reproduce the cached value.
type Deriver struct {
	Vault *seedvault.Vault
	DB    *gorm.DB // optional address cache, nil means derive every time
}

func NewDeriver(vault *seedvault.Vault, db *gorm.DB) *Deriver {
	return &Deriver{Vault: vault, DB: db}
}

// AddressFor derives (or loads) the index-0 receive address of owner for a
func (d *Deriver) AddressFor(owner int64, a asset.Asset) (addr string, err error) {
	return d.AddressAt(owner, a, 0)
}

// AddressAt derives the receive address of owner for a at the given index
func (d *Deriver) AddressAt(owner int64, a asset.Asset, index uint32) (addr string, err error) {
	defer func() {
		if err != nil {
			logger.Errorf("derive address owner:%d, asset:%s, index:%d failed with err:%s", owner, a, index, err)
		}
	}()

	if !a.Valid() {
		return "", asset.ErrUnsupported
	}

	err = d.Vault.WithSeed(owner, func(seed []byte) error {
		var derr error
		addr, derr = Derive(seed, a, index)
		return derr
	})
	if err != nil {
		return
	}

	if d.DB == nil || index != 0 {
		return addr, nil
	}

	// keep the cache row and verify it agrees with the derivation
	var row model.Address
	err = d.DB.Model(model.Address{}).
		Where("`owner`=? AND `asset`=?", owner, a.String()).
		Limit(1).Find(&row).Error
	if err != nil {
		return
	}

	if row.ID > 0 {
		if row.Address != addr {
			return "", ErrAddressMismatch
		}
		return addr, nil
	}

	err = d.DB.Model(model.Address{}).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}, {Name: "asset"}},
			DoNothing: true,
		}).
		Create(&model.Address{
			Owner:   owner,
			Asset:   a.String(),
			Index:   int64(index),
			Address: addr,
		}).Error
	if err != nil {
		return
	}

	return addr, nil
}
