// Package account handles registration and login. A new user gets a sealed
// seed and an opening balance of 10000.00 USD in one go, a registration
// that fails halfway leaves nothing behind.
package account

import (
	"errors"

	"cwex/pkg/asset"
	"cwex/pkg/model"
	"cwex/pkg/seedvault"
	"cwex/pkg/xlog"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAlreadyExists   = errors.New("username already exists")
	ErrNotFound        = errors.New("user not found")
	ErrBadCredentials  = errors.New("bad credentials")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("invalid password")
)

var logger = xlog.GetLogger()

// OpeningGrantUSD is the starting balance of every new user, in USD units
const OpeningGrantUSD = asset.Units(1000000) // 10000.00

// Granter credits the opening balance, satisfied by *ledger.Ledger
type Granter interface {
	Credit(owner int64, a asset.Asset, units asset.Units, reason, reasonID string) error
}

// Service registers and authenticates users
type Service struct {
	DB     *gorm.DB
	Vault  *seedvault.Vault
	Ledger Granter
}

// New returns an account Service
func New(db *gorm.DB, vault *seedvault.Vault, l Granter) *Service {
	return &Service{
		DB:     db,
		Vault:  vault,
		Ledger: l,
	}
}

// Register creates the user row and their sealed seed in one transaction,
// then grants the opening balance
func (s *Service) Register(username, email, password string) (u *model.User, err error) {
	defer func() {
		if err != nil && !errors.Is(err, ErrAlreadyExists) {
			logger.Errorf("Register failed with username:%s, err:%s", username, err)
		}
	}()

	if len(username) < 3 || len(username) > 48 {
		return nil, ErrInvalidUsername
	}
	if len(password) < 8 {
		return nil, ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return
	}

	u = &model.User{
		Username: username,
		Email:    email,
		Password: string(hash),
	}

	err = s.DB.Transaction(func(tx *gorm.DB) (err error) {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(u)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyExists
		}

		_, err = s.Vault.WithStore(seedvault.NewGormStore(tx)).Create(u.ID)
		return
	})
	if err != nil {
		return nil, err
	}

	err = s.GrantOpening(u)
	if err != nil {
		return nil, err
	}

	logger.Infof("registered user:%d username:%s", u.ID, username)
	return u, nil
}

// GrantOpening credits the opening balance through the ledger so it
// journals like any other credit. When the journal write fails the user and
// seed rows are removed again, the username stays free for a retry.
func (s *Service) GrantOpening(u *model.User) (err error) {
	err = s.Ledger.Credit(u.ID, asset.USD, OpeningGrantUSD, "OpeningGrant", "")
	if err == nil {
		return nil
	}

	rerr := s.removeUser(u.ID)
	if rerr != nil {
		logger.Errorf("GrantOpening rollback failed with user:%d, err:%s", u.ID, rerr)
	}
	return err
}

// removeUser undoes a registration whose grant could not be journaled
func (s *Service) removeUser(id int64) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where(model.Seed{Owner: id}).Delete(&model.Seed{}).Error
		if err != nil {
			return err
		}
		return tx.Delete(&model.User{}, id).Error
	})
}

// Authenticate checks a username and password
func (s *Service) Authenticate(username, password string) (u *model.User, err error) {
	var user model.User
	err = s.DB.Model(model.User{}).Where(model.User{Username: username}).Limit(1).Find(&user).Error
	if err != nil {
		return
	}
	if user.ID == 0 {
		return nil, ErrNotFound
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	if err != nil {
		return nil, ErrBadCredentials
	}

	return &user, nil
}
