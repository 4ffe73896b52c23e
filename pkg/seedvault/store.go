package seedvault

import (
	"sync"

	"cwex/pkg/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps sealed seeds in the seeds table. Bind it to a transaction
// handle when seed creation must commit together with the user row.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Create(owner int64, sealed []byte) (err error) {
	row := model.Seed{
		Owner:  owner,
		Sealed: sealed,
	}

	res := s.DB.Model(model.Seed{}).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}

	return nil
}

func (s *GormStore) Get(owner int64) (sealed []byte, err error) {
	var row model.Seed
	err = s.DB.Model(model.Seed{}).Where("`owner`=?", owner).Limit(1).Find(&row).Error
	if err != nil {
		return
	}
	if row.ID == 0 {
		return nil, ErrNotFound
	}

	return row.Sealed, nil
}

// MemStore is an in-memory store for tests and single-node dev runs
type MemStore struct {
	mu    sync.Mutex
	seeds map[int64][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{seeds: map[int64][]byte{}}
}

func (s *MemStore) Create(owner int64, sealed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seeds[owner]; ok {
		return ErrAlreadyExists
	}
	cp := make([]byte, len(sealed))
	copy(cp, sealed)
	s.seeds[owner] = cp
	return nil
}

func (s *MemStore) Get(owner int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, ok := s.seeds[owner]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(sealed))
	copy(cp, sealed)
	return cp, nil
}
