package inmemdb

import (
	"context"
	"sort"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) get(filter user.GetFilter) (*userRow, bool) {
	for _, row := range repo.db.users {
		if row.deletedAt != nil {
			continue
		}
		if filter.ID != "" && row.ID != filter.ID {
			continue
		}
		if filter.Email != "" && row.Email != filter.Email {
			continue
		}
		if filter.ID == "" && filter.Email == "" {
			continue
		}
		return row, true
	}
	return nil, false
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.get(user.GetFilter{Email: usr.Email}); ok {
		return user.User{}, user.ErrEmailExists
	}
	repo.db.users[usr.ID] = &userRow{User: usr}
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.get(filter); ok {
		return row.User, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter) ([]user.User, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0)
	for _, row := range repo.db.users {
		switch {
		case row.deletedAt != nil,
			!matches(filter.Search, row.Name, row.Email),
			filter.Role != "" && row.Role != filter.Role,
			filter.SchoolID != "" && row.SchoolID != filter.SchoolID,
			filter.Status != "" && row.Status != filter.Status:
			continue
		}
		users = append(users, row.User)
	}

	ascending := len(filter.Orderings) > 0 && filter.Orderings[0].Ascending
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt) == ascending
		}
		return users[i].ID < users[j].ID
	})
	return core.Paginate(users, filter.Page), len(users), nil
}

func (repo *userRepository) EmailExists(_ context.Context, email string, excludedIDs ...string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	row, ok := repo.get(user.GetFilter{Email: email})
	return ok && !contains(excludedIDs, row.ID), nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.get(user.GetFilter{ID: usr.ID})
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if other, found := repo.get(user.GetFilter{Email: usr.Email}); found && other.ID != usr.ID {
		return user.User{}, user.ErrEmailExists
	}
	usr.CreatedAt = row.CreatedAt
	row.User = usr
	return usr, nil
}

func (repo *userRepository) DeleteUser(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.get(user.GetFilter{ID: id})
	if !ok {
		return user.ErrNotFound
	}
	t := now()
	row.deletedAt = &t
	return nil
}
