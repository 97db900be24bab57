package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/user"
)

const userColumns = "id, name, email, password_hash, role, school_id, status, created_at, updated_at, last_login"

var userOrderings = map[string]string{
	"name":      "name",
	"email":     "email",
	"createdAt": "created_at",
	"lastLogin": "last_login",
}

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	PasswordHash []byte      `db:"password_hash"`
	Role         string      `db:"role"`
	SchoolID     null.String `db:"school_id"`
	Status       string      `db:"status"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		PasswordHash: usr.PasswordHash,
		Role:         usr.Role,
		SchoolID:     null.NewString(usr.SchoolID, usr.SchoolID != ""),
		Status:       usr.Status,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.TimeFromPtr(usr.LastLogin),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		SchoolID:     r.SchoolID.String,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Ptr(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func insertUser(ctx context.Context, exec sqlx.ExtContext, usr user.User) error {
	_, err := sqlx.NamedExecContext(ctx, exec, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :email, :password_hash, :role, :school_id, :status, :created_at, :updated_at, :last_login)`,
		toUserRow(usr))
	if isPQError(err, uniqueViolation) {
		return user.ErrEmailExists
	}
	return trapErr(err, nil, "inserting user")
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := insertUser(ctx, repo.db, usr); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w whereClause
	w.add("deleted_at IS NULL")
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := repo.db.Rebind("SELECT " + userColumns + " FROM users" + w.String())
	if err := repo.db.GetContext(ctx, &row, q, w.args...); err != nil {
		return user.User{}, trapErr(err, user.ErrNotFound, "getting user")
	}
	return row.user(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, int, error) {
	var w whereClause
	w.add("deleted_at IS NULL")
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(name ILIKE ? OR email ILIKE ?)", pattern, pattern)
	}
	if filter.Role != "" {
		w.add("role = ?", filter.Role)
	}
	if filter.SchoolID != "" {
		if !validID(filter.SchoolID) {
			return []user.User{}, 0, nil
		}
		w.add("school_id = ?", filter.SchoolID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	total, err := count(ctx, repo.db, repo.db.Rebind("SELECT COUNT(*) FROM users"+w.String()), w.args...)
	if err != nil {
		return nil, 0, err
	}

	filter.Page.Clean()
	q := repo.db.Rebind("SELECT " + userColumns + " FROM users" + w.String() +
		" ORDER BY " + core.OrderBy(filter.Orderings, userOrderings, "created_at DESC") + ", id LIMIT ? OFFSET ?")
	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, q, append(w.args, filter.Page.Limit, filter.Page.Offset())...); err != nil {
		return nil, 0, trapErr(err, nil, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, total, nil
}

func (repo *userRepository) EmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND deleted_at IS NULL AND NOT (id = ANY($2::uuid[])))`
	if err := repo.db.GetContext(ctx, &exists, q, email, pq.Array(validIDs(excludedIDs))); err != nil {
		return false, trapErr(err, nil, "checking user email")
	}
	return exists, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	q, args, err := sqlx.Named(`
		UPDATE users
		SET name = :name, email = :email, password_hash = :password_hash, role = :role, school_id = :school_id,
			status = :status, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id AND deleted_at IS NULL
		RETURNING `+userColumns, toUserRow(usr))
	if err != nil {
		return user.User{}, err
	}
	err = repo.db.GetContext(ctx, &row, repo.db.Rebind(q), args...)
	if isPQError(err, uniqueViolation) {
		return user.User{}, user.ErrEmailExists
	}
	if err != nil {
		return user.User{}, trapErr(err, user.ErrNotFound, "updating user")
	}
	return row.user(), nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	if !validID(id) {
		return user.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `UPDATE users SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return trapErr(err, nil, "deleting user")
	}
	return mustAffect(res, user.ErrNotFound)
}
