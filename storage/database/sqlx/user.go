package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/kundi/core/user"
)

type userRow struct {
	ID                      string         `db:"id"`
	Name                    string         `db:"name"`
	Username                string         `db:"username"`
	Email                   string         `db:"email"`
	Handle                  string         `db:"handle"`
	IsActive                bool           `db:"is_active"`
	MasterPermissionGranted bool           `db:"master_permission_granted"`
	Roles                   pq.StringArray `db:"roles"`
	PasswordHash            []byte         `db:"password_hash"`
	CreatedAt               time.Time      `db:"created_at"`
	UpdatedAt               time.Time      `db:"updated_at"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:                      r.ID,
		Name:                    r.Name,
		Username:                r.Username,
		Email:                   r.Email,
		Handle:                  r.Handle,
		IsActive:                r.IsActive,
		MasterPermissionGranted: r.MasterPermissionGranted,
		Roles:                   r.Roles,
		PasswordHash:            r.PasswordHash,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		exclIDs = append(exclIDs, usr.ID)
	}

	var rows []userRow
	q := `SELECT username, email FROM users WHERE (username = $1 OR email = $2) AND NOT (id = ANY($3))`
	if err := repo.db.Select(&rows, q, username, email, pq.Array(exclIDs)); err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	for _, r := range rows {
		if r.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	q := `
		INSERT INTO users (id, name, username, email, handle, is_active, master_permission_granted, roles, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := repo.db.Exec(
		q, usr.ID, usr.Name, usr.Username, usr.Email, usr.Handle, usr.IsActive,
		usr.MasterPermissionGranted, pq.StringArray(usr.Roles), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers() ([]user.User, error) {
	var rows []userRow
	if err := repo.db.Select(&rows, `SELECT * FROM users ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) getWhere(cond string, args ...interface{}) (user.User, error) {
	var r userRow
	if err := repo.db.Get(&r, `SELECT * FROM users WHERE `+cond, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return r.toUser(), nil
}

func (repo *userRepository) GetUserByID(id string) (user.User, error) {
	return repo.getWhere(`id = $1`, id)
}

func (repo *userRepository) GetUserByUsername(username string) (user.User, error) {
	return repo.getWhere(`username = $1`, username)
}

func (repo *userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	return repo.getWhere(`username = $1 OR email = $1`, username)
}

func (repo *userRepository) UpdateUser(usr user.User, isActive *bool) (user.User, error) {
	// only save set fields
	orig, err := repo.GetUserByID(usr.ID)
	if err != nil {
		return user.User{}, err
	}
	if usr.Roles == nil {
		usr.Roles = orig.Roles
	}
	if usr.PasswordHash == nil {
		usr.PasswordHash = orig.PasswordHash
	}
	active := orig.IsActive
	if isActive != nil {
		active = *isActive
	}

	q := `
		UPDATE users
		SET name = $2, username = $3, email = $4, handle = $5, is_active = $6, roles = $7, password_hash = $8, updated_at = $9
		WHERE id = $1`
	_, err = repo.db.Exec(q, usr.ID, usr.Name, usr.Username, usr.Email, usr.Handle, active, pq.StringArray(usr.Roles), usr.PasswordHash, usr.UpdatedAt)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return repo.GetUserByID(usr.ID)
}

func (repo *userRepository) DeleteUsersByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.db.Exec(`DELETE FROM users WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting users")
}
