package account

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"classportal/internal/store"
)

// User is one profile record per identity subject.
type User struct {
	ID        string    `json:"id" db:"id"`
	Subject   string    `json:"-" db:"subject"`
	Name      *string   `json:"name,omitempty" db:"name"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	Image     string    `json:"image" db:"image"`
	Admin     bool      `json:"admin" db:"admin"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// matricPrefix is the faculty prefix every username starts with.
const matricPrefix = 3

// MatricNumber is the username without its fixed prefix.
func (u User) MatricNumber() string {
	if len(u.Username) <= matricPrefix {
		return ""
	}
	return u.Username[matricPrefix:]
}

const userColumns = `id, subject, name, username, email, image, admin, created_at`

// Repository persists users.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Upsert creates u or refreshes the profile fields of the existing record for
// u.Subject. The admin flag and id of an existing record are never touched.
func (r *Repository) Upsert(ctx context.Context, u User) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (id, subject, name, username, email, image, admin, created_at)
		VALUES (:id, :subject, :name, :username, :email, :image, :admin, :created_at)
		ON CONFLICT (subject) DO UPDATE SET
			name = COALESCE(excluded.name, users.name),
			username = excluded.username,
			email = excluded.email,
			image = CASE WHEN excluded.image = '' THEN users.image ELSE excluded.image END
	`, u)
	return errors.Wrap(err, "upsert user")
}

func (r *Repository) get(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE `+where+` = ?`), arg)
	if store.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

// BySubject returns the user for an identity subject, nil when absent.
func (r *Repository) BySubject(ctx context.Context, subject string) (*User, error) {
	return r.get(ctx, "subject", subject)
}

// ByID returns the user with id, nil when absent.
func (r *Repository) ByID(ctx context.Context, id string) (*User, error) {
	return r.get(ctx, "id", id)
}

// ByUsername returns the user with username, nil when absent.
func (r *Repository) ByUsername(ctx context.Context, username string) (*User, error) {
	return r.get(ctx, "username", username)
}

// ListExcept returns every user but id, ordered by username.
func (r *Repository) ListExcept(ctx context.Context, id string) ([]User, error) {
	out := []User{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+userColumns+` FROM users WHERE id <> ? ORDER BY username`), id)
	return out, errors.Wrap(err, "list users")
}

// SetImage replaces the profile image URL.
func (r *Repository) SetImage(ctx context.Context, id, url string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET image = ? WHERE id = ?`), url, id)
	return errors.Wrap(err, "set user image")
}

// SetAdmin changes the admin flag and reports whether the user exists.
func (r *Repository) SetAdmin(ctx context.Context, username string, admin bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET admin = ? WHERE username = ?`), admin, username)
	if err != nil {
		return false, errors.Wrap(err, "set admin")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
