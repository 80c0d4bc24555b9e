package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"classportal/internal/store"
)

// StoredObject is one upload recorded by the handshake.
type StoredObject struct {
	Ref         string    `db:"ref"`
	Key         string    `db:"object_key"`
	URL         string    `db:"url"`
	ContentType string    `db:"content_type"`
	Size        int64     `db:"size"`
	OwnerID     string    `db:"owner_id"`
	Claimed     bool      `db:"claimed"`
	CreatedAt   time.Time `db:"created_at"`
}

func (o StoredObject) object() Object {
	return Object{Key: o.Key, URL: o.URL, ContentType: o.ContentType}
}

// Repository persists upload records.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const objectColumns = `ref, object_key, url, content_type, size, owner_id, claimed, created_at`

// Reserve records ref before its bytes are written. A second reservation of
// the same ref fails with a unique violation.
func (r *Repository) Reserve(ctx context.Context, o StoredObject) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO storage_objects (`+objectColumns+`)
		VALUES (:ref, :object_key, :url, :content_type, :size, :owner_id, :claimed, :created_at)
	`, o)
	return err
}

// Complete stores where the bytes for ref ended up.
func (r *Repository) Complete(ctx context.Context, ref string, obj Object, size int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE storage_objects SET object_key = ?, url = ?, content_type = ?, size = ? WHERE ref = ?
	`), obj.Key, obj.URL, obj.ContentType, size, ref)
	return errors.Wrap(err, "complete storage object")
}

// Get returns the record for ref, nil when unknown.
func (r *Repository) Get(ctx context.Context, ref string) (*StoredObject, error) {
	var o StoredObject
	err := r.db.GetContext(ctx, &o, r.db.Rebind(`SELECT `+objectColumns+` FROM storage_objects WHERE ref = ?`), ref)
	if store.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get storage object")
	}
	return &o, nil
}

// GetByURL returns the record serving url, nil when unknown.
func (r *Repository) GetByURL(ctx context.Context, url string) (*StoredObject, error) {
	var o StoredObject
	err := r.db.GetContext(ctx, &o, r.db.Rebind(`SELECT `+objectColumns+` FROM storage_objects WHERE url = ?`), url)
	if store.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get storage object by url")
	}
	return &o, nil
}

// Claim marks refs as attached to a record owned by ownerID. It reports false
// and claims nothing unless every ref was completed, unclaimed and uploaded by ownerID.
func (r *Repository) Claim(ctx context.Context, ownerID string, refs ...string) (bool, error) {
	if len(refs) == 0 {
		return true, nil
	}
	q, args, err := sqlx.In(`
		UPDATE storage_objects SET claimed = ?
		WHERE owner_id = ? AND claimed = ? AND url <> '' AND ref IN (?)
	`, true, ownerID, false, refs)
	if err != nil {
		return false, err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "begin claim")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind(q), args...)
	if err != nil {
		return false, errors.Wrap(err, "claim storage objects")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "claim storage objects")
	}
	if n != int64(len(refs)) {
		return false, nil
	}
	return true, errors.Wrap(tx.Commit(), "commit claim")
}

// Unclaim hands refs owned by ownerID back to the orphan sweep.
func (r *Repository) Unclaim(ctx context.Context, ownerID string, refs ...string) error {
	if len(refs) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`UPDATE storage_objects SET claimed = ? WHERE owner_id = ? AND ref IN (?)`, false, ownerID, refs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	return errors.Wrap(err, "unclaim storage objects")
}

// Delete removes the record for ref.
func (r *Repository) Delete(ctx context.Context, ref string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM storage_objects WHERE ref = ?`), ref)
	return errors.Wrap(err, "delete storage object")
}

// Unclaimed lists uploads older than before that no record references.
func (r *Repository) Unclaimed(ctx context.Context, before time.Time) ([]StoredObject, error) {
	var out []StoredObject
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+objectColumns+` FROM storage_objects
		WHERE claimed = ? AND created_at < ?
		ORDER BY created_at
	`), false, before)
	return out, errors.Wrap(err, "list unclaimed storage objects")
}
