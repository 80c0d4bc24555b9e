package portal

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"classportal/internal/store"
)

// Repository persists portal resources. Lists come back newest first.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func selectAll[T any](ctx context.Context, db *sqlx.DB, query string, args ...any) ([]T, error) {
	out := []T{}
	if err := db.SelectContext(ctx, &out, db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return out, nil
}

func getOne[T any](ctx context.Context, db *sqlx.DB, query string, args ...any) (*T, error) {
	var v T
	err := db.GetContext(ctx, &v, db.Rebind(query), args...)
	if store.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// deleteByID reports whether a row was removed.
func (r *Repository) deleteByID(ctx context.Context, table, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM `+table+` WHERE id = ?`), id)
	if err != nil {
		return false, errors.Wrapf(err, "delete from %s", table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// -------- Announcements --------

func (r *Repository) InsertAnnouncement(ctx context.Context, a Announcement) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO announcements (id, title, description, course_code, venue, attachment, created_at)
		VALUES (:id, :title, :description, :course_code, :venue, :attachment, :created_at)
	`, a)
	return errors.Wrap(err, "insert announcement")
}

func (r *Repository) ListAnnouncements(ctx context.Context) ([]Announcement, error) {
	out, err := selectAll[Announcement](ctx, r.db, `
		SELECT id, title, description, course_code, venue, attachment, created_at
		FROM announcements ORDER BY created_at DESC`)
	return out, errors.Wrap(err, "list announcements")
}

func (r *Repository) GetAnnouncement(ctx context.Context, id string) (*Announcement, error) {
	a, err := getOne[Announcement](ctx, r.db, `
		SELECT id, title, description, course_code, venue, attachment, created_at
		FROM announcements WHERE id = ?`, id)
	return a, errors.Wrap(err, "get announcement")
}

func (r *Repository) DeleteAnnouncement(ctx context.Context, id string) (bool, error) {
	return r.deleteByID(ctx, "announcements", id)
}

// -------- Assignments --------

func (r *Repository) InsertAssignment(ctx context.Context, a Assignment) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO assignments (id, title, course_code, questions, created_at)
		VALUES (:id, :title, :course_code, :questions, :created_at)
	`, a)
	return errors.Wrap(err, "insert assignment")
}

func (r *Repository) ListAssignments(ctx context.Context) ([]Assignment, error) {
	out, err := selectAll[Assignment](ctx, r.db, `
		SELECT id, title, course_code, questions, created_at
		FROM assignments ORDER BY created_at DESC`)
	return out, errors.Wrap(err, "list assignments")
}

func (r *Repository) DeleteAssignment(ctx context.Context, id string) (bool, error) {
	return r.deleteByID(ctx, "assignments", id)
}

// -------- Notes --------

func (r *Repository) InsertNote(ctx context.Context, n Note) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO notes (id, title, course_code, image_urls, created_at)
		VALUES (:id, :title, :course_code, :image_urls, :created_at)
	`, n)
	return errors.Wrap(err, "insert note")
}

func (r *Repository) ListNotes(ctx context.Context) ([]Note, error) {
	out, err := selectAll[Note](ctx, r.db, `
		SELECT id, title, course_code, image_urls, created_at
		FROM notes ORDER BY created_at DESC`)
	return out, errors.Wrap(err, "list notes")
}

func (r *Repository) GetNote(ctx context.Context, id string) (*Note, error) {
	n, err := getOne[Note](ctx, r.db, `
		SELECT id, title, course_code, image_urls, created_at
		FROM notes WHERE id = ?`, id)
	return n, errors.Wrap(err, "get note")
}

func (r *Repository) DeleteNote(ctx context.Context, id string) (bool, error) {
	return r.deleteByID(ctx, "notes", id)
}

// -------- Courses --------

func (r *Repository) InsertCourse(ctx context.Context, c Course) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO courses (id, course_code, unit, created_at)
		VALUES (:id, :course_code, :unit, :created_at)
	`, c)
	return errors.Wrap(err, "insert course")
}

func (r *Repository) ListCourses(ctx context.Context) ([]Course, error) {
	out, err := selectAll[Course](ctx, r.db, `
		SELECT id, course_code, unit, created_at
		FROM courses ORDER BY created_at DESC`)
	return out, errors.Wrap(err, "list courses")
}

func (r *Repository) DeleteCourse(ctx context.Context, id string) (bool, error) {
	return r.deleteByID(ctx, "courses", id)
}

// -------- Shop --------

func (r *Repository) InsertShopItem(ctx context.Context, s ShopItem) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO shop_items (id, course, name, price, url, deadline, created_at)
		VALUES (:id, :course, :name, :price, :url, :deadline, :created_at)
	`, s)
	return errors.Wrap(err, "insert shop item")
}

// ListShopItems returns every item, or only those for course when it is set.
func (r *Repository) ListShopItems(ctx context.Context, course string) ([]ShopItem, error) {
	query := `SELECT id, course, name, price, url, deadline, created_at FROM shop_items`
	args := []any{}
	if course != "" {
		query += ` WHERE course = ?`
		args = append(args, course)
	}
	query += ` ORDER BY created_at DESC`
	out, err := selectAll[ShopItem](ctx, r.db, query, args...)
	return out, errors.Wrap(err, "list shop items")
}

func (r *Repository) DeleteShopItem(ctx context.Context, id string) (bool, error) {
	return r.deleteByID(ctx, "shop_items", id)
}
