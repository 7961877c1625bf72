package sqlite

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/warp/library-engine/library"
)

type userRow struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	PasswordHash string `db:"secret_hash"`
	Role         string `db:"role"`
	Active       bool   `db:"active"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

func (r userRow) toUser() library.User {
	return library.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         library.Role(r.Role),
		Active:       r.Active,
		CreatedAt:    parseTime(r.CreatedAt),
		UpdatedAt:    parseTime(r.UpdatedAt),
	}
}

func usersDataset() *goqu.SelectDataset {
	return dialect.From("users").Select(
		"id", "name", "email", "secret_hash", "role", "active", "created_at", "updated_at",
	)
}

func (s *Store) InsertUser(ctx context.Context, u *library.User) error {
	defer s.lock()()

	ts := now()
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO users (name, email, secret_hash, role, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.PasswordHash, string(u.Role), u.Active, ts, ts)
	if err != nil {
		return uniqueViolation(err, "users.email", library.ErrEmailInUse)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	u.CreatedAt = parseTime(ts)
	u.UpdatedAt = u.CreatedAt
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, u library.User) (bool, error) {
	defer s.lock()()

	ok, err := s.exec(ctx, `
		UPDATE users SET name = ?, email = ?, role = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		u.Name, u.Email, string(u.Role), u.Active, now(), u.ID)
	if err != nil {
		return false, uniqueViolation(err, "users.email", library.ErrEmailInUse)
	}
	return ok, nil
}

func (s *Store) UpdatePassword(ctx context.Context, id int64, hash string) (bool, error) {
	defer s.lock()()
	return s.exec(ctx, `UPDATE users SET secret_hash = ?, updated_at = ? WHERE id = ?`, hash, now(), id)
}

func (s *Store) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	defer s.lock()()
	return s.exec(ctx, `UPDATE users SET active = ?, updated_at = ? WHERE id = ?`, active, now(), id)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) (bool, error) {
	defer s.lock()()
	return s.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
}

func (s *Store) GetUser(ctx context.Context, id int64) (*library.User, error) {
	return s.getUserWhere(ctx, goqu.Ex{"id": id})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*library.User, error) {
	return s.getUserWhere(ctx, goqu.Ex{"email": email})
}

func (s *Store) getUserWhere(ctx context.Context, where goqu.Ex) (*library.User, error) {
	defer s.rlock()()

	var rows []userRow
	if err := s.selectDataset(ctx, &rows, usersDataset().Where(where).Limit(1)); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	u := rows[0].toUser()
	return &u, nil
}

// ListUsers applies the filter and orders by name.
func (s *Store) ListUsers(ctx context.Context, f library.UserFilter) ([]library.User, error) {
	defer s.rlock()()

	ds := usersDataset()
	if f.Name != "" {
		ds = ds.Where(goqu.L("LOWER(name) LIKE ?", likePattern(f.Name)))
	}
	if f.Role != "" {
		ds = ds.Where(goqu.Ex{"role": string(f.Role)})
	}
	if f.ActiveOnly {
		ds = ds.Where(goqu.C("active").Eq(1))
	}
	ds = ds.Order(goqu.C("name").Asc(), goqu.C("id").Asc())

	var rows []userRow
	if err := s.selectDataset(ctx, &rows, ds); err != nil {
		return nil, err
	}
	users := make([]library.User, len(rows))
	for i, r := range rows {
		users[i] = r.toUser()
	}
	return users, nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	defer s.rlock()()
	return s.count(ctx, `SELECT COUNT(*) FROM users`)
}
