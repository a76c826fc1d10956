package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/model"
)

const userColumns = `id, email, password_hash, first_name, last_name, points, is_admin, created_at, updated_at`

// NewUser holds the fields needed to register a user.
type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Points       int
	IsAdmin      bool
}

// CreateUser inserts a user. The email is normalized before storing.
func CreateUser(ctx context.Context, q db.Querier, nu NewUser) (*model.User, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name, points, is_admin)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		model.NormalizeEmail(nu.Email), nu.PasswordHash, nu.FirstName, nu.LastName, nu.Points, nu.IsAdmin,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUser(ctx, q, id)
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Points, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser returns a user by ID, or nil if none exists.
func GetUser(ctx context.Context, q db.Querier, id int64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserForUpdate is GetUser with a row lock, for use inside a transaction.
func GetUserForUpdate(ctx context.Context, q db.Querier, id int64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`+q.Dialect().ForUpdate(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locking user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by email address, or nil if none exists.
func GetUserByEmail(ctx context.Context, q db.Querier, email string) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, model.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns one page of users, newest first, and the total count.
func ListUsers(ctx context.Context, q db.Querier, page Page) ([]model.User, int, error) {
	page = page.Normalize()

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// CountUsers returns the number of registered users.
func CountUsers(ctx context.Context, q db.Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// CountAdmins returns the number of users holding the admin flag.
func CountAdmins(ctx context.Context, q db.Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_admin = ?`, true).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return n, nil
}

// UpdateUserPassword replaces a user's password hash.
func UpdateUserPassword(ctx context.Context, q db.Querier, id int64, passwordHash string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// PromoteUser grants the admin flag. It reports false when no such user
// exists.
func PromoteUser(ctx context.Context, q db.Querier, id int64) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET is_admin = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		true, id,
	)
	if err != nil {
		return false, fmt.Errorf("promoting user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("promoting user: %w", err)
	}
	return n == 1, nil
}

// DemoteUser clears the admin flag unless the user is the last admin.
// It reports false when the demotion was refused. The admin rows stay
// locked until tx ends, so concurrent demotions see each other's result.
// A user who is no longer an admin is reported as demoted.
func DemoteUser(ctx context.Context, tx *db.Tx, id int64) (bool, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM users WHERE is_admin = ? ORDER BY id`+tx.Dialect().ForUpdate(), true)
	if err != nil {
		return false, fmt.Errorf("locking admins: %w", err)
	}
	var admins []int64
	for rows.Next() {
		var adminID int64
		if err := rows.Scan(&adminID); err != nil {
			rows.Close()
			return false, fmt.Errorf("scanning admin: %w", err)
		}
		admins = append(admins, adminID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("locking admins: %w", err)
	}

	if !slices.Contains(admins, id) {
		return true, nil
	}
	if len(admins) < 2 {
		return false, nil
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET is_admin = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		false, id,
	)
	if err != nil {
		return false, fmt.Errorf("demoting user: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return false, fmt.Errorf("demoting user: user %d not updated", id)
	}
	return true, nil
}

// SetUserPoints overwrites a balance. Only admin adjustments use this.
func SetUserPoints(ctx context.Context, q db.Querier, id int64, points int) error {
	if points < 0 {
		return fmt.Errorf("points must not be negative")
	}
	_, err := q.ExecContext(ctx,
		`UPDATE users SET points = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		points, id,
	)
	if err != nil {
		return fmt.Errorf("setting user points: %w", err)
	}
	return nil
}

// DebitPoints subtracts amount from a balance only if the balance covers it.
// It reports false when the balance was insufficient.
func DebitPoints(ctx context.Context, q db.Querier, id int64, amount int) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET points = points - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND points >= ?`,
		amount, id, amount,
	)
	if err != nil {
		return false, fmt.Errorf("debiting points: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debiting points: %w", err)
	}
	return n == 1, nil
}

// CreditPoints adds amount to a balance.
func CreditPoints(ctx context.Context, q db.Querier, id int64, amount int) error {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET points = points + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		amount, id,
	)
	if err != nil {
		return fmt.Errorf("crediting points: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return fmt.Errorf("crediting points: user %d not updated", id)
	}
	return nil
}

// TotalPoints sums every balance.
func TotalPoints(ctx context.Context, q db.Querier) (int64, error) {
	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(SUM(points), 0) FROM users`).Scan(&total); err != nil {
		return 0, fmt.Errorf("summing points: %w", err)
	}
	return total, nil
}

// UpdateUserProfile changes a user's names. Nil fields keep their value.
func UpdateUserProfile(ctx context.Context, q db.Querier, id int64, firstName, lastName *string) (*model.User, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET first_name = COALESCE(?, first_name), last_name = COALESCE(?, last_name),
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		firstName, lastName, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating user profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("updating user profile: %w", err)
	}
	if n != 1 {
		return nil, nil
	}
	return GetUser(ctx, q, id)
}
