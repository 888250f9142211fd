package storage

import (
	"context"
	"fmt"

	"expense-ledger/internal/models"
)

const userColumns = "id, name, username, email, password_hash, created_at"

// CreateUser inserts u. A taken email or username yields models.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	_, err := db.conn.ExecContext(ctx, db.rebind(
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?)"),
		u.ID, u.Name, u.Username, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user: %w", models.ErrConflict)
		}
		return storageErr("create user", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, db.rebind(
		"SELECT "+userColumns+" FROM users WHERE email = ?"), email)

	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, rowErr("get user by email", err)
	}
	return &u, nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, storageErr("count users", err)
	}
	return count, nil
}
