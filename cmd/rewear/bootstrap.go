package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/erazemk/rewear/internal/auth"
	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/model"
	"github.com/erazemk/rewear/internal/store"
)

const adminPasswordLength = 16

var errAlreadyInitialized = errors.New("database already has an admin account")

// createAdmin creates the first admin account with a generated password and
// returns that password. It fails if an admin already exists.
func createAdmin(ctx context.Context, database *db.DB, email string, points int) (string, error) {
	password, err := generatePassword(adminPasswordLength)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	err = database.InTx(ctx, func(tx *db.Tx) error {
		admins, err := store.CountAdmins(ctx, tx)
		if err != nil {
			return err
		}
		if admins > 0 {
			return errAlreadyInitialized
		}
		_, err = store.CreateUser(ctx, tx, store.NewUser{
			Email:        model.NormalizeEmail(email),
			PasswordHash: hash,
			FirstName:    "Admin",
			LastName:     "",
			Points:       points,
			IsAdmin:      true,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return password, nil
}

// bootstrapAdmin creates an admin only when the database has no users.
// It reports whether an account was created.
func bootstrapAdmin(ctx context.Context, database *db.DB, email string, points int) (string, bool, error) {
	n, err := store.CountUsers(ctx, database)
	if err != nil {
		return "", false, err
	}
	if n > 0 {
		return "", false, nil
	}
	password, err := createAdmin(ctx, database, email, points)
	if err != nil {
		return "", false, err
	}
	return password, true, nil
}

// printInitResult prints the admin credentials. They are shown only once.
func printInitResult(w io.Writer, dsn, email, password string) {
	fmt.Fprintf(w, "Database ready: %s\n", dsn)
	fmt.Fprintln(w, "Migrations applied.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Admin account created:")
	fmt.Fprintf(w, "  Email:    %s\n", email)
	fmt.Fprintf(w, "  Password: %s\n", password)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Save this password, it cannot be recovered.")
	fmt.Fprintln(w, "The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
