package db

import (
	"context"
	"testing"
)

func TestRebindPostgres(t *testing.T) {
	got := Postgres.Rebind("SELECT * FROM swaps WHERE item_id = ? AND status = 'pending?' AND id <> ?")
	want := "SELECT * FROM swaps WHERE item_id = $1 AND status = 'pending?' AND id <> $2"
	if got != want {
		t.Errorf("Rebind = %q, want %q", got, want)
	}
}

func TestRebindSQLiteUnchanged(t *testing.T) {
	q := "UPDATE users SET points = points - ? WHERE id = ?"
	if got := SQLite.Rebind(q); got != q {
		t.Errorf("Rebind = %q, want unchanged", got)
	}
}

func TestForUpdate(t *testing.T) {
	if SQLite.ForUpdate() != "" {
		t.Error("sqlite should not add a locking clause")
	}
	if Postgres.ForUpdate() != " FOR UPDATE" {
		t.Errorf("postgres ForUpdate = %q", Postgres.ForUpdate())
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"sqlite": SQLite, "SQLite3": SQLite, "postgres": Postgres, "pgx": Postgres} {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Errorf("ParseDialect(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Error("expected error for mysql")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d := NewTestDB(t)
	ctx := context.Background()

	if err := Migrate(ctx, d); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	states, err := Status(ctx, d)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(states) == 0 {
		t.Fatal("expected at least one migration")
	}
	for _, s := range states {
		if !s.Applied {
			t.Errorf("migration %d not applied", s.Version)
		}
	}
}

func TestPendingSwapIndexIsUniqueViolation(t *testing.T) {
	d := NewTestDB(t)
	ctx := context.Background()

	mustExec := func(q string, args ...any) {
		t.Helper()
		if _, err := d.ExecContext(ctx, q, args...); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	mustExec("INSERT INTO users (email, password_hash, first_name, last_name) VALUES ('a@x.io', 'h', 'A', 'A')")
	mustExec("INSERT INTO users (email, password_hash, first_name, last_name) VALUES ('b@x.io', 'h', 'B', 'B')")
	mustExec("INSERT INTO items (user_id, title, category, type, condition) VALUES (1, 'Coat', 'outerwear', 'coat', 'good')")
	mustExec("INSERT INTO swaps (requester_id, owner_id, item_id, swap_type, points_offered) VALUES (2, 1, 1, 'points_redemption', 50)")

	_, err := d.ExecContext(ctx, "INSERT INTO swaps (requester_id, owner_id, item_id, swap_type, points_offered) VALUES (2, 1, 1, 'points_redemption', 60)")
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	// A rejected swap frees the slot.
	mustExec("UPDATE swaps SET status = 'rejected' WHERE id = 1")
	mustExec("INSERT INTO swaps (requester_id, owner_id, item_id, swap_type, points_offered) VALUES (2, 1, 1, 'points_redemption', 60)")
}

func TestPointsCheckConstraint(t *testing.T) {
	d := NewTestDB(t)
	ctx := context.Background()

	if _, err := d.ExecContext(ctx, "INSERT INTO users (email, password_hash, first_name, last_name, points) VALUES ('a@x.io', 'h', 'A', 'A', 5)"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.ExecContext(ctx, "UPDATE users SET points = points - ? WHERE id = 1", 10); err == nil {
		t.Fatal("expected negative balance to be rejected")
	}
}

func TestInTxRollsBack(t *testing.T) {
	d := NewTestDB(t)
	ctx := context.Background()

	sentinel := context.Canceled
	err := d.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO settings (key, value) VALUES (?, ?)", "k", "v"); err != nil {
			return err
		}
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("InTx error = %v", err)
	}

	var n int
	if err := d.QueryRowContext(ctx, "SELECT COUNT(*) FROM settings").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("settings rows = %d, want 0", n)
	}
}
