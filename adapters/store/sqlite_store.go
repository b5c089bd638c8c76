package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	_ "modernc.org/sqlite"
)

// SQLiteAccountStore is a SQLite implementation of ports.AccountStore
type SQLiteAccountStore struct {
	db *sql.DB
}

var _ ports.AccountStore = (*SQLiteAccountStore)(nil)

// NewSQLiteAccountStore opens (or creates) the database at path and applies the schema.
// Parent directories are created if needed.
func NewSQLiteAccountStore(path string) (*SQLiteAccountStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection serializes writers, so invite consumption never hits SQLITE_BUSY
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	s := &SQLiteAccountStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteAccountStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			id             TEXT PRIMARY KEY,
			username       TEXT UNIQUE,
			password_hash  TEXT,
			wallet_address TEXT UNIQUE,
			created_at     TEXT NOT NULL,

			CHECK ((username IS NOT NULL AND password_hash IS NOT NULL) OR wallet_address IS NOT NULL)
		);

		CREATE TABLE IF NOT EXISTS invite_codes (
			code        TEXT PRIMARY KEY,
			consumed    INTEGER NOT NULL DEFAULT 0,
			account_id  TEXT REFERENCES accounts(id) DEFERRABLE INITIALLY DEFERRED,
			created_at  TEXT NOT NULL,
			consumed_at TEXT
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database
func (s *SQLiteAccountStore) Close() error {
	return s.db.Close()
}

// CreateAccountWithInvite consumes the invite and inserts the account in one transaction.
// A failed insert rolls the invite back to unconsumed.
func (s *SQLiteAccountStore) CreateAccountWithInvite(ctx context.Context, account *core.Account, inviteCode string) error {
	if err := account.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := account.CreatedAt.UTC().Format(time.RFC3339Nano)

	res, err := tx.ExecContext(ctx, `
		UPDATE invite_codes SET consumed = 1, account_id = ?, consumed_at = ?
		WHERE code = ? AND consumed = 0`,
		account.ID, createdAt, inviteCode)
	if err != nil {
		return fmt.Errorf("consume invite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume invite: %w", err)
	}
	if n == 0 {
		return core.ErrInvalidInvite
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (id, username, password_hash, wallet_address, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		account.ID, nullString(account.Username), nullString(account.PasswordHash),
		nullString(account.WalletAddress), createdAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.ErrAccountExists
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return tx.Commit()
}

// GetAccount returns an account by ID
func (s *SQLiteAccountStore) GetAccount(ctx context.Context, id string) (*core.Account, error) {
	return s.queryAccount(ctx, "id = ?", id)
}

// GetAccountByUsername returns the account registered under username
func (s *SQLiteAccountStore) GetAccountByUsername(ctx context.Context, username string) (*core.Account, error) {
	return s.queryAccount(ctx, "username = ?", username)
}

// GetAccountByAddress returns the account bound to a wallet address
func (s *SQLiteAccountStore) GetAccountByAddress(ctx context.Context, address string) (*core.Account, error) {
	return s.queryAccount(ctx, "wallet_address = ?", core.NormalizeAddress(address))
}

func (s *SQLiteAccountStore) queryAccount(ctx context.Context, where string, arg any) (*core.Account, error) {
	var (
		account      core.Account
		username     sql.NullString
		passwordHash sql.NullString
		walletAddr   sql.NullString
		createdAt    string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, wallet_address, created_at
		FROM accounts WHERE `+where, arg).
		Scan(&account.ID, &username, &passwordHash, &walletAddr, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}

	account.Username = username.String
	account.PasswordHash = passwordHash.String
	account.WalletAddress = walletAddr.String
	account.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &account, nil
}

// CreateInvite stores a new unconsumed invite code
func (s *SQLiteAccountStore) CreateInvite(ctx context.Context, invite *core.InviteCode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invite_codes (code, consumed, created_at) VALUES (?, 0, ?)`,
		invite.Code, invite.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.ErrInvalidInvite
		}
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

// GetInvite returns an invite code
func (s *SQLiteAccountStore) GetInvite(ctx context.Context, code string) (*core.InviteCode, error) {
	var (
		invite     core.InviteCode
		accountID  sql.NullString
		createdAt  string
		consumedAt sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT code, consumed, account_id, created_at, consumed_at
		FROM invite_codes WHERE code = ?`, code).
		Scan(&invite.Code, &invite.Consumed, &accountID, &createdAt, &consumedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrInvalidInvite
	}
	if err != nil {
		return nil, fmt.Errorf("query invite: %w", err)
	}

	invite.AccountID = accountID.String
	if invite.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if consumedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, consumedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse consumed_at: %w", err)
		}
		invite.ConsumedAt = &t
	}
	return &invite, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SQLite returns "UNIQUE constraint failed" in the error message
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
