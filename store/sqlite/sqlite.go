/*
Package sqlite provides the SQLite-backed implementation of the persistence
interfaces.

INTERFACES IMPLEMENTED:
  history.SnapshotStore:  balance snapshots (append-only)
  history.Ledger:         signed transactions + materialized balance
  billing.Store:          ledger + balance write for the wallet workflow
  billing.DocumentStore:  invoice/bill rows (mutable CRUD)

APPEND-ONLY ENFORCEMENT:
  Snapshots and transactions have no UPDATE or DELETE statements. The only
  mutable tables are users (materialized balance) and documents (status
  workflow).

KEY TABLES:
  snapshots:     every balance observation, real or synthetic backfill
  transactions:  the immutable signed ledger
  users:         account holders with their live balance
  documents:     invoices and bills

WAL MODE:
  The database is opened with WAL so readers do not block during the
  backfill batch insert.

Amounts are stored as decimal strings and timestamps as RFC3339 text, so
values round-trip without float precision loss.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/billing-engine/billing"
	"github.com/ledgerline/billing-engine/history"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Balance snapshots (append-only)
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		snapshot_date TEXT NOT NULL,
		synthetic INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Range query per user is the hot path
	CREATE INDEX IF NOT EXISTS idx_snapshots_user_date
		ON snapshots(user_id, snapshot_date);

	-- Signed transaction ledger (append-only)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_date
		ON transactions(user_id, transaction_date);

	-- Account holders with materialized balance
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		balance TEXT,
		currency TEXT,
		created_at TEXT NOT NULL
	);

	-- Invoices and bills
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		counterparty TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		due_date TEXT,
		issued_at TEXT NOT NULL,
		paid_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_user
		ON documents(user_id);
	CREATE INDEX IF NOT EXISTS idx_documents_status
		ON documents(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SNAPSHOT STORE (history.SnapshotStore interface)
// =============================================================================

// Since returns snapshots with snapshot_date >= from, ascending.
func (s *Store) Since(ctx context.Context, userID history.UserID, from time.Time) ([]history.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, amount, currency, snapshot_date, synthetic, created_at
		FROM snapshots
		WHERE user_id = ? AND snapshot_date >= ?
		ORDER BY snapshot_date ASC, created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, from.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []history.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Insert persists one snapshot.
func (s *Store) Insert(ctx context.Context, snap history.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertSnapshot(ctx, s.db, snap)
}

// InsertBatch persists snapshots atomically inside one SQL transaction:
// either all rows are written or none are.
func (s *Store) InsertBatch(ctx context.Context, snaps []history.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, snap := range snaps {
		if err := s.insertSnapshot(ctx, sqlTx, snap); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertSnapshot(ctx context.Context, db execer, snap history.Snapshot) error {
	query := `
		INSERT INTO snapshots (id, user_id, amount, currency, snapshot_date, synthetic, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		snap.ID,
		snap.UserID,
		snap.Amount.Value.String(),
		snap.Amount.Currency,
		snap.SnapshotDate.UTC().Format(time.RFC3339),
		snap.Synthetic,
		snap.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

func scanSnapshot(rows *sql.Rows) (history.Snapshot, error) {
	var (
		snap         history.Snapshot
		amount       string
		currency     string
		snapshotDate string
		createdAt    string
	)

	if err := rows.Scan(&snap.ID, &snap.UserID, &amount, &currency,
		&snapshotDate, &snap.Synthetic, &createdAt); err != nil {
		return snap, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	snap.Amount = history.Amount{Value: mustDecimal(amount), Currency: currency}
	snap.SnapshotDate, _ = time.Parse(time.RFC3339, snapshotDate)
	snap.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return snap, nil
}

// =============================================================================
// LEDGER (history.Ledger interface)
// =============================================================================

// InRange returns transactions with transaction_date in [from, to], ascending.
func (s *Store) InRange(ctx context.Context, userID history.UserID, from, to time.Time) ([]history.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, tx_type, amount, currency, transaction_date, description, created_at
		FROM transactions
		WHERE user_id = ? AND transaction_date >= ? AND transaction_date <= ?
		ORDER BY transaction_date ASC, created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []history.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// CurrentBalance returns the user's materialized balance.
func (s *Store) CurrentBalance(ctx context.Context, userID history.UserID) (history.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var balance, currency sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT balance, currency FROM users WHERE id = ?", userID,
	).Scan(&balance, &currency)
	if err == sql.ErrNoRows {
		return history.Amount{}, history.ErrNoBalance
	}
	if err != nil {
		return history.Amount{}, fmt.Errorf("failed to read balance: %w", err)
	}
	if !balance.Valid || balance.String == "" {
		return history.Amount{}, history.ErrNoBalance
	}
	return history.Amount{Value: mustDecimal(balance.String), Currency: currency.String}, nil
}

// Append records one ledger transaction.
func (s *Store) Append(ctx context.Context, tx history.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertTransaction(ctx, s.db, tx)
}

// ApplyTransaction appends the ledger transaction and updates the user's
// materialized balance inside one SQL transaction. A missing user row rolls
// the whole mutation back, so a rejected mutation leaves no ledger entry.
func (s *Store) ApplyTransaction(ctx context.Context, tx history.Transaction, newBalance history.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := s.insertTransaction(ctx, sqlTx, tx); err != nil {
		return err
	}

	res, err := sqlTx.ExecContext(ctx,
		"UPDATE users SET balance = ?, currency = ? WHERE id = ?",
		newBalance.Value.String(), newBalance.Currency, tx.UserID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return billing.ErrUserNotFound
	}
	return sqlTx.Commit()
}

func (s *Store) insertTransaction(ctx context.Context, db execer, tx history.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, tx_type, amount, currency, transaction_date, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Type,
		tx.Amount.Value.String(),
		tx.Amount.Currency,
		tx.TransactionDate.UTC().Format(time.RFC3339),
		tx.Description,
		tx.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func scanTransaction(rows *sql.Rows) (history.Transaction, error) {
	var (
		tx              history.Transaction
		amount          string
		currency        string
		transactionDate string
		description     sql.NullString
		createdAt       string
	)

	if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &amount, &currency,
		&transactionDate, &description, &createdAt); err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Amount = history.Amount{Value: mustDecimal(amount), Currency: currency}
	tx.TransactionDate, _ = time.Parse(time.RFC3339, transactionDate)
	tx.Description = description.String
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return tx, nil
}

// =============================================================================
// USERS
// =============================================================================

// SaveUser inserts or updates a user record. Balance updates go through
// ApplyTransaction, not here.
func (s *Store) SaveUser(ctx context.Context, u billing.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, name, email, balance, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email
	`
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email,
		u.Balance.Value.String(), u.Balance.Currency,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUser returns a user, or nil when not found.
func (s *Store) GetUser(ctx context.Context, id history.UserID) (*billing.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, balance, currency, created_at FROM users WHERE id = ?", id)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]billing.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, balance, currency, created_at FROM users ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []billing.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (billing.User, error) {
	var (
		u         billing.User
		email     sql.NullString
		balance   sql.NullString
		currency  sql.NullString
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Name, &email, &balance, &currency, &createdAt); err != nil {
		return u, err
	}
	u.Email = email.String
	if balance.Valid && balance.String != "" {
		u.Balance = history.Amount{Value: mustDecimal(balance.String), Currency: currency.String}
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return u, nil
}

// =============================================================================
// DOCUMENTS (billing.DocumentStore interface)
// =============================================================================

// SaveDocument inserts or updates a document row.
func (s *Store) SaveDocument(ctx context.Context, doc billing.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO documents (id, user_id, kind, counterparty, amount, currency, status,
		                       due_date, issued_at, paid_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			paid_at = excluded.paid_at,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.UserID, doc.Kind, doc.Counterparty,
		doc.Amount.Value.String(), doc.Amount.Currency, doc.Status,
		nullTime(doc.DueDate),
		doc.IssuedAt.UTC().Format(time.RFC3339),
		nullTime(doc.PaidAt),
		doc.CreatedAt.UTC().Format(time.RFC3339),
		doc.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// GetDocument returns a document, or nil when not found.
func (s *Store) GetDocument(ctx context.Context, id string) (*billing.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, kind, counterparty, amount, currency, status,
		       due_date, issued_at, paid_at, created_at, updated_at
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns a user's documents, newest first, optionally
// filtered by kind.
func (s *Store) ListDocuments(ctx context.Context, userID history.UserID, kind billing.DocumentKind) ([]billing.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, kind, counterparty, amount, currency, status,
		       due_date, issued_at, paid_at, created_at, updated_at
		FROM documents WHERE user_id = ?`
	args := []any{userID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY issued_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []billing.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(row rowScanner) (billing.Document, error) {
	var (
		doc       billing.Document
		amount    string
		currency  string
		dueDate   sql.NullString
		issuedAt  string
		paidAt    sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&doc.ID, &doc.UserID, &doc.Kind, &doc.Counterparty,
		&amount, &currency, &doc.Status,
		&dueDate, &issuedAt, &paidAt, &createdAt, &updatedAt); err != nil {
		return doc, err
	}

	doc.Amount = history.Amount{Value: mustDecimal(amount), Currency: currency}
	doc.DueDate = parseNullTime(dueDate)
	doc.IssuedAt, _ = time.Parse(time.RFC3339, issuedAt)
	doc.PaidAt = parseNullTime(paidAt)
	doc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	doc.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return doc, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
