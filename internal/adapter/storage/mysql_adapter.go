package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/sdrelite/marketbot/internal/core/domain"
	"github.com/sdrelite/marketbot/internal/port"
)

const mysqlErrDuplicateEntry = 1062

// MySQLAdapter implements the ledger and product repositories plus the
// pay transaction on one connection pool.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := m.db.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE user_id = ?`, userID,
	).Scan(&balance)

	if errors.Is(err, sql.ErrNoRows) {
		// Lazy wallet: absence is balance zero, not an error.
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("query wallet: %w", err)
	}
	return balance, nil
}

func (m *MySQLAdapter) Credit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE balance = balance + ?`,
		userID, amount, amount,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("credit wallet: %w", err)
	}

	var balance decimal.Decimal
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE user_id = ?`, userID,
	).Scan(&balance); err != nil {
		return decimal.Zero, fmt.Errorf("read new balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("commit credit: %w", err)
	}
	return balance, nil
}

// DebitAndAdvance is the pay unit of work: both conditional UPDATEs
// succeed or the whole transaction rolls back, so no reader can see the
// fee taken without the status advanced or vice versa.
func (m *MySQLAdapter) DebitAndAdvance(ctx context.Context, ownerID, productID string, fee decimal.Decimal) (decimal.Decimal, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance - ?, updated_at = NOW(3)
		WHERE user_id = ? AND balance >= ?`,
		fee, ownerID, fee,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("debit wallet: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Missing wallet counts too: a lazy wallet holds zero.
		return decimal.Zero, port.ErrInsufficientFunds
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE products
		SET status = ?, updated_at = NOW(3)
		WHERE id = ? AND user_id = ? AND status = ?`,
		domain.StatusPendingApproval, productID, ownerID, domain.StatusPendingPayment,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("advance product: %w", err)
	}
	rows, _ = result.RowsAffected()
	if rows == 0 {
		return decimal.Zero, port.ErrConflict
	}

	var balance decimal.Decimal
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE user_id = ?`, ownerID,
	).Scan(&balance); err != nil {
		return decimal.Zero, fmt.Errorf("read new balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("commit pay: %w", err)
	}
	return balance, nil
}

func (m *MySQLAdapter) Create(ctx context.Context, p domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (id, user_id, name, price, listing_fee, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, p.Price, p.ListingFee, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
		return port.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) FindByOwnerAndName(ctx context.Context, ownerID, name string) (domain.Product, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, price, listing_fee, status, created_at, updated_at
		FROM products
		WHERE user_id = ? AND name = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		ownerID, name,
	)
	return scanProduct(row)
}

func (m *MySQLAdapter) FindPendingApproval(ctx context.Context, name string) (domain.Product, error) {
	// Earliest submitted wins when names collide across owners.
	row := m.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, price, listing_fee, status, created_at, updated_at
		FROM products
		WHERE name = ? AND status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1`,
		name, domain.StatusPendingApproval,
	)
	return scanProduct(row)
}

func (m *MySQLAdapter) UpdateStatus(ctx context.Context, id string, expected, next domain.Status) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET status = ?, updated_at = NOW(3)
		WHERE id = ? AND status = ?`,
		next, id, expected,
	)
	if err != nil {
		return fmt.Errorf("update product status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrConflict
	}
	return nil
}

func (m *MySQLAdapter) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, name, price, listing_fee, status, created_at, updated_at
		FROM products
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p      domain.Product
		status string
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Price, &p.ListingFee, &status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, port.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("scan product: %w", err)
	}
	p.Status = domain.Status(status)
	return p, nil
}
