package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"
	"ultrapay-backend/internal/database"
	"ultrapay-backend/internal/models"
)

const transactionColumns = `transaction_id, wallet_address, prompt, media_type, provider_id, provider_name,
	price, payment_hash, media_url, is_favorite, status, created_at`

// SQLLedger stores transactions in Postgres or SQLite. The connection is
// opened lazily on first use; concurrent first calls share one connect and
// a failed connect is retried by the next call.
type SQLLedger struct {
	driver  string
	dsn     string
	dialect string
	logger  zerolog.Logger

	mu    sync.RWMutex
	db    *sqlx.DB
	group singleflight.Group
}

// ParseDSN maps a DATABASE_URL onto a driver name and driver DSN.
// postgres:// and postgresql:// select lib/pq; sqlite://, file: and
// :memory: select the embedded SQLite driver.
func ParseDSN(databaseURL string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return database.DialectPostgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return database.DialectSQLite, strings.TrimPrefix(databaseURL, "sqlite://"), nil
	case strings.HasPrefix(databaseURL, "file:"), databaseURL == ":memory:":
		return database.DialectSQLite, databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported database url scheme: %q", redactDSN(databaseURL))
	}
}

func NewSQLLedger(databaseURL string, logger zerolog.Logger) (*SQLLedger, error) {
	driver, dsn, err := ParseDSN(databaseURL)
	if err != nil {
		return nil, err
	}
	return &SQLLedger{
		driver:  driver,
		dsn:     dsn,
		dialect: driver,
		logger:  logger.With().Str("component", "ledger").Str("dialect", driver).Logger(),
	}, nil
}

func (l *SQLLedger) Name() string {
	return "sql:" + l.dialect
}

func (l *SQLLedger) conn(ctx context.Context) (*sqlx.DB, error) {
	l.mu.RLock()
	db := l.db
	l.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	v, err, _ := l.group.Do("connect", func() (interface{}, error) {
		l.mu.RLock()
		existing := l.db
		l.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		db, err := l.open(ctx)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.db = db
		l.mu.Unlock()
		return db, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v.(*sqlx.DB), nil
}

func (l *SQLLedger) open(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.Open(l.driver, l.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if l.dialect == database.DialectSQLite {
		// One writer; also keeps a :memory: database on a single connection.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrator, err := database.NewMigrator(db, l.dialect, l.logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrator.Run(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	l.logger.Info().Msg("ledger connected")
	return db, nil
}

func (l *SQLLedger) Ping(ctx context.Context) error {
	db, err := l.conn(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (l *SQLLedger) Record(ctx context.Context, tx models.Transaction) error {
	if tx.TransactionID == "" {
		return fmt.Errorf("transaction id is required")
	}
	db, err := l.conn(ctx)
	if err != nil {
		return err
	}
	tx = normalize(tx)

	res, err := db.NamedExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (:transaction_id, :wallet_address, :prompt, :media_type, :provider_id, :provider_name,
			:price, :payment_hash, :media_url, :is_favorite, :status, :created_at)
		ON CONFLICT (transaction_id) DO NOTHING
	`, tx)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	if n == 0 {
		return ErrDuplicateTransaction
	}
	return nil
}

func (l *SQLLedger) Get(ctx context.Context, transactionID string) (*models.Transaction, error) {
	db, err := l.conn(ctx)
	if err != nil {
		return nil, err
	}

	var tx models.Transaction
	err = db.GetContext(ctx, &tx, db.Rebind(`
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE transaction_id = ?
	`), transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	return &tx, nil
}

func (l *SQLLedger) ListByWallet(ctx context.Context, wallet string, limit int) ([]models.Transaction, error) {
	db, err := l.conn(ctx)
	if err != nil {
		return nil, err
	}

	txs := []models.Transaction{}
	err = db.SelectContext(ctx, &txs, db.Rebind(`
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE wallet_address = ? AND wallet_address <> ''
		ORDER BY created_at DESC
		LIMIT ?
	`), models.NormalizeWallet(wallet), ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	for i := range txs {
		txs[i].CreatedAt = txs[i].CreatedAt.UTC()
	}
	return txs, nil
}

func (l *SQLLedger) ToggleFavorite(ctx context.Context, transactionID, wallet string) (bool, error) {
	db, err := l.conn(ctx)
	if err != nil {
		return false, err
	}

	var isFavorite bool
	err = db.QueryRowxContext(ctx, db.Rebind(`
		UPDATE transactions
		SET is_favorite = NOT is_favorite
		WHERE transaction_id = ? AND wallet_address = ? AND wallet_address <> ''
		RETURNING is_favorite
	`), transactionID, models.NormalizeWallet(wallet)).Scan(&isFavorite)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return isFavorite, nil
}

// IncrementWallet adds one generation to the wallet aggregate with a single
// upsert so concurrent increments never read-modify-write.
func (l *SQLLedger) IncrementWallet(ctx context.Context, wallet string, amount decimal.Decimal, at time.Time) error {
	wallet = models.NormalizeWallet(wallet)
	if wallet == "" {
		return nil
	}
	db, err := l.conn(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, db.Rebind(`
		INSERT INTO wallet_stats (wallet_address, total_spent, total_generations, last_generation_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (wallet_address) DO UPDATE SET
			total_spent = ROUND(wallet_stats.total_spent + excluded.total_spent, 6),
			total_generations = wallet_stats.total_generations + 1,
			last_generation_at = CASE
				WHEN wallet_stats.last_generation_at IS NULL
					OR excluded.last_generation_at > wallet_stats.last_generation_at
				THEN excluded.last_generation_at
				ELSE wallet_stats.last_generation_at
			END
	`), wallet, amount, at.UTC().Truncate(time.Microsecond))
	if err != nil {
		return fmt.Errorf("failed to increment wallet stats: %w", err)
	}
	return nil
}

func (l *SQLLedger) WalletStats(ctx context.Context, wallet string) (*models.WalletStats, error) {
	wallet = models.NormalizeWallet(wallet)
	db, err := l.conn(ctx)
	if err != nil {
		return nil, err
	}

	var stats models.WalletStats
	err = db.GetContext(ctx, &stats, db.Rebind(`
		SELECT wallet_address, total_spent, total_generations, last_generation_at
		FROM wallet_stats
		WHERE wallet_address = ?
	`), wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return emptyStats(wallet), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet stats: %w", err)
	}
	if stats.LastGenerationAt != nil {
		at := stats.LastGenerationAt.UTC()
		stats.LastGenerationAt = &at
	}
	return &stats, nil
}

// rebuildWalletStatsSQL overwrites rows an increment committed after the
// DELETE in RecomputeWalletStats.
const rebuildWalletStatsSQL = `
	INSERT INTO wallet_stats (wallet_address, total_spent, total_generations, last_generation_at)
	SELECT wallet_address, ROUND(SUM(price), 6), COUNT(*), MAX(created_at)
	FROM transactions
	WHERE wallet_address <> ''
	GROUP BY wallet_address
	ON CONFLICT (wallet_address) DO UPDATE SET
		total_spent = excluded.total_spent,
		total_generations = excluded.total_generations,
		last_generation_at = excluded.last_generation_at
`

// RecomputeWalletStats rebuilds every aggregate from the transactions table
// and returns the number of wallets written.
func (l *SQLLedger) RecomputeWalletStats(ctx context.Context) (int, error) {
	db, err := l.conn(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM wallet_stats`); err != nil {
		return 0, fmt.Errorf("failed to clear wallet stats: %w", err)
	}
	res, err := tx.ExecContext(ctx, rebuildWalletStatsSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild wallet stats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit wallet stats: %w", err)
	}

	n, _ := res.RowsAffected()
	return int(n), nil
}

func (l *SQLLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "@"); i >= 0 {
		if j := strings.Index(dsn, "://"); j >= 0 && j < i {
			return dsn[:j+3] + "***" + dsn[i:]
		}
	}
	return dsn
}

var (
	_ Ledger = (*SQLLedger)(nil)
	_ Ledger = (*MemoryLedger)(nil)
)
