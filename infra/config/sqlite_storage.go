package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mstgnz/gomerchant/gateway"
	"github.com/mstgnz/gomerchant/infra/logger"
)

const (
	maxBusyRetries   = 3
	defaultListLimit = 50
	maxListLimit     = 500

	// fixed width so created_at sorts lexically
	sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLiteStorage persists account credentials and the transaction log
type SQLiteStorage struct {
	db   *sql.DB
	path string
	box  *SecretBox
	now  func() time.Time
	mu   sync.Mutex
}

// retryOperation executes a database operation with retry logic for SQLITE_BUSY errors
func (s *SQLiteStorage) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if !isBusy(err) {
			return err
		}
		lastErr = err
		if attempt < maxRetries {
			// Exponential backoff: 10ms, 20ms, 40ms
			backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
			logger.Warn("SQLite busy, retrying", logger.LogContext{Fields: map[string]any{
				"backoff": backoff.String(),
				"attempt": attempt + 1,
			}})
			time.Sleep(backoff)
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// NewSQLiteStorage opens (or creates) the database at dbPath; box may be nil
// to store credentials in plaintext
func NewSQLiteStorage(dbPath string, box *SecretBox) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// SQLite connection string with multi-process optimizations
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_timeout=20000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	storage := &SQLiteStorage{
		db:   db,
		path: dbPath,
		box:  box,
		now:  time.Now,
	}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := storage.optimizeForMultiProcess(); err != nil {
		logger.Warn("Failed to apply SQLite optimizations", logger.LogContext{Fields: map[string]any{"error": err.Error()}})
	}

	logger.Info("SQLite storage initialized", logger.LogContext{Fields: map[string]any{
		"path":      dbPath,
		"encrypted": box != nil,
	}})
	return storage, nil
}

// initSchema creates the necessary tables
func (s *SQLiteStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS account_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account TEXT NOT NULL,
		gateway TEXT NOT NULL,
		config_data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account, gateway)
	);

	CREATE INDEX IF NOT EXISTS idx_account_gateway ON account_configs(account, gateway);

	CREATE TRIGGER IF NOT EXISTS update_account_configs_updated_at
		AFTER UPDATE ON account_configs
	BEGIN
		UPDATE account_configs SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
	END;

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account TEXT NOT NULL,
		gateway TEXT NOT NULL,
		environment TEXT NOT NULL DEFAULT '',
		operation TEXT NOT NULL,
		amount INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT '',
		order_id TEXT NOT NULL DEFAULT '',
		card TEXT NOT NULL DEFAULT '',
		client_ip TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		authorization TEXT NOT NULL DEFAULT '',
		error_code TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		test INTEGER NOT NULL DEFAULT 0,
		processing_ms INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_account_gateway ON transactions(account, gateway);
	`

	_, err := s.db.Exec(query)
	return err
}

// optimizeForMultiProcess applies SQLite optimizations for multi-process access
func (s *SQLiteStorage) optimizeForMultiProcess() error {
	optimizations := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA cache_size = 1000;",
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA temp_store = memory;",
		"PRAGMA mmap_size = 268435456;", // 256MB
		"PRAGMA optimize;",
	}

	for _, pragma := range optimizations {
		if _, err := s.db.Exec(pragma); err != nil {
			logger.Warn("Failed to execute pragma", logger.LogContext{Fields: map[string]any{"pragma": pragma, "error": err.Error()}})
		}
	}

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to check journal mode: %w", err)
	}

	logger.Debug("SQLite journal mode", logger.LogContext{Fields: map[string]any{"mode": journalMode}})
	return nil
}

func (s *SQLiteStorage) sealConfig(config map[string]string) (string, error) {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	sealed, err := s.box.Seal(configJSON)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt config: %w", err)
	}
	return sealed, nil
}

func (s *SQLiteStorage) openConfig(data string) (map[string]string, error) {
	plaintext, err := s.box.Open(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt config: %w", err)
	}
	var config map[string]string
	if err := json.Unmarshal(plaintext, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}

// SaveAccountConfig inserts or replaces the credentials of an account for one gateway
func (s *SQLiteStorage) SaveAccountConfig(account, gatewayName string, config map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.sealConfig(config)
	if err != nil {
		return err
	}

	return s.retryOperation(func() error {
		query := `
		INSERT INTO account_configs (account, gateway, config_data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(account, gateway)
		DO UPDATE SET
			config_data = excluded.config_data,
			updated_at = CURRENT_TIMESTAMP
		`

		if _, err := s.db.Exec(query, account, gatewayName, data); err != nil {
			return fmt.Errorf("failed to save account config: %w", err)
		}

		logger.Debug("Saved account config", logger.LogContext{Account: account, Gateway: gatewayName})
		return nil
	}, maxBusyRetries)
}

// LoadAccountConfig loads the credentials of an account for one gateway
func (s *SQLiteStorage) LoadAccountConfig(account, gatewayName string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config map[string]string
	err := s.retryOperation(func() error {
		query := `
		SELECT config_data
		FROM account_configs
		WHERE account = ? AND gateway = ?
		`

		var data string
		err := s.db.QueryRow(query, account, gatewayName).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("account %s, gateway %s: %w", account, gatewayName, ErrConfigNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load account config: %w", err)
		}

		config, err = s.openConfig(data)
		return err
	}, maxBusyRetries)

	if err != nil {
		return nil, err
	}
	return config, nil
}

// LoadAllAccountConfigs loads every stored configuration keyed by AccountKey
func (s *SQLiteStorage) LoadAllAccountConfigs() (map[string]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var configs map[string]map[string]string
	err := s.retryOperation(func() error {
		query := `
		SELECT account, gateway, config_data
		FROM account_configs
		ORDER BY account, gateway
		`

		rows, err := s.db.Query(query)
		if err != nil {
			return fmt.Errorf("failed to query account configs: %w", err)
		}
		defer rows.Close()

		configs = make(map[string]map[string]string)
		for rows.Next() {
			var account, gatewayName, data string
			if err := rows.Scan(&account, &gatewayName, &data); err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}

			config, err := s.openConfig(data)
			if err != nil {
				logger.Warn("Skipping unreadable account config", logger.LogContext{
					Account: account,
					Gateway: gatewayName,
					Fields:  map[string]any{"error": err.Error()},
				})
				continue
			}
			configs[AccountKey(account, gatewayName)] = config
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating rows: %w", err)
		}
		return nil
	}, maxBusyRetries)

	if err != nil {
		return nil, err
	}

	logger.Info("Loaded account configurations", logger.LogContext{Fields: map[string]any{"count": len(configs)}})
	return configs, nil
}

// DeleteAccountConfig deletes the credentials of an account for one gateway
func (s *SQLiteStorage) DeleteAccountConfig(account, gatewayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retryOperation(func() error {
		query := `
		DELETE FROM account_configs
		WHERE account = ? AND gateway = ?
		`

		result, err := s.db.Exec(query, account, gatewayName)
		if err != nil {
			return fmt.Errorf("failed to delete account config: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("account %s, gateway %s: %w", account, gatewayName, ErrConfigNotFound)
		}

		logger.Debug("Deleted account config", logger.LogContext{Account: account, Gateway: gatewayName})
		return nil
	}, maxBusyRetries)
}

// AccountsByGateway returns every account that has credentials for gatewayName
func (s *SQLiteStorage) AccountsByGateway(gatewayName string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	SELECT DISTINCT account
	FROM account_configs
	WHERE gateway = ?
	ORDER BY account
	`

	rows, err := s.db.Query(query, gatewayName)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts by gateway: %w", err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

// LogRequest records an outgoing gateway call and returns its id
func (s *SQLiteStorage) LogRequest(ctx context.Context, entry gateway.TransactionEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	card := ""
	if len(entry.Card) > 0 {
		raw, err := json.Marshal(entry.Card)
		if err != nil {
			return "", fmt.Errorf("failed to marshal card: %w", err)
		}
		card = string(raw)
	}

	err := s.retryOperation(func() error {
		query := `
		INSERT INTO transactions (id, account, gateway, environment, operation, amount, currency, order_id, authorization, card, client_ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := s.db.ExecContext(ctx, query, id, entry.Account, entry.Gateway, entry.Environment, entry.Operation,
			entry.Amount, entry.Currency, entry.OrderID, entry.Authorization, card, entry.ClientIP,
			s.now().UTC().Format(sqliteTimeLayout))
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		return nil
	}, maxBusyRetries)
	if err != nil {
		return "", err
	}
	return id, nil
}

// LogResponse completes a transaction with the processor outcome
func (s *SQLiteStorage) LogResponse(ctx context.Context, id string, resp *gateway.Response, processingMs int64) error {
	if resp == nil {
		return errors.New("response cannot be nil")
	}
	return s.complete(ctx, id, `
		UPDATE transactions
		SET success = ?, message = ?, authorization = CASE WHEN ? = '' THEN authorization ELSE ? END,
			error_code = ?, test = ?, processing_ms = ?, completed_at = ?
		WHERE id = ?
		`, resp.Success, resp.Message, resp.Authorization, resp.Authorization, resp.ErrorCode, resp.Test, processingMs)
}

// LogError completes a transaction that failed before a processor outcome was known
func (s *SQLiteStorage) LogError(ctx context.Context, id string, errorCode, errorMsg string, processingMs int64) error {
	return s.complete(ctx, id, `
		UPDATE transactions
		SET success = 0, error_code = ?, error = ?, processing_ms = ?, completed_at = ?
		WHERE id = ?
		`, errorCode, errorMsg, processingMs)
}

func (s *SQLiteStorage) complete(ctx context.Context, id, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	args = append(args, s.now().UTC().Format(sqliteTimeLayout), id)
	return s.retryOperation(func() error {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("transaction %s not found", id)
		}
		return nil
	}, maxBusyRetries)
}

// ListTransactions returns logged transactions, newest first
func (s *SQLiteStorage) ListTransactions(ctx context.Context, q gateway.TransactionQuery) ([]gateway.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		where []string
		args  []any
	)
	if q.Account != "" {
		where = append(where, "account = ?")
		args = append(args, q.Account)
	}
	if q.Gateway != "" {
		where = append(where, "gateway = ?")
		args = append(args, q.Gateway)
	}
	if q.Operation != "" {
		where = append(where, "operation = ?")
		args = append(args, q.Operation)
	}

	query := `
	SELECT id, account, gateway, environment, operation, amount, currency, order_id, card, client_ip,
		success, message, authorization, error_code, error, test, processing_ms, created_at, completed_at
	FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, listLimit(q.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]gateway.Transaction, 0)
	for rows.Next() {
		var (
			tx          gateway.Transaction
			card        string
			createdAt   string
			completedAt sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.Account, &tx.Gateway, &tx.Environment, &tx.Operation, &tx.Amount,
			&tx.Currency, &tx.OrderID, &card, &tx.ClientIP, &tx.Success, &tx.Message, &tx.Authorization,
			&tx.ErrorCode, &tx.Error, &tx.Test, &tx.ProcessingMs, &createdAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		if card != "" {
			if err := json.Unmarshal([]byte(card), &tx.Card); err != nil {
				logger.Warn("Unreadable card column", logger.LogContext{Fields: map[string]any{"id": tx.ID}})
			}
		}
		if t, err := time.Parse(sqliteTimeLayout, createdAt); err == nil {
			tx.CreatedAt = t
		}
		if completedAt.Valid {
			if t, err := time.Parse(sqliteTimeLayout, completedAt.String); err == nil {
				tx.CompletedAt = &t
			}
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return transactions, nil
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// Ping checks the database connection
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file location
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetStats returns database statistics
func (s *SQLiteStorage) GetStats() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]any)

	counts := []struct {
		key   string
		query string
	}{
		{"total_configs", "SELECT COUNT(*) FROM account_configs"},
		{"unique_accounts", "SELECT COUNT(DISTINCT account) FROM account_configs"},
		{"unique_gateways", "SELECT COUNT(DISTINCT gateway) FROM account_configs"},
		{"total_transactions", "SELECT COUNT(*) FROM transactions"},
	}
	for _, c := range counts {
		var n int
		if err := s.db.QueryRow(c.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to compute %s: %w", c.key, err)
		}
		stats[c.key] = n
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats["db_size_bytes"] = fileInfo.Size()
	}
	stats["db_path"] = s.path
	stats["encrypted"] = s.box != nil

	return stats, nil
}
