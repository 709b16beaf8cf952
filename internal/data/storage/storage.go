package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/songzhibin97/pumpsentinel/internal/data"
	"github.com/songzhibin97/pumpsentinel/internal/models"
)

type dialect string

const (
	dialectPostgres dialect = "postgres"
	dialectSQLite   dialect = "sqlite"
)

var _ data.DataStorage = (*SQLStorage)(nil)

// SQLStorage persists monitor events and security reports in Postgres or SQLite.
// Timestamps are stored as unix milliseconds so both dialects compare them the same way.
type SQLStorage struct {
	db      *sql.DB
	dialect dialect
}

// New opens the store for driver "postgres" or "sqlite".
func New(driver, connStr string) (*SQLStorage, error) {
	switch strings.ToLower(driver) {
	case "", "postgres", "postgresql":
		return NewPostgresStorage(connStr)
	case "sqlite", "sqlite3":
		return NewSQLiteStorage(connStr)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func NewPostgresStorage(connStr string) (*SQLStorage, error) {
	return open("postgres", connStr, dialectPostgres)
}

func NewSQLiteStorage(path string) (*SQLStorage, error) {
	return open("sqlite", path, dialectSQLite)
}

func open(driverName, connStr string, d dialect) (*SQLStorage, error) {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if d == dialectSQLite {
		// 单连接避免 SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	s := &SQLStorage{db: db, dialect: d}

	err = s.initTables()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return s, nil
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStorage) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// SaveLaunchedEvent implements DataStorage interface
func (s *SQLStorage) SaveLaunchedEvent(ctx context.Context, event *models.TokenLaunchedEvent) error {
	tweets, err := json.Marshal(event.Tweets)
	if err != nil {
		return fmt.Errorf("failed to encode tweets: %w", err)
	}

	query := `
        INSERT INTO token_launches (
            token_address, token_name, creator, launch_timestamp,
            created_at, transaction_sig, analysis, tweets, saved_at
        ) VALUES (
            ?, ?, ?, ?, ?, ?, ?, ?, ?
        )
        ON CONFLICT (token_address) DO UPDATE SET
            token_name = EXCLUDED.token_name,
            creator = EXCLUDED.creator,
            launch_timestamp = EXCLUDED.launch_timestamp,
            created_at = EXCLUDED.created_at,
            transaction_sig = EXCLUDED.transaction_sig,
            analysis = EXCLUDED.analysis,
            tweets = EXCLUDED.tweets,
            saved_at = EXCLUDED.saved_at
    `

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		event.TokenAddress,
		event.TokenName,
		event.Creator,
		millis(event.LaunchTimestamp),
		millis(event.CreatedAt),
		event.Transaction,
		event.Analysis,
		string(tweets),
		time.Now().UnixMilli(),
	)

	if err != nil {
		return fmt.Errorf("failed to save launched event: %w", err)
	}

	return nil
}

// GetLaunchedEvents implements DataStorage interface
func (s *SQLStorage) GetLaunchedEvents(ctx context.Context, start, end time.Time) ([]models.TokenLaunchedEvent, error) {
	query := `
        SELECT token_address, token_name, creator, launch_timestamp,
               created_at, transaction_sig, analysis, tweets
        FROM token_launches
        WHERE launch_timestamp BETWEEN ? AND ?
        ORDER BY launch_timestamp ASC
    `

	rows, err := s.db.QueryContext(ctx, s.rebind(query), start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query launched events: %w", err)
	}
	defer rows.Close()

	result := make([]models.TokenLaunchedEvent, 0)
	for rows.Next() {
		var (
			event             models.TokenLaunchedEvent
			launched, created int64
			tweets            string
		)
		err := rows.Scan(
			&event.TokenAddress,
			&event.TokenName,
			&event.Creator,
			&launched,
			&created,
			&event.Transaction,
			&event.Analysis,
			&tweets,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan launched event: %w", err)
		}
		event.LaunchTimestamp = fromMillis(launched)
		event.CreatedAt = fromMillis(created)
		if err := json.Unmarshal([]byte(tweets), &event.Tweets); err != nil {
			return nil, fmt.Errorf("failed to decode tweets: %w", err)
		}
		result = append(result, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating launched event rows: %w", err)
	}

	return result, nil
}

// SaveSecurityReport implements DataStorage interface
func (s *SQLStorage) SaveSecurityReport(ctx context.Context, report *models.SecurityReport) error {
	tweets, err := json.Marshal(report.Tweets)
	if err != nil {
		return fmt.Errorf("failed to encode tweets: %w", err)
	}

	createdAt := report.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
        INSERT INTO security_reports (
            token_address, token_name, symbol, creator, risk_level,
            risk_score, security_score, analysis, tweets, created_at
        ) VALUES (
            ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
        )
        ON CONFLICT (token_address) DO UPDATE SET
            token_name = EXCLUDED.token_name,
            symbol = EXCLUDED.symbol,
            creator = EXCLUDED.creator,
            risk_level = EXCLUDED.risk_level,
            risk_score = EXCLUDED.risk_score,
            security_score = EXCLUDED.security_score,
            analysis = EXCLUDED.analysis,
            tweets = EXCLUDED.tweets,
            created_at = EXCLUDED.created_at
    `

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		report.TokenAddress,
		report.TokenName,
		report.Symbol,
		report.Creator,
		report.RiskLevel,
		report.RiskScore,
		report.SecurityScore,
		report.Analysis,
		string(tweets),
		createdAt.UnixMilli(),
	)

	if err != nil {
		return fmt.Errorf("failed to save security report: %w", err)
	}

	return nil
}

// GetSecurityReport implements DataStorage interface
func (s *SQLStorage) GetSecurityReport(ctx context.Context, tokenAddress string) (*models.SecurityReport, error) {
	query := `
        SELECT token_address, token_name, symbol, creator, risk_level,
               risk_score, security_score, analysis, tweets, created_at
        FROM security_reports
        WHERE token_address = ?
    `

	var (
		report    models.SecurityReport
		tweets    string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(query), tokenAddress).Scan(
		&report.TokenAddress,
		&report.TokenName,
		&report.Symbol,
		&report.Creator,
		&report.RiskLevel,
		&report.RiskScore,
		&report.SecurityScore,
		&report.Analysis,
		&tweets,
		&createdAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no report found for token %s: %w", tokenAddress, data.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security report: %w", err)
	}

	report.CreatedAt = fromMillis(createdAt)
	if err := json.Unmarshal([]byte(tweets), &report.Tweets); err != nil {
		return nil, fmt.Errorf("failed to decode tweets: %w", err)
	}

	return &report, nil
}

func (s *SQLStorage) initTables() error {
	id := "id SERIAL PRIMARY KEY"
	if s.dialect == dialectSQLite {
		id = "id INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS token_launches (
			` + id + `,
			token_address VARCHAR(64) UNIQUE NOT NULL,
			token_name VARCHAR(200),
			creator VARCHAR(64),
			launch_timestamp BIGINT NOT NULL,
			created_at BIGINT,
			transaction_sig VARCHAR(128),
			analysis TEXT,
			tweets TEXT,
			saved_at BIGINT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_token_launches_launch ON token_launches (launch_timestamp)`,

		`CREATE TABLE IF NOT EXISTS security_reports (
			token_address VARCHAR(64) PRIMARY KEY,
			token_name VARCHAR(200),
			symbol VARCHAR(50),
			creator VARCHAR(64),
			risk_level VARCHAR(10),
			risk_score INT,
			security_score INT,
			analysis TEXT,
			tweets TEXT,
			created_at BIGINT NOT NULL
		)`,
	}

	for _, query := range queries {
		_, err := s.db.Exec(query)
		if err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}
