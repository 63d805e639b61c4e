package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrWriteFailed marks a failed row append.
	ErrWriteFailed = errors.New("storage: write failed")
	// ErrReadFailed marks a failed history read.
	ErrReadFailed = errors.New("storage: read failed")
)

const quoteTable = "quote_rows"

// RowAppender persists captured rows.
type RowAppender interface {
	Append(ctx context.Context, row Row) error
}

// RowReader reads back persisted rows ordered by capture time ascending.
type RowReader interface {
	ReadAll(ctx context.Context) ([]Row, error)
	ReadRecent(ctx context.Context, n int) ([]Row, error)
	Latest(ctx context.Context) (Row, bool, error)
}

// QuoteStore is the full persistence contract for quote rows.
type QuoteStore interface {
	EnsureSchema(ctx context.Context) error
	RowAppender
	RowReader
}

// Store persists quote rows in a table with one nullable numeric column per
// configured ticker, keyed by capture timestamp.
type Store struct {
	pool    *pgxpool.Pool
	tickers []string
	columns []string
}

// NewStore wires a pgx pool into a Store for the given ticker set. Column
// order follows ticker order and is fixed for the life of the Store.
func NewStore(pool *pgxpool.Pool, tickers []string) *Store {
	columns := make([]string, len(tickers))
	for i, t := range tickers {
		columns[i] = columnName(t)
	}
	return &Store{pool: pool, tickers: tickers, columns: columns}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the quote table and any missing ticker columns. Safe
// to call on every startup; IF NOT EXISTS keeps it a no-op when the
// structure is already in place.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, createTableSQL()); execErr != nil {
		return fmt.Errorf("create quote table: %w", execErr)
	}
	for _, col := range s.columns {
		if _, execErr := pool.Exec(ctx, addColumnSQL(col)); execErr != nil {
			return fmt.Errorf("add column %s: %w", col, execErr)
		}
	}
	return nil
}

// Append durably persists one row as a single atomic insert. Absent prices
// are written as NULL.
func (s *Store) Append(ctx context.Context, row Row) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	args := make([]any, 0, len(s.tickers)+1)
	args = append(args, row.CapturedAt)
	for _, t := range s.tickers {
		if p, ok := row.Price(t); ok {
			args = append(args, p.String())
		} else {
			args = append(args, nil)
		}
	}

	if _, execErr := pool.Exec(ctx, insertRowSQL(s.columns), args...); execErr != nil {
		return fmt.Errorf("%w: insert quote row: %w", ErrWriteFailed, execErr)
	}
	return nil
}

// ReadAll returns the full history ordered by capture time ascending.
func (s *Store) ReadAll(ctx context.Context) ([]Row, error) {
	return s.readRows(ctx, selectRowsSQL(s.columns, false))
}

// ReadRecent returns the n most recent rows, still ordered ascending so
// callers can treat the result like a tail of ReadAll.
func (s *Store) ReadRecent(ctx context.Context, n int) ([]Row, error) {
	rows, err := s.readRows(ctx, selectRowsSQL(s.columns, true), n)
	if err != nil {
		return nil, err
	}
	reverseRows(rows)
	return rows, nil
}

// Latest returns the most recent row; ok is false when the table is empty.
func (s *Store) Latest(ctx context.Context) (Row, bool, error) {
	rows, err := s.readRows(ctx, selectRowsSQL(s.columns, true), 1)
	if err != nil {
		return Row{}, false, err
	}
	if len(rows) == 0 {
		return Row{}, false, nil
	}
	return rows[0], true, nil
}

func (s *Store) readRows(ctx context.Context, query string, args ...any) ([]Row, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("%w: query quote rows: %w", ErrReadFailed, queryErr)
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		var (
			capturedAt time.Time
			createdAt  time.Time
		)
		prices := make([]sql.NullString, len(s.tickers))

		targets := make([]any, 0, len(s.tickers)+2)
		targets = append(targets, &capturedAt)
		for i := range prices {
			targets = append(targets, &prices[i])
		}
		targets = append(targets, &createdAt)

		if scanErr := rows.Scan(targets...); scanErr != nil {
			return nil, fmt.Errorf("%w: scan quote row: %w", ErrReadFailed, scanErr)
		}

		row := Row{
			CapturedAt: capturedAt,
			Prices:     make(map[string]*decimal.Decimal, len(s.tickers)),
			CreatedAt:  createdAt,
		}
		for i, t := range s.tickers {
			if !prices[i].Valid {
				row.Prices[t] = nil
				continue
			}
			value, convErr := decimal.NewFromString(prices[i].String)
			if convErr != nil {
				return nil, fmt.Errorf("%w: parse price for %s: %w", ErrReadFailed, t, convErr)
			}
			row.Prices[t] = &value
		}
		out = append(out, row)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, rows.Err())
	}
	return out, nil
}

func createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    captured_at TIMESTAMPTZ PRIMARY KEY,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`, quoteTable)
}

func addColumnSQL(column string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s NUMERIC;", quoteTable, column)
}

func insertRowSQL(columns []string) string {
	cols := make([]string, 0, len(columns)+1)
	cols = append(cols, "captured_at")
	cols = append(cols, columns...)

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s);",
		quoteTable,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
	)
}

func selectRowsSQL(columns []string, recent bool) string {
	cols := make([]string, 0, len(columns)+2)
	cols = append(cols, "captured_at")
	cols = append(cols, columns...)
	cols = append(cols, "created_at")

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteTable)
	if recent {
		return query + " ORDER BY captured_at DESC LIMIT $1;"
	}
	return query + " ORDER BY captured_at;"
}

// columnName maps a ticker symbol to a safe SQL identifier: lowercase, with
// every non-alphanumeric run collapsed to a single underscore (BAJAJ-AUTO
// becomes bajaj_auto). A leading digit gets a t_ prefix.
func columnName(ticker string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(ticker) {
		switch {
		case unicode.IsLower(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && b.Len() > 0:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	name := strings.TrimRight(b.String(), "_")
	if name == "" {
		return "t_unknown"
	}
	if unicode.IsDigit(rune(name[0])) {
		return "t_" + name
	}
	return name
}

func reverseRows(rows []Row) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

var _ QuoteStore = (*Store)(nil)
