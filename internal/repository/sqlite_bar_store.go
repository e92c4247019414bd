package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"StockCast/internal/domain/models"
	applogger "StockCast/pkg/logger"
	pkgsqlite "StockCast/pkg/sqlite"
	"StockCast/pkg/util"
)

const barsTable = "bars"

// BarSchema returns the idempotent schema statements for the bar store.
func BarSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS bars (
			ticker TEXT NOT NULL,
			date   TEXT NOT NULL,
			open   REAL NOT NULL,
			high   REAL NOT NULL,
			low    REAL NOT NULL,
			close  REAL NOT NULL,
			volume REAL NOT NULL,
			PRIMARY KEY (ticker, date)
		)`,
	}
}

// SQLiteBarStore implements BarStore backed by SQLite.
type SQLiteBarStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewSQLiteBarStore(cli *pkgsqlite.Client) *SQLiteBarStore {
	return &SQLiteBarStore{db: cli.DB()}
}

// SetLogger injects a structured logger.
func (s *SQLiteBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *SQLiteBarStore) GetBars(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error) {
	start := time.Now()
	const q = `
        SELECT ticker, date, open, high, low, close, volume
        FROM bars
        WHERE ticker = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `
	rows, err := s.db.QueryContext(ctx, q, ticker, util.FormatDate(from), util.FormatDate(to))
	if err != nil {
		if s.l != nil {
			s.l.Error("sqlite get_bars query error",
				applogger.String("table", barsTable),
				applogger.String("ticker", ticker),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 256)
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			if s.l != nil {
				s.l.Error("sqlite get_bars scan error",
					applogger.String("table", barsTable),
					applogger.String("ticker", ticker),
					applogger.Error(err),
				)
			}
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("sqlite get_bars rows error",
				applogger.String("table", barsTable),
				applogger.String("ticker", ticker),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("sqlite get_bars ok",
			applogger.String("table", barsTable),
			applogger.String("ticker", ticker),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *SQLiteBarStore) GetLatestNBars(ctx context.Context, ticker string, n int) ([]models.Bar, error) {
	start := time.Now()
	const q = `
        SELECT ticker, date, open, high, low, close, volume
        FROM bars
        WHERE ticker = ?
        ORDER BY date DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, ticker, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("sqlite latest_bars query error",
				applogger.String("table", barsTable),
				applogger.String("ticker", ticker),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Bar, 0, n)
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			if s.l != nil {
				s.l.Error("sqlite latest_bars scan error",
					applogger.String("table", barsTable),
					applogger.String("ticker", ticker),
					applogger.Int("limit", n),
					applogger.Error(err),
				)
			}
			return nil, err
		}
		tmp = append(tmp, b)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("sqlite latest_bars rows error",
				applogger.String("table", barsTable),
				applogger.String("ticker", ticker),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Info("sqlite latest_bars ok",
			applogger.String("table", barsTable),
			applogger.String("ticker", ticker),
			applogger.Int("limit", n),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func (s *SQLiteBarStore) LastDate(ctx context.Context, ticker string) (time.Time, bool, error) {
	const q = `SELECT date FROM bars WHERE ticker = ? ORDER BY date DESC LIMIT 1`
	var raw string
	err := s.db.QueryRowContext(ctx, q, ticker).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last date: %w", err)
	}
	d, ok := util.ParseDate(raw)
	if !ok {
		return time.Time{}, false, fmt.Errorf("last date: bad value %q", raw)
	}
	return d, true, nil
}

// UpsertBars writes bars in chunks, replacing rows that share ticker and
// date. It returns how many rows were sent.
func (s *SQLiteBarStore) UpsertBars(ctx context.Context, bars []models.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	// Chunk size keeps the bind-variable count well under the SQLite limit.
	const chunkSize = 500
	written := 0
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, b := range bars[start:end] {
			if b.Ticker == "" || b.Date.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				b.Ticker,
				util.FormatDate(b.Date),
				b.Open,
				b.High,
				b.Low,
				b.Close,
				b.Volume,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf(`INSERT INTO %s (ticker, date, open, high, low, close, volume) VALUES %s
            ON CONFLICT(ticker, date) DO UPDATE SET
                open = excluded.open,
                high = excluded.high,
                low = excluded.low,
                close = excluded.close,
                volume = excluded.volume`,
			barsTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return written, fmt.Errorf("upsert bars: %w", err)
		}
		written += len(values)
	}
	return written, nil
}

func (s *SQLiteBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteBarStore) Close() error {
	return nil // pool is owned by pkg/sqlite
}

func scanBar(rows *sql.Rows) (models.Bar, error) {
	var b models.Bar
	var raw string
	if err := rows.Scan(&b.Ticker, &raw, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
		return models.Bar{}, fmt.Errorf("scan bar: %w", err)
	}
	d, ok := util.ParseDate(raw)
	if !ok {
		return models.Bar{}, fmt.Errorf("scan bar: bad date %q", raw)
	}
	b.Date = d
	return b, nil
}
