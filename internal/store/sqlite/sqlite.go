package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"octopyenergy/internal/model"
	"octopyenergy/internal/store"
)

// Fixed width so that stored instants sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveReadings upserts readings in one transaction. Every row written by a call
// shares one batch id.
func (s *Store) SaveReadings(ctx context.Context, meter store.MeterKey, readings []model.ConsumptionReading) (err error) {
	if len(readings) == 0 {
		return nil
	}
	if meter.MPAN == "" || meter.SerialNumber == "" {
		return fmt.Errorf("sqlite: meter mpan and serial number are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO consumption_readings (
			mpan, serial_number, grouping_name, interval_start, interval_end,
			consumption_kwh, batch_id, ingested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mpan, serial_number, grouping_name, interval_start)
		DO UPDATE SET
			interval_end = excluded.interval_end,
			consumption_kwh = excluded.consumption_kwh,
			batch_id = excluded.batch_id,
			ingested_at = excluded.ingested_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	batchID := uuid.NewString()
	now := time.Now().UTC().Format(timeLayout)
	for _, reading := range readings {
		_, err = stmt.ExecContext(
			ctx,
			meter.MPAN,
			meter.SerialNumber,
			string(meter.Grouping),
			formatTime(reading.IntervalStart),
			formatTime(reading.IntervalEnd),
			reading.Consumption,
			batchID,
			now,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) SaveTariffs(ctx context.Context, accountNumber string, tariffs map[string]model.Tariff) (err error) {
	if len(tariffs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tariffs (
			account_number, mpan, display_name, unit_rate, batch_id, observed_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_number, mpan)
		DO UPDATE SET
			display_name = excluded.display_name,
			unit_rate = excluded.unit_rate,
			batch_id = excluded.batch_id,
			observed_at = excluded.observed_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	mpans := make([]string, 0, len(tariffs))
	for mpan := range tariffs {
		mpans = append(mpans, mpan)
	}
	sort.Strings(mpans)

	batchID := uuid.NewString()
	now := time.Now().UTC().Format(timeLayout)
	for _, mpan := range mpans {
		tariff := tariffs[mpan]
		if _, err = stmt.ExecContext(ctx, accountNumber, mpan, tariff.DisplayName, tariff.UnitRate, batchID, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) LatestIntervalEnd(ctx context.Context, meter store.MeterKey) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT interval_end FROM consumption_readings
		WHERE mpan = ? AND serial_number = ? AND grouping_name = ?
		ORDER BY interval_end DESC
		LIMIT 1
	`, meter.MPAN, meter.SerialNumber, string(meter.Grouping)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	end, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("sqlite: stored interval_end %q: %w", raw, err)
	}
	return end, true, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS consumption_readings (
			mpan TEXT NOT NULL,
			serial_number TEXT NOT NULL,
			grouping_name TEXT NOT NULL,
			interval_start TEXT NOT NULL,
			interval_end TEXT NOT NULL,
			consumption_kwh REAL NOT NULL,
			batch_id TEXT NOT NULL,
			ingested_at TEXT NOT NULL,
			PRIMARY KEY (mpan, serial_number, grouping_name, interval_start)
		);`,
		`CREATE TABLE IF NOT EXISTS tariffs (
			account_number TEXT NOT NULL,
			mpan TEXT NOT NULL,
			display_name TEXT NOT NULL,
			unit_rate REAL NOT NULL,
			batch_id TEXT NOT NULL,
			observed_at TEXT NOT NULL,
			PRIMARY KEY (account_number, mpan)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}
