// Package storage archives loaded datasets into a SQLite database so past
// flights remain queryable after the source files are gone. Writes go
// through a single lazily-opened WAL connection; reads use a separate
// read-only connection.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"example.com/flightlog/internal/logdata"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound reports a dataset ID absent from the archive.
var ErrNotFound = errors.New("dataset not found in archive")

// Archive is a dataset store backed by one SQLite file.
type Archive struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// Open prepares an archive at dbPath. The file and schema are created on
// first write.
func Open(dbPath string) (*Archive, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("archive path is empty")
	}
	return &Archive{dbPath: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(schemaSQL)
	return err
}

func (a *Archive) getWriteDB() (*sql.DB, error) {
	a.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", a.dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
		if err != nil {
			a.writeDBErr = err
			return
		}
		if err = initSchema(db); err != nil {
			_ = db.Close()
			a.writeDBErr = err
			return
		}
		a.writeDB = db
	})
	return a.writeDB, a.writeDBErr
}

func (a *Archive) getReadDB() (*sql.DB, error) {
	a.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", a.dbPath+"?mode=ro")
		if err != nil {
			a.readDBErr = err
			return
		}
		a.readDB = db
	})
	return a.readDB, a.readDBErr
}

// Close releases both connections. Safe to call more than once.
func (a *Archive) Close() error {
	a.closeOnce.Do(func() {
		if a.writeDB != nil {
			a.closeErr = a.writeDB.Close()
		}
		if a.readDB != nil {
			if err := a.readDB.Close(); err != nil && a.closeErr == nil {
				a.closeErr = err
			}
		}
	})
	return a.closeErr
}

// DatasetRecord is one archive listing row.
type DatasetRecord struct {
	ID             int64
	SourcePath     string
	Format         logdata.FormatKind
	SizeBytes      int64
	LoadedAt       time.Time
	Duration       float64
	SampleRate     float64
	SkippedRecords int
	ChannelCount   int
}

const insertDatasetSQL = `
INSERT INTO datasets (source_path, format, size_bytes, loaded_at, duration_s,
                      sample_rate_hz, skipped_records, synthetic_time, types_imported)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertChannelSQL = `
INSERT INTO channels (dataset_id, name, grp, unit, origin) VALUES (?, ?, ?, ?, ?)`

const insertSampleSQL = `
INSERT INTO samples (channel_id, seq, t, value) VALUES (?, ?, ?, ?)`

// SaveDataset writes the complete dataset, channels and samples included, in
// one transaction. Invalid sample values are stored as NULL.
func (a *Archive) SaveDataset(ctx context.Context, ds *logdata.LogDataset) (id int64, err error) {
	if ds == nil {
		return 0, errors.New("nil dataset")
	}
	db, err := a.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	meta := ds.Meta
	synthetic := 0
	if meta.SyntheticTime {
		synthetic = 1
	}
	res, err := tx.ExecContext(ctx, insertDatasetSQL,
		meta.SourcePath, string(meta.Format), meta.SizeBytes, meta.LoadedAt,
		meta.Duration, meta.SampleRate, meta.SkippedRecords, synthetic,
		strings.Join(meta.TypesImported, ","))
	if err != nil {
		return 0, fmt.Errorf("inserting dataset: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	chStmt, err := tx.PrepareContext(ctx, insertChannelSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing channel insert: %w", err)
	}
	defer chStmt.Close()
	smpStmt, err := tx.PrepareContext(ctx, insertSampleSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing sample insert: %w", err)
	}
	defer smpStmt.Close()

	for _, name := range ds.ChannelNames() {
		ch := ds.Channel(name)
		chRes, err := chStmt.ExecContext(ctx, id, ch.Name, ch.Group, ch.Unit, string(ch.Origin))
		if err != nil {
			return 0, fmt.Errorf("inserting channel %s: %w", ch.Name, err)
		}
		chID, err := chRes.LastInsertId()
		if err != nil {
			return 0, err
		}
		for seq, s := range ch.Samples {
			var value sql.NullFloat64
			if s.Valid() {
				value = sql.NullFloat64{Float64: s.Value, Valid: true}
			}
			if _, err := smpStmt.ExecContext(ctx, chID, seq, s.Time, value); err != nil {
				return 0, fmt.Errorf("inserting sample: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return id, nil
}

const listDatasetsSQL = `
SELECT d.id, d.source_path, d.format, d.size_bytes, d.loaded_at, d.duration_s,
       d.sample_rate_hz, d.skipped_records,
       (SELECT COUNT(*) FROM channels c WHERE c.dataset_id = d.id)
FROM datasets d
ORDER BY d.id`

// ListDatasets returns all archived datasets in insertion order.
func (a *Archive) ListDatasets(ctx context.Context) ([]DatasetRecord, error) {
	db, err := a.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	rows, err := db.QueryContext(ctx, listDatasetsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	defer rows.Close()

	var out []DatasetRecord
	for rows.Next() {
		var rec DatasetRecord
		var format string
		if err := rows.Scan(&rec.ID, &rec.SourcePath, &format, &rec.SizeBytes,
			&rec.LoadedAt, &rec.Duration, &rec.SampleRate, &rec.SkippedRecords,
			&rec.ChannelCount); err != nil {
			return nil, fmt.Errorf("scanning dataset row: %w", err)
		}
		rec.Format = logdata.FormatKind(format)
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectDatasetSQL = `
SELECT source_path, format, size_bytes, loaded_at, duration_s, sample_rate_hz,
       skipped_records, synthetic_time, types_imported
FROM datasets WHERE id = ?`

const selectChannelsSQL = `
SELECT id, name, grp, unit, origin FROM channels WHERE dataset_id = ? ORDER BY name`

const selectSamplesSQL = `
SELECT t, value FROM samples WHERE channel_id = ? ORDER BY seq`

// LoadDataset reconstructs an archived dataset. NULL sample values come back
// as NaN, preserving index alignment.
func (a *Archive) LoadDataset(ctx context.Context, id int64) (*logdata.LogDataset, error) {
	db, err := a.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var meta logdata.Metadata
	var format string
	var synthetic int
	var typesImported string
	err = db.QueryRowContext(ctx, selectDatasetSQL, id).Scan(
		&meta.SourcePath, &format, &meta.SizeBytes, &meta.LoadedAt,
		&meta.Duration, &meta.SampleRate, &meta.SkippedRecords,
		&synthetic, &typesImported)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading dataset %d: %w", id, err)
	}
	meta.Format = logdata.FormatKind(format)
	meta.SyntheticTime = synthetic != 0
	if typesImported != "" {
		meta.TypesImported = strings.Split(typesImported, ",")
	}

	rows, err := db.QueryContext(ctx, selectChannelsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("loading channels: %w", err)
	}
	defer rows.Close()

	type chRow struct {
		id int64
		ch *logdata.Channel
	}
	var chRows []chRow
	for rows.Next() {
		var r chRow
		var origin string
		r.ch = &logdata.Channel{}
		if err := rows.Scan(&r.id, &r.ch.Name, &r.ch.Group, &r.ch.Unit, &origin); err != nil {
			return nil, fmt.Errorf("scanning channel row: %w", err)
		}
		r.ch.Origin = logdata.Origin(origin)
		chRows = append(chRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	channels := make([]*logdata.Channel, 0, len(chRows))
	for _, r := range chRows {
		if err := a.loadSamples(ctx, db, r.id, r.ch); err != nil {
			return nil, err
		}
		channels = append(channels, r.ch)
	}
	return logdata.NewDataset(meta, channels), nil
}

func (a *Archive) loadSamples(ctx context.Context, db *sql.DB, chID int64, ch *logdata.Channel) error {
	rows, err := db.QueryContext(ctx, selectSamplesSQL, chID)
	if err != nil {
		return fmt.Errorf("loading samples for %s: %w", ch.Name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var t float64
		var value sql.NullFloat64
		if err := rows.Scan(&t, &value); err != nil {
			return fmt.Errorf("scanning sample row: %w", err)
		}
		v := math.NaN()
		if value.Valid {
			v = value.Float64
		}
		ch.Samples = append(ch.Samples, logdata.Sample{Time: t, Value: v})
	}
	return rows.Err()
}
