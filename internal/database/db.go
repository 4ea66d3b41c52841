package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jgoulah/mindergas/pkg/models"
)

var (
	// ErrNotFound is returned when an installation does not exist
	ErrNotFound = errors.New("installation not found")
	// ErrDuplicateAPIKey is returned when the API key is already configured
	ErrDuplicateAPIKey = errors.New("API key already configured")
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// The daemon's scheduler, HTTP handlers and MQTT callbacks share one handle.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS installations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		api_key TEXT NOT NULL,
		post_meter_reading INTEGER NOT NULL DEFAULT 0,
		post_meter_entity_id TEXT NOT NULL DEFAULT '',
		randomize_post_time INTEGER NOT NULL DEFAULT 0,
		post_time TEXT NOT NULL DEFAULT '',
		update_stats INTEGER NOT NULL DEFAULT 1,
		update_time TEXT NOT NULL DEFAULT '',
		update_jitter_minutes INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(api_key)
	);
	CREATE TABLE IF NOT EXISTS meter_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		installation_id TEXT NOT NULL,
		date TEXT NOT NULL,
		reading REAL NOT NULL,
		success INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_readings_installation ON meter_readings(installation_id);
	CREATE INDEX IF NOT EXISTS idx_readings_date ON meter_readings(date);
	`

	_, err := db.conn.Exec(schema)
	return err
}

const installationColumns = `id, name, api_key, post_meter_reading, post_meter_entity_id, randomize_post_time,
	post_time, update_stats, update_time, update_jitter_minutes, created_at, updated_at`

// InsertInstallation stores a new installation. The API key must be unique.
func (db *DB) InsertInstallation(inst *models.Installation) error {
	query := `
	INSERT INTO installations (` + installationColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if inst.ID == uuid.Nil {
		inst.ID = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Second)
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = now
	}
	inst.UpdatedAt = now

	_, err := db.conn.Exec(query,
		inst.ID.String(), inst.Name, inst.APIKey,
		inst.PostMeterReading, inst.PostMeterEntityID, inst.RandomizePostTime, inst.PostTime,
		inst.UpdateStats, inst.UpdateTime, inst.UpdateJitter,
		inst.CreatedAt.Format(timestampLayout), inst.UpdatedAt.Format(timestampLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAPIKey
		}
		return fmt.Errorf("inserting installation: %w", err)
	}

	return nil
}

// UpdateInstallation replaces the options of an existing installation
func (db *DB) UpdateInstallation(inst *models.Installation) error {
	query := `
	UPDATE installations SET name = ?, api_key = ?, post_meter_reading = ?, post_meter_entity_id = ?,
		randomize_post_time = ?, post_time = ?, update_stats = ?, update_time = ?,
		update_jitter_minutes = ?, updated_at = ?
	WHERE id = ?
	`

	inst.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := db.conn.Exec(query,
		inst.Name, inst.APIKey, inst.PostMeterReading, inst.PostMeterEntityID,
		inst.RandomizePostTime, inst.PostTime, inst.UpdateStats, inst.UpdateTime,
		inst.UpdateJitter, inst.UpdatedAt.Format(timestampLayout),
		inst.ID.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAPIKey
		}
		return fmt.Errorf("updating installation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating installation: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteInstallation removes an installation and its reading log
func (db *DB) DeleteInstallation(id uuid.UUID) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM installations WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting installation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(`DELETE FROM meter_readings WHERE installation_id = ?`, id.String()); err != nil {
		return fmt.Errorf("deleting meter readings: %w", err)
	}

	return tx.Commit()
}

// GetInstallation retrieves an installation by ID
func (db *DB) GetInstallation(id uuid.UUID) (*models.Installation, error) {
	row := db.conn.QueryRow(`SELECT `+installationColumns+` FROM installations WHERE id = ?`, id.String())
	inst, err := scanInstallation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying installation: %w", err)
	}
	return inst, nil
}

// FindInstallationByAPIKey returns the installation using apiKey, or nil if
// there is none. The comparison is case-sensitive.
func (db *DB) FindInstallationByAPIKey(apiKey string) (*models.Installation, error) {
	row := db.conn.QueryRow(`SELECT `+installationColumns+` FROM installations WHERE api_key = ?`, apiKey)
	inst, err := scanInstallation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying installation: %w", err)
	}
	return inst, nil
}

// ListInstallations retrieves all installations ordered by creation time
func (db *DB) ListInstallations() ([]models.Installation, error) {
	rows, err := db.conn.Query(`SELECT ` + installationColumns + ` FROM installations ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying installations: %w", err)
	}
	defer rows.Close()

	var results []models.Installation
	for rows.Next() {
		inst, err := scanInstallation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, *inst)
	}

	return results, rows.Err()
}

// InsertReading logs a meter reading submission attempt
func (db *DB) InsertReading(r *models.MeterReading) error {
	query := `
	INSERT INTO meter_readings (installation_id, date, reading, success, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	res, err := db.conn.Exec(query,
		r.InstallationID.String(), r.Date.Format(dateLayout), r.Reading, r.Success, r.Error,
		r.CreatedAt.Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting meter reading: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		r.ID = int(id)
	}
	return nil
}

// ListReadings retrieves the most recent submission attempts for an
// installation, newest first. A limit of 0 returns everything.
func (db *DB) ListReadings(installationID uuid.UUID, limit int) ([]models.MeterReading, error) {
	query := `
	SELECT id, installation_id, date, reading, success, error, created_at
	FROM meter_readings
	WHERE installation_id = ?
	ORDER BY created_at DESC, id DESC
	`
	args := []interface{}{installationID.String()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying meter readings: %w", err)
	}
	defer rows.Close()

	var results []models.MeterReading
	for rows.Next() {
		var r models.MeterReading
		var idStr, dateStr, createdStr string

		if err := rows.Scan(&r.ID, &idStr, &dateStr, &r.Reading, &r.Success, &r.Error, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		r.InstallationID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parsing installation id: %w", err)
		}
		r.Date, err = time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parsing date: %w", err)
		}
		r.CreatedAt, err = time.Parse(timestampLayout, createdStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		results = append(results, r)
	}

	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInstallation(s scanner) (*models.Installation, error) {
	var inst models.Installation
	var idStr, createdStr, updatedStr string

	err := s.Scan(&idStr, &inst.Name, &inst.APIKey, &inst.PostMeterReading, &inst.PostMeterEntityID,
		&inst.RandomizePostTime, &inst.PostTime, &inst.UpdateStats, &inst.UpdateTime, &inst.UpdateJitter,
		&createdStr, &updatedStr)
	if err != nil {
		return nil, err
	}

	inst.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parsing id: %w", err)
	}
	inst.CreatedAt, err = time.Parse(timestampLayout, createdStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	inst.UpdatedAt, err = time.Parse(timestampLayout, updatedStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &inst, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
