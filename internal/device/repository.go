package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Repository defines the interface for device persistence operations.
// The gateway itself only needs Source; the rest serves device management.
type Repository interface {
	Source

	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices ordered by id.
	List(ctx context.Context) ([]Device, error)

	// Create inserts a new device with its control values.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, device *Device) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
// Schema: migrations/20260301_120000_rf24_devices.up.sql.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with migrations applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectDevices = `
	SELECT id, name, topic, participates, controllable, processor
	FROM rf24_devices`

// Devices implements Source. It returns every device, participating or not,
// and leaves filtering to the topic registry like the file source does.
func (r *SQLiteRepository) Devices(ctx context.Context) ([]Device, error) {
	devices, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := ValidateList(devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectDevices+` WHERE id = ?`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}

	values, err := r.controlValues(ctx, `WHERE device_id = ?`, id)
	if err != nil {
		return nil, err
	}
	attachControlValues(d, values[id])
	return d, nil
}

// List retrieves all devices ordered by id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDevices+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	values, err := r.controlValues(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range devices {
		attachControlValues(&devices[i], values[devices[i].ID])
	}
	return devices, nil
}

// Create inserts a new device with its control values in one transaction.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidDevice)
	}
	if d.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if err := ValidateDevice(*d); err != nil {
		return err
	}

	var processorJSON sql.NullString
	if d.Transform != nil {
		data, err := json.Marshal(d.Transform)
		if err != nil {
			return fmt.Errorf("marshalling processor: %w", err)
		}
		processorJSON = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rf24_devices (id, name, topic, participates, controllable, processor)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Topic,
		boolToInt(d.Participates()), boolToInt(d.Controllable()),
		processorJSON,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	if d.RF24MQTT != nil {
		for value, command := range d.RF24MQTT.ControlValues {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO rf24_control_values (device_id, value, command) VALUES (?, ?, ?)`,
				d.ID, value, command,
			); err != nil {
				return fmt.Errorf("inserting control value %q: %w", value, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing device: %w", err)
	}
	return nil
}

// Delete removes a device by ID. Control values go with it (ON DELETE CASCADE).
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rf24_devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// controlValues loads control values grouped by device id.
func (r *SQLiteRepository) controlValues(ctx context.Context, where string, args ...any) (map[string]map[string]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT device_id, value, command FROM rf24_control_values `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying control values: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]string)
	for rows.Next() {
		var id, value, command string
		if err := rows.Scan(&id, &value, &command); err != nil {
			return nil, fmt.Errorf("scanning control value: %w", err)
		}
		if out[id] == nil {
			out[id] = make(map[string]string)
		}
		out[id][value] = command
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating control values: %w", err)
	}
	return out, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var participates, controllable int
	var processorJSON sql.NullString

	if err := scanner.Scan(&d.ID, &d.Name, &d.Topic, &participates, &controllable, &processorJSON); err != nil {
		return nil, err
	}

	if participates != 0 {
		d.RF24MQTT = &Descriptor{Controllable: controllable != 0}
	}
	if processorJSON.Valid && processorJSON.String != "" {
		var t Transform
		if err := json.Unmarshal([]byte(processorJSON.String), &t); err != nil {
			return nil, fmt.Errorf("unmarshalling processor for %s: %w", d.ID, err)
		}
		d.Transform = &t
	}
	return &d, nil
}

func attachControlValues(d *Device, values map[string]string) {
	if d.RF24MQTT == nil || len(values) == 0 {
		return
	}
	d.RF24MQTT.ControlValues = values
}

// SortByID orders devices by id in place.
func SortByID(devices []Device) {
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
