package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/cheew/terratherm/internal/models"
)

type OutputSQLite struct {
	db *sql.DB
}

func NewOutputSQLite(db *sql.DB) *OutputSQLite {
	return &OutputSQLite{db: db}
}

var _ OutputConfigRepo = (*OutputSQLite)(nil)

const (
	upsertOutputSQL = `
		INSERT INTO output_config (idx, enabled, name, hardware, device, sensor_addr, mode,
			target_c, manual_power, kp, ki, kd, max_temp_c, min_temp_c,
			fault_timeout_s, fault_mode, cap_power_pct, auto_resume, slots, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(idx) DO UPDATE SET
			enabled=excluded.enabled,
			name=excluded.name,
			hardware=excluded.hardware,
			device=excluded.device,
			sensor_addr=excluded.sensor_addr,
			mode=excluded.mode,
			target_c=excluded.target_c,
			manual_power=excluded.manual_power,
			kp=excluded.kp,
			ki=excluded.ki,
			kd=excluded.kd,
			max_temp_c=excluded.max_temp_c,
			min_temp_c=excluded.min_temp_c,
			fault_timeout_s=excluded.fault_timeout_s,
			fault_mode=excluded.fault_mode,
			cap_power_pct=excluded.cap_power_pct,
			auto_resume=excluded.auto_resume,
			slots=excluded.slots,
			updated_at=excluded.updated_at
	`

	selectOutputSQL = `
		SELECT idx, enabled, name, hardware, device, sensor_addr, mode,
			target_c, manual_power, kp, ki, kd, max_temp_c, min_temp_c,
			fault_timeout_s, fault_mode, cap_power_pct, auto_resume, slots
		FROM output_config WHERE idx=?
	`

	selectAllOutputsSQL = `
		SELECT idx, enabled, name, hardware, device, sensor_addr, mode,
			target_c, manual_power, kp, ki, kd, max_temp_c, min_temp_c,
			fault_timeout_s, fault_mode, cap_power_pct, auto_resume, slots
		FROM output_config ORDER BY idx
	`
)

// marshalSlots converts the slot table to a JSON string column.
func marshalSlots(slots [models.MaxScheduleSlots]models.ScheduleSlot) (string, error) {
	b, err := json.Marshal(slots[:])
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalSlots parses the JSON column back into the fixed table.
func unmarshalSlots(s string) ([models.MaxScheduleSlots]models.ScheduleSlot, error) {
	var table [models.MaxScheduleSlots]models.ScheduleSlot
	if s == "" {
		return table, nil
	}
	var slots []models.ScheduleSlot
	if err := json.Unmarshal([]byte(s), &slots); err != nil {
		return table, err
	}
	copy(table[:], slots)
	return table, nil
}

// Save upserts one output's configuration row.
func (r *OutputSQLite) Save(ctx context.Context, o models.Output) error {
	slotsJSON, err := marshalSlots(o.Slots)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, upsertOutputSQL,
		o.Index,
		o.Enabled,
		o.Name,
		string(o.Hardware),
		string(o.Device),
		o.SensorAddress,
		string(o.Mode),
		o.TargetC,
		o.ManualPower,
		o.Gains.Kp,
		o.Gains.Ki,
		o.Gains.Kd,
		o.Limits.MaxTempC,
		o.Limits.MinTempC,
		o.Limits.FaultTimeoutSec,
		string(o.Limits.FaultMode),
		o.Limits.CapPowerPct,
		o.Limits.AutoResume,
		slotsJSON,
		time.Now().UTC(),
	)
	return err
}

func scanOutput(scan func(dest ...any) error) (models.Output, error) {
	var o models.Output
	var hardware, device, mode, faultMode, slotsJSON string
	if err := scan(
		&o.Index,
		&o.Enabled,
		&o.Name,
		&hardware,
		&device,
		&o.SensorAddress,
		&mode,
		&o.TargetC,
		&o.ManualPower,
		&o.Gains.Kp,
		&o.Gains.Ki,
		&o.Gains.Kd,
		&o.Limits.MaxTempC,
		&o.Limits.MinTempC,
		&o.Limits.FaultTimeoutSec,
		&faultMode,
		&o.Limits.CapPowerPct,
		&o.Limits.AutoResume,
		&slotsJSON,
	); err != nil {
		return models.Output{}, err
	}
	o.Hardware = models.HardwareType(hardware)
	o.Device = models.DeviceType(device)
	o.Mode = models.ControlMode(mode)
	o.Limits.FaultMode = models.FaultMode(faultMode)
	slots, err := unmarshalSlots(slotsJSON)
	if err != nil {
		return models.Output{}, err
	}
	o.Slots = slots
	return o, nil
}

// Load fetches a single output row. A missing row reports sql.ErrNoRows.
func (r *OutputSQLite) Load(ctx context.Context, index int) (models.Output, error) {
	row := r.db.QueryRowContext(ctx, selectOutputSQL, index)
	return scanOutput(row.Scan)
}

// LoadAll fetches every persisted output row ordered by index.
func (r *OutputSQLite) LoadAll(ctx context.Context) ([]models.Output, error) {
	rows, err := r.db.QueryContext(ctx, selectAllOutputsSQL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Output
	for rows.Next() {
		o, err := scanOutput(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
