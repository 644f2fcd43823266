package tariff

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresTariffStore implements TariffStore backed by PostgreSQL.
// Conditions and the discount are stored as JSONB.
type PostgresTariffStore struct {
	db       *sql.DB
	tenantID string
}

// NewPostgresTariffStore creates a PostgreSQL-backed TariffStore for a specific tenant
func NewPostgresTariffStore(db *sql.DB, tenantID string) *PostgresTariffStore {
	return &PostgresTariffStore{
		db:       db,
		tenantID: tenantID,
	}
}

const tariffColumns = `id, title, description, patient_conditions, item_conditions, discount,
		start_date, end_date, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTariff(row rowScanner) (*Tariff, error) {
	var (
		t              Tariff
		patient, items []byte
		discount       []byte
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &patient, &items, &discount,
		&t.StartDate, &t.EndDate, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(patient, &t.PatientConditions); err != nil {
		return nil, fmt.Errorf("failed to decode patient conditions of %s: %w", t.ID, err)
	}
	if err := json.Unmarshal(items, &t.ItemConditions); err != nil {
		return nil, fmt.Errorf("failed to decode item conditions of %s: %w", t.ID, err)
	}
	if len(discount) > 0 {
		t.Discount = &Discount{}
		if err := json.Unmarshal(discount, t.Discount); err != nil {
			return nil, fmt.Errorf("failed to decode discount of %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

// encodeJSONB returns v as a JSON string; lib/pq would send a []byte as bytea
func encodeJSONB(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode tariff column: %w", err)
	}
	return string(data), nil
}

// encodeDiscount returns nil for a missing discount so the column stays NULL
func encodeDiscount(d *Discount) (any, error) {
	if d == nil {
		return nil, nil
	}
	return encodeJSONB(d)
}

// Add inserts a new tariff into the database
func (s *PostgresTariffStore) Add(t *Tariff) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM tariffs WHERE id = $1 AND tenant_id = $2)
	`, t.ID, s.tenantID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check tariff existence: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrTariffExists, t.ID)
	}

	patient, err := encodeJSONB(conditionsOrEmpty(t.PatientConditions))
	if err != nil {
		return err
	}
	items, err := encodeJSONB(conditionsOrEmpty(t.ItemConditions))
	if err != nil {
		return err
	}
	discount, err := encodeDiscount(t.Discount)
	if err != nil {
		return err
	}

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO tariffs (id, tenant_id, title, description, patient_conditions, item_conditions,
			discount, start_date, end_date, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, s.tenantID, t.Title, t.Description, patient, items,
		discount, t.StartDate, t.EndDate, t.Active, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tariff: %w", err)
	}

	return nil
}

// Get retrieves a tariff by ID
func (s *PostgresTariffStore) Get(id string) (*Tariff, error) {
	row := s.db.QueryRow(`
		SELECT `+tariffColumns+`
		FROM tariffs
		WHERE id = $1 AND tenant_id = $2
	`, id, s.tenantID)

	t, err := scanTariff(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTariffNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tariff: %w", err)
	}
	return t, nil
}

// ListActive returns all active tariffs for the tenant, oldest first
func (s *PostgresTariffStore) ListActive() ([]*Tariff, error) {
	rows, err := s.db.Query(`
		SELECT `+tariffColumns+`
		FROM tariffs
		WHERE tenant_id = $1 AND active = true
		ORDER BY created_at ASC
	`, s.tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tariffs: %w", err)
	}
	defer rows.Close()

	var tariffs []*Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tariff: %w", err)
		}
		tariffs = append(tariffs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tariffs: %w", err)
	}

	return tariffs, nil
}

// Update modifies an existing tariff
func (s *PostgresTariffStore) Update(t *Tariff) error {
	existing, err := s.Get(t.ID)
	if err != nil {
		return err
	}

	patient, err := encodeJSONB(conditionsOrEmpty(t.PatientConditions))
	if err != nil {
		return err
	}
	items, err := encodeJSONB(conditionsOrEmpty(t.ItemConditions))
	if err != nil {
		return err
	}
	discount, err := encodeDiscount(t.Discount)
	if err != nil {
		return err
	}

	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE tariffs
		SET title = $1, description = $2, patient_conditions = $3, item_conditions = $4,
			discount = $5, start_date = $6, end_date = $7, active = $8, updated_at = $9
		WHERE id = $10 AND tenant_id = $11
	`, t.Title, t.Description, patient, items, discount,
		t.StartDate, t.EndDate, t.Active, t.UpdatedAt, t.ID, s.tenantID)
	if err != nil {
		return fmt.Errorf("failed to update tariff: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrTariffNotFound, t.ID)
	}

	return nil
}

// Delete removes a tariff from the database
func (s *PostgresTariffStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM tariffs
		WHERE id = $1 AND tenant_id = $2
	`, id, s.tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tariff: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrTariffNotFound, id)
	}

	return nil
}

func conditionsOrEmpty(conds []Condition) []Condition {
	if conds == nil {
		return []Condition{}
	}
	return conds
}
