package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// Helper functions for null handling in PostgreSQL queries

// nullString converts a string to sql.NullString.
// Empty strings are treated as NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTime converts a *time.Time to sql.NullTime.
// nil is treated as NULL.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullTimeValue extracts a *time.Time from sql.NullTime.
// Returns nil if NULL.
func nullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// nullInt64 converts a *int64 to sql.NullInt64.
func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// nullInt64Value extracts a *int64 from sql.NullInt64.
func nullInt64Value(nv sql.NullInt64) *int64 {
	if nv.Valid {
		return &nv.Int64
	}
	return nil
}

// nullIntValue extracts a *int from sql.NullInt64.
func nullIntValue(nv sql.NullInt64) *int {
	if nv.Valid {
		v := int(nv.Int64)
		return &v
	}
	return nil
}

// nullInt converts a *int to sql.NullInt64.
func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// parseNullID parses a sql.NullString into *shared.ID.
// Returns nil if NULL or if parsing fails.
func parseNullID(ns sql.NullString) *shared.ID {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	id, err := shared.IDFromString(ns.String)
	if err != nil {
		return nil
	}
	return &id
}

// nullID converts a *shared.ID to sql.NullString.
func nullID(id *shared.ID) sql.NullString {
	if id == nil || id.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// toJSONB marshals a value to JSON bytes for JSONB columns. A nil map
// is stored as an empty object so reads never see NULL.
func toJSONB(v map[string]any) ([]byte, error) {
	if v == nil {
		v = map[string]any{}
	}
	return json.Marshal(v)
}

// fromJSONB unmarshals JSONB column bytes into a map.
func fromJSONB(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
