package sqlite

import (
	"database/sql"
	"strings"
	"time"

	"github.com/fxlatam/indago/internal/storage"
)

// Nullable times are stored as unix seconds (UTC); strings and ints map
// to their SQL NULL counterparts.

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Unix()
}

func scanTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func scanString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func scanInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullInt64(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func scanInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func scanFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// mapConstraintError converts driver unique-constraint failures into the
// shared sentinel so callers never parse driver strings
func mapConstraintError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return storage.ErrUniqueConstraint
	}
	return err
}
