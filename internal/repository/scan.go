package repository

import (
	"time"

	"github.com/cockroachdb/errors"
)

// timeFormats are the layouts SQLite drivers use when a timestamp comes back as text.
var timeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// timeScanner reads a timestamp column that the driver may return either
// as time.Time or as text. NULL leaves the zero time.
type timeScanner struct {
	t *time.Time
}

func (s timeScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.t = time.Time{}
		return nil
	case time.Time:
		*s.t = v
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	}
	return errors.Errorf("unsupported timestamp type %T", src)
}

func (s timeScanner) parse(v string) error {
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, v); err == nil {
			*s.t = t
			return nil
		}
	}
	return errors.Errorf("invalid timestamp %q", v)
}
