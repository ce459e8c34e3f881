package sqlstore

import (
	"fmt"
	"time"
)

// timeValue scans created_at whichever way the driver hands it back:
// time.Time (postgres) or unix milliseconds (sqlite).
type timeValue struct {
	Time time.Time
}

func (t *timeValue) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v.UTC()
	case int64:
		t.Time = time.UnixMilli(v).UTC()
	case float64:
		t.Time = time.UnixMilli(int64(v)).UTC()
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("unsupported created_at type %T", src)
	}
	return nil
}

func (t *timeValue) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse created_at %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}
