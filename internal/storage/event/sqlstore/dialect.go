// Package sqlstore implements the event storage over database/sql. The SQL backends
// (postgres, sqlite) differ only in the Dialect they plug in.
package sqlstore

import (
	"strconv"
	"strings"
	"time"
)

type Dialect struct {
	// Name is reported as the stats data source.
	Name string
	// Schema is executed statement by statement; every statement must be idempotent.
	Schema []string
	// Day renders the created_at column as a YYYY-MM-DD string in UTC.
	Day string
	// Numbered placeholders ($1, $2, ...) instead of '?'.
	Numbered bool
	// TimeValue converts a time.Time into the created_at column representation.
	TimeValue func(time.Time) any
	// IsMissingTable reports whether err means the events table does not exist yet.
	IsMissingTable func(error) bool
}

func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c != '?' {
			b.WriteRune(c)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

func (d Dialect) timeValue(t time.Time) any {
	if d.TimeValue == nil {
		return t.UTC()
	}
	return d.TimeValue(t.UTC())
}
