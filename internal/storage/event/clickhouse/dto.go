package clickhouse

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/leshachaplin/testgenie/internal/domain"
)

type row struct {
	ID              uint64    `ch:"id"`
	Event           string    `ch:"event"`
	Timestamp       string    `ch:"event_timestamp"`
	SessionID       string    `ch:"session_id"`
	Username        string    `ch:"username"`
	Hostname        string    `ch:"hostname"`
	UserEmail       string    `ch:"user_email"`
	Domain          string    `ch:"domain"`
	Version         string    `ch:"version"`
	RuntimeVersion  string    `ch:"runtime_version"`
	Platform        string    `ch:"platform"`
	Arch            string    `ch:"arch"`
	MachineID       string    `ch:"machine_id"`
	InstallLocation string    `ch:"install_location"`
	EventData       string    `ch:"event_data"`
	CreatedAt       time.Time `ch:"created_at"`
}

func rowFromRecord(rec *domain.Record) (row, error) {
	var data string
	if len(rec.Data) > 0 {
		b, err := json.Marshal(rec.Data)
		if err != nil {
			return row{}, fmt.Errorf("marshal event data: %w", err)
		}
		data = string(b)
	}

	return row{
		ID:              uint64(rec.ID),
		Event:           rec.Event,
		Timestamp:       rec.Timestamp,
		SessionID:       rec.SessionID,
		Username:        rec.Username,
		Hostname:        rec.Hostname,
		UserEmail:       rec.UserEmail,
		Domain:          rec.Domain,
		Version:         rec.Version,
		RuntimeVersion:  rec.RuntimeVersion,
		Platform:        rec.Platform,
		Arch:            rec.Arch,
		MachineID:       rec.MachineID,
		InstallLocation: rec.InstallLocation,
		EventData:       data,
		CreatedAt:       rec.CreatedAt.UTC(),
	}, nil
}

func (r row) record() (domain.Record, error) {
	rec := domain.Record{
		ID:              int64(r.ID),
		Event:           r.Event,
		Timestamp:       r.Timestamp,
		SessionID:       r.SessionID,
		Username:        r.Username,
		Hostname:        r.Hostname,
		UserEmail:       r.UserEmail,
		Domain:          r.Domain,
		Version:         r.Version,
		RuntimeVersion:  r.RuntimeVersion,
		Platform:        r.Platform,
		Arch:            r.Arch,
		MachineID:       r.MachineID,
		InstallLocation: r.InstallLocation,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if r.EventData != "" {
		if err := json.Unmarshal([]byte(r.EventData), &rec.Data); err != nil {
			return domain.Record{}, fmt.Errorf("unmarshal event data: %w", err)
		}
	}
	return rec, nil
}
