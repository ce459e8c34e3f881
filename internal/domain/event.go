package domain

import (
	"fmt"
	"time"
)

const Unknown = "unknown"

// Well-known actions emitted by the installer.
const (
	ActionInstallStart   = "install_start"
	ActionInstallSuccess = "install_success"
	ActionInstallError   = "install_error"
	ActionCommand        = "command"
	ActionNpxUsage       = "npx_usage"
)

// Keys of Event.Data that the collector flattens into columns.
const (
	DataVersion         = "version"
	DataRuntimeVersion  = "runtimeVersion"
	DataNodeVersion     = "nodeVersion"
	DataPlatform        = "platform"
	DataArch            = "arch"
	DataMachineID       = "machineId"
	DataInstallLocation = "installLocation"
	DataInstallMethod   = "installMethod"
)

type UserInfo struct {
	Username  string `json:"username,omitempty"`
	Hostname  string `json:"hostname,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
	Domain    string `json:"domain,omitempty"`
}

// Event is one telemetry record describing a single CLI action.
type Event struct {
	Action    string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	SessionID string         `json:"sessionId"`
	UserInfo  *UserInfo      `json:"userInfo,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	EventID   string         `json:"eventId,omitempty"`
}

func (e Event) DataString(key string) string {
	v, ok := e.Data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (e Event) user() UserInfo {
	if e.UserInfo == nil {
		return UserInfo{}
	}
	return *e.UserInfo
}

// Flat renders the event the way dispatch webhooks expect it: one object keyed by action.
func (e Event) Flat() map[string]any {
	out := make(map[string]any, len(e.Data)+8)
	for k, v := range e.Data {
		out[k] = v
	}
	u := e.user()
	out["action"] = e.Action
	out["timestamp"] = e.Timestamp
	out["sessionId"] = e.SessionID
	out["eventId"] = e.EventID
	out["username"] = u.Username
	out["hostname"] = u.Hostname
	out["userEmail"] = u.UserEmail
	out["domain"] = u.Domain
	return out
}

// EventFromFlat is the inverse of Event.Flat. Unknown keys stay in Data.
func EventFromFlat(payload map[string]any) Event {
	take := func(key string) string {
		v, ok := payload[key]
		if !ok {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	e := Event{
		Action:    take("action"),
		Timestamp: take("timestamp"),
		SessionID: take("sessionId"),
		EventID:   take("eventId"),
		Data:      make(map[string]any, len(payload)),
	}
	u := UserInfo{
		Username:  take("username"),
		Hostname:  take("hostname"),
		UserEmail: take("userEmail"),
		Domain:    take("domain"),
	}
	if u != (UserInfo{}) {
		e.UserInfo = &u
	}

	for k, v := range payload {
		switch k {
		case "action", "timestamp", "sessionId", "eventId", "username", "hostname", "userEmail", "domain":
			continue
		}
		e.Data[k] = v
	}
	return e
}

// Record is an Event persisted by the collector.
type Record struct {
	ID              int64          `json:"id"`
	Event           string         `json:"event"`
	Timestamp       string         `json:"timestamp"`
	SessionID       string         `json:"sessionId"`
	Username        string         `json:"username,omitempty"`
	Hostname        string         `json:"hostname,omitempty"`
	UserEmail       string         `json:"userEmail,omitempty"`
	Domain          string         `json:"domain,omitempty"`
	Version         string         `json:"version,omitempty"`
	RuntimeVersion  string         `json:"runtimeVersion,omitempty"`
	Platform        string         `json:"platform,omitempty"`
	Arch            string         `json:"arch,omitempty"`
	MachineID       string         `json:"machineId,omitempty"`
	InstallLocation string         `json:"installLocation,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// NewRecord flattens e into the collector's row shape. ID is assigned by the store.
func NewRecord(e Event, receivedAt time.Time) *Record {
	u := e.user()
	runtimeVersion := e.DataString(DataRuntimeVersion)
	if runtimeVersion == "" {
		runtimeVersion = e.DataString(DataNodeVersion)
	}
	return &Record{
		Event:           e.Action,
		Timestamp:       e.Timestamp,
		SessionID:       e.SessionID,
		Username:        u.Username,
		Hostname:        u.Hostname,
		UserEmail:       u.UserEmail,
		Domain:          u.Domain,
		Version:         e.DataString(DataVersion),
		RuntimeVersion:  runtimeVersion,
		Platform:        e.DataString(DataPlatform),
		Arch:            e.DataString(DataArch),
		MachineID:       e.DataString(DataMachineID),
		InstallLocation: e.DataString(DataInstallLocation),
		Data:            e.Data,
		CreatedAt:       receivedAt.UTC(),
	}
}

// LiveEvent is pushed to dashboard listeners after each ingestion.
type LiveEvent struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Username  string `json:"username"`
	Hostname  string `json:"hostname"`
	UserEmail string `json:"userEmail"`
}

func (r *Record) Live() LiveEvent {
	return LiveEvent{
		Event:     r.Event,
		Timestamp: r.Timestamp,
		Username:  r.Username,
		Hostname:  r.Hostname,
		UserEmail: r.UserEmail,
	}
}
