package domain

import "time"

const (
	SourceDemo   = "demo"
	SourceMemory = "memory"
)

// Summary holds the whole-store counters.
type Summary struct {
	TotalEvents int64
	TodayEvents int64
	UniqueUsers int64
	Platforms   []string
}

// PageQuery is a limit/offset window over records ordered newest first.
type PageQuery struct {
	Events []string
	Limit  int
	Offset int
}

type EventCount struct {
	Event string `json:"event"`
	Count int64  `json:"count"`
}

type DailyCount struct {
	Date          string `json:"date"`
	Installations int64  `json:"installations"`
}

type UserRollup struct {
	Username           string    `json:"username"`
	UserEmail          string    `json:"userEmail"`
	Hostname           string    `json:"hostname"`
	LastSeen           time.Time `json:"lastSeen"`
	TotalEvents        int64     `json:"totalEvents"`
	SuccessfulInstalls int64     `json:"successfulInstalls"`
}

// EventView is the display projection of a Record.
type EventView struct {
	Event           string         `json:"event"`
	Username        string         `json:"username"`
	Timestamp       string         `json:"timestamp"`
	Platform        string         `json:"platform"`
	Hostname        string         `json:"hostname,omitempty"`
	UserEmail       string         `json:"userEmail,omitempty"`
	Domain          string         `json:"domain,omitempty"`
	Version         string         `json:"version,omitempty"`
	RuntimeVersion  string         `json:"runtimeVersion,omitempty"`
	Arch            string         `json:"arch,omitempty"`
	InstallLocation string         `json:"installLocation,omitempty"`
	SessionID       string         `json:"sessionId,omitempty"`
	EventData       map[string]any `json:"eventData,omitempty"`
	CreatedAt       *time.Time     `json:"createdAt,omitempty"`
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func (r *Record) View() EventView {
	created := r.CreatedAt
	data := r.Data
	if data == nil {
		data = map[string]any{}
	}
	return EventView{
		Event:           r.Event,
		Username:        orUnknown(r.Username),
		Timestamp:       r.Timestamp,
		Platform:        orUnknown(r.Platform),
		Hostname:        orUnknown(r.Hostname),
		UserEmail:       orUnknown(r.UserEmail),
		Domain:          orUnknown(r.Domain),
		Version:         orUnknown(r.Version),
		RuntimeVersion:  orUnknown(r.RuntimeVersion),
		Arch:            orUnknown(r.Arch),
		InstallLocation: orUnknown(r.InstallLocation),
		SessionID:       orUnknown(r.SessionID),
		EventData:       data,
		CreatedAt:       &created,
	}
}

type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

// Stats is the dashboard payload served by GET /api/stats.
type Stats struct {
	TotalInstalls  int64        `json:"totalInstalls"`
	UniqueUsers    int64        `json:"uniqueUsers"`
	SuccessRate    int64        `json:"successRate"`
	RecentActivity []EventCount `json:"recentActivity"`
	TotalEvents    int64        `json:"totalEvents"`
	TodayEvents    int64        `json:"todayEvents"`
	Platforms      []string     `json:"platforms"`
	RecentEvents   []EventView  `json:"recentEvents"`
	Pagination     Pagination   `json:"pagination"`
	LastUpdated    time.Time    `json:"lastUpdated"`
	IsLive         bool         `json:"isLive"`
	DataSource     string       `json:"dataSource"`
	Message        string       `json:"message,omitempty"`
}

// SuccessRate returns success*100/(success+failure) rounded to the nearest integer.
func SuccessRate(success, failure int64) int64 {
	total := success + failure
	if total == 0 {
		return 0
	}
	return (success*200 + total) / (2 * total)
}
