package domain

import "time"

type HostID string

// HostOrigin distinguishes the built-in host list from user additions.
type HostOrigin string

const (
	OriginDefault HostOrigin = "default"
	OriginUser    HostOrigin = "user"
)

// Host is one monitored entry in the registry. Position is its place in
// the display order; pinned hosts always come before unpinned ones.
type Host struct {
	ID       HostID     `json:"id"`
	Label    string     `json:"label"`
	Address  string     `json:"address"`
	Origin   HostOrigin `json:"origin"`
	Position int        `json:"position"`
	Pinned   bool       `json:"pinned"`
	Paused   bool       `json:"paused"`
}

// ErrorKind classifies a probe outcome.
type ErrorKind string

const (
	ErrNone             ErrorKind = ""
	ErrPermissionDenied ErrorKind = "permission_denied"
	ErrNoResponse       ErrorKind = "no_response"
	ErrTransport        ErrorKind = "transport_error"
)

// ProbeResult is the outcome of a single echo attempt. RTTMs is nil for
// any non-numeric outcome.
type ProbeResult struct {
	Alive   bool      `json:"alive"`
	RTTMs   *float64  `json:"rtt_ms"`
	Kind    ErrorKind `json:"error_kind,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Sample is one history slot: the tick time plus the latency observed,
// nil when the tick produced no number.
type Sample struct {
	At    time.Time `json:"at"`
	RTTMs *float64  `json:"rtt_ms"`
}

type LogCategory string

const (
	LogPingAlert LogCategory = "ping-alert"
	LogDNS       LogCategory = "dns"
	LogSpeed     LogCategory = "speed"
)

type LogEntry struct {
	ID       string      `json:"id"`
	Time     time.Time   `json:"time"`
	Category LogCategory `json:"type"`
	Title    string      `json:"title"`
	Detail   string      `json:"detail"`
}

// ServerResult is the outcome of one resolution attempt against one DNS
// server.
type ServerResult struct {
	Server    string   `json:"server"`
	Usable    bool     `json:"usable"`
	LatencyMs *float64 `json:"latency_ms"`
	Err       string   `json:"error,omitempty"`
}

// BenchmarkStat is the per-server aggregate over a benchmark run.
// AvgLatencyMs is nil when the server never succeeded; such servers sort
// after every server with at least one success.
type BenchmarkStat struct {
	Server       string   `json:"server"`
	AvgLatencyMs *float64 `json:"avg_latency_ms"`
	SuccessRate  int      `json:"success_rate_percent"`
}

// Adapter is a network interface together with its currently configured
// DNS servers.
type Adapter struct {
	Name string   `json:"name"`
	DNS  []string `json:"dns"`
}

type SpeedResult struct {
	DownloadMbps float64 `json:"downloadMbps"`
	UploadMbps   float64 `json:"uploadMbps"`
	LatencyMs    float64 `json:"latencyMs"`
	JitterMs     float64 `json:"jitterMs"`
	IP           string  `json:"ip"`
	Country      string  `json:"country"`
	Err          string  `json:"error,omitempty"`
}

type UpdateResult struct {
	CurrentVersion  string `json:"currentVersion"`
	LatestVersion   string `json:"latestVersion"`
	UpdateAvailable bool   `json:"updateAvailable"`
	IsPrerelease    bool   `json:"isPrerelease"`
	URL             string `json:"url"`
	Err             string `json:"error,omitempty"`
}
