// Package hosts checks extraction host availability and capacity via SSH.
package hosts

// HostsConfig represents the top-level hosts.yml structure.
type HostsConfig struct {
	Hosts []HostEntry `yaml:"hosts"`
	SSH   SSHConfig   `yaml:"ssh"`
}

// HostEntry is a single entry in hosts.yml (either name or pattern).
// CorpusPath, when set, is a directory the host must have mounted to be
// usable for extraction.
type HostEntry struct {
	Name       string `yaml:"name,omitempty"`
	Pattern    string `yaml:"pattern,omitempty"`
	CorpusPath string `yaml:"corpus_path,omitempty"`
}

// SSHConfig holds SSH connection parameters.
type SSHConfig struct {
	ConnectTimeout int `yaml:"connect_timeout,omitempty"` // seconds, default 10
}

// Host is an expanded, resolved host ready to check.
type Host struct {
	Name       string
	CorpusPath string
}

// Report is the top-level JSON output.
type Report struct {
	Hosts []HostStatus `json:"hosts"`
}

// HostStatus is one host's check result.
type HostStatus struct {
	Name    string       `json:"name"`
	Status  string       `json:"status"` // "online" or "offline"
	Error   string       `json:"error,omitempty"`
	Metrics *HostMetrics `json:"metrics,omitempty"`
}

// HostMetrics holds parsed capacity values. FreeCores is an estimate of
// how many extraction workers the host can take on: total cores minus the
// one-minute load average, floored at zero.
type HostMetrics struct {
	Cores         int     `json:"cores"`
	FreeCores     int     `json:"free_cores"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	LoadAvg1      float64 `json:"load_avg_1min"`
	LoadAvg5      float64 `json:"load_avg_5min"`
	LoadAvg15     float64 `json:"load_avg_15min"`
	CorpusMounted *bool   `json:"corpus_mounted,omitempty"`
}
