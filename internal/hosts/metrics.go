package hosts

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// delimiter separates command outputs in a single SSH session.
const delimiter = "___SMX_DELIM___"

// maxConcurrent is the bounded semaphore size for parallel host checks.
const maxConcurrent = 5

// Section indices for ParseMetrics output splitting.
// These must match the command order in BuildCommand.
const (
	sectionCores   = 0
	sectionCPU     = 1
	sectionMemory  = 2
	sectionLoadAvg = 3
	sectionCorpus  = 4
)

// BuildCommand constructs the combined command string for a host.
// All metric commands are joined with delimiters for single-session execution.
func BuildCommand(host Host) string {
	cmds := []string{
		// Core count
		`nproc`,
		// CPU usage
		`top -bn1 | grep -i "cpu(s)" | awk '{print $2}' | cut -d'%' -f1`,
		// Memory usage
		`free -m | awk '/^Mem:/ {printf "%.1f", ($3/$2) * 100}'`,
		// Load average
		`uptime | awk -F'load average:' '{print $2}' | sed 's/^[[:space:]]*//'`,
	}

	if host.CorpusPath != "" {
		cmds = append(cmds, fmt.Sprintf(`[ -d %q ] && echo present || echo absent`, host.CorpusPath))
	}

	parts := make([]string, 0, len(cmds)*2-1)
	for i, cmd := range cmds {
		if i > 0 {
			parts = append(parts, fmt.Sprintf("echo '%s'", delimiter))
		}
		parts = append(parts, cmd)
	}
	return strings.Join(parts, " ; ")
}

// parseFloatMetric parses a float value with a descriptive error message.
func parseFloatMetric(value, metricName string) (float64, error) {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w (raw: %q)", metricName, err, value)
	}
	return result, nil
}

// ParseMetrics parses the combined output of all metric commands for a host.
func ParseMetrics(output string, hasCorpusCheck bool) (*HostMetrics, error) {
	sections := strings.Split(output, delimiter)
	for i := range sections {
		sections[i] = strings.TrimSpace(sections[i])
	}

	expectedSections := 4
	if hasCorpusCheck {
		expectedSections = 5
	}
	if len(sections) < expectedSections {
		return nil, fmt.Errorf("expected %d metric sections, got %d", expectedSections, len(sections))
	}

	metrics := &HostMetrics{}

	cores, err := strconv.Atoi(sections[sectionCores])
	if err != nil {
		return nil, fmt.Errorf("parsing core count: %w (raw: %q)", err, sections[sectionCores])
	}
	metrics.Cores = cores

	cpu, err := parseFloatMetric(sections[sectionCPU], "CPU")
	if err != nil {
		return nil, err
	}
	metrics.CPUPercent = cpu

	mem, err := parseFloatMetric(sections[sectionMemory], "memory")
	if err != nil {
		return nil, err
	}
	metrics.MemoryPercent = mem

	// Load average (format: "0.52, 0.48, 0.41")
	loadParts := strings.Split(sections[sectionLoadAvg], ",")
	if len(loadParts) < 3 {
		return nil, fmt.Errorf("parsing load average: expected 3 values, got %d (raw: %q)", len(loadParts), sections[sectionLoadAvg])
	}
	metrics.LoadAvg1, err = parseFloatMetric(strings.TrimSpace(loadParts[0]), "load avg 1min")
	if err != nil {
		return nil, err
	}
	metrics.LoadAvg5, err = parseFloatMetric(strings.TrimSpace(loadParts[1]), "load avg 5min")
	if err != nil {
		return nil, err
	}
	metrics.LoadAvg15, err = parseFloatMetric(strings.TrimSpace(loadParts[2]), "load avg 15min")
	if err != nil {
		return nil, err
	}

	metrics.FreeCores = freeCores(metrics.Cores, metrics.LoadAvg1)

	// Corpus check failures are non-fatal: the host still reports as online,
	// just without a mount verdict.
	if hasCorpusCheck {
		switch sections[sectionCorpus] {
		case "present":
			mounted := true
			metrics.CorpusMounted = &mounted
		case "absent":
			mounted := false
			metrics.CorpusMounted = &mounted
		}
	}

	return metrics, nil
}

// freeCores estimates spare worker capacity from the one-minute load average.
func freeCores(cores int, load1 float64) int {
	free := cores - int(math.Round(load1))
	if free < 0 {
		return 0
	}
	return free
}

// CheckHost checks a single host's capacity via SSH.
func CheckHost(client SSHClient, host Host) HostStatus {
	command := BuildCommand(host)
	output, err := client.RunCommand(host, command)
	if err != nil {
		return HostStatus{
			Name:   host.Name,
			Status: "offline",
			Error:  err.Error(),
		}
	}

	metrics, err := ParseMetrics(output, host.CorpusPath != "")
	if err != nil {
		return HostStatus{
			Name:   host.Name,
			Status: "online",
			Error:  fmt.Sprintf("metrics parse error: %s", err),
		}
	}

	return HostStatus{
		Name:    host.Name,
		Status:  "online",
		Metrics: metrics,
	}
}

// CheckAllHosts checks all hosts in parallel with bounded concurrency.
func CheckAllHosts(client SSHClient, list []Host) Report {
	results := make([]HostStatus, len(list))
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrent)

	for i, h := range list {
		wg.Add(1)
		go func(idx int, host Host) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = CheckHost(client, host)
		}(i, h)
	}

	wg.Wait()
	return Report{Hosts: results}
}
