package hosts

import (
	"fmt"
	"sort"
	"strings"
)

// FormatTable formats a Report as a human-readable table, most free
// capacity first, offline hosts last.
func FormatTable(report Report) string {
	if len(report.Hosts) == 0 {
		return "No hosts configured.\n"
	}

	list := make([]HostStatus, len(report.Hosts))
	copy(list, report.Hosts)
	sortByCapacity(list)

	rows := make([][]string, len(list))
	for i, h := range list {
		rows[i] = formatRow(h)
	}

	headers := []string{"Host", "Status", "Cores", "Free", "CPU", "Mem", "Load", "Corpus"}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder

	for i, h := range headers {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(padRight(h, widths[i]))
	}
	sb.WriteString("\n")

	for i, w := range widths {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(strings.Repeat("-", w))
	}
	sb.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			// Left-align host, status, and corpus; right-align the numbers
			if i <= 1 || i == 7 {
				sb.WriteString(padRight(cell, widths[i]))
			} else {
				sb.WriteString(padLeft(cell, widths[i]))
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatRow formats a single host status as table cells.
func formatRow(h HostStatus) []string {
	if h.Status == "offline" || h.Metrics == nil {
		return []string{h.Name, h.Status, "", "", "", "", "", ""}
	}

	m := h.Metrics
	corpus := ""
	if m.CorpusMounted != nil {
		if *m.CorpusMounted {
			corpus = "mounted"
		} else {
			corpus = "MISSING"
		}
	}

	return []string{
		h.Name,
		"online",
		fmt.Sprintf("%d", m.Cores),
		fmt.Sprintf("%d", m.FreeCores),
		fmt.Sprintf("%.1f%%", m.CPUPercent),
		fmt.Sprintf("%.1f%%", m.MemoryPercent),
		fmt.Sprintf("%.2f", m.LoadAvg1),
		corpus,
	}
}

// sortByCapacity sorts hosts with most free cores first; offline hosts and
// hosts without metrics go last.
func sortByCapacity(list []HostStatus) {
	sort.SliceStable(list, func(i, j int) bool {
		hi, hj := list[i], list[j]
		oi := hi.Status == "online" && hi.Metrics != nil
		oj := hj.Status == "online" && hj.Metrics != nil
		if oi != oj {
			return oi
		}
		if !oi {
			return false
		}
		return hi.Metrics.FreeCores > hj.Metrics.FreeCores
	})
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
