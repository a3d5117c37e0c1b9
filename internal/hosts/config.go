package hosts

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// patternRe matches brace expansion patterns like "crunch{01..08}".
var patternRe = regexp.MustCompile(`^(.+)\{(\d+)\.\.(\d+)\}$`)

// LoadConfig reads and validates hosts.yml from the given path.
func LoadConfig(path string) (*HostsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg HostsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("hosts.yml must define at least one host")
	}

	if cfg.SSH.ConnectTimeout <= 0 {
		cfg.SSH.ConnectTimeout = 10
	}

	for i, entry := range cfg.Hosts {
		if entry.Name == "" && entry.Pattern == "" {
			return nil, fmt.Errorf("host entry %d must have either 'name' or 'pattern'", i+1)
		}
		if entry.Name != "" && entry.Pattern != "" {
			return nil, fmt.Errorf("host entry %d must have only one of 'name' or 'pattern', not both", i+1)
		}
		if entry.Pattern != "" && !patternRe.MatchString(entry.Pattern) {
			return nil, fmt.Errorf("host entry %d: invalid pattern %q (expected format: prefix{NN..MM})", i+1, entry.Pattern)
		}
	}

	return &cfg, nil
}

// ExpandHosts expands all host entries (including brace patterns) into a flat list.
func ExpandHosts(cfg *HostsConfig) ([]Host, error) {
	var out []Host
	for _, entry := range cfg.Hosts {
		if entry.Name != "" {
			out = append(out, Host{Name: entry.Name, CorpusPath: entry.CorpusPath})
			continue
		}

		names, err := expandPattern(entry.Pattern)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("pattern %q expanded to zero hosts", entry.Pattern)
		}
		for _, name := range names {
			out = append(out, Host{Name: name, CorpusPath: entry.CorpusPath})
		}
	}
	return out, nil
}

// expandPattern expands a brace pattern like "crunch{01..08}" into a list of names.
// Zero padding follows the width of the start value.
func expandPattern(pattern string) ([]string, error) {
	matches := patternRe.FindStringSubmatch(pattern)
	if matches == nil {
		return nil, fmt.Errorf("invalid pattern: %q", pattern)
	}

	prefix, startStr, endStr := matches[1], matches[2], matches[3]

	start, err := strconv.Atoi(startStr)
	if err != nil {
		return nil, fmt.Errorf("invalid start in pattern %q: %w", pattern, err)
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return nil, fmt.Errorf("invalid end in pattern %q: %w", pattern, err)
	}
	if start > end {
		return nil, fmt.Errorf("pattern %q: start (%d) must be <= end (%d)", pattern, start, end)
	}

	padWidth := len(startStr)
	var names []string
	for i := start; i <= end; i++ {
		names = append(names, fmt.Sprintf("%s%0*d", prefix, padWidth, i))
	}
	return names, nil
}
