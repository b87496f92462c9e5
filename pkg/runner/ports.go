package runner

import (
	"fmt"
	"strconv"
	"strings"
)

const portListStrParts = 2

// ParsePorts parses the ports option into the list of ports to probe
// on every target.
func ParsePorts(options *Options) ([]int, error) {
	portsCLI := options.Ports
	if portsCLI == "" {
		portsCLI = DefaultPortsIKE
	}
	ports, err := parsePortsList(portsCLI)
	if err != nil {
		return nil, fmt.Errorf("could not read ports: %s", err)
	}
	return ports, nil
}

func parsePortsSlice(ranges []string) ([]int, error) {
	var ports []int
	for _, r := range ranges {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}

		if strings.Contains(r, "-") {
			parts := strings.Split(r, "-")
			if len(parts) != portListStrParts {
				return nil, fmt.Errorf("invalid port selection segment: '%s'", r)
			}

			p1, err := strconv.Atoi(parts[0])
			if err != nil {
				return nil, fmt.Errorf("invalid port number: '%s'", parts[0])
			}

			p2, err := strconv.Atoi(parts[1])
			if err != nil {
				return nil, fmt.Errorf("invalid port number: '%s'", parts[1])
			}

			if p1 > p2 {
				return nil, fmt.Errorf("invalid port range: %d-%d", p1, p2)
			}

			for i := p1; i <= p2; i++ {
				ports = append(ports, i)
			}
		} else {
			port, err := strconv.Atoi(r)
			if err != nil {
				return nil, fmt.Errorf("invalid port number: '%s'", r)
			}
			ports = append(ports, port)
		}
	}

	// dedupe ports and validate their range
	seen := make(map[int]struct{})
	var dedupedPorts []int
	for _, p := range ports {
		if p < 1 || p > 65535 {
			return nil, fmt.Errorf("port out of range: %d", p)
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		dedupedPorts = append(dedupedPorts, p)
	}

	return dedupedPorts, nil
}

func parsePortsList(data string) ([]int, error) {
	return parsePortsSlice(strings.Split(data, ","))
}
