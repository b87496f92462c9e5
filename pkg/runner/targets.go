package runner

import (
	"bufio"
	"net"
	"os"
	"strings"

	"github.com/pkg/errors"
	fileutil "github.com/projectdiscovery/utils/file"
	iputil "github.com/projectdiscovery/utils/ip"
)

// Load reads the targets from all the configured sources into the
// host map.
func (r *Runner) Load() error {
	// targets defined via CLI argument
	for _, host := range r.options.Host {
		if err := r.AddTarget(host); err != nil {
			return err
		}
	}

	// Targets from file
	if r.options.HostsFile != "" {
		f, err := os.Open(r.options.HostsFile)
		if err != nil {
			return err
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if err := r.AddTarget(scanner.Text()); err != nil {
				f.Close()
				return err
			}
		}
		f.Close()
	}

	// targets from STDIN
	if r.options.Stdin {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := r.AddTarget(scanner.Text()); err != nil {
				return err
			}
		}
	}

	if r.targetsTracked == 0 {
		return errors.New("no targets specified")
	}

	return nil
}

// AddTarget registers a single target: an ip, a cidr, a hostname or a
// host:port combination of any of those.
func (r *Runner) AddTarget(target string) error {
	target = strings.TrimSpace(target)
	switch {
	case target == "":
		return nil
	case iputil.IsCIDR(target):
		// cidrs stay unexpanded, single addresses are picked during iteration
		return r.track(target, "ip")
	default:
		host, port, hasPort := getPort(target)
		ipsV4, ipsV6, err := r.host2ips(host)
		if err != nil {
			return err
		}
		for _, ip := range append(ipsV4, ipsV6...) {
			// we also keep track of ip => host for the output
			metadata := "ip"
			if !iputil.IsIP(host) {
				metadata = host
			}
			if hasPort {
				if err := r.track(net.JoinHostPort(ip, port), net.JoinHostPort(metadata, port)); err != nil {
					return err
				}
				continue
			}
			if err := r.track(ip, metadata); err != nil {
				return err
			}
		}
	}
	return nil
}

// track stores a probe key with its display metadata, merging distinct
// hostnames that point at the same address.
func (r *Runner) track(key, metadata string) error {
	if data, ok := r.hostMap.Get(key); ok {
		for _, known := range strings.Split(string(data), ",") {
			if known == metadata {
				return nil
			}
		}
		return r.hostMap.Set(key, []byte(string(data)+","+metadata))
	}
	r.targetsTracked++
	return r.hostMap.Set(key, []byte(metadata))
}

func (r *Runner) parseExcludedIps(options *Options) ([]string, error) {
	var excludedIps []string
	if options.ExcludeIps != "" {
		for _, host := range strings.Split(options.ExcludeIps, ",") {
			ips, err := r.getExcludeItems(strings.TrimSpace(host))
			if err != nil {
				return nil, err
			}
			excludedIps = append(excludedIps, ips...)
		}
	}

	if options.ExcludeIpsFile != "" {
		cdata, err := fileutil.ReadFile(options.ExcludeIpsFile)
		if err != nil {
			return excludedIps, err
		}
		for host := range cdata {
			ips, err := r.getExcludeItems(strings.TrimSpace(host))
			if err != nil {
				return nil, err
			}
			excludedIps = append(excludedIps, ips...)
		}
	}

	return excludedIps, nil
}

func (r *Runner) getExcludeItems(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}

	if isIpOrCidr(s) {
		return []string{s}, nil
	}

	ips4, ips6, err := r.host2ips(s)
	if err != nil {
		return nil, err
	}
	return append(ips4, ips6...), nil
}

func isIpOrCidr(s string) bool {
	return iputil.IsIP(s) || iputil.IsCIDR(s)
}
