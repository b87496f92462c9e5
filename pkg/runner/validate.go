package runner

import (
	"fmt"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/pkg/errors"
	"github.com/projectdiscovery/ikex/pkg/probes"
	fileutil "github.com/projectdiscovery/utils/file"
)

var (
	errNoInputList   = errors.New("no input list provided")
	errOutputMode    = errors.New("both verbose and silent mode specified")
	errTwoOutputMode = errors.New("both json and csv mode specified")
	errZeroValue     = errors.New("cannot be zero")
)

// ValidateOptions validates the configuration options passed
func (options *Options) ValidateOptions() error {
	// Check if Host, list of domains, or stdin info was provided.
	// If none was provided, then return.
	if len(options.Host) == 0 && options.HostsFile == "" && !options.Stdin {
		return errNoInputList
	}

	// Both verbose and silent flags were used
	if options.Verbose && options.Silent {
		return errOutputMode
	}

	// Both json and csv output modes specified
	if options.JSON && options.CSV {
		return errTwoOutputMode
	}

	if options.Timeout == 0 {
		return errors.Wrap(errZeroValue, "timeout")
	}
	if options.Rate == 0 {
		return errors.Wrap(errZeroValue, "rate")
	}

	// empty selection falls back to both probe versions
	if options.IkeVersion != "" {
		for _, version := range strings.Split(options.IkeVersion, ",") {
			switch strings.TrimSpace(version) {
			case "1", "2":
			default:
				return fmt.Errorf("invalid ike version: %s", version)
			}
		}
	}

	switch strings.ToLower(options.Exchange) {
	case "", "main", "aggressive":
	default:
		return fmt.Errorf("invalid exchange mode: %s", options.Exchange)
	}

	for _, name := range options.ServiceProbes {
		if _, ok := probes.Probes[name]; !ok {
			return fmt.Errorf("unknown probe %s, available probes: %s", name, strings.Join(probes.Names(), ", "))
		}
	}

	// the proxy dialer wants a plain host:port dial string
	if options.Proxy != "" && !govalidator.IsDialString(options.Proxy) {
		return fmt.Errorf("invalid socks5 proxy: %s", options.Proxy)
	}

	if options.HostsFile != "" && !fileutil.FileExists(options.HostsFile) {
		return fmt.Errorf("list file %s does not exist", options.HostsFile)
	}
	if options.ExcludeIpsFile != "" && !fileutil.FileExists(options.ExcludeIpsFile) {
		return fmt.Errorf("exclusion file %s does not exist", options.ExcludeIpsFile)
	}

	// Parse the resolvers, either a file or a comma separated list
	if options.Resolvers != "" {
		if fileutil.FileExists(options.Resolvers) {
			chFile, err := fileutil.ReadFile(options.Resolvers)
			if err != nil {
				return errors.Wrap(err, "could not read resolvers")
			}
			for resolver := range chFile {
				options.baseResolvers = append(options.baseResolvers, strings.TrimSpace(resolver))
			}
		} else {
			for _, resolver := range strings.Split(options.Resolvers, ",") {
				options.baseResolvers = append(options.baseResolvers, strings.TrimSpace(resolver))
			}
		}
	}

	return nil
}
