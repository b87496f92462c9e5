package runner

import (
	"os"
	"strings"
	"time"

	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/formatter"
	"github.com/projectdiscovery/gologger/levels"
	"github.com/projectdiscovery/ikex/pkg/isakmp"
	"github.com/projectdiscovery/ikex/pkg/result"
	fileutil "github.com/projectdiscovery/utils/file"
	sliceutil "github.com/projectdiscovery/utils/slice"
)

// Options contains the configuration options for tuning
// the probe run.
type Options struct {
	Host           goflags.StringSlice // Host is the host or list of hosts to probe
	HostsFile      string              // HostsFile is the file containing list of hosts to probe
	ExcludeIps     string              // Ips or cidrs to be excluded from the run
	ExcludeIpsFile string              // File containing ips or cidrs to be excluded from the run
	Ports          string              // Ports is the ports to probe on hosts
	IPVersion      goflags.StringSlice // IPVersion is the ip versions of hosts to probe

	IkeVersion     string              // IkeVersion selects which probes are sent (1, 2)
	Exchange       string              // Exchange is the phase 1 exchange mode for version 1 probes
	ServiceProbes  goflags.StringSlice // ServiceProbes are additional per-host service probes to run
	ProbeThreshold int                 // ProbeThreshold skips hosts that already produced this many reports

	Retries int // Retries is the number of times a target is reprobed
	Rate    int // Rate is the rate of probe requests
	Timeout int // Timeout is the milliseconds to wait for targets to respond

	Resolvers     string // Resolvers (comma separated or file) to use for dns resolution
	baseResolvers []string

	Output string // Output is the file to write found results to
	JSON   bool   // JSON specifies whether to use json lines for output format
	CSV    bool   // CSV specifies whether to use csv for output format

	Proxy     string // Socks5 proxy
	ProxyAuth string // Socks5 proxy authentication (username:password)

	Resume      bool       // Resume a previously interrupted run from the checkpoint file
	ResumeCfg   *ResumeCfg // Internal progression state
	History     bool       // History skips targets probed within the history ttl
	HistoryFile string     // HistoryFile overrides the default probe history location
	HistoryTTL  int        // HistoryTTL is the hours before a historic target is probed again

	HealthCheck       bool // HealthCheck performs a diagnostics run and exits
	Verbose           bool // Verbose flag indicates whether to show verbose output or not
	Debug             bool // Prints out debug information
	NoColor           bool // No-Color disables the colored output
	Silent            bool // Silent suppresses any extra text and only writes results to screen
	Version           bool // Version specifies if we should just show version and exit
	EnableProgressBar bool // Enable progress bar
	MetricsPort       int  // MetricsPort with statistics
	DisableStdout     bool // DisableStdout prevents writing rows to the terminal (library use)

	Stdin bool // Stdin specifies whether stdin input was given to the process

	OnResult result.ResultFn // OnResult is invoked for every detected service (library use)
}

// ParseOptions parses the command line flags provided by a user
func ParseOptions() *Options {
	options := &Options{}

	flagSet := goflags.NewFlagSet()
	flagSet.SetDescription(`ikex probes IKE/ISAKMP endpoints and reports the negotiation parameters each peer offers.`)

	flagSet.CreateGroup("input", "Input",
		flagSet.StringSliceVarP(&options.Host, "host", "", nil, "hosts to probe (comma-separated)", goflags.NormalizedStringSliceOptions),
		flagSet.StringVarP(&options.HostsFile, "list", "l", "", "file containing list of hosts to probe (one per line)"),
		flagSet.StringVarP(&options.ExcludeIps, "exclude-hosts", "eh", "", "hosts to exclude from the run (comma-separated)"),
		flagSet.StringVarP(&options.ExcludeIpsFile, "exclude-file", "ef", "", "file containing hosts to exclude from the run"),
		flagSet.StringVarP(&options.Ports, "port", "p", DefaultPortsIKE, "ports to probe (500, 500-510)"),
		flagSet.StringSliceVarP(&options.IPVersion, "ip-version", "iv", nil, "ip version of hosts to probe (4,6) - (default 4)", goflags.NormalizedStringSliceOptions),
	)

	flagSet.CreateGroup("probes", "Probes",
		flagSet.StringVar(&options.IkeVersion, "ike-version", "1,2", "ike versions to attempt (1,2)"),
		flagSet.StringVar(&options.Exchange, "exchange", "main", "phase 1 exchange mode for version 1 probes (main, aggressive)"),
		flagSet.StringSliceVar(&options.ServiceProbes, "probe", nil, "additional service probes to run per host (echo, time, dns, ...)", goflags.NormalizedStringSliceOptions),
		flagSet.IntVarP(&options.ProbeThreshold, "probe-threshold", "pt", 0, "report threshold to skip remaining probes for the host"),
		flagSet.IntVar(&options.Timeout, "timeout", DefaultProbeTimeout, "millisecond to wait before timing out"),
		flagSet.IntVar(&options.Retries, "retries", DefaultRetriesProbe, "number of retries for the probe"),
	)

	flagSet.CreateGroup("rate-limit", "Rate-limit",
		flagSet.IntVar(&options.Rate, "rate", DefaultRateProbe, "probes to send per second"),
	)

	flagSet.CreateGroup("output", "Output",
		flagSet.StringVarP(&options.Output, "output", "o", "", "file to write output to (optional)"),
		flagSet.BoolVarP(&options.JSON, "json", "j", false, "write output in JSON lines format"),
		flagSet.BoolVar(&options.CSV, "csv", false, "write output in csv format"),
	)

	flagSet.CreateGroup("config", "Configuration",
		flagSet.StringVar(&options.Proxy, "proxy", "", "socks5 proxy (ip:port / fqdn:port)"),
		flagSet.StringVar(&options.ProxyAuth, "proxy-auth", "", "socks5 proxy authentication (username:password)"),
		flagSet.StringVarP(&options.Resolvers, "resolvers", "r", "", "list of custom resolver dns resolution (comma separated or from file)"),
		flagSet.BoolVar(&options.Resume, "resume", false, "resume probe run using resume.cfg"),
		flagSet.BoolVar(&options.History, "history", false, "skip targets probed in a previous run within the history ttl"),
		flagSet.StringVar(&options.HistoryFile, "history-file", "", "file to persist probe history to"),
		flagSet.IntVar(&options.HistoryTTL, "history-ttl", DefaultHistoryTTLHours, "hours before a target in the history is probed again"),
	)

	flagSet.CreateGroup("debug", "Debug",
		flagSet.BoolVarP(&options.HealthCheck, "health-check", "hc", false, "run diagnostic check up"),
		flagSet.BoolVar(&options.Debug, "debug", false, "display debugging information"),
		flagSet.BoolVarP(&options.Verbose, "verbose", "v", false, "display verbose output"),
		flagSet.BoolVarP(&options.NoColor, "no-color", "nc", false, "disable colors in CLI output"),
		flagSet.BoolVar(&options.Silent, "silent", false, "display only results in output"),
		flagSet.BoolVar(&options.Version, "version", false, "display version of the project"),
		flagSet.BoolVar(&options.EnableProgressBar, "stats", false, "display stats of the running probe run"),
		flagSet.IntVarP(&options.MetricsPort, "metrics-port", "mp", DefaultMetricsPort, "port to expose ikex metrics on"),
	)

	_ = flagSet.Parse()

	// Check if stdin pipe was given
	options.Stdin = fileutil.HasStdin()

	// Read the inputs and configure the logging
	options.configureOutput()

	// Show the user the banner
	showBanner()

	if options.Version {
		gologger.Info().Msgf("Current Version: %s\n", Version)
		os.Exit(0)
	}

	// Show network configuration and exit if the user requested it
	if options.HealthCheck {
		gologger.Print().Msgf("%s\n", DoHealthCheck(options))
		os.Exit(0)
	}

	if options.Resume {
		resumeCfg := NewResumeCfg()
		if err := resumeCfg.ConfigureResume(); err != nil {
			gologger.Fatal().Msgf("%s\n", err)
		}
		options.ResumeCfg = resumeCfg
	}

	// Validate the options passed by the user and if any
	// invalid options have been used, exit.
	if err := options.ValidateOptions(); err != nil {
		gologger.Fatal().Msgf("Program exiting: %s\n", err)
	}

	return options
}

// configureOutput configures the output on the screen
func (options *Options) configureOutput() {
	// If the user desires verbose output, show verbose output
	if options.Verbose {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelVerbose)
	}
	if options.Debug {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelDebug)
	}
	if options.NoColor {
		gologger.DefaultLogger.SetFormatter(formatter.NewCLI(true))
	}
	if options.Silent {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
	}
}

// GetTimeout returns the per connection probe timeout
func (options *Options) GetTimeout() time.Duration {
	return time.Duration(options.Timeout) * time.Millisecond
}

// ShouldProbeIPv4 determines if the run should probe ipv4 addresses
func (options *Options) ShouldProbeIPv4() bool {
	return sliceutil.Contains(options.IPVersion, IPv4)
}

// ShouldProbeIPv6 determines if the run should probe ipv6 addresses
func (options *Options) ShouldProbeIPv6() bool {
	return sliceutil.Contains(options.IPVersion, IPv6)
}

// ikeProbeNames maps the ike-version selection to probe identifiers,
// preserving the order given by the user.
func (options *Options) ikeProbeNames() []string {
	if options.IkeVersion == "" {
		return []string{ProbeV1, ProbeV2}
	}
	var names []string
	for _, version := range strings.Split(options.IkeVersion, ",") {
		switch strings.TrimSpace(version) {
		case "1":
			names = append(names, ProbeV1)
		case "2":
			names = append(names, ProbeV2)
		}
	}
	return names
}

// exchangeType resolves the configured phase 1 exchange mode.
func (options *Options) exchangeType() byte {
	if strings.EqualFold(options.Exchange, "aggressive") {
		return isakmp.ExchangeAggressiveMode
	}
	return isakmp.ExchangeMainMode
}
