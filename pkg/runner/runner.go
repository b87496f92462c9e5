package runner

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Mzack9999/gcache"
	"github.com/miekg/dns"
	"github.com/pkg/errors"
	"github.com/projectdiscovery/blackrock"
	"github.com/projectdiscovery/clistats"
	"github.com/projectdiscovery/dnsx/libs/dnsx"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/hmap/store/hybrid"
	"github.com/projectdiscovery/ikex/pkg/ike"
	"github.com/projectdiscovery/ikex/pkg/probes"
	"github.com/projectdiscovery/ikex/pkg/result"
	"github.com/projectdiscovery/mapcidr"
	"github.com/projectdiscovery/networkpolicy"
	"github.com/projectdiscovery/ratelimit"
	fileutil "github.com/projectdiscovery/utils/file"
	iputil "github.com/projectdiscovery/utils/ip"
	sliceutil "github.com/projectdiscovery/utils/slice"
	"github.com/remeh/sizedwaitgroup"
	"go.uber.org/multierr"
)

// Probe identifiers used in reports and output rows.
const (
	ProbeV1 = "ike-v1"
	ProbeV2 = "ike-v2"
)

// Runner is an instance of the ike probing
// client used to orchestrate the whole process.
type Runner struct {
	options       *Options
	prober        *ike.Prober
	limiter       *ratelimit.Limiter
	wgprobe       sizedwaitgroup.SizedWaitGroup
	dnsclient     *dnsx.DNSX
	stats         *clistats.Statistics
	excludedIpsNP *networkpolicy.NetworkPolicy
	hostMap       *hybrid.HybridMap
	history       *ProbeHistory
	reports       *result.Result

	ports          []int
	ikeProbes      []string
	targetsTracked int

	unique gcache.Cache[string, struct{}]
}

// NewRunner creates a new runner struct instance by parsing
// the configuration options, configuring sources, reading lists, etc
func NewRunner(options *Options) (*Runner, error) {
	options.configureOutput()

	ports, err := ParsePorts(options)
	if err != nil {
		return nil, fmt.Errorf("could not parse ports: %s", err)
	}

	// default to ipv4 if no ipversion was specified
	if len(options.IPVersion) == 0 {
		options.IPVersion = []string{IPv4}
	}

	if options.Retries == 0 {
		options.Retries = DefaultRetriesProbe
	}
	if options.Rate == 0 {
		options.Rate = DefaultRateProbe
	}
	if options.Timeout == 0 {
		options.Timeout = DefaultProbeTimeout
	}
	if options.ResumeCfg == nil {
		options.ResumeCfg = NewResumeCfg()
	}
	runner := &Runner{
		options:   options,
		ports:     ports,
		ikeProbes: options.ikeProbeNames(),
	}

	dnsOptions := dnsx.DefaultOptions
	dnsOptions.MaxRetries = runner.options.Retries
	dnsOptions.Hostsfile = true
	if sliceutil.Contains(options.IPVersion, IPv6) {
		dnsOptions.QuestionTypes = append(dnsOptions.QuestionTypes, dns.TypeAAAA)
	}
	if len(runner.options.baseResolvers) > 0 {
		dnsOptions.BaseResolvers = runner.options.baseResolvers
	}
	dnsclient, err := dnsx.New(dnsOptions)
	if err != nil {
		return nil, err
	}
	runner.dnsclient = dnsclient

	excludedIps, err := runner.parseExcludedIps(options)
	if err != nil {
		return nil, err
	}

	if len(excludedIps) > 0 {
		excludedIpsNP, err := networkpolicy.New(networkpolicy.Options{
			DenyList: excludedIps,
		})
		if err != nil {
			return nil, err
		}
		runner.excludedIpsNP = excludedIpsNP
	}

	hostMap, err := hybrid.New(hybrid.DefaultDiskOptions)
	if err != nil {
		return nil, err
	}
	runner.hostMap = hostMap

	prober, err := ike.NewProber(ike.Options{
		Timeout:   options.GetTimeout(),
		Proxy:     options.Proxy,
		ProxyAuth: options.ProxyAuth,
	})
	if err != nil {
		return nil, err
	}
	runner.prober = prober

	if options.History {
		historyFile := options.HistoryFile
		if historyFile == "" {
			historyFile = DefaultHistoryFilePath()
		}
		history, err := NewProbeHistory(historyFile, time.Duration(options.HistoryTTL)*time.Hour)
		if err != nil {
			return nil, err
		}
		runner.history = history
	}

	runner.reports = result.NewResult()

	uniqueCache := gcache.New[string, struct{}](1500).Build()
	runner.unique = uniqueCache

	if options.EnableProgressBar {
		defaultOptions := &clistats.DefaultOptions
		defaultOptions.ListenPort = options.MetricsPort
		stats, err := clistats.NewWithOptions(context.Background(), defaultOptions)
		if err != nil {
			gologger.Warning().Msgf("Couldn't create progress engine: %s\n", err)
		} else {
			runner.stats = stats
		}
	}

	return runner, nil
}

func (r *Runner) onReceive(hostResult *result.HostResult) {
	if !ipMatchesIpVersions(hostResult.IP, r.options.IPVersion...) {
		return
	}

	dt, err := r.getHostsByIP(hostResult.IP)
	if err != nil {
		return
	}

	// receive event has only one report
	for _, rep := range hostResult.Reports {
		ipPort := net.JoinHostPort(hostResult.IP, fmt.Sprint(rep.Port))
		if r.unique.Has(ipPort + "/" + rep.Probe) {
			return
		}
	}

	// recover hostnames from ip:port combination
	for _, rep := range hostResult.Reports {
		ipPort := net.JoinHostPort(hostResult.IP, fmt.Sprint(rep.Port))
		if dtOthers, ok := r.hostMap.Get(ipPort); ok {
			if otherName, _, err := net.SplitHostPort(string(dtOthers)); err == nil {
				// replace bare ip:port with host
				for idx, ipCandidate := range dt {
					if iputil.IsIP(ipCandidate) {
						dt[idx] = otherName
					}
				}
			}
		}
		_ = r.unique.Set(ipPort+"/"+rep.Probe, struct{}{})
	}

	csvHeaderEnabled := true

	buffer := bytes.Buffer{}
	writer := csv.NewWriter(&buffer)
	for _, host := range dt {
		buffer.Reset()
		if host == "ip" {
			host = hostResult.IP
		}

		// console output
		if r.options.JSON || r.options.CSV {
			for _, rep := range hostResult.Reports {
				data := newResultRow(host, hostResult.IP, rep)
				if r.options.JSON {
					b, err := data.JSON()
					if err != nil {
						continue
					}
					buffer.Write([]byte(fmt.Sprintf("%s\n", b)))
				} else if r.options.CSV {
					if csvHeaderEnabled {
						writeCSVHeaders(data, writer)
						csvHeaderEnabled = false
					}
					writeCSVRow(data, writer)
				}
			}
		}
		if !r.options.DisableStdout {
			if r.options.JSON {
				gologger.Silent().Msgf("%s", buffer.String())
			} else if r.options.CSV {
				writer.Flush()
				gologger.Silent().Msgf("%s", buffer.String())
			} else {
				for _, rep := range hostResult.Reports {
					gologger.Silent().Msgf("%s:%d [%s %s]\n", host, rep.Port, rep.Probe, reportStatus(rep))
				}
			}
		}
	}
}

// RunEnumeration runs the ike probing flow on the targets specified
func (r *Runner) RunEnumeration(pctx context.Context) error {
	ctx, cancel := context.WithCancel(pctx)
	defer cancel()

	err := r.Load()
	if err != nil {
		return err
	}

	// Probe workers
	r.wgprobe = sizedwaitgroup.New(r.options.Rate)
	r.limiter = ratelimit.New(context.Background(), uint(r.options.Rate), time.Second)

	// shrinks the ips to the minimum amount of cidr
	targets, targetsV4, targetsv6, targetsWithPort, err := r.GetTargetIps(r.getPreprocessedIps)
	if err != nil {
		return err
	}
	var targetsCount, portsCount, targetsWithPortCount uint64
	for _, target := range append(targetsV4, targetsv6...) {
		if target == nil {
			continue
		}
		targetsCount += mapcidr.AddressCountIpnet(target)
	}
	portsCount = uint64(len(r.ports))
	probesCount := uint64(len(r.ikeProbes))
	targetsWithPortCount = uint64(len(targetsWithPort))

	Range := targetsCount * portsCount
	if r.options.EnableProgressBar {
		r.stats.AddStatic("ports", portsCount)
		r.stats.AddStatic("hosts", targetsCount)
		r.stats.AddStatic("retries", r.options.Retries)
		r.stats.AddStatic("startedAt", time.Now())
		r.stats.AddCounter("probes", uint64(0))
		r.stats.AddCounter("errors", uint64(0))
		r.stats.AddCounter("total", Range*probesCount*uint64(r.options.Retries)+targetsWithPortCount*probesCount)
		r.stats.AddStatic("hosts_with_port", targetsWithPortCount)
		if err := r.stats.Start(); err != nil {
			gologger.Warning().Msgf("Couldn't start statistics: %s\n", err)
		}
	}

	// Retries are performed regardless of the previous probe results due to network unreliability
	for currentRetry := 0; currentRetry < r.options.Retries; currentRetry++ {
		if currentRetry < r.options.ResumeCfg.Retry {
			gologger.Debug().Msgf("Skipping Retry: %d\n", currentRetry)
			continue
		}

		// Use current time as seed
		currentSeed := time.Now().UnixNano()
		r.options.ResumeCfg.RLock()
		if r.options.ResumeCfg.Seed > 0 {
			currentSeed = r.options.ResumeCfg.Seed
		}
		r.options.ResumeCfg.RUnlock()

		// keep track of current retry and seed for resume
		r.options.ResumeCfg.Lock()
		r.options.ResumeCfg.Retry = currentRetry
		r.options.ResumeCfg.Seed = currentSeed
		r.options.ResumeCfg.Unlock()

		b := blackrock.New(int64(Range), currentSeed)
		for index := int64(0); index < int64(Range); index++ {
			xxx := b.Shuffle(index)
			ipIndex := xxx / int64(portsCount)
			portIndex := int(xxx % int64(portsCount))
			ip := r.PickIP(targets, ipIndex)

			if r.excludedIpsNP != nil && !r.excludedIpsNP.ValidateAddress(ip) {
				continue
			}

			port := r.PickPort(portIndex)

			r.options.ResumeCfg.RLock()
			resumeCfgIndex := r.options.ResumeCfg.Index
			r.options.ResumeCfg.RUnlock()
			if index < resumeCfgIndex {
				gologger.Debug().Msgf("Skipping \"%s:%d\": Resume - probe already completed\n", ip, port)
				continue
			}

			// resume cfg logic
			r.options.ResumeCfg.Lock()
			r.options.ResumeCfg.Index = index
			r.options.ResumeCfg.Unlock()

			if r.reports.HasSkipped(ip) {
				continue
			}
			if r.options.ProbeThreshold > 0 && r.reports.GetReportCount(ip) >= r.options.ProbeThreshold {
				hosts, _ := r.getHostsByIP(ip)
				gologger.Info().Msgf("Skipping %s %v: probe threshold reached\n", ip, hosts)
				r.reports.AddSkipped(ip)
				continue
			}

			r.wgprobe.Add()
			go r.handleHostPort(ctx, ip, port)
			r.dispatchServiceProbes(ctx, ip)
			if r.options.EnableProgressBar {
				r.stats.IncrementCounter("probes", int(probesCount))
			}
		}

		// handle the ip:port combination
		for _, targetWithPort := range targetsWithPort {
			ip, p, err := net.SplitHostPort(targetWithPort)
			if err != nil {
				gologger.Debug().Msgf("Skipping %s: %v\n", targetWithPort, err)
				continue
			}

			// naive port find
			pp, err := strconv.Atoi(p)
			if err != nil {
				gologger.Debug().Msgf("Skipping %s, could not cast port %s: %v\n", targetWithPort, p, err)
				continue
			}

			if r.excludedIpsNP != nil && !r.excludedIpsNP.ValidateAddress(ip) {
				continue
			}

			r.wgprobe.Add()
			go r.handleHostPort(ctx, ip, pp)
			r.dispatchServiceProbes(ctx, ip)
			if r.options.EnableProgressBar {
				r.stats.IncrementCounter("probes", int(probesCount))
			}
		}

		r.wgprobe.Wait()

		r.options.ResumeCfg.Lock()
		if r.options.ResumeCfg.Seed > 0 {
			r.options.ResumeCfg.Seed = 0
		}
		if r.options.ResumeCfg.Index > 0 {
			// zero also the current index as we are restarting the run
			r.options.ResumeCfg.Index = 0
		}
		r.options.ResumeCfg.Unlock()
	}

	if r.history != nil {
		if err := r.history.Save(); err != nil {
			gologger.Warning().Msgf("Couldn't save probe history: %s\n", err)
		}
	}

	r.handleOutput(r.reports)
	return nil
}

func (r *Runner) getPreprocessedIps() (cidrs []*net.IPNet, ipsWithPort []string) {
	r.hostMap.Scan(func(ip, _ []byte) error {
		if cidr := iputil.ToCidr(string(ip)); cidr != nil {
			cidrs = append(cidrs, cidr)
		} else {
			ipsWithPort = append(ipsWithPort, string(ip))
		}

		return nil
	})
	return
}

func (r *Runner) GetTargetIps(ipsCallback func() ([]*net.IPNet, []string)) (targets, targetsV4, targetsV6 []*net.IPNet, targetsWithPort []string, err error) {
	targets, targetsWithPort = ipsCallback()

	// shrinks the ips to the minimum amount of cidr
	targetsV4, targetsV6 = mapcidr.CoalesceCIDRs(targets)
	if len(targetsV4) == 0 && len(targetsV6) == 0 && len(targetsWithPort) == 0 {
		return nil, nil, nil, nil, errors.New("no valid ipv4 or ipv6 targets were found")
	}

	targets = make([]*net.IPNet, 0, len(targets))
	if r.options.ShouldProbeIPv4() {
		targets = append(targets, targetsV4...)
	} else {
		targetsV4 = make([]*net.IPNet, 0)
	}

	if r.options.ShouldProbeIPv6() {
		targets = append(targets, targetsV6...)
	} else {
		targetsV6 = make([]*net.IPNet, 0)
	}

	return targets, targetsV4, targetsV6, targetsWithPort, nil
}

func (r *Runner) ShowProbeResultOnExit() {
	r.handleOutput(r.reports)
}

// Close runner instance
func (r *Runner) Close() error {
	var errs error
	if r.hostMap != nil {
		errs = multierr.Append(errs, r.hostMap.Close())
	}
	if r.stats != nil {
		errs = multierr.Append(errs, r.stats.Stop())
	}
	if r.limiter != nil {
		r.limiter.Stop()
	}
	if r.history != nil {
		errs = multierr.Append(errs, r.history.Save())
	}

	return errs
}

// PickIP randomly
func (r *Runner) PickIP(targets []*net.IPNet, index int64) string {
	for _, target := range targets {
		subnetIpsCount := int64(mapcidr.AddressCountIpnet(target))
		if index < subnetIpsCount {
			return r.PickSubnetIP(target, index)
		}
		index -= subnetIpsCount
	}

	return ""
}

func (r *Runner) PickSubnetIP(network *net.IPNet, index int64) string {
	ipInt, bits, err := mapcidr.IPToInteger(network.IP)
	if err != nil {
		gologger.Warning().Msgf("%s\n", err)
		return ""
	}
	subnetIpInt := big.NewInt(0).Add(ipInt, big.NewInt(index))
	ip := mapcidr.IntegerToIP(subnetIpInt, bits)
	return ip.String()
}

func (r *Runner) PickPort(index int) int {
	return r.ports[index]
}

func (r *Runner) handleHostPort(ctx context.Context, host string, port int) {
	defer r.wgprobe.Done()

	select {
	case <-ctx.Done():
		return
	default:
		for _, probe := range r.ikeProbes {
			r.probeIKE(host, port, probe)
		}
	}
}

// probeIKE sends a single ike probe and stores the report when the
// response proves an ike speaker. Silence and network errors are
// logged at debug level only.
func (r *Runner) probeIKE(host string, port int, probe string) {
	if r.reports.IPHasProbe(host, port, probe) {
		return
	}

	target := net.JoinHostPort(host, fmt.Sprint(port)) + "/" + probe
	if r.history != nil && r.history.IsProbed(target) {
		gologger.Debug().Msgf("Skipping %s: probed within history ttl\n", target)
		return
	}

	r.limiter.Take()

	var rep *result.Report
	switch probe {
	case ProbeV2:
		res := r.prober.IKEv2(host, port)
		rep = &result.Report{IP: host, Port: port, Probe: probe, Success: res.Success, V2: res}
	default:
		res := r.prober.IKEv1(host, port, r.options.exchangeType())
		rep = &result.Report{IP: host, Port: port, Probe: probe, Success: res.Success, V1: res}
	}

	if r.history != nil {
		_ = r.history.Record(target, host)
	}

	if !rep.Detected() {
		var reason string
		switch {
		case rep.V1 != nil && rep.V1.Error != nil:
			reason = rep.V1.Error.Message
		case rep.V2 != nil && rep.V2.Error != nil:
			reason = rep.V2.Error.Message
		}
		gologger.Debug().Msgf("Probe %s failed for %s:%d: %s\n", probe, host, port, reason)
		if r.options.EnableProgressBar {
			r.stats.IncrementCounter("errors", 1)
		}
		return
	}

	r.reports.AddReport(host, rep)
	r.onReceive(&result.HostResult{IP: host, Reports: []*result.Report{rep}})
}

// dispatchServiceProbes runs the configured service probes once per
// host, however many ports the ike rounds touch.
func (r *Runner) dispatchServiceProbes(ctx context.Context, ip string) {
	if len(r.options.ServiceProbes) == 0 {
		return
	}

	svcKey := "svc:" + ip
	if r.unique.Has(svcKey) {
		return
	}
	_ = r.unique.Set(svcKey, struct{}{})

	r.wgprobe.Add()
	go r.handleHostServices(ctx, ip)
}

func (r *Runner) handleHostServices(ctx context.Context, host string) {
	defer r.wgprobe.Done()

	select {
	case <-ctx.Done():
		return
	default:
		for _, name := range r.options.ServiceProbes {
			probe, ok := probes.Probes[name]
			if !ok {
				continue
			}
			port, ok := probes.DefaultPort(name)
			if !ok {
				continue
			}
			if r.reports.IPHasProbe(host, port, name) {
				continue
			}

			r.limiter.Take()
			banner, err := probe.Do(r.prober.Dialer(), host, port, r.options.GetTimeout())
			if err != nil {
				gologger.Debug().Msgf("Probe %s failed for %s:%d: %s\n", name, host, port, err)
				if r.options.EnableProgressBar {
					r.stats.IncrementCounter("errors", 1)
				}
				continue
			}

			rep := &result.Report{IP: host, Port: port, Probe: name, Success: true, Banner: banner}
			r.reports.AddReport(host, rep)
			r.onReceive(&result.HostResult{IP: host, Reports: []*result.Report{rep}})
		}
	}
}

func (r *Runner) handleOutput(probeResults *result.Result) {
	var (
		file   *os.File
		err    error
		output string
	)

	// In case the user has given an output file, write all the found
	// services to the output file.
	if r.options.Output != "" {
		output = r.options.Output

		// create path if not existing
		outputFolder := filepath.Dir(output)
		if !fileutil.FolderExists(outputFolder) {
			mkdirErr := os.MkdirAll(outputFolder, 0700)
			if mkdirErr != nil {
				gologger.Error().Msgf("Could not create output folder %s: %s\n", outputFolder, mkdirErr)
				return
			}
		}

		file, err = os.Create(output)
		if err != nil {
			gologger.Error().Msgf("Could not create file %s: %s\n", output, err)
			return
		}
		defer func() {
			if err := file.Close(); err != nil {
				gologger.Error().Msgf("Could not close file %s: %s\n", output, err)
			}
		}()
	}
	csvFileHeaderEnabled := true

	for hostResult := range probeResults.GetIPsReports() {
		dt, err := r.getHostsByIP(hostResult.IP)
		if err != nil {
			continue
		}

		if !ipMatchesIpVersions(hostResult.IP, r.options.IPVersion...) {
			continue
		}

		// recover hostnames from ip:port combination
		for _, rep := range hostResult.Reports {
			ipPort := net.JoinHostPort(hostResult.IP, fmt.Sprint(rep.Port))
			if dtOthers, ok := r.hostMap.Get(ipPort); ok {
				if otherName, _, err := net.SplitHostPort(string(dtOthers)); err == nil {
					// replace bare ip:port with host
					for idx, ipCandidate := range dt {
						if iputil.IsIP(ipCandidate) {
							dt[idx] = otherName
						}
					}
				}
			}
		}

		for _, host := range dt {
			if host == "ip" {
				host = hostResult.IP
			}
			gologger.Info().Msgf("Found %d services on host %s (%s)\n", len(hostResult.Reports), host, hostResult.IP)

			// file output
			if file != nil {
				if r.options.JSON {
					err = WriteJSONOutput(host, hostResult.IP, hostResult.Reports, file)
				} else if r.options.CSV {
					err = WriteCsvOutput(host, hostResult.IP, hostResult.Reports, csvFileHeaderEnabled, file)
				} else {
					err = WriteHostOutput(host, hostResult.Reports, file)
				}
				if err != nil {
					gologger.Error().Msgf("Could not write results to file %s for %s: %s\n", output, host, err)
				}
				csvFileHeaderEnabled = false
			}

			if r.options.OnResult != nil {
				r.options.OnResult(&result.HostResult{Host: host, IP: hostResult.IP, Reports: hostResult.Reports})
			}
		}
	}
}

// getHostsByIP returns the names a probed ip was tracked under, or the
// ip itself when it was given directly or came from a cidr.
func (r *Runner) getHostsByIP(ip string) ([]string, error) {
	dt, ok := r.hostMap.Get(ip)
	if !ok {
		return []string{ip}, nil
	}
	return strings.Split(string(dt), ","), nil
}
