package result

import (
	"fmt"
	"sync"

	"github.com/projectdiscovery/ikex/pkg/ike"
	"golang.org/x/exp/maps"
)

// ResultFn is invoked for every host with newly detected services.
type ResultFn func(*HostResult)

// Report is the outcome of a single probe against one address and
// port. Exactly one of V1, V2 or Banner is populated, depending on
// the probe that produced it.
type Report struct {
	IP      string        `json:"ip"`
	Port    int           `json:"port"`
	Probe   string        `json:"probe"`
	Success bool          `json:"success"`
	V1      *ike.V1Result `json:"ikev1,omitempty"`
	V2      *ike.V2Result `json:"ikev2,omitempty"`
	Banner  []byte        `json:"banner,omitempty"`
}

// Key identifies a report within a host, one probe per port.
func (rep *Report) Key() string {
	return fmt.Sprintf("%d/%s", rep.Port, rep.Probe)
}

// Detected reports whether the probe proved a live service on the
// target, either a completed negotiation or a structured protocol
// rejection. Silence, connection failures and garbage do not count.
func (rep *Report) Detected() bool {
	switch {
	case rep.Success:
		return true
	case rep.V1 != nil && rep.V1.Error != nil:
		return rep.V1.Error.Kind == ike.FailureReject
	case rep.V2 != nil && rep.V2.Error != nil:
		return rep.V2.Error.Kind == ike.FailureReject
	}
	return false
}

// HostResult contains the reports collected for a single address.
type HostResult struct {
	Host    string
	IP      string
	Reports []*Report
}

// Result of a probe run
type Result struct {
	sync.RWMutex
	ipReports map[string]map[string]*Report
	ips       map[string]struct{}
	skipped   map[string]struct{}
}

// NewResult structure
func NewResult() *Result {
	ipReports := make(map[string]map[string]*Report)
	ips := make(map[string]struct{})
	skipped := make(map[string]struct{})
	return &Result{ipReports: ipReports, ips: ips, skipped: skipped}
}

// GetIPs returns the seen ips
func (r *Result) GetIPs() chan string {
	r.Lock()

	out := make(chan string)

	go func() {
		defer close(out)
		defer r.Unlock()

		for ip := range r.ips {
			out <- ip
		}
	}()

	return out
}

func (r *Result) HasIPS() bool {
	r.RLock()
	defer r.RUnlock()

	return len(r.ips) > 0
}

// GetIPsReports returns the ips with their reports
func (r *Result) GetIPsReports() chan *HostResult {
	r.RLock()

	out := make(chan *HostResult)

	go func() {
		defer close(out)
		defer r.RUnlock()

		for ip, reports := range r.ipReports {
			hostResult := &HostResult{IP: ip, Reports: maps.Values(reports)}
			out <- hostResult
		}
	}()

	return out
}

func (r *Result) HasIPsReports() bool {
	r.RLock()
	defer r.RUnlock()

	return len(r.ipReports) > 0
}

// AddReport for a specific ip
func (r *Result) AddReport(ip string, rep *Report) {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.ipReports[ip]; !ok {
		r.ipReports[ip] = make(map[string]*Report)
	}

	r.ipReports[ip][rep.Key()] = rep
	r.ips[ip] = struct{}{}
}

// SetReports for a specific ip
func (r *Result) SetReports(ip string, reports []*Report) {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.ipReports[ip]; !ok {
		r.ipReports[ip] = make(map[string]*Report)
	}

	for _, rep := range reports {
		r.ipReports[ip][rep.Key()] = rep
	}
	r.ips[ip] = struct{}{}
}

// IPHasProbe checks if an ip has a report for a specific port and probe
func (r *Result) IPHasProbe(ip string, port int, probe string) bool {
	r.RLock()
	defer r.RUnlock()

	ipReports, hasReports := r.ipReports[ip]
	if !hasReports {
		return false
	}
	rep := Report{Port: port, Probe: probe}
	_, hasReport := ipReports[rep.Key()]

	return hasReport
}

// AddIp adds an ip to the results
func (r *Result) AddIp(ip string) {
	r.Lock()
	defer r.Unlock()

	r.ips[ip] = struct{}{}
}

// HasIP checks if an ip has been seen
func (r *Result) HasIP(ip string) bool {
	r.RLock()
	defer r.RUnlock()

	_, ok := r.ips[ip]
	return ok
}

func (r *Result) IsEmpty() bool {
	return r.Len() == 0
}

func (r *Result) Len() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.ips)
}

// GetReportCount returns the number of reports collected for an ip
func (r *Result) GetReportCount(ip string) int {
	r.RLock()
	defer r.RUnlock()

	return len(r.ipReports[ip])
}

// AddSkipped adds an ip to the skipped list
func (r *Result) AddSkipped(ip string) {
	r.Lock()
	defer r.Unlock()

	r.skipped[ip] = struct{}{}
}

// HasSkipped checks if an ip has been skipped
func (r *Result) HasSkipped(ip string) bool {
	r.RLock()
	defer r.RUnlock()

	_, ok := r.skipped[ip]
	return ok
}
