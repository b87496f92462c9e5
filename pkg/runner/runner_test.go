package runner

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/miekg/dns"
	"github.com/projectdiscovery/freeport"
	"github.com/projectdiscovery/ikex/pkg/ike"
	"github.com/projectdiscovery/ikex/pkg/ikev2"
	"github.com/projectdiscovery/ikex/pkg/isakmp"
	"github.com/projectdiscovery/ikex/pkg/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewRunner tests the creation of a new Runner instance
func TestNewRunner(t *testing.T) {
	tests := []struct {
		name        string
		options     *Options
		wantErr     bool
		errContains string
		validate    func(t *testing.T, runner *Runner)
	}{
		{
			name: "valid options with default settings",
			options: &Options{
				Host:    []string{"example.com"},
				Timeout: 500,
				Retries: 3,
				Rate:    1000,
			},
			wantErr: false,
			validate: func(t *testing.T, runner *Runner) {
				assert.Equal(t, []int{500, 4500}, runner.ports)

				expected := []string{"4"}
				actual := []string(runner.options.IPVersion)
				assert.Equal(t, expected, actual)
				assert.Equal(t, []string{ProbeV1, ProbeV2}, runner.ikeProbes)
				assert.NotNil(t, runner.dnsclient)
				assert.NotNil(t, runner.prober)
				assert.NotNil(t, runner.reports)
				assert.NotNil(t, runner.unique)
				assert.NotNil(t, runner.options.ResumeCfg)
				assert.Nil(t, runner.history)
			},
		},
		{
			name: "defaults applied on zero values",
			options: &Options{
				Host: []string{"example.com"},
			},
			wantErr: false,
			validate: func(t *testing.T, runner *Runner) {
				assert.Equal(t, DefaultRetriesProbe, runner.options.Retries)
				assert.Equal(t, DefaultRateProbe, runner.options.Rate)
			},
		},
		{
			name: "valid options with IPv6",
			options: &Options{
				Host:      []string{"example.com"},
				IPVersion: []string{"6"},
			},
			wantErr: false,
			validate: func(t *testing.T, runner *Runner) {
				assert.Contains(t, runner.options.IPVersion, "6")
				assert.Contains(t, runner.dnsclient.Options.QuestionTypes, dns.TypeAAAA)
			},
		},
		{
			name: "valid options with custom resolvers",
			options: &Options{
				Host:          []string{"example.com"},
				baseResolvers: []string{"8.8.8.8", "1.1.1.1"},
			},
			wantErr: false,
			validate: func(t *testing.T, runner *Runner) {
				assert.Equal(t, []string{"8.8.8.8", "1.1.1.1"}, runner.dnsclient.Options.BaseResolvers)
			},
		},
		{
			name: "version one probes only",
			options: &Options{
				Host:       []string{"example.com"},
				IkeVersion: "1",
			},
			wantErr: false,
			validate: func(t *testing.T, runner *Runner) {
				assert.Equal(t, []string{ProbeV1}, runner.ikeProbes)
			},
		},
		{
			name: "version two probes only",
			options: &Options{
				Host:       []string{"example.com"},
				IkeVersion: "2",
			},
			wantErr: false,
			validate: func(t *testing.T, runner *Runner) {
				assert.Equal(t, []string{ProbeV2}, runner.ikeProbes)
			},
		},
		{
			name: "invalid port",
			options: &Options{
				Host:  []string{"example.com"},
				Ports: "99999",
			},
			wantErr:     true,
			errContains: "port out of range",
		},
		{
			name: "port range expansion",
			options: &Options{
				Host:  []string{"example.com"},
				Ports: "500-510,4500",
			},
			wantErr: false,
			validate: func(t *testing.T, runner *Runner) {
				assert.Equal(t, 12, len(runner.ports))
			},
		},
		{
			name: "excluded IPs configuration",
			options: &Options{
				Host:       []string{"example.com"},
				ExcludeIps: "192.168.1.1,10.0.0.0/8",
			},
			wantErr: false,
			validate: func(t *testing.T, runner *Runner) {
				require.NotNil(t, runner.excludedIpsNP)
				excluded, err := runner.parseExcludedIps(runner.options)
				require.NoError(t, err)
				assert.Contains(t, excluded, "192.168.1.1")
				assert.Contains(t, excluded, "10.0.0.0/8")
				assert.False(t, runner.excludedIpsNP.ValidateAddress("192.168.1.1"))
				assert.False(t, runner.excludedIpsNP.ValidateAddress("10.20.30.40"))
				assert.True(t, runner.excludedIpsNP.ValidateAddress("192.168.2.5"))
			},
		},
		{
			name: "proxy configuration",
			options: &Options{
				Host:      []string{"example.com"},
				Proxy:     "127.0.0.1:1080",
				ProxyAuth: "user:pass",
			},
			wantErr: false,
			validate: func(t *testing.T, runner *Runner) {
				assert.NotNil(t, runner.prober)
			},
		},
		{
			name: "enable progress bar",
			options: &Options{
				Host:              []string{"example.com"},
				EnableProgressBar: true,
				MetricsPort:       63636,
			},
			wantErr: false,
			validate: func(t *testing.T, runner *Runner) {
				assert.NotNil(t, runner.stats)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, err := NewRunner(tt.options)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			require.NotNil(t, runner)
			require.NotNil(t, runner.options)

			if tt.validate != nil {
				tt.validate(t, runner)
			}

			require.NoError(t, runner.Close())
		})
	}
}

// TestRunnerClose tests the cleanup of resources
func TestRunnerClose(t *testing.T) {
	historyFile := filepath.Join(t.TempDir(), "history.json")
	options := &Options{
		Host:        []string{"example.com"},
		History:     true,
		HistoryFile: historyFile,
		HistoryTTL:  24,
	}

	runner, err := NewRunner(options)
	require.NoError(t, err)
	require.NotNil(t, runner)
	require.NotNil(t, runner.history)

	require.NoError(t, runner.history.Record("192.168.1.1:500/ike-v1", "192.168.1.1"))
	require.NoError(t, runner.Close())

	// pending history entries are flushed on close
	_, err = os.Stat(historyFile)
	assert.NoError(t, err)
}

// TestRunnerOnReceive tests the live result handling callback
func TestRunnerOnReceive(t *testing.T) {
	tests := []struct {
		name     string
		options  *Options
		input    *result.HostResult
		hostMap  map[string]string
		validate func(t *testing.T, runner *Runner, input *result.HostResult)
	}{
		{
			name: "simple probe result",
			options: &Options{
				IPVersion:     []string{"4"},
				Host:          []string{"example.com"},
				DisableStdout: true,
			},
			input: &result.HostResult{
				IP: "192.168.1.1",
				Reports: []*result.Report{
					{IP: "192.168.1.1", Port: 500, Probe: ProbeV1, Success: true, V1: &ike.V1Result{Success: true, Version: "1.0", ExchangeType: "Main Mode"}},
				},
			},
			hostMap: map[string]string{
				"192.168.1.1": "example.com",
			},
			validate: func(t *testing.T, runner *Runner, input *result.HostResult) {
				ipPort := net.JoinHostPort("192.168.1.1", "500")
				assert.True(t, runner.unique.Has(ipPort+"/"+ProbeV1))
			},
		},
		{
			name: "ipv6 result dropped when probing v4",
			options: &Options{
				IPVersion:     []string{"4"},
				Host:          []string{"example.com"},
				DisableStdout: true,
			},
			input: &result.HostResult{
				IP: "2001:db8::1",
				Reports: []*result.Report{
					{IP: "2001:db8::1", Port: 500, Probe: ProbeV1, Success: true},
				},
			},
			validate: func(t *testing.T, runner *Runner, input *result.HostResult) {
				ipPort := net.JoinHostPort("2001:db8::1", "500")
				assert.False(t, runner.unique.Has(ipPort+"/"+ProbeV1))
			},
		},
		{
			name: "json output",
			options: &Options{
				IPVersion:     []string{"4"},
				Host:          []string{"example.com"},
				JSON:          true,
				DisableStdout: true,
			},
			input: &result.HostResult{
				IP: "192.168.1.4",
				Reports: []*result.Report{
					{IP: "192.168.1.4", Port: 4500, Probe: ProbeV2, Success: true, V2: &ike.V2Result{Success: true, Version: "2.0"}},
				},
			},
			hostMap: map[string]string{
				"192.168.1.4": "vpn.example.com",
			},
			validate: func(t *testing.T, runner *Runner, input *result.HostResult) {
				ipPort := net.JoinHostPort("192.168.1.4", "4500")
				assert.True(t, runner.unique.Has(ipPort+"/"+ProbeV2))
			},
		},
		{
			name: "csv output",
			options: &Options{
				IPVersion:     []string{"4"},
				Host:          []string{"example.com"},
				CSV:           true,
				DisableStdout: true,
			},
			input: &result.HostResult{
				IP: "192.168.1.5",
				Reports: []*result.Report{
					{IP: "192.168.1.5", Port: 500, Probe: ProbeV1, Success: true, V1: &ike.V1Result{Success: true, Version: "1.0", ExchangeType: "Aggressive Mode"}},
				},
			},
			validate: func(t *testing.T, runner *Runner, input *result.HostResult) {
				ipPort := net.JoinHostPort("192.168.1.5", "500")
				assert.True(t, runner.unique.Has(ipPort+"/"+ProbeV1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, err := NewRunner(tt.options)
			require.NoError(t, err)

			for k, v := range tt.hostMap {
				require.NoError(t, runner.hostMap.Set(k, []byte(v)))
			}

			runner.onReceive(tt.input)
			tt.validate(t, runner, tt.input)

			require.NoError(t, runner.Close())
		})
	}
}

// TestRunnerHandleOutput tests the end of run output handling
func TestRunnerHandleOutput(t *testing.T) {
	v1Report := func(ip string, port int) *result.Report {
		return &result.Report{
			IP:      ip,
			Port:    port,
			Probe:   ProbeV1,
			Success: true,
			V1: &ike.V1Result{
				Host:         ip,
				Port:         port,
				Success:      true,
				Version:      "1.0",
				ExchangeType: "Main Mode",
			},
		}
	}

	t.Run("hostname recovered from tracked target", func(t *testing.T) {
		var (
			mutex   sync.Mutex
			results []*result.HostResult
		)
		options := &Options{
			Host:          []string{"example.com"},
			DisableStdout: true,
			OnResult: func(hostResult *result.HostResult) {
				mutex.Lock()
				defer mutex.Unlock()
				results = append(results, hostResult)
			},
		}
		runner, err := NewRunner(options)
		require.NoError(t, err)
		defer runner.Close()

		require.NoError(t, runner.hostMap.Set("192.168.1.10", []byte("vpn.example.com")))
		runner.reports.AddReport("192.168.1.10", v1Report("192.168.1.10", 500))

		runner.handleOutput(runner.reports)

		mutex.Lock()
		defer mutex.Unlock()
		require.Len(t, results, 1)
		assert.Equal(t, "vpn.example.com", results[0].Host)
		assert.Equal(t, "192.168.1.10", results[0].IP)
		require.Len(t, results[0].Reports, 1)
	})

	t.Run("bare ip target keeps the address", func(t *testing.T) {
		var results []*result.HostResult
		options := &Options{
			Host:          []string{"example.com"},
			DisableStdout: true,
			OnResult: func(hostResult *result.HostResult) {
				results = append(results, hostResult)
			},
		}
		runner, err := NewRunner(options)
		require.NoError(t, err)
		defer runner.Close()

		require.NoError(t, runner.hostMap.Set("192.168.1.11", []byte("ip")))
		runner.reports.AddReport("192.168.1.11", v1Report("192.168.1.11", 500))

		runner.handleOutput(runner.reports)

		require.Len(t, results, 1)
		assert.Equal(t, "192.168.1.11", results[0].Host)
	})

	t.Run("hostname recovered from host port metadata", func(t *testing.T) {
		var results []*result.HostResult
		options := &Options{
			Host:          []string{"example.com"},
			DisableStdout: true,
			OnResult: func(hostResult *result.HostResult) {
				results = append(results, hostResult)
			},
		}
		runner, err := NewRunner(options)
		require.NoError(t, err)
		defer runner.Close()

		require.NoError(t, runner.hostMap.Set("192.168.1.12:4500", []byte("gw.example.com:4500")))
		runner.reports.AddReport("192.168.1.12", v1Report("192.168.1.12", 4500))

		runner.handleOutput(runner.reports)

		require.Len(t, results, 1)
		assert.Equal(t, "gw.example.com", results[0].Host)
	})

	t.Run("text file output", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "out", "results.txt")
		options := &Options{
			Host:          []string{"example.com"},
			Output:        output,
			DisableStdout: true,
		}
		runner, err := NewRunner(options)
		require.NoError(t, err)
		defer runner.Close()

		require.NoError(t, runner.hostMap.Set("192.168.1.13", []byte("ip")))
		runner.reports.AddReport("192.168.1.13", v1Report("192.168.1.13", 500))

		runner.handleOutput(runner.reports)

		data, err := os.ReadFile(output)
		require.NoError(t, err)
		assert.Contains(t, string(data), "192.168.1.13:500 [ike-v1 1.0 Main Mode]")
	})

	t.Run("json file output", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "results.json")
		options := &Options{
			Host:          []string{"example.com"},
			Output:        output,
			JSON:          true,
			DisableStdout: true,
		}
		runner, err := NewRunner(options)
		require.NoError(t, err)
		defer runner.Close()

		require.NoError(t, runner.hostMap.Set("192.168.1.14", []byte("ip")))
		runner.reports.AddReport("192.168.1.14", v1Report("192.168.1.14", 500))

		runner.handleOutput(runner.reports)

		data, err := os.ReadFile(output)
		require.NoError(t, err)

		var row Result
		require.NoError(t, jsoniter.Unmarshal(data, &row))
		assert.Empty(t, row.Host)
		assert.Equal(t, "192.168.1.14", row.IP)
		assert.Equal(t, 500, row.Port)
		assert.Equal(t, ProbeV1, row.Probe)
		assert.Equal(t, "1.0 Main Mode", row.Status)
		require.NotNil(t, row.V1)
		assert.True(t, row.V1.Success)
	})

	t.Run("csv file output", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "results.csv")
		options := &Options{
			Host:          []string{"example.com"},
			Output:        output,
			CSV:           true,
			DisableStdout: true,
		}
		runner, err := NewRunner(options)
		require.NoError(t, err)
		defer runner.Close()

		require.NoError(t, runner.hostMap.Set("192.168.1.15", []byte("ip")))
		runner.reports.AddReport("192.168.1.15", v1Report("192.168.1.15", 4500))

		runner.handleOutput(runner.reports)

		data, err := os.ReadFile(output)
		require.NoError(t, err)
		assert.Contains(t, string(data), "timestamp,host,ip,port,probe,status")
		assert.Contains(t, string(data), ",192.168.1.15,4500,ike-v1,1.0 Main Mode")
	})
}

func TestRunnerPickIP(t *testing.T) {
	tests := []struct {
		name     string
		targets  []*net.IPNet
		index    int64
		expected string
	}{
		{
			name: "first ip in range",
			targets: []*net.IPNet{
				mustParseCIDR(t, "192.168.1.0/24"),
			},
			index:    0,
			expected: "192.168.1.0",
		},
		{
			name: "last ip in range",
			targets: []*net.IPNet{
				mustParseCIDR(t, "192.168.1.0/24"),
			},
			index:    255,
			expected: "192.168.1.255",
		},
		{
			name: "middle ip in range",
			targets: []*net.IPNet{
				mustParseCIDR(t, "192.168.1.0/24"),
			},
			index:    128,
			expected: "192.168.1.128",
		},
		{
			name: "index spans into the second range",
			targets: []*net.IPNet{
				mustParseCIDR(t, "10.0.0.0/30"),
				mustParseCIDR(t, "192.168.1.0/24"),
			},
			index:    4,
			expected: "192.168.1.0",
		},
	}

	options := &Options{
		Host:  []string{"192.168.1.0/24"},
		Ports: "500",
	}

	runner, err := NewRunner(options)
	require.NoError(t, err)
	defer runner.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			picked := runner.PickIP(tt.targets, tt.index)
			assert.Equal(t, tt.expected, picked)
		})
	}
}

func mustParseCIDR(t *testing.T, s string) *net.IPNet {
	_, ipnet, err := net.ParseCIDR(s)
	require.NoError(t, err)
	return ipnet
}

func TestRunnerPickPort(t *testing.T) {
	runner, err := NewRunner(&Options{Host: []string{"127.0.0.1"}})
	require.NoError(t, err)
	defer runner.Close()

	assert.Equal(t, 500, runner.PickPort(0))
	assert.Equal(t, 4500, runner.PickPort(1))
}

// TestRunnerGetIPs tests target preprocessing
func TestRunnerGetIPs(t *testing.T) {
	t.Run("cidr and host port targets", func(t *testing.T) {
		options := &Options{
			Host:          []string{"192.168.1.0/30", "10.0.0.1:8500"},
			DisableStdout: true,
		}
		runner, err := NewRunner(options)
		require.NoError(t, err)
		defer runner.Close()

		require.NoError(t, runner.Load())

		targets, targetsV4, targetsV6, targetsWithPort, err := runner.GetTargetIps(runner.getPreprocessedIps)
		require.NoError(t, err)
		require.Len(t, targetsV4, 1)
		assert.Equal(t, "192.168.1.0/30", targetsV4[0].String())
		assert.Empty(t, targetsV6)
		assert.Equal(t, []string{"10.0.0.1:8500"}, targetsWithPort)
		assert.Len(t, targets, 1)
	})

	t.Run("ipv6 targets dropped when probing v4 only", func(t *testing.T) {
		runner, err := NewRunner(&Options{Host: []string{"example.com"}})
		require.NoError(t, err)
		defer runner.Close()

		targets, targetsV4, targetsV6, _, err := runner.GetTargetIps(func() ([]*net.IPNet, []string) {
			return []*net.IPNet{mustParseCIDR(t, "2001:db8::/126")}, nil
		})
		require.NoError(t, err)
		assert.Empty(t, targets)
		assert.Empty(t, targetsV4)
		assert.Empty(t, targetsV6)
	})

	t.Run("no targets", func(t *testing.T) {
		runner, err := NewRunner(&Options{Host: []string{"example.com"}})
		require.NoError(t, err)
		defer runner.Close()

		_, _, _, _, err = runner.GetTargetIps(func() ([]*net.IPNet, []string) {
			return nil, nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no valid ipv4 or ipv6 targets were found")
	})
}

func TestRunnerGetHostsByIP(t *testing.T) {
	runner, err := NewRunner(&Options{Host: []string{"example.com"}})
	require.NoError(t, err)
	defer runner.Close()

	require.NoError(t, runner.hostMap.Set("10.0.0.1", []byte("a.example.com,b.example.com")))

	hosts, err := runner.getHostsByIP("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, hosts)

	// unknown ips fall back to the address itself
	hosts, err = runner.getHostsByIP("10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.2"}, hosts)
}

func TestIpMatchesIpVersions(t *testing.T) {
	assert.True(t, ipMatchesIpVersions("192.168.1.1", IPv4))
	assert.True(t, ipMatchesIpVersions("2001:db8::1", IPv6))
	assert.True(t, ipMatchesIpVersions("2001:db8::1", IPv4, IPv6))
	assert.False(t, ipMatchesIpVersions("192.168.1.1", IPv6))
	assert.False(t, ipMatchesIpVersions("2001:db8::1", IPv4))
	assert.False(t, ipMatchesIpVersions("192.168.1.1"))
}

// probeListener runs a local gateway answering every request with the
// reply built by respond until the test ends.
func probeListener(t *testing.T, respond func(request []byte) []byte) (string, int) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()

				request := make([]byte, 4096)
				n, err := conn.Read(request)
				if err != nil {
					return
				}
				if reply := respond(request[:n]); reply != nil {
					conn.Write(reply)
				}
			}(conn)
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// v1SAReply builds a main mode response accepting the first proposal,
// echoing the request's initiator cookie.
func v1SAReply(request []byte) []byte {
	payloads := isakmp.BuildSAProposal()
	h := isakmp.Header{
		ResponderCookie: [8]byte{0x61, 0x62, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68},
		NextPayload:     isakmp.PayloadSecurityAssociation,
		Version:         isakmp.Version(1, 0),
		ExchangeType:    isakmp.ExchangeMainMode,
		Length:          uint32(isakmp.HeaderLen + len(payloads)),
	}
	copy(h.InitiatorCookie[:], request[0:8])
	return append(h.Marshal(), payloads...)
}

// v2SAReply builds an IKE_SA_INIT response selecting the offered
// transforms, echoing the request's initiator SPI.
func v2SAReply(request []byte) []byte {
	payloads := ikev2.BuildSAPayload(ikev2.PayloadNone)
	h := ikev2.Header{
		ResponderSPI: [8]byte{0x61, 0x62, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68},
		NextPayload:  ikev2.PayloadSecurityAssociation,
		Version:      ikev2.Version20,
		ExchangeType: ikev2.ExchangeIKESAInit,
		Flags:        ikev2.FlagResponse,
		Length:       uint32(ikev2.HeaderLen + len(payloads)),
	}
	copy(h.InitiatorSPI[:], request[0:8])
	return append(h.Marshal(), payloads...)
}

func TestRunnerEnumeration(t *testing.T) {
	t.Run("detected ike v1 speaker", func(t *testing.T) {
		host, port := probeListener(t, v1SAReply)

		var (
			mutex   sync.Mutex
			results []*result.HostResult
		)
		options := &Options{
			Host:          []string{host},
			Ports:         strconv.Itoa(port),
			IkeVersion:    "1",
			Retries:       1,
			Rate:          10,
			Timeout:       3000,
			DisableStdout: true,
			OnResult: func(hostResult *result.HostResult) {
				mutex.Lock()
				defer mutex.Unlock()
				results = append(results, hostResult)
			},
		}

		runner, err := NewRunner(options)
		require.NoError(t, err)
		defer runner.Close()

		require.NoError(t, runner.RunEnumeration(context.Background()))

		mutex.Lock()
		defer mutex.Unlock()
		require.Len(t, results, 1)
		assert.Equal(t, host, results[0].IP)
		assert.Equal(t, host, results[0].Host)
		require.Len(t, results[0].Reports, 1)

		report := results[0].Reports[0]
		assert.Equal(t, ProbeV1, report.Probe)
		assert.True(t, report.Success)
		require.NotNil(t, report.V1)
		assert.Equal(t, "1.0", report.V1.Version)
		assert.Equal(t, "Main Mode", report.V1.ExchangeType)
		assert.Greater(t, report.V1.RTT, time.Duration(0))
		assert.Equal(t, 1, runner.reports.GetReportCount(host))
	})

	t.Run("detected ike v2 speaker", func(t *testing.T) {
		host, port := probeListener(t, v2SAReply)

		var (
			mutex   sync.Mutex
			results []*result.HostResult
		)
		options := &Options{
			Host:          []string{host},
			Ports:         strconv.Itoa(port),
			IkeVersion:    "2",
			Retries:       1,
			Rate:          10,
			Timeout:       3000,
			DisableStdout: true,
			OnResult: func(hostResult *result.HostResult) {
				mutex.Lock()
				defer mutex.Unlock()
				results = append(results, hostResult)
			},
		}

		runner, err := NewRunner(options)
		require.NoError(t, err)
		defer runner.Close()

		require.NoError(t, runner.RunEnumeration(context.Background()))

		mutex.Lock()
		defer mutex.Unlock()
		require.Len(t, results, 1)
		require.Len(t, results[0].Reports, 1)

		report := results[0].Reports[0]
		assert.Equal(t, ProbeV2, report.Probe)
		assert.True(t, report.Success)
		require.NotNil(t, report.V2)
		assert.Equal(t, "2.0", report.V2.Version)
		assert.Equal(t, "ENCR_AES_CBC", report.V2.Encr)
	})

	t.Run("target with port", func(t *testing.T) {
		host, port := probeListener(t, v1SAReply)

		var (
			mutex   sync.Mutex
			results []*result.HostResult
		)
		options := &Options{
			Host:          []string{net.JoinHostPort(host, strconv.Itoa(port))},
			IkeVersion:    "1",
			Retries:       1,
			Rate:          10,
			Timeout:       3000,
			DisableStdout: true,
			OnResult: func(hostResult *result.HostResult) {
				mutex.Lock()
				defer mutex.Unlock()
				results = append(results, hostResult)
			},
		}

		runner, err := NewRunner(options)
		require.NoError(t, err)
		defer runner.Close()

		require.NoError(t, runner.RunEnumeration(context.Background()))

		mutex.Lock()
		defer mutex.Unlock()
		require.Len(t, results, 1)
		assert.Equal(t, host, results[0].Host)
		assert.Equal(t, host, results[0].IP)
		require.Len(t, results[0].Reports, 1)
		assert.Equal(t, port, results[0].Reports[0].Port)
	})

	t.Run("closed port yields no report", func(t *testing.T) {
		port, err := freeport.GetFreeTCPPort("127.0.0.1")
		require.NoError(t, err)

		var (
			mutex   sync.Mutex
			results []*result.HostResult
		)
		options := &Options{
			Host:          []string{"127.0.0.1"},
			Ports:         strconv.Itoa(port.Port),
			IkeVersion:    "1",
			Retries:       1,
			Rate:          10,
			Timeout:       1000,
			DisableStdout: true,
			OnResult: func(hostResult *result.HostResult) {
				mutex.Lock()
				defer mutex.Unlock()
				results = append(results, hostResult)
			},
		}

		runner, err := NewRunner(options)
		require.NoError(t, err)
		defer runner.Close()

		require.NoError(t, runner.RunEnumeration(context.Background()))

		mutex.Lock()
		defer mutex.Unlock()
		assert.Empty(t, results)
		assert.True(t, runner.reports.IsEmpty())
	})

	t.Run("probe threshold skips saturated host", func(t *testing.T) {
		var answered int32
		host, port := probeListener(t, func(request []byte) []byte {
			atomic.AddInt32(&answered, 1)
			return v1SAReply(request)
		})

		options := &Options{
			Host:           []string{host},
			Ports:          strconv.Itoa(port),
			IkeVersion:     "1",
			ProbeThreshold: 1,
			Retries:        1,
			Rate:           10,
			Timeout:        1000,
			DisableStdout:  true,
		}

		runner, err := NewRunner(options)
		require.NoError(t, err)
		defer runner.Close()

		// a report from earlier in the run saturates the host
		runner.reports.AddReport(host, &result.Report{IP: host, Port: 1, Probe: ProbeV1, Success: true})

		require.NoError(t, runner.RunEnumeration(context.Background()))

		assert.Zero(t, atomic.LoadInt32(&answered))
		assert.True(t, runner.reports.HasSkipped(host))
		assert.Equal(t, 1, runner.reports.GetReportCount(host))
	})

	t.Run("no targets", func(t *testing.T) {
		runner, err := NewRunner(&Options{DisableStdout: true})
		require.NoError(t, err)
		defer runner.Close()

		err = runner.RunEnumeration(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no targets specified")
	})
}
