package runner

const (
	// DefaultPortsIKE are the ports probed when none are given,
	// isakmp and ipsec-nat-t.
	DefaultPortsIKE = "500,4500"

	DefaultProbeTimeout = 10000
	DefaultRateProbe    = 500
	DefaultRetriesProbe = 1

	DefaultHistoryTTLHours = 24

	DefaultMetricsPort = 63636
)
