package testutils

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"

	"github.com/projectdiscovery/ikex/pkg/isakmp"
)

// RunIkexAndGetResults returns a list of results for a target
func RunIkexAndGetResults(target string, debug bool, extra ...string) ([]string, error) {
	cmd := exec.Command("bash", "-c")
	cmdLine := fmt.Sprintf(`echo %s | %s `, target, "./ikex")
	cmdLine += strings.Join(extra, " ")
	if debug {
		cmdLine += " -debug"
		cmd.Stderr = os.Stderr
	} else {
		cmdLine += " -silent"
	}
	cmd.Args = append(cmd.Args, cmdLine)
	data, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	var parts []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			parts = append(parts, line)
		}
	}
	return parts, nil
}

// TestCase is a single integration test case
type TestCase interface {
	// Execute executes a test case and returns any errors if occurred
	Execute() error
}

// RunIKEGateway starts a local gateway that answers every request with
// a main mode SA reply. It returns the listen host and port plus a
// function releasing the listener.
func RunIKEGateway(address string) (string, int, func(), error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return "", 0, nil, err
	}

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
				if err != nil || n < isakmp.HeaderLen {
					return
				}

				payloads := isakmp.BuildSAProposal()
				h := isakmp.Header{
					ResponderCookie: [8]byte{0xde, 0xad, 0xbe, 0xef, 0xde, 0xad, 0xbe, 0xef},
					NextPayload:     isakmp.PayloadSecurityAssociation,
					Version:         isakmp.Version(1, 0),
					ExchangeType:    isakmp.ExchangeMainMode,
					Length:          uint32(isakmp.HeaderLen + len(payloads)),
				}
				copy(h.InitiatorCookie[:], request[0:8])
				conn.Write(append(h.Marshal(), payloads...))
			}(conn)
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, func() { listener.Close() }, nil
}
