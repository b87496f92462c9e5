package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/armon/go-socks5"
	"github.com/projectdiscovery/ikex/internal/testutils"
	"github.com/projectdiscovery/ikex/pkg/result"
	"github.com/projectdiscovery/ikex/pkg/runner"
)

var libraryTestcases = map[string]testutils.TestCase{
	"sdk - one execution":       &ikexSingleLibrary{},
	"sdk - multiple executions": &ikexMultipleExecLibrary{},
	"sdk - probe with proxy":    &ikexWithSocks5{},
}

func writeTargetFile(host string, port int) (string, error) {
	testFile := "test.txt"
	target := net.JoinHostPort(host, strconv.Itoa(port))
	if err := os.WriteFile(testFile, []byte(target), 0644); err != nil {
		return "", err
	}
	return testFile, nil
}

type ikexSingleLibrary struct {
}

func (h *ikexSingleLibrary) Execute() error {
	host, port, closeGateway, err := testutils.RunIKEGateway("127.0.0.1:0")
	if err != nil {
		return err
	}
	defer closeGateway()

	testFile, err := writeTargetFile(host, port)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(testFile); err != nil {
			log.Printf("could not remove test file: %s\n", err)
		}
	}()

	var got bool

	options := runner.Options{
		HostsFile:     testFile,
		IkeVersion:    "1",
		DisableStdout: true,
		OnResult: func(hr *result.HostResult) {
			got = true
		},
	}

	ikexRunner, err := runner.NewRunner(&options)
	if err != nil {
		return err
	}
	defer func() {
		if err := ikexRunner.Close(); err != nil {
			log.Printf("could not close ikex runner: %s\n", err)
		}
	}()

	if err = ikexRunner.RunEnumeration(context.TODO()); err != nil {
		return err
	}
	if !got {
		return errors.New("no results found")
	}

	return nil
}

type ikexMultipleExecLibrary struct {
}

func (h *ikexMultipleExecLibrary) Execute() error {
	host, port, closeGateway, err := testutils.RunIKEGateway("127.0.0.1:0")
	if err != nil {
		return err
	}
	defer closeGateway()

	testFile, err := writeTargetFile(host, port)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(testFile); err != nil {
			log.Printf("could not remove test file: %s\n", err)
		}
	}()

	var got bool

	options := runner.Options{
		HostsFile:     testFile,
		IkeVersion:    "1",
		DisableStdout: true,
		OnResult: func(hr *result.HostResult) {
			got = true
		},
	}

	for i := 0; i < 3; i++ {
		ikexRunner, err := runner.NewRunner(&options)
		if err != nil {
			return err
		}

		if err = ikexRunner.RunEnumeration(context.TODO()); err != nil {
			return err
		}
		if !got {
			return errors.New("no results found")
		}
		if err := ikexRunner.Close(); err != nil {
			log.Printf("could not close ikex runner: %s\n", err)
		}
	}
	return nil
}

type ikexWithSocks5 struct{}

func (h *ikexWithSocks5) Execute() error {
	// Start local SOCKS5 proxy server with test:test credentials
	conf := &socks5.Config{
		Credentials: socks5.StaticCredentials{
			"test": "test",
		},
	}
	server, err := socks5.New(conf)
	if err != nil {
		return err
	}
	go func() {
		if err := server.ListenAndServe("tcp", "127.0.0.1:38401"); err != nil {
			log.Printf("could not serve socks5 proxy: %s\n", err)
		}
	}()

	host, port, closeGateway, err := testutils.RunIKEGateway("127.0.0.1:0")
	if err != nil {
		return err
	}
	defer closeGateway()

	testFile, err := writeTargetFile(host, port)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(testFile); err != nil {
			log.Printf("could not remove test file: %s\n", err)
		}
	}()

	var got bool

	options := runner.Options{
		HostsFile:     testFile,
		IkeVersion:    "1",
		Proxy:         "127.0.0.1:38401",
		ProxyAuth:     "test:test",
		Timeout:       10000,
		DisableStdout: true,
		OnResult: func(hr *result.HostResult) {
			got = true
		},
	}

	ikexRunner, err := runner.NewRunner(&options)
	if err != nil {
		return err
	}
	defer func() {
		if err := ikexRunner.Close(); err != nil {
			log.Printf("could not close ikex runner: %s\n", err)
		}
	}()

	if err = ikexRunner.RunEnumeration(context.TODO()); err != nil {
		return err
	}
	if !got {
		return errors.New("no results found")
	}

	return nil
}
