package main

import (
	"fmt"
	"strconv"

	"github.com/projectdiscovery/ikex/internal/testutils"
)

var cliTestcases = map[string]testutils.TestCase{
	"cli with local gateway":  &cliWithLocalGateway{},
	"cli with json flag":      &cliWithJSONFlag{},
	"cli with closed service": &cliWithClosedService{},
}

type cliWithLocalGateway struct {
}

func (h *cliWithLocalGateway) Execute() error {
	host, port, closeGateway, err := testutils.RunIKEGateway("127.0.0.1:0")
	if err != nil {
		return err
	}
	defer closeGateway()

	results, err := testutils.RunIkexAndGetResults(host, debug, "-p", strconv.Itoa(port), "-ike-version", "1")
	if err != nil {
		return err
	}

	if len(results) != 1 {
		return errIncorrectResultsCount(results)
	}

	return nil
}

type cliWithJSONFlag struct {
}

func (h *cliWithJSONFlag) Execute() error {
	host, port, closeGateway, err := testutils.RunIKEGateway("127.0.0.1:0")
	if err != nil {
		return err
	}
	defer closeGateway()

	results, err := testutils.RunIkexAndGetResults(host, debug, "-p", strconv.Itoa(port), "-ike-version", "1", "-json")
	if err != nil {
		return err
	}

	if len(results) != 1 {
		return errIncorrectResultsCount(results)
	}

	for _, result := range results {
		if result == "" || result[0] != '{' {
			return fmt.Errorf("not a json line: %s", result)
		}
	}

	return nil
}

type cliWithClosedService struct {
}

func (h *cliWithClosedService) Execute() error {
	// nothing listens on the port once the gateway is released
	host, port, closeGateway, err := testutils.RunIKEGateway("127.0.0.1:0")
	if err != nil {
		return err
	}
	closeGateway()

	results, err := testutils.RunIkexAndGetResults(host, debug, "-p", strconv.Itoa(port), "-ike-version", "1", "-timeout", "2000")
	if err != nil {
		return err
	}

	if len(results) != 0 {
		return errIncorrectResultsCount(results)
	}

	return nil
}
