package main

import (
	"context"
	"log"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/armon/go-socks5"
	"github.com/projectdiscovery/ikex/internal/testutils"
	"github.com/projectdiscovery/ikex/pkg/result"
	"github.com/projectdiscovery/ikex/pkg/runner"
)

func main() {
	conf := &socks5.Config{
		Credentials: socks5.StaticCredentials{
			"test": "test",
		},
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			log.Println("dialing", network, addr)
			return net.Dial(network, addr)
		},
	}
	server, err := socks5.New(conf)
	if err != nil {
		panic(err)
	}
	go func() {
		if err = server.ListenAndServe("tcp", "127.0.0.1:38401"); err != nil {
			panic(err)
		}
	}()

	host, port, closeGateway, err := testutils.RunIKEGateway("127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	defer closeGateway()

	testFile := "test.txt"
	err = os.WriteFile(testFile, []byte(net.JoinHostPort(host, strconv.Itoa(port))), 0644)
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(testFile)

	var got bool
	var mu sync.Mutex

	options := runner.Options{
		HostsFile:  testFile,
		IkeVersion: "1",
		Proxy:      "127.0.0.1:38401",
		ProxyAuth:  "test:test",
		Timeout:    10000,
		OnResult: func(hr *result.HostResult) {
			mu.Lock()
			got = true
			mu.Unlock()
		},
	}

	ikexRunner, err := runner.NewRunner(&options)
	if err != nil {
		panic(err)
	}
	defer ikexRunner.Close()

	if err = ikexRunner.RunEnumeration(context.TODO()); err != nil {
		panic(err)
	}

	mu.Lock()
	if !got {
		panic("no results found")
	}
	mu.Unlock()
}
