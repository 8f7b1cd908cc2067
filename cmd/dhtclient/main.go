// Command dhtclient issues a single get or put against a DHT server.
// A request that times out is reissued with the same tag, up to a
// bounded number of attempts, so a request dropped in transit does
// not fail permanently.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/cse473/overlay/internal/wire"

	"github.com/avast/retry-go/v4"
	"github.com/fatih/color"
	"go.uber.org/zap"
)

func main() {
	myIP := flag.String("myIp", "127.0.0.1", "IP address to bind this client's socket to")
	serverCfgFile := flag.String("serverCfgFile", "", "config file written by the dhtserver to contact")
	cmd := flag.String("cmd", "", "get or put")
	key := flag.String("key", "", "key to look up or store")
	value := flag.String("value", "", "value to store (put only)")
	timeout := flag.Duration("timeout", 2*time.Second, "time to wait for a reply before retrying")
	attempts := flag.Uint("attempts", 3, "total number of attempts, counting the first, before giving up")
	flag.Parse()

	if *serverCfgFile == "" || (*cmd != "get" && *cmd != "put") {
		fmt.Fprintln(os.Stderr, "usage: dhtclient -serverCfgFile=FILE -cmd=get|put [-key=K] [-value=V]")
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	serverAddr, err := readServerCfgFile(*serverCfgFile)
	if err != nil {
		logger.Error("reading server config file", zap.Error(err))
		os.Exit(1)
	}
	udpAddr, err := serverAddr.UDPAddr()
	if err != nil {
		logger.Error("resolving server address", zap.Error(err))
		os.Exit(1)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(*myIP), Port: 0})
	if err != nil {
		logger.Error("opening socket", zap.Error(err))
		os.Exit(1)
	}
	defer conn.Close()

	req := &wire.DHTPacket{Tag: 12345, TTL: 100, Key: *key}
	switch *cmd {
	case "get":
		req.Type = wire.DHTGet
	case "put":
		req.Type = wire.DHTPut
		req.Value = *value
		req.HasValue = *value != ""
	}

	var resp *wire.DHTPacket
	err = retry.Do(
		func() error {
			resp, err = roundTrip(conn, udpAddr, req, *timeout)
			return err
		},
		retry.Attempts(*attempts),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("no reply, reissuing with the same tag", zap.Uint("attempt", n), zap.Error(err))
		}),
	)
	if err != nil {
		logger.Error("request failed", zap.Error(err))
		os.Exit(1)
	}

	printResponse(resp)
}

func printResponse(resp *wire.DHTPacket) {
	switch resp.Type {
	case wire.DHTSuccess:
		color.New(color.FgGreen, color.Bold).Println("success")
	case wire.DHTNoMatch:
		color.New(color.FgYellow, color.Bold).Println("no match")
	case wire.DHTFailure:
		color.New(color.FgRed, color.Bold).Println("failure: " + resp.Reason)
	}
	fmt.Println(resp.Encode())
}

func roundTrip(conn *net.UDPConn, to *net.UDPAddr, req *wire.DHTPacket, timeout time.Duration) (*wire.DHTPacket, error) {
	if _, err := conn.WriteToUDP([]byte(req.Encode()), to); err != nil {
		return nil, fmt.Errorf("dhtclient: sending request: %w", err)
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	buf := make([]byte, 64*1024)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil, fmt.Errorf("dhtclient: waiting for reply: %w", err)
	}
	return wire.DecodeDHTPacket(string(buf[:n]))
}

func readServerCfgFile(path string) (wire.Addr, error) {
	f, err := os.Open(path)
	if err != nil {
		return wire.Addr{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return wire.Addr{}, fmt.Errorf("dhtclient: %s is empty", path)
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) != 2 {
		return wire.Addr{}, fmt.Errorf("dhtclient: %s: expected \"ip port\", got %q", path, scanner.Text())
	}
	var port int
	if _, err := fmt.Sscanf(fields[1], "%d", &port); err != nil {
		return wire.Addr{}, fmt.Errorf("dhtclient: %s: bad port: %w", path, err)
	}
	return wire.Addr{IP: fields[0], Port: port}, nil
}
