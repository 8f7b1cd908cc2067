// Command dhtserver runs a single DHT ring member: it writes its own
// address to a config file for others to join through, and if given a
// predecessor's config file, joins the ring by contacting it before
// serving. SIGINT/SIGTERM trigger a graceful leave rather than an
// abrupt exit.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cse473/overlay/dht"
	"github.com/cse473/overlay/internal/wire"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

func main() {
	myIP := flag.String("myIp", "127.0.0.1", "IP address to bind this server's socket to")
	numRoutes := flag.Int("numRoutes", 4, "max number of entries in the routing table")
	cfgFile := flag.String("cfgFile", "", "file to write this server's address to, for others to join through")
	predFile := flag.String("predFile", "", "config file of an existing ring member to join through")
	cacheOn := flag.Bool("cache", false, "enable the result cache")
	debug := flag.Bool("debug", false, "print every packet sent and received")
	flag.Parse()

	if *cfgFile == "" {
		fmt.Fprintln(os.Stderr, "dhtserver: -cfgFile is required")
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	node, err := dht.New(dht.Config{
		Logger:    logger,
		MyIP:      *myIP,
		NumRoutes: *numRoutes,
		CacheOn:   *cacheOn,
		Debug:     *debug,
	})
	if err != nil {
		logger.Error("building dht node", zap.Error(err))
		os.Exit(1)
	}

	if *predFile != "" {
		predAddr, err := readCfgFile(*predFile)
		if err != nil {
			logger.Error("reading predecessor config file", zap.Error(err))
			os.Exit(1)
		}
		err = retry.Do(
			func() error { return node.Join(predAddr) },
			retry.RetryIf(dht.ErrorIsRetryable),
			retry.Attempts(5),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				logger.Warn("retrying dht join", zap.Uint("attempt", n), zap.Error(err))
			}),
		)
		if err != nil {
			logger.Error("joining dht ring", zap.Error(err))
			os.Exit(1)
		}
	}

	if err := writeCfgFile(*cfgFile, node.LocalAddr()); err != nil {
		logger.Error("writing config file", zap.Error(err))
		os.Exit(1)
	}

	node.Start()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	logger.Info("leaving dht ring")
	node.RequestLeave()
}

// readCfgFile parses the "ip port" line a dhtserver writes for others
// to join through.
func readCfgFile(path string) (wire.Addr, error) {
	f, err := os.Open(path)
	if err != nil {
		return wire.Addr{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return wire.Addr{}, fmt.Errorf("dhtserver: %s is empty", path)
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) != 2 {
		return wire.Addr{}, fmt.Errorf("dhtserver: %s: expected \"ip port\", got %q", path, scanner.Text())
	}
	var port int
	if _, err := fmt.Sscanf(fields[1], "%d", &port); err != nil {
		return wire.Addr{}, fmt.Errorf("dhtserver: %s: bad port: %w", path, err)
	}
	return wire.Addr{IP: fields[0], Port: port}, nil
}

func writeCfgFile(path string, addr wire.Addr) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%s %d\n", addr.IP, addr.Port)), 0644)
}
