// Command overlayrouter wires a Forwarder and a Router together over a
// real UDP substrate and runs them as a single process. Each process
// in an overlay is one line-oriented topology file away from joining
// the mesh: its own overlay IP and UDP listen address, the prefixes it
// originates, and an ordered list of neighbors, one per link.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cse473/overlay/forwarder"
	"github.com/cse473/overlay/internal/substrate"
	"github.com/cse473/overlay/internal/wire"
	"github.com/cse473/overlay/router"

	"go.uber.org/zap"
)

// topology is the parsed form of a cfgFile:
//
//	myIp 1.2.3.4
//	listen 127.0.0.1:9000
//	prefix 1.2.0.0/16
//	neighbor 1.2.3.5 127.0.0.1:9001 0.01
//	neighbor 1.2.3.6 127.0.0.1:9002 0.01
//
// neighbor lines are listed in link order: the first neighbor line is
// link 0, the second is link 1, and so on, matching the order
// substrate.NewUDP wires its peers in.
type topology struct {
	myIP       uint32
	listenAddr string
	prefixes   []wire.Prefix
	neighbors  []router.Neighbor
	peerAddrs  []string
}

func parseTopology(path string) (*topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t := &topology{}
	sawMyIP, sawListen := false, false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "myIp":
			if len(fields) != 2 {
				return nil, fmt.Errorf("overlayrouter: malformed myIp line %q", line)
			}
			ip, err := wire.ParseIP(fields[1])
			if err != nil {
				return nil, fmt.Errorf("overlayrouter: %w", err)
			}
			t.myIP = ip
			sawMyIP = true
		case "listen":
			if len(fields) != 2 {
				return nil, fmt.Errorf("overlayrouter: malformed listen line %q", line)
			}
			t.listenAddr = fields[1]
			sawListen = true
		case "prefix":
			if len(fields) != 2 {
				return nil, fmt.Errorf("overlayrouter: malformed prefix line %q", line)
			}
			pfx, err := wire.ParsePrefix(fields[1])
			if err != nil {
				return nil, fmt.Errorf("overlayrouter: %w", err)
			}
			t.prefixes = append(t.prefixes, pfx)
		case "neighbor":
			if len(fields) != 4 {
				return nil, fmt.Errorf("overlayrouter: malformed neighbor line %q", line)
			}
			ip, err := wire.ParseIP(fields[1])
			if err != nil {
				return nil, fmt.Errorf("overlayrouter: %w", err)
			}
			delay, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return nil, fmt.Errorf("overlayrouter: malformed neighbor delay %q", line)
			}
			t.neighbors = append(t.neighbors, router.Neighbor{IP: ip, Delay: delay})
			t.peerAddrs = append(t.peerAddrs, fields[2])
		default:
			return nil, fmt.Errorf("overlayrouter: unrecognized topology line %q", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawMyIP {
		return nil, fmt.Errorf("overlayrouter: %s is missing a myIp line", path)
	}
	if !sawListen {
		return nil, fmt.Errorf("overlayrouter: %s is missing a listen line", path)
	}
	return t, nil
}

func main() {
	cfgFile := flag.String("cfgFile", "", "topology config file (see package doc)")
	debug := flag.Bool("debug", false, "print every packet sent/received and the routing/forwarding tables on change")
	helloInterval := flag.Duration("helloInterval", time.Second, "interval between hello probes")
	advertInterval := flag.Duration("advertInterval", 10*time.Second, "interval between path-vector advertisements")
	enableFAdvert := flag.Bool("fadvert", true, "advertise link failures to neighbors")
	flag.Parse()

	if *cfgFile == "" {
		fmt.Fprintln(os.Stderr, "overlayrouter: -cfgFile is required")
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	topo, err := parseTopology(*cfgFile)
	if err != nil {
		logger.Error("reading topology config", zap.Error(err))
		os.Exit(1)
	}

	sub, err := substrate.NewUDP(topo.listenAddr, topo.peerAddrs)
	if err != nil {
		logger.Error("opening substrate", zap.Error(err))
		os.Exit(1)
	}
	defer sub.Close()

	fwdr, err := forwarder.New(forwarder.Config{
		Logger:    logger,
		MyIP:      topo.myIP,
		Substrate: sub,
		NumLinks:  len(topo.neighbors),
		Debug:     *debug,
	})
	if err != nil {
		logger.Error("building forwarder", zap.Error(err))
		os.Exit(1)
	}
	fwdr.Start()
	defer fwdr.Stop()

	rtr, err := router.New(router.Config{
		Logger:              logger,
		MyIP:                topo.myIP,
		Fwdr:                fwdr,
		Prefixes:            topo.prefixes,
		Neighbors:           topo.neighbors,
		HelloInterval:       *helloInterval,
		AdvertInterval:      *advertInterval,
		Debug:               *debug,
		EnableFailureAdvert: *enableFAdvert,
	})
	if err != nil {
		logger.Error("building router", zap.Error(err))
		os.Exit(1)
	}
	rtr.Start()
	defer rtr.Stop()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
}
