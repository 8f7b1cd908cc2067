// Command rdt is a small demo/test harness for the Go-Back-N
// transport: it reads lines from stdin, sends them reliably to a
// peer, and prints whatever it receives.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cse473/overlay/internal/substrate"
	"github.com/cse473/overlay/rdt"

	"go.uber.org/zap"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:9000", "local UDP address")
	peer := flag.String("peer", "127.0.0.1:9001", "peer UDP address")
	wSize := flag.Int("wsize", 8, "go-back-n window size")
	timeout := flag.Duration("timeout", 200*time.Millisecond, "retransmission timeout")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	sub, err := substrate.NewUDP(*listen, []string{*peer})
	if err != nil {
		logger.Error("opening substrate", zap.Error(err))
		os.Exit(1)
	}
	defer sub.Close()

	tr, err := rdt.New(rdt.Config{
		Logger:     logger,
		Substrate:  sub,
		WindowSize: *wSize,
		Timeout:    *timeout,
	})
	if err != nil {
		logger.Error("building transport", zap.Error(err))
		os.Exit(1)
	}
	tr.Start()
	defer tr.Stop()

	go func() {
		for {
			payload := tr.Receive()
			fmt.Println(string(payload))
		}
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			tr.Send([]byte(scanner.Text()))
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
}
