// feedsim publishes a simulated Level 2/3 market-data feed to the ingress
// multicast group, for exercising the processor without an exchange link.
package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"mdpipe/domain/event"
)

func main() {
	var (
		group    = flag.String("group", "224.0.0.1", "destination multicast group")
		port     = flag.Int("port", 12345, "destination port")
		rate     = flag.Int("rate", 100, "events per second")
		symbols  = flag.String("symbols", "AAPL,MSFT,GOOGL,AMZN,TSLA", "comma-separated symbols")
		duration = flag.Duration("duration", 0, "how long to run (0 = until interrupted)")
		seed     = flag.Int64("seed", 0, "rng seed (0 = time-based)")
	)
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	if *rate <= 0 {
		log.Fatal("rate must be positive", zap.Int("rate", *rate))
	}
	ip := net.ParseIP(*group)
	if ip == nil {
		log.Fatal("invalid group address", zap.String("group", *group))
	}
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: ip, Port: *port})
	if err != nil {
		log.Fatal("dial failed", zap.Error(err))
	}
	defer conn.Close()
	if ip.IsMulticast() {
		if err := ipv4.NewPacketConn(conn).SetMulticastTTL(1); err != nil {
			log.Fatal("set ttl failed", zap.Error(err))
		}
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	sim := NewSimulator(strings.Split(*symbols, ","), *seed)

	log.Info("feed simulator started",
		zap.String("target", conn.RemoteAddr().String()),
		zap.Int("rate", *rate),
		zap.String("symbols", *symbols),
		zap.Int64("seed", *seed))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	send := func(ev *event.BookEvent) bool {
		payload, err := event.Encode(ev)
		if err != nil {
			log.Error("encode failed", zap.Error(err))
			return false
		}
		if _, err := conn.Write(payload); err != nil {
			log.Warn("send failed", zap.Error(err))
			return false
		}
		return true
	}

	for _, ev := range sim.SessionOpen() {
		send(&ev)
	}

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	var sent uint64
	for {
		select {
		case <-sigs:
			log.Info("feed simulator stopped", zap.Uint64("events", sent))
			return
		case <-deadline:
			log.Info("feed simulator finished", zap.Uint64("events", sent))
			return
		case <-ticker.C:
			ev := sim.Next()
			if send(&ev) {
				sent++
				if sent%1000 == 0 {
					log.Info("progress", zap.Uint64("events", sent))
				}
			}
		}
	}
}
