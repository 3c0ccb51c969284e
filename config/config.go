// Package config loads pipeline settings from the environment, with an
// optional .env file for local runs. Every value has a code default; the
// multicast groups and ports are configuration points, not protocol
// constants.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the settings for the processor and metricsd. Each binary
// reads the subset it cares about; feedsim takes command-line flags instead.
type Config struct {
	// Ingress (processor).
	IngressGroup     string
	IngressPort      int
	IngressMulticast bool

	// Egress (processor publishes, metricsd subscribes).
	EgressGroup string
	EgressPort  int
	EgressTTL   int

	// Core pipeline.
	RingCapacity      uint64
	SummaryEvery      uint64
	HeartbeatInterval time.Duration

	// Optional Kafka fan-out; empty brokers disable both the mirror and
	// the stats broadcaster.
	KafkaBrokers  []string
	MirrorTopic   string
	StatsTopic    string
	StatsInterval time.Duration

	// Metrics service.
	MetricsListenAddr string
}

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		IngressGroup:     envStr("MDPIPE_INGRESS_GROUP", "224.0.0.1"),
		IngressPort:      envInt("MDPIPE_INGRESS_PORT", 12345),
		IngressMulticast: envBool("MDPIPE_INGRESS_MULTICAST", true),

		EgressGroup: envStr("MDPIPE_EGRESS_GROUP", "224.0.0.1"),
		EgressPort:  envInt("MDPIPE_EGRESS_PORT", 12346),
		EgressTTL:   envInt("MDPIPE_EGRESS_TTL", 1),

		RingCapacity:      uint64(envInt("MDPIPE_RING_CAPACITY", 10000)),
		SummaryEvery:      uint64(envInt("MDPIPE_SUMMARY_EVERY", 10)),
		HeartbeatInterval: envDur("MDPIPE_HEARTBEAT_INTERVAL", 5*time.Second),

		KafkaBrokers:  envList("MDPIPE_KAFKA_BROKERS"),
		MirrorTopic:   envStr("MDPIPE_MIRROR_TOPIC", "mdpipe.egress"),
		StatsTopic:    envStr("MDPIPE_STATS_TOPIC", "mdpipe.stats"),
		StatsInterval: envDur("MDPIPE_STATS_INTERVAL", 2*time.Second),

		MetricsListenAddr: envStr("MDPIPE_METRICS_ADDR", ":8080"),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
