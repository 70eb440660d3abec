package kafka

import (
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ProducerConfig configures NewProducer. Zero fields take the defaults
// noted on each field.
type ProducerConfig struct {
	Brokers []string
	// RequiredAcks is -1 (all) or 1 (leader). Zero means -1.
	RequiredAcks int
	// Compression is none, gzip, snappy (default), lz4 or zstd.
	Compression  string
	MaxAttempts  int           // 3
	BatchSize    int           // 1: reports go out as soon as they are written
	BatchBytes   int           // 1 MiB
	BatchTimeout time.Duration // 50ms
	WriteTimeout time.Duration // 10s
	ReadTimeout  time.Duration // 10s
	Async        bool
	// HashByKey keeps messages with the same key (series code) on one
	// partition so consumers see them in order.
	HashByKey bool
}

func (c ProducerConfig) withDefaults() ProducerConfig {
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.BatchBytes <= 0 {
		c.BatchBytes = 1 << 20
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 50 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	return c
}

func compressionCodec(name string) (kafka.Compression, error) {
	switch name {
	case "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("unknown compression %q", name)
}
