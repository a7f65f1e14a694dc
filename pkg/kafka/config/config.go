package kafka_config

import "time"

// Config holds the tunables for the kafka-go writer and reader wrappers.
type Config struct {
	Brokers []string

	ProducerMaxAttempts  int
	ProducerBatchTimeout time.Duration
	ProducerRequireAcks  int // -1 = all, 0 = none, 1 = leader only
	ProducerCompression  string

	ConsumerStartOffset    int64 // -1 = newest, -2 = oldest
	ConsumerMinBytes       int
	ConsumerMaxBytes       int
	ConsumerMaxWait        time.Duration
	ConsumerCommitInterval time.Duration
}

// Default returns production-safe settings for the given brokers.
func Default(brokers []string) *Config {
	return &Config{
		Brokers: brokers,

		ProducerMaxAttempts:  3,
		ProducerBatchTimeout: 10 * time.Millisecond,
		ProducerRequireAcks:  -1,
		ProducerCompression:  "snappy",

		ConsumerStartOffset:    -2,
		ConsumerMinBytes:       1,
		ConsumerMaxBytes:       10 * 1024 * 1024,
		ConsumerMaxWait:        500 * time.Millisecond,
		ConsumerCommitInterval: time.Second,
	}
}
