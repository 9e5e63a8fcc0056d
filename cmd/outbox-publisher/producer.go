package main

import (
	"errors"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/angelmondragon/phoneshop-backend/pkg/config"
)

// producerConfig waits for every in-sync replica so a row is only marked
// published once the broker can no longer lose it.
func producerConfig(cfg config.KafkaConfig, timeout time.Duration) *sarama.Config {
	sc := sarama.NewConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	if timeout > 0 {
		sc.Producer.Timeout = timeout
	}
	return sc
}

func brokerList(cfg config.KafkaConfig) []string {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func newProducer(cfg config.KafkaConfig, timeout time.Duration) (sarama.SyncProducer, error) {
	brokers := brokerList(cfg)
	if len(brokers) == 0 {
		return nil, errors.New(config.EnvKafkaBrokers + " is required")
	}
	return sarama.NewSyncProducer(brokers, producerConfig(cfg, timeout))
}
