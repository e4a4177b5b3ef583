package broker

import (
	"fmt"

	"pulse/internal/config"
	"pulse/internal/logger"
)

func NewProducer(cfg config.KafkaConfig, serviceName string, log logger.Logger) (Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	return NewKafkaProducer(cfg, serviceName, log), nil
}

func NewConsumer(cfg config.KafkaConfig, serviceName string, log logger.Logger) (Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer group is required")
	}
	return NewKafkaConsumer(cfg, serviceName, log), nil
}
