package output

import (
	"encoding/json"
	"fmt"
	"time"

	"addrstats/internal/config"
	"addrstats/internal/errors"
	"addrstats/pkg/models"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// DefaultTopic 分析结果默认 topic
const DefaultTopic = "address_analytics"

// KafkaOutput Kafka输出器
type KafkaOutput struct {
	logger   *logrus.Logger
	topic    string
	producer sarama.SyncProducer
}

// NewKafkaOutput 创建Kafka输出器
func NewKafkaOutput(cfg *config.KafkaConfig, logger *logrus.Logger) (*KafkaOutput, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("Kafka输出需要至少一个broker")
	}
	logger.Infof("初始化Kafka输出器，brokers: %v，topic: %s", cfg.Brokers, topicOrDefault(cfg.Topic))

	// 配置Kafka生产者
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Timeout = 5 * time.Second
	saramaConfig.Version = sarama.V2_8_0_0

	// 创建同步生产者
	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeKafka, errors.SeverityHigh, "KAFKA_CONNECT_FAILED", "创建Kafka生产者失败")
	}

	logger.Info("Kafka生产者已创建")
	return NewKafkaOutputWithProducer(producer, cfg.Topic, logger), nil
}

// NewKafkaOutputWithProducer 使用已有生产者创建输出器
func NewKafkaOutputWithProducer(producer sarama.SyncProducer, topic string, logger *logrus.Logger) *KafkaOutput {
	return &KafkaOutput{
		logger:   logger,
		topic:    topicOrDefault(topic),
		producer: producer,
	}
}

func topicOrDefault(topic string) string {
	if topic == "" {
		return DefaultTopic
	}
	return topic
}

// newAnalyticsMessage 以地址为 key 构造消息，同一地址的结果落在同一分区
func newAnalyticsMessage(topic string, a *models.AddressAnalytics) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeSerialization, errors.SeverityMedium, "SERIALIZATION_FAILED", "序列化分析结果失败")
	}

	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(a.Address.Hex()),
		Value: sarama.ByteEncoder(data),
	}, nil
}

// WriteAnalytics 发送分析结果
func (k *KafkaOutput) WriteAnalytics(a *models.AddressAnalytics) error {
	if a == nil {
		return nil
	}

	msg, err := newAnalyticsMessage(k.topic, a)
	if err != nil {
		return err
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeKafka, errors.SeverityHigh, "KAFKA_PRODUCE_FAILED", "发送消息到Kafka失败").
			WithAddress(a.Address.Hex())
	}

	k.logger.Debugf("成功发送分析结果到Kafka topic '%s' (partition: %d, offset: %d): %s",
		k.topic, partition, offset, a.Address.Hex())
	return nil
}

// Close 关闭Kafka连接
func (k *KafkaOutput) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}
