package output

import (
	"fmt"
	"sync"
	"time"

	"addrstats/internal/config"
	"addrstats/internal/errors"
	"addrstats/pkg/models"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// AsyncKafkaOutput 异步Kafka输出器，适合 API 服务等高并发场景
type AsyncKafkaOutput struct {
	logger   *logrus.Logger
	topic    string
	producer sarama.AsyncProducer
	wg       sync.WaitGroup

	stateMu sync.RWMutex
	closed  bool

	// 统计信息
	mu         sync.RWMutex
	sentCount  int64
	errorCount int64
}

// NewAsyncKafkaOutput 创建异步Kafka输出器
func NewAsyncKafkaOutput(cfg *config.KafkaConfig, logger *logrus.Logger) (*AsyncKafkaOutput, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("Kafka输出需要至少一个broker")
	}
	logger.Infof("初始化异步Kafka输出器，brokers: %v", cfg.Brokers)

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, NewAsyncProducerConfig())
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeKafka, errors.SeverityHigh, "KAFKA_CONNECT_FAILED", "创建异步Kafka生产者失败")
	}

	return NewAsyncKafkaOutputWithProducer(producer, cfg.Topic, logger), nil
}

// NewAsyncProducerConfig 异步生产者配置
func NewAsyncProducerConfig() *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Timeout = 3 * time.Second
	saramaConfig.Version = sarama.V2_8_0_0

	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Flush.Messages = 100
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.ChannelBufferSize = 1000
	return saramaConfig
}

// NewAsyncKafkaOutputWithProducer 使用已有生产者创建输出器并启动回执处理
func NewAsyncKafkaOutputWithProducer(producer sarama.AsyncProducer, topic string, logger *logrus.Logger) *AsyncKafkaOutput {
	k := &AsyncKafkaOutput{
		logger:   logger,
		topic:    topicOrDefault(topic),
		producer: producer,
	}

	k.wg.Add(2)
	go k.handleSuccesses()
	go k.handleErrors()

	logger.Info("异步Kafka生产者已创建并启动")
	return k
}

// handleSuccesses 处理成功发送的消息，生产者关闭后退出
func (k *AsyncKafkaOutput) handleSuccesses() {
	defer k.wg.Done()
	for msg := range k.producer.Successes() {
		k.mu.Lock()
		k.sentCount++
		k.mu.Unlock()

		k.logger.Debugf("消息成功发送到 topic %s, partition %d, offset %d", msg.Topic, msg.Partition, msg.Offset)
	}
}

// handleErrors 处理发送失败的消息
func (k *AsyncKafkaOutput) handleErrors() {
	defer k.wg.Done()
	for perr := range k.producer.Errors() {
		k.mu.Lock()
		k.errorCount++
		k.mu.Unlock()

		k.logger.Errorf("Kafka发送失败: topic=%s, error=%v", perr.Msg.Topic, perr.Err)
	}
}

// WriteAnalytics 异步发送分析结果，输入通道满时立即返回错误
func (k *AsyncKafkaOutput) WriteAnalytics(a *models.AddressAnalytics) error {
	if a == nil {
		return nil
	}

	msg, err := newAnalyticsMessage(k.topic, a)
	if err != nil {
		return err
	}

	k.stateMu.RLock()
	defer k.stateMu.RUnlock()
	if k.closed {
		return fmt.Errorf("Kafka生产者已关闭")
	}

	select {
	case k.producer.Input() <- msg:
		return nil
	default:
		return errors.NewAppError(errors.ErrorTypeKafka, errors.SeverityHigh, "KAFKA_PRODUCE_FAILED", "Kafka生产者输入通道已满").
			WithAddress(a.Address.Hex())
	}
}

// GetStats 获取统计信息
func (k *AsyncKafkaOutput) GetStats() (int64, int64) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.sentCount, k.errorCount
}

// Close 关闭生产者，等待缓冲中的消息发送完成
func (k *AsyncKafkaOutput) Close() error {
	k.stateMu.Lock()
	if k.closed {
		k.stateMu.Unlock()
		return nil
	}
	k.closed = true
	k.stateMu.Unlock()

	k.logger.Info("关闭异步Kafka生产者...")
	err := k.producer.Close()
	if err != nil {
		k.logger.Errorf("关闭Kafka生产者失败: %v", err)
	}
	k.wg.Wait()

	sent, failed := k.GetStats()
	k.logger.Infof("异步Kafka生产者已关闭，总计发送: %d，错误: %d", sent, failed)
	return err
}
