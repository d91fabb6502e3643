package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lvdashuaibi/slackpoll/config"
	"github.com/lvdashuaibi/slackpoll/internal/model"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
	ctx    context.Context
}

func NewProducer() (*Producer, error) {
	ctx := context.Background()

	// 校验 broker 可达，启动期失败直接暴露
	conn, err := kafka.DialLeader(ctx, "tcp", config.AppConfig.Kafka.Brokers[0], config.AppConfig.Kafka.Topic, 0)
	if err != nil {
		return nil, fmt.Errorf("连接Kafka失败: %w", err)
	}
	conn.Close()

	// 使用Hash分区器，同一投票人的事件进入同一分区
	writer := &kafka.Writer{
		Addr:     kafka.TCP(config.AppConfig.Kafka.Brokers...),
		Topic:    config.AppConfig.Kafka.Topic,
		Balancer: &kafka.Hash{},
	}

	return &Producer{
		writer: writer,
		ctx:    ctx,
	}, nil
}

// SendVoteEvent 发送投票事件到Kafka
func (p *Producer) SendVoteEvent(event *model.VoteEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化投票事件失败: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.SlackUserID),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(p.ctx, msg); err != nil {
		return fmt.Errorf("发送投票事件失败: %w", err)
	}
	return nil
}

// Close 关闭Kafka生产者
func (p *Producer) Close() error {
	return p.writer.Close()
}
