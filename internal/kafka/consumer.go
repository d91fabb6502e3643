package kafka

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/lvdashuaibi/slackpoll/config"
	"github.com/lvdashuaibi/slackpoll/internal/model"
	"github.com/segmentio/kafka-go"
)

// Consumer 投票事件消费者：固定数量的 worker，每个持有独立 reader。
// 入站请求先被确认，事件在这里跑完整个落库与消息更新流程。
type Consumer struct {
	readers    []*kafka.Reader
	ctx        context.Context
	cancel     context.CancelFunc
	numWorkers int
	wg         sync.WaitGroup
}

type MessageHandler func(event *model.VoteEvent) error

func NewConsumer() (*Consumer, error) {
	ctx, cancel := context.WithCancel(context.Background())
	numWorkers := config.AppConfig.Server.Workers

	// 获取Kafka主题的分区数量
	conn, err := kafka.DialLeader(ctx, "tcp", config.AppConfig.Kafka.Brokers[0], config.AppConfig.Kafka.Topic, 0)
	if err != nil {
		cancel()
		return nil, err
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		cancel()
		return nil, err
	}

	var topicPartitions []int
	for _, p := range partitions {
		if p.Topic == config.AppConfig.Kafka.Topic {
			topicPartitions = append(topicPartitions, p.ID)
		}
	}

	log.Printf("检测到Kafka主题 %s 有 %d 个分区", config.AppConfig.Kafka.Topic, len(topicPartitions))

	readers := make([]*kafka.Reader, 0, numWorkers)

	// 分区数量小于 worker 数量时收缩 worker 池
	if len(topicPartitions) > 0 && len(topicPartitions) < numWorkers {
		log.Printf("分区数量(%d)小于期望的worker数量(%d)，将使用%d个worker消费",
			len(topicPartitions), numWorkers, len(topicPartitions))
		numWorkers = len(topicPartitions)
	}

	// 每个 worker 处理自己的特定分区
	if len(topicPartitions) > 0 {
		for i := 0; i < numWorkers; i++ {
			partition := topicPartitions[i%len(topicPartitions)]
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:   config.AppConfig.Kafka.Brokers,
				Topic:     config.AppConfig.Kafka.Topic,
				Partition: partition,
				MinBytes:  10e3, // 10KB
				MaxBytes:  10e6, // 10MB
			})
			readers = append(readers, reader)
			log.Printf("消费者worker #%d 将处理分区: %d", i, partition)
		}
	}

	// 未检测到分区时退回消费者组模式
	if len(readers) == 0 {
		log.Printf("未检测到分区，将使用消费者组模式")
		groupReader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  config.AppConfig.Kafka.Brokers,
			Topic:    config.AppConfig.Kafka.Topic,
			GroupID:  config.AppConfig.Kafka.GroupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		})
		readers = append(readers, groupReader)
		numWorkers = 1
	}

	return &Consumer{
		readers:    readers,
		ctx:        ctx,
		cancel:     cancel,
		numWorkers: numWorkers,
	}, nil
}

// StartConsuming 启动全部 worker 并发消费
func (c *Consumer) StartConsuming(handler MessageHandler) {
	for i := 0; i < len(c.readers); i++ {
		reader := c.readers[i]
		if reader == nil {
			continue
		}

		c.wg.Add(1)
		go func(workerID int, r *kafka.Reader) {
			defer c.wg.Done()
			c.consumeMessages(workerID, r, handler)
		}(i, reader)
	}

	log.Printf("已启动 %d 个投票事件消费worker", len(c.readers))
}

// consumeMessages 单个 worker 的消费循环
func (c *Consumer) consumeMessages(workerID int, reader *kafka.Reader, handler MessageHandler) {
	log.Printf("消费worker #%d 已启动", workerID)

	for {
		select {
		case <-c.ctx.Done():
			log.Printf("消费worker #%d 收到停止信号", workerID)
			return
		default:
			m, err := reader.ReadMessage(c.ctx)
			if err != nil {
				if err == context.Canceled {
					log.Printf("消费worker #%d 上下文已取消", workerID)
					return
				}
				log.Printf("消费worker #%d 读取消息失败: %v", workerID, err)
				time.Sleep(time.Second)
				continue
			}

			var event model.VoteEvent
			if err := json.Unmarshal(m.Value, &event); err != nil {
				log.Printf("消费worker #%d 解析消息失败: %v", workerID, err)
				continue
			}

			if err := handler(&event); err != nil {
				log.Printf("消费worker #%d 处理投票事件失败: %v", workerID, err)
			}
		}
	}
}

// Stop 停止消费
func (c *Consumer) Stop() error {
	log.Println("正在停止所有消费worker...")
	c.cancel()
	c.wg.Wait()

	for i, reader := range c.readers {
		if reader != nil {
			if err := reader.Close(); err != nil {
				log.Printf("关闭消费者 #%d 失败: %v", i, err)
			}
		}
	}

	log.Println("所有消费worker已停止")
	return nil
}
