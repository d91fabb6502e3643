package main

import (
	"flag"
	"log"

	"github.com/lvdashuaibi/slackpoll/config"
	"github.com/lvdashuaibi/slackpoll/internal/api"
	"github.com/lvdashuaibi/slackpoll/internal/api/graph"
	intkafka "github.com/lvdashuaibi/slackpoll/internal/kafka"
	"github.com/lvdashuaibi/slackpoll/internal/repository"
	"github.com/lvdashuaibi/slackpoll/internal/service"
	"github.com/lvdashuaibi/slackpoll/internal/session"
	"github.com/lvdashuaibi/slackpoll/internal/slack"
)

var configPath = flag.String("config", "config/config.yaml", "配置文件路径")

func main() {
	// 解析命令行参数
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("配置加载成功，工作空间: %s", cfg.Slack.Workspace)

	// 创建数据库连接
	mysqlRepo, err := repository.NewMySQLRepository()
	if err != nil {
		log.Fatalf("初始化MySQL仓库失败: %v", err)
	}
	defer mysqlRepo.Close()
	log.Printf("MySQL仓库初始化成功")

	// 创建Redis连接
	redisRepo, err := repository.NewRedisRepository()
	if err != nil {
		log.Fatalf("初始化Redis仓库失败: %v", err)
	}
	defer redisRepo.Close()
	log.Printf("Redis仓库初始化成功")

	// 创建Slack客户端
	slackClient := slack.NewClient()
	log.Printf("Slack客户端初始化成功")

	// 创建Kafka生产者
	producer, err := intkafka.NewProducer()
	if err != nil {
		log.Fatalf("初始化Kafka生产者失败: %v", err)
	}
	defer producer.Close()
	log.Printf("Kafka生产者初始化成功")

	// 创建Kafka消费者
	consumer, err := intkafka.NewConsumer()
	if err != nil {
		log.Fatalf("初始化Kafka消费者失败: %v", err)
	}
	defer consumer.Stop()
	log.Printf("Kafka消费者初始化成功")

	// 创建草稿会话与投票服务
	drafts := session.NewStore()
	pollService := service.NewPollService(mysqlRepo, redisRepo, slackClient, producer, drafts)
	log.Printf("投票服务初始化成功")

	// 启动Kafka消费者
	consumer.StartConsuming(pollService.ProcessVoteEvent)
	log.Printf("Kafka消费者已启动")

	// 创建GraphQL服务
	graphqlServer := graph.NewGraphQLServer(mysqlRepo)
	log.Printf("GraphQL服务初始化成功")

	// 启动HTTP服务器，Run内部阻塞直到出错
	server := api.NewServer(pollService, graphqlServer)
	log.Printf("Slack Poll 系统已启动，服务地址: http://localhost:%d", cfg.Server.Port)
	if err := server.Run(cfg.Server.Port); err != nil {
		log.Fatalf("启动HTTP服务器失败: %v", err)
	}
}
