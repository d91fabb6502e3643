package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server Server  `mapstructure:"server"`
	MySQL  MySQL   `mapstructure:"mysql"`
	Redis  Redis   `mapstructure:"redis"`
	Kafka  Kafka   `mapstructure:"kafka"`
	Slack  Slack   `mapstructure:"slack"`
	Report Report  `mapstructure:"report"`
	API    APIConf `mapstructure:"api"`
}

type Server struct {
	Port    int `mapstructure:"port"`
	Workers int `mapstructure:"workers"`
}

type MySQL struct {
	Master       string `mapstructure:"master"`
	Slave        string `mapstructure:"slave"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type Redis struct {
	Address    string        `mapstructure:"address"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	PoolSize   int           `mapstructure:"pool_size"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type Slack struct {
	// Slack Web API 访问令牌
	APIToken string `mapstructure:"api_token"`
	// 工作区ID
	Workspace string `mapstructure:"workspace"`
	// 管理员用户ID，为空时不做管理员校验
	AdminUser string `mapstructure:"admin_user"`
	// Web API 基础地址，留空使用官方地址
	BaseURL string `mapstructure:"base_url"`
}

type Report struct {
	// 报表纳入统计的最小票数门槛
	MinVotes int `mapstructure:"min_votes"`
}

type APIConf struct {
	GraphQLPath string `mapstructure:"graphql_path"`
}

var AppConfig Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 启动期校验必填项，缺失直接失败
	if AppConfig.Slack.APIToken == "" {
		return nil, fmt.Errorf("配置缺失: slack.api_token 必须设置")
	}
	if AppConfig.Slack.Workspace == "" {
		return nil, fmt.Errorf("配置缺失: slack.workspace 必须设置")
	}
	if AppConfig.Server.Workers <= 0 {
		AppConfig.Server.Workers = 4
	}
	if AppConfig.API.GraphQLPath == "" {
		AppConfig.API.GraphQLPath = "/api/graphql"
	}

	return &AppConfig, nil
}
