package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lvdashuaibi/slackpoll/config"
	"github.com/lvdashuaibi/slackpoll/internal/model"
)

const (
	// Redis键前缀
	VoterKey = "voter:slack:"

	// 投票人缓存有效期
	VoterCacheTTL = time.Hour
)

type RedisRepository struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisRepository() (*RedisRepository, error) {
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{
		Addr:         config.AppConfig.Redis.Address,
		Password:     config.AppConfig.Redis.Password,
		DB:           config.AppConfig.Redis.DB,
		PoolSize:     config.AppConfig.Redis.PoolSize,
		MaxRetries:   config.AppConfig.Redis.MaxRetries,
		DialTimeout:  config.AppConfig.Redis.Timeout,
		ReadTimeout:  config.AppConfig.Redis.Timeout,
		WriteTimeout: config.AppConfig.Redis.Timeout,
	})

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis连接测试失败: %w", err)
	}

	return &RedisRepository{
		client: client,
		ctx:    ctx,
	}, nil
}

// GetVoter 从缓存获取投票人，未命中返回 found=false
func (r *RedisRepository) GetVoter(slackUserID string) (*model.Voter, bool, error) {
	key := VoterKey + slackUserID
	data, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil // 缓存未命中
		}
		return nil, false, fmt.Errorf("获取投票人缓存失败: %w", err)
	}

	var voter model.Voter
	if err := json.Unmarshal([]byte(data), &voter); err != nil {
		return nil, false, fmt.Errorf("解析投票人缓存失败: %w", err)
	}
	return &voter, true, nil
}

// SetVoter 写入投票人缓存
func (r *RedisRepository) SetVoter(voter *model.Voter) error {
	key := VoterKey + voter.SlackUserID
	data, err := json.Marshal(voter)
	if err != nil {
		return fmt.Errorf("序列化投票人失败: %w", err)
	}

	if err := r.client.Set(r.ctx, key, data, VoterCacheTTL).Err(); err != nil {
		return fmt.Errorf("设置投票人缓存失败: %w", err)
	}
	return nil
}

// DeleteVoter 删除投票人缓存
func (r *RedisRepository) DeleteVoter(slackUserID string) error {
	key := VoterKey + slackUserID
	if err := r.client.Del(r.ctx, key).Err(); err != nil {
		return fmt.Errorf("删除投票人缓存失败: %w", err)
	}
	return nil
}

// Close 关闭Redis连接
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
