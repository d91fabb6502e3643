package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lvdashuaibi/slackpoll/config"
	"github.com/lvdashuaibi/slackpoll/internal/api/graph"
	"github.com/lvdashuaibi/slackpoll/internal/service"
	"github.com/lvdashuaibi/slackpoll/internal/slack"
)

// Server HTTP入口：Slack回调与管理命令。
// Slack要求3秒内响应，所有慢操作都交给后台，这里只做解码与鉴权。
type Server struct {
	engine      *gin.Engine
	pollService *service.PollService
}

// NewServer 创建HTTP服务器并注册路由
func NewServer(pollService *service.PollService, graphServer *graph.GraphQLServer) *Server {
	engine := gin.Default()

	s := &Server{
		engine:      engine,
		pollService: pollService,
	}

	api := engine.Group("/api")
	{
		slackGroup := api.Group("/slack")
		slackGroup.POST("/dialog", s.handleInteraction)
		slackGroup.POST("/create_poll", s.handleCreatePoll)
		slackGroup.POST("/post_poll", s.handlePostPoll)
		slackGroup.POST("/close_and_post_report", s.handleCloseAndReport)
	}

	// 只读GraphQL端点，复用已注册的路径
	engine.POST(config.AppConfig.API.GraphQLPath, gin.WrapH(graphServer.Handler()))

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	return s
}

// Engine 暴露底层路由，测试直接驱动
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run 启动HTTP服务器
func (s *Server) Run(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Printf("HTTP服务已启动: %s", addr)
	return s.engine.Run(addr)
}

// handleInteraction Slack交互回调统一入口。
// 载荷损坏返回400，业务层面的失败不影响响应码。
func (s *Server) handleInteraction(c *gin.Context) {
	raw := c.PostForm("payload")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少payload字段"})
		return
	}

	payload, err := slack.ParseInteraction(raw)
	if err != nil {
		log.Printf("解析交互载荷失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "载荷格式错误"})
		return
	}

	if err := s.pollService.HandleInteraction(payload); err != nil {
		log.Printf("处理交互回调失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "载荷内容不完整"})
		return
	}

	c.Status(http.StatusOK)
}

// handleCreatePoll 斜杠命令：开启一份新草稿并打开创建模态
func (s *Server) handleCreatePoll(c *gin.Context) {
	if !s.checkAdmin(c) {
		return
	}

	triggerID := c.PostForm("trigger_id")
	if triggerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少trigger_id"})
		return
	}

	s.pollService.CreatePollMenu(triggerID)
	c.Status(http.StatusOK)
}

// handlePostPoll 斜杠命令：把最近的投票发布到频道
func (s *Server) handlePostPoll(c *gin.Context) {
	if !s.checkAdmin(c) {
		return
	}

	s.pollService.PostLastPoll()
	c.Status(http.StatusOK)
}

// handleCloseAndReport 斜杠命令：结算并发布报表
func (s *Server) handleCloseAndReport(c *gin.Context) {
	if !s.checkAdmin(c) {
		return
	}

	s.pollService.CloseAndReport()
	c.Status(http.StatusOK)
}

// checkAdmin 管理命令鉴权：配置了管理员时必须匹配表单里的user_id，
// 未配置则对所有人开放。不通过时已写好403响应。
func (s *Server) checkAdmin(c *gin.Context) bool {
	admin := config.AppConfig.Slack.AdminUser
	if admin == "" {
		return true
	}

	if c.PostForm("user_id") != admin {
		c.JSON(http.StatusForbidden, gin.H{"error": "没有权限执行该命令"})
		return false
	}
	return true
}
