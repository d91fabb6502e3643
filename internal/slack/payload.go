package slack

import (
	"encoding/json"
	"fmt"
)

// 回调载荷种类
const (
	TypeBlockActions     = "block_actions"
	TypeDialogSubmission = "dialog_submission"
	TypeViewSubmission   = "view_submission"
	TypeMessageAction    = "message_action"
)

// InteractionPayload 交互端点收到的 JSON 信封，按 type 字段区分种类。
// 载荷只来自 Slack 平台，字段缺失按本地硬错误处理，不做恢复。
type InteractionPayload struct {
	Type       string            `json:"type"`
	Token      string            `json:"token"`
	User       User              `json:"user"`
	Channel    Channel           `json:"channel"`
	TriggerID  string            `json:"trigger_id"`
	CallbackID string            `json:"callback_id"`
	ResponseURL string           `json:"response_url"`
	Actions    []Action          `json:"actions"`
	View       *View             `json:"view"`
	Submission map[string]string `json:"submission"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Action struct {
	ActionID        string `json:"action_id"`
	BlockID         string `json:"block_id"`
	Value           string `json:"value"`
	Type            string `json:"type"`
	SelectedChannel string `json:"selected_channel"`
	ActionTS        string `json:"action_ts"`
}

// ParseInteraction 解析表单字段 payload 中携带的 JSON 信封
func ParseInteraction(raw string) (*InteractionPayload, error) {
	if raw == "" {
		return nil, fmt.Errorf("交互载荷为空")
	}
	var payload InteractionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("解析交互载荷失败: %w", err)
	}
	if payload.Type == "" {
		return nil, fmt.Errorf("交互载荷缺少 type 字段")
	}
	return &payload, nil
}

// FirstActionID 取第一个动作的 action_id，缺失时报错
func (p *InteractionPayload) FirstActionID() (string, error) {
	if len(p.Actions) == 0 {
		return "", fmt.Errorf("交互载荷缺少 actions 字段")
	}
	if p.Actions[0].ActionID == "" {
		return "", fmt.Errorf("交互载荷动作缺少 action_id")
	}
	return p.Actions[0].ActionID, nil
}

// RequireView 校验载荷携带视图，缺失时报错
func (p *InteractionPayload) RequireView() (*View, error) {
	if p.View == nil || p.View.ID == "" {
		return nil, fmt.Errorf("交互载荷缺少 view 字段")
	}
	return p.View, nil
}
