package slack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lvdashuaibi/slackpoll/config"
)

const defaultBaseURL = "https://slack.com/api"

// Client Slack Web API 客户端。每个请求都是一次可失败的远程调用，
// 调用方自行决定失败时记日志还是降级。
type Client struct {
	httpClient *http.Client
	token      string
	workspace  string
	baseURL    string
}

func NewClient() *Client {
	baseURL := config.AppConfig.Slack.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		token:      config.AppConfig.Slack.APIToken,
		workspace:  config.AppConfig.Slack.Workspace,
		baseURL:    baseURL,
	}
}

// apiResponse Slack 通用响应外壳
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// MessageResponse chat.postMessage / chat.update 的响应
type MessageResponse struct {
	apiResponse
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

// ViewResponse views.* 系列的响应
type ViewResponse struct {
	apiResponse
	View *View `json:"view"`
}

// UserInfoResponse users.info 的响应
type UserInfoResponse struct {
	apiResponse
	User struct {
		ID      string `json:"id"`
		Profile struct {
			Image24 string `json:"image_24"`
		} `json:"profile"`
	} `json:"user"`
}

// PostMessageRequest chat.postMessage 请求体
type PostMessageRequest struct {
	Channel string  `json:"channel"`
	Text    string  `json:"text"`
	Blocks  []Block `json:"blocks,omitempty"`
}

// UpdateMessageRequest chat.update 请求体，按已存储的消息时间戳定位
type UpdateMessageRequest struct {
	Channel string  `json:"channel"`
	TS      string  `json:"ts"`
	Text    string  `json:"text"`
	Blocks  []Block `json:"blocks,omitempty"`
}

// PostMessage 发布消息
func (c *Client) PostMessage(req *PostMessageRequest) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.call("chat.postMessage", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateMessage 编辑已发布的消息
func (c *Client) UpdateMessage(req *UpdateMessageRequest) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.call("chat.update", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OpenView 打开模态视图
func (c *Client) OpenView(triggerID string, view *View) (*ViewResponse, error) {
	body := struct {
		TriggerID string `json:"trigger_id"`
		View      *View  `json:"view"`
	}{triggerID, view}
	var resp ViewResponse
	if err := c.call("views.open", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PushView 在已有模态之上压入新视图
func (c *Client) PushView(triggerID string, view *View) (*ViewResponse, error) {
	body := struct {
		TriggerID string `json:"trigger_id"`
		View      *View  `json:"view"`
	}{triggerID, view}
	var resp ViewResponse
	if err := c.call("views.push", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateView 更新已打开的模态视图
func (c *Client) UpdateView(viewID string, view *View) (*ViewResponse, error) {
	body := struct {
		ViewID string `json:"view_id"`
		View   *View  `json:"view"`
	}{viewID, view}
	var resp ViewResponse
	if err := c.call("views.update", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OpenDialog 打开旧版对话框
func (c *Client) OpenDialog(triggerID string, dialog *Dialog) error {
	body := struct {
		TriggerID string  `json:"trigger_id"`
		Dialog    *Dialog `json:"dialog"`
	}{triggerID, dialog}
	var resp apiResponse
	return c.call("dialog.open", body, &resp)
}

// GetUserInfo 查询用户资料，身份解析缓存未命中时的回源路径。
// team_id 带上工作区ID，保证企业级多工作区令牌解析到正确的成员档案。
func (c *Client) GetUserInfo(userID string) (*UserInfoResponse, error) {
	endpoint := fmt.Sprintf("%s/users.info?team_id=%s&user=%s",
		c.baseURL, url.QueryEscape(c.workspace), url.QueryEscape(userID))
	request, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("构造 users.info 请求失败: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.token)

	var resp UserInfoResponse
	if err := c.do(request, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("users.info 调用失败: %s", resp.Error)
	}
	return &resp, nil
}

// call 向 Slack Web API 发送 JSON POST 请求
func (c *Client) call(method string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化 %s 请求失败: %w", method, err)
	}

	request, err := http.NewRequest(http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("构造 %s 请求失败: %w", method, err)
	}
	request.Header.Set("Authorization", "Bearer "+c.token)
	request.Header.Set("Content-Type", "application/json; charset=utf-8")

	if err := c.do(request, out); err != nil {
		return fmt.Errorf("%s 调用失败: %w", method, err)
	}

	// 通用外壳里的 ok=false 一律视作远程调用失败
	if shell, ok := out.(interface{ okField() (bool, string) }); ok {
		if success, reason := shell.okField(); !success {
			return fmt.Errorf("%s 调用失败: %s", method, reason)
		}
	}
	return nil
}

func (r *apiResponse) okField() (bool, string) { return r.OK, r.Error }

func (c *Client) do(request *http.Request, out interface{}) error {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("请求发送失败: %w", err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
