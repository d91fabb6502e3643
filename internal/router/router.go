package router

import (
	"fmt"

	"github.com/lvdashuaibi/slackpoll/internal/slack"
)

// 块动作的 action_id
const (
	ActionAddVariant    = "variant_add"
	ActionChooseChannel = "channel_choose"
	ActionCriteriaSetup = "dialog_setup"
	ActionAddCriterion  = "dialog_variant_add"
)

// 视图回调ID
const (
	CallbackCriteriaSave = "dialog_variant_create"
	CallbackPollFinalize = "view_poll_create"
)

// Kind 调度结果的种类
type Kind int

const (
	// KindAddVariant 向创建模态追加一组参选项输入块
	KindAddVariant Kind = iota
	// KindChooseChannel 记录草稿目标频道
	KindChooseChannel
	// KindCriteriaSetup 打开评分维度设置模态
	KindCriteriaSetup
	// KindAddCriterion 向维度模态追加一组输入块
	KindAddCriterion
	// KindOpenVoteDialog 未识别的 action_id 当作参选项ID，进入投票资格检查
	KindOpenVoteDialog
	// KindSaveCriteria 维度模态提交，写入草稿
	KindSaveCriteria
	// KindFinalizePoll 创建模态提交，完结草稿并持久化
	KindFinalizePoll
	// KindSubmitVote 打分对话框提交，进入投票落库工作流
	KindSubmitVote
	// KindIgnore 与本服务无关的回调，直接确认
	KindIgnore
)

// Decision 调度决定，携带处理所需的已校验字段
type Decision struct {
	Kind     Kind
	ActionID string
	Channel  string
	View     *slack.View
}

// Dispatch 纯调度：根据回调种类与标识决定处理动作，不做任何 I/O。
// 必要子字段缺失视为硬错误，该次请求直接中止。
func Dispatch(payload *slack.InteractionPayload) (*Decision, error) {
	switch payload.Type {
	case slack.TypeBlockActions:
		return dispatchBlockAction(payload)
	case slack.TypeViewSubmission:
		return dispatchViewSubmission(payload)
	case slack.TypeDialogSubmission:
		return &Decision{Kind: KindSubmitVote}, nil
	case slack.TypeMessageAction:
		return &Decision{Kind: KindIgnore}, nil
	default:
		return nil, fmt.Errorf("未知的回调种类: %s", payload.Type)
	}
}

func dispatchBlockAction(payload *slack.InteractionPayload) (*Decision, error) {
	actionID, err := payload.FirstActionID()
	if err != nil {
		return nil, err
	}

	switch actionID {
	case ActionAddVariant:
		view, err := payload.RequireView()
		if err != nil {
			return nil, err
		}
		return &Decision{Kind: KindAddVariant, View: view}, nil
	case ActionChooseChannel:
		channel := payload.Actions[0].SelectedChannel
		if channel == "" {
			return nil, fmt.Errorf("频道选择动作缺少 selected_channel")
		}
		return &Decision{Kind: KindChooseChannel, Channel: channel}, nil
	case ActionCriteriaSetup:
		return &Decision{Kind: KindCriteriaSetup}, nil
	case ActionAddCriterion:
		view, err := payload.RequireView()
		if err != nil {
			return nil, err
		}
		return &Decision{Kind: KindAddCriterion, View: view}, nil
	default:
		// 兜底：任何未识别的 action_id 都按参选项ID处理
		return &Decision{Kind: KindOpenVoteDialog, ActionID: actionID}, nil
	}
}

func dispatchViewSubmission(payload *slack.InteractionPayload) (*Decision, error) {
	view, err := payload.RequireView()
	if err != nil {
		return nil, err
	}

	switch view.CallbackID {
	case CallbackCriteriaSave:
		return &Decision{Kind: KindSaveCriteria, View: view}, nil
	case CallbackPollFinalize:
		return &Decision{Kind: KindFinalizePoll, View: view}, nil
	default:
		return &Decision{Kind: KindIgnore}, nil
	}
}
