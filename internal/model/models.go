package model

import (
	"time"
)

// Poll 投票活动，一次活动对应一行，创建后不删除
type Poll struct {
	ID        int64   `json:"id"`
	Channel   string  `json:"channel"`
	IsClosed  bool    `json:"isClosed"`
	MessageTS *string `json:"messageTs"` // 已发布消息的时间戳，未发布时为空
}

// Criterion 评分维度，属于某个 Poll，最大分值限定在 [1,100]
type Criterion struct {
	ID       int64  `json:"id"`
	PollID   int64  `json:"pollId"`
	Text     string `json:"text"`
	MaxScore int    `json:"maxScore"`
}

// Variant 参选项，属于某个 Poll
type Variant struct {
	ID          int64      `json:"id"`
	PollID      int64      `json:"pollId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// Voter 投票人缓存行，首次投票时写入，冲突时更新头像
type Voter struct {
	ID          int64  `json:"id"`
	SlackUserID string `json:"slackUserId"`
	Thumbnail   string `json:"thumbnail"`
}

// Vote 投票记录，只追加不修改；重复投票追加新行，计票时只取最新一条
type Vote struct {
	ID          int64 `json:"id"`
	VoterID     int64 `json:"voterId"`
	PollID      int64 `json:"pollId"`
	VariantID   int64 `json:"variantId"`
	CriterionID int64 `json:"criterionId"`
	Score       int   `json:"score"`
}

// VariantView 带统计信息的参选项视图，用于渲染投票消息
type VariantView struct {
	Variant
	VoteCount  int      `json:"voteCount"`
	Thumbnails []string `json:"thumbnails"`
}

// PollView 投票消息的完整视图
type PollView struct {
	Poll
	Variants []VariantView `json:"variants"`
}

// ReportRow 报表聚合行，按频道分组
type ReportRow struct {
	Team       string  `json:"team"`
	Channel    string  `json:"channel"`
	TotalVotes int     `json:"totalVotes"`
	Score      float64 `json:"score"`
}

// RankedReportRow 排名后的报表行，前三名带名次标记
type RankedReportRow struct {
	ReportRow
	Place string `json:"place"`
}

// VoteEvent Kafka 投票事件，一次打分对话框提交对应一条
type VoteEvent struct {
	SlackUserID string         `json:"slackUserId"`
	VariantID   int64          `json:"variantId"`
	Scores      map[string]int `json:"scores"` // 维度文本 -> 分数
	SubmittedAt time.Time      `json:"submittedAt"`
}
