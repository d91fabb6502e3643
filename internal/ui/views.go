package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lvdashuaibi/slackpoll/internal/model"
	"github.com/lvdashuaibi/slackpoll/internal/router"
	"github.com/lvdashuaibi/slackpoll/internal/slack"
)

// 输入块 block_id 前缀，提交解码按前缀+序号取值
const (
	BlockTitlePrefix     = "title_text_"
	BlockVariantPrefix   = "variant_text_"
	BlockDatePrefix      = "start_variant_poll_date_"
	BlockCriterionPrefix = "dialog_variant_text_"
	BlockMaxScorePrefix  = "dialog_variant_max_score_"
)

// DateLayout 参选项开始时间的输入格式
const DateLayout = "2006-01-02T15:04:05"

// 对话框标题超过该长度时截断
const dialogTitleLimit = 24

// VariantGroupSize 每组参选项占用的输入块数量
const VariantGroupSize = 3

// CriterionGroupSize 每组评分维度占用的输入块数量
const CriterionGroupSize = 2

// VariantGroup 一组参选项输入块：标题、描述、开始时间
func VariantGroup(seq int) []slack.Block {
	return []slack.Block{
		slack.NewTextInput(
			fmt.Sprintf("标题 #%d", seq),
			fmt.Sprintf("%s%d", BlockTitlePrefix, seq),
			"可使用 markdown"),
		slack.NewMultilineInput(
			fmt.Sprintf("参选项 #%d", seq),
			fmt.Sprintf("%s%d", BlockVariantPrefix, seq)),
		slack.NewTextInput(
			fmt.Sprintf("开始时间 #%d", seq),
			fmt.Sprintf("%s%d", BlockDatePrefix, seq),
			"2015-09-18T23:56:04"),
	}
}

// CriterionGroup 一组评分维度输入块：维度文本、最高分
func CriterionGroup(seq int) []slack.Block {
	return []slack.Block{
		slack.NewTextInput(
			fmt.Sprintf("评分维度 #%d", seq),
			fmt.Sprintf("%s%d", BlockCriterionPrefix, seq),
			"打分的评判标准"),
		slack.NewTextInput(
			fmt.Sprintf("最高分 #%d", seq),
			fmt.Sprintf("%s%d", BlockMaxScorePrefix, seq),
			"1-100"),
	}
}

// CreatePollModal 创建投票的模态：频道选择 + 第一组参选项输入 +
// 两个追加按钮。追加时新块组插入在最后两个动作块之前。
func CreatePollModal() *slack.View {
	blocks := []slack.Block{
		slack.NewSection(slack.PlainText("投票频道")),
		slack.NewActions(slack.NewChannelSelect("选择频道", router.ActionChooseChannel)),
	}
	blocks = append(blocks, VariantGroup(1)...)
	blocks = append(blocks,
		slack.NewActions(slack.NewButton("添加参选项", router.ActionAddVariant)),
		slack.NewActions(slack.NewButton("添加评分维度", router.ActionCriteriaSetup)),
	)
	return slack.NewModal(router.CallbackPollFinalize, "创建投票", blocks).WithSubmit("Next")
}

// CriteriaModal 评分维度设置模态：第一组维度输入 + 追加按钮
func CriteriaModal() *slack.View {
	blocks := CriterionGroup(1)
	blocks = append(blocks,
		slack.NewActions(slack.NewButton("添加评分维度", router.ActionAddCriterion)))
	return slack.NewModal(router.CallbackCriteriaSave, "评分维度", blocks).WithSubmit("确认")
}

// NextVariantSeq 由视图内已有输入块数量推出下一组参选项的序号
func NextVariantSeq(view *slack.View) int {
	return view.InputBlockCount()/VariantGroupSize + 1
}

// NextCriterionSeq 由视图内已有输入块数量推出下一组维度的序号
func NextCriterionSeq(view *slack.View) int {
	return view.InputBlockCount()/CriterionGroupSize + 1
}

// AppendVariantGroup 在创建模态的最后两个动作块之前插入一组参选项输入
func AppendVariantGroup(view *slack.View) {
	view.InsertBlocksBefore(2, VariantGroup(NextVariantSeq(view))...)
}

// AppendCriterionGroup 在维度模态的最后一个动作块之前插入一组维度输入
func AppendCriterionGroup(view *slack.View) {
	view.InsertBlocksBefore(1, CriterionGroup(NextCriterionSeq(view))...)
}

// VariantInput 创建模态里解码出的一组参选项
type VariantInput struct {
	Title       string
	Description string
	StartDate   time.Time
}

// CriterionInput 维度模态里解码出的一组评分维度
type CriterionInput struct {
	Text     string
	MaxScore int
}

// ParseVariantGroups 按 block_id 命名解码参选项提交。
// 块组按序号配对，缺字段或未知块直接报错，不做位置猜测。
func ParseVariantGroups(view *slack.View) ([]VariantInput, error) {
	total := view.InputBlockCount()
	if total%VariantGroupSize != 0 {
		return nil, fmt.Errorf("参选项输入块数量 %d 不是 %d 的倍数", total, VariantGroupSize)
	}

	var inputs []VariantInput
	for seq := 1; seq <= total/VariantGroupSize; seq++ {
		title := view.InputValue(fmt.Sprintf("%s%d", BlockTitlePrefix, seq))
		description := view.InputValue(fmt.Sprintf("%s%d", BlockVariantPrefix, seq))
		rawDate := view.InputValue(fmt.Sprintf("%s%d", BlockDatePrefix, seq))
		if title == "" || description == "" || rawDate == "" {
			return nil, fmt.Errorf("参选项 #%d 的输入不完整", seq)
		}

		startDate, err := time.Parse(DateLayout, rawDate)
		if err != nil {
			return nil, fmt.Errorf("参选项 #%d 的开始时间无法解析: %w", seq, err)
		}
		inputs = append(inputs, VariantInput{
			Title:       title,
			Description: description,
			StartDate:   startDate,
		})
	}
	return inputs, nil
}

// ParseCriterionGroups 按 block_id 命名解码评分维度提交
func ParseCriterionGroups(view *slack.View) ([]CriterionInput, error) {
	total := view.InputBlockCount()
	if total%CriterionGroupSize != 0 {
		return nil, fmt.Errorf("维度输入块数量 %d 不是 %d 的倍数", total, CriterionGroupSize)
	}

	var inputs []CriterionInput
	for seq := 1; seq <= total/CriterionGroupSize; seq++ {
		text := view.InputValue(fmt.Sprintf("%s%d", BlockCriterionPrefix, seq))
		rawScore := view.InputValue(fmt.Sprintf("%s%d", BlockMaxScorePrefix, seq))
		if text == "" || rawScore == "" {
			return nil, fmt.Errorf("评分维度 #%d 的输入不完整", seq)
		}

		// 非数字输入按最低分处理，越界在草稿层收敛
		maxScore, err := strconv.Atoi(strings.TrimSpace(rawScore))
		if err != nil {
			maxScore = 1
		}
		inputs = append(inputs, CriterionInput{Text: text, MaxScore: maxScore})
	}
	return inputs, nil
}

// PollMessageBlocks 渲染投票消息：每个参选项一段标题/描述/投票按钮，
// 附带计入票数与最近四个投票人头像
func PollMessageBlocks(view *model.PollView) []slack.Block {
	blocks := []slack.Block{
		slack.NewSection(slack.MrkdwnText("*投票*")),
		slack.NewDivider(),
	}

	for _, variant := range view.Variants {
		blocks = append(blocks,
			slack.NewSection(slack.MrkdwnText(fmt.Sprintf("*%s*", variant.Title))),
			slack.NewSectionWithAccessory(
				slack.MrkdwnText(variant.Description),
				slack.NewButton("投一票", strconv.FormatInt(variant.ID, 10))),
		)

		var elements []slack.BlockElement
		for _, url := range variant.Thumbnails {
			elements = append(elements, slack.NewImageElement(url, "头像加载失败"))
		}
		if variant.VoteCount > 0 {
			elements = append(elements, slack.NewTextElement(fmt.Sprintf("%d 票", variant.VoteCount)))
		} else {
			elements = append(elements, slack.NewTextElement("暂无投票"))
		}
		blocks = append(blocks, slack.NewContext(elements))
	}
	return blocks
}

// ReportMessageBlocks 渲染报表消息，前三名带名次标记
func ReportMessageBlocks(rows []*model.RankedReportRow) []slack.Block {
	blocks := []slack.Block{
		slack.NewSection(slack.MrkdwnText("*投票结果*")),
		slack.NewDivider(),
	}

	for _, row := range rows {
		blocks = append(blocks,
			slack.NewSection(slack.MrkdwnText(row.Place+row.Team)),
			slack.NewContext([]slack.BlockElement{
				slack.NewMrkdwnElement(fmt.Sprintf("*%d* 票", row.TotalVotes)),
				slack.NewMrkdwnElement(fmt.Sprintf("*%.2f* 分", row.Score)),
			}),
		)
	}
	return blocks
}

// ScoringDialog 打分对话框：每个维度一个 1..最高分 的下拉选择，
// callback_id 携带参选项ID
func ScoringDialog(variant *model.Variant, criteria []*model.Criterion) *slack.Dialog {
	title := variant.Title
	if len([]rune(title)) >= dialogTitleLimit {
		title = string([]rune(title)[:dialogTitleLimit-3]) + "..."
	}

	dialog := &slack.Dialog{
		CallbackID:  strconv.FormatInt(variant.ID, 10),
		Title:       title,
		SubmitLabel: "确认",
	}
	for _, criterion := range criteria {
		options := make([]string, 0, criterion.MaxScore)
		for score := 1; score <= criterion.MaxScore; score++ {
			options = append(options, strconv.Itoa(score))
		}
		dialog.Elements = append(dialog.Elements,
			slack.NewSelectElement(criterion.Text, criterion.Text, options))
	}
	return dialog
}

// AlreadyVotedView 已投过票的提示视图
func AlreadyVotedView() *slack.View {
	view := slack.NewModal("", "抱歉", []slack.Block{
		slack.NewSection(slack.PlainText("你的票已经计入，谢谢参与！")),
	})
	return view.WithSubmit("知道了")
}

// NotOpenYetView 投票未开始的提示视图
func NotOpenYetView(startDate time.Time) *slack.View {
	view := slack.NewModal("", "抱歉", []slack.Block{
		slack.NewSection(slack.PlainText(
			fmt.Sprintf("投票还没开始，%s 再来！", startDate.Format("2006-01-02 15:04:05")))),
	})
	return view.WithSubmit("知道了")
}
