package ui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvdashuaibi/slackpoll/internal/model"
	"github.com/lvdashuaibi/slackpoll/internal/router"
	"github.com/lvdashuaibi/slackpoll/internal/slack"
)

func stateValue(view *slack.View, blockID, value string) {
	if view.State == nil {
		view.State = &slack.ViewState{Values: map[string]map[string]slack.InputValue{}}
	}
	view.State.Values[blockID] = map[string]slack.InputValue{
		blockID: {Type: "plain_text_input", Value: value},
	}
}

func fillVariantGroup(view *slack.View, seq int, title, description, date string) {
	stateValue(view, fmt.Sprintf("%s%d", BlockTitlePrefix, seq), title)
	stateValue(view, fmt.Sprintf("%s%d", BlockVariantPrefix, seq), description)
	stateValue(view, fmt.Sprintf("%s%d", BlockDatePrefix, seq), date)
}

func TestCreatePollModal_Layout(t *testing.T) {
	view := CreatePollModal()

	assert.Equal(t, router.CallbackPollFinalize, view.CallbackID)
	assert.Equal(t, VariantGroupSize, view.InputBlockCount())

	// 频道选择在最前，两个追加按钮在最后
	require.GreaterOrEqual(t, len(view.Blocks), 7)
	assert.Equal(t, slack.BlockActions, view.Blocks[1].Type)
	assert.Equal(t, router.ActionChooseChannel, view.Blocks[1].Elements[0].ActionID)

	tail := view.Blocks[len(view.Blocks)-2:]
	assert.Equal(t, router.ActionAddVariant, tail[0].Elements[0].ActionID)
	assert.Equal(t, router.ActionCriteriaSetup, tail[1].Elements[0].ActionID)
}

func TestAppendVariantGroup_SeqAndPosition(t *testing.T) {
	view := CreatePollModal()
	total := len(view.Blocks)

	AppendVariantGroup(view)

	// 序号从已有输入块数量推出，第二组是 #2
	assert.Equal(t, 2*VariantGroupSize, view.InputBlockCount())
	inputs := view.InputBlocks()
	assert.Equal(t, BlockTitlePrefix+"2", inputs[3].BlockID)
	assert.Equal(t, BlockDatePrefix+"2", inputs[5].BlockID)

	// 新块组插在最后两个动作块之前
	assert.Len(t, view.Blocks, total+VariantGroupSize)
	tail := view.Blocks[len(view.Blocks)-2:]
	assert.Equal(t, router.ActionAddVariant, tail[0].Elements[0].ActionID)
	assert.Equal(t, router.ActionCriteriaSetup, tail[1].Elements[0].ActionID)

	AppendVariantGroup(view)
	assert.Equal(t, BlockTitlePrefix+"3", view.InputBlocks()[6].BlockID)
}

func TestAppendCriterionGroup_SeqAndPosition(t *testing.T) {
	view := CriteriaModal()
	assert.Equal(t, router.CallbackCriteriaSave, view.CallbackID)
	assert.Equal(t, CriterionGroupSize, view.InputBlockCount())

	AppendCriterionGroup(view)

	assert.Equal(t, 2*CriterionGroupSize, view.InputBlockCount())
	inputs := view.InputBlocks()
	assert.Equal(t, BlockCriterionPrefix+"2", inputs[2].BlockID)

	// 追加按钮仍然是最后一个块
	last := view.Blocks[len(view.Blocks)-1]
	assert.Equal(t, router.ActionAddCriterion, last.Elements[0].ActionID)
}

func TestParseVariantGroups_NamedDecode(t *testing.T) {
	view := CreatePollModal()
	AppendVariantGroup(view)
	fillVariantGroup(view, 1, "Team A", "描述A", "2026-03-01T10:00:00")
	fillVariantGroup(view, 2, "Team B", "描述B", "2026-03-02T12:30:00")

	inputs, err := ParseVariantGroups(view)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "Team A", inputs[0].Title)
	assert.Equal(t, "描述B", inputs[1].Description)
	assert.Equal(t, time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC), inputs[1].StartDate)
}

func TestParseVariantGroups_IncompleteGroup(t *testing.T) {
	view := CreatePollModal()
	fillVariantGroup(view, 1, "Team A", "", "2026-03-01T10:00:00")

	_, err := ParseVariantGroups(view)
	assert.Error(t, err)
}

func TestParseVariantGroups_BadDate(t *testing.T) {
	view := CreatePollModal()
	fillVariantGroup(view, 1, "Team A", "描述", "昨天")

	_, err := ParseVariantGroups(view)
	assert.Error(t, err)
}

func TestParseCriterionGroups_NamedDecode(t *testing.T) {
	view := CriteriaModal()
	AppendCriterionGroup(view)
	stateValue(view, BlockCriterionPrefix+"1", "技术难度")
	stateValue(view, BlockMaxScorePrefix+"1", "10")
	stateValue(view, BlockCriterionPrefix+"2", "完成度")
	// 非数字输入按最低分处理
	stateValue(view, BlockMaxScorePrefix+"2", "十")

	inputs, err := ParseCriterionGroups(view)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, 10, inputs[0].MaxScore)
	assert.Equal(t, "完成度", inputs[1].Text)
	assert.Equal(t, 1, inputs[1].MaxScore)
}

func TestParseCriterionGroups_MissingText(t *testing.T) {
	view := CriteriaModal()
	stateValue(view, BlockMaxScorePrefix+"1", "10")

	_, err := ParseCriterionGroups(view)
	assert.Error(t, err)
}

func TestPollMessageBlocks_VoteButtonCarriesVariantID(t *testing.T) {
	view := &model.PollView{
		Poll: model.Poll{ID: 1, Channel: "C1"},
		Variants: []model.VariantView{
			{
				Variant:    model.Variant{ID: 42, Title: "Team A", Description: "描述A"},
				VoteCount:  3,
				Thumbnails: []string{"a.png", "b.png"},
			},
			{
				Variant: model.Variant{ID: 43, Title: "Team B", Description: "描述B"},
			},
		},
	}

	blocks := PollMessageBlocks(view)
	rendered, err := slack.MarshalBlocks(blocks)
	require.NoError(t, err)

	assert.Contains(t, rendered, `"action_id":"42"`)
	assert.Contains(t, rendered, `"action_id":"43"`)
	assert.Contains(t, rendered, "3 票")
	assert.Contains(t, rendered, "暂无投票")
	assert.Contains(t, rendered, "a.png")
}

func TestReportMessageBlocks_PlaceMarkers(t *testing.T) {
	rows := []*model.RankedReportRow{
		{ReportRow: model.ReportRow{Team: "Alpha", TotalVotes: 9, Score: 8.75}, Place: "🏆*第一名：*\n"},
		{ReportRow: model.ReportRow{Team: "Bravo", TotalVotes: 7, Score: 7.2}},
	}

	rendered, err := slack.MarshalBlocks(ReportMessageBlocks(rows))
	require.NoError(t, err)
	assert.Contains(t, rendered, "第一名")
	assert.Contains(t, rendered, "Alpha")
	assert.Contains(t, rendered, "*9* 票")
	assert.Contains(t, rendered, "*8.75* 分")
}

func TestScoringDialog_OptionsAndCallback(t *testing.T) {
	variant := &model.Variant{ID: 42, Title: "Team A"}
	criteria := []*model.Criterion{
		{ID: 1, Text: "技术难度", MaxScore: 3},
		{ID: 2, Text: "完成度", MaxScore: 1},
	}

	dialog := ScoringDialog(variant, criteria)
	assert.Equal(t, "42", dialog.CallbackID)
	require.Len(t, dialog.Elements, 2)
	require.Len(t, dialog.Elements[0].Options, 3)
	assert.Equal(t, "1", dialog.Elements[0].Options[0].Value)
	assert.Equal(t, "3", dialog.Elements[0].Options[2].Value)
	assert.Len(t, dialog.Elements[1].Options, 1)
}

func TestScoringDialog_LongTitleTruncated(t *testing.T) {
	long := strings.Repeat("甲", 30)
	dialog := ScoringDialog(&model.Variant{ID: 1, Title: long}, nil)

	runes := []rune(dialog.Title)
	assert.Len(t, runes, dialogTitleLimit)
	assert.Equal(t, "...", string(runes[len(runes)-3:]))
	assert.Equal(t, strings.Repeat("甲", dialogTitleLimit-3), string(runes[:len(runes)-3]))
}

func TestScoringDialog_ShortTitleKept(t *testing.T) {
	dialog := ScoringDialog(&model.Variant{ID: 1, Title: "短标题"}, nil)
	assert.Equal(t, "短标题", dialog.Title)
}
