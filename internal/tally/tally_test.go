package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvdashuaibi/slackpoll/internal/model"
)

func vote(id, voterID, variantID, criterionID int64, score int) *model.Vote {
	return &model.Vote{
		ID:          id,
		VoterID:     voterID,
		PollID:      1,
		VariantID:   variantID,
		CriterionID: criterionID,
		Score:       score,
	}
}

func TestLatestPerVoterVariant_RepeatReplacedSilently(t *testing.T) {
	votes := []*model.Vote{
		vote(1, 10, 100, 1, 3),
		vote(2, 11, 100, 1, 5),
		// 投票人10对同一参选项重复投票，只有最后一条计入
		vote(3, 10, 100, 1, 8),
	}

	deduped := LatestPerVoterVariant(votes)
	require.Len(t, deduped, 2)
	assert.Equal(t, int64(3), deduped[0].ID)
	assert.Equal(t, 8, deduped[0].Score)
	assert.Equal(t, int64(2), deduped[1].ID)
}

func TestLatestPerVoterVariant_DistinctVariantsKept(t *testing.T) {
	votes := []*model.Vote{
		vote(1, 10, 100, 1, 3),
		vote(2, 10, 200, 1, 4),
	}

	// 同一投票人投不同参选项不算重复
	assert.Len(t, LatestPerVoterVariant(votes), 2)
}

func TestCountByVariant_DistinctVotersAfterDedup(t *testing.T) {
	votes := []*model.Vote{
		// 投票人10给参选项100的两个维度各一票，多维度只算一个人
		vote(1, 10, 100, 1, 3),
		vote(2, 10, 100, 2, 4),
		vote(3, 11, 100, 1, 5),
		vote(4, 12, 200, 1, 2),
	}

	counts := CountByVariant(votes)
	assert.Equal(t, 2, counts[100])
	assert.Equal(t, 1, counts[200])
}

func TestThumbnailsByVariant_ReversedCapped(t *testing.T) {
	voters := []*model.Voter{
		{ID: 1, SlackUserID: "U1", Thumbnail: "u1.png"},
		{ID: 2, SlackUserID: "U2", Thumbnail: "u2.png"},
		{ID: 3, SlackUserID: "U3", Thumbnail: "u3.png"},
		{ID: 4, SlackUserID: "U4", Thumbnail: "u4.png"},
		{ID: 5, SlackUserID: "U5", Thumbnail: "u5.png"},
		{ID: 6, SlackUserID: "U6", Thumbnail: ""},
	}
	votes := []*model.Vote{
		vote(1, 1, 100, 1, 3),
		vote(2, 2, 100, 1, 3),
		vote(3, 3, 100, 1, 3),
		vote(4, 4, 100, 1, 3),
		vote(5, 5, 100, 1, 3),
		// 没有头像的投票人不出现在列表里
		vote(6, 6, 100, 1, 3),
	}

	images := ThumbnailsByVariant(votes, voters)
	// 最近的四个，时间倒序
	assert.Equal(t, []string{"u5.png", "u4.png", "u3.png", "u2.png"}, images[100])
}

func TestBuildPollView_PerVariantStats(t *testing.T) {
	ts := "1700000000.000100"
	poll := &model.Poll{ID: 1, Channel: "C1", MessageTS: &ts}
	variants := []*model.Variant{
		{ID: 100, PollID: 1, Title: "Team A"},
		{ID: 200, PollID: 1, Title: "Team B"},
	}
	voters := []*model.Voter{
		{ID: 10, SlackUserID: "U10", Thumbnail: "a.png"},
	}
	votes := []*model.Vote{
		vote(1, 10, 100, 1, 5),
	}

	view := BuildPollView(poll, variants, votes, voters)
	require.Len(t, view.Variants, 2)
	assert.Equal(t, "C1", view.Channel)
	assert.Equal(t, 1, view.Variants[0].VoteCount)
	assert.Equal(t, []string{"a.png"}, view.Variants[0].Thumbnails)
	// 没有投票的参选项票数为零
	assert.Equal(t, 0, view.Variants[1].VoteCount)
	assert.Empty(t, view.Variants[1].Thumbnails)
}

func TestRank_ThresholdAndPlaceMarkers(t *testing.T) {
	rows := []*model.ReportRow{
		{Team: "Alpha", Channel: "C1", TotalVotes: 9, Score: 8.7},
		{Team: "Bravo", Channel: "C1", TotalVotes: 7, Score: 7.2},
		// 不足门槛的行被过滤，名次顺延给下一行
		{Team: "Thin", Channel: "C1", TotalVotes: 1, Score: 9.9},
		{Team: "Charlie", Channel: "C1", TotalVotes: 5, Score: 6.1},
		{Team: "Delta", Channel: "C1", TotalVotes: 4, Score: 5.0},
	}

	ranked := Rank(rows, 3)
	require.Len(t, ranked, 4)
	assert.Contains(t, ranked[0].Place, "第一名")
	assert.Contains(t, ranked[1].Place, "第二名")
	assert.Equal(t, "Charlie", ranked[2].Team)
	assert.Contains(t, ranked[2].Place, "第三名")
	assert.Empty(t, ranked[3].Place)
}

func TestRank_EmptyWhenNothingPasses(t *testing.T) {
	rows := []*model.ReportRow{
		{Team: "Alpha", TotalVotes: 1, Score: 8.7},
	}

	assert.Empty(t, Rank(rows, 5))
}

func TestRank_PreservesInputOrder(t *testing.T) {
	rows := []*model.ReportRow{
		{Team: "Low", TotalVotes: 5, Score: 2.0},
		{Team: "High", TotalVotes: 5, Score: 9.0},
	}

	// 排名沿用底层查询给出的顺序，不重新排序
	ranked := Rank(rows, 1)
	require.Len(t, ranked, 2)
	assert.Equal(t, "Low", ranked[0].Team)
	assert.Equal(t, "High", ranked[1].Team)
}
