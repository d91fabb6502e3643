package tally

import (
	"github.com/lvdashuaibi/slackpoll/internal/model"
)

// MaxThumbnails 投票消息里每个参选项展示的头像上限
const MaxThumbnails = 4

// LatestPerVoterVariant 对只追加的投票记录去重：
// 每个 (投票人, 参选项) 只保留最后插入的一条，重复投票静默取代旧票，
// 历史记录本身不删除。输入按插入顺序（ID升序），输出保持首次出现的次序。
func LatestPerVoterVariant(votes []*model.Vote) []*model.Vote {
	type ballot struct {
		voterID   int64
		variantID int64
	}

	latest := make(map[ballot]*model.Vote)
	var order []ballot
	for _, vote := range votes {
		key := ballot{voterID: vote.VoterID, variantID: vote.VariantID}
		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = vote
	}

	result := make([]*model.Vote, 0, len(order))
	for _, key := range order {
		result = append(result, latest[key])
	}
	return result
}

// CountByVariant 统计每个参选项的计入票数（去重后的不同投票人数量）
func CountByVariant(votes []*model.Vote) map[int64]int {
	deduped := LatestPerVoterVariant(votes)

	voters := make(map[int64]map[int64]struct{})
	for _, vote := range deduped {
		if voters[vote.VariantID] == nil {
			voters[vote.VariantID] = make(map[int64]struct{})
		}
		voters[vote.VariantID][vote.VoterID] = struct{}{}
	}

	counts := make(map[int64]int, len(voters))
	for variantID, set := range voters {
		counts[variantID] = len(set)
	}
	return counts
}

// ThumbnailsByVariant 每个参选项计入投票人的缓存头像，
// 最近的四个，按时间倒序排列
func ThumbnailsByVariant(votes []*model.Vote, voters []*model.Voter) map[int64][]string {
	thumbnails := make(map[int64]string, len(voters))
	for _, voter := range voters {
		thumbnails[voter.ID] = voter.Thumbnail
	}

	deduped := LatestPerVoterVariant(votes)

	images := make(map[int64][]string)
	for _, vote := range deduped {
		url, ok := thumbnails[vote.VoterID]
		if !ok || url == "" {
			continue
		}
		images[vote.VariantID] = append(images[vote.VariantID], url)
	}

	// 倒序取最近四个
	for variantID, urls := range images {
		reversed := make([]string, 0, MaxThumbnails)
		for i := len(urls) - 1; i >= 0 && len(reversed) < MaxThumbnails; i-- {
			reversed = append(reversed, urls[i])
		}
		images[variantID] = reversed
	}
	return images
}

// BuildPollView 把原始行聚合成投票消息视图
func BuildPollView(poll *model.Poll, variants []*model.Variant,
	votes []*model.Vote, voters []*model.Voter) *model.PollView {

	counts := CountByVariant(votes)
	images := ThumbnailsByVariant(votes, voters)

	view := &model.PollView{Poll: *poll}
	for _, variant := range variants {
		view.Variants = append(view.Variants, model.VariantView{
			Variant:    *variant,
			VoteCount:  counts[variant.ID],
			Thumbnails: images[variant.ID],
		})
	}
	return view
}

// 名次标记，只有前三名有
var placeMarkers = []string{
	"🏆*第一名：*\n",
	"🌟*第二名：*\n",
	"🌟*第三名：*\n",
}

// Rank 对报表行做门槛过滤与名次标注。
// 行序沿用底层查询的稳定顺序，不引入额外的次级排序键；
// 前三行带固定名次标记，其余留空。
func Rank(rows []*model.ReportRow, minVotes int) []*model.RankedReportRow {
	var ranked []*model.RankedReportRow
	for _, row := range rows {
		if row.TotalVotes < minVotes {
			continue
		}
		entry := &model.RankedReportRow{ReportRow: *row}
		if position := len(ranked); position < len(placeMarkers) {
			entry.Place = placeMarkers[position]
		}
		ranked = append(ranked, entry)
	}
	return ranked
}
