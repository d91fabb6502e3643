package service

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/lvdashuaibi/slackpoll/config"
	"github.com/lvdashuaibi/slackpoll/internal/model"
	"github.com/lvdashuaibi/slackpoll/internal/router"
	"github.com/lvdashuaibi/slackpoll/internal/session"
	"github.com/lvdashuaibi/slackpoll/internal/slack"
	"github.com/lvdashuaibi/slackpoll/internal/tally"
	"github.com/lvdashuaibi/slackpoll/internal/ui"
)

// Gateway 持久化网关，每个操作独立可失败
type Gateway interface {
	FindVoter(slackUserID string) (*model.Voter, error)
	UpsertVoter(slackUserID, thumbnail string) (*model.Voter, error)
	ReadAllVoters() ([]*model.Voter, error)
	ReadLastPoll() (*model.Poll, error)
	ReadCriteriaForLastPoll() ([]*model.Criterion, error)
	ReadVariantsForPoll(pollID int64) ([]*model.Variant, error)
	ReadVariant(variantID int64) (*model.Variant, error)
	ReadVotesForPoll(pollID int64) ([]*model.Vote, error)
	ReadVotesForVoter(slackUserID string) ([]*model.Vote, error)
	WriteVote(vote *model.Vote) error
	WriteNewPoll(draft session.Draft) (int64, error)
	UpdatePollTimestamp(ts string) error
	ReadReport() ([]*model.ReportRow, error)
}

// VoterCache 投票人身份缓存
type VoterCache interface {
	GetVoter(slackUserID string) (*model.Voter, bool, error)
	SetVoter(voter *model.Voter) error
	DeleteVoter(slackUserID string) error
}

// SlackAPI Slack 出站客户端
type SlackAPI interface {
	PostMessage(req *slack.PostMessageRequest) (*slack.MessageResponse, error)
	UpdateMessage(req *slack.UpdateMessageRequest) (*slack.MessageResponse, error)
	OpenView(triggerID string, view *slack.View) (*slack.ViewResponse, error)
	PushView(triggerID string, view *slack.View) (*slack.ViewResponse, error)
	UpdateView(viewID string, view *slack.View) (*slack.ViewResponse, error)
	OpenDialog(triggerID string, dialog *slack.Dialog) error
	GetUserInfo(userID string) (*slack.UserInfoResponse, error)
}

// EventPublisher 投票事件发布
type EventPublisher interface {
	SendVoteEvent(event *model.VoteEvent) error
}

// PollService 工作流编排：入站回调在这里分流为草稿修改或异步工作流。
// 入站请求先确认，后台链路失败只记日志，不反馈给投票人。
type PollService struct {
	gateway   Gateway
	cache     VoterCache
	slackAPI  SlackAPI
	publisher EventPublisher
	drafts    *session.Store
}

func NewPollService(
	gateway Gateway,
	cache VoterCache,
	slackAPI SlackAPI,
	publisher EventPublisher,
	drafts *session.Store,
) *PollService {
	return &PollService{
		gateway:   gateway,
		cache:     cache,
		slackAPI:  slackAPI,
		publisher: publisher,
		drafts:    drafts,
	}
}

// HandleInteraction 处理交互回调。返回 error 表示该请求载荷损坏，
// 由上层以硬错误中止；后台链路的失败不经过这里。
func (s *PollService) HandleInteraction(payload *slack.InteractionPayload) error {
	decision, err := router.Dispatch(payload)
	if err != nil {
		return err
	}

	switch decision.Kind {
	case router.KindAddVariant:
		s.AddVariantGroup(decision.View)
	case router.KindChooseChannel:
		s.drafts.SetChannel(decision.Channel)
	case router.KindCriteriaSetup:
		s.OpenCriteriaModal(payload.TriggerID)
	case router.KindAddCriterion:
		s.AddCriterionGroup(decision.View)
	case router.KindOpenVoteDialog:
		s.OpenVoteDialog(payload, decision.ActionID)
	case router.KindSaveCriteria:
		return s.SaveCriteria(decision.View)
	case router.KindFinalizePoll:
		return s.FinalizePoll(decision.View)
	case router.KindSubmitVote:
		return s.SubmitVote(payload)
	case router.KindIgnore:
	}
	return nil
}

// CreatePollMenu 打开创建投票的模态，并开启一份新草稿。
// 之前未完结的草稿在这里被隐式丢弃。
func (s *PollService) CreatePollMenu(triggerID string) {
	s.drafts.StartDraft()

	go func() {
		if _, err := s.slackAPI.OpenView(triggerID, ui.CreatePollModal()); err != nil {
			log.Printf("打开创建投票模态失败: %v", err)
		}
	}()
}

// AddVariantGroup 向创建模态追加一组参选项输入块并回推更新
func (s *PollService) AddVariantGroup(view *slack.View) {
	ui.AppendVariantGroup(view)
	s.pushViewUpdate(view)
}

// AddCriterionGroup 向维度模态追加一组输入块并回推更新
func (s *PollService) AddCriterionGroup(view *slack.View) {
	ui.AppendCriterionGroup(view)
	s.pushViewUpdate(view)
}

func (s *PollService) pushViewUpdate(view *slack.View) {
	// 回推时去掉入站附带的 id/state
	outbound := &slack.View{
		Type:       "modal",
		CallbackID: view.CallbackID,
		Title:      view.Title,
		Submit:     view.Submit,
		Blocks:     view.Blocks,
	}

	go func() {
		if _, err := s.slackAPI.UpdateView(view.ID, outbound); err != nil {
			log.Printf("更新模态视图失败: %v", err)
		}
	}()
}

// OpenCriteriaModal 在创建模态之上压入评分维度设置模态
func (s *PollService) OpenCriteriaModal(triggerID string) {
	go func() {
		if _, err := s.slackAPI.PushView(triggerID, ui.CriteriaModal()); err != nil {
			log.Printf("打开评分维度模态失败: %v", err)
		}
	}()
}

// SaveCriteria 维度模态提交：解码后逐条写入草稿。
// 模态已被平台关闭，解码失败时草稿可能与操作者的输入脱节，打上陈旧标记。
func (s *PollService) SaveCriteria(view *slack.View) error {
	inputs, err := ui.ParseCriterionGroups(view)
	if err != nil {
		s.drafts.MarkStale()
		return fmt.Errorf("解析评分维度提交失败: %w", err)
	}

	for _, input := range inputs {
		s.drafts.AppendCriterion(input.Text, input.MaxScore)
	}
	return nil
}

// FinalizePoll 创建模态提交：补全参选项后完结草稿并在后台持久化。
// 完结是唯一产出可持久化数据的路径，空草稿也允许完结。
func (s *PollService) FinalizePoll(view *slack.View) error {
	inputs, err := ui.ParseVariantGroups(view)
	if err != nil {
		s.drafts.MarkStale()
		return fmt.Errorf("解析参选项提交失败: %w", err)
	}

	for _, input := range inputs {
		s.drafts.AppendVariant(input.Title, input.Description, input.StartDate)
	}

	draft := s.drafts.FinalizeDraft()
	if draft.Stale {
		log.Printf("完结的草稿带有陈旧标记，数据可能不完整: 频道=%s 维度=%d 参选项=%d",
			draft.Channel, len(draft.Criteria), len(draft.Variants))
	}

	go func() {
		pollID, err := s.gateway.WriteNewPoll(draft)
		if err != nil {
			log.Printf("持久化投票失败: %v", err)
			return
		}
		log.Printf("投票已持久化: id=%d 频道=%s 维度=%d 参选项=%d",
			pollID, draft.Channel, len(draft.Criteria), len(draft.Variants))
	}()
	return nil
}

// PostLastPoll 把最近的投票发布到频道，并记录消息时间戳
func (s *PollService) PostLastPoll() {
	go func() {
		view, err := s.readPollView()
		if err != nil {
			log.Printf("读取投票视图失败: %v", err)
			return
		}

		resp, err := s.slackAPI.PostMessage(&slack.PostMessageRequest{
			Channel: view.Channel,
			Text:    "投票",
			Blocks:  ui.PollMessageBlocks(view),
		})
		if err != nil {
			log.Printf("发布投票消息失败: %v", err)
			return
		}

		if err := s.gateway.UpdatePollTimestamp(resp.TS); err != nil {
			log.Printf("记录投票消息时间戳失败: %v", err)
		}
	}()
}

// CloseAndReport 读取报表聚合行，排名后发布结果消息
func (s *PollService) CloseAndReport() {
	go func() {
		rows, err := s.gateway.ReadReport()
		if err != nil {
			log.Printf("读取报表失败: %v", err)
			return
		}

		ranked := tally.Rank(rows, config.AppConfig.Report.MinVotes)
		if len(ranked) == 0 {
			log.Printf("报表为空，没有达到门槛的参选项")
			return
		}

		if _, err := s.slackAPI.PostMessage(&slack.PostMessageRequest{
			Channel: ranked[0].Channel,
			Text:    "投票结果",
			Blocks:  ui.ReportMessageBlocks(ranked),
		}); err != nil {
			log.Printf("发布报表消息失败: %v", err)
		}
	}()
}

// OpenVoteDialog 投票资格门：并发获取已投记录与参选项，
// 两项都就绪后决定打开打分对话框还是提示。任一查询失败则什么都不做。
func (s *PollService) OpenVoteDialog(payload *slack.InteractionPayload, actionID string) {
	variantID, err := strconv.ParseInt(actionID, 10, 64)
	if err != nil {
		log.Printf("action_id %q 不是参选项ID，忽略", actionID)
		return
	}

	slackUserID := payload.User.ID
	triggerID := payload.TriggerID

	go func() {
		var (
			votes    []*model.Vote
			votesErr error
			variant  *model.Variant
			varErr   error
		)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			votes, votesErr = s.gateway.ReadVotesForVoter(slackUserID)
		}()
		go func() {
			defer wg.Done()
			variant, varErr = s.gateway.ReadVariant(variantID)
		}()
		wg.Wait()

		if votesErr != nil {
			log.Printf("读取用户投票记录失败: %v", votesErr)
			return
		}
		if varErr != nil {
			log.Printf("读取参选项失败: %v", varErr)
			return
		}

		alreadyVoted := false
		for _, vote := range tally.LatestPerVoterVariant(votes) {
			if vote.VariantID == variantID {
				alreadyVoted = true
				break
			}
		}

		switch {
		case alreadyVoted:
			if _, err := s.slackAPI.OpenView(triggerID, ui.AlreadyVotedView()); err != nil {
				log.Printf("打开已投票提示失败: %v", err)
			}
		case time.Now().Before(variant.StartDate):
			if _, err := s.slackAPI.OpenView(triggerID, ui.NotOpenYetView(variant.StartDate)); err != nil {
				log.Printf("打开未开始提示失败: %v", err)
			}
		default:
			s.openScoringDialog(triggerID, variant)
		}
	}()
}

func (s *PollService) openScoringDialog(triggerID string, variant *model.Variant) {
	criteria, err := s.gateway.ReadCriteriaForLastPoll()
	if err != nil {
		log.Printf("读取评分维度失败: %v", err)
		return
	}

	if err := s.slackAPI.OpenDialog(triggerID, ui.ScoringDialog(variant, criteria)); err != nil {
		log.Printf("打开打分对话框失败: %v", err)
	}
}

// SubmitVote 打分对话框提交：构造投票事件投递到队列。
// 投递失败退化为同步处理，保证数据不丢。
func (s *PollService) SubmitVote(payload *slack.InteractionPayload) error {
	if payload.CallbackID == "" {
		return fmt.Errorf("打分提交缺少 callback_id")
	}
	variantID, err := strconv.ParseInt(payload.CallbackID, 10, 64)
	if err != nil {
		return fmt.Errorf("打分提交的 callback_id %q 不是参选项ID", payload.CallbackID)
	}
	if len(payload.Submission) == 0 {
		return fmt.Errorf("打分提交缺少 submission 字段")
	}

	scores := make(map[string]int, len(payload.Submission))
	for criterion, raw := range payload.Submission {
		score, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("维度 %q 的分数 %q 无法解析", criterion, raw)
		}
		scores[criterion] = score
	}

	event := &model.VoteEvent{
		SlackUserID: payload.User.ID,
		VariantID:   variantID,
		Scores:      scores,
		SubmittedAt: time.Now(),
	}

	if err := s.publisher.SendVoteEvent(event); err != nil {
		log.Printf("发送投票事件到Kafka失败: %v，改为同步处理", err)
		go func() {
			if err := s.ProcessVoteEvent(event); err != nil {
				log.Printf("同步处理投票事件失败: %v", err)
			}
		}()
	}
	return nil
}

// ProcessVoteEvent 投票落库工作流（消费worker调用）：
// 1. 解析投票人身份  2. 读取当前维度  3. 每个维度并发写一票，等待全部落定
// 4. 汇合之后刷新已发布的投票消息。单笔写入失败只记日志，不影响兄弟写入。
func (s *PollService) ProcessVoteEvent(event *model.VoteEvent) error {
	voter, err := s.resolveVoter(event.SlackUserID)
	if err != nil {
		return fmt.Errorf("解析投票人身份失败: %w", err)
	}

	poll, err := s.gateway.ReadLastPoll()
	if err != nil {
		return fmt.Errorf("读取最近投票失败: %w", err)
	}
	criteria, err := s.gateway.ReadCriteriaForLastPoll()
	if err != nil {
		return fmt.Errorf("读取评分维度失败: %w", err)
	}

	var wg sync.WaitGroup
	for _, criterion := range criteria {
		score, ok := event.Scores[criterion.Text]
		if !ok {
			log.Printf("提交里缺少维度 %q 的分数，跳过", criterion.Text)
			continue
		}

		wg.Add(1)
		go func(criterionID int64, score int) {
			defer wg.Done()
			vote := &model.Vote{
				VoterID:     voter.ID,
				PollID:      poll.ID,
				VariantID:   event.VariantID,
				CriterionID: criterionID,
				Score:       score,
			}
			if err := s.gateway.WriteVote(vote); err != nil {
				log.Printf("写入投票记录失败(维度=%d): %v", criterionID, err)
			}
		}(criterion.ID, score)
	}
	// 消息刷新严格等待全部写入落定之后
	wg.Wait()

	s.refreshPollMessage()
	return nil
}

// resolveVoter 身份解析：缓存 -> 数据库 -> Slack users.info，
// 远端命中后写穿缓存，两条路径都收敛到同一个内部投票人ID
func (s *PollService) resolveVoter(slackUserID string) (*model.Voter, error) {
	if voter, found, err := s.cache.GetVoter(slackUserID); err != nil {
		log.Printf("读取投票人缓存失败: %v", err)
	} else if found {
		return voter, nil
	}

	if voter, err := s.gateway.FindVoter(slackUserID); err == nil {
		if err := s.cache.SetVoter(voter); err != nil {
			log.Printf("写入投票人缓存失败: %v", err)
		}
		return voter, nil
	}

	info, err := s.slackAPI.GetUserInfo(slackUserID)
	if err != nil {
		return nil, fmt.Errorf("查询用户资料失败: %w", err)
	}

	voter, err := s.gateway.UpsertVoter(slackUserID, info.User.Profile.Image24)
	if err != nil {
		return nil, fmt.Errorf("写入投票人失败: %w", err)
	}
	// 头像可能已更新，先失效旧缓存再写入新档案
	if err := s.cache.DeleteVoter(slackUserID); err != nil {
		log.Printf("失效投票人缓存失败: %v", err)
	}
	if err := s.cache.SetVoter(voter); err != nil {
		log.Printf("写入投票人缓存失败: %v", err)
	}
	return voter, nil
}

// readPollView 读取最近投票的完整视图（含计票与头像）
func (s *PollService) readPollView() (*model.PollView, error) {
	poll, err := s.gateway.ReadLastPoll()
	if err != nil {
		return nil, err
	}
	variants, err := s.gateway.ReadVariantsForPoll(poll.ID)
	if err != nil {
		return nil, err
	}
	votes, err := s.gateway.ReadVotesForPoll(poll.ID)
	if err != nil {
		return nil, err
	}
	voters, err := s.gateway.ReadAllVoters()
	if err != nil {
		return nil, err
	}
	return tally.BuildPollView(poll, variants, votes, voters), nil
}

// refreshPollMessage 按已存储的时间戳编辑投票消息
func (s *PollService) refreshPollMessage() {
	view, err := s.readPollView()
	if err != nil {
		log.Printf("读取投票视图失败: %v", err)
		return
	}
	if view.MessageTS == nil || *view.MessageTS == "" {
		log.Printf("投票消息尚未发布，跳过刷新")
		return
	}

	if _, err := s.slackAPI.UpdateMessage(&slack.UpdateMessageRequest{
		Channel: view.Channel,
		TS:      *view.MessageTS,
		Text:    "投票",
		Blocks:  ui.PollMessageBlocks(view),
	}); err != nil {
		log.Printf("刷新投票消息失败: %v", err)
	}
}
