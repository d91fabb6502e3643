package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvdashuaibi/slackpoll/config"
	"github.com/lvdashuaibi/slackpoll/internal/api/graph"
	"github.com/lvdashuaibi/slackpoll/internal/model"
	"github.com/lvdashuaibi/slackpoll/internal/service"
	"github.com/lvdashuaibi/slackpoll/internal/session"
	"github.com/lvdashuaibi/slackpoll/internal/slack"
)

// stubGateway 空实现，端点测试只关心响应码，后台链路失败只记日志
type stubGateway struct{}

func (stubGateway) FindVoter(string) (*model.Voter, error) { return nil, fmt.Errorf("不可用") }
func (stubGateway) UpsertVoter(string, string) (*model.Voter, error) {
	return nil, fmt.Errorf("不可用")
}
func (stubGateway) ReadAllVoters() ([]*model.Voter, error) { return nil, nil }
func (stubGateway) ReadLastPoll() (*model.Poll, error)     { return nil, fmt.Errorf("没有投票记录") }
func (stubGateway) ReadCriteriaForLastPoll() ([]*model.Criterion, error) {
	return nil, nil
}
func (stubGateway) ReadVariantsForPoll(int64) ([]*model.Variant, error) { return nil, nil }
func (stubGateway) ReadVariant(int64) (*model.Variant, error) {
	return nil, fmt.Errorf("参选项不存在")
}
func (stubGateway) ReadVotesForPoll(int64) ([]*model.Vote, error)    { return nil, nil }
func (stubGateway) ReadVotesForVoter(string) ([]*model.Vote, error)  { return nil, nil }
func (stubGateway) WriteVote(*model.Vote) error                      { return nil }
func (stubGateway) WriteNewPoll(session.Draft) (int64, error)        { return 1, nil }
func (stubGateway) UpdatePollTimestamp(string) error                 { return nil }
func (stubGateway) ReadReport() ([]*model.ReportRow, error)          { return nil, nil }

type stubCache struct{}

func (stubCache) GetVoter(string) (*model.Voter, bool, error) { return nil, false, nil }
func (stubCache) SetVoter(*model.Voter) error                 { return nil }
func (stubCache) DeleteVoter(string) error                    { return nil }

type stubSlack struct{}

func (stubSlack) PostMessage(*slack.PostMessageRequest) (*slack.MessageResponse, error) {
	return &slack.MessageResponse{}, nil
}
func (stubSlack) UpdateMessage(*slack.UpdateMessageRequest) (*slack.MessageResponse, error) {
	return &slack.MessageResponse{}, nil
}
func (stubSlack) OpenView(string, *slack.View) (*slack.ViewResponse, error) {
	return &slack.ViewResponse{}, nil
}
func (stubSlack) PushView(string, *slack.View) (*slack.ViewResponse, error) {
	return &slack.ViewResponse{}, nil
}
func (stubSlack) UpdateView(string, *slack.View) (*slack.ViewResponse, error) {
	return &slack.ViewResponse{}, nil
}
func (stubSlack) OpenDialog(string, *slack.Dialog) error { return nil }
func (stubSlack) GetUserInfo(string) (*slack.UserInfoResponse, error) {
	return &slack.UserInfoResponse{}, nil
}

type stubPublisher struct{}

func (stubPublisher) SendVoteEvent(*model.VoteEvent) error { return nil }

func newTestServer() (*Server, *session.Store) {
	gin.SetMode(gin.TestMode)
	config.AppConfig.API.GraphQLPath = "/api/graphql"

	drafts := session.NewStore()
	pollService := service.NewPollService(
		stubGateway{}, stubCache{}, stubSlack{}, stubPublisher{}, drafts)
	return NewServer(pollService, graph.NewGraphQLServer(stubGateway{})), drafts
}

func postForm(server *Server, path string, form url.Values) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	server.Engine().ServeHTTP(recorder, request)
	return recorder
}

func TestAdminGate_EmptyAdminAllowsAnyone(t *testing.T) {
	server, _ := newTestServer()
	config.AppConfig.Slack.AdminUser = ""

	recorder := postForm(server, "/api/slack/post_poll", url.Values{"user_id": {"U-random"}})
	assert.Equal(t, http.StatusOK, recorder.Code)

	// 连 user_id 都不带也放行
	recorder = postForm(server, "/api/slack/close_and_post_report", url.Values{})
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestAdminGate_MismatchForbidden(t *testing.T) {
	server, _ := newTestServer()
	config.AppConfig.Slack.AdminUser = "U-admin"
	defer func() { config.AppConfig.Slack.AdminUser = "" }()

	recorder := postForm(server, "/api/slack/post_poll", url.Values{"user_id": {"U-else"}})
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	// user_id 缺失同样拒绝
	recorder = postForm(server, "/api/slack/create_poll", url.Values{"trigger_id": {"t1"}})
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestAdminGate_MatchAllowed(t *testing.T) {
	server, _ := newTestServer()
	config.AppConfig.Slack.AdminUser = "U-admin"
	defer func() { config.AppConfig.Slack.AdminUser = "" }()

	recorder := postForm(server, "/api/slack/create_poll",
		url.Values{"user_id": {"U-admin"}, "trigger_id": {"t1"}})
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestCreatePoll_MissingTriggerID(t *testing.T) {
	server, _ := newTestServer()
	config.AppConfig.Slack.AdminUser = ""

	recorder := postForm(server, "/api/slack/create_poll", url.Values{})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestInteraction_MissingPayload(t *testing.T) {
	server, _ := newTestServer()

	recorder := postForm(server, "/api/slack/dialog", url.Values{})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestInteraction_MalformedPayload(t *testing.T) {
	server, _ := newTestServer()

	// 不是JSON
	recorder := postForm(server, "/api/slack/dialog", url.Values{"payload": {"{not json"}})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// 缺少 type 字段
	recorder = postForm(server, "/api/slack/dialog", url.Values{"payload": {`{"trigger_id":"t1"}`}})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// 种类合法但必要子字段缺失
	recorder = postForm(server, "/api/slack/dialog",
		url.Values{"payload": {`{"type":"block_actions"}`}})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestInteraction_WellFormedAcknowledged(t *testing.T) {
	server, drafts := newTestServer()

	payload := `{"type":"block_actions","user":{"id":"U1"},` +
		`"actions":[{"action_id":"channel_choose","selected_channel":"C42"}]}`
	recorder := postForm(server, "/api/slack/dialog", url.Values{"payload": {payload}})

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "C42", drafts.Snapshot().Channel)
}
