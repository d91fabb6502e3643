package graph

import (
	"context"
	"net/http"
	"strconv"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"

	"github.com/lvdashuaibi/slackpoll/config"
	"github.com/lvdashuaibi/slackpoll/internal/model"
	"github.com/lvdashuaibi/slackpoll/internal/service"
	"github.com/lvdashuaibi/slackpoll/internal/tally"
)

// GraphQLServer 只读查询端点，投票的写入路径只走Slack回调
type GraphQLServer struct {
	schema   *graphql.Schema
	handler  *relay.Handler
	resolver *Resolver
}

// 读取GraphQL Schema定义
const schemaString = `
type Poll {
  id: ID!
  channel: String!
  isClosed: Boolean!
  variants: [Variant!]!
}

type Variant {
  id: ID!
  title: String!
  description: String!
  startDate: String!
  voteCount: Int!
}

type ReportRow {
  place: String!
  team: String!
  channel: String!
  totalVotes: Int!
  score: Float!
}

type Query {
  # 查询最近的投票及其计票
  lastPoll: Poll!

  # 查询排名后的报表
  report: [ReportRow!]!
}

schema {
  query: Query
}
`

// NewGraphQLServer 创建新的GraphQL服务器
func NewGraphQLServer(gateway service.Gateway) *GraphQLServer {
	resolver := NewResolver(gateway)

	schema := graphql.MustParseSchema(schemaString, resolver,
		graphql.UseFieldResolvers(),
	)

	handler := &relay.Handler{Schema: schema}

	return &GraphQLServer{
		schema:   schema,
		handler:  handler,
		resolver: resolver,
	}
}

// Handler 返回可挂载到任意路由的HTTP处理器
func (s *GraphQLServer) Handler() http.Handler {
	return s.handler
}

// Resolver GraphQL解析器
type Resolver struct {
	gateway service.Gateway
}

// NewResolver 创建新的解析器
func NewResolver(gateway service.Gateway) *Resolver {
	return &Resolver{gateway: gateway}
}

// LastPoll 查询最近的投票及其计票
func (r *Resolver) LastPoll(ctx context.Context) (*PollResolver, error) {
	poll, err := r.gateway.ReadLastPoll()
	if err != nil {
		return nil, err
	}
	variants, err := r.gateway.ReadVariantsForPoll(poll.ID)
	if err != nil {
		return nil, err
	}
	votes, err := r.gateway.ReadVotesForPoll(poll.ID)
	if err != nil {
		return nil, err
	}
	voters, err := r.gateway.ReadAllVoters()
	if err != nil {
		return nil, err
	}

	view := tally.BuildPollView(poll, variants, votes, voters)
	return &PollResolver{view: view}, nil
}

// Report 查询排名后的报表
func (r *Resolver) Report(ctx context.Context) ([]*ReportRowResolver, error) {
	rows, err := r.gateway.ReadReport()
	if err != nil {
		return nil, err
	}

	ranked := tally.Rank(rows, config.AppConfig.Report.MinVotes)
	resolvers := make([]*ReportRowResolver, len(ranked))
	for i, row := range ranked {
		resolvers[i] = &ReportRowResolver{row: row}
	}
	return resolvers, nil
}

// PollResolver 投票解析器
type PollResolver struct {
	view *model.PollView
}

func (r *PollResolver) ID() graphql.ID {
	return graphql.ID(strconv.FormatInt(r.view.Poll.ID, 10))
}

func (r *PollResolver) Channel() string {
	return r.view.Channel
}

func (r *PollResolver) IsClosed() bool {
	return r.view.Poll.IsClosed
}

func (r *PollResolver) Variants() []*VariantResolver {
	resolvers := make([]*VariantResolver, len(r.view.Variants))
	for i := range r.view.Variants {
		resolvers[i] = &VariantResolver{variant: &r.view.Variants[i]}
	}
	return resolvers
}

// VariantResolver 参选项解析器
type VariantResolver struct {
	variant *model.VariantView
}

func (r *VariantResolver) ID() graphql.ID {
	return graphql.ID(strconv.FormatInt(r.variant.ID, 10))
}

func (r *VariantResolver) Title() string {
	return r.variant.Title
}

func (r *VariantResolver) Description() string {
	return r.variant.Description
}

func (r *VariantResolver) StartDate() string {
	return r.variant.StartDate.Format(time.RFC3339)
}

func (r *VariantResolver) VoteCount() int32 {
	return int32(r.variant.VoteCount)
}

// ReportRowResolver 报表行解析器
type ReportRowResolver struct {
	row *model.RankedReportRow
}

func (r *ReportRowResolver) Place() string {
	return r.row.Place
}

func (r *ReportRowResolver) Team() string {
	return r.row.Team
}

func (r *ReportRowResolver) Channel() string {
	return r.row.Channel
}

func (r *ReportRowResolver) TotalVotes() int32 {
	return int32(r.row.TotalVotes)
}

func (r *ReportRowResolver) Score() float64 {
	return r.row.Score
}
