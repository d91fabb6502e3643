package repository

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/lvdashuaibi/slackpoll/config"
	"github.com/lvdashuaibi/slackpoll/internal/model"
	"github.com/lvdashuaibi/slackpoll/internal/session"
)

type MySQLRepository struct {
	masterDB *sql.DB
	slaveDB  *sql.DB
}

func NewMySQLRepository() (*MySQLRepository, error) {
	masterDB, err := sql.Open("mysql", config.AppConfig.MySQL.Master)
	if err != nil {
		return nil, fmt.Errorf("连接主数据库失败: %w", err)
	}

	masterDB.SetMaxOpenConns(config.AppConfig.MySQL.MaxOpenConns)
	masterDB.SetMaxIdleConns(config.AppConfig.MySQL.MaxIdleConns)
	masterDB.SetConnMaxLifetime(time.Hour)

	if err = masterDB.Ping(); err != nil {
		return nil, fmt.Errorf("主数据库连接测试失败: %w", err)
	}

	slaveDB, err := sql.Open("mysql", config.AppConfig.MySQL.Slave)
	if err != nil {
		return nil, fmt.Errorf("连接从数据库失败: %w", err)
	}

	slaveDB.SetMaxOpenConns(config.AppConfig.MySQL.MaxOpenConns)
	slaveDB.SetMaxIdleConns(config.AppConfig.MySQL.MaxIdleConns)
	slaveDB.SetConnMaxLifetime(time.Hour)

	if err = slaveDB.Ping(); err != nil {
		log.Printf("从数据库连接测试失败: %v，将使用主数据库代替", err)
		slaveDB = masterDB
	}

	return &MySQLRepository{
		masterDB: masterDB,
		slaveDB:  slaveDB,
	}, nil
}

// FindVoter 按 Slack 用户ID查找投票人
func (r *MySQLRepository) FindVoter(slackUserID string) (*model.Voter, error) {
	query := "SELECT id, slack_user_id, thumbnail FROM voters WHERE slack_user_id = ?"
	row := r.slaveDB.QueryRow(query, slackUserID)

	var voter model.Voter
	err := row.Scan(&voter.ID, &voter.SlackUserID, &voter.Thumbnail)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("投票人 %s 不存在", slackUserID)
		}
		return nil, fmt.Errorf("查询投票人失败: %w", err)
	}

	return &voter, nil
}

// UpsertVoter 写入投票人，冲突时只更新头像
func (r *MySQLRepository) UpsertVoter(slackUserID, thumbnail string) (*model.Voter, error) {
	query := `INSERT INTO voters (slack_user_id, thumbnail)
			 VALUES (?, ?)
			 ON DUPLICATE KEY UPDATE
			 thumbnail = VALUES(thumbnail)`
	if _, err := r.masterDB.Exec(query, slackUserID, thumbnail); err != nil {
		return nil, fmt.Errorf("写入投票人失败: %w", err)
	}

	// ON DUPLICATE KEY 路径拿不到稳定的 LastInsertId，回读一次
	row := r.masterDB.QueryRow(
		"SELECT id, slack_user_id, thumbnail FROM voters WHERE slack_user_id = ?", slackUserID)
	var voter model.Voter
	if err := row.Scan(&voter.ID, &voter.SlackUserID, &voter.Thumbnail); err != nil {
		return nil, fmt.Errorf("回读投票人失败: %w", err)
	}
	return &voter, nil
}

// ReadAllVoters 读取全部投票人，渲染头像时按ID匹配
func (r *MySQLRepository) ReadAllVoters() ([]*model.Voter, error) {
	rows, err := r.slaveDB.Query("SELECT id, slack_user_id, thumbnail FROM voters")
	if err != nil {
		return nil, fmt.Errorf("查询投票人列表失败: %w", err)
	}
	defer rows.Close()

	var voters []*model.Voter
	for rows.Next() {
		var voter model.Voter
		if err := rows.Scan(&voter.ID, &voter.SlackUserID, &voter.Thumbnail); err != nil {
			return nil, fmt.Errorf("扫描投票人失败: %w", err)
		}
		voters = append(voters, &voter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代投票人失败: %w", err)
	}
	return voters, nil
}

// ReadLastPoll 读取最近创建的投票活动
func (r *MySQLRepository) ReadLastPoll() (*model.Poll, error) {
	query := "SELECT id, channel, is_closed, message_ts FROM polls ORDER BY id DESC LIMIT 1"
	row := r.slaveDB.QueryRow(query)

	var poll model.Poll
	err := row.Scan(&poll.ID, &poll.Channel, &poll.IsClosed, &poll.MessageTS)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("尚未创建任何投票")
		}
		return nil, fmt.Errorf("查询最近投票失败: %w", err)
	}
	return &poll, nil
}

// ReadCriteriaForLastPoll 读取最近投票的评分维度
func (r *MySQLRepository) ReadCriteriaForLastPoll() ([]*model.Criterion, error) {
	poll, err := r.ReadLastPoll()
	if err != nil {
		return nil, err
	}

	rows, err := r.slaveDB.Query(
		"SELECT id, poll_id, criterion_text, max_score FROM criteria WHERE poll_id = ? ORDER BY id", poll.ID)
	if err != nil {
		return nil, fmt.Errorf("查询评分维度失败: %w", err)
	}
	defer rows.Close()

	var criteria []*model.Criterion
	for rows.Next() {
		var criterion model.Criterion
		if err := rows.Scan(&criterion.ID, &criterion.PollID, &criterion.Text, &criterion.MaxScore); err != nil {
			return nil, fmt.Errorf("扫描评分维度失败: %w", err)
		}
		criteria = append(criteria, &criterion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代评分维度失败: %w", err)
	}
	return criteria, nil
}

// ReadVariantsForPoll 读取某个投票的全部参选项
func (r *MySQLRepository) ReadVariantsForPoll(pollID int64) ([]*model.Variant, error) {
	rows, err := r.slaveDB.Query(
		`SELECT id, poll_id, title, description, start_date, end_date
		 FROM variants WHERE poll_id = ? ORDER BY id`, pollID)
	if err != nil {
		return nil, fmt.Errorf("查询参选项失败: %w", err)
	}
	defer rows.Close()

	var variants []*model.Variant
	for rows.Next() {
		var variant model.Variant
		if err := rows.Scan(&variant.ID, &variant.PollID, &variant.Title,
			&variant.Description, &variant.StartDate, &variant.EndDate); err != nil {
			return nil, fmt.Errorf("扫描参选项失败: %w", err)
		}
		variants = append(variants, &variant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代参选项失败: %w", err)
	}
	return variants, nil
}

// ReadVariant 读取最近投票名下的某个参选项
func (r *MySQLRepository) ReadVariant(variantID int64) (*model.Variant, error) {
	poll, err := r.ReadLastPoll()
	if err != nil {
		return nil, err
	}

	row := r.slaveDB.QueryRow(
		`SELECT id, poll_id, title, description, start_date, end_date
		 FROM variants WHERE poll_id = ? AND id = ?`, poll.ID, variantID)

	var variant model.Variant
	err = row.Scan(&variant.ID, &variant.PollID, &variant.Title,
		&variant.Description, &variant.StartDate, &variant.EndDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("参选项 %d 不存在", variantID)
		}
		return nil, fmt.Errorf("查询参选项失败: %w", err)
	}
	return &variant, nil
}

// ReadVotesForPoll 读取某个投票的全部投票记录，按插入顺序返回
func (r *MySQLRepository) ReadVotesForPoll(pollID int64) ([]*model.Vote, error) {
	rows, err := r.slaveDB.Query(
		`SELECT id, voter_id, poll_id, variant_id, criterion_id, score
		 FROM votes WHERE poll_id = ? ORDER BY id`, pollID)
	if err != nil {
		return nil, fmt.Errorf("查询投票记录失败: %w", err)
	}
	defer rows.Close()

	return scanVotes(rows)
}

// ReadVotesForVoter 读取某个 Slack 用户在最近投票中的记录
func (r *MySQLRepository) ReadVotesForVoter(slackUserID string) ([]*model.Vote, error) {
	poll, err := r.ReadLastPoll()
	if err != nil {
		return nil, err
	}

	rows, err := r.slaveDB.Query(
		`SELECT v.id, v.voter_id, v.poll_id, v.variant_id, v.criterion_id, v.score
		 FROM votes v
		 JOIN voters u ON u.id = v.voter_id
		 WHERE v.poll_id = ? AND u.slack_user_id = ?
		 ORDER BY v.id`, poll.ID, slackUserID)
	if err != nil {
		return nil, fmt.Errorf("查询用户投票记录失败: %w", err)
	}
	defer rows.Close()

	return scanVotes(rows)
}

func scanVotes(rows *sql.Rows) ([]*model.Vote, error) {
	var votes []*model.Vote
	for rows.Next() {
		var vote model.Vote
		if err := rows.Scan(&vote.ID, &vote.VoterID, &vote.PollID,
			&vote.VariantID, &vote.CriterionID, &vote.Score); err != nil {
			return nil, fmt.Errorf("扫描投票记录失败: %w", err)
		}
		votes = append(votes, &vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代投票记录失败: %w", err)
	}
	return votes, nil
}

// WriteVote 追加一条投票记录，重复投票不覆盖历史
func (r *MySQLRepository) WriteVote(vote *model.Vote) error {
	query := `INSERT INTO votes (voter_id, poll_id, variant_id, criterion_id, score)
			 VALUES (?, ?, ?, ?, ?)`
	_, err := r.masterDB.Exec(query,
		vote.VoterID, vote.PollID, vote.VariantID, vote.CriterionID, vote.Score)
	if err != nil {
		return fmt.Errorf("写入投票记录失败: %w", err)
	}
	return nil
}

// WriteNewPoll 持久化完结的草稿：一条投票 + 维度 + 参选项，单事务
func (r *MySQLRepository) WriteNewPoll(draft session.Draft) (int64, error) {
	tx, err := r.masterDB.Begin()
	if err != nil {
		return 0, fmt.Errorf("开始事务失败: %w", err)
	}

	result, err := tx.Exec(
		"INSERT INTO polls (channel, is_closed, message_ts) VALUES (?, false, NULL)", draft.Channel)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("写入投票失败: %w", err)
	}
	pollID, err := result.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("获取投票ID失败: %w", err)
	}

	criterionStmt, err := tx.Prepare(
		"INSERT INTO criteria (poll_id, criterion_text, max_score) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("准备维度写入语句失败: %w", err)
	}
	defer criterionStmt.Close()

	for _, criterion := range draft.Criteria {
		if _, err := criterionStmt.Exec(pollID, criterion.Text, criterion.MaxScore); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("写入评分维度失败: %w", err)
		}
	}

	variantStmt, err := tx.Prepare(
		"INSERT INTO variants (poll_id, title, description, start_date, end_date) VALUES (?, ?, ?, ?, NULL)")
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("准备参选项写入语句失败: %w", err)
	}
	defer variantStmt.Close()

	for _, variant := range draft.Variants {
		if _, err := variantStmt.Exec(pollID, variant.Title, variant.Description, variant.StartDate); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("写入参选项失败: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("提交事务失败: %w", err)
	}
	return pollID, nil
}

// UpdatePollTimestamp 记录最近投票已发布消息的时间戳
func (r *MySQLRepository) UpdatePollTimestamp(ts string) error {
	poll, err := r.ReadLastPoll()
	if err != nil {
		return err
	}

	if _, err := r.masterDB.Exec(
		"UPDATE polls SET message_ts = ? WHERE id = ?", ts, poll.ID); err != nil {
		return fmt.Errorf("更新投票时间戳失败: %w", err)
	}
	return nil
}

// ReadReport 读取最近投票的报表聚合行。
// 固定的参数绑定查询：每个 (投票人, 参选项, 维度) 只取最新一条记录，
// 按参选项聚合出票数与平均分，门槛过滤后按分数降序。
func (r *MySQLRepository) ReadReport() ([]*model.ReportRow, error) {
	poll, err := r.ReadLastPoll()
	if err != nil {
		return nil, err
	}
	minVotes := config.AppConfig.Report.MinVotes

	query := `SELECT vr.title AS team, p.channel AS channel,
				 COUNT(DISTINCT vt.voter_id) AS total_votes,
				 AVG(vt.score) AS score
			 FROM votes vt
			 JOIN variants vr ON vr.id = vt.variant_id
			 JOIN polls p ON p.id = vt.poll_id
			 WHERE vt.poll_id = ?
			   AND vt.id IN (
				 SELECT MAX(id) FROM votes
				 WHERE poll_id = ?
				 GROUP BY voter_id, variant_id, criterion_id
			   )
			 GROUP BY vr.id, vr.title, p.channel
			 HAVING COUNT(DISTINCT vt.voter_id) >= ?
			 ORDER BY score DESC`

	rows, err := r.slaveDB.Query(query, poll.ID, poll.ID, minVotes)
	if err != nil {
		return nil, fmt.Errorf("查询报表失败: %w", err)
	}
	defer rows.Close()

	var report []*model.ReportRow
	for rows.Next() {
		var row model.ReportRow
		if err := rows.Scan(&row.Team, &row.Channel, &row.TotalVotes, &row.Score); err != nil {
			return nil, fmt.Errorf("扫描报表行失败: %w", err)
		}
		report = append(report, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代报表行失败: %w", err)
	}
	return report, nil
}

// Close 关闭数据库连接
func (r *MySQLRepository) Close() {
	if r.masterDB != nil {
		r.masterDB.Close()
	}
	if r.slaveDB != nil && r.slaveDB != r.masterDB {
		r.slaveDB.Close()
	}
}
