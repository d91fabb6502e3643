package session

import (
	"sync"
	"time"
)

const (
	// 维度最大分值的上下界
	MinCriterionScore = 1
	MaxCriterionScore = 100
)

// DraftCriterion 草稿中的评分维度
type DraftCriterion struct {
	Text     string
	MaxScore int
}

// DraftVariant 草稿中的参选项
type DraftVariant struct {
	Title       string
	Description string
	StartDate   time.Time
}

// Draft 构建中的投票草稿，跨多次 webhook 回调逐步填充
type Draft struct {
	Channel  string
	Criteria []DraftCriterion
	Variants []DraftVariant
	// Stale 表示上一个持有者在修改中途失败，数据可能不完整
	Stale bool
}

// Store 草稿会话存储，进程内同一时刻只有一份草稿。
// 互斥锁只保护内存修改，临界区内不做任何 I/O。
type Store struct {
	mu    sync.Mutex
	draft Draft
}

func NewStore() *Store {
	return &Store{}
}

// StartDraft 重置为全新草稿
func (s *Store) StartDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = Draft{}
}

// SetChannel 设置目标频道
func (s *Store) SetChannel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Channel = channelID
}

// AppendCriterion 追加一个评分维度，返回该维度的展示序号（从1开始，
// 序号由当前已有维度数量推出）。最大分值越界时收敛到 [1,100]。
func (s *Store) AppendCriterion(text string, maxScore int) int {
	if maxScore > MaxCriterionScore {
		maxScore = MaxCriterionScore
	}
	if maxScore < MinCriterionScore {
		maxScore = MinCriterionScore
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Criteria = append(s.draft.Criteria, DraftCriterion{
		Text:     text,
		MaxScore: maxScore,
	})
	return len(s.draft.Criteria)
}

// AppendVariant 追加一个参选项，返回展示序号（从1开始）
func (s *Store) AppendVariant(title, description string, startDate time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Variants = append(s.draft.Variants, DraftVariant{
		Title:       title,
		Description: description,
		StartDate:   startDate,
	})
	return len(s.draft.Variants)
}

// MarkStale 标记草稿可能不完整。持有者中途失败时调用，
// 后续获取者仍然拿到可用数据，只是带上陈旧标记。
func (s *Store) MarkStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Stale = true
}

// Snapshot 返回当前草稿的拷贝，只读路径使用
func (s *Store) Snapshot() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.copy()
}

// FinalizeDraft 取出草稿快照并原子地重置为空草稿。
// 这是唯一产出可持久化数据的路径；空草稿也允许完结，产出空投票。
func (s *Store) FinalizeDraft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.draft.copy()
	s.draft = Draft{}
	return snapshot
}

func (d Draft) copy() Draft {
	out := Draft{
		Channel: d.Channel,
		Stale:   d.Stale,
	}
	out.Criteria = append(out.Criteria, d.Criteria...)
	out.Variants = append(out.Variants, d.Variants...)
	return out
}
