// Package session 把扁平的对话记录按日期和空闲间隔分组，生成聊天列表使用的会话
package session

import (
	"bytes"
	"slices"
	"time"

	"chatlog/internal/model/conversation"
)

const (
	// DefaultGap 相邻两条记录超过该间隔（严格大于）时开始新会话
	DefaultGap = 30 * time.Minute

	// DefaultTitle 首条记录没有意图时使用的标题
	DefaultTitle = "Conversation"

	dateLayout = "2006-01-02"
)

// Session 聊天列表中的一个会话
type Session struct {
	ID          string               `json:"id"`          // 首条记录ID
	Title       string               `json:"title"`       // 首条记录的意图
	LastMessage string               `json:"lastMessage"` // 最后一条记录的消息
	Timestamp   string               `json:"timestamp"`   // 最后一条记录的相对时间
	Date        string               `json:"date"`        // YYYY-MM-DD
	Messages    []*conversation.Turn `json:"messages"`
}

// Grouper 会话分组器
type Grouper struct {
	Gap      time.Duration
	Location *time.Location
	Now      func() time.Time
}

// NewGrouper 创建分组器，gap<=0 时使用默认值，loc 为空时使用本地时区
func NewGrouper(gap time.Duration, loc *time.Location) *Grouper {
	if gap <= 0 {
		gap = DefaultGap
	}
	if loc == nil {
		loc = time.Local
	}
	return &Grouper{
		Gap:      gap,
		Location: loc,
		Now:      time.Now,
	}
}

// Group 分组
// 日期倒序输出，同一天内的会话按时间顺序输出
func (g *Grouper) Group(turns []*conversation.Turn) []Session {
	if len(turns) == 0 {
		return []Session{}
	}

	ordered := slices.Clone(turns)
	slices.SortStableFunc(ordered, func(a, b *conversation.Turn) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})

	// 按日期分桶，ordered 已升序，桶内天然有序
	buckets := make(map[string][]*conversation.Turn)
	dates := make([]string, 0)
	for _, t := range ordered {
		date := t.Timestamp.In(g.Location).Format(dateLayout)
		if _, ok := buckets[date]; !ok {
			dates = append(dates, date)
		}
		buckets[date] = append(buckets[date], t)
	}
	slices.SortFunc(dates, func(a, b string) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	})

	now := g.Now()
	sessions := make([]Session, 0)
	for _, date := range dates {
		for _, run := range g.split(buckets[date]) {
			sessions = append(sessions, g.build(date, run, now))
		}
	}
	return sessions
}

// split 按间隔切分，间隔恰好等于 Gap 时不切分
func (g *Grouper) split(turns []*conversation.Turn) [][]*conversation.Turn {
	runs := make([][]*conversation.Turn, 0)
	var current []*conversation.Turn
	for i, t := range turns {
		if i > 0 && t.Timestamp.Sub(turns[i-1].Timestamp) > g.Gap {
			runs = append(runs, current)
			current = nil
		}
		current = append(current, t)
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}
	return runs
}

func (g *Grouper) build(date string, run []*conversation.Turn, now time.Time) Session {
	first, last := run[0], run[len(run)-1]

	title := first.Intent
	if title == "" {
		title = DefaultTitle
	}

	return Session{
		ID:          first.ID.Hex(),
		Title:       title,
		LastMessage: last.Message,
		Timestamp:   FormatRelative(last.Timestamp, now, g.Location),
		Date:        date,
		Messages:    run,
	}
}
