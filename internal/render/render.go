// Package render draws snapshots as terminal tables.
package render

import (
	"fmt"
	"ldmonitor/internal/components/chrono"
	"ldmonitor/internal/credit"
	"ldmonitor/internal/trustlevel"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const timeLayout = "2006/01/02 15:04:05"

var themeStyles = map[string]table.Style{
	"default": table.StyleLight,
	"rpg":     table.StyleDouble,
	"pixel":   table.StyleDefault,
	"card":    table.StyleRounded,
	"cyber":   table.StyleBold,
}

// Style returns the table style of a theme, unknown themes get the default one.
func Style(theme string) table.Style {
	style, ok := themeStyles[theme]
	if !ok {
		return table.StyleLight
	}
	return style
}

func newTable(theme string) table.Writer {
	style := Style(theme)
	// labels are mostly chinese and usernames are case sensitive
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	t := table.NewWriter()
	t.SetStyle(style)
	return t
}

func formatTime(t time.Time) string {
	return t.In(chrono.CST()).Format(timeLayout)
}

func levelBadge(s trustlevel.Snapshot) string {
	if s.TargetLevel != "" && !s.IsMaxLevel {
		return fmt.Sprintf("Lv.%s → %s", s.CurrentLevel, s.TargetLevel)
	}
	return fmt.Sprintf("Lv.%s", s.CurrentLevel)
}

func status(met bool) string {
	if met {
		return "✓"
	}
	return "✗"
}

// Level renders the trust level view, a nil snapshot renders the failure view.
func Level(s *trustlevel.Snapshot, theme string) string {
	if s == nil {
		return LevelFailure(theme)
	}

	t := newTable(theme)
	t.SetTitle(fmt.Sprintf("%s  %s", s.Username, levelBadge(*s)))

	if s.IsMaxLevel && len(s.Items) == 0 {
		t.AppendRow(table.Row{"🎉 已达到最高等级"})
		t.AppendRow(table.Row{"🏆 恭喜达到满级！您已经是 Linux.do 的资深用户"})
		t.AppendFooter(table.Row{"更新于 " + formatTime(s.Time())})
		return t.Render()
	}

	t.AppendHeader(table.Row{"升级进度", fmt.Sprintf("%d/%d", s.AchievedCount, s.TotalCount), fmt.Sprintf("%d%%", s.Percent()), ""})
	for _, item := range s.Items {
		t.AppendRow(table.Row{item.Label, item.Current, item.Required, status(item.IsMet)})
	}
	t.AppendFooter(table.Row{"更新于", formatTime(s.Time()), "", ""})
	return t.Render()
}

func LevelFailure(theme string) string {
	t := newTable(theme)
	t.AppendRow(table.Row{"⚠️ 数据加载失败"})
	t.AppendRow(table.Row{"请确保已登录 connect.linux.do"})
	return t.Render()
}

func activityRows(t table.Writer, list []credit.Activity, placeholder string) {
	if len(list) == 0 {
		t.AppendRow(table.Row{"", placeholder})
		return
	}
	for _, activity := range list {
		t.AppendRow(table.Row{activity.Date, activity.Amount})
	}
}

// Credit renders the credit view, a nil snapshot is still loading.
func Credit(s *credit.Snapshot, theme string) string {
	if s == nil {
		return CreditError(credit.Snapshot{Error: credit.ErrLoading, IsLoading: true}, theme)
	}
	if s.Failed() {
		return CreditError(*s, theme)
	}

	t := newTable(theme)
	t.SetTitle(fmt.Sprintf("%s  Linux.do Credit", s.Username))
	t.AppendRow(table.Row{"LDC 余额", s.Credits})
	t.AppendRow(table.Row{"今日剩余额度", s.DailyLimit})
	t.AppendSeparator()
	t.AppendRow(table.Row{"总收入", fmt.Sprintf("+%s LDC", s.IncomeTotal)})
	activityRows(t, s.IncomeList, "近7天暂无收入")
	t.AppendSeparator()
	t.AppendRow(table.Row{"总支出", fmt.Sprintf("-%s LDC", s.ExpenseTotal)})
	activityRows(t, s.ExpenseList, "近7天暂无支出")
	t.AppendFooter(table.Row{"更新于", formatTime(s.Time())})
	return t.Render()
}

// CreditError renders a failed credit snapshot.
func CreditError(s credit.Snapshot, theme string) string {
	icon := "⚠️"
	msg := s.Error
	var extra []string

	switch {
	case s.Error == credit.ErrNotLoggedIn:
		icon = "🔒"
		msg = "请先登录 Credit"
		extra = append(extra, "去登录: https://credit.linux.do")
	case s.Error == credit.ErrAccountMismatch:
		icon = "🔄"
		msg = "Credit 账号与当前登录不一致"
		if s.MismatchInfo != nil {
			extra = append(extra, fmt.Sprintf("Credit: %s / Linux.do: %s", s.MismatchInfo.CreditUser, s.MismatchInfo.CurrentUser))
		}
		extra = append(extra, "请前往 Credit 重新登录当前账号: https://credit.linux.do")
	case s.IsRateLimit || strings.Contains(s.Error, "429"):
		icon = "⏳"
		if s.Error == credit.ErrTooManyRequests {
			msg = "服务器限流中，请稍后再试"
			extra = append(extra, "Credit API 服务器正在限流，建议等待 5-10 分钟后重试")
		}
	case s.IsLoading:
		icon = "⏳"
		msg = "正在加载中..."
	}

	t := newTable(theme)
	t.AppendRow(table.Row{icon + " " + msg})
	for _, line := range extra {
		t.AppendRow(table.Row{line})
	}
	return t.Render()
}

// Button renders the one line summary, ex. "L2 4/6 128.50".
func Button(level *trustlevel.Snapshot, c *credit.Snapshot) string {
	levelText := "L?"
	stats := "0/0"
	if level != nil {
		levelText = "L" + level.CurrentLevel
		if level.IsMaxLevel {
			stats = "MAX"
		} else {
			stats = fmt.Sprintf("%d/%d", level.AchievedCount, level.TotalCount)
		}
	}
	credits := "--"
	if c != nil && !c.Failed() {
		credits = c.Credits
	}
	return fmt.Sprintf("%s %s %s", levelText, stats, credits)
}
