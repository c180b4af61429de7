package render

import (
	"ldmonitor/internal/components/chrono"
	"ldmonitor/internal/credit"
	"ldmonitor/internal/trustlevel"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var stamp = time.Date(2024, 8, 1, 12, 30, 0, 0, chrono.CST())

func levelSnapshot() *trustlevel.Snapshot {
	return &trustlevel.Snapshot{
		Username:     "alice",
		CurrentLevel: "2",
		TargetLevel:  "3",
		Items: []trustlevel.RequirementItem{
			{Label: "访问天数", Current: "52", Required: "50", IsMet: true},
			{Label: "回复的话题", Current: "8", Required: "10", IsMet: false},
		},
		AchievedCount: 1,
		TotalCount:    2,
		Timestamp:     stamp.UnixMilli(),
		Version:       trustlevel.DataVersion,
	}
}

func TestLevel(t *testing.T) {
	out := Level(levelSnapshot(), "default")
	require.Contains(t, out, "alice  Lv.2 → 3")
	require.Contains(t, out, "1/2")
	require.Contains(t, out, "50%")
	require.Contains(t, out, "访问天数")
	require.Contains(t, out, "✓")
	require.Contains(t, out, "✗")
	require.Contains(t, out, "2024/08/01 12:30:00")
}

func TestLevelMax(t *testing.T) {
	out := Level(&trustlevel.Snapshot{
		Username:     "alice",
		CurrentLevel: "3",
		IsMaxLevel:   true,
		Items:        []trustlevel.RequirementItem{},
		Timestamp:    stamp.UnixMilli(),
	}, "rpg")
	require.Contains(t, out, "Lv.3")
	require.NotContains(t, out, "→")
	require.Contains(t, out, "已达到最高等级")
}

func TestLevelFailure(t *testing.T) {
	require.Contains(t, Level(nil, "default"), "数据加载失败")
}

func TestCredit(t *testing.T) {
	out := Credit(&credit.Snapshot{
		Username:     "爱丽丝",
		Credits:      "128.50",
		DailyLimit:   "20",
		IncomeTotal:  "300",
		ExpenseTotal: "0",
		IncomeList:   []credit.Activity{{Date: "07/28", Amount: "+3.00"}},
		Timestamp:    stamp.UnixMilli(),
	}, "cyber")
	require.Contains(t, out, "128.50")
	require.Contains(t, out, "+300 LDC")
	require.Contains(t, out, "-0 LDC")
	require.Contains(t, out, "+3.00")
	require.NotContains(t, out, "近7天暂无收入")
	require.Contains(t, out, "近7天暂无支出")
}

func TestCreditErrors(t *testing.T) {
	testCases := []struct {
		snapshot credit.Snapshot
		contains []string
	}{
		{
			snapshot: credit.Snapshot{Error: credit.ErrNotLoggedIn},
			contains: []string{"🔒", "请先登录 Credit"},
		},
		{
			snapshot: credit.Snapshot{
				Error:        credit.ErrAccountMismatch,
				MismatchInfo: &credit.MismatchInfo{CreditUser: "Alice", CurrentUser: "Bob"},
			},
			contains: []string{"Credit 账号与当前登录不一致", "Alice", "Bob"},
		},
		{
			snapshot: credit.Snapshot{Error: credit.ErrTooManyRequests, IsRateLimit: true},
			contains: []string{"⏳", "服务器限流中"},
		},
		{
			snapshot: credit.Snapshot{Error: "请等待 12 秒后重试", IsRateLimit: true},
			contains: []string{"请等待 12 秒后重试"},
		},
		{
			snapshot: credit.Snapshot{Error: credit.ErrLoading, IsLoading: true},
			contains: []string{"正在加载中..."},
		},
		{
			snapshot: credit.Snapshot{Error: "HTTP 500"},
			contains: []string{"⚠️", "HTTP 500"},
		},
	}

	for _, test := range testCases {
		out := Credit(&test.snapshot, "default")
		for _, substr := range test.contains {
			require.Contains(t, out, substr)
		}
	}

	require.Contains(t, Credit(nil, "default"), "正在加载中...")
}

func TestButton(t *testing.T) {
	require.Equal(t, "L? 0/0 --", Button(nil, nil))
	require.Equal(t, "L2 1/2 --", Button(levelSnapshot(), &credit.Snapshot{Error: credit.ErrNotLoggedIn}))
	require.Equal(t, "L2 1/2 128.50", Button(levelSnapshot(), &credit.Snapshot{Credits: "128.50"}))
	require.Equal(t, "L3 MAX --", Button(&trustlevel.Snapshot{CurrentLevel: "3", IsMaxLevel: true}, nil))
}

func TestStyle(t *testing.T) {
	require.Equal(t, Style("default").Name, Style("unknown").Name)
	require.NotEqual(t, Style("default").Name, Style("rpg").Name)
}
