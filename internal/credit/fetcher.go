// Package credit fetches the balance of the credit.linux.do account linked to
// the forum account.
package credit

import (
	"context"
	"errors"
	"fmt"
	"ldmonitor/internal/components/assert"
	"ldmonitor/internal/components/chrono"
	"ldmonitor/internal/components/telemetry"
	"ldmonitor/internal/identity"
	"ldmonitor/internal/ratelimit"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	report_credit_fetch       = "credit.fetch"
	report_credit_daily_stats = "credit.daily-stats"
)

const DefaultBaseUrl = "https://credit.linux.do"

type JSONFetcher interface {
	FetchJSON(ctx context.Context, link string, out any) error
}

type Options struct {
	BaseUrl string
	// Interval is the minimum time between two unforced fetches, 30s by default.
	Interval time.Duration
	// PacingDelay is waited between the user info and daily stats requests,
	// the api answers back to back requests with 429. 2s by default.
	PacingDelay time.Duration
}

type Fetcher struct {
	http        JSONFetcher
	currentUser func() string
	limiter     *ratelimit.Limiter
	time        chrono.TimeAPI
	tel         telemetry.API
	opts        Options
}

// NewFetcher creates a Fetcher, currentUser returns the username of the forum
// account or an empty string when it is unknown.
func NewFetcher(http JSONFetcher, currentUser func() string, clock chrono.TimeAPI, tel telemetry.API, opts Options) *Fetcher {
	assert.NotNil(http)
	assert.NotNil(currentUser)
	assert.NotNil(clock)
	assert.NotNil(tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	opts.BaseUrl = strings.TrimSuffix(opts.BaseUrl, "/")
	if opts.Interval == 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.PacingDelay == 0 {
		opts.PacingDelay = 2 * time.Second
	}

	return &Fetcher{
		http:        http,
		currentUser: currentUser,
		limiter:     ratelimit.NewLimiter(opts.Interval, clock),
		time:        clock,
		tel:         telemetry.NewScopedAPI("credit", tel),
		opts:        opts,
	}
}

type userInfo struct {
	Username         flexString `json:"username"`
	Nickname         flexString `json:"nickname"`
	AvatarUrl        flexString `json:"avatar_url"`
	AvailableBalance flexString `json:"available_balance"`
	RemainQuota      flexString `json:"remain_quota"`
	TotalReceive     flexString `json:"total_receive"`
	TotalPayment     flexString `json:"total_payment"`
}

type userInfoResponse struct {
	Data *userInfo `json:"data"`
}

type dailyStat struct {
	Date    string     `json:"date"`
	Income  flexString `json:"income"`
	Expense flexString `json:"expense"`
}

type dailyStatsResponse struct {
	Data []dailyStat `json:"data"`
}

// Fetch never fails, problems are reported through the Error of the returned
// snapshot. Unless force is set, a fetch less than 30s after the previous one
// is refused without making requests.
func (f *Fetcher) Fetch(ctx context.Context, force bool) Snapshot {
	permit, err := f.limiter.TryAcquire(force)
	if err != nil {
		var busy *ratelimit.BusyError
		if errors.As(err, &busy) && busy.InFlight {
			f.tel.ReportDebug("credit request in flight, skipping")
			return Snapshot{Error: ErrLoading, IsLoading: true}
		}
		wait := 1
		if busy != nil {
			wait = max(busy.WaitSeconds(), 1)
		}
		f.tel.ReportDebug("credit request too frequent", "wait", wait)
		return Snapshot{Error: fmt.Sprintf("请等待 %d 秒后重试", wait), IsRateLimit: true}
	}
	defer permit.Release()

	var info userInfoResponse
	err = f.http.FetchJSON(ctx, f.opts.BaseUrl+"/api/v1/oauth/user-info", &info)
	if err != nil {
		f.tel.ReportWarning(report_credit_fetch, err)
		if strings.Contains(err.Error(), "429") {
			return Snapshot{Error: ErrTooManyRequests, IsRateLimit: true}
		}
		return failure(err.Error())
	}
	if info.Data == nil {
		return failure(ErrNotLoggedIn)
	}
	data := *info.Data

	currentUser := f.currentUser()
	creditUser := string(data.Username)
	if currentUser != "" && creditUser != "" && !identity.Same(currentUser, creditUser) {
		f.tel.ReportWarning(report_credit_fetch, fmt.Errorf("account mismatch"), creditUser, currentUser)
		return Snapshot{
			Error: ErrAccountMismatch,
			MismatchInfo: &MismatchInfo{
				CreditUser:  creditUser,
				CurrentUser: currentUser,
			},
		}
	}

	snapshot := Snapshot{
		Username:     data.Nickname.or(data.Username.or("User")),
		UserId:       creditUser,
		AvatarUrl:    string(data.AvatarUrl),
		Credits:      data.AvailableBalance.or("0"),
		DailyLimit:   data.RemainQuota.or("0"),
		IncomeTotal:  data.TotalReceive.or("0"),
		ExpenseTotal: data.TotalPayment.or("0"),
		IncomeList:   []Activity{},
		ExpenseList:  []Activity{},
		Timestamp:    f.time.Now().UnixMilli(),
	}

	err = f.time.Sleep(ctx, f.opts.PacingDelay)
	if err != nil {
		f.tel.ReportWarning(report_credit_daily_stats, fmt.Errorf("pacing: %w", err))
		return snapshot
	}
	f.fillDailyStats(ctx, &snapshot)

	return snapshot
}

// fillDailyStats adds the past week's activity to snapshot, failures leave
// the lists empty.
func (f *Fetcher) fillDailyStats(ctx context.Context, snapshot *Snapshot) {
	var stats dailyStatsResponse
	err := f.http.FetchJSON(ctx, f.opts.BaseUrl+"/api/v1/dashboard/stats/daily?days=7", &stats)
	if err != nil {
		f.tel.ReportWarning(report_credit_daily_stats, err)
		return
	}

	for _, stat := range stats.Data {
		date := displayDate(stat.Date)
		if income := stat.Income.float(); income > 0 {
			snapshot.IncomeList = append(snapshot.IncomeList, Activity{
				Date:   date,
				Amount: "+" + strconv.FormatFloat(income, 'f', 2, 64),
			})
		}
		if expense := stat.Expense.float(); expense > 0 {
			snapshot.ExpenseList = append(snapshot.ExpenseList, Activity{
				Date:   date,
				Amount: "-" + strconv.FormatFloat(expense, 'f', 2, 64),
			})
		}
	}
	slices.Reverse(snapshot.IncomeList)
	slices.Reverse(snapshot.ExpenseList)
}

// displayDate turns "2024-08-01" into "08/01".
func displayDate(date string) string {
	if len(date) < 5 {
		return ""
	}
	return strings.Replace(date[5:], "-", "/", 1)
}

