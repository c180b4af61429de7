package trustlevel

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type requirement struct {
	field     string
	threshold int64
}

// levelRequirements lists what discourse requires of levels 0 and 1 to be
// promoted, in raw api units (time_read is in seconds).
var levelRequirements = map[int][]requirement{
	0: {
		{field: "topics_entered", threshold: 5},
		{field: "posts_read_count", threshold: 30},
		{field: "time_read", threshold: 600},
	},
	1: {
		{field: "days_visited", threshold: 15},
		{field: "likes_given", threshold: 1},
		{field: "likes_received", threshold: 1},
		{field: "post_count", threshold: 3},
		{field: "topics_entered", threshold: 20},
		{field: "posts_read_count", threshold: 100},
		{field: "time_read", threshold: 3600},
	},
}

var fieldLabels = map[string]string{
	"topics_entered":   "浏览的话题",
	"posts_read_count": "已读帖子",
	"time_read":        "阅读时间(分钟)",
	"days_visited":     "访问天数",
	"likes_given":      "给出的赞",
	"likes_received":   "收到的赞",
	"post_count":       "帖子数量",
}

// fieldDividers convert raw values into display units.
var fieldDividers = map[string]int64{
	"time_read": 60,
}

type userSummary struct {
	TopicsEntered  int64 `json:"topics_entered"`
	PostsReadCount int64 `json:"posts_read_count"`
	TimeRead       int64 `json:"time_read"`
	DaysVisited    int64 `json:"days_visited"`
	LikesGiven     int64 `json:"likes_given"`
	LikesReceived  int64 `json:"likes_received"`
	PostCount      int64 `json:"post_count"`
}

func (s userSummary) value(field string) int64 {
	switch field {
	case "topics_entered":
		return s.TopicsEntered
	case "posts_read_count":
		return s.PostsReadCount
	case "time_read":
		return s.TimeRead
	case "days_visited":
		return s.DaysVisited
	case "likes_given":
		return s.LikesGiven
	case "likes_received":
		return s.LikesReceived
	case "post_count":
		return s.PostCount
	}
	return 0
}

type summaryResponse struct {
	UserSummary *userSummary `json:"user_summary"`
}

// summaryItems compares summary against reqs, met compares raw values while
// current and required are shown in display units.
func summaryItems(summary userSummary, reqs []requirement) []RequirementItem {
	items := make([]RequirementItem, 0, len(reqs))
	for _, req := range reqs {
		label, ok := fieldLabels[req.field]
		if !ok {
			continue
		}
		raw := summary.value(req.field)
		current := raw
		required := req.threshold
		if divider, ok := fieldDividers[req.field]; ok {
			current = raw / divider
			required = req.threshold / divider
		}
		items = append(items, RequirementItem{
			Label:    label,
			Current:  strconv.FormatInt(current, 10),
			Required: strconv.FormatInt(required, 10),
			IsMet:    raw >= req.threshold,
		})
	}
	return items
}

func (e *Extractor) summaryUrl(username string) string {
	return strings.TrimSuffix(e.opts.ForumUrl, "/") + "/u/" + url.PathEscape(username) + "/summary.json"
}

func (e *Extractor) fetchSummary(ctx context.Context, username, csrfToken string) (userSummary, error) {
	headers := map[string]string{
		"Accept":            "application/json",
		"X-CSRF-Token":      csrfToken,
		"X-Requested-With":  "XMLHttpRequest",
		"Discourse-Present": "true",
	}

	var res summaryResponse
	err := e.fetcher.FetchJSONWithHeaders(ctx, e.summaryUrl(username), headers, &res)
	if err != nil {
		e.tel.ReportWarning(report_extractor_summary, err, username)
		return userSummary{}, fmt.Errorf("%w: %w", ErrSummaryRequest, err)
	}
	if res.UserSummary == nil {
		e.tel.ReportWarning(report_extractor_summary, ErrNoSummary, username)
		return userSummary{}, ErrNoSummary
	}

	e.tel.ReportDebug(
		"summary parsed",
		"days_visited", res.UserSummary.DaysVisited,
		"posts_read", res.UserSummary.PostsReadCount,
		"topics", res.UserSummary.TopicsEntered,
	)
	return *res.UserSummary, nil
}
