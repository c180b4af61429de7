package trustlevel

import (
	"time"
)

// DataVersion is bumped whenever the shape or meaning of Snapshot changes,
// cached snapshots with another version are discarded.
const DataVersion = 2

// RequirementItem is a single requirement for reaching the next trust level.
type RequirementItem struct {
	Label    string `json:"label"`
	Current  string `json:"current"`
	Required string `json:"required"`
	IsMet    bool   `json:"isMet"`
}

type Snapshot struct {
	Username     string `json:"username"`
	CurrentLevel string `json:"currentLevel"`
	// TargetLevel is empty when there is no next level to show.
	TargetLevel   string            `json:"targetLevel"`
	IsMaxLevel    bool              `json:"isMaxLevel"`
	Items         []RequirementItem `json:"items"`
	AchievedCount int               `json:"achievedCount"`
	TotalCount    int               `json:"totalCount"`
	// Timestamp is in unix milliseconds.
	Timestamp int64 `json:"timestamp"`
	Version   int   `json:"version"`
}

func (s Snapshot) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Percent returns the share of met requirements rounded to the nearest whole percent.
func (s Snapshot) Percent() int {
	if s.TotalCount == 0 {
		return 0
	}
	return (s.AchievedCount*200 + s.TotalCount) / (s.TotalCount * 2)
}

func newSnapshot(username, currentLevel, targetLevel string, isMaxLevel bool, items []RequirementItem) Snapshot {
	if items == nil {
		items = []RequirementItem{}
	}
	achieved := 0
	for _, item := range items {
		if item.IsMet {
			achieved++
		}
	}
	return Snapshot{
		Username:      username,
		CurrentLevel:  currentLevel,
		TargetLevel:   targetLevel,
		IsMaxLevel:    isMaxLevel,
		Items:         items,
		AchievedCount: achieved,
		TotalCount:    len(items),
		Version:       DataVersion,
	}
}
