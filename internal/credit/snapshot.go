package credit

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Error values of Snapshot.Error which have a dedicated rendering.
const (
	ErrNotLoggedIn     = "not_logged_in"
	ErrAccountMismatch = "account_mismatch"
	ErrLoading         = "请求中..."
	ErrTooManyRequests = "HTTP 429"
)

// Activity is the income or expense of a single day.
type Activity struct {
	// Date is formatted as MM/DD.
	Date string `json:"date"`
	// Amount is signed with two decimals, ex. "+1.50".
	Amount string `json:"amount"`
}

type MismatchInfo struct {
	CreditUser  string `json:"creditUser"`
	CurrentUser string `json:"currentUser"`
}

// Snapshot is either a balance (Error is empty) or a failure.
type Snapshot struct {
	Username     string     `json:"username,omitempty"`
	UserId       string     `json:"userId,omitempty"`
	AvatarUrl    string     `json:"avatarUrl,omitempty"`
	Credits      string     `json:"credits,omitempty"`
	DailyLimit   string     `json:"dailyLimit,omitempty"`
	IncomeTotal  string     `json:"incomeTotal,omitempty"`
	ExpenseTotal string     `json:"expenseTotal,omitempty"`
	IncomeList   []Activity `json:"incomeList,omitempty"`
	ExpenseList  []Activity `json:"expenseList,omitempty"`
	// Timestamp is in unix milliseconds.
	Timestamp int64 `json:"timestamp,omitempty"`

	Error        string        `json:"error,omitempty"`
	IsRateLimit  bool          `json:"isRateLimit,omitempty"`
	IsLoading    bool          `json:"isLoading,omitempty"`
	MismatchInfo *MismatchInfo `json:"mismatchInfo,omitempty"`
}

func (s Snapshot) Failed() bool {
	return s.Error != ""
}

func (s Snapshot) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// CachedUser is the account a stored snapshot belongs to.
func (s Snapshot) CachedUser() string {
	if s.UserId != "" {
		return s.UserId
	}
	return s.Username
}

func failure(msg string) Snapshot {
	return Snapshot{Error: msg}
}

// flexString accepts json strings and numbers, the credit api is not
// consistent about which one it sends.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) or(fallback string) string {
	if f == "" {
		return fallback
	}
	return string(f)
}

func (f flexString) float() float64 {
	v, err := strconv.ParseFloat(string(f), 64)
	if err != nil {
		return 0
	}
	return v
}
