package trustlevel

import (
	"ldmonitor/pkg/htmlutil"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

var (
	trustLevelRegex = regexp.MustCompile(`信任级别\s*(\d+)`)
	mentionRegex    = regexp.MustCompile(`@(\S+)`)
	welcomeRegex    = regexp.MustCompile(`(?i)你好，\s*([^(\s]*)\s*\(?([^)]*)\)?\s*(\d+)级用户`)
	levelUserRegex  = regexp.MustCompile(`(\d+)级用户`)
)

// header is what the top of the connect page says about the user.
type header struct {
	username     string
	currentLevel string
	// targetLevel is -1 when the page does not show one.
	targetLevel   int
	reachedTarget bool
	hasMenuInfo   bool
	hasCardTitle  bool
}

func (h header) level() int {
	level, err := strconv.Atoi(h.currentLevel)
	if err != nil {
		return 0
	}
	return level
}

// parseHeader reads level and username information off of the connect page.
// username is used unless the page itself names the user.
func parseHeader(doc *goquery.Document, username string) header {
	h := header{
		username:     username,
		currentLevel: "0",
		targetLevel:  -1,
	}

	// the menu is the only reliable source of the current level, the card
	// title always shows the requirements of a fixed level
	menuInfo := doc.Find(".user-menu-info").First()
	if menuInfo.Length() > 0 {
		h.hasMenuInfo = true
		text := menuInfo.Text()
		if match := trustLevelRegex.FindStringSubmatch(text); match != nil {
			h.currentLevel = match[1]
		}
		if match := mentionRegex.FindStringSubmatch(text); match != nil {
			h.username = match[1]
		}
	}

	cardTitle := doc.Find("h2.card-title").First()
	if cardTitle.Length() > 0 {
		h.hasCardTitle = true
		if match := trustLevelRegex.FindStringSubmatch(htmlutil.Text(cardTitle)); match != nil {
			h.targetLevel, _ = strconv.Atoi(match[1])
		}
		badge := doc.Find(".card-header .badge").First()
		if badge.Length() > 0 {
			h.reachedTarget = badge.HasClass("badge-success")
		}
	}

	if h.username == "" {
		subtitle := htmlutil.Text(doc.Find("p.card-subtitle").First())
		if match := mentionRegex.FindStringSubmatch(subtitle); match != nil {
			h.username = match[1]
		}
	}

	if !h.hasCardTitle && !h.hasMenuInfo {
		h.parseWelcome(doc)
	}

	return h
}

// parseWelcome handles the older page layout which only has a greeting like
// "你好，昵称 (username) 2级用户".
func (h *header) parseWelcome(doc *goquery.Document) {
	h1 := doc.Find("h1").First()
	if h1.Length() == 0 {
		return
	}
	text := htmlutil.Text(h1)

	if match := welcomeRegex.FindStringSubmatch(text); match != nil {
		name := match[2]
		if name == "" {
			name = match[1]
		}
		if name != "" {
			h.username = name
		}
		h.currentLevel = match[3]
		return
	}
	if match := levelUserRegex.FindStringSubmatch(text); match != nil {
		h.currentLevel = match[1]
	}
}
