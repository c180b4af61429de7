// Package identity figures out which forum account a page belongs to.
package identity

import (
	"encoding/json"
	"ldmonitor/pkg/htmlutil"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// LocalStorageCurrentUser is the local storage key discourse keeps the
// logged-in user under.
const LocalStorageCurrentUser = "discourse_current_user"

// Page is a rendered forum page together with the state a browser tab would
// have next to it.
type Page struct {
	Doc *goquery.Document
	// URL is the address the page was loaded from.
	URL string
	// LocalStorage maps a key to its raw (json) value.
	LocalStorage map[string]string
}

func NewPage(contents []byte, pageUrl string, localStorage map[string]string) (Page, error) {
	doc, err := htmlutil.Parse(contents)
	if err != nil {
		return Page{}, err
	}
	if localStorage == nil {
		localStorage = map[string]string{}
	}
	return Page{Doc: doc, URL: pageUrl, LocalStorage: localStorage}, nil
}

var (
	letterAvatarRegex = regexp.MustCompile(`/letter_avatar/([^/]+)/`)
	userAvatarRegex   = regexp.MustCompile(`/user_avatar/[^/]+/([^/]+)/`)
)

type source func(page Page) string

// sources are tried in order, the first non-empty result wins.
var sources = []source{
	userMenuAlt,
	userMenuAvatarSrc,
	currentUserTitle,
	currentUserLink,
	pageUrlPath,
	localStorageUser,
}

func userMenuImage(page Page) *goquery.Selection {
	return page.Doc.Find(".header-dropdown-toggle.current-user").First().Find("img").First()
}

func userMenuAlt(page Page) string {
	alt, _ := userMenuImage(page).Attr("alt")
	return alt
}

func userMenuAvatarSrc(page Page) string {
	src, _ := userMenuImage(page).Attr("src")
	if src == "" {
		return ""
	}
	if match := letterAvatarRegex.FindStringSubmatch(src); match != nil {
		return match[1]
	}
	if match := userAvatarRegex.FindStringSubmatch(src); match != nil {
		return match[1]
	}
	return ""
}

func currentUserTitle(page Page) string {
	title, _ := page.Doc.Find(".current-user img[title]").First().Attr("title")
	return title
}

// usernameFromPath returns the path segment after /u/ in path.
func usernameFromPath(path string) string {
	_, after, found := strings.Cut(path, "/u/")
	if !found {
		return ""
	}
	name, _, _ := strings.Cut(after, "/")
	return name
}

func currentUserLink(page Page) string {
	href, _ := page.Doc.Find("a.current-user, .header-dropdown-toggle.current-user a").First().Attr("href")
	return usernameFromPath(href)
}

func pageUrlPath(page Page) string {
	parsed, err := url.Parse(page.URL)
	if err != nil {
		return ""
	}
	return usernameFromPath(parsed.Path)
}

func localStorageUser(page Page) string {
	raw, ok := page.LocalStorage[LocalStorageCurrentUser]
	if !ok || raw == "" {
		return ""
	}
	var user struct {
		Username string `json:"username"`
	}
	if json.Unmarshal([]byte(raw), &user) != nil {
		return ""
	}
	return user.Username
}

// ResolveUsername returns the username of the logged-in user, or an empty
// string if it cannot be determined.
func ResolveUsername(page Page) string {
	if page.Doc == nil {
		return localStorageUser(page)
	}
	for _, src := range sources {
		if name := src(page); name != "" {
			return name
		}
	}
	return ""
}

// hidden approximates rendering for static html: an element is hidden if it
// or any of its ancestors is hidden through markup.
func hidden(sel *goquery.Selection) bool {
	for cur := sel; cur.Length() > 0; cur = cur.Parent() {
		if _, ok := cur.Attr("hidden"); ok {
			return true
		}
		if cur.HasClass("hidden") {
			return true
		}
		style, _ := cur.Attr("style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") {
			return true
		}
	}
	return false
}

func IsLoggedIn(page Page) bool {
	if page.Doc == nil {
		return false
	}
	if page.Doc.Find(".header-dropdown-toggle.current-user").Length() > 0 {
		return true
	}
	login := page.Doc.Find(".login-button, .sign-up-button, button.login-button").First()
	if login.Length() > 0 && !hidden(login) {
		return false
	}
	return true
}

// CSRFToken returns the discourse csrf token embedded in the page.
func CSRFToken(page Page) string {
	if page.Doc == nil {
		return ""
	}
	token, _ := page.Doc.Find(`meta[name="csrf-token"]`).First().Attr("content")
	return strings.TrimSpace(token)
}

// Identity is what other components need to know about the logged-in user.
type Identity struct {
	Username  string
	CSRFToken string
}

func FromPage(page Page) Identity {
	return Identity{
		Username:  ResolveUsername(page),
		CSRFToken: CSRFToken(page),
	}
}

// Same reports whether a and b name the same account, usernames are case
// insensitive.
func Same(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Current holds the most recently resolved identity, safe for concurrent use.
type Current struct {
	mu  sync.RWMutex
	val Identity
}

func (c *Current) Set(id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.val = id
}

func (c *Current) Get() Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.val
}

func (c *Current) Username() string {
	return c.Get().Username
}
