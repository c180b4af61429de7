package trustlevel

import (
	"ldmonitor/pkg/htmlutil"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Recognizer understands one way the connect page lays out requirement items.
type Recognizer interface {
	Name() string
	// Recognize returns the requirement items found in container, or nothing
	// if container is not laid out the way the recognizer expects.
	Recognize(container *goquery.Selection) []RequirementItem
}

// DefaultRecognizers are tried in order, the first one to produce items wins.
var DefaultRecognizers = []Recognizer{
	CardRecognizer{},
	LegacyTableRecognizer{},
}

// findContainer returns the element on the connect page holding the
// requirements, or an empty selection.
func findContainer(doc *goquery.Document) *goquery.Selection {
	card := doc.Find(".card").First()
	if card.Length() > 0 {
		return card
	}
	return doc.Find("div.bg-white.p-6.rounded-lg.mb-4.shadow").FilterFunction(func(_ int, div *goquery.Selection) bool {
		return strings.Contains(div.Find("h2").First().Text(), "信任级别")
	}).First()
}

func recognize(recognizers []Recognizer, container *goquery.Selection) ([]RequirementItem, string) {
	for _, r := range recognizers {
		items := r.Recognize(container)
		if len(items) > 0 {
			return items, r.Name()
		}
	}
	return nil, ""
}

// splitNums splits "12 / 30" into its two halves.
func splitNums(text string) (string, string, bool) {
	parts := strings.Split(text, "/")
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

func digitsOnly(text string) string {
	var out strings.Builder
	for _, c := range text {
		if c >= '0' && c <= '9' {
			out.WriteRune(c)
		}
	}
	return out.String()
}

// CardRecognizer reads the current layout: rings, progress bars, quota cards
// and veto items, which may be interleaved in any order.
type CardRecognizer struct{}

func (CardRecognizer) Name() string {
	return "card"
}

func (r CardRecognizer) Recognize(container *goquery.Selection) []RequirementItem {
	var items []RequirementItem
	container.Find(".tl3-ring, .tl3-bar-item, .tl3-quota-card, .tl3-veto-item").Each(func(_ int, el *goquery.Selection) {
		var item RequirementItem
		var ok bool
		switch {
		case el.HasClass("tl3-ring"):
			item, ok = r.ring(el)
		case el.HasClass("tl3-bar-item"):
			item, ok = r.bar(el)
		case el.HasClass("tl3-quota-card"):
			item, ok = r.quota(el)
		case el.HasClass("tl3-veto-item"):
			item, ok = r.veto(el)
		}
		if ok {
			items = append(items, item)
		}
	})
	return items
}

func (CardRecognizer) ring(el *goquery.Selection) (RequirementItem, bool) {
	label := htmlutil.Text(el.Find(".tl3-ring-label"))
	current := htmlutil.Text(el.Find(".tl3-ring-current"))
	if label == "" || current == "" {
		return RequirementItem{}, false
	}
	return RequirementItem{
		Label:    label,
		Current:  current,
		Required: digitsOnly(htmlutil.Text(el.Find(".tl3-ring-target"))),
		IsMet:    el.Find(".tl3-ring-circle").First().HasClass("met"),
	}, true
}

func (CardRecognizer) bar(el *goquery.Selection) (RequirementItem, bool) {
	label := htmlutil.Text(el.Find(".tl3-bar-label"))
	nums := el.Find(".tl3-bar-nums").First()
	current, required, ok := splitNums(htmlutil.Text(nums))
	if label == "" || !ok {
		return RequirementItem{}, false
	}
	return RequirementItem{
		Label:    label,
		Current:  current,
		Required: required,
		IsMet:    nums.HasClass("met"),
	}, true
}

func (CardRecognizer) quota(el *goquery.Selection) (RequirementItem, bool) {
	label := htmlutil.Text(el.Find(".tl3-quota-label"))
	current, required, ok := splitNums(htmlutil.Text(el.Find(".tl3-quota-nums")))
	if label == "" || !ok {
		return RequirementItem{}, false
	}
	return RequirementItem{
		Label:    label,
		Current:  current,
		Required: "≤" + required,
		IsMet:    el.HasClass("met"),
	}, true
}

func (CardRecognizer) veto(el *goquery.Selection) (RequirementItem, bool) {
	label := htmlutil.Text(el.Find(".tl3-veto-label"))
	value := el.Find(".tl3-veto-value")
	if label == "" || value.Length() == 0 {
		return RequirementItem{}, false
	}
	desc := htmlutil.Text(el.Find(".tl3-veto-desc"))
	return RequirementItem{
		Label:    label + "(" + desc + ")",
		Current:  htmlutil.Text(value),
		Required: "0",
		IsMet:    el.HasClass("met"),
	}, true
}

// LegacyTableRecognizer reads the older layout, a table with a header row
// followed by label, current and required columns.
type LegacyTableRecognizer struct{}

func (LegacyTableRecognizer) Name() string {
	return "legacy-table"
}

func (LegacyTableRecognizer) Recognize(container *goquery.Selection) []RequirementItem {
	var items []RequirementItem
	container.Find("table tbody tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		current := cells.Eq(1)
		items = append(items, RequirementItem{
			Label:    htmlutil.Text(cells.Eq(0)),
			Current:  htmlutil.Text(current),
			Required: htmlutil.Text(cells.Eq(2)),
			// the old page only colors the cell, a missing color is read as unmet
			IsMet: current.HasClass("text-green-500"),
		})
	})
	return items
}
