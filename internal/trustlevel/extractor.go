// Package trustlevel works out how far a linux.do account is from its next
// trust level.
//
// Levels 2 and up are read off of the connect.linux.do page, which has gone
// through several layouts. Levels 0 and 1 are not shown there, so they are
// computed from the discourse user summary instead.
package trustlevel

import (
	"context"
	"errors"
	"fmt"
	"ldmonitor/internal/components/assert"
	"ldmonitor/internal/components/chrono"
	"ldmonitor/internal/components/telemetry"
	"ldmonitor/internal/identity"
	"ldmonitor/pkg/htmlutil"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_extractor_fetch   = "extractor.fetch"
	report_extractor_extract = "extractor.extract"
	report_extractor_summary = "extractor.summary"
)

var (
	ErrNoUsername         = errors.New("could not determine username")
	ErrNoRequirements     = errors.New("no requirements found on connect page")
	ErrNoCSRFToken        = errors.New("no csrf token on forum page")
	ErrNoSummary          = errors.New("summary response has no user_summary")
	ErrNoRequirementTable = errors.New("no requirement table for level")
	ErrSummaryRequest     = errors.New("summary request failed")
)

const (
	DefaultConnectUrl = "https://connect.linux.do/"
	DefaultForumUrl   = "https://linux.do"
)

type Fetcher interface {
	FetchRaw(ctx context.Context, link string) (string, error)
	FetchJSONWithHeaders(ctx context.Context, link string, headers map[string]string, out any) error
}

type Options struct {
	ConnectUrl string
	ForumUrl   string
	// Recognizers defaults to DefaultRecognizers.
	Recognizers []Recognizer
}

type Extractor struct {
	fetcher Fetcher
	time    chrono.TimeAPI
	tel     telemetry.API
	opts    Options
}

func NewExtractor(fetcher Fetcher, clock chrono.TimeAPI, tel telemetry.API, opts Options) *Extractor {
	assert.NotNil(fetcher)
	assert.NotNil(clock)
	assert.NotNil(tel)

	if opts.ConnectUrl == "" {
		opts.ConnectUrl = DefaultConnectUrl
	}
	if opts.ForumUrl == "" {
		opts.ForumUrl = DefaultForumUrl
	}
	if len(opts.Recognizers) == 0 {
		opts.Recognizers = DefaultRecognizers
	}

	return &Extractor{
		fetcher: fetcher,
		time:    clock,
		tel:     telemetry.NewScopedAPI("trustlevel", tel),
		opts:    opts,
	}
}

// Fetch downloads the connect page and extracts a snapshot from it.
func (e *Extractor) Fetch(ctx context.Context, id identity.Identity) (Snapshot, error) {
	contents, err := e.fetcher.FetchRaw(ctx, e.opts.ConnectUrl)
	if err != nil {
		e.tel.ReportWarning(report_extractor_fetch, err)
		return Snapshot{}, fmt.Errorf("fetch connect page: %w", err)
	}
	e.tel.ReportDebug("connect page fetched", "length", len(contents))
	return e.Extract(ctx, id, []byte(contents))
}

// Extract builds a snapshot out of the contents of the connect page. It only
// makes requests for levels 0 and 1.
func (e *Extractor) Extract(ctx context.Context, id identity.Identity, contents []byte) (Snapshot, error) {
	doc, err := htmlutil.Parse(contents)
	if err != nil {
		e.tel.ReportBroken(report_extractor_extract, fmt.Errorf("parse connect page: %w", err))
		return Snapshot{}, err
	}

	h := parseHeader(doc, id.Username)
	e.tel.ReportDebug(
		"header parsed",
		"username", h.username,
		"level", h.currentLevel,
		"target", h.targetLevel,
		"reached", h.reachedTarget,
	)
	if h.username == "" {
		return Snapshot{}, ErrNoUsername
	}

	var snapshot Snapshot
	if h.level() >= 2 {
		snapshot, err = e.fromConnectPage(h, doc)
	} else {
		snapshot, err = e.fromSummary(ctx, h, id.CSRFToken)
	}
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Timestamp = e.time.Now().UnixMilli()
	return snapshot, nil
}

func (e *Extractor) fromConnectPage(h header, doc *goquery.Document) (Snapshot, error) {
	level := h.level()
	isMaxLevel := level >= 3 && (h.targetLevel < 0 || h.reachedTarget)

	container := findContainer(doc)
	if container.Length() == 0 {
		if isMaxLevel {
			return newSnapshot(h.username, h.currentLevel, "", true, nil), nil
		}
		e.tel.ReportWarning(report_extractor_extract, ErrNoRequirements, h.username, h.currentLevel)
		return Snapshot{}, ErrNoRequirements
	}

	items, recognizer := recognize(e.opts.Recognizers, container)
	e.tel.ReportDebug("requirements recognized", "recognizer", recognizer, "items", len(items))

	targetLevel := ""
	switch {
	case h.targetLevel >= 0:
		targetLevel = strconv.Itoa(h.targetLevel)
	case level < 3:
		targetLevel = strconv.Itoa(level + 1)
	}

	return newSnapshot(h.username, h.currentLevel, targetLevel, isMaxLevel, items), nil
}

func (e *Extractor) fromSummary(ctx context.Context, h header, csrfToken string) (Snapshot, error) {
	if strings.TrimSpace(csrfToken) == "" {
		e.tel.ReportWarning(report_extractor_summary, ErrNoCSRFToken)
		return Snapshot{}, ErrNoCSRFToken
	}
	level := h.level()
	reqs, ok := levelRequirements[level]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w %d", ErrNoRequirementTable, level)
	}

	summary, err := e.fetchSummary(ctx, h.username, csrfToken)
	if err != nil {
		return Snapshot{}, err
	}

	return newSnapshot(
		h.username,
		strconv.Itoa(level),
		strconv.Itoa(level+1),
		false,
		summaryItems(summary, reqs),
	), nil
}
