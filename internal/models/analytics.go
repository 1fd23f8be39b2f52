package models

import "encoding/json"

// Analytics holds the view and click counters of one profile.
type Analytics struct {
	PageViews  int64            `json:"pageViews" bson:"pageViews"`
	LinkClicks map[string]int64 `json:"linkClicks" bson:"linkClicks"`
}

// AnalyticsEventKind selects which counter an event increments.
type AnalyticsEventKind int

const (
	EventPageView AnalyticsEventKind = iota
	EventLinkClick
)

// AnalyticsEvent is one view or click to be counted.
type AnalyticsEvent struct {
	Kind   AnalyticsEventKind
	LinkID string
}

func PageView() AnalyticsEvent { return AnalyticsEvent{Kind: EventPageView} }

func LinkClick(linkID string) AnalyticsEvent {
	return AnalyticsEvent{Kind: EventLinkClick, LinkID: linkID}
}

// NewAnalytics returns zeroed counters.
func NewAnalytics() Analytics {
	return Analytics{LinkClicks: map[string]int64{}}
}

// Apply increments the counter addressed by ev, initializing missing counters to zero.
func (a *Analytics) Apply(ev AnalyticsEvent) {
	if a.LinkClicks == nil {
		a.LinkClicks = map[string]int64{}
	}
	switch ev.Kind {
	case EventPageView:
		a.PageViews++
	case EventLinkClick:
		a.LinkClicks[ev.LinkID]++
	}
}

// AnalyticsPatch replaces whole top-level counters. Nil fields are left alone.
type AnalyticsPatch struct {
	PageViews  *int64
	LinkClicks map[string]int64
}

func (p AnalyticsPatch) Empty() bool {
	return p.PageViews == nil && p.LinkClicks == nil
}

// ParseAnalyticsPatch keeps the keys of raw that decode as counters and
// ignores the rest.
func ParseAnalyticsPatch(raw map[string]json.RawMessage) AnalyticsPatch {
	var p AnalyticsPatch
	if v, ok := raw["pageViews"]; ok {
		var n int64
		if json.Unmarshal(v, &n) == nil {
			p.PageViews = &n
		}
	}
	if v, ok := raw["linkClicks"]; ok {
		var clicks map[string]int64
		if json.Unmarshal(v, &clicks) == nil && clicks != nil {
			p.LinkClicks = clicks
		}
	}
	return p
}

func (a *Analytics) ApplyPatch(p AnalyticsPatch) {
	if p.PageViews != nil {
		a.PageViews = *p.PageViews
	}
	if p.LinkClicks != nil {
		a.LinkClicks = make(map[string]int64, len(p.LinkClicks))
		for k, v := range p.LinkClicks {
			a.LinkClicks[k] = v
		}
	}
	if a.LinkClicks == nil {
		a.LinkClicks = map[string]int64{}
	}
}

func (a Analytics) Clone() Analytics {
	out := Analytics{PageViews: a.PageViews, LinkClicks: make(map[string]int64, len(a.LinkClicks))}
	for k, v := range a.LinkClicks {
		out.LinkClicks[k] = v
	}
	return out
}
