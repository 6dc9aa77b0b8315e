package ably

import (
	"net/url"
	"strconv"
	"time"
)

// Direction is the order in which paginated items are returned.
type Direction string

const (
	Backwards Direction = "backwards"
	Forwards  Direction = "forwards"
)

// paginateParams are the query parameters shared by history, presence
// history and stats queries.
type paginateParams struct {
	limit     int
	direction Direction
	start     time.Time
	end       time.Time
	extra     url.Values
}

func (p paginateParams) values() url.Values {
	out := make(url.Values)
	for k, v := range p.extra {
		out[k] = v
	}
	if p.limit > 0 {
		out.Set("limit", strconv.Itoa(p.limit))
	}
	if p.direction != "" {
		out.Set("direction", string(p.direction))
	}
	if !p.start.IsZero() {
		out.Set("start", strconv.FormatInt(unixMilli(p.start), 10))
	}
	if !p.end.IsZero() {
		out.Set("end", strconv.FormatInt(unixMilli(p.end), 10))
	}
	return out
}

// A HistoryOption configures a channel or presence history query.
type HistoryOption func(*historyOptions)

type historyOptions struct {
	paginateParams
}

func HistoryWithLimit(limit int) HistoryOption {
	return func(o *historyOptions) {
		o.limit = limit
	}
}

func HistoryWithDirection(d Direction) HistoryOption {
	return func(o *historyOptions) {
		o.direction = d
	}
}

func HistoryWithStart(t time.Time) HistoryOption {
	return func(o *historyOptions) {
		o.start = t
	}
}

func HistoryWithEnd(t time.Time) HistoryOption {
	return func(o *historyOptions) {
		o.end = t
	}
}

func applyHistoryOptions(options []HistoryOption) url.Values {
	var o historyOptions
	for _, set := range options {
		set(&o)
	}
	return o.values()
}

// A StatsOption configures a stats query.
type StatsOption func(*statsOptions)

type statsOptions struct {
	paginateParams
}

func (o statsOptions) values() url.Values {
	return o.paginateParams.values()
}

func StatsWithLimit(limit int) StatsOption {
	return func(o *statsOptions) {
		o.limit = limit
	}
}

func StatsWithDirection(d Direction) StatsOption {
	return func(o *statsOptions) {
		o.direction = d
	}
}

func StatsWithStart(t time.Time) StatsOption {
	return func(o *statsOptions) {
		o.start = t
	}
}

func StatsWithEnd(t time.Time) StatsOption {
	return func(o *statsOptions) {
		o.end = t
	}
}

// StatsWithUnit sets the interval granularity, one of the StatGranularity
// constants.
func StatsWithUnit(unit string) StatsOption {
	return func(o *statsOptions) {
		o.setExtra("unit", unit)
	}
}

func (o *paginateParams) setExtra(key, value string) {
	if o.extra == nil {
		o.extra = make(url.Values)
	}
	o.extra.Set(key, value)
}

// A GetPresenceOption configures a query of the members currently present on
// a channel.
type GetPresenceOption func(*getPresenceOptions)

type getPresenceOptions struct {
	paginateParams
}

func GetPresenceWithLimit(limit int) GetPresenceOption {
	return func(o *getPresenceOptions) {
		o.limit = limit
	}
}

func GetPresenceWithClientID(clientID string) GetPresenceOption {
	return func(o *getPresenceOptions) {
		o.setExtra("clientId", clientID)
	}
}

func GetPresenceWithConnectionID(connectionID string) GetPresenceOption {
	return func(o *getPresenceOptions) {
		o.setExtra("connectionId", connectionID)
	}
}
