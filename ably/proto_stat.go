package ably

import (
	"fmt"
)

// Granularities of statistics intervals.
const (
	StatGranularityMinute = "minute"
	StatGranularityHour   = "hour"
	StatGranularityDay    = "day"
	StatGranularityMonth  = "month"
)

type StatsResourceCount struct {
	Peak    float64 `json:"peak" codec:"peak"`
	Min     float64 `json:"min" codec:"min"`
	Mean    float64 `json:"mean" codec:"mean"`
	Opened  float64 `json:"opened" codec:"opened"`
	Refused float64 `json:"refused" codec:"refused"`
}

type StatsMessageCount struct {
	Count   float64 `json:"count" codec:"count"`
	Data    float64 `json:"data" codec:"data"`
	Failed  float64 `json:"failed" codec:"failed"`
	Refused float64 `json:"refused" codec:"refused"`
}

type StatsMessageTypes struct {
	All      StatsMessageCount `json:"all" codec:"all"`
	Messages StatsMessageCount `json:"messages" codec:"messages"`
	Presence StatsMessageCount `json:"presence" codec:"presence"`
}

type StatsMessageTraffic struct {
	All      StatsMessageTypes `json:"all" codec:"all"`
	RealTime StatsMessageTypes `json:"realtime" codec:"realtime"`
	REST     StatsMessageTypes `json:"rest" codec:"rest"`
	Webhook  StatsMessageTypes `json:"webhook" codec:"webhook"`
}

type StatsRequestCount struct {
	Failed    float64 `json:"failed" codec:"failed"`
	Refused   float64 `json:"refused" codec:"refused"`
	Succeeded float64 `json:"succeeded" codec:"succeeded"`
}

type StatsConnectionTypes struct {
	All   StatsResourceCount `json:"all" codec:"all"`
	Plain StatsResourceCount `json:"plain" codec:"plain"`
	TLS   StatsResourceCount `json:"tls" codec:"tls"`
}

type StatsPushNotifications struct {
	Invalid    float64 `json:"invalid" codec:"invalid"`
	Attempted  float64 `json:"attempted" codec:"attempted"`
	Successful float64 `json:"successful" codec:"successful"`
	Failed     float64 `json:"failed" codec:"failed"`
}

type PushStats struct {
	Messages        float64                `json:"messages" codec:"messages"`
	Notifications   StatsPushNotifications `json:"notifications" codec:"notifications"`
	DirectPublishes float64                `json:"directPublishes" codec:"directPublishes"`
}

// Stats are the application's usage figures for one interval.
type Stats struct {
	IntervalID string `json:"intervalId" codec:"intervalId"`
	Unit       string `json:"unit" codec:"unit"`
	InProgress string `json:"inProgress,omitempty" codec:"inProgress,omitempty"`

	All           StatsMessageTypes    `json:"all" codec:"all"`
	Inbound       StatsMessageTraffic  `json:"inbound" codec:"inbound"`
	Outbound      StatsMessageTraffic  `json:"outbound" codec:"outbound"`
	Persisted     StatsMessageTypes    `json:"persisted" codec:"persisted"`
	Connections   StatsConnectionTypes `json:"connections" codec:"connections"`
	Channels      StatsResourceCount   `json:"channels" codec:"channels"`
	APIRequests   StatsRequestCount    `json:"apiRequests" codec:"apiRequests"`
	TokenRequests StatsRequestCount    `json:"tokenRequests" codec:"tokenRequests"`
	Push          PushStats            `json:"push" codec:"push"`
}

func (s Stats) String() string {
	return fmt.Sprintf("<Stats %v; unit=%v; messages=%v>", s.IntervalID, s.Unit, s.All.Messages.Count)
}
