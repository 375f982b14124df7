package model

import "time"

// QuotaOperation is a YouTube Data API call kind with a fixed unit cost.
type QuotaOperation string

const (
	OpVideosList   QuotaOperation = "videos.list"
	OpVideosUpdate QuotaOperation = "videos.update"
	OpSearchList   QuotaOperation = "search.list"
	OpChannelsList QuotaOperation = "channels.list"
)

var quotaCosts = map[QuotaOperation]int64{
	OpVideosList:   1,
	OpVideosUpdate: 50,
	OpSearchList:   100,
	OpChannelsList: 1,
}

func (o QuotaOperation) String() string { return string(o) }

// Cost returns the unit cost of the operation, 0 when unknown.
func (o QuotaOperation) Cost() int64 { return quotaCosts[o] }

func (o QuotaOperation) Valid() bool {
	_, ok := quotaCosts[o]
	return ok
}

// QuotaUsage is the per-day row of the quota_usage table.
type QuotaUsage struct {
	Date                  time.Time `db:"date"`
	TotalUnitsUsed        int64     `db:"total_units_used"`
	VideoListCalls        int64     `db:"video_list_calls"`
	VideoUpdateCalls      int64     `db:"video_update_calls"`
	SearchListCalls       int64     `db:"search_list_calls"`
	ChannelListCalls      int64     `db:"channel_list_calls"`
	CircuitBreakerTripped bool      `db:"circuit_breaker_tripped"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}
