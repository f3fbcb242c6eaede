package dto

import "time"

type BanResponse struct {
	Subject     int64     `json:"subject"`
	Reason      string    `json:"reason"`
	BannedAt    time.Time `json:"banned_at"`
	BanUntil    time.Time `json:"ban_until"`
	SecondsLeft int64     `json:"seconds_left"`
}

type BanListResponse struct {
	Bans []BanResponse `json:"bans"`
}

type CreateBanRequest struct {
	Subject     int64  `json:"subject"`
	DurationSec int64  `json:"duration_sec"`
	Reason      string `json:"reason"`
}

type UnbanResponse struct {
	Subject int64 `json:"subject"`
	Removed int64 `json:"removed"`
}

type CreateTokensRequest struct {
	PlanDays int `json:"plan_days"`
	Quantity int `json:"quantity"`
}

type CreateTokensResponse struct {
	PlanDays int      `json:"plan_days"`
	Codes    []string `json:"codes"`
}

type TokenPlanGroup struct {
	PlanDays int      `json:"plan_days"`
	Codes    []string `json:"codes"`
}

type UnusedTokensResponse struct {
	Groups []TokenPlanGroup `json:"groups"`
}

type MissingRequestResponse struct {
	UserID    int64     `json:"user_id"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
}

type MissingRequestsResponse struct {
	Requests []MissingRequestResponse `json:"requests"`
}
