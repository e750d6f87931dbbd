// Package store persists survey responses. The SQLite implementation
// is the production backend; handlers depend only on the Store
// interface so tests can swap in an in-memory one.
package store

import (
	"context"
	"time"
)

// ResponseA is one Part A single-image rating.
type ResponseA struct {
	RaterID         string
	Provider        string
	Model           string
	CategoryID      string
	PromptID        string
	SeedLabel       int
	ImagePath       string
	PromptText      string
	HasText         bool
	NoPeople        bool
	Adherence       int
	Aesthetic       int
	Creativity      int
	Style           int
	TextCorrectness string // "correct" | "partial" | "incorrect" | ""
	PeopleViolation bool
	ElapsedMS       int64
	SubmittedUTC    time.Time
}

// ResponseB is one provider's rank within a Part B submission. A full
// submission inserts one row per provider, all sharing the task key.
type ResponseB struct {
	RaterID      string
	CategoryID   string
	PromptID     string
	SeedLabel    int
	Provider     string
	Rank         int
	ImagePath    string
	ElapsedMS    int64
	SubmittedUTC time.Time
}

// ResponseC is one Part C diversity rating over a seed grid.
type ResponseC struct {
	RaterID      string
	Provider     string
	CategoryID   string
	PromptID     string
	Diversity    int
	ImagePaths   []string
	ElapsedMS    int64
	SubmittedUTC time.Time
}

// PoolCounts carries the live pool sizes into the stats payload.
type PoolCounts struct {
	PoolA int `json:"pool_A"`
	PoolB int `json:"pool_B"`
	PoolC int `json:"pool_C"`
}

// Totals are the response counters on the admin overview.
type Totals struct {
	Raters int `json:"raters"`
	A      int `json:"A"`
	B      int `json:"B"`
	C      int `json:"C"`
}

// MOSRow is a per-provider mean-opinion-score aggregate for Part A.
type MOSRow struct {
	Provider   string  `json:"provider"`
	N          int     `json:"n"`
	Adherence  float64 `json:"adherence"`
	Aesthetic  float64 `json:"aesthetic"`
	Creativity float64 `json:"creativity"`
	Style      float64 `json:"style"`
}

// TextRow counts text-correctness outcomes per provider.
type TextRow struct {
	Provider  string `json:"provider"`
	Correct   int    `json:"correct"`
	Partial   int    `json:"partial"`
	Incorrect int    `json:"incorrect"`
}

// PeopleRow counts no-people rule compliance per provider.
type PeopleRow struct {
	Provider   string `json:"provider"`
	WithRule   int    `json:"with_rule"`
	Violations int    `json:"violations"`
}

// RankingRow aggregates Part B ranks per provider.
type RankingRow struct {
	Provider string  `json:"provider"`
	N        int     `json:"n"`
	AvgRank  float64 `json:"avg_rank"`
	Wins     int     `json:"wins"`
}

// DiversityRow aggregates Part C diversity per provider.
type DiversityRow struct {
	Provider     string  `json:"provider"`
	N            int     `json:"n"`
	AvgDiversity float64 `json:"avg_diversity"`
}

// RecentRow is one line in the recent-submissions panels.
type RecentRow struct {
	SubmittedUTC string `json:"submitted_utc"`
	RaterID      string `json:"rater_id"`
	Provider     string `json:"provider,omitempty"`
	CategoryID   string `json:"category_id"`
	PromptID     string `json:"prompt_id"`
	SeedLabel    int    `json:"seed_label,omitempty"`
	Diversity    int    `json:"diversity,omitempty"`
}

// Stats is the full admin dashboard payload.
type Stats struct {
	Pools  PoolCounts `json:"pools"`
	Totals Totals     `json:"totals"`
	A      StatsA     `json:"A"`
	B      StatsB     `json:"B"`
	C      StatsC     `json:"C"`
	Recent Recent     `json:"recent"`
}

type StatsA struct {
	MOS    []MOSRow    `json:"mos"`
	Text   []TextRow   `json:"text"`
	People []PeopleRow `json:"people"`
}

type StatsB struct {
	Ranking []RankingRow `json:"ranking"`
}

type StatsC struct {
	Diversity []DiversityRow `json:"diversity"`
}

type Recent struct {
	A []RecentRow `json:"A"`
	B []RecentRow `json:"B"`
	C []RecentRow `json:"C"`
}

// Store persists raters and responses and serves aggregates.
type Store interface {
	CreateRater(ctx context.Context, raterID, userAgent string) error
	InsertA(ctx context.Context, r ResponseA) error
	InsertB(ctx context.Context, rows []ResponseB) error
	InsertC(ctx context.Context, r ResponseC) error
	Stats(ctx context.Context, pools PoolCounts) (*Stats, error)
	ExportCSV(ctx context.Context, dir string) ([]string, error)
	Close() error
}
