package pipeline

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is the persisted record of one generation run. It is inserted when
// the run starts and updated once with the final counts and status.
type Run struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ProfileName string       `gorm:"column:profile_name" json:"profile_name"`
	RandomSeed  int64        `gorm:"column:random_seed" json:"random_seed"`
	Status      string       `gorm:"column:status;index" json:"status"`

	Customers     int `gorm:"column:customers" json:"customers"`
	Users         int `gorm:"column:users" json:"users"`
	Subscriptions int `gorm:"column:subscriptions" json:"subscriptions"`
	Invoices      int `gorm:"column:invoices" json:"invoices"`

	EventsSubmitted int `gorm:"column:events_submitted" json:"events_submitted"`

	Error string `gorm:"column:error" json:"error,omitempty"`

	StartedAt  time.Time  `gorm:"column:started_at" json:"started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

func (Run) TableName() string { return "generation_runs" }
