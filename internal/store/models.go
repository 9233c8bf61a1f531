// Package store is the Persistence Store (spec.md C1): durable storage for
// campaigns, contacts, active calls, hangup records and billing entries,
// with the two stronger primitives (AtomicUpdateCampaignStatus-family CAS
// operations and AtomicUpsertCounter) the rest of the engine is built on.
//
// No process-local caching of campaign state is permitted here or by any
// caller in the correctness-critical paths: every read goes to Postgres.
package store

import "time"

type CampaignStatus string

const (
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
	CampaignStatusFailed    CampaignStatus = "failed"
)

type Tenant struct {
	TenantID                   string
	AvailableBalance           int64
	MaxConcurrentCalls         int
	CallerNumbers              []string
	LastIncomingAggregationTime *time.Time
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

type Campaign struct {
	CampaignID         string
	TenantID           string
	Name               string
	ListID             string
	FromNumber         string
	BotWsURL           string
	Provider           string // resolved once by lifecycle.Controller.Create (telephony.SelectProvider) and persisted
	Status             CampaignStatus
	CurrentIndex       int
	TotalContacts      int
	ProcessedContacts  int
	ConnectedCalls     int
	FailedCalls        int
	Heartbeat          *time.Time
	LastActivity       *time.Time
	ContainerID        *string
	ScheduledTime      *time.Time
	PausedAt           *time.Time
	PausedBy           *string
	PauseReason        *string
	ResumedAt          *time.Time
	IsBalanceUpdated   bool
	BillingProcessedAt *time.Time
	ErrorMessage       *string
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Contact struct {
	ListID    string
	Ordinal   int
	Number    string
	FirstName string
	Email     string
	Fields    map[string]string
}

type ActiveCallStatus string

const (
	ActiveCallStatusProcessed ActiveCallStatus = "processed"
	ActiveCallStatusRinging   ActiveCallStatus = "ringing"
	ActiveCallStatusOngoing   ActiveCallStatus = "ongoing"
	ActiveCallStatusEnded     ActiveCallStatus = "call-ended"
	ActiveCallStatusCompleted ActiveCallStatus = "completed"
	ActiveCallStatusFailed    ActiveCallStatus = "failed"
)

// InFlightActiveCallStatuses are the statuses that count against the
// tenant and global concurrency caps (spec.md §4.4).
var InFlightActiveCallStatuses = []ActiveCallStatus{
	ActiveCallStatusProcessed,
	ActiveCallStatusRinging,
	ActiveCallStatusOngoing,
}

type ActiveCall struct {
	CallUUID        string
	ProviderCallID  string
	TenantID        string
	CampaignID      string
	From            string
	To              string
	Status          ActiveCallStatus
	Provider        string
	AssistantID     string
	CreatedAt       time.Time
	RingTime        *time.Time
	StreamStartTime *time.Time
	EndTime         *time.Time
}

type HangupRecord struct {
	CallUUID     string
	To           string
	From         string
	Duration     int
	Status       string
	HangupCause  string
	StartTime    *time.Time
	AnswerTime   *time.Time
	EndTime      *time.Time
	RecordingURL string
	Source       string
	Provider     string
	TenantID     string
	CampaignID   string
	AssistantID  string
	ContactMeta  map[string]string
	CreatedAt    time.Time
}

type BillingDetail struct {
	CallUUID         string
	TenantID         string
	EventTime        time.Time
	Type             string
	Duration         int
	From             string
	To               string
	Credits          int64
	AICredits        int64
	TelephonyCredits int64
	CampaignID       string
	CampaignName     string
	CreatedAt        time.Time
}

type BillingTransactionType string

const (
	BillingTransactionDebit  BillingTransactionType = "Dr"
	BillingTransactionCredit BillingTransactionType = "Cr"
)

type BillingHistoryEntry struct {
	ID                  string
	TenantID            string
	BalanceCount        int64
	NewAvailableBalance int64
	Description         string
	TransactionType     BillingTransactionType
	CampaignID          string
	CallUUID            string
	IsCampaignAggregate bool
	EventDate           time.Time
	CreatedAt           time.Time
}
