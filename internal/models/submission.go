package models

import (
	"time"
)

const (
	OutcomeMined  = "mined"
	OutcomeFailed = "failed"
)

// Submission is one relayed submitReport attempt. The table is an audit log
// only; the chain stays the source of truth for reports and their ids.
type Submission struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TxHash      string    `gorm:"size:66;index" json:"transactionHash,omitempty"`
	BlockNumber uint64    `json:"blockNumber,omitempty"`
	GasUsed     uint64    `json:"gasUsed,omitempty"`
	CitizenID   uint64    `gorm:"index" json:"citizenId"`
	Signer      string    `gorm:"size:42" json:"signer"`
	Outcome     string    `gorm:"size:16;not null;index" json:"outcome"` // "mined", "failed"
	ErrorKind   string    `gorm:"size:32" json:"errorKind,omitempty"`
	Error       string    `gorm:"size:500" json:"error,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
}
