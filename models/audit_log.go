package models

import "time"

// AuditLog records librarian actions on circulation records.
type AuditLog struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	Action        string    `gorm:"size:64;index;not null" json:"action"`
	LoanID        *string   `gorm:"type:uuid;index" json:"loanId,omitempty"`
	ActorID       string    `gorm:"type:uuid" json:"actorId"`
	ActorUsername string    `gorm:"size:255" json:"actorUsername"`
	Reason        *string   `gorm:"size:500" json:"reason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (AuditLog) TableName() string { return "lib_audit_log" }
