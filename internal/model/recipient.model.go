package model

import "time"

// Recipient is the addressable party (family/guest) engagement is tracked
// for. Guest CRUD lives outside this service; this is the read-side shape
// the aggregator consumes.
type Recipient struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Recipient) TableName() string { return "recipients" }
