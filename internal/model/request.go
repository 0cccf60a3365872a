package model

import "time"

// Request statuses.
const (
	RequestStatusCreated    = "CREATED"
	RequestStatusInProgress = "IN_PROGRESS"
	RequestStatusSuccess    = "SUCCESS"
	RequestStatusError      = "ERROR"
	RequestStatusCanceled   = "CANCELED"
)

// Request is a command invocation against a system.
type Request struct {
	ID            string         `gorm:"primaryKey;size:64" json:"id,omitempty"`
	Namespace     string         `gorm:"size:200" json:"namespace"`
	System        string         `gorm:"size:200" json:"system"`
	SystemVersion string         `gorm:"size:100" json:"system_version"`
	InstanceName  string         `gorm:"size:200" json:"instance_name,omitempty"`
	Command       string         `gorm:"size:200" json:"command"`
	Parameters    map[string]any `gorm:"serializer:json" json:"parameters,omitempty"`
	ParentID      string         `gorm:"size:64;index" json:"parent_id,omitempty"`
	Parent        *Request       `gorm:"-" json:"parent,omitempty"`
	HasParent     bool           `json:"has_parent"`
	Status        string         `gorm:"size:50" json:"status,omitempty"`
	Output        string         `json:"output,omitempty"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at,omitempty"`
}

// SystemKey is the routing key of the system this request targets.
func (r *Request) SystemKey() string {
	return SystemKey(r.Namespace, r.System, r.SystemVersion)
}

// Terminal reports whether the request has finished.
func (r *Request) Terminal() bool {
	switch r.Status {
	case RequestStatusSuccess, RequestStatusError, RequestStatusCanceled:
		return true
	default:
		return false
	}
}
