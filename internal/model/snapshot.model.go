package model

import "time"

// TenantSnapshot is the tenant-wide configuration the guest-facing page
// renders from. It is identical for every recipient of the tenant and is
// derived, never authoritative; dropping it costs a rebuild, nothing more.
type TenantSnapshot struct {
	TenantID    int64           `json:"tenant_id"`
	Theme       string          `json:"theme"`
	TemplateRef string          `json:"template_ref"`
	RSVPOpenAt  time.Time       `json:"rsvp_open_at"`
	RSVPCloseAt time.Time       `json:"rsvp_close_at"`
	Features    map[string]bool `json:"features,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}
