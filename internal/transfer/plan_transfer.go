package transfer

import "time"

// PlanResponse is the body of GET /api/me/plan.
type PlanResponse struct {
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	ExpiresAt        *time.Time `json:"expires_at"`
	TrialEndsAt      *time.Time `json:"trial_ends_at"`
	CanUseApp        bool       `json:"canUseApp"`
	IsPro            bool       `json:"isPro"`
	EligibleForTrial bool       `json:"eligibleForTrial"`
	Limit            int        `json:"limit"`
	Usage            int        `json:"usage"`
	UsagePeriod      string     `json:"usage_period"`
}

// Remaining is how many generations the current period still allows.
func (p *PlanResponse) Remaining() int {
	if p.Usage >= p.Limit {
		return 0
	}
	return p.Limit - p.Usage
}

type GenerationRequest struct {
	Platform string `json:"platform"`
}

type GenerationResponse struct {
	ID          string `json:"id"`
	Usage       int    `json:"usage"`
	Limit       int    `json:"limit"`
	Remaining   int    `json:"remaining"`
	UsagePeriod string `json:"usage_period"`
}
