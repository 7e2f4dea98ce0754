package models

import (
	"time"

	"github.com/maheshrc27/misepo-api/internal/entitlement"
)

type Entitlement struct {
	ID                 int64      `db:"id" json:"id"`
	UserID             string     `db:"user_id" json:"user_id"`
	AppID              string     `db:"app_id" json:"app_id"`
	Plan               string     `db:"plan" json:"plan"`
	Status             string     `db:"status" json:"status"`
	ExpiresAt          *time.Time `db:"expires_at" json:"expires_at"`
	TrialEndsAt        *time.Time `db:"trial_ends_at" json:"trial_ends_at"`
	BillingReferenceID string     `db:"billing_reference_id" json:"billing_reference_id"`
	ExternalCustomerID string     `db:"external_customer_id" json:"external_customer_id"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

func (e *Entitlement) Domain() entitlement.Entitlement {
	return entitlement.Entitlement{
		UserID:             e.UserID,
		AppID:              e.AppID,
		Plan:               entitlement.ParsePlan(e.Plan),
		Status:             entitlement.ParseStatus(e.Status),
		ExpiresAt:          e.ExpiresAt,
		Trial:              entitlement.TrialWindowFromColumn(e.TrialEndsAt),
		BillingReferenceID: e.BillingReferenceID,
		ExternalCustomerID: e.ExternalCustomerID,
	}
}

func EntitlementFromDomain(d entitlement.Entitlement) *Entitlement {
	return &Entitlement{
		UserID:             d.UserID,
		AppID:              d.AppID,
		Plan:               string(d.Plan),
		Status:             string(d.Status),
		ExpiresAt:          d.ExpiresAt,
		TrialEndsAt:        d.Trial.Column(),
		BillingReferenceID: d.BillingReferenceID,
		ExternalCustomerID: d.ExternalCustomerID,
	}
}
