package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	config "github.com/maheshrc27/misepo-api/configs"
	"github.com/maheshrc27/misepo-api/internal/entitlement"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrBillingNotConfigured = errors.New("billing is not configured")

// BillingService is the subset of the billing system the entitlement
// reconciler and webhook intake need.
type BillingService interface {
	// LatestSubscription returns the customer's most recent subscription in
	// any status.
	LatestSubscription(ctx context.Context, customerID string) entitlement.BillingLookup
	GetSubscription(ctx context.Context, subscriptionID string) (*entitlement.Subscription, error)
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
	Prices() entitlement.PriceCatalog
}

type billingService struct {
	api           *client.API
	webhookSecret string
	prices        entitlement.PriceCatalog
}

func NewBillingService(cfg config.Config) BillingService {
	s := &billingService{
		webhookSecret: strings.TrimSpace(cfg.Stripe.WebhookSecret),
		prices:        PriceCatalogFromConfig(cfg),
	}
	if key := strings.TrimSpace(cfg.Stripe.SecretKey); key != "" {
		s.api = client.New(key, nil)
	}
	return s
}

// PriceCatalogFromConfig maps the configured Stripe price ids to plans.
// Unset prices are skipped.
func PriceCatalogFromConfig(cfg config.Config) entitlement.PriceCatalog {
	catalog := entitlement.PriceCatalog{}
	for price, plan := range map[string]entitlement.Plan{
		cfg.Stripe.PriceEntry:        entitlement.PlanEntry,
		cfg.Stripe.PriceStandard:     entitlement.PlanStandard,
		cfg.Stripe.PriceProfessional: entitlement.PlanProfessional,
	} {
		if p := strings.TrimSpace(price); p != "" {
			catalog[p] = plan
		}
	}
	return catalog
}

func (s *billingService) Prices() entitlement.PriceCatalog {
	return s.prices
}

func (s *billingService) LatestSubscription(ctx context.Context, customerID string) entitlement.BillingLookup {
	if s.api == nil {
		return entitlement.LookupFailed(ErrBillingNotConfigured)
	}

	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Limit = stripe.Int64(1)
	params.Single = true
	params.Context = ctx

	it := s.api.Subscriptions.List(params)
	if it.Next() {
		return entitlement.LookupFound(subscriptionFromStripe(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		if isResourceMissing(err) {
			return entitlement.LookupCustomerMissing()
		}
		return entitlement.LookupFailed(fmt.Errorf("list subscriptions: %w", err))
	}
	return entitlement.LookupNoSubscription()
}

func (s *billingService) GetSubscription(ctx context.Context, subscriptionID string) (*entitlement.Subscription, error) {
	if s.api == nil {
		return nil, ErrBillingNotConfigured
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := s.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription %s: %w", subscriptionID, err)
	}
	out := subscriptionFromStripe(sub)
	return &out, nil
}

func (s *billingService) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if s.webhookSecret == "" {
		return stripe.Event{}, ErrBillingNotConfigured
	}
	return webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

func isResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	if stripeErr.Code == stripe.ErrorCodeResourceMissing {
		return true
	}
	log.Debug().Err(err).Str("code", string(stripeErr.Code)).Msg("stripe error is not resource_missing")
	return false
}

// subscriptionFromStripe flattens a Stripe subscription. Period bounds and
// the price live on the first item.
func subscriptionFromStripe(sub *stripe.Subscription) entitlement.Subscription {
	out := entitlement.Subscription{
		ID:        sub.ID,
		Status:    entitlement.ParseStatus(string(sub.Status)),
		AppID:     strings.TrimSpace(sub.Metadata[entitlement.MetadataAppID]),
		CancelAt:  unixTime(sub.CancelAt),
		StartDate: unixTime(sub.StartDate),
		Created:   unixTime(sub.Created),
		TrialEnd:  unixTime(sub.TrialEnd),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
		out.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
		out.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
	}
	return out
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
