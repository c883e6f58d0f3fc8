// Package stripegw adapts Stripe checkout and webhooks to the payment
// gateway interface. All Stripe types stay inside this package.
package stripegw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"caseflow/internal/payment"
)

const completedEventType = "checkout.session.completed"

// sessionExpiry bounds how long a hosted checkout stays open.
const sessionExpiry = 30 * time.Minute

type Config struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	SiteURL       string
}

type Gateway struct {
	cfg Config
	api *client.API
	now func() time.Time
}

func New(cfg Config) *Gateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Gateway{cfg: cfg, api: api, now: time.Now}
}

// VerifyEvent checks the Stripe-Signature header against the endpoint secret
// and normalizes the event. The correlation token is taken from
// client_reference_id, falling back to the session metadata.
func (g *Gateway) VerifyEvent(payload []byte, signature string) (payment.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.cfg.WebhookSecret)
	if err != nil {
		return payment.Event{}, fmt.Errorf("construct webhook event: %w", err)
	}

	out := payment.Event{ID: event.ID}
	if string(event.Type) != completedEventType {
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return payment.Event{}, fmt.Errorf("decode checkout session: %w", err)
	}

	out.Completed = true
	out.Token = session.ClientReferenceID
	if out.Token == "" {
		out.Token = session.Metadata["token"]
	}
	out.SessionID = session.ID
	if session.PaymentIntent != nil {
		out.PaymentIntentID = session.PaymentIntent.ID
	}
	out.AmountTotal = session.AmountTotal
	out.Currency = string(session.Currency)
	out.CustomerEmail = session.CustomerEmail
	return out, nil
}

// CreateCheckoutSession opens a hosted checkout for a single unit of the
// configured price. The token rides along as both client_reference_id and
// metadata so the completion event can be correlated either way.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, token, email string) (payment.CheckoutSession, error) {
	escaped := url.QueryEscape(token)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(g.cfg.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(g.cfg.SiteURL + "/case.html?case=" + escaped + "&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(g.cfg.SiteURL + "/case-preview.html?case=" + escaped),
		ClientReferenceID: stripe.String(token),
		CustomerEmail:     stripe.String(email),
		ExpiresAt:         stripe.Int64(g.now().Add(sessionExpiry).Unix()),
	}
	params.Context = ctx
	params.AddMetadata("token", token)

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return payment.CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}

	return payment.CheckoutSession{
		ID:          session.ID,
		URL:         session.URL,
		AmountTotal: session.AmountTotal,
		Currency:    string(session.Currency),
	}, nil
}
