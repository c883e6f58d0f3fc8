package payment

import "context"

// CheckoutSession is the gateway's answer when a hosted checkout is created.
type CheckoutSession struct {
	ID          string
	URL         string
	AmountTotal int64
	Currency    string
}

// Event is a verified, normalized gateway event. Completed is true only for
// the payment-completed class; every other class is accepted and ignored for
// forward compatibility.
type Event struct {
	ID              string
	Completed       bool
	Token           string
	SessionID       string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	CustomerEmail   string
}

// Gateway abstracts the payment provider so the processor and the checkout
// builder stay testable without signed fixtures.
type Gateway interface {
	// VerifyEvent checks the signature over the raw body and parses the
	// event. Any signature or parse failure is an error; no partial result.
	VerifyEvent(payload []byte, signature string) (Event, error)

	// CreateCheckoutSession opens a hosted checkout for one unit of the
	// configured item, correlated to the case token.
	CreateCheckoutSession(ctx context.Context, token, email string) (CheckoutSession, error)
}
