package payments

import (
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// Charger abstracts the card charge so tests can stub the payment rail.
type Charger interface {
	Charge(amountCents int64, paymentMethodID, buyerID, description string) (string, error)
}

// StripeCharger charges cards through Stripe PaymentIntents
type StripeCharger struct{}

// NewStripeCharger configures the global Stripe key and returns a charger
func NewStripeCharger(secretKey string) *StripeCharger {
	stripe.Key = secretKey
	return &StripeCharger{}
}

// Charge creates and confirms a PaymentIntent, returning the intent ID
func (s *StripeCharger) Charge(amountCents int64, paymentMethodID, buyerID, description string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		PaymentMethod: stripe.String(paymentMethodID),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.AddMetadata("buyer_id", buyerID)

	intent, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe charge failed: %w", err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return "", fmt.Errorf("stripe charge not completed: status %s", intent.Status)
	}
	return intent.ID, nil
}
