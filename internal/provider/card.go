package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/money"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// paymentIntents is the slice of the card processor SDK this adapter calls.
type paymentIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

// Card adapts the card processor: hosted payment intents confirmed on the
// client with a secret, and signed webhook events.
type Card struct {
	intents       paymentIntents
	webhookSecret string
	methodTypes   []string
}

// NewCard builds the card adapter from the processor's secret key.
func NewCard(secretKey, webhookSecret string, methodTypes []string) *Card {
	sc := client.New(secretKey, nil)
	return newCard(sc.PaymentIntents, webhookSecret, methodTypes)
}

func newCard(intents paymentIntents, webhookSecret string, methodTypes []string) *Card {
	if len(methodTypes) == 0 {
		methodTypes = []string{"card"}
	}
	return &Card{intents: intents, webhookSecret: webhookSecret, methodTypes: methodTypes}
}

func (c *Card) Method() model.PaymentMethod { return model.MethodCard }

// CreateIntent opens a payment intent. The payment id is sent as the
// processor idempotency key so a retried create never opens a second intent.
func (c *Card) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(money.ToMinor(req.Amount, req.Currency)),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethodTypes: stripe.StringSlice(c.methodTypes),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(req.PaymentID)
	params.AddMetadata("payment_id", req.PaymentID)
	params.AddMetadata("voter_id", req.VoterID)
	params.AddMetadata("event_id", req.EventID)
	params.AddMetadata("contestant_id", req.ContestantID)

	pi, err := c.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create card intent: %w", ErrProvider, err)
	}
	return &Intent{
		ProviderRef:  pi.ID,
		ClientSecret: pi.ClientSecret,
		Raw: map[string]any{
			"id":       pi.ID,
			"status":   string(pi.Status),
			"amount":   pi.Amount,
			"currency": string(pi.Currency),
		},
	}, nil
}

// RetrieveStatus maps the intent status onto succeeded, failed or pending.
// Only a canceled intent is final on the failure side; an intent that needs a
// new payment method can still be completed by the voter.
func (c *Card) RetrieveStatus(ctx context.Context, providerRef string) (StatusResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := c.intents.Get(providerRef, params)
	if err != nil {
		return StatusResult{}, fmt.Errorf("%w: retrieve card intent: %w", ErrProvider, err)
	}
	res := StatusResult{
		Status:   StatusPending,
		Amount:   pi.Amount,
		Currency: strings.ToUpper(string(pi.Currency)),
		Raw:      map[string]any{"id": pi.ID, "status": string(pi.Status), "amount": pi.Amount},
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		res.Status = StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		res.Status = StatusFailed
		res.Reason = "payment intent canceled"
	}
	if pi.LastPaymentError != nil && res.Reason == "" {
		res.Reason = pi.LastPaymentError.Msg
	}
	return res, nil
}

// Cancel cancels the intent at the processor.
func (c *Card) Cancel(ctx context.Context, providerRef string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := c.intents.Cancel(providerRef, params); err != nil {
		return fmt.Errorf("%w: cancel card intent: %w", ErrProvider, err)
	}
	return nil
}

// CardEventKind is the closed set of card webhook events the ledger reacts to.
type CardEventKind int

const (
	CardEventUnknown CardEventKind = iota
	CardPaymentSucceeded
	CardPaymentFailed
	CardPaymentCanceled
	CardDisputeCreated
	CardChargeRefunded
)

var cardEventKinds = map[string]CardEventKind{
	"payment_intent.succeeded":      CardPaymentSucceeded,
	"payment_intent.payment_failed": CardPaymentFailed,
	"payment_intent.canceled":       CardPaymentCanceled,
	"charge.dispute.created":        CardDisputeCreated,
	"charge.refunded":               CardChargeRefunded,
}

func (k CardEventKind) String() string {
	for name, kind := range cardEventKinds {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// CardEvent is a verified card webhook reduced to its correlation data.
type CardEvent struct {
	ID              string
	Type            string
	Kind            CardEventKind
	PaymentIntentID string
	PaymentID       string
	Reason          string
	// Amount and Currency are set for payment intent events only.
	Amount   int64
	Currency string
	Raw      map[string]any
}

// cardObject covers the fields read from payment intent, dispute and charge
// payloads. payment_intent is an id string unless the sender expanded it.
type cardObject struct {
	ID               string            `json:"id"`
	Object           string            `json:"object"`
	Status           string            `json:"status"`
	Reason           string            `json:"reason"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
	PaymentIntent    json.RawMessage   `json:"payment_intent"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
	CancellationReason string `json:"cancellation_reason"`
}

func (o cardObject) paymentIntentID() string {
	if o.Object == "payment_intent" {
		return o.ID
	}
	if len(o.PaymentIntent) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(o.PaymentIntent, &id); err == nil {
		return id
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(o.PaymentIntent, &expanded); err == nil {
		return expanded.ID
	}
	return ""
}

// VerifyWebhook checks the processor signature over the raw, unparsed body
// and decodes the event. Any verification failure is ErrSignatureInvalid.
func (c *Card) VerifyWebhook(payload []byte, signatureHeader string) (*CardEvent, error) {
	if c.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrSignatureInvalid)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	}

	out := &CardEvent{
		ID:   event.ID,
		Type: string(event.Type),
		Kind: cardEventKinds[string(event.Type)],
	}
	if out.Kind == CardEventUnknown || event.Data == nil {
		return out, nil
	}

	var obj cardObject
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("decode card event object: %w", err)
	}
	out.PaymentIntentID = obj.paymentIntentID()
	out.PaymentID = obj.Metadata["payment_id"]
	if obj.Object == "payment_intent" {
		out.Amount = obj.Amount
		out.Currency = strings.ToUpper(obj.Currency)
	}
	switch {
	case obj.LastPaymentError != nil:
		out.Reason = obj.LastPaymentError.Message
	case obj.CancellationReason != "":
		out.Reason = obj.CancellationReason
	case obj.Reason != "":
		out.Reason = obj.Reason
	}
	out.Raw = map[string]any{
		"event_id":       event.ID,
		"type":           out.Type,
		"object_id":      obj.ID,
		"payment_intent": out.PaymentIntentID,
		"status":         obj.Status,
	}
	return out, nil
}
