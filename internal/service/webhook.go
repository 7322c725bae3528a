package service

import (
	"context"
	"errors"
	"log/slog"
	"maps"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/provider"
	"github.com/Shivanand-hulikatti/votepay/internal/repository"
)

// Webhook ingestion acknowledges every verified delivery. Only a bad
// signature is returned as an error; anything that goes wrong after that is
// logged so the provider does not retry forever.

type cardVerifier interface {
	VerifyWebhook(payload []byte, signatureHeader string) (*provider.CardEvent, error)
}

// CardWebhookIngestor handles card processor events.
type CardWebhookIngestor struct {
	verifier   cardVerifier
	payments   PaymentStore
	ledger     *Ledger
	settlement *Settlement
	log        *slog.Logger
}

func NewCardWebhookIngestor(verifier cardVerifier, payments PaymentStore, ledger *Ledger, settlement *Settlement) *CardWebhookIngestor {
	return &CardWebhookIngestor{
		verifier:   verifier,
		payments:   payments,
		ledger:     ledger,
		settlement: settlement,
		log:        slog.Default().With("component", "webhook", "provider", model.MethodCard),
	}
}

// Ingest verifies payload against its signature header and dispatches it.
func (i *CardWebhookIngestor) Ingest(ctx context.Context, payload []byte, signature string) error {
	ev, err := i.verifier.VerifyWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, provider.ErrSignatureInvalid) {
			i.log.Warn("rejected webhook with invalid signature", "error", err)
			return provider.ErrSignatureInvalid
		}
		i.log.Error("undecodable webhook acknowledged", "error", err)
		return nil
	}
	log := i.log.With("event_id", ev.ID, "type", ev.Type)

	if ev.Kind == provider.CardEventUnknown {
		log.Debug("ignoring unhandled event type")
		return nil
	}
	p, err := i.resolve(ctx, ev)
	if err != nil {
		log.Error("could not resolve payment", "payment_intent", ev.PaymentIntentID, "error", err)
		return nil
	}
	log = log.With("payment_id", p.ID)

	data := map[string]any{"source": "webhook"}
	maps.Copy(data, ev.Raw)

	switch ev.Kind {
	case provider.CardPaymentSucceeded:
		_, _, err = i.settlement.Charged(ctx, p, ev.Amount, ev.Currency, data)
	case provider.CardPaymentFailed, provider.CardPaymentCanceled:
		_, err = i.settlement.Failed(ctx, p.ID, reasonOr(ev.Reason, ev.Type), data)
	case provider.CardDisputeCreated:
		_, _, err = i.ledger.MarkDisputed(ctx, p.ID, reasonOr(ev.Reason, "dispute created"), data)
	case provider.CardChargeRefunded:
		_, _, err = i.ledger.MarkRefunded(ctx, p.ID, reasonOr(ev.Reason, "charge refunded"), data)
	}
	if err != nil {
		log.Error("webhook handling failed", "error", err)
	}
	return nil
}

// resolve finds the payment by intent id, falling back to the payment id the
// intent carries in its metadata when the ref was never attached locally.
func (i *CardWebhookIngestor) resolve(ctx context.Context, ev *provider.CardEvent) (*model.Payment, error) {
	if ev.PaymentIntentID != "" {
		p, err := i.payments.GetByProviderRef(ctx, model.MethodCard, ev.PaymentIntentID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrNotFound) || ev.PaymentID == "" {
			return nil, err
		}
	}
	if ev.PaymentID == "" {
		return nil, repository.ErrNotFound
	}
	p, err := i.payments.GetByID(ctx, ev.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.Method != model.MethodCard {
		return nil, repository.ErrNotFound
	}
	if ev.PaymentIntentID != "" {
		if err := i.payments.AttachProviderRef(ctx, p.ID, ev.PaymentIntentID, ev.Raw); err != nil {
			return nil, err
		}
	}
	return p, nil
}

type mobileMoneyVerifier interface {
	VerifyWebhook(payload []byte, signature string) (*provider.MobileMoneyEvent, error)
	SettlementCurrency() string
}

// MobileMoneyWebhookIngestor handles mobile money charge and transfer events.
type MobileMoneyWebhookIngestor struct {
	verifier    mobileMoneyVerifier
	payments    PaymentStore
	settlement  *Settlement
	withdrawals *WithdrawalService
	log         *slog.Logger
}

func NewMobileMoneyWebhookIngestor(verifier mobileMoneyVerifier, payments PaymentStore, settlement *Settlement, withdrawals *WithdrawalService) *MobileMoneyWebhookIngestor {
	return &MobileMoneyWebhookIngestor{
		verifier:    verifier,
		payments:    payments,
		settlement:  settlement,
		withdrawals: withdrawals,
		log:         slog.Default().With("component", "webhook", "provider", model.MethodMobileMoney),
	}
}

// Ingest verifies payload against its HMAC digest and dispatches it.
func (i *MobileMoneyWebhookIngestor) Ingest(ctx context.Context, payload []byte, signature string) error {
	ev, err := i.verifier.VerifyWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, provider.ErrSignatureInvalid) {
			i.log.Warn("rejected webhook with invalid signature")
			return provider.ErrSignatureInvalid
		}
		i.log.Error("undecodable webhook acknowledged", "error", err)
		return nil
	}
	log := i.log.With("type", ev.Type, "reference", ev.Reference)

	data := map[string]any{"source": "webhook"}
	maps.Copy(data, ev.Raw)

	switch ev.Kind {
	case provider.MobileMoneyChargeSuccess:
		err = i.chargeSucceeded(ctx, ev, data)
	case provider.MobileMoneyChargeFailed:
		if err = i.checkCharge(ctx, ev.Reference); err == nil {
			_, err = i.settlement.Failed(ctx, ev.Reference, reasonOr(ev.Reason, ev.Type), data)
		}
	case provider.MobileMoneyTransferSuccess:
		if i.withdrawals != nil {
			_, err = i.withdrawals.TransferSucceeded(ctx, ev.Reference, ev.TransferCode)
		}
	case provider.MobileMoneyTransferFailed:
		if i.withdrawals != nil {
			_, err = i.withdrawals.TransferFailed(ctx, ev.Reference, reasonOr(ev.Reason, ev.Type))
		}
	case provider.MobileMoneyEventUnknown:
		log.Debug("ignoring unhandled event type")
	}
	if err != nil {
		log.Error("webhook handling failed", "error", err)
	}
	return nil
}

// The reference is the payment id, so the payment is looked up directly.
func (i *MobileMoneyWebhookIngestor) checkCharge(ctx context.Context, reference string) error {
	p, err := i.payments.GetByID(ctx, reference)
	if err != nil {
		return err
	}
	if p.Method != model.MethodMobileMoney {
		return repository.ErrNotFound
	}
	return nil
}

func (i *MobileMoneyWebhookIngestor) chargeSucceeded(ctx context.Context, ev *provider.MobileMoneyEvent, data map[string]any) error {
	p, err := i.payments.GetByID(ctx, ev.Reference)
	if err != nil {
		return err
	}
	if p.Method != model.MethodMobileMoney {
		return repository.ErrNotFound
	}
	if p.Status == model.PaymentCompleted {
		i.log.Info("duplicate charge success", "payment_id", p.ID)
	}
	_, _, err = i.settlement.Charged(ctx, p, ev.Amount, i.verifier.SettlementCurrency(), data)
	return err
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}
