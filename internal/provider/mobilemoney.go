package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/money"
)

const defaultMobileMoneyBaseURL = "https://api.paystack.co"

// MobileMoney adapts the mobile money processor's REST API. Every charge
// settles in one fixed currency regardless of the event's display currency,
// and the local payment id is reused as the processor's transaction reference.
type MobileMoney struct {
	secretKey   string
	baseURL     string
	currency    string
	callbackURL string
	client      *http.Client
}

// NewMobileMoney builds the adapter. settlementCurrency is the processor
// account currency every amount is converted into.
func NewMobileMoney(secretKey, baseURL, settlementCurrency, callbackURL string) *MobileMoney {
	if baseURL == "" {
		baseURL = defaultMobileMoneyBaseURL
	}
	return &MobileMoney{
		secretKey:   secretKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		currency:    strings.ToUpper(settlementCurrency),
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: 60 * time.Second},
	}
}

func (m *MobileMoney) Method() model.PaymentMethod { return model.MethodMobileMoney }

// SettlementCurrency is the currency all charges and transfers use.
func (m *MobileMoney) SettlementCurrency() string { return m.currency }

type mmEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type mmInitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type mmTransaction struct {
	ID              int64  `json:"id"`
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	GatewayResponse string `json:"gateway_response"`
}

type mmTransferData struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
}

// CreateIntent initializes a transaction and returns the hosted authorization URL.
func (m *MobileMoney) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	body := map[string]any{
		"email":        req.Email,
		"amount":       money.ToMinor(req.Amount, m.currency),
		"currency":     m.currency,
		"reference":    req.PaymentID,
		"callback_url": m.callbackURL,
		"metadata": map[string]string{
			"payment_id":       req.PaymentID,
			"voter_id":         req.VoterID,
			"event_id":         req.EventID,
			"contestant_id":    req.ContestantID,
			"display_currency": req.Currency,
		},
	}
	var data mmInitializeData
	if err := m.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return nil, fmt.Errorf("%w: initialize transaction: %w", ErrProvider, err)
	}
	ref := data.Reference
	if ref == "" {
		ref = req.PaymentID
	}
	return &Intent{
		ProviderRef:      ref,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Raw: map[string]any{
			"reference":         ref,
			"access_code":       data.AccessCode,
			"settlement_amount": money.ToMinor(req.Amount, m.currency),
			"currency":          m.currency,
		},
	}, nil
}

// RetrieveStatus verifies a transaction by reference.
// "abandoned" means the voter has not finished yet, so it stays pending.
func (m *MobileMoney) RetrieveStatus(ctx context.Context, providerRef string) (StatusResult, error) {
	var tx mmTransaction
	if err := m.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(providerRef), nil, &tx); err != nil {
		return StatusResult{}, fmt.Errorf("%w: verify transaction: %w", ErrProvider, err)
	}
	res := StatusResult{
		Status:   StatusPending,
		Reason:   tx.GatewayResponse,
		Amount:   tx.Amount,
		Currency: m.currency,
		Raw: map[string]any{
			"reference": tx.Reference,
			"status":    tx.Status,
			"amount":    tx.Amount,
			"currency":  tx.Currency,
		},
	}
	switch tx.Status {
	case "success":
		res.Status = StatusSucceeded
	case "failed", "reversed":
		res.Status = StatusFailed
	}
	return res, nil
}

// Cancel is a no-op: the processor has no cancel call for initialized
// transactions, they simply expire unpaid.
func (m *MobileMoney) Cancel(context.Context, string) error {
	return nil
}

// Transfer pays an organizer out. The withdrawal id is the transfer reference.
func (m *MobileMoney) Transfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	body := map[string]any{
		"source":    "balance",
		"amount":    money.ToMinor(req.Amount, m.currency),
		"currency":  m.currency,
		"recipient": req.RecipientCode,
		"reference": req.Reference,
		"reason":    req.Reason,
	}
	var data mmTransferData
	if err := m.do(ctx, http.MethodPost, "/transfer", body, &data); err != nil {
		return nil, fmt.Errorf("%w: initiate transfer: %w", ErrProvider, err)
	}
	return &Transfer{TransferCode: data.TransferCode, Status: data.Status}, nil
}

func (m *MobileMoney) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.secretKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var env mmEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || !env.Status {
		return fmt.Errorf("http %d: %s", resp.StatusCode, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// MobileMoneyEventKind is the closed set of mobile money webhook events.
type MobileMoneyEventKind int

const (
	MobileMoneyEventUnknown MobileMoneyEventKind = iota
	MobileMoneyChargeSuccess
	MobileMoneyChargeFailed
	MobileMoneyTransferSuccess
	MobileMoneyTransferFailed
)

var mobileMoneyEventKinds = map[string]MobileMoneyEventKind{
	"charge.success":    MobileMoneyChargeSuccess,
	"charge.failed":     MobileMoneyChargeFailed,
	"transfer.success":  MobileMoneyTransferSuccess,
	"transfer.failed":   MobileMoneyTransferFailed,
	"transfer.reversed": MobileMoneyTransferFailed,
}

// MobileMoneyEvent is a verified mobile money webhook.
type MobileMoneyEvent struct {
	Type         string
	Kind         MobileMoneyEventKind
	Reference    string
	TransferCode string
	Status       string
	Reason       string
	Amount       int64
	Currency     string
	Raw          map[string]any
}

// VerifyWebhook authenticates the body with HMAC-SHA512 keyed by the secret
// key and compares it to the hex digest header in constant time.
func (m *MobileMoney) VerifyWebhook(payload []byte, signature string) (*MobileMoneyEvent, error) {
	if !m.validSignature(payload, signature) {
		return nil, ErrSignatureInvalid
	}

	var env struct {
		Event string `json:"event"`
		Data  struct {
			Reference       string `json:"reference"`
			Status          string `json:"status"`
			TransferCode    string `json:"transfer_code"`
			GatewayResponse string `json:"gateway_response"`
			Reason          string `json:"reason"`
			Amount          int64  `json:"amount"`
			Currency        string `json:"currency"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode mobile money event: %w", err)
	}
	reason := env.Data.GatewayResponse
	if reason == "" {
		reason = env.Data.Reason
	}
	return &MobileMoneyEvent{
		Type:         env.Event,
		Kind:         mobileMoneyEventKinds[env.Event],
		Reference:    env.Data.Reference,
		TransferCode: env.Data.TransferCode,
		Status:       env.Data.Status,
		Reason:       reason,
		Amount:       env.Data.Amount,
		Currency:     env.Data.Currency,
		Raw: map[string]any{
			"event":     env.Event,
			"reference": env.Data.Reference,
			"status":    env.Data.Status,
			"amount":    env.Data.Amount,
			"currency":  env.Data.Currency,
		},
	}, nil
}

func (m *MobileMoney) validSignature(payload []byte, signature string) bool {
	if m.secretKey == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(m.secretKey))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}
