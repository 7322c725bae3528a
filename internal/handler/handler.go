// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/auth"
	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

// The service methods each handler group calls.

type payments interface {
	CreateIntent(ctx context.Context, voterID string, method model.PaymentMethod, req model.CreatePaymentRequest) (*model.PaymentIntent, error)
	Cancel(ctx context.Context, paymentID, voterID string) (*model.Payment, error)
}

type verifications interface {
	Verify(ctx context.Context, paymentID, voterID string) (*model.Verification, error)
}

type eligibility interface {
	Check(ctx context.Context, contestantID string, amount decimal.Decimal, now time.Time) (*service.Eligibility, error)
}

type votes interface {
	CommitForVoter(ctx context.Context, paymentID, voterID string) (*model.Vote, error)
}

type ingestor interface {
	Ingest(ctx context.Context, payload []byte, signature string) error
}

type eventManager interface {
	CreateEvent(ctx context.Context, organizerID string, req model.CreateEventRequest) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	UpdateEvent(ctx context.Context, actor auth.Identity, id string, req model.UpdateEventRequest) (*model.Event, error)
	AddCategory(ctx context.Context, actor auth.Identity, eventID string, req model.CreateCategoryRequest) (*model.Category, error)
	AddContestant(ctx context.Context, actor auth.Identity, categoryID string, req model.CreateContestantRequest) (*model.Contestant, error)
	DeleteContestant(ctx context.Context, actor auth.Identity, id string) error
	Activate(ctx context.Context, actor auth.Identity, id string) (*model.Event, error)
	End(ctx context.Context, actor auth.Identity, id string) (*model.Event, error)
}

type withdrawals interface {
	Balance(ctx context.Context, organizerID string) (model.Balance, error)
	List(ctx context.Context, organizerID string) ([]model.Withdrawal, error)
	Request(ctx context.Context, organizerID string, req model.WithdrawalRequest) (*model.Withdrawal, error)
	Process(ctx context.Context, id string) (*model.Withdrawal, error)
}

type settings interface {
	Get(ctx context.Context) (model.PlatformSettings, error)
	Update(ctx context.Context, req model.UpdateSettingsRequest) (model.PlatformSettings, error)
}

type tokenVerifier interface {
	Verify(raw string) (auth.Identity, error)
}

// Deps is everything the HTTP surface needs.
type Deps struct {
	Tokens              tokenVerifier
	Payments            payments
	Verifications       verifications
	Eligibility         eligibility
	Votes               votes
	Events              eventManager
	Withdrawals         withdrawals
	Settings            settings
	CardIngestor        ingestor
	MobileMoneyIngestor ingestor

	// AllowedOrigin is the frontend URL whose origin may call the API
	// with credentials.
	AllowedOrigin string
}

// Handler holds all HTTP handlers for the voting API.
type Handler struct {
	Deps
	now func() time.Time
	log *slog.Logger
}

// New constructs a Handler.
func New(deps Deps) *Handler {
	return &Handler{
		Deps: deps,
		now:  time.Now,
		log:  slog.Default().With("component", "http"),
	}
}

// Routes builds the router with the global middleware stack.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger)
	r.Use(CORS(h.AllowedOrigin))

	r.Get("/health", HealthCheck)

	// Providers sign their requests; they carry no bearer token.
	r.Post("/webhooks/card", h.CardWebhook)
	r.Post("/webhooks/mobile-money", h.MobileMoneyWebhook)

	r.Get("/payments/settings", h.PublicSettings)
	r.Get("/events", h.ListEvents)
	r.Get("/events/{id}", h.GetEvent)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(h.Tokens))

		r.Post("/payments/card/create", h.CreateCardPayment)
		r.Post("/payments/mobile-money/initialize", h.InitializeMobileMoney)
		r.Get("/payments/verify/{id}", h.VerifyPayment)
		r.Post("/payments/cancel/{id}", h.CancelPayment)
		r.Post("/payments/eligibility", h.CheckEligibility)
		r.Post("/votes", h.CreateVote)

		r.Group(func(r chi.Router) {
			r.Use(RequireOrganizer)
			r.Post("/events", h.CreateEvent)
			r.Patch("/events/{id}", h.UpdateEvent)
			r.Post("/events/{id}/categories", h.AddCategory)
			r.Post("/events/{id}/activate", h.ActivateEvent)
			r.Post("/events/{id}/end", h.EndEvent)
			r.Post("/categories/{id}/contestants", h.AddContestant)
			r.Delete("/contestants/{id}", h.DeleteContestant)

			r.Get("/organizer/balance", h.Balance)
			r.Get("/organizer/withdrawals", h.ListWithdrawals)
			r.Post("/organizer/withdrawals", h.RequestWithdrawal)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(auth.RoleAdmin))
			r.Post("/withdrawals/{id}/process", h.ProcessWithdrawal)
			r.Put("/settings", h.UpdateSettings)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
