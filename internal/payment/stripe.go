package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
)

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	// BackendURL overrides the API endpoint, for stripe-mock.
	BackendURL string
}

// StripeProcessor maps orders onto Stripe Checkout Sessions in payment mode.
// A session id is the order id.
type StripeProcessor struct {
	sessions checkoutsession.Client
	cfg      StripeConfig
	log      *zap.Logger
}

func NewStripeProcessor(cfg StripeConfig, log *zap.Logger) *StripeProcessor {
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = webhook.DefaultTolerance
	}
	backendCfg := &stripe.BackendConfig{}
	if cfg.BackendURL != "" {
		backendCfg.URL = stripe.String(cfg.BackendURL)
	}
	return &StripeProcessor{
		sessions: checkoutsession.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		cfg: cfg,
		log: log,
	}
}

func (p *StripeProcessor) Name() string { return "stripe" }

func (p *StripeProcessor) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.Amount < 0 || req.Currency == "" {
		return nil, ErrInvalidOrderInput
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.ReferenceID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(req.Name),
					Description: optionalString(req.Description),
				},
			},
		}},
	}
	params.Context = ctx
	params.AddMetadata("booking_id", req.ReferenceID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	sess, err := p.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return &Order{OrderID: sess.ID, ApprovalURL: sess.URL}, nil
}

// CaptureOrder reads the session back: Checkout collects the payment itself,
// so capturing only reports the outcome.
func (p *StripeProcessor) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := p.sessions.Get(orderID, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stripe get checkout session: %w", err)
	}
	return sessionResult(sess), nil
}

func sessionResult(sess *stripe.CheckoutSession) *CaptureResult {
	res := &CaptureResult{Status: CapturePending}
	if sess.PaymentIntent != nil {
		res.TransactionID = sess.PaymentIntent.ID
	}
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		res.Status = CaptureCompleted
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		res.Status = CaptureDeclined
	}
	return res
}

func (p *StripeProcessor) ParseWebhook(_ context.Context, header http.Header, body []byte) (*WebhookEvent, error) {
	if p.cfg.WebhookSecret == "" {
		return nil, ErrWebhookDisabled
	}
	sig := header.Get("Stripe-Signature")
	if sig == "" {
		return nil, ErrInvalidWebhook
	}

	evt, err := webhook.ConstructEventWithOptions(body, sig, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                p.cfg.WebhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		p.log.Warn("stripe webhook rejected", zap.Error(err))
		return nil, ErrInvalidWebhook
	}

	out := &WebhookEvent{ID: evt.ID, Type: string(evt.Type)}
	switch evt.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed", "checkout.session.expired":
	default:
		return out, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
		return nil, ErrInvalidWebhook
	}
	out.OrderID = sess.ID
	out.BookingID = sess.Metadata["booking_id"]
	if out.BookingID == "" {
		out.BookingID = sess.ClientReferenceID
	}
	if sess.PaymentIntent != nil {
		out.TransactionID = sess.PaymentIntent.ID
	}

	switch evt.Type {
	case "checkout.session.completed":
		// Delayed methods complete the session before the money arrives.
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			out.Outcome = CaptureCompleted
		}
	case "checkout.session.async_payment_succeeded":
		out.Outcome = CaptureCompleted
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		out.Outcome = CaptureDeclined
	}
	return out, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return stripe.String(s)
}
