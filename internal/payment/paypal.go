package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	PayPalSandboxURL = "https://api-m.sandbox.paypal.com"
	brandName        = "BookEase"
)

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	// WebhookID enables webhook signature verification. Without it the
	// webhook endpoint refuses every notification.
	WebhookID string
	Timeout   time.Duration
}

// PayPalProcessor talks to the PayPal Orders v2 API.
type PayPalProcessor struct {
	cfg  PayPalConfig
	http *http.Client
	log  *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewPayPalProcessor(cfg PayPalConfig, log *zap.Logger) *PayPalProcessor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = PayPalSandboxURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &PayPalProcessor{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

func (p *PayPalProcessor) Name() string { return "paypal" }

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalItem struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Quantity    string      `json:"quantity"`
	UnitAmount  paypalMoney `json:"unit_amount"`
}

type paypalAmount struct {
	paypalMoney
	Breakdown struct {
		ItemTotal paypalMoney `json:"item_total"`
	} `json:"breakdown"`
}

type paypalPurchaseUnit struct {
	Amount      paypalAmount `json:"amount"`
	Description string       `json:"description,omitempty"`
	CustomID    string       `json:"custom_id,omitempty"`
	Items       []paypalItem `json:"items"`
}

type paypalCreateOrder struct {
	Intent             string               `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit `json:"purchase_units"`
	ApplicationContext struct {
		BrandName          string `json:"brand_name"`
		ShippingPreference string `json:"shipping_preference"`
		ReturnURL          string `json:"return_url,omitempty"`
		CancelURL          string `json:"cancel_url,omitempty"`
	} `json:"application_context"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrder struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Links         []paypalLink `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type paypalError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

func (e *paypalError) hasIssue(issue string) bool {
	for _, d := range e.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}

// formatAmount renders minor units as a two-decimal string.
func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

func (p *PayPalProcessor) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.Amount < 0 || req.Currency == "" {
		return nil, ErrInvalidOrderInput
	}
	money := paypalMoney{CurrencyCode: strings.ToUpper(req.Currency), Value: formatAmount(req.Amount)}

	unit := paypalPurchaseUnit{
		Description: req.Description,
		CustomID:    req.ReferenceID,
		Items: []paypalItem{{
			Name:        req.Name,
			Description: req.Description,
			Quantity:    "1",
			UnitAmount:  money,
		}},
	}
	unit.Amount.paypalMoney = money
	unit.Amount.Breakdown.ItemTotal = money

	body := paypalCreateOrder{Intent: "CAPTURE", PurchaseUnits: []paypalPurchaseUnit{unit}}
	body.ApplicationContext.BrandName = brandName
	body.ApplicationContext.ShippingPreference = "NO_SHIPPING"
	body.ApplicationContext.ReturnURL = req.SuccessURL
	body.ApplicationContext.CancelURL = req.CancelURL

	var out paypalOrder
	status, perr, err := p.call(ctx, http.MethodPost, "/v2/checkout/orders", body, req.IdempotencyKey, &out)
	if err != nil {
		return nil, err
	}
	if perr != nil {
		return nil, fmt.Errorf("paypal create order: %d %s: %s", status, perr.Name, perr.Message)
	}

	order := &Order{OrderID: out.ID}
	for _, l := range out.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			order.ApprovalURL = l.Href
			break
		}
	}
	return order, nil
}

func (p *PayPalProcessor) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	var out paypalOrder
	path := "/v2/checkout/orders/" + orderID + "/capture"
	status, perr, err := p.call(ctx, http.MethodPost, path, struct{}{}, "capture-"+orderID, &out)
	if err != nil {
		return nil, err
	}
	if perr != nil {
		switch {
		case perr.hasIssue("INSTRUMENT_DECLINED"), perr.hasIssue("PAYER_ACTION_REQUIRED"), perr.hasIssue("TRANSACTION_REFUSED"):
			return &CaptureResult{Status: CaptureDeclined}, nil
		case perr.hasIssue("ORDER_ALREADY_CAPTURED"):
			return p.orderResult(ctx, orderID)
		case status == http.StatusNotFound:
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("paypal capture: %d %s: %s", status, perr.Name, perr.Message)
	}
	return captureResult(&out), nil
}

func (p *PayPalProcessor) orderResult(ctx context.Context, orderID string) (*CaptureResult, error) {
	var out paypalOrder
	status, perr, err := p.call(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, nil, "", &out)
	if err != nil {
		return nil, err
	}
	if perr != nil {
		return nil, fmt.Errorf("paypal get order: %d %s: %s", status, perr.Name, perr.Message)
	}
	return captureResult(&out), nil
}

// captureResult reads the first capture; its status wins over the order's.
func captureResult(o *paypalOrder) *CaptureResult {
	for _, pu := range o.PurchaseUnits {
		for _, c := range pu.Payments.Captures {
			res := &CaptureResult{TransactionID: c.ID}
			switch c.Status {
			case "COMPLETED":
				res.Status = CaptureCompleted
			case "DECLINED", "FAILED":
				res.Status = CaptureDeclined
			default:
				res.Status = CapturePending
			}
			return res
		}
	}
	if o.Status == "COMPLETED" {
		return &CaptureResult{Status: CaptureCompleted}
	}
	return &CaptureResult{Status: CapturePending}
}

func (p *PayPalProcessor) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		AccessToken      string `json:"access_token"`
		ExpiresIn        int    `json:"expires_in"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("paypal token: decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.AccessToken == "" {
		return "", fmt.Errorf("paypal token: %d %s", resp.StatusCode, out.ErrorDescription)
	}

	p.token = out.AccessToken
	// Refresh a minute early.
	p.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - time.Minute)
	return p.token, nil
}

// call performs an authenticated JSON request. A non-2xx answer with a
// PayPal error body is returned as perr; err is reserved for transport and
// decoding failures.
func (p *PayPalProcessor) call(ctx context.Context, method, path string, in any, requestID string, out any) (int, *paypalError, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return 0, nil, err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("paypal %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("paypal %s %s: read: %w", method, path, err)
	}
	if resp.StatusCode >= 500 {
		return resp.StatusCode, nil, fmt.Errorf("paypal %s %s: status %d", method, path, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		var perr paypalError
		_ = json.Unmarshal(raw, &perr)
		p.log.Warn("paypal request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("name", perr.Name),
		)
		return resp.StatusCode, &perr, nil
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("paypal %s %s: decode: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil, nil
}

type paypalWebhook struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		CustomID          string `json:"custom_id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// ParseWebhook verifies the notification with PayPal, then decodes capture
// events. custom_id carries the booking id.
func (p *PayPalProcessor) ParseWebhook(ctx context.Context, header http.Header, body []byte) (*WebhookEvent, error) {
	if p.cfg.WebhookID == "" {
		return nil, ErrWebhookDisabled
	}

	var evt paypalWebhook
	if err := json.Unmarshal(body, &evt); err != nil || evt.ID == "" {
		return nil, ErrInvalidWebhook
	}
	if err := p.verifyWebhook(ctx, header, body); err != nil {
		return nil, err
	}

	out := &WebhookEvent{
		ID:            evt.ID,
		Type:          evt.EventType,
		OrderID:       evt.Resource.SupplementaryData.RelatedIDs.OrderID,
		BookingID:     evt.Resource.CustomID,
		TransactionID: evt.Resource.ID,
	}
	switch evt.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		out.Outcome = CaptureCompleted
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		out.Outcome = CaptureDeclined
	}
	return out, nil
}

func (p *PayPalProcessor) verifyWebhook(ctx context.Context, header http.Header, body []byte) error {
	req := struct {
		AuthAlgo         string          `json:"auth_algo"`
		CertURL          string          `json:"cert_url"`
		TransmissionID   string          `json:"transmission_id"`
		TransmissionSig  string          `json:"transmission_sig"`
		TransmissionTime string          `json:"transmission_time"`
		WebhookID        string          `json:"webhook_id"`
		WebhookEvent     json.RawMessage `json:"webhook_event"`
	}{
		AuthAlgo:         header.Get("PAYPAL-AUTH-ALGO"),
		CertURL:          header.Get("PAYPAL-CERT-URL"),
		TransmissionID:   header.Get("PAYPAL-TRANSMISSION-ID"),
		TransmissionSig:  header.Get("PAYPAL-TRANSMISSION-SIG"),
		TransmissionTime: header.Get("PAYPAL-TRANSMISSION-TIME"),
		WebhookID:        p.cfg.WebhookID,
		WebhookEvent:     body,
	}
	if req.TransmissionID == "" || req.TransmissionSig == "" {
		return ErrInvalidWebhook
	}

	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	_, perr, err := p.call(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", req, "", &out)
	if err != nil {
		return err
	}
	if perr != nil || out.VerificationStatus != "SUCCESS" {
		return ErrInvalidWebhook
	}
	return nil
}
