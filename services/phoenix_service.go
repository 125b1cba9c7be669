package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"phoenixd-dashboard-server/middleware"
	"phoenixd-dashboard-server/models"
)

// ErrorKind classifies gateway failures at the client boundary so callers
// branch on kind, never on message text.
type ErrorKind int

const (
	// ErrKindPayment is a payment-level failure reported by the node
	// (insufficient balance, no route, recipient rejected).
	ErrKindPayment ErrorKind = iota
	// ErrKindConnectivity is a transport, DNS, or address-resolution
	// failure; lightning-address payments retry through the LNURL
	// fallback on this kind.
	ErrKindConnectivity
	// ErrKindGateway is any other phoenixd-side error.
	ErrKindGateway
)

// GatewayError is a classified failure from the payment gateway
type GatewayError struct {
	Kind    ErrorKind
	Message string
}

func (e *GatewayError) Error() string {
	return e.Message
}

// IsConnectivityError reports whether err is a gateway failure of the
// connectivity class.
func IsConnectivityError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == ErrKindConnectivity
}

// PaymentGateway is the contract the executor needs from the node client
type PaymentGateway interface {
	PayLnAddress(ctx context.Context, address string, amountSat int64, message string) (*models.PayResult, error)
	PayOffer(ctx context.Context, offer string, amountSat int64, message string) (*models.PayResult, error)
	PayInvoice(ctx context.Context, invoice string, amountSat int64) (*models.PayResult, error)
}

const phoenixRequestTimeout = 60 * time.Second

// PhoenixService talks to the phoenixd HTTP API
type PhoenixService struct {
	baseURL  string
	password string
	client   *http.Client
}

func NewPhoenixService(baseURL, password string) *PhoenixService {
	return &PhoenixService{
		baseURL:  strings.TrimRight(baseURL, "/"),
		password: password,
		client:   middleware.NewOutboundHTTPClient(phoenixRequestTimeout),
	}
}

// payResponse is the phoenixd pay endpoint response. A populated reason
// means the payment failed even though the HTTP call succeeded.
type payResponse struct {
	RecipientAmountSat int64  `json:"recipientAmountSat"`
	RoutingFeeSat      int64  `json:"routingFeeSat"`
	PaymentID          string `json:"paymentId"`
	PaymentHash        string `json:"paymentHash"`
	Reason             string `json:"reason"`
}

// PayLnAddress pays a BIP-353/LUD-16 lightning address
func (p *PhoenixService) PayLnAddress(ctx context.Context, address string, amountSat int64, message string) (*models.PayResult, error) {
	form := url.Values{}
	form.Set("address", address)
	form.Set("amountSat", strconv.FormatInt(amountSat, 10))
	if message != "" {
		form.Set("message", message)
	}
	return p.pay(ctx, "/paylnaddress", form)
}

// PayOffer pays a reusable BOLT12 offer
func (p *PhoenixService) PayOffer(ctx context.Context, offer string, amountSat int64, message string) (*models.PayResult, error) {
	form := url.Values{}
	form.Set("offer", offer)
	form.Set("amountSat", strconv.FormatInt(amountSat, 10))
	if message != "" {
		form.Set("message", message)
	}
	return p.pay(ctx, "/payoffer", form)
}

// PayInvoice pays a BOLT11 invoice. amountSat is only sent for amountless
// invoices; pass 0 to use the amount encoded in the invoice.
func (p *PhoenixService) PayInvoice(ctx context.Context, invoice string, amountSat int64) (*models.PayResult, error) {
	form := url.Values{}
	form.Set("invoice", invoice)
	if amountSat > 0 {
		form.Set("amountSat", strconv.FormatInt(amountSat, 10))
	}
	return p.pay(ctx, "/payinvoice", form)
}

func (p *PhoenixService) pay(ctx context.Context, path string, form url.Values) (*models.PayResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &GatewayError{Kind: ErrKindGateway, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// phoenixd uses basic auth with an empty user and the http password
	req.SetBasicAuth("", p.password)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &GatewayError{Kind: ErrKindConnectivity, Message: fmt.Sprintf("reading phoenixd response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, &GatewayError{Kind: classifyGatewayMessage(msg), Message: fmt.Sprintf("phoenixd %d: %s", resp.StatusCode, msg)}
	}

	var pr payResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, &GatewayError{Kind: ErrKindGateway, Message: fmt.Sprintf("invalid phoenixd response: %v", err)}
	}

	// HTTP-level success can still carry a payment failure in the body
	if pr.Reason != "" {
		return nil, &GatewayError{Kind: ErrKindPayment, Message: pr.Reason}
	}
	if pr.PaymentHash == "" && pr.PaymentID == "" {
		return nil, &GatewayError{Kind: ErrKindGateway, Message: "phoenixd response missing payment identifier"}
	}

	return &models.PayResult{
		PaymentID:     pr.PaymentID,
		PaymentHash:   pr.PaymentHash,
		AmountSat:     pr.RecipientAmountSat,
		RoutingFeeSat: pr.RoutingFeeSat,
	}, nil
}

// classifyTransportError maps client-side request failures. Timeouts and
// DNS/dial failures are connectivity class; everything else is a plain
// gateway error.
func classifyTransportError(err error) *GatewayError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &GatewayError{Kind: ErrKindConnectivity, Message: fmt.Sprintf("phoenixd request timed out: %v", err)}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &GatewayError{Kind: ErrKindConnectivity, Message: fmt.Sprintf("dns failure: %v", err)}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &GatewayError{Kind: ErrKindConnectivity, Message: fmt.Sprintf("connection failure: %v", err)}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &GatewayError{Kind: ErrKindConnectivity, Message: fmt.Sprintf("phoenixd request timed out: %v", err)}
	}
	return &GatewayError{Kind: ErrKindGateway, Message: err.Error()}
}

// classifyGatewayMessage maps phoenixd error bodies. The node reports
// lightning-address resolution problems as text; those are the only
// messages that qualify for the LNURL fallback.
func classifyGatewayMessage(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	for _, marker := range []string{"dns", "resolve", "no such host", "connection refused", "timed out", "timeout", "unreachable"} {
		if strings.Contains(lower, marker) {
			return ErrKindConnectivity
		}
	}
	return ErrKindPayment
}
