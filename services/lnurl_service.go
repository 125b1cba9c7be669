package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"phoenixd-dashboard-server/middleware"
)

// AddressResolver resolves a lightning address to a payable invoice. Used
// as the fallback path when phoenixd cannot resolve the address itself.
type AddressResolver interface {
	ResolveInvoice(ctx context.Context, address string, amountSat int64, message string) (string, error)
}

const lnurlRequestTimeout = 30 * time.Second

// LNURLService implements the LNURL-pay (LUD-16) resolution flow
type LNURLService struct {
	client *http.Client
}

func NewLNURLService() *LNURLService {
	return &LNURLService{client: middleware.NewOutboundHTTPClient(lnurlRequestTimeout)}
}

// lnurlPayParams is the metadata served at the well-known pay endpoint.
// Amounts are millisatoshis.
type lnurlPayParams struct {
	Tag            string `json:"tag"`
	Callback       string `json:"callback"`
	MinSendable    int64  `json:"minSendable"`
	MaxSendable    int64  `json:"maxSendable"`
	Metadata       string `json:"metadata"`
	CommentAllowed int64  `json:"commentAllowed"`
}

// lnurlInvoiceResponse is the callback response. Status ERROR with a
// reason is an explicit refusal.
type lnurlInvoiceResponse struct {
	PR     string `json:"pr"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// ResolveInvoice performs the full LUD-16 flow: well-known metadata fetch,
// bounds validation, and callback invoice request. Any failure surfaces as
// an ordinary error; there is no retry policy here.
func (s *LNURLService) ResolveInvoice(ctx context.Context, address string, amountSat int64, message string) (string, error) {
	local, domain, err := SplitLightningAddress(address)
	if err != nil {
		return "", err
	}
	params, err := s.fetchPayParams(ctx, lnurlpURL(domain, local))
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", address, err)
	}
	invoice, err := s.requestInvoice(ctx, params, amountSat, message)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", address, err)
	}
	return invoice, nil
}

// SplitLightningAddress splits user@domain, rejecting anything that does
// not have exactly one non-empty part on each side.
func SplitLightningAddress(address string) (local, domain string, err error) {
	local, domain, ok := strings.Cut(address, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "", "", fmt.Errorf("invalid lightning address: %q", address)
	}
	return local, domain, nil
}

// lnurlpURL builds the LUD-16 well-known endpoint for an address. LUD-16
// uses plain http for onion hosts.
func lnurlpURL(domain, local string) string {
	scheme := "https"
	if strings.HasSuffix(domain, ".onion") {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/.well-known/lnurlp/%s", scheme, domain, url.PathEscape(local))
}

func (s *LNURLService) fetchPayParams(ctx context.Context, endpoint string) (*lnurlPayParams, error) {
	body, err := s.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var params lnurlPayParams
	if err := json.Unmarshal(body, &params); err != nil {
		return nil, fmt.Errorf("invalid lnurl-pay metadata: %w", err)
	}
	if params.Tag != "payRequest" {
		return nil, fmt.Errorf("lnurl endpoint is not a pay request (tag %q)", params.Tag)
	}
	if params.Callback == "" {
		return nil, fmt.Errorf("lnurl-pay metadata missing callback")
	}
	return &params, nil
}

func (s *LNURLService) requestInvoice(ctx context.Context, params *lnurlPayParams, amountSat int64, message string) (string, error) {
	amountMsat := amountSat * 1000
	if amountMsat < params.MinSendable || amountMsat > params.MaxSendable {
		return "", fmt.Errorf("amount %d sat outside sendable bounds [%d, %d] msat",
			amountSat, params.MinSendable, params.MaxSendable)
	}

	callback, err := url.Parse(params.Callback)
	if err != nil {
		return "", fmt.Errorf("invalid lnurl callback url: %w", err)
	}
	query := callback.Query()
	query.Set("amount", strconv.FormatInt(amountMsat, 10))
	if message != "" && params.CommentAllowed > 0 {
		comment := message
		if int64(len(comment)) > params.CommentAllowed {
			comment = comment[:params.CommentAllowed]
		}
		query.Set("comment", comment)
	}
	callback.RawQuery = query.Encode()

	body, err := s.get(ctx, callback.String())
	if err != nil {
		return "", err
	}
	var resp lnurlInvoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid lnurl callback response: %w", err)
	}
	if strings.EqualFold(resp.Status, "ERROR") {
		reason := resp.Reason
		if reason == "" {
			reason = "callback refused the request"
		}
		return "", fmt.Errorf("lnurl callback error: %s", reason)
	}
	if resp.PR == "" {
		return "", fmt.Errorf("lnurl callback returned no invoice")
	}
	return resp.PR, nil
}

func (s *LNURLService) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lnurl endpoint returned %d", resp.StatusCode)
	}
	return body, nil
}
