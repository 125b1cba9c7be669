package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPhoenixService(t *testing.T, handler http.HandlerFunc) *PhoenixService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &PhoenixService{
		baseURL:  srv.URL,
		password: "hunter2",
		client:   srv.Client(),
	}
}

func TestPayLnAddressSuccess(t *testing.T) {
	svc := newTestPhoenixService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/paylnaddress", r.URL.Path)
		_, password, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "hunter2", password)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "alice@example.com", r.PostFormValue("address"))
		assert.Equal(t, "1000", r.PostFormValue("amountSat"))
		assert.Equal(t, "weekly allowance", r.PostFormValue("message"))

		w.Write([]byte(`{"recipientAmountSat":1000,"routingFeeSat":2,"paymentId":"pay-1","paymentHash":"abc123"}`))
	})

	result, err := svc.PayLnAddress(context.Background(), "alice@example.com", 1000, "weekly allowance")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", result.PaymentID)
	assert.Equal(t, "abc123", result.PaymentHash)
	assert.Equal(t, int64(1000), result.AmountSat)
	assert.Equal(t, int64(2), result.RoutingFeeSat)
}

func TestPayReasonInBodyIsFailure(t *testing.T) {
	// HTTP 200 with a populated reason is a payment failure, not a success
	svc := newTestPhoenixService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reason":"not enough funds in wallet"}`))
	})

	result, err := svc.PayOffer(context.Background(), "lno1...", 1000, "")
	require.Error(t, err)
	assert.Nil(t, result)

	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ErrKindPayment, ge.Kind)
	assert.False(t, IsConnectivityError(err))
}

func TestPayResolutionErrorIsConnectivity(t *testing.T) {
	svc := newTestPhoenixService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("could not resolve lightning address: no such host"))
	})

	_, err := svc.PayLnAddress(context.Background(), "alice@down.example", 1000, "")
	require.Error(t, err)
	assert.True(t, IsConnectivityError(err))
}

func TestPayNonConnectivityHTTPErrorIsPaymentKind(t *testing.T) {
	svc := newTestPhoenixService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid invoice"))
	})

	_, err := svc.PayInvoice(context.Background(), "lnbc1...", 0)
	require.Error(t, err)
	assert.False(t, IsConnectivityError(err))
}

func TestPayInvoiceOmitsAmountWhenZero(t *testing.T) {
	svc := newTestPhoenixService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Empty(t, r.PostFormValue("amountSat"))
		w.Write([]byte(`{"paymentId":"pay-2","paymentHash":"def456"}`))
	})

	result, err := svc.PayInvoice(context.Background(), "lnbc1...", 0)
	require.NoError(t, err)
	assert.Equal(t, "pay-2", result.PaymentID)
}

func TestClassifyTransportError(t *testing.T) {
	dnsErr := &net.DNSError{Err: "no such host", Name: "down.example", IsNotFound: true}
	ge := classifyTransportError(dnsErr)
	assert.Equal(t, ErrKindConnectivity, ge.Kind)

	ge = classifyTransportError(&net.OpError{Op: "dial", Err: errors.New("connection refused")})
	assert.Equal(t, ErrKindConnectivity, ge.Kind)

	ge = classifyTransportError(context.DeadlineExceeded)
	assert.Equal(t, ErrKindConnectivity, ge.Kind)

	ge = classifyTransportError(errors.New("malformed request"))
	assert.Equal(t, ErrKindGateway, ge.Kind)
}

func TestClassifyGatewayMessage(t *testing.T) {
	connectivity := []string{
		"DNS lookup failed",
		"could not resolve address",
		"dial tcp: no such host",
		"request timed out",
		"host unreachable",
	}
	for _, msg := range connectivity {
		assert.Equal(t, ErrKindConnectivity, classifyGatewayMessage(msg), msg)
	}

	payment := []string{
		"not enough funds",
		"invalid invoice",
		"recipient rejected payment",
	}
	for _, msg := range payment {
		assert.Equal(t, ErrKindPayment, classifyGatewayMessage(msg), msg)
	}
}
