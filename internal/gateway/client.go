// Package gateway talks to the external payment gateway over gRPC. Messages
// are google.protobuf.Struct values so no generated stubs are needed.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	methodCreateSession = "/payments.v1.PaymentGateway/CreateSession"
	methodVerifySession = "/payments.v1.PaymentGateway/VerifySession"
	methodRefund        = "/payments.v1.PaymentGateway/Refund"
)

type Client struct {
	conn       grpc.ClientConnInterface
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

type Option func(*Client)

// WithBackoff sets the base delay between attempts; attempt n waits n*d.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

func NewClient(address string, timeout time.Duration, maxRetries int, log zerolog.Logger, opts ...Option) (*Client, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial payment gateway %s: %w", address, err)
	}
	return NewClientWithConn(conn, timeout, maxRetries, log, opts...), conn, nil
}

func NewClientWithConn(conn grpc.ClientConnInterface, timeout time.Duration, maxRetries int, log zerolog.Logger, opts ...Option) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	c := &Client{
		conn:       conn,
		timeout:    timeout,
		maxRetries: maxRetries,
		backoff:    200 * time.Millisecond,
		log:        log.With().Str("component", "payment_gateway").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession opens a checkout for a. The session is keyed by attemptID so
// a retried call reuses it while a new attempt gets a fresh session.
func (c *Client) CreateSession(ctx context.Context, a *domain.Appointment, attemptID uuid.UUID) (domain.GatewaySession, error) {
	resp, err := c.call(ctx, "createSession", methodCreateSession, map[string]any{
		"appointment_id":  a.ID.String(),
		"patient_id":      a.PatientID.String(),
		"amount":          a.Amount.StringFixed(2),
		"currency":        a.Currency,
		"idempotency_key": "session:" + attemptID.String(),
	})
	if err != nil {
		return domain.GatewaySession{}, err
	}

	session := domain.GatewaySession{
		Ref:         stringField(resp, "session_ref"),
		CheckoutURL: stringField(resp, "checkout_url"),
	}
	if session.Ref == "" {
		return domain.GatewaySession{}, &domain.GatewayError{Op: "createSession", Err: fmt.Errorf("empty session_ref")}
	}
	return session, nil
}

func (c *Client) VerifySession(ctx context.Context, ref string) (domain.GatewayVerification, error) {
	resp, err := c.call(ctx, "verifySession", methodVerifySession, map[string]any{"session_ref": ref})
	if err != nil {
		return domain.GatewayVerification{}, err
	}
	return domain.GatewayVerification{
		Paid:          resp.GetFields()["paid"].GetBoolValue(),
		TransactionID: stringField(resp, "transaction_id"),
	}, nil
}

func (c *Client) Refund(ctx context.Context, transactionID string, amount decimal.Decimal, currency string) error {
	_, err := c.call(ctx, "refund", methodRefund, map[string]any{
		"transaction_id":  transactionID,
		"amount":          amount.StringFixed(2),
		"currency":        currency,
		"idempotency_key": "refund:" + transactionID,
	})
	return err
}

// call invokes method with a bounded timeout per attempt and retries
// transient failures with linear backoff.
func (c *Client) call(ctx context.Context, op, method string, fields map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, &domain.GatewayError{Op: op, Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp := &structpb.Struct{}
		lastErr = c.invoke(ctx, method, req, resp)
		if lastErr == nil {
			return resp, nil
		}
		if !retryable(lastErr) || attempt == c.maxRetries {
			break
		}

		c.log.Warn().Err(lastErr).Str("op", op).Int("attempt", attempt).Msg("gateway call failed, retrying")
		select {
		case <-ctx.Done():
			return nil, &domain.GatewayError{Op: op, Err: ctx.Err()}
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}

	return nil, &domain.GatewayError{Op: op, Err: lastErr}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp *structpb.Struct) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.conn.Invoke(ctx, method, req, resp)
}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}
