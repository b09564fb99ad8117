package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"train-ticketing/internal/errs"
	"train-ticketing/internal/logger"
	"train-ticketing/internal/models"
)

type PaymentClient struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *logger.Logger
}

func NewPaymentClient(baseURL string, timeout time.Duration, log *logger.Logger) *PaymentClient {
	return &PaymentClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  log,
	}
}

// GetPaymentByTicket looks up the payment recorded for a ticket. A missing
// payment is ErrNotFound; the caller treats that as "nothing to refund".
func (c *PaymentClient) GetPaymentByTicket(ticketID string) (*models.Payment, error) {
	resp, err := c.HTTP.Get(fmt.Sprintf("%s/api/payments/ticket/%s", c.BaseURL, ticketID))
	if err != nil {
		return nil, fmt.Errorf("payment lookup for ticket %s: %v: %w", ticketID, err, errs.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("payment for ticket %s: %w", ticketID, errs.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment lookup for ticket %s returned %d: %w", ticketID, resp.StatusCode, errs.ErrUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	var p models.Payment
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Refund asks the payment service to refund a ticket's payment. Errors are
// returned for logging but cancellation proceeds either way.
func (c *PaymentClient) Refund(ticketID string) error {
	resp, err := c.HTTP.Post(fmt.Sprintf("%s/api/payments/ticket/%s/refund", c.BaseURL, ticketID), "application/json", nil)
	if err != nil {
		return fmt.Errorf("refund for ticket %s: %v: %w", ticketID, err, errs.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refund for ticket %s returned %d: %w", ticketID, resp.StatusCode, errs.ErrUnavailable)
	}
	return nil
}
