// Package client holds the HTTP clients for the booking service's
// collaborators. Each call site gets the degradation the saga needs:
// availability checks fail to zero availability, releases fail silently
// after logging, and reserves surface a classified error the orchestrator
// can act on.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"train-ticketing/internal/errs"
	"train-ticketing/internal/logger"
	"train-ticketing/internal/models"
)

type InventoryClient struct {
	BaseURL    string
	HTTP       *http.Client
	Logger     *logger.Logger
	Retries    int
	RetryDelay time.Duration
}

func NewInventoryClient(baseURL string, timeout time.Duration, retries int, retryDelay time.Duration, log *logger.Logger) *InventoryClient {
	return &InventoryClient{
		BaseURL:    baseURL,
		HTTP:       &http.Client{Timeout: timeout},
		Logger:     log,
		Retries:    retries,
		RetryDelay: retryDelay,
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// CheckAvailability fetches the availability snapshot, retrying transport
// failures. When the inventory service cannot be reached at all it returns
// a zero-availability snapshot and no error: the booking flow then denies
// the request instead of overselling on unknown state.
func (c *InventoryClient) CheckAvailability(trainID, date string) (*models.AvailabilitySnapshot, error) {
	url := fmt.Sprintf("%s/api/inventory/availability?trainId=%s&date=%s", c.BaseURL, trainID, date)

	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(c.RetryDelay)
		}

		resp, err := c.HTTP.Get(url)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("availability returned %d", resp.StatusCode)
			continue
		}

		var env apiEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			lastErr = err
			continue
		}
		var snap models.AvailabilitySnapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			lastErr = err
			continue
		}
		return &snap, nil
	}

	c.Logger.Warn("INVENTORY_CLIENT", fmt.Sprintf("availability check for %s:%s failed, assuming no seats: %v", trainID, date, lastErr))
	return &models.AvailabilitySnapshot{TrainID: trainID, DepartureDate: date}, nil
}

// ReserveSeats makes exactly one reservation attempt and classifies the
// outcome. Retrying is the orchestrator's job, and only for ErrUnavailable.
func (c *InventoryClient) ReserveSeats(req models.ReserveSeatRequest) error {
	status, env, err := c.post("/api/inventory/reserve", req)
	if err != nil {
		return fmt.Errorf("reserve seats: %v: %w", err, errs.ErrUnavailable)
	}

	switch status {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest:
		return fmt.Errorf("reserve seats: %s: %w", env.Error, errs.ErrInsufficientSeats)
	case http.StatusNotFound:
		return fmt.Errorf("reserve seats: %s: %w", env.Error, errs.ErrNotFound)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("reserve seats: %s: %w", env.Error, errs.ErrUnavailable)
	default:
		return fmt.Errorf("reserve seats: unexpected status %d: %s", status, env.Error)
	}
}

// ReleaseSeats credits seats back, retrying transport failures. A release
// that still fails is logged and swallowed: the caller's operation (cancel,
// expiry) must succeed for the user regardless, and reconciliation restores
// the counters later.
func (c *InventoryClient) ReleaseSeats(req models.ReserveSeatRequest) error {
	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(c.RetryDelay)
		}

		status, env, err := c.post("/api/inventory/release", req)
		if err != nil {
			lastErr = err
			continue
		}
		if status == http.StatusOK {
			return nil
		}
		lastErr = fmt.Errorf("release returned %d: %s", status, env.Error)
	}

	c.Logger.Error("INVENTORY_CLIENT", fmt.Sprintf("failed to release %d seats for %s:%s: %v",
		req.NumberOfSeats, req.TrainID, req.DepartureDate, lastErr))
	return nil
}

func (c *InventoryClient) post(path string, payload interface{}) (int, apiEnvelope, error) {
	var env apiEnvelope

	data, err := json.Marshal(payload)
	if err != nil {
		return 0, env, err
	}
	resp, err := c.HTTP.Post(c.BaseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return 0, env, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, env, err
	}
	// Decode failures are tolerated; the status code alone is enough to
	// classify the outcome.
	_ = json.Unmarshal(body, &env)
	return resp.StatusCode, env, nil
}
