package client

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"train-ticketing/internal/errs"
	"train-ticketing/internal/logger"
	"train-ticketing/internal/models"
	"train-ticketing/internal/utils"
)

func newTestClient(baseURL string) *InventoryClient {
	return NewInventoryClient(baseURL, time.Second, 2, time.Millisecond, logger.NewWithWriter(os.Stderr))
}

func reserveRequest() models.ReserveSeatRequest {
	return models.ReserveSeatRequest{
		TrainID:       "train-1",
		DepartureDate: "2026-09-01",
		NumberOfSeats: 2,
		SeatClass:     models.SeatClassEconomy,
	}
}

func TestCheckAvailability_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/inventory/availability", r.URL.Path)
		assert.Equal(t, "train-1", r.URL.Query().Get("trainId"))
		assert.Equal(t, "2026-09-01", r.URL.Query().Get("date"))

		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", models.AvailabilitySnapshot{
			TrainID:        "train-1",
			DepartureDate:  "2026-09-01",
			TotalSeats:     100,
			AvailableSeats: 42,
		}))
	}))
	defer srv.Close()

	snap, err := newTestClient(srv.URL).CheckAvailability("train-1", "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, 42, snap.AvailableSeats)
}

func TestCheckAvailability_UnreachableFallsBackToZero(t *testing.T) {
	// A server that is already closed gives a connection error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	snap, err := newTestClient(srv.URL).CheckAvailability("train-1", "2026-09-01")
	require.NoError(t, err, "unreachable inventory degrades to zero availability, not an error")
	assert.Equal(t, 0, snap.AvailableSeats)
	assert.Equal(t, "train-1", snap.TrainID)
}

func TestCheckAvailability_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", models.AvailabilitySnapshot{
			TrainID:        "train-1",
			DepartureDate:  "2026-09-01",
			AvailableSeats: 7,
		}))
	}))
	defer srv.Close()

	snap, err := newTestClient(srv.URL).CheckAvailability("train-1", "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, 7, snap.AvailableSeats)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestReserveSeats_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"insufficient", http.StatusBadRequest, errs.ErrInsufficientSeats},
		{"unknown schedule", http.StatusNotFound, errs.ErrNotFound},
		{"contended", http.StatusServiceUnavailable, errs.ErrUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				utils.WriteJSON(w, tc.status, utils.ErrorResponse("nope", "nope"))
			}))
			defer srv.Close()

			err := newTestClient(srv.URL).ReserveSeats(reserveRequest())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))
		})
	}
}

func TestReserveSeats_Success(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/inventory/reserve", r.URL.Path)
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Seats reserved", nil))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).ReserveSeats(reserveRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "reserve is single-shot; retries belong to the caller")
}

func TestReserveSeats_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	err := newTestClient(srv.URL).ReserveSeats(reserveRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnavailable))
}

func TestReleaseSeats_FailureIsSwallowed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).ReleaseSeats(reserveRequest())
	require.NoError(t, err, "release failure is logged, never surfaced")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "release exhausts its retries first")
}

func TestReleaseSeats_Success(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Seats released", nil))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).ReleaseSeats(reserveRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
