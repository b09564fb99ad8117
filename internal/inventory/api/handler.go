package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"train-ticketing/internal/errs"
	"train-ticketing/internal/inventory"
	"train-ticketing/internal/models"
	"train-ticketing/internal/utils"
)

type Handler struct {
	Service *inventory.Service
}

func NewHandler(svc *inventory.Service) *Handler {
	return &Handler{Service: svc}
}

// Routes mounts the inventory endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/inventory/availability", h.GetAvailability)
	r.Post("/api/inventory/reserve", h.ReserveSeats)
	r.Post("/api/inventory/release", h.ReleaseSeats)
	r.Post("/api/inventory/schedules", h.PublishSchedule)
	r.Delete("/api/inventory/schedules", h.DeactivateSchedule)
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	trainID := r.URL.Query().Get("trainId")
	date := r.URL.Query().Get("date")
	if trainID == "" || date == "" {
		utils.WriteJSON(w, http.StatusBadRequest,
			utils.ErrorResponse("Invalid request", "trainId and date query parameters are required"))
		return
	}

	snap, err := h.Service.Query(trainID, date)
	if err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Could not fetch availability", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Availability fetched", snap))
}

func (h *Handler) ReserveSeats(w http.ResponseWriter, r *http.Request) {
	var req models.ReserveSeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	err := h.Service.Reserve(req.TrainID, req.DepartureDate, req.NumberOfSeats, req.SeatClass)
	if err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Could not reserve seats", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Seats reserved", nil))
}

func (h *Handler) ReleaseSeats(w http.ResponseWriter, r *http.Request) {
	var req models.ReserveSeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	err := h.Service.Release(req.TrainID, req.DepartureDate, req.NumberOfSeats, req.SeatClass)
	if err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Could not release seats", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Seats released", nil))
}

func (h *Handler) PublishSchedule(w http.ResponseWriter, r *http.Request) {
	var req models.CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	inv, err := h.Service.PublishSchedule(req)
	if err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Could not publish schedule", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Schedule published", inv))
}

func (h *Handler) DeactivateSchedule(w http.ResponseWriter, r *http.Request) {
	trainID := r.URL.Query().Get("trainId")
	date := r.URL.Query().Get("date")
	if trainID == "" || date == "" {
		utils.WriteJSON(w, http.StatusBadRequest,
			utils.ErrorResponse("Invalid request", "trainId and date query parameters are required"))
		return
	}

	if err := h.Service.DeactivateSchedule(trainID, date); err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Could not deactivate schedule", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Schedule deactivated", nil))
}

// statusFor maps the shared error taxonomy onto HTTP status codes.
// Insufficient seats and unavailable get distinct codes so the booking
// client can tell a terminal business failure from a retryable one.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInsufficientSeats):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
