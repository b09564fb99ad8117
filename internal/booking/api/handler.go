package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"train-ticketing/internal/booking"
	"train-ticketing/internal/booking/qr"
	"train-ticketing/internal/errs"
	"train-ticketing/internal/models"
	"train-ticketing/internal/utils"
)

// userIDHeader is set by the API gateway after authentication.
const userIDHeader = "X-User-Id"

type Handler struct {
	Service *booking.Service
	QR      *qr.Generator
}

func NewHandler(svc *booking.Service, qrGen *qr.Generator) *Handler {
	return &Handler{Service: svc, QR: qrGen}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/tickets", func(r chi.Router) {
		r.Post("/book", h.BookTicket)
		r.Get("/", h.ListTickets)
		r.Get("/{ticketID}", h.GetTicket)
		r.Get("/{ticketID}/qr", h.GetBoardingPass)
		r.Post("/{ticketID}/confirm", h.ConfirmTicket)
		r.Post("/{ticketID}/cancel", h.CancelTicket)
		r.Post("/{ticketID}/complete", h.CompleteTicket)
	})
}

func (h *Handler) BookTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req models.BookTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	ticket, err := h.Service.Book(userID, req)
	if err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Could not book ticket", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Ticket booked, awaiting payment", ticket))
}

func (h *Handler) ConfirmTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	ticket, err := h.Service.Confirm(userID, chi.URLParam(r, "ticketID"))
	if err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Could not confirm ticket", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket confirmed", ticket))
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	// The reason is optional; an empty body means a default reason.
	var req models.CancelTicketRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ticket, err := h.Service.Cancel(userID, chi.URLParam(r, "ticketID"), req.Reason)
	if err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Could not cancel ticket", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket cancelled", ticket))
}

func (h *Handler) CompleteTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	ticket, err := h.Service.Complete(userID, chi.URLParam(r, "ticketID"))
	if err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Could not complete ticket", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket completed", ticket))
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	ticket, err := h.Service.Get(userID, chi.URLParam(r, "ticketID"))
	if err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Could not fetch ticket", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket fetched", ticket))
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	tickets, err := h.Service.ListByUser(userID, r.URL.Query().Get("status"))
	if err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Could not list tickets", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Tickets fetched", tickets))
}

// GetBoardingPass serves the QR boarding pass. Only confirmed tickets have
// one.
func (h *Handler) GetBoardingPass(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	ticket, err := h.Service.Get(userID, chi.URLParam(r, "ticketID"))
	if err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Could not fetch ticket", err.Error()))
		return
	}
	if ticket.Status != models.StatusConfirmed {
		utils.WriteJSON(w, http.StatusBadRequest,
			utils.ErrorResponse("No boarding pass", "boarding passes exist only for confirmed tickets"))
		return
	}

	png, err := h.QR.BoardingPass(*ticket)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not generate boarding pass", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		utils.WriteJSON(w, http.StatusUnauthorized,
			utils.ErrorResponse("Unauthorized", "missing "+userIDHeader+" header"))
		return "", false
	}
	return userID, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidRequest),
		errors.Is(err, errs.ErrInsufficientSeats),
		errors.Is(err, errs.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
