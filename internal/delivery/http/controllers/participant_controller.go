package controllers

import (
	"log/slog"
	"net/http"

	"eventmanager/internal/delivery/http/helpers"
	"eventmanager/internal/delivery/http/middleware"
	"eventmanager/internal/domain"
)

// RegistrationRequest is the body of participant registration and waitlist joins.
type RegistrationRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (req RegistrationRequest) input() domain.ParticipantInput {
	return domain.ParticipantInput{Name: req.Name, Email: req.Email, Phone: req.Phone}
}

// CheckInResponse is the data of a successful check-in.
type CheckInResponse struct {
	ParticipantID int64 `json:"participant_id"`
	CheckedIn     bool  `json:"checked_in"`
}

// ParticipantController serves registrations, check-ins and the waitlist of an event.
type ParticipantController struct {
	Logger  *slog.Logger
	Service domain.ParticipantService
}

func NewParticipantController(logger *slog.Logger, svc domain.ParticipantService) *ParticipantController {
	return &ParticipantController{
		Logger:  logger,
		Service: svc,
	}
}

// ListParticipants godoc
// @Summary List participants of an event
// @Tags participants
// @Produce json
// @Param eventID path int true "Event ID"
// @Success 200 {object} helpers.APIResponse{data=[]domain.Participant}
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/participants [get]
func (c *ParticipantController) ListParticipants(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathID(w, r, "eventID")
	if !ok {
		return
	}
	participants, err := c.Service.ListParticipants(r.Context(), eventID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if participants == nil {
		participants = []*domain.Participant{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, participants)
}

// Register godoc
// @Summary Register a participant
// @Description Fails with 400 when the event is full or the email is already registered for it.
// @Tags participants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path int true "Event ID"
// @Param participant body RegistrationRequest true "Registrant"
// @Success 201 {object} helpers.APIResponse{data=domain.Participant}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/participants [post]
func (c *ParticipantController) Register(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathID(w, r, "eventID")
	if !ok {
		return
	}
	var req RegistrationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	p, err := c.Service.Register(r.Context(), eventID, req.input(), middleware.Actor(r))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, p)
}

// Remove godoc
// @Summary Remove a participant
// @Description The freed seat goes to the head of the waitlist, if any.
// @Tags participants
// @Produce json
// @Security BearerAuth
// @Param eventID path int true "Event ID"
// @Param participantID path int true "Participant ID"
// @Success 200 {object} helpers.APIResponse{data=controllers.MessageResponse}
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/participants/{participantID} [delete]
func (c *ParticipantController) Remove(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathID(w, r, "eventID")
	if !ok {
		return
	}
	participantID, ok := helpers.PathID(w, r, "participantID")
	if !ok {
		return
	}
	if err := c.Service.Remove(r.Context(), eventID, participantID, middleware.Actor(r)); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, MessageResponse{Message: "Participant removed"})
}

// CheckIn godoc
// @Summary Check in a participant
// @Description Idempotent.
// @Tags participants
// @Produce json
// @Security BearerAuth
// @Param eventID path int true "Event ID"
// @Param participantID path int true "Participant ID"
// @Success 200 {object} helpers.APIResponse{data=controllers.CheckInResponse}
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/participants/{participantID}/checkin [post]
func (c *ParticipantController) CheckIn(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathID(w, r, "eventID")
	if !ok {
		return
	}
	participantID, ok := helpers.PathID(w, r, "participantID")
	if !ok {
		return
	}
	if err := c.Service.CheckIn(r.Context(), eventID, participantID, middleware.Actor(r)); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, CheckInResponse{ParticipantID: participantID, CheckedIn: true})
}

// JoinWaitlist godoc
// @Summary Join the waitlist of a full event
// @Tags waitlist
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path int true "Event ID"
// @Param entry body RegistrationRequest true "Registrant"
// @Success 201 {object} helpers.APIResponse{data=domain.WaitlistEntry}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (seats still available)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/waitlist [post]
func (c *ParticipantController) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathID(w, r, "eventID")
	if !ok {
		return
	}
	var req RegistrationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	entry, err := c.Service.JoinWaitlist(r.Context(), eventID, req.input(), middleware.Actor(r))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, entry)
}

// ListWaitlist godoc
// @Summary List the waitlist of an event
// @Description Entries in arrival order with 1-based positions.
// @Tags waitlist
// @Produce json
// @Param eventID path int true "Event ID"
// @Success 200 {object} helpers.APIResponse{data=[]domain.WaitlistEntry}
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/waitlist [get]
func (c *ParticipantController) ListWaitlist(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathID(w, r, "eventID")
	if !ok {
		return
	}
	entries, err := c.Service.ListWaitlist(r.Context(), eventID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if entries == nil {
		entries = []*domain.WaitlistEntry{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, entries)
}

// LeaveWaitlist godoc
// @Summary Leave the waitlist
// @Tags waitlist
// @Produce json
// @Security BearerAuth
// @Param eventID path int true "Event ID"
// @Param entryID path int true "Waitlist entry ID"
// @Success 200 {object} helpers.APIResponse{data=controllers.MessageResponse}
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/waitlist/{entryID} [delete]
func (c *ParticipantController) LeaveWaitlist(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathID(w, r, "eventID")
	if !ok {
		return
	}
	entryID, ok := helpers.PathID(w, r, "entryID")
	if !ok {
		return
	}
	if err := c.Service.LeaveWaitlist(r.Context(), eventID, entryID, middleware.Actor(r)); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, MessageResponse{Message: "Removed from waitlist"})
}
