package profile

import (
	"errors"
	"net/http"

	"shelfscan/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// GetOwnProfile handles GET /v1/me
// @Summary Get own profile
// @Description The signed-in account's role and display fields
// @Tags profiles
// @Produce json
// @Security Bearer
// @Success 200 {object} httpx.SuccessResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 500 {object} httpx.ErrorResponse
// @Router /v1/me [get]
func (h *HTTPHandler) GetOwnProfile(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	p, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "No profile stored for this account", nil)
			return
		}
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}

	httpx.JSONSuccess(w, r, p, nil)
}

type SetProfileReq struct {
	Role        string `json:"role" validate:"omitempty,oneof=admin librarian member"`
	Name        string `json:"name" validate:"required,max=120"`
	Email       string `json:"email" validate:"omitempty,email"`
	DateOfBirth string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
}

func (req SetProfileReq) profile() Profile {
	return Profile{
		Role: Role(req.Role),
		Display: DisplayFields{
			Name:        req.Name,
			Email:       req.Email,
			DateOfBirth: req.DateOfBirth,
		},
	}
}

// UpdateOwnProfile handles PUT /v1/me/profile
// @Summary Store own profile
// @Description Set display fields. The role can only be chosen on the first call.
// @Tags profiles
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body SetProfileReq true "Profile"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Failure 500 {object} httpx.ErrorResponse
// @Router /v1/me/profile [put]
func (h *HTTPHandler) UpdateOwnProfile(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	req, ok := decodeProfileReq(w, r)
	if !ok {
		return
	}

	p, err := h.service.UpdateOwn(r.Context(), userID, req.profile())
	h.writeResult(w, r, p, err)
}

// SetProfile handles PUT /v1/profiles/{id}
// @Summary Store any profile
// @Description Admin-only. Sets role and display fields for an account.
// @Tags profiles
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Account ID"
// @Param request body SetProfileReq true "Profile"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Failure 500 {object} httpx.ErrorResponse
// @Router /v1/profiles/{id} [put]
func (h *HTTPHandler) SetProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Account ID is required", nil)
		return
	}

	req, ok := decodeProfileReq(w, r)
	if !ok {
		return
	}
	if req.Role == "" {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input",
			[]httpx.ErrorDetail{{Field: "role", Message: "role is required"}})
		return
	}

	p, err := h.service.SetProfile(r.Context(), userID, req.profile())
	h.writeResult(w, r, p, err)
}

func decodeProfileReq(w http.ResponseWriter, r *http.Request) (SetProfileReq, bool) {
	var req SetProfileReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return req, false
	}
	if validationErrors := httpx.ValidateStruct(req); len(validationErrors) > 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", validationErrors)
		return req, false
	}
	return req, true
}

func (h *HTTPHandler) writeResult(w http.ResponseWriter, r *http.Request, p Profile, err error) {
	switch {
	case err == nil:
		httpx.JSONSuccess(w, r, p, nil)
	case errors.Is(err, ErrRoleChange):
		httpx.JSONError(w, r, http.StatusForbidden, "ROLE_CHANGE_FORBIDDEN", err.Error(), nil)
	case IsValidation(err):
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	default:
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
