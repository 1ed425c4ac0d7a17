// README: Base handler utilities (JSON helpers, error mapping, response views).
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quickfix/internal/http/middleware"
	"quickfix/internal/modules/enrichment"
	"quickfix/internal/modules/request"
	"quickfix/internal/modules/users"
	"quickfix/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts generated hex ids and external (Firebase) uids.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '-' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps module errors onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, request.ErrBadRequest), errors.Is(err, users.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, request.ErrForbidden), errors.Is(err, users.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, request.ErrNotFound), errors.Is(err, users.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, request.ErrInvalidState), errors.Is(err, users.ErrConflict), errors.Is(err, users.ErrDuplicate):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, request.ErrUnqualified):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// pathID reads and validates a path parameter; it writes the 400 itself.
func pathID(c *gin.Context, name string) (types.ID, bool) {
	v := c.Param(name)
	if !isValidID(v) {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return "", false
	}
	return types.ID(v), true
}

func caller(c *gin.Context) types.ID {
	return types.ID(middleware.CallerUID(c))
}

type requestView struct {
	ID                 types.ID          `json:"id"`
	RequesterID        *types.ID         `json:"requester_id"`
	ProblemDescription string            `json:"problem_description"`
	Origin             *types.Point      `json:"origin,omitempty"`
	Status             request.Status    `json:"status"`
	IntendedVendorID   *types.ID         `json:"intended_vendor_id"`
	AssignedVendorID   *types.ID         `json:"assigned_vendor_id"`
	WorkerID           *types.ID         `json:"worker_id"`
	LastRoutedAt       *time.Time        `json:"last_routed_at,omitempty"`
	Vehicle            enrichment.Result `json:"vehicle"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
}

func toRequestView(r *request.ServiceRequest) requestView {
	return requestView{
		ID:                 r.ID,
		RequesterID:        r.RequesterID,
		ProblemDescription: r.ProblemDescription,
		Origin:             r.Origin,
		Status:             r.Status,
		IntendedVendorID:   r.IntendedVendorID,
		AssignedVendorID:   r.AssignedVendorID,
		WorkerID:           r.WorkerID,
		LastRoutedAt:       r.LastRoutedAt,
		Vehicle:            r.Vehicle,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		CompletedAt:        r.CompletedAt,
	}
}

func toRequestViews(rs []*request.ServiceRequest) []requestView {
	out := make([]requestView, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRequestView(r))
	}
	return out
}

type userView struct {
	ID        types.ID       `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Roles     []users.Role   `json:"roles"`
	Position  *types.Point   `json:"position,omitempty"`
	Activity  users.Activity `json:"activity"`
	Skills    []string       `json:"skills,omitempty"`
	VendorID  *types.ID      `json:"vendor_id,omitempty"`
	Workers   []types.ID     `json:"workers,omitempty"`
	Coverage  []string       `json:"coverage,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func toUserView(u *users.User) userView {
	return userView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Roles:     u.Roles.Roles(),
		Position:  u.Position,
		Activity:  u.Activity,
		Skills:    u.Skills,
		VendorID:  u.VendorID,
		Workers:   u.Workers,
		Coverage:  u.Coverage,
		CreatedAt: u.CreatedAt,
	}
}
