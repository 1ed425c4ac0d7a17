// README: Vendor handlers for open offers and worker rosters.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"quickfix/internal/modules/request"
	"quickfix/internal/modules/users"
)

type VendorHandler struct {
	requests *request.Service
	users    *users.Service
}

func NewVendorHandler(requests *request.Service, usersSvc *users.Service) *VendorHandler {
	return &VendorHandler{requests: requests, users: usersSvc}
}

// MyRequests handles GET /api/vendors/me/requests.
func (h *VendorHandler) MyRequests(c *gin.Context) {
	rs, err := h.requests.ListOpenForVendor(c.Request.Context(), caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"requests": toRequestViews(rs)})
}

// AddWorker handles POST /api/vendors/:id/workers/:workerId.
func (h *VendorHandler) AddWorker(c *gin.Context) {
	h.roster(c, h.users.AddWorker)
}

// RemoveWorker handles DELETE /api/vendors/:id/workers/:workerId.
func (h *VendorHandler) RemoveWorker(c *gin.Context) {
	h.roster(c, h.users.RemoveWorker)
}

func (h *VendorHandler) roster(c *gin.Context, op func(ctx context.Context, cmd users.RosterCommand) (*users.User, error)) {
	vendorID, ok := pathID(c, "id")
	if !ok {
		return
	}
	workerID, ok := pathID(c, "workerId")
	if !ok {
		return
	}
	v, err := op(c.Request.Context(), users.RosterCommand{
		VendorID: vendorID,
		WorkerID: workerID,
		ActorID:  caller(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toUserView(v))
}
