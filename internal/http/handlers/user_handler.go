// README: User handlers for registration, profile, location, device token and skills.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quickfix/internal/modules/users"
	"quickfix/internal/types"
)

type UserHandler struct {
	users *users.Service
}

func NewUserHandler(svc *users.Service) *UserHandler {
	return &UserHandler{users: svc}
}

type registerReq struct {
	// ID registers someone other than the caller; admins only.
	ID       types.ID     `json:"id"`
	Name     string       `json:"name"`
	Email    string       `json:"email"`
	Phone    string       `json:"phone"`
	Roles    []string     `json:"roles"`
	Position *types.Point `json:"position"`
	Skills   []string     `json:"skills"`
}

// Register handles POST /api/users. By default the caller registers itself
// and the user id is the authenticated uid; an admin may pass another id.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	uid := caller(c)
	id := req.ID
	if id == "" {
		id = uid
	}
	if !isValidID(string(id)) {
		writeError(c, http.StatusBadRequest, "invalid uid")
		return
	}
	u, err := h.users.Register(c.Request.Context(), users.RegisterCommand{
		ID:       id,
		ActorID:  uid,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Roles:    req.Roles,
		Position: req.Position,
		Skills:   req.Skills,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toUserView(u))
}

// List handles GET /api/users?role=VENDOR, the feed behind the vendor and
// worker map.
func (h *UserHandler) List(c *gin.Context) {
	role, ok := users.ParseRole(c.Query("role"))
	if !ok {
		writeError(c, http.StatusBadRequest, "role must be one of USER, VENDOR, WORKER, ADMIN")
		return
	}
	list, err := h.users.ListByRole(c.Request.Context(), role)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]userView, 0, len(list))
	for _, u := range list {
		out = append(out, toUserView(u))
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toUserView(u))
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), users.DeleteCommand{UserID: id, ActorID: caller(c)}); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateLocation handles PUT /api/users/:id/location with {"lat":..,"lng":..}.
func (h *UserHandler) UpdateLocation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var p types.Point
	if err := c.ShouldBindJSON(&p); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := h.users.UpdateLocation(c.Request.Context(), users.UpdateLocationCommand{
		UserID:   id,
		ActorID:  caller(c),
		Position: p,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toUserView(u))
}

type deviceTokenReq struct {
	Token string `json:"token"`
}

func (h *UserHandler) SetDeviceToken(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req deviceTokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.users.SetDeviceToken(c.Request.Context(), users.DeviceTokenCommand{
		UserID:  id,
		ActorID: caller(c),
		Token:   req.Token,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type skillsReq struct {
	Skills []string `json:"skills"`
}

// SetSkills handles PUT /api/workers/:id/skills.
func (h *UserHandler) SetSkills(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req skillsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := h.users.SetSkills(c.Request.Context(), users.SetSkillsCommand{
		WorkerID: id,
		ActorID:  caller(c),
		Skills:   req.Skills,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toUserView(u))
}
