// README: Service request handlers for requesters and vendors.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"quickfix/internal/maps"
	"quickfix/internal/modules/enrichment"
	"quickfix/internal/modules/request"
	"quickfix/internal/modules/users"
	"quickfix/internal/types"
)

const maxImageBytes = 10 << 20

// ETAEstimator is the driving-time lookup behind GET /api/requests/:id/eta.
type ETAEstimator interface {
	ETA(ctx context.Context, origin, destination types.Point) (maps.Estimate, error)
}

type RequestHandler struct {
	requests *request.Service
	users    *users.Service
	eta      ETAEstimator
}

// NewRequestHandler builds the handler; eta may be nil when no maps key is configured.
func NewRequestHandler(requests *request.Service, usersSvc *users.Service, eta ETAEstimator) *RequestHandler {
	return &RequestHandler{requests: requests, users: usersSvc, eta: eta}
}

type createRequestReq struct {
	ProblemDescription string `json:"problem_description"`
	VehicleNumber      string `json:"vehicle_number"`
}

// Create handles POST /api/requests. The body is either JSON or a multipart
// form with a JSON "request" part and an optional "image" file.
func (h *RequestHandler) Create(c *gin.Context) {
	var (
		req createRequestReq
		img *enrichment.Image
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := json.Unmarshal([]byte(c.PostForm("request")), &req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid request part")
			return
		}
		var err error
		img, err = readImage(c)
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	r, err := h.requests.Create(c.Request.Context(), request.CreateCommand{
		RequesterID:        caller(c),
		ProblemDescription: req.ProblemDescription,
		Vehicle:            enrichment.Input{VehicleNumber: req.VehicleNumber, Image: img},
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toRequestView(r))
}

func readImage(c *gin.Context) (*enrichment.Image, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New("invalid image part")
	}
	if fh.Size > maxImageBytes {
		return nil, errors.New("image too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("unreadable image")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	if err != nil {
		return nil, errors.New("unreadable image")
	}
	mime := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, errors.New("image must be an image")
	}
	return &enrichment.Image{Data: data, MIMEType: mime}, nil
}

// Mine handles GET /api/requests/mine.
func (h *RequestHandler) Mine(c *gin.Context) {
	rs, err := h.requests.ListByRequester(c.Request.Context(), caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"requests": toRequestViews(rs)})
}

// Get handles GET /api/requests/:id. A read by the requester may reroute a
// request whose vendor let the accept window lapse.
func (h *RequestHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.requests.Get(c.Request.Context(), id, caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRequestView(r))
}

// ETA handles GET /api/requests/:id/eta for the requester or the assigned vendor.
func (h *RequestHandler) ETA(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if h.eta == nil {
		writeError(c, http.StatusServiceUnavailable, "eta unavailable")
		return
	}
	ctx := c.Request.Context()
	r, err := h.requests.Get(ctx, id, caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	me := caller(c)
	if !r.RequestedBy(me) && (r.AssignedVendorID == nil || *r.AssignedVendorID != me) {
		writeError(c, http.StatusForbidden, "not a party to this request")
		return
	}
	if r.Status != request.StatusAssigned || r.AssignedVendorID == nil {
		writeError(c, http.StatusConflict, "request is not assigned")
		return
	}
	vendor, err := h.users.Get(ctx, *r.AssignedVendorID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if vendor.Position == nil || r.Origin == nil {
		writeError(c, http.StatusUnprocessableEntity, "vendor or request position unknown")
		return
	}
	est, err := h.eta.ETA(ctx, *vendor.Position, *r.Origin)
	switch {
	case errors.Is(err, maps.ErrNoRoute):
		writeError(c, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(c, http.StatusBadGateway, "eta lookup failed")
		return
	}
	writeJSON(c, http.StatusOK, est)
}

// Action handles POST /api/requests/:id/actions/:action (accept | deny).
func (h *RequestHandler) Action(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.requests.Transition(c.Request.Context(), request.TransitionCommand{
		RequestID: id,
		Action:    c.Param("action"),
		VendorID:  caller(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRequestView(r))
}

// Assign handles POST /api/requests/:id/assign/:workerId.
func (h *RequestHandler) Assign(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	workerID, ok := pathID(c, "workerId")
	if !ok {
		return
	}
	r, err := h.requests.AssignWorker(c.Request.Context(), request.AssignCommand{
		RequestID: id,
		VendorID:  caller(c),
		WorkerID:  workerID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRequestView(r))
}

// Complete handles POST /api/requests/:id/complete.
func (h *RequestHandler) Complete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.requests.CompleteByUser(c.Request.Context(), request.CompleteCommand{
		RequestID: id,
		UserID:    caller(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRequestView(r))
}

// Types handles GET /api/request-types.
func (h *RequestHandler) Types(c *gin.Context) {
	writeJSON(c, http.StatusOK, map[string]any{"request_types": request.RequestTypes})
}
