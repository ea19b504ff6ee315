package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"xpress/internal/modules/dispatch"
	"xpress/internal/modules/discovery"
	"xpress/internal/types"
)

type DriverHandler struct {
	queue   *dispatch.Queue
	drivers discovery.Store
}

func NewDriverHandler(queue *dispatch.Queue, drivers discovery.Store) *DriverHandler {
	return &DriverHandler{queue: queue, drivers: drivers}
}

type locationUpdate struct {
	Lat          float64 `json:"lat" binding:"required"`
	Lng          float64 `json:"lng" binding:"required"`
	Status       string  `json:"status" binding:"required,oneof=online busy offline"`
	Capacity     int     `json:"capacity" binding:"required,gte=1,lte=8"`
	VehicleClass string  `json:"vehicle_class" binding:"required"`
}

// UpdateLocation doubles as the heartbeat: every update refreshes last_seen,
// which discovery's freshness filter reads.
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req locationUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	loc := types.Point{Lat: req.Lat, Lng: req.Lng}
	if !loc.IsValid() {
		writeError(c, http.StatusBadRequest, "coordinates out of range")
		return
	}

	id := types.ID(c.Param("id"))
	if req.Status == string(discovery.DriverOffline) {
		if err := h.drivers.RemoveDriver(c.Request.Context(), id); err != nil {
			writeError(c, http.StatusInternalServerError, "internal error")
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	err := h.drivers.UpsertDriver(c.Request.Context(), discovery.DriverState{
		ID:           id,
		Location:     loc,
		Status:       discovery.DriverStatus(req.Status),
		Capacity:     req.Capacity,
		VehicleClass: req.VehicleClass,
		LastSeen:     time.Now().UTC(),
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}

type acceptRequest struct {
	RequestID string `json:"request_id" binding:"required"`
}

func (h *DriverHandler) Accept(c *gin.Context) {
	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.queue.Accept(c.Request.Context(), types.ID(req.RequestID), types.ID(c.Param("id")))
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type rejectRequest struct {
	RequestID string `json:"request_id" binding:"required"`
	Reason    string `json:"reason" binding:"omitempty,max=200"`
}

func (h *DriverHandler) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.queue.Reject(c.Request.Context(), types.ID(req.RequestID), types.ID(c.Param("id")), req.Reason)
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
