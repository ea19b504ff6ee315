package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"xpress/internal/modules/dispatch"
	"xpress/internal/types"
)

type MatchingHandler struct {
	queue *dispatch.Queue
}

func NewMatchingHandler(queue *dispatch.Queue) *MatchingHandler {
	return &MatchingHandler{queue: queue}
}

type submitRequest struct {
	RiderID      string  `json:"rider_id" binding:"required"`
	PickupLat    float64 `json:"pickup_lat" binding:"required"`
	PickupLng    float64 `json:"pickup_lng" binding:"required"`
	DestLat      float64 `json:"dest_lat" binding:"required"`
	DestLng      float64 `json:"dest_lng" binding:"required"`
	VehicleClass string  `json:"vehicle_class" binding:"required"`
	Passengers   int     `json:"passengers" binding:"omitempty,gte=1,lte=8"`
	MaxPickupM   float64 `json:"max_pickup_meters" binding:"omitempty,gt=0"`
	AcceptsSurge bool    `json:"accepts_surge"`
}

func (h *MatchingHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	pickup := types.Point{Lat: req.PickupLat, Lng: req.PickupLng}
	dest := types.Point{Lat: req.DestLat, Lng: req.DestLng}
	if !pickup.IsValid() || !dest.IsValid() {
		writeError(c, http.StatusBadRequest, "coordinates out of range")
		return
	}

	snap, err := h.queue.Submit(c.Request.Context(), dispatch.SubmitCommand{
		RiderID:                 types.ID(req.RiderID),
		Pickup:                  pickup,
		Destination:             dest,
		VehicleClass:            req.VehicleClass,
		Passengers:              req.Passengers,
		MaxPickupDistanceMeters: req.MaxPickupM,
		AcceptsSurge:            req.AcceptsSurge,
	})
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (h *MatchingHandler) Status(c *gin.Context) {
	snap, err := h.queue.Status(types.ID(c.Param("id")))
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *MatchingHandler) Cancel(c *gin.Context) {
	snap, err := h.queue.Cancel(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *MatchingHandler) Responses(c *gin.Context) {
	responses, err := h.queue.Responses(types.ID(c.Param("id")))
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"responses": responses})
}
