package api

import (
	"net/http"

	"ecotrack/waste-app/internal/service"

	"github.com/gin-gonic/gin"
)

// ReferenceHandler serves the dropdown reference data the wizard renders.
type ReferenceHandler struct {
	refService *service.ReferenceService
}

func NewReferenceHandler(refService *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{refService: refService}
}

// GetReferenceData returns every reference kind in one payload. The client
// fetches it once per session mount.
func (h *ReferenceHandler) GetReferenceData(c *gin.Context) {
	data, err := h.refService.LoadReferenceData(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to load reference data")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"contractTypes":   data.ContractTypes,
		"wasteTypes":      data.WasteTypes,
		"hazardCodes":     data.HazardCodes,
		"wasteOwners":     data.WasteOwners,
		"pickupLocations": data.PickupLocations,
	})
}
