package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"ecotrack/waste-app/internal/domain"
	"ecotrack/waste-app/internal/service"

	"github.com/gin-gonic/gin"
)

// RecordHandler covers listing and the approve/reject review actions.
type RecordHandler struct {
	recordService *service.RecordService
}

func NewRecordHandler(recordService *service.RecordService) *RecordHandler {
	return &RecordHandler{recordService: recordService}
}

// --- Request/Response Structs ---

type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type RecordResponse struct {
	ID           string              `json:"id"`
	Status       domain.RecordStatus `json:"status"`
	Fields       map[string]any      `json:"fields"`
	RejectReason string              `json:"rejectReason,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	SubmittedAt  *time.Time          `json:"submittedAt,omitempty"`
}

func mapRecordToResponse(r *domain.CollectionRecord) RecordResponse {
	return RecordResponse{
		ID:           r.ID.Hex(),
		Status:       r.Status,
		Fields:       r.Fields,
		RejectReason: r.RejectReason,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		SubmittedAt:  r.SubmittedAt,
	}
}

// --- Handler Methods ---

// ListMyRecords returns the calling operator's records in one status.
// Defaults to drafts.
func (h *RecordHandler) ListMyRecords(c *gin.Context) {
	userID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}
	status := domain.RecordStatus(c.DefaultQuery("status", string(domain.StatusDraft)))

	records, err := h.recordService.ListByStatus(c.Request.Context(), status, &userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve records")
		return
	}
	c.JSON(http.StatusOK, mapRecords(records))
}

// ListSubmitted returns the review queue. Approver only.
func (h *RecordHandler) ListSubmitted(c *gin.Context) {
	records, err := h.recordService.ListByStatus(c.Request.Context(), domain.StatusSubmitted, nil)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve records")
		return
	}
	c.JSON(http.StatusOK, mapRecords(records))
}

// GetRecord returns one record by id. Without the approve permission a user
// only sees their own records.
func (h *RecordHandler) GetRecord(c *gin.Context) {
	record, err := h.recordService.GetRecord(c.Request.Context(), c.Param("recordId"))
	if err != nil {
		if errors.Is(err, service.ErrRecordNotFound) {
			abortWithError(c, http.StatusNotFound, "Record not found")
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to retrieve record")
		}
		return
	}

	role, _ := getUserRoleFromContext(c)
	if !role.HasPermission(domain.PermRecordApprove) {
		userID, err := getUserObjectIDFromContext(c)
		if err != nil || record.CreatedBy != userID {
			abortWithError(c, http.StatusForbidden, "Access denied")
			return
		}
	}
	c.JSON(http.StatusOK, mapRecordToResponse(record))
}

// Approve marks a submitted record approved. Approver only.
func (h *RecordHandler) Approve(c *gin.Context) {
	reviewerID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}

	err = h.recordService.Approve(c.Request.Context(), c.Param("recordId"), reviewerID)
	if err != nil {
		h.respondReviewError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": domain.StatusApproved})
}

// Reject returns a submitted record to its operator with a reason. Approver only.
func (h *RecordHandler) Reject(c *gin.Context) {
	reviewerID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	err = h.recordService.Reject(c.Request.Context(), c.Param("recordId"), reviewerID, req.Reason)
	if err != nil {
		h.respondReviewError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": domain.StatusRejected})
}

func (h *RecordHandler) respondReviewError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRecordNotFound):
		abortWithError(c, http.StatusNotFound, "Record not found")
	case errors.Is(err, service.ErrInvalidTransition):
		abortWithError(c, http.StatusConflict, "Record is not awaiting review")
	case errors.Is(err, service.ErrRejectReasonNeeded):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "Failed to update record")
	}
}

func mapRecords(records []domain.CollectionRecord) []RecordResponse {
	out := make([]RecordResponse, 0, len(records))
	for i := range records {
		out = append(out, mapRecordToResponse(&records[i]))
	}
	return out
}
