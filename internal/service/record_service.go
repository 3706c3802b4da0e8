package service

import (
	"context"
	"errors"

	"ecotrack/waste-app/internal/domain"
	"ecotrack/waste-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrInvalidTransition  = errors.New("record is not awaiting review")
	ErrRejectReasonNeeded = errors.New("rejection requires a reason")
)

// RecordService covers the review side of the lifecycle: approvers list the
// submitted queue and approve or reject records.
type RecordService struct {
	recordRepo repository.RecordRepository
}

func NewRecordService(recordRepo repository.RecordRepository) *RecordService {
	return &RecordService{recordRepo: recordRepo}
}

// GetRecord fetches one record by hex id.
func (s *RecordService) GetRecord(ctx context.Context, recordID string) (*domain.CollectionRecord, error) {
	id, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return nil, ErrRecordNotFound
	}
	record, err := s.recordRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	return record, err
}

// ListByStatus returns records in one lifecycle state, newest first. When
// createdBy is non-nil the listing is scoped to that operator's own records.
func (s *RecordService) ListByStatus(ctx context.Context, status domain.RecordStatus, createdBy *primitive.ObjectID) ([]domain.CollectionRecord, error) {
	return s.recordRepo.ListByStatus(ctx, status, createdBy)
}

// Approve moves a submitted record to approved.
func (s *RecordService) Approve(ctx context.Context, recordID string, reviewerID primitive.ObjectID) error {
	id, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return ErrRecordNotFound
	}
	err = s.recordRepo.SetStatus(ctx, id, domain.StatusSubmitted, domain.StatusApproved, &reviewerID, "")
	if errors.Is(err, repository.ErrUpdateFailed) {
		return ErrInvalidTransition
	}
	return err
}

// Reject returns a submitted record to the operator with a reason.
func (s *RecordService) Reject(ctx context.Context, recordID string, reviewerID primitive.ObjectID, reason string) error {
	if reason == "" {
		return ErrRejectReasonNeeded
	}
	id, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return ErrRecordNotFound
	}
	err = s.recordRepo.SetStatus(ctx, id, domain.StatusSubmitted, domain.StatusRejected, &reviewerID, reason)
	if errors.Is(err, repository.ErrUpdateFailed) {
		return ErrInvalidTransition
	}
	return err
}
