package service

import (
	"context"
	"fmt"

	"ecotrack/waste-app/internal/domain"
	"ecotrack/waste-app/internal/repository"
	"ecotrack/waste-app/internal/session"
)

// ReferenceService serves the dropdown reference data the wizard consumes.
// It implements session.ReferenceLoader.
type ReferenceService struct {
	refRepo repository.ReferenceRepository
}

func NewReferenceService(refRepo repository.ReferenceRepository) *ReferenceService {
	return &ReferenceService{refRepo: refRepo}
}

// LoadReferenceData fetches every reference kind the form needs.
func (s *ReferenceService) LoadReferenceData(ctx context.Context) (*session.ReferenceData, error) {
	data := &session.ReferenceData{}

	targets := []struct {
		kind domain.RefKind
		dst  *[]session.RefOption
	}{
		{domain.RefContractType, &data.ContractTypes},
		{domain.RefWasteType, &data.WasteTypes},
		{domain.RefHazardCode, &data.HazardCodes},
		{domain.RefWasteOwner, &data.WasteOwners},
		{domain.RefPickupLocation, &data.PickupLocations},
	}

	for _, t := range targets {
		items, err := s.refRepo.GetByKind(ctx, t.kind)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", t.kind, err)
		}
		opts := make([]session.RefOption, 0, len(items))
		for _, item := range items {
			opts = append(opts, session.RefOption{ID: item.ID.Hex(), Name: item.Name})
		}
		*t.dst = opts
	}

	return data, nil
}
