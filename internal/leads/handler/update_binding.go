package handler

import (
	"encoding/json"
	"fmt"

	"sales_portal_backend/internal/leads/domain"
	"sales_portal_backend/internal/leads/service"
	"sales_portal_backend/internal/leads/transport"

	"github.com/google/uuid"
)

// updateRequest carries both the typed DTO (for validation) and the service
// params (with per-field presence flags).
type updateRequest struct {
	dto    transport.UpdateLeadRequest
	params service.UpdateParams
}

// bindUpdateRequest distinguishes absent fields from explicit nulls: the raw
// map records which keys the client sent, the re-decode gives typed values.
func bindUpdateRequest(raw map[string]any) (updateRequest, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return updateRequest{}, fmt.Errorf("invalid request body")
	}

	var dto transport.UpdateLeadRequest
	if err := json.Unmarshal(encoded, &dto); err != nil {
		return updateRequest{}, fmt.Errorf("invalid request body")
	}

	has := func(key string) bool {
		_, ok := raw[key]
		return ok
	}

	params := service.UpdateParams{
		CompanyName:        dto.CompanyName,
		ContactName:        dto.ContactName,
		ContactNameSet:     has("contactName"),
		ContactEmail:       dto.ContactEmail,
		ContactEmailSet:    has("contactEmail"),
		ContactPhone:       dto.ContactPhone,
		ContactPhoneSet:    has("contactPhone"),
		Source:             dto.Source,
		SourceSet:          has("source"),
		EstimatedBudget:    dto.EstimatedBudget,
		EstimatedBudgetSet: has("estimatedBudget"),
		Notes:              dto.Notes,
		NotesSet:           has("notes"),
	}

	if dto.Priority != nil {
		priority := domain.Priority(*dto.Priority)
		params.Priority = &priority
	}

	if has("assignedTo") {
		params.AssignedToSet = true
		if dto.AssignedTo != nil && *dto.AssignedTo != "" {
			id, err := uuid.Parse(*dto.AssignedTo)
			if err != nil {
				return updateRequest{}, fmt.Errorf("invalid assignedTo")
			}
			params.AssignedTo = &id
		}
	}

	return updateRequest{dto: dto, params: params}, nil
}
