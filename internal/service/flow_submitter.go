package service

import (
	"context"

	"nextsteps-go/internal/flow"
	"nextsteps-go/internal/models"
)

// FlowSubmitter lets server-hosted flows submit through the service without a
// loopback HTTP call.
type FlowSubmitter struct {
	service *ReminderService
}

var _ flow.Submitter = (*FlowSubmitter)(nil)

func NewFlowSubmitter(service *ReminderService) *FlowSubmitter {
	return &FlowSubmitter{service: service}
}

func (f *FlowSubmitter) Submit(ctx context.Context, req *models.ReminderRequest) error {
	_, err := f.service.Upsert(ctx, req)
	return err
}
