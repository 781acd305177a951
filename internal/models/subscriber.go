package models

import (
	"encoding/json"
	"strings"
)

const SubscriberStatusActive = "active"

type SubscriberFields struct {
	Name          string `json:"name"`
	BusinessName  string `json:"business_name"`
	Address       string `json:"address"`
	ReminderDate  string `json:"reminder_date"`
	ReminderTime  string `json:"reminder_time"`
	PaymentStatus string `json:"payment_status"`
}

type CreateSubscriberPayload struct {
	Email  string           `json:"email"`
	Fields SubscriberFields `json:"fields"`
	Groups []string         `json:"groups"`
	Status string           `json:"status"`
}

type UpdateSubscriberPayload struct {
	Fields SubscriberFields `json:"fields"`
	Groups []string         `json:"groups"`
}

// UpstreamResponse is the raw reply of the external subscriber list.
type UpstreamResponse struct {
	StatusCode int
	Body       []byte
}

func (r *UpstreamResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON reports whether the body parses as JSON and returns it as a raw message.
func (r *UpstreamResponse) JSON() (json.RawMessage, bool) {
	if !json.Valid(r.Body) {
		return nil, false
	}
	return json.RawMessage(r.Body), true
}

func NewCreateSubscriberPayload(req *ReminderRequest, resolved ResolvedReminder, groupID string) *CreateSubscriberPayload {
	return &CreateSubscriberPayload{
		Email:  strings.TrimSpace(req.Email),
		Fields: newSubscriberFields(req, resolved),
		Groups: []string{groupID},
		Status: SubscriberStatusActive,
	}
}

func (p *CreateSubscriberPayload) UpdatePayload() *UpdateSubscriberPayload {
	groups := make([]string, len(p.Groups))
	copy(groups, p.Groups)
	return &UpdateSubscriberPayload{
		Fields: p.Fields,
		Groups: groups,
	}
}

func newSubscriberFields(req *ReminderRequest, resolved ResolvedReminder) SubscriberFields {
	return SubscriberFields{
		Name:          req.Name,
		BusinessName:  req.BusinessName,
		Address:       req.Address,
		ReminderDate:  resolved.ReminderDate,
		ReminderTime:  req.ReminderTime,
		PaymentStatus: resolved.PaymentStatus,
	}
}
