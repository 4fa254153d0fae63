package dto

import (
	"github.com/spec-kit/presence-desk/internal/domain"
)

// TicketResponse is a ticket card with its derived fields rendered.
type TicketResponse struct {
	ID               string `json:"id"`
	IssueKey         string `json:"issue_key,omitempty"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	AssigneeID       string `json:"assignee_id,omitempty"`
	EHRName          string `json:"ehr_name"`
	HospitalName     string `json:"hospital_name"`
	PatientID        string `json:"patient_id"`
	ConsultationDate string `json:"consultation_date"`
	AcquisitionTime  string `json:"acquisition_time"`
}

// NewTicketResponse renders t; missing fields read as unknown.
func NewTicketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:               t.ID,
		IssueKey:         t.IssueKey,
		Title:            t.Title(),
		Description:      t.Description,
		AssigneeID:       t.AssigneeID,
		EHRName:          t.Fields.Display(domain.FieldEHRName),
		HospitalName:     t.Fields.Display(domain.FieldHospitalName),
		PatientID:        t.Fields.Display(domain.FieldPatientID),
		ConsultationDate: t.Fields.Display(domain.FieldConsultationDate),
		AcquisitionTime:  t.Fields.Display(domain.FieldAcquisitionTime),
	}
}

// NewTicketResponses renders a list.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, NewTicketResponse(t))
	}
	return out
}
