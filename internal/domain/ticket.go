package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Ticket is a patient request assigned to the present staff member. It is a
// tracker issue in the processing status.
type Ticket struct {
	ID          string        `json:"id"`
	IssueKey    string        `json:"issueKey,omitempty"`
	Summary     string        `json:"summary,omitempty"`
	Description string        `json:"description"`
	AssigneeID  string        `json:"assigneeId,omitempty"`
	Fields      DerivedFields `json:"fields"`
	// Local marks a pushed ticket that carried no tracker id; ID is then a
	// desk-assigned key and cannot be written back to the tracker.
	Local bool `json:"local,omitempty"`
}

// NewTicket builds a ticket and derives its fields from the description.
func NewTicket(id, issueKey, summary, description, assigneeID string) Ticket {
	return Ticket{
		ID:          id,
		IssueKey:    issueKey,
		Summary:     summary,
		Description: description,
		AssigneeID:  assigneeID,
		Fields:      ParseDescription(description),
	}
}

// Title is a one-line label for notifications.
func (t Ticket) Title() string {
	if t.Summary != "" {
		return t.Summary
	}
	return fmt.Sprintf("%s - 患者ID:%s", t.Fields.Display(FieldHospitalName), t.Fields.Display(FieldPatientID))
}

// FlexibleID accepts ids encoded as JSON numbers or strings.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*f = FlexibleID(n.String())
	return nil
}

// PushTicket is the ticket payload carried by a webhook push event.
type PushTicket struct {
	ID          FlexibleID  `json:"id"`
	IssueKey    string      `json:"issueKey"`
	Summary     string      `json:"summary"`
	Description string      `json:"description"`
	AssigneeID  *FlexibleID `json:"assigneeId"`
	EventType   string      `json:"event_type"`
	// FallbackID keys the ticket when the payload has no id. It is set by
	// the receiver, never decoded.
	FallbackID string `json:"-"`
}

// AssignedTo reports whether the push targets userID. A push without an
// assignee is treated as addressed to whoever receives it.
func (p PushTicket) AssignedTo(userID string) bool {
	if p.AssigneeID == nil || *p.AssigneeID == "" {
		return true
	}
	return string(*p.AssigneeID) == userID
}

// Ticket converts the push payload.
func (p PushTicket) Ticket() Ticket {
	assignee := ""
	if p.AssigneeID != nil {
		assignee = string(*p.AssigneeID)
	}
	t := NewTicket(string(p.ID), p.IssueKey, p.Summary, p.Description, assignee)
	if t.ID == "" {
		t.ID = p.FallbackID
		t.Local = true
	}
	return t
}
