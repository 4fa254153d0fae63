package tracker

import (
	"fmt"
	"strconv"

	"github.com/spec-kit/presence-desk/internal/domain"
)

// Status is a project status definition.
type Status struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Category is an issue category; the staff project uses them as teams.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is a tracker user record.
type User struct {
	ID          int64  `json:"id"`
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	MailAddress string `json:"mailAddress"`
}

// Issue is the subset of tracker issue fields the desk reads.
type Issue struct {
	ID          int64      `json:"id"`
	IssueKey    string     `json:"issueKey"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Status      *Status    `json:"status"`
	Category    []Category `json:"category"`
	Assignee    *User      `json:"assignee"`
}

// IDString returns the id in path form.
func (i Issue) IDString() string {
	return strconv.FormatInt(i.ID, 10)
}

// StatusName returns the status display name, or "".
func (i Issue) StatusName() string {
	if i.Status == nil {
		return ""
	}
	return i.Status.Name
}

// Ticket converts the issue into a desk ticket.
func (i Issue) Ticket() domain.Ticket {
	assignee := ""
	if i.Assignee != nil {
		assignee = strconv.FormatInt(i.Assignee.ID, 10)
	}
	return domain.NewTicket(i.IDString(), i.IssueKey, i.Summary, i.Description, assignee)
}

// CategoryNames lists the category names.
func (i Issue) CategoryNames() []string {
	names := make([]string, 0, len(i.Category))
	for _, c := range i.Category {
		names = append(names, c.Name)
	}
	return names
}

// IssueQuery filters GET /issues.
type IssueQuery struct {
	ProjectIDs  []string
	AssigneeIDs []string
	StatusIDs   []int64
	Sort        string
	Order       string
	// Privileged selects the admin key; the ticket queue is only visible to it.
	Privileged bool
}

// RemoteError is a non-2xx tracker response.
type RemoteError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: tracker responded %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: tracker responded %d: %s", e.Op, e.StatusCode, e.Body)
}
