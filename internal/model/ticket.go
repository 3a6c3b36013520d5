// internal/model/ticket.go
package model

import "time"

const TicketStatusOpen = "open"

// Priority of a support ticket.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of low, medium or high.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Ticket struct {
	ID         int64     `db:"id" json:"id"`
	CustomerID int64     `db:"customer_id" json:"customer_id"`
	Issue      string    `db:"issue" json:"issue"`
	Status     string    `db:"status" json:"status"`
	Priority   Priority  `db:"priority" json:"priority"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CustomerHistory is a customer together with its tickets, newest first.
type CustomerHistory struct {
	Customer Customer `json:"customer"`
	Tickets  []Ticket `json:"tickets"`
}
