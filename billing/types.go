/*
Package billing implements the balance-mutation workflow and the
invoice/bill document lifecycle on top of the history engine.

Every balance-changing operation (deposit, withdrawal, bill payment,
invoice settlement) appends one immutable ledger transaction, updates the
materialized balance, and records a balance snapshot so the history chart
stays current.
*/
package billing

import (
	"time"

	"github.com/ledgerline/billing-engine/history"
)

// User is an account holder with a materialized live balance.
type User struct {
	ID        history.UserID
	Name      string
	Email     string
	Balance   history.Amount
	CreatedAt time.Time
}

// =============================================================================
// DOCUMENTS - Invoices (money in) and bills (money out)
// =============================================================================

type DocumentKind string

const (
	KindInvoice DocumentKind = "invoice"
	KindBill    DocumentKind = "bill"
)

type DocumentStatus string

const (
	// Invoice lifecycle: draft -> sent -> paid
	StatusDraft DocumentStatus = "draft"
	StatusSent  DocumentStatus = "sent"

	// Bill lifecycle: received -> scheduled -> paid
	StatusReceived  DocumentStatus = "received"
	StatusScheduled DocumentStatus = "scheduled"

	StatusPaid DocumentStatus = "paid"
)

type Document struct {
	ID           string
	UserID       history.UserID
	Kind         DocumentKind
	Counterparty string
	Amount       history.Amount
	Status       DocumentStatus
	DueDate      *time.Time
	IssuedAt     time.Time
	PaidAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// payable reports whether settling this document is a valid transition.
func (d Document) payable() bool {
	switch d.Kind {
	case KindBill:
		return d.Status == StatusReceived || d.Status == StatusScheduled
	case KindInvoice:
		return d.Status == StatusSent
	}
	return false
}
