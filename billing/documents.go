/*
documents.go - Invoice and bill lifecycle

Invoices track money owed to the user (draft -> sent -> paid); bills track
money the user owes (received -> scheduled -> paid). Settling a document is
the bridge into the wallet: paying a bill records a Payment transaction,
settling an invoice records a Deposit.
*/
package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerline/billing-engine/history"
)

// DocumentStore persists documents. Unlike the ledger, documents are
// mutable: status transitions update rows in place.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context, userID history.UserID, kind DocumentKind) ([]Document, error)
}

// DocumentService runs the invoice/bill status workflow.
type DocumentService struct {
	docs   DocumentStore
	wallet *Wallet
	clock  history.Clock
}

func NewDocumentService(docs DocumentStore, wallet *Wallet, clock history.Clock) *DocumentService {
	if clock == nil {
		clock = history.SystemClock()
	}
	return &DocumentService{docs: docs, wallet: wallet, clock: clock}
}

// Create registers a new document in its kind's initial status.
func (s *DocumentService) Create(ctx context.Context, doc Document) (Document, error) {
	if !doc.Amount.IsPositive() {
		return Document{}, ErrInvalidAmount
	}
	if doc.Kind != KindInvoice && doc.Kind != KindBill {
		return Document{}, fmt.Errorf("unknown document kind %q", doc.Kind)
	}

	now := s.clock.Now()
	doc.ID = uuid.NewString()
	if doc.Kind == KindInvoice {
		doc.Status = StatusDraft
	} else {
		doc.Status = StatusReceived
	}
	if doc.IssuedAt.IsZero() {
		doc.IssuedAt = now
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

// Send moves an invoice from draft to sent.
func (s *DocumentService) Send(ctx context.Context, id string) (Document, error) {
	return s.transition(ctx, id, KindInvoice, StatusDraft, StatusSent)
}

// Schedule moves a bill from received to scheduled.
func (s *DocumentService) Schedule(ctx context.Context, id string) (Document, error) {
	return s.transition(ctx, id, KindBill, StatusReceived, StatusScheduled)
}

// PayBill settles a bill: records a Payment transaction through the wallet
// and marks the bill paid.
func (s *DocumentService) PayBill(ctx context.Context, id string) (Document, error) {
	return s.settle(ctx, id, KindBill)
}

// MarkInvoicePaid settles an invoice: records a Deposit through the wallet
// and marks the invoice paid.
func (s *DocumentService) MarkInvoicePaid(ctx context.Context, id string) (Document, error) {
	return s.settle(ctx, id, KindInvoice)
}

// Get returns one document.
func (s *DocumentService) Get(ctx context.Context, id string) (Document, error) {
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	if doc == nil {
		return Document{}, ErrDocumentNotFound
	}
	return *doc, nil
}

// List returns a user's documents, optionally filtered by kind.
func (s *DocumentService) List(ctx context.Context, userID history.UserID, kind DocumentKind) ([]Document, error) {
	return s.docs.ListDocuments(ctx, userID, kind)
}

func (s *DocumentService) transition(ctx context.Context, id string, kind DocumentKind, from, to DocumentStatus) (Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if doc.Kind != kind || doc.Status != from {
		return Document{}, &TransitionError{DocumentID: id, From: doc.Status, To: to}
	}

	doc.Status = to
	doc.UpdatedAt = s.clock.Now()
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) settle(ctx context.Context, id string, kind DocumentKind) (Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if doc.Kind != kind || !doc.payable() {
		return Document{}, &TransitionError{DocumentID: id, From: doc.Status, To: StatusPaid}
	}

	description := fmt.Sprintf("%s %s: %s", doc.Kind, doc.ID, doc.Counterparty)
	if kind == KindBill {
		_, _, err = s.wallet.Pay(ctx, doc.UserID, doc.Amount, description)
	} else {
		_, _, err = s.wallet.Deposit(ctx, doc.UserID, doc.Amount, description)
	}
	if err != nil {
		return Document{}, err
	}

	now := s.clock.Now()
	doc.Status = StatusPaid
	doc.PaidAt = &now
	doc.UpdatedAt = now
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		// The payment went through; the document row is now behind the
		// ledger. Surface the error so the caller can retry the save.
		return Document{}, fmt.Errorf("mark paid after settlement: %w", err)
	}
	return doc, nil
}
