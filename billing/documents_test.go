package billing_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/billing-engine/billing"
	"github.com/ledgerline/billing-engine/history"
	"github.com/ledgerline/billing-engine/history/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// memDocs is a minimal in-memory DocumentStore for workflow tests.
type memDocs struct {
	mu   sync.Mutex
	docs map[string]billing.Document
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string]billing.Document)}
}

func (m *memDocs) SaveDocument(_ context.Context, doc billing.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *memDocs) GetDocument(_ context.Context, id string) (*billing.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (m *memDocs) ListDocuments(_ context.Context, userID history.UserID, kind billing.DocumentKind) ([]billing.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []billing.Document
	for _, doc := range m.docs {
		if doc.UserID != userID {
			continue
		}
		if kind != "" && doc.Kind != kind {
			continue
		}
		result = append(result, doc)
	}
	return result, nil
}

func newTestDocumentService(t *testing.T) (*billing.DocumentService, *billing.Wallet, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	recon := history.NewReconstructor(mem, history.FixedClock(testNow), nil)
	wallet := billing.NewWallet(mem, recon, history.FixedClock(testNow), nil)
	service := billing.NewDocumentService(newMemDocs(), wallet, history.FixedClock(testNow))
	return service, wallet, mem
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestDocumentService_Create_InitialStatusByKind(t *testing.T) {
	// GIVEN: A new invoice and a new bill
	// THEN: The invoice starts draft, the bill starts received

	service, _, _ := newTestDocumentService(t)
	ctx := context.Background()

	invoice, err := service.Create(ctx, billing.Document{
		UserID: "u-1", Kind: billing.KindInvoice, Counterparty: "acme corp", Amount: usd(400),
	})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusDraft, invoice.Status)
	assert.NotEmpty(t, invoice.ID)
	assert.Equal(t, testNow, invoice.IssuedAt)

	bill, err := service.Create(ctx, billing.Document{
		UserID: "u-1", Kind: billing.KindBill, Counterparty: "electric co", Amount: usd(150),
	})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusReceived, bill.Status)
}

func TestDocumentService_Create_RejectsNonPositiveAmount(t *testing.T) {
	service, _, _ := newTestDocumentService(t)

	_, err := service.Create(context.Background(), billing.Document{
		UserID: "u-1", Kind: billing.KindBill, Counterparty: "x", Amount: usd(0),
	})
	assert.ErrorIs(t, err, billing.ErrInvalidAmount)
}

func TestDocumentService_InvoiceWorkflow_DraftSentPaid(t *testing.T) {
	// GIVEN: A draft invoice for 400
	// WHEN: Sending it, then marking it paid
	// THEN: Status walks draft -> sent -> paid, and marking paid records a
	//       deposit on the ledger

	service, _, mem := newTestDocumentService(t)
	ctx := context.Background()

	invoice, err := service.Create(ctx, billing.Document{
		UserID: "u-1", Kind: billing.KindInvoice, Counterparty: "acme corp", Amount: usd(400),
	})
	require.NoError(t, err)

	sent, err := service.Send(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusSent, sent.Status)

	paid, err := service.MarkInvoicePaid(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	balance, err := mem.CurrentBalance(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(400), balance.Value.IntPart())
}

func TestDocumentService_BillWorkflow_PayDebitsWallet(t *testing.T) {
	// GIVEN: A funded account and a received bill for 150
	// WHEN: Scheduling then paying the bill
	// THEN: The wallet records a payment and the bill is marked paid

	service, wallet, mem := newTestDocumentService(t)
	ctx := context.Background()

	_, _, err := wallet.Deposit(ctx, "u-1", usd(500), "funding")
	require.NoError(t, err)

	bill, err := service.Create(ctx, billing.Document{
		UserID: "u-1", Kind: billing.KindBill, Counterparty: "electric co", Amount: usd(150),
	})
	require.NoError(t, err)

	scheduled, err := service.Schedule(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusScheduled, scheduled.Status)

	paid, err := service.PayBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, paid.Status)

	balance, err := mem.CurrentBalance(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(350), balance.Value.IntPart())
}

func TestDocumentService_PayBill_InsufficientFundsLeavesBillUnpaid(t *testing.T) {
	// GIVEN: A bill larger than the balance
	// WHEN: Paying it
	// THEN: The wallet rejects; the bill stays in its current status

	service, wallet, _ := newTestDocumentService(t)
	ctx := context.Background()

	_, _, err := wallet.Deposit(ctx, "u-1", usd(100), "")
	require.NoError(t, err)

	bill, err := service.Create(ctx, billing.Document{
		UserID: "u-1", Kind: billing.KindBill, Counterparty: "electric co", Amount: usd(500),
	})
	require.NoError(t, err)

	_, err = service.PayBill(ctx, bill.ID)
	assert.ErrorIs(t, err, billing.ErrInsufficientFunds)

	current, err := service.Get(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusReceived, current.Status)
	assert.Nil(t, current.PaidAt)
}

// =============================================================================
// TRANSITION GUARDS
// =============================================================================

func TestDocumentService_InvalidTransitionsRejected(t *testing.T) {
	service, wallet, _ := newTestDocumentService(t)
	ctx := context.Background()

	_, _, err := wallet.Deposit(ctx, "u-1", usd(1000), "")
	require.NoError(t, err)

	invoice, err := service.Create(ctx, billing.Document{
		UserID: "u-1", Kind: billing.KindInvoice, Counterparty: "acme", Amount: usd(100),
	})
	require.NoError(t, err)

	// A draft invoice cannot be marked paid before it is sent.
	_, err = service.MarkInvoicePaid(ctx, invoice.ID)
	assert.ErrorIs(t, err, billing.ErrInvalidTransition)

	// Scheduling only applies to bills.
	_, err = service.Schedule(ctx, invoice.ID)
	assert.ErrorIs(t, err, billing.ErrInvalidTransition)

	// Paying twice is rejected.
	_, err = service.Send(ctx, invoice.ID)
	require.NoError(t, err)
	_, err = service.MarkInvoicePaid(ctx, invoice.ID)
	require.NoError(t, err)
	_, err = service.MarkInvoicePaid(ctx, invoice.ID)
	assert.ErrorIs(t, err, billing.ErrInvalidTransition)
}

func TestDocumentService_Get_UnknownDocument(t *testing.T) {
	service, _, _ := newTestDocumentService(t)

	_, err := service.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, billing.ErrDocumentNotFound)
}
