package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/acumulus-sync/internal/domain"
	domacu "github.com/jhoicas/acumulus-sync/internal/domain/acumulus"
	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
	"github.com/jhoicas/acumulus-sync/internal/domain/repository"
	infraacu "github.com/jhoicas/acumulus-sync/internal/infrastructure/acumulus"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria para el motor de envío y el reconciliador
// ──────────────────────────────────────────────────────────────────────────────

var _ repository.EntryRepository = (*fakeEntryRepo)(nil)

// fakeEntryRepo entry store en memoria con la misma semántica de lock que el
// adaptador PostgreSQL: un registro por fuente, DeleteLock condicionado.
type fakeEntryRepo struct {
	recs  map[string]*entity.EntryRecord
	calls []string

	acquireErr         error
	saveFinalErr       error
	saveConceptErr     error
	deleteLockOverride repository.DeleteLockResult // 0 = comportamiento normal
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{recs: map[string]*entity.EntryRecord{}}
}

func key(source entity.InvoiceSource) string {
	return string(source.Type) + "/" + source.ID
}

func (f *fakeEntryRepo) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeEntryRepo) GetBySource(ctx context.Context, source entity.InvoiceSource) (*entity.EntryRecord, error) {
	f.record("GetBySource")
	rec, ok := f.recs[key(source)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeEntryRepo) GetByEntryID(ctx context.Context, entryID int) (*entity.EntryRecord, error) {
	f.record("GetByEntryID")
	for _, rec := range f.recs {
		if rec.State == entity.EntryStateFinal && rec.EntryID == entryID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeEntryRepo) SaveFinal(ctx context.Context, source entity.InvoiceSource, entryID int, token string) (*entity.EntryRecord, error) {
	f.record("SaveFinal")
	if f.saveFinalErr != nil {
		return nil, f.saveFinalErr
	}
	rec := &entity.EntryRecord{
		ID: "fake", SourceType: source.Type, SourceID: source.ID,
		State: entity.EntryStateFinal, EntryID: entryID, Token: token,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.recs[key(source)] = rec
	cp := *rec
	return &cp, nil
}

func (f *fakeEntryRepo) SaveConcept(ctx context.Context, source entity.InvoiceSource, conceptID int) (*entity.EntryRecord, error) {
	f.record("SaveConcept")
	if f.saveConceptErr != nil {
		return nil, f.saveConceptErr
	}
	rec := &entity.EntryRecord{
		ID: "fake", SourceType: source.Type, SourceID: source.ID,
		State: entity.EntryStateConcept, ConceptID: conceptID,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.recs[key(source)] = rec
	cp := *rec
	return &cp, nil
}

func (f *fakeEntryRepo) AcquireLock(ctx context.Context, source entity.InvoiceSource) (*entity.EntryRecord, error) {
	f.record("AcquireLock")
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	if _, ok := f.recs[key(source)]; ok {
		// Inserción pura como en el adaptador real: cualquier fila existente
		// (otro lock o un entry recién guardado) hace perder la carrera.
		return nil, domain.ErrLockNotAcquired
	}
	rec := &entity.EntryRecord{
		ID: "fake", SourceType: source.Type, SourceID: source.ID,
		State: entity.EntryStateLocked,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.recs[key(source)] = rec
	cp := *rec
	return &cp, nil
}

func (f *fakeEntryRepo) DeleteLock(ctx context.Context, source entity.InvoiceSource) (repository.DeleteLockResult, error) {
	f.record("DeleteLock")
	if f.deleteLockOverride != 0 {
		return f.deleteLockOverride, nil
	}
	rec, ok := f.recs[key(source)]
	if ok && rec.IsLock() {
		delete(f.recs, key(source))
		return repository.LockDeleted, nil
	}
	if !ok {
		return repository.LockNoLongerExists, nil
	}
	return repository.LockBecameRealEntry, nil
}

func (f *fakeEntryRepo) Delete(ctx context.Context, source entity.InvoiceSource) error {
	f.record("Delete")
	delete(f.recs, key(source))
	return nil
}

// get acceso directo para aserciones.
func (f *fakeEntryRepo) get(source entity.InvoiceSource) *entity.EntryRecord {
	return f.recs[key(source)]
}

// seedLock siembra un lock con la edad indicada.
func (f *fakeEntryRepo) seedLock(source entity.InvoiceSource, age time.Duration) {
	f.recs[key(source)] = &entity.EntryRecord{
		ID: "fake", SourceType: source.Type, SourceID: source.ID,
		State:     entity.EntryStateLocked,
		CreatedAt: time.Now().Add(-age), UpdatedAt: time.Now().Add(-age),
	}
}

// seedFinal siembra un registro final.
func (f *fakeEntryRepo) seedFinal(source entity.InvoiceSource, entryID int, token string) {
	f.recs[key(source)] = &entity.EntryRecord{
		ID: "fake", SourceType: source.Type, SourceID: source.ID,
		State: entity.EntryStateFinal, EntryID: entryID, Token: token,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
}

// seedConcept siembra un registro en fase concepto.
func (f *fakeEntryRepo) seedConcept(source entity.InvoiceSource, conceptID int) {
	f.recs[key(source)] = &entity.EntryRecord{
		ID: "fake", SourceType: source.Type, SourceID: source.ID,
		State: entity.EntryStateConcept, ConceptID: conceptID,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
}

var _ infraacu.ApiClient = (*fakeApiClient)(nil)

// fakeApiClient puerto Acumulus con respuestas programables por test.
type fakeApiClient struct {
	invoiceAddFn   func(ctx context.Context, inv *entity.Invoice, source entity.InvoiceSource) (*infraacu.InvoiceAddResult, error)
	setDeleteFn    func(ctx context.Context, entryID int, status infraacu.EntryDeleteStatus) (*infraacu.DeleteStatusResult, error)
	getEntryFn     func(ctx context.Context, entryID int, token string) (*infraacu.EntryInfo, error)
	getConceptFn   func(ctx context.Context, conceptID int) (*infraacu.ConceptInfo, error)
	invoiceAddCnt  int
	deletedEntries []int
}

func (f *fakeApiClient) InvoiceAdd(ctx context.Context, inv *entity.Invoice, source entity.InvoiceSource) (*infraacu.InvoiceAddResult, error) {
	f.invoiceAddCnt++
	if f.invoiceAddFn != nil {
		return f.invoiceAddFn(ctx, inv, source)
	}
	return &infraacu.InvoiceAddResult{EntryID: 123, Token: "tok-123"}, nil
}

func (f *fakeApiClient) SetDeleteStatus(ctx context.Context, entryID int, status infraacu.EntryDeleteStatus) (*infraacu.DeleteStatusResult, error) {
	f.deletedEntries = append(f.deletedEntries, entryID)
	if f.setDeleteFn != nil {
		return f.setDeleteFn(ctx, entryID, status)
	}
	return &infraacu.DeleteStatusResult{EntryID: entryID, Deleted: status == infraacu.EntryDelete}, nil
}

func (f *fakeApiClient) GetEntry(ctx context.Context, entryID int, token string) (*infraacu.EntryInfo, error) {
	if f.getEntryFn != nil {
		return f.getEntryFn(ctx, entryID, token)
	}
	return &infraacu.EntryInfo{EntryID: entryID, Token: token}, nil
}

func (f *fakeApiClient) GetConceptInfo(ctx context.Context, conceptID int) (*infraacu.ConceptInfo, error) {
	if f.getConceptFn != nil {
		return f.getConceptFn(ctx, conceptID)
	}
	return &infraacu.ConceptInfo{ConceptID: conceptID}, nil
}

var _ InvoiceBuilder = (*fakeBuilder)(nil)

// fakeBuilder construye siempre el mismo documento configurado. buildFn
// permite entrelazar trabajo de otro proceso durante la construcción.
type fakeBuilder struct {
	inv     *entity.Invoice
	msgs    domacu.Messages
	err     error
	builds  int
	buildFn func()
}

func (f *fakeBuilder) BuildInvoice(ctx context.Context, source entity.InvoiceSource) (*entity.Invoice, domacu.Messages, error) {
	f.builds++
	if f.buildFn != nil {
		f.buildFn()
	}
	if f.err != nil {
		return nil, nil, f.err
	}
	inv := f.inv
	if inv == nil {
		inv = validInvoice()
	}
	return inv, f.msgs, nil
}

var _ Notifier = (*fakeNotifier)(nil)

// fakeNotifier registra cada notificación enviada.
type fakeNotifier struct {
	sent []*SendResult
	err  error
}

func (f *fakeNotifier) SendInvoiceAddResult(ctx context.Context, result *SendResult) error {
	f.sent = append(f.sent, result)
	return f.err
}

var _ OrderReader = (*fakeOrderReader)(nil)

// fakeOrderReader devuelve el pedido configurado para cualquier fuente.
type fakeOrderReader struct {
	order *entity.ShopOrder
	err   error
}

func (f *fakeOrderReader) GetOrder(ctx context.Context, source entity.InvoiceSource) (*entity.ShopOrder, error) {
	return f.order, f.err
}

func (f *fakeOrderReader) ListSourcesByID(ctx context.Context, typ entity.SourceType, fromID, toID string) ([]entity.InvoiceSource, error) {
	return nil, fmt.Errorf("no implementado en el fake")
}

func (f *fakeOrderReader) ListSourcesByDate(ctx context.Context, typ entity.SourceType, from, to time.Time) ([]entity.InvoiceSource, error) {
	return nil, fmt.Errorf("no implementado en el fake")
}

// ──────────────────────────────────────────────────────────────────────────────
// Datos de prueba
// ──────────────────────────────────────────────────────────────────────────────

func orderSource(id string) entity.InvoiceSource {
	return entity.InvoiceSource{Type: entity.SourceTypeOrder, ID: id}
}

// validInvoice documento de una línea: 2 × 50.00 al 21% → 121.00 IVA incluido.
func validInvoice() *entity.Invoice {
	return &entity.Invoice{
		Customer:    entity.InvoiceCustomer{FullName: "Cliente Prueba", Email: "c@example.com"},
		Description: "Order 1042",
		IssueDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Lines: []entity.InvoiceLine{{
			Product:   "Producto A",
			Quantity:  decimal.NewFromInt(2),
			UnitPrice: decimal.RequireFromString("50.00"),
			VATRate:   decimal.NewFromInt(21),
		}},
	}
}

// zeroInvoice documento con una línea de importe cero.
func zeroInvoice() *entity.Invoice {
	inv := validInvoice()
	inv.Lines[0].UnitPrice = decimal.Zero
	return inv
}

// emptyInvoice documento sin líneas.
func emptyInvoice() *entity.Invoice {
	inv := validInvoice()
	inv.Lines = nil
	return inv
}
