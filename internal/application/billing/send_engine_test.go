package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/acumulus-sync/internal/domain"
	domacu "github.com/jhoicas/acumulus-sync/internal/domain/acumulus"
	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
	"github.com/jhoicas/acumulus-sync/internal/domain/repository"
	infraacu "github.com/jhoicas/acumulus-sync/internal/infrastructure/acumulus"
	"github.com/jhoicas/acumulus-sync/pkg/logger"
)

// newTestEngine motor con fakes y configuración dada.
func newTestEngine(repo *fakeEntryRepo, client *fakeApiClient, builder *fakeBuilder, notifier *fakeNotifier, cfg Config) *SendEngine {
	return NewSendEngine(repo, client, builder, notifier, cfg, logger.Nop())
}

// ──────────────────────────────────────────────────────────────────────────────
// Envío nuevo (happy path)
// ──────────────────────────────────────────────────────────────────────────────

func TestSend_FuenteNueva_PersisteEntryFinal(t *testing.T) {
	repo := newFakeEntryRepo()
	client := &fakeApiClient{}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.Equal(t, SendStatusNew, res.Status)
	assert.True(t, res.Submitted, "debe haberse llamado invoice_add")
	assert.Equal(t, 123, res.EntryID)
	assert.Equal(t, "tok-123", res.Token)
	assert.False(t, res.HasError())

	rec := repo.get(orderSource("1042"))
	require.NotNil(t, rec, "debe quedar registro local")
	assert.Equal(t, entity.EntryStateFinal, rec.State)
	assert.Equal(t, 123, rec.EntryID)
	assert.Equal(t, "tok-123", rec.Token)
}

func TestSend_FuenteNueva_RespuestaConcepto(t *testing.T) {
	repo := newFakeEntryRepo()
	client := &fakeApiClient{
		invoiceAddFn: func(ctx context.Context, inv *entity.Invoice, source entity.InvoiceSource) (*infraacu.InvoiceAddResult, error) {
			return &infraacu.InvoiceAddResult{ConceptID: 900}, nil
		},
	}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.Equal(t, 900, res.ConceptID)
	assert.Zero(t, res.EntryID)

	rec := repo.get(orderSource("1042"))
	require.NotNil(t, rec)
	assert.Equal(t, entity.EntryStateConcept, rec.State)
	assert.Equal(t, 900, rec.ConceptID)
}

// Idempotencia: el segundo envío de la misma fuente no vuelve a llamar al API.
func TestSend_SegundoEnvio_NoReenvía(t *testing.T) {
	repo := newFakeEntryRepo()
	client := &fakeApiClient{}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	_, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)
	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.Equal(t, SendStatusNotSentAlreadySent, res.Status)
	assert.False(t, res.Submitted)
	assert.Equal(t, 1, client.invoiceAddCnt, "invoice_add debe haberse llamado una sola vez")
}

// ──────────────────────────────────────────────────────────────────────────────
// Cortes previos al envío
// ──────────────────────────────────────────────────────────────────────────────

func TestSend_DryRun_SinEfectosLaterales(t *testing.T) {
	repo := newFakeEntryRepo()
	client := &fakeApiClient{}
	builder := &fakeBuilder{}
	engine := newTestEngine(repo, client, builder, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, true)
	require.NoError(t, err)

	assert.Equal(t, SendStatusNotSentDryRun, res.Status)
	assert.Equal(t, 1, builder.builds, "el dry run sí construye el documento")
	assert.Zero(t, client.invoiceAddCnt, "el dry run no llama al API")
	assert.Nil(t, repo.get(orderSource("1042")), "el dry run no toca el entry store")
}

func TestSend_ErroresLocalesDelBuilder_Corta(t *testing.T) {
	repo := newFakeEntryRepo()
	client := &fakeApiClient{}
	var msgs domacu.Messages
	msgs.AddError(domacu.CodeLocal, "pedido sin cliente")
	engine := newTestEngine(repo, client, &fakeBuilder{msgs: msgs}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.Equal(t, SendStatusNotSentLocalErrors, res.Status)
	assert.Zero(t, client.invoiceAddCnt)
	assert.Nil(t, repo.get(orderSource("1042")))
}

func TestSend_SinLineas_Corta(t *testing.T) {
	repo := newFakeEntryRepo()
	client := &fakeApiClient{}
	engine := newTestEngine(repo, client, &fakeBuilder{inv: emptyInvoice()}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.Equal(t, SendStatusNotSentNoLines, res.Status)
	assert.Zero(t, client.invoiceAddCnt)
}

func TestSend_TotalCero_SegunConfiguracion(t *testing.T) {
	// Apagado (default): se corta.
	repo := newFakeEntryRepo()
	client := &fakeApiClient{}
	engine := newTestEngine(repo, client, &fakeBuilder{inv: zeroInvoice()}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)
	assert.Equal(t, SendStatusNotSentZeroAmount, res.Status)
	assert.Zero(t, client.invoiceAddCnt)

	// Encendido: se envía normalmente.
	repo2 := newFakeEntryRepo()
	client2 := &fakeApiClient{}
	engine2 := newTestEngine(repo2, client2, &fakeBuilder{inv: zeroInvoice()}, &fakeNotifier{}, Config{SendEmptyInvoices: true})

	res2, err := engine2.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)
	assert.True(t, res2.Submitted)
	assert.Equal(t, 1, client2.invoiceAddCnt)
}

// ──────────────────────────────────────────────────────────────────────────────
// Modo test
// ──────────────────────────────────────────────────────────────────────────────

func TestSend_ModoTest_SimulaSinTocarNada(t *testing.T) {
	repo := newFakeEntryRepo()
	// Registro previo que en modo normal cortaría el envío: en modo test ni se lee.
	repo.seedFinal(orderSource("1042"), 55, "tok-55")

	client := &fakeApiClient{}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{TestMode: true})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.Equal(t, SendStatusTestMode, res.Status)
	assert.Zero(t, client.invoiceAddCnt, "modo test no llama al API")
	assert.Empty(t, repo.calls, "modo test no toca el entry store")
}

// ──────────────────────────────────────────────────────────────────────────────
// Protocolo de lock
// ──────────────────────────────────────────────────────────────────────────────

func TestSend_LockVigente_NoEnvía(t *testing.T) {
	repo := newFakeEntryRepo()
	repo.seedLock(orderSource("1042"), 5*time.Second) // bien dentro del TTL de 40s

	client := &fakeApiClient{}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.Equal(t, SendStatusNotSentAlreadyLocked, res.Status)
	assert.Zero(t, client.invoiceAddCnt)
}

func TestSend_LockExpirado_SeRecuperaYEnvía(t *testing.T) {
	repo := newFakeEntryRepo()
	repo.seedLock(orderSource("1042"), 50*time.Second) // más viejo que el TTL de 40s

	client := &fakeApiClient{}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.Equal(t, SendStatusLockExpired, res.Status)
	assert.True(t, res.Submitted)
	assert.Equal(t, 123, res.EntryID)

	rec := repo.get(orderSource("1042"))
	require.NotNil(t, rec)
	assert.Equal(t, entity.EntryStateFinal, rec.State)
}

func TestSend_LockExpirado_SeConvirtioEnEntryReal(t *testing.T) {
	repo := newFakeEntryRepo()
	repo.seedLock(orderSource("1042"), 50*time.Second)
	// Entre la lectura y el DeleteLock otro proceso completó el envío.
	repo.deleteLockOverride = repository.LockBecameRealEntry

	client := &fakeApiClient{}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.Equal(t, SendStatusNotSentAlreadySent, res.Status)
	assert.Zero(t, client.invoiceAddCnt, "el perdedor de la carrera no debe enviar")
}

func TestSend_CarreraDeLock_ElPerdedorSeRetira(t *testing.T) {
	repo := newFakeEntryRepo()
	repo.acquireErr = domain.ErrLockNotAcquired

	client := &fakeApiClient{}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.Equal(t, SendStatusNotSentLockNotAcquired, res.Status)
	assert.Zero(t, client.invoiceAddCnt)
}

// Dos envíos nuevos de la misma fuente entrelazados: ambos observan "sin
// registro", el ganador completa su envío mientras el perdedor aún construye
// el documento. El perdedor debe retirarse al no poder insertar el lock, sin
// pisar el registro final del ganador y sin segunda llamada remota.
func TestSend_CarreraDeEnviosNuevos_UnSoloEnvioRemoto(t *testing.T) {
	repo := newFakeEntryRepo()
	client := &fakeApiClient{}
	winner := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	loserBuilder := &fakeBuilder{}
	loserBuilder.buildFn = func() {
		res, err := winner.Send(context.Background(), orderSource("1042"), false, false)
		require.NoError(t, err)
		require.Equal(t, SendStatusNew, res.Status)
	}
	loser := newTestEngine(repo, client, loserBuilder, &fakeNotifier{}, Config{})

	res, err := loser.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.Equal(t, SendStatusNotSentLockNotAcquired, res.Status)
	assert.Equal(t, 1, client.invoiceAddCnt, "solo el ganador debe llamar invoice_add")

	rec := repo.get(orderSource("1042"))
	require.NotNil(t, rec)
	assert.Equal(t, entity.EntryStateFinal, rec.State, "el registro del ganador no debe ser pisado")
	assert.Equal(t, 123, rec.EntryID)
	assert.Equal(t, "tok-123", rec.Token)
}

// ──────────────────────────────────────────────────────────────────────────────
// Desenlaces del envío remoto
// ──────────────────────────────────────────────────────────────────────────────

func TestSend_FalloDeTransporte_RetieneElLock(t *testing.T) {
	repo := newFakeEntryRepo()
	client := &fakeApiClient{
		invoiceAddFn: func(ctx context.Context, inv *entity.Invoice, source entity.InvoiceSource) (*infraacu.InvoiceAddResult, error) {
			return nil, errors.New("connection reset by peer")
		},
	}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.True(t, res.HasError())
	assert.False(t, res.Submitted)

	// Desenlace desconocido: el lock queda para inspección manual.
	rec := repo.get(orderSource("1042"))
	require.NotNil(t, rec)
	assert.True(t, rec.IsLock(), "el lock debe quedar retenido tras fallo de transporte")
}

func TestSend_RechazoDelAPI_LiberaElLock(t *testing.T) {
	repo := newFakeEntryRepo()
	client := &fakeApiClient{
		invoiceAddFn: func(ctx context.Context, inv *entity.Invoice, source entity.InvoiceSource) (*infraacu.InvoiceAddResult, error) {
			var msgs domacu.Messages
			msgs.AddError(domacu.CodeRemote, "400 invalid vat rate")
			return &infraacu.InvoiceAddResult{Messages: msgs}, nil
		},
	}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.True(t, res.HasError())
	assert.True(t, res.Submitted)
	assert.Nil(t, repo.get(orderSource("1042")), "el rechazo del API debe liberar el lock")
}

func TestSend_RespuestaAmbigua_AvisaYNoAvanza(t *testing.T) {
	repo := newFakeEntryRepo()
	client := &fakeApiClient{
		invoiceAddFn: func(ctx context.Context, inv *entity.Invoice, source entity.InvoiceSource) (*infraacu.InvoiceAddResult, error) {
			return &infraacu.InvoiceAddResult{}, nil // sin entryid ni conceptid
		},
	}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)

	assert.True(t, res.HasWarning())
	assert.False(t, res.HasError())
	assert.Zero(t, res.EntryID)
	assert.Zero(t, res.ConceptID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Reenvío forzado
// ──────────────────────────────────────────────────────────────────────────────

func TestSend_Forzado_MarcaBorradoElEntryAnterior(t *testing.T) {
	repo := newFakeEntryRepo()
	repo.seedFinal(orderSource("1042"), 55, "tok-55")

	client := &fakeApiClient{}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), true, false)
	require.NoError(t, err)

	assert.Equal(t, SendStatusForced, res.Status)
	assert.Equal(t, 123, res.EntryID, "el nuevo entry reemplaza al anterior")
	assert.Equal(t, []int{55}, client.deletedEntries, "debe marcarse borrado el entry reemplazado")
	assert.False(t, res.HasError())

	rec := repo.get(orderSource("1042"))
	require.NotNil(t, rec)
	assert.Equal(t, 123, rec.EntryID)
}

func TestSend_Forzado_FalloDelBorradoAnteriorDegradaAAviso(t *testing.T) {
	repo := newFakeEntryRepo()
	repo.seedFinal(orderSource("1042"), 55, "tok-55")

	client := &fakeApiClient{
		setDeleteFn: func(ctx context.Context, entryID int, status infraacu.EntryDeleteStatus) (*infraacu.DeleteStatusResult, error) {
			var msgs domacu.Messages
			msgs.AddError(domacu.CodeNotFound, "404 entry no longer exists")
			return &infraacu.DeleteStatusResult{EntryID: entryID, Messages: msgs}, nil
		},
	}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), true, false)
	require.NoError(t, err)

	// El envío nuevo es válido: el fallo de limpieza es aviso, no error.
	assert.False(t, res.HasError())
	assert.True(t, res.HasWarning())
	assert.Equal(t, 123, res.EntryID)
}

// Un reenvío forzado rechazado por el API no puede destruir el registro del
// entry que sigue existiendo en Acumulus: sin él la fuente parecería nunca
// enviada y el siguiente disparador la facturaría por segunda vez.
func TestSend_Forzado_RechazoDelAPIConservaElEntryAnterior(t *testing.T) {
	repo := newFakeEntryRepo()
	repo.seedFinal(orderSource("1042"), 55, "tok-55")

	client := &fakeApiClient{
		invoiceAddFn: func(ctx context.Context, inv *entity.Invoice, source entity.InvoiceSource) (*infraacu.InvoiceAddResult, error) {
			var msgs domacu.Messages
			msgs.AddError(domacu.CodeRemote, "400 invalid vat rate")
			return &infraacu.InvoiceAddResult{Messages: msgs}, nil
		},
	}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), true, false)
	require.NoError(t, err)

	assert.True(t, res.HasError())
	assert.Empty(t, client.deletedEntries, "el entry anterior solo se marca borrado tras un reenvío aceptado")

	rec := repo.get(orderSource("1042"))
	require.NotNil(t, rec, "el registro final previo debe sobrevivir al fracaso")
	assert.Equal(t, entity.EntryStateFinal, rec.State)
	assert.Equal(t, 55, rec.EntryID)
	assert.Equal(t, "tok-55", rec.Token)
}

// Lo mismo ante un fallo de transporte: desenlace desconocido, el registro
// previo se conserva para la reconciliación.
func TestSend_Forzado_FalloDeTransporteConservaElEntryAnterior(t *testing.T) {
	repo := newFakeEntryRepo()
	repo.seedFinal(orderSource("1042"), 55, "tok-55")

	client := &fakeApiClient{
		invoiceAddFn: func(ctx context.Context, inv *entity.Invoice, source entity.InvoiceSource) (*infraacu.InvoiceAddResult, error) {
			return nil, errors.New("connection reset by peer")
		},
	}
	engine := newTestEngine(repo, client, &fakeBuilder{}, &fakeNotifier{}, Config{})

	res, err := engine.Send(context.Background(), orderSource("1042"), true, false)
	require.NoError(t, err)
	assert.True(t, res.HasError())

	rec := repo.get(orderSource("1042"))
	require.NotNil(t, rec)
	assert.Equal(t, 55, rec.EntryID)
	assert.Equal(t, "tok-55", rec.Token)
}

// ──────────────────────────────────────────────────────────────────────────────
// Notificaciones
// ──────────────────────────────────────────────────────────────────────────────

func TestSend_Notificacion_SoloConErroresOAvisos(t *testing.T) {
	// Envío limpio sin AlwaysNotify: no notifica.
	notifier := &fakeNotifier{}
	engine := newTestEngine(newFakeEntryRepo(), &fakeApiClient{}, &fakeBuilder{}, notifier, Config{})
	_, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)
	assert.Empty(t, notifier.sent)

	// Fallo de transporte: sí notifica.
	notifier2 := &fakeNotifier{}
	client := &fakeApiClient{
		invoiceAddFn: func(ctx context.Context, inv *entity.Invoice, source entity.InvoiceSource) (*infraacu.InvoiceAddResult, error) {
			return nil, errors.New("timeout")
		},
	}
	engine2 := newTestEngine(newFakeEntryRepo(), client, &fakeBuilder{}, notifier2, Config{})
	_, err = engine2.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)
	require.Len(t, notifier2.sent, 1)
	assert.True(t, notifier2.sent[0].HasError())
}

func TestSend_Notificacion_AlwaysNotify(t *testing.T) {
	notifier := &fakeNotifier{}
	engine := newTestEngine(newFakeEntryRepo(), &fakeApiClient{}, &fakeBuilder{}, notifier, Config{AlwaysNotify: true})

	_, err := engine.Send(context.Background(), orderSource("1042"), false, false)
	require.NoError(t, err)
	assert.Len(t, notifier.sent, 1, "con AlwaysNotify también se notifica el envío limpio")
}
