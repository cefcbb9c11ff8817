package repository

import (
	"context"

	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
)

// DeleteLockResult desenlace de un intento de borrar el lock de una fuente.
type DeleteLockResult int

const (
	// LockDeleted el lock existía y fue borrado.
	LockDeleted DeleteLockResult = iota + 1
	// LockNoLongerExists no había registro para la fuente.
	LockNoLongerExists
	// LockBecameRealEntry entre la lectura y el borrado el registro pasó a ser
	// un entry real o concepto: NO se borró y el caller debe tratar la factura
	// como ya enviada.
	LockBecameRealEntry
)

// EntryRepository define el puerto de persistencia para los registros de envío.
// Cada host lo implementa sobre su propio datastore; la clave natural es
// (SourceType, SourceID) y Save tiene semántica insert-or-update sobre ella.
type EntryRepository interface {
	// GetBySource devuelve el registro de la fuente, o nil si nunca se envió.
	GetBySource(ctx context.Context, source entity.InvoiceSource) (*entity.EntryRecord, error)

	// GetByEntryID busca por id de entry remoto (estado final).
	GetByEntryID(ctx context.Context, entryID int) (*entity.EntryRecord, error)

	// SaveFinal guarda entryID+token para la fuente (insert-or-update).
	SaveFinal(ctx context.Context, source entity.InvoiceSource, entryID int, token string) (*entity.EntryRecord, error)

	// SaveConcept guarda el conceptID provisional para la fuente (insert-or-update).
	SaveConcept(ctx context.Context, source entity.InvoiceSource, conceptID int) (*entity.EntryRecord, error)

	// AcquireLock intenta escribir el marcador de envío en curso. Devuelve
	// domain.ErrLockNotAcquired si otro proceso insertó primero.
	AcquireLock(ctx context.Context, source entity.InvoiceSource) (*entity.EntryRecord, error)

	// DeleteLock borra el lock de la fuente. La comprobación "sigue siendo un
	// lock" y el borrado son una sola operación atómica en el datastore, para
	// no pisar un entry real escrito por un proceso concurrente.
	DeleteLock(ctx context.Context, source entity.InvoiceSource) (DeleteLockResult, error)

	// Delete elimina el registro de la fuente (usado cuando el remoto confirma
	// que el entry ya no existe).
	Delete(ctx context.Context, source entity.InvoiceSource) error
}
