package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/acumulus-sync/internal/domain"
	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
	"github.com/jhoicas/acumulus-sync/internal/domain/repository"
)

var _ repository.EntryRepository = (*EntryRepo)(nil)

// Valores centinela que codifican "lock" dentro de la fila. Solo existen en
// esta frontera: el resto del sistema ve el estado tipado EntryStateLocked.
const (
	lockEntryID = 1
	lockToken   = "_lock_"
)

// EntryRepo implementación de EntryRepository sobre PostgreSQL.
//
// Esquema:
//
//	CREATE TABLE acumulus_entries (
//	    id          UUID PRIMARY KEY,
//	    source_type TEXT NOT NULL,
//	    source_id   TEXT NOT NULL,
//	    entry_id    INTEGER,
//	    concept_id  INTEGER,
//	    token       TEXT,
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL,
//	    UNIQUE (source_type, source_id)
//	);
type EntryRepo struct {
	q Querier
}

// NewEntryRepository construye el adaptador. Pasar pool o tx (Querier).
func NewEntryRepository(q Querier) *EntryRepo {
	return &EntryRepo{q: q}
}

const entryColumns = `id, source_type, source_id, entry_id, concept_id, token, created_at, updated_at`

// GetBySource devuelve el registro de la fuente, o nil si no existe.
func (r *EntryRepo) GetBySource(ctx context.Context, source entity.InvoiceSource) (*entity.EntryRecord, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM acumulus_entries WHERE source_type = $1 AND source_id = $2`
	rec, err := r.scanOne(r.q.QueryRow(ctx, query, string(source.Type), source.ID))
	if err != nil {
		return nil, fmt.Errorf("get entry by source: %w", err)
	}
	return rec, nil
}

// GetByEntryID busca por id de entry remoto. El centinela de lock queda
// excluido para que un lock jamás aparezca como entry real.
func (r *EntryRepo) GetByEntryID(ctx context.Context, entryID int) (*entity.EntryRecord, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM acumulus_entries WHERE entry_id = $1 AND token IS DISTINCT FROM $2`
	rec, err := r.scanOne(r.q.QueryRow(ctx, query, entryID, lockToken))
	if err != nil {
		return nil, fmt.Errorf("get entry by entry id: %w", err)
	}
	return rec, nil
}

// SaveFinal guarda entryID+token (insert-or-update sobre la clave natural).
// Sobrescribe un lock o un concepto previo: es el avance normal del envío.
func (r *EntryRepo) SaveFinal(ctx context.Context, source entity.InvoiceSource, entryID int, token string) (*entity.EntryRecord, error) {
	query := `
		INSERT INTO acumulus_entries (id, source_type, source_id, entry_id, concept_id, token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULL, $5, $6, $6)
		ON CONFLICT (source_type, source_id)
		DO UPDATE SET entry_id = $4, concept_id = NULL, token = $5, updated_at = $6`
	now := time.Now()
	if _, err := r.q.Exec(ctx, query, uuid.New().String(), string(source.Type), source.ID, entryID, token, now); err != nil {
		return nil, fmt.Errorf("save final entry: %w", err)
	}
	return r.GetBySource(ctx, source)
}

// SaveConcept guarda el conceptID provisional (insert-or-update).
func (r *EntryRepo) SaveConcept(ctx context.Context, source entity.InvoiceSource, conceptID int) (*entity.EntryRecord, error) {
	query := `
		INSERT INTO acumulus_entries (id, source_type, source_id, entry_id, concept_id, token, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, $4, NULL, $5, $5)
		ON CONFLICT (source_type, source_id)
		DO UPDATE SET entry_id = NULL, concept_id = $4, token = NULL, updated_at = $5`
	now := time.Now()
	if _, err := r.q.Exec(ctx, query, uuid.New().String(), string(source.Type), source.ID, conceptID, now); err != nil {
		return nil, fmt.Errorf("save concept entry: %w", err)
	}
	return r.GetBySource(ctx, source)
}

// AcquireLock escribe el marcador de envío en curso para la fuente. Es una
// inserción pura: si ya existe CUALQUIER fila para la fuente (un lock ajeno o
// un entry real recién guardado por otro proceso) no se toca nada y el caller
// se retira con ErrLockNotAcquired. El reloj del TTL arranca en created_at.
func (r *EntryRepo) AcquireLock(ctx context.Context, source entity.InvoiceSource) (*entity.EntryRecord, error) {
	query := `
		INSERT INTO acumulus_entries (id, source_type, source_id, entry_id, concept_id, token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULL, $5, $6, $6)
		ON CONFLICT (source_type, source_id) DO NOTHING`
	now := time.Now()
	tag, err := r.q.Exec(ctx, query, uuid.New().String(), string(source.Type), source.ID, lockEntryID, lockToken, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrLockNotAcquired
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Carrera de inserción con otro proceso: el perdedor se retira.
		return nil, domain.ErrLockNotAcquired
	}
	return r.GetBySource(ctx, source)
}

// DeleteLock borra el lock de la fuente. El DELETE condicionado a los valores
// centinela es la comprobación-y-borrado atómica: si entre la lectura del
// caller y este DELETE la fila pasó a ser un entry real, el DELETE no la toca
// y la consulta posterior clasifica el desenlace.
func (r *EntryRepo) DeleteLock(ctx context.Context, source entity.InvoiceSource) (repository.DeleteLockResult, error) {
	query := `
		DELETE FROM acumulus_entries
		WHERE source_type = $1 AND source_id = $2 AND entry_id = $3 AND token = $4`
	tag, err := r.q.Exec(ctx, query, string(source.Type), source.ID, lockEntryID, lockToken)
	if err != nil {
		return 0, fmt.Errorf("delete lock: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return repository.LockDeleted, nil
	}

	rec, err := r.GetBySource(ctx, source)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return repository.LockNoLongerExists, nil
	}
	return repository.LockBecameRealEntry, nil
}

// Delete elimina el registro de la fuente sin condiciones.
func (r *EntryRepo) Delete(ctx context.Context, source entity.InvoiceSource) error {
	query := `DELETE FROM acumulus_entries WHERE source_type = $1 AND source_id = $2`
	if _, err := r.q.Exec(ctx, query, string(source.Type), source.ID); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// scanOne decodifica una fila a EntryRecord, traduciendo el centinela de lock
// al estado tipado.
func (r *EntryRepo) scanOne(row pgx.Row) (*entity.EntryRecord, error) {
	var rec entity.EntryRecord
	var sourceType string
	var entryID, conceptID *int
	var token *string
	err := row.Scan(&rec.ID, &sourceType, &rec.SourceID, &entryID, &conceptID, &token,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.SourceType = entity.SourceType(sourceType)

	switch {
	case entryID != nil && token != nil && *entryID == lockEntryID && *token == lockToken:
		rec.State = entity.EntryStateLocked
	case entryID != nil:
		rec.State = entity.EntryStateFinal
		rec.EntryID = *entryID
		if token != nil {
			rec.Token = *token
		}
	case conceptID != nil:
		rec.State = entity.EntryStateConcept
		rec.ConceptID = *conceptID
	default:
		return nil, fmt.Errorf("fila acumulus_entries sin entry_id ni concept_id (id %s)", rec.ID)
	}
	return &rec, nil
}
