package pgsql

import (
	"github.com/jackc/pgx/v5/pgxpool"

	portsrepo "github.com/SscSPs/invoice_processing_app/internal/core/ports/repositories"
)

// NewRepositoryProvider wires the Postgres-backed repositories together
// with the blob store.
func NewRepositoryProvider(dbPool *pgxpool.Pool, blobs portsrepo.BlobStore) *portsrepo.RepositoryProvider {
	return &portsrepo.RepositoryProvider{
		InvoiceRepo: newPgxInvoiceRepository(dbPool),
		RuleRepo:    newPgxRuleRepository(dbPool),
		Blobs:       blobs,
	}
}
