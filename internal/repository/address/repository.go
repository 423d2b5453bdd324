package address

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/kitchen/internal/database"
	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/kitchen/repository/address")

// Repository reads saved delivery addresses.
type Repository struct {
	writer bun.IDB
	reader bun.IDB
}

var _ port.AddressBook = (*Repository)(nil)

// NewRepository wires an address book repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// GetByID loads an address by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.AddressBook, error) {
	ctx, span := repoTracer.Start(ctx, "AddressRepository.GetByID", trace.WithAttributes(attribute.Int64("address.id", id)))
	defer span.End()

	addr := new(entity.AddressBook)
	err := r.reader.NewSelect().Model(addr).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, port.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return addr, nil
}

// Insert saves a new address.
func (r *Repository) Insert(ctx context.Context, addr *entity.AddressBook) error {
	_, err := r.writer.NewInsert().Model(addr).Exec(ctx)
	return err
}
