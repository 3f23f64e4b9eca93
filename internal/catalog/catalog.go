// Package catalog applies the dashboard's product actions and assembles the
// product list and summary shown after each request.
package catalog

import (
	"context"
	"errors"

	"cremeria-raiz/internal/models"
	"cremeria-raiz/internal/storage"

	"go.uber.org/zap"
)

// User-facing messages.
const (
	MsgAddInvalid    = "Todos los campos son obligatorios y el precio debe ser mayor a 0."
	MsgAdded         = "Producto agregado exitosamente."
	MsgEditInvalid   = "Datos inválidos para editar el producto."
	MsgUpdated       = "Producto actualizado exitosamente."
	MsgEditNotFound  = "No se pudo actualizar el producto. Verifica que existe."
	MsgDeleteInvalid = "ID de producto inválido."
	MsgDeleted       = "Producto eliminado exitosamente."
	MsgDelNotFound   = "No se pudo eliminar el producto. Verifica que existe."
	MsgInternal      = "Error interno del servidor."
	MsgListFailed    = "Error al cargar los productos."
	MsgStatsFailed   = "Error al cargar las estadísticas."
)

// Outcome classifies the result of applying an Action.
type Outcome int

const (
	// OutcomeNone means nothing was attempted.
	OutcomeNone Outcome = iota
	OutcomeSuccess
	// OutcomeInvalid means validation rejected the input; nothing was written.
	OutcomeInvalid
	// OutcomeNotFound means the target id matched no row.
	OutcomeNotFound
	// OutcomeFailed means the database failed; details are only in the log.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	default:
		return "none"
	}
}

// Result is what Apply reports back to the page.
type Result struct {
	Outcome Outcome
	Message string
	// ID is the new product id after a successful add.
	ID int64
}

// IsError reports whether the result should be shown as an error.
func (r Result) IsError() bool {
	return r.Outcome == OutcomeInvalid || r.Outcome == OutcomeNotFound || r.Outcome == OutcomeFailed
}

// Store is the persistence the catalog needs.
type Store interface {
	CreateProduct(ctx context.Context, p models.Product) (int64, error)
	UpdateProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context) ([]models.Product, error)
	ProductCount(ctx context.Context) (int, error)
	UserCount(ctx context.Context) (int, error)
	LatestProductName(ctx context.Context) (string, error)
}

// Service applies product actions.
type Service struct {
	store Store
	log   *zap.Logger
}

// NewService creates a Service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, log: logger.Named("catalog")}
}

// Apply performs a single action.
func (s *Service) Apply(ctx context.Context, action Action) Result {
	switch a := action.(type) {
	case AddProduct:
		return s.add(ctx, a)
	case EditProduct:
		return s.edit(ctx, a)
	case DeleteProduct:
		return s.delete(ctx, a)
	default:
		return Result{Outcome: OutcomeNone}
	}
}

func (s *Service) add(ctx context.Context, a AddProduct) Result {
	if !a.valid() {
		return Result{Outcome: OutcomeInvalid, Message: MsgAddInvalid}
	}

	id, err := s.store.CreateProduct(ctx, models.Product{
		Name:        a.Name,
		Description: a.Description,
		Price:       a.Price,
		ImageURL:    a.ImageURL,
	})
	if err != nil {
		return s.failed(a, err)
	}
	s.log.Info("product added", zap.Int64("id", id), zap.String("nombre", a.Name))
	return Result{Outcome: OutcomeSuccess, Message: MsgAdded, ID: id}
}

func (s *Service) edit(ctx context.Context, a EditProduct) Result {
	if a.ID <= 0 || !a.valid() {
		return Result{Outcome: OutcomeInvalid, Message: MsgEditInvalid}
	}

	err := s.store.UpdateProduct(ctx, models.Product{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Price:       a.Price,
		ImageURL:    a.ImageURL,
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return Result{Outcome: OutcomeNotFound, Message: MsgEditNotFound}
	case err != nil:
		return s.failed(a, err)
	}
	s.log.Info("product updated", zap.Int64("id", a.ID))
	return Result{Outcome: OutcomeSuccess, Message: MsgUpdated, ID: a.ID}
}

func (s *Service) delete(ctx context.Context, a DeleteProduct) Result {
	if a.ID <= 0 {
		return Result{Outcome: OutcomeInvalid, Message: MsgDeleteInvalid}
	}

	err := s.store.DeleteProduct(ctx, a.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return Result{Outcome: OutcomeNotFound, Message: MsgDelNotFound}
	case err != nil:
		return s.failed(a, err)
	}
	s.log.Info("product deleted", zap.Int64("id", a.ID))
	return Result{Outcome: OutcomeSuccess, Message: MsgDeleted, ID: a.ID}
}

func (s *Service) failed(a Action, err error) Result {
	s.log.Error("product action failed", zap.String("action", a.Kind()), zap.Error(err))
	return Result{Outcome: OutcomeFailed, Message: MsgInternal}
}

// Overview is the dashboard content. Error is set when part of it could not
// be loaded; the rest is still usable.
type Overview struct {
	Products []models.Product
	Stats    models.Stats
	Error    string
}

// Overview loads the product list, newest first, and the summary figures.
func (s *Service) Overview(ctx context.Context) Overview {
	var ov Overview

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		s.log.Error("failed to load products", zap.Error(err))
		products = []models.Product{}
		ov.Error = MsgListFailed
	}
	ov.Products = products

	stats, err := s.stats(ctx)
	if err != nil {
		s.log.Error("failed to load stats", zap.Error(err))
		stats = models.Stats{LatestProduct: models.NoLatestProduct}
		if ov.Error == "" {
			ov.Error = MsgStatsFailed
		}
	}
	ov.Stats = stats
	return ov
}

func (s *Service) stats(ctx context.Context) (models.Stats, error) {
	st := models.Stats{LatestProduct: models.NoLatestProduct}

	var err error
	if st.TotalProducts, err = s.store.ProductCount(ctx); err != nil {
		return models.Stats{}, err
	}
	if st.TotalUsers, err = s.store.UserCount(ctx); err != nil {
		return models.Stats{}, err
	}
	if st.TotalProducts > 0 {
		name, err := s.store.LatestProductName(ctx)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return models.Stats{}, err
		default:
			st.LatestProduct = name
		}
	}
	return st, nil
}
