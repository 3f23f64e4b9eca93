package storage

import (
	"context"
	"database/sql"
	"time"

	"cremeria-raiz/internal/models"
)

const productColumns = `id, nombre, descripcion, precio, imagen_url, created_at, updated_at`

// productRow holds the scan targets for productColumns.
type productRow struct {
	p         models.Product
	imageURL  sql.NullString
	updatedAt sql.NullTime
}

func (r *productRow) dest() []any {
	return []any{&r.p.ID, &r.p.Name, &r.p.Description, &r.p.Price, &r.imageURL, &r.p.CreatedAt, &r.updatedAt}
}

func (r *productRow) product() models.Product {
	p := r.p
	p.ImageURL = r.imageURL.String
	if r.updatedAt.Valid {
		t := r.updatedAt.Time
		p.UpdatedAt = &t
	}
	return p
}

// nullable maps an empty optional text field to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateProduct inserts a product and returns its new identifier.
func (db *DB) CreateProduct(ctx context.Context, p models.Product) (int64, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	res, err := db.Execute(ctx, `
		INSERT INTO productos (nombre, descripcion, precio, imagen_url, created_at)
		VALUES (:nombre, :descripcion, :precio, :imagen_url, :created_at)`,
		Params{
			"nombre":      p.Name,
			"descripcion": p.Description,
			"precio":      p.Price,
			"imagen_url":  nullable(p.ImageURL),
			"created_at":  p.CreatedAt.UTC(),
		},
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertID, nil
}

// GetProduct retrieves a single product by ID.
func (db *DB) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var row productRow
	err := db.FetchOne(ctx,
		`SELECT `+productColumns+` FROM productos WHERE id = :id`,
		Params{"id": id}, row.dest()...)
	if err != nil {
		return nil, err
	}
	p := row.product()
	return &p, nil
}

// UpdateProduct overwrites the mutable fields of a product.
// It returns ErrNotFound when no row has the product's ID.
func (db *DB) UpdateProduct(ctx context.Context, p models.Product) error {
	res, err := db.Execute(ctx, `
		UPDATE productos
		SET nombre = :nombre,
			descripcion = :descripcion,
			precio = :precio,
			imagen_url = :imagen_url,
			updated_at = :updated_at
		WHERE id = :id`,
		Params{
			"id":          p.ID,
			"nombre":      p.Name,
			"descripcion": p.Description,
			"precio":      p.Price,
			"imagen_url":  nullable(p.ImageURL),
			"updated_at":  time.Now().UTC(),
		},
	)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes a product permanently.
// It returns ErrNotFound when no row has the given ID.
func (db *DB) DeleteProduct(ctx context.Context, id int64) error {
	res, err := db.Execute(ctx, `DELETE FROM productos WHERE id = :id`, Params{"id": id})
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListProducts retrieves every product, newest first.
func (db *DB) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := db.FetchAll(ctx,
		`SELECT `+productColumns+` FROM productos ORDER BY created_at DESC, id DESC`,
		nil,
		func(row Row) error {
			var pr productRow
			if err := row.Scan(pr.dest()...); err != nil {
				return err
			}
			products = append(products, pr.product())
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// ProductCount returns the number of products in the catalog.
func (db *DB) ProductCount(ctx context.Context) (int, error) {
	var count int
	err := db.FetchOne(ctx, `SELECT COUNT(*) FROM productos`, nil, &count)
	return count, err
}

// LatestProductName returns the name of the most recently created product.
func (db *DB) LatestProductName(ctx context.Context) (string, error) {
	var name string
	err := db.FetchOne(ctx,
		`SELECT nombre FROM productos ORDER BY created_at DESC, id DESC LIMIT 1`,
		nil, &name)
	return name, err
}
