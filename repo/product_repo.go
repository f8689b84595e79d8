package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/Skryldev/product-catalog/db"
	"github.com/Skryldev/product-catalog/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// ProductRepository interface: for mocking in tests
// ─────────────────────────────────────────────────────────────────────────────

// ProductRepository defines the contract for product persistence operations.
// All implementations must satisfy this interface.
type ProductRepository interface {
	Create(ctx context.Context, params models.CreateProductParams) (*models.Product, error)
	List(ctx context.Context, search string) ([]*models.Product, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	Update(ctx context.Context, params models.UpdateProductParams) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// Pool hands out one connection per repository operation. *db.DB satisfies it.
type Pool interface {
	Acquire(ctx context.Context) (*db.Conn, error)
	Dialect() db.Dialect
}

// ─────────────────────────────────────────────────────────────────────────────
// productRepo: concrete implementation
// ─────────────────────────────────────────────────────────────────────────────

type productRepo struct {
	pool    Pool
	dialect db.Dialect
	sb      sq.StatementBuilderType
}

// NewProductRepo returns a ProductRepository backed by pool. The dialect is
// read once here; every statement is built with it.
func NewProductRepo(pool Pool) ProductRepository {
	d := pool.Dialect()
	return &productRepo{pool: pool, dialect: d, sb: db.Builder(d)}
}

// ─────────────────────────────────────────────────────────────────────────────
// Column order: the only place the SELECT list is spelled out
// ─────────────────────────────────────────────────────────────────────────────

const (
	productTable   = "products"
	productColumns = "id, name, description, price"
)

// withConn acquires a connection, runs fn on it and releases it on every
// exit path.
func (r *productRepo) withConn(ctx context.Context, fn func(q db.Querier) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

// ─────────────────────────────────────────────────────────────────────────────
// Create
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a product and returns it with the engine-assigned id.
// A name that already exists yields db.ErrDuplicateKey.
func (r *productRepo) Create(ctx context.Context, params models.CreateProductParams) (*models.Product, error) {
	ins := r.sb.Insert(productTable).
		Columns("name", "description", "price").
		Values(params.Name, params.Description, params.Price)

	var id int64
	err := r.withConn(ctx, func(q db.Querier) error {
		var err error
		id, err = r.dialect.InsertReturningID(ctx, q, ins, "id")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("repo/product: create: %w", err)
	}
	return &models.Product{
		ID:          id,
		Name:        params.Name,
		Description: params.Description,
		Price:       params.Price,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// List
// ─────────────────────────────────────────────────────────────────────────────

// List returns every product ordered by id. A non-blank search narrows the
// result to products whose name or description contains it, ignoring case.
func (r *productRepo) List(ctx context.Context, search string) ([]*models.Product, error) {
	sel := r.sb.Select(productColumns).From(productTable).OrderBy("id")
	if term := strings.TrimSpace(search); term != "" {
		sel = sel.Where(sq.Or{
			db.Contains(r.dialect, "name", term),
			db.Contains(r.dialect, "description", term),
		})
	}

	var products []*models.Product
	err := r.withConn(ctx, func(q db.Querier) error {
		var err error
		products, err = queryProducts(ctx, q, sel)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("repo/product: list: %w", err)
	}
	return products, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns a single product by primary key.
// Returns db.ErrNotFound when no record matches.
func (r *productRepo) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	sel := r.sb.Select(productColumns).From(productTable).Where(sq.Eq{"id": id})

	var products []*models.Product
	err := r.withConn(ctx, func(q db.Querier) error {
		var err error
		products, err = queryProducts(ctx, q, sel)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("repo/product: get: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("repo/product: get %d: %w", id, db.ErrNotFound)
	}
	return products[0], nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Update: partial update, only the fields that were supplied
// ─────────────────────────────────────────────────────────────────────────────

// Update applies a partial update to a product. Only fields with non-nil
// pointers in params are written. An update with no fields is rejected with
// models.ErrInvalidInput before any statement runs.
func (r *productRepo) Update(ctx context.Context, params models.UpdateProductParams) error {
	set := make(map[string]any, 3)
	if params.Name != nil {
		set["name"] = *params.Name
	}
	if params.Description != nil {
		set["description"] = *params.Description
	}
	if params.Price != nil {
		set["price"] = *params.Price
	}
	if len(set) == 0 {
		return fmt.Errorf("repo/product: update: no fields to update: %w", models.ErrInvalidInput)
	}

	upd := r.sb.Update(productTable).SetMap(set).Where(sq.Eq{"id": params.ID})
	query, args, err := upd.ToSql()
	if err != nil {
		return fmt.Errorf("repo/product: build update: %w", err)
	}

	err = r.withConn(ctx, func(q db.Querier) error {
		res, err := q.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	if err != nil {
		return fmt.Errorf("repo/product: update %d: %w", params.ID, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete
// ─────────────────────────────────────────────────────────────────────────────

// Delete removes a product by id.
// Returns db.ErrNotFound if no row was deleted.
func (r *productRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := r.sb.Delete(productTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("repo/product: build delete: %w", err)
	}

	err = r.withConn(ctx, func(q db.Querier) error {
		res, err := q.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	if err != nil {
		return fmt.Errorf("repo/product: delete %d: %w", id, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Count
// ─────────────────────────────────────────────────────────────────────────────

// Count returns the total number of products.
func (r *productRepo) Count(ctx context.Context) (int64, error) {
	query, args, err := r.sb.Select("COUNT(*)").From(productTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("repo/product: build count: %w", err)
	}

	var n int64
	err = r.withConn(ctx, func(q db.Querier) error {
		return q.QueryRow(ctx, query, args...).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("repo/product: count: %w", err)
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Row normalisation
// ─────────────────────────────────────────────────────────────────────────────

// productRow is the storage shape of a product. Columns are matched by name,
// so the SELECT list order does not matter to the scan.
type productRow struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	Price       float64        `db:"price"`
}

func (row productRow) product() *models.Product {
	return &models.Product{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description.String, // NULL reads as ""
		Price:       row.Price,
	}
}

func queryProducts(ctx context.Context, q db.Querier, sel sq.SelectBuilder) ([]*models.Product, error) {
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}

// scanProducts drains rows into products and closes them. Centralising the
// mapping means adding a column only touches productRow and productColumns.
func scanProducts(rows *db.Rows) ([]*models.Product, error) {
	defer rows.Close()

	var raw []productRow
	if err := sqlx.StructScan(rows, &raw); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	products := make([]*models.Product, 0, len(raw))
	for _, row := range raw {
		products = append(products, row.product())
	}
	return products, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Compile-time interface assertion
// ─────────────────────────────────────────────────────────────────────────────

var (
	_ ProductRepository = (*productRepo)(nil)
	_ Pool              = (*db.DB)(nil)
)
