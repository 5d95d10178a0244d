package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return domain.ErrProductIDRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (
			id, name, category, price_minor, quantity_on_hand, in_stock,
			main_image, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			price_minor = EXCLUDED.price_minor,
			quantity_on_hand = EXCLUDED.quantity_on_hand,
			in_stock = EXCLUDED.in_stock,
			main_image = EXCLUDED.main_image,
			updated_at = EXCLUDED.updated_at
	`,
		product.ID, product.Name, product.Category, product.PriceMinor,
		product.QuantityOnHand, product.InStock, product.MainImage,
		product.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	return nil
}

func (r *productRepository) Get(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, category, price_minor, quantity_on_hand, in_stock,
		       main_image, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID, &product.Name, &product.Category, &product.PriceMinor,
		&product.QuantityOnHand, &product.InStock, &product.MainImage,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return product, nil
}

func (r *productRepository) GetMany(ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, category, price_minor, quantity_on_hand, in_stock,
		       main_image, created_at, updated_at
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(
			&product.ID, &product.Name, &product.Category, &product.PriceMinor,
			&product.QuantityOnHand, &product.InStock, &product.MainImage,
			&product.CreatedAt, &product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		result[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return result, nil
}

func (r *productRepository) DecrementStock(id string, qty int32) error {
	if qty <= 0 {
		return domain.ErrQuantityInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Остаток не опускается ниже нуля; нулевой остаток снимает флаг наличия.
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET quantity_on_hand = GREATEST(quantity_on_hand - $2, 0),
		    in_stock = quantity_on_hand - $2 > 0,
		    updated_at = $3
		WHERE id = $1
	`, id, qty, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("decrement product stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

func (r *productRepository) UpsertReview(review domain.Review) (domain.Review, error) {
	if errs := review.Validate(); len(errs) > 0 {
		return domain.Review{}, errs[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.Get(review.ProductID); err != nil {
		return domain.Review{}, err
	}

	now := time.Now().UTC()
	if review.ID == "" {
		review.ID = uuid.NewString()
	}

	// Один отзыв на пару (товар, пользователь): повтор обновляет на месте.
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO product_reviews (
			id, product_id, user_id, rating, comment, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (product_id, user_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			comment = EXCLUDED.comment,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`,
		review.ID, review.ProductID, review.UserID, review.Rating, review.Comment, now, now,
	).Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		return domain.Review{}, fmt.Errorf("upsert review: %w", err)
	}

	return review, nil
}

func (r *productRepository) ListReviews(productID string) ([]domain.Review, error) {
	if _, err := r.Get(productID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, user_id, rating, comment, created_at, updated_at
		FROM product_reviews
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		var review domain.Review
		if err := rows.Scan(
			&review.ID, &review.ProductID, &review.UserID,
			&review.Rating, &review.Comment, &review.CreatedAt, &review.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}

	return reviews, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
