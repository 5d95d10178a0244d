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

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
// Все изменения позиций выполняются одним UPDATE/INSERT внутри транзакции,
// поэтому конкурентные инкременты одной позиции не теряют обновлений.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

func (r *cartRepository) Get(userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, domain.ErrOwnerRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.load(ctx, r.db, userID)
}

func (r *cartRepository) AddItem(userID, productID string, qty int32) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)

	if userID == "" {
		return domain.Cart{}, domain.ErrOwnerRequired
	}
	if productID == "" {
		return domain.Cart{}, domain.ErrProductIDRequired
	}
	if qty <= 0 {
		return domain.Cart{}, domain.ErrQuantityInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	cartID, err := r.ensureCart(ctx, tx, userID, now)
	if err != nil {
		return domain.Cart{}, err
	}

	// Существующая позиция увеличивается, новая добавляется.
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, qty, added_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty
	`, cartID, productID, qty, now); err != nil {
		return domain.Cart{}, fmt.Errorf("upsert cart item: %w", err)
	}

	if err = r.touchCart(ctx, tx, cartID, now); err != nil {
		return domain.Cart{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.Cart{}, fmt.Errorf("commit add item: %w", err)
	}

	return r.Get(userID)
}

func (r *cartRepository) AdjustQuantity(userID, productID string, delta int32) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)

	if userID == "" {
		return domain.Cart{}, domain.ErrOwnerRequired
	}
	if productID == "" {
		return domain.Cart{}, domain.ErrProductIDRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cartID, err := r.cartID(ctx, tx, userID)
	if err != nil {
		return domain.Cart{}, err
	}

	now := time.Now().UTC()

	// Атомарный сдвиг количества одним UPDATE.
	res, err := tx.ExecContext(ctx, `
		UPDATE cart_items
		SET qty = qty + $1
		WHERE cart_id = $2 AND product_id = $3
	`, delta, cartID, productID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("adjust cart item qty: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Cart{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = domain.ErrCartItemNotFound
		return domain.Cart{}, err
	}

	// Падение количества ниже единицы удаляет позицию целиком.
	if _, err = tx.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND product_id = $2 AND qty < 1
	`, cartID, productID); err != nil {
		return domain.Cart{}, fmt.Errorf("delete depleted cart item: %w", err)
	}

	if err = r.touchCart(ctx, tx, cartID, now); err != nil {
		return domain.Cart{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.Cart{}, fmt.Errorf("commit adjust quantity: %w", err)
	}

	return r.Get(userID)
}

func (r *cartRepository) RemoveItem(userID, productID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)

	if userID == "" {
		return domain.Cart{}, domain.ErrOwnerRequired
	}
	if productID == "" {
		return domain.Cart{}, domain.ErrProductIDRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cartID, err := r.cartID(ctx, tx, userID)
	if err != nil {
		return domain.Cart{}, err
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
	`, cartID, productID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("delete cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Cart{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = domain.ErrCartItemNotFound
		return domain.Cart{}, err
	}

	if err = r.touchCart(ctx, tx, cartID, time.Now().UTC()); err != nil {
		return domain.Cart{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.Cart{}, fmt.Errorf("commit remove item: %w", err)
	}

	return r.Get(userID)
}

func (r *cartRepository) Clear(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ErrOwnerRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Очистка идемпотентна: отсутствие корзины или позиций не ошибка.
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)
	`, userID)
	if err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		UPDATE carts SET updated_at = $2 WHERE user_id = $1
	`, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch cleared cart: %w", err)
	}

	return nil
}

func (r *cartRepository) ensureCart(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (string, error) {
	var cartID string
	err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
	if err == nil {
		return cartID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("select cart: %w", err)
	}

	// Корзина создаётся лениво; уникальный индекс по user_id защищает от гонки.
	cartID = uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id) DO NOTHING
	`, cartID, userID, now, now); err != nil {
		return "", fmt.Errorf("insert cart: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID); err != nil {
		return "", fmt.Errorf("reselect cart: %w", err)
	}
	return cartID, nil
}

func (r *cartRepository) cartID(ctx context.Context, tx *sql.Tx, userID string) (string, error) {
	var cartID string
	err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrCartNotFound
		}
		return "", fmt.Errorf("select cart: %w", err)
	}
	return cartID, nil
}

func (r *cartRepository) touchCart(ctx context.Context, tx *sql.Tx, cartID string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE carts SET updated_at = $2 WHERE id = $1
	`, cartID, now); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *cartRepository) load(ctx context.Context, q queryer, userID string) (domain.Cart, error) {
	var cart domain.Cart
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT product_id, qty, added_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY added_at ASC, product_id ASC
	`, cart.ID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Qty, &item.AddedAt); err != nil {
			return domain.Cart{}, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("iterate cart items: %w", err)
	}

	return cart, nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
