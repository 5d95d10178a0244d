package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const cartOpTimeout = 5 * time.Second

// cartDocument — представление корзины в коллекции. Доменные типы не несут
// bson-тегов, поэтому маппинг делается здесь.
type cartDocument struct {
	ID        string             `bson:"_id"`
	UserID    string             `bson:"user_id"`
	Items     []cartItemDocument `bson:"items"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

type cartItemDocument struct {
	ProductID string    `bson:"product_id"`
	Qty       int32     `bson:"qty"`
	AddedAt   time.Time `bson:"added_at"`
}

type cartRepository struct {
	collection *mongo.Collection
}

// NewCartRepository создаёт Mongo-реализацию CartRepository поверх
// коллекции carts. Инкременты и удаления позиций выполняются
// атомарными операторами $inc/$pull на документе корзины.
func NewCartRepository(db *mongo.Database) domain.CartRepository {
	return &cartRepository{collection: db.Collection("carts")}
}

// EnsureIndexes создаёт уникальный индекс по владельцу корзины.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60),
		},
	}

	_, err := db.Collection("carts").Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("create cart indexes: %w", err)
	}
	return nil
}

func (r *cartRepository) Get(userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, domain.ErrOwnerRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), cartOpTimeout)
	defer cancel()

	return r.load(ctx, userID)
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

	ctx, cancel := context.WithTimeout(context.Background(), cartOpTimeout)
	defer cancel()

	const maxAddRetries = 3

	for attempt := 0; attempt < maxAddRetries; attempt++ {
		now := time.Now().UTC()

		// Существующая позиция увеличивается атомарным $inc.
		res, err := r.collection.UpdateOne(ctx,
			bson.M{"user_id": userID, "items.product_id": productID},
			bson.M{
				"$inc": bson.M{"items.$.qty": qty},
				"$set": bson.M{"updated_at": now},
			},
		)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("increment cart item: %w", err)
		}
		if res.MatchedCount > 0 {
			return r.load(ctx, userID)
		}

		// Позиции нет: добавляем её, создавая корзину лениво через upsert.
		// Фильтр $ne не пускает вторую строку на тот же товар, если
		// конкурирующий запрос успел добавить её между двумя update'ами.
		res, err = r.collection.UpdateOne(ctx,
			bson.M{"user_id": userID, "items.product_id": bson.M{"$ne": productID}},
			bson.M{
				"$push": bson.M{"items": cartItemDocument{ProductID: productID, Qty: qty, AddedAt: now}},
				"$set":  bson.M{"updated_at": now},
				"$setOnInsert": bson.M{
					"_id":        uuid.NewString(),
					"created_at": now,
				},
			},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			// Конкурирующее создание корзины упёрлось в уникальный индекс
			// user_id: корзина уже есть, идём на новый круг через $inc.
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return domain.Cart{}, fmt.Errorf("push cart item: %w", err)
		}
		if res.MatchedCount > 0 || res.UpsertedCount > 0 {
			return r.load(ctx, userID)
		}
		// Позиция появилась между $inc и $push: повторяем $inc.
	}

	return domain.Cart{}, fmt.Errorf("add cart item: concurrent updates exhausted retries")
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

	ctx, cancel := context.WithTimeout(context.Background(), cartOpTimeout)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID, "items.product_id": productID},
		bson.M{
			"$inc": bson.M{"items.$.qty": delta},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("adjust cart item qty: %w", err)
	}
	if res.MatchedCount == 0 {
		// Различаем отсутствие корзины и отсутствие позиции.
		if _, loadErr := r.load(ctx, userID); loadErr != nil {
			return domain.Cart{}, loadErr
		}
		return domain.Cart{}, domain.ErrCartItemNotFound
	}

	// Падение количества ниже единицы удаляет позицию целиком.
	if _, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$pull": bson.M{"items": bson.M{"qty": bson.M{"$lt": 1}}}},
	); err != nil {
		return domain.Cart{}, fmt.Errorf("pull depleted cart items: %w", err)
	}

	return r.load(ctx, userID)
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

	ctx, cancel := context.WithTimeout(context.Background(), cartOpTimeout)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$pull": bson.M{"items": bson.M{"product_id": productID}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("remove cart item: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	if res.ModifiedCount == 0 {
		return domain.Cart{}, domain.ErrCartItemNotFound
	}

	return r.load(ctx, userID)
}

func (r *cartRepository) Clear(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ErrOwnerRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), cartOpTimeout)
	defer cancel()

	// Очистка идемпотентна: отсутствие корзины не ошибка.
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$set": bson.M{"items": []cartItemDocument{}, "updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (r *cartRepository) load(ctx context.Context, userID string) (domain.Cart, error) {
	var doc cartDocument
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}

	cart := domain.Cart{
		ID:        doc.ID,
		UserID:    doc.UserID,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			AddedAt:   item.AddedAt,
		})
	}
	return cart, nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
