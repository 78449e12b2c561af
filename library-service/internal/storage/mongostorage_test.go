package storage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/azaliaz/lms/library-service/internal/domain/models"
	storerrros "github.com/azaliaz/lms/library-service/internal/storage/errors"
)

func TestFindOptions(t *testing.T) {
	all := findOptions(models.Page{})
	assert.Nil(t, all.Skip)
	assert.Nil(t, all.Limit)
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, all.Sort)

	window := findOptions(models.Page{Page: 3, Limit: 5})
	require.NotNil(t, window.Skip)
	require.NotNil(t, window.Limit)
	assert.Equal(t, int64(10), *window.Skip)
	assert.Equal(t, int64(5), *window.Limit)

	farOut := findOptions(models.Page{Page: math.MaxInt / 2, Limit: 4})
	require.NotNil(t, farOut.Skip)
	assert.Equal(t, int64(math.MaxInt), *farOut.Skip)
}

func TestDocModels(t *testing.T) {
	uid := primitive.NewObjectID()
	bid := primitive.NewObjectID()

	user := userDoc{ID: uid, MobileNumber: "100", Email: "a@b.c", Password: "hash", Role: models.RoleAdmin}.model()
	assert.Equal(t, models.User{UID: uid.Hex(), MobileNumber: "100", Email: "a@b.c", Pass: "hash", Role: models.RoleAdmin}, user)

	book := bookDoc{ID: bid, Title: "Dune", Author: "Herbert", Genre: "sf", Year: 1965, Quantity: 2}.model()
	assert.Equal(t, bid.Hex(), book.BID)
	assert.Equal(t, 1965, book.Year)

	author := authorDoc{ID: bid, Name: "Herbert"}.model()
	assert.Equal(t, models.Author{AID: bid.Hex(), Name: "Herbert"}, author)

	local := time.Date(2024, 1, 10, 12, 0, 0, 0, time.FixedZone("UTC+3", 3*60*60))
	order := orderDoc{ID: primitive.NewObjectID(), OrderNo: "n1", BookID: bid, UserID: uid, Quantity: 1, Date: local}.model()
	assert.Equal(t, bid.Hex(), order.BookID)
	assert.Equal(t, uid.Hex(), order.UserID)
	assert.Equal(t, time.UTC, order.Date.Location())
	assert.True(t, order.Date.Equal(local))
}

// Malformed ids are rejected before any collection is touched, so a bare
// MongoStorage is enough.
func TestMongoStorage_MalformedIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	ms := &MongoStorage{}
	valid := primitive.NewObjectID().Hex()

	_, err := ms.GetUser(ctx, "nope")
	assert.ErrorIs(t, err, storerrros.ErrUserNotFound)
	_, err = ms.UpdateUser(ctx, "nope", models.UserUpdate{Name: ptr("Ann")})
	assert.ErrorIs(t, err, storerrros.ErrUserNotFound)
	assert.ErrorIs(t, ms.DeleteUser(ctx, "nope"), storerrros.ErrUserNotFound)

	_, err = ms.GetBook(ctx, "12345")
	assert.ErrorIs(t, err, storerrros.ErrBookNoExist)
	_, err = ms.UpdateBook(ctx, "12345", models.BookUpdate{Title: ptr("Dune")})
	assert.ErrorIs(t, err, storerrros.ErrBookNoExist)
	assert.ErrorIs(t, ms.DeleteBook(ctx, "12345"), storerrros.ErrBookNoExist)

	_, err = ms.GetAuthor(ctx, "zz")
	assert.ErrorIs(t, err, storerrros.ErrAuthorNoExist)
	_, err = ms.UpdateAuthor(ctx, "zz", models.AuthorUpdate{Name: ptr("Herbert")})
	assert.ErrorIs(t, err, storerrros.ErrAuthorNoExist)
	assert.ErrorIs(t, ms.DeleteAuthor(ctx, "zz"), storerrros.ErrAuthorNoExist)

	_, err = ms.GetOrder(ctx, "o1")
	assert.ErrorIs(t, err, storerrros.ErrOrderNoExist)
	_, err = ms.UpdateOrder(ctx, "o1", models.OrderUpdate{Quantity: ptr(2)})
	assert.ErrorIs(t, err, storerrros.ErrOrderNoExist)
	assert.ErrorIs(t, ms.DeleteOrder(ctx, "o1"), storerrros.ErrOrderNoExist)

	_, err = ms.SaveOrder(ctx, models.Order{BookID: "b1", UserID: valid})
	assert.ErrorIs(t, err, storerrros.ErrBookNoExist)
	_, err = ms.SaveOrder(ctx, models.Order{BookID: valid, UserID: "u1"})
	assert.ErrorIs(t, err, storerrros.ErrUserNotFound)

	orders, err := ms.GetOrders(ctx, models.OrderFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}
