package storage

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azaliaz/lms/library-service/internal/domain/models"
	storerrros "github.com/azaliaz/lms/library-service/internal/storage/errors"
)

func ptr[T any](v T) *T { return &v }

func TestMemStorage_Users(t *testing.T) {
	ctx := context.Background()
	ms := New()

	user, err := ms.SaveUser(ctx, models.User{MobileNumber: "100", Email: "a@b.c", Pass: "password1"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.UID)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "password1", user.Pass)

	_, err = ms.SaveUser(ctx, models.User{MobileNumber: "100", Email: "other@b.c", Pass: "password1"})
	assert.ErrorIs(t, err, storerrros.ErrUserExists)
	_, err = ms.SaveUser(ctx, models.User{MobileNumber: "200", Email: "a@b.c", Pass: "password1"})
	assert.ErrorIs(t, err, storerrros.ErrUserExists)

	got, err := ms.ValidUser(ctx, models.Credentials{MobileNumber: "100", Pass: "password1"})
	require.NoError(t, err)
	assert.Equal(t, user.UID, got.UID)

	got, err = ms.ValidUser(ctx, models.Credentials{Email: "a@b.c", Pass: "password1"})
	require.NoError(t, err)
	assert.Equal(t, user.UID, got.UID)

	_, err = ms.ValidUser(ctx, models.Credentials{MobileNumber: "100", Pass: "wrong"})
	assert.ErrorIs(t, err, storerrros.ErrInvalidPassword)
	_, err = ms.ValidUser(ctx, models.Credentials{MobileNumber: "999", Pass: "password1"})
	assert.ErrorIs(t, err, storerrros.ErrUserNotFound)
}

func TestMemStorage_UpdateUser(t *testing.T) {
	ctx := context.Background()
	ms := New()

	first, err := ms.SaveUser(ctx, models.User{MobileNumber: "100", Email: "a@b.c", Pass: "password1"})
	require.NoError(t, err)
	_, err = ms.SaveUser(ctx, models.User{MobileNumber: "200", Email: "d@e.f", Pass: "password1"})
	require.NoError(t, err)

	_, err = ms.UpdateUser(ctx, first.UID, models.UserUpdate{Email: ptr("d@e.f")})
	assert.ErrorIs(t, err, storerrros.ErrUserExists)

	updated, err := ms.UpdateUser(ctx, first.UID, models.UserUpdate{Name: ptr("Ann"), Pass: ptr("newpassword")})
	require.NoError(t, err)
	assert.Equal(t, "Ann", updated.Name)
	assert.Equal(t, "a@b.c", updated.Email)

	_, err = ms.ValidUser(ctx, models.Credentials{MobileNumber: "100", Pass: "newpassword"})
	assert.NoError(t, err)

	_, err = ms.UpdateUser(ctx, "missing", models.UserUpdate{Name: ptr("x")})
	assert.ErrorIs(t, err, storerrros.ErrUserNotFound)

	require.NoError(t, ms.DeleteUser(ctx, first.UID))
	assert.ErrorIs(t, ms.DeleteUser(ctx, first.UID), storerrros.ErrUserNotFound)
}

func TestMemStorage_BooksFilterAndPage(t *testing.T) {
	ctx := context.Background()
	ms := New()

	for i := range 5 {
		genre := "fiction"
		if i%2 == 1 {
			genre = "science"
		}
		_, err := ms.SaveBook(ctx, models.Book{Title: fmt.Sprintf("book %d", i), Author: "X", Genre: genre})
		require.NoError(t, err)
	}

	all, err := ms.GetBooks(ctx, models.BookFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	fiction, err := ms.GetBooks(ctx, models.BookFilter{Genre: "fiction"})
	require.NoError(t, err)
	assert.Len(t, fiction, 3)

	partial, err := ms.GetBooks(ctx, models.BookFilter{Genre: "fict"})
	require.NoError(t, err)
	assert.Empty(t, partial)

	page, err := ms.GetBooks(ctx, models.BookFilter{Page: models.Page{Page: 2, Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "book 2", page[0].Title)
	assert.Equal(t, "book 3", page[1].Title)

	beyond, err := ms.GetBooks(ctx, models.BookFilter{Page: models.Page{Page: 10, Limit: 2}})
	require.NoError(t, err)
	assert.NotNil(t, beyond)
	assert.Empty(t, beyond)

	huge, err := ms.GetBooks(ctx, models.BookFilter{Page: models.Page{Page: math.MaxInt / 2, Limit: 4}})
	require.NoError(t, err)
	assert.Empty(t, huge)
}

func TestPage_OffsetSaturates(t *testing.T) {
	assert.Equal(t, 0, models.Page{Page: 5}.Offset())
	assert.Equal(t, 10, models.Page{Page: 3, Limit: 5}.Offset())
	assert.Equal(t, math.MaxInt, models.Page{Page: math.MaxInt / 2, Limit: 4}.Offset())
	assert.Equal(t, math.MaxInt, models.Page{Page: 2, Limit: math.MaxInt}.Offset())
}

func TestMemStorage_SaveOrder(t *testing.T) {
	ctx := context.Background()
	ms := New()

	user, err := ms.SaveUser(ctx, models.User{MobileNumber: "100", Email: "a@b.c", Pass: "password1"})
	require.NoError(t, err)
	book, err := ms.SaveBook(ctx, models.Book{Title: "Dune", Author: "Herbert", Genre: "sf"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		order   models.Order
		wantErr error
	}{
		{
			name:    "missing book",
			order:   models.Order{OrderNo: "o-1", BookID: "nope", UserID: user.UID, Quantity: 1},
			wantErr: storerrros.ErrBookNoExist,
		},
		{
			name:    "missing user",
			order:   models.Order{OrderNo: "o-1", BookID: book.BID, UserID: "nope", Quantity: 1},
			wantErr: storerrros.ErrUserNotFound,
		},
		{
			name:  "ok",
			order: models.Order{OrderNo: "o-1", BookID: book.BID, UserID: user.UID, Quantity: 1, Date: time.Now()},
		},
		{
			name:    "duplicate order number",
			order:   models.Order{OrderNo: "o-1", BookID: book.BID, UserID: user.UID, Quantity: 1},
			wantErr: storerrros.ErrOrderExists,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			order, err := ms.SaveOrder(ctx, tc.order)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, order.OID)
		})
	}

	orders, err := ms.GetOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	own, err := ms.GetOrders(ctx, models.OrderFilter{UserID: "someone-else"})
	require.NoError(t, err)
	assert.Empty(t, own)
}

func TestMemStorage_DeleteBookLeavesOrders(t *testing.T) {
	ctx := context.Background()
	ms := New()

	user, err := ms.SaveUser(ctx, models.User{MobileNumber: "100", Email: "a@b.c", Pass: "password1"})
	require.NoError(t, err)
	book, err := ms.SaveBook(ctx, models.Book{Title: "Dune", Author: "Herbert", Genre: "sf"})
	require.NoError(t, err)
	order, err := ms.SaveOrder(ctx, models.Order{OrderNo: "o-1", BookID: book.BID, UserID: user.UID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, ms.DeleteBook(ctx, book.BID))
	assert.ErrorIs(t, ms.DeleteBook(ctx, book.BID), storerrros.ErrBookNoExist)

	got, err := ms.GetOrder(ctx, order.OID)
	require.NoError(t, err)
	assert.Equal(t, book.BID, got.BookID)
}

func TestMemStorage_ConcurrentOrders(t *testing.T) {
	ctx := context.Background()
	ms := New()

	user, err := ms.SaveUser(ctx, models.User{MobileNumber: "100", Email: "a@b.c", Pass: "password1"})
	require.NoError(t, err)
	book, err := ms.SaveBook(ctx, models.Book{Title: "Dune", Author: "Herbert", Genre: "sf"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ms.SaveOrder(ctx, models.Order{
				OrderNo:  fmt.Sprintf("o-%d", i%10),
				BookID:   book.BID,
				UserID:   user.UID,
				Quantity: 1,
			})
		}()
	}
	wg.Wait()

	orders, err := ms.GetOrders(ctx, models.OrderFilter{UserID: user.UID})
	require.NoError(t, err)
	assert.Len(t, orders, 10)
}

func TestMemStorage_AuthorsAndOrderUpdates(t *testing.T) {
	ctx := context.Background()
	ms := New()

	author, err := ms.SaveAuthor(ctx, models.Author{Name: "Le Guin"})
	require.NoError(t, err)
	author, err = ms.UpdateAuthor(ctx, author.AID, models.AuthorUpdate{Bio: ptr("Earthsea")})
	require.NoError(t, err)
	assert.Equal(t, "Le Guin", author.Name)
	assert.Equal(t, "Earthsea", author.Bio)
	require.NoError(t, ms.DeleteAuthor(ctx, author.AID))
	_, err = ms.GetAuthor(ctx, author.AID)
	assert.ErrorIs(t, err, storerrros.ErrAuthorNoExist)

	user, err := ms.SaveUser(ctx, models.User{MobileNumber: "100", Email: "a@b.c", Pass: "password1"})
	require.NoError(t, err)
	book, err := ms.SaveBook(ctx, models.Book{Title: "Dune", Author: "Herbert", Genre: "sf"})
	require.NoError(t, err)
	order, err := ms.SaveOrder(ctx, models.Order{OrderNo: "o-1", BookID: book.BID, UserID: user.UID, Quantity: 1})
	require.NoError(t, err)

	order, err = ms.UpdateOrder(ctx, order.OID, models.OrderUpdate{Quantity: ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, order.Quantity)
	require.NoError(t, ms.DeleteOrder(ctx, order.OID))
	assert.ErrorIs(t, ms.DeleteOrder(ctx, order.OID), storerrros.ErrOrderNoExist)
}

func TestDriverFor(t *testing.T) {
	tests := map[string]Driver{
		"mongodb://localhost:27017/lms":                 DriverMongo,
		"mongodb+srv://cluster.example.net/lms":         DriverMongo,
		"mongodb://h1:27017,h2:27017/lms?replicaSet=rs": DriverMongo,
		"postgres://u:p@localhost:5432/lms":             DriverPostgres,
		"postgresql://localhost/lms":                    DriverPostgres,
		"memory://":                                     DriverMemory,
		"":                                              DriverMemory,
		"localhost:27017":                               DriverMemory,
	}
	for dsn, want := range tests {
		assert.Equal(t, want, DriverFor(dsn), dsn)
	}
}
