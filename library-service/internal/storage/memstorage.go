package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/azaliaz/lms/library-service/internal/domain/models"
	"github.com/azaliaz/lms/library-service/internal/logger"
	storerrros "github.com/azaliaz/lms/library-service/internal/storage/errors"
)

// table keeps rows in insertion order so listings page deterministically.
type table[T any] struct {
	rows  map[string]T
	order []string
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) get(id string) (T, bool) {
	row, ok := t.rows[id]
	return row, ok
}

func (t *table[T]) put(id string, row T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = row
}

func (t *table[T]) remove(id string) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *table[T]) find(match func(T) bool) (T, bool) {
	for _, id := range t.order {
		if row := t.rows[id]; match(row) {
			return row, true
		}
	}
	var zero T
	return zero, false
}

func (t *table[T]) list(match func(T) bool, page models.Page) []T {
	result := make([]T, 0)
	for _, id := range t.order {
		if row := t.rows[id]; match == nil || match(row) {
			result = append(result, row)
		}
	}
	return paginate(result, page)
}

func paginate[T any](items []T, page models.Page) []T {
	if page.Limit <= 0 {
		return items
	}
	start := page.Offset()
	if start < 0 || start >= len(items) {
		return items[:0]
	}
	end := min(start+min(page.Limit, len(items)), len(items))
	return items[start:end]
}

// MemStorage is the fallback backend used when no database is reachable.
type MemStorage struct {
	mu         sync.RWMutex
	usersStor  *table[models.User]
	bookStor   *table[models.Book]
	authorStor *table[models.Author]
	orderStor  *table[models.Order]
}

func New() *MemStorage {
	return &MemStorage{
		usersStor:  newTable[models.User](),
		bookStor:   newTable[models.Book](),
		authorStor: newTable[models.Author](),
		orderStor:  newTable[models.Order](),
	}
}

func (ms *MemStorage) SaveUser(_ context.Context, user models.User) (models.User, error) {
	log := logger.Get()
	hash, err := hashPassword(user.Pass)
	if err != nil {
		log.Error().Err(err).Msg("save user failed")
		return models.User{}, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.userTaken("", user.MobileNumber, user.Email) {
		return models.User{}, storerrros.ErrUserExists
	}
	user.UID = uuid.New().String()
	user.Pass = hash
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	ms.usersStor.put(user.UID, user)
	log.Debug().Str("uid", user.UID).Msg("user saved")
	return user, nil
}

func (ms *MemStorage) ValidUser(_ context.Context, creds models.Credentials) (models.User, error) {
	ms.mu.RLock()
	user, ok := ms.usersStor.find(func(u models.User) bool {
		if creds.MobileNumber != "" {
			return u.MobileNumber == creds.MobileNumber
		}
		return creds.Email != "" && u.Email == creds.Email
	})
	ms.mu.RUnlock()
	if !ok {
		return models.User{}, storerrros.ErrUserNotFound
	}
	if err := checkPassword(user.Pass, creds.Pass); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (ms *MemStorage) GetUser(_ context.Context, uid string) (models.User, error) {
	log := logger.Get()
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	user, ok := ms.usersStor.get(uid)
	if !ok {
		log.Debug().Str("uid", uid).Msg("user not found")
		return models.User{}, storerrros.ErrUserNotFound
	}
	return user, nil
}

func (ms *MemStorage) GetUsers(_ context.Context, page models.Page) ([]models.User, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.usersStor.list(nil, page), nil
}

func (ms *MemStorage) UpdateUser(_ context.Context, uid string, upd models.UserUpdate) (models.User, error) {
	var hash string
	if upd.Pass != nil {
		var err error
		if hash, err = hashPassword(*upd.Pass); err != nil {
			return models.User{}, err
		}
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	user, ok := ms.usersStor.get(uid)
	if !ok {
		return models.User{}, storerrros.ErrUserNotFound
	}
	if upd.MobileNumber != nil {
		user.MobileNumber = *upd.MobileNumber
	}
	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.Name != nil {
		user.Name = *upd.Name
	}
	if upd.Role != nil {
		user.Role = *upd.Role
	}
	if upd.Pass != nil {
		user.Pass = hash
	}
	if ms.userTaken(uid, user.MobileNumber, user.Email) {
		return models.User{}, storerrros.ErrUserExists
	}
	ms.usersStor.put(uid, user)
	return user, nil
}

func (ms *MemStorage) DeleteUser(_ context.Context, uid string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if !ms.usersStor.remove(uid) {
		return storerrros.ErrUserNotFound
	}
	return nil
}

// userTaken reports whether another user already holds the mobile number or email.
func (ms *MemStorage) userTaken(uid, mobile, email string) bool {
	_, taken := ms.usersStor.find(func(u models.User) bool {
		return u.UID != uid && (u.MobileNumber == mobile || u.Email == email)
	})
	return taken
}

func (ms *MemStorage) SaveBook(_ context.Context, book models.Book) (models.Book, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	book.BID = uuid.New().String()
	ms.bookStor.put(book.BID, book)
	return book, nil
}

func (ms *MemStorage) GetBooks(_ context.Context, filter models.BookFilter) ([]models.Book, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.bookStor.list(func(b models.Book) bool {
		return (filter.Genre == "" || b.Genre == filter.Genre) &&
			(filter.Title == "" || b.Title == filter.Title) &&
			(filter.Author == "" || b.Author == filter.Author) &&
			(filter.Year == 0 || b.Year == filter.Year)
	}, filter.Page), nil
}

func (ms *MemStorage) GetBook(_ context.Context, bid string) (models.Book, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	book, ok := ms.bookStor.get(bid)
	if !ok {
		return models.Book{}, storerrros.ErrBookNoExist
	}
	return book, nil
}

func (ms *MemStorage) UpdateBook(_ context.Context, bid string, upd models.BookUpdate) (models.Book, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	book, ok := ms.bookStor.get(bid)
	if !ok {
		return models.Book{}, storerrros.ErrBookNoExist
	}
	if upd.Title != nil {
		book.Title = *upd.Title
	}
	if upd.Author != nil {
		book.Author = *upd.Author
	}
	if upd.Genre != nil {
		book.Genre = *upd.Genre
	}
	if upd.Year != nil {
		book.Year = *upd.Year
	}
	if upd.Quantity != nil {
		book.Quantity = *upd.Quantity
	}
	ms.bookStor.put(bid, book)
	return book, nil
}

// DeleteBook leaves orders that reference the book untouched.
func (ms *MemStorage) DeleteBook(_ context.Context, bid string) error {
	log := logger.Get()
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if !ms.bookStor.remove(bid) {
		log.Warn().Str("bid", bid).Msg("book not found")
		return storerrros.ErrBookNoExist
	}
	log.Info().Str("bid", bid).Msg("book deleted successfully")
	return nil
}

func (ms *MemStorage) SaveAuthor(_ context.Context, author models.Author) (models.Author, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	author.AID = uuid.New().String()
	ms.authorStor.put(author.AID, author)
	return author, nil
}

func (ms *MemStorage) GetAuthors(_ context.Context, page models.Page) ([]models.Author, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.authorStor.list(nil, page), nil
}

func (ms *MemStorage) GetAuthor(_ context.Context, aid string) (models.Author, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	author, ok := ms.authorStor.get(aid)
	if !ok {
		return models.Author{}, storerrros.ErrAuthorNoExist
	}
	return author, nil
}

func (ms *MemStorage) UpdateAuthor(_ context.Context, aid string, upd models.AuthorUpdate) (models.Author, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	author, ok := ms.authorStor.get(aid)
	if !ok {
		return models.Author{}, storerrros.ErrAuthorNoExist
	}
	if upd.Name != nil {
		author.Name = *upd.Name
	}
	if upd.Bio != nil {
		author.Bio = *upd.Bio
	}
	ms.authorStor.put(aid, author)
	return author, nil
}

func (ms *MemStorage) DeleteAuthor(_ context.Context, aid string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if !ms.authorStor.remove(aid) {
		return storerrros.ErrAuthorNoExist
	}
	return nil
}

// SaveOrder checks the referenced book and user and stores the order
// under one write lock.
func (ms *MemStorage) SaveOrder(_ context.Context, order models.Order) (models.Order, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, ok := ms.bookStor.get(order.BookID); !ok {
		return models.Order{}, storerrros.ErrBookNoExist
	}
	if _, ok := ms.usersStor.get(order.UserID); !ok {
		return models.Order{}, storerrros.ErrUserNotFound
	}
	if _, dup := ms.orderStor.find(func(o models.Order) bool { return o.OrderNo == order.OrderNo }); dup {
		return models.Order{}, storerrros.ErrOrderExists
	}
	order.OID = uuid.New().String()
	ms.orderStor.put(order.OID, order)
	return order, nil
}

func (ms *MemStorage) GetOrders(_ context.Context, filter models.OrderFilter) ([]models.Order, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.orderStor.list(func(o models.Order) bool {
		return filter.UserID == "" || o.UserID == filter.UserID
	}, filter.Page), nil
}

func (ms *MemStorage) GetOrder(_ context.Context, oid string) (models.Order, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	order, ok := ms.orderStor.get(oid)
	if !ok {
		return models.Order{}, storerrros.ErrOrderNoExist
	}
	return order, nil
}

func (ms *MemStorage) UpdateOrder(_ context.Context, oid string, upd models.OrderUpdate) (models.Order, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	order, ok := ms.orderStor.get(oid)
	if !ok {
		return models.Order{}, storerrros.ErrOrderNoExist
	}
	if upd.Quantity != nil {
		order.Quantity = *upd.Quantity
	}
	if upd.Date != nil {
		order.Date = *upd.Date
	}
	ms.orderStor.put(oid, order)
	return order, nil
}

func (ms *MemStorage) DeleteOrder(_ context.Context, oid string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if !ms.orderStor.remove(oid) {
		return storerrros.ErrOrderNoExist
	}
	return nil
}
