package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azaliaz/lms/library-service/internal/domain/consts"
	"github.com/azaliaz/lms/library-service/internal/domain/models"
	"github.com/azaliaz/lms/library-service/internal/logger"
	storerrros "github.com/azaliaz/lms/library-service/internal/storage/errors"
)

const (
	userColumns   = `uid, mobile_number, email, name, pass, role`
	bookColumns   = `bid, title, author, genre, year, quantity`
	authorColumns = `aid, name, bio`
	orderColumns  = `oid, order_no, book_id, user_id, quantity, date`
)

type DBStorage struct {
	pool *pgxpool.Pool
}

func NewDB(ctx context.Context, addr string) (*DBStorage, error) {
	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DBStorage{pool: pool}, nil
}

func (dbs *DBStorage) Close() {
	dbs.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// setter collects "col = $n" pairs for partial updates.
type setter struct {
	sets []string
	args []any
}

func (s *setter) add(column string, value any) {
	s.args = append(s.args, value)
	s.sets = append(s.sets, fmt.Sprintf("%s = $%d", column, len(s.args)))
}

// query renders UPDATE ... SET ... WHERE key = $n RETURNING columns.
func (s *setter) query(table, key, id, columns string) (string, []any) {
	args := append(s.args, id)
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d RETURNING %s",
		table, strings.Join(s.sets, ", "), key, len(args), columns), args
}

func pageClause(page models.Page, argPos int) (string, []any) {
	if page.Limit <= 0 {
		return "", nil
	}
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1), []any{page.Limit, page.Offset()}
}

func scanUser(row pgx.Row) (models.User, error) {
	var usr models.User
	err := row.Scan(&usr.UID, &usr.MobileNumber, &usr.Email, &usr.Name, &usr.Pass, &usr.Role)
	return usr, err
}

func scanBook(row pgx.Row) (models.Book, error) {
	var book models.Book
	err := row.Scan(&book.BID, &book.Title, &book.Author, &book.Genre, &book.Year, &book.Quantity)
	return book, err
}

func scanAuthor(row pgx.Row) (models.Author, error) {
	var author models.Author
	err := row.Scan(&author.AID, &author.Name, &author.Bio)
	return author, err
}

func scanOrder(row pgx.Row) (models.Order, error) {
	var order models.Order
	err := row.Scan(&order.OID, &order.OrderNo, &order.BookID, &order.UserID, &order.Quantity, &order.Date)
	return order, err
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	result := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (dbs *DBStorage) SaveUser(ctx context.Context, user models.User) (models.User, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var existing string
	err := dbs.pool.QueryRow(ctx, `SELECT uid FROM users WHERE mobile_number = $1 OR email = $2`,
		user.MobileNumber, user.Email).Scan(&existing)
	if err == nil {
		return models.User{}, storerrros.ErrUserExists
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		log.Error().Err(err).Msg("check user failed")
		return models.User{}, err
	}

	hash, err := hashPassword(user.Pass)
	if err != nil {
		log.Error().Err(err).Msg("save user failed")
		return models.User{}, err
	}
	user.UID = uuid.New().String()
	user.Pass = hash
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	_, err = dbs.pool.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		user.UID, user.MobileNumber, user.Email, user.Name, user.Pass, user.Role)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, storerrros.ErrUserExists
		}
		log.Error().Err(err).Msg("failed to insert user")
		return models.User{}, err
	}
	return user, nil
}

func (dbs *DBStorage) ValidUser(ctx context.Context, creds models.Credentials) (models.User, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	query, login := `SELECT `+userColumns+` FROM users WHERE mobile_number = $1`, creds.MobileNumber
	if login == "" {
		query, login = `SELECT `+userColumns+` FROM users WHERE email = $1`, creds.Email
	}
	usr, err := scanUser(dbs.pool.QueryRow(ctx, query, login))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storerrros.ErrUserNotFound
		}
		log.Error().Err(err).Msg("failed scan db data")
		return models.User{}, err
	}
	if err := checkPassword(usr.Pass, creds.Pass); err != nil {
		return models.User{}, err
	}
	return usr, nil
}

func (dbs *DBStorage) GetUser(ctx context.Context, uid string) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	usr, err := scanUser(dbs.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1`, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, storerrros.ErrUserNotFound
	}
	return usr, err
}

func (dbs *DBStorage) GetUsers(ctx context.Context, page models.Page) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	limit, args := pageClause(page, 1)
	rows, err := dbs.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, uid`+limit, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}

func (dbs *DBStorage) UpdateUser(ctx context.Context, uid string, upd models.UserUpdate) (models.User, error) {
	if upd.Empty() {
		return dbs.GetUser(ctx, uid)
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var s setter
	if upd.MobileNumber != nil {
		s.add("mobile_number", *upd.MobileNumber)
	}
	if upd.Email != nil {
		s.add("email", *upd.Email)
	}
	if upd.Name != nil {
		s.add("name", *upd.Name)
	}
	if upd.Role != nil {
		s.add("role", *upd.Role)
	}
	if upd.Pass != nil {
		hash, err := hashPassword(*upd.Pass)
		if err != nil {
			return models.User{}, err
		}
		s.add("pass", hash)
	}
	query, args := s.query("users", "uid", uid, userColumns)
	usr, err := scanUser(dbs.pool.QueryRow(ctx, query, args...))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return models.User{}, storerrros.ErrUserNotFound
	case isUniqueViolation(err):
		return models.User{}, storerrros.ErrUserExists
	}
	return usr, err
}

func (dbs *DBStorage) DeleteUser(ctx context.Context, uid string) error {
	return dbs.deleteRow(ctx, "users", "uid", uid, storerrros.ErrUserNotFound)
}

func (dbs *DBStorage) deleteRow(ctx context.Context, table, key, id string, notFound error) error {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	res, err := dbs.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, key), id)
	if err != nil {
		log.Error().Err(err).Str("table", table).Msg("failed to delete row")
		return err
	}
	if res.RowsAffected() == 0 {
		log.Warn().Str(key, id).Msg("row not found")
		return notFound
	}
	log.Info().Str(key, id).Str("table", table).Msg("row deleted successfully")
	return nil
}

func (dbs *DBStorage) SaveBook(ctx context.Context, book models.Book) (models.Book, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	book.BID = uuid.New().String()
	_, err := dbs.pool.Exec(ctx, `INSERT INTO books (`+bookColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		book.BID, book.Title, book.Author, book.Genre, book.Year, book.Quantity)
	if err != nil {
		log.Error().Err(err).Msg("save book failed")
		return models.Book{}, err
	}
	return book, nil
}

func (dbs *DBStorage) GetBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var conditions []string
	var args []any
	eq := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.Genre != "" {
		eq("genre", filter.Genre)
	}
	if filter.Title != "" {
		eq("title", filter.Title)
	}
	if filter.Author != "" {
		eq("author", filter.Author)
	}
	if filter.Year != 0 {
		eq("year", filter.Year)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit, pageArgs := pageClause(filter.Page, len(args)+1)
	args = append(args, pageArgs...)

	rows, err := dbs.pool.Query(ctx, `SELECT `+bookColumns+` FROM books`+whereClause+` ORDER BY created_at, bid`+limit, args...)
	if err != nil {
		log.Error().Err(err).Msg("failed to get books from db")
		return nil, err
	}
	return collect(rows, scanBook)
}

func (dbs *DBStorage) GetBook(ctx context.Context, bid string) (models.Book, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	book, err := scanBook(dbs.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE bid = $1`, bid))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Book{}, storerrros.ErrBookNoExist
	}
	return book, err
}

func (dbs *DBStorage) UpdateBook(ctx context.Context, bid string, upd models.BookUpdate) (models.Book, error) {
	if upd.Empty() {
		return dbs.GetBook(ctx, bid)
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var s setter
	if upd.Title != nil {
		s.add("title", *upd.Title)
	}
	if upd.Author != nil {
		s.add("author", *upd.Author)
	}
	if upd.Genre != nil {
		s.add("genre", *upd.Genre)
	}
	if upd.Year != nil {
		s.add("year", *upd.Year)
	}
	if upd.Quantity != nil {
		s.add("quantity", *upd.Quantity)
	}
	query, args := s.query("books", "bid", bid, bookColumns)
	book, err := scanBook(dbs.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Book{}, storerrros.ErrBookNoExist
	}
	return book, err
}

// DeleteBook has no cascade: orders keep pointing at the removed book.
func (dbs *DBStorage) DeleteBook(ctx context.Context, bid string) error {
	return dbs.deleteRow(ctx, "books", "bid", bid, storerrros.ErrBookNoExist)
}

func (dbs *DBStorage) SaveAuthor(ctx context.Context, author models.Author) (models.Author, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	author.AID = uuid.New().String()
	_, err := dbs.pool.Exec(ctx, `INSERT INTO authors (`+authorColumns+`) VALUES ($1, $2, $3)`,
		author.AID, author.Name, author.Bio)
	if err != nil {
		return models.Author{}, err
	}
	return author, nil
}

func (dbs *DBStorage) GetAuthors(ctx context.Context, page models.Page) ([]models.Author, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	limit, args := pageClause(page, 1)
	rows, err := dbs.pool.Query(ctx, `SELECT `+authorColumns+` FROM authors ORDER BY created_at, aid`+limit, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAuthor)
}

func (dbs *DBStorage) GetAuthor(ctx context.Context, aid string) (models.Author, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	author, err := scanAuthor(dbs.pool.QueryRow(ctx, `SELECT `+authorColumns+` FROM authors WHERE aid = $1`, aid))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Author{}, storerrros.ErrAuthorNoExist
	}
	return author, err
}

func (dbs *DBStorage) UpdateAuthor(ctx context.Context, aid string, upd models.AuthorUpdate) (models.Author, error) {
	if upd.Empty() {
		return dbs.GetAuthor(ctx, aid)
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var s setter
	if upd.Name != nil {
		s.add("name", *upd.Name)
	}
	if upd.Bio != nil {
		s.add("bio", *upd.Bio)
	}
	query, args := s.query("authors", "aid", aid, authorColumns)
	author, err := scanAuthor(dbs.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Author{}, storerrros.ErrAuthorNoExist
	}
	return author, err
}

func (dbs *DBStorage) DeleteAuthor(ctx context.Context, aid string) error {
	return dbs.deleteRow(ctx, "authors", "aid", aid, storerrros.ErrAuthorNoExist)
}

// SaveOrder locks the referenced book and user rows for the lifetime of the
// transaction, so neither can be deleted between the check and the insert.
func (dbs *DBStorage) SaveOrder(ctx context.Context, order models.Order) (models.Order, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	tx, err := dbs.pool.Begin(ctx)
	if err != nil {
		return models.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	if err = tx.QueryRow(ctx, `SELECT bid FROM books WHERE bid = $1 FOR SHARE`, order.BookID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, storerrros.ErrBookNoExist
		}
		return models.Order{}, err
	}
	if err = tx.QueryRow(ctx, `SELECT uid FROM users WHERE uid = $1 FOR SHARE`, order.UserID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, storerrros.ErrUserNotFound
		}
		return models.Order{}, err
	}

	order.OID = uuid.New().String()
	_, err = tx.Exec(ctx, `INSERT INTO orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		order.OID, order.OrderNo, order.BookID, order.UserID, order.Quantity, order.Date)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Order{}, storerrros.ErrOrderExists
		}
		log.Error().Err(err).Msg("insert order failed")
		return models.Order{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func (dbs *DBStorage) GetOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	whereClause, args := "", []any{}
	if filter.UserID != "" {
		whereClause, args = " WHERE user_id = $1", append(args, filter.UserID)
	}
	limit, pageArgs := pageClause(filter.Page, len(args)+1)
	args = append(args, pageArgs...)
	rows, err := dbs.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders`+whereClause+` ORDER BY created_at, oid`+limit, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOrder)
}

func (dbs *DBStorage) GetOrder(ctx context.Context, oid string) (models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	order, err := scanOrder(dbs.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE oid = $1`, oid))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, storerrros.ErrOrderNoExist
	}
	return order, err
}

func (dbs *DBStorage) UpdateOrder(ctx context.Context, oid string, upd models.OrderUpdate) (models.Order, error) {
	if upd.Empty() {
		return dbs.GetOrder(ctx, oid)
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var s setter
	if upd.Quantity != nil {
		s.add("quantity", *upd.Quantity)
	}
	if upd.Date != nil {
		s.add("date", *upd.Date)
	}
	query, args := s.query("orders", "oid", oid, orderColumns)
	order, err := scanOrder(dbs.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, storerrros.ErrOrderNoExist
	}
	return order, err
}

func (dbs *DBStorage) DeleteOrder(ctx context.Context, oid string) error {
	return dbs.deleteRow(ctx, "orders", "oid", oid, storerrros.ErrOrderNoExist)
}

func Migrations(dbDsn string, migrationsPath string) error {
	log := logger.Get()
	migratePath := fmt.Sprintf("file://%s", migrationsPath)
	m, err := migrate.New(migratePath, dbDsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no migrations apply")
			return nil
		}
		return err
	}
	log.Info().Msg("all migrations apply")
	return nil
}
