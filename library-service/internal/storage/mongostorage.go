package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/azaliaz/lms/library-service/internal/domain/consts"
	"github.com/azaliaz/lms/library-service/internal/domain/models"
	"github.com/azaliaz/lms/library-service/internal/logger"
	storerrros "github.com/azaliaz/lms/library-service/internal/storage/errors"
)

const defaultMongoDB = "lms_database"

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	MobileNumber string             `bson:"mobileNumber"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name,omitempty"`
	Password     string             `bson:"password"`
	Role         string             `bson:"role"`
}

func (d userDoc) model() models.User {
	return models.User{
		UID:          d.ID.Hex(),
		MobileNumber: d.MobileNumber,
		Email:        d.Email,
		Name:         d.Name,
		Pass:         d.Password,
		Role:         d.Role,
	}
}

type bookDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Title    string             `bson:"title"`
	Author   string             `bson:"author"`
	Genre    string             `bson:"genre"`
	Year     int                `bson:"year,omitempty"`
	Quantity int                `bson:"quantity"`
}

func (d bookDoc) model() models.Book {
	return models.Book{
		BID:      d.ID.Hex(),
		Title:    d.Title,
		Author:   d.Author,
		Genre:    d.Genre,
		Year:     d.Year,
		Quantity: d.Quantity,
	}
}

type authorDoc struct {
	ID   primitive.ObjectID `bson:"_id,omitempty"`
	Name string             `bson:"name"`
	Bio  string             `bson:"bio,omitempty"`
}

func (d authorDoc) model() models.Author {
	return models.Author{AID: d.ID.Hex(), Name: d.Name, Bio: d.Bio}
}

type orderDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	OrderNo  string             `bson:"orderNo"`
	BookID   primitive.ObjectID `bson:"bookId"`
	UserID   primitive.ObjectID `bson:"userId"`
	Quantity int                `bson:"quantity"`
	Date     time.Time          `bson:"date"`
}

func (d orderDoc) model() models.Order {
	return models.Order{
		OID:      d.ID.Hex(),
		OrderNo:  d.OrderNo,
		BookID:   d.BookID.Hex(),
		UserID:   d.UserID.Hex(),
		Quantity: d.Quantity,
		Date:     d.Date.UTC(),
	}
}

// MongoStorage keeps users, books, authors and orders as documents.
// Order creation needs a replica set because it runs in a transaction.
type MongoStorage struct {
	client  *mongo.Client
	users   *mongo.Collection
	books   *mongo.Collection
	authors *mongo.Collection
	orders  *mongo.Collection
}

func NewMongo(ctx context.Context, uri string) (*MongoStorage, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, err
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = defaultMongoDB
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(dbName)
	ms := &MongoStorage{
		client:  client,
		users:   db.Collection("users"),
		books:   db.Collection("books"),
		authors: db.Collection("authors"),
		orders:  db.Collection("orders"),
	}
	if err := ms.ensureIndexes(pingCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return ms, nil
}

func (ms *MongoStorage) ensureIndexes(ctx context.Context) error {
	log := logger.Get()
	unique := options.Index().SetUnique(true)
	if _, err := ms.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "mobileNumber", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
	}); err != nil {
		return err
	}
	if _, err := ms.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "orderNo", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	}); err != nil {
		return err
	}
	if _, err := ms.books.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "genre", Value: 1}},
	}); err != nil {
		return err
	}
	log.Info().Msg("mongo indexes ensured")
	return nil
}

func (ms *MongoStorage) Close(ctx context.Context) error {
	return ms.client.Disconnect(ctx)
}

func findOptions(page models.Page) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if page.Limit > 0 {
		opts.SetSkip(int64(page.Offset())).SetLimit(int64(page.Limit))
	}
	return opts
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

func findAll[D any, M any](ctx context.Context, coll *mongo.Collection, filter any, page models.Page, toModel func(D) M) ([]M, error) {
	cur, err := coll.Find(ctx, filter, findOptions(page))
	if err != nil {
		return nil, err
	}
	var docs []D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]M, 0, len(docs))
	for _, d := range docs {
		result = append(result, toModel(d))
	}
	return result, nil
}

func (ms *MongoStorage) SaveUser(ctx context.Context, user models.User) (models.User, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	err := ms.users.FindOne(ctx, bson.M{"$or": bson.A{
		bson.M{"mobileNumber": user.MobileNumber},
		bson.M{"email": user.Email},
	}}).Err()
	if err == nil {
		return models.User{}, storerrros.ErrUserExists
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		log.Error().Err(err).Msg("check user failed")
		return models.User{}, err
	}

	hash, err := hashPassword(user.Pass)
	if err != nil {
		return models.User{}, err
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		MobileNumber: user.MobileNumber,
		Email:        user.Email,
		Name:         user.Name,
		Password:     hash,
		Role:         user.Role,
	}
	if _, err := ms.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, storerrros.ErrUserExists
		}
		log.Error().Err(err).Msg("failed to insert user")
		return models.User{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) ValidUser(ctx context.Context, creds models.Credentials) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	filter := bson.M{"mobileNumber": creds.MobileNumber}
	if creds.MobileNumber == "" {
		filter = bson.M{"email": creds.Email}
	}
	var doc userDoc
	if err := ms.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storerrros.ErrUserNotFound
		}
		return models.User{}, err
	}
	if err := checkPassword(doc.Password, creds.Pass); err != nil {
		return models.User{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) GetUser(ctx context.Context, uid string) (models.User, error) {
	id, err := primitive.ObjectIDFromHex(uid)
	if err != nil {
		return models.User{}, storerrros.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	var doc userDoc
	if err := ms.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storerrros.ErrUserNotFound
		}
		return models.User{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) GetUsers(ctx context.Context, page models.Page) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	return findAll(ctx, ms.users, bson.M{}, page, userDoc.model)
}

func (ms *MongoStorage) UpdateUser(ctx context.Context, uid string, upd models.UserUpdate) (models.User, error) {
	if upd.Empty() {
		return ms.GetUser(ctx, uid)
	}
	id, err := primitive.ObjectIDFromHex(uid)
	if err != nil {
		return models.User{}, storerrros.ErrUserNotFound
	}
	set := bson.M{}
	if upd.MobileNumber != nil {
		set["mobileNumber"] = *upd.MobileNumber
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Role != nil {
		set["role"] = *upd.Role
	}
	if upd.Pass != nil {
		hash, err := hashPassword(*upd.Pass)
		if err != nil {
			return models.User{}, err
		}
		set["password"] = hash
	}

	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	var doc userDoc
	err = ms.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate()).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.User{}, storerrros.ErrUserNotFound
	case mongo.IsDuplicateKeyError(err):
		return models.User{}, storerrros.ErrUserExists
	case err != nil:
		return models.User{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) DeleteUser(ctx context.Context, uid string) error {
	return deleteByID(ctx, ms.users, uid, storerrros.ErrUserNotFound)
}

func deleteByID(ctx context.Context, coll *mongo.Collection, hex string, notFound error) error {
	log := logger.Get()
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return notFound
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		log.Error().Err(err).Str("collection", coll.Name()).Msg("failed to delete document")
		return err
	}
	if res.DeletedCount == 0 {
		return notFound
	}
	log.Info().Str("id", hex).Str("collection", coll.Name()).Msg("document deleted successfully")
	return nil
}

func (ms *MongoStorage) SaveBook(ctx context.Context, book models.Book) (models.Book, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	doc := bookDoc{
		ID:       primitive.NewObjectID(),
		Title:    book.Title,
		Author:   book.Author,
		Genre:    book.Genre,
		Year:     book.Year,
		Quantity: book.Quantity,
	}
	if _, err := ms.books.InsertOne(ctx, doc); err != nil {
		return models.Book{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) GetBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error) {
	query := bson.M{}
	if filter.Genre != "" {
		query["genre"] = filter.Genre
	}
	if filter.Title != "" {
		query["title"] = filter.Title
	}
	if filter.Author != "" {
		query["author"] = filter.Author
	}
	if filter.Year != 0 {
		query["year"] = filter.Year
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	return findAll(ctx, ms.books, query, filter.Page, bookDoc.model)
}

func (ms *MongoStorage) GetBook(ctx context.Context, bid string) (models.Book, error) {
	id, err := primitive.ObjectIDFromHex(bid)
	if err != nil {
		return models.Book{}, storerrros.ErrBookNoExist
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	var doc bookDoc
	if err := ms.books.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Book{}, storerrros.ErrBookNoExist
		}
		return models.Book{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) UpdateBook(ctx context.Context, bid string, upd models.BookUpdate) (models.Book, error) {
	if upd.Empty() {
		return ms.GetBook(ctx, bid)
	}
	id, err := primitive.ObjectIDFromHex(bid)
	if err != nil {
		return models.Book{}, storerrros.ErrBookNoExist
	}
	set := bson.M{}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Author != nil {
		set["author"] = *upd.Author
	}
	if upd.Genre != nil {
		set["genre"] = *upd.Genre
	}
	if upd.Year != nil {
		set["year"] = *upd.Year
	}
	if upd.Quantity != nil {
		set["quantity"] = *upd.Quantity
	}

	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	var doc bookDoc
	if err := ms.books.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate()).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Book{}, storerrros.ErrBookNoExist
		}
		return models.Book{}, err
	}
	return doc.model(), nil
}

// DeleteBook has no cascade: orders keep pointing at the removed book.
func (ms *MongoStorage) DeleteBook(ctx context.Context, bid string) error {
	return deleteByID(ctx, ms.books, bid, storerrros.ErrBookNoExist)
}

func (ms *MongoStorage) SaveAuthor(ctx context.Context, author models.Author) (models.Author, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	doc := authorDoc{ID: primitive.NewObjectID(), Name: author.Name, Bio: author.Bio}
	if _, err := ms.authors.InsertOne(ctx, doc); err != nil {
		return models.Author{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) GetAuthors(ctx context.Context, page models.Page) ([]models.Author, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	return findAll(ctx, ms.authors, bson.M{}, page, authorDoc.model)
}

func (ms *MongoStorage) GetAuthor(ctx context.Context, aid string) (models.Author, error) {
	id, err := primitive.ObjectIDFromHex(aid)
	if err != nil {
		return models.Author{}, storerrros.ErrAuthorNoExist
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	var doc authorDoc
	if err := ms.authors.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Author{}, storerrros.ErrAuthorNoExist
		}
		return models.Author{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) UpdateAuthor(ctx context.Context, aid string, upd models.AuthorUpdate) (models.Author, error) {
	if upd.Empty() {
		return ms.GetAuthor(ctx, aid)
	}
	id, err := primitive.ObjectIDFromHex(aid)
	if err != nil {
		return models.Author{}, storerrros.ErrAuthorNoExist
	}
	set := bson.M{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}

	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	var doc authorDoc
	if err := ms.authors.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate()).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Author{}, storerrros.ErrAuthorNoExist
		}
		return models.Author{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) DeleteAuthor(ctx context.Context, aid string) error {
	return deleteByID(ctx, ms.authors, aid, storerrros.ErrAuthorNoExist)
}

// SaveOrder runs the existence checks and the insert in one transaction.
// Touching lastOrderedAt on the book and the user turns a concurrent
// delete of either into a write conflict instead of a dangling order.
func (ms *MongoStorage) SaveOrder(ctx context.Context, order models.Order) (models.Order, error) {
	log := logger.Get()
	bookID, err := primitive.ObjectIDFromHex(order.BookID)
	if err != nil {
		return models.Order{}, storerrros.ErrBookNoExist
	}
	userID, err := primitive.ObjectIDFromHex(order.UserID)
	if err != nil {
		return models.Order{}, storerrros.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	sess, err := ms.client.StartSession()
	if err != nil {
		return models.Order{}, err
	}
	defer sess.EndSession(ctx)

	doc := orderDoc{
		ID:       primitive.NewObjectID(),
		OrderNo:  order.OrderNo,
		BookID:   bookID,
		UserID:   userID,
		Quantity: order.Quantity,
		Date:     order.Date,
	}
	touch := bson.M{"$set": bson.M{"lastOrderedAt": time.Now().UTC()}}
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := ms.books.UpdateOne(sc, bson.M{"_id": bookID}, touch)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, storerrros.ErrBookNoExist
		}
		if res, err = ms.users.UpdateOne(sc, bson.M{"_id": userID}, touch); err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, storerrros.ErrUserNotFound
		}
		if _, err := ms.orders.InsertOne(sc, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, storerrros.ErrOrderExists
			}
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		if !errors.Is(err, storerrros.ErrBookNoExist) && !errors.Is(err, storerrros.ErrUserNotFound) &&
			!errors.Is(err, storerrros.ErrOrderExists) {
			log.Error().Err(err).Msg("save order transaction failed")
		}
		return models.Order{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) GetOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	query := bson.M{}
	if filter.UserID != "" {
		userID, err := primitive.ObjectIDFromHex(filter.UserID)
		if err != nil {
			return []models.Order{}, nil
		}
		query["userId"] = userID
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	return findAll(ctx, ms.orders, query, filter.Page, orderDoc.model)
}

func (ms *MongoStorage) GetOrder(ctx context.Context, oid string) (models.Order, error) {
	id, err := primitive.ObjectIDFromHex(oid)
	if err != nil {
		return models.Order{}, storerrros.ErrOrderNoExist
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	var doc orderDoc
	if err := ms.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Order{}, storerrros.ErrOrderNoExist
		}
		return models.Order{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) UpdateOrder(ctx context.Context, oid string, upd models.OrderUpdate) (models.Order, error) {
	if upd.Empty() {
		return ms.GetOrder(ctx, oid)
	}
	id, err := primitive.ObjectIDFromHex(oid)
	if err != nil {
		return models.Order{}, storerrros.ErrOrderNoExist
	}
	set := bson.M{}
	if upd.Quantity != nil {
		set["quantity"] = *upd.Quantity
	}
	if upd.Date != nil {
		set["date"] = *upd.Date
	}

	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	var doc orderDoc
	if err := ms.orders.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate()).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Order{}, storerrros.ErrOrderNoExist
		}
		return models.Order{}, err
	}
	return doc.model(), nil
}

func (ms *MongoStorage) DeleteOrder(ctx context.Context, oid string) error {
	return deleteByID(ctx, ms.orders, oid, storerrros.ErrOrderNoExist)
}
