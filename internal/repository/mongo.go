package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mmeshcher/driveright-academy/internal/model"
)

const (
	collLessons     = "lessons"
	collPayments    = "payments"
	collEnrollments = "enrollments"
	collUsers       = "users"
	collSettings    = "settings"
)

// MongoRepository хранит данные в MongoDB. Многодокументные изменения
// выполняются в транзакциях, поэтому сервер должен работать как replica set.
type MongoRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoRepository подключается к MongoDB и создаёт необходимые индексы.
func NewMongoRepository(uri, database string) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	r := &MongoRepository{client: client, db: client.Database(database)}
	if err := r.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return r, nil
}

func (r *MongoRepository) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collPayments: {
			{Keys: bson.D{{Key: "transaction_reference", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "payment_method", Value: 1}}},
		},
		collEnrollments: {
			{Keys: bson.D{{Key: "payment_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "lesson_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		collUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, models := range indexes {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// Close отключается от MongoDB.
func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func newObjectID() string {
	return primitive.NewObjectID().Hex()
}

func (r *MongoRepository) inTx(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any, notFound error) (*T, error) {
	var v T
	if err := coll.FindOne(ctx, filter).Decode(&v); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}
	return &v, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts *options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}

	var res []T
	if err := cur.All(ctx, &res); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return res, nil
}

func byCreated(order int) *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: order}})
}

// replaceVersioned заменяет документ, только если его версия совпадает с ожидаемой.
func replaceVersioned(ctx context.Context, coll *mongo.Collection, id string, version int64, doc any, notFound error) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "version": version}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("replace in %s: %w", coll.Name(), err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("count in %s: %w", coll.Name(), err)
	}
	if n == 0 {
		return notFound
	}
	return ErrVersionConflict
}

// ---- lessons ----

// CreateLesson сохраняет новый урок и присваивает ему идентификатор.
func (r *MongoRepository) CreateLesson(ctx context.Context, l *model.Lesson) error {
	now := time.Now().UTC()
	l.ID = newObjectID()
	l.CreatedAt, l.UpdatedAt = now, now

	if _, err := r.db.Collection(collLessons).InsertOne(ctx, l); err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}
	return nil
}

// UpdateLesson перезаписывает данные урока.
func (r *MongoRepository) UpdateLesson(ctx context.Context, l *model.Lesson) error {
	l.UpdatedAt = time.Now().UTC()

	res, err := r.db.Collection(collLessons).ReplaceOne(ctx, bson.M{"_id": l.ID}, l)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrLessonNotFound
	}
	return nil
}

// GetLesson возвращает урок по идентификатору.
func (r *MongoRepository) GetLesson(ctx context.Context, id string) (*model.Lesson, error) {
	return findOne[model.Lesson](ctx, r.db.Collection(collLessons), bson.M{"_id": id}, ErrLessonNotFound)
}

// ListLessons возвращает каталог уроков в порядке добавления.
func (r *MongoRepository) ListLessons(ctx context.Context) ([]model.Lesson, error) {
	return findAll[model.Lesson](ctx, r.db.Collection(collLessons), bson.M{}, byCreated(1))
}

// touchLesson пишет в документ урока, чтобы параллельные транзакции
// бронирования и удаления конфликтовали между собой.
func (r *MongoRepository) touchLesson(ctx context.Context, id string) error {
	res, err := r.db.Collection(collLessons).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"write_seq": 1}},
	)
	if err != nil {
		return fmt.Errorf("lock lesson: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrLessonNotFound
	}
	return nil
}

// DeleteLesson удаляет урок, если на него не ссылаются неотменённые записи.
func (r *MongoRepository) DeleteLesson(ctx context.Context, id string) error {
	return r.inTx(ctx, func(sc mongo.SessionContext) error {
		if err := r.touchLesson(sc, id); err != nil {
			return err
		}

		active, err := r.db.Collection(collEnrollments).CountDocuments(sc, bson.M{
			"lesson_id": id,
			"status":    bson.M{"$ne": model.EnrollmentCancelled},
		})
		if err != nil {
			return fmt.Errorf("count enrollments: %w", err)
		}
		if active > 0 {
			return ErrLessonInUse
		}

		if _, err := r.db.Collection(collLessons).DeleteOne(sc, bson.M{"_id": id}); err != nil {
			return fmt.Errorf("delete lesson: %w", err)
		}
		return nil
	})
}

// ---- payments & enrollments ----

// CreateBooking атомарно сохраняет платёж и связанную с ним запись на урок.
func (r *MongoRepository) CreateBooking(ctx context.Context, p *model.Payment, e *model.Enrollment) error {
	now := time.Now().UTC()
	p.ID = newObjectID()
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = now, now

	e.ID = newObjectID()
	e.PaymentID = p.ID
	e.Version = 1
	e.CreatedAt, e.UpdatedAt = now, now

	return r.inTx(ctx, func(sc mongo.SessionContext) error {
		if err := r.touchLesson(sc, p.LessonID); err != nil {
			return err
		}

		if _, err := r.db.Collection(collPayments).InsertOne(sc, p); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrDuplicateReference
			}
			return fmt.Errorf("insert payment: %w", err)
		}

		if _, err := r.db.Collection(collEnrollments).InsertOne(sc, e); err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
		return nil
	})
}

// SaveBookingState сохраняет изменения платежа и/или записи в одной транзакции
// с проверкой версий. После успешного сохранения версии в структурах увеличиваются.
func (r *MongoRepository) SaveBookingState(ctx context.Context, p *model.Payment, e *model.Enrollment) error {
	now := time.Now().UTC()

	var nextP *model.Payment
	if p != nil {
		cp := *p
		cp.Version++
		cp.UpdatedAt = now
		nextP = &cp
	}
	var nextE *model.Enrollment
	if e != nil {
		cp := *e
		cp.Version++
		cp.UpdatedAt = now
		nextE = &cp
	}

	err := r.inTx(ctx, func(sc mongo.SessionContext) error {
		if nextP != nil {
			err := replaceVersioned(sc, r.db.Collection(collPayments), p.ID, p.Version, nextP, ErrPaymentNotFound)
			if err != nil {
				return err
			}
		}
		if nextE != nil {
			err := replaceVersioned(sc, r.db.Collection(collEnrollments), e.ID, e.Version, nextE, ErrEnrollmentNotFound)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if nextP != nil {
		*p = *nextP
	}
	if nextE != nil {
		*e = *nextE
	}
	return nil
}

// GetPayment возвращает платёж по идентификатору.
func (r *MongoRepository) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	return findOne[model.Payment](ctx, r.db.Collection(collPayments), bson.M{"_id": id}, ErrPaymentNotFound)
}

// GetPaymentByReference возвращает платёж по референсу транзакции.
func (r *MongoRepository) GetPaymentByReference(ctx context.Context, reference string) (*model.Payment, error) {
	return findOne[model.Payment](ctx, r.db.Collection(collPayments),
		bson.M{"transaction_reference": reference}, ErrPaymentNotFound)
}

// ListPayments возвращает все платежи, начиная с самых новых.
func (r *MongoRepository) ListPayments(ctx context.Context) ([]model.Payment, error) {
	return findAll[model.Payment](ctx, r.db.Collection(collPayments), bson.M{}, byCreated(-1))
}

// ListPendingGatewayPayments возвращает ожидающие платежи через шлюз, начиная с самых старых.
func (r *MongoRepository) ListPendingGatewayPayments(ctx context.Context, limit int) ([]model.Payment, error) {
	filter := bson.M{
		"status":            model.PaymentPending,
		"payment_method":    bson.M{"$in": []model.PaymentMethod{model.MethodCard, model.MethodMobile}},
		"gateway_reference": bson.M{"$exists": true, "$ne": ""},
	}
	return findAll[model.Payment](ctx, r.db.Collection(collPayments), filter, byCreated(1).SetLimit(int64(limit)))
}

// GetEnrollment возвращает запись по идентификатору.
func (r *MongoRepository) GetEnrollment(ctx context.Context, id string) (*model.Enrollment, error) {
	return findOne[model.Enrollment](ctx, r.db.Collection(collEnrollments), bson.M{"_id": id}, ErrEnrollmentNotFound)
}

// GetEnrollmentByPayment возвращает запись, связанную с платежом.
func (r *MongoRepository) GetEnrollmentByPayment(ctx context.Context, paymentID string) (*model.Enrollment, error) {
	return findOne[model.Enrollment](ctx, r.db.Collection(collEnrollments),
		bson.M{"payment_id": paymentID}, ErrEnrollmentNotFound)
}

// ListEnrollments возвращает записи, начиная с самых новых. Пустой userID означает все записи.
func (r *MongoRepository) ListEnrollments(ctx context.Context, userID string) ([]model.Enrollment, error) {
	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}
	return findAll[model.Enrollment](ctx, r.db.Collection(collEnrollments), filter, byCreated(-1))
}

// ---- users ----

// CreateUser создаёт нового пользователя.
func (r *MongoRepository) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	u.ID = newObjectID()
	u.CreatedAt, u.UpdatedAt = now, now

	if _, err := r.db.Collection(collUsers).InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateUser перезаписывает профиль пользователя.
func (r *MongoRepository) UpdateUser(ctx context.Context, u *model.User) error {
	u.UpdatedAt = time.Now().UTC()

	res, err := r.db.Collection(collUsers).ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *MongoRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	return findOne[model.User](ctx, r.db.Collection(collUsers), bson.M{"_id": id}, ErrUserNotFound)
}

// GetUserByEmail возвращает пользователя по email.
func (r *MongoRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return findOne[model.User](ctx, r.db.Collection(collUsers), bson.M{"email": email}, ErrUserNotFound)
}

// ListUsers возвращает всех пользователей в порядке регистрации.
func (r *MongoRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	return findAll[model.User](ctx, r.db.Collection(collUsers), bson.M{}, byCreated(1))
}

// ---- settings ----

type settingDoc struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// LoadSettings возвращает все сохранённые настройки.
func (r *MongoRepository) LoadSettings(ctx context.Context) (map[string]string, error) {
	docs, err := findAll[settingDoc](ctx, r.db.Collection(collSettings), bson.M{}, options.Find())
	if err != nil {
		return nil, err
	}

	res := make(map[string]string, len(docs))
	for _, d := range docs {
		res[d.Key] = d.Value
	}
	return res, nil
}

// SaveSettings сохраняет переданные настройки, перезаписывая существующие ключи.
func (r *MongoRepository) SaveSettings(ctx context.Context, values map[string]string) error {
	coll := r.db.Collection(collSettings)
	for k, v := range values {
		_, err := coll.UpdateOne(ctx,
			bson.M{"_id": k},
			bson.M{"$set": bson.M{"value": v}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("upsert setting %s: %w", k, err)
		}
	}
	return nil
}
