package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/driveright-academy/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет fn при конфликтах сериализации, дедлоках и обрывах соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil || i == len(delays) || !isRetryable(err) {
			return err
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func encodeJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return b, nil
}

func encodeOptional[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return encodeJSON(v)
}

func decodeJSON(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// ---- lessons ----

const lessonColumns = `id, title, description, full_description, price, duration, category, vehicle,
	image, popular, features, curriculum, instructors, created_at, updated_at`

func scanLesson(row pgx.Row) (*model.Lesson, error) {
	var (
		l                                 model.Lesson
		category, vehicle                 string
		features, curriculum, instructors []byte
	)
	err := row.Scan(&l.ID, &l.Title, &l.Description, &l.FullDescription, &l.Price, &l.Duration,
		&category, &vehicle, &l.Image, &l.Popular, &features, &curriculum, &instructors,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}

	l.Category = model.LessonCategory(category)
	l.Vehicle = model.Vehicle(vehicle)
	if err := decodeJSON(features, &l.Features); err != nil {
		return nil, err
	}
	if err := decodeJSON(curriculum, &l.Curriculum); err != nil {
		return nil, err
	}
	if err := decodeJSON(instructors, &l.Instructors); err != nil {
		return nil, err
	}
	return &l, nil
}

func lessonJSON(l *model.Lesson) (features, curriculum, instructors []byte, err error) {
	if features, err = encodeJSON(nonNil(l.Features)); err != nil {
		return
	}
	if curriculum, err = encodeJSON(nonNil(l.Curriculum)); err != nil {
		return
	}
	instructors, err = encodeJSON(nonNil(l.Instructors))
	return
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// CreateLesson сохраняет новый урок и присваивает ему идентификатор.
func (r *PostgresRepository) CreateLesson(ctx context.Context, l *model.Lesson) error {
	features, curriculum, instructors, err := lessonJSON(l)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	l.ID = uuid.NewString()
	l.CreatedAt, l.UpdatedAt = now, now

	_, err = r.pool.Exec(ctx,
		`INSERT INTO lessons (`+lessonColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		l.ID, l.Title, l.Description, l.FullDescription, l.Price, l.Duration,
		string(l.Category), string(l.Vehicle), l.Image, l.Popular, features, curriculum, instructors,
		l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}
	return nil
}

// UpdateLesson перезаписывает данные урока.
func (r *PostgresRepository) UpdateLesson(ctx context.Context, l *model.Lesson) error {
	features, curriculum, instructors, err := lessonJSON(l)
	if err != nil {
		return err
	}

	l.UpdatedAt = time.Now().UTC()

	tag, err := r.pool.Exec(ctx,
		`UPDATE lessons SET title = $2, description = $3, full_description = $4, price = $5, duration = $6,
		        category = $7, vehicle = $8, image = $9, popular = $10, features = $11, curriculum = $12,
		        instructors = $13, updated_at = $14
		 WHERE id = $1`,
		l.ID, l.Title, l.Description, l.FullDescription, l.Price, l.Duration,
		string(l.Category), string(l.Vehicle), l.Image, l.Popular, features, curriculum, instructors,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLessonNotFound
	}
	return nil
}

// GetLesson возвращает урок по идентификатору.
func (r *PostgresRepository) GetLesson(ctx context.Context, id string) (*model.Lesson, error) {
	l, err := scanLesson(r.pool.QueryRow(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	return l, nil
}

// ListLessons возвращает каталог уроков в порядке добавления.
func (r *PostgresRepository) ListLessons(ctx context.Context) ([]model.Lesson, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+lessonColumns+` FROM lessons ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("select lessons: %w", err)
	}
	defer rows.Close()

	var res []model.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		res = append(res, *l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// DeleteLesson удаляет урок, если на него не ссылаются неотменённые записи.
func (r *PostgresRepository) DeleteLesson(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var dummy int
		err := tx.QueryRow(ctx, `SELECT 1 FROM lessons WHERE id = $1 FOR UPDATE`, id).Scan(&dummy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLessonNotFound
			}
			return fmt.Errorf("lock lesson: %w", err)
		}

		var active int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM enrollments WHERE lesson_id = $1 AND status <> $2`,
			id, string(model.EnrollmentCancelled),
		).Scan(&active)
		if err != nil {
			return fmt.Errorf("count enrollments: %w", err)
		}
		if active > 0 {
			return ErrLessonInUse
		}

		if _, err := tx.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete lesson: %w", err)
		}
		return nil
	})
}

// ---- payments & enrollments ----

const paymentColumns = `id, amount, lesson_id, lesson_title, user_id, customer_name, customer_email,
	customer_phone, payment_method, status, card_details, bank_details, mobile_details,
	transaction_reference, gateway_reference, authorization_url, version, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p                  model.Payment
		method, status     string
		card, bank, mobile []byte
	)
	err := row.Scan(&p.ID, &p.Amount, &p.LessonID, &p.LessonTitle, &p.UserID, &p.CustomerName,
		&p.CustomerEmail, &p.CustomerPhone, &method, &status, &card, &bank, &mobile,
		&p.TransactionReference, &p.GatewayReference, &p.AuthorizationURL, &p.Version,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Method = model.PaymentMethod(method)
	p.Status = model.PaymentStatus(status)
	if err := decodeJSON(card, &p.CardDetails); err != nil {
		return nil, err
	}
	if err := decodeJSON(bank, &p.BankDetails); err != nil {
		return nil, err
	}
	if err := decodeJSON(mobile, &p.MobileDetails); err != nil {
		return nil, err
	}
	return &p, nil
}

const enrollmentColumns = `id, lesson_id, lesson_title, user_id, customer_name, customer_email,
	customer_phone, date, time_slot, vehicle_type, payment_id, status, instructor_id, feedback,
	version, created_at, updated_at`

func scanEnrollment(row pgx.Row) (*model.Enrollment, error) {
	var (
		e               model.Enrollment
		vehicle, status string
	)
	err := row.Scan(&e.ID, &e.LessonID, &e.LessonTitle, &e.UserID, &e.CustomerName, &e.CustomerEmail,
		&e.CustomerPhone, &e.Date, &e.TimeSlot, &vehicle, &e.PaymentID, &status, &e.InstructorID,
		&e.Feedback, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.VehicleType = model.Vehicle(vehicle)
	e.Status = model.EnrollmentStatus(status)
	return &e, nil
}

// CreateBooking атомарно сохраняет платёж и связанную с ним запись на урок.
// Строка урока блокируется на чтение, чтобы его нельзя было удалить параллельно.
func (r *PostgresRepository) CreateBooking(ctx context.Context, p *model.Payment, e *model.Enrollment) error {
	card, err := encodeOptional(p.CardDetails)
	if err != nil {
		return err
	}
	bank, err := encodeOptional(p.BankDetails)
	if err != nil {
		return err
	}
	mobile, err := encodeOptional(p.MobileDetails)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = now, now

	e.ID = uuid.NewString()
	e.PaymentID = p.ID
	e.Version = 1
	e.CreatedAt, e.UpdatedAt = now, now

	return r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var dummy int
			err := tx.QueryRow(ctx, `SELECT 1 FROM lessons WHERE id = $1 FOR SHARE`, p.LessonID).Scan(&dummy)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrLessonNotFound
				}
				return fmt.Errorf("lock lesson: %w", err)
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO payments (`+paymentColumns+`)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
				p.ID, p.Amount, p.LessonID, p.LessonTitle, p.UserID, p.CustomerName, p.CustomerEmail,
				p.CustomerPhone, string(p.Method), string(p.Status), card, bank, mobile,
				p.TransactionReference, p.GatewayReference, p.AuthorizationURL, p.Version,
				p.CreatedAt, p.UpdatedAt,
			)
			if err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicateReference
				}
				return fmt.Errorf("insert payment: %w", err)
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO enrollments (`+enrollmentColumns+`)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
				e.ID, e.LessonID, e.LessonTitle, e.UserID, e.CustomerName, e.CustomerEmail,
				e.CustomerPhone, e.Date, e.TimeSlot, string(e.VehicleType), e.PaymentID, string(e.Status),
				e.InstructorID, e.Feedback, e.Version, e.CreatedAt, e.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert enrollment: %w", err)
			}
			return nil
		})
	})
}

// SaveBookingState сохраняет изменения платежа и/или записи в одной транзакции.
// Каждая запись обновляется только если её версия совпадает с прочитанной,
// после успешного сохранения версии в структурах увеличиваются.
func (r *PostgresRepository) SaveBookingState(ctx context.Context, p *model.Payment, e *model.Enrollment) error {
	now := time.Now().UTC()

	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			if p != nil {
				if err := updatePayment(ctx, tx, p, now); err != nil {
					return err
				}
			}
			if e != nil {
				if err := updateEnrollment(ctx, tx, e, now); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	if p != nil {
		p.Version++
		p.UpdatedAt = now
	}
	if e != nil {
		e.Version++
		e.UpdatedAt = now
	}
	return nil
}

func updatePayment(ctx context.Context, tx pgx.Tx, p *model.Payment, now time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE payments
		 SET status = $3, transaction_reference = $4, gateway_reference = $5, authorization_url = $6,
		     version = version + 1, updated_at = $7
		 WHERE id = $1 AND version = $2`,
		p.ID, p.Version, string(p.Status), p.TransactionReference, p.GatewayReference, p.AuthorizationURL, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return missingOrConflict(ctx, tx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, p.ID, ErrPaymentNotFound)
}

func updateEnrollment(ctx context.Context, tx pgx.Tx, e *model.Enrollment, now time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE enrollments
		 SET status = $3, instructor_id = $4, feedback = $5, version = version + 1, updated_at = $6
		 WHERE id = $1 AND version = $2`,
		e.ID, e.Version, string(e.Status), e.InstructorID, e.Feedback, now,
	)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return missingOrConflict(ctx, tx, `SELECT EXISTS (SELECT 1 FROM enrollments WHERE id = $1)`, e.ID, ErrEnrollmentNotFound)
}

func missingOrConflict(ctx context.Context, tx pgx.Tx, query, id string, notFound error) error {
	var exists bool
	if err := tx.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("check existence: %w", err)
	}
	if !exists {
		return notFound
	}
	return ErrVersionConflict
}

// GetPayment возвращает платёж по идентификатору.
func (r *PostgresRepository) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	return r.getPayment(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// GetPaymentByReference возвращает платёж по референсу транзакции.
func (r *PostgresRepository) GetPaymentByReference(ctx context.Context, reference string) (*model.Payment, error) {
	return r.getPayment(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_reference = $1`, reference)
}

func (r *PostgresRepository) getPayment(ctx context.Context, query, arg string) (*model.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// ListPayments возвращает все платежи, начиная с самых новых.
func (r *PostgresRepository) ListPayments(ctx context.Context) ([]model.Payment, error) {
	return r.queryPayments(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC`)
}

// ListPendingGatewayPayments возвращает ожидающие платежи через шлюз, начиная с самых старых.
func (r *PostgresRepository) ListPendingGatewayPayments(ctx context.Context, limit int) ([]model.Payment, error) {
	return r.queryPayments(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE status = $1 AND payment_method IN ($2, $3) AND gateway_reference <> ''
		 ORDER BY created_at
		 LIMIT $4`,
		string(model.PaymentPending), string(model.MethodCard), string(model.MethodMobile), limit,
	)
}

func (r *PostgresRepository) queryPayments(ctx context.Context, query string, args ...any) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// GetEnrollment возвращает запись по идентификатору.
func (r *PostgresRepository) GetEnrollment(ctx context.Context, id string) (*model.Enrollment, error) {
	return r.getEnrollment(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id)
}

// GetEnrollmentByPayment возвращает запись, связанную с платежом.
func (r *PostgresRepository) GetEnrollmentByPayment(ctx context.Context, paymentID string) (*model.Enrollment, error) {
	return r.getEnrollment(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE payment_id = $1`, paymentID)
}

func (r *PostgresRepository) getEnrollment(ctx context.Context, query, arg string) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return e, nil
}

// ListEnrollments возвращает записи, начиная с самых новых. Пустой userID означает все записи.
func (r *PostgresRepository) ListEnrollments(ctx context.Context, userID string) ([]model.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select enrollments: %w", err)
	}
	defer rows.Close()

	var res []model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		res = append(res, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ---- users ----

const userColumns = `id, name, email, phone, password_hash, role, profile_image, address, date_of_birth,
	enrolled_courses, completed_lessons, upcoming_lessons, certificates, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u                                 model.User
		role                              string
		enrolled, completed, upcoming, cs []byte
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &role, &u.ProfileImage,
		&u.Address, &u.DateOfBirth, &enrolled, &completed, &upcoming, &cs, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	u.Role = model.Role(role)
	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{enrolled, &u.EnrolledCourses},
		{completed, &u.CompletedLessons},
		{upcoming, &u.UpcomingLessons},
		{cs, &u.Certificates},
	} {
		if err := decodeJSON(f.raw, f.dst); err != nil {
			return nil, err
		}
	}
	return &u, nil
}

func userJSON(u *model.User) ([4][]byte, error) {
	var out [4][]byte
	values := []any{nonNil(u.EnrolledCourses), nonNil(u.CompletedLessons), nonNil(u.UpcomingLessons), nonNil(u.Certificates)}
	for i, v := range values {
		b, err := encodeJSON(v)
		if err != nil {
			return out, err
		}
		out[i] = b
	}
	return out, nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) error {
	lists, err := userJSON(u)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	u.ID = uuid.NewString()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err = r.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, string(u.Role), u.ProfileImage, u.Address,
		u.DateOfBirth, lists[0], lists[1], lists[2], lists[3], u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateUser перезаписывает профиль пользователя.
func (r *PostgresRepository) UpdateUser(ctx context.Context, u *model.User) error {
	lists, err := userJSON(u)
	if err != nil {
		return err
	}

	u.UpdatedAt = time.Now().UTC()

	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET name = $2, phone = $3, password_hash = $4, role = $5, profile_image = $6,
		        address = $7, date_of_birth = $8, enrolled_courses = $9, completed_lessons = $10,
		        upcoming_lessons = $11, certificates = $12, updated_at = $13
		 WHERE id = $1`,
		u.ID, u.Name, u.Phone, u.PasswordHash, string(u.Role), u.ProfileImage, u.Address, u.DateOfBirth,
		lists[0], lists[1], lists[2], lists[3], u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) getUser(ctx context.Context, query, arg string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers возвращает всех пользователей в порядке регистрации.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		res = append(res, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ---- settings ----

// LoadSettings возвращает все сохранённые настройки.
func (r *PostgresRepository) LoadSettings(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("select settings: %w", err)
	}
	defer rows.Close()

	res := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		res[k] = v
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// SaveSettings сохраняет переданные настройки, перезаписывая существующие ключи.
func (r *PostgresRepository) SaveSettings(ctx context.Context, values map[string]string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		for k, v := range values {
			_, err := tx.Exec(ctx,
				`INSERT INTO settings (key, value) VALUES ($1, $2)
				 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
				k, v,
			)
			if err != nil {
				return fmt.Errorf("upsert setting %s: %w", k, err)
			}
		}
		return nil
	})
}
