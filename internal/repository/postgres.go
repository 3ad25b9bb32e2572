// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/smmpanel-system/internal/apperr"
	"github.com/mmeshcher/smmpanel-system/internal/model"
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

// withRetry повторяет операцию при временных ошибках БД: serialization failure,
// deadlock и обрывах соединения. Ошибки валидации и конфликтов не повторяются.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
			return err
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя с ролью user и базовым уровнем членства.
func (r *PostgresRepository) CreateUser(ctx context.Context, username, email string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING id`,
			username, email, passwordHash,
		).Scan(&id)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: user %s already exists", apperr.ErrConflict, username)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.Points, &u.Membership, &u.Active, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

const userColumns = `id, username, email, password_hash, role, points, membership, active, created_at, last_login_at`

// GetUserByUsername возвращает пользователя по имени.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// UpdateLastLogin фиксирует время последнего входа пользователя.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET last_login_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// SetUserRole изменяет роль пользователя.
func (r *PostgresRepository) SetUserRole(ctx context.Context, id int64, role model.Role) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $2 WHERE id = $1`, id, string(role))
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
	}
	return nil
}

// DeactivateUser выполняет мягкое отключение пользователя. Записи не удаляются.
func (r *PostgresRepository) DeactivateUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
	}
	return nil
}

const serviceColumns = `id, platform, category, name, rate_per_k, min_quantity, max_quantity, active, created_at`

func scanService(row pgx.Row) (*model.Service, error) {
	var s model.Service
	err := row.Scan(&s.ID, &s.Platform, &s.Category, &s.Name, &s.RatePerK,
		&s.MinQuantity, &s.MaxQuantity, &s.Active, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: service", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("scan service: %w", err)
	}
	return &s, nil
}

// ListServices возвращает активные позиции каталога услуг.
func (r *PostgresRepository) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE active ORDER BY platform, category, id`)
	if err != nil {
		return nil, fmt.Errorf("select services: %w", err)
	}
	defer rows.Close()

	var res []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetService возвращает позицию каталога по идентификатору.
func (r *PostgresRepository) GetService(ctx context.Context, id int64) (*model.Service, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	return scanService(row)
}

// CreateService добавляет позицию каталога.
func (r *PostgresRepository) CreateService(ctx context.Context, s *model.Service) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO services (platform, category, name, rate_per_k, min_quantity, max_quantity, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		s.Platform, s.Category, s.Name, s.RatePerK, s.MinQuantity, s.MaxQuantity, s.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create service: %w", err)
	}
	return id, nil
}

// UpdateService обновляет позицию каталога.
func (r *PostgresRepository) UpdateService(ctx context.Context, s *model.Service) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE services
		 SET platform = $2, category = $3, name = $4, rate_per_k = $5,
		     min_quantity = $6, max_quantity = $7, active = $8
		 WHERE id = $1`,
		s.ID, s.Platform, s.Category, s.Name, s.RatePerK, s.MinQuantity, s.MaxQuantity, s.Active)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: service %d", apperr.ErrNotFound, s.ID)
	}
	return nil
}

const orderColumns = `id, user_id, service_id, target_url, quantity, original_price, discount,
	 total_price, status, progress, payment_key, created_at, started_at, completed_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var status string
	err := row.Scan(&o.ID, &o.UserID, &o.ServiceID, &o.TargetURL, &o.Quantity,
		&o.OriginalPrice, &o.Discount, &o.TotalPrice, &status, &o.Progress,
		&o.PaymentKey, &o.CreatedAt, &o.StartedAt, &o.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

// CreateOrder сохраняет новый заказ в статусе pending и первую запись журнала.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (int64, error) {
	var id int64
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (user_id, service_id, target_url, quantity, original_price, discount, total_price, status, progress)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0) RETURNING id`,
			o.UserID, o.ServiceID, o.TargetURL, o.Quantity, o.OriginalPrice, o.Discount,
			o.TotalPrice, string(model.OrderStatusPending),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO service_logs (order_id, action, details, progress_before, progress_after)
			 VALUES ($1, $2, $3, 0, 0)`,
			id, "order_created", fmt.Sprintf("order created, quantity %d, total %d", o.Quantity, o.TotalPrice))
		if err != nil {
			return fmt.Errorf("insert service log: %w", err)
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetOrdersByUser возвращает список заказов пользователя.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListOrders возвращает все заказы, сначала свежие.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

// ListOrdersForFulfillment возвращает заказы в работе, начиная с самых старых.
func (r *PostgresRepository) ListOrdersForFulfillment(ctx context.Context, limit int) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at LIMIT $2`,
		string(model.OrderStatusProcessing), limit)
}

func (r *PostgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID int64) (*model.Order, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	return scanOrder(row)
}

// UpdateOrderStatus выполняет переход заказа в новый статус в одной транзакции
// с записью журнала. Строка заказа блокируется FOR UPDATE, поэтому два
// конкурирующих перехода применяются строго последовательно. Повторный переход
// в уже достигнутый статус считается no-op и журнал не пополняет.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID int64, newStatus model.OrderStatus, newProgress int, action, details string) (*model.Order, error) {
	var result *model.Order

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if o.Status == newStatus {
			result = o
			return tx.Commit(ctx)
		}

		if o.Status.IsTerminal() {
			return fmt.Errorf("%w: order %d is %s", apperr.ErrTerminalState, orderID, o.Status)
		}

		// Ключ платежа у заказа в pending означает подтверждение в полёте:
		// отмена в этот момент отклоняется, пока подтверждение не завершится.
		if newStatus == model.OrderStatusCancelled && o.Status == model.OrderStatusPending && o.PaymentKey != nil {
			return fmt.Errorf("%w: order %d has a confirmed payment", apperr.ErrConflict, orderID)
		}

		if !model.CanTransition(o.Status, newStatus) {
			return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, o.Status, newStatus)
		}

		progressBefore := o.Progress
		if newStatus == model.OrderStatusCompleted {
			newProgress = 100
		}

		now := time.Now()
		startedAt := o.StartedAt
		completedAt := o.CompletedAt
		if newStatus == model.OrderStatusProcessing && startedAt == nil {
			startedAt = &now
		}
		if newStatus == model.OrderStatusCompleted {
			completedAt = &now
		}

		_, err = tx.Exec(ctx,
			`UPDATE orders SET status = $2, progress = $3, started_at = $4, completed_at = $5 WHERE id = $1`,
			orderID, string(newStatus), newProgress, startedAt, completedAt)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		// Выполненный заказ начисляет пользователю баллы: 1 балл за каждые 100
		// минимальных единиц стоимости. Начисление идёт в той же транзакции,
		// что и переход, поэтому повторов не бывает.
		if newStatus == model.OrderStatusCompleted {
			_, err = tx.Exec(ctx,
				`UPDATE users SET points = points + $2 WHERE id = $1`,
				o.UserID, o.TotalPrice/100)
			if err != nil {
				return fmt.Errorf("credit points: %w", err)
			}
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO service_logs (order_id, action, details, progress_before, progress_after)
			 VALUES ($1, $2, $3, $4, $5)`,
			orderID, action, details, progressBefore, newProgress)
		if err != nil {
			return fmt.Errorf("insert service log: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		o.Status = newStatus
		o.Progress = newProgress
		o.StartedAt = startedAt
		o.CompletedAt = completedAt
		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateOrderProgress обновляет прогресс заказа в статусе processing без смены
// статуса. Повтор с тем же значением прогресса считается no-op без записи журнала.
func (r *PostgresRepository) UpdateOrderProgress(ctx context.Context, orderID int64, progress int, details string) (*model.Order, error) {
	var result *model.Order

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if o.Progress == progress {
			result = o
			return tx.Commit(ctx)
		}

		if o.Status.IsTerminal() {
			return fmt.Errorf("%w: order %d is %s", apperr.ErrTerminalState, orderID, o.Status)
		}

		if o.Status != model.OrderStatusProcessing {
			return fmt.Errorf("%w: progress update for order in status %s", apperr.ErrInvalidTransition, o.Status)
		}

		progressBefore := o.Progress

		_, err = tx.Exec(ctx,
			`UPDATE orders SET progress = $2 WHERE id = $1`, orderID, progress)
		if err != nil {
			return fmt.Errorf("update order progress: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO service_logs (order_id, action, details, progress_before, progress_after)
			 VALUES ($1, $2, $3, $4, $5)`,
			orderID, "progress_updated", details, progressBefore, progress)
		if err != nil {
			return fmt.Errorf("insert service log: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		o.Progress = progress
		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// SetPaymentKey фиксирует ключ платежа по заказу. Ключ устанавливается ровно
// один раз: повтор с тем же ключом возвращает заказ без изменений, другой ключ
// при уже установленном отклоняется. Вместе с ключом создаётся неизменяемая
// запись платежа и запись журнала payment_confirmed.
func (r *PostgresRepository) SetPaymentKey(ctx context.Context, orderID int64, p *model.Payment) (*model.Order, bool, error) {
	var result *model.Order
	var already bool

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if o.PaymentKey != nil {
			if *o.PaymentKey == p.PaymentKey {
				result = o
				already = true
				return tx.Commit(ctx)
			}
			return fmt.Errorf("%w: order %d already paid with another key", apperr.ErrConflict, orderID)
		}

		if o.Status.IsTerminal() {
			return fmt.Errorf("%w: order %d is %s", apperr.ErrTerminalState, orderID, o.Status)
		}

		if o.Status != model.OrderStatusPending {
			return fmt.Errorf("%w: payment for order in status %s", apperr.ErrInvalidTransition, o.Status)
		}

		_, err = tx.Exec(ctx,
			`UPDATE orders SET payment_key = $2 WHERE id = $1`, orderID, p.PaymentKey)
		if err != nil {
			return fmt.Errorf("update order payment key: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO payments (payment_key, order_id, method, amount, approved_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			p.PaymentKey, orderID, p.Method, p.Amount, p.ApprovedAt)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO service_logs (order_id, action, details, progress_before, progress_after)
			 VALUES ($1, $2, $3, $4, $4)`,
			orderID, "payment_confirmed",
			fmt.Sprintf("payment %s confirmed via %s, amount %d", p.PaymentKey, p.Method, p.Amount),
			o.Progress)
		if err != nil {
			return fmt.Errorf("insert service log: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		key := p.PaymentKey
		o.PaymentKey = &key
		result = o
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return result, already, nil
}

// GetPayment возвращает запись платежа по ключу.
func (r *PostgresRepository) GetPayment(ctx context.Context, paymentKey string) (*model.Payment, error) {
	var p model.Payment
	err := r.pool.QueryRow(ctx,
		`SELECT payment_key, order_id, method, amount, approved_at FROM payments WHERE payment_key = $1`,
		paymentKey,
	).Scan(&p.PaymentKey, &p.OrderID, &p.Method, &p.Amount, &p.ApprovedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payment", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

// AppendLog добавляет запись журнала по заказу вне переходов статуса.
func (r *PostgresRepository) AppendLog(ctx context.Context, orderID int64, action, details string, progressBefore, progressAfter int) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`INSERT INTO service_logs (order_id, action, details, progress_before, progress_after)
			 SELECT $1, $2, $3, $4, $5 WHERE EXISTS (SELECT 1 FROM orders WHERE id = $1)`,
			orderID, action, details, progressBefore, progressAfter)
		if err != nil {
			return fmt.Errorf("insert service log: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: order %d", apperr.ErrNotFound, orderID)
		}
		return nil
	})
}

// GetLogsByOrder возвращает журнал заказа в порядке возрастания времени.
func (r *PostgresRepository) GetLogsByOrder(ctx context.Context, orderID int64) ([]model.ServiceLog, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: order %d", apperr.ErrNotFound, orderID)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, action, details, progress_before, progress_after, created_at
		 FROM service_logs
		 WHERE order_id = $1
		 ORDER BY created_at, id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("select service logs: %w", err)
	}
	defer rows.Close()

	var res []model.ServiceLog
	for rows.Next() {
		var l model.ServiceLog
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Action, &l.Details,
			&l.ProgressBefore, &l.ProgressAfter, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan service log: %w", err)
		}
		res = append(res, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
