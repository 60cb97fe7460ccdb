package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Quint4n4/MenuInteractivo/internal/database/models"
	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
)

const (
	pgLockNotAvailable  = "55P03"
	pgDeadlockDetected  = "40P01"
	pgUniqueViolation   = "23505"
	pgCheckViolation    = "23514"
	defaultLockTimeout  = 2 * time.Second
	dialectPostgres     = "postgres"
	orderByPlacedNewest = "placed_at DESC, id DESC"
)

// Store is the Postgres kiosk.Store. Rows are locked with SELECT ... FOR
// UPDATE under a per-transaction lock_timeout, so a blocked lock surfaces
// as kiosk.ContentionError instead of waiting forever.
type Store struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

var _ kiosk.Store = (*Store)(nil)

func NewStore(db *gorm.DB, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &Store{db: db, lockTimeout: lockTimeout}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx kiosk.Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if db.Dialector.Name() == dialectPostgres {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}
		return fn(&gormTx{db: db})
	})
	return translate(err)
}

func (s *Store) Products(ctx context.Context, ids []int64) (map[int64]kiosk.Product, error) {
	return (&gormTx{db: s.db.WithContext(ctx)}).Products(ctx, ids)
}

// translate maps driver errors onto kiosk error kinds. Errors that are
// already kiosk errors pass through untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgLockNotAvailable, pgDeadlockDetected:
		resource := pgErr.TableName
		if resource == "" {
			resource = "database row"
		}
		return &kiosk.ContentionError{Resource: resource}
	case pgUniqueViolation:
		return kiosk.Conflict(fmt.Sprintf("duplicate %s", pgErr.ConstraintName))
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", kiosk.ErrLedgerInvariant, pgErr.ConstraintName)
	}
	return err
}

type gormTx struct {
	db *gorm.DB
}

var _ kiosk.Tx = (*gormTx)(nil)

func (tx *gormTx) forUpdate() *gorm.DB {
	return tx.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func notFound(err error, entity string, key any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return kiosk.NotFound(entity, key)
	}
	return err
}

// LockStocks creates missing rows at 0/0 and then locks every row in
// ascending product id.
func (tx *gormTx) LockStocks(ctx context.Context, productIDs []int64) (map[int64]*kiosk.Stock, error) {
	ids := kiosk.SortedUnique(productIDs)
	out := make(map[int64]*kiosk.Stock, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	seed := make([]models.InventoryStock, len(ids))
	for i, id := range ids {
		seed[i] = models.InventoryStock{ProductID: id}
	}
	if err := tx.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("seed stock rows: %w", err)
	}

	var rows []models.InventoryStock
	if err := tx.forUpdate().Where("product_id IN ?", ids).Order("product_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		st := toStock(r)
		out[r.ProductID] = &st
	}
	return out, nil
}

func (tx *gormTx) SaveStock(ctx context.Context, s kiosk.Stock) error {
	return tx.db.Model(&models.InventoryStock{}).
		Where("product_id = ?", s.ProductID).
		Updates(map[string]interface{}{
			"on_hand":    s.OnHand,
			"reserved":   s.Reserved,
			"updated_at": s.UpdatedAt,
		}).Error
}

func (tx *gormTx) Stock(ctx context.Context, productID int64) (kiosk.Stock, error) {
	var row models.InventoryStock
	err := tx.db.Where("product_id = ?", productID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return kiosk.Stock{ProductID: productID}, nil
	}
	if err != nil {
		return kiosk.Stock{}, err
	}
	return toStock(row), nil
}

func (tx *gormTx) AppendMovement(ctx context.Context, m *kiosk.Movement) error {
	row := models.InventoryMovement{
		ProductID: m.ProductID,
		Kind:      string(m.Kind),
		Quantity:  m.Quantity,
		OrderID:   m.OrderID,
		Note:      m.Note,
		ActorID:   m.ActorID,
		CreatedAt: m.CreatedAt,
	}
	if err := tx.db.Create(&row).Error; err != nil {
		return err
	}
	m.ID = row.ID
	return nil
}

func (tx *gormTx) Movements(ctx context.Context, productID int64) ([]kiosk.Movement, error) {
	var rows []models.InventoryMovement
	if err := tx.db.Where("product_id = ?", productID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]kiosk.Movement, 0, len(rows))
	for _, r := range rows {
		out = append(out, toMovement(r))
	}
	return out, nil
}

func (tx *gormTx) Products(ctx context.Context, ids []int64) (map[int64]kiosk.Product, error) {
	out := make(map[int64]kiosk.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := tx.db.Where("id IN ?", kiosk.SortedUnique(ids)).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = toProduct(r)
	}
	return out, nil
}

func (tx *gormTx) LockProducts(ctx context.Context, ids []int64) (map[int64]*kiosk.Product, error) {
	out := make(map[int64]*kiosk.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := tx.forUpdate().Where("id IN ?", kiosk.SortedUnique(ids)).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		p := toProduct(r)
		out[r.ID] = &p
	}
	return out, nil
}

func (tx *gormTx) SaveProductRating(ctx context.Context, p kiosk.Product) error {
	res := tx.db.Model(&models.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"rating":       p.Rating,
		"rating_count": p.RatingCount,
		"rating_total": p.RatingTotal,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return kiosk.NotFound("product", p.ID)
	}
	return nil
}

func (tx *gormTx) DeviceByUID(ctx context.Context, uid string) (kiosk.Device, error) {
	var row models.Device
	if err := tx.db.Where("device_uid = ?", uid).First(&row).Error; err != nil {
		return kiosk.Device{}, notFound(err, "device", uid)
	}
	return toDevice(row), nil
}

func (tx *gormTx) Device(ctx context.Context, id int64) (kiosk.Device, error) {
	var row models.Device
	if err := tx.db.First(&row, id).Error; err != nil {
		return kiosk.Device{}, notFound(err, "device", id)
	}
	return toDevice(row), nil
}

func (tx *gormTx) TouchDevice(ctx context.Context, id int64, at time.Time) error {
	return tx.db.Model(&models.Device{}).Where("id = ?", id).Update("last_seen_at", at).Error
}

func (tx *gormTx) Patient(ctx context.Context, id int64) (kiosk.Patient, error) {
	var row models.Patient
	if err := tx.db.First(&row, id).Error; err != nil {
		return kiosk.Patient{}, notFound(err, "patient", id)
	}
	return kiosk.Patient{ID: row.ID, FullName: row.FullName}, nil
}

func (tx *gormTx) Room(ctx context.Context, id int64) (kiosk.Room, error) {
	var row models.Room
	if err := tx.db.First(&row, id).Error; err != nil {
		return kiosk.Room{}, notFound(err, "room", id)
	}
	return kiosk.Room{ID: row.ID, Code: row.Code}, nil
}

func (tx *gormTx) ActiveAssignmentForDevice(ctx context.Context, deviceID int64, lock bool) (*kiosk.Assignment, error) {
	q := tx.db
	if lock {
		q = tx.forUpdate()
	}
	return firstActive(q.Where("device_id = ? AND is_active", deviceID))
}

func (tx *gormTx) ActiveAssignmentForStaff(ctx context.Context, staffID int64) (*kiosk.Assignment, error) {
	return firstActive(tx.db.Where("staff_id = ? AND is_active", staffID))
}

func firstActive(q *gorm.DB) (*kiosk.Assignment, error) {
	var row models.PatientAssignment
	err := q.Order("started_at DESC, id DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a := toAssignment(row)
	return &a, nil
}

func (tx *gormTx) LockAssignment(ctx context.Context, id int64) (kiosk.Assignment, error) {
	var row models.PatientAssignment
	if err := tx.forUpdate().First(&row, id).Error; err != nil {
		return kiosk.Assignment{}, notFound(err, "assignment", id)
	}
	return toAssignment(row), nil
}

func (tx *gormTx) CreateAssignment(ctx context.Context, a *kiosk.Assignment) error {
	row := fromAssignment(*a)
	if err := tx.db.Create(&row).Error; err != nil {
		return err
	}
	a.ID = row.ID
	return nil
}

func (tx *gormTx) SaveAssignment(ctx context.Context, a kiosk.Assignment) error {
	row := fromAssignment(a)
	res := tx.db.Model(&models.PatientAssignment{}).Where("id = ?", a.ID).Updates(map[string]interface{}{
		"order_limits":      row.OrderLimits,
		"can_patient_order": row.CanPatientOrder,
		"survey_enabled":    row.SurveyEnabled,
		"survey_enabled_at": row.SurveyEnabledAt,
		"is_active":         row.IsActive,
		"ended_at":          row.EndedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return kiosk.NotFound("assignment", a.ID)
	}
	return nil
}

func (tx *gormTx) CreateOrder(ctx context.Context, o *kiosk.Order) error {
	row := fromOrder(*o)
	if err := tx.db.Create(&row).Error; err != nil {
		return err
	}
	o.ID = row.ID
	return nil
}

func (tx *gormTx) withHistory() *gorm.DB {
	return tx.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("changed_at, id") })
}

func (tx *gormTx) Order(ctx context.Context, id int64) (kiosk.Order, error) {
	var row models.Order
	if err := tx.withHistory().First(&row, id).Error; err != nil {
		return kiosk.Order{}, notFound(err, "order", id)
	}
	return toOrder(row), nil
}

// LockOrder locks the order row first and then loads it with its history.
func (tx *gormTx) LockOrder(ctx context.Context, id int64) (kiosk.Order, error) {
	var locked models.Order
	if err := tx.forUpdate().Select("id").First(&locked, id).Error; err != nil {
		return kiosk.Order{}, notFound(err, "order", id)
	}
	return tx.Order(ctx, id)
}

func (tx *gormTx) UpdateOrder(ctx context.Context, o kiosk.Order) error {
	res := tx.db.Model(&models.Order{}).Where("id = ?", o.ID).Updates(map[string]interface{}{
		"status":       string(o.Status),
		"delivered_at": o.DeliveredAt,
		"cancelled_at": o.CancelledAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return kiosk.NotFound("order", o.ID)
	}
	return nil
}

func (tx *gormTx) AppendStatusEvent(ctx context.Context, orderID int64, ev kiosk.StatusEvent) error {
	row := fromStatusEvent(orderID, ev)
	return tx.db.Create(&row).Error
}

func (tx *gormTx) CountOpenOrders(ctx context.Context, assignmentID, excludeOrderID int64) (int, error) {
	var n int64
	err := tx.db.Model(&models.Order{}).
		Where("assignment_id = ? AND id <> ? AND status IN ?", assignmentID, excludeOrderID, statusStrings(kiosk.OpenStatuses)).
		Count(&n).Error
	return int(n), err
}

func (tx *gormTx) ListOrders(ctx context.Context, f kiosk.OrderFilter) ([]kiosk.Order, error) {
	q := tx.withHistory().Model(&models.Order{})
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(f.Statuses))
	}
	if f.DeviceID != nil {
		q = q.Where("device_id = ?", *f.DeviceID)
	}
	if f.AssignmentID != nil {
		q = q.Where("assignment_id = ?", *f.AssignmentID)
	}
	if f.PatientID != nil {
		q = q.Where("patient_id = ?", *f.PatientID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []models.Order
	if err := q.Order(orderByPlacedNewest).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]kiosk.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, toOrder(r))
	}
	return out, nil
}

func statusStrings(statuses []kiosk.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (tx *gormTx) FeedbackExists(ctx context.Context, assignmentID int64) (bool, error) {
	var n int64
	err := tx.db.Model(&models.Feedback{}).Where("assignment_id = ?", assignmentID).Count(&n).Error
	return n > 0, err
}

func (tx *gormTx) CreateFeedback(ctx context.Context, f *kiosk.Feedback) error {
	row := models.Feedback{
		AssignmentID:   f.AssignmentID,
		PatientID:      f.PatientID,
		StaffRating:    f.StaffRating,
		StayRating:     f.StayRating,
		ProductRatings: models.ProductRatings(f.ProductRatings),
		CreatedAt:      f.CreatedAt,
	}
	if f.Comment != "" {
		row.Comment = &f.Comment
	}
	if err := tx.db.Create(&row).Error; err != nil {
		return err
	}
	f.ID = row.ID
	return nil
}
