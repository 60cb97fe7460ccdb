// Package feedback records the end-of-stay survey and closes the session.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
	"github.com/Quint4n4/MenuInteractivo/internal/services/clinic"
)

const (
	MinRating = 0
	MaxRating = 5
)

// Invalidator drops cached catalog entries whose rating changed.
type Invalidator interface {
	Invalidate(ctx context.Context, ids ...int64) error
}

type Service struct {
	store  kiosk.Store
	clinic *clinic.Service
	cache  Invalidator
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires the survey flow. cache may be nil.
func NewService(store kiosk.Store, clinicSvc *clinic.Service, cache Invalidator, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		clinic: clinicSvc,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type SubmitInput struct {
	AssignmentID int64
	StaffRating  int
	StayRating   int
	// ProductRatings maps order id to product id to a 0-5 rating.
	ProductRatings map[int64]map[int64]int
	Comment        string
}

// Submit stores the patient's survey, folds product ratings into the
// catalog averages and ends the care session in one transaction.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (kiosk.Feedback, error) {
	if err := validate(in); err != nil {
		return kiosk.Feedback{}, err
	}

	var (
		fb    kiosk.Feedback
		ended kiosk.Assignment
		rated []int64
	)
	err := s.store.WithinTx(ctx, func(tx kiosk.Tx) error {
		a, err := tx.LockAssignment(ctx, in.AssignmentID)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return kiosk.NotFound("assignment", in.AssignmentID)
		}
		if !a.SurveyEnabled {
			return kiosk.Invalid("survey is not enabled for this patient assignment")
		}
		exists, err := tx.FeedbackExists(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("check feedback: %w", err)
		}
		if exists {
			return kiosk.Conflict("feedback already submitted for this patient assignment")
		}

		delivered, err := tx.ListOrders(ctx, kiosk.OrderFilter{
			Statuses:     []kiosk.Status{kiosk.StatusDelivered},
			AssignmentID: &a.ID,
		})
		if err != nil {
			return fmt.Errorf("list delivered orders: %w", err)
		}
		if len(delivered) == 0 {
			return kiosk.Invalid("no delivered orders found for this patient assignment")
		}
		for _, o := range delivered {
			if _, ok := in.ProductRatings[o.ID]; !ok {
				return kiosk.Invalid("missing ratings for order #%d", o.ID)
			}
		}
		if err := checkRatedItems(delivered, in.ProductRatings); err != nil {
			return err
		}

		now := s.now()
		fb = kiosk.Feedback{
			AssignmentID:   a.ID,
			PatientID:      a.PatientID,
			StaffRating:    in.StaffRating,
			StayRating:     in.StayRating,
			ProductRatings: in.ProductRatings,
			Comment:        in.Comment,
			CreatedAt:      now,
		}
		if err := tx.CreateFeedback(ctx, &fb); err != nil {
			return fmt.Errorf("create feedback: %w", err)
		}

		if rated, err = applyRatings(ctx, tx, in.ProductRatings); err != nil {
			return err
		}

		ended, err = clinic.EndInTx(ctx, tx, a, now)
		return err
	})
	if err != nil {
		s.logger.Info("feedback rejected", zap.Int64("assignment_id", in.AssignmentID), zap.Error(err))
		return kiosk.Feedback{}, err
	}

	if s.cache != nil && len(rated) > 0 {
		if err := s.cache.Invalidate(ctx, rated...); err != nil {
			s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
		}
	}
	s.clinic.NotifyEnded(ended)
	s.logger.Info("feedback submitted",
		zap.Int64("feedback_id", fb.ID), zap.Int64("assignment_id", fb.AssignmentID), zap.Int("products_rated", len(rated)))
	return fb, nil
}

// checkRatedItems rejects ratings for orders that were not delivered to the
// assignment and for products those orders did not contain.
func checkRatedItems(delivered []kiosk.Order, ratings map[int64]map[int64]int) error {
	items := make(map[int64]map[int64]bool, len(delivered))
	for _, o := range delivered {
		set := make(map[int64]bool, len(o.Items))
		for _, it := range o.Items {
			set[it.ProductID] = true
		}
		items[o.ID] = set
	}
	for orderID, byProduct := range ratings {
		set, ok := items[orderID]
		if !ok {
			return kiosk.Invalid("order #%d is not a delivered order of this patient assignment", orderID)
		}
		for productID := range byProduct {
			if !set[productID] {
				return kiosk.Invalid("product %d was not part of order #%d", productID, orderID)
			}
		}
	}
	return nil
}

// applyRatings adds every rating to its product's running total and
// recomputes the average. Products no longer in the catalog are skipped.
func applyRatings(ctx context.Context, tx kiosk.Tx, ratings map[int64]map[int64]int) ([]int64, error) {
	totals := map[int64]int{}
	counts := map[int64]int{}
	ids := []int64{}
	for _, byProduct := range ratings {
		for productID, r := range byProduct {
			if _, ok := counts[productID]; !ok {
				ids = append(ids, productID)
			}
			totals[productID] += r
			counts[productID]++
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	products, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	updated := make([]int64, 0, len(products))
	for _, id := range kiosk.SortedUnique(ids) {
		p, ok := products[id]
		if !ok {
			continue
		}
		p.RatingTotal += totals[id]
		p.RatingCount += counts[id]
		p.Rating = Average(p.RatingTotal, p.RatingCount)
		if err := tx.SaveProductRating(ctx, *p); err != nil {
			return nil, fmt.Errorf("save rating for product %d: %w", id, err)
		}
		updated = append(updated, id)
	}
	return updated, nil
}

// Average is total/count rounded to two decimal places.
func Average(total, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(total)).Div(decimal.NewFromInt(int64(count))).Round(2)
}

func validate(in SubmitInput) error {
	if in.AssignmentID <= 0 {
		return kiosk.Invalid("patient_assignment_id is required")
	}
	if !inRange(in.StaffRating) {
		return kiosk.Invalid("staff_rating must be between %d and %d", MinRating, MaxRating)
	}
	if !inRange(in.StayRating) {
		return kiosk.Invalid("stay_rating must be between %d and %d", MinRating, MaxRating)
	}
	for orderID, byProduct := range in.ProductRatings {
		for productID, r := range byProduct {
			if !inRange(r) {
				return kiosk.Invalid("rating for product %d in order #%d must be between %d and %d", productID, orderID, MinRating, MaxRating)
			}
		}
	}
	return nil
}

func inRange(r int) bool { return r >= MinRating && r <= MaxRating }
