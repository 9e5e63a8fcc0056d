package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/angelmondragon/phoneshop-backend/internal/orders"
	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
	"github.com/angelmondragon/phoneshop-backend/pkg/outbox"
	"gorm.io/gorm"
)

var timeNowUTC = func() time.Time {
	return time.Now().UTC()
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type urlBuilder interface {
	BuildURL(req PaymentRequest) (string, error)
	Verify(params url.Values) bool
}

type callbackMetrics interface {
	IncCallback(outcome string)
}

// CallbackResult is the structured answer to every verified callback.
type CallbackResult struct {
	Success       bool                  `json:"success"`
	Outcome       enums.CallbackOutcome `json:"outcome"`
	OrderID       int64                 `json:"order_id"`
	ResponseCode  string                `json:"response_code"`
	TransactionNo string                `json:"transaction_no,omitempty"`
	Duplicate     bool                  `json:"duplicate"`
	Message       string                `json:"message"`
}

// PaymentURL is returned to the storefront to redirect the customer.
type PaymentURL struct {
	OrderID    int64  `json:"order_id"`
	PaymentURL string `json:"payment_url"`
}

// Service exposes the payment gateway operations.
type Service interface {
	CreatePaymentURL(ctx context.Context, orderID int64, clientIP string) (*PaymentURL, error)
	HandleCallback(ctx context.Context, params url.Values) (*CallbackResult, error)
}

type service struct {
	repo    orders.Repository
	tx      txRunner
	gateway urlBuilder
	guard   *ReplayGuard
	metrics callbackMetrics
	events  orders.EventEmitter
	logg    *logger.Logger
}

// ServiceParams groups the collaborators of the payment service.
type ServiceParams struct {
	Repo    orders.Repository
	Tx      txRunner
	Gateway urlBuilder
	Guard   *ReplayGuard
	Metrics callbackMetrics
	Events  orders.EventEmitter
	Logger  *logger.Logger
}

// NewService builds the payment service. Guard, Metrics, Events and Logger
// are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		gateway: params.Gateway,
		guard:   params.Guard,
		metrics: params.Metrics,
		events:  params.Events,
		logg:    params.Logger,
	}, nil
}

func (s *service) CreatePaymentURL(ctx context.Context, orderID int64, clientIP string) (*PaymentURL, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_id must be positive")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, orderLookupError(err, orderID)
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled").
			WithDetails(map[string]any{"order_id": orderID, "status": order.Status})
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid").
			WithDetails(map[string]any{"order_id": orderID, "payment_status": order.PaymentStatus})
	}
	if order.PaymentMethod != enums.PaymentMethodGateway {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid through the gateway").
			WithDetails(map[string]any{"order_id": orderID, "payment_method": order.PaymentMethod})
	}

	link, err := s.gateway.BuildURL(PaymentRequest{
		OrderID:  order.ID,
		Amount:   order.TotalAmount,
		ClientIP: clientIP,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build payment url")
	}
	return &PaymentURL{OrderID: order.ID, PaymentURL: link}, nil
}

func (s *service) HandleCallback(ctx context.Context, params url.Values) (*CallbackResult, error) {
	callback, err := ParseCallback(params)
	if err != nil {
		return nil, err
	}
	if !s.gateway.Verify(params) {
		s.warn(ctx, "payment callback signature mismatch", callback.OrderID)
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSignature, "callback signature mismatch")
	}

	if cached, ok, err := s.guard.Seen(ctx, callback.SecureHash); err != nil {
		s.warn(ctx, "payment callback replay guard unavailable: "+err.Error(), callback.OrderID)
	} else if ok {
		cached.Duplicate = true
		return cached, nil
	}

	var result *CallbackResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.LockOrder(ctx, callback.OrderID)
		if err != nil {
			return orderLookupError(err, callback.OrderID)
		}

		record := &models.PaymentCallback{
			OrderID:       order.ID,
			TransactionNo: callback.TransactionNo,
			ResponseCode:  callback.ResponseCode,
			Amount:        callback.Amount,
			Signature:     callback.SecureHash,
			Payload:       callback.Payload,
			Outcome:       enums.CallbackOutcomeReceived,
		}
		inserted, err := repo.RecordCallback(ctx, record)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment callback")
		}
		if !inserted {
			existing, err := repo.FindCallbackBySignature(ctx, callback.SecureHash)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recorded callback")
			}
			result = buildResult(callback, existing.Outcome)
			result.Duplicate = true
			return nil
		}

		outcome, err := s.apply(ctx, tx, repo, order, callback)
		if err != nil {
			return err
		}
		if err := repo.SetCallbackOutcome(ctx, record.ID, outcome); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store callback outcome")
		}
		result = buildResult(callback, outcome)
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment callback was not processed")
		}
		return nil, err
	}

	if !result.Duplicate {
		if s.metrics != nil {
			s.metrics.IncCallback(string(result.Outcome))
		}
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id": result.OrderID,
				"outcome":  result.Outcome,
			})
			s.logg.Info(logCtx, "payment callback processed")
		}
	}
	if err := s.guard.Remember(ctx, callback.SecureHash, *result); err != nil {
		s.warn(ctx, "payment callback replay guard write failed: "+err.Error(), callback.OrderID)
	}
	return result, nil
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order, callback *Callback) (enums.CallbackOutcome, error) {
	if !callback.Amount.Equal(order.TotalAmount) {
		return enums.CallbackOutcomeAmountMismatch, nil
	}
	if callback.ResponseCode != ResponseCodeSuccess {
		return enums.CallbackOutcomePaymentFailed, nil
	}

	settled, err := orders.SettlePayment(ctx, repo, order, timeNowUTC())
	if err != nil {
		return "", err
	}
	switch settled {
	case orders.SettlePaid:
		if s.events != nil {
			err := s.events.Emit(ctx, tx, outbox.Event{
				Type:    enums.OrderEventPaid,
				OrderID: order.ID,
				Data: outbox.OrderPaid{
					Source:        outbox.PaidByGateway,
					Amount:        callback.Amount,
					TransactionNo: callback.TransactionNo,
				},
			})
			if err != nil {
				return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
			}
		}
		return enums.CallbackOutcomePaid, nil
	case orders.SettleAlreadyPaid:
		return enums.CallbackOutcomeAlreadyPaid, nil
	default:
		return enums.CallbackOutcomeOrderCancelled, nil
	}
}

func orderLookupError(err error, orderID int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %d not found", orderID))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func buildResult(callback *Callback, outcome enums.CallbackOutcome) *CallbackResult {
	return &CallbackResult{
		Success:       outcome.Succeeded(),
		Outcome:       outcome,
		OrderID:       callback.OrderID,
		ResponseCode:  callback.ResponseCode,
		TransactionNo: callback.TransactionNo,
		Message:       outcomeMessage(outcome),
	}
}

func outcomeMessage(outcome enums.CallbackOutcome) string {
	switch outcome {
	case enums.CallbackOutcomePaid:
		return "payment recorded"
	case enums.CallbackOutcomeAlreadyPaid:
		return "order was already paid"
	case enums.CallbackOutcomeOrderCancelled:
		return "order is cancelled; payment needs manual refund"
	case enums.CallbackOutcomeAmountMismatch:
		return "callback amount does not match order total"
	case enums.CallbackOutcomePaymentFailed:
		return "payment was not completed"
	default:
		return "callback received"
	}
}

func (s *service) warn(ctx context.Context, msg string, orderID int64) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithOrderID(ctx, orderID), msg)
}
