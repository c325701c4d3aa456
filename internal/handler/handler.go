package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"atmservice/internal/model"
	"atmservice/internal/service"
	"atmservice/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Ledger interface {
	GetSnapshot(ctx context.Context, customerID uuid.UUID) (*service.Snapshot, error)
	Deposit(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) (*service.Snapshot, error)
	Withdraw(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) (*service.Snapshot, error)
	RecentTransactions(ctx context.Context, customerID uuid.UUID, limit int) ([]*model.Transaction, error)
}

type Authenticator interface {
	Login(ctx context.Context, cardNumber, pin string) (*service.Session, error)
}

// Handler serves the ATM API.
type Handler struct {
	ledger Ledger
	auth   Authenticator
	logger *zap.Logger
}

func NewHandler(ledger Ledger, auth Authenticator, logger *zap.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		auth:   auth,
		logger: logger,
	}
}

// ============================================================
// Authentication
// ============================================================

type LoginRequest struct {
	CardNumber string `json:"cardNumber" binding:"required"`
	PIN        string `json:"pin" binding:"required"`
}

type LoginResponse struct {
	AccessToken      string `json:"accessToken"`
	TokenType        string `json:"tokenType"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
	CustomerID       string `json:"customerId"`
	CustomerName     string `json:"customerName"`
}

// Login POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "cardNumber and pin are required")
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.CardNumber, req.PIN)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, LoginResponse{
		AccessToken:      session.Token,
		TokenType:        session.TokenType,
		ExpiresInSeconds: session.ExpiresInSeconds,
		CustomerID:       session.CustomerID.String(),
		CustomerName:     session.CustomerName,
	})
}

// ============================================================
// Account
// ============================================================

type AccountSummary struct {
	CustomerID          string `json:"customerId"`
	CustomerName        string `json:"customerName"`
	Balance             string `json:"balance"`
	DailyLimit          string `json:"dailyWithdrawalLimit"`
	WithdrawnToday      string `json:"withdrawnToday"`
	RemainingDailyLimit string `json:"remainingDailyLimit"`
}

func summaryOf(s *service.Snapshot) AccountSummary {
	return AccountSummary{
		CustomerID:          s.CustomerID.String(),
		CustomerName:        s.CustomerName,
		Balance:             s.Balance.StringFixed(2),
		DailyLimit:          s.DailyLimit.StringFixed(2),
		WithdrawnToday:      s.WithdrawnToday.StringFixed(2),
		RemainingDailyLimit: s.RemainingDailyLimit.StringFixed(2),
	}
}

// AmountRequest accepts the amount as a JSON number or string.
type AmountRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

// maxAmount bounds amounts to the 17 integer digits of decimal(19,2).
var maxAmount = decimal.New(1, 17)

func (h *Handler) bindAmount(c *gin.Context) (decimal.Decimal, bool) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "amount is required")
		return decimal.Zero, false
	}
	amount := *req.Amount
	switch {
	case !amount.IsPositive():
		response.ParamError(c, "amount must be at least 0.01")
	case !amount.Equal(amount.Round(2)):
		response.ParamError(c, "amount must have at most 2 decimal places")
	case amount.GreaterThanOrEqual(maxAmount):
		response.ParamError(c, "amount is too large")
	default:
		return amount, true
	}
	return decimal.Zero, false
}

// GetAccount GET /api/v1/account
func (h *Handler) GetAccount(c *gin.Context) {
	snapshot, err := h.ledger.GetSnapshot(c.Request.Context(), customerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, summaryOf(snapshot))
}

// Deposit POST /api/v1/account/deposit
func (h *Handler) Deposit(c *gin.Context) {
	amount, ok := h.bindAmount(c)
	if !ok {
		return
	}
	snapshot, err := h.ledger.Deposit(c.Request.Context(), customerID(c), amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, summaryOf(snapshot))
}

// Withdraw POST /api/v1/account/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	amount, ok := h.bindAmount(c)
	if !ok {
		return
	}
	snapshot, err := h.ledger.Withdraw(c.Request.Context(), customerID(c), amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, summaryOf(snapshot))
}

type TransactionItem struct {
	TransactionNo string    `json:"transactionNo"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	BalanceAfter  string    `json:"balanceAfter"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// ListTransactions GET /api/v1/account/transactions?limit=10
func (h *Handler) ListTransactions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.ParamError(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.ledger.RecentTransactions(c.Request.Context(), customerID(c), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	items := make([]TransactionItem, 0, len(list))
	for _, t := range list {
		items = append(items, TransactionItem{
			TransactionNo: t.TransactionNo,
			Type:          string(t.Type),
			Amount:        t.Amount.StringFixed(2),
			BalanceAfter:  t.BalanceAfter.StringFixed(2),
			OccurredAt:    t.OccurredAt,
		})
	}
	response.Success(c, gin.H{"transactions": items})
}

var statusByKind = map[service.Kind]int{
	service.KindNotFound:           http.StatusNotFound,
	service.KindInsufficientFunds:  http.StatusConflict,
	service.KindDailyLimitExceeded: http.StatusConflict,
	service.KindInvalidCredentials: http.StatusUnauthorized,
	service.KindAccountLocked:      http.StatusLocked,
	service.KindInvalidAmount:      http.StatusBadRequest,
}

func (h *Handler) writeError(c *gin.Context, err error) {
	if be, ok := service.AsBusinessError(err); ok {
		if status, known := statusByKind[be.Kind]; known {
			response.Error(c, status, string(be.Kind), be.Message)
			return
		}
	}
	if errors.Is(err, context.Canceled) {
		h.logger.Info("request cancelled", zap.String("path", c.FullPath()))
	} else {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	response.ServerError(c)
}
