package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/finfolio/folio/data/repository"
	"github.com/finfolio/folio/internal/model"
	"github.com/finfolio/folio/internal/service"
	"github.com/finfolio/folio/internal/transport/http/middleware"
	"github.com/finfolio/folio/internal/validation"
)

type PortfolioService interface {
	SaveTransaction(ctx context.Context, userID string, draft model.TransactionDraft) (model.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, transactionID string, draft model.TransactionDraft) (model.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
	GetTransaction(ctx context.Context, userID, transactionID string) (model.Transaction, error)
	GetHoldings(ctx context.Context, userID string) ([]model.Holding, error)
	GetHolding(ctx context.Context, userID, holdingID string) (model.Holding, error)
	UpdateHoldingPrice(ctx context.Context, userID, holdingID string, price decimal.Decimal) error
	GetTransactionsPage(ctx context.Context, userID, holdingID string, cursor *model.Cursor, pageSize int) (model.TransactionsPage, error)
	GetPortfolioSummary(ctx context.Context, userID string) (model.PortfolioSummary, error)
	GeneratePortfolioReport(ctx context.Context, userID string) ([]byte, string, error)
	Logout(ctx context.Context, userID string) error
}

type Controller struct {
	portfolioService PortfolioService
}

func NewController(portfolioService PortfolioService) *Controller {
	return &Controller{portfolioService: portfolioService}
}

func NewRouter(ctrl *Controller) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/", middleware.Auth())
	api.POST("/transactions", ctrl.SaveTransaction)
	api.PUT("/transactions/:id", ctrl.UpdateTransaction)
	api.DELETE("/transactions/:id", ctrl.DeleteTransaction)
	api.GET("/transactions/:id", ctrl.GetTransaction)
	api.GET("/holdings", ctrl.GetHoldings)
	api.GET("/holdings/:id", ctrl.GetHolding)
	api.PUT("/holdings/:id/price", ctrl.UpdateHoldingPrice)
	api.GET("/holdings/:id/transactions", ctrl.GetHoldingTransactions)
	api.GET("/portfolio/summary", ctrl.GetPortfolioSummary)
	api.GET("/portfolio/report", ctrl.GetPortfolioReport)
	api.POST("/logout", ctrl.Logout)

	return r
}

func userID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

// respondError maps the service error taxonomy onto HTTP statuses. Validation
// rejections are surfaced verbatim; anything unexpected stays opaque.
func respondError(c *gin.Context, err error) {
	var rejection *validation.RejectionError
	switch {
	case errors.As(err, &rejection):
		c.JSON(http.StatusBadRequest, gin.H{"error": rejection.Reason})
	case errors.Is(err, service.ErrInsufficientQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrAlreadyExists):
		// a concurrent save slipped past the symbol-taken pre-check and hit
		// the unique index
		c.JSON(http.StatusConflict, gin.H{"error": "symbol already exists for this holding type"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (ctrl *Controller) SaveTransaction(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := req.toDraft()
	if err != nil {
		respondError(c, err)
		return
	}

	tx, err := ctrl.portfolioService.SaveTransaction(c.Request.Context(), userID(c), draft)
	if err != nil && !errors.Is(err, service.ErrAggregatesStale) {
		respondError(c, err)
		return
	}

	resp := gin.H{"transaction": toTransactionResponse(tx)}
	if errors.Is(err, service.ErrAggregatesStale) {
		resp["warning"] = service.ErrAggregatesStale.Error()
	}

	c.JSON(http.StatusCreated, resp)
}

func (ctrl *Controller) UpdateTransaction(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := req.toDraft()
	if err != nil {
		respondError(c, err)
		return
	}

	tx, err := ctrl.portfolioService.UpdateTransaction(c.Request.Context(), userID(c), c.Param("id"), draft)
	if err != nil && !errors.Is(err, service.ErrAggregatesStale) {
		respondError(c, err)
		return
	}

	resp := gin.H{"transaction": toTransactionResponse(tx)}
	if errors.Is(err, service.ErrAggregatesStale) {
		resp["warning"] = service.ErrAggregatesStale.Error()
	}

	c.JSON(http.StatusOK, resp)
}

func (ctrl *Controller) DeleteTransaction(c *gin.Context) {
	err := ctrl.portfolioService.DeleteTransaction(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil && !errors.Is(err, service.ErrAggregatesStale) {
		respondError(c, err)
		return
	}

	resp := gin.H{"deleted": true}
	if errors.Is(err, service.ErrAggregatesStale) {
		resp["warning"] = service.ErrAggregatesStale.Error()
	}

	c.JSON(http.StatusOK, resp)
}

func (ctrl *Controller) GetTransaction(c *gin.Context) {
	tx, err := ctrl.portfolioService.GetTransaction(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": toTransactionResponse(tx)})
}

func (ctrl *Controller) GetHoldings(c *gin.Context) {
	holdings, err := ctrl.portfolioService.GetHoldings(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]holdingResponse, 0, len(holdings))
	for _, h := range holdings {
		resp = append(resp, toHoldingResponse(h))
	}

	c.JSON(http.StatusOK, gin.H{"holdings": resp})
}

func (ctrl *Controller) GetHolding(c *gin.Context) {
	holding, err := ctrl.portfolioService.GetHolding(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"holding": toHoldingResponse(holding)})
}

func (ctrl *Controller) UpdateHoldingPrice(c *gin.Context) {
	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	price, err := decimal.NewFromString(req.CurrentPrice)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current price must be a number"})
		return
	}

	err = ctrl.portfolioService.UpdateHoldingPrice(c.Request.Context(), userID(c), c.Param("id"), price)
	if err != nil && !errors.Is(err, service.ErrAggregatesStale) {
		respondError(c, err)
		return
	}

	resp := gin.H{"updated": true}
	if errors.Is(err, service.ErrAggregatesStale) {
		resp["warning"] = service.ErrAggregatesStale.Error()
	}

	c.JSON(http.StatusOK, resp)
}

func (ctrl *Controller) GetHoldingTransactions(c *gin.Context) {
	var cursor *model.Cursor
	if cursorID := c.Query("cursorId"); cursorID != "" {
		cursorDate, err := time.Parse(dateLayout, c.Query("cursorDate"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cursorDate must be formatted as YYYY-MM-DD"})
			return
		}
		cursor = &model.Cursor{Date: cursorDate, TransactionID: cursorID}
	}

	pageSize := 0
	if v := c.Query("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must be a non-negative integer"})
			return
		}
		pageSize = n
	}

	page, err := ctrl.portfolioService.GetTransactionsPage(c.Request.Context(), userID(c), c.Param("id"), cursor, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPageResponse(page))
}

func (ctrl *Controller) GetPortfolioSummary(c *gin.Context) {
	summary, err := ctrl.portfolioService.GetPortfolioSummary(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (ctrl *Controller) GetPortfolioReport(c *gin.Context) {
	fileBytes, ext, err := ctrl.portfolioService.GeneratePortfolioReport(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="portfolio`+ext+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", fileBytes)
}

func (ctrl *Controller) Logout(c *gin.Context) {
	if err := ctrl.portfolioService.Logout(c.Request.Context(), userID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"loggedOut": true})
}
