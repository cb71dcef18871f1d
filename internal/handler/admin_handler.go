// Package handler exposes the operational HTTP surface of the bank server: a
// health probe, read-only account inspection and a synchronous action bridge
// that runs protocol requests through the same dispatcher as the broker path.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikenoethiger/bank-server-rabbitmq/internal/bank"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/dispatch"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/protocol"
)

type AdminHandler struct {
	bank       *bank.Bank
	dispatcher *dispatch.Dispatcher
}

type ActionRequest struct {
	ActionID int      `json:"actionId" validate:"required,gte=1"`
	Args     []string `json:"args"`
}

type ListAccountsResponse struct {
	AccountNumbers []string `json:"accountNumbers"`
}

type AccountResponse struct {
	AccountNumber string    `json:"accountNumber"`
	Owner         string    `json:"owner"`
	Balance       float64   `json:"balance"`
	Active        bool      `json:"active"`
	LastModified  time.Time `json:"lastModifiedTimestamp"`
}

func NewAdminHandler(b *bank.Bank, dispatcher *dispatch.Dispatcher) *AdminHandler {
	return &AdminHandler{bank: b, dispatcher: dispatcher}
}

// Register mounts the admin routes on the router.
func (h *AdminHandler) Register(router *gin.Engine) {
	router.GET("/health", h.Health)

	v1 := router.Group("/v1")
	{
		v1.GET("/accounts", h.ListAccounts)
		v1.GET("/accounts/:accountNumber", h.GetAccount)
		v1.POST("/actions", h.SubmitAction)
	}
}

func (h *AdminHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AdminHandler) ListAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, ListAccountsResponse{AccountNumbers: h.bank.ActiveAccountNumbers()})
}

func (h *AdminHandler) GetAccount(c *gin.Context) {
	acc, ok := h.bank.Account(c.Param("accountNumber"))
	if !ok {
		RespondWithError(c, http.StatusNotFound, "Account not found")
		return
	}

	s := acc.Snapshot()
	c.JSON(http.StatusOK, AccountResponse{
		AccountNumber: s.Number,
		Owner:         s.Owner,
		Balance:       s.Balance,
		Active:        s.Active,
		LastModified:  s.LastModified,
	})
}

// SubmitAction runs a protocol request synchronously. Mutations still fire
// update notifications, exactly as if the request had arrived via the broker.
func (h *AdminHandler) SubmitAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := ValidateRequest(req); validationErrors != nil {
		RespondWithValidationError(c, validationErrors)
		return
	}

	resp := h.dispatcher.Dispatch(c.Request.Context(), protocol.Request{
		ActionID: req.ActionID,
		Args:     req.Args,
	})
	c.JSON(http.StatusOK, resp)
}
