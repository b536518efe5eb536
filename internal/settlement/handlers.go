package settlement

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// Handler exposes the payout processor and ledger over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/payouts/:id/process", h.ProcessPayout, identity.RequireRoles(identity.RoleSeller, identity.RoleAdmin))
	g.POST("/payouts/process-all", h.ProcessAllPending, identity.RequireRoles(identity.RoleSeller, identity.RoleAdmin))
	g.GET("/balance", h.OwnBalance)
	g.GET("/balances/workers", h.WorkerBalances, identity.RequireRoles(identity.RoleSeller, identity.RoleAdmin))
	g.GET("/transactions", h.OwnTransactions)
	g.POST("/withdraw", h.Withdraw)
	g.POST("/topup", h.InitTopup, identity.RequireRoles(identity.RoleSeller))
}

// RegisterAdmin wires the audit surface under the admin group.
func (h *Handler) RegisterAdmin(g *echo.Group) {
	g.GET("/transactions", h.AdminAllTransactions)
	g.GET("/transactions/user/:id", h.AdminUserTransactions)
	g.GET("/topups/pending", h.AdminPendingTopups)
	g.POST("/topups/:id/confirm", h.AdminConfirmTopup)
	g.GET("/balance/:id", h.AdminBalance)
}

func (h *Handler) ProcessPayout(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	payout, err := h.svc.ProcessPayout(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, payout)
}

func (h *Handler) ProcessAllPending(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		TeamID string `json:"team_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	scope := Scope{TeamID: req.TeamID}
	if scope.TeamID == "" {
		scope.SellerID = actor.ID
	}

	processed, outcomes, err := h.svc.ProcessAllPending(c.Request().Context(), actor, scope)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"processed": processed,
		"total":     len(outcomes),
		"outcomes":  outcomes,
	})
}

func (h *Handler) OwnBalance(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	view, err := h.svc.Balance(c.Request().Context(), actor, actor.ID)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) WorkerBalances(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	views, err := h.svc.WorkerBalances(c.Request().Context(), actor)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"balances": views})
}

func (h *Handler) OwnTransactions(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	txs, err := h.svc.ListTransactions(c.Request().Context(), actor, actor.ID)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": txs})
}

func (h *Handler) Withdraw(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	entry, err := h.svc.Withdraw(c.Request().Context(), actor, req.Amount)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"withdrawal_id": entry.ID,
		"amount":        req.Amount,
		"status":        "completed",
	})
}

func (h *Handler) InitTopup(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	t, err := h.svc.InitTopup(c.Request().Context(), actor, req.Amount)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) AdminAllTransactions(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	txs, err := h.svc.ListAllTransactions(c.Request().Context(), actor, limit)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": txs})
}

func (h *Handler) AdminUserTransactions(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	txs, err := h.svc.ListTransactions(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": txs})
}

func (h *Handler) AdminPendingTopups(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	topups, err := h.svc.ListPendingTopups(c.Request().Context(), actor)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"topups": topups})
}

func (h *Handler) AdminConfirmTopup(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	t, err := h.svc.ConfirmTopup(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) AdminBalance(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	view, err := h.svc.Balance(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, view)
}
