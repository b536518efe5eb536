package allocation

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// Handler exposes the allocation service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/orders", h.CreateOrder, identity.RequireRoles(identity.RoleSeller, identity.RoleAdmin))
	g.POST("/orders/:id/cancel", h.CancelOrder, identity.RequireRoles(identity.RoleSeller, identity.RoleAdmin))
	g.GET("/orders/:id/progress", h.OrderProgress)
	g.POST("/order-items/:id/assign", h.AssignItem, identity.RequireRoles(identity.RoleSeller, identity.RoleAdmin))
	g.POST("/jobs/:id/split", h.SplitJob, identity.RequireRoles(identity.RoleSeller, identity.RoleAdmin))
	g.POST("/team-jobs/:id/reassign", h.ReassignJob, identity.RequireRoles(identity.RoleSeller, identity.RoleAdmin))
	g.POST("/team-jobs", h.CreateStandaloneJob, identity.RequireRoles(identity.RoleSeller, identity.RoleAdmin))
}

func (h *Handler) CreateOrder(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Items []OrderItemInput `json:"items"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	order, err := h.svc.CreateOrder(c.Request().Context(), actor, req.Items)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *Handler) CancelOrder(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order id in URL"})
	}

	if err := h.svc.CancelOrder(c.Request().Context(), actor, orderID); err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Order cancelled"})
}

func (h *Handler) OrderProgress(c echo.Context) error {
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order id in URL"})
	}

	progress, err := h.svc.SyncOrderProgress(c.Request().Context(), orderID)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, progress)
}

func (h *Handler) AssignItem(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		TeamID   string `json:"team_id"`
		Quantity int64  `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil || req.TeamID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	tj, err := h.svc.AssignItemToTeam(c.Request().Context(), actor, c.Param("id"), req.TeamID, req.Quantity)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, tj)
}

func (h *Handler) SplitJob(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Allocations []Allocation `json:"allocations"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	teamJobs, err := h.svc.SplitJobToTeams(c.Request().Context(), actor, c.Param("id"), req.Allocations)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"team_jobs": teamJobs})
}

func (h *Handler) ReassignJob(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		NewTeamID string `json:"new_team_id"`
	}
	if err := c.Bind(&req); err != nil || req.NewTeamID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	tj, err := h.svc.ReassignJob(c.Request().Context(), actor, c.Param("id"), req.NewTeamID)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, tj)
}

func (h *Handler) CreateStandaloneJob(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var in StandaloneJobInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	tj, err := h.svc.CreateStandaloneJob(c.Request().Context(), actor, in)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, tj)
}
