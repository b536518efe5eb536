package claims

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// Handler exposes the claim engine and review workflow over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/team-jobs/:id/claim", h.Claim, identity.RequireRoles(identity.RoleWorker))
	g.POST("/claims/:id/submit", h.Submit, identity.RequireRoles(identity.RoleWorker))
	g.POST("/claims/:id/approve", h.Approve)
	g.POST("/claims/:id/reject", h.Reject)
	g.POST("/teams/:id/claims/approve-all", h.BulkApprove)
	g.POST("/team-jobs/:id/cancel", h.CancelTeamJob)
}

func (h *Handler) Claim(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Quantity int64 `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	claim, err := h.svc.Claim(c.Request().Context(), actor, c.Param("id"), req.Quantity)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, claim)
}

func (h *Handler) Submit(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		ProofURLs []string `json:"proof_urls"`
		Note      string   `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	claim, err := h.svc.Submit(c.Request().Context(), actor, c.Param("id"), req.ProofURLs, req.Note)
	if err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, claim)
}

func (h *Handler) Approve(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	if err := h.svc.Approve(c.Request().Context(), actor, c.Param("id")); err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Claim approved"})
}

func (h *Handler) Reject(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	if err := h.svc.Reject(c.Request().Context(), actor, c.Param("id"), req.Reason); err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Claim rejected"})
}

func (h *Handler) BulkApprove(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	outcomes, err := h.svc.BulkApprove(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return faults.Respond(c, err)
	}

	approved := 0
	for _, o := range outcomes {
		if o.OK {
			approved++
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"approved": approved,
		"total":    len(outcomes),
		"outcomes": outcomes,
	})
}

func (h *Handler) CancelTeamJob(c echo.Context) error {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	if err := h.svc.CancelTeamJob(c.Request().Context(), actor, c.Param("id")); err != nil {
		return faults.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Team job cancelled"})
}
