package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"marketmatch/internal/app/matchsearch/service"
	"marketmatch/internal/common/apperrors"
	"marketmatch/internal/common/dto"
)

// OrgHeader carries the acting organisation's id, set by the gateway
// after authentication.
const OrgHeader = "x-org-id"

type MatchSearchController struct {
	matchSearchService service.IMatchSearchService
}

func NewMatchSearchController(matchSearchService service.IMatchSearchService) *MatchSearchController {
	return &MatchSearchController{matchSearchService: matchSearchService}
}

func (m *MatchSearchController) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/:listingType/:id/search", m.Search)
	e.DELETE("/api/v1/:listingType/:id/cache", m.DropCache)
	e.PUT("/api/v1/:listingType/:id/rate", m.Rate)
	e.POST("/api/v1/matches/save", m.SaveMatch)
	e.GET("/api/v1/matches/saved", m.ListSaved)
	e.GET("/api/v1/matches/dismissed", m.ListDismissed)
}

func (m *MatchSearchController) Search(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid listing id")
	}

	opts := service.SearchOptions{}
	if force, err := strconv.ParseBool(c.QueryParam("force")); err == nil {
		opts.ForceRefresh = force
	}
	if radius := c.QueryParam("radius"); radius != "" {
		v, err := strconv.ParseFloat(radius, 64)
		if err != nil || v <= 0 {
			return errorJSON(c, http.StatusBadRequest, "radius must be a positive number")
		}
		opts.RadiusOverride = v
	}

	env, err := m.matchSearchService.Search(c.Request().Context(), c.Param("listingType"), id, opts)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, env)
}

func (m *MatchSearchController) DropCache(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid listing id")
	}
	m.matchSearchService.DropCacheEntry(c.Request().Context(), c.Param("listingType"), id)
	return c.JSON(http.StatusOK, map[string]string{"status": "cache cleared"})
}

func (m *MatchSearchController) Rate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid listing id")
	}

	payload := new(dto.RateDto)
	if err := c.Bind(payload); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	rating, err := m.matchSearchService.Rate(c.Request().Context(), c.Param("listingType"), id, payload.Rating)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"listing_id": id, "rating": rating})
}

func (m *MatchSearchController) SaveMatch(c echo.Context) error {
	orgID, err := orgID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	payload := new(dto.SaveMatchDto)
	if err := c.Bind(payload); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	if err := m.matchSearchService.SaveMatch(c.Request().Context(), orgID, *payload); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": payload.Action})
}

func (m *MatchSearchController) ListSaved(c echo.Context) error {
	orgID, err := orgID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	matches, err := m.matchSearchService.ListSaved(c.Request().Context(), orgID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, matches)
}

func (m *MatchSearchController) ListDismissed(c echo.Context) error {
	orgID, err := orgID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	sourceID := uuid.Nil
	if raw := c.QueryParam("source_id"); raw != "" {
		sourceID, err = uuid.Parse(raw)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid source_id")
		}
	}

	matches, err := m.matchSearchService.ListDismissed(c.Request().Context(), orgID, c.QueryParam("source_type"), sourceID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, matches)
}

func orgID(c echo.Context) (uuid.UUID, error) {
	raw := c.Request().Header.Get(OrgHeader)
	if raw == "" {
		return uuid.Nil, errors.New("missing x-org-id header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid x-org-id header")
	}
	return id, nil
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func serviceError(c echo.Context, err error) error {
	var verr *apperrors.ValidationError
	switch {
	case errors.As(err, &verr):
		return errorJSON(c, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, apperrors.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrScoringUnavailable):
		return errorJSON(c, http.StatusBadGateway, "match scoring is temporarily unavailable")
	default:
		return errorJSON(c, http.StatusInternalServerError, "internal server error")
	}
}
