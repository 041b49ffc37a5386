package controller

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"marketmatch/internal/app/listings/service"
	"marketmatch/internal/common/apperrors"
	"marketmatch/internal/common/dto"
	"marketmatch/internal/domain/entity"
)

// OrgHeader carries the acting organisation's id, set by the gateway
// after authentication.
const OrgHeader = "x-org-id"

type ListingController struct {
	listingService service.IListingService
}

func NewListingController(listingService service.IListingService) *ListingController {
	return &ListingController{listingService: listingService}
}

func (l *ListingController) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/:listingType", l.Create)
	e.GET("/api/v1/:listingType", l.ListOwn)
	e.GET("/api/v1/:listingType/:id", l.Get)
	e.PUT("/api/v1/:listingType/:id", l.Update)
	e.DELETE("/api/v1/:listingType/:id", l.Delete)
}

func (l *ListingController) Create(c echo.Context) error {
	orgID, err := orgID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	listingType := c.Param("listingType")
	var created dto.ListingDto
	switch listingType {
	case entity.ListingTypeSupply:
		payload := new(dto.CreateSupplyDto)
		if err := c.Bind(payload); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid request body")
		}
		created, err = l.listingService.CreateSupply(c.Request().Context(), orgID, *payload)
	case entity.ListingTypeDemand:
		payload := new(dto.CreateDemandDto)
		if err := c.Bind(payload); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid request body")
		}
		created, err = l.listingService.CreateDemand(c.Request().Context(), orgID, *payload)
	default:
		return errorJSON(c, http.StatusBadRequest, "invalid listing type: "+listingType)
	}
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (l *ListingController) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid listing id")
	}

	listing, err := l.listingService.GetListing(c.Request().Context(), c.Param("listingType"), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, listing)
}

func (l *ListingController) ListOwn(c echo.Context) error {
	orgID, err := orgID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	listings, err := l.listingService.ListByOrg(c.Request().Context(), c.Param("listingType"), orgID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, listings)
}

func (l *ListingController) Update(c echo.Context) error {
	orgID, err := orgID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid listing id")
	}

	payload := new(dto.UpdateListingDto)
	if err := c.Bind(payload); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	if err := l.listingService.UpdateListing(c.Request().Context(), c.Param("listingType"), id, orgID, *payload); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "updated"})
}

func (l *ListingController) Delete(c echo.Context) error {
	orgID, err := orgID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid listing id")
	}

	if err := l.listingService.DeleteListing(c.Request().Context(), c.Param("listingType"), id, orgID); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
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
	default:
		return errorJSON(c, http.StatusInternalServerError, "internal server error")
	}
}
