package handler

import (
	"net/http"

	"github.com/FedeEstrubia/imanager-argentina/internal/apierror"
	"github.com/FedeEstrubia/imanager-argentina/internal/dto"
	"github.com/FedeEstrubia/imanager-argentina/internal/service"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct{ svc service.SettingsService }

func NewSettingsHandler(svc service.SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	resp, err := h.svc.Get(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Update godoc
// @Summary      Actualizar configuración
// @Description  Cambia la cotización del dólar y la garantía por defecto. Las transacciones ya registradas conservan su cotización.
// @Tags         settings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.UpdateSettingsRequest true "Configuración"
// @Success      200  {object} dto.SettingsResponse
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/settings [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type WarrantiesHandler struct{ svc service.WarrantyService }

func NewWarrantiesHandler(svc service.WarrantyService) *WarrantiesHandler {
	return &WarrantiesHandler{svc: svc}
}

func (h *WarrantiesHandler) List(c *gin.Context) {
	var filter dto.WarrantyFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	if !validateStruct(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), actor(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
