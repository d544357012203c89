package handler

import (
	"errors"
	"net/http"

	"github.com/FedeEstrubia/imanager-argentina/internal/dto"
	"github.com/FedeEstrubia/imanager-argentina/internal/service"

	"github.com/gin-gonic/gin"
)

type SettlementsHandler struct{ svc service.SettlementService }

func NewSettlementsHandler(svc service.SettlementService) *SettlementsHandler {
	return &SettlementsHandler{svc: svc}
}

// Settle godoc
// @Summary      Registrar una venta con canje
// @Description  Calcula la diferencia, registra la transacción y ajusta el stock. Si la transacción se registró pero falló un ajuste de stock responde 207 con los pasos pendientes.
// @Tags         settlements
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.SettlementRequest true "Venta"
// @Success      201  {object} dto.SettlementResponse
// @Success      207  {object} dto.PartialCommitResponse
// @Failure      422  {object} apierror.ValidationError
// @Failure      500  {object} apierror.APIError
// @Router       /v1/settlements [post]
func (h *SettlementsHandler) Settle(c *gin.Context) {
	var req dto.SettlementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Settle(c.Request.Context(), actor(c), req)
	respondSettlement(c, http.StatusCreated, resp, err)
}

// Reverse godoc
// @Summary      Revertir una transacción
// @Description  Registra una transacción inversa y restaura el stock. Una transacción se revierte una sola vez.
// @Tags         settlements
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                       true "UUID de la transacción"
// @Param        body body dto.ReverseSettlementRequest false "Notas"
// @Success      201  {object} dto.SettlementResponse
// @Success      207  {object} dto.PartialCommitResponse
// @Failure      404  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/settlements/{id}/reverse [post]
func (h *SettlementsHandler) Reverse(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.ReverseSettlementRequest
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Reverse(c.Request.Context(), actor(c), id, req)
	respondSettlement(c, http.StatusCreated, resp, err)
}

// List godoc
// @Summary      Listar transacciones
// @Tags         settlements
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array} dto.TransactionRecord
// @Router       /v1/settlements [get]
func (h *SettlementsHandler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary      Obtener una transacción
// @Tags         settlements
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "UUID de la transacción"
// @Success      200  {object} dto.SettlementResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/settlements/{id} [get]
func (h *SettlementsHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Import godoc
// @Summary      Importar transacciones
// @Description  Inserta las transacciones cuyo id no existe. Nunca sobrescribe ni ajusta stock.
// @Tags         settlements
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.ImportSettlementsRequest true "Transacciones"
// @Success      200  {object} map[string]int
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/settlements/import [post]
func (h *SettlementsHandler) Import(c *gin.Context) {
	var req dto.ImportSettlementsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	n, err := h.svc.Import(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": n})
}

// respondSettlement answers a committed settlement, distinguishing a partial
// commit (207) from full success and from failures that wrote nothing.
func respondSettlement(c *gin.Context, status int, resp *dto.SettlementResponse, err error) {
	var se *service.SettlementError
	if err != nil && errors.As(err, &se) && se.Kind == service.KindPartialCommit && resp != nil {
		c.JSON(http.StatusMultiStatus, dto.PartialCommitResponse{
			Detail:      "La transacción se registró pero quedaron ajustes de stock pendientes",
			FailedSteps: se.FailedSteps,
			Settlement:  *resp,
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, resp)
}
