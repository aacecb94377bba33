package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/licensify/licensify/internal/domain/license"
	"github.com/licensify/licensify/internal/handler/dto"
	"github.com/licensify/licensify/internal/service"
	"go.uber.org/zap"
)

type LicenseHandler struct {
	service    *service.LicenseService
	validation *service.ValidationService
	logger     *zap.Logger
}

func NewLicenseHandler(service *service.LicenseService, validation *service.ValidationService, logger *zap.Logger) *LicenseHandler {
	return &LicenseHandler{
		service:    service,
		validation: validation,
		logger:     logger.Named("LicenseHandler"),
	}
}

// Validate is the hot path used by client SDKs. Denials are verdicts, not
// errors, so every decision the registry reaches goes out as HTTP 200; only
// malformed requests and infrastructure failures get error statuses.
func (h *LicenseHandler) Validate(c *gin.Context) {
	var req dto.ValidateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind validate request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	verdict, err := h.validation.Validate(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		h.logger.Error("Validation service failed", zap.String("device_id", req.DeviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate license"})
		return
	}

	c.JSON(http.StatusOK, verdict)
}

func (h *LicenseHandler) Create(c *gin.Context) {
	h.logger.Debug("Received request to create license")
	var req dto.CreateLicenseRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind or validate request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	createdLicense, err := h.service.CreateLicense(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Service failed to create license", zap.Error(err))
		_ = c.Error(err)
		return
	}

	h.logger.Info("License created successfully via handler", zap.String("id", createdLicense.ID.String()))
	c.JSON(http.StatusCreated, dto.NewLicenseResponse(createdLicense))
}

func (h *LicenseHandler) List(c *gin.Context) {
	h.logger.Debug("Received request to list licenses")
	var req dto.ListLicensesRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Failed to bind or validate query parameters", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	licenses, totalCount, err := h.service.ListLicenses(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Service failed to list licenses", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve licenses"})
		return
	}

	licenseResponses := make([]*dto.LicenseResponse, len(licenses))
	for i, lic := range licenses {
		licenseResponses[i] = dto.NewLicenseResponse(lic)
	}

	c.JSON(http.StatusOK, dto.PaginatedLicenseResponse{
		Licenses:   licenseResponses,
		TotalCount: totalCount,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
}

func (h *LicenseHandler) GetByID(c *gin.Context) {
	idStr := c.Param("id")
	h.logger.Debug("Received request to get license by ID", zap.String("id_param", idStr))

	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Warn("Invalid UUID format received", zap.String("id_param", idStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid license ID format"})
		return
	}

	lic, err := h.service.GetLicenseByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			h.logger.Info("License not found by handler", zap.String("id", idStr))
			c.JSON(http.StatusNotFound, gin.H{"error": "License not found"})
			return
		}

		h.logger.Error("Service failed to get license by ID", zap.String("id", idStr), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve license"})
		return
	}

	c.JSON(http.StatusOK, dto.NewLicenseResponse(lic))
}

func (h *LicenseHandler) UpdateStatus(c *gin.Context) {
	idStr := c.Param("id")
	h.logger.Debug("Received request to update license status", zap.String("id_param", idStr))

	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Warn("Invalid UUID format for status update", zap.String("id_param", idStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid license ID format"})
		return
	}

	var req dto.UpdateLicenseStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind or validate status update request body", zap.String("id", idStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.service.UpdateLicenseStatus(c.Request.Context(), id, *req.Status); err != nil {
		if errors.Is(err, license.ErrNotFound) {
			h.logger.Info("License not found for status update", zap.String("id", idStr))
			c.JSON(http.StatusNotFound, gin.H{"error": "License not found"})
			return
		}

		h.logger.Error("Service failed to update license status", zap.String("id", idStr), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update license status"})
		return
	}

	h.logger.Info("License status updated successfully via handler", zap.String("id", idStr), zap.String("new_status", string(*req.Status)))
	c.JSON(http.StatusOK, gin.H{"message": "License status updated successfully"})
}

func (h *LicenseHandler) Revoke(c *gin.Context) {
	idStr := c.Param("id")

	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Warn("Invalid UUID format for revoke", zap.String("id_param", idStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid license ID format"})
		return
	}

	if err := h.service.RevokeLicense(c.Request.Context(), id); err != nil {
		if errors.Is(err, license.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "License not found"})
			return
		}

		h.logger.Error("Service failed to revoke license", zap.String("id", idStr), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke license"})
		return
	}

	h.logger.Info("License revoked via handler", zap.String("id", idStr))
	c.Status(http.StatusNoContent)
}

func (h *LicenseHandler) Extend(c *gin.Context) {
	idStr := c.Param("id")
	h.logger.Debug("Received request to extend license", zap.String("id_param", idStr))

	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Warn("Invalid UUID format for extend", zap.String("id_param", idStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid license ID format"})
		return
	}

	var req dto.ExtendLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind or validate extend request body", zap.String("id", idStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	extended, err := h.service.ExtendLicense(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "License not found"})
			return
		}

		h.logger.Error("Service failed to extend license", zap.String("id", idStr), zap.Error(err))
		_ = c.Error(err)
		return
	}

	h.logger.Info("License extended via handler", zap.String("id", idStr))
	c.JSON(http.StatusOK, dto.NewLicenseResponse(extended))
}
