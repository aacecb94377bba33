package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/licensify/licensify/internal/domain/license"
	"github.com/licensify/licensify/internal/handler/dto"
	"github.com/licensify/licensify/internal/service"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	licenseService *service.LicenseService
	logger         *zap.Logger
}

func NewDashboardHandler(licenseService *service.LicenseService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		licenseService: licenseService,
		logger:         logger.Named("DashboardHandler"),
	}
}

func (h *DashboardHandler) GetSummary(c *gin.Context) {
	counts, err := h.licenseService.DashboardSummary(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get dashboard summary from service", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve dashboard summary"})
		return
	}

	var total int64
	for _, status := range []license.LicenseStatus{license.StatusActive, license.StatusRevoked, license.StatusExpired} {
		total += counts[string(status)]
	}

	c.JSON(http.StatusOK, dto.DashboardSummaryResponse{
		TotalLicenses: total,
		StatusCounts:  counts,
	})
}
