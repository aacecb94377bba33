package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/licensify/licensify/internal/domain/device"
	"github.com/licensify/licensify/internal/domain/license"
	"github.com/licensify/licensify/internal/handler/dto"
	"github.com/licensify/licensify/internal/ierr"
	"github.com/licensify/licensify/internal/service"
	"go.uber.org/zap"
)

type DeviceHandler struct {
	service *service.LicenseService
	logger  *zap.Logger
}

func NewDeviceHandler(service *service.LicenseService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		service: service,
		logger:  logger.Named("DeviceHandler"),
	}
}

func (h *DeviceHandler) ListByLicense(c *gin.Context) {
	licenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: invalid license id format", ierr.ErrValidation))
		return
	}

	devices, err := h.service.ListDevices(c.Request.Context(), licenseID)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			_ = c.Error(fmt.Errorf("%w: license not found", ierr.ErrNotFound))
			return
		}

		h.logger.Error("Service failed to list devices", zap.String("license_id", licenseID.String()), zap.Error(err))
		_ = c.Error(err)
		return
	}

	responses := make([]*dto.DeviceResponse, len(devices))
	for i, dev := range devices {
		responses[i] = dto.NewDeviceResponse(dev)
	}

	c.JSON(http.StatusOK, gin.H{"devices": responses, "count": len(responses)})
}

func (h *DeviceHandler) Block(c *gin.Context) {
	h.setStatus(c, device.StatusBlocked)
}

func (h *DeviceHandler) Unblock(c *gin.Context) {
	h.setStatus(c, device.StatusActive)
}

func (h *DeviceHandler) setStatus(c *gin.Context, status device.DeviceStatus) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: invalid device id format", ierr.ErrValidation))
		return
	}

	if status == device.StatusBlocked {
		err = h.service.BlockDevice(c.Request.Context(), deviceID)
	} else {
		err = h.service.UnblockDevice(c.Request.Context(), deviceID)
	}
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			_ = c.Error(fmt.Errorf("%w: device not found", ierr.ErrNotFound))
			return
		}

		h.logger.Error("Service failed to update device status",
			zap.String("device_id", deviceID.String()),
			zap.String("status", string(status)),
			zap.Error(err))
		_ = c.Error(err)
		return
	}

	h.logger.Info("Device status updated via handler",
		zap.String("device_id", deviceID.String()),
		zap.String("status", string(status)))
	c.JSON(http.StatusOK, gin.H{"message": "Device status updated successfully"})
}

func (h *DeviceHandler) ListActivities(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: invalid device id format", ierr.ErrValidation))
		return
	}

	var req dto.ListActivitiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	activities, err := h.service.ListDeviceActivities(c.Request.Context(), deviceID, req.Limit, req.Offset)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			_ = c.Error(fmt.Errorf("%w: device not found", ierr.ErrNotFound))
			return
		}

		h.logger.Error("Service failed to list device activities", zap.String("device_id", deviceID.String()), zap.Error(err))
		_ = c.Error(err)
		return
	}

	responses := make([]*dto.ActivityResponse, len(activities))
	for i, a := range activities {
		responses[i] = dto.NewActivityResponse(a)
	}

	c.JSON(http.StatusOK, gin.H{
		"activities": responses,
		"limit":      req.Limit,
		"offset":     req.Offset,
	})
}
