package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/licensify/licensify/internal/domain/device"
)

type DeviceResponse struct {
	ID         uuid.UUID           `json:"id"`
	DeviceID   string              `json:"device_id"`
	DeviceName *string             `json:"device_name,omitempty"`
	OS         *string             `json:"os,omitempty"`
	IPAddress  *string             `json:"ip_address,omitempty"`
	Status     device.DeviceStatus `json:"status"`
	FirstSeen  time.Time           `json:"first_seen"`
	LastSeen   time.Time           `json:"last_seen"`
}

func NewDeviceResponse(dev *device.Device) *DeviceResponse {
	resp := &DeviceResponse{
		ID:        dev.ID,
		DeviceID:  dev.DeviceID,
		Status:    dev.Status,
		FirstSeen: dev.FirstSeen,
		LastSeen:  dev.LastSeen,
	}
	if dev.DeviceName.Valid {
		resp.DeviceName = &dev.DeviceName.String
	}
	if dev.OS.Valid {
		resp.OS = &dev.OS.String
	}
	if dev.IPAddress.Valid {
		resp.IPAddress = &dev.IPAddress.String
	}
	return resp
}

type ActivityResponse struct {
	ID        uuid.UUID             `json:"id"`
	Action    device.ActivityAction `json:"action"`
	IPAddress *string               `json:"ip_address,omitempty"`
	Metadata  json.RawMessage       `json:"metadata,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

func NewActivityResponse(a *device.Activity) *ActivityResponse {
	resp := &ActivityResponse{
		ID:        a.ID,
		Action:    a.Action,
		Metadata:  a.Metadata,
		Timestamp: a.Timestamp,
	}
	if a.IPAddress.Valid {
		resp.IPAddress = &a.IPAddress.String
	}
	return resp
}

type ListActivitiesRequest struct {
	Limit  int `form:"limit,default=50" binding:"omitempty,gte=0"`
	Offset int `form:"offset,default=0" binding:"omitempty,gte=0"`
}
