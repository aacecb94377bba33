package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeLicenseExpire = "license:expire:check"
)

type ExpireLicensePayload struct{}

func NewLicenseExpireTask(opts ...asynq.Option) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(ExpireLicensePayload{})
	if err != nil {
		return nil, err
	}

	// Unique prevents overlapping sweeps when the previous run is still going.
	allOpts := append(opts, asynq.Unique(1*time.Hour))

	return asynq.NewTask(TypeLicenseExpire, payloadBytes, allOpts...), nil
}
