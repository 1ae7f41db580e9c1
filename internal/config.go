package internal

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds every knob of a run. Values come from the environment,
// every timeout is a bounded wait, never an indefinite block.
type Config struct {
	BaseURL string `env:"BASE_URL,default=http://localhost:3000" validate:"required,url"`
	WSURL   string `env:"WS_URL,default=ws://localhost:3000/ws" validate:"required"`

	Users int `env:"USERS,default=100" validate:"gte=1"`

	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT,default=5s" validate:"gt=0"`
	SettleDelay    time.Duration `env:"SETTLE_DELAY,default=2s" validate:"gte=0"`
	ObserveWindow  time.Duration `env:"OBSERVE_WINDOW,default=5s" validate:"gt=0"`
	ShutdownGrace  time.Duration `env:"SHUTDOWN_GRACE,default=3s" validate:"gte=0"`

	// FailureThreshold is the errored-session ratio above which the
	// whole run is reported as failed (exit code 1).
	FailureThreshold  float64       `env:"FAILURE_THRESHOLD,default=0.1" validate:"gte=0,lte=1"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=5s" validate:"gt=0"`

	// ShowDetail enables the per-user table after the aggregate summary.
	ShowDetail bool   `env:"SHOW_DETAIL,default=false"`
	LogLevel   string `env:"LOG_LEVEL,default=INFO"`
}

func (c Config) Validate() error {
	return validate.Struct(c)
}
