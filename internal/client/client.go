package client

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// Config holds the connection settings shared by the external-service
// clients.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func newRestyClient(cfg Config) *resty.Client {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	return c
}
