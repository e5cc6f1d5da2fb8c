package client

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/admissions-api/internal/models"
)

// NotifierClient posts applicant-facing email notifications to the external
// notification service.
type NotifierClient struct {
	http *resty.Client
}

// NewNotifierClient constructs a NotifierClient.
func NewNotifierClient(cfg Config) *NotifierClient {
	return &NotifierClient{http: newRestyClient(cfg)}
}

// SendStatusNotification delivers a status-change email request.
func (c *NotifierClient) SendStatusNotification(ctx context.Context, n models.StatusNotification) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(n).
		Post("/notifications/application-status")
	if err != nil {
		return fmt.Errorf("send status notification: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send status notification: status %d", resp.StatusCode())
	}
	return nil
}
