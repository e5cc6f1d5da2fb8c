package client

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/admissions-api/internal/models"
)

// BatchesClient reads the batch roster from the external batches service.
type BatchesClient struct {
	http *resty.Client
}

// NewBatchesClient constructs a BatchesClient.
func NewBatchesClient(cfg Config) *BatchesClient {
	return &BatchesClient{http: newRestyClient(cfg)}
}

// ListByProgram returns all batches for a program, eligible or not.
func (c *BatchesClient) ListByProgram(ctx context.Context, programID string) ([]models.Batch, error) {
	var out struct {
		Data []models.Batch `json:"data"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("programId", programID).
		SetResult(&out).
		Get("/batches")
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list batches: status %d", resp.StatusCode())
	}
	return out.Data, nil
}
