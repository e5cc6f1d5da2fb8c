package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

// ResumeTokenRepository persists the redirect-mode resume record in Redis
// with an explicit TTL. The record survives the browsing context navigating
// away to the gateway and is consumed exactly once on return.
type ResumeTokenRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewResumeTokenRepository constructs the repository.
func NewResumeTokenRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ResumeTokenRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResumeTokenRepository{client: client, ttl: ttl, logger: logger}
}

func resumeKey(applicantID string) string {
	return fmt.Sprintf("admissions:resume:%s", applicantID)
}

// Save writes the resume token, replacing any prior one for the applicant.
func (r *ResumeTokenRepository) Save(ctx context.Context, token models.ResumeToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal resume token: %w", err)
	}
	if err := r.client.Set(ctx, resumeKey(token.ApplicantID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("save resume token: %w", err)
	}
	return nil
}

// Load returns the resume token for the applicant, or ErrCacheMiss when none
// exists (never written, expired, or already consumed).
func (r *ResumeTokenRepository) Load(ctx context.Context, applicantID string) (*models.ResumeToken, error) {
	raw, err := r.client.Get(ctx, resumeKey(applicantID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("load resume token: %w", err)
	}
	var token models.ResumeToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("unmarshal resume token: %w", err)
	}
	return &token, nil
}

// Clear removes the resume token after it has been consumed.
func (r *ResumeTokenRepository) Clear(ctx context.Context, applicantID string) error {
	if err := r.client.Del(ctx, resumeKey(applicantID)).Err(); err != nil {
		return fmt.Errorf("clear resume token: %w", err)
	}
	return nil
}
