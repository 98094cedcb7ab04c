// Package service implements tenant management: business creation with API
// key issuance, key rotation and key verification for request auth.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"stageflow_backend/internal/business/repository"
	"stageflow_backend/internal/events"
	"stageflow_backend/platform/apperr"
	"stageflow_backend/platform/logger"
)

// apiKeyPrefix marks keys issued by this service. The business id is embedded
// so verification can look up the stored hash without a table scan.
const apiKeyPrefix = "sf_"

// Service manages businesses and their API credentials.
type Service struct {
	repo repository.Repository
	bus  events.Bus
	log  *logger.Logger
}

// New creates the business service.
func New(repo repository.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// Created pairs a new business with its one-time plaintext API key.
type Created struct {
	Business repository.Business
	APIKey   string
}

func newSecret() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate api key secret: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

func formatKey(businessID uuid.UUID, secret string) string {
	return apiKeyPrefix + businessID.String() + "." + secret
}

// Create registers a business and issues its API key. The plaintext key is
// returned exactly once; only the bcrypt hash is stored.
func (s *Service) Create(ctx context.Context, name, email string) (Created, error) {
	secret, err := newSecret()
	if err != nil {
		return Created{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return Created{}, fmt.Errorf("hash api key: %w", err)
	}

	b, err := s.repo.Create(ctx, repository.CreateBusinessParams{
		Name:       name,
		Email:      email,
		APIKeyHash: string(hash),
	})
	if err != nil {
		return Created{}, err
	}

	// Synchronous so the default stage exists before the caller gets the key.
	if err := s.bus.PublishSync(ctx, events.BusinessCreated{
		BaseEvent:  events.NewBaseEvent(),
		BusinessID: b.ID,
		Name:       b.Name,
	}); err != nil {
		s.log.Error("business created handlers failed", "business_id", b.ID, "error", err)
	}

	return Created{Business: b, APIKey: formatKey(b.ID, secret)}, nil
}

// RotateKey issues a fresh API key for a business, invalidating the old one.
func (s *Service) RotateKey(ctx context.Context, id uuid.UUID) (string, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return "", err
	}

	secret, err := newSecret()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	if err := s.repo.UpdateAPIKeyHash(ctx, id, string(hash)); err != nil {
		return "", err
	}
	return formatKey(id, secret), nil
}

// Get returns a business by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Business, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all businesses.
func (s *Service) List(ctx context.Context) ([]repository.Business, error) {
	return s.repo.List(ctx)
}

// VerifyKey checks an API key and returns the business id it belongs to.
func (s *Service) VerifyKey(ctx context.Context, key string) (uuid.UUID, error) {
	unauthorized := apperr.Unauthorized("invalid api key")

	rest, ok := strings.CutPrefix(key, apiKeyPrefix)
	if !ok {
		return uuid.Nil, unauthorized
	}
	idPart, secret, ok := strings.Cut(rest, ".")
	if !ok || secret == "" {
		return uuid.Nil, unauthorized
	}
	businessID, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, unauthorized
	}

	b, err := s.repo.GetByID(ctx, businessID)
	if err != nil {
		return uuid.Nil, unauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(b.APIKeyHash), []byte(secret)) != nil {
		return uuid.Nil, unauthorized
	}
	return b.ID, nil
}
