package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"stageflow_backend/internal/business/repository"
	"stageflow_backend/platform/apperr"
	"stageflow_backend/platform/events"
	"stageflow_backend/platform/logger"
)

type fakeBusinessRepo struct {
	byID map[uuid.UUID]repository.Business
}

func newFakeBusinessRepo() *fakeBusinessRepo {
	return &fakeBusinessRepo{byID: make(map[uuid.UUID]repository.Business)}
}

func (f *fakeBusinessRepo) Create(_ context.Context, params repository.CreateBusinessParams) (repository.Business, error) {
	b := repository.Business{
		ID:         uuid.New(),
		Name:       params.Name,
		Email:      params.Email,
		APIKeyHash: params.APIKeyHash,
		CreatedAt:  time.Now(),
	}
	f.byID[b.ID] = b
	return b, nil
}

func (f *fakeBusinessRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Business, error) {
	b, ok := f.byID[id]
	if !ok {
		return repository.Business{}, apperr.NotFound("business not found")
	}
	return b, nil
}

func (f *fakeBusinessRepo) List(_ context.Context) ([]repository.Business, error) {
	var out []repository.Business
	for _, b := range f.byID {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBusinessRepo) UpdateAPIKeyHash(_ context.Context, id uuid.UUID, hash string) error {
	b, ok := f.byID[id]
	if !ok {
		return apperr.NotFound("business not found")
	}
	b.APIKeyHash = hash
	f.byID[id] = b
	return nil
}

func newTestService(repo repository.Repository) *Service {
	log := logger.New("test")
	return New(repo, events.NewInMemoryBus(log), log)
}

func TestCreateIssuesVerifiableKey(t *testing.T) {
	repo := newFakeBusinessRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), "Acme", "ops@acme.test")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(created.APIKey, "sf_"+created.Business.ID.String()+".") {
		t.Errorf("unexpected key format: %s", created.APIKey)
	}

	businessID, err := svc.VerifyKey(context.Background(), created.APIKey)
	if err != nil {
		t.Fatalf("VerifyKey: %v", err)
	}
	if businessID != created.Business.ID {
		t.Errorf("expected business %s, got %s", created.Business.ID, businessID)
	}
}

func TestVerifyKeyRejectsBadKeys(t *testing.T) {
	repo := newFakeBusinessRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), "Acme", "ops@acme.test")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cases := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"no prefix", strings.TrimPrefix(created.APIKey, "sf_")},
		{"wrong secret", "sf_" + created.Business.ID.String() + ".deadbeef"},
		{"unknown business", "sf_" + uuid.NewString() + ".deadbeef"},
		{"malformed id", "sf_notauuid.deadbeef"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.VerifyKey(context.Background(), tc.key)
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Kind != apperr.KindUnauthorized {
				t.Errorf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestRotateKeyInvalidatesOldKey(t *testing.T) {
	repo := newFakeBusinessRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), "Acme", "ops@acme.test")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newKey, err := svc.RotateKey(context.Background(), created.Business.ID)
	if err != nil {
		t.Fatalf("RotateKey: %v", err)
	}
	if newKey == created.APIKey {
		t.Fatal("rotation returned the same key")
	}

	if _, err := svc.VerifyKey(context.Background(), created.APIKey); err == nil {
		t.Error("old key should no longer verify")
	}
	if _, err := svc.VerifyKey(context.Background(), newKey); err != nil {
		t.Errorf("new key should verify: %v", err)
	}
}
