package product

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubStore struct {
	products  map[uuid.UUID]models.Product
	created   []*models.Product
	updated   []*models.Product
	lookupIDs []uuid.UUID
	listErr   error
}

func newStubStore(products ...models.Product) *stubStore {
	s := &stubStore{products: map[uuid.UUID]models.Product{}}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *stubStore) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (s *stubStore) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	s.lookupIDs = ids
	out := map[uuid.UUID]models.Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *stubStore) List(context.Context, int) ([]models.Product, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubStore) Create(_ context.Context, p *models.Product) error {
	p.ID = uuid.New()
	s.created = append(s.created, p)
	return nil
}

func (s *stubStore) Update(_ context.Context, p *models.Product) error {
	s.updated = append(s.updated, p)
	return nil
}

func (s *stubStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := s.products[id]
	delete(s.products, id)
	return ok, nil
}

func TestCreateProductValidates(t *testing.T) {
	svc, err := NewService(newStubStore(), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.CreateProduct(context.Background(), CreateProductInput{Name: "  ", Price: decimal.NewFromInt(10)})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.CreateProduct(context.Background(), CreateProductInput{Name: "Tote", Price: decimal.NewFromInt(-1)})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for negative price, got %v", err)
	}
}

func TestCreateProductTrimsAndRounds(t *testing.T) {
	store := newStubStore()
	svc, _ := NewService(store, nil)
	blank := "   "

	dto, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:        " Tote ",
		Description: &blank,
		Price:       decimal.RequireFromString("1999.999"),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if dto.Name != "Tote" || dto.Description != nil {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if !dto.Price.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected price rounded to 2000, got %s", dto.Price)
	}
}

func TestGetProductNotFound(t *testing.T) {
	svc, _ := NewService(newStubStore(), nil)
	_, err := svc.GetProduct(context.Background(), uuid.New())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound in chain")
	}
}

func TestUpdateProductPartial(t *testing.T) {
	existing := models.Product{ID: uuid.New(), Name: "Tote", Price: decimal.NewFromInt(1500)}
	store := newStubStore(existing)
	svc, _ := NewService(store, nil)

	price := decimal.NewFromInt(1750)
	dto, err := svc.UpdateProduct(context.Background(), existing.ID, UpdateProductInput{Price: &price})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if dto.Name != "Tote" || !dto.Price.Equal(price) {
		t.Fatalf("unexpected dto %+v", dto)
	}

	empty := ""
	if _, err := svc.UpdateProduct(context.Background(), existing.ID, UpdateProductInput{Name: &empty}); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteProduct(t *testing.T) {
	existing := models.Product{ID: uuid.New(), Name: "Tote"}
	svc, _ := NewService(newStubStore(existing), nil)

	if err := svc.DeleteProduct(context.Background(), existing.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if err := svc.DeleteProduct(context.Background(), existing.ID); pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestLookupProductsDedupes(t *testing.T) {
	existing := models.Product{ID: uuid.New(), Name: "Tote"}
	store := newStubStore(existing)
	svc, _ := NewService(store, nil)

	found, err := svc.LookupProducts(context.Background(), []uuid.UUID{existing.ID, existing.ID})
	if err != nil {
		t.Fatalf("LookupProducts: %v", err)
	}
	if len(store.lookupIDs) != 1 || len(found) != 1 {
		t.Fatalf("expected deduped lookup, got ids=%v found=%d", store.lookupIDs, len(found))
	}
}

func TestListProductsWrapsStoreError(t *testing.T) {
	store := newStubStore()
	store.listErr = errors.New("connection reset")
	svc, _ := NewService(store, nil)

	if _, err := svc.ListProducts(context.Background(), 0); pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
