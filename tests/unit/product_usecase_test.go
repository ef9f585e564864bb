package unit

import (
	"context"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// Mocks（衝突回避の命名）
// =====================

type ProdProductRepoMock struct{ mock.Mock }

func (m *ProdProductRepoMock) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	args := m.Called(ctx, q)
	items, _ := args.Get(0).([]model.Product)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *ProdProductRepoMock) FindByID(ctx context.Context, productID int64) (model.Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProdProductRepoMock) Create(ctx context.Context, p model.Product) (model.Product, error) {
	args := m.Called(ctx, p)
	created, _ := args.Get(0).(model.Product)
	return created, args.Error(1)
}

func (m *ProdProductRepoMock) Update(ctx context.Context, p model.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ProdProductRepoMock) SoftDelete(ctx context.Context, productID int64) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

type ProdCategoryRepoMock struct{ mock.Mock }

func (m *ProdCategoryRepoMock) List(ctx context.Context) ([]model.Category, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]model.Category)
	return items, args.Error(1)
}

func (m *ProdCategoryRepoMock) FindByID(ctx context.Context, id int64) (model.Category, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(model.Category)
	return c, args.Error(1)
}

func (m *ProdCategoryRepoMock) Create(ctx context.Context, c model.Category) (model.Category, error) {
	panic("not used in ProductUsecase tests")
}

type ProdInventoryRepoMock struct{ mock.Mock }

func (m *ProdInventoryRepoMock) SetStock(ctx context.Context, productID int64, newStock int64) error {
	args := m.Called(ctx, productID, newStock)
	return args.Error(0)
}

func (m *ProdInventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	panic("not used in ProductUsecase tests")
}

func (m *ProdInventoryRepoMock) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	panic("not used in ProductUsecase tests")
}

func (m *ProdInventoryRepoMock) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	args := m.Called(ctx, adj)
	return args.Error(0)
}

type ProdAuditRepoMock struct{ mock.Mock }

func (m *ProdAuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *ProdAuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	panic("not used in ProductUsecase tests")
}

type ProdReviewRepoMock struct{ mock.Mock }

func (m *ProdReviewRepoMock) Upsert(ctx context.Context, r model.Review) error {
	panic("not used in ProductUsecase tests")
}

func (m *ProdReviewRepoMock) ListByProductID(ctx context.Context, productID int64) ([]model.Review, error) {
	panic("not used in ProductUsecase tests")
}

func (m *ProdReviewRepoMock) AverageRating(ctx context.Context, productID int64) (float64, int64, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(float64), args.Get(1).(int64), args.Error(2)
}

func newProductUC(p *ProdProductRepoMock, cat *ProdCategoryRepoMock, inv *ProdInventoryRepoMock, audit *ProdAuditRepoMock, rev *ProdReviewRepoMock) *usecase.ProductUsecase {
	//cacheはnil（無効）で動かす
	return usecase.NewProductUsecase(p, cat, inv, audit, rev, nil)
}

// =====================
// Public: List / Detail
// =====================

func TestProductUsecase_ListPublicProducts_InvalidPage(t *testing.T) {
	uc := newProductUC(new(ProdProductRepoMock), new(ProdCategoryRepoMock), new(ProdInventoryRepoMock), new(ProdAuditRepoMock), new(ProdReviewRepoMock))

	_, err := uc.ListPublicProducts(context.Background(), usecase.ListProductsInput{Page: 0, Limit: 20})
	assertErrContains(t, err, "invalid page")
}

func TestProductUsecase_ListPublicProducts_InvalidLimit(t *testing.T) {
	uc := newProductUC(new(ProdProductRepoMock), new(ProdCategoryRepoMock), new(ProdInventoryRepoMock), new(ProdAuditRepoMock), new(ProdReviewRepoMock))

	_, err := uc.ListPublicProducts(context.Background(), usecase.ListProductsInput{Page: 1, Limit: 101})
	assertErrContains(t, err, "invalid limit")
}

func TestProductUsecase_ListPublicProducts_Success(t *testing.T) {
	ctx := context.Background()

	pRepo := new(ProdProductRepoMock)
	uc := newProductUC(pRepo, new(ProdCategoryRepoMock), new(ProdInventoryRepoMock), new(ProdAuditRepoMock), new(ProdReviewRepoMock))

	in := usecase.ListProductsInput{Page: 1, Limit: 20, Q: "coffee", Sort: "new"}
	q := repo.ProductListQuery{Page: 1, Limit: 20, Q: "coffee", Sort: "new"}

	items := []model.Product{
		{ID: 1, Name: "A", IsActive: true},
	}
	pRepo.On("ListPublic", mock.Anything, q).Return(items, int64(1), nil)

	out, err := uc.ListPublicProducts(ctx, in)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	assert.Equal(t, 1, out.Page)
	pRepo.AssertExpectations(t)
}

func TestProductUsecase_GetProductDetail_WithRating(t *testing.T) {
	ctx := context.Background()

	pRepo := new(ProdProductRepoMock)
	rRepo := new(ProdReviewRepoMock)
	uc := newProductUC(pRepo, new(ProdCategoryRepoMock), new(ProdInventoryRepoMock), new(ProdAuditRepoMock), rRepo)

	pRepo.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "A", IsActive: true}, nil)
	rRepo.On("AverageRating", mock.Anything, int64(1)).Return(4.5, int64(2), nil)

	out, err := uc.GetProductDetail(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, 4.5, out.AverageRating)
	assert.Equal(t, int64(2), out.ReviewCount)
}

func TestProductUsecase_GetProductDetail_InactiveIsNotFound(t *testing.T) {
	ctx := context.Background()

	pRepo := new(ProdProductRepoMock)
	uc := newProductUC(pRepo, new(ProdCategoryRepoMock), new(ProdInventoryRepoMock), new(ProdAuditRepoMock), new(ProdReviewRepoMock))

	pRepo.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, IsActive: false}, nil)

	_, err := uc.GetProductDetail(ctx, 1)
	assertErrContains(t, err, "not found")
}

// =====================
// Admin: inventory
// =====================

func TestProductUsecase_AdminUpdateInventory_WritesAdjustmentAndAudit(t *testing.T) {
	ctx := context.Background()

	pRepo := new(ProdProductRepoMock)
	invRepo := new(ProdInventoryRepoMock)
	auditRepo := new(ProdAuditRepoMock)
	uc := newProductUC(pRepo, new(ProdCategoryRepoMock), invRepo, auditRepo, new(ProdReviewRepoMock))

	pRepo.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Stock: 10, IsActive: true}, nil)
	invRepo.On("SetStock", mock.Anything, int64(1), int64(4)).Return(nil)
	invRepo.On("CreateAdjustment", mock.Anything, mock.MatchedBy(func(adj model.InventoryAdjustment) bool {
		return adj.ProductID == 1 && adj.Delta == -6 && adj.Reason == "damaged"
	})).Return(nil)
	auditRepo.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionUpdateStock && l.ResourceID == 1
	})).Return(nil)

	err := uc.AdminUpdateInventory(ctx, 99, 1, 4, "damaged")
	assert.NoError(t, err)
	invRepo.AssertExpectations(t)
	auditRepo.AssertExpectations(t)
}

func TestProductUsecase_AdminUpdateInventory_ReasonRequired(t *testing.T) {
	uc := newProductUC(new(ProdProductRepoMock), new(ProdCategoryRepoMock), new(ProdInventoryRepoMock), new(ProdAuditRepoMock), new(ProdReviewRepoMock))

	err := uc.AdminUpdateInventory(context.Background(), 99, 1, 4, "  ")
	assertErrContains(t, err, "reason required")
}

func TestProductUsecase_AdminCreateProduct_ReturnsIDAndAudits(t *testing.T) {
	ctx := context.Background()

	pRepo := new(ProdProductRepoMock)
	auditRepo := new(ProdAuditRepoMock)
	uc := newProductUC(pRepo, new(ProdCategoryRepoMock), new(ProdInventoryRepoMock), auditRepo, new(ProdReviewRepoMock))

	pRepo.On("Create", mock.Anything, mock.Anything).Return(model.Product{
		ID: 42, Name: "Coffee", Price: 1000, Stock: 5, IsActive: true,
	}, nil)
	auditRepo.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionCreateProduct &&
			l.ActorUserID == 99 &&
			l.ResourceID == 42 &&
			l.BeforeJSON == "{}" &&
			l.AfterJSON != ""
	})).Return(nil)

	id, err := uc.AdminCreateProduct(ctx, 99, usecase.AdminCreateProductInput{
		Name: "Coffee", Price: 1000, Stock: 5, IsActive: true,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(42), id)
	auditRepo.AssertExpectations(t)
}

func TestProductUsecase_AdminDeleteProduct_AuditsBeforeSnapshot(t *testing.T) {
	ctx := context.Background()

	pRepo := new(ProdProductRepoMock)
	auditRepo := new(ProdAuditRepoMock)
	uc := newProductUC(pRepo, new(ProdCategoryRepoMock), new(ProdInventoryRepoMock), auditRepo, new(ProdReviewRepoMock))

	pRepo.On("FindByID", mock.Anything, int64(7)).Return(model.Product{
		ID: 7, Name: "Old", Price: 500, Stock: 3, IsActive: true,
	}, nil)
	pRepo.On("SoftDelete", mock.Anything, int64(7)).Return(nil)
	auditRepo.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		//削除前のスナップショットが残ること
		return l.Action == model.AuditActionDeleteProduct &&
			l.ResourceID == 7 &&
			l.BeforeJSON != "{}" &&
			l.AfterJSON == `{"deleted":true}`
	})).Return(nil)

	err := uc.AdminDeleteProduct(ctx, 99, 7)
	assert.NoError(t, err)
	pRepo.AssertExpectations(t)
	auditRepo.AssertExpectations(t)
}

func TestProductUsecase_AdminCreateProduct_NegativePrice(t *testing.T) {
	uc := newProductUC(new(ProdProductRepoMock), new(ProdCategoryRepoMock), new(ProdInventoryRepoMock), new(ProdAuditRepoMock), new(ProdReviewRepoMock))

	_, err := uc.AdminCreateProduct(context.Background(), 99, usecase.AdminCreateProductInput{Name: "X", Price: -1})
	assertErrContains(t, err, "price must be >= 0")
}
