// Package service holds the back-office computation core: bill building,
// refund reconciliation, inventory intake and khaata pay-downs, expenses,
// and the sales report.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"shopkhata/backend/internal/apperr"
	"shopkhata/backend/internal/cache"
	"shopkhata/backend/internal/domain"
	"shopkhata/backend/internal/store"
)

type shopContextKey struct{}

// WithShop attaches the acting shop to the context. The HTTP layer resolves
// it from the bearer token; callers without a shop fall back to the default.
func WithShop(ctx context.Context, shopID string) context.Context {
	return context.WithValue(ctx, shopContextKey{}, shopID)
}

func ShopFromContext(ctx context.Context) (string, bool) {
	shopID, ok := ctx.Value(shopContextKey{}).(string)
	return shopID, ok
}

var hundred = decimal.NewFromInt(100)

type Service struct {
	repo          store.Repository
	reports       cache.ReportCache
	reportTTL     time.Duration
	validate      *validator.Validate
	log           *logrus.Logger
	defaultShopID string
}

func New(repo store.Repository, reports cache.ReportCache, reportTTL time.Duration, logger *logrus.Logger, defaultShopID string) *Service {
	if defaultShopID == "" {
		defaultShopID = "main-shop"
	}
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Service{
		repo:          repo,
		reports:       reports,
		reportTTL:     reportTTL,
		validate:      validator.New(),
		log:           logger,
		defaultShopID: defaultShopID,
	}
}

func (s *Service) shopID(ctx context.Context) string {
	if id, ok := ShopFromContext(ctx); ok && id != "" {
		return id
	}
	return s.defaultShopID
}

func (s *Service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return apperr.Validationf("invalid field %s (%s)", fieldErrs[0].Field(), fieldErrs[0].Tag())
	}
	return apperr.Validation("invalid request")
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	entry := domain.AuditLog{
		ID:         uuid.NewString(),
		ShopID:     s.shopID(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.log.WithFields(logrus.Fields{"action": action, "entity_id": entityID}).WithError(err).Warn("audit log write failed")
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, s.shopID(ctx), from, to, limit)
}

func validPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := s.check(req); err != nil {
		return domain.Product{}, err
	}
	if req.SalePrice.IsNegative() || req.CostPrice.IsNegative() {
		return domain.Product{}, apperr.Validation("prices must not be negative")
	}
	if _, err := s.repo.GetUnitTypeByID(ctx, req.UnitTypeID); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		GroupName:   strings.TrimSpace(req.GroupName),
		UnitTypeID:  req.UnitTypeID,
		SalePrice:   req.SalePrice,
		CostPrice:   req.CostPrice,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   time.Now().UTC(),
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_create", "product", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if err := s.check(req); err != nil {
		return domain.Supplier{}, err
	}

	supplier := domain.Supplier{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Company:   strings.TrimSpace(req.Company),
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateSupplier(ctx, supplier)
	if err != nil {
		return domain.Supplier{}, err
	}
	return *created, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreateUnitType(ctx context.Context, req domain.UnitTypeCreateRequest) (domain.UnitType, error) {
	if err := s.check(req); err != nil {
		return domain.UnitType{}, err
	}

	unitType := domain.UnitType{
		ID:        uuid.NewString(),
		Title:     strings.ToLower(strings.TrimSpace(req.Title)),
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateUnitType(ctx, unitType)
	if err != nil {
		return domain.UnitType{}, err
	}
	return *created, nil
}

func (s *Service) ListUnitTypes(ctx context.Context) ([]domain.UnitType, error) {
	return s.repo.ListUnitTypes(ctx)
}

func (s *Service) CreateUnit(ctx context.Context, req domain.UnitCreateRequest) (domain.Unit, error) {
	if err := s.check(req); err != nil {
		return domain.Unit{}, err
	}
	if _, err := s.repo.GetUnitTypeByID(ctx, req.TypeID); err != nil {
		return domain.Unit{}, err
	}

	unit := domain.Unit{
		ID:        uuid.NewString(),
		TypeID:    req.TypeID,
		Name:      strings.ToLower(strings.TrimSpace(req.Name)),
		Value:     req.Value,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateUnit(ctx, unit)
	if err != nil {
		return domain.Unit{}, err
	}
	return *created, nil
}

func (s *Service) ListUnits(ctx context.Context, typeID string) ([]domain.Unit, error) {
	return s.repo.ListUnits(ctx, typeID)
}

func (s *Service) CreateNormalCustomer(ctx context.Context, req domain.NormalCustomerCreateRequest) (domain.NormalCustomer, error) {
	if err := s.check(req); err != nil {
		return domain.NormalCustomer{}, err
	}

	customer := domain.NormalCustomer{
		ID:        uuid.NewString(),
		ShopID:    s.shopID(ctx),
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateNormalCustomer(ctx, customer)
	if err != nil {
		return domain.NormalCustomer{}, err
	}
	return *created, nil
}

func (s *Service) ListNormalCustomers(ctx context.Context) ([]domain.NormalCustomer, error) {
	return s.repo.ListNormalCustomers(ctx, s.shopID(ctx))
}

func (s *Service) CreateVipCustomer(ctx context.Context, req domain.VipCustomerCreateRequest) (domain.VipCustomer, error) {
	if err := s.check(req); err != nil {
		return domain.VipCustomer{}, err
	}
	if req.Balance.IsNegative() {
		return domain.VipCustomer{}, apperr.Validation("balance must not be negative")
	}

	customer := domain.VipCustomer{
		ID:        uuid.NewString(),
		ShopID:    s.shopID(ctx),
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Balance:   req.Balance,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateVipCustomer(ctx, customer)
	if err != nil {
		return domain.VipCustomer{}, err
	}
	return *created, nil
}

func (s *Service) GetVipCustomer(ctx context.Context, id string) (domain.VipCustomer, error) {
	customer, err := s.repo.GetVipCustomerByID(ctx, id)
	if err != nil {
		return domain.VipCustomer{}, err
	}
	return *customer, nil
}

func (s *Service) ListVipCustomers(ctx context.Context) ([]domain.VipCustomer, error) {
	return s.repo.ListVipCustomers(ctx, s.shopID(ctx))
}

func (s *Service) CreateEmployee(ctx context.Context, req domain.EmployeeCreateRequest) (domain.Employee, error) {
	if err := s.check(req); err != nil {
		return domain.Employee{}, err
	}
	if req.Salary.IsNegative() {
		return domain.Employee{}, apperr.Validation("salary must not be negative")
	}

	employee := domain.Employee{
		ID:        uuid.NewString(),
		ShopID:    s.shopID(ctx),
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		Salary:    req.Salary,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateEmployee(ctx, employee)
	if err != nil {
		return domain.Employee{}, err
	}
	return *created, nil
}

func (s *Service) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	return s.repo.ListEmployees(ctx, s.shopID(ctx))
}
