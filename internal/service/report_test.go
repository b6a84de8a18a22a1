package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"shopkhata/backend/internal/domain"
	"shopkhata/backend/internal/store/memory"
)

func TestSalesReportNetsRefundsPerProduct(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Farm Eggs", 10, 5)

	bill, err := svc.BuildBill(ctx, domain.BillCreateRequest{
		Type:  domain.BillTypeWalkIn,
		Lines: []domain.BillLineRequest{{ProductID: product.ID, Qty: 10}},
	})
	if err != nil {
		t.Fatalf("build bill failed: %v", err)
	}
	if _, err := svc.RefundBill(ctx, domain.RefundCreateRequest{
		OriginalBillID: bill.ID,
		Lines:          []domain.BillLineRequest{{ProductID: product.ID, Qty: 3}},
	}); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	now := time.Now().UTC()
	report, err := svc.SalesReport(ctx, now, now)
	if err != nil {
		t.Fatalf("sales report failed: %v", err)
	}

	if len(report.Products) != 1 {
		t.Fatalf("expected 1 product line, got %d", len(report.Products))
	}
	line := report.Products[0]
	if line.Qty != 7 {
		t.Fatalf("expected net qty 7, got %d", line.Qty)
	}
	if !line.Amount.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected net amount 70, got %s", line.Amount)
	}
	if !line.Cost.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("expected net cost 35, got %s", line.Cost)
	}
	if !report.GrossProfit.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("expected gross profit 35, got %s", report.GrossProfit)
	}
}

func TestSalesReportAppliesBillDiscount(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Basmati Rice", 100, 70)

	if _, err := svc.BuildBill(ctx, domain.BillCreateRequest{
		Type:            domain.BillTypeWalkIn,
		Lines:           []domain.BillLineRequest{{ProductID: product.ID, Qty: 1}},
		DiscountPercent: decimal.NewFromInt(10),
	}); err != nil {
		t.Fatalf("build bill failed: %v", err)
	}

	now := time.Now().UTC()
	report, err := svc.SalesReport(ctx, now, now)
	if err != nil {
		t.Fatalf("sales report failed: %v", err)
	}

	if len(report.Products) != 1 {
		t.Fatalf("expected 1 product line, got %d", len(report.Products))
	}
	if !report.Products[0].Amount.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected discounted amount 90, got %s", report.Products[0].Amount)
	}
	if !report.TotalSellPrice.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected total sell 90, got %s", report.TotalSellPrice)
	}
}

func TestSalesReportSumsExpenseCategories(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	rawType, err := svc.CreateExpenseType(ctx, domain.ExpenseTypeCreateRequest{Title: "raw material", Category: domain.ExpenseCategoryRawMaterial})
	if err != nil {
		t.Fatalf("create expense type failed: %v", err)
	}
	shopType, err := svc.CreateExpenseType(ctx, domain.ExpenseTypeCreateRequest{Title: "shop maintenance", Category: domain.ExpenseCategoryShop})
	if err != nil {
		t.Fatalf("create expense type failed: %v", err)
	}
	salaryType, err := svc.CreateExpenseType(ctx, domain.ExpenseTypeCreateRequest{Title: "monthly salary", Category: domain.ExpenseCategorySalary})
	if err != nil {
		t.Fatalf("create expense type failed: %v", err)
	}
	employee, err := svc.CreateEmployee(ctx, domain.EmployeeCreateRequest{Name: "Fatima Begum", Salary: decimal.NewFromInt(60)})
	if err != nil {
		t.Fatalf("create employee failed: %v", err)
	}

	if _, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{TypeID: rawType.ID, Title: "flour", Amount: decimal.NewFromInt(100)}); err != nil {
		t.Fatalf("create expense failed: %v", err)
	}
	if _, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{TypeID: shopType.ID, Title: "electricity", Amount: decimal.NewFromInt(40)}); err != nil {
		t.Fatalf("create expense failed: %v", err)
	}
	if _, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{TypeID: salaryType.ID, EmployeeID: employee.ID}); err != nil {
		t.Fatalf("create expense failed: %v", err)
	}

	now := time.Now().UTC()
	report, err := svc.SalesReport(ctx, now, now)
	if err != nil {
		t.Fatalf("sales report failed: %v", err)
	}

	if !report.Expenses.RawMaterialExpenses.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected raw material expenses 100, got %s", report.Expenses.RawMaterialExpenses)
	}
	if !report.Expenses.ShopExpenses.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected shop expenses 40, got %s", report.Expenses.ShopExpenses)
	}
	if !report.Expenses.SalariesExpenses.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected salary expenses 60, got %s", report.Expenses.SalariesExpenses)
	}
	if !report.Expenses.TotalExpenses.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected total expenses 200, got %s", report.Expenses.TotalExpenses)
	}
	if !report.ProfitAfterExpense.Equal(decimal.NewFromInt(-200)) {
		t.Fatalf("expected profit after expense -200 with no sales, got %s", report.ProfitAfterExpense)
	}
}

func TestSalesReportEmptyPeriodIsZero(t *testing.T) {
	svc, _ := newTestService()

	now := time.Now().UTC()
	report, err := svc.SalesReport(context.Background(), now, now)
	if err != nil {
		t.Fatalf("sales report failed: %v", err)
	}

	if len(report.Products) != 0 {
		t.Fatalf("expected no product lines, got %d", len(report.Products))
	}
	if !report.Expenses.TotalExpenses.IsZero() || !report.TotalSellPrice.IsZero() || !report.GrossProfit.IsZero() {
		t.Fatalf("expected all-zero report, got %+v", report)
	}
}

func TestSalesReportIgnoresUnmatchedRefunds(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	// A refund whose product never appears in the period's sales contributes
	// nothing to the report.
	_, err := repo.CreateBill(ctx, domain.Bill{
		ID:     uuid.NewString(),
		ShopID: "main-shop",
		Type:   domain.BillTypeRefund,
		Lines: []domain.BillLine{{
			Product: domain.ProductSnapshot{ProductID: "ghost-product", Name: "Ghost", SalePrice: decimal.NewFromInt(10), CostPrice: decimal.NewFromInt(5)},
			Qty:     2,
			Amount:  decimal.NewFromInt(20),
		}},
		SubTotal:  decimal.NewFromInt(20),
		Total:     decimal.NewFromInt(20),
		CreatedAt: time.Now().UTC(),
	}, nil)
	if err != nil {
		t.Fatalf("seed refund bill failed: %v", err)
	}

	now := time.Now().UTC()
	report, err := svc.SalesReport(ctx, now, now)
	if err != nil {
		t.Fatalf("sales report failed: %v", err)
	}

	if len(report.Products) != 0 {
		t.Fatalf("expected unmatched refund to be ignored, got %d product lines", len(report.Products))
	}
	if !report.TotalSellPrice.IsZero() {
		t.Fatalf("expected zero total sell, got %s", report.TotalSellPrice)
	}
}

type stubReportCache struct {
	store map[string]*domain.SalesReport
	sets  int
	hits  int
}

func (c *stubReportCache) Get(_ context.Context, key string) (*domain.SalesReport, bool, error) {
	report, ok := c.store[key]
	if ok {
		c.hits++
	}
	return report, ok, nil
}

func (c *stubReportCache) Set(_ context.Context, key string, report *domain.SalesReport, _ time.Duration) error {
	c.store[key] = report
	c.sets++
	return nil
}

func TestSalesReportUsesCache(t *testing.T) {
	repo := memory.New()
	reportCache := &stubReportCache{store: make(map[string]*domain.SalesReport)}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := New(repo, reportCache, time.Minute, logger, "main-shop")

	now := time.Now().UTC()
	if _, err := svc.SalesReport(context.Background(), now, now); err != nil {
		t.Fatalf("sales report failed: %v", err)
	}
	if reportCache.sets != 1 {
		t.Fatalf("expected one cache write, got %d", reportCache.sets)
	}

	if _, err := svc.SalesReport(context.Background(), now, now); err != nil {
		t.Fatalf("cached sales report failed: %v", err)
	}
	if reportCache.hits != 1 {
		t.Fatalf("expected second call to hit the cache, got %d hits", reportCache.hits)
	}
	if reportCache.sets != 1 {
		t.Fatalf("expected no second cache write, got %d", reportCache.sets)
	}
}
