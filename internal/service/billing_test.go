package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"shopkhata/backend/internal/apperr"
	"shopkhata/backend/internal/cache"
	"shopkhata/backend/internal/domain"
	"shopkhata/backend/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.New()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(repo, cache.NoopReportCache{}, time.Minute, logger, "main-shop"), repo
}

func seedUnitType(t *testing.T, svc *Service) domain.UnitType {
	t.Helper()
	unitType, err := svc.CreateUnitType(context.Background(), domain.UnitTypeCreateRequest{Title: "count"})
	if err != nil {
		t.Fatalf("create unit type failed: %v", err)
	}
	return unitType
}

func seedProduct(t *testing.T, svc *Service, typeID string, name string, salePrice int64, costPrice int64) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(context.Background(), domain.ProductCreateRequest{
		Name:       name,
		GroupName:  "grocery",
		UnitTypeID: typeID,
		SalePrice:  decimal.NewFromInt(salePrice),
		CostPrice:  decimal.NewFromInt(costPrice),
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func TestBuildBillWalkInTotals(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Farm Eggs", 30, 22)

	bill, err := svc.BuildBill(ctx, domain.BillCreateRequest{
		Type:            domain.BillTypeWalkIn,
		Lines:           []domain.BillLineRequest{{ProductID: product.ID, Qty: 2}},
		DiscountPercent: decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("build bill failed: %v", err)
	}

	if bill.BillNo != "B-000001" {
		t.Fatalf("expected bill no B-000001, got %s", bill.BillNo)
	}
	if !bill.SubTotal.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected sub total 60, got %s", bill.SubTotal)
	}
	if !bill.DiscountAmount.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected discount amount 6, got %s", bill.DiscountAmount)
	}
	if !bill.Total.Equal(decimal.NewFromInt(54)) {
		t.Fatalf("expected total 54, got %s", bill.Total)
	}
	if !bill.RemainingPay.Equal(bill.Total) {
		t.Fatalf("expected remaining pay to equal total, got %s", bill.RemainingPay)
	}
	if bill.Customer.Name != "WALKIN" || bill.Customer.CustomerID != "" {
		t.Fatalf("expected placeholder walk-in customer, got %+v", bill.Customer)
	}
}

func TestBuildBillMergesDuplicateLines(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Washing Soap", 85, 61)

	bill, err := svc.BuildBill(ctx, domain.BillCreateRequest{
		Type: domain.BillTypeWalkIn,
		Lines: []domain.BillLineRequest{
			{ProductID: product.ID, Qty: 1},
			{ProductID: product.ID, Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("build bill failed: %v", err)
	}

	if len(bill.Lines) != 1 {
		t.Fatalf("expected duplicate lines to merge into 1, got %d", len(bill.Lines))
	}
	if bill.Lines[0].Qty != 3 {
		t.Fatalf("expected merged qty 3, got %d", bill.Lines[0].Qty)
	}
	if !bill.SubTotal.Equal(decimal.NewFromInt(255)) {
		t.Fatalf("expected sub total 255, got %s", bill.SubTotal)
	}
}

func TestBuildBillNormalRequiresCustomer(t *testing.T) {
	svc, _ := newTestService()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Farm Eggs", 30, 22)

	_, err := svc.BuildBill(context.Background(), domain.BillCreateRequest{
		Type:  domain.BillTypeNormal,
		Lines: []domain.BillLineRequest{{ProductID: product.ID, Qty: 1}},
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for missing customer, got %v", err)
	}
}

func TestBuildBillUnknownProduct(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.BuildBill(context.Background(), domain.BillCreateRequest{
		Type:  domain.BillTypeWalkIn,
		Lines: []domain.BillLineRequest{{ProductID: "no-such-product", Qty: 1}},
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestBuildBillRejectsBadDiscount(t *testing.T) {
	svc, _ := newTestService()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Farm Eggs", 30, 22)

	_, err := svc.BuildBill(context.Background(), domain.BillCreateRequest{
		Type:            domain.BillTypeWalkIn,
		Lines:           []domain.BillLineRequest{{ProductID: product.ID, Qty: 1}},
		DiscountPercent: decimal.NewFromInt(150),
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for discount over 100, got %v", err)
	}
}

func TestBuildBillVipConsumptionCapsAtBalance(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Basmati Rice", 100, 70)

	vip, err := svc.CreateVipCustomer(ctx, domain.VipCustomerCreateRequest{
		Name:    "Rahim Traders",
		Balance: decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("create vip customer failed: %v", err)
	}

	bill, err := svc.BuildBill(ctx, domain.BillCreateRequest{
		Type:              domain.BillTypeVIP,
		CustomerID:        vip.ID,
		Lines:             []domain.BillLineRequest{{ProductID: product.ID, Qty: 2}},
		VipBalancePercent: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("build vip bill failed: %v", err)
	}

	// total 200, 50% would be 100, but only 40 of balance exists.
	if !bill.VipConsumed.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected vip consumed 40, got %s", bill.VipConsumed)
	}
	if !bill.RemainingPay.Equal(decimal.NewFromInt(160)) {
		t.Fatalf("expected remaining pay 160, got %s", bill.RemainingPay)
	}
	if bill.Customer.Balance == nil || !bill.Customer.Balance.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected snapshot of pre-bill balance 40, got %v", bill.Customer.Balance)
	}

	after, err := svc.GetVipCustomer(ctx, vip.ID)
	if err != nil {
		t.Fatalf("get vip customer failed: %v", err)
	}
	if !after.Balance.IsZero() {
		t.Fatalf("expected vip balance drained to 0, got %s", after.Balance)
	}
}

func TestBuildBillVipPartialPercent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Basmati Rice", 100, 70)

	vip, err := svc.CreateVipCustomer(ctx, domain.VipCustomerCreateRequest{
		Name:    "Karim Stores",
		Balance: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("create vip customer failed: %v", err)
	}

	bill, err := svc.BuildBill(ctx, domain.BillCreateRequest{
		Type:              domain.BillTypeVIP,
		CustomerID:        vip.ID,
		Lines:             []domain.BillLineRequest{{ProductID: product.ID, Qty: 2}},
		VipBalancePercent: decimal.NewFromInt(25),
	})
	if err != nil {
		t.Fatalf("build vip bill failed: %v", err)
	}

	if !bill.VipConsumed.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected vip consumed 50, got %s", bill.VipConsumed)
	}
	if !bill.RemainingPay.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected remaining pay 150, got %s", bill.RemainingPay)
	}

	after, err := svc.GetVipCustomer(ctx, vip.ID)
	if err != nil {
		t.Fatalf("get vip customer failed: %v", err)
	}
	if !after.Balance.Equal(decimal.NewFromInt(950)) {
		t.Fatalf("expected vip balance 950, got %s", after.Balance)
	}
}

func TestBillNumbersAreSequential(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Farm Eggs", 30, 22)

	for i, want := range []string{"B-000001", "B-000002", "B-000003"} {
		bill, err := svc.BuildBill(ctx, domain.BillCreateRequest{
			Type:  domain.BillTypeWalkIn,
			Lines: []domain.BillLineRequest{{ProductID: product.ID, Qty: 1}},
		})
		if err != nil {
			t.Fatalf("build bill %d failed: %v", i, err)
		}
		if bill.BillNo != want {
			t.Fatalf("expected bill no %s, got %s", want, bill.BillNo)
		}
	}
}

func TestBuildBillFullDiscountOnSubCentSubtotal(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)

	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:       "Basmati Rice",
		GroupName:  "grocery",
		UnitTypeID: unitType.ID,
		SalePrice:  decimal.NewFromFloat(0.355),
		CostPrice:  decimal.NewFromFloat(0.28),
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	bill, err := svc.BuildBill(ctx, domain.BillCreateRequest{
		Type:            domain.BillTypeWalkIn,
		Lines:           []domain.BillLineRequest{{ProductID: product.ID, Qty: 1}},
		DiscountPercent: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("full-discount bill failed: %v", err)
	}

	if !bill.Total.IsZero() {
		t.Fatalf("expected total 0 at 100%% discount, got %s", bill.Total)
	}
	if !bill.DiscountAmount.Equal(bill.SubTotal) {
		t.Fatalf("expected discount to clamp to sub total %s, got %s", bill.SubTotal, bill.DiscountAmount)
	}
}

func TestGetBillByNo(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Farm Eggs", 30, 22)

	created, err := svc.BuildBill(ctx, domain.BillCreateRequest{
		Type:  domain.BillTypeWalkIn,
		Lines: []domain.BillLineRequest{{ProductID: product.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("build bill failed: %v", err)
	}

	found, err := svc.GetBillByNo(ctx, "b-000001")
	if err != nil {
		t.Fatalf("get bill by number failed: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected bill %s, got %s", created.ID, found.ID)
	}

	if _, err := svc.GetBillByNo(ctx, "B-999999"); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found for unknown bill number, got %v", err)
	}

	otherShop := WithShop(ctx, "other-shop")
	if _, err := svc.GetBillByNo(otherShop, created.BillNo); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found from another shop, got %v", err)
	}
}

func TestRefundInheritsOriginalDiscount(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Basmati Rice", 100, 70)

	original, err := svc.BuildBill(ctx, domain.BillCreateRequest{
		Type:            domain.BillTypeWalkIn,
		Lines:           []domain.BillLineRequest{{ProductID: product.ID, Qty: 2}},
		DiscountPercent: decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("build bill failed: %v", err)
	}

	refund, err := svc.RefundBill(ctx, domain.RefundCreateRequest{
		OriginalBillID: original.ID,
		Lines:          []domain.BillLineRequest{{ProductID: product.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	if refund.Type != domain.BillTypeRefund {
		t.Fatalf("expected REFUND type, got %s", refund.Type)
	}
	if refund.OriginalBillID != original.ID {
		t.Fatalf("expected refund to link to the original bill")
	}
	// one unit at 100 with the original 10% discount applied.
	if !refund.Total.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected refund total 90, got %s", refund.Total)
	}
	if !refund.SubTotal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected refund sub total 100, got %s", refund.SubTotal)
	}
	if !refund.DiscountAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected refund discount amount 10, got %s", refund.DiscountAmount)
	}
	if refund.Customer.Name != original.Customer.Name {
		t.Fatalf("expected refund to carry the original customer snapshot")
	}
}

func TestRefundRejectsDuplicateProducts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Farm Eggs", 30, 22)

	original, err := svc.BuildBill(ctx, domain.BillCreateRequest{
		Type:  domain.BillTypeWalkIn,
		Lines: []domain.BillLineRequest{{ProductID: product.ID, Qty: 4}},
	})
	if err != nil {
		t.Fatalf("build bill failed: %v", err)
	}

	_, err = svc.RefundBill(ctx, domain.RefundCreateRequest{
		OriginalBillID: original.ID,
		Lines: []domain.BillLineRequest{
			{ProductID: product.ID, Qty: 1},
			{ProductID: product.ID, Qty: 1},
		},
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for duplicate refund products, got %v", err)
	}
}

func TestRefundRejectsUnsoldProduct(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)
	sold := seedProduct(t, svc, unitType.ID, "Farm Eggs", 30, 22)
	other := seedProduct(t, svc, unitType.ID, "Washing Soap", 85, 61)

	original, err := svc.BuildBill(ctx, domain.BillCreateRequest{
		Type:  domain.BillTypeWalkIn,
		Lines: []domain.BillLineRequest{{ProductID: sold.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("build bill failed: %v", err)
	}

	_, err = svc.RefundBill(ctx, domain.RefundCreateRequest{
		OriginalBillID: original.ID,
		Lines:          []domain.BillLineRequest{{ProductID: other.ID, Qty: 1}},
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found error for unsold product, got %v", err)
	}
}

func TestRefundRejectsExcessQuantity(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Farm Eggs", 30, 22)

	original, err := svc.BuildBill(ctx, domain.BillCreateRequest{
		Type:  domain.BillTypeWalkIn,
		Lines: []domain.BillLineRequest{{ProductID: product.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("build bill failed: %v", err)
	}

	_, err = svc.RefundBill(ctx, domain.RefundCreateRequest{
		OriginalBillID: original.ID,
		Lines:          []domain.BillLineRequest{{ProductID: product.ID, Qty: 3}},
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for excess refund qty, got %v", err)
	}
}

func TestRefundOfRefundRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unitType := seedUnitType(t, svc)
	product := seedProduct(t, svc, unitType.ID, "Farm Eggs", 30, 22)

	original, err := svc.BuildBill(ctx, domain.BillCreateRequest{
		Type:  domain.BillTypeWalkIn,
		Lines: []domain.BillLineRequest{{ProductID: product.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("build bill failed: %v", err)
	}

	refund, err := svc.RefundBill(ctx, domain.RefundCreateRequest{
		OriginalBillID: original.ID,
		Lines:          []domain.BillLineRequest{{ProductID: product.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	_, err = svc.RefundBill(ctx, domain.RefundCreateRequest{
		OriginalBillID: refund.ID,
		Lines:          []domain.BillLineRequest{{ProductID: product.ID, Qty: 1}},
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error when refunding a refund, got %v", err)
	}
}
