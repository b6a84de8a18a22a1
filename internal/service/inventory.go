package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopkhata/backend/internal/apperr"
	"shopkhata/backend/internal/domain"
)

// IntakeInventory registers a purchased lot. Supplier, product, and units are
// validated and then denormalized into the lot so later catalog edits never
// rewrite history.
func (s *Service) IntakeInventory(ctx context.Context, req domain.InventoryIntakeRequest) (domain.InventoryLot, error) {
	if err := s.check(req); err != nil {
		return domain.InventoryLot{}, err
	}
	if req.SourcePrice.IsNegative() || req.Paid.IsNegative() {
		return domain.InventoryLot{}, apperr.Validation("amounts must not be negative")
	}
	if req.Paid.GreaterThan(req.SourcePrice) {
		return domain.InventoryLot{}, apperr.Validation("paid exceeds the source price")
	}

	supplier, err := s.repo.GetSupplierByID(ctx, req.SupplierID)
	if err != nil {
		return domain.InventoryLot{}, err
	}
	product, err := s.repo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return domain.InventoryLot{}, err
	}

	unitIDs := dedupe(req.UnitIDs)
	units, err := s.repo.GetUnitsByIDs(ctx, unitIDs)
	if err != nil {
		return domain.InventoryLot{}, err
	}

	snapshots := make([]domain.UnitSnapshot, 0, len(unitIDs))
	for _, unitID := range unitIDs {
		unit, ok := units[unitID]
		if !ok {
			return domain.InventoryLot{}, apperr.NotFoundf("unit not found: %s", unitID)
		}
		if unit.TypeID != product.UnitTypeID {
			return domain.InventoryLot{}, apperr.Validation("units are not suitable for the product")
		}
		snapshots = append(snapshots, domain.UnitSnapshot{UnitID: unit.ID, Name: unit.Name, Value: unit.Value})
	}

	lot := domain.InventoryLot{
		ID:           uuid.NewString(),
		ShopID:       s.shopID(ctx),
		SupplierID:   supplier.ID,
		SupplierName: supplier.Name,
		Product: domain.ProductSnapshot{
			ProductID: product.ID,
			Name:      product.Name,
			GroupName: product.GroupName,
			SalePrice: product.SalePrice,
			CostPrice: product.CostPrice,
		},
		Units:       snapshots,
		Quantity:    req.Quantity,
		SourcePrice: req.SourcePrice,
		Paid:        req.Paid,
		IsRemaining: !req.Paid.Equal(req.SourcePrice),
		Comments:    strings.TrimSpace(req.Comments),
		CreatedAt:   time.Now().UTC(),
	}

	created, err := s.repo.CreateInventoryLot(ctx, lot)
	if err != nil {
		return domain.InventoryLot{}, err
	}

	s.logAudit(ctx, "inventory_intake", "inventory_lot", created.ID, fmt.Sprintf("product=%s,qty=%d,remaining=%t", created.Product.Name, created.Quantity, created.IsRemaining))
	return *created, nil
}

// ConvertUnits breaks a lot's smallest-unit quantity into each of its units
// independently: whole units plus the leftover remainder. Units larger than
// the whole quantity are skipped.
func ConvertUnits(lot domain.InventoryLot) map[string][2]int64 {
	breakdown := make(map[string][2]int64, len(lot.Units))
	for _, unit := range lot.Units {
		if unit.Value <= 0 || unit.Value > lot.Quantity {
			continue
		}
		breakdown[strings.ToLower(unit.Name)] = [2]int64{lot.Quantity / unit.Value, lot.Quantity % unit.Value}
	}
	return breakdown
}

func (s *Service) LotUnitBreakdown(ctx context.Context, lotID string) (map[string][2]int64, error) {
	lot, err := s.repo.GetInventoryLotByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	return ConvertUnits(*lot), nil
}

func (s *Service) GetInventoryLot(ctx context.Context, id string) (domain.InventoryLot, error) {
	lot, err := s.repo.GetInventoryLotByID(ctx, id)
	if err != nil {
		return domain.InventoryLot{}, err
	}
	return *lot, nil
}

func (s *Service) ListInventoryLots(ctx context.Context, onlyRemaining bool) ([]domain.InventoryLot, error) {
	return s.repo.ListInventoryLots(ctx, s.shopID(ctx), onlyRemaining)
}

// PayInventory applies a khaata payment toward a lot's source price. The
// store enforces the ceiling and the already-cleared case under a row lock.
func (s *Service) PayInventory(ctx context.Context, lotID string, amount decimal.Decimal) (domain.InventoryLot, error) {
	if lotID == "" {
		return domain.InventoryLot{}, apperr.Validation("lot id is required")
	}
	if !amount.IsPositive() {
		return domain.InventoryLot{}, apperr.Validation("amount must be positive")
	}

	paid, err := s.repo.PayInventoryLot(ctx, lotID, amount)
	if err != nil {
		return domain.InventoryLot{}, err
	}

	s.logAudit(ctx, "inventory_pay", "inventory_lot", paid.ID, fmt.Sprintf("amount=%s,remaining=%t", amount, paid.IsRemaining))
	return *paid, nil
}

// RecordSale sells part of a lot to a customer: the lot quantity drops (the
// lot is deleted when it hits zero) and the sale is booked in the same
// transaction. Selling below the lot's source price is rejected.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	if err := s.check(req); err != nil {
		return domain.Sale{}, err
	}
	if req.RetailPrice.IsNegative() || req.Paid.IsNegative() {
		return domain.Sale{}, apperr.Validation("amounts must not be negative")
	}

	customer, err := s.repo.GetNormalCustomerByID(ctx, req.CustomerID)
	if err != nil {
		return domain.Sale{}, err
	}
	lot, err := s.repo.GetInventoryLotByID(ctx, req.LotID)
	if err != nil {
		return domain.Sale{}, err
	}

	if req.Quantity > lot.Quantity {
		return domain.Sale{}, apperr.Validation("not enough quantity in the lot")
	}
	if req.RetailPrice.LessThan(lot.SourcePrice) {
		return domain.Sale{}, apperr.Validation("cannot sell in loss")
	}
	if req.Paid.GreaterThan(req.RetailPrice) {
		return domain.Sale{}, apperr.Validation("paid exceeds the retail price")
	}

	sale := domain.Sale{
		ID:           uuid.NewString(),
		ShopID:       s.shopID(ctx),
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		Lot: domain.LotSnapshot{
			LotID:       lot.ID,
			ProductName: lot.Product.Name,
			SourcePrice: lot.SourcePrice,
		},
		Quantity:    req.Quantity,
		RetailPrice: req.RetailPrice,
		Paid:        req.Paid,
		IsRemaining: req.Paid.LessThan(req.RetailPrice),
		Comments:    strings.TrimSpace(req.Comments),
		CreatedAt:   time.Now().UTC(),
	}

	created, err := s.repo.ConsumeInventoryLot(ctx, lot.ID, req.Quantity, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_record", "sale", created.ID, fmt.Sprintf("lot=%s,qty=%d,retail=%s", lot.ID, created.Quantity, created.RetailPrice))
	return *created, nil
}

// PaySale applies a customer payment toward a sale's retail price, with the
// same rules as lot pay-downs.
func (s *Service) PaySale(ctx context.Context, saleID string, amount decimal.Decimal) (domain.Sale, error) {
	if saleID == "" {
		return domain.Sale{}, apperr.Validation("sale id is required")
	}
	if !amount.IsPositive() {
		return domain.Sale{}, apperr.Validation("amount must be positive")
	}

	paid, err := s.repo.PaySale(ctx, saleID, amount)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_pay", "sale", paid.ID, fmt.Sprintf("amount=%s,remaining=%t", amount, paid.IsRemaining))
	return *paid, nil
}

func (s *Service) ListSales(ctx context.Context, onlyRemaining bool) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, s.shopID(ctx), onlyRemaining)
}

// Khaata lists the shop's open ledger: lots not yet fully paid to suppliers
// and sales not yet fully paid by customers.
func (s *Service) Khaata(ctx context.Context) (domain.KhaataResponse, error) {
	lots, err := s.repo.ListInventoryLots(ctx, s.shopID(ctx), true)
	if err != nil {
		return domain.KhaataResponse{}, err
	}
	sales, err := s.repo.ListSales(ctx, s.shopID(ctx), true)
	if err != nil {
		return domain.KhaataResponse{}, err
	}
	return domain.KhaataResponse{Payables: lots, Receivables: sales}, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
