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
	"shopkhata/backend/internal/store"
)

// BuildBill prices the requested lines against the current catalog, applies
// the bill-level discount, and for VIP bills consumes prepaid balance. The
// store persists the bill, its sequential number, and the balance debit in
// one transaction.
func (s *Service) BuildBill(ctx context.Context, req domain.BillCreateRequest) (domain.Bill, error) {
	if err := s.check(req); err != nil {
		return domain.Bill{}, err
	}
	if !validPercent(req.DiscountPercent) {
		return domain.Bill{}, apperr.Validation("discount percent must be between 0 and 100")
	}
	if req.Type == domain.BillTypeVIP && !validPercent(req.VipBalancePercent) {
		return domain.Bill{}, apperr.Validation("vip balance percent must be between 0 and 100")
	}
	if (req.Type == domain.BillTypeNormal || req.Type == domain.BillTypeVIP) && req.CustomerID == "" {
		return domain.Bill{}, apperr.Validation("customer_id is required for NORMAL and VIP bills")
	}

	var customer domain.CustomerSnapshot
	var vip *domain.VipCustomer
	switch req.Type {
	case domain.BillTypeWalkIn:
		// Walk-in bills carry a placeholder customer instead of a reference.
		customer = domain.CustomerSnapshot{Name: string(domain.BillTypeWalkIn)}
	case domain.BillTypeNormal:
		found, err := s.repo.GetNormalCustomerByID(ctx, req.CustomerID)
		if err != nil {
			return domain.Bill{}, err
		}
		customer = domain.CustomerSnapshot{CustomerID: found.ID, Name: found.Name, Phone: found.Phone}
	case domain.BillTypeVIP:
		found, err := s.repo.GetVipCustomerByID(ctx, req.CustomerID)
		if err != nil {
			return domain.Bill{}, err
		}
		vip = found
		balance := found.Balance
		customer = domain.CustomerSnapshot{CustomerID: found.ID, Name: found.Name, Phone: found.Phone, Balance: &balance}
	}

	lines, subTotal, err := s.priceLines(ctx, req.Lines)
	if err != nil {
		return domain.Bill{}, err
	}

	// Rounding can push the discount past a sub-cent subtotal at 100%.
	discountAmount := decimal.Min(subTotal.Mul(req.DiscountPercent).Div(hundred).Round(2), subTotal)
	total := subTotal.Sub(discountAmount)
	if total.IsNegative() {
		return domain.Bill{}, apperr.Invariant("bill total cannot be negative")
	}

	bill := domain.Bill{
		ID:              uuid.NewString(),
		ShopID:          s.shopID(ctx),
		Type:            req.Type,
		Customer:        customer,
		Lines:           lines,
		SubTotal:        subTotal,
		DiscountPercent: req.DiscountPercent,
		DiscountAmount:  discountAmount,
		Total:           total,
		RemainingPay:    total,
		CreatedAt:       time.Now().UTC(),
	}

	var debit *store.VipDebit
	if vip != nil {
		needed := total.Mul(req.VipBalancePercent).Div(hundred).Round(2)
		consumed := decimal.Min(needed, vip.Balance)
		bill.VipConsumed = consumed
		bill.RemainingPay = total.Sub(consumed)
		if consumed.IsPositive() {
			debit = &store.VipDebit{CustomerID: vip.ID, Amount: consumed}
		}
	}

	created, err := s.repo.CreateBill(ctx, bill, debit)
	if err != nil {
		return domain.Bill{}, err
	}

	s.logAudit(ctx, "bill_create", "bill", created.ID, fmt.Sprintf("no=%s,type=%s,total=%s", created.BillNo, created.Type, created.Total))
	return *created, nil
}

// RefundBill reconciles a refund request against the original bill and books
// it as a REFUND-type bill linked to the original. Refund amounts inherit the
// original bill's discount so a discounted sale never refunds at full price.
func (s *Service) RefundBill(ctx context.Context, req domain.RefundCreateRequest) (domain.Bill, error) {
	if err := s.check(req); err != nil {
		return domain.Bill{}, err
	}

	original, err := s.repo.GetBillByID(ctx, req.OriginalBillID)
	if err != nil {
		return domain.Bill{}, err
	}
	if original.Type == domain.BillTypeRefund {
		return domain.Bill{}, apperr.Validation("cannot refund a refund bill")
	}

	seen := make(map[string]bool, len(req.Lines))
	for _, line := range req.Lines {
		if seen[line.ProductID] {
			return domain.Bill{}, apperr.Validation("duplicate products in refund request")
		}
		seen[line.ProductID] = true
	}

	soldQty := make(map[string]int64, len(original.Lines))
	soldLine := make(map[string]domain.BillLine, len(original.Lines))
	for _, line := range original.Lines {
		soldQty[line.Product.ProductID] += line.Qty
		soldLine[line.Product.ProductID] = line
	}

	factor := hundred.Sub(original.DiscountPercent).Div(hundred)
	lines := make([]domain.BillLine, 0, len(req.Lines))
	subTotal := decimal.Zero
	total := decimal.Zero
	for _, line := range req.Lines {
		sold, ok := soldLine[line.ProductID]
		if !ok {
			return domain.Bill{}, apperr.NotFound("product was not sold in the original bill")
		}
		if line.Qty > soldQty[line.ProductID] {
			return domain.Bill{}, apperr.Validation("refund quantity exceeds the billed quantity")
		}

		absolute := sold.Product.SalePrice.Mul(decimal.NewFromInt(line.Qty))
		discounted := absolute.Mul(factor).Round(2)
		lines = append(lines, domain.BillLine{
			Product: sold.Product,
			Qty:     line.Qty,
			Amount:  discounted,
		})
		subTotal = subTotal.Add(absolute)
		total = total.Add(discounted)
	}

	refund := domain.Bill{
		ID:              uuid.NewString(),
		ShopID:          s.shopID(ctx),
		Type:            domain.BillTypeRefund,
		Customer:        original.Customer,
		Lines:           lines,
		SubTotal:        subTotal,
		DiscountPercent: original.DiscountPercent,
		DiscountAmount:  subTotal.Sub(total),
		Total:           total,
		OriginalBillID:  original.ID,
		CreatedAt:       time.Now().UTC(),
	}

	created, err := s.repo.CreateBill(ctx, refund, nil)
	if err != nil {
		return domain.Bill{}, err
	}

	s.logAudit(ctx, "bill_refund", "bill", created.ID, fmt.Sprintf("no=%s,original=%s,total=%s", created.BillNo, original.BillNo, created.Total))
	return *created, nil
}

func (s *Service) GetBill(ctx context.Context, id string) (domain.Bill, error) {
	bill, err := s.repo.GetBillByID(ctx, id)
	if err != nil {
		return domain.Bill{}, err
	}
	return *bill, nil
}

// GetBillByNo looks a bill up by the printed number customers hold, scoped to
// the acting shop.
func (s *Service) GetBillByNo(ctx context.Context, billNo string) (domain.Bill, error) {
	billNo = strings.ToUpper(strings.TrimSpace(billNo))
	if billNo == "" {
		return domain.Bill{}, apperr.Validation("bill number is required")
	}

	bill, err := s.repo.GetBillByNo(ctx, s.shopID(ctx), billNo)
	if err != nil {
		return domain.Bill{}, err
	}
	return *bill, nil
}

func (s *Service) ListBills(ctx context.Context, from time.Time, to time.Time, types []domain.BillType) ([]domain.Bill, error) {
	return s.repo.ListBills(ctx, store.BillFilter{
		ShopID: s.shopID(ctx),
		From:   from,
		To:     to,
		Types:  types,
	})
}

// priceLines merges duplicate products, snapshots each product, and prices
// every line at qty times the current sale price.
func (s *Service) priceLines(ctx context.Context, reqLines []domain.BillLineRequest) ([]domain.BillLine, decimal.Decimal, error) {
	merged := make(map[string]int64, len(reqLines))
	order := make([]string, 0, len(reqLines))
	for _, line := range reqLines {
		if _, ok := merged[line.ProductID]; !ok {
			order = append(order, line.ProductID)
		}
		merged[line.ProductID] += line.Qty
	}

	products, err := s.repo.GetProductsByIDs(ctx, order)
	if err != nil {
		return nil, decimal.Zero, err
	}

	lines := make([]domain.BillLine, 0, len(order))
	subTotal := decimal.Zero
	for _, productID := range order {
		product, ok := products[productID]
		if !ok {
			return nil, decimal.Zero, apperr.NotFoundf("product not found: %s", productID)
		}

		qty := merged[productID]
		amount := product.SalePrice.Mul(decimal.NewFromInt(qty))
		lines = append(lines, domain.BillLine{
			Product: domain.ProductSnapshot{
				ProductID: product.ID,
				Name:      product.Name,
				GroupName: product.GroupName,
				SalePrice: product.SalePrice,
				CostPrice: product.CostPrice,
			},
			Qty:    qty,
			Amount: amount,
		})
		subTotal = subTotal.Add(amount)
	}

	return lines, subTotal, nil
}
