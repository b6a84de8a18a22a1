package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopkhata/backend/internal/domain"
	"shopkhata/backend/internal/store"
	"shopkhata/backend/internal/timeutil"
)

type reportLineAgg struct {
	name   string
	group  string
	qty    int64
	amount decimal.Decimal
	cost   decimal.Decimal
}

// SalesReport aggregates the period's expenses and nets sold lines against
// refunded lines per product. Sale-bill line amounts are gross, so the
// owning bill's discount is applied here; refund lines were already
// discount-adjusted when the refund was built. Refunds whose product never
// appears in the period's sales are ignored.
func (s *Service) SalesReport(ctx context.Context, from time.Time, to time.Time) (domain.SalesReport, error) {
	from, to = timeutil.DayRange(from, to, time.Now().UTC())
	shopID := s.shopID(ctx)

	key := fmt.Sprintf("report:%s:%d:%d", shopID, from.Unix(), to.Unix())
	if cached, ok, err := s.reports.Get(ctx, key); err != nil {
		s.log.WithError(err).Warn("report cache read failed")
	} else if ok {
		return *cached, nil
	}

	sums, err := s.repo.SumExpensesByCategory(ctx, shopID, from, to)
	if err != nil {
		return domain.SalesReport{}, err
	}
	expenses := domain.ExpenseSummary{
		RawMaterialExpenses: sums[domain.ExpenseCategoryRawMaterial],
		ShopExpenses:        sums[domain.ExpenseCategoryShop],
		SalariesExpenses:    sums[domain.ExpenseCategorySalary],
	}
	expenses.TotalExpenses = expenses.RawMaterialExpenses.Add(expenses.ShopExpenses).Add(expenses.SalariesExpenses)

	saleBills, err := s.repo.ListBills(ctx, store.BillFilter{
		ShopID: shopID,
		From:   from,
		To:     to,
		Types:  []domain.BillType{domain.BillTypeWalkIn, domain.BillTypeNormal, domain.BillTypeVIP},
	})
	if err != nil {
		return domain.SalesReport{}, err
	}
	refundBills, err := s.repo.ListBills(ctx, store.BillFilter{
		ShopID: shopID,
		From:   from,
		To:     to,
		Types:  []domain.BillType{domain.BillTypeRefund},
	})
	if err != nil {
		return domain.SalesReport{}, err
	}

	sold := make(map[string]*reportLineAgg)
	for _, bill := range saleBills {
		factor := hundred.Sub(bill.DiscountPercent).Div(hundred)
		for _, line := range bill.Lines {
			agg, ok := sold[line.Product.ProductID]
			if !ok {
				agg = &reportLineAgg{name: line.Product.Name, group: line.Product.GroupName}
				sold[line.Product.ProductID] = agg
			}
			agg.qty += line.Qty
			agg.amount = agg.amount.Add(line.Amount.Mul(factor).Round(2))
			agg.cost = agg.cost.Add(line.Product.CostPrice.Mul(decimal.NewFromInt(line.Qty)))
		}
	}

	refunded := make(map[string]*reportLineAgg)
	for _, bill := range refundBills {
		for _, line := range bill.Lines {
			agg, ok := refunded[line.Product.ProductID]
			if !ok {
				agg = &reportLineAgg{}
				refunded[line.Product.ProductID] = agg
			}
			agg.qty += line.Qty
			agg.amount = agg.amount.Add(line.Amount)
			agg.cost = agg.cost.Add(line.Product.CostPrice.Mul(decimal.NewFromInt(line.Qty)))
		}
	}

	products := make([]domain.ReportProductLine, 0, len(sold))
	totalSell := decimal.Zero
	totalCost := decimal.Zero
	for productID, agg := range sold {
		if back, ok := refunded[productID]; ok {
			agg.qty -= back.qty
			agg.amount = agg.amount.Sub(back.amount)
			agg.cost = agg.cost.Sub(back.cost)
		}
		products = append(products, domain.ReportProductLine{
			ProductID: productID,
			Name:      agg.name,
			GroupName: agg.group,
			Qty:       agg.qty,
			Amount:    agg.amount,
			Cost:      agg.cost,
		})
		totalSell = totalSell.Add(agg.amount)
		totalCost = totalCost.Add(agg.cost)
	}
	slices.SortFunc(products, func(a, b domain.ReportProductLine) int {
		return strings.Compare(a.Name, b.Name)
	})

	report := domain.SalesReport{
		From:               from,
		To:                 to,
		Expenses:           expenses,
		Products:           products,
		TotalSellPrice:     totalSell,
		TotalCostPrice:     totalCost,
		ProfitAfterExpense: totalSell.Sub(expenses.TotalExpenses),
		GrossProfit:        totalSell.Sub(totalCost),
	}

	if err := s.reports.Set(ctx, key, &report, s.reportTTL); err != nil {
		s.log.WithError(err).Warn("report cache write failed")
	}
	return report, nil
}
