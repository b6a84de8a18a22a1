// Package memory is the in-memory Repository used for dev mode and tests.
// It mirrors the transactional guarantees of the postgres store by doing all
// multi-step writes under one lock.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopkhata/backend/internal/apperr"
	"shopkhata/backend/internal/domain"
	"shopkhata/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	suppliers       map[string]domain.Supplier
	unitTypes       map[string]domain.UnitType
	units           map[string]domain.Unit
	normalCustomers map[string]domain.NormalCustomer
	vipCustomers    map[string]domain.VipCustomer
	employees       map[string]domain.Employee
	bills           map[string]domain.Bill
	billSeqByShop   map[string]int64
	lots            map[string]domain.InventoryLot
	sales           map[string]domain.Sale
	expenseTypes    map[string]domain.ExpenseType
	expenses        map[string]domain.Expense
	auditLogs       []domain.AuditLog
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		suppliers:       make(map[string]domain.Supplier),
		unitTypes:       make(map[string]domain.UnitType),
		units:           make(map[string]domain.Unit),
		normalCustomers: make(map[string]domain.NormalCustomer),
		vipCustomers:    make(map[string]domain.VipCustomer),
		employees:       make(map[string]domain.Employee),
		bills:           make(map[string]domain.Bill),
		billSeqByShop:   make(map[string]int64),
		lots:            make(map[string]domain.InventoryLot),
		sales:           make(map[string]domain.Sale),
		expenseTypes:    make(map[string]domain.ExpenseType),
		expenses:        make(map[string]domain.Expense),
		auditLogs:       make([]domain.AuditLog, 0, 128),
	}
}

// NewSeeded returns a store pre-loaded with a small catalog for dev/demo mode.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	countType := domain.UnitType{ID: uuid.NewString(), Title: "count", CreatedAt: now}
	weightType := domain.UnitType{ID: uuid.NewString(), Title: "weight", CreatedAt: now}
	s.unitTypes[countType.ID] = countType
	s.unitTypes[weightType.ID] = weightType

	for _, u := range []domain.Unit{
		{ID: uuid.NewString(), TypeID: countType.ID, Name: "piece", Value: 1, CreatedAt: now},
		{ID: uuid.NewString(), TypeID: countType.ID, Name: "half-dozen", Value: 6, CreatedAt: now},
		{ID: uuid.NewString(), TypeID: countType.ID, Name: "dozen", Value: 12, CreatedAt: now},
		{ID: uuid.NewString(), TypeID: weightType.ID, Name: "gram", Value: 1, CreatedAt: now},
		{ID: uuid.NewString(), TypeID: weightType.ID, Name: "kilogram", Value: 1000, CreatedAt: now},
	} {
		s.units[u.ID] = u
	}

	for _, p := range []domain.Product{
		{ID: uuid.NewString(), Name: "Farm Eggs", GroupName: "dairy", UnitTypeID: countType.ID, SalePrice: decimal.NewFromInt(30), CostPrice: decimal.NewFromInt(22), CreatedAt: now},
		{ID: uuid.NewString(), Name: "Basmati Rice", GroupName: "grocery", UnitTypeID: weightType.ID, SalePrice: decimal.NewFromFloat(0.35), CostPrice: decimal.NewFromFloat(0.28), CreatedAt: now},
		{ID: uuid.NewString(), Name: "Washing Soap", GroupName: "household", UnitTypeID: countType.ID, SalePrice: decimal.NewFromInt(85), CostPrice: decimal.NewFromInt(61), CreatedAt: now},
	} {
		s.products[p.ID] = p
	}

	for _, et := range []domain.ExpenseType{
		{ID: uuid.NewString(), Title: "raw material", Category: domain.ExpenseCategoryRawMaterial, CreatedAt: now},
		{ID: uuid.NewString(), Title: "shop maintenance", Category: domain.ExpenseCategoryShop, CreatedAt: now},
		{ID: uuid.NewString(), Title: "salary", Category: domain.ExpenseCategorySalary, CreatedAt: now},
	} {
		s.expenseTypes[et.ID] = et
	}

	return s
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, apperr.NotFound("product not found")
	}
	copied := product
	return &copied, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.GroupName == b.GroupName {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.GroupName, b.GroupName)
	})
	return products, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.suppliers[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) GetSupplierByID(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, ok := s.suppliers[id]
	if !ok {
		return nil, apperr.NotFound("supplier not found")
	}
	copied := supplier
	return &copied, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return strings.Compare(a.Name, b.Name)
	})
	return suppliers, nil
}

func (s *Store) CreateUnitType(_ context.Context, unitType domain.UnitType) (*domain.UnitType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unitTypes[unitType.ID] = unitType
	created := unitType
	return &created, nil
}

func (s *Store) GetUnitTypeByID(_ context.Context, id string) (*domain.UnitType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unitType, ok := s.unitTypes[id]
	if !ok {
		return nil, apperr.NotFound("unit type not found")
	}
	copied := unitType
	return &copied, nil
}

func (s *Store) ListUnitTypes(_ context.Context) ([]domain.UnitType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unitTypes := make([]domain.UnitType, 0, len(s.unitTypes))
	for _, ut := range s.unitTypes {
		unitTypes = append(unitTypes, ut)
	}
	slices.SortFunc(unitTypes, func(a, b domain.UnitType) int {
		return strings.Compare(a.Title, b.Title)
	})
	return unitTypes, nil
}

func (s *Store) CreateUnit(_ context.Context, unit domain.Unit) (*domain.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.unitTypes[unit.TypeID]; !ok {
		return nil, apperr.NotFound("unit type not found")
	}
	s.units[unit.ID] = unit
	created := unit
	return &created, nil
}

func (s *Store) GetUnitsByIDs(_ context.Context, ids []string) (map[string]domain.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Unit, len(ids))
	for _, id := range ids {
		if unit, ok := s.units[id]; ok {
			result[id] = unit
		}
	}
	return result, nil
}

func (s *Store) ListUnits(_ context.Context, typeID string) ([]domain.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	units := make([]domain.Unit, 0, len(s.units))
	for _, u := range s.units {
		if typeID != "" && u.TypeID != typeID {
			continue
		}
		units = append(units, u)
	}
	slices.SortFunc(units, func(a, b domain.Unit) int {
		if a.Value == b.Value {
			return strings.Compare(a.Name, b.Name)
		}
		if a.Value < b.Value {
			return -1
		}
		return 1
	})
	return units, nil
}

func (s *Store) CreateNormalCustomer(_ context.Context, customer domain.NormalCustomer) (*domain.NormalCustomer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.normalCustomers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetNormalCustomerByID(_ context.Context, id string) (*domain.NormalCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.normalCustomers[id]
	if !ok {
		return nil, apperr.NotFound("customer not found")
	}
	copied := customer
	return &copied, nil
}

func (s *Store) ListNormalCustomers(_ context.Context, shopID string) ([]domain.NormalCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.NormalCustomer, 0, len(s.normalCustomers))
	for _, c := range s.normalCustomers {
		if shopID != "" && c.ShopID != shopID {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.NormalCustomer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) CreateVipCustomer(_ context.Context, customer domain.VipCustomer) (*domain.VipCustomer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vipCustomers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetVipCustomerByID(_ context.Context, id string) (*domain.VipCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.vipCustomers[id]
	if !ok {
		return nil, apperr.NotFound("vip customer not found")
	}
	copied := customer
	return &copied, nil
}

func (s *Store) ListVipCustomers(_ context.Context, shopID string) ([]domain.VipCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.VipCustomer, 0, len(s.vipCustomers))
	for _, c := range s.vipCustomers {
		if shopID != "" && c.ShopID != shopID {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.VipCustomer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) CreateEmployee(_ context.Context, employee domain.Employee) (*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.employees[employee.ID] = employee
	created := employee
	return &created, nil
}

func (s *Store) GetEmployeeByID(_ context.Context, id string) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employee, ok := s.employees[id]
	if !ok {
		return nil, apperr.NotFound("employee not found")
	}
	copied := employee
	return &copied, nil
}

func (s *Store) ListEmployees(_ context.Context, shopID string) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees := make([]domain.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		if shopID != "" && e.ShopID != shopID {
			continue
		}
		employees = append(employees, e)
	}
	slices.SortFunc(employees, func(a, b domain.Employee) int {
		return strings.Compare(a.Name, b.Name)
	})
	return employees, nil
}

func (s *Store) CreateBill(_ context.Context, bill domain.Bill, debit *store.VipDebit) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if debit != nil {
		vip, ok := s.vipCustomers[debit.CustomerID]
		if !ok {
			return nil, apperr.NotFound("vip customer not found")
		}
		if vip.Balance.LessThan(debit.Amount) {
			return nil, apperr.Invariant("vip balance changed, bill rejected")
		}
		vip.Balance = vip.Balance.Sub(debit.Amount)
		s.vipCustomers[debit.CustomerID] = vip
	}

	s.billSeqByShop[bill.ShopID]++
	bill.BillNo = fmt.Sprintf("B-%06d", s.billSeqByShop[bill.ShopID])
	bill.Lines = slices.Clone(bill.Lines)
	s.bills[bill.ID] = bill

	created := bill
	created.Lines = slices.Clone(bill.Lines)
	return &created, nil
}

func (s *Store) GetBillByID(_ context.Context, id string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, ok := s.bills[id]
	if !ok {
		return nil, apperr.NotFound("bill not found")
	}
	copied := bill
	copied.Lines = slices.Clone(bill.Lines)
	return &copied, nil
}

func (s *Store) GetBillByNo(_ context.Context, shopID string, billNo string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, bill := range s.bills {
		if bill.BillNo != billNo {
			continue
		}
		if shopID != "" && bill.ShopID != shopID {
			continue
		}
		copied := bill
		copied.Lines = slices.Clone(bill.Lines)
		return &copied, nil
	}
	return nil, apperr.NotFound("bill not found")
}

func (s *Store) ListBills(_ context.Context, filter store.BillFilter) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bills := make([]domain.Bill, 0, len(s.bills))
	for _, b := range s.bills {
		if filter.ShopID != "" && b.ShopID != filter.ShopID {
			continue
		}
		if !filter.From.IsZero() && b.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && b.CreatedAt.After(filter.To) {
			continue
		}
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, b.Type) {
			continue
		}
		copied := b
		copied.Lines = slices.Clone(b.Lines)
		bills = append(bills, copied)
	}
	slices.SortFunc(bills, func(a, b domain.Bill) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return bills, nil
}

func (s *Store) CreateInventoryLot(_ context.Context, lot domain.InventoryLot) (*domain.InventoryLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lot.Units = slices.Clone(lot.Units)
	s.lots[lot.ID] = lot
	created := lot
	created.Units = slices.Clone(lot.Units)
	return &created, nil
}

func (s *Store) GetInventoryLotByID(_ context.Context, id string) (*domain.InventoryLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lot, ok := s.lots[id]
	if !ok {
		return nil, apperr.NotFound("inventory lot not found")
	}
	copied := lot
	copied.Units = slices.Clone(lot.Units)
	return &copied, nil
}

func (s *Store) ListInventoryLots(_ context.Context, shopID string, onlyRemaining bool) ([]domain.InventoryLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lots := make([]domain.InventoryLot, 0, len(s.lots))
	for _, lot := range s.lots {
		if shopID != "" && lot.ShopID != shopID {
			continue
		}
		if onlyRemaining && !lot.IsRemaining {
			continue
		}
		copied := lot
		copied.Units = slices.Clone(lot.Units)
		lots = append(lots, copied)
	}
	slices.SortFunc(lots, func(a, b domain.InventoryLot) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return lots, nil
}

func (s *Store) PayInventoryLot(_ context.Context, lotID string, amount decimal.Decimal) (*domain.InventoryLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lot, ok := s.lots[lotID]
	if !ok {
		return nil, apperr.NotFound("inventory lot not found")
	}
	if !lot.IsRemaining {
		return nil, apperr.Validation("khaata is already cleared")
	}
	if amount.GreaterThan(lot.SourcePrice.Sub(lot.Paid)) {
		return nil, apperr.Validation("paying amount in extra")
	}

	lot.Paid = lot.Paid.Add(amount)
	lot.IsRemaining = lot.Paid.LessThan(lot.SourcePrice)
	s.lots[lotID] = lot

	copied := lot
	copied.Units = slices.Clone(lot.Units)
	return &copied, nil
}

func (s *Store) ConsumeInventoryLot(_ context.Context, lotID string, qty int64, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lot, ok := s.lots[lotID]
	if !ok {
		return nil, apperr.NotFound("inventory lot not found")
	}
	if qty > lot.Quantity {
		return nil, apperr.Validation("not enough quantity in the lot")
	}

	lot.Quantity -= qty
	if lot.Quantity == 0 {
		delete(s.lots, lotID)
	} else {
		s.lots[lotID] = lot
	}

	s.sales[sale.ID] = sale
	created := sale
	return &created, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, apperr.NotFound("sale not found")
	}
	copied := sale
	return &copied, nil
}

func (s *Store) ListSales(_ context.Context, shopID string, onlyRemaining bool) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if shopID != "" && sale.ShopID != shopID {
			continue
		}
		if onlyRemaining && !sale.IsRemaining {
			continue
		}
		sales = append(sales, sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return sales, nil
}

func (s *Store) PaySale(_ context.Context, saleID string, amount decimal.Decimal) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[saleID]
	if !ok {
		return nil, apperr.NotFound("sale not found")
	}
	if !sale.IsRemaining {
		return nil, apperr.Validation("khaata is already cleared")
	}
	if amount.GreaterThan(sale.RetailPrice.Sub(sale.Paid)) {
		return nil, apperr.Validation("paying amount in extra")
	}

	sale.Paid = sale.Paid.Add(amount)
	sale.IsRemaining = sale.Paid.LessThan(sale.RetailPrice)
	s.sales[saleID] = sale

	copied := sale
	return &copied, nil
}

func (s *Store) CreateExpenseType(_ context.Context, expenseType domain.ExpenseType) (*domain.ExpenseType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expenseTypes[expenseType.ID] = expenseType
	created := expenseType
	return &created, nil
}

func (s *Store) GetExpenseTypeByID(_ context.Context, id string) (*domain.ExpenseType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenseType, ok := s.expenseTypes[id]
	if !ok {
		return nil, apperr.NotFound("expense type not found")
	}
	copied := expenseType
	return &copied, nil
}

func (s *Store) ListExpenseTypes(_ context.Context) ([]domain.ExpenseType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenseTypes := make([]domain.ExpenseType, 0, len(s.expenseTypes))
	for _, et := range s.expenseTypes {
		expenseTypes = append(expenseTypes, et)
	}
	slices.SortFunc(expenseTypes, func(a, b domain.ExpenseType) int {
		return strings.Compare(a.Title, b.Title)
	})
	return expenseTypes, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expenses[expense.ID] = expense
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(_ context.Context, shopID string, from time.Time, to time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if shopID != "" && e.ShopID != shopID {
			continue
		}
		if !from.IsZero() && e.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.CreatedAt.After(to) {
			continue
		}
		expenses = append(expenses, e)
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return expenses, nil
}

func (s *Store) SumExpensesByCategory(_ context.Context, shopID string, from time.Time, to time.Time) (map[domain.ExpenseCategory]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[domain.ExpenseCategory]decimal.Decimal)
	for _, e := range s.expenses {
		if shopID != "" && e.ShopID != shopID {
			continue
		}
		if !from.IsZero() && e.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.CreatedAt.After(to) {
			continue
		}
		sums[e.Category] = sums[e.Category].Add(e.Amount)
	}
	return sums, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, shopID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if shopID != "" && entry.ShopID != shopID {
			continue
		}
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		logs = append(logs, entry)
		if limit > 0 && len(logs) >= limit {
			break
		}
	}
	return logs, nil
}
