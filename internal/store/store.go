package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"shopkhata/backend/internal/domain"
)

// VipDebit asks the store to subtract Amount from the customer's balance in
// the same transaction that creates the bill. The store rejects the whole
// bill when the balance no longer covers the amount.
type VipDebit struct {
	CustomerID string
	Amount     decimal.Decimal
}

// BillFilter narrows ListBills. Zero fields are ignored.
type BillFilter struct {
	ShopID string
	From   time.Time
	To     time.Time
	Types  []domain.BillType
}

type Repository interface {
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)

	CreateUnitType(ctx context.Context, unitType domain.UnitType) (*domain.UnitType, error)
	GetUnitTypeByID(ctx context.Context, id string) (*domain.UnitType, error)
	ListUnitTypes(ctx context.Context) ([]domain.UnitType, error)
	CreateUnit(ctx context.Context, unit domain.Unit) (*domain.Unit, error)
	GetUnitsByIDs(ctx context.Context, ids []string) (map[string]domain.Unit, error)
	ListUnits(ctx context.Context, typeID string) ([]domain.Unit, error)

	CreateNormalCustomer(ctx context.Context, customer domain.NormalCustomer) (*domain.NormalCustomer, error)
	GetNormalCustomerByID(ctx context.Context, id string) (*domain.NormalCustomer, error)
	ListNormalCustomers(ctx context.Context, shopID string) ([]domain.NormalCustomer, error)
	CreateVipCustomer(ctx context.Context, customer domain.VipCustomer) (*domain.VipCustomer, error)
	GetVipCustomerByID(ctx context.Context, id string) (*domain.VipCustomer, error)
	ListVipCustomers(ctx context.Context, shopID string) ([]domain.VipCustomer, error)

	CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error)
	GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error)
	ListEmployees(ctx context.Context, shopID string) ([]domain.Employee, error)

	// CreateBill assigns the bill's sequential BillNo, applies the optional
	// VIP debit, and persists the bill with its lines atomically.
	CreateBill(ctx context.Context, bill domain.Bill, debit *VipDebit) (*domain.Bill, error)
	GetBillByID(ctx context.Context, id string) (*domain.Bill, error)
	// GetBillByNo resolves a bill by its human-readable number, which is only
	// unique within a shop.
	GetBillByNo(ctx context.Context, shopID string, billNo string) (*domain.Bill, error)
	ListBills(ctx context.Context, filter BillFilter) ([]domain.Bill, error)

	CreateInventoryLot(ctx context.Context, lot domain.InventoryLot) (*domain.InventoryLot, error)
	GetInventoryLotByID(ctx context.Context, id string) (*domain.InventoryLot, error)
	ListInventoryLots(ctx context.Context, shopID string, onlyRemaining bool) ([]domain.InventoryLot, error)
	// PayInventoryLot applies a khaata payment and enforces that paid never
	// exceeds the lot's source price.
	PayInventoryLot(ctx context.Context, lotID string, amount decimal.Decimal) (*domain.InventoryLot, error)
	// ConsumeInventoryLot decrements the lot (deleting it at zero quantity)
	// and records the sale in the same transaction.
	ConsumeInventoryLot(ctx context.Context, lotID string, qty int64, sale domain.Sale) (*domain.Sale, error)

	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, shopID string, onlyRemaining bool) ([]domain.Sale, error)
	PaySale(ctx context.Context, saleID string, amount decimal.Decimal) (*domain.Sale, error)

	CreateExpenseType(ctx context.Context, expenseType domain.ExpenseType) (*domain.ExpenseType, error)
	GetExpenseTypeByID(ctx context.Context, id string) (*domain.ExpenseType, error)
	ListExpenseTypes(ctx context.Context) ([]domain.ExpenseType, error)
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, shopID string, from time.Time, to time.Time) ([]domain.Expense, error)
	SumExpensesByCategory(ctx context.Context, shopID string, from time.Time, to time.Time) (map[domain.ExpenseCategory]decimal.Decimal, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, shopID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
