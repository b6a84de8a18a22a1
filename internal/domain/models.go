package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BillType string

const (
	BillTypeWalkIn BillType = "WALKIN"
	BillTypeNormal BillType = "NORMAL"
	BillTypeVIP    BillType = "VIP"
	BillTypeRefund BillType = "REFUND"
)

type ExpenseCategory string

const (
	ExpenseCategoryRawMaterial ExpenseCategory = "raw_material"
	ExpenseCategoryShop        ExpenseCategory = "shop"
	ExpenseCategorySalary      ExpenseCategory = "salary"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	GroupName   string          `json:"group_name"`
	UnitTypeID  string          `json:"unit_type_id"`
	SalePrice   decimal.Decimal `json:"sale_price"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ProductSnapshot is the denormalized copy of a product embedded in bills
// and inventory lots. Later product edits never touch existing documents.
type ProductSnapshot struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	GroupName string          `json:"group_name"`
	SalePrice decimal.Decimal `json:"sale_price"`
	CostPrice decimal.Decimal `json:"cost_price"`
}

// UnitType is a measurement class (count, weight, volume). Units belong to
// exactly one type, and a lot may only carry units matching its product's type.
type UnitType struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Unit is a unit of measure. Value is the conversion factor to the smallest
// unit of its type (a dozen of count is 12).
type Unit struct {
	ID        string    `json:"id"`
	TypeID    string    `json:"type_id"`
	Name      string    `json:"name"`
	Value     int64     `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

type UnitSnapshot struct {
	UnitID string `json:"unit_id"`
	Name   string `json:"name"`
	Value  int64  `json:"value"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type NormalCustomer struct {
	ID        string    `json:"id"`
	ShopID    string    `json:"shop_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type VipCustomer struct {
	ID        string          `json:"id"`
	ShopID    string          `json:"shop_id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

type Employee struct {
	ID        string          `json:"id"`
	ShopID    string          `json:"shop_id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone,omitempty"`
	Address   string          `json:"address,omitempty"`
	Salary    decimal.Decimal `json:"salary"`
	CreatedAt time.Time       `json:"created_at"`
}

// CustomerSnapshot is the customer as it appeared at billing time. Balance is
// only set for VIP customers and records the balance before the bill debited it.
type CustomerSnapshot struct {
	CustomerID string           `json:"customer_id,omitempty"`
	Name       string           `json:"name"`
	Phone      string           `json:"phone,omitempty"`
	Balance    *decimal.Decimal `json:"balance,omitempty"`
}

type BillLine struct {
	Product ProductSnapshot `json:"product"`
	Qty     int64           `json:"qty"`
	Amount  decimal.Decimal `json:"amount"`
}

type Bill struct {
	ID              string           `json:"id"`
	BillNo          string           `json:"bill_no"`
	ShopID          string           `json:"shop_id"`
	Type            BillType         `json:"type"`
	Customer        CustomerSnapshot `json:"customer"`
	Lines           []BillLine       `json:"lines"`
	SubTotal        decimal.Decimal  `json:"sub_total"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	DiscountAmount  decimal.Decimal  `json:"discount_amount"`
	Total           decimal.Decimal  `json:"total"`
	VipConsumed     decimal.Decimal  `json:"vip_consumed"`
	RemainingPay    decimal.Decimal  `json:"remaining_pay"`
	OriginalBillID  string           `json:"original_bill_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

type InventoryLot struct {
	ID           string          `json:"id"`
	ShopID       string          `json:"shop_id"`
	SupplierID   string          `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	Product      ProductSnapshot `json:"product"`
	Units        []UnitSnapshot  `json:"units"`
	Quantity     int64           `json:"quantity"`
	SourcePrice  decimal.Decimal `json:"source_price"`
	Paid         decimal.Decimal `json:"paid"`
	IsRemaining  bool            `json:"is_remaining"`
	Comments     string          `json:"comments,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type LotSnapshot struct {
	LotID       string          `json:"lot_id"`
	ProductName string          `json:"product_name"`
	SourcePrice decimal.Decimal `json:"source_price"`
}

type Sale struct {
	ID           string          `json:"id"`
	ShopID       string          `json:"shop_id"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Lot          LotSnapshot     `json:"lot"`
	Quantity     int64           `json:"quantity"`
	RetailPrice  decimal.Decimal `json:"retail_price"`
	Paid         decimal.Decimal `json:"paid"`
	IsRemaining  bool            `json:"is_remaining"`
	Comments     string          `json:"comments,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type ExpenseType struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Category  ExpenseCategory `json:"category"`
	CreatedAt time.Time       `json:"created_at"`
}

type Expense struct {
	ID           string          `json:"id"`
	ShopID       string          `json:"shop_id"`
	Title        string          `json:"title"`
	TypeID       string          `json:"type_id"`
	TypeTitle    string          `json:"type_title"`
	Category     ExpenseCategory `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	EmployeeID   string          `json:"employee_id,omitempty"`
	EmployeeName string          `json:"employee_name,omitempty"`
	Comments     string          `json:"comments,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	ShopID     string    `json:"shop_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

type ExpenseSummary struct {
	RawMaterialExpenses decimal.Decimal `json:"raw_material_expenses"`
	ShopExpenses        decimal.Decimal `json:"shop_expenses"`
	SalariesExpenses    decimal.Decimal `json:"salaries_expenses"`
	TotalExpenses       decimal.Decimal `json:"total_expenses"`
}

type ReportProductLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	GroupName string          `json:"group_name"`
	Qty       int64           `json:"qty"`
	Amount    decimal.Decimal `json:"amount"`
	Cost      decimal.Decimal `json:"cost"`
}

type SalesReport struct {
	From               time.Time           `json:"from"`
	To                 time.Time           `json:"to"`
	Expenses           ExpenseSummary      `json:"expenses"`
	Products           []ReportProductLine `json:"products"`
	TotalSellPrice     decimal.Decimal     `json:"total_sell_price"`
	TotalCostPrice     decimal.Decimal     `json:"total_cost_price"`
	ProfitAfterExpense decimal.Decimal     `json:"profit_after_expense"`
	GrossProfit        decimal.Decimal     `json:"gross_profit"`
}

type KhaataResponse struct {
	Payables    []InventoryLot `json:"payables"`
	Receivables []Sale         `json:"receivables"`
}
