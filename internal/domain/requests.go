package domain

import "github.com/shopspring/decimal"

type BillLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Qty       int64  `json:"qty" validate:"required,min=1"`
}

type BillCreateRequest struct {
	Type              BillType          `json:"type" validate:"required,oneof=WALKIN NORMAL VIP"`
	CustomerID        string            `json:"customer_id,omitempty"`
	Lines             []BillLineRequest `json:"lines" validate:"required,min=1,dive"`
	DiscountPercent   decimal.Decimal   `json:"discount_percent"`
	VipBalancePercent decimal.Decimal   `json:"vip_balance_percent"`
}

type RefundCreateRequest struct {
	OriginalBillID string            `json:"original_bill_id" validate:"required"`
	Lines          []BillLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type InventoryIntakeRequest struct {
	SupplierID  string          `json:"supplier_id" validate:"required"`
	ProductID   string          `json:"product_id" validate:"required"`
	UnitIDs     []string        `json:"unit_ids" validate:"required,min=1"`
	Quantity    int64           `json:"quantity" validate:"required,min=1"`
	SourcePrice decimal.Decimal `json:"source_price"`
	Paid        decimal.Decimal `json:"paid"`
	Comments    string          `json:"comments,omitempty"`
}

type PayDownRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type SaleCreateRequest struct {
	CustomerID  string          `json:"customer_id" validate:"required"`
	LotID       string          `json:"lot_id" validate:"required"`
	Quantity    int64           `json:"quantity" validate:"required,min=1"`
	RetailPrice decimal.Decimal `json:"retail_price"`
	Paid        decimal.Decimal `json:"paid"`
	Comments    string          `json:"comments,omitempty"`
}

type ProductCreateRequest struct {
	Name        string          `json:"name" validate:"required"`
	GroupName   string          `json:"group_name" validate:"required"`
	UnitTypeID  string          `json:"unit_type_id" validate:"required"`
	SalePrice   decimal.Decimal `json:"sale_price"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	Description string          `json:"description,omitempty"`
}

type SupplierCreateRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
}

type UnitTypeCreateRequest struct {
	Title string `json:"title" validate:"required"`
}

type UnitCreateRequest struct {
	TypeID string `json:"type_id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Value  int64  `json:"value" validate:"required,min=1"`
}

type NormalCustomerCreateRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone,omitempty"`
}

type VipCustomerCreateRequest struct {
	Name    string          `json:"name" validate:"required"`
	Phone   string          `json:"phone,omitempty"`
	Balance decimal.Decimal `json:"balance"`
}

type EmployeeCreateRequest struct {
	Name    string          `json:"name" validate:"required"`
	Phone   string          `json:"phone,omitempty"`
	Address string          `json:"address,omitempty"`
	Salary  decimal.Decimal `json:"salary"`
}

type ExpenseTypeCreateRequest struct {
	Title    string          `json:"title" validate:"required"`
	Category ExpenseCategory `json:"category" validate:"required,oneof=raw_material shop salary"`
}

type ExpenseCreateRequest struct {
	TypeID     string          `json:"type_id" validate:"required"`
	Title      string          `json:"title,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	EmployeeID string          `json:"employee_id,omitempty"`
	Comments   string          `json:"comments,omitempty"`
}
