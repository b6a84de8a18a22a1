package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"shopkhata/backend/internal/apperr"
	"shopkhata/backend/internal/domain"
	"shopkhata/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, connErr(err)
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, connErr(err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, group_name, unit_type_id, sale_price, cost_price, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, product.ID, product.Name, product.GroupName, product.UnitTypeID, product.SalePrice, product.CostPrice, nullIfEmpty(product.Description), product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Validation("product already exists")
		}
		return nil, connErr(err)
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, group_name, unit_type_id, sale_price, cost_price, COALESCE(description, ''), created_at
		FROM products
		WHERE id = $1
	`, id)
	return scanProduct(row, "product not found")
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, group_name, unit_type_id, sale_price, cost_price, COALESCE(description, ''), created_at
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	products := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.GroupName, &p.UnitTypeID, &p.SalePrice, &p.CostPrice, &p.Description, &p.CreatedAt); err != nil {
			return nil, connErr(err)
		}
		products[p.ID] = p
	}
	return products, connErr(rows.Err())
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, group_name, unit_type_id, sale_price, cost_price, COALESCE(description, ''), created_at
		FROM products
		ORDER BY group_name, name
	`)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.GroupName, &p.UnitTypeID, &p.SalePrice, &p.CostPrice, &p.Description, &p.CreatedAt); err != nil {
			return nil, connErr(err)
		}
		products = append(products, p)
	}
	return products, connErr(rows.Err())
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, company, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, supplier.ID, supplier.Name, nullIfEmpty(supplier.Phone), nullIfEmpty(supplier.Company), supplier.CreatedAt)
	if err != nil {
		return nil, connErr(err)
	}
	created := supplier
	return &created, nil
}

func (s *Store) GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(company, ''), created_at
		FROM suppliers
		WHERE id = $1
	`, id).Scan(&supplier.ID, &supplier.Name, &supplier.Phone, &supplier.Company, &supplier.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("supplier not found")
		}
		return nil, connErr(err)
	}
	return &supplier, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(company, ''), created_at
		FROM suppliers
		ORDER BY name
	`)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var supplier domain.Supplier
		if err := rows.Scan(&supplier.ID, &supplier.Name, &supplier.Phone, &supplier.Company, &supplier.CreatedAt); err != nil {
			return nil, connErr(err)
		}
		suppliers = append(suppliers, supplier)
	}
	return suppliers, connErr(rows.Err())
}

func (s *Store) CreateUnitType(ctx context.Context, unitType domain.UnitType) (*domain.UnitType, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO unit_types (id, title, created_at)
		VALUES ($1,$2,$3)
	`, unitType.ID, unitType.Title, unitType.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Validation("unit type already exists")
		}
		return nil, connErr(err)
	}
	created := unitType
	return &created, nil
}

func (s *Store) GetUnitTypeByID(ctx context.Context, id string) (*domain.UnitType, error) {
	var unitType domain.UnitType
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at FROM unit_types WHERE id = $1
	`, id).Scan(&unitType.ID, &unitType.Title, &unitType.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("unit type not found")
		}
		return nil, connErr(err)
	}
	return &unitType, nil
}

func (s *Store) ListUnitTypes(ctx context.Context) ([]domain.UnitType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at FROM unit_types ORDER BY title
	`)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	unitTypes := make([]domain.UnitType, 0, 8)
	for rows.Next() {
		var ut domain.UnitType
		if err := rows.Scan(&ut.ID, &ut.Title, &ut.CreatedAt); err != nil {
			return nil, connErr(err)
		}
		unitTypes = append(unitTypes, ut)
	}
	return unitTypes, connErr(rows.Err())
}

func (s *Store) CreateUnit(ctx context.Context, unit domain.Unit) (*domain.Unit, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO units (id, type_id, name, value, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, unit.ID, unit.TypeID, unit.Name, unit.Value, unit.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, apperr.NotFound("unit type not found")
		}
		return nil, connErr(err)
	}
	created := unit
	return &created, nil
}

func (s *Store) GetUnitsByIDs(ctx context.Context, ids []string) (map[string]domain.Unit, error) {
	if len(ids) == 0 {
		return map[string]domain.Unit{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type_id, name, value, created_at FROM units WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	units := make(map[string]domain.Unit, len(ids))
	for rows.Next() {
		var u domain.Unit
		if err := rows.Scan(&u.ID, &u.TypeID, &u.Name, &u.Value, &u.CreatedAt); err != nil {
			return nil, connErr(err)
		}
		units[u.ID] = u
	}
	return units, connErr(rows.Err())
}

func (s *Store) ListUnits(ctx context.Context, typeID string) ([]domain.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type_id, name, value, created_at
		FROM units
		WHERE ($1 = '' OR type_id = $1)
		ORDER BY value, name
	`, typeID)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	units := make([]domain.Unit, 0, 16)
	for rows.Next() {
		var u domain.Unit
		if err := rows.Scan(&u.ID, &u.TypeID, &u.Name, &u.Value, &u.CreatedAt); err != nil {
			return nil, connErr(err)
		}
		units = append(units, u)
	}
	return units, connErr(rows.Err())
}

func (s *Store) CreateNormalCustomer(ctx context.Context, customer domain.NormalCustomer) (*domain.NormalCustomer, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO normal_customers (id, shop_id, name, phone, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, customer.ID, customer.ShopID, customer.Name, nullIfEmpty(customer.Phone), customer.CreatedAt)
	if err != nil {
		return nil, connErr(err)
	}
	created := customer
	return &created, nil
}

func (s *Store) GetNormalCustomerByID(ctx context.Context, id string) (*domain.NormalCustomer, error) {
	var customer domain.NormalCustomer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, shop_id, name, COALESCE(phone, ''), created_at
		FROM normal_customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.ShopID, &customer.Name, &customer.Phone, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("customer not found")
		}
		return nil, connErr(err)
	}
	return &customer, nil
}

func (s *Store) ListNormalCustomers(ctx context.Context, shopID string) ([]domain.NormalCustomer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, name, COALESCE(phone, ''), created_at
		FROM normal_customers
		WHERE ($1 = '' OR shop_id = $1)
		ORDER BY name
	`, shopID)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	customers := make([]domain.NormalCustomer, 0, 64)
	for rows.Next() {
		var c domain.NormalCustomer
		if err := rows.Scan(&c.ID, &c.ShopID, &c.Name, &c.Phone, &c.CreatedAt); err != nil {
			return nil, connErr(err)
		}
		customers = append(customers, c)
	}
	return customers, connErr(rows.Err())
}

func (s *Store) CreateVipCustomer(ctx context.Context, customer domain.VipCustomer) (*domain.VipCustomer, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vip_customers (id, shop_id, name, phone, balance, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.ShopID, customer.Name, nullIfEmpty(customer.Phone), customer.Balance, customer.CreatedAt)
	if err != nil {
		return nil, connErr(err)
	}
	created := customer
	return &created, nil
}

func (s *Store) GetVipCustomerByID(ctx context.Context, id string) (*domain.VipCustomer, error) {
	var customer domain.VipCustomer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, shop_id, name, COALESCE(phone, ''), balance, created_at
		FROM vip_customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.ShopID, &customer.Name, &customer.Phone, &customer.Balance, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("vip customer not found")
		}
		return nil, connErr(err)
	}
	return &customer, nil
}

func (s *Store) ListVipCustomers(ctx context.Context, shopID string) ([]domain.VipCustomer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, name, COALESCE(phone, ''), balance, created_at
		FROM vip_customers
		WHERE ($1 = '' OR shop_id = $1)
		ORDER BY name
	`, shopID)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	customers := make([]domain.VipCustomer, 0, 32)
	for rows.Next() {
		var c domain.VipCustomer
		if err := rows.Scan(&c.ID, &c.ShopID, &c.Name, &c.Phone, &c.Balance, &c.CreatedAt); err != nil {
			return nil, connErr(err)
		}
		customers = append(customers, c)
	}
	return customers, connErr(rows.Err())
}

func (s *Store) CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, shop_id, name, phone, address, salary, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, employee.ID, employee.ShopID, employee.Name, nullIfEmpty(employee.Phone), nullIfEmpty(employee.Address), employee.Salary, employee.CreatedAt)
	if err != nil {
		return nil, connErr(err)
	}
	created := employee
	return &created, nil
}

func (s *Store) GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error) {
	var employee domain.Employee
	err := s.db.QueryRowContext(ctx, `
		SELECT id, shop_id, name, COALESCE(phone, ''), COALESCE(address, ''), salary, created_at
		FROM employees
		WHERE id = $1
	`, id).Scan(&employee.ID, &employee.ShopID, &employee.Name, &employee.Phone, &employee.Address, &employee.Salary, &employee.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("employee not found")
		}
		return nil, connErr(err)
	}
	return &employee, nil
}

func (s *Store) ListEmployees(ctx context.Context, shopID string) ([]domain.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, name, COALESCE(phone, ''), COALESCE(address, ''), salary, created_at
		FROM employees
		WHERE ($1 = '' OR shop_id = $1)
		ORDER BY name
	`, shopID)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	employees := make([]domain.Employee, 0, 16)
	for rows.Next() {
		var e domain.Employee
		if err := rows.Scan(&e.ID, &e.ShopID, &e.Name, &e.Phone, &e.Address, &e.Salary, &e.CreatedAt); err != nil {
			return nil, connErr(err)
		}
		employees = append(employees, e)
	}
	return employees, connErr(rows.Err())
}

// CreateBill runs the whole money path in one serializable transaction: the
// optional VIP debit, the per-shop bill number, the bill row, and its lines.
func (s *Store) CreateBill(ctx context.Context, bill domain.Bill, debit *store.VipDebit) (*domain.Bill, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, connErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if debit != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE vip_customers
			SET balance = balance - $2
			WHERE id = $1 AND balance >= $2
		`, debit.CustomerID, debit.Amount)
		if err != nil {
			return nil, connErr(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, connErr(err)
		}
		if affected == 0 {
			return nil, apperr.Invariant("vip balance changed, bill rejected")
		}
	}

	var seq int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO bill_number_series (shop_id, last_no)
		VALUES ($1, 1)
		ON CONFLICT (shop_id) DO UPDATE SET last_no = bill_number_series.last_no + 1
		RETURNING last_no
	`, bill.ShopID).Scan(&seq)
	if err != nil {
		return nil, connErr(err)
	}
	bill.BillNo = fmt.Sprintf("B-%06d", seq)

	var balance decimal.NullDecimal
	if bill.Customer.Balance != nil {
		balance = decimal.NullDecimal{Decimal: *bill.Customer.Balance, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bills (
			id, bill_no, shop_id, type,
			customer_id, customer_name, customer_phone, customer_balance,
			sub_total, discount_percent, discount_amount, total,
			vip_consumed, remaining_pay, original_bill_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, bill.ID, bill.BillNo, bill.ShopID, string(bill.Type),
		nullIfEmpty(bill.Customer.CustomerID), bill.Customer.Name, nullIfEmpty(bill.Customer.Phone), balance,
		bill.SubTotal, bill.DiscountPercent, bill.DiscountAmount, bill.Total,
		bill.VipConsumed, bill.RemainingPay, nullIfEmpty(bill.OriginalBillID), bill.CreatedAt)
	if err != nil {
		return nil, connErr(err)
	}

	for i, line := range bill.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO bill_lines (bill_id, position, product_id, product_name, product_group, sale_price, cost_price, qty, amount)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, bill.ID, i, line.Product.ProductID, line.Product.Name, line.Product.GroupName,
			line.Product.SalePrice, line.Product.CostPrice, line.Qty, line.Amount)
		if err != nil {
			return nil, connErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, connErr(err)
	}

	created := bill
	return &created, nil
}

func (s *Store) GetBillByID(ctx context.Context, id string) (*domain.Bill, error) {
	bill, err := s.scanBillRow(s.db.QueryRowContext(ctx, `
		SELECT id, bill_no, shop_id, type,
			COALESCE(customer_id, ''), customer_name, COALESCE(customer_phone, ''), customer_balance,
			sub_total, discount_percent, discount_amount, total,
			vip_consumed, remaining_pay, COALESCE(original_bill_id, ''), created_at
		FROM bills
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, connErr(err)
	}

	lines, err := s.loadBillLines(ctx, []string{bill.ID})
	if err != nil {
		return nil, connErr(err)
	}
	bill.Lines = lines[bill.ID]
	return bill, nil
}

func (s *Store) GetBillByNo(ctx context.Context, shopID string, billNo string) (*domain.Bill, error) {
	bill, err := s.scanBillRow(s.db.QueryRowContext(ctx, `
		SELECT id, bill_no, shop_id, type,
			COALESCE(customer_id, ''), customer_name, COALESCE(customer_phone, ''), customer_balance,
			sub_total, discount_percent, discount_amount, total,
			vip_consumed, remaining_pay, COALESCE(original_bill_id, ''), created_at
		FROM bills
		WHERE ($1 = '' OR shop_id = $1) AND bill_no = $2
	`, shopID, billNo))
	if err != nil {
		return nil, err
	}

	lines, err := s.loadBillLines(ctx, []string{bill.ID})
	if err != nil {
		return nil, connErr(err)
	}
	bill.Lines = lines[bill.ID]
	return bill, nil
}

func (s *Store) ListBills(ctx context.Context, filter store.BillFilter) ([]domain.Bill, error) {
	types := make([]string, 0, len(filter.Types))
	for _, t := range filter.Types {
		types = append(types, string(t))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_no, shop_id, type,
			COALESCE(customer_id, ''), customer_name, COALESCE(customer_phone, ''), customer_balance,
			sub_total, discount_percent, discount_amount, total,
			vip_consumed, remaining_pay, COALESCE(original_bill_id, ''), created_at
		FROM bills
		WHERE ($1 = '' OR shop_id = $1)
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at <= $3)
			AND (cardinality($4::text[]) = 0 OR type = ANY($4))
		ORDER BY created_at
	`, filter.ShopID, nullTime(filter.From), nullTime(filter.To), types)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, 64)
	billIDs := make([]string, 0, 64)
	for rows.Next() {
		bill, err := s.scanBillRow(rows)
		if err != nil {
			return nil, connErr(err)
		}
		bills = append(bills, *bill)
		billIDs = append(billIDs, bill.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, connErr(err)
	}

	lines, err := s.loadBillLines(ctx, billIDs)
	if err != nil {
		return nil, connErr(err)
	}
	for i := range bills {
		bills[i].Lines = lines[bills[i].ID]
	}
	return bills, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanBillRow(row rowScanner) (*domain.Bill, error) {
	var bill domain.Bill
	var billType string
	var balance decimal.NullDecimal
	err := row.Scan(&bill.ID, &bill.BillNo, &bill.ShopID, &billType,
		&bill.Customer.CustomerID, &bill.Customer.Name, &bill.Customer.Phone, &balance,
		&bill.SubTotal, &bill.DiscountPercent, &bill.DiscountAmount, &bill.Total,
		&bill.VipConsumed, &bill.RemainingPay, &bill.OriginalBillID, &bill.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("bill not found")
		}
		return nil, connErr(err)
	}
	bill.Type = domain.BillType(billType)
	if balance.Valid {
		bill.Customer.Balance = &balance.Decimal
	}
	return &bill, nil
}

func (s *Store) loadBillLines(ctx context.Context, billIDs []string) (map[string][]domain.BillLine, error) {
	if len(billIDs) == 0 {
		return map[string][]domain.BillLine{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bill_id, product_id, product_name, product_group, sale_price, cost_price, qty, amount
		FROM bill_lines
		WHERE bill_id = ANY($1)
		ORDER BY bill_id, position
	`, billIDs)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	lines := make(map[string][]domain.BillLine, len(billIDs))
	for rows.Next() {
		var billID string
		var line domain.BillLine
		if err := rows.Scan(&billID, &line.Product.ProductID, &line.Product.Name, &line.Product.GroupName,
			&line.Product.SalePrice, &line.Product.CostPrice, &line.Qty, &line.Amount); err != nil {
			return nil, connErr(err)
		}
		lines[billID] = append(lines[billID], line)
	}
	return lines, connErr(rows.Err())
}

func (s *Store) CreateInventoryLot(ctx context.Context, lot domain.InventoryLot) (*domain.InventoryLot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, connErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory_lots (
			id, shop_id, supplier_id, supplier_name,
			product_id, product_name, product_group, sale_price, cost_price,
			quantity, source_price, paid, is_remaining, comments, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, lot.ID, lot.ShopID, lot.SupplierID, lot.SupplierName,
		lot.Product.ProductID, lot.Product.Name, lot.Product.GroupName, lot.Product.SalePrice, lot.Product.CostPrice,
		lot.Quantity, lot.SourcePrice, lot.Paid, lot.IsRemaining, nullIfEmpty(lot.Comments), lot.CreatedAt)
	if err != nil {
		return nil, connErr(err)
	}

	for _, unit := range lot.Units {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory_lot_units (lot_id, unit_id, name, value)
			VALUES ($1,$2,$3,$4)
		`, lot.ID, unit.UnitID, unit.Name, unit.Value)
		if err != nil {
			return nil, connErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, connErr(err)
	}

	created := lot
	return &created, nil
}

func (s *Store) GetInventoryLotByID(ctx context.Context, id string) (*domain.InventoryLot, error) {
	lot, err := scanLot(s.db.QueryRowContext(ctx, `
		SELECT id, shop_id, supplier_id, supplier_name,
			product_id, product_name, product_group, sale_price, cost_price,
			quantity, source_price, paid, is_remaining, COALESCE(comments, ''), created_at
		FROM inventory_lots
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, connErr(err)
	}

	units, err := s.loadLotUnits(ctx, []string{lot.ID})
	if err != nil {
		return nil, connErr(err)
	}
	lot.Units = units[lot.ID]
	return lot, nil
}

func (s *Store) ListInventoryLots(ctx context.Context, shopID string, onlyRemaining bool) ([]domain.InventoryLot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, supplier_id, supplier_name,
			product_id, product_name, product_group, sale_price, cost_price,
			quantity, source_price, paid, is_remaining, COALESCE(comments, ''), created_at
		FROM inventory_lots
		WHERE ($1 = '' OR shop_id = $1)
			AND (NOT $2 OR is_remaining)
		ORDER BY created_at
	`, shopID, onlyRemaining)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	lots := make([]domain.InventoryLot, 0, 64)
	lotIDs := make([]string, 0, 64)
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, connErr(err)
		}
		lots = append(lots, *lot)
		lotIDs = append(lotIDs, lot.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, connErr(err)
	}

	units, err := s.loadLotUnits(ctx, lotIDs)
	if err != nil {
		return nil, connErr(err)
	}
	for i := range lots {
		lots[i].Units = units[lots[i].ID]
	}
	return lots, nil
}

func scanLot(row rowScanner) (*domain.InventoryLot, error) {
	var lot domain.InventoryLot
	err := row.Scan(&lot.ID, &lot.ShopID, &lot.SupplierID, &lot.SupplierName,
		&lot.Product.ProductID, &lot.Product.Name, &lot.Product.GroupName, &lot.Product.SalePrice, &lot.Product.CostPrice,
		&lot.Quantity, &lot.SourcePrice, &lot.Paid, &lot.IsRemaining, &lot.Comments, &lot.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("inventory lot not found")
		}
		return nil, connErr(err)
	}
	return &lot, nil
}

func (s *Store) loadLotUnits(ctx context.Context, lotIDs []string) (map[string][]domain.UnitSnapshot, error) {
	if len(lotIDs) == 0 {
		return map[string][]domain.UnitSnapshot{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT lot_id, unit_id, name, value
		FROM inventory_lot_units
		WHERE lot_id = ANY($1)
		ORDER BY lot_id, value
	`, lotIDs)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	units := make(map[string][]domain.UnitSnapshot, len(lotIDs))
	for rows.Next() {
		var lotID string
		var unit domain.UnitSnapshot
		if err := rows.Scan(&lotID, &unit.UnitID, &unit.Name, &unit.Value); err != nil {
			return nil, connErr(err)
		}
		units[lotID] = append(units[lotID], unit)
	}
	return units, connErr(rows.Err())
}

func (s *Store) PayInventoryLot(ctx context.Context, lotID string, amount decimal.Decimal) (*domain.InventoryLot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, connErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	var sourcePrice, paid decimal.Decimal
	var isRemaining bool
	err = tx.QueryRowContext(ctx, `
		SELECT source_price, paid, is_remaining
		FROM inventory_lots
		WHERE id = $1
		FOR UPDATE
	`, lotID).Scan(&sourcePrice, &paid, &isRemaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("inventory lot not found")
		}
		return nil, connErr(err)
	}

	if !isRemaining {
		return nil, apperr.Validation("khaata is already cleared")
	}
	if amount.GreaterThan(sourcePrice.Sub(paid)) {
		return nil, apperr.Validation("paying amount in extra")
	}

	paid = paid.Add(amount)
	_, err = tx.ExecContext(ctx, `
		UPDATE inventory_lots
		SET paid = $2, is_remaining = $3
		WHERE id = $1
	`, lotID, paid, paid.LessThan(sourcePrice))
	if err != nil {
		return nil, connErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, connErr(err)
	}

	return s.GetInventoryLotByID(ctx, lotID)
}

func (s *Store) ConsumeInventoryLot(ctx context.Context, lotID string, qty int64, sale domain.Sale) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, connErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	var remaining int64
	err = tx.QueryRowContext(ctx, `
		SELECT quantity FROM inventory_lots WHERE id = $1 FOR UPDATE
	`, lotID).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("inventory lot not found")
		}
		return nil, connErr(err)
	}
	if qty > remaining {
		return nil, apperr.Validation("not enough quantity in the lot")
	}

	if remaining == qty {
		_, err = tx.ExecContext(ctx, `DELETE FROM inventory_lot_units WHERE lot_id = $1`, lotID)
		if err != nil {
			return nil, connErr(err)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM inventory_lots WHERE id = $1`, lotID)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE inventory_lots SET quantity = quantity - $2 WHERE id = $1`, lotID, qty)
	}
	if err != nil {
		return nil, connErr(err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, shop_id, customer_id, customer_name,
			lot_id, lot_product_name, lot_source_price,
			quantity, retail_price, paid, is_remaining, comments, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, sale.ID, sale.ShopID, sale.CustomerID, sale.CustomerName,
		sale.Lot.LotID, sale.Lot.ProductName, sale.Lot.SourcePrice,
		sale.Quantity, sale.RetailPrice, sale.Paid, sale.IsRemaining, nullIfEmpty(sale.Comments), sale.CreatedAt)
	if err != nil {
		return nil, connErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, connErr(err)
	}

	created := sale
	return &created, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	return scanSale(s.db.QueryRowContext(ctx, `
		SELECT id, shop_id, customer_id, customer_name,
			lot_id, lot_product_name, lot_source_price,
			quantity, retail_price, paid, is_remaining, COALESCE(comments, ''), created_at
		FROM sales
		WHERE id = $1
	`, id))
}

func (s *Store) ListSales(ctx context.Context, shopID string, onlyRemaining bool) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, customer_id, customer_name,
			lot_id, lot_product_name, lot_source_price,
			quantity, retail_price, paid, is_remaining, COALESCE(comments, ''), created_at
		FROM sales
		WHERE ($1 = '' OR shop_id = $1)
			AND (NOT $2 OR is_remaining)
		ORDER BY created_at
	`, shopID, onlyRemaining)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, connErr(err)
		}
		sales = append(sales, *sale)
	}
	return sales, connErr(rows.Err())
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	err := row.Scan(&sale.ID, &sale.ShopID, &sale.CustomerID, &sale.CustomerName,
		&sale.Lot.LotID, &sale.Lot.ProductName, &sale.Lot.SourcePrice,
		&sale.Quantity, &sale.RetailPrice, &sale.Paid, &sale.IsRemaining, &sale.Comments, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("sale not found")
		}
		return nil, connErr(err)
	}
	return &sale, nil
}

func (s *Store) PaySale(ctx context.Context, saleID string, amount decimal.Decimal) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, connErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	var retailPrice, paid decimal.Decimal
	var isRemaining bool
	err = tx.QueryRowContext(ctx, `
		SELECT retail_price, paid, is_remaining FROM sales WHERE id = $1 FOR UPDATE
	`, saleID).Scan(&retailPrice, &paid, &isRemaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("sale not found")
		}
		return nil, connErr(err)
	}

	if !isRemaining {
		return nil, apperr.Validation("khaata is already cleared")
	}
	if amount.GreaterThan(retailPrice.Sub(paid)) {
		return nil, apperr.Validation("paying amount in extra")
	}

	paid = paid.Add(amount)
	_, err = tx.ExecContext(ctx, `
		UPDATE sales SET paid = $2, is_remaining = $3 WHERE id = $1
	`, saleID, paid, paid.LessThan(retailPrice))
	if err != nil {
		return nil, connErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, connErr(err)
	}

	return s.GetSaleByID(ctx, saleID)
}

func (s *Store) CreateExpenseType(ctx context.Context, expenseType domain.ExpenseType) (*domain.ExpenseType, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_types (id, title, category, created_at)
		VALUES ($1,$2,$3,$4)
	`, expenseType.ID, expenseType.Title, string(expenseType.Category), expenseType.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Validation("expense type already exists")
		}
		return nil, connErr(err)
	}
	created := expenseType
	return &created, nil
}

func (s *Store) GetExpenseTypeByID(ctx context.Context, id string) (*domain.ExpenseType, error) {
	var expenseType domain.ExpenseType
	var category string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, category, created_at FROM expense_types WHERE id = $1
	`, id).Scan(&expenseType.ID, &expenseType.Title, &category, &expenseType.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("expense type not found")
		}
		return nil, connErr(err)
	}
	expenseType.Category = domain.ExpenseCategory(category)
	return &expenseType, nil
}

func (s *Store) ListExpenseTypes(ctx context.Context) ([]domain.ExpenseType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, category, created_at FROM expense_types ORDER BY title
	`)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	expenseTypes := make([]domain.ExpenseType, 0, 8)
	for rows.Next() {
		var et domain.ExpenseType
		var category string
		if err := rows.Scan(&et.ID, &et.Title, &category, &et.CreatedAt); err != nil {
			return nil, connErr(err)
		}
		et.Category = domain.ExpenseCategory(category)
		expenseTypes = append(expenseTypes, et)
	}
	return expenseTypes, connErr(rows.Err())
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (
			id, shop_id, title, type_id, type_title, category, amount,
			employee_id, employee_name, comments, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, expense.ID, expense.ShopID, expense.Title, expense.TypeID, expense.TypeTitle, string(expense.Category),
		expense.Amount, nullIfEmpty(expense.EmployeeID), nullIfEmpty(expense.EmployeeName), nullIfEmpty(expense.Comments), expense.CreatedAt)
	if err != nil {
		return nil, connErr(err)
	}
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, shopID string, from time.Time, to time.Time) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, title, type_id, type_title, category, amount,
			COALESCE(employee_id, ''), COALESCE(employee_name, ''), COALESCE(comments, ''), created_at
		FROM expenses
		WHERE ($1 = '' OR shop_id = $1)
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY created_at
	`, shopID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 64)
	for rows.Next() {
		var e domain.Expense
		var category string
		if err := rows.Scan(&e.ID, &e.ShopID, &e.Title, &e.TypeID, &e.TypeTitle, &category, &e.Amount,
			&e.EmployeeID, &e.EmployeeName, &e.Comments, &e.CreatedAt); err != nil {
			return nil, connErr(err)
		}
		e.Category = domain.ExpenseCategory(category)
		expenses = append(expenses, e)
	}
	return expenses, connErr(rows.Err())
}

func (s *Store) SumExpensesByCategory(ctx context.Context, shopID string, from time.Time, to time.Time) (map[domain.ExpenseCategory]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE ($1 = '' OR shop_id = $1)
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at <= $3)
		GROUP BY category
	`, shopID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	sums := make(map[domain.ExpenseCategory]decimal.Decimal)
	for rows.Next() {
		var category string
		var total decimal.Decimal
		if err := rows.Scan(&category, &total); err != nil {
			return nil, connErr(err)
		}
		sums[domain.ExpenseCategory(category)] = total
	}
	return sums, connErr(rows.Err())
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, shop_id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.ShopID, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return connErr(err)
}

func (s *Store) ListAuditLogs(ctx context.Context, shopID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR shop_id = $1)
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, shopID, nullTime(from), nullTime(to), limit)
	if err != nil {
		return nil, connErr(err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ShopID, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, connErr(err)
		}
		logs = append(logs, entry)
	}
	return logs, connErr(rows.Err())
}

func scanProduct(row rowScanner, notFoundMsg string) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.GroupName, &p.UnitTypeID, &p.SalePrice, &p.CostPrice, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound(notFoundMsg)
		}
		return nil, connErr(err)
	}
	return &p, nil
}

// connErr classifies connectivity failures as Unavailable so the HTTP layer
// answers 503 instead of 500. Errors the server actually responded with
// (constraint violations and the like) pass through unchanged.
func connErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr) ||
		pgconn.SafeToRetry(err) {
		return apperr.Unavailable("database unavailable", err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
