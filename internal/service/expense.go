package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"shopkhata/backend/internal/apperr"
	"shopkhata/backend/internal/domain"
)

func (s *Service) CreateExpenseType(ctx context.Context, req domain.ExpenseTypeCreateRequest) (domain.ExpenseType, error) {
	if err := s.check(req); err != nil {
		return domain.ExpenseType{}, err
	}

	expenseType := domain.ExpenseType{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(req.Title),
		Category:  req.Category,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateExpenseType(ctx, expenseType)
	if err != nil {
		return domain.ExpenseType{}, err
	}
	return *created, nil
}

func (s *Service) ListExpenseTypes(ctx context.Context) ([]domain.ExpenseType, error) {
	return s.repo.ListExpenseTypes(ctx)
}

// CreateExpense books an expense under a type. Salary expenses are derived:
// the amount is copied from the employee's current salary and the title is
// generated from the employee's name.
func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	if err := s.check(req); err != nil {
		return domain.Expense{}, err
	}

	expenseType, err := s.repo.GetExpenseTypeByID(ctx, req.TypeID)
	if err != nil {
		return domain.Expense{}, err
	}

	expense := domain.Expense{
		ID:        uuid.NewString(),
		ShopID:    s.shopID(ctx),
		Title:     strings.TrimSpace(req.Title),
		TypeID:    expenseType.ID,
		TypeTitle: expenseType.Title,
		Category:  expenseType.Category,
		Amount:    req.Amount,
		Comments:  strings.TrimSpace(req.Comments),
		CreatedAt: time.Now().UTC(),
	}

	if expenseType.Category == domain.ExpenseCategorySalary {
		if req.EmployeeID == "" {
			return domain.Expense{}, apperr.Validation("employee_id is required for salary expenses")
		}
		employee, err := s.repo.GetEmployeeByID(ctx, req.EmployeeID)
		if err != nil {
			return domain.Expense{}, err
		}
		expense.EmployeeID = employee.ID
		expense.EmployeeName = employee.Name
		expense.Amount = employee.Salary
		expense.Title = "Salary - " + employee.Name
	} else {
		if !expense.Amount.IsPositive() {
			return domain.Expense{}, apperr.Validation("amount must be positive")
		}
		if expense.Title == "" {
			return domain.Expense{}, apperr.Validation("title is required")
		}
	}

	created, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		return domain.Expense{}, err
	}

	s.logAudit(ctx, "expense_create", "expense", created.ID, "category="+string(created.Category)+",amount="+created.Amount.String())
	return *created, nil
}

func (s *Service) ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx, s.shopID(ctx), from, to)
}
