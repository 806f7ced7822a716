package score

import (
	"math"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"finhealth/internal/domain/budget"
	"finhealth/internal/domain/goal"
	"finhealth/internal/domain/transaction"
)

// Inputs is everything one computation reads. Transactions should cover
// the month containing Today; rows from other months are ignored.
type Inputs struct {
	Categories   []*budget.Category
	Goals        []*goal.Goal
	Transactions []*transaction.Transaction
	Today        civil.Date
}

// ComputeFactors derives the five factors. It is pure.
func ComputeFactors(in Inputs) Factors {
	month := transaction.MonthOf(in.Today)
	var current []*transaction.Transaction
	for _, t := range in.Transactions {
		if strings.HasPrefix(t.Date, month) {
			current = append(current, t)
		}
	}

	return Factors{
		BudgetAdherence: budgetAdherence(in.Categories),
		SavingsProgress: savingsProgress(in.Goals),
		Engagement:      engagement(current, in.Today),
		GoalsCompleted:  goalsCompleted(in.Goals),
		CashFlow:        cashFlow(current),
	}
}

// Composite combines factors into an integer score in [0, 100].
func Composite(f Factors, w Weights) int {
	sum := clamp(f.BudgetAdherence, 0, 1)*w.BudgetAdherence +
		clamp(f.SavingsProgress, 0, 1)*w.SavingsProgress +
		clamp(f.Engagement, 0, 1)*w.Engagement +
		clamp(f.GoalsCompleted, 0, 1)*w.GoalsCompleted +
		clamp(f.CashFlow, -1, 1)*w.CashFlow
	v := math.Round(sum * 100)
	if math.IsNaN(v) {
		return 0
	}
	return int(clamp(v, 0, 100))
}

// budgetAdherence is the share of budgeted categories not overspent. A user
// without budgets has nothing to adhere to and scores 0.
func budgetAdherence(cats []*budget.Category) float64 {
	if len(cats) == 0 {
		return 0
	}
	within := 0
	for _, c := range cats {
		if c.WithinBudget() {
			within++
		}
	}
	return float64(within) / float64(len(cats))
}

func savingsProgress(goals []*goal.Goal) float64 {
	if len(goals) == 0 {
		return 0
	}
	var total float64
	for _, g := range goals {
		total += g.CompletionRatio()
	}
	return total / float64(len(goals))
}

// engagement is the share of days so far this month with any activity.
func engagement(txns []*transaction.Transaction, today civil.Date) float64 {
	if today.Day <= 0 {
		return 0
	}
	days := make(map[string]struct{})
	for _, t := range txns {
		days[t.Date] = struct{}{}
	}
	return clamp(float64(len(days))/float64(today.Day), 0, 1)
}

func goalsCompleted(goals []*goal.Goal) float64 {
	if len(goals) == 0 {
		return 0
	}
	done := 0
	for _, g := range goals {
		if g.Completed() {
			done++
		}
	}
	return float64(done) / float64(len(goals))
}

// cashFlow is (income - expenses) / income for the month, in [-1, 1].
func cashFlow(txns []*transaction.Transaction) float64 {
	income, expenses := decimal.Zero, decimal.Zero
	for _, t := range txns {
		switch t.Direction {
		case transaction.DirectionIncome:
			income = income.Add(t.Amount)
		case transaction.DirectionExpense:
			expenses = expenses.Add(t.Amount)
		}
	}
	if !income.IsPositive() {
		return 0
	}
	r, _ := income.Sub(expenses).Div(income).Float64()
	return clamp(r, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
