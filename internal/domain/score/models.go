package score

import "time"

// Factors are the normalized inputs of the composite score. Cash flow may
// be negative; the others lie in [0, 1].
type Factors struct {
	BudgetAdherence float64 `json:"budgetAdherence"`
	SavingsProgress float64 `json:"savingsProgress"`
	Engagement      float64 `json:"engagement"`
	GoalsCompleted  float64 `json:"goalsCompleted"`
	CashFlow        float64 `json:"cashFlow"`
}

type Weights struct {
	BudgetAdherence float64
	SavingsProgress float64
	Engagement      float64
	GoalsCompleted  float64
	CashFlow        float64
}

var DefaultWeights = Weights{
	BudgetAdherence: 0.35,
	SavingsProgress: 0.25,
	Engagement:      0.15,
	GoalsCompleted:  0.15,
	CashFlow:        0.10,
}

// Score is the cached result for one user. It is replaced wholesale.
type Score struct {
	UserID     string    `json:"userId"`
	Value      int       `json:"value"`
	Factors    Factors   `json:"factors"`
	ComputedAt time.Time `json:"computedAt"`
}
