package models

// BudgetPeriod is the window a generator quota resets over.
type BudgetPeriod string

// Supported budget periods.
const (
	BudgetDaily   BudgetPeriod = "daily"
	BudgetWeekly  BudgetPeriod = "weekly"
	BudgetMonthly BudgetPeriod = "monthly"
)

// BudgetPolicy caps how many generator answers may be produced per period.
type BudgetPolicy struct {
	MaxGenerations int64        `json:"max_generations" yaml:"max_generations"`
	Period         BudgetPeriod `json:"period" yaml:"period"`
}

// BudgetStatus is a policy together with the generations counted against it.
type BudgetStatus struct {
	Policy    BudgetPolicy `json:"policy"`
	Used      int64        `json:"used"`
	Remaining int64        `json:"remaining"`
}
