package models

import (
	"github.com/shopspring/decimal"
)

// Default target for a micro-investment goal created on first investment into a fund
var DefaultFundTarget = decimal.NewFromInt(10_000_000)

type Fund struct {
	Key     string
	Name    string
	Manager string
	Yield   string
	Risk    string
}

// GoalTitle is the title of the micro-investment goal that tracks the fund
func (f Fund) GoalTitle() string {
	return f.Manager + " " + f.Name
}

var funds = []Fund{
	{Key: "xeno-balanced", Name: "Balanced Fund", Manager: "Xeno", Yield: "+12.5% p.a", Risk: "Low"},
	{Key: "uap-equity", Name: "Equity Fund", Manager: "UAP Old Mutual", Yield: "+15.2% p.a", Risk: "Medium"},
	{Key: "icea-money-market", Name: "Money Market", Manager: "ICEA Lion", Yield: "+11.0% p.a", Risk: "Very Low"},
}

func Funds() []Fund {
	out := make([]Fund, len(funds))
	copy(out, funds)
	return out
}

func FundByKey(key string) (Fund, bool) {
	for _, f := range funds {
		if f.Key == key {
			return f, true
		}
	}
	return Fund{}, false
}
