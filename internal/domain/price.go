package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price is one oracle observation.
type Price struct {
	Symbol      string
	Value       decimal.Decimal
	Confidence  decimal.Decimal
	PublishTime time.Time
}
