package assets

import "time"

// FixedAsset is a capitalised asset depreciated straight-line over its
// useful life. BookValue starts at AcquisitionCost and never falls below
// ResidualValue.
type FixedAsset struct {
	ID              int64
	Name            string
	Category        string
	AcquisitionCost float64
	ResidualValue   float64
	BookValue       float64
	LifeMonths      int
	AcquiredAt      time.Time
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MonthlyDepreciation returns the straight-line charge for one period,
// capped so the book value cannot drop below the residual value.
func (a FixedAsset) MonthlyDepreciation() float64 {
	if a.LifeMonths <= 0 {
		return 0
	}
	remaining := a.BookValue - a.ResidualValue
	if remaining <= 0 {
		return 0
	}
	monthly := (a.AcquisitionCost - a.ResidualValue) / float64(a.LifeMonths)
	if monthly > remaining {
		return remaining
	}
	return monthly
}

// RunResult summarises one depreciation run.
type RunResult struct {
	Period      string  `json:"period"`
	Processed   int     `json:"processed"`
	Skipped     int     `json:"skipped"`
	Failed      int     `json:"failed"`
	TotalAmount float64 `json:"total_amount"`
}
