package service

import "time"

// WarrantyTerm is the coverage recorded on a settlement.
type WarrantyTerm struct {
	Days  int
	Start time.Time
	End   time.Time
}

// WarrantyFor returns nil when warranty is disabled. Otherwise coverage
// starts at ref and ends days calendar days later (AddDate handles month
// and year rollover, so DST shifts do not move the end date).
func WarrantyFor(enabled bool, days int, ref time.Time) *WarrantyTerm {
	if !enabled {
		return nil
	}
	return &WarrantyTerm{
		Days:  days,
		Start: ref,
		End:   ref.AddDate(0, 0, days),
	}
}
