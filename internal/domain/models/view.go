package models

// SideView carries the fifteen bucket labels and net sums for one direction.
type SideView struct {
	RangeLabel []string `json:"range_label"`
	Net        []int64  `json:"net"`
}

// View is the chart-ready residual value summary for a single trading date.
// Marker positions are bucket indexes in [0, 15]; 15 means no bucket matched.
type View struct {
	Bear     SideView `json:"bear"`
	Bull     SideView `json:"bull"`
	BearMin  int      `json:"bear_min"`
	BullMax  int      `json:"bull_max"`
	BearCall int      `json:"bear_call"`
	BullCall int      `json:"bull_call"`
	Max      int64    `json:"max"`
	HSIClose float64  `json:"hsi_close"`
}

// DateOptions feeds the date dropdown of the residual value page.
type DateOptions struct {
	DateLabel []string `json:"date_label"`
	DateValue []int    `json:"date_value"`
}
