package models

import "time"

// FeatureRow holds rolling indicators computed from one symbol's ordered
// intraday series. Nil pointers mean the lookback window was incomplete;
// this is expected for the first observations, not an error.
type FeatureRow struct {
	Symbol        string
	Timestamp     time.Time
	Close         float64
	Volume        int64
	Ret1          *float64
	SMA5          *float64
	SMA20         *float64
	Vol20         *float64
	MomentumProxy *float64
	Sector        *string
}

// Split labels for supervised rows.
const (
	SplitTrain = "train"
	SplitTest  = "test"
)

// SupervisedRow is a FeatureRow with a forward-return target attached.
// Rows whose future bar does not exist are dropped before this is built.
type SupervisedRow struct {
	FeatureRow
	Target float64
	Split  string
}

// DriftReport is the per-feature drift score for one monitoring run.
// PSI is nil when either window had no usable data or zero value range.
type DriftReport struct {
	Feature   string
	PSI       *float64
	RunID     string
	CreatedAt time.Time
}

// FeatureColumns lists the model input columns in a stable order.
func FeatureColumns() []string {
	return []string{"ret_1", "sma_5", "sma_20", "vol_20", "momentum_proxy"}
}

// Value extracts a named feature from the row; ok is false for nil values.
func (r FeatureRow) Value(name string) (float64, bool) {
	switch name {
	case "close":
		return r.Close, true
	case "volume":
		return float64(r.Volume), true
	case "ret_1":
		if r.Ret1 != nil {
			return *r.Ret1, true
		}
	case "sma_5":
		if r.SMA5 != nil {
			return *r.SMA5, true
		}
	case "sma_20":
		if r.SMA20 != nil {
			return *r.SMA20, true
		}
	case "vol_20":
		if r.Vol20 != nil {
			return *r.Vol20, true
		}
	case "momentum_proxy":
		if r.MomentumProxy != nil {
			return *r.MomentumProxy, true
		}
	}
	return 0, false
}
