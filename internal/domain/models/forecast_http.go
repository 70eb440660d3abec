package models

// Requests for forecast HTTP endpoints. Zero values fall back to the
// configured forecast defaults.

type ForecastRequest struct {
	LookbackYears int     `query:"lookback_years" json:"lookback_years" validate:"gte=0,lte=50"`
	Lags          int     `query:"lags" json:"lags" validate:"gte=0,lte=60"`
	Window        int     `query:"window" json:"window" validate:"gte=0,lte=365"`
	TrainFraction float64 `query:"train_fraction" json:"train_fraction" validate:"gte=0,lt=1"`
	Seed          int64   `query:"seed" json:"seed"`
	Refresh       bool    `query:"refresh" json:"refresh"`
}

// Params converts the request into run parameters.
func (r ForecastRequest) Params() ForecastParams {
	return ForecastParams{
		LookbackYears: r.LookbackYears,
		Lags:          r.Lags,
		Window:        r.Window,
		TrainFraction: r.TrainFraction,
		Seed:          r.Seed,
	}
}

type PredictionsRequest struct {
	ForecastRequest
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}

type ImportancesRequest struct {
	ForecastRequest
	Top int `query:"top" json:"top" default:"20" validate:"gte=1,lte=100"`
}

// AccuracyResponse is the metrics panel of the dashboard.
type AccuracyResponse struct {
	RunID       string      `json:"run_id"`
	MAE         float64     `json:"mae"`
	MAPE        float64     `json:"mape"`
	MAPEPercent float64     `json:"mape_pct"`
	R2          float64     `json:"r2"`
	BestParams  HyperParams `json:"best_params"`
	BestCVScore float64     `json:"best_cv_score"`
	TrainSize   int         `json:"train_size"`
	TestSize    int         `json:"test_size"`
}
