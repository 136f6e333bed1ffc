package forecast

import "errors"

var (
	// ErrUnknownForecast indicates a forecast id not in the catalog.
	ErrUnknownForecast = errors.New("forecast: unknown forecast")

	// ErrUnknownMetric indicates a growth metric the engine does not model.
	ErrUnknownMetric = errors.New("forecast: unknown metric")

	// ErrInvalidYear indicates a year outside the forecast window.
	ErrInvalidYear = errors.New("forecast: year outside forecast window")

	// ErrInvalidRate indicates a growth rate at or below -100%.
	ErrInvalidRate = errors.New("forecast: growth rate must be greater than -1")

	// ErrInvalidParams indicates parameters that cannot be read as a Request.
	ErrInvalidParams = errors.New("forecast: invalid parameters")
)
