// Package builtins collects the stock data sources into one factory
// table for registry initialization.
package builtins

import (
	"github.com/rhuss/relais/pkg/source"
	"github.com/rhuss/relais/pkg/source/builtins/booking"
	"github.com/rhuss/relais/pkg/source/builtins/commodities"
	"github.com/rhuss/relais/pkg/source/builtins/metal"
	"github.com/rhuss/relais/pkg/source/builtins/patent"
	"github.com/rhuss/relais/pkg/source/builtins/pinterest"
	"github.com/rhuss/relais/pkg/source/builtins/scholar"
	"github.com/rhuss/relais/pkg/source/builtins/tripadvisor"
	"github.com/rhuss/relais/pkg/source/builtins/twitter"
	"github.com/rhuss/relais/pkg/source/builtins/yahoofinance"
)

// All returns the factories for every builtin source, visible and
// suppressed alike. Registration order does not matter, the registry
// keys sources by name.
func All() []source.Factory {
	return []source.Factory{
		metal.Factory(),
		commodities.Factory(),
		patent.Factory(),
		scholar.Factory(),
		yahoofinance.Factory(),
		twitter.Factory(),
		booking.Factory(),
		pinterest.Factory(),
		tripadvisor.Factory(),
	}
}
