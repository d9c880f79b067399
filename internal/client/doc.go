// Package client defines the capability contract for venue data adapters.
//
// An adapter implements MarketDataClient (or the smaller DataClient for
// non-market feeds). Connect and Disconnect are required; every other hook
// is optional. Adapters embed BaseMarketDataClient and override the hooks
// they support - the base reports unimplemented required hooks as fatal
// integration defects and unimplemented optional hooks as declared
// capability gaps, distinguishable with errors.Is.
package client
