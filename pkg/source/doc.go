// Package source defines the data source contract and the registry
// that holds every live source instance. Sources describe their
// operations through structured Capability records; the registry
// renders those records as markdown capability docs for planners and
// keeps data sources and function-backed sources in two parallel
// namespaces.
package source
