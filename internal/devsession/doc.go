// Package devsession serves the promoted output directory over HTTP, watches
// project sources and rebuilds on change. Browsers are told to reload only
// after a rebuild was promoted successfully.
package devsession
