// Package staging sweeps expired entries out of the holding directory.
package staging
