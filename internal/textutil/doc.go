// Package textutil normalizes artifact names before they are used as remote
// object names.
package textutil
