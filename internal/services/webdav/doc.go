// Package webdav is the remote store client used by the upload pipeline.
//
// A Client is created once per endpoint at daemon start. When the endpoint is
// unreachable at that moment the Client is returned in a disabled state and
// every operation fails fast with ErrDisabled; the daemon keeps running and
// the local copies stay in the holding directory.
package webdav
