package services

import (
	"errors"
	"strings"
)

// Markers classify failures. Every *Error carries exactly one.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

var markerKinds = []struct {
	marker error
	kind   string
}{
	{ErrExternalTool, "external_tool"},
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrNotFound, "not_found"},
	{ErrTimeout, "timeout"},
	{ErrTransient, "transient"},
}

// Error is a classified failure raised at a pipeline boundary (yt-dlp, WebDAV,
// descriptor parsing). errors.Is matches both the marker and the cause.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Marker.Error())
	b.WriteString(": ")
	b.WriteString(e.detail())
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

func (e *Error) detail() string {
	var parts []string
	for _, p := range []string{e.Stage, e.Operation, e.Message} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Wrap classifies err under marker with stage and operation context. A nil
// marker means ErrTransient; a nil err produces a standalone failure.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{Marker: marker, Stage: stage, Operation: operation, Message: message, Cause: err}
}

// Kind returns the label for the marker carried by err, used for the
// error_kind log field. Unclassified errors count as transient.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.kind
		}
	}
	return "transient"
}

// StageOf reports the pipeline stage recorded on the outermost *Error in err.
func StageOf(err error) string {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Stage
	}
	return ""
}
