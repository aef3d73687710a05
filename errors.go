package jsbridge

import "github.com/wippyai/jsbridge/errors"

// ErrInvokerClosed is returned when an invoker rejects work after shutdown.
var ErrInvokerClosed = errors.Closed(errors.PhaseInvoke, "invoker")
