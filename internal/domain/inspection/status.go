package inspection

// StatusMethod is the custom notification carrying StatusParams.
const StatusMethod = "deepscan/status"

// StatusCode is the per-document state shown in the editor status bar.
type StatusCode int

const (
	StatusNone StatusCode = iota
	StatusOK
	StatusWarn
	StatusFail
	StatusEmptyToken
	StatusInvalidToken
	StatusExpiredToken
	StatusSuspendedToken
)

var statusNames = [...]string{
	StatusNone:           "none",
	StatusOK:             "ok",
	StatusWarn:           "warn",
	StatusFail:           "fail",
	StatusEmptyToken:     "emptyToken",
	StatusInvalidToken:   "invalidToken",
	StatusExpiredToken:   "expiredToken",
	StatusSuspendedToken: "suspendedToken",
}

func (s StatusCode) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// StatusParams is the payload of the deepscan/status notification.
type StatusParams struct {
	State   StatusCode `json:"state"`
	Message string     `json:"message,omitempty"`
	URI     string     `json:"uri,omitempty"`
}

// ErrorKind classifies a failed inspection.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindRemoteFailure
	KindTimeout
	KindEmptyToken
	KindInvalidToken
	KindExpiredToken
	KindSuspendedToken
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRemoteFailure:
		return "remote_failure"
	case KindTimeout:
		return "timeout"
	case KindEmptyToken:
		return "empty_token"
	case KindInvalidToken:
		return "invalid_token"
	case KindExpiredToken:
		return "expired_token"
	case KindSuspendedToken:
		return "suspended_token"
	default:
		return "unknown"
	}
}

// IsToken reports whether the kind is a token-lifecycle failure.
func (k ErrorKind) IsToken() bool {
	switch k {
	case KindEmptyToken, KindInvalidToken, KindExpiredToken, KindSuspendedToken:
		return true
	}
	return false
}

// Status returns the status code reported for a failure of this kind.
func (k ErrorKind) Status() StatusCode {
	switch k {
	case KindNone:
		return StatusOK
	case KindEmptyToken:
		return StatusEmptyToken
	case KindInvalidToken:
		return StatusInvalidToken
	case KindExpiredToken:
		return StatusExpiredToken
	case KindSuspendedToken:
		return StatusSuspendedToken
	default:
		return StatusFail
	}
}
