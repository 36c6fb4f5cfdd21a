package daemon

import "errors"

// Result codes mirror the numeric RPC result kinds. Clients
// that talk to the daemon over internal/rpcserver see these as small
// integers; internally they are distinguishable Go errors so callers can
// use errors.Is.
var (
	ErrFailed                           = errors.New("error: command failed")
	ErrBlocked                          = errors.New("error: another command is already running")
	ErrInvalidControlIP                 = errors.New("error: command not accepted from this IP")
	ErrCannotCommunicateWithSecurity    = errors.New("error: telescope failed to communicate with security system daemon")
	ErrSecuritySystemTripped            = errors.New("error: hard limits (security system) have been tripped")
	ErrTelescopeNotInitialized          = errors.New("error: telescope has not been initialized")
	ErrTelescopeNotUninitialized        = errors.New("error: telescope has already been initialized")
	ErrTelescopeNotHomed                = errors.New("error: telescope has not been homed")
	ErrOutsideHALimits                  = errors.New("error: requested position is outside the hour angle limits")
	ErrOutsideDecLimits                 = errors.New("error: requested position is outside the declination limits")
	ErrUnknownParkPosition              = errors.New("error: unknown park position")
)

// Code identifies one of the result kinds above (or success) for transport
// across the RPC surface. These values match the historical result code
// table so existing clients that switch on the numeric code keep working.
type Code int

const (
	Succeeded Code = 0
	Failed    Code = 1
	Blocked   Code = 2

	InvalidControlIP                    Code = 5
	CannotCommunicateWithSecuritySystem Code = 6
	SecuritySystemTripped               Code = 7

	TelescopeNotInitialized   Code = 10
	TelescopeNotHomed         Code = 11
	TelescopeNotUninitialized Code = 14

	OutsideHALimits  Code = 20
	OutsideDecLimits Code = 21
)

// CodeFor maps an error returned by a dispatcher method to its wire code.
// A nil err maps to Succeeded.
func CodeFor(err error) Code {
	switch {
	case err == nil:
		return Succeeded
	case errors.Is(err, ErrBlocked):
		return Blocked
	case errors.Is(err, ErrInvalidControlIP):
		return InvalidControlIP
	case errors.Is(err, ErrCannotCommunicateWithSecurity):
		return CannotCommunicateWithSecuritySystem
	case errors.Is(err, ErrSecuritySystemTripped):
		return SecuritySystemTripped
	case errors.Is(err, ErrTelescopeNotInitialized):
		return TelescopeNotInitialized
	case errors.Is(err, ErrTelescopeNotHomed):
		return TelescopeNotHomed
	case errors.Is(err, ErrTelescopeNotUninitialized):
		return TelescopeNotUninitialized
	case errors.Is(err, ErrOutsideHALimits):
		return OutsideHALimits
	case errors.Is(err, ErrOutsideDecLimits):
		return OutsideDecLimits
	default:
		return Failed
	}
}
