package attendance

import "net/http"

// Code is the stable machine-readable outcome of an eligibility decision.
type Code string

const (
	CodeOK              Code = "OK"
	CodeNoActiveSession Code = "NO_ACTIVE_SESSION"
	CodeLocationDenied  Code = "LOCATION_DENIED"
	CodeStudentNotFound Code = "STUDENT_NOT_FOUND"
	CodeRoomMismatch    Code = "ROOM_MISMATCH"
	CodeDeviceUsed      Code = "DEVICE_ALREADY_USED"
	CodeAlreadyMarked   Code = "ALREADY_MARKED"
)

// HTTPStatus maps an outcome to its response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeOK:
		return http.StatusCreated
	case CodeNoActiveSession, CodeLocationDenied, CodeRoomMismatch:
		return http.StatusForbidden
	case CodeStudentNotFound:
		return http.StatusNotFound
	case CodeDeviceUsed, CodeAlreadyMarked:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Decision is the outcome of one attendance submission. Every rejection is an
// expected, user-facing result, not an error; infrastructure failures travel
// separately as errors.
type Decision struct {
	Code      Code
	Message   string
	SessionID int64
	ZoneName  string
}

func (d Decision) Success() bool { return d.Code == CodeOK }
