package types

// DeviceInfo is the public identity of a registered device.
// It is the payload of register responses, `peers` entries and `device-joined`.
type DeviceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	Type string `json:"type"` // phone | tablet | desktop
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	ID string `json:"id"`
}
