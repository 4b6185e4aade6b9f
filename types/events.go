package types

// Event types pushed over a device's stream.
const (
	EventPeers        = "peers"
	EventDeviceJoined = "device-joined"
	EventDeviceLeft   = "device-left"
	EventFileSent     = "file-sent"
	EventSharedUpdate = "shared-update"
)

// DeviceLeftPayload announces that a device went away.
type DeviceLeftPayload struct {
	ID string `json:"id"`
}

// FileSentPayload tells the target device that a file was addressed to it.
type FileSentPayload struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	FromName string `json:"from_name"`
	FromIcon string `json:"from_icon"`
}

// SharedUpdatePayload carries no data, clients refetch the shared listing.
type SharedUpdatePayload struct{}
