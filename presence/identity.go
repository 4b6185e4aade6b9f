package presence

import (
	"encoding/binary"
	"strings"

	"github.com/zeebo/blake3"
)

var adjectives = [...]string{
	"Swift", "Brave", "Calm", "Bold", "Keen", "Warm", "Cool", "Wise",
	"Bright", "Happy", "Gentle", "Lucky", "Noble", "Quiet", "Vivid", "Witty",
}

var animals = [...]string{
	"Panda", "Fox", "Owl", "Wolf", "Bear", "Hawk", "Lynx", "Orca",
	"Tiger", "Eagle", "Koala", "Raven", "Otter", "Falcon", "Shark", "Bison",
}

var icons = [...]string{
	"🦊", "🐼", "🦉", "🐺", "🐻", "🦅", "🐱", "🐬",
	"🐯", "🦁", "🐨", "🐦", "🦦", "🦈", "🐘", "🦋",
}

// Device types reported in DeviceInfo.Type.
const (
	TypePhone   = "phone"
	TypeTablet  = "tablet"
	TypeDesktop = "desktop"
)

func idHash(id string) uint64 {
	sum := blake3.Sum256([]byte(id))
	return binary.BigEndian.Uint64(sum[24:])
}

// DeviceName derives the display name of id, e.g. "Swift Panda".
// The result only depends on id.
func DeviceName(id string) string {
	h := idHash(id)
	return adjectives[h%uint64(len(adjectives))] + " " + animals[(h>>8)%uint64(len(animals))]
}

// DeviceIcon derives the emoji icon of id.
func DeviceIcon(id string) string {
	h := idHash(id)
	return icons[(h>>4)%uint64(len(icons))]
}

// DetectDeviceType classifies a User-Agent. Phone wins over tablet, desktop is the fallback.
func DetectDeviceType(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "iphone"),
		strings.Contains(ua, "android") && strings.Contains(ua, "mobile"):
		return TypePhone
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"):
		return TypeTablet
	default:
		return TypeDesktop
	}
}
