package eventbus

import (
	"bytes"
	"fmt"

	"github.com/bytedance/sonic"
)

// Keepalive is the comment frame written when a stream has been idle.
// Streaming clients ignore it.
var Keepalive = []byte(": ping\n\n")

// Encode renders one event as a stream frame:
//
//	event: <type>\n
//	data: <json>\n
//	\n
func Encode(eventType string, payload any) ([]byte, error) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	// A newline inside either line would split the frame.
	if bytes.IndexByte(data, '\n') >= 0 || bytes.ContainsAny([]byte(eventType), "\r\n") {
		return nil, fmt.Errorf("encode %s: frame contains a line break", eventType)
	}

	var buf bytes.Buffer
	buf.Grow(len("event: ") + len(eventType) + len("\ndata: ") + len(data) + 2)
	buf.WriteString("event: ")
	buf.WriteString(eventType)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}
