package sip

import "bytes"

var sipMethods = [][]byte{
	[]byte("INVITE"),
	[]byte("ACK"),
	[]byte("BYE"),
	[]byte("CANCEL"),
	[]byte("REGISTER"),
	[]byte("OPTIONS"),
	[]byte("PRACK"),
	[]byte("SUBSCRIBE"),
	[]byte("NOTIFY"),
	[]byte("PUBLISH"),
	[]byte("INFO"),
	[]byte("REFER"),
	[]byte("MESSAGE"),
	[]byte("UPDATE"),
}

// sipVersion starts every response status line.
var sipVersion = []byte("SIP/2.0")

// Detect reports whether data starts like a SIP request or response.
func Detect(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if bytes.HasPrefix(data, sipVersion) {
		return true
	}
	for _, method := range sipMethods {
		if bytes.HasPrefix(data, method) && len(data) > len(method) && data[len(method)] == ' ' {
			return true
		}
	}
	return false
}

// lineAt returns the line of payload holding index i, without its CRLF.
func lineAt(payload []byte, i int) string {
	if i < 0 || i >= len(payload) {
		return ""
	}
	start := bytes.LastIndexByte(payload[:i], '\n') + 1
	end := bytes.Index(payload[i:], []byte("\r\n"))
	if end == -1 {
		end = len(payload)
	} else {
		end += i
	}
	return string(payload[start:end])
}
