// Package sip inspects rewritten SIP payloads with gosip.
package sip

import (
	"fmt"

	"github.com/ghettovoice/gosip/sip"
	"github.com/ghettovoice/gosip/sip/parser"

	"firestige.xyz/icom/internal/core"
	"firestige.xyz/icom/internal/core/decoder"
	"firestige.xyz/icom/internal/log"
)

// Summary is what the inspector extracts from one message.
type Summary struct {
	Request    bool
	Method     string // Requests only
	StatusCode int    // Responses only
	CallID     string
	StartLine  string
	Headers    int
}

// Inspector parses the UDP payload of a rewritten frame and logs it.
type Inspector struct {
	parser *parser.PacketParser
	logger log.Logger
}

// New creates an inspector logging through logger.
func New(logger log.Logger) *Inspector {
	logger = logger.WithField("inspector", "sip")
	return &Inspector{
		parser: parser.NewPacketParser(newLoggerAdapter(logger)),
		logger: logger,
	}
}

// Inspect parses the payload at the offsets in m as SIP. The payload is
// the one the filter scanned, so foldOffset indexes into it directly.
// Payloads that are not SIP return an error wrapping core.ErrNotSIP.
func (i *Inspector) Inspect(frame []byte, m decoder.Match, foldOffset int) error {
	payload, ok := decoder.Payload(frame, m)
	if !ok {
		return fmt.Errorf("%w: payload offset %d outside frame", core.ErrNotSIP, m.PayloadOffset)
	}
	summary, err := i.Parse(payload)
	if err != nil {
		return err
	}

	if i.logger.IsDebugEnabled() {
		fields := map[string]interface{}{
			"call_id": summary.CallID,
			"headers": summary.Headers,
			"merged":  lineAt(payload, foldOffset),
		}
		if summary.Request {
			fields["method"] = summary.Method
		} else {
			fields["status"] = summary.StatusCode
		}
		i.logger.WithFields(fields).Debug("rewritten SIP message")
	}
	return nil
}

// Parse parses payload as a single SIP message.
func (i *Inspector) Parse(payload []byte) (Summary, error) {
	if !Detect(payload) {
		return Summary{}, core.ErrNotSIP
	}
	msg, err := i.parser.ParseMessage(payload)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", core.ErrNotSIP, err)
	}
	return summarize(msg), nil
}

func summarize(msg sip.Message) Summary {
	headers := msg.Headers()
	s := Summary{
		StartLine: msg.StartLine(),
		Headers:   len(headers),
	}
	for _, h := range headers {
		if h.Name() == "Call-ID" {
			s.CallID = h.Value()
			break
		}
	}
	switch m := msg.(type) {
	case sip.Request:
		s.Request = true
		s.Method = string(m.Method())
	case sip.Response:
		s.StatusCode = int(m.StatusCode())
	}
	return s
}
