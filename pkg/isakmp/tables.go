package isakmp

import (
	"fmt"

	"github.com/projectdiscovery/ikex/pkg/wire"
)

// notifyStatusBase splits error notifications from status
// notifications, the error range is 1-16383.
const notifyStatusBase = 16384

var exchangeTypes = map[byte]string{
	ExchangeMainMode:       "Main Mode",
	ExchangeAggressiveMode: "Aggressive Mode",
	ExchangeQuickMode:      "Quick Mode",
}

// Notify message types (RFC 2408 section 3.14.1).
var notifyTypes = map[uint16]string{
	1:     "INVALID-PAYLOAD-TYPE",
	2:     "DOI-NOT-SUPPORTED",
	3:     "SITUATION-NOT-SUPPORTED",
	4:     "INVALID-COOKIE",
	5:     "INVALID-MAJOR-VERSION",
	6:     "INVALID-MINOR-VERSION",
	7:     "INVALID-EXCHANGE-TYPE",
	8:     "INVALID-FLAGS",
	9:     "INVALID-MESSAGE-ID",
	10:    "INVALID-PROTOCOL-ID",
	11:    "INVALID-SPI",
	12:    "INVALID-TRANSFORM-ID",
	13:    "ATTRIBUTES-NOT-SUPPORTED",
	14:    "NO-PROPOSAL-CHOSEN",
	15:    "BAD-PROPOSAL-SYNTAX",
	16:    "PAYLOAD-MALFORMED",
	17:    "INVALID-KEY-INFORMATION",
	24:    "AUTHENTICATION-FAILED",
	16384: "CONNECTED",
}

// ExchangeTypeLabel resolves an exchange type code to the label the
// toolkit reports.
func ExchangeTypeLabel(code byte) string {
	if label, ok := exchangeTypes[code]; ok {
		return label
	}
	return fmt.Sprintf("Unknown(%d)", code)
}

// NotifyCode extracts the 2 byte notify code from a notification
// payload body. DOI, protocol ID and SPI size fields precede it.
func NotifyCode(body []byte) (uint16, bool) {
	return wire.Uint16(body, 6)
}

// NotifyLabel resolves a notify code to its RFC 2408 name.
func NotifyLabel(code uint16) string {
	if label, ok := notifyTypes[code]; ok {
		return label
	}
	return fmt.Sprintf("Unknown(%d)", code)
}

// IsErrorNotify reports whether a notify code falls in the error
// range. Status notifications start at 16384 and do not indicate a
// rejected exchange.
func IsErrorNotify(code uint16) bool {
	return code > 0 && code < notifyStatusBase
}
