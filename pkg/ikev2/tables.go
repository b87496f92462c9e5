package ikev2

import (
	"fmt"

	"github.com/projectdiscovery/ikex/pkg/wire"
)

// notifyStatusBase splits error notifications from status
// notifications, the error range is 1-16383.
const notifyStatusBase = 16384

var encrNames = map[uint16]string{
	3:  "ENCR_3DES",
	11: "ENCR_NULL",
	12: "ENCR_AES_CBC",
	13: "ENCR_AES_CTR",
	20: "ENCR_AES_GCM_16",
}

var prfNames = map[uint16]string{
	1: "PRF_HMAC_MD5",
	2: "PRF_HMAC_SHA1",
	4: "PRF_AES128_XCBC",
	5: "PRF_HMAC_SHA2_256",
	6: "PRF_HMAC_SHA2_384",
	7: "PRF_HMAC_SHA2_512",
}

var integNames = map[uint16]string{
	1:  "AUTH_HMAC_MD5_96",
	2:  "AUTH_HMAC_SHA1_96",
	5:  "AUTH_AES_XCBC_96",
	8:  "AUTH_HMAC_SHA2_256_128",
	13: "AUTH_HMAC_SHA2_384_192",
	14: "AUTH_HMAC_SHA2_512_256",
}

var notifyTypes = map[uint16]string{
	1:     "UNSUPPORTED_CRITICAL_PAYLOAD",
	4:     "INVALID_IKE_SPI",
	5:     "INVALID_MAJOR_VERSION",
	7:     "INVALID_SYNTAX",
	9:     "INVALID_MESSAGE_ID",
	11:    "INVALID_SPI",
	14:    "NO_PROPOSAL_CHOSEN",
	17:    "INVALID_KE_PAYLOAD",
	24:    "AUTHENTICATION_FAILED",
	34:    "SINGLE_PAIR_REQUIRED",
	35:    "NO_ADDITIONAL_SAS",
	36:    "INTERNAL_ADDRESS_FAILURE",
	37:    "FAILED_CP_REQUIRED",
	38:    "TS_UNACCEPTABLE",
	43:    "TEMPORARY_FAILURE",
	44:    "CHILD_SA_NOT_FOUND",
	16384: "INITIAL_CONTACT",
	16385: "SET_WINDOW_SIZE",
	16386: "ADDITIONAL_TS_POSSIBLE",
	16387: "IPCOMP_SUPPORTED",
	16389: "NAT_DETECTION_SOURCE_IP",
	16390: "NAT_DETECTION_DESTINATION_IP",
	16391: "COOKIE",
}

// EncrLabel resolves an encryption transform ID to its name.
func EncrLabel(id uint16) string {
	if name, ok := encrNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", id)
}

// PRFLabel resolves a PRF transform ID to its name.
func PRFLabel(id uint16) string {
	if name, ok := prfNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", id)
}

// IntegLabel resolves an integrity transform ID to its name.
func IntegLabel(id uint16) string {
	if name, ok := integNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", id)
}

// NotifyCode extracts the 2 byte notify code from a notify payload
// body. Protocol ID and SPI size fields precede it.
func NotifyCode(body []byte) (uint16, bool) {
	return wire.Uint16(body, 2)
}

// NotifyLabel resolves a notify code to its name.
func NotifyLabel(code uint16) string {
	if label, ok := notifyTypes[code]; ok {
		return label
	}
	return fmt.Sprintf("Unknown(%d)", code)
}

// IsErrorNotify reports whether a notify code falls in the error
// range. Status notifications start at 16384 and do not fail a probe.
func IsErrorNotify(code uint16) bool {
	return code > 0 && code < notifyStatusBase
}
