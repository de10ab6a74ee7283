package protocol

// RequestCode identifies a request packet. It occupies the byte after the
// report id in every command.
type RequestCode byte

// Request codes.
const (
	ReqStatus                   RequestCode = 0x01
	ReqSetExposure              RequestCode = 0x02
	ReqSetAcquisitionParameters RequestCode = 0x03
	ReqSetFrameFormat           RequestCode = 0x04
	ReqSetExternalTrigger       RequestCode = 0x05
	ReqSetSoftwareTrigger       RequestCode = 0x06
	ReqClearMemory              RequestCode = 0x07
	ReqGetFrameFormat           RequestCode = 0x08
	ReqGetAcquisitionParameters RequestCode = 0x09
	ReqGetFrame                 RequestCode = 0x0A
	ReqSetOpticalTrigger        RequestCode = 0x0B
	ReqSetAllParameters         RequestCode = 0x0C
	ReqReadFlash                RequestCode = 0x1A
	ReqWriteFlash               RequestCode = 0x1B
	ReqEraseFlash               RequestCode = 0x1C
	ReqReset                    RequestCode = 0xF1
	ReqDetach                   RequestCode = 0xF2
)

// ReplyCode identifies a reply packet. It occupies the first byte of every
// reply. Each request code maps to exactly one reply code.
type ReplyCode byte

// Reply codes.
const (
	RepStatus                   ReplyCode = 0x81
	RepSetExposure              ReplyCode = 0x82
	RepSetAcquisitionParameters ReplyCode = 0x83
	RepSetFrameFormat           ReplyCode = 0x84
	RepSetExternalTrigger       ReplyCode = 0x85
	RepSetSoftwareTrigger       ReplyCode = 0x86
	RepClearMemory              ReplyCode = 0x87
	RepGetFrameFormat           ReplyCode = 0x88
	RepGetAcquisitionParameters ReplyCode = 0x89
	RepGetFrame                 ReplyCode = 0x8A
	RepSetOpticalTrigger        ReplyCode = 0x8B
	RepSetAllParameters         ReplyCode = 0x8C
	RepReadFlash                ReplyCode = 0x9A
	RepWriteFlash               ReplyCode = 0x9B
	RepEraseFlash               ReplyCode = 0x9C
)

// Reply returns the reply code paired with the request. The device forms it
// by setting the high bit of the request code. Reset and detach requests are
// fire-and-forget; no reply is awaited for them.
func (c RequestCode) Reply() ReplyCode {
	return ReplyCode(byte(c) | 0x80)
}

// HasReply reports whether the device answers the request with a reply
// packet.
func (c RequestCode) HasReply() bool {
	return c != ReqReset && c != ReqDetach
}

var requestNames = map[RequestCode]string{
	ReqStatus:                   "status",
	ReqSetExposure:              "set exposure",
	ReqSetAcquisitionParameters: "set acquisition parameters",
	ReqSetFrameFormat:           "set frame format",
	ReqSetExternalTrigger:       "set external trigger",
	ReqSetSoftwareTrigger:       "software trigger",
	ReqClearMemory:              "clear memory",
	ReqGetFrameFormat:           "get frame format",
	ReqGetAcquisitionParameters: "get acquisition parameters",
	ReqGetFrame:                 "get frame",
	ReqSetOpticalTrigger:        "set optical trigger",
	ReqSetAllParameters:         "set all parameters",
	ReqReadFlash:                "read flash",
	ReqWriteFlash:               "write flash",
	ReqEraseFlash:               "erase flash",
	ReqReset:                    "reset",
	ReqDetach:                   "detach",
}

func (c RequestCode) String() string {
	if name, ok := requestNames[c]; ok {
		return name
	}
	return "unknown request"
}

func (c ReplyCode) String() string {
	if name, ok := requestNames[RequestCode(byte(c)&^0x80)]; ok {
		return name
	}
	return "unknown reply"
}
