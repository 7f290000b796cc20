package at

const (
	// Console framing
	CR            = '\r'
	LF            = '\n'
	CRLF          = "\r\n"
	CommandPrefix = "at+"
	EscapeSeq     = "+++"

	// Radio module response codes
	OK    = "OK"
	ERROR = "ERROR"

	// URCs (Unsolicited Result Codes) emitted by the radio module
	UrcRecv = "at+recv="

	// Radio module commands
	CmdVersion     = "at+version"
	CmdJoin        = "at+join"
	CmdLoraStatus  = "at+get_config=lora:status"
	CmdSetDataRate = "at+set_config=lora:dr:%d"
	CmdSend        = "at+send=lora:%d:%s"

	// Local console commands handled by the node rather than the module
	CmdUartMode = "at+set_config=device:uart_mode:"
)

// PassthroughPort is the LoRaWAN application port used for frames
// received in transparent mode.
const PassthroughPort = 8

// Mode is the console UART operating mode.
type Mode int

const (
	ModeNormal      Mode = iota // frames are AT commands
	ModeTransparent             // frames are forwarded to the radio
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeTransparent:
		return "transparent"
	default:
		return "unknown"
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "normal":
		return ModeNormal, true
	case "transparent", "unvarnished":
		return ModeTransparent, true
	}
	return ModeNormal, false
}

type ResponseType int

const (
	TypeFinal ResponseType = iota // OK..., ERROR...
	TypeURC                       // Asynchronous notifications (at+recv=...)
	TypeData                      // Intermediate command output
)

// FrameClass is the classification of one completed console frame.
type FrameClass int

const (
	FrameCommand      FrameClass = iota // "at+" with a terminator
	FramePassthrough                    // transparent-mode payload
	FrameEscape                         // "+++" in transparent mode
	FrameMalformed                      // "at+" without a terminator
	FrameUnrecognized                   // anything else in normal mode
)

func (c FrameClass) String() string {
	switch c {
	case FrameCommand:
		return "command"
	case FramePassthrough:
		return "passthrough"
	case FrameEscape:
		return "escape"
	case FrameMalformed:
		return "malformed"
	case FrameUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}
