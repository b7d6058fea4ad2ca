package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:   	Callsign handling.
 *
 * Description:	Parse and format "CALL" or "CALL-SSID" text, and
 *		convert to/from the AX.25 7 octet address format.
 *
 *		Each address field contains the callsign characters,
 *		space padded to 6, shifted left one bit.  The 7th octet
 *		holds the SSID:
 *
 *			0 1 1 SSID3 SSID2 SSID1 SSID0 LAST
 *
 *		LAST is set on the final address of the frame.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

var callsign_log = log.WithPrefix("Callsign")

// The destination callsign used for broadcast payloads of this application.
// This is currently an experimental callsign.  Consider requesting another
// if this tool gains traction.
const BROADCAST_CALLSIGN = "APZ222"

// The application identity, from the experimental APZxxx range.
const APP_CALLSIGN = "APZ200"

const AX25_ADDR_LEN = 7

// A station callsign with optional SSID.
// The zero value (empty call) means unspecified / broadcast.
type Callsign struct {
	Call string /* 1-6 upper case letters and digits. */
	SSID int    /* 0-15.  0 is customarily not displayed. */
}

func (c Callsign) IsEmpty() bool {
	return len(c.Call) == 0
}

func (c Callsign) String() string {
	if c.SSID > 0 {
		return fmt.Sprintf("%s-%d", c.Call, c.SSID)
	}

	return c.Call
}

var broadcast_destination = Callsign{Call: BROADCAST_CALLSIGN}

/*------------------------------------------------------------------
 *
 * Name:	callsign_from_string
 *
 * Purpose:	Parse "CALL" or "CALL-SSID" text into a Callsign.
 *
 * Description:	An empty string yields the empty (broadcast) callsign.
 *		Letters are folded to upper case.  A callsign longer
 *		than 6 characters, a character outside A-Z 0-9, or an
 *		SSID outside 0-15 is an error.
 *
 *---------------------------------------------------------------*/

func callsign_from_string(str string) (Callsign, error) {
	if len(str) == 0 {
		return Callsign{}, nil
	}

	var call = str
	var ssid = 0

	if base, ssid_text, found := strings.Cut(str, "-"); found {
		call = base

		var n, err = strconv.Atoi(ssid_text)
		if err != nil {
			return Callsign{}, fmt.Errorf("bad SSID %q in callsign %q", ssid_text, str)
		}
		ssid = n
	}

	call = strings.ToUpper(call)

	if len(call) < 1 || len(call) > 6 {
		return Callsign{}, fmt.Errorf("callsign %q must be 1 to 6 characters", str)
	}

	for _, b := range []byte(call) {
		if !((b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')) {
			return Callsign{}, fmt.Errorf("callsign %q may contain only letters and digits", str)
		}
	}

	if ssid < 0 || ssid > 15 {
		return Callsign{}, fmt.Errorf("SSID of %q must be in range of 0 to 15", str)
	}

	return Callsign{Call: call, SSID: ssid}, nil
}

/*------------------------------------------------------------------
 *
 * Name:	encode_ax25_callsign
 *
 * Purpose:	Encode one callsign as a 7 octet AX.25 address field.
 *
 * Inputs:	c	- Callsign to encode.
 *
 *		last	- True for the final address in the list.
 *
 * Returns:	The 7 octet encoding.
 *
 * Errors:	An oversize callsign or out of range SSID means the
 *		caller has constructed an invalid input.  Fatal.
 *
 *---------------------------------------------------------------*/

func encode_ax25_callsign(c Callsign, last bool) []byte {
	if c.SSID < 0 || c.SSID > 15 {
		callsign_log.Fatalf("invalid SSID: %d", c.SSID)
	}

	if len(c.Call) > 6 {
		callsign_log.Fatalf("invalid callsign '%s'", c.Call)
	}

	var addr = make([]byte, AX25_ADDR_LEN)

	for i := 0; i < 6; i++ {
		var ch byte = ' '
		if i < len(c.Call) {
			ch = c.Call[i]
		}
		addr[i] = ch << 1
	}

	addr[6] = 0x60 | byte(c.SSID<<1)
	if last {
		addr[6] |= 0x01
	}

	return addr
}

/*------------------------------------------------------------------
 *
 * Name:	decode_ax25_callsign
 *
 * Purpose:	Decode one AX.25 address field from a frame.
 *
 * Inputs:	frame	- Unstuffed AX.25 frame contents.
 *
 *		offset	- Where the address is expected to start.
 *
 * Returns:	The callsign, whether this was the last address, and
 *		the offset just past it.  An error if fewer than 7
 *		octets remain or the reserved bits are not set.
 *
 *---------------------------------------------------------------*/

func decode_ax25_callsign(frame []byte, offset int) (Callsign, bool, int, error) {
	if offset+AX25_ADDR_LEN > len(frame) {
		return Callsign{}, false, 0, fmt.Errorf("unable to decode callsign with short frame")
	}

	if frame[offset+6]&0x60 != 0x60 {
		return Callsign{}, false, 0, fmt.Errorf("unable to decode callsign with SSID mask")
	}

	var call strings.Builder
	for i := offset; i < offset+6; i++ {
		var ch = frame[i] >> 1
		if ch == ' ' {
			break
		}
		call.WriteByte(ch)
	}

	var last = frame[offset+6]&0x01 != 0

	// The original tool masked with 0x17 here, which loses octet bit 3
	// (SSID bit 2).  0x1E is the correct mask per AX.25 section 3.12.2.
	var ssid = int(frame[offset+6]&0x1E) >> 1

	return Callsign{Call: call.String(), SSID: ssid}, last, offset + AX25_ADDR_LEN, nil
}
