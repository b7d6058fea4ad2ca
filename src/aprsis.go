package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:   	APRS transport using the APRS-IS internet service.
 *
 * Description:	APRS-IS mirrors RF traffic heard by IGates onto a
 *		TCP text protocol.  Lines are CRLF terminated.  On
 *		connect the server sends a banner comment, we log in,
 *		and then packets stream in the TNC2 monitoring format:
 *
 *			SRC>DEST,DIGI1,DIGI2:INFO
 *
 *		Lines starting with "#" are server chatter and are
 *		ignored.
 *
 *		We log in with the documented receive-only passcode
 *		of -1, so this transport cannot transmit.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

var aprsis_log = log.WithPrefix("InternetAPRSInterface")

const APRS_IS_SOFTWARE_NAME = "watch"
const APRS_IS_SOFTWARE_VERSION = "0.0.1"

/* "All 'packets' sent to APRS-IS must be in the TNC2 format terminated */
/* by a carriage return, line feed sequence.  No line may exceed 512 bytes */
/* including the CR/LF sequence."  We are more generous on receive. */
const APRS_IS_MAX_LINE = 1024

type InternetAPRSInterface struct {
	conn net.Conn
}

/*-------------------------------------------------------------------
 *
 * Name:        new_internet_aprs_interface
 *
 * Purpose:     Connect and log in to an APRS-IS server.
 *
 * Inputs:	callsign	- Login callsign for this station.
 *
 *		hostname	- Typically "rotate.aprs2.net".
 *
 *		port		- Typically 14580.
 *
 * Description:	The server greets us with a comment line such as
 *		"# aprsc 2.1.15".  We answer with the login line and
 *		read the server's verdict.  With passcode -1 we are
 *		"unverified", which is fine for listening.
 *
 *-----------------------------------------------------------------*/

func new_internet_aprs_interface(callsign Callsign, hostname string, port int) *InternetAPRSInterface {
	var conn, err = net.Dial("tcp", net.JoinHostPort(hostname, strconv.Itoa(port)))
	if err != nil {
		aprsis_log.Fatalf("failed to open APRS-IS socket: %s", err)
	}

	var i = &InternetAPRSInterface{conn: conn}

	var banner = i.read_line(0)
	if banner == nil {
		aprsis_log.Fatalf("failed to read server banner")
	}

	var server_version = strings.TrimPrefix(string(banner), "# ")
	aprsis_log.Infof("connected to '%s'", server_version)

	var login = fmt.Sprintf("user %s pass -1 vers %s %s",
		callsign, APRS_IS_SOFTWARE_NAME, APRS_IS_SOFTWARE_VERSION)
	i.write_line(login)

	var response = i.read_line(0)
	if response == nil {
		aprsis_log.Fatalf("failed to read login response")
	}
	aprsis_log.Infof("login response '%s'", string(response))

	return i
}

func (i *InternetAPRSInterface) Close() {
	i.conn.Close()
}

// Sending requires a real passcode and an RF gateway.  Not here.
func (i *InternetAPRSInterface) SendFrame(info []byte, source Callsign, destination Callsign, digipeaters []Callsign) error {
	return fmt.Errorf("sending via the internet is not supported")
}

/*-------------------------------------------------------------------
 *
 * Name:        ReceiveFrame
 *
 * Purpose:     Receive one packet line from the server.
 *
 * Inputs:	timeout_ms	- Give up after this long.
 *				  0 means wait indefinitely.
 *
 * Returns:	The parsed frame, or nil on timeout.  Server comment
 *		lines and unparseable lines are dropped and reported
 *		as nil so the caller just tries again.
 *
 *-----------------------------------------------------------------*/

func (i *InternetAPRSInterface) ReceiveFrame(timeout_ms uint32) (*ReceivedFrame, error) {
	var line = i.read_line(timeout_ms)
	if line == nil {
		return nil, nil
	}

	if strings.HasPrefix(string(line), "#") {
		return nil, nil /* Keepalive or informational. */
	}

	var frame, err = parse_tnc2_monitor_line(string(line))
	if err != nil {
		aprsis_log.Errorf("dropping malformed line: %s", err)
		return nil, nil
	}

	return frame, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        parse_tnc2_monitor_line
 *
 * Purpose:     Take apart one line of TNC2 monitoring format.
 *
 * Inputs:	line	- Without the CRLF.  For example:
 *
 *		KN6FVU-1>APX216,WIDE1-1,WIDE2-1:=3724.69N/12150.80Wx
 *
 * Returns:	The source, destination, digipeater path, and the
 *		information part.
 *
 *-----------------------------------------------------------------*/

func parse_tnc2_monitor_line(line string) (*ReceivedFrame, error) {
	var source_text, rest, found = strings.Cut(line, ">")
	if !found {
		return nil, fmt.Errorf("no source in line '%s'", line)
	}

	var path_text, info, found_info = strings.Cut(rest, ":")
	if !found_info {
		return nil, fmt.Errorf("no information part in line '%s'", line)
	}

	var source, err = callsign_from_string(source_text)
	if err != nil {
		return nil, fmt.Errorf("bad source in line '%s': %w", line, err)
	}

	var frame = ReceivedFrame{
		Source: source,
		Info:   []byte(info),
	}

	for n, field := range strings.Split(path_text, ",") {
		// Digipeaters that have handled the packet are flagged
		// with a trailing "*" in the monitoring format.
		field = strings.TrimSuffix(field, "*")

		var c, parse_err = callsign_from_string(field)
		if parse_err != nil {
			return nil, fmt.Errorf("bad address in line '%s': %w", line, parse_err)
		}

		if n == 0 {
			frame.Destination = c
		} else {
			frame.Digipeaters = append(frame.Digipeaters, c)
		}
	}

	if frame.Destination.IsEmpty() {
		return nil, fmt.Errorf("no destination in line '%s'", line)
	}

	return &frame, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        read_line
 *
 * Purpose:     Read one CRLF terminated line from the server.
 *
 * Inputs:	timeout_ms	- Give up after this long.
 *				  0 means wait indefinitely.
 *
 * Returns:	The line without its CRLF, or nil on timeout or on an
 *		over-length line.
 *
 * Errors:	A socket failure is fatal.
 *
 *-----------------------------------------------------------------*/

func (i *InternetAPRSInterface) read_line(timeout_ms uint32) []byte {
	var line []byte
	var deadline time.Time
	if timeout_ms != 0 {
		deadline = time.Now().Add(time.Duration(timeout_ms) * time.Millisecond)
	}

	var buf [1]byte
	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil
		}

		if err := i.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
			aprsis_log.Fatalf("failed to set read deadline: %s", err)
		}

		var n, err = i.conn.Read(buf[:])
		if err != nil {
			if net_err, ok := err.(net.Error); ok && net_err.Timeout() {
				continue
			}
			aprsis_log.Fatalf("failed to read from socket: %s", err)
		}

		if n != 1 {
			continue
		}

		line = append(line, buf[0])
		if len(line) > APRS_IS_MAX_LINE {
			aprsis_log.Errorf("line exceeds %d bytes, discarding", APRS_IS_MAX_LINE)
			return nil
		}

		if len(line) >= 2 && line[len(line)-2] == '\r' && line[len(line)-1] == '\n' {
			return line[:len(line)-2]
		}
	}
}

func (i *InternetAPRSInterface) write_line(line string) {
	if _, err := i.conn.Write([]byte(line + "\r\n")); err != nil {
		aprsis_log.Fatalf("failed to write to socket: %s", err)
	}
}
