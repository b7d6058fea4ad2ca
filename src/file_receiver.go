package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:   	Receive files from APRS.
 *
 * Description:	Headers and chunks for any number of concurrent
 *		transfers arrive interleaved, in any order.  Chunks
 *		are collected per transfer id and kept sorted; the
 *		longest contiguous run starting at chunk 1 is written
 *		to disk whenever it grows, so a partial transfer still
 *		leaves a useful prefix behind.  The transfer is
 *		complete when that prefix reaches the size announced
 *		in the header.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

var file_receiver_log = log.WithPrefix("FileReceiver")

// Drop a transfer when nothing new has arrived for this long.
const TRANSFER_EVICT_AGE_US = 3600 * US_PER_S

// State of one incoming transfer.
type file_chunks struct {
	last_time_us uint64
	header       *FileTransferHeader
	chunks       []FileTransferChunk
}

type FileReceiver struct {
	aprs      *APRSPacketInterface
	transfers []*file_chunks
	activity  *packet_activity_log /* Optional.  nil when not logging. */
}

func new_file_receiver(aprs *APRSPacketInterface, activity *packet_activity_log) *FileReceiver {
	return &FileReceiver{aprs: aprs, activity: activity}
}

/*-------------------------------------------------------------------
 *
 * Name:        receive
 *
 * Purpose:     Receive transfers until the process is interrupted.
 *
 * Inputs:	callsign	- Our station callsign.
 *
 *		peer_callsign	- Empty for broadcast mode; all
 *				  transfers heard are accepted.
 *
 *-----------------------------------------------------------------*/

func (r *FileReceiver) receive(callsign Callsign, peer_callsign Callsign) error {
	for {
		var packet, source, _, err = r.aprs.receive_broadcast_packet()
		if err != nil {
			file_receiver_log.Errorf("%s", err)
			continue
		}

		if !peer_callsign.IsEmpty() && source != peer_callsign {
			file_receiver_log.Infof("ignoring transfer from %s", source)
			continue
		}

		switch {
		case packet.Header != nil:
			file_receiver_log.Infof("received transfer request with id %d for file '%s'",
				packet.Header.ID, format_non_printables(packet.Header.Filename))
			r.handle_transfer_header(packet.Header)
		case packet.Chunk != nil:
			file_receiver_log.Infof("received transfer chunk id %d for transfer %d",
				packet.Chunk.ChunkID, packet.Chunk.ID)
			r.handle_transfer_chunk(packet.Chunk)
		default:
			file_receiver_log.Errorf("invalid packet received")
		}

		r.evict_stale(dtime_now_us())
	}
}

func (r *FileReceiver) get_file_chunks_for_id(id uint32) *file_chunks {
	for _, transfer := range r.transfers {
		if transfer.get_id() == id {
			return transfer
		}
	}

	return nil
}

func (fc *file_chunks) get_id() uint32 {
	if fc.header != nil {
		return fc.header.ID
	}

	if len(fc.chunks) == 0 {
		file_receiver_log.Fatalf("invalid file chunks tracker")
	}

	return fc.chunks[0].ID
}

/*-------------------------------------------------------------------
 *
 * Name:        handle_transfer_header
 *
 * Purpose:     Take delivery of a transfer announcement.
 *
 * Description:	The header may arrive before, between, or after the
 *		chunks, and again on every retransmission pass.  The
 *		latest copy wins.
 *
 *-----------------------------------------------------------------*/

func (r *FileReceiver) handle_transfer_header(header *FileTransferHeader) {
	if header.ID == 0 {
		file_receiver_log.Errorf("received header with missing id")
		return
	} else if !header.has_size {
		file_receiver_log.Errorf("received header with missing size")
		return
	} else if len(header.Filename) == 0 {
		file_receiver_log.Errorf("received header with missing filename")
		return
	}

	r.activity.log_header(header)

	var transfer = r.get_file_chunks_for_id(header.ID)
	if transfer == nil {
		r.transfers = append(r.transfers, &file_chunks{
			last_time_us: dtime_now_us(),
			header:       header,
		})
		return
	}

	transfer.last_time_us = dtime_now_us()
	transfer.header = header

	// The chunks may have been waiting on this header.
	r.write_prefix(transfer)
}

/*-------------------------------------------------------------------
 *
 * Name:        handle_transfer_chunk
 *
 * Purpose:     Take delivery of one piece of file contents.
 *
 *-----------------------------------------------------------------*/

func (r *FileReceiver) handle_transfer_chunk(chunk *FileTransferChunk) {
	if chunk.ID == 0 {
		file_receiver_log.Errorf("received chunk with missing id")
		return
	} else if chunk.ChunkID == 0 {
		file_receiver_log.Errorf("received chunk with missing chunk id")
		return
	} else if len(chunk.Chunk) == 0 {
		file_receiver_log.Errorf("received chunk with no contents")
		return
	}

	r.activity.log_chunk(chunk)

	var transfer = r.get_file_chunks_for_id(chunk.ID)
	if transfer == nil {
		r.transfers = append(r.transfers, &file_chunks{
			last_time_us: dtime_now_us(),
			chunks:       []FileTransferChunk{*chunk},
		})
		return
	}

	transfer.last_time_us = dtime_now_us()

	for i := range transfer.chunks {
		if transfer.chunks[i].ChunkID == chunk.ChunkID {
			if transfer.header != nil {
				file_receiver_log.Infof("ignoring chunk id %d that '%s' has already received",
					chunk.ChunkID, transfer.header.Filename)
			} else {
				file_receiver_log.Infof("ignoring chunk id %d that transfer %d has already received",
					chunk.ChunkID, transfer.get_id())
			}
			return
		}
	}

	transfer.chunks = append(transfer.chunks, *chunk)
	sort.Slice(transfer.chunks, func(a, b int) bool {
		return transfer.chunks[a].ChunkID < transfer.chunks[b].ChunkID
	})

	r.write_prefix(transfer)
}

/*-------------------------------------------------------------------
 *
 * Name:        write_prefix
 *
 * Purpose:     Persist the contiguous prefix of a transfer.
 *
 * Description:	Concatenate chunk contents while the ids run 1, 2,
 *		3, ...  A non-empty prefix is written to disk under
 *		the announced (sanitized) filename, overwriting any
 *		earlier, shorter prefix.  Nothing beyond the prefix
 *		is ever written.
 *
 *-----------------------------------------------------------------*/

func (r *FileReceiver) write_prefix(transfer *file_chunks) {
	var file_contents []byte
	var expected = uint32(1)
	for i := range transfer.chunks {
		if transfer.chunks[i].ChunkID != expected {
			break
		}

		file_contents = append(file_contents, transfer.chunks[i].Chunk...)
		expected++
	}

	if len(file_contents) == 0 {
		return
	}

	if transfer.header == nil {
		file_receiver_log.Infof("header unavailable to write file contents")
		return
	}

	var filename, err = sanitize_filename(transfer.header.Filename)
	if err != nil {
		file_receiver_log.Errorf("refusing transfer %d: %s", transfer.header.ID, err)
		return
	}

	file_receiver_log.Infof("writing file '%s' to disk", filename)
	if write_err := os.WriteFile(filename, file_contents, 0644); write_err != nil {
		file_receiver_log.Errorf("failed to write '%s': %s", filename, write_err)
		return
	}

	if uint64(len(file_contents)) == transfer.header.Size {
		file_receiver_log.Infof("file transfer '%s' complete", filename)
		r.activity.log_complete(transfer.header)
	}
}

// Drop transfers that have gone quiet.
func (r *FileReceiver) evict_stale(now_us uint64) {
	var kept = r.transfers[:0]
	for _, transfer := range r.transfers {
		if now_us-transfer.last_time_us > TRANSFER_EVICT_AGE_US {
			file_receiver_log.Infof("evicting stale transfer %d", transfer.get_id())
			continue
		}
		kept = append(kept, transfer)
	}
	r.transfers = kept
}

/*-------------------------------------------------------------------
 *
 * Name:        sanitize_filename
 *
 * Purpose:     Keep a hostile sender inside the working directory.
 *
 * Description:	The announced name travels over an unauthenticated
 *		radio channel.  Only a bare file name is acceptable:
 *		no directory separators, no absolute paths, nothing
 *		hidden, no "." or "..".
 *
 *-----------------------------------------------------------------*/

func sanitize_filename(name string) (string, error) {
	if strings.ContainsAny(name, "/\\") || filepath.IsAbs(name) {
		return "", fmt.Errorf("filename '%s' contains a path", format_non_printables(name))
	}

	if name == "" || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("filename '%s' is not acceptable", format_non_printables(name))
	}

	return name, nil
}

// Make an untrusted string safe for a log line.
func format_non_printables(s string) string {
	var out strings.Builder
	for _, b := range []byte(s) {
		if b >= 0x20 && b < 0x7F {
			out.WriteByte(b)
		} else {
			fmt.Fprintf(&out, "\\x%02x", b)
		}
	}

	return out.String()
}
