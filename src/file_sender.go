package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:   	Send a file over APRS.
 *
 * Description:	A transfer is a header packet announcing the name,
 *		size, and transfer id, followed by the file contents
 *		as numbered chunk packets.  Everything goes out as
 *		ACKless broadcasts; the retransmission passes of the
 *		packet layer are the only loss recovery.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

var file_sender_log = log.WithPrefix("FileSender")

type FileSender struct {
	aprs             *APRSPacketInterface
	next_transfer_id uint32
}

func new_file_sender(aprs *APRSPacketInterface) *FileSender {
	return &FileSender{aprs: aprs}
}

/*-------------------------------------------------------------------
 *
 * Name:        send_file
 *
 * Purpose:     Send one file.
 *
 * Inputs:	filename	- Path of the file to send.  Only the
 *				  base name travels over the air.
 *
 *		max_chunk_size	- Largest file chunk, bytes.
 *				  0 means do not chunk the file.
 *
 *		callsign	- Our station callsign.
 *
 *		peer_callsign	- Empty for broadcast mode.
 *
 *		digipeaters	- Relay path for all frames.
 *
 * Description:	Files are read into memory whole; they are assumed
 *		to fit.  A file read failure aborts this send but is
 *		not fatal to the program.
 *
 *-----------------------------------------------------------------*/

func (s *FileSender) send_file(filename string, max_chunk_size int, callsign Callsign, peer_callsign Callsign, digipeaters []Callsign) error {
	var transfer_filename = filepath.Base(filename)

	var file_contents, err = os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", filename, err)
	}

	var header = FileTransferHeader{
		ID:       s.get_next_transfer_id(),
		Filename: transfer_filename,
		Size:     uint64(len(file_contents)),
	}

	file_sender_log.Infof("sending file '%s'", filename)
	file_sender_log.Infof("name='%s', size=%d", transfer_filename, len(file_contents))

	var chunks []FileTransferChunk
	var chunk_id = uint32(1)
	for offset := 0; offset < len(file_contents); {
		var chunk_size = max_chunk_size
		if chunk_size == 0 || chunk_size > len(file_contents)-offset {
			chunk_size = len(file_contents) - offset
		}

		chunks = append(chunks, FileTransferChunk{
			ID:      header.ID,
			ChunkID: chunk_id,
			Chunk:   file_contents[offset : offset+chunk_size],
		})

		chunk_id++
		offset += chunk_size
	}

	if !peer_callsign.IsEmpty() {
		// Directed mode would wait for ACKs from the peer.
		return fmt.Errorf("directed mode is not supported yet")
	}

	return s.send_broadcast(&header, chunks, callsign, digipeaters)
}

func (s *FileSender) send_broadcast(header *FileTransferHeader, chunks []FileTransferChunk, callsign Callsign, digipeaters []Callsign) error {
	var packet = Packet{Header: header}
	if err := s.aprs.send_broadcast_packet(&packet, callsign, digipeaters); err != nil {
		return fmt.Errorf("failed to send header: %w", err)
	}

	for i := range chunks {
		var chunk_packet = Packet{Chunk: &chunks[i]}
		if err := s.aprs.send_broadcast_packet(&chunk_packet, callsign, digipeaters); err != nil {
			return fmt.Errorf("failed to send chunk %d: %w", chunks[i].ChunkID, err)
		}
	}

	file_sender_log.Infof("file '%s' sent", header.Filename)
	return nil
}

// Allocate a transfer id, skipping zero so that zero can mean
// "unset" on the wire.
func (s *FileSender) get_next_transfer_id() uint32 {
	s.next_transfer_id++
	if s.next_transfer_id == 0 {
		s.next_transfer_id++
	}

	return s.next_transfer_id
}
