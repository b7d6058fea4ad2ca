package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:   	Application packet formats.
 *
 * Description:	Two message layers share this file.
 *
 *		PacketChunk is the outer container: one fragment of a
 *		serialized Packet, small enough to ride in a single
 *		APRS information part.
 *
 *		Packet is the application message, currently one of
 *		FileTransferHeader or FileTransferChunk.
 *
 *		Both use a tagged binary encoding: each field is a
 *		varint key (field number shifted left 3, wire type in
 *		the low bits) followed by either a varint value or a
 *		length prefixed byte string.  Unknown fields are
 *		skipped so the format can grow.  Zero ids and nil byte
 *		fields are left off the wire; ids are allocated skipping
 *		zero so a zero value reads back as "unset".  A file
 *		transfer header always carries its filename and size.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
)

/*
 * Wire types.
 */

const wire_varint = 0
const wire_bytes = 2

/*
 * PacketChunk field numbers.
 */

const chunk_field_payload_id = 1
const chunk_field_chunk_id = 2
const chunk_field_retransmit_id = 3
const chunk_field_total_payload_size = 4
const chunk_field_payload = 5

/*
 * Packet field numbers (the variant tag).
 */

const packet_field_file_transfer_header = 1
const packet_field_file_transfer_chunk = 2

/*
 * FileTransferHeader field numbers.
 */

const header_field_id = 1
const header_field_filename = 2
const header_field_size = 3

/*
 * FileTransferChunk field numbers.
 */

const ft_chunk_field_id = 1
const ft_chunk_field_chunk_id = 2
const ft_chunk_field_chunk = 3

// One fragment of a serialized Packet.
type PacketChunk struct {
	PayloadID        uint32 /* Which payload this fragment belongs to.  0 = unset. */
	ChunkID          uint32 /* 1 based ordinal within the payload.  0 = unset. */
	RetransmitID     uint32 /* Which transmission pass produced this.  Informational. */
	TotalPayloadSize uint32 /* Total serialized payload size.  Present when ChunkID == 1. */
	Payload          []byte /* The fragment contents. */
}

// A file transfer announcement.
type FileTransferHeader struct {
	ID       uint32 /* Links the header with its chunks.  0 = unset. */
	Filename string
	Size     uint64
	has_size bool /* Size 0 is legitimate for an empty file. */
}

// One piece of file contents.
type FileTransferChunk struct {
	ID      uint32 /* Transfer id from the header. */
	ChunkID uint32 /* 1 based position within the file. */
	Chunk   []byte
}

// The application message, exactly one variant set.
type Packet struct {
	Header *FileTransferHeader
	Chunk  *FileTransferChunk
}

/*------------------------------------------------------------------
 *
 * Varint plumbing.
 *
 *---------------------------------------------------------------*/

func append_uvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}

	return append(buf, byte(v))
}

func read_uvarint(buf []byte, offset int) (uint64, int, error) {
	var v uint64
	var shift uint

	for i := offset; i < len(buf); i++ {
		var b = buf[i]
		if shift >= 64 {
			return 0, 0, fmt.Errorf("varint overflow")
		}

		v |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}

	return 0, 0, fmt.Errorf("truncated varint")
}

func append_varint_field(buf []byte, field int, v uint64) []byte {
	buf = append_uvarint(buf, uint64(field<<3|wire_varint))
	return append_uvarint(buf, v)
}

func append_bytes_field(buf []byte, field int, v []byte) []byte {
	buf = append_uvarint(buf, uint64(field<<3|wire_bytes))
	buf = append_uvarint(buf, uint64(len(v)))
	return append(buf, v...)
}

func read_bytes_value(buf []byte, offset int) ([]byte, int, error) {
	var length, next, err = read_uvarint(buf, offset)
	if err != nil {
		return nil, 0, err
	}

	if uint64(len(buf)-next) < length {
		return nil, 0, fmt.Errorf("truncated byte field")
	}

	return buf[next : next+int(length)], next + int(length), nil
}

// Skip a field of unknown number so old receivers tolerate new senders.
func skip_field(buf []byte, offset int, wire_type int) (int, error) {
	switch wire_type {
	case wire_varint:
		var _, next, err = read_uvarint(buf, offset)
		return next, err
	case wire_bytes:
		var _, next, err = read_bytes_value(buf, offset)
		return next, err
	default:
		return 0, fmt.Errorf("unsupported wire type %d", wire_type)
	}
}

/*------------------------------------------------------------------
 *
 * Name:	packet_chunk_serialize / packet_chunk_parse
 *
 * Purpose:	The outer container carried in APRS information parts.
 *
 *---------------------------------------------------------------*/

func packet_chunk_serialize(chunk *PacketChunk) []byte {
	var buf = make([]byte, 0, len(chunk.Payload)+24)

	if chunk.PayloadID != 0 {
		buf = append_varint_field(buf, chunk_field_payload_id, uint64(chunk.PayloadID))
	}
	if chunk.ChunkID != 0 {
		buf = append_varint_field(buf, chunk_field_chunk_id, uint64(chunk.ChunkID))
	}
	if chunk.RetransmitID != 0 {
		buf = append_varint_field(buf, chunk_field_retransmit_id, uint64(chunk.RetransmitID))
	}
	if chunk.TotalPayloadSize != 0 {
		buf = append_varint_field(buf, chunk_field_total_payload_size, uint64(chunk.TotalPayloadSize))
	}
	if chunk.Payload != nil {
		buf = append_bytes_field(buf, chunk_field_payload, chunk.Payload)
	}

	return buf
}

func packet_chunk_parse(buf []byte) (*PacketChunk, error) {
	var chunk PacketChunk
	var offset = 0

	for offset < len(buf) {
		var key, next, err = read_uvarint(buf, offset)
		if err != nil {
			return nil, err
		}
		offset = next

		var field = int(key >> 3)
		var wire_type = int(key & 0x07)

		switch {
		case field == chunk_field_payload && wire_type == wire_bytes:
			var value []byte
			value, offset, err = read_bytes_value(buf, offset)
			if err != nil {
				return nil, err
			}
			chunk.Payload = append([]byte(nil), value...)
		case wire_type == wire_varint:
			var value uint64
			value, offset, err = read_uvarint(buf, offset)
			if err != nil {
				return nil, err
			}

			switch field {
			case chunk_field_payload_id:
				chunk.PayloadID = uint32(value)
			case chunk_field_chunk_id:
				chunk.ChunkID = uint32(value)
			case chunk_field_retransmit_id:
				chunk.RetransmitID = uint32(value)
			case chunk_field_total_payload_size:
				chunk.TotalPayloadSize = uint32(value)
			}
		default:
			offset, err = skip_field(buf, offset, wire_type)
			if err != nil {
				return nil, err
			}
		}
	}

	return &chunk, nil
}

/*------------------------------------------------------------------
 *
 * Name:	packet_serialize / packet_parse
 *
 * Purpose:	The application message.  The variants are nested as
 *		length prefixed submessages under their tags.
 *
 *---------------------------------------------------------------*/

func packet_serialize(packet *Packet) []byte {
	var buf []byte

	switch {
	case packet.Header != nil:
		var header = packet.Header
		var sub []byte
		if header.ID != 0 {
			sub = append_varint_field(sub, header_field_id, uint64(header.ID))
		}
		sub = append_bytes_field(sub, header_field_filename, []byte(header.Filename))
		sub = append_varint_field(sub, header_field_size, header.Size)
		buf = append_bytes_field(buf, packet_field_file_transfer_header, sub)

	case packet.Chunk != nil:
		var chunk = packet.Chunk
		var sub []byte
		if chunk.ID != 0 {
			sub = append_varint_field(sub, ft_chunk_field_id, uint64(chunk.ID))
		}
		if chunk.ChunkID != 0 {
			sub = append_varint_field(sub, ft_chunk_field_chunk_id, uint64(chunk.ChunkID))
		}
		if chunk.Chunk != nil {
			sub = append_bytes_field(sub, ft_chunk_field_chunk, chunk.Chunk)
		}
		buf = append_bytes_field(buf, packet_field_file_transfer_chunk, sub)
	}

	return buf
}

func packet_parse(buf []byte) (*Packet, error) {
	var packet Packet
	var offset = 0

	for offset < len(buf) {
		var key, next, err = read_uvarint(buf, offset)
		if err != nil {
			return nil, err
		}
		offset = next

		var field = int(key >> 3)
		var wire_type = int(key & 0x07)

		switch {
		case field == packet_field_file_transfer_header && wire_type == wire_bytes:
			var sub []byte
			sub, offset, err = read_bytes_value(buf, offset)
			if err != nil {
				return nil, err
			}

			packet.Header, err = file_transfer_header_parse(sub)
			if err != nil {
				return nil, err
			}
		case field == packet_field_file_transfer_chunk && wire_type == wire_bytes:
			var sub []byte
			sub, offset, err = read_bytes_value(buf, offset)
			if err != nil {
				return nil, err
			}

			packet.Chunk, err = file_transfer_chunk_parse(sub)
			if err != nil {
				return nil, err
			}
		default:
			offset, err = skip_field(buf, offset, wire_type)
			if err != nil {
				return nil, err
			}
		}
	}

	return &packet, nil
}

func file_transfer_header_parse(buf []byte) (*FileTransferHeader, error) {
	var header FileTransferHeader
	var offset = 0

	for offset < len(buf) {
		var key, next, err = read_uvarint(buf, offset)
		if err != nil {
			return nil, err
		}
		offset = next

		var field = int(key >> 3)
		var wire_type = int(key & 0x07)

		switch {
		case field == header_field_filename && wire_type == wire_bytes:
			var value []byte
			value, offset, err = read_bytes_value(buf, offset)
			if err != nil {
				return nil, err
			}
			header.Filename = string(value)
		case field == header_field_id && wire_type == wire_varint:
			var value uint64
			value, offset, err = read_uvarint(buf, offset)
			if err != nil {
				return nil, err
			}
			header.ID = uint32(value)
		case field == header_field_size && wire_type == wire_varint:
			var value uint64
			value, offset, err = read_uvarint(buf, offset)
			if err != nil {
				return nil, err
			}
			header.Size = value
			header.has_size = true
		default:
			offset, err = skip_field(buf, offset, wire_type)
			if err != nil {
				return nil, err
			}
		}
	}

	return &header, nil
}

func file_transfer_chunk_parse(buf []byte) (*FileTransferChunk, error) {
	var chunk FileTransferChunk
	var offset = 0

	for offset < len(buf) {
		var key, next, err = read_uvarint(buf, offset)
		if err != nil {
			return nil, err
		}
		offset = next

		var field = int(key >> 3)
		var wire_type = int(key & 0x07)

		switch {
		case field == ft_chunk_field_chunk && wire_type == wire_bytes:
			var value []byte
			value, offset, err = read_bytes_value(buf, offset)
			if err != nil {
				return nil, err
			}
			chunk.Chunk = append([]byte(nil), value...)
		case field == ft_chunk_field_id && wire_type == wire_varint:
			var value uint64
			value, offset, err = read_uvarint(buf, offset)
			if err != nil {
				return nil, err
			}
			chunk.ID = uint32(value)
		case field == ft_chunk_field_chunk_id && wire_type == wire_varint:
			var value uint64
			value, offset, err = read_uvarint(buf, offset)
			if err != nil {
				return nil, err
			}
			chunk.ChunkID = uint32(value)
		default:
			offset, err = skip_field(buf, offset, wire_type)
			if err != nil {
				return nil, err
			}
		}
	}

	return &chunk, nil
}
