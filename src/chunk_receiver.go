package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:   	Reassemble packet chunks into complete packets.
 *
 * Description:	Chunks arrive in any order, possibly duplicated by
 *		retransmission passes or by hearing the same frame
 *		from more than one digipeater.  Chunks are collected
 *		per payload id until the concatenation reaches the
 *		declared total size, then the payload is parsed and
 *		delivered exactly once.
 *
 *		Duplicates are recognized by chunk id alone.  The
 *		retransmit id only tells us which pass the copy came
 *		from; two copies of chunk 3 are the same bytes no
 *		matter which pass produced them.
 *
 *---------------------------------------------------------------*/

import (
	"sort"

	"github.com/charmbracelet/log"
)

var chunk_receiver_log = log.WithPrefix("PacketChunkReceiver")

// Drop a partial payload when nothing new has arrived for this long.
const CHUNK_EVICT_AGE_US = 3600 * US_PER_S

// How many completed payload ids to remember for duplicate suppression.
const COMPLETED_PAYLOADS_KEPT = 100

// Incoming chunks for one payload.
type packet_chunks struct {
	last_fragment_time_us uint64
	chunks                []PacketChunk
}

// Handles incoming packet chunks and forms complete packets.
type packet_chunk_receiver struct {
	packets            []*packet_chunks
	completed_payloads []uint32
}

/*-------------------------------------------------------------------
 *
 * Name:        push_packet_chunk
 *
 * Purpose:     Take delivery of one chunk.
 *
 * Inputs:	chunk	- The decoded chunk.
 *
 * Returns:	The completed packet once the final chunk arrives,
 *		nil otherwise.
 *
 *-----------------------------------------------------------------*/

func (r *packet_chunk_receiver) push_packet_chunk(chunk *PacketChunk) *Packet {
	r.evict_stale(dtime_now_us())

	if chunk.PayloadID == 0 {
		chunk_receiver_log.Errorf("received packet chunk with missing payload id")
		return nil
	} else if chunk.ChunkID == 0 {
		chunk_receiver_log.Errorf("received packet chunk with missing chunk id")
		return nil
	} else if chunk.ChunkID == 1 && chunk.TotalPayloadSize == 0 {
		chunk_receiver_log.Errorf("received first packet chunk with missing total payload size")
		return nil
	} else if len(chunk.Payload) == 0 {
		chunk_receiver_log.Errorf("received packet chunk with missing payload")
		return nil
	}

	for _, completed := range r.completed_payloads {
		if completed == chunk.PayloadID {
			chunk_receiver_log.Infof("received packet chunk for completed payload %d", chunk.PayloadID)
			return nil
		}
	}

	for i, pending := range r.packets {
		if pending.chunks[0].PayloadID != chunk.PayloadID {
			continue
		}

		pending.last_fragment_time_us = dtime_now_us()

		for _, existing := range pending.chunks {
			if existing.ChunkID == chunk.ChunkID {
				chunk_receiver_log.Infof("ignoring packet chunk with id %d that has already been received", chunk.ChunkID)
				return nil
			}
		}

		pending.chunks = append(pending.chunks, *chunk)
		if packet := pending.assemble(); packet != nil {
			r.complete(chunk.PayloadID)
			r.packets = append(r.packets[:i], r.packets[i+1:]...)
			return packet
		}

		return nil
	}

	chunk_receiver_log.Infof("receiving new payload with id %d", chunk.PayloadID)

	var pending = &packet_chunks{
		last_fragment_time_us: dtime_now_us(),
		chunks:                []PacketChunk{*chunk},
	}

	if packet := pending.assemble(); packet != nil {
		r.complete(chunk.PayloadID)
		return packet
	}

	r.packets = append(r.packets, pending)
	return nil
}

// Record a payload id as delivered so late copies are dropped.
// The list is capacity bounded to keep a long running receiver flat.
func (r *packet_chunk_receiver) complete(payload_id uint32) {
	r.completed_payloads = append(r.completed_payloads, payload_id)
	if len(r.completed_payloads) > COMPLETED_PAYLOADS_KEPT {
		r.completed_payloads = r.completed_payloads[len(r.completed_payloads)-COMPLETED_PAYLOADS_KEPT:]
	}
}

// Drop partial payloads that have gone quiet.  A sender that died
// mid-payload must not pin memory forever.
func (r *packet_chunk_receiver) evict_stale(now_us uint64) {
	var kept = r.packets[:0]
	for _, pending := range r.packets {
		if now_us-pending.last_fragment_time_us > CHUNK_EVICT_AGE_US {
			chunk_receiver_log.Infof("evicting stale payload %d", pending.chunks[0].PayloadID)
			continue
		}
		kept = append(kept, pending)
	}
	r.packets = kept
}

/*-------------------------------------------------------------------
 *
 * Name:        assemble
 *
 * Purpose:     Check whether the chunks make a complete packet.
 *
 * Returns:	The parsed packet when the concatenated payload
 *		reaches the declared total size, nil before that.
 *
 * Errors:	A payload that reaches its declared size but does not
 *		parse violates the sender contract.  Fatal.
 *
 *-----------------------------------------------------------------*/

func (pc *packet_chunks) assemble() *Packet {
	sort.Slice(pc.chunks, func(a, b int) bool {
		return pc.chunks[a].ChunkID < pc.chunks[b].ChunkID
	})

	var serialized []byte
	for i := range pc.chunks {
		serialized = append(serialized, pc.chunks[i].Payload...)
	}

	if pc.chunks[0].TotalPayloadSize == 0 {
		chunk_receiver_log.Infof("first packet does not contain total size, id=%d", pc.chunks[0].ChunkID)
		return nil
	}

	if uint32(len(serialized)) != pc.chunks[0].TotalPayloadSize {
		chunk_receiver_log.Infof("packet %d received %d/%d bytes",
			pc.chunks[0].PayloadID, len(serialized), pc.chunks[0].TotalPayloadSize)
		return nil
	}

	var packet, err = packet_parse(serialized)
	if err != nil {
		chunk_receiver_log.Fatalf("failed to deserialize payload: %s", err)
	}

	chunk_receiver_log.Infof("complete packet %d received %d/%d bytes",
		pc.chunks[0].PayloadID, len(serialized), pc.chunks[0].TotalPayloadSize)
	return packet
}
