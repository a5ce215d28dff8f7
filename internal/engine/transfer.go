package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/session"
	"github.com/LibertyFarmer/hamstr-sub000/internal/wire"
)

// headerOverhead is subtracted from max_packet_size to leave room for the
// seq|total|type: prefix and |crc32hex suffix, per packet_handler.py's
// split_message (MAX_PACKET_SIZE - 15).
const headerOverhead = 15

// SplitMessage divides message into chunks no larger than the configured
// max packet size minus wire overhead, in send order (1-based sequence is
// assigned by the caller).
func (e *Engine) SplitMessage(message string) []string {
	size := e.Cfg.MaxPacketSize - headerOverhead
	if size <= 0 {
		size = 1
	}
	var chunks []string
	for i := 0; i < len(message); i += size {
		end := i + size
		if end > len(message) {
			end = len(message)
		}
		chunks = append(chunks, message[i:end])
	}
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	return chunks
}

// SendTransfer segments message into packets of messageType, sends each
// with per-packet ACK and up to SendRetries attempts (doubling the ACK
// timeout on sequence 1, the original's empirically slowest packet), then
// runs the DONE/DONE_ACK/PKT_MISSING recovery loop until the peer
// acknowledges completion (core.py::send_response).
func (e *Engine) SendTransfer(sess *session.Session, messageType wire.MessageType, message string) error {
	chunks := e.SplitMessage(message)
	total := len(chunks)
	sess.TotalPackets = total
	sess.SentChunks = make(map[int]string, total)
	acked := make(map[int]bool, total)

	for i, chunk := range chunks {
		seq := i + 1
		if err := e.sendChunkWithRetry(sess, seq, total, messageType, chunk, acked); err != nil {
			return err
		}
		sess.SentChunks[seq] = chunk
	}

	if err := e.SendControl(sess, wire.Done, "DONE"); err != nil {
		return fmt.Errorf("engine: sending DONE: %w", err)
	}
	return e.awaitTransferComplete(sess, acked, total)
}

func (e *Engine) sendChunkWithRetry(sess *session.Session, seq, total int, messageType wire.MessageType, chunk string, acked map[int]bool) error {
	ackTimeout := e.Cfg.AckTimeout
	if seq == 1 {
		ackTimeout *= 2
	}
	for attempt := 0; attempt < e.Cfg.SendRetries; attempt++ {
		if err := e.sendSinglePacket(sess, seq, total, messageType, chunk); err != nil {
			log.Warn("failed to send packet %d/%d: %v", seq, total, err)
		} else if e.waitForAck(sess, seq, ackTimeout) {
			acked[seq] = true
			return nil
		} else if sess.CurrentState() == session.Disconnected {
			return ErrDisconnected
		}
		if attempt < e.Cfg.SendRetries-1 {
			log.Info("retrying packet %d/%d, attempt %d", seq, total, attempt+2)
			time.Sleep(e.Cfg.AckTimeout)
		}
	}
	log.Warn("gave up on packet %d/%d after %d attempts", seq, total, e.Cfg.SendRetries)
	return nil // matches the original: move on, let DONE/PKT_MISSING recover it
}

// waitForAck waits for an ACK naming seq specifically; a DISCONNECT aborts
// the whole transfer.
func (e *Engine) waitForAck(sess *session.Session, seq int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		step := time.Until(deadline)
		if step > 500*time.Millisecond {
			step = 500 * time.Millisecond
		}
		pkt, err := e.ReceiveMessage(sess, step)
		if err != nil {
			continue
		}
		switch pkt.Type {
		case wire.Ack:
			if ackSeq, ok := parseAckSeq(pkt.Content); !ok || ackSeq == seq {
				return true
			}
		case wire.Disconnect:
			e.HandleDisconnect(sess)
			return false
		}
	}
	return false
}

func parseAckSeq(content string) (int, bool) {
	_, numStr, ok := strings.Cut(content, "|")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, false
	}
	return n, true
}

// awaitTransferComplete waits for DONE_ACK or handles a PKT_MISSING
// request by resending the named sequences and sending DONE again,
// matching core.py::send_response's post-DONE loop. An empty or malformed
// PKT_MISSING body is treated as DONE_ACK — protocol_utils.py's hardening
// for a body with no "|" — rather than failing the transfer. A DISCONNECT
// is acknowledged and ends the wait with ErrDisconnected.
func (e *Engine) awaitTransferComplete(sess *session.Session, acked map[int]bool, total int) error {
	deadline := time.Now().Add(e.Cfg.ConnectionTimeout)
	for time.Now().Before(deadline) {
		pkt, err := e.ReceiveMessage(sess, time.Second)
		if err != nil {
			continue
		}
		switch pkt.Type {
		case wire.DoneAck:
			return nil
		case wire.PktMissing:
			missing, ok := parseMissingSet(pkt.Content)
			if !ok {
				log.Error("empty or malformed PKT_MISSING message, treating as DONE_ACK")
				e.sendSinglePacket(sess, 0, 0, wire.DoneAck, "DONE_ACK")
				return nil
			}
			if err := e.resendMissing(sess, missing, acked, total); err != nil {
				return err
			}
			if err := e.SendControl(sess, wire.Done, "DONE"); err != nil {
				return err
			}
		case wire.Disconnect:
			e.HandleDisconnect(sess)
			return ErrDisconnected
		}
	}
	return ErrAckTimeout
}

func parseMissingSet(content string) ([]int, bool) {
	if content == "" || !strings.Contains(content, "|") {
		return nil, false
	}
	_, listStr, _ := strings.Cut(content, "|")
	if strings.TrimSpace(listStr) == "" {
		return nil, false
	}
	var out []int
	for _, s := range strings.Split(listStr, "|") {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// resendMissing sends READY, waits for the peer's READY (or DATA_REQUEST,
// accepted the same way), then resends each named sequence number from the
// session's sent-chunk cache, waiting for an ACK after each one
// (packet_handler.py::handle_missing_packets_sender).
func (e *Engine) resendMissing(sess *session.Session, missing []int, acked map[int]bool, total int) error {
	if err := e.SendControl(sess, wire.Ready, "READY"); err != nil {
		return fmt.Errorf("engine: sending READY before resend: %w", err)
	}
	if !e.waitForReady(sess, e.Cfg.AckTimeout*2) {
		return fmt.Errorf("engine: %w: peer never READY for missing-packet resend", ErrMissingPackets)
	}
	for _, seq := range missing {
		chunk, ok := sess.SentChunks[seq]
		if !ok {
			return fmt.Errorf("engine: %w: no cached copy of packet %d to resend", ErrMissingPackets, seq)
		}
		if err := e.sendSinglePacket(sess, seq, total, wire.Response, chunk); err != nil {
			return fmt.Errorf("engine: resending packet %d: %w", seq, err)
		}
		if !e.waitForAck(sess, seq, e.Cfg.AckTimeout) {
			return fmt.Errorf("engine: %w: no ACK for resent packet %d", ErrMissingPackets, seq)
		}
		acked[seq] = true
	}
	return nil
}

// waitForReady waits for READY, also accepting DATA_REQUEST as an
// equivalent, and nudges the peer by resending our own READY halfway
// through the wait if nothing has arrived yet (core.py::wait_for_ready).
func (e *Engine) waitForReady(sess *session.Session, timeout time.Duration) bool {
	start := time.Now()
	prompted := false
	for time.Since(start) < timeout {
		pkt, err := e.ReceiveMessage(sess, 500*time.Millisecond)
		if err == nil {
			switch pkt.Type {
			case wire.Ready, wire.DataRequest:
				if e.Cfg.ConnectionStabilizationDelay > 0 {
					time.Sleep(e.Cfg.ConnectionStabilizationDelay)
				}
				return true
			case wire.Disconnect:
				e.HandleDisconnect(sess)
				return false
			}
		}
		if !prompted && time.Since(start) > timeout/2 {
			e.sendSinglePacket(sess, 0, 0, wire.Ready, "READY")
			prompted = true
		}
	}
	return false
}

// ReceiveTransfer collects packets into sess's reassembly buffer until a
// DONE arrives, then requests any missing sequence numbers via
// PKT_MISSING/READY before reassembling and returning the full message
// (core.py::receive_response). When NoPacketTimeout passes with no packet,
// missing packets are requested only if the received fraction clears
// MissingPacketsThreshold; otherwise, or if that request fails, the receive
// fails with ErrMissingPackets.
func (e *Engine) ReceiveTransfer(sess *session.Session) (string, error) {
	sess.ReceivedChunks = make(map[int]string)
	deadline := time.Now().Add(e.Cfg.ConnectionTimeout)
	lastPacket := time.Now()

	for time.Now().Before(deadline) {
		if time.Since(lastPacket) > e.Cfg.NoPacketTimeout {
			if !e.tryRequestMissing(sess) {
				return "", fmt.Errorf("engine: %w: no packets for %s", ErrMissingPackets, e.Cfg.NoPacketTimeout)
			}
			lastPacket = time.Now()
			continue
		}
		pkt, err := e.ReceiveMessage(sess, time.Second)
		if err != nil {
			continue
		}
		switch pkt.Type {
		case wire.Response, wire.Note, wire.ZapResponse, wire.ZapRequest:
			sess.ReceivedChunks[pkt.Seq] = pkt.Content
			sess.TotalPackets = pkt.Total
			lastPacket = time.Now()
			e.sendSinglePacket(sess, 0, 0, wire.Ack, fmt.Sprintf("ACK|%04d", pkt.Seq))
		case wire.Done:
			return e.finishReceive(sess)
		case wire.Disconnect:
			e.HandleDisconnect(sess)
			return "", ErrDisconnected
		}
	}
	return "", ErrAckTimeout
}

func (e *Engine) tryRequestMissing(sess *session.Session) bool {
	if sess.TotalPackets == 0 {
		return false
	}
	ratio := float64(len(sess.ReceivedChunks)) / float64(sess.TotalPackets)
	if ratio < e.Cfg.MissingPacketsThreshold {
		return false
	}
	missing := missingSeqs(sess)
	if len(missing) == 0 {
		return false
	}
	return e.requestMissing(sess, missing) == nil
}

func (e *Engine) finishReceive(sess *session.Session) (string, error) {
	missing := missingSeqs(sess)
	if len(missing) > 0 {
		if err := e.requestMissing(sess, missing); err != nil {
			return reassemble(sess), err
		}
	}
	if err := e.SendControl(sess, wire.DoneAck, "DONE_ACK"); err != nil {
		return reassemble(sess), err
	}
	return reassemble(sess), nil
}

func missingSeqs(sess *session.Session) []int {
	var out []int
	for i := 1; i <= sess.TotalPackets; i++ {
		if _, ok := sess.ReceivedChunks[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

func reassemble(sess *session.Session) string {
	var b strings.Builder
	for i := 1; i <= sess.TotalPackets; i++ {
		if chunk, ok := sess.ReceivedChunks[i]; ok {
			b.WriteString(chunk)
		} else {
			b.WriteString(fmt.Sprintf("[MISSING PACKET %d]", i))
		}
	}
	return b.String()
}

// requestMissing sends PKT_MISSING naming the given sequences, waits for
// the sender's READY, answers with our own READY, and collects the resent
// packets before returning.
func (e *Engine) requestMissing(sess *session.Session, missing []int) error {
	sort.Ints(missing)
	strs := make([]string, len(missing))
	for i, n := range missing {
		strs[i] = strconv.Itoa(n)
	}
	body := "MISSING|" + strings.Join(strs, "|")
	if err := e.SendControl(sess, wire.PktMissing, body); err != nil {
		return err
	}
	if !e.waitForReady(sess, e.Cfg.ReadyTimeout) {
		return fmt.Errorf("engine: %w: sender never READY for missing-packet request", ErrMissingPackets)
	}
	if err := e.SendControl(sess, wire.Ready, "READY"); err != nil {
		return err
	}
	deadline := time.Now().Add(e.Cfg.MissingPacketsTimeout)
	want := len(missing)
	got := 0
	for time.Now().Before(deadline) && got < want {
		pkt, err := e.ReceiveMessage(sess, 500*time.Millisecond)
		if err != nil {
			continue
		}
		if pkt.Type == wire.Response {
			if _, already := sess.ReceivedChunks[pkt.Seq]; !already {
				got++
			}
			sess.ReceivedChunks[pkt.Seq] = pkt.Content
			e.sendSinglePacket(sess, 0, 0, wire.Ack, fmt.Sprintf("ACK|%04d", pkt.Seq))
		}
	}
	if got < want {
		return fmt.Errorf("engine: %w: recovered %d/%d missing packets", ErrMissingPackets, got, want)
	}
	return nil
}
