package wire

import (
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
)

// Packet is one HAMSTR protocol message, either a control packet (no
// sequencing) or one frame of a segmented data transfer (spec §3/§6).
type Packet struct {
	Type MessageType
	// Seq and Total are 1-based and only meaningful when Total > 0 — a
	// control packet leaves both zero.
	Seq     int
	Total   int
	Content string
	// CRC32 is the checksum over "<seq>|<total>|<type>:<content>" as sent
	// by the peer; zero on control packets. Verify before trusting Content.
	CRC32 uint32
}

// crcTable is the IEEE 802.3 (zlib) polynomial, the variant spec §6 and the
// original's protocol_utils.py both use via binascii.crc32.
var crcTable = crc32.MakeTable(crc32.IEEE)

// checksum computes the CRC32 of the seq|total|type:content body that
// precedes the checksum field in a data packet.
func checksum(body string) uint32 {
	return crc32.Checksum([]byte(body), crcTable)
}

// EncodeControl renders a control packet: "<type>:<content>".
func EncodeControl(t MessageType, content string) string {
	return fmt.Sprintf("%d:%s", int(t), content)
}

// EncodeData renders one data packet:
// "<seq:4 digits>|<total:4 digits>|<type>:<content>|<crc32_hex:8 chars>".
func EncodeData(seq, total int, t MessageType, content string) string {
	body := fmt.Sprintf("%04d|%04d|%s", seq, total, EncodeControl(t, content))
	sum := checksum(body)
	return fmt.Sprintf("%s|%08x", body, sum)
}

// Decode parses either packet shape. A data packet's content may itself
// contain '|' characters (spec §8 Scenario B's "GET_NOTES 1|2"), so only the
// leading seq/total fields and the trailing crc32 field are split off by
// position; everything between them is the "type:content" segment verbatim.
func Decode(raw string) (Packet, error) {
	parts := strings.SplitN(raw, "|", 3)
	if len(parts) == 3 {
		if pkt, ok := tryDecodeData(parts); ok {
			return pkt, nil
		}
	}
	return decodeControl(raw)
}

func tryDecodeData(parts []string) (Packet, bool) {
	seq, err := strconv.Atoi(parts[0])
	if err != nil {
		return Packet{}, false
	}
	total, err := strconv.Atoi(parts[1])
	if err != nil {
		return Packet{}, false
	}
	idx := strings.LastIndex(parts[2], "|")
	if idx < 0 {
		return Packet{}, false
	}
	typeContent, crcStr := parts[2][:idx], parts[2][idx+1:]
	sum, err := strconv.ParseUint(crcStr, 16, 32)
	if err != nil || len(crcStr) != 8 {
		return Packet{}, false
	}
	t, content, err := splitTypeContent(typeContent)
	if err != nil {
		return Packet{}, false
	}
	return Packet{Type: t, Seq: seq, Total: total, Content: content, CRC32: uint32(sum)}, true
}

func decodeControl(raw string) (Packet, error) {
	t, content, err := splitTypeContent(raw)
	if err != nil {
		return Packet{}, err
	}
	return Packet{Type: t, Content: content}, nil
}

func splitTypeContent(s string) (MessageType, string, error) {
	typeStr, content, ok := strings.Cut(s, ":")
	if !ok {
		return 0, "", fmt.Errorf("wire: packet %q missing type separator ':'", s)
	}
	n, err := strconv.Atoi(typeStr)
	if err != nil {
		return 0, "", fmt.Errorf("wire: malformed message type %q", typeStr)
	}
	return MessageType(n), content, nil
}

// VerifyCRC reports whether p's CRC32 matches its own seq|total|type:content
// body — the integrity check spec §4 requires before a data packet's
// content is accepted into a reassembly buffer.
func (p Packet) VerifyCRC() bool {
	if p.Total == 0 {
		return true
	}
	body := fmt.Sprintf("%04d|%04d|%s", p.Seq, p.Total, EncodeControl(p.Type, p.Content))
	return checksum(body) == p.CRC32
}
