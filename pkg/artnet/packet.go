// Package artnet provides Art-Net protocol packet building.
package artnet

import (
	"encoding/binary"
)

const (
	// OpCodePoll is the Art-Net operation code for node discovery.
	OpCodePoll uint16 = 0x2000
	// OpCodeDMX is the Art-Net operation code for DMX data.
	OpCodeDMX uint16 = 0x5000
	// ProtocolVersion is the Art-Net protocol version.
	ProtocolVersion uint16 = 14
	// DMXDataLength is the number of DMX channels per universe.
	DMXDataLength uint16 = 512
	// PacketSize is the total size of an Art-Net DMX packet.
	PacketSize = 18 + DMXDataLength // Header (18) + Data (512)
	// PollPacketSize is the size of an ArtPoll packet.
	PollPacketSize = 14
	// DefaultPort is the standard Art-Net UDP port.
	DefaultPort = 6454
	// MaxUniverse is the highest 15-bit port address.
	MaxUniverse = 0x7FFF
)

// TalkToMe flags sent in ArtPoll.
const (
	// PollReplyOnChange asks nodes to send ArtPollReply whenever their
	// configuration changes.
	PollReplyOnChange byte = 0x02
	// PollDiagnostics asks nodes to send diagnostics messages.
	PollDiagnostics byte = 0x04
)

// ArtNetID is the Art-Net packet identifier.
var ArtNetID = []byte{'A', 'r', 't', '-', 'N', 'e', 't', 0x00}

// BuildDMXPacket creates an ArtDmx packet for the specified universe.
// Universe is the 0-based port address and is masked to 15 bits.
// Channels are padded with zeros or truncated to 512 values.
// Sequence should increment for each packet (wrapping at 255) so receivers
// can detect out-of-order UDP packets.
func BuildDMXPacket(universe int, channels []byte, sequence byte) []byte {
	packet := make([]byte, PacketSize)

	copy(packet[0:8], ArtNetID)
	binary.LittleEndian.PutUint16(packet[8:10], OpCodeDMX)
	binary.BigEndian.PutUint16(packet[10:12], ProtocolVersion)
	packet[12] = sequence
	packet[13] = 0 // physical input port
	binary.LittleEndian.PutUint16(packet[14:16], uint16(universe)&MaxUniverse)
	binary.BigEndian.PutUint16(packet[16:18], DMXDataLength)

	if len(channels) > int(DMXDataLength) {
		channels = channels[:DMXDataLength]
	}
	copy(packet[18:], channels)

	return packet
}

// BuildPollPacket creates an ArtPoll packet with the given TalkToMe flags.
func BuildPollPacket(flags byte) []byte {
	packet := make([]byte, PollPacketSize)

	copy(packet[0:8], ArtNetID)
	binary.LittleEndian.PutUint16(packet[8:10], OpCodePoll)
	binary.BigEndian.PutUint16(packet[10:12], ProtocolVersion)
	packet[12] = flags
	packet[13] = 0 // diagnostics priority

	return packet
}
