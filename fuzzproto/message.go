// Package fuzzproto encodes and decodes the v1 fuzzer protocol envelope
// spoken by JAM nodes under test. Message bodies other than PeerInfo are
// carried opaquely; only their framing and fixed sizes are checked.
package fuzzproto

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the leading tag byte of every message.
type Kind byte

const (
	KindPeerInfo    Kind = 0
	KindInitialize  Kind = 1
	KindStateRoot   Kind = 2
	KindImportBlock Kind = 3
	KindGetState    Kind = 4
	KindState       Kind = 5
	KindError       Kind = 255
)

// HashSize is the size of header hashes and state roots.
const HashSize = 32

func (k Kind) String() string {
	switch k {
	case KindPeerInfo:
		return "PeerInfo"
	case KindInitialize:
		return "Initialize"
	case KindStateRoot:
		return "StateRoot"
	case KindImportBlock:
		return "ImportBlock"
	case KindGetState:
		return "GetState"
	case KindState:
		return "State"
	case KindError:
		return "Error"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// Feature bits announced in PeerInfo.
const (
	FeatureAncestry uint32 = 1 << 0
	FeatureForks    uint32 = 1 << 1
)

// Version is a major.minor.patch triple, one byte each on the wire.
type Version struct {
	Major, Minor, Patch uint8
}

// ParseVersion parses "1.2.3", with an optional "v" prefix. Pre-release and
// build suffixes are ignored.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	var out [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		out[i] = uint8(n)
	}
	return Version{Major: out[0], Minor: out[1], Patch: out[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Semver renders the version in golang.org/x/mod/semver form.
func (v Version) Semver() string {
	return "v" + v.String()
}

// PeerInfo is the handshake message exchanged by both sides.
type PeerInfo struct {
	FuzzVersion uint8
	Features    uint32
	JamVersion  Version
	AppVersion  Version
	Name        string
}

// ID identifies the peer as name@major.minor.patch of its app version.
func (p PeerInfo) ID() string {
	return p.Name + "@" + p.AppVersion.String()
}

func (p PeerInfo) String() string {
	return fmt.Sprintf("PeerInfo{name: %s, app: %s, jam: %s, fuzz: %d, features: %#x}",
		p.Name, p.AppVersion, p.JamVersion, p.FuzzVersion, p.Features)
}

func (p PeerInfo) appendBody(dst []byte) []byte {
	dst = append(dst, p.FuzzVersion)
	dst = binary.LittleEndian.AppendUint32(dst, p.Features)
	dst = append(dst, p.JamVersion.Major, p.JamVersion.Minor, p.JamVersion.Patch)
	dst = append(dst, p.AppVersion.Major, p.AppVersion.Minor, p.AppVersion.Patch)
	dst = AppendNatural(dst, uint64(len(p.Name)))
	return append(dst, p.Name...)
}

func decodePeerInfo(body []byte) (PeerInfo, error) {
	const fixed = 1 + 4 + 3 + 3
	if len(body) < fixed {
		return PeerInfo{}, &DecodeError{What: "PeerInfo", Reason: fmt.Sprintf("%d bytes, need at least %d", len(body), fixed)}
	}
	p := PeerInfo{
		FuzzVersion: body[0],
		Features:    binary.LittleEndian.Uint32(body[1:5]),
		JamVersion:  Version{Major: body[5], Minor: body[6], Patch: body[7]},
		AppVersion:  Version{Major: body[8], Minor: body[9], Patch: body[10]},
	}
	n, used, err := DecodeNatural(body[fixed:])
	if err != nil {
		return PeerInfo{}, &DecodeError{What: "PeerInfo", Reason: "name length", Err: err}
	}
	rest := body[fixed+used:]
	if uint64(len(rest)) != n {
		return PeerInfo{}, &DecodeError{What: "PeerInfo", Reason: fmt.Sprintf("name is %d bytes, have %d", n, len(rest))}
	}
	p.Name = string(rest)
	return p, nil
}

// Message is a decoded envelope. Body is the encoding after the tag byte.
type Message struct {
	Kind Kind
	Body []byte
}

// NewPeerInfo wraps p in a message.
func NewPeerInfo(p PeerInfo) Message {
	return Message{Kind: KindPeerInfo, Body: p.appendBody(nil)}
}

// Encode returns the wire form of m.
func (m Message) Encode() []byte {
	out := make([]byte, 0, 1+len(m.Body))
	out = append(out, byte(m.Kind))
	return append(out, m.Body...)
}

// Decode parses a message, checking the tag and, where the body has a fixed
// shape, its size.
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return Message{}, &DecodeError{What: "message", Reason: "empty"}
	}
	m := Message{Kind: Kind(data[0]), Body: data[1:]}
	switch m.Kind {
	case KindPeerInfo:
		if _, err := decodePeerInfo(m.Body); err != nil {
			return Message{}, err
		}
	case KindStateRoot, KindGetState:
		if len(m.Body) != HashSize {
			return Message{}, &DecodeError{What: m.Kind.String(), Reason: fmt.Sprintf("body is %d bytes, want %d", len(m.Body), HashSize)}
		}
	case KindError:
		if _, err := decodeText(m.Body); err != nil {
			return Message{}, err
		}
	case KindInitialize, KindImportBlock, KindState:
		if len(m.Body) == 0 {
			return Message{}, &DecodeError{What: m.Kind.String(), Reason: "empty body"}
		}
	default:
		return Message{}, &DecodeError{What: "message", Reason: fmt.Sprintf("unknown message type %d", data[0])}
	}
	return m, nil
}

// PeerInfo decodes the body of a PeerInfo message.
func (m Message) PeerInfo() (PeerInfo, error) {
	if m.Kind != KindPeerInfo {
		return PeerInfo{}, &HandshakeError{Got: m.Kind}
	}
	return decodePeerInfo(m.Body)
}

func (m Message) String() string {
	switch m.Kind {
	case KindPeerInfo:
		if p, err := decodePeerInfo(m.Body); err == nil {
			return p.String()
		}
	case KindStateRoot, KindGetState:
		return fmt.Sprintf("%s 0x%s", m.Kind, hex.EncodeToString(m.Body))
	case KindError:
		if text, err := decodeText(m.Body); err == nil {
			return fmt.Sprintf("Error %q", text)
		}
	}
	return fmt.Sprintf("%s (%d bytes)", m.Kind, len(m.Body))
}

func decodeText(body []byte) (string, error) {
	n, used, err := DecodeNatural(body)
	if err != nil {
		return "", &DecodeError{What: "Error", Reason: "text length", Err: err}
	}
	if uint64(len(body)-used) != n {
		return "", &DecodeError{What: "Error", Reason: fmt.Sprintf("text is %d bytes, have %d", n, len(body)-used)}
	}
	return string(body[used:]), nil
}
