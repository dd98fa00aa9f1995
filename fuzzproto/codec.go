package fuzzproto

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/mod/semver"
)

// Flavour selects the chain parameters the node under test runs with.
type Flavour string

const (
	FlavourTiny Flavour = "tiny"
	FlavourFull Flavour = "full"
)

// ParseFlavour validates a flavour name.
func ParseFlavour(s string) (Flavour, error) {
	switch f := Flavour(s); f {
	case FlavourTiny, FlavourFull:
		return f, nil
	default:
		return "", fmt.Errorf("unknown flavour %q, want %q or %q", s, FlavourTiny, FlavourFull)
	}
}

const (
	// FuzzVersion is the protocol revision we speak.
	FuzzVersion = 1
	// JamVersion is the protocol version advertised in the handshake.
	JamVersion = "0.7.0"
)

// Codec encodes the handshake and decodes the message envelope. The envelope
// does not depend on the chain parameters, so the flavour is only validated;
// message bodies are passed through as recorded.
type Codec struct {
	self PeerInfo
	log  log.Logger
}

// NewCodec creates a codec announcing itself as name at appVersion.
func NewCodec(flavour Flavour, name, appVersion string, logger log.Logger) (*Codec, error) {
	if _, err := ParseFlavour(string(flavour)); err != nil {
		return nil, err
	}
	app, err := ParseVersion(appVersion)
	if err != nil {
		return nil, fmt.Errorf("app version: %w", err)
	}
	jam, err := ParseVersion(JamVersion)
	if err != nil {
		return nil, fmt.Errorf("jam version: %w", err)
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Codec{
		self: PeerInfo{
			FuzzVersion: FuzzVersion,
			JamVersion:  jam,
			AppVersion:  app,
			Name:        name,
		},
		log: logger,
	}, nil
}

// Self returns the PeerInfo sent in the handshake.
func (c *Codec) Self() PeerInfo {
	return c.self
}

// Handshake encodes our PeerInfo.
func (c *Codec) Handshake() ([]byte, error) {
	return NewPeerInfo(c.self).Encode(), nil
}

// PeerName decodes the handshake answer and returns the peer id. A peer on a
// different JAM version is accepted with a warning. The id ends up in the
// stats CSV, so names with commas or control characters are rejected.
func (c *Codec) PeerName(response []byte) (string, error) {
	m, err := Decode(response)
	if err != nil {
		return "", err
	}
	peer, err := m.PeerInfo()
	if err != nil {
		return "", err
	}
	if peer.Name == "" || strings.ContainsFunc(peer.Name, func(r rune) bool { return r == ',' || unicode.IsControl(r) }) {
		return "", &DecodeError{What: "peer info", Reason: fmt.Sprintf("invalid peer name %q", peer.Name)}
	}
	if cmp := semver.Compare(c.self.JamVersion.Semver(), peer.JamVersion.Semver()); cmp != 0 {
		c.log.Warn("Peer speaks a different JAM version", "peer", peer.ID(), "ours", c.self.JamVersion, "theirs", peer.JamVersion)
	}
	if peer.FuzzVersion != c.self.FuzzVersion {
		c.log.Warn("Peer speaks a different fuzzer protocol version", "peer", peer.ID(), "ours", c.self.FuzzVersion, "theirs", peer.FuzzVersion)
	}
	c.log.Info("Handshake successful", "peer", peer.ID(), "info", peer)
	return peer.ID(), nil
}

// Describe decodes data and renders a short summary, failing on bytes that
// are not a message.
func (c *Codec) Describe(data []byte) (string, error) {
	m, err := Decode(data)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

// TraceMessages is not supported by the envelope codec: locating the block
// inside a state transition vector needs the full block encoding.
func (c *Codec) TraceMessages(data []byte) ([][]byte, error) {
	return nil, &DecodeError{What: "trace", Err: ErrTracesUnsupported}
}
