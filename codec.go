package picofuzz

// Codec is the node's wire codec as seen by the fuzzer. Message contents
// stay opaque: the fuzzer only needs to produce the handshake, recognise the
// answer and check that files and responses decode.
type Codec interface {
	// Handshake returns the encoded greeting sent before any file.
	Handshake() ([]byte, error)
	// PeerName decodes the greeting answer into a "name@version" id.
	PeerName(response []byte) (string, error)
	// Describe decodes a message and returns a printable summary.
	Describe(data []byte) (string, error)
	// TraceMessages splits a state transition vector into the messages
	// replaying it. The last one is the measured block import.
	TraceMessages(data []byte) ([][]byte, error)
}
