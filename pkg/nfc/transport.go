package nfc

import "context"

// SystemInfo is the memory-layout metadata reported by the tag.
type SystemInfo struct {
	TotalBlocks      int
	BlockSize        int
	ManufacturerCode byte
	ICReference      byte
}

// Transport is the proximity link to one tag. The engine only consumes
// it; discovery and pairing belong to the reader side. A Transport is an
// exclusive resource: one session owns it for the lifetime of one
// encounter and no two block operations run against it concurrently.
//
// Tag-reported faults are returned as *TagError; anything else is a link
// failure. A user-initiated cancellation is returned as ErrCancelled.
type Transport interface {
	// Connect establishes the tag connection.
	Connect(ctx context.Context) error

	// Identifier returns the tag identifier as reported on the wire
	// (reversed byte order with respect to the sensor uid).
	Identifier() []byte

	// CustomCommand sends a vendor command and returns the response
	// payload.
	CustomCommand(ctx context.Context, code byte, parameters []byte) ([]byte, error)

	// ReadMultipleBlocks reads a run of blocks with the standard
	// multi-block primitive.
	ReadMultipleBlocks(ctx context.Context, r BlockRange) ([][]byte, error)

	// WriteMultipleBlocks writes a run of blocks with the standard
	// multi-block primitive.
	WriteMultipleBlocks(ctx context.Context, r BlockRange, blocks [][]byte) error

	// SystemInfo reports the tag memory layout metadata.
	SystemInfo(ctx context.Context) (*SystemInfo, error)

	// Invalidate tears the session down. A non-empty message is shown to
	// the operator as the reason.
	Invalidate(message string)

	// Rescan asks the reader to restart peripheral discovery, used after
	// streaming has been enabled and the sensor becomes connectable.
	Rescan()
}

// AuthRequest carries the tag authentication payload to the decoding
// service's auth and data endpoints ahead of a decode.
type AuthRequest struct {
	PatchUid []byte `json:"patchUid"`
	AuthData []byte `json:"authData"`
}

// AuthResponse is the session material handed back by the auth and data
// endpoints: p1 and data feed into the decode request that follows.
type AuthResponse struct {
	P1   int    `json:"p1"`
	Data []byte `json:"data"`
}

// DecodeRequest carries one generation-2 payload to the out-of-process
// decoding service. AuthData and P1 come from a preceding Authorize
// exchange when one succeeded, otherwise AuthData falls back to the
// tag-derived payload.
type DecodeRequest struct {
	PatchUid  []byte `json:"patchUid"`
	PatchInfo []byte `json:"patchInfo"`
	AuthData  []byte `json:"authData"`
	Content   []byte `json:"content"`
	P1        int    `json:"p1"`
}

// Decoder decrypts generation-2 memory payloads out of process. Its
// unavailability is non-fatal to the read path: the raw encrypted buffer
// is stored either way.
type Decoder interface {
	// Authorize exchanges the tag authentication payload for the session
	// material fed into the decode request.
	Authorize(ctx context.Context, req AuthRequest) (*AuthResponse, error)

	// Decode returns the decrypted memory image for one encrypted
	// payload.
	Decode(ctx context.Context, req DecodeRequest) ([]byte, error)
}
