package transfer

// SizeUnknown marks a source whose total length is not known up front,
// such as a streamed download from the chat transport.
const SizeUnknown int64 = -1

// Strategy selects how a file is moved to the object store.
type Strategy int

const (
	// SinglePart uploads the whole file in one request.
	SinglePart Strategy = iota
	// Chunked uploads the file as a multipart session of fixed-size parts.
	Chunked
)

func (s Strategy) String() string {
	switch s {
	case SinglePart:
		return "single-part"
	case Chunked:
		return "chunked"
	default:
		return "unknown"
	}
}

// Classify picks the transfer strategy for a declared size. Sizes at or below
// the threshold go single-part; anything larger goes chunked. An unknown size
// is always chunked so that peak memory stays bounded regardless of how much
// the source ends up producing.
func Classify(declaredSize, threshold int64) Strategy {
	if declaredSize == SizeUnknown || declaredSize < 0 {
		return Chunked
	}
	if declaredSize <= threshold {
		return SinglePart
	}
	return Chunked
}
