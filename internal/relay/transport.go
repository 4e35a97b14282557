package relay

import (
	"io"

	"github.com/fileferry/fileferry/pkg/transfer"
)

// InboundFile is what the chat transport hands the relay for one upload: an
// exclusively owned byte stream plus the little metadata chat platforms
// provide. The relay closes the stream when the transfer terminates.
type InboundFile struct {
	// Stream is owned by the relay for the request's lifetime.
	Stream io.ReadCloser
	// DeclaredSize is transfer.SizeUnknown when the platform did not
	// report a length.
	DeclaredSize int64
	DisplayName  string
	// KeyHint optionally overrides the configured key prefix.
	KeyHint string
}

// ProgressSink receives throttled progress snapshots for one transfer. The
// chat transport typically renders these as message edits.
type ProgressSink interface {
	ReportProgress(snapshot transfer.Snapshot)
	ReportTerminal(result *Result, err error)
}

// NopSink discards all notifications.
type NopSink struct{}

func (NopSink) ReportProgress(transfer.Snapshot) {}

func (NopSink) ReportTerminal(*Result, error) {}
