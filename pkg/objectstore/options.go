package objectstore

// PutOption configures put and multipart-create operations.
type PutOption func(*PutOptions)

// ListOption configures list operations.
type ListOption func(*ListOptions)

// PutOptions contains configuration for uploads.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ListOptions contains configuration for listings.
type ListOptions struct {
	MaxResults int
	Delimiter  string
	StartAfter string
}

// DefaultPutOptions returns the defaults applied to every upload.
func DefaultPutOptions() PutOptions {
	return PutOptions{
		ContentType: "application/octet-stream",
		Metadata:    make(map[string]string),
	}
}

// DefaultListOptions returns the defaults applied to every listing.
func DefaultListOptions() ListOptions {
	return ListOptions{
		MaxResults: 1000,
	}
}

// WithContentType sets the content type for an upload.
func WithContentType(contentType string) PutOption {
	return func(o *PutOptions) {
		o.ContentType = contentType
	}
}

// WithMetadata sets user metadata for an upload.
func WithMetadata(metadata map[string]string) PutOption {
	return func(o *PutOptions) {
		o.Metadata = metadata
	}
}

// WithMaxResults caps the number of listing results.
func WithMaxResults(max int) ListOption {
	return func(o *ListOptions) {
		o.MaxResults = max
	}
}

// WithDelimiter sets the delimiter for hierarchical listing.
func WithDelimiter(delimiter string) ListOption {
	return func(o *ListOptions) {
		o.Delimiter = delimiter
	}
}

// WithStartAfter sets the pagination start position.
func WithStartAfter(marker string) ListOption {
	return func(o *ListOptions) {
		o.StartAfter = marker
	}
}

// BuildPutOptions applies put options over the defaults.
func BuildPutOptions(opts ...PutOption) PutOptions {
	options := DefaultPutOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// BuildListOptions applies list options over the defaults.
func BuildListOptions(opts ...ListOption) ListOptions {
	options := DefaultListOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
