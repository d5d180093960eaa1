package socket

// ErrorAction defines the action to take when an error occurs.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and continues processing.
	Continue
)

// options holds the configuration shared by a Socket and every socket it accepts.
type options struct {
	logger Logger

	maxMessageSize int  // largest payload RecvMessage accepts
	drainOversized bool // discard an oversized payload before failing
}

// Option is a function that configures socket options.
type Option func(*options)

// MessageMaxSize returns an Option that sets the maximum accepted message size.
// Incoming messages announcing a larger payload are rejected. Sizes outside
// (0, MaxPacketSize] select MaxPacketSize.
func MessageMaxSize(size int) Option {
	return func(o *options) {
		o.maxMessageSize = size
	}
}

// DrainOversizedOption returns an Option that controls what RecvMessage does
// with the payload of an oversized message. When enabled the payload is read
// and discarded before the error is returned, keeping the stream aligned on
// the next length prefix. When disabled (the default) the payload is left
// unread and the connection must be closed.
func DrainOversizedOption(drain bool) Option {
	return func(o *options) {
		o.drainOversized = drain
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opt []Option) options {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)
	return opts
}

// checkOptions sets default values for socket options.
func checkOptions(opts *options) {
	if opts.maxMessageSize <= 0 || opts.maxMessageSize > MaxPacketSize {
		opts.maxMessageSize = MaxPacketSize
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
}

// connOptions holds the configuration for a Conn.
type connOptions struct {
	logger Logger

	onMessage func(packet *Packet) error
	// onError is called when an error occurs.
	// Returns Disconnect to close the connection, Continue to suppress the error.
	onError func(error) ErrorAction

	bufferSize int // size of buffered channel
}

// ConnOption is a function that configures connection options.
type ConnOption func(*connOptions)

// BufferSizeOption returns a ConnOption that sets the size of the send channel buffer.
// A larger buffer allows more messages to be queued before blocking.
func BufferSizeOption(size int) ConnOption {
	return func(o *connOptions) {
		o.bufferSize = size
	}
}

// OnErrorOption returns a ConnOption that sets the error callback.
// The callback is invoked when a read/write error occurs.
// Return Disconnect to close the connection, or Continue to suppress the error.
func OnErrorOption(cb func(error) ErrorAction) ConnOption {
	return func(o *connOptions) {
		o.onError = cb
	}
}

// OnMessageOption returns a ConnOption that sets the message handler callback.
// This callback is required and is invoked for each received packet. The
// packet is reused for the next read, so handlers must Clone what they keep.
func OnMessageOption(cb func(*Packet) error) ConnOption {
	return func(o *connOptions) {
		o.onMessage = cb
	}
}

// ConnLoggerOption returns a ConnOption that sets the logger.
// If not set, the socket's logger is used.
func ConnLoggerOption(logger Logger) ConnOption {
	return func(o *connOptions) {
		o.logger = logger
	}
}
