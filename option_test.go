package socket

import (
	"errors"
	"testing"
)

func TestMessageMaxSize(t *testing.T) {
	opt := MessageMaxSize(4096)

	var opts options
	opt(&opts)

	if opts.maxMessageSize != 4096 {
		t.Errorf("maxMessageSize = %d, want 4096", opts.maxMessageSize)
	}
}

func TestDrainOversizedOption(t *testing.T) {
	var opts options
	DrainOversizedOption(true)(&opts)

	if !opts.drainOversized {
		t.Error("drainOversized not set")
	}
}

func TestLoggerOption(t *testing.T) {
	logger := &mockLogger{}
	opt := LoggerOption(logger)

	var opts options
	opt(&opts)

	if opts.logger != logger {
		t.Error("logger not set correctly")
	}
}

func TestCheckOptions_DefaultValues(t *testing.T) {
	opts := &options{}
	checkOptions(opts)

	if opts.maxMessageSize != MaxPacketSize {
		t.Errorf("maxMessageSize = %d, want %d", opts.maxMessageSize, MaxPacketSize)
	}
	if opts.logger == nil {
		t.Error("logger should have default value")
	}
	if opts.drainOversized {
		t.Error("drainOversized should default to false")
	}
}

func TestCheckOptions_OutOfRangeMaxSize(t *testing.T) {
	for _, size := range []int{-1, 0, MaxPacketSize + 1} {
		opts := &options{maxMessageSize: size}
		checkOptions(opts)

		if opts.maxMessageSize != MaxPacketSize {
			t.Errorf("size %d: maxMessageSize = %d, want %d", size, opts.maxMessageSize, MaxPacketSize)
		}
	}
}

func TestBuildOptions(t *testing.T) {
	opts := buildOptions([]Option{MessageMaxSize(10), DrainOversizedOption(true), LoggerOption(DiscardLogger)})

	if opts.maxMessageSize != 10 || !opts.drainOversized || opts.logger != DiscardLogger {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestBufferSizeOption(t *testing.T) {
	opt := BufferSizeOption(100)

	var opts connOptions
	opt(&opts)

	if opts.bufferSize != 100 {
		t.Errorf("bufferSize = %d, want 100", opts.bufferSize)
	}
}

func TestOnErrorOption(t *testing.T) {
	called := false
	onError := func(err error) ErrorAction {
		called = true
		return Disconnect
	}
	opt := OnErrorOption(onError)

	var opts connOptions
	opt(&opts)

	if opts.onError == nil {
		t.Fatal("onError not set")
	}

	action := opts.onError(errors.New("test"))
	if !called {
		t.Error("onError callback not called")
	}
	if action != Disconnect {
		t.Errorf("action = %v, want Disconnect", action)
	}
}

func TestOnMessageOption(t *testing.T) {
	var got *Packet
	opt := OnMessageOption(func(p *Packet) error {
		got = p
		return nil
	})

	var opts connOptions
	opt(&opts)

	p := &Packet{}
	if err := opts.onMessage(p); err != nil {
		t.Fatalf("onMessage failed: %v", err)
	}
	if got != p {
		t.Error("onMessage callback not called with the packet")
	}
}

func TestConnLoggerOption(t *testing.T) {
	logger := &mockLogger{}

	var opts connOptions
	ConnLoggerOption(logger)(&opts)

	if opts.logger != logger {
		t.Error("logger not set correctly")
	}
}

func TestErrorAction_Values(t *testing.T) {
	if Disconnect != 0 {
		t.Errorf("Disconnect = %d, want 0", Disconnect)
	}
	if Continue != 1 {
		t.Errorf("Continue = %d, want 1", Continue)
	}
}
