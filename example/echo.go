package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/spf13/pflag"

	socket "github.com/Zereker/tcpsocket"
)

var (
	modeFlag    = pflag.StringP("mode", "m", modeServer, "server or client")
	hostFlag    = pflag.StringP("host", "h", "127.0.0.1", "host to listen on or connect to")
	portFlag    = pflag.Uint16P("port", "p", 12345, "port to listen on or connect to")
	backlogFlag = pflag.Int("backlog", 128, "pending connection backlog")
	maxSizeFlag = pflag.Int("max-size", socket.MaxPacketSize, "largest accepted message")
	drainFlag   = pflag.Bool("drain", false, "drain oversized messages instead of disconnecting")
	levelFlag   = pflag.String("log-level", "info", "debug, info, warn or error")
	configFlag  = pflag.StringP("config", "c", "", "TOML configuration file")
)

type Server struct {
	connID int64

	sync.RWMutex
	connections map[int64]*socket.Conn
}

func newHandler() *Server {
	return &Server{connections: make(map[int64]*socket.Conn)}
}

func (s *Server) Handle(sock *socket.Socket) {
	connID := atomic.AddInt64(&s.connID, 1)

	errorOption := socket.OnErrorOption(func(err error) socket.ErrorAction {
		if socket.IsKind(err, socket.KindConnectionClosed) {
			return socket.Disconnect
		}
		slog.Error("connection error", "connID", connID, "kind", socket.KindOf(err), "error", err)
		return socket.Continue
	})

	// Echo
	onMessageOption := socket.OnMessageOption(func(p *socket.Packet) error {
		conn := s.getConn(connID)
		return conn.WriteBlocking(context.Background(), p)
	})

	newConn, err := socket.NewConn(sock, errorOption, onMessageOption)
	if err != nil {
		slog.Error("failed to create connection", "error", err)
		_ = sock.Close()
		return
	}

	s.addConn(connID, newConn)
	defer s.deleteConn(connID)

	_ = newConn.Run(context.Background())
}

func (s *Server) addConn(connID int64, conn *socket.Conn) {
	s.Lock()
	defer s.Unlock()

	slog.Info("add new conn", "connID", connID, "addr", conn.Addr())
	s.connections[connID] = conn
}

func (s *Server) deleteConn(connID int64) {
	s.Lock()
	defer s.Unlock()

	delete(s.connections, connID)
}

func (s *Server) getConn(connID int64) *socket.Conn {
	s.RLock()
	defer s.RUnlock()

	if conn, ok := s.connections[connID]; ok {
		return conn
	}

	return nil
}

func (s *Server) closeAll() {
	s.RLock()
	defer s.RUnlock()

	for _, conn := range s.connections {
		_ = conn.Close()
	}
}

func main() {
	pflag.Parse()

	cfg, err := resolveConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ep, err := socket.ResolveEndpoint(ctx, cfg.Host, cfg.Port)
	if err != nil {
		slog.Error("failed to resolve endpoint", "host", cfg.Host, "error", err)
		os.Exit(1)
	}

	opts := []socket.Option{
		socket.MessageMaxSize(cfg.MaxMessageSize),
		socket.DrainOversizedOption(cfg.DrainOversized),
	}

	switch cfg.Mode {
	case modeServer:
		err = runServer(ctx, ep, cfg.Backlog, opts)
	case modeClient:
		err = runClient(ctx, ep, opts)
	}
	if err != nil && ctx.Err() == nil {
		slog.Error("echo failed", "mode", cfg.Mode, "error", err)
		os.Exit(1)
	}
}

// resolveConfig layers defaults, the config file and explicitly set flags.
func resolveConfig() (config, error) {
	cfg := defaultConfig()

	if *configFlag != "" {
		var err error
		if cfg, err = loadConfig(*configFlag, cfg); err != nil {
			return config{}, err
		}
	}

	flags := pflag.CommandLine
	if flags.Changed("mode") {
		cfg.Mode = *modeFlag
	}
	if flags.Changed("host") {
		cfg.Host = *hostFlag
	}
	if flags.Changed("port") {
		cfg.Port = *portFlag
	}
	if flags.Changed("backlog") {
		cfg.Backlog = *backlogFlag
	}
	if flags.Changed("max-size") {
		cfg.MaxMessageSize = *maxSizeFlag
	}
	if flags.Changed("drain") {
		cfg.DrainOversized = *drainFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = *levelFlag
	}

	return cfg, cfg.validate()
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func runServer(ctx context.Context, ep socket.Endpoint, backlog int, opts []socket.Option) error {
	server, err := socket.Listen(ep, backlog, socket.ServerSocketOptions(opts...))
	if err != nil {
		return err
	}

	handler := newHandler()
	defer handler.closeAll()

	slog.Info("server start", "addr", ep.String())
	return server.Serve(ctx, handler)
}

func runClient(ctx context.Context, ep socket.Endpoint, opts []socket.Option) error {
	sock := socket.New(ep.IPVersion(), opts...)
	if err := sock.Create(); err != nil {
		return err
	}
	defer sock.Close()

	if err := sock.Connect(ep); err != nil {
		return err
	}

	// Stdin reads cannot be interrupted; shutting the socket down at least
	// unblocks a pending RecvMessage.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = sock.Shutdown(socket.ShutdownBoth)
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	var (
		scanner = bufio.NewScanner(os.Stdin)
		reply   socket.Packet
	)
	for scanner.Scan() {
		request, err := socket.NewPacket(scanner.Bytes())
		if err != nil {
			slog.Warn("line skipped", "error", err)
			continue
		}
		if err = sock.SendMessage(request); err != nil {
			return err
		}
		if err = sock.RecvMessage(&reply); err != nil {
			return err
		}
		fmt.Println(string(reply.Body()))
	}
	return scanner.Err()
}
