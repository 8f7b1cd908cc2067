// Package mapserver implements a pair of trivial colon-delimited
// key/value stores, one over UDP and one over TCP -- not part of the
// DHT ring protocol, but a minimal, independently runnable target for
// exercising a client against something simpler than a ring.
package mapserver

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Store is the shared, mutex-guarded key/value map behind both the UDP
// and TCP servers.
type Store struct {
	mu   sync.Mutex
	data map[string]string
}

func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

// handle applies one colon-delimited command line and returns the
// reply payload. The grammar is "get:key", "put:key:value",
// "remove:key", and (TCP only) "get all".
func (s *Store) handle(command string) string {
	if command == "get all" {
		return s.getAll()
	}
	split := strings.SplitN(command, ":", 2)
	if len(split) != 2 {
		return "error:unrecognizable input:" + command
	}
	switch split[0] {
	case "get":
		return s.get(split[1])
	case "put":
		return s.put(split[1])
	case "remove":
		return s.remove(split[1])
	default:
		return "error:unrecognizable input:" + command
	}
}

func (s *Store) get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if val, ok := s.data[key]; ok {
		return "ok:" + val
	}
	return "no match"
}

func (s *Store) put(rest string) string {
	split := strings.SplitN(rest, ":", 2)
	if len(split) != 2 {
		return "error:unrecognizable input:put:" + rest
	}
	key, val := split[0], split[1]
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.data[key]
	s.data[key] = val
	if existed {
		return "updated:" + key
	}
	return "ok"
}

func (s *Store) remove(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		return "ok"
	}
	return "no match"
}

func (s *Store) getAll() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return "no match"
	}
	parts := make([]string, 0, len(s.data))
	for k, v := range s.data {
		parts = append(parts, k+":"+v)
	}
	return strings.Join(parts, "::")
}

// UDPServer answers get/put/remove requests over a single datagram
// socket.
type UDPServer struct {
	logger *zap.Logger
	conn   *net.UDPConn
	store  *Store
}

func NewUDPServer(logger *zap.Logger, ip string, port int) (*UDPServer, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(ip), Port: port})
	if err != nil {
		return nil, fmt.Errorf("mapserver: opening udp socket: %w", err)
	}
	return &UDPServer{logger: logger, conn: conn, store: NewStore()}, nil
}

func (s *UDPServer) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

func (s *UDPServer) Close() error {
	return s.conn.Close()
}

// Serve blocks, answering requests until the socket is closed.
func (s *UDPServer) Serve() {
	buf := make([]byte, 3000)
	for {
		n, raddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		command := string(buf[:n])
		reply := "error:unrecognizable input:" + command
		if command != "get all" {
			reply = s.store.handle(command)
		}
		if _, err := s.conn.WriteToUDP([]byte(reply), raddr); err != nil {
			s.logger.Warn("replying to map request", zap.Error(err), zap.Stringer("from", raddr))
		}
	}
}

// TCPServer answers the same command grammar plus "get all" over a
// per-connection newline-delimited stream.
type TCPServer struct {
	logger   *zap.Logger
	listener *net.TCPListener
	store    *Store
}

func NewTCPServer(logger *zap.Logger, ip string, port int) (*TCPServer, error) {
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP(ip), Port: port})
	if err != nil {
		return nil, fmt.Errorf("mapserver: opening tcp listener: %w", err)
	}
	return &TCPServer{logger: logger, listener: ln, store: NewStore()}, nil
}

func (s *TCPServer) LocalAddr() *net.TCPAddr {
	return s.listener.Addr().(*net.TCPAddr)
}

func (s *TCPServer) Close() error {
	return s.listener.Close()
}

// Serve blocks, accepting connections and handling each on its own
// goroutine until the listener is closed.
func (s *TCPServer) Serve() {
	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *TCPServer) handleConn(conn *net.TCPConn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		reply := s.store.handle(scanner.Text())
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			s.logger.Warn("replying on tcp map connection", zap.Error(err))
			return
		}
	}
}
