package main

import (
	"bufio"
	"bytes"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"matchpoint/internal/protocol"
	"matchpoint/internal/secure"
)

// heartbeatInterval keeps us comfortably inside the server's 5s window.
const heartbeatInterval = 1 * time.Second

// Client is a minimal control-channel peer used for exercising the server
// from a terminal.
type Client struct {
	serverHost string

	conn net.Conn

	mu       sync.Mutex
	id       string
	key      []byte
	exchange *secure.Exchange
	udpConn  net.PacketConn

	done chan struct{}
}

func dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return &Client{
		serverHost: host,
		conn:       conn,
		done:       make(chan struct{}),
	}, nil
}

// negotiate starts the key exchange. The reply is handled in the read loop.
func (c *Client) negotiate() error {
	ex, err := secure.NewExchange()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.exchange = ex
	c.mu.Unlock()
	return c.send(&protocol.KeyExchange{PublicKey: ex.PublicKey()})
}

func (c *Client) send(p protocol.Payload) error {
	body, err := protocol.EncodePayload(p)
	if err != nil {
		return err
	}

	c.mu.Lock()
	id, key := c.id, c.key
	c.mu.Unlock()

	header := protocol.Header{ClientID: id}
	if key != nil && p.Tag() != protocol.TagKeyExchange {
		sealed, err := secure.Seal(key, body)
		if err != nil {
			return err
		}
		header.Encrypted = true
		body = sealed
	}
	return protocol.WriteFrame(c.conn, header, body)
}

func (c *Client) readLoop() {
	defer close(c.done)

	r := bufio.NewReader(c.conn)
	for {
		header, body, err := protocol.ReadFrame(r, protocol.DefaultMaxFrameBytes)
		if err != nil {
			log.Println("connection closed:", err)
			return
		}
		if header.Encrypted {
			c.mu.Lock()
			key := c.key
			c.mu.Unlock()
			if key == nil {
				log.Println("encrypted message before key exchange completed")
				continue
			}
			body, err = secure.Open(key, body)
			if err != nil {
				log.Println("decrypt failed:", err)
				continue
			}
		}
		payload, err := protocol.DecodePayload(body)
		if err != nil {
			log.Println("decode failed:", err)
			continue
		}
		c.handle(payload)
	}
}

func (c *Client) handle(p protocol.Payload) {
	switch msg := p.(type) {
	case *protocol.KeyExchange:
		c.mu.Lock()
		ex := c.exchange
		c.mu.Unlock()
		if ex == nil {
			log.Println("unexpected key exchange reply")
			return
		}
		key, err := ex.SharedKey(msg.PublicKey)
		if err != nil {
			log.Println("key derivation failed:", err)
			return
		}
		c.mu.Lock()
		c.id = msg.ClientID
		c.key = key
		c.exchange = nil
		c.mu.Unlock()
		fmt.Println("registered as", msg.ClientID)
	case *protocol.LobbyResponse:
		fmt.Printf("[%s] %s: success=%v %s\n", msg.Op, msg.LobbyName, msg.Success, msg.Message)
	case *protocol.Status:
		fmt.Printf("[status/%s] %s\n", msg.Level, msg.Message)
	case *protocol.ServerInfoResponse:
		fmt.Printf("you are %q in lobby %q\n", msg.CurrentName, msg.CurrentLobby)
		for _, lb := range msg.Lobbies {
			fmt.Printf("  %s (host %s): %v\n", lb.Name, lb.Host, lb.Members)
		}
	case *protocol.MatchStart:
		fmt.Println("match starting, reporting rendezvous address on port", msg.UDPPort)
		if err := c.reportRendezvous(msg.UDPPort); err != nil {
			log.Println("rendezvous report failed:", err)
		}
	case *protocol.ConnectionDataHost:
		fmt.Println("hosting match, peer endpoints:", msg.ClientEndpoints)
	case *protocol.ConnectionDataClient:
		fmt.Println("joining match at host endpoint:", msg.HostEndpoint)
	default:
		log.Println("unhandled message:", p.Tag())
	}
}

// reportRendezvous sends the single UDP datagram whose source address the
// server records. The socket stays open so the reported address remains
// reachable for the peer connection.
func (c *Client) reportRendezvous(port int) error {
	c.mu.Lock()
	id, key := c.id, c.key
	udp := c.udpConn
	c.mu.Unlock()
	if key == nil {
		return fmt.Errorf("no channel key")
	}

	if udp == nil {
		var err error
		udp, err = net.ListenPacket("udp", ":0")
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.udpConn = udp
		c.mu.Unlock()
	}

	serverAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(c.serverHost, fmt.Sprint(port)))
	if err != nil {
		return err
	}

	body, err := protocol.EncodePayload(&protocol.MatchStartResponse{ClientID: id})
	if err != nil {
		return err
	}
	sealed, err := secure.Seal(key, body)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := protocol.WriteFrame(&buf, protocol.Header{ClientID: id, Encrypted: true}, sealed); err != nil {
		return err
	}
	_, err = udp.WriteTo(buf.Bytes(), serverAddr)
	return err
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			id := c.id
			c.mu.Unlock()
			if id == "" {
				continue
			}
			if err := c.send(&protocol.Heartbeat{ClientID: id}); err != nil {
				return
			}
		}
	}
}

// waitReady polls until the key exchange has completed or the timeout
// elapses.
func (c *Client) waitReady(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		ready := c.id != ""
		c.mu.Unlock()
		if ready {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func (c *Client) close() {
	c.conn.Close()
	c.mu.Lock()
	if c.udpConn != nil {
		c.udpConn.Close()
	}
	c.mu.Unlock()
}
