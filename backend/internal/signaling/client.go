package signaling

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/BioHazard786/Questroom/internal/directory"
	"github.com/BioHazard786/Questroom/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP blobs are the largest.
	maxMessageSize = 64 * 1024

	sendBuffer = 256
)

// Client is a single websocket connection (a peer).
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn

	// Send is a buffered channel of outbound messages drained by WritePump.
	Send chan *protocol.Message

	// Set by the hub once the hello is accepted and only touched from the
	// hub goroutine. The pumps identify the connection by remote address.
	ID      string
	Name    string
	Version string

	// evicted is set by the hub when a control message could not be queued.
	evicted bool

	// poses limits inbound pose traffic; excess samples are dropped since
	// only the latest one matters.
	poses *rate.Limiter
}

// NewClient wraps conn for hub. poseRate is the sustained number of pose
// messages per second accepted from this client.
func NewClient(hub *Hub, conn *websocket.Conn, poseRate float64, poseBurst int) *Client {
	return &Client{
		Hub:   hub,
		Conn:  conn,
		Send:  make(chan *protocol.Message, sendBuffer),
		poses: rate.NewLimiter(rate.Limit(poseRate), poseBurst),
	}
}

func (c *Client) peer() directory.Peer {
	return directory.Peer{ID: c.ID, Name: c.Name, Version: c.Version}
}

func (c *Client) info() protocol.PeerInfo {
	return protocol.PeerInfo{ID: c.ID, Name: c.Name}
}

// allowPose reports whether a pose message may be relayed now.
func (c *Client) allowPose() bool {
	if c.poses == nil {
		return true
	}
	return c.poses.Allow()
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregisterClient(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("remote", remoteAddr(c)).Msg("read failed")
			}
			return
		}

		if msg.Type == protocol.TypePose && !c.allowPose() {
			continue
		}

		if !c.Hub.submit(inbound{client: c, msg: &msg}) {
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				log.Warn().Err(err).Str("remote", remoteAddr(c)).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
