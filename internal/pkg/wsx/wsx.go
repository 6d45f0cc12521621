package wsx

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout 控制帧写超时
const DefaultTimeout = 5 * time.Second

var (
	NormalCloseErr   = errors.New("websocket closed normally")
	AbnormalCloseErr = errors.New("websocket closed abnormally")

	normalCloseMsg = websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
)

// IsNormal 是否为正常关闭（或无错误）
func IsNormal(err error) bool {
	return err == nil || errors.Is(err, NormalCloseErr)
}

// Upgrader 默认升级器，跨域校验交给 CORS 中间件
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Client 封装 gorilla/websocket 连接的常用读写
// 单线程读，写操作加锁，可以从多个 goroutine 并发写
type Client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool // 受 mu 保护

	// peerClosed 对端已关闭，读 goroutine 也会写入
	peerClosed atomic.Bool
}

// Upgrade 升级 HTTP 连接
func Upgrade(w http.ResponseWriter, r *http.Request) (*Client, error) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient 包装已有连接
func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// classifyErr 将关闭类错误归为 NormalCloseErr / AbnormalCloseErr
func (ws *Client) classifyErr(err error) error {
	switch {
	case err == nil:
		return nil
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		ws.peerClosed.Store(true)
		return NormalCloseErr
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		log.Warn().Err(err).Msg("[wsx] unexpected close")
		ws.peerClosed.Store(true)
		return AbnormalCloseErr
	default:
		return err
	}
}

// Read 读取一条消息
func (ws *Client) Read() (mt int, data []byte, err error) {
	mt, data, err = ws.conn.ReadMessage()
	return mt, data, ws.classifyErr(err)
}

// PeerClosed 对端是否已关闭连接
func (ws *Client) PeerClosed() bool {
	return ws.peerClosed.Load()
}

// WriteText 写入文本消息
func (ws *Client) WriteText(data []byte) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	_ = ws.conn.SetWriteDeadline(time.Now().Add(DefaultTimeout))
	return ws.classifyErr(ws.conn.WriteMessage(websocket.TextMessage, data))
}

// Ping 写入心跳
func (ws *Client) Ping() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.classifyErr(ws.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(DefaultTimeout)))
}

// Close 发送关闭帧并关闭连接，可重复调用
// 对端已关闭时不再发送关闭帧，但底层连接仍会释放
func (ws *Client) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return nil
	}
	ws.closed = true
	if ws.peerClosed.Load() {
		return ws.conn.Close()
	}
	if err := ws.conn.WriteControl(websocket.CloseMessage, normalCloseMsg, time.Now().Add(DefaultTimeout)); err != nil {
		log.Debug().Err(err).Msg("[wsx] send close message failed")
	}
	return ws.conn.Close()
}
