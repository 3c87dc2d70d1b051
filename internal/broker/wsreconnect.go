package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"gridengine/pkg/utils"
)

// wsReconnectConfig controls the exponential-backoff reconnect loop a
// live price-feed subscription runs under.
type wsReconnectConfig struct {
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	MaxRetries     int
	ConnectTimeout time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
}

func defaultWSReconnectConfig() wsReconnectConfig {
	return wsReconnectConfig{
		InitialDelay:   2 * time.Second,
		MaxDelay:       16 * time.Second,
		MaxRetries:     10,
		ConnectTimeout: 10 * time.Second,
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
	}
}

type wsConnState int32

const (
	wsDisconnected wsConnState = iota
	wsConnecting
	wsConnected
	wsReconnecting
	wsClosed
)

func (s wsConnState) String() string {
	switch s {
	case wsConnecting:
		return "connecting"
	case wsConnected:
		return "connected"
	case wsReconnecting:
		return "reconnecting"
	case wsClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

// wsReconnectManager keeps a single exchange WebSocket connection
// alive across drops: exponential backoff, ping/pong liveness, and
// replay of subscriptions once the connection is re-established. The
// engine never sees a reconnect, only a gap in ticker callbacks.
type wsReconnectManager struct {
	name   string
	url    string
	config wsReconnectConfig
	logger *utils.Logger

	conn   *websocket.Conn
	connMu sync.RWMutex

	state      int32
	retryCount int32

	closeChan chan struct{}
	closeOnce sync.Once

	onMessage    func([]byte)
	onConnect    func()
	onDisconnect func(error)
	callbackMu   sync.RWMutex

	subscriptions   []interface{}
	subscriptionsMu sync.RWMutex

	authFunc func(*websocket.Conn) error
}

func newWSReconnectManager(name, url string, config wsReconnectConfig, logger *utils.Logger) *wsReconnectManager {
	return &wsReconnectManager{
		name:      name,
		url:       url,
		config:    config,
		logger:    logger,
		closeChan: make(chan struct{}),
	}
}

func (m *wsReconnectManager) SetOnMessage(h func([]byte))    { m.callbackMu.Lock(); m.onMessage = h; m.callbackMu.Unlock() }
func (m *wsReconnectManager) SetOnConnect(h func())          { m.callbackMu.Lock(); m.onConnect = h; m.callbackMu.Unlock() }
func (m *wsReconnectManager) SetOnDisconnect(h func(error))  { m.callbackMu.Lock(); m.onDisconnect = h; m.callbackMu.Unlock() }
func (m *wsReconnectManager) SetAuthFunc(f func(*websocket.Conn) error) { m.authFunc = f }

func (m *wsReconnectManager) AddSubscription(sub interface{}) {
	m.subscriptionsMu.Lock()
	m.subscriptions = append(m.subscriptions, sub)
	m.subscriptionsMu.Unlock()
}

func (m *wsReconnectManager) State() wsConnState {
	return wsConnState(atomic.LoadInt32(&m.state))
}

func (m *wsReconnectManager) Connect() error {
	select {
	case <-m.closeChan:
		return fmt.Errorf("%s: reconnect manager is closed", m.name)
	default:
	}

	atomic.StoreInt32(&m.state, int32(wsConnecting))
	if err := m.dial(); err != nil {
		atomic.StoreInt32(&m.state, int32(wsDisconnected))
		return err
	}
	atomic.StoreInt32(&m.state, int32(wsConnected))
	atomic.StoreInt32(&m.retryCount, 0)

	m.callbackMu.RLock()
	onConnect := m.onConnect
	m.callbackMu.RUnlock()
	if onConnect != nil {
		onConnect()
	}

	go m.readPump()
	go m.pingPump()
	return nil
}

func (m *wsReconnectManager) dial() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: m.config.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("%s: dial: %w", m.name, err)
	}

	m.connMu.Lock()
	m.conn = conn
	m.connMu.Unlock()

	if m.authFunc != nil {
		if err := m.authFunc(conn); err != nil {
			conn.Close()
			m.connMu.Lock()
			m.conn = nil
			m.connMu.Unlock()
			return fmt.Errorf("%s: auth: %w", m.name, err)
		}
	}

	if err := m.resubscribe(); err != nil && m.logger != nil {
		m.logger.Warn("resubscribe after reconnect failed", utils.String("feed", m.name), utils.Err(err))
	}
	return nil
}

func (m *wsReconnectManager) resubscribe() error {
	m.subscriptionsMu.RLock()
	subs := make([]interface{}, len(m.subscriptions))
	copy(subs, m.subscriptions)
	m.subscriptionsMu.RUnlock()

	m.connMu.RLock()
	conn := m.conn
	m.connMu.RUnlock()
	if conn == nil {
		return fmt.Errorf("no connection")
	}
	for _, sub := range subs {
		if err := conn.WriteJSON(sub); err != nil {
			return err
		}
	}
	return nil
}

func (m *wsReconnectManager) readPump() {
	defer m.handleDisconnect(nil)
	for {
		select {
		case <-m.closeChan:
			return
		default:
		}
		m.connMu.RLock()
		conn := m.conn
		m.connMu.RUnlock()
		if conn == nil {
			return
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(err)
			return
		}
		m.callbackMu.RLock()
		onMessage := m.onMessage
		m.callbackMu.RUnlock()
		if onMessage != nil {
			onMessage(message)
		}
	}
}

func (m *wsReconnectManager) pingPump() {
	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.closeChan:
			return
		case <-ticker.C:
			m.connMu.RLock()
			conn := m.conn
			m.connMu.RUnlock()
			if conn == nil || m.State() != wsConnected {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(m.config.PongTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.handleDisconnect(err)
				return
			}
		}
	}
}

func (m *wsReconnectManager) handleDisconnect(err error) {
	select {
	case <-m.closeChan:
		return
	default:
	}
	state := m.State()
	if state == wsReconnecting || state == wsClosed {
		return
	}
	atomic.StoreInt32(&m.state, int32(wsReconnecting))

	m.connMu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.connMu.Unlock()

	m.callbackMu.RLock()
	onDisconnect := m.onDisconnect
	m.callbackMu.RUnlock()
	if onDisconnect != nil {
		onDisconnect(err)
	}
	if err != nil && m.logger != nil {
		m.logger.Warn("price feed disconnected", utils.String("feed", m.name), utils.Err(err))
	}

	go m.reconnectLoop()
}

func (m *wsReconnectManager) reconnectLoop() {
	delay := m.config.InitialDelay
	for {
		select {
		case <-m.closeChan:
			return
		default:
		}

		retryCount := atomic.AddInt32(&m.retryCount, 1)
		if m.config.MaxRetries > 0 && int(retryCount) > m.config.MaxRetries {
			atomic.StoreInt32(&m.state, int32(wsDisconnected))
			if m.logger != nil {
				m.logger.Error("price feed gave up reconnecting", utils.String("feed", m.name), utils.Int("attempts", int(retryCount)))
			}
			return
		}

		select {
		case <-m.closeChan:
			return
		case <-time.After(delay):
		}

		if err := m.dial(); err != nil {
			delay *= 2
			if delay > m.config.MaxDelay {
				delay = m.config.MaxDelay
			}
			continue
		}

		atomic.StoreInt32(&m.state, int32(wsConnected))
		atomic.StoreInt32(&m.retryCount, 0)

		m.callbackMu.RLock()
		onConnect := m.onConnect
		m.callbackMu.RUnlock()
		if onConnect != nil {
			onConnect()
		}

		go m.readPump()
		go m.pingPump()
		return
	}
}

func (m *wsReconnectManager) Send(msg interface{}) error {
	if m.State() != wsConnected {
		return fmt.Errorf("%s: not connected (state %s)", m.name, m.State())
	}
	m.connMu.RLock()
	conn := m.conn
	m.connMu.RUnlock()
	if conn == nil {
		return fmt.Errorf("%s: no connection", m.name)
	}
	return conn.WriteJSON(msg)
}

func (m *wsReconnectManager) Close() error {
	m.closeOnce.Do(func() { close(m.closeChan) })
	atomic.StoreInt32(&m.state, int32(wsClosed))

	m.connMu.Lock()
	defer m.connMu.Unlock()
	if m.conn != nil {
		err := m.conn.Close()
		m.conn = nil
		return err
	}
	return nil
}
