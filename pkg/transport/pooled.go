package transport

import (
	"context"
	"expvar"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
)

const _expvarPrefix = "httpcore.client.conn_pools"

var _expvar = expvar.NewMap(_expvarPrefix)

// NewPooled creates an *http.Transport with the given options and wraps its
// dialer, returning a PooledTransport that counts open connections per
// network address.
func NewPooled(name string, opts ...Option) *PooledTransport {
	return NewPooledFromTransport(name, NewTransport(opts...))
}

// NewPooledFromTransport wraps an existing *http.Transport.
func NewPooledFromTransport(name string, transport *http.Transport) *PooledTransport {
	t := &PooledTransport{
		Transport: transport,
		Name:      name,
	}

	dial := t.DialContext
	t.DialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
		conn, err := dial(ctx, network, address)
		if err != nil {
			return nil, err
		}
		t.addConn(network, address, 1)
		return &countedConn{
			Conn:    conn,
			onClose: func() { t.addConn(network, address, -1) },
		}, nil
	}

	_expvar.Set(name, expvar.Func(func() any { return t.Stats() }))

	return t
}

// PooledTransport is an http.RoundTripper exposing the number of
// connections it holds open per network address, published under expvar.
type PooledTransport struct {
	*http.Transport

	Name  string
	stats sync.Map
}

func (t *PooledTransport) addConn(network, address string, delta int64) {
	value, _ := t.stats.LoadOrStore(network+":"+address, new(int64))
	atomic.AddInt64(value.(*int64), delta)
}

// Stats returns the open-connection count per network address.
func (t *PooledTransport) Stats() map[string]int64 {
	stats := map[string]int64{}

	t.stats.Range(func(key, value any) bool {
		stats[key.(string)] = atomic.LoadInt64(value.(*int64))
		return true
	})

	return stats
}

type countedConn struct {
	net.Conn

	once    sync.Once
	onClose func()
}

// Close closes the connection, decrementing the pool count exactly once.
func (c *countedConn) Close() error {
	defer c.once.Do(c.onClose)
	return c.Conn.Close()
}
