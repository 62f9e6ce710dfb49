package fastview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// The default rate at which ele-updates will be sent to the client, so as not to overburden.
	DEFAULT_PUB_RESOLUTION = time.Millisecond * 100
	pingResolution         = time.Millisecond * 200
	// The number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// MessageHandler handles a message from the page, optionally returning a reply that is
// sent straight back to that page only, bypassing the publish throttle.
type MessageHandler[T any] func(msg ClientMessage) (reply T, ok bool)

type ClientOptions[T any] struct {
	// Handler receives every well-formed message the page sends. May be nil.
	Handler MessageHandler[T]
	// Greeting, if set, is written before any update, to bring a new page up to date.
	Greeting func() (T, bool)
	// Merge folds an update into one still waiting on the throttle. When nil the
	// waiting update is replaced, which is only right if every update is complete.
	Merge func(older, newer T) T
	// PublishResolution is the minimum interval between two published updates.
	PublishResolution time.Duration
	Clock             clockwork.Clock
	Logger            logrus.FieldLogger
}

// A client publishes idempotent view updates to one page over a websocket, and
// feeds the page's messages (user actions) back to a handler.
type client[T any] struct {
	updates <-chan T
	replies chan T
	opts    ClientOptions[T]
	ws      *websock
	rootCtx context.Context
}

// NewClient upgrades the request to a websocket and returns a client for it. Items in
// the updates chan should represent idempotent update objects. Updates received too
// quickly (> pub-rate) are folded together with opts.Merge and sent as one.
func NewClient[T any](
	ctx context.Context,
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
	opts ClientOptions[T],
) (*client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied to the request.
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	if opts.PublishResolution <= 0 {
		opts.PublishResolution = DEFAULT_PUB_RESOLUTION
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &client[T]{
		updates: updates,
		replies: make(chan T, 1),
		opts:    opts,
		ws:      NewWebSocket(ws),
		rootCtx: ctx,
	}, nil
}

// Sync runs the client until the page disconnects or the context is cancelled,
// publishing incoming updates at the configured rate; updates received faster than
// that rate are merged and sent together. Sync closes the websocket before returning.
// Sync returns nil upon client disconnect or an error if an unexpected error occurred.
func (cli *client[T]) Sync() error {
	// Any routine returning tears the others down, not only a failing one.
	ctx, cancel := context.WithCancel(cli.rootCtx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(ctx)

	run := func(fn func(context.Context) error) func() error {
		return func() error {
			defer cancel()
			err := fn(groupCtx)
			if ctx.Err() != nil {
				// Errors after teardown began are the teardown itself.
				return nil
			}
			return err
		}
	}

	group.Go(run(cli.readMessages))
	group.Go(run(cli.pingPong))
	group.Go(run(cli.publish))
	group.Go(func() error {
		// A blocked read only returns once the connection is closed.
		<-groupCtx.Done()
		cli.ws.Close()
		return nil
	})

	return group.Wait()
}

var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// Runs the ping-pong for the client liveness check.
// NOTE: This function requires that readMessages is running to ensure the pong handler is called.
func (cli *client[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{})
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		case <-ctx.Done():
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := cli.opts.Clock.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if cli.opts.Clock.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}

			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = cli.opts.Clock.Now()
		}
	}
}

func (cli *client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if isError(err) {
					err = fmt.Errorf("ping failed: %T %w", err, err)
				}
			}
			return
		})
}

// readMessages decodes messages from the page and passes them to the handler.
// Errors returned by websocket Read methods are permanent, hence any error
// must trigger full teardown; a malformed message is only logged.
func (cli *client[T]) readMessages(ctx context.Context) error {
	for {
		var data []byte
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, data, readErr = ws.ReadMessage()
				return
			})
		if err != nil {
			if ctx.Err() != nil || isClosure(err) {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
		if data == nil {
			// The read was skipped because the context is done.
			return nil
		}

		var msg ClientMessage
		if err = json.Unmarshal(data, &msg); err != nil {
			cli.opts.Logger.WithError(err).Warn("malformed client message")
			continue
		}
		if cli.opts.Handler == nil {
			continue
		}
		if reply, ok := cli.opts.Handler(msg); ok {
			select {
			case cli.replies <- reply:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (cli *client[T]) publish(ctx context.Context) error {
	if cli.opts.Greeting != nil {
		if greeting, ok := cli.opts.Greeting(); ok {
			if err := cli.writeJSON(ctx, greeting); err != nil {
				return err
			}
		}
	}

	var (
		lastSync time.Time
		pending  *T
		flush    <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case reply := <-cli.replies:
			if err := cli.writeJSON(ctx, reply); err != nil {
				return err
			}
		case <-flush:
			flush = nil
			if pending != nil {
				lastSync = cli.opts.Clock.Now()
				if err := cli.writeJSON(ctx, *pending); err != nil {
					return err
				}
				pending = nil
			}
		case updates, ok := <-cli.updates:
			// Graceful input channel closure
			if !ok {
				return nil
			}
			// Hold updates received too quickly, folded into one, and send them once
			// the resolution has passed.
			wait := cli.opts.PublishResolution - cli.opts.Clock.Since(lastSync)
			if !lastSync.IsZero() && wait > 0 {
				if pending != nil && cli.opts.Merge != nil {
					updates = cli.opts.Merge(*pending, updates)
				}
				pending = &updates
				if flush == nil {
					flush = cli.opts.Clock.After(wait)
				}
				break
			}

			lastSync = cli.opts.Clock.Now()
			pending = nil
			if err := cli.writeJSON(ctx, updates); err != nil {
				return err
			}
		}
	}
}

func (cli *client[T]) writeJSON(ctx context.Context, v T) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (writeErr error) {
			if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
				writeErr = fmt.Errorf("failed to set deadline: %T %w", writeErr, writeErr)
				return
			}

			if writeErr = ws.WriteJSON(v); writeErr != nil {
				if isError(writeErr) {
					writeErr = fmt.Errorf("publish failed: %T %w", writeErr, writeErr)
				}
			}
			return
		})
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	readDeadline  = time.Second
	writeDeadline = time.Second
)

// websock merely serializes reads and writes to the websocket, whose requirements
// are that there may be only one concurrent read and writer at a time.
type websock struct {
	// These are merely mutexes, but channel semantics are cleaner.
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func NewWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Returns the underlying websocket.
// This should only be used non-concurrently for setup, e.g. adding handlers.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Close sends a close frame, if the writer is free, and closes the connection. Any
// blocked read returns with an error.
func (sock *websock) Close() {
	select {
	case sock.writeSem <- struct{}{}:
		_ = sock.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = sock.ws.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		<-sock.writeSem
	case <-time.After(writeDeadline):
	}
	sock.ws.Close()
}

// Read serializes read operations on the internal web socket.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	case <-time.After(readDeadline):
		return ErrSockCongestion
	}
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
