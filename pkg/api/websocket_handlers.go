package api

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-teleop/motion-controller/pkg/log"
)

// DefaultHeadingInterval is the push period of the heading stream.
const DefaultHeadingInterval = 100 * time.Millisecond

// HeadingSource reports the current absolute heading in degrees.
type HeadingSource interface {
	Rotation() (float64, error)
}

// headingAger is implemented by sources that know how old their heading is.
type headingAger interface {
	HeadingAge() (time.Duration, bool)
}

// NewHeadingMessage samples source once.
func NewHeadingMessage(source HeadingSource, now time.Time) HeadingMessage {
	msg := HeadingMessage{TimestampMs: now.UnixMilli()}
	heading, err := source.Rotation()
	if err != nil {
		msg.Error = err.Error()
		return msg
	}
	msg.Available = true
	msg.HeadingDeg = &heading
	if ager, ok := source.(headingAger); ok {
		if age, ok := ager.HeadingAge(); ok {
			ms := age.Milliseconds()
			msg.AgeMs = &ms
		}
	}
	return msg
}

// RegisterHeadingRoutes mounts the heading stream at /ws/heading. Middleware
// runs before the upgrade.
func RegisterHeadingRoutes(router fiber.Router, source HeadingSource, interval time.Duration, logger customlog.Logger, middleware ...fiber.Handler) {
	if interval <= 0 {
		interval = DefaultHeadingInterval
	}

	ws := router.Group("/ws", middleware...)
	ws.Use(func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	ws.Get("/heading", websocket.New(func(conn *websocket.Conn) {
		HeadingWebSocketHandler(conn, source, interval, logger)
	}))

	logger.Infof("Registered heading WebSocket at /ws/heading (every %v)", interval)
}

// HeadingWebSocketHandler pushes a HeadingMessage every interval until the
// client goes away.
func HeadingWebSocketHandler(conn *websocket.Conn, source HeadingSource, interval time.Duration, logger customlog.Logger) {
	logger.Infof("Heading WebSocket connected: %s", conn.RemoteAddr())

	// Reads only detect the close; clients have nothing to send.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warnf("Heading WS read error: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			logger.Infof("Heading WebSocket disconnected: %s", conn.RemoteAddr())
			return
		case now := <-ticker.C:
			if err := conn.WriteJSON(NewHeadingMessage(source, now)); err != nil {
				logger.Infof("Heading WS write failed, closing: %v", err)
				return
			}
		}
	}
}
