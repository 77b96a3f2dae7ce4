package feed_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/attendance-management/internal/auth"
	"github.com/frahmantamala/attendance-management/internal/feed"
	"github.com/frahmantamala/attendance-management/internal/transport"
	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type socketFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

var _ = Describe("SocketHandler", func() {
	var (
		hub     *feed.Hub
		handler *feed.SocketHandler
		server  *httptest.Server
		cancel  context.CancelFunc
	)

	BeforeEach(func() {
		hub = feed.NewHub(8, quietLogger())
		handler = feed.NewSocketHandler(transport.NewBaseHandler(quietLogger()), hub, auth.NewPermissionChecker())
		server = httptest.NewServer(withUser(&auth.User{ID: 7}, http.HandlerFunc(handler.Serve)))

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		go handler.Run(ctx)
		Eventually(hub.Subscribers).Should(Equal(1))
	})

	AfterEach(func() {
		cancel()
		handler.Close()
		server.Close()
		hub.Close()
	})

	dial := func() *websocket.Conn {
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		Expect(err).NotTo(HaveOccurred())
		return conn
	}

	read := func(conn *websocket.Conn) socketFrame {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var f socketFrame
		Expect(conn.ReadJSON(&f)).To(Succeed())
		return f
	}

	It("greets the client and forwards only its own events", func() {
		conn := dial()
		defer conn.Close()

		Expect(read(conn).Event).To(Equal("connected"))
		Eventually(handler.Sessions).Should(Equal(1))

		hub.Broadcast(newEvent(1, 8, nil))
		hub.Broadcast(newEvent(2, 7, nil))

		frame := read(conn)
		Expect(frame.Event).To(Equal("attendance"))
		Expect(string(frame.Data)).To(ContainSubstring(`"id":"evt-2"`))
	})

	It("tells connected clients when the feed goes away", func() {
		conn := dial()
		defer conn.Close()
		Expect(read(conn).Event).To(Equal("connected"))

		hub.SetAvailable(false)
		Expect(read(conn).Event).To(Equal("unavailable"))
	})

	It("rejects watching another user before upgrading", func() {
		resp, err := http.Get(server.URL + "?userId=9")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})
})
