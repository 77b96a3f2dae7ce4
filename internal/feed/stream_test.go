package feed_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/attendance-management/internal/attendance"
	"github.com/frahmantamala/attendance-management/internal/auth"
	"github.com/frahmantamala/attendance-management/internal/feed"
	"github.com/frahmantamala/attendance-management/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type sseFrame struct {
	ID    string
	Event string
	Data  string
}

// readFrame reads one SSE frame, skipping heartbeat comments.
func readFrame(r *bufio.Reader) (sseFrame, error) {
	var f sseFrame
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return f, err
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if f.Event != "" {
				return f, nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			f.ID = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			f.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.Data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func withUser(u *auth.User, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u != nil {
			r = r.WithContext(auth.ContextWithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

var _ = Describe("StreamHandler", func() {
	var (
		hub     *feed.Hub
		handler *feed.StreamHandler
		user    *auth.User
		server  *httptest.Server
	)

	BeforeEach(func() {
		hub = feed.NewHub(8, quietLogger())
		handler = feed.NewStreamHandler(transport.NewBaseHandler(quietLogger()), hub, auth.NewPermissionChecker(), 20*time.Millisecond)
		user = &auth.User{ID: 7}
		server = httptest.NewServer(withUser(user, http.HandlerFunc(handler.Stream)))
	})

	AfterEach(func() {
		server.Close()
		hub.Close()
	})

	open := func(query string) (*http.Response, *bufio.Reader, context.CancelFunc) {
		ctx, cancel := context.WithCancel(context.Background())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+query, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp, bufio.NewReader(resp.Body), cancel
	}

	It("sends connected, then matching events with their id", func() {
		resp, r, cancel := open("")
		defer cancel()
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

		frame, err := readFrame(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame.Event).To(Equal("connected"))

		hub.Broadcast(newEvent(1, 8, nil))
		hub.Broadcast(newEvent(2, 7, nil))

		frame, err = readFrame(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame.Event).To(Equal("attendance"))
		Expect(frame.ID).To(Equal("evt-2"))

		var ev attendance.Event
		Expect(json.Unmarshal([]byte(frame.Data), &ev)).To(Succeed())
		Expect(ev.UserID).To(Equal(int64(7)))
	})

	It("keeps the connection alive with heartbeats", func() {
		resp, r, cancel := open("")
		defer cancel()
		defer resp.Body.Close()

		_, err := readFrame(r)
		Expect(err).NotTo(HaveOccurred())

		line, err := r.ReadString('\n')
		Expect(err).NotTo(HaveOccurred())
		Expect(line).To(Equal(": heartbeat\n"))
	})

	It("forbids watching another user without report permissions", func() {
		resp, err := http.Get(server.URL + "?userId=8")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})

	It("rejects a malformed filter", func() {
		resp, err := http.Get(server.URL + "?employeeId=abc")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("lets report users watch anyone", func() {
		user.Permissions = []string{auth.PermissionReportsView}

		resp, r, cancel := open("?userId=8")
		defer cancel()
		defer resp.Body.Close()

		frame, err := readFrame(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame.Event).To(Equal("connected"))
		Expect(frame.Data).To(ContainSubstring(`"userId":8`))

		hub.Broadcast(newEvent(1, 8, nil))
		frame, err = readFrame(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame.ID).To(Equal("evt-1"))
	})

	It("emits an unavailable notice when the feed cannot be joined", func() {
		hub.SetAvailable(false)

		resp, r, cancel := open("")
		defer cancel()
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		frame, err := readFrame(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame.Event).To(Equal("unavailable"))
	})

	It("emits an unavailable notice when the feed drops mid-stream", func() {
		resp, r, cancel := open("")
		defer cancel()
		defer resp.Body.Close()

		_, err := readFrame(r)
		Expect(err).NotTo(HaveOccurred())

		hub.SetAvailable(false)
		frame, err := readFrame(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame.Event).To(Equal("unavailable"))
	})

	It("releases the subscription when the client disconnects", func() {
		resp, r, cancel := open("")
		_, err := readFrame(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(hub.Subscribers()).To(Equal(1))

		cancel()
		resp.Body.Close()
		Eventually(hub.Subscribers, 2*time.Second).Should(Equal(0))
	})
})
