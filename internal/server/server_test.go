package server

import (
	"net"
	"testing"
	"time"

	"github.com/LucienY01/mini-redis/internal/conn"
	"github.com/LucienY01/mini-redis/internal/frame"
)

func startTestServer(t *testing.T) (addr string, srv *Server) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv = New(lis)
	srv.Quiet = true
	go srv.Serve()
	t.Cleanup(func() {
		srv.Shutdown()
		srv.Wait()
	})
	return lis.Addr().String(), srv
}

func dial(t *testing.T, addr string) *conn.Connection {
	t.Helper()
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { nc.Close() })
	return conn.New(nc)
}

// Scenario A: Ping empty.
func TestScenarioPingEmpty(t *testing.T) {
	addr, _ := startTestServer(t)
	c := dial(t, addr)

	must(t, c.WriteFrame(frame.NewArray(frame.NewBulk([]byte("ping")))))
	reply := mustRead(t, c)
	if reply.Kind != frame.Simple || reply.Str != "PONG" {
		t.Fatalf("got %#v", reply)
	}
}

// Scenario B: Ping echo.
func TestScenarioPingEcho(t *testing.T) {
	addr, _ := startTestServer(t)
	c := dial(t, addr)

	must(t, c.WriteFrame(frame.NewArray(frame.NewBulk([]byte("ping")), frame.NewBulk([]byte("hello")))))
	reply := mustRead(t, c)
	if reply.Kind != frame.Bulk || string(reply.Bulk) != "hello" {
		t.Fatalf("got %#v", reply)
	}
}

// Scenario C: Set then Get.
func TestScenarioSetThenGet(t *testing.T) {
	addr, _ := startTestServer(t)
	c := dial(t, addr)

	must(t, c.WriteFrame(frame.NewArray(frame.NewBulk([]byte("set")), frame.NewBulk([]byte("foo")), frame.NewBulk([]byte("bar")))))
	reply := mustRead(t, c)
	if reply.Kind != frame.Simple || reply.Str != "OK" {
		t.Fatalf("got %#v", reply)
	}

	must(t, c.WriteFrame(frame.NewArray(frame.NewBulk([]byte("get")), frame.NewBulk([]byte("foo")))))
	reply = mustRead(t, c)
	if reply.Kind != frame.Bulk || string(reply.Bulk) != "bar" {
		t.Fatalf("got %#v", reply)
	}
}

// Scenario D: Get missing.
func TestScenarioGetMissing(t *testing.T) {
	addr, _ := startTestServer(t)
	c := dial(t, addr)

	must(t, c.WriteFrame(frame.NewArray(frame.NewBulk([]byte("get")), frame.NewBulk([]byte("absent")))))
	reply := mustRead(t, c)
	if reply.Kind != frame.Bulk || !reply.IsNull {
		t.Fatalf("got %#v", reply)
	}
}

// Scenario E: Set with PX expiry.
func TestScenarioSetWithPXExpiry(t *testing.T) {
	addr, _ := startTestServer(t)
	c := dial(t, addr)

	arr := frame.NewArray(
		frame.NewBulk([]byte("set")),
		frame.NewBulk([]byte("k")),
		frame.NewBulk([]byte("v")),
		frame.NewBulk([]byte("PX")),
		frame.NewBulk([]byte("50")),
	)
	must(t, c.WriteFrame(arr))
	reply := mustRead(t, c)
	if reply.Kind != frame.Simple || reply.Str != "OK" {
		t.Fatalf("got %#v", reply)
	}

	time.Sleep(100 * time.Millisecond)

	must(t, c.WriteFrame(frame.NewArray(frame.NewBulk([]byte("get")), frame.NewBulk([]byte("k")))))
	reply = mustRead(t, c)
	if reply.Kind != frame.Bulk || !reply.IsNull {
		t.Fatalf("expected null after expiry, got %#v", reply)
	}
}

// Scenario F: Pub/Sub fan-out.
func TestScenarioPubSubFanOut(t *testing.T) {
	addr, _ := startTestServer(t)
	x := dial(t, addr)
	y := dial(t, addr)

	must(t, x.WriteFrame(frame.NewArray(frame.NewBulk([]byte("subscribe")), frame.NewBulk([]byte("ch1")))))
	reply := mustRead(t, x)
	if reply.Kind != frame.Array || len(reply.Array) != 3 {
		t.Fatalf("got %#v", reply)
	}
	if string(reply.Array[0].Bulk) != "subscribe" || string(reply.Array[1].Bulk) != "ch1" || reply.Array[2].Int != 1 {
		t.Fatalf("got %#v", reply)
	}

	must(t, y.WriteFrame(frame.NewArray(frame.NewBulk([]byte("publish")), frame.NewBulk([]byte("ch1")), frame.NewBulk([]byte("hi")))))
	reply = mustRead(t, y)
	if reply.Kind != frame.Integer || reply.Int != 1 {
		t.Fatalf("got %#v", reply)
	}

	reply = mustRead(t, x)
	if reply.Kind != frame.Array || len(reply.Array) != 3 {
		t.Fatalf("got %#v", reply)
	}
	if string(reply.Array[0].Bulk) != "message" || string(reply.Array[1].Bulk) != "ch1" || string(reply.Array[2].Bulk) != "hi" {
		t.Fatalf("got %#v", reply)
	}
}

// Scenario G: Unknown command.
func TestScenarioUnknownCommand(t *testing.T) {
	addr, _ := startTestServer(t)
	c := dial(t, addr)

	must(t, c.WriteFrame(frame.NewArray(frame.NewBulk([]byte("frobb")))))
	reply := mustRead(t, c)
	if reply.Kind != frame.Error || reply.Str != "ERR unknown command 'frobb'" {
		t.Fatalf("got %#v", reply)
	}
}

func TestPublishWithNoSubscribersReturnsZero(t *testing.T) {
	addr, _ := startTestServer(t)
	c := dial(t, addr)

	must(t, c.WriteFrame(frame.NewArray(frame.NewBulk([]byte("publish")), frame.NewBulk([]byte("nobody")), frame.NewBulk([]byte("x")))))
	reply := mustRead(t, c)
	if reply.Kind != frame.Integer || reply.Int != 0 {
		t.Fatalf("got %#v", reply)
	}
}

func TestUnsubscribeThenStillReceivesOnOtherChannel(t *testing.T) {
	addr, _ := startTestServer(t)
	x := dial(t, addr)
	y := dial(t, addr)

	must(t, x.WriteFrame(frame.NewArray(frame.NewBulk([]byte("subscribe")), frame.NewBulk([]byte("a")), frame.NewBulk([]byte("b")))))
	mustRead(t, x) // subscribe a
	mustRead(t, x) // subscribe b

	must(t, x.WriteFrame(frame.NewArray(frame.NewBulk([]byte("unsubscribe")), frame.NewBulk([]byte("a")))))
	reply := mustRead(t, x)
	if string(reply.Array[0].Bulk) != "unsubscribe" || string(reply.Array[1].Bulk) != "a" || reply.Array[2].Int != 1 {
		t.Fatalf("got %#v", reply)
	}

	must(t, y.WriteFrame(frame.NewArray(frame.NewBulk([]byte("publish")), frame.NewBulk([]byte("b")), frame.NewBulk([]byte("still here")))))
	mustRead(t, y)

	reply = mustRead(t, x)
	if string(reply.Array[2].Bulk) != "still here" {
		t.Fatalf("got %#v", reply)
	}
}

func TestConnectionCapIsBounded(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(lis)
	srv.Quiet = true
	if cap(srv.permits) != MaxConnections {
		t.Fatalf("expected permit cap %d, got %d", MaxConnections, cap(srv.permits))
	}
	srv.Shutdown()
}

// An idle connection that never sends a frame must not keep Shutdown
// from completing: Wait must return promptly even though the client
// socket is still open and parked in a read when Shutdown is called.
// Unlike startTestServer's t.Cleanup (which closes dialed sockets
// before calling Shutdown/Wait), this test deliberately leaves the
// client connected throughout.
func TestShutdownCompletesWithIdleConnection(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(lis)
	srv.Quiet = true
	go srv.Serve()

	nc, err := net.Dial("tcp", lis.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	// Give the accept loop a moment to hand the connection to a
	// handler goroutine before shutting down.
	time.Sleep(50 * time.Millisecond)

	srv.Shutdown()

	done := make(chan struct{})
	go func() {
		srv.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return with an idle connection still open")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func mustRead(t *testing.T, c *conn.Connection) frame.Frame {
	t.Helper()
	c2 := c
	type result struct {
		f   frame.Frame
		err error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := c2.ReadFrame()
		ch <- result{f, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatal(r.err)
		}
		return r.f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
		return frame.Frame{}
	}
}
