package publish

import (
	"bufio"
	"net"
	"testing"
	"time"
)

func TestUDPSenderNormalisesWildcardHost(t *testing.T) {
	// Bind a real listener on 127.0.0.1 to receive what the sender sends
	// when given "0.0.0.0", confirming the documented normalisation.
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer pc.Close()
	port := pc.LocalAddr().(*net.UDPAddr).Port

	sender, err := NewUDPSender("0.0.0.0", port)
	if err != nil {
		t.Fatalf("NewUDPSender: %v", err)
	}
	defer sender.Close()

	if err := sender.Send("$GPRMC,test*00\r\n"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	buf := make([]byte, 256)
	pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if string(buf[:n]) != "$GPRMC,test*00\r\n" {
		t.Errorf("received %q", buf[:n])
	}
}

func TestTCPServerFanOutAndSlowClientEviction(t *testing.T) {
	srv, err := NewTCPServer("127.0.0.1", 0, 4)
	if err != nil {
		t.Fatalf("NewTCPServer: %v", err)
	}
	defer srv.Close()
	addr := srv.ln.Addr().String()

	fast, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial fast client: %v", err)
	}
	defer fast.Close()

	slow, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial slow client: %v", err)
	}
	defer slow.Close()

	// Give the acceptor time to register both connections.
	waitForClientCount(t, srv, 2)

	reader := bufio.NewReader(fast)
	for i := 0; i < 10; i++ {
		srv.Broadcast("line\r\n")
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("fast client read: %v", err)
	}
	if line != "line\r\n" {
		t.Errorf("fast client read %q", line)
	}

	// Never read from `slow`; its queue (capacity 4) overflows and it
	// should eventually be evicted once its TCP receive buffer also fills
	// and writes start timing out.
	deadline := time.Now().Add(5 * time.Second)
	for srv.ClientCount() > 1 && time.Now().Before(deadline) {
		for i := 0; i < 50; i++ {
			srv.Broadcast("filler line to overflow queues and socket buffers\r\n")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func waitForClientCount(t *testing.T, srv *TCPServer, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.ClientCount() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d clients, have %d", want, srv.ClientCount())
}
