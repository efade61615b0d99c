package resolver

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// startTestDNS runs a DNS server on a random local port answering from the
// given zone map. Names absent from the map get NXDOMAIN.
func startTestDNS(t *testing.T, zone map[string][]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, req *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetReply(req)

		q := req.Question[0]
		addrs, ok := zone[q.Name]
		if !ok {
			resp.Rcode = dns.RcodeNameError
			_ = w.WriteMsg(resp)
			return
		}
		if q.Qtype == dns.TypeA {
			for _, addr := range addrs {
				resp.Answer = append(resp.Answer, &dns.A{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
					A:   net.ParseIP(addr).To4(),
				})
			}
		}
		_ = w.WriteMsg(resp)
	})

	srv := &dns.Server{PacketConn: pc, Handler: mux}
	go func() {
		_ = srv.ActivateAndServe()
	}()
	t.Cleanup(func() {
		_ = srv.Shutdown()
	})

	return pc.LocalAddr().String()
}

func TestLookupA(t *testing.T) {
	addr := startTestDNS(t, map[string][]string{
		"mail.example.com.": {"10.0.0.1", "10.0.0.2"},
	})

	r := New([]string{addr})
	ips, err := r.LookupA(context.Background(), "mail.example.com")
	if err != nil {
		t.Fatalf("LookupA() error = %v", err)
	}
	if len(ips) != 2 {
		t.Fatalf("LookupA() returned %d addresses, want 2: %v", len(ips), ips)
	}
	if ips[0].String() != "10.0.0.1" || ips[1].String() != "10.0.0.2" {
		t.Errorf("LookupA() = %v", ips)
	}
}

func TestLookupA_NXDomain(t *testing.T) {
	addr := startTestDNS(t, nil)

	r := New([]string{addr})
	_, err := r.LookupA(context.Background(), "missing.example.com")
	if !errors.Is(err, ErrNoRecords) {
		t.Errorf("LookupA() error = %v, want ErrNoRecords", err)
	}
}

func TestLookupA_NoARecords(t *testing.T) {
	// The name exists but the answer section is empty.
	addr := startTestDNS(t, map[string][]string{
		"ipv6only.example.com.": {},
	})

	r := New([]string{addr})
	_, err := r.LookupA(context.Background(), "ipv6only.example.com")
	if !errors.Is(err, ErrNoRecords) {
		t.Errorf("LookupA() error = %v, want ErrNoRecords", err)
	}
}

func TestLookupA_FallsBackToSecondServer(t *testing.T) {
	dead := "127.0.0.1:1" // nothing listens here
	addr := startTestDNS(t, map[string][]string{
		"mail.example.com.": {"10.0.0.1"},
	})

	r := New([]string{dead, addr})
	r.client.Timeout = 500 * time.Millisecond

	ips, err := r.LookupA(context.Background(), "mail.example.com")
	if err != nil {
		t.Fatalf("LookupA() error = %v", err)
	}
	if len(ips) != 1 || ips[0].String() != "10.0.0.1" {
		t.Errorf("LookupA() = %v", ips)
	}
}

func TestLookupA_AllServersUnreachable(t *testing.T) {
	r := New([]string{"127.0.0.1:1"})
	r.client.Timeout = 500 * time.Millisecond

	if _, err := r.LookupA(context.Background(), "mail.example.com"); err == nil {
		t.Error("LookupA() should fail when no server answers")
	}
}

func TestNew_Servers(t *testing.T) {
	servers := []string{"10.0.0.53:53", "10.0.1.53:53"}
	r := New(servers)
	got := r.Servers()
	if len(got) != 2 || got[0] != servers[0] || got[1] != servers[1] {
		t.Errorf("Servers() = %v, want %v", got, servers)
	}
}
