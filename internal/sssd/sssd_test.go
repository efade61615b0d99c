package sssd

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func cannedRunner(output string, err error) Runner {
	return func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte(output), err
	}
}

func TestListDomains(t *testing.T) {
	out := "implicit_files\ncorp.example.com\nlab.example.com\n\n"
	c := NewClientWithRunner(cannedRunner(out, nil))

	domains, err := c.ListDomains(context.Background())
	if err != nil {
		t.Fatalf("ListDomains() error = %v", err)
	}

	want := []string{"corp.example.com", "lab.example.com"}
	if !reflect.DeepEqual(domains, want) {
		t.Errorf("ListDomains() = %v, want %v", domains, want)
	}
}

func TestListDomains_CommandFailure(t *testing.T) {
	c := NewClientWithRunner(cannedRunner("", errors.New("exit status 1")))
	if _, err := c.ListDomains(context.Background()); err == nil {
		t.Error("ListDomains() should propagate command failures")
	}
}

func TestDomainStatus(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   Online
	}{
		{
			name:   "online",
			output: "Online status: Online\n\nActive servers:\nAD Domain Controller: dc1.corp.example.com\n",
			want:   StatusOnline,
		},
		{
			name:   "offline",
			output: "Online status: Offline\n",
			want:   StatusOffline,
		},
		{
			name:   "lowercase value",
			output: "Online status: online\n",
			want:   StatusOnline,
		},
		{
			name:   "missing status line",
			output: "Active servers:\nAD Domain Controller: dc1.corp.example.com\n",
			want:   StatusUnknown,
		},
		{
			name:   "unparseable value",
			output: "Online status: maybe\n",
			want:   StatusUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClientWithRunner(cannedRunner(tt.output, nil))
			got, err := c.DomainStatus(context.Background(), "corp.example.com")
			if err != nil {
				t.Fatalf("DomainStatus() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DomainStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDomainStatus_CommandFailure(t *testing.T) {
	c := NewClientWithRunner(cannedRunner("", errors.New("sssd not running")))
	if _, err := c.DomainStatus(context.Background(), "corp.example.com"); err == nil {
		t.Error("DomainStatus() should propagate command failures")
	}
}

func TestParseServers(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []string
	}{
		{
			name: "active server role lines",
			out: `Online status: Online

Active servers:
AD Global Catalog: dc1.corp.example.com
AD Domain Controller: dc1.corp.example.com
`,
			want: []string{"dc1.corp.example.com"},
		},
		{
			name: "discovered server bullets",
			out: `Discovered AD Domain Controller servers:
- dc1.corp.example.com
- dc2.corp.example.com

Discovered AD Global Catalog servers:
- dc1.corp.example.com
`,
			want: []string{"dc1.corp.example.com", "dc2.corp.example.com"},
		},
		{
			name: "mixed with placeholders",
			out: `Online status: Offline

Active servers:
AD Domain Controller: not connected

Discovered AD Domain Controller servers:
- 10.1.0.1
- dc2.corp.example.com
- none so far
`,
			want: []string{"10.1.0.1", "dc2.corp.example.com"},
		},
		{
			name: "no servers",
			out:  "Online status: Online\n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseServers(tt.out)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseServers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLooksLikeServer(t *testing.T) {
	tests := []struct {
		entry string
		want  bool
	}{
		{"dc1.corp.example.com", true},
		{"10.1.0.1", true},
		{"not connected", false},
		{"none so far", false},
		{"localhost", false},
	}

	for _, tt := range tests {
		if got := looksLikeServer(tt.entry); got != tt.want {
			t.Errorf("looksLikeServer(%q) = %v, want %v", tt.entry, got, tt.want)
		}
	}
}

func TestOnlineString(t *testing.T) {
	tests := []struct {
		status Online
		want   string
	}{
		{StatusOnline, "online"},
		{StatusOffline, "offline"},
		{StatusUnknown, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Online(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
