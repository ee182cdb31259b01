package vaultlog

import "testing"

func TestPrincipal(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"short id unchanged", "owner-1", "owner-1"},
		{"exactly 8 chars unchanged", "did:ab12", "did:ab12"},
		{"long id truncated to last 8", "did:ixo:zQ3shgf4qxV9Wy7G5jSBs9ZSMLHrtzQ2PcR", "...rtzQ2PcR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Principal(tt.id); got != tt.want {
				t.Errorf("Principal(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestAuditDoesNotPanic(t *testing.T) {
	Audit("retrieve", "vault-01ABC", "did:ixo:zQ3shgf4qxV9Wy7G5jSBs9ZSMLHrtzQ2PcR")
}
