package permission

import "testing"

func TestGate_DenyTakesPrecedence(t *testing.T) {
	g := NewGate()
	cfg := TrustConfig{Mode: Full, DenyTools: []string{"Bash"}}

	if got := g.Decide("Bash", nil, cfg); got != Reject {
		t.Errorf("Decide() = %v, want Reject", got)
	}
}

func TestGate_AlwaysAskOverridesFull(t *testing.T) {
	g := NewGate()
	cfg := TrustConfig{Mode: Full, AlwaysAsk: []string{"Bash"}}

	if got := g.Decide("Bash", nil, cfg); got != Prompt {
		t.Errorf("Decide() = %v, want Prompt", got)
	}
}

func TestGate_ReadOnlyAlwaysAllowed(t *testing.T) {
	g := NewGate()
	for _, mode := range []TrustMode{Off, Limited, AutoEdit, Full} {
		cfg := TrustConfig{Mode: mode}
		if got := g.Decide("Read", nil, cfg); got != Permit {
			t.Errorf("mode %v: Decide(Read) = %v, want Permit", mode, got)
		}
	}
}

func TestGate_DecisionTable(t *testing.T) {
	tests := []struct {
		name string
		mode TrustMode
		tool string
		want Decision
	}{
		{"off editing asks", Off, "Edit", Prompt},
		{"off other mutating asks", Off, "Bash", Prompt},
		{"limited editing asks", Limited, "Edit", Prompt},
		{"limited other mutating asks", Limited, "Bash", Prompt},
		{"autoedit editing allowed", AutoEdit, "Edit", Permit},
		{"autoedit other mutating asks", AutoEdit, "Bash", Prompt},
		{"full editing allowed", Full, "Edit", Permit},
		{"full other mutating allowed", Full, "Bash", Permit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate()
			cfg := TrustConfig{Mode: tt.mode}
			if got := g.Decide(tt.tool, nil, cfg); got != tt.want {
				t.Errorf("Decide(%s) in mode %v = %v, want %v", tt.tool, tt.mode, got, tt.want)
			}
		})
	}
}

func TestGate_AllowListIgnoredInOffMode(t *testing.T) {
	g := NewGate()
	cfg := TrustConfig{Mode: Off, AllowTools: []string{"Bash"}}

	if got := g.Decide("Bash", nil, cfg); got != Prompt {
		t.Errorf("Decide() = %v, want Prompt (allow-list must not bypass Off mode)", got)
	}
}

func TestGate_AllowListPermitsInLimitedMode(t *testing.T) {
	g := NewGate()
	cfg := TrustConfig{Mode: Limited, AllowTools: []string{"Bash"}}

	if got := g.Decide("Bash", nil, cfg); got != Permit {
		t.Errorf("Decide() = %v, want Permit", got)
	}
}

func TestGate_AllowListRespectsPaths(t *testing.T) {
	g := NewGate()
	cfg := TrustConfig{
		Mode:        Limited,
		ProjectRoot: "/proj",
		AllowTools:  []string{"Edit"},
		AllowPaths:  []string{"/proj/src/**"},
	}

	inScope := map[string]any{"file_path": "/proj/src/main.go"}
	outScope := map[string]any{"file_path": "/proj/secrets/key.pem"}

	if got := g.Decide("Edit", inScope, cfg); got != Permit {
		t.Errorf("Decide(in-scope) = %v, want Permit", got)
	}
	if got := g.Decide("Edit", outScope, cfg); got != Prompt {
		t.Errorf("Decide(out-of-scope) = %v, want Prompt", got)
	}
}

func TestGate_DenyPathBlocksRegardlessOfMode(t *testing.T) {
	g := NewGate()
	cfg := TrustConfig{
		Mode:        Full,
		ProjectRoot: "/proj",
		DenyPaths:   []string{"/proj/.env"},
	}

	if got := g.Decide("Edit", map[string]any{"file_path": "/proj/.env"}, cfg); got != Reject {
		t.Errorf("Decide() = %v, want Reject", got)
	}
}

func TestGate_RememberApprovals(t *testing.T) {
	g := NewGate()
	cfg := TrustConfig{Mode: AutoEdit, RememberApprovals: true, ProjectRoot: "/proj"}
	params := map[string]any{"file_path": "/proj/main.go"}

	// AutoEdit + Edit is already Permit, which should populate the cache.
	first := g.Decide("Edit", params, cfg)
	if first != Permit {
		t.Fatalf("Decide() = %v, want Permit", first)
	}

	key := RememberKey("Edit", params, cfg.ProjectRoot)
	if d, ok := g.lookup(key); !ok || d != Permit {
		t.Errorf("expected remembered Permit for %q, got %v, %v", key, d, ok)
	}
}
