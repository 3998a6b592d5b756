package tool

import "testing"

func TestIsToolAllowed_Intersection(t *testing.T) {
	tests := []struct {
		name   string
		access AccessConfig
		tool   string
		want   bool
	}{
		{"empty allow/deny permits everything", AccessConfig{}, "Bash", true},
		{"allow list excludes tools not named", AccessConfig{Allow: []string{"Read", "Grep"}}, "Bash", false},
		{"allow list includes a named tool", AccessConfig{Allow: []string{"Read", "Grep"}}, "Read", true},
		{"deny list excludes a named tool even with empty allow", AccessConfig{Deny: []string{"Bash"}}, "Bash", false},
		{"deny wins over an overlapping allow", AccessConfig{Allow: []string{"Bash"}, Deny: []string{"Bash"}}, "Bash", false},
		{"allow and deny compose: allowed tool not denied passes", AccessConfig{Allow: []string{"Read", "Bash"}, Deny: []string{"Bash"}}, "Read", true},
		{"case-insensitive match", AccessConfig{Allow: []string{"read"}}, "Read", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Set{Access: &tt.access}
			if got := s.isToolAllowed(tt.tool); got != tt.want {
				t.Errorf("isToolAllowed(%q) with Allow=%v Deny=%v = %v, want %v",
					tt.tool, tt.access.Allow, tt.access.Deny, got, tt.want)
			}
		})
	}
}
