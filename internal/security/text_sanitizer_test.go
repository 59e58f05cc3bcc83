package security

import "testing"

// TestSanitizeText_StripsTags はタグが除去され平文のみ残ることを検証する。
func TestSanitizeText_StripsTags(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text passes through",
			input: "What is the supreme law of the land?",
			want:  "What is the supreme law of the land?",
		},
		{
			name:  "simple markup removed",
			input: "<p>Contract <strong>law</strong> basics</p>",
			want:  "Contract law basics",
		},
		{
			name:  "script tag removed entirely",
			input: `before<script>alert("x")</script>after`,
			want:  "beforeafter",
		},
		{
			name:  "svg icon reduced to nothing",
			input: `<svg viewBox="0 0 24 24"><path d="M12 2"/></svg>`,
			want:  "",
		},
		{
			name:  "entities decoded",
			input: "Smith &amp; Jones v. State",
			want:  "Smith & Jones v. State",
		},
		{
			name:  "whitespace collapsed",
			input: "<ul><li>one</li>\n<li>two</li></ul>",
			want:  "one two",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.SanitizeText(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeText_Idempotent は同一入力への再適用が出力を変えないことを検証する。
func TestSanitizeText_Idempotent(t *testing.T) {
	s := NewTextSanitizer()

	input := "<p>Question &amp; <em>answer</em></p>"
	once := s.SanitizeText(input)
	twice := s.SanitizeText(once)

	if once != twice {
		t.Errorf("sanitize not idempotent: first %q, second %q", once, twice)
	}
}

// TestValidateURL_BlocksPrivateTargets はSSRF対象URLが拒否されることを検証する。
func TestValidateURL_BlocksPrivateTargets(t *testing.T) {
	g := NewSSRFGuard()

	blocked := []string{
		"http://127.0.0.1/avatar.png",
		"http://10.0.0.5/a.png",
		"http://169.254.169.254/latest/meta-data",
		"http://localhost/a.png",
		"ftp://example.com/a.png",
		"",
	}
	for _, u := range blocked {
		if err := g.ValidateURL(u); err == nil {
			t.Errorf("ValidateURL(%q) = nil, want error", u)
		}
	}

	allowed := []string{
		"https://cdn.example.com/avatars/u-1.png",
		"http://images.example.org/pic.jpg",
	}
	for _, u := range allowed {
		if err := g.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", u, err)
		}
	}
}
