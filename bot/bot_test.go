package bot

import "testing"

func TestCommandOf(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/start", "/start"},
		{"/help", "/help"},
		{"/start@feedbot", "/start"},
		{"/start extra args", "/start"},
		{"  /help  ", "/help"},
		{"hello", ""},
		{"", ""},
		{"start", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := commandOf(tt.input); got != tt.want {
				t.Errorf("commandOf(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
