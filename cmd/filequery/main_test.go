package main

import "testing"

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		display bool
		want    bool
	}{
		{"no args with display", nil, true, false},
		{"no args headless", nil, false, true},
		{"force cli", []string{"--cli"}, true, true},
		{"force gui", []string{"--gui", "--config", "x.csv"}, false, false},
		{"subcommand", []string{"run", "1"}, true, true},
		{"help flag", []string{"--help"}, true, true},
		{"config only", []string{"--config", "x.csv"}, true, false},
		{"config then subcommand", []string{"-c", "x.csv", "queries"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCLIMode(tt.args, tt.display); got != tt.want {
				t.Errorf("isCLIMode(%v, %v) = %v, want %v", tt.args, tt.display, got, tt.want)
			}
		})
	}
}
