package main

import (
	"strings"
	"testing"
)

func TestDumpCommand(t *testing.T) {
	path := testFile(t, "dump.bin", []byte("0123456789abcdefXYZ"))

	tests := []struct {
		name           string
		setup          func()
		wantErr        bool
		wantContain    []string
		wantNotContain []string
		wantLines      int
	}{
		{
			name:        "whole file",
			setup:       func() {},
			wantContain: []string{"00000000  30 31 32", "|0123456789abcdef|", "00000010  58 59 5a", "|XYZ|"},
			wantLines:   2,
		},
		{
			name: "range",
			setup: func() {
				dumpOffset, dumpLength = "0x10", "2"
			},
			wantContain:    []string{"00000010  58 59", "|XY|"},
			wantNotContain: []string{"5a"},
			wantLines:      1,
		},
		{
			name: "all from offset",
			setup: func() {
				dumpOffset, dumpLength, dumpWidth = "17", "-1", 4
				dumpNoOffsets, dumpUpper = true, true
			},
			wantContain:    []string{"59 5A"},
			wantNotContain: []string{"00000011"},
			wantLines:      1,
		},
		{
			name: "json",
			setup: func() {
				jsonOut = true
				dumpLength = "4"
			},
			wantContain: []string{`"offset":0`, `"hex":"30 31 32 33"`, `"text":"0123"`},
			wantLines:   1,
		},
		{
			name:    "offset past end",
			setup:   func() { dumpOffset = "100" },
			wantErr: true,
		},
		{
			name:    "unknown charset",
			setup:   func() { dumpCharset = "nope" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			tt.setup()

			output, err := captureOutput(t, func() error {
				return runDump([]string{path})
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("runDump() error = %v, wantErr %v\nOutput: %s", err, tt.wantErr, output)
			}
			if tt.wantErr {
				return
			}
			assertContains(t, output, tt.wantContain)
			assertNotContains(t, output, tt.wantNotContain)
			if got := strings.Count(output, "\n"); got != tt.wantLines {
				t.Errorf("got %d lines, want %d\nOutput: %s", got, tt.wantLines, output)
			}
		})
	}
}
