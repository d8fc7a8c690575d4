package prompts

import (
	"strings"
	"testing"
)

func TestPromptSubstitution(t *testing.T) {
	v := Vision(8, "Frame 1 (timestamp: 0.0s)\n")
	if !strings.Contains(v, "8 frames") && !strings.Contains(v, "8 ") {
		t.Fatalf("vision prompt missing frame count:\n%s", v)
	}
	if !strings.Contains(v, "Frame 1 (timestamp: 0.0s)") {
		t.Fatal("vision prompt missing frame list")
	}
	if strings.Contains(v, "%!") {
		t.Fatalf("vision prompt has a formatting error:\n%s", v)
	}

	a := PassA("[0.0s-2.0s] speaker_1: Hello")
	if !strings.Contains(a, "speaker_1: Hello") {
		t.Fatal("pass A prompt missing transcript")
	}
	if strings.Contains(a, "%!") {
		t.Fatalf("pass A prompt has a formatting error:\n%s", a)
	}

	b := PassB("KNOWLEDGE GRAPH:\nNODES:")
	if !strings.Contains(b, "KNOWLEDGE GRAPH:") {
		t.Fatal("pass B prompt missing graph")
	}
	if strings.Contains(b, "%!") {
		t.Fatalf("pass B prompt has a formatting error:\n%s", b)
	}
}
