package sms

import "testing"

func TestClassify_StopKeywords(t *testing.T) {
	for _, body := range []string{"STOP", "stop", " Stop ", "STOPALL", "UNSUBSCRIBE", "cancel", "END", "quit"} {
		class, _ := Classify(body)
		if class != ClassStop {
			t.Fatalf("Classify(%q): expected stop class, got %d", body, class)
		}
	}
}

func TestClassify_StartKeywords(t *testing.T) {
	for _, body := range []string{"START", "start", "YES", "yes ", "UNSTOP", "CONFIRM"} {
		class, _ := Classify(body)
		if class != ClassStart {
			t.Fatalf("Classify(%q): expected start class, got %d", body, class)
		}
	}
}

func TestClassify_HelpKeywords(t *testing.T) {
	for _, body := range []string{"HELP", "help", "INFO", " info "} {
		class, _ := Classify(body)
		if class != ClassHelp {
			t.Fatalf("Classify(%q): expected help class, got %d", body, class)
		}
	}
}

func TestClassify_DefaultForEverythingElse(t *testing.T) {
	// A keyword embedded in a sentence is NOT an opt-out.
	for _, body := range []string{"need a quote", "please STOP calling me", "стоп", "", "   ", "yes please"} {
		class, _ := Classify(body)
		if class != ClassDefault {
			t.Fatalf("Classify(%q): expected default class, got %d", body, class)
		}
	}
}

func TestClassify_ReturnsNormalizedKeyword(t *testing.T) {
	_, norm := Classify("  stop ")
	if norm != "STOP" {
		t.Fatalf("expected normalized keyword STOP, got %q", norm)
	}
}
