package chat

import (
	"strings"
	"testing"
)

func TestSessionPinsSystemTurn(t *testing.T) {
	s := NewSession("be brief", 40)
	for i := 0; i < 10; i++ {
		s.Append(RoleUser, strings.Repeat("question ", 10))
		s.Append(RoleAssistant, strings.Repeat("answer ", 10))
	}
	msgs := s.Messages()
	if msgs[0].Role != RoleSystem {
		t.Fatalf("system turn was pruned; first role: %s", msgs[0].Role)
	}
	if msgs[len(msgs)-1].Content != strings.Repeat("answer ", 10) {
		t.Fatalf("newest turn was pruned")
	}
}

func TestSessionPrunesOldestFirst(t *testing.T) {
	s := NewSession("", 30)
	s.Append(RoleUser, "first question about something")
	s.Append(RoleAssistant, "first answer with some detail")
	s.Append(RoleUser, "second question that is also fairly long")

	for _, m := range s.Messages() {
		if m.Content == "first question about something" {
			t.Fatalf("oldest turn should have been dropped")
		}
	}
	last := s.Messages()[s.Len()-1]
	if last.Role != RoleUser || !strings.HasPrefix(last.Content, "second") {
		t.Fatalf("latest user turn must survive, got %+v", last)
	}
}

func TestSessionKeepsNewestUserTurnAfterReply(t *testing.T) {
	s := NewSession("", 30)
	question := strings.Repeat("question ", 20)
	s.Append(RoleUser, question)
	s.Append(RoleAssistant, strings.Repeat("answer ", 20))

	// Both the newest user turn and the reply are protected even when
	// the pair alone exceeds the budget.
	found := false
	for _, m := range s.Messages() {
		if m.Role == RoleUser && m.Content == question {
			found = true
		}
	}
	if !found {
		t.Fatalf("newest user turn was pruned: %+v", s.Messages())
	}
	if last := s.Messages()[s.Len()-1]; last.Role != RoleAssistant {
		t.Fatalf("reply was pruned: %+v", last)
	}
}

func TestSessionDropsOlderExchangesNotNewestUser(t *testing.T) {
	s := NewSession("sys", 40)
	s.Append(RoleUser, strings.Repeat("first question ", 8))
	s.Append(RoleAssistant, strings.Repeat("first answer ", 8))
	s.Append(RoleUser, "second question")
	s.Append(RoleAssistant, strings.Repeat("second answer ", 8))

	msgs := s.Messages()
	if msgs[0].Role != RoleSystem {
		t.Fatalf("system turn was pruned")
	}
	for _, m := range msgs {
		if strings.HasPrefix(m.Content, "first") {
			t.Fatalf("old exchange should have been dropped: %+v", msgs)
		}
	}
	sawUser := false
	for _, m := range msgs {
		if m.Role == RoleUser && m.Content == "second question" {
			sawUser = true
		}
	}
	if !sawUser {
		t.Fatalf("newest user turn was pruned: %+v", msgs)
	}
}

func TestSessionUnderBudgetKeepsAll(t *testing.T) {
	s := NewSession("sys", 1000)
	s.Append(RoleUser, "hi")
	s.Append(RoleAssistant, "hello")
	if s.Len() != 3 {
		t.Fatalf("expected 3 turns, got %d", s.Len())
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Fatalf("empty string should be zero tokens")
	}
	if got := EstimateTokens("abcd"); got != 1 {
		t.Fatalf("4 bytes should be 1 token, got %d", got)
	}
	if got := EstimateTokens("abcde"); got != 2 {
		t.Fatalf("5 bytes should round up to 2 tokens, got %d", got)
	}
}

func TestTranscriptRendering(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "bye"},
	}
	got := Transcript(msgs)
	want := "System: be brief\nUser: hi\nAssistant: hello\nUser: bye\nAssistant:"
	if got != want {
		t.Fatalf("transcript mismatch:\n%q\nwant:\n%q", got, want)
	}
}
