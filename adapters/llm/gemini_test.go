package llm

import (
	"testing"

	"google.golang.org/genai"

	"github.com/tandarun/coach/domain"
)

func TestBuildContentsSkipsEmptyMessages(t *testing.T) {
	history := []domain.Message{
		{Role: domain.AssistantRole, Content: "welcome back"},
		{Role: domain.UserRole, Content: "how was my week?"},
		{Role: domain.AssistantRole, Content: ""},
	}

	contents := buildContents(history)
	if len(contents) != 2 {
		t.Fatalf("expected empty message to be dropped, got %d contents", len(contents))
	}
	for _, c := range contents {
		for _, p := range c.Parts {
			if p.Text == "" {
				t.Fatal("request payload must not carry an empty text part")
			}
		}
	}
}

func TestBuildContentsMapsRoles(t *testing.T) {
	contents := buildContents([]domain.Message{
		{Role: domain.AssistantRole, Content: "hi"},
		{Role: domain.UserRole, Content: "hello"},
		{Role: domain.SystemRole, Content: "note"},
	})
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	if contents[0].Role != genai.RoleModel {
		t.Fatalf("assistant must map to the model role, got %q", contents[0].Role)
	}
	if contents[1].Role != genai.RoleUser {
		t.Fatalf("user must map to the user role, got %q", contents[1].Role)
	}
	if contents[2].Role != genai.RoleUser {
		t.Fatalf("non-assistant roles map to the user role, got %q", contents[2].Role)
	}
}
