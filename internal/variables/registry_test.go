package variables

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestExtractVariables_MixedBraces(t *testing.T) {
	got := ExtractVariables("Hi {{name}}, {age}")
	want := []string{"age", "name"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractVariables = %v, want %v", got, want)
	}
}

func TestExtractVariables_DoubleBraceNotDoubleCounted(t *testing.T) {
	// The inner {name} of {{name}} must not produce a second entry.
	got := ExtractVariables("{{name}} and {name}")
	want := []string{"name"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractVariables = %v, want %v", got, want)
	}
}

func TestExtractVariables_Empty(t *testing.T) {
	if got := ExtractVariables("no placeholders here"); len(got) != 0 {
		t.Fatalf("expected no variables, got %v", got)
	}
}

func TestExtractVariables_IgnoresInvalidNames(t *testing.T) {
	got := ExtractVariables("{1bad} {good_one} {also-bad}")
	want := []string{"good_one"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractVariables = %v, want %v", got, want)
	}
}

func TestRegister_ReplacesExisting(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(NewResolver("greeting", nil, func(context.Context, Context) (string, error) {
		return "first", nil
	}))
	reg.Register(NewResolver("greeting", nil, func(context.Context, Context) (string, error) {
		return "second", nil
	}))

	values := reg.ResolveAll(context.Background(), []string{"greeting"}, Context{})
	if values["greeting"] != "second" {
		t.Fatalf("expected replacement resolver to win, got %q", values["greeting"])
	}
}

func TestIsRegistered(t *testing.T) {
	reg := NewRegistry(nil)
	if reg.IsRegistered("missing") {
		t.Fatal("expected missing to be unregistered")
	}
	reg.Register(NewResolver("present", nil, func(context.Context, Context) (string, error) {
		return "", nil
	}))
	if !reg.IsRegistered("present") {
		t.Fatal("expected present to be registered")
	}
}

func TestResolveAll_UnregisteredFallsBackToContext(t *testing.T) {
	reg := NewRegistry(nil)
	values := reg.ResolveAll(context.Background(), []string{"name"}, Context{"name": "John"})
	if values["name"] != "John" {
		t.Fatalf("expected raw context fallback, got %q", values["name"])
	}
}

func TestResolveAll_UndefinedMarker(t *testing.T) {
	reg := NewRegistry(nil)
	values := reg.ResolveAll(context.Background(), []string{"ghost"}, Context{})
	if values["ghost"] != "[Undefined variable: ghost]" {
		t.Fatalf("expected undefined marker, got %q", values["ghost"])
	}
}

func TestResolveAll_ErrorMarkerOnFailure(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(NewResolver("broken", nil, func(context.Context, Context) (string, error) {
		return "", errors.New("backend down")
	}))

	values := reg.ResolveAll(context.Background(), []string{"broken"}, Context{})
	if values["broken"] != "[Error: backend down]" {
		t.Fatalf("expected error marker, got %q", values["broken"])
	}
}

func TestResolveAll_MissingRequiredKeyBecomesErrorMarker(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(NewResolver("needs_conv", []string{KeyConversationID},
		func(_ context.Context, rc Context) (string, error) {
			return rc[KeyConversationID], nil
		}))

	values := reg.ResolveAll(context.Background(), []string{"needs_conv"}, Context{})
	if values["needs_conv"] != `[Error: missing context key "conversation_id"]` {
		t.Fatalf("expected missing-key marker, got %q", values["needs_conv"])
	}
}

func TestResolveAll_FiltersContextToDeclaredKeys(t *testing.T) {
	reg := NewRegistry(nil)
	var seen Context
	reg.Register(NewResolver("spy", []string{KeyUserID}, func(_ context.Context, rc Context) (string, error) {
		seen = rc
		return "ok", nil
	}))

	reg.ResolveAll(context.Background(), []string{"spy"}, Context{
		KeyUserID:     "u-1",
		KeyBusinessID: "b-1",
		KeyMessage:    "hello",
	})

	if len(seen) != 1 || seen[KeyUserID] != "u-1" {
		t.Fatalf("expected resolver to see only its declared key, got %v", seen)
	}
}
