package expand

import (
	"testing"

	"github.com/zish-sh/zish/syntax"
)

func paramWord(name string, op syntax.ParamOp, arg *syntax.Word) *syntax.Word {
	return word(&syntax.ParamExp{Param: name, Op: op, Arg: arg})
}

func TestParamMinusUsesValueWhenSet(t *testing.T) {
	env := newFakeEnviron()
	env.Set("x", "hello")
	cfg := Config{Env: env}
	got, err := Word(cfg, paramWord("x", syntax.ParamMinus, litWord("fallback")))
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestParamMinusUsesWordWhenEmptyButSet(t *testing.T) {
	env := newFakeEnviron()
	env.Set("x", "")
	cfg := Config{Env: env}
	got, err := Word(cfg, paramWord("x", syntax.ParamMinus, litWord("fallback")))
	if err != nil {
		t.Fatal(err)
	}
	if got != "fallback" {
		t.Errorf("got %q, want %q", got, "fallback")
	}
}

func TestParamMinusDoesNotAssign(t *testing.T) {
	env := newFakeEnviron()
	cfg := Config{Env: env}
	if _, err := Word(cfg, paramWord("x", syntax.ParamMinus, litWord("fallback"))); err != nil {
		t.Fatal(err)
	}
	if env.Get("x").Set {
		t.Error("${x:-word} must not assign x")
	}
}

func TestParamEqAssignsWhenUnset(t *testing.T) {
	env := newFakeEnviron()
	var assigned string
	cfg := Config{
		Env:    env,
		Assign: func(name, value string) { assigned = name + "=" + value },
	}
	got, err := Word(cfg, paramWord("x", syntax.ParamEq, litWord("fallback")))
	if err != nil {
		t.Fatal(err)
	}
	if got != "fallback" {
		t.Errorf("got %q, want %q", got, "fallback")
	}
	if assigned != "x=fallback" {
		t.Errorf("${x:=word} must assign through cfg.Assign, got %q", assigned)
	}
}

func TestParamQuestErrorsWhenUnset(t *testing.T) {
	env := newFakeEnviron()
	cfg := Config{Env: env}
	_, err := Word(cfg, paramWord("x", syntax.ParamQuest, litWord("must be set")))
	if err == nil {
		t.Fatal("expected an error for ${x:?word} with x unset")
	}
	pe, ok := err.(*ParamError)
	if !ok {
		t.Fatalf("got error of type %T, want *ParamError", err)
	}
	if pe.Msg != "must be set" {
		t.Errorf("got message %q, want %q", pe.Msg, "must be set")
	}
}

func TestParamQuestDefaultMessageWhenWordOmitted(t *testing.T) {
	env := newFakeEnviron()
	cfg := Config{Env: env}
	_, err := Word(cfg, paramWord("x", syntax.ParamQuest, nil))
	if err == nil {
		t.Fatal("expected an error")
	}
	pe := err.(*ParamError)
	if pe.Msg != "x: parameter not set" {
		t.Errorf("got %q", pe.Msg)
	}
}

func TestParamPlusYieldsWordWhenSet(t *testing.T) {
	env := newFakeEnviron()
	env.Set("x", "hello")
	cfg := Config{Env: env}
	got, err := Word(cfg, paramWord("x", syntax.ParamPlus, litWord("alt")))
	if err != nil {
		t.Fatal(err)
	}
	if got != "alt" {
		t.Errorf("got %q, want %q", got, "alt")
	}
}

func TestParamPlusEmptyWhenUnset(t *testing.T) {
	env := newFakeEnviron()
	cfg := Config{Env: env}
	got, err := Word(cfg, paramWord("x", syntax.ParamPlus, litWord("alt")))
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestSpecialParamQuestion(t *testing.T) {
	env := newFakeEnviron()
	env.vars["?"] = Variable{} // unused; Special handles '?' directly
	cfg := Config{Env: env}
	got, err := Word(cfg, word(&syntax.ParamExp{Param: "?"}))
	if err != nil {
		t.Fatal(err)
	}
	if got != "0" {
		t.Errorf("got %q, want %q", got, "0")
	}
}

func TestPositionalParam(t *testing.T) {
	env := newFakeEnviron()
	env.positional = []string{"first", "second"}
	cfg := Config{Env: env}
	got, err := Word(cfg, word(&syntax.ParamExp{Param: "1"}))
	if err != nil {
		t.Fatal(err)
	}
	if got != "first" {
		t.Errorf("got %q, want %q", got, "first")
	}
}

func TestAtJoinsPositionalWithSpace(t *testing.T) {
	env := newFakeEnviron()
	env.positional = []string{"a", "b", "c"}
	cfg := Config{Env: env}
	got, err := Word(cfg, word(&syntax.ParamExp{Param: "@"}))
	if err != nil {
		t.Fatal(err)
	}
	if got != "a b c" {
		t.Errorf("got %q, want %q", got, "a b c")
	}
}

func TestPoundIsRoutedThroughSpecial(t *testing.T) {
	env := newFakeEnviron()
	env.positional = []string{"a", "b"}
	cfg := Config{Env: env}
	got, err := Word(cfg, word(&syntax.ParamExp{Param: "#"}))
	if err != nil {
		t.Fatal(err)
	}
	// fakeEnviron.Special('#') always reports "0"; this test documents
	// that # is routed through Special rather than Positional directly.
	if got != "0" {
		t.Errorf("got %q, want %q", got, "0")
	}
}
