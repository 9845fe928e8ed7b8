package model_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/calebgmahala/SaltyBets/internal/model"
)

func TestValidAmount(t *testing.T) {
	cases := []struct {
		amount string
		want   bool
	}{
		{"0.05", true},
		{"0.10", true},
		{"5", true},
		{"123.45", true},
		{"0.07", false},
		{"0.051", false},
		{"0", false},
		{"-0.05", false},
	}

	for _, c := range cases {
		d, err := decimal.NewFromString(c.amount)
		if err != nil {
			t.Fatalf("bad test amount %q: %v", c.amount, err)
		}
		if got := model.ValidAmount(d); got != c.want {
			t.Errorf("ValidAmount(%s) = %v, want %v", c.amount, got, c.want)
		}
	}
}

func TestBoutToken(t *testing.T) {
	token := model.BoutToken("Kirby", "Ryu", "1755201")
	if token != "Kirby-Ryu-1755201" {
		t.Errorf("unexpected token: %s", token)
	}
}

func TestSameBout(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Kirby-Ryu-100", "Kirby-Ryu-200", true},
		{"Kirby-Ryu-100", "Kirby-Ryu-100", true},
		{"Kirby-Ryu-100", "Ryu-Kirby-100", false},
		{"Kirby-Ryu-100", "Kirby-Ken-100", false},
		{"Kirby-Ryu-100", "Kirby", false},
	}

	for _, c := range cases {
		if got := model.SameBout(c.a, c.b); got != c.want {
			t.Errorf("SameBout(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestParseSide(t *testing.T) {
	if _, ok := model.ParseSide("red"); !ok {
		t.Error("red should parse")
	}
	if _, ok := model.ParseSide("blue"); !ok {
		t.Error("blue should parse")
	}
	if _, ok := model.ParseSide("green"); ok {
		t.Error("green should not parse")
	}
	if model.SideRed.Opposite() != model.SideBlue {
		t.Error("opposite of red should be blue")
	}
}
