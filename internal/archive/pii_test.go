package archive

import (
	"strings"
	"testing"
)

func TestScrubPII(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"email", "fale comigo em maria@exemplo.com.br por favor", "fale comigo em [EMAIL] por favor"},
		{"cpf dotted", "meu CPF é 123.456.789-00", "meu CPF é [CPF]"},
		{"cpf bare", "cpf 12345678900 ok", "cpf [CPF] ok"},
		{"phone", "liga no 11 98888-7777", "liga no [PHONE]"},
		{"phone with country code", "liga no +55 11 98888-7777", "liga no [PHONE]"},
		{"clean", "quero simular um empréstimo", "quero simular um empréstimo"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScrubPII(tc.in); got != tc.want {
				t.Errorf("ScrubPII(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestScrubMessages(t *testing.T) {
	msgs := []Message{
		{Role: "lead", Content: "meu email é joao@teste.com"},
		{Role: "ai_agent", Content: "anotado"},
	}
	ScrubMessages(msgs)
	if strings.Contains(msgs[0].Content, "joao@teste.com") {
		t.Errorf("email not scrubbed: %q", msgs[0].Content)
	}
	if msgs[1].Content != "anotado" {
		t.Errorf("clean message mutated: %q", msgs[1].Content)
	}
}

func TestHashPhone_Stable(t *testing.T) {
	a := HashPhone("5511999998888")
	b := HashPhone("5511999998888")
	if a != b || len(a) != 64 {
		t.Errorf("unexpected hash: %q vs %q", a, b)
	}
}
