package textnorm

import (
	"slices"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"punctuation and stop words", "¿Horario de atención?", "horario atención"},
		{"collapses whitespace", "  Inscripción \t\n  en   línea  ", "inscripción línea"},
		{"keeps digits and underscores", "Trámite_2025 #4!", "trámite_2025 4"},
		{"only stop words", "de la que y el", ""},
		{"only punctuation", "¿¡...!?", ""},
		{"non-breaking space", "beca\u00a0deportiva", "beca deportiva"},
		{"vertical tab separates", "horario\vatención", "horario atención"},
		{"next line separates", "horario\u0085atención", "horario atención"},
		{"unit separator separates", "horario\x1fatención", "horario atención"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	in := "¿Cuál es el COSTO de la credencial digital?"
	first := Normalize(in)
	for range 10 {
		if got := Normalize(in); got != first {
			t.Fatalf("non-deterministic output: %q vs %q", got, first)
		}
	}
}

func TestTokensDropsStopWords(t *testing.T) {
	got := Tokens("¿Cuál es el horario de atención de la biblioteca?")
	for _, stop := range []string{"es", "el", "de", "la"} {
		if slices.Contains(got, stop) {
			t.Errorf("stop word %q kept in %v", stop, got)
		}
	}
	for _, want := range []string{"horario", "atención", "biblioteca"} {
		if !slices.Contains(got, want) {
			t.Errorf("expected %q in %v", want, got)
		}
	}
}

func TestIsStopWord(t *testing.T) {
	if !IsStopWord("de") {
		t.Error("expected \"de\" to be a stop word")
	}
	if IsStopWord("inscripción") {
		t.Error("\"inscripción\" should not be a stop word")
	}
}
