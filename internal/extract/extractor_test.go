package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain digits",
			input:    "meu telefone é 11987654321",
			expected: "11987654321",
		},
		{
			name:     "digits with separators",
			input:    "pode anotar (11) 98765-4321",
			expected: "11987654321",
		},
		{
			name:     "spoken number words",
			input:    "meu número é um um nove oito sete seis cinco quatro três dois um",
			expected: "11987654321",
		},
		{
			name:     "meia inside a spoken sequence",
			input:    "um um nove meia sete seis cinco quatro três dois um",
			expected: "11967654321",
		},
		{
			name:     "ten digit landline",
			input:    "1134567890 é o fixo",
			expected: "1134567890",
		},
		{
			name:     "too short is not a phone",
			input:    "quero 2 pizzas às 18 horas",
			expected: "",
		},
		{
			name:     "nothing numeric",
			input:    "bom dia",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractPhone(tt.input))
		})
	}
}

func TestExtractName(t *testing.T) {
	e := New(Config{})

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "meu nome é cue",
			input:    "olá, meu nome é joão silva",
			expected: "João Silva",
		},
		{
			name:     "me chamo cue stops at comma",
			input:    "me chamo Maria, moro na Rua A",
			expected: "Maria",
		},
		{
			name:     "sou with article",
			input:    "sou o Pedro",
			expected: "Pedro",
		},
		{
			name:     "sou only fires on word boundaries",
			input:    "o sousa chegou",
			expected: "",
		},
		{
			name:     "trailing phone digits dropped",
			input:    "me chamo Ana 11987654321",
			expected: "Ana",
		},
		{
			name:     "no cue no name",
			input:    "quero uma pizza",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.Extract(tt.input).Name)
		})
	}
}

func TestExtractAddress(t *testing.T) {
	e := New(Config{})

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "meu endereço é cue",
			input:    "meu endereço é rua das flores, 123",
			expected: "Rua das flores, 123",
		},
		{
			name:     "moro na cue stops at sentence end",
			input:    "moro na avenida brasil 45. pode entregar aí",
			expected: "Avenida brasil 45",
		},
		{
			name:     "fico em cue",
			input:    "fico em santo andré",
			expected: "Santo andré",
		},
		{
			name:     "no cue no address",
			input:    "quero uma coca",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.Extract(tt.input).Address)
		})
	}
}

func TestExtractAllFields(t *testing.T) {
	e := New(Config{})

	info := e.Extract("meu nome é carlos, meu telefone é 11987654321 e moro na rua b, 7")
	assert.Equal(t, "Carlos", info.Name)
	assert.Equal(t, "11987654321", info.Phone)
	assert.Equal(t, "Rua b, 7", info.Address)
	assert.False(t, info.Empty())

	assert.True(t, Info{}.Empty())
}

func TestExtractCustomCues(t *testing.T) {
	e := New(Config{
		NameCues:    []string{"aqui é"},
		AddressCues: []string{"entrega em"},
	})

	info := e.Extract("aqui é roberta, entrega em rua c 9")
	assert.Equal(t, "Roberta", info.Name)
	assert.Equal(t, "Rua c 9", info.Address)
}
