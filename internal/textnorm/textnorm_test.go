package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Horario", Normalize("Horário"))
	assert.Equal(t, "Horario local", Normalize("Horário local"))
	assert.Equal(t, "ACaO e cafe", Normalize("AÇãO e café"))
	// Uppercase tilde vowels are outside the set.
	assert.Equal(t, "ACÃO", Normalize("AÇÃO"))
	assert.Equal(t, "aeiouAEIOUcCaoaeo", Normalize("áéíóúÁÉÍÓÚçÇãõâêô"))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Horário", "Atenção Prioritária", "São Paulo", "", "plain"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)
		assert.False(t, Has(once), in)
	}
}

func TestNormalizeIdentityOutsideSet(t *testing.T) {
	// ñ, ü and à are not in the replacement set.
	inputs := []string{"Novo SGA", "2024-03-07", "niño", "über", "à la carte", "عربي"}
	for _, in := range inputs {
		assert.Equal(t, in, Normalize(in))
	}
	assert.True(t, Has("Horário"))
	assert.False(t, Has("niño"))
}
