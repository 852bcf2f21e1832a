package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhoneService(t *testing.T) {
	phones := NewPhoneService("uz")

	t.Run("clean", func(t *testing.T) {
		assert.Equal(t, "998901234567", phones.Clean("+998 (90) 123-45-67"))
		assert.Equal(t, "", phones.Clean("call me"))
	})

	t.Run("suffix", func(t *testing.T) {
		assert.Equal(t, "901234567", phones.Suffix("998901234567"))
		assert.Equal(t, "901234567", phones.Suffix("901234567"))
		assert.Equal(t, "12345", phones.Suffix("12345"))
	})

	t.Run("display keeps the digits", func(t *testing.T) {
		full := phones.Display("998901234567")
		assert.Equal(t, "+", full[:1])
		assert.Equal(t, "998901234567", phones.Clean(full))

		local := phones.Display("901234567")
		assert.Equal(t, "998901234567", phones.Clean(local))
	})

	t.Run("display without digits", func(t *testing.T) {
		assert.Equal(t, "n/a", phones.Display("n/a"))
	})
}
