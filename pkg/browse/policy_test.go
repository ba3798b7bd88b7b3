package browse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyCheck(t *testing.T) {
	p, err := NewPolicy([]string{"*.tracker.com", "ads.example.com"})
	require.NoError(t, err)

	t.Run("allows unmatched hosts", func(t *testing.T) {
		assert.NoError(t, p.Check("https://go.dev/doc"))
		assert.NoError(t, p.Check("https://example.com"))
	})

	t.Run("blocks glob matches", func(t *testing.T) {
		assert.Error(t, p.Check("https://pixel.tracker.com/x"))
		assert.Error(t, p.Check("http://ads.example.com"))
	})

	t.Run("exact pattern does not match subdomains", func(t *testing.T) {
		assert.NoError(t, p.Check("https://sub.ads.example.com"))
	})

	t.Run("host matching is case insensitive", func(t *testing.T) {
		assert.Error(t, p.Check("https://ADS.Example.COM"))
	})

	t.Run("rejects non-http schemes", func(t *testing.T) {
		assert.Error(t, p.Check("ftp://example.com/file"))
		assert.Error(t, p.Check("file:///etc/passwd"))
	})

	t.Run("rejects hostless URLs", func(t *testing.T) {
		assert.Error(t, p.Check("https://"))
	})
}

func TestNewPolicyInvalidPattern(t *testing.T) {
	_, err := NewPolicy([]string{"[unclosed"})
	assert.Error(t, err)
}
