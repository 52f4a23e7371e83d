package stage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/prospecting-engine/pkg/provider"
)

func TestSocialMetadata_ExtractsOGTagsPerPlatform(t *testing.T) {
	browser := &fakeBrowser{
		results: map[string]provider.RenderResult{
			"https://instagram.com/acme": {
				Title: "Acme on Instagram",
				Meta: map[string]string{
					"og:title":       "Acme Co.",
					"og:description": "Best widgets in town",
					"og:image":       "https://instagram.com/acme.jpg",
				},
			},
		},
	}

	out, events, err := SocialMetadata(context.Background(), browser, SocialMetadataInput{
		Profiles: map[string]string{"instagram": "https://instagram.com/acme"},
	})
	require.NoError(t, err)
	assert.Empty(t, events)
	meta := out.Metadata["instagram"]
	assert.Equal(t, "Acme Co.", meta.DisplayName)
	assert.Equal(t, "Best widgets in town", meta.Bio)
	assert.Equal(t, "https://instagram.com/acme.jpg", meta.ImageURL)
}

func TestSocialMetadata_PerPlatformFailureDoesNotFailOthers(t *testing.T) {
	browser := &fakeBrowser{
		results: map[string]provider.RenderResult{
			"https://facebook.com/acme": {Title: "Acme on Facebook"},
		},
		errs: map[string]error{
			"https://instagram.com/acme": errors.New("render timeout"),
		},
	}

	out, events, err := SocialMetadata(context.Background(), browser, SocialMetadataInput{
		Profiles: map[string]string{
			"instagram": "https://instagram.com/acme",
			"facebook":  "https://facebook.com/acme",
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, events)
	assert.NotContains(t, out.Metadata, "instagram")
	assert.Contains(t, out.Metadata, "facebook")
}
