package stage

import (
	"context"
	"time"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
)

const socialMetadataStage = "social_metadata"

// SocialMetadataInput carries the profiles Social Discovery resolved.
type SocialMetadataInput struct {
	RunID          string
	Profiles       map[string]string
	RenderTimeout  time.Duration
}

// SocialMetadataOutput maps each successfully rendered platform to the
// public metadata extracted from its page.
type SocialMetadataOutput struct {
	Metadata map[string]model.SocialMetadata
}

// SocialMetadata renders each discovered profile URL at desktop viewport
// and extracts only its public meta tags (§4.8.6). A render failure for
// one platform is recorded as an Event and does not affect the others or
// fail the stage.
func SocialMetadata(ctx context.Context, browser Browser, in SocialMetadataInput) (SocialMetadataOutput, []Event, error) {
	var events []Event
	out := SocialMetadataOutput{Metadata: make(map[string]model.SocialMetadata, len(in.Profiles))}

	timeout := in.RenderTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	for platform, profileURL := range in.Profiles {
		result, err := browser.Render(ctx, in.RunID, profileURL, desktopViewport, timeout)
		if err != nil {
			events = append(events, warn(socialMetadataStage, "rendering social profile failed", map[string]any{
				"platform": platform, "url": profileURL, "error": err.Error(),
			}))
			continue
		}
		out.Metadata[platform] = metadataFromMeta(result.Meta, result.Title)
	}

	return out, events, nil
}

func metadataFromMeta(meta map[string]string, title string) model.SocialMetadata {
	return model.SocialMetadata{
		DisplayName: firstNonEmpty(meta["og:title"], meta["twitter:title"], title),
		Bio:         firstNonEmpty(meta["og:description"], meta["twitter:description"], meta["description"]),
		ImageURL:    firstNonEmpty(meta["og:image"], meta["twitter:image"]),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
