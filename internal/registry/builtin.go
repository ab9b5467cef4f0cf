package registry

import "styled/pkg/types"

// Builtin returns the embedded style catalog. It is the fallback when the
// remote catalog is unreachable or empty, so the daemon always starts with a
// usable style set.
func Builtin() []types.Style {
	return []types.Style{
		{
			ID:            "van_gogh_starry_night",
			Name:          "Van Gogh - Starry Night",
			SizeMB:        2.4,
			InputWidth:    256,
			InputHeight:   256,
			InputChannels: 3,
			URL:           "/models/starry_night.onnx",
			Description:   "Transform with Van Gogh's swirling brushstrokes",
		},
		{
			ID:            "picasso_cubist",
			Name:          "Picasso - Cubist",
			SizeMB:        2.1,
			InputWidth:    256,
			InputHeight:   256,
			InputChannels: 3,
			URL:           "/models/picasso_cubist.onnx",
			Description:   "Geometric abstraction in Picasso's style",
		},
		{
			ID:            "cyberpunk_neon",
			Name:          "Cyberpunk Neon",
			SizeMB:        2.8,
			InputWidth:    256,
			InputHeight:   256,
			InputChannels: 3,
			URL:           "/models/cyberpunk_neon.onnx",
			Description:   "Futuristic neon-lit digital enhancement",
		},
		{
			ID:            "monet_water_lilies",
			Name:          "Monet - Water Lilies",
			SizeMB:        2.2,
			InputWidth:    256,
			InputHeight:   256,
			InputChannels: 3,
			URL:           "/models/monet_water_lilies.onnx",
			Description:   "Soft, dreamy impressionist style",
		},
		{
			ID:            "anime_studio_ghibli",
			Name:          "Anime - Studio Ghibli",
			SizeMB:        2.0,
			InputWidth:    256,
			InputHeight:   256,
			InputChannels: 3,
			URL:           "/models/anime_studio_ghibli.onnx",
			Description:   "Colorful anime-inspired artistic style",
		},
	}
}
